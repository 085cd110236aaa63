package analyzer

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/parser"
)

func primitiveTypes(t *testing.T, members []models.Code) []models.PrimitiveType {
	t.Helper()
	out := make([]models.PrimitiveType, 0, len(members))
	for _, m := range members {
		p, ok := m.(*models.Primitive)
		require.True(t, ok, "member %T is not a primitive", m)
		out = append(out, p.Type)
	}
	return out
}

func TestAnalyze_SimpleObject(t *testing.T) {
	ir, err := parser.ParseString(`{"name": "John Doe", "age": 30, "is_student": false, "score": 99.5, "city": null}`)
	require.NoError(t, err)

	result, err := NewAnalyzer().Analyze(ir, "Person")
	require.NoError(t, err)

	root, ok := result.Root.(*models.Record)
	require.True(t, ok, "root should be a record")
	assert.Equal(t, "Person", root.Name)

	keys := make([]string, 0, len(root.Fields))
	kinds := make([]models.PrimitiveType, 0, len(root.Fields))
	for _, f := range root.Fields {
		keys = append(keys, f.Key)
		kinds = append(kinds, f.Type.(*models.Primitive).Type)
	}
	assert.Equal(t, []string{"name", "age", "is_student", "score", "city"}, keys)
	assert.Equal(t, []models.PrimitiveType{models.Str, models.Int, models.Bool, models.Float, models.None}, kinds)
}

func TestAnalyze_DefaultRootName(t *testing.T) {
	ir, err := parser.ParseString(`{"a": 1}`)
	require.NoError(t, err)

	result, err := NewAnalyzer().Analyze(ir, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultRootName, result.Root.(*models.Record).Name)
}

func TestInfer_FieldOrderAndTypes(t *testing.T) {
	code, err := Infer("Root", models.NewJSONObject(
		models.Member{Key: "a", Value: models.JSONNumber("1")},
		models.Member{Key: "b", Value: "x"},
	))
	require.NoError(t, err)

	record := code.(*models.Record)
	require.Len(t, record.Fields, 2)
	assert.Equal(t, "a", record.Fields[0].Key)
	assert.Equal(t, models.Int, record.Fields[0].Type.(*models.Primitive).Type)
	assert.Equal(t, "b", record.Fields[1].Key)
	assert.Equal(t, models.Str, record.Fields[1].Type.(*models.Primitive).Type)
}

func TestInfer_Arrays(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []models.PrimitiveType
	}{
		{name: "deduplicates identical strings", input: `["x", "y", "z"]`, expected: []models.PrimitiveType{models.Str}},
		{name: "heterogeneous ordering", input: `[1.0, "s", true]`, expected: []models.PrimitiveType{models.Float, models.Str, models.Bool}},
		{name: "reverse input order", input: `[null, true, "s", 2.5, 1]`, expected: []models.PrimitiveType{models.Int, models.Float, models.Str, models.Bool, models.None}},
		{name: "empty array", input: `[]`, expected: []models.PrimitiveType{}},
		{name: "int and float stay distinct", input: `[1, 1.0, 2]`, expected: []models.PrimitiveType{models.Int, models.Float}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ir, err := parser.ParseString(tt.input)
			require.NoError(t, err)

			code, err := Infer("items", ir.Root)
			require.NoError(t, err)

			list, ok := code.(*models.List)
			require.True(t, ok, "expected a list, got %T", code)
			union, ok := list.Elem.(*models.Union)
			require.True(t, ok, "list element should be a union, got %T", list.Elem)
			assert.Equal(t, tt.expected, primitiveTypes(t, union.Members))
		})
	}
}

func TestInfer_CompositeOrdering(t *testing.T) {
	ir, err := parser.ParseString(`[{"a": 1}, [1], null, "s", {"a": 2}, {"b": 1}]`)
	require.NoError(t, err)

	code, err := Infer("things", ir.Root)
	require.NoError(t, err)

	members := code.(*models.List).Elem.(*models.Union).Members
	require.Len(t, members, 5)
	assert.Equal(t, models.KindPrimitive, members[0].Kind())
	assert.Equal(t, models.Str, members[0].(*models.Primitive).Type)
	assert.Equal(t, models.None, members[1].(*models.Primitive).Type)
	assert.Equal(t, models.KindList, members[2].Kind())
	// Records tie on rank and keep first-seen order.
	assert.Equal(t, "a", members[3].(*models.Record).Fields[0].Key)
	assert.Equal(t, "b", members[4].(*models.Record).Fields[0].Key)
}

func TestInfer_ArrayElementsInheritKey(t *testing.T) {
	ir, err := parser.ParseString(`[{"quux": "fox"}]`)
	require.NoError(t, err)

	code, err := Infer("heterogenous_list", ir.Root)
	require.NoError(t, err)

	rec := code.(*models.List).Elem.(*models.Union).Members[0].(*models.Record)
	assert.Equal(t, "heterogenous_list", rec.Name)
}

func TestInferAll_PostOrder(t *testing.T) {
	ir, err := parser.ParseString(`{"dict": {"k": "v"}, "list": [{"x": 1}]}`)
	require.NoError(t, err)

	nodes, err := InferAll("Root", ir.Root)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	position := make(map[models.Code]int, len(nodes))
	for i, n := range nodes {
		position[n] = i
	}
	for i, n := range nodes {
		models.Walk(n, func(child models.Code) {
			if child == n {
				return
			}
			pos, ok := position[child]
			require.True(t, ok, "child %T of node %d was not returned", child, i)
			assert.Less(t, pos, i, "child must precede its parent")
		})
	}

	root := nodes[len(nodes)-1].(*models.Record)
	assert.Equal(t, "Root", root.Name)
}

func TestInferAll_KeepsCollapsedRecordInstances(t *testing.T) {
	ir, err := parser.ParseString(`{"items": [{"a": 1}, {"a": 2}]}`)
	require.NoError(t, err)

	nodes, err := InferAll("Root", ir.Root)
	require.NoError(t, err)

	records := Result{Nodes: nodes}.Records()
	require.Len(t, records, 3, "both element records and the root are returned")
	assert.True(t, models.Equal(records[0], records[1]))
	assert.NotSame(t, records[0], records[1])
}

func TestInfer_NullField(t *testing.T) {
	code, err := Infer("Root", models.NewJSONObject(models.Member{Key: "n", Value: nil}))
	require.NoError(t, err)

	field, ok := code.(*models.Record).Field("n")
	require.True(t, ok)
	assert.Equal(t, models.None, field.(*models.Primitive).Type)
}

func TestInfer_UnsupportedValue(t *testing.T) {
	value := models.NewJSONObject(models.Member{Key: "items", Value: models.JSONArray{struct{}{}}})
	_, err := Infer("Response", value)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedValueKind))

	var pathErr *errors.PathError
	require.True(t, stderrors.As(err, &pathErr))
	assert.Equal(t, "Response.items", pathErr.Path)
}

func TestInfer_MissingRecordName(t *testing.T) {
	_, err := Infer("", models.NewJSONObject())
	assert.True(t, stderrors.Is(err, errors.ErrMissingRecordName))

	// Primitives need no name.
	code, err := Infer("", "s")
	require.NoError(t, err)
	assert.Equal(t, models.Str, code.(*models.Primitive).Type)
}

type foreignCode struct{}

func (foreignCode) Kind() models.CodeKind { return models.CodeKind(42) }

func TestOrderKey(t *testing.T) {
	tests := []struct {
		name string
		code models.Code
		want int
	}{
		{"int", models.NewPrimitive(models.Int), 0},
		{"float", models.NewPrimitive(models.Float), 1},
		{"str", models.NewPrimitive(models.Str), 2},
		{"bool", models.NewPrimitive(models.Bool), 3},
		{"none", models.NewPrimitive(models.None), 4},
		{"union", &models.Union{}, 100},
		{"list", &models.List{Elem: &models.Union{}}, 200},
		{"record", &models.Record{Name: "r"}, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OrderKey(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := OrderKey(foreignCode{})
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedTypeKind))

	_, err = OrderKey(models.NewPrimitive(models.PrimitiveType(9)))
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedTypeKind))

	_, err = Collapse([]models.Code{models.NewPrimitive(models.Int), foreignCode{}})
	assert.True(t, stderrors.Is(err, errors.ErrUnsupportedTypeKind))
}

func TestCollapse_StructuralDedup(t *testing.T) {
	a := &models.Union{Members: []models.Code{models.NewPrimitive(models.Int), models.NewPrimitive(models.Str)}}
	b := &models.Union{Members: []models.Code{models.NewPrimitive(models.Str), models.NewPrimitive(models.Int)}}

	out, err := Collapse([]models.Code{a, b, models.NewPrimitive(models.Bool)})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Same(t, models.Code(out[1]), models.Code(a), "first instance is kept")
}

func TestAnalyze_Deterministic(t *testing.T) {
	input := `{"a": [1, "x", {"b": [true, null, 2.5]}], "c": {"d": []}}`
	var first string
	for i := 0; i < 20; i++ {
		ir, err := parser.ParseString(input)
		require.NoError(t, err)
		result, err := NewAnalyzer().Analyze(ir, "Root")
		require.NoError(t, err)
		fp := models.Fingerprint(result.Root)
		if i == 0 {
			first = fp
			continue
		}
		assert.Equal(t, first, fp)
	}
}
