package models

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONNumber_IsIntegral(t *testing.T) {
	tests := map[JSONNumber]bool{
		"0":      true,
		"-12":    true,
		"1.0":    false,
		"1e3":    false,
		"2.5E-3": false,
	}
	for literal, want := range tests {
		assert.Equal(t, want, literal.IsIntegral(), "literal %s", literal)
	}

	f, err := JSONNumber("1.5").Float64()
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-9)

	_, err = JSONNumber("1.5").Int64()
	assert.Error(t, err)
}

func TestJSONObject_SetKeepsPosition(t *testing.T) {
	obj := NewJSONObject(
		Member{Key: "a", Value: "1"},
		Member{Key: "b", Value: "2"},
	)
	obj.Set("a", "3")
	obj.Set("c", nil)

	assert.Equal(t, []string{"a", "b", "c"}, obj.Keys())
	v, ok := obj.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v)
	_, ok = obj.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 3, obj.Len())
}

func TestFromAny(t *testing.T) {
	got, err := FromAny(map[string]any{
		"z":    []any{1, 2.5, json.Number("7"), nil},
		"a":    true,
		"next": map[string]any{"k": "v"},
	})
	require.NoError(t, err)

	obj, ok := got.(*JSONObject)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "next", "z"}, obj.Keys(), "map keys are sorted")

	z, _ := obj.Get("z")
	assert.Equal(t, JSONArray{JSONNumber("1"), JSONNumber("2.5"), JSONNumber("7"), nil}, z)

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func TestFromAny_NumberKinds(t *testing.T) {
	huge, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	tests := []struct {
		name     string
		in       any
		expected JSONNumber
	}{
		{"whole float stays a float", 1.0, "1.0"},
		{"fraction", 2.5, "2.5"},
		{"exponent", 1e300, "1e+300"},
		{"float32", float32(3), "3.0"},
		{"int", 42, "42"},
		{"big int", huge, "123456789012345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToAny(t *testing.T) {
	value := NewJSONObject(
		Member{Key: "n", Value: JSONNumber("1.0")},
		Member{Key: "xs", Value: JSONArray{"a", false}},
	)
	assert.Equal(t, map[string]any{
		"n":  json.Number("1.0"),
		"xs": []any{"a", false},
	}, ToAny(value))
}

func TestEqual_UnionsAreSets(t *testing.T) {
	a := &Union{Members: []Code{NewPrimitive(Int), NewPrimitive(Str)}}
	b := &Union{Members: []Code{NewPrimitive(Str), NewPrimitive(Int)}}
	c := &Union{Members: []Code{NewPrimitive(Str)}}

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestEqual_Records(t *testing.T) {
	mk := func(name string, keys ...string) *Record {
		r := &Record{Name: name}
		for _, k := range keys {
			r.Fields = append(r.Fields, Field{Key: k, Type: NewPrimitive(Str)})
		}
		return r
	}

	tests := []struct {
		name  string
		a, b  Code
		equal bool
	}{
		{"same shape", mk("item", "a", "b"), mk("item", "a", "b"), true},
		{"different name", mk("item", "a"), mk("other", "a"), false},
		{"field order matters", mk("item", "a", "b"), mk("item", "b", "a"), false},
		{"extra field", mk("item", "a"), mk("item", "a", "b"), false},
		{"record vs list", mk("item"), &List{Elem: &Union{}}, false},
		{"nil vs nil", nil, nil, true},
		{"nil vs primitive", nil, NewPrimitive(Int), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Equal(tt.a, tt.b))
			assert.Equal(t, tt.equal, Fingerprint(tt.a) == Fingerprint(tt.b))
		})
	}
}

func TestFingerprint_QuotesKeys(t *testing.T) {
	a := &Record{Name: "r", Fields: []Field{{Key: "a,b", Type: NewPrimitive(Int)}}}
	b := &Record{Name: "r", Fields: []Field{
		{Key: "a", Type: NewPrimitive(Int)},
		{Key: "b", Type: NewPrimitive(Int)},
	}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func TestWalk_ChildrenFirst(t *testing.T) {
	inner := &Record{Name: "inner", Fields: []Field{{Key: "x", Type: NewPrimitive(Bool)}}}
	union := &Union{Members: []Code{inner}}
	list := &List{Elem: union}
	root := &Record{Name: "root", Fields: []Field{{Key: "xs", Type: list}}}

	var kinds []CodeKind
	Walk(root, func(c Code) { kinds = append(kinds, c.Kind()) })

	assert.Equal(t, []CodeKind{KindPrimitive, KindRecord, KindUnion, KindList, KindRecord}, kinds)
}

func TestCodeKind_String(t *testing.T) {
	assert.Equal(t, "record", KindRecord.String())
	assert.Equal(t, "unknown(9)", CodeKind(9).String())
	assert.Equal(t, "none", None.String())
}
