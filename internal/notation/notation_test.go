package notation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pytyper/internal/models"
)

func TestByName(t *testing.T) {
	n, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, Typing, n.Name())

	n, err = ByName("PEP604")
	require.NoError(t, err)
	assert.Equal(t, PEP604, n.Name())

	_, err = ByName("mypy")
	assert.Error(t, err)
	assert.ElementsMatch(t, []string{Typing, PEP604}, Available())
}

func TestTypingNotation(t *testing.T) {
	n := TypingNotation{}

	assert.Equal(t, "None", n.Primitive(models.None))
	assert.Equal(t, "float", n.Primitive(models.Float))
	assert.Equal(t, "List[str]", n.List("str"))
	assert.Equal(t, "Union[int, str]", n.Union([]string{"int", "str"}))
	assert.Equal(t, "Any", n.Any())
	assert.Equal(t, `X = TypedDict("X", {})`, n.Declaration("X", n.Record("X", nil)))
	assert.Equal(t,
		`TypedDict("Point", { "x": int, "y-coord": float })`,
		n.Record("Point", []RenderedField{{Key: "x", Type: "int"}, {Key: "y-coord", Type: "float"}}),
	)
	assert.Contains(t, n.Reserved(), "Dict")
	assert.Contains(t, n.Reserved(), "class")
}

func TestPEP604Notation(t *testing.T) {
	n := PEP604Notation{}

	assert.Equal(t, "list[str]", n.List("str"))
	assert.Equal(t, "int | str | None", n.Union([]string{"int", "str", "None"}))
	assert.Equal(t, `TypedDict("A", { "k": str })`, n.Record("A", []RenderedField{{Key: "k", Type: "str"}}))
}

func TestSymbols(t *testing.T) {
	list := &models.List{Elem: &models.Union{}}
	union := &models.Union{Members: []models.Code{models.NewPrimitive(models.Int), models.NewPrimitive(models.Str)}}
	single := &models.Union{Members: []models.Code{models.NewPrimitive(models.Int)}}
	record := &models.Record{Name: "r"}

	typing := TypingNotation{}
	assert.Equal(t, []string{"List"}, typing.Symbols(list))
	assert.Equal(t, []string{"Union"}, typing.Symbols(union))
	assert.Nil(t, typing.Symbols(single))
	assert.Equal(t, []string{"Any"}, typing.Symbols(list.Elem))
	assert.Equal(t, []string{"TypedDict"}, typing.Symbols(record))
	assert.Nil(t, typing.Symbols(models.NewPrimitive(models.Bool)))

	pep := PEP604Notation{}
	assert.Nil(t, pep.Symbols(list))
	assert.Nil(t, pep.Symbols(union))
	assert.Equal(t, []string{"Any"}, pep.Symbols(list.Elem))
}

func TestQuoteString(t *testing.T) {
	tests := map[string]string{
		"plain":     `"plain"`,
		`say "hi"`:  `"say \"hi\""`,
		`back\`:     `"back\\"`,
		"line\nend": `"line\nend"`,
		"tab\there": `"tab\there"`,
		"bell\a":    `"bell\x07"`,
		"ünï":       `"ünï"`,
	}
	for in, want := range tests {
		assert.Equal(t, want, QuoteString(in), "input %q", in)
	}
}
