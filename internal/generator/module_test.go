package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pytyper/internal/notation"
	"github.com/mcncl/pytyper/internal/parser"
)

func TestWriteModule(t *testing.T) {
	ir, err := parser.ParseString(`{"tags": ["a", 1], "meta": {"empty": []}}`)
	require.NoError(t, err)
	s, err := NewGenerator().Declarations("Doc", ir.Root)
	require.NoError(t, err)

	tests := []struct {
		name     string
		opts     ModuleOptions
		expected string
	}{
		{
			name: "declarations only",
			opts: ModuleOptions{},
			expected: `Meta = TypedDict("Meta", { "empty": List[Any] })
Doc = TypedDict("Doc", { "tags": List[Union[int, str]], "meta": Meta })
`,
		},
		{
			name: "imports from typing",
			opts: ModuleOptions{EmitImports: true},
			expected: `from typing import Any, List, TypedDict, Union


Meta = TypedDict("Meta", { "empty": List[Any] })
Doc = TypedDict("Doc", { "tags": List[Union[int, str]], "meta": Meta })
`,
		},
		{
			name: "typing_extensions and header",
			opts: ModuleOptions{EmitImports: true, TypedDictModule: TypingExtensionsModule, Header: "Generated by pytyper.\n\nDo not edit."},
			expected: `# Generated by pytyper.
#
# Do not edit.

from typing import Any, List, Union
from typing_extensions import TypedDict


Meta = TypedDict("Meta", { "empty": List[Any] })
Doc = TypedDict("Doc", { "tags": List[Union[int, str]], "meta": Meta })
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WriteModule(s, tt.opts))
		})
	}
}

func TestImports_PEP604(t *testing.T) {
	ir, err := parser.ParseString(`{"tags": ["a", 1]}`)
	require.NoError(t, err)
	s, err := NewGenerator(WithNotation(notation.PEP604Notation{})).Declarations("Doc", ir.Root)
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"typing": {"TypedDict"}}, Imports(s, ""))
}

func TestImports_PrimitiveAlias(t *testing.T) {
	ir, err := parser.ParseString(`"just a string"`)
	require.NoError(t, err)
	s, err := NewGenerator().Declarations("Value", ir.Root)
	require.NoError(t, err)

	assert.Empty(t, Imports(s, ""))
	assert.Equal(t, "Value = str\n", WriteModule(s, ModuleOptions{EmitImports: true}))
}
