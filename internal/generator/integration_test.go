package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/config"
	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/parser"
)

func TestIntegration_ParserAnalyzerGenerator(t *testing.T) {
	// Parser -> Analyzer -> Generator
	jsonInput := `{
		"user_id": 123,
		"username": "johndoe",
		"is_active": true,
		"profile": {
			"full_name": "John Doe",
			"email": "john.doe@example.com"
		}
	}`

	ir, err := parser.ParseString(jsonInput)
	require.NoError(t, err)

	result, err := analyzer.NewAnalyzer().Analyze(ir, "User")
	require.NoError(t, err)
	require.Len(t, result.Records(), 2)

	s, err := generator.NewGenerator().FromCode("User", result.Root)
	require.NoError(t, err)

	expected := `Profile = TypedDict("Profile", { "full_name": str, "email": str })
User = TypedDict("User", { "user_id": int, "username": str, "is_active": bool, "profile": Profile })`
	assert.Equal(t, expected, s.String())
}

func TestIntegration_ConfigDrivenGeneration(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Notation = "pep604"
	cfg.Naming.NameMappings["meta"] = "Metadata"
	cfg.Naming.Rules = []config.NameRule{{Pattern: "^(.+)_list$", Replace: "${1}_item"}}
	cfg.Naming.Reserved = []string{"Envelope"}
	require.NoError(t, cfg.Validate())

	opts, err := cfg.GeneratorOptions()
	require.NoError(t, err)

	ir, err := parser.ParseString(`{"meta": {"page": 1}, "order_list": [{"sku": "a"}]}`)
	require.NoError(t, err)

	s, err := generator.NewGenerator(opts...).Declarations("envelope", ir.Root)
	require.NoError(t, err)

	expected := `Metadata = TypedDict("Metadata", { "page": int })
OrderItem = TypedDict("OrderItem", { "sku": str })
Envelope2 = TypedDict("Envelope2", { "meta": Metadata, "order_list": list[OrderItem] })`
	assert.Equal(t, expected, s.String())

	root, ok := s.RootDeclaration()
	require.True(t, ok)
	assert.Equal(t, "Envelope2", root.Name)

	assert.Equal(t, map[string][]string{"typing": {"TypedDict"}}, generator.Imports(s, cfg.TypedDictModule))
}

func TestIntegration_ArrayOfObjectsRoot(t *testing.T) {
	jsonInput := `[
		{"id": 1, "name": "Product 1", "price": 19.99},
		{"id": 2, "name": "Product 2", "price": 29.99}
	]`

	ir, err := parser.ParseString(jsonInput)
	require.NoError(t, err)

	s, err := generator.NewGenerator().Declarations("Products", ir.Root)
	require.NoError(t, err)

	module := generator.WriteModule(s, generator.ModuleOptions{EmitImports: true})
	expected := `from typing import List, TypedDict


Products = TypedDict("Products", { "id": int, "name": str, "price": float })
Products2 = TypedDict("Products2", { "id": int, "name": str, "price": float })
Products3 = List[Products]
`
	assert.Equal(t, expected, module)
}
