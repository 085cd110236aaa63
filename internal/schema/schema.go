// Package schema bridges typed-code trees and JSON Schema: it reads schema
// documents into code trees, exports syntheses as schemas and validates
// documents against them.
package schema

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/parser"
)

// SchemaType handles the JSON Schema type keyword, which can be a string or
// an array of strings.
type SchemaType struct {
	Types []string
}

// UnmarshalJSON handles both string and array forms of type
func (st *SchemaType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		st.Types = []string{s}
		return nil
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil {
		st.Types = arr
		return nil
	}

	return fmt.Errorf("type must be string or array of strings")
}

// Properties keeps object properties in document order.
type Properties struct {
	Keys    []string
	Schemas map[string]*Schema
}

// UnmarshalJSON decodes the property map and records key order.
func (p *Properties) UnmarshalJSON(data []byte) error {
	ir, err := parser.ParseBytes(data, parser.FormatJSON)
	if err != nil {
		return err
	}
	obj, ok := ir.Root.(*models.JSONObject)
	if !ok {
		return fmt.Errorf("properties must be an object")
	}
	if err := json.Unmarshal(data, &p.Schemas); err != nil {
		return err
	}
	p.Keys = obj.Keys()
	return nil
}

// Len returns the number of properties.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Keys)
}

// Schema is the subset of a JSON Schema document that affects the shape of
// the declarations.
type Schema struct {
	ID    string `json:"$id,omitempty"`
	Ref   string `json:"$ref,omitempty"`
	Title string `json:"title,omitempty"`

	Type SchemaType `json:"type,omitempty"`

	Properties *Properties `json:"properties,omitempty"`
	Items      *Schema     `json:"items,omitempty"`

	Enum  []json.RawMessage `json:"enum,omitempty"`
	Const json.RawMessage   `json:"const,omitempty"`

	// OpenAPI style nullability.
	Nullable bool `json:"nullable,omitempty"`

	AllOf []*Schema `json:"allOf,omitempty"`
	AnyOf []*Schema `json:"anyOf,omitempty"`
	OneOf []*Schema `json:"oneOf,omitempty"`

	Definitions map[string]*Schema `json:"definitions,omitempty"`
	Defs        map[string]*Schema `json:"$defs,omitempty"`
}

// ParseFile reads and parses a JSON Schema from a file
func ParseFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInputError(fmt.Sprintf("schema file '%s' not found", path), errors.ErrFileNotFound)
		}
		return nil, errors.NewInputError("failed to read schema file", err)
	}
	return ParseBytes(data)
}

// ParseBytes parses JSON Schema from bytes
func ParseBytes(data []byte) (*Schema, error) {
	var schema Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, errors.NewParsingError("failed to parse JSON Schema", err)
	}
	return &schema, nil
}

// ParseString parses JSON Schema from a string
func ParseString(s string) (*Schema, error) {
	return ParseBytes([]byte(s))
}
