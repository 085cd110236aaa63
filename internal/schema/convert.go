package schema

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/parser"
)

// ErrRecursiveRef is returned for schemas that reference themselves. The
// functional TypedDict form cannot express them.
var ErrRecursiveRef = stderrors.New("recursive $ref")

// Converter converts a JSON Schema document into a typed-code tree.
type Converter struct {
	schema      *Schema
	definitions map[string]*Schema
	// resolved makes every use of a $ref share one node, so the
	// definition is declared once.
	resolved  map[string]models.Code
	resolving map[string]bool
}

// NewConverter creates a new schema converter
func NewConverter(schema *Schema) *Converter {
	definitions := make(map[string]*Schema)
	for k, v := range schema.Definitions {
		definitions["#/definitions/"+k] = v
	}
	for k, v := range schema.Defs {
		definitions["#/$defs/"+k] = v
	}

	return &Converter{
		schema:      schema,
		definitions: definitions,
		resolved:    make(map[string]models.Code),
		resolving:   make(map[string]bool),
	}
}

// RootName picks the working root name: rootName, else the schema title,
// else the default.
func (c *Converter) RootName(rootName string) string {
	if rootName != "" {
		return rootName
	}
	if c.schema.Title != "" {
		return c.schema.Title
	}
	return analyzer.DefaultRootName
}

// Convert builds the typed-code tree for the whole document.
func (c *Converter) Convert(rootName string) (models.Code, error) {
	code, err := c.convert(c.schema, c.RootName(rootName), c.RootName(rootName))
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema: %w", err)
	}
	return code, nil
}

func (c *Converter) convert(schema *Schema, key, path string) (models.Code, error) {
	if schema == nil {
		return anyCode(), nil
	}
	if schema.Ref != "" {
		return c.resolveRef(schema.Ref, path)
	}
	if len(schema.AllOf) > 0 {
		merged, err := c.mergeAllOf(schema)
		if err != nil {
			return nil, errors.NewPathError(path, err, "allOf")
		}
		return c.convert(merged, key, path)
	}

	var members []models.Code
	for _, alternatives := range [][]*Schema{schema.AnyOf, schema.OneOf} {
		for i, alt := range alternatives {
			code, err := c.convert(alt, key, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			members = append(members, code)
		}
	}

	types := schema.Type.Types
	if len(types) == 0 && len(members) == 0 {
		switch {
		case schema.Properties.Len() > 0:
			types = []string{"object"}
		case schema.Items != nil:
			types = []string{"array"}
		}
	}
	for _, t := range types {
		code, err := c.convertType(t, schema, key, path)
		if err != nil {
			return nil, err
		}
		members = append(members, code)
	}

	if len(types) == 0 && len(members) == 0 {
		literals, err := c.literalTypes(schema, key, path)
		if err != nil {
			return nil, err
		}
		members = append(members, literals...)
	}

	if schema.Nullable && len(members) > 0 {
		members = append(members, models.NewPrimitive(models.None))
	}
	return union(members)
}

func (c *Converter) convertType(t string, schema *Schema, key, path string) (models.Code, error) {
	switch t {
	case "object":
		return c.convertObject(schema, key, path)
	case "array":
		elem, err := c.convert(schema.Items, key, path)
		if err != nil {
			return nil, err
		}
		return &models.List{Elem: asUnion(elem)}, nil
	case "string":
		return models.NewPrimitive(models.Str), nil
	case "integer":
		return models.NewPrimitive(models.Int), nil
	case "number":
		return models.NewPrimitive(models.Float), nil
	case "boolean":
		return models.NewPrimitive(models.Bool), nil
	case "null":
		return models.NewPrimitive(models.None), nil
	default:
		return nil, errors.NewPathError(path, errors.ErrUnsupportedValueKind, fmt.Sprintf("schema type %q", t))
	}
}

// convertObject maps an object with declared properties to a record. A
// free-form object has no fixed keys and becomes Any.
func (c *Converter) convertObject(schema *Schema, key, path string) (models.Code, error) {
	if schema.Properties.Len() == 0 {
		return anyCode(), nil
	}

	record := &models.Record{Name: key, Fields: make([]models.Field, 0, schema.Properties.Len())}
	for _, prop := range schema.Properties.Keys {
		code, err := c.convert(schema.Properties.Schemas[prop], prop, path+"."+prop)
		if err != nil {
			return nil, err
		}
		record.Fields = append(record.Fields, models.Field{Key: prop, Type: code})
	}
	return record, nil
}

// literalTypes infers types from enum and const values.
func (c *Converter) literalTypes(schema *Schema, key, path string) ([]models.Code, error) {
	raw := schema.Enum
	if len(schema.Const) > 0 {
		raw = append(raw, schema.Const)
	}
	var types []models.Code
	for _, literal := range raw {
		ir, err := parser.ParseBytes(literal, parser.FormatJSON)
		if err != nil {
			return nil, errors.NewPathError(path, err, "enum value")
		}
		code, err := analyzer.Infer(key, ir.Root)
		if err != nil {
			return nil, err
		}
		types = append(types, code)
	}
	return types, nil
}

// resolveRef resolves a local $ref. Each reference is converted once.
func (c *Converter) resolveRef(ref, path string) (models.Code, error) {
	if cached, ok := c.resolved[ref]; ok {
		return cached, nil
	}
	def, ok := c.definitions[ref]
	if !ok {
		if !strings.HasPrefix(ref, "#/") {
			return nil, errors.NewPathError(path, fmt.Errorf("external $ref not supported: %s", ref), "")
		}
		return nil, errors.NewPathError(path, fmt.Errorf("unresolved $ref: %s", ref), "")
	}
	if c.resolving[ref] {
		return nil, errors.NewPathError(path, ErrRecursiveRef, ref)
	}

	c.resolving[ref] = true
	defer delete(c.resolving, ref)

	name := ref[strings.LastIndex(ref, "/")+1:]
	code, err := c.convert(def, name, path)
	if err != nil {
		return nil, err
	}
	c.resolved[ref] = code
	return code, nil
}

// mergeAllOf folds the allOf members of schema, resolving local refs, into
// one object schema. Properties keep first-seen order; later members win on
// conflicting property schemas.
func (c *Converter) mergeAllOf(schema *Schema) (*Schema, error) {
	merged := &Schema{
		Title:      schema.Title,
		Type:       SchemaType{Types: []string{"object"}},
		Properties: &Properties{Schemas: make(map[string]*Schema)},
		Nullable:   schema.Nullable,
	}

	parts := append([]*Schema{}, schema.AllOf...)
	if schema.Properties.Len() > 0 {
		parts = append(parts, &Schema{Properties: schema.Properties})
	}

	for _, part := range parts {
		resolved := part
		for seen := 0; resolved.Ref != ""; seen++ {
			def, ok := c.definitions[resolved.Ref]
			if !ok || seen > len(c.definitions) {
				return nil, fmt.Errorf("unresolved $ref in allOf: %s", resolved.Ref)
			}
			resolved = def
		}
		if len(resolved.AllOf) > 0 {
			inner, err := c.mergeAllOf(resolved)
			if err != nil {
				return nil, err
			}
			resolved = inner
		}

		if resolved.Properties == nil {
			continue
		}
		for _, key := range resolved.Properties.Keys {
			if _, exists := merged.Properties.Schemas[key]; !exists {
				merged.Properties.Keys = append(merged.Properties.Keys, key)
			}
			merged.Properties.Schemas[key] = resolved.Properties.Schemas[key]
		}
	}
	return merged, nil
}

// anyCode is the empty union, rendered as Any.
func anyCode() models.Code { return &models.Union{} }

// union collapses members into a single code: one member stands alone,
// several become a deduplicated, ordered union.
func union(members []models.Code) (models.Code, error) {
	var flat []models.Code
	for _, m := range members {
		if u, ok := m.(*models.Union); ok {
			if len(u.Members) == 0 {
				// Any absorbs everything else.
				return anyCode(), nil
			}
			flat = append(flat, u.Members...)
			continue
		}
		flat = append(flat, m)
	}
	if len(flat) == 0 {
		return anyCode(), nil
	}
	collapsed, err := analyzer.Collapse(flat)
	if err != nil {
		return nil, err
	}
	if len(collapsed) == 1 {
		return collapsed[0], nil
	}
	return &models.Union{Members: collapsed}, nil
}

// asUnion wraps a list element the way the analyzer stores it.
func asUnion(c models.Code) *models.Union {
	if u, ok := c.(*models.Union); ok {
		return u
	}
	return &models.Union{Members: []models.Code{c}}
}
