package schema

import (
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/models"
)

// DefsPrefix is the reference prefix of exported declarations.
const DefsPrefix = "#/$defs/"

// Export describes a synthesis as a JSON Schema (draft 2020-12). Every
// declared record becomes a $defs entry under its declaration name and is
// referenced from wherever the record is used.
func Export(s *generator.Synthesis) (*jsonschema.Schema, error) {
	defs := make(jsonschema.Definitions)
	for _, decl := range s.Declarations {
		if decl.Record == nil {
			continue
		}
		def, err := recordSchema(decl.Record, s.Assignments)
		if err != nil {
			return nil, err
		}
		def.Title = decl.Name
		defs[decl.Name] = def
	}

	var root *jsonschema.Schema
	if name, ok := s.Assignments[s.Root]; ok {
		root = &jsonschema.Schema{Ref: DefsPrefix + name}
	} else {
		converted, err := codeSchema(s.Root, s.Assignments)
		if err != nil {
			return nil, err
		}
		root = converted
	}
	if decl, ok := s.RootDeclaration(); ok {
		root.Title = decl.Name
	}
	root.Version = jsonschema.Version
	if len(defs) > 0 {
		root.Definitions = defs
	}
	return root, nil
}

func recordSchema(r *models.Record, assignments generator.Assignments) (*jsonschema.Schema, error) {
	props := jsonschema.NewProperties()
	required := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		fs, err := codeSchema(f.Type, assignments)
		if err != nil {
			return nil, errors.NewPathError(r.Name+"."+f.Key, err, "")
		}
		props.Set(f.Key, fs)
		required = append(required, f.Key)
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}, nil
}

// codeSchema mirrors generator.Render: assigned records are referenced by
// name, anything else is described inline.
func codeSchema(c models.Code, assignments generator.Assignments) (*jsonschema.Schema, error) {
	if name, ok := assignments[c]; ok {
		return &jsonschema.Schema{Ref: DefsPrefix + name}, nil
	}

	switch node := c.(type) {
	case *models.Primitive:
		return &jsonschema.Schema{Type: primitiveType(node.Type)}, nil
	case *models.List:
		items, err := codeSchema(node.Elem, assignments)
		if err != nil {
			return nil, err
		}
		return &jsonschema.Schema{Type: "array", Items: items}, nil
	case *models.Union:
		switch len(node.Members) {
		case 0:
			return &jsonschema.Schema{}, nil
		case 1:
			return codeSchema(node.Members[0], assignments)
		}
		anyOf := make([]*jsonschema.Schema, 0, len(node.Members))
		for _, m := range node.Members {
			ms, err := codeSchema(m, assignments)
			if err != nil {
				return nil, err
			}
			anyOf = append(anyOf, ms)
		}
		return &jsonschema.Schema{AnyOf: anyOf}, nil
	case *models.Record:
		return recordSchema(node, assignments)
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, c)
	}
}

func primitiveType(t models.PrimitiveType) string {
	switch t {
	case models.Int:
		return "integer"
	case models.Float:
		return "number"
	case models.Str:
		return "string"
	case models.Bool:
		return "boolean"
	default:
		return "null"
	}
}
