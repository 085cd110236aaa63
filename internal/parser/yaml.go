package parser

import (
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
)

// ParseYAML decodes a single YAML document. Mapping order is kept and
// scalar kinds follow the YAML core schema tags.
func ParseYAML(reader io.Reader) (models.IntermediateRepresentation, error) {
	decoder := yaml.NewDecoder(reader)

	var doc yaml.Node
	if err := decoder.Decode(&doc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.IntermediateRepresentation{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.IntermediateRepresentation{}, errors.NewParsingError("failed to decode YAML", fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err))
	}

	var extra yaml.Node
	if err := decoder.Decode(&extra); err == nil {
		return models.IntermediateRepresentation{}, errors.NewParsingError("multiple YAML documents found", errors.ErrMultipleJSON)
	} else if !stderrors.Is(err, io.EOF) {
		return models.IntermediateRepresentation{}, errors.NewParsingError("invalid trailing data after first YAML document", fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err))
	}

	root, err := convertNode(&doc)
	if err != nil {
		return models.IntermediateRepresentation{}, errors.NewParsingError("failed to convert YAML document", err)
	}
	return models.NewIntermediateRepresentation(root), nil
}

func convertNode(n *yaml.Node) (models.JSONValue, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return convertNode(n.Content[0])
	case yaml.AliasNode:
		return convertNode(n.Alias)
	case yaml.SequenceNode:
		arr := make(models.JSONArray, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := convertNode(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.MappingNode:
		return convertMapping(n)
	case yaml.ScalarNode:
		return convertScalar(n)
	default:
		return nil, fmt.Errorf("%w: unsupported node kind %d at line %d", errors.ErrInvalidYAML, n.Kind, n.Line)
	}
}

func convertMapping(n *yaml.Node) (*models.JSONObject, error) {
	obj := &models.JSONObject{}
	var merges []*models.JSONObject
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valueNode := n.Content[i], n.Content[i+1]
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: non-scalar mapping key at line %d", errors.ErrInvalidYAML, keyNode.Line)
		}
		if keyNode.ShortTag() == "!!merge" {
			merged, err := mergeSources(valueNode)
			if err != nil {
				return nil, err
			}
			merges = append(merges, merged...)
			continue
		}
		v, err := convertNode(valueNode)
		if err != nil {
			return nil, err
		}
		obj.Set(keyNode.Value, v)
	}
	// Explicit keys win over merged ones.
	for _, m := range merges {
		for _, member := range m.Members {
			if _, exists := obj.Get(member.Key); !exists {
				obj.Set(member.Key, member.Value)
			}
		}
	}
	return obj, nil
}

func mergeSources(n *yaml.Node) ([]*models.JSONObject, error) {
	if n.Kind == yaml.SequenceNode {
		var out []*models.JSONObject
		for _, item := range n.Content {
			sub, err := mergeSources(item)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	}
	v, err := convertNode(n)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*models.JSONObject)
	if !ok {
		return nil, fmt.Errorf("%w: merge key must reference a mapping (line %d)", errors.ErrInvalidYAML, n.Line)
	}
	return []*models.JSONObject{obj}, nil
}

func convertScalar(n *yaml.Node) (models.JSONValue, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err)
		}
		return b, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			// Too large for int64; keep the digits.
			return models.JSONNumber(strings.TrimPrefix(n.Value, "+")), nil
		}
		return models.JSONNumber(strconv.FormatInt(i, 10)), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidYAML, err)
		}
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("%w: %q at line %d has no JSON representation", errors.ErrInvalidYAML, n.Value, n.Line)
		}
		return models.FloatLiteral(f, 64), nil
	default:
		return n.Value, nil
	}
}
