package analyzer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
)

// DefaultRootName is the default name for the root record if not specified.
const DefaultRootName = "RootType"

// Union member ranks. Primitives rank by their PrimitiveType below every
// composite kind.
const (
	unionRank  = 100
	listRank   = 200
	recordRank = 300
)

// Result is the outcome of analyzing one document.
type Result struct {
	// Root is the type of the whole document.
	Root models.Code
	// Nodes holds every node created during the walk, dependencies first;
	// Root is last.
	Nodes []models.Code
}

// Records returns the record nodes of Nodes in order.
func (r Result) Records() []*models.Record {
	var records []*models.Record
	for _, n := range r.Nodes {
		if rec, ok := n.(*models.Record); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Analyzer infers typed-code trees from JSON values. It holds no state
// between calls and is safe for concurrent use.
type Analyzer struct{}

// NewAnalyzer creates a new Analyzer instance.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze infers the type tree of ir.Root, naming the root record rootName.
func (a *Analyzer) Analyze(ir models.IntermediateRepresentation, rootName string) (Result, error) {
	if rootName == "" {
		rootName = DefaultRootName
	}
	nodes, err := InferAll(rootName, ir.Root)
	if err != nil {
		return Result{}, fmt.Errorf("failed to analyze root node: %w", err)
	}
	slog.Debug("inferred type tree", "root", rootName, "nodes", len(nodes))
	return Result{Root: nodes[len(nodes)-1], Nodes: nodes}, nil
}

// Infer returns the type of value. key names the record if value is an
// object.
func Infer(key string, value models.JSONValue) (models.Code, error) {
	nodes, err := InferAll(key, value)
	if err != nil {
		return nil, err
	}
	return nodes[len(nodes)-1], nil
}

// InferAll returns every node created while inferring value, ordered so
// that no node appears before a node it depends on. The type of value
// itself is last.
func InferAll(key string, value models.JSONValue) ([]models.Code, error) {
	if key == "" && isObject(value) {
		return nil, errors.NewPathError(key, errors.ErrMissingRecordName, "top-level object needs a root name")
	}
	w := &walker{}
	if _, err := w.infer(key, key, value); err != nil {
		return nil, err
	}
	return w.nodes, nil
}

func isObject(v models.JSONValue) bool {
	switch v.(type) {
	case *models.JSONObject, models.JSONObject:
		return true
	}
	return false
}

// walker collects nodes in post-order during one inference pass.
type walker struct {
	nodes []models.Code
}

func (w *walker) emit(c models.Code) models.Code {
	w.nodes = append(w.nodes, c)
	return c
}

// infer is the core recursive function. key is the naming hint for
// records, path the dot-joined key path used in errors.
func (w *walker) infer(key, path string, value models.JSONValue) (models.Code, error) {
	switch v := value.(type) {
	case nil:
		return w.emit(models.NewPrimitive(models.None)), nil
	case bool:
		return w.emit(models.NewPrimitive(models.Bool)), nil
	case models.JSONNumber:
		return w.emit(analyzeNumber(v)), nil
	case string:
		return w.emit(models.NewPrimitive(models.Str)), nil
	case models.JSONArray:
		return w.analyzeArray(key, path, v)
	case *models.JSONObject:
		return w.analyzeObject(key, path, v)
	case models.JSONObject:
		return w.analyzeObject(key, path, &v)
	default:
		return nil, errors.NewPathError(path, errors.ErrUnsupportedValueKind, fmt.Sprintf("%T", v))
	}
}

// analyzeNumber classifies by the literal: no fraction and no exponent
// means int.
func analyzeNumber(num models.JSONNumber) *models.Primitive {
	if num.IsIntegral() {
		return models.NewPrimitive(models.Int)
	}
	return models.NewPrimitive(models.Float)
}

func (w *walker) analyzeArray(key, path string, arr models.JSONArray) (models.Code, error) {
	// Elements have no names of their own, so they inherit the array's key.
	elementTypes := make([]models.Code, 0, len(arr))
	for i, element := range arr {
		elementType, err := w.infer(key, path, element)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze element %d of array %q: %w", i, path, err)
		}
		elementTypes = append(elementTypes, elementType)
	}

	members, err := Collapse(elementTypes)
	if err != nil {
		return nil, errors.NewPathError(path, err, "ordering union members")
	}
	union := w.emit(&models.Union{Members: members})
	return w.emit(&models.List{Elem: union}), nil
}

func (w *walker) analyzeObject(key, path string, obj *models.JSONObject) (models.Code, error) {
	record := &models.Record{
		Name:   key,
		Fields: make([]models.Field, 0, obj.Len()),
	}
	for _, m := range obj.Members {
		fieldType, err := w.infer(m.Key, path+"."+m.Key, m.Value)
		if err != nil {
			return nil, err
		}
		record.Fields = append(record.Fields, models.Field{Key: m.Key, Type: fieldType})
	}
	return w.emit(record), nil
}

// Collapse removes structural duplicates from types, keeping the first
// instance of each, and sorts the rest by OrderKey. Ties keep first-seen
// order.
func Collapse(types []models.Code) ([]models.Code, error) {
	seen := make(map[string]struct{}, len(types))
	distinct := make([]models.Code, 0, len(types))
	for _, t := range types {
		fp := models.Fingerprint(t)
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		distinct = append(distinct, t)
	}
	if err := SortMembers(distinct); err != nil {
		return nil, err
	}
	return distinct, nil
}

// SortMembers stable-sorts union members by OrderKey.
func SortMembers(members []models.Code) error {
	keys := make(map[models.Code]int, len(members))
	for _, m := range members {
		k, err := OrderKey(m)
		if err != nil {
			return err
		}
		keys[m] = k
	}
	sort.SliceStable(members, func(i, j int) bool {
		return keys[members[i]] < keys[members[j]]
	})
	return nil
}

// OrderKey ranks a node for union ordering:
// int < float < str < bool < none < union < list < record.
func OrderKey(c models.Code) (int, error) {
	switch v := c.(type) {
	case *models.Primitive:
		if v.Type < models.Int || v.Type > models.None {
			return 0, fmt.Errorf("%w: primitive %s", errors.ErrUnsupportedTypeKind, v.Type)
		}
		return int(v.Type), nil
	case *models.Union:
		return unionRank, nil
	case *models.List:
		return listRank, nil
	case *models.Record:
		return recordRank, nil
	default:
		return 0, fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, c)
	}
}
