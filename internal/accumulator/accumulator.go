// Package accumulator combines the record shapes of several sample
// documents into one type tree.
//
// Records are correlated by key path: the dot-joined keys leading from the
// root to the record. Lists and unions do not add a path segment, so the
// elements of an array share the array's path.
package accumulator

import (
	"fmt"
	"log/slog"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
)

// KeyPath identifies a position in a document, e.g. "Response.items".
type KeyPath string

// Child returns the path of key below p.
func (p KeyPath) Child(key string) KeyPath {
	return KeyPath(string(p) + "." + key)
}

// Occurrence is one record found at a key path.
type Occurrence struct {
	Path   KeyPath
	Record *models.Record
}

// FindRecords lists every record reachable from code, depth first, parents
// before their children. root is the path of code itself.
func FindRecords(root KeyPath, code models.Code) ([]Occurrence, error) {
	var out []Occurrence
	if err := findRecords(root, code, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findRecords(path KeyPath, code models.Code, out *[]Occurrence) error {
	switch v := code.(type) {
	case *models.Primitive:
		return nil
	case *models.Record:
		*out = append(*out, Occurrence{Path: path, Record: v})
		for _, f := range v.Fields {
			if err := findRecords(path.Child(f.Key), f.Type, out); err != nil {
				return err
			}
		}
		return nil
	case *models.List:
		return findRecords(path, v.Elem, out)
	case *models.Union:
		for _, m := range v.Members {
			if err := findRecords(path, m, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.NewPathError(string(path), fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, code), "")
	}
}

type pathStats struct {
	shapes  []*models.Record
	present map[string]int
}

// Accumulator collects the records of several documents. It is not safe
// for concurrent use.
type Accumulator struct {
	rootName string
	roots    []models.Code
	order    []KeyPath
	stats    map[KeyPath]*pathStats
}

// New returns an empty Accumulator whose documents are rooted at rootName.
func New(rootName string) *Accumulator {
	if rootName == "" {
		rootName = analyzer.DefaultRootName
	}
	return &Accumulator{
		rootName: rootName,
		stats:    make(map[KeyPath]*pathStats),
	}
}

// RootName returns the name every document is rooted at.
func (a *Accumulator) RootName() string { return a.rootName }

// Documents returns the number of documents added.
func (a *Accumulator) Documents() int { return len(a.roots) }

// Add infers the type of value and records its shapes.
func (a *Accumulator) Add(value models.JSONValue) error {
	root, err := analyzer.Infer(a.rootName, value)
	if err != nil {
		return err
	}
	return a.AddCode(root)
}

// AddCode records the shapes of an already inferred tree.
func (a *Accumulator) AddCode(root models.Code) error {
	occurrences, err := FindRecords(KeyPath(a.rootName), root)
	if err != nil {
		return err
	}
	for _, occ := range occurrences {
		st, ok := a.stats[occ.Path]
		if !ok {
			st = &pathStats{present: make(map[string]int)}
			a.stats[occ.Path] = st
			a.order = append(a.order, occ.Path)
		}
		st.shapes = append(st.shapes, occ.Record)
		for _, f := range occ.Record.Fields {
			st.present[f.Key]++
		}
	}
	a.roots = append(a.roots, root)
	slog.Debug("accumulated document", "root", a.rootName, "records", len(occurrences), "paths", len(a.order))
	return nil
}

// Paths lists the key paths in the order they were first seen.
func (a *Accumulator) Paths() []KeyPath {
	return append([]KeyPath(nil), a.order...)
}

// Shapes returns the records collected at path.
func (a *Accumulator) Shapes(path KeyPath) []*models.Record {
	st, ok := a.stats[path]
	if !ok {
		return nil
	}
	return append([]*models.Record(nil), st.shapes...)
}

// Merge unifies every document into one tree. Records at the same path
// become one record whose fields are the union of the fields seen, in
// first-seen order, each typed as the union of its observed types.
func (a *Accumulator) Merge() (models.Code, error) {
	if len(a.roots) == 0 {
		return nil, fmt.Errorf("no documents to merge")
	}
	merged, err := normalize(a.roots[0])
	if err != nil {
		return nil, err
	}
	for _, root := range a.roots[1:] {
		next, err := normalize(root)
		if err != nil {
			return nil, err
		}
		merged, err = mergeTypes(merged, next)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// normalize folds the records of every union in c into one record, so a
// single document already has one record per path.
func normalize(c models.Code) (models.Code, error) {
	switch v := c.(type) {
	case *models.Record:
		out := &models.Record{Name: v.Name, Fields: make([]models.Field, len(v.Fields))}
		for i, f := range v.Fields {
			t, err := normalize(f.Type)
			if err != nil {
				return nil, err
			}
			out.Fields[i] = models.Field{Key: f.Key, Type: t}
		}
		return out, nil
	case *models.List:
		members, err := normalizeMembers(v.Elem)
		if err != nil {
			return nil, err
		}
		return &models.List{Elem: &models.Union{Members: members}}, nil
	case *models.Union:
		members, err := normalizeMembers(v)
		if err != nil {
			return nil, err
		}
		if len(members) == 1 {
			return members[0], nil
		}
		return &models.Union{Members: members}, nil
	case *models.Primitive:
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, c)
	}
}

func normalizeMembers(c models.Code) ([]models.Code, error) {
	var members []models.Code
	if u, ok := c.(*models.Union); ok {
		members = u.Members
	} else {
		members = []models.Code{c}
	}
	normalized := make([]models.Code, 0, len(members))
	for _, m := range members {
		n, err := normalize(m)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, n)
	}
	return mergeMembers(normalized)
}

// mergeTypes unifies two types found at the same path.
func mergeTypes(x, y models.Code) (models.Code, error) {
	switch a := x.(type) {
	case *models.Record:
		if b, ok := y.(*models.Record); ok {
			return mergeRecords(a, b)
		}
	case *models.List:
		if b, ok := y.(*models.List); ok {
			return mergeLists(a, b)
		}
	case *models.Primitive:
		if b, ok := y.(*models.Primitive); ok && a.Type == b.Type {
			return a, nil
		}
	}
	members, err := mergeMembers([]models.Code{x, y})
	if err != nil {
		return nil, err
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return &models.Union{Members: members}, nil
}

func mergeRecords(a, b *models.Record) (*models.Record, error) {
	out := &models.Record{Name: a.Name, Fields: make([]models.Field, 0, len(a.Fields))}
	out.Fields = append(out.Fields, a.Fields...)
	for _, f := range b.Fields {
		idx := -1
		for i := range out.Fields {
			if out.Fields[i].Key == f.Key {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Fields = append(out.Fields, f)
			continue
		}
		merged, err := mergeTypes(out.Fields[idx].Type, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		out.Fields[idx].Type = merged
	}
	return out, nil
}

func mergeLists(a, b *models.List) (*models.List, error) {
	members, err := mergeMembers([]models.Code{a.Elem, b.Elem})
	if err != nil {
		return nil, err
	}
	return &models.List{Elem: &models.Union{Members: members}}, nil
}

// mergeMembers flattens unions and folds all records into one record and
// all lists into one list, then dedups and orders the result like the
// analyzer orders union members.
func mergeMembers(types []models.Code) ([]models.Code, error) {
	var (
		flat   []models.Code
		record *models.Record
		list   *models.List
		err    error
	)
	var visit func(c models.Code) error
	visit = func(c models.Code) error {
		switch v := c.(type) {
		case *models.Union:
			for _, m := range v.Members {
				if err := visit(m); err != nil {
					return err
				}
			}
		case *models.Record:
			if record == nil {
				record = v
				return nil
			}
			record, err = mergeRecords(record, v)
			return err
		case *models.List:
			if list == nil {
				list = v
				return nil
			}
			list, err = mergeLists(list, v)
			return err
		case *models.Primitive:
			flat = append(flat, v)
		default:
			return fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, c)
		}
		return nil
	}
	for _, t := range types {
		if err := visit(t); err != nil {
			return nil, err
		}
	}
	if list != nil {
		flat = append(flat, list)
	}
	if record != nil {
		flat = append(flat, record)
	}
	return analyzer.Collapse(flat)
}
