package generator

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/naming"
	"github.com/mcncl/pytyper/internal/notation"
)

// Assignments maps a record node to the name it was declared under.
// Keys are node pointers, never structural values.
type Assignments map[models.Code]string

// Declaration is one top-level binding of the output.
type Declaration struct {
	// Name is the declared identifier.
	Name string
	// Record is the hoisted node. It is nil for the alias emitted when the
	// root is not a record.
	Record *models.Record
	// Fields holds the record fields as rendered at declaration time.
	Fields []notation.RenderedField
	// Body is the right-hand side.
	Body string
	// Text is the full declaration line.
	Text string
}

// Synthesis is the structured outcome of one synthesis call.
type Synthesis struct {
	RootName     string
	Root         models.Code
	Nodes        []models.Code
	Assignments  Assignments
	Declarations []Declaration
	Notation     notation.Notation
}

// String joins the declarations with newlines.
func (s *Synthesis) String() string {
	lines := make([]string, len(s.Declarations))
	for i, d := range s.Declarations {
		lines[i] = d.Text
	}
	return strings.Join(lines, "\n")
}

// RootDeclaration returns the last declaration, which always belongs to
// the root.
func (s *Synthesis) RootDeclaration() (Declaration, bool) {
	if len(s.Declarations) == 0 {
		return Declaration{}, false
	}
	return s.Declarations[len(s.Declarations)-1], true
}

// Generator turns typed-code trees into declarations.
type Generator struct {
	notation   notation.Notation
	normalizer naming.Normalizer
	reserved   []string
	probeLimit int
}

// Option configures a Generator.
type Option func(*Generator)

// WithNotation selects the output notation.
func WithNotation(n notation.Notation) Option {
	return func(g *Generator) {
		if n != nil {
			g.notation = n
		}
	}
}

// WithNormalizer sets how working names become declaration names.
func WithNormalizer(n naming.Normalizer) Option {
	return func(g *Generator) { g.normalizer = n }
}

// WithReserved adds names that must not be declared, on top of the
// notation's own reserved table.
func WithReserved(names ...string) Option {
	return func(g *Generator) { g.reserved = append(g.reserved, names...) }
}

// WithProbeLimit bounds the numeric suffixes tried per name.
func WithProbeLimit(limit int) Option {
	return func(g *Generator) { g.probeLimit = limit }
}

// NewGenerator creates a new Generator instance
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		notation:   notation.TypingNotation{},
		normalizer: naming.Normalizer{Style: naming.StyleTitle},
		probeLimit: naming.DefaultProbeLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Notation returns the notation the generator renders with.
func (g *Generator) Notation() notation.Notation {
	return g.notation
}

// Synthesize infers the type of value and returns its declarations as
// newline-joined text, the root declaration last.
func (g *Generator) Synthesize(rootName string, value models.JSONValue) (string, error) {
	s, err := g.Declarations(rootName, value)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// Declarations infers the type of value and hoists every record into its
// own declaration.
func (g *Generator) Declarations(rootName string, value models.JSONValue) (*Synthesis, error) {
	if rootName == "" {
		rootName = analyzer.DefaultRootName
	}
	nodes, err := analyzer.InferAll(rootName, value)
	if err != nil {
		return nil, err
	}
	return g.FromNodes(rootName, nodes)
}

// FromCode synthesizes declarations for a tree that was built elsewhere,
// such as one converted from a JSON Schema.
func (g *Generator) FromCode(rootName string, root models.Code) (*Synthesis, error) {
	if rootName == "" {
		rootName = analyzer.DefaultRootName
	}
	return g.FromNodes(rootName, CollectNodes(root))
}

// CollectNodes lists every node reachable from root once, children before
// parents.
func CollectNodes(root models.Code) []models.Code {
	seen := make(map[models.Code]struct{})
	var nodes []models.Code
	models.Walk(root, func(c models.Code) {
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		nodes = append(nodes, c)
	})
	return nodes
}

// FromNodes runs the hoisting pass over nodes, which must be in
// dependency order with the root last.
func (g *Generator) FromNodes(rootName string, nodes []models.Code) (*Synthesis, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: nothing to synthesize", errors.ErrUnsupportedTypeKind)
	}

	reserved := append(append([]string{}, g.notation.Reserved()...), g.reserved...)
	namer := naming.NewNamer(reserved, g.probeLimit)
	s := &Synthesis{
		RootName:    rootName,
		Root:        nodes[len(nodes)-1],
		Nodes:       nodes,
		Assignments: make(Assignments),
		Notation:    g.notation,
	}

	for _, node := range nodes {
		record, ok := node.(*models.Record)
		if !ok {
			continue
		}
		name, err := namer.Claim(g.normalizer.Normalize(record.Name))
		if err != nil {
			return nil, errors.NewPathError(record.Name, err, "naming record")
		}
		fields, err := g.renderFields(record, s.Assignments)
		if err != nil {
			return nil, err
		}
		body := g.notation.Record(name, fields)
		s.Declarations = append(s.Declarations, Declaration{
			Name:   name,
			Record: record,
			Fields: fields,
			Body:   body,
			Text:   g.notation.Declaration(name, body),
		})
		s.Assignments[record] = name
		slog.Debug("declared record", "working_name", record.Name, "name", name, "fields", len(fields))
	}

	if _, isRecord := s.Root.(*models.Record); !isRecord {
		name, err := namer.Claim(g.normalizer.Normalize(rootName))
		if err != nil {
			return nil, errors.NewPathError(rootName, err, "naming root alias")
		}
		body, err := g.Render(s.Root, s.Assignments)
		if err != nil {
			return nil, err
		}
		s.Declarations = append(s.Declarations, Declaration{
			Name: name,
			Body: body,
			Text: g.notation.Declaration(name, body),
		})
	}
	return s, nil
}

func (g *Generator) renderFields(record *models.Record, assignments Assignments) ([]notation.RenderedField, error) {
	fields := make([]notation.RenderedField, len(record.Fields))
	for i, f := range record.Fields {
		rendered, err := g.Render(f.Type, assignments)
		if err != nil {
			return nil, fmt.Errorf("field %q of %q: %w", f.Key, record.Name, err)
		}
		fields[i] = notation.RenderedField{Key: f.Key, Type: rendered}
	}
	return fields, nil
}

// Render spells out c. Nodes present in assignments render as their
// declared name. A record that was never declared renders inline under
// its working name, which is only useful for previews.
func (g *Generator) Render(c models.Code, assignments Assignments) (string, error) {
	return Render(g.notation, c, assignments)
}

// Render spells out c in notation n.
func Render(n notation.Notation, c models.Code, assignments Assignments) (string, error) {
	if name, ok := assignments[c]; ok {
		return name, nil
	}
	switch v := c.(type) {
	case *models.Primitive:
		if v.Type < models.Int || v.Type > models.None {
			return "", fmt.Errorf("%w: primitive %s", errors.ErrUnsupportedTypeKind, v.Type)
		}
		return n.Primitive(v.Type), nil
	case *models.List:
		inner, err := Render(n, v.Elem, assignments)
		if err != nil {
			return "", err
		}
		return n.List(inner), nil
	case *models.Union:
		switch len(v.Members) {
		case 0:
			return n.Any(), nil
		case 1:
			return Render(n, v.Members[0], assignments)
		}
		members := make([]string, len(v.Members))
		for i, m := range v.Members {
			rendered, err := Render(n, m, assignments)
			if err != nil {
				return "", err
			}
			members[i] = rendered
		}
		return n.Union(members), nil
	case *models.Record:
		fields := make([]notation.RenderedField, len(v.Fields))
		for i, f := range v.Fields {
			rendered, err := Render(n, f.Type, assignments)
			if err != nil {
				return "", err
			}
			fields[i] = notation.RenderedField{Key: f.Key, Type: rendered}
		}
		return n.Record(v.Name, fields), nil
	default:
		return "", fmt.Errorf("%w: %T", errors.ErrUnsupportedTypeKind, c)
	}
}
