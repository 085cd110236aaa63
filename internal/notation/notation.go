// Package notation defines the concrete syntax declarations are rendered in.
package notation

import (
	"fmt"
	"strings"

	"github.com/mcncl/pytyper/internal/models"
)

// Notation fixes the spelling of every construct the generator emits.
type Notation interface {
	// Name identifies the notation in configuration.
	Name() string
	// Primitive returns the literal name of a scalar type.
	Primitive(t models.PrimitiveType) string
	// List wraps a rendered element type.
	List(elem string) string
	// Union joins two or more rendered members.
	Union(members []string) string
	// Any is the wildcard used for empty unions.
	Any() string
	// Record renders a record body given its name and rendered fields.
	Record(name string, fields []RenderedField) string
	// Declaration binds a name to a rendered type.
	Declaration(name, body string) string
	// Reserved lists identifiers generated names must not shadow.
	Reserved() []string
	// Symbols returns the names to import for a node, if any.
	Symbols(c models.Code) []string
}

// RenderedField is a record field whose type is already rendered.
type RenderedField struct {
	Key  string
	Type string
}

// Names of the shipped notations.
const (
	Typing = "typing"
	PEP604 = "pep604"
)

// ByName returns the notation registered under name.
func ByName(name string) (Notation, error) {
	switch strings.ToLower(name) {
	case "", Typing:
		return TypingNotation{}, nil
	case PEP604:
		return PEP604Notation{}, nil
	default:
		return nil, fmt.Errorf("unknown notation %q (expected %q or %q)", name, Typing, PEP604)
	}
}

// Available lists the notation names.
func Available() []string {
	return []string{Typing, PEP604}
}

// pythonReserved holds keywords, builtin names and typing helpers that a
// TypedDict variable must not rebind.
var pythonReserved = []string{
	// keywords
	"False", "None", "True", "and", "as", "assert", "async", "await", "break",
	"class", "continue", "def", "del", "elif", "else", "except", "finally",
	"for", "from", "global", "if", "import", "in", "is", "lambda", "nonlocal",
	"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
	// builtins
	"int", "float", "str", "bool", "bytes", "list", "dict", "set", "frozenset",
	"tuple", "object", "type", "id", "len",
	// typing
	"Any", "Dict", "FrozenSet", "Iterable", "List", "Literal", "Mapping",
	"NotRequired", "Optional", "Required", "Sequence", "Set", "Tuple",
	"TypedDict", "Union",
}

// TypingNotation renders with the typing module generics.
type TypingNotation struct{}

func (TypingNotation) Name() string { return Typing }

func (TypingNotation) Primitive(t models.PrimitiveType) string {
	return pythonPrimitive(t)
}

func (TypingNotation) List(elem string) string { return "List[" + elem + "]" }

func (TypingNotation) Union(members []string) string {
	return "Union[" + strings.Join(members, ", ") + "]"
}

func (TypingNotation) Any() string { return "Any" }

func (TypingNotation) Record(name string, fields []RenderedField) string {
	return typedDict(name, fields)
}

func (TypingNotation) Declaration(name, body string) string { return name + " = " + body }

func (TypingNotation) Reserved() []string { return pythonReserved }

func (TypingNotation) Symbols(c models.Code) []string {
	switch v := c.(type) {
	case *models.List:
		return []string{"List"}
	case *models.Union:
		switch len(v.Members) {
		case 0:
			return []string{"Any"}
		case 1:
			return nil
		default:
			return []string{"Union"}
		}
	case *models.Record:
		return []string{"TypedDict"}
	}
	return nil
}

// PEP604Notation renders with builtin generics and the | operator.
type PEP604Notation struct{}

func (PEP604Notation) Name() string { return PEP604 }

func (PEP604Notation) Primitive(t models.PrimitiveType) string {
	return pythonPrimitive(t)
}

func (PEP604Notation) List(elem string) string { return "list[" + elem + "]" }

func (PEP604Notation) Union(members []string) string {
	return strings.Join(members, " | ")
}

func (PEP604Notation) Any() string { return "Any" }

func (PEP604Notation) Record(name string, fields []RenderedField) string {
	return typedDict(name, fields)
}

func (PEP604Notation) Declaration(name, body string) string { return name + " = " + body }

func (PEP604Notation) Reserved() []string { return pythonReserved }

func (PEP604Notation) Symbols(c models.Code) []string {
	switch v := c.(type) {
	case *models.Union:
		if len(v.Members) == 0 {
			return []string{"Any"}
		}
	case *models.Record:
		return []string{"TypedDict"}
	}
	return nil
}

func pythonPrimitive(t models.PrimitiveType) string {
	switch t {
	case models.Int:
		return "int"
	case models.Float:
		return "float"
	case models.Str:
		return "str"
	case models.Bool:
		return "bool"
	case models.None:
		return "None"
	default:
		return t.String()
	}
}

// typedDict uses the functional TypedDict form, which accepts keys that
// are not valid identifiers.
func typedDict(name string, fields []RenderedField) string {
	if len(fields) == 0 {
		return fmt.Sprintf("TypedDict(%s, {})", QuoteString(name))
	}
	pairs := make([]string, len(fields))
	for i, f := range fields {
		pairs[i] = QuoteString(f.Key) + ": " + f.Type
	}
	return fmt.Sprintf("TypedDict(%s, { %s })", QuoteString(name), strings.Join(pairs, ", "))
}

// QuoteString returns a double-quoted Python string literal.
func QuoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
