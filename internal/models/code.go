package models

import (
	"sort"
	"strconv"
	"strings"
)

// CodeKind identifies the variant of a typed-code node.
type CodeKind int

const (
	KindPrimitive CodeKind = iota
	KindUnion
	KindList
	KindRecord
)

func (k CodeKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindUnion:
		return "union"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Code is a node of the inferred type tree. Nodes are always handled
// through pointers; the pointer is the node's identity.
type Code interface {
	Kind() CodeKind
}

// PrimitiveType enumerates the scalar kinds.
type PrimitiveType int

const (
	Int PrimitiveType = iota
	Float
	Str
	Bool
	None
)

func (p PrimitiveType) String() string {
	switch p {
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	case Bool:
		return "bool"
	case None:
		return "none"
	default:
		return "primitive(" + strconv.Itoa(int(p)) + ")"
	}
}

// Primitive is a scalar type.
type Primitive struct {
	Type PrimitiveType
}

// List is a homogeneous sequence. The analyzer always stores a *Union as
// the element type.
type List struct {
	Elem Code
}

// Union is "one of" its members. Member order matters for rendering only.
type Union struct {
	Members []Code
}

// Field is a single key of a Record.
type Field struct {
	Key  string
	Type Code
}

// Record is a keyed structure. Name is the working name: the key under
// which the record was found.
type Record struct {
	Name   string
	Fields []Field
}

func (*Primitive) Kind() CodeKind { return KindPrimitive }
func (*List) Kind() CodeKind      { return KindList }
func (*Union) Kind() CodeKind     { return KindUnion }
func (*Record) Kind() CodeKind    { return KindRecord }

// NewPrimitive returns a fresh primitive node.
func NewPrimitive(t PrimitiveType) *Primitive { return &Primitive{Type: t} }

// Field returns the type stored under key.
func (r *Record) Field(key string) (Code, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f.Type, true
		}
	}
	return nil, false
}

// Equal reports structural equality. Unions compare as sets, records by
// name and the full ordered field list.
func Equal(a, b Code) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && x.Type == y.Type
	case *List:
		y, ok := b.(*List)
		return ok && Equal(x.Elem, y.Elem)
	case *Union:
		y, ok := b.(*Union)
		if !ok {
			return false
		}
		return unionContains(x, y) && unionContains(y, x)
	case *Record:
		y, ok := b.(*Record)
		if !ok || x.Name != y.Name || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if x.Fields[i].Key != y.Fields[i].Key || !Equal(x.Fields[i].Type, y.Fields[i].Type) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func unionContains(outer, inner *Union) bool {
	for _, m := range inner.Members {
		found := false
		for _, o := range outer.Members {
			if Equal(m, o) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Fingerprint returns a canonical string for c. Two nodes have the same
// fingerprint iff Equal reports them equal, so it can key a dedup set.
func Fingerprint(c Code) string {
	var b strings.Builder
	writeFingerprint(&b, c)
	return b.String()
}

func writeFingerprint(b *strings.Builder, c Code) {
	switch v := c.(type) {
	case nil:
		b.WriteString("nil")
	case *Primitive:
		b.WriteString(v.Type.String())
	case *List:
		b.WriteString("list(")
		writeFingerprint(b, v.Elem)
		b.WriteByte(')')
	case *Union:
		// Members are distinct, so the sorted multiset is the set.
		parts := make([]string, 0, len(v.Members))
		seen := make(map[string]struct{}, len(v.Members))
		for _, m := range v.Members {
			fp := Fingerprint(m)
			if _, dup := seen[fp]; dup {
				continue
			}
			seen[fp] = struct{}{}
			parts = append(parts, fp)
		}
		sort.Strings(parts)
		b.WriteString("union(")
		b.WriteString(strings.Join(parts, ","))
		b.WriteByte(')')
	case *Record:
		b.WriteString("record(")
		b.WriteString(strconv.Quote(v.Name))
		for _, f := range v.Fields {
			b.WriteByte(',')
			b.WriteString(strconv.Quote(f.Key))
			b.WriteByte(':')
			writeFingerprint(b, f.Type)
		}
		b.WriteByte(')')
	default:
		b.WriteString("unknown(")
		b.WriteString(c.Kind().String())
		b.WriteByte(')')
	}
}

// Walk calls fn for c and every node reachable from it, children first.
func Walk(c Code, fn func(Code)) {
	switch v := c.(type) {
	case *List:
		Walk(v.Elem, fn)
	case *Union:
		for _, m := range v.Members {
			Walk(m, fn)
		}
	case *Record:
		for _, f := range v.Fields {
			Walk(f.Type, fn)
		}
	}
	if c != nil {
		fn(c)
	}
}
