// Package naming turns working record names into collision-free
// declaration names.
package naming

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/iancoleman/strcase"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mcncl/pytyper/internal/errors"
)

// DefaultProbeLimit bounds the numeric suffixes tried for one base name.
const DefaultProbeLimit = 10000

// fallbackName replaces names that normalize to nothing.
const fallbackName = "Record"

// Style selects the case transformation.
type Style string

const (
	// StyleTitle capitalises each underscore-delimited segment, lower-cases
	// the rest and concatenates: "some_KEY" -> "SomeKey".
	StyleTitle Style = "title"
	// StyleCamel uses strcase.ToCamel, which also splits on '-', '.', ' '
	// and keeps existing inner capitals: "someKey_id" -> "SomeKeyId".
	StyleCamel Style = "camel"
)

// ParseStyle validates a configured style name.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(s)) {
	case "", StyleTitle:
		return StyleTitle, nil
	case StyleCamel:
		return StyleCamel, nil
	default:
		return "", fmt.Errorf("unknown naming style %q (expected %q or %q)", s, StyleTitle, StyleCamel)
	}
}

// Normalizer converts working names into declaration base names.
type Normalizer struct {
	Style Style
	// Mappings overrides the base name for a working name. Mapped names
	// are used verbatim.
	Mappings map[string]string
	// Rules rewrite working names before casing. The first matching rule
	// applies.
	Rules []Rule
}

// Rule replaces matches of Pattern in a working name, expanding $1-style
// references in Replacement.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// Normalize returns the declaration base name for a working name.
func (n Normalizer) Normalize(name string) string {
	if mapped, ok := n.Mappings[name]; ok && mapped != "" {
		return mapped
	}
	for _, rule := range n.Rules {
		if rule.Pattern != nil && rule.Pattern.MatchString(name) {
			name = rule.Pattern.ReplaceAllString(name, rule.Replacement)
			break
		}
	}

	var converted string
	switch n.Style {
	case StyleCamel:
		converted = strcase.ToCamel(name)
	default:
		converted = titleCase(name)
	}
	return sanitize(converted)
}

func titleCase(name string) string {
	// cases.Caser is stateful, so each call gets its own.
	caser := cases.Title(language.Und)
	var b strings.Builder
	for _, segment := range strings.Split(name, "_") {
		b.WriteString(caser.String(segment))
	}
	return b.String()
}

// sanitize drops characters that cannot appear in an identifier.
func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return fallbackName
	}
	if unicode.IsDigit([]rune(out)[0]) {
		return "T" + out
	}
	return out
}

// Namer owns the set of taken names for one synthesis.
type Namer struct {
	taken map[string]struct{}
	limit int
}

// NewNamer seeds the taken set with reserved identifiers. A limit below 1
// means DefaultProbeLimit.
func NewNamer(reserved []string, limit int) *Namer {
	if limit < 1 {
		limit = DefaultProbeLimit
	}
	taken := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		taken[r] = struct{}{}
	}
	return &Namer{taken: taken, limit: limit}
}

// Taken reports whether name is reserved or already claimed.
func (n *Namer) Taken(name string) bool {
	_, ok := n.taken[name]
	return ok
}

// Claim finds the first free name among base, base2, base3, ... up to the
// probe limit and marks it taken.
func (n *Namer) Claim(base string) (string, error) {
	if !n.Taken(base) {
		n.taken[base] = struct{}{}
		return base, nil
	}
	for i := 2; i <= n.limit; i++ {
		candidate := base + strconv.Itoa(i)
		if !n.Taken(candidate) {
			slog.Debug("resolved name collision", "base", base, "name", candidate)
			n.taken[candidate] = struct{}{}
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free name for %q within %d candidates", errors.ErrNameSpaceExhausted, base, n.limit)
}

// RootNameFromPath derives a working root name from an input file name:
// the base name without its extension, with separators turned into
// underscores. Standard input ("-") and empty paths yield fallback.
func RootNameFromPath(path, fallback string) string {
	if path == "" || path == "-" {
		return fallback
	}
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	stem := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, base)
	if strings.Trim(stem, "_") == "" {
		return fallback
	}
	return stem
}
