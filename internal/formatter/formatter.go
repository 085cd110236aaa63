package formatter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// DefaultMaxLineLength matches black's default.
const DefaultMaxLineLength = 88

const indent = "    "

var (
	importRegex      = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(.+)$`)
	declarationRegex = regexp.MustCompile(`^([^\s=]+) = TypedDict\(("(?:[^"\\]|\\.)*"), \{(.*)\}\)$`)
)

// Formatter lays out generated Python modules.
type Formatter struct {
	MaxLineLength int
}

// NewFormatter creates a new Formatter instance. A non-positive length
// means DefaultMaxLineLength.
func NewFormatter(maxLineLength int) *Formatter {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Formatter{MaxLineLength: maxLineLength}
}

// Format merges and sorts the import lines of code and splits TypedDict
// declarations that exceed the line length into one field per line.
func (f *Formatter) Format(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", nil
	}

	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	lines = f.formatImports(lines)

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, " \t")
		if len(line) <= f.MaxLineLength {
			out = append(out, line)
			continue
		}
		wrapped, ok, err := f.wrapDeclaration(line)
		if err != nil {
			return "", fmt.Errorf("failed to format line %d: %w", i+1, err)
		}
		if !ok {
			out = append(out, line)
			continue
		}
		out = append(out, wrapped...)
	}
	return strings.Join(out, "\n") + "\n", nil
}

// formatImports merges the leading "from x import ..." lines per module and
// sorts both modules and names. Everything after the first non-import,
// non-comment, non-blank line is left alone.
func (f *Formatter) formatImports(lines []string) []string {
	start, end := -1, -1
	names := make(map[string]map[string]struct{})
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			if start >= 0 && end < 0 {
				end = i
			}
			continue
		}
		m := importRegex.FindStringSubmatch(trimmed)
		if m == nil {
			if start >= 0 && end < 0 {
				end = i
			}
			break
		}
		if end >= 0 {
			// A second import block; leave the layout as it is.
			return lines
		}
		if start < 0 {
			start = i
		}
		if names[m[1]] == nil {
			names[m[1]] = make(map[string]struct{})
		}
		for _, name := range strings.Split(strings.Trim(m[2], "()"), ",") {
			if name = strings.TrimSpace(name); name != "" {
				names[m[1]][name] = struct{}{}
			}
		}
	}
	if start < 0 {
		return lines
	}
	if end < 0 {
		end = len(lines)
	}

	modules := make([]string, 0, len(names))
	for module := range names {
		modules = append(modules, module)
	}
	sort.Strings(modules)

	block := make([]string, 0, len(modules))
	for _, module := range modules {
		list := make([]string, 0, len(names[module]))
		for name := range names[module] {
			list = append(list, name)
		}
		sort.Strings(list)
		block = append(block, fmt.Sprintf("from %s import %s", module, strings.Join(list, ", ")))
	}

	result := make([]string, 0, len(lines))
	result = append(result, lines[:start]...)
	result = append(result, block...)
	result = append(result, lines[end:]...)
	return result
}

// wrapDeclaration explodes a TypedDict declaration the way black lays out
// a call whose arguments do not fit:
//
//	Name = TypedDict(
//	    "Name",
//	    {
//	        "key": type,
//	    },
//	)
func (f *Formatter) wrapDeclaration(line string) ([]string, bool, error) {
	m := declarationRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, false, nil
	}
	name, title, body := m[1], m[2], strings.TrimSpace(m[3])
	if body == "" {
		return nil, false, nil
	}

	fields, err := splitTopLevel(body)
	if err != nil {
		return nil, false, err
	}

	wrapped := []string{
		name + " = TypedDict(",
		indent + title + ",",
		indent + "{",
	}
	for _, field := range fields {
		wrapped = append(wrapped, indent+indent+field+",")
	}
	wrapped = append(wrapped, indent+"},", ")")
	return wrapped, true, nil
}

// splitTopLevel splits s on commas that are outside brackets and string
// literals.
func splitTopLevel(s string) ([]string, error) {
	var (
		parts    []string
		depth    int
		inString bool
		escaped  bool
		start    int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if inString {
		return nil, fmt.Errorf("unterminated string literal")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		parts = append(parts, last)
	}
	return parts, nil
}
