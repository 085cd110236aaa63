package generator

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Modules TypedDict can be imported from.
const (
	TypingModule           = "typing"
	TypingExtensionsModule = "typing_extensions"
)

// ModuleOptions controls the Python module written around declarations.
type ModuleOptions struct {
	// Header is written as leading comment lines.
	Header string
	// EmitImports adds the import lines the declarations need.
	EmitImports bool
	// TypedDictModule is where TypedDict is imported from. Empty means
	// typing.
	TypedDictModule string
}

// Imports returns the names each module must provide for s, keyed by
// module, names sorted.
func Imports(s *Synthesis, typedDictModule string) map[string][]string {
	if typedDictModule == "" {
		typedDictModule = TypingModule
	}
	needed := make(map[string]map[string]struct{})
	add := func(module, name string) {
		if needed[module] == nil {
			needed[module] = make(map[string]struct{})
		}
		needed[module][name] = struct{}{}
	}

	for _, node := range s.Nodes {
		for _, symbol := range s.Notation.Symbols(node) {
			if symbol == "TypedDict" {
				add(typedDictModule, symbol)
				continue
			}
			add(TypingModule, symbol)
		}
	}

	imports := make(map[string][]string, len(needed))
	for module, names := range needed {
		list := make([]string, 0, len(names))
		for name := range names {
			list = append(list, name)
		}
		sort.Strings(list)
		imports[module] = list
	}
	return imports
}

// WriteModule renders s as a complete Python module.
func WriteModule(s *Synthesis, opts ModuleOptions) string {
	var buf bytes.Buffer

	if header := strings.TrimSpace(opts.Header); header != "" {
		for _, line := range strings.Split(header, "\n") {
			line = strings.TrimRight(line, " \t")
			if line == "" {
				buf.WriteString("#\n")
				continue
			}
			if !strings.HasPrefix(line, "#") {
				line = "# " + line
			}
			buf.WriteString(line + "\n")
		}
		buf.WriteString("\n")
	}

	if opts.EmitImports {
		imports := Imports(s, opts.TypedDictModule)
		modules := make([]string, 0, len(imports))
		for module := range imports {
			modules = append(modules, module)
		}
		sort.Strings(modules)
		for _, module := range modules {
			buf.WriteString(fmt.Sprintf("from %s import %s\n", module, strings.Join(imports[module], ", ")))
		}
		if len(modules) > 0 {
			buf.WriteString("\n\n")
		}
	}

	for _, d := range s.Declarations {
		buf.WriteString(d.Text)
		buf.WriteString("\n")
	}
	return buf.String()
}
