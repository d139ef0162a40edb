package modgraph

import (
	"path/filepath"
	"strings"

	"github.com/matzehuels/legacypack/pkg/config"
)

// ImportKind is the syntax that introduced a dependency.
type ImportKind int

const (
	// ImportStatic is an import declaration.
	ImportStatic ImportKind = iota
	// ImportReexport is "export ... from" or "export * from".
	ImportReexport
	// ImportRequire is a require call with a string literal argument.
	ImportRequire
)

func (k ImportKind) String() string {
	switch k {
	case ImportStatic:
		return "import"
	case ImportReexport:
		return "export-from"
	case ImportRequire:
		return "require"
	}
	return "unknown"
}

// Import is one dependency of a module in source order. Exactly one of
// Module and External is set once the import is resolved.
type Import struct {
	Specifier string
	Kind      ImportKind
	Line      int

	// Module is the ID of the inlined module.
	Module string
	// External is the key of the external reference in Graph.Externals.
	External string
}

// Module is an inlined source file.
type Module struct {
	// ID is the project-relative path with forward slashes, e.g.
	// "./src/util.js".
	ID string
	// Path is the absolute file path.
	Path string
	// Source is the file content as read.
	Source string
	// Code is the downgraded source, empty until the downgrade step ran.
	Code string
	// ESM is set for modules written with import or export syntax.
	ESM bool
	// Imports lists the module's dependencies in source order.
	Imports []*Import
	// SkipDowngrade is set for files matching a transpile_exclude pattern.
	SkipDowngrade bool
}

// Text returns the downgraded code when present and the source otherwise.
func (m *Module) Text() string {
	if m.Code != "" {
		return m.Code
	}
	return m.Source
}

// JSON reports whether the module is a JSON document.
func (m *Module) JSON() bool { return strings.EqualFold(filepath.Ext(m.Path), ".json") }

// ImportOf returns the resolved import for a specifier, or nil.
func (m *Module) ImportOf(specifier string) *Import {
	for _, imp := range m.Imports {
		if imp.Specifier == specifier {
			return imp
		}
	}
	return nil
}

// ExternalKind records why a dependency is left to the host.
type ExternalKind int

const (
	// ExternalDeclared comes from the externals configuration.
	ExternalDeclared ExternalKind = iota
	// ExternalBuiltin is a Node built-in module.
	ExternalBuiltin
	// ExternalExcluded resolved to a file matching an exclude pattern.
	ExternalExcluded
)

func (k ExternalKind) String() string {
	switch k {
	case ExternalDeclared:
		return "declared"
	case ExternalBuiltin:
		return "builtin"
	case ExternalExcluded:
		return "excluded"
	}
	return "unknown"
}

// External is a dependency the host resolves at load time.
type External struct {
	// Key identifies the reference in the artifact: the bare specifier as
	// written, or "external:" and a path for path-like references.
	Key string
	config.External
	Kind ExternalKind
}

// moduleID turns an absolute path into a project-relative ID. Files outside
// the root keep a relative path with leading "../" segments.
func moduleID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}
