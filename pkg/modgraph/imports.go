package modgraph

import (
	"github.com/matzehuels/legacypack/pkg/js"
)

// found is a dependency as it appears in the source, before resolution.
type found struct {
	specifier string
	kind      ImportKind
	line      int
}

// discover collects the static dependencies of prog in source order, one
// entry per distinct specifier, and the lines of require calls whose
// argument is not a string literal.
func discover(prog *js.Program) (deps []found, dynamic []int) {
	info := js.Analyze(prog)
	seen := make(map[string]bool)
	add := func(spec string, kind ImportKind, loc js.Loc) {
		if seen[spec] {
			return
		}
		seen[spec] = true
		deps = append(deps, found{specifier: spec, kind: kind, line: loc.Line})
	}

	js.Inspect(prog, func(n js.Node) bool {
		switch n := n.(type) {
		case *js.Import:
			add(js.StringValue(n.Source.Raw), ImportStatic, n.Loc)
		case *js.ExportNamed:
			if n.Source != nil {
				add(js.StringValue(n.Source.Raw), ImportReexport, n.Loc)
			}
		case *js.ExportAll:
			add(js.StringValue(n.Source.Raw), ImportReexport, n.Loc)
		case *js.Call:
			if !IsRequire(n, info) {
				return true
			}
			if spec, ok := RequireSpecifier(n, info); ok {
				add(spec, ImportRequire, n.Loc)
			} else {
				dynamic = append(dynamic, n.Loc.Line)
			}
		}
		return true
	})
	return deps, dynamic
}

// IsRequire reports whether call invokes the free variable require.
func IsRequire(call *js.Call, info *js.Info) bool {
	id, ok := call.Callee.(*js.Ident)
	return ok && id.Name == "require" && info.Bindings[id] == nil
}

// RequireSpecifier returns the module name of require("x"). Calls with a
// computed argument, extra arguments or a locally declared require are not
// static dependencies.
func RequireSpecifier(call *js.Call, info *js.Info) (string, bool) {
	if !IsRequire(call, info) || len(call.Args) != 1 {
		return "", false
	}
	switch arg := call.Args[0].(type) {
	case *js.Literal:
		if arg.Kind == js.LitString {
			return js.StringValue(arg.Raw), true
		}
	case *js.Template:
		if arg.Tag == nil && len(arg.Exprs) == 0 {
			return js.TemplateValue(arg.Quasis[0]), true
		}
	}
	return "", false
}
