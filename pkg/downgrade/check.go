package downgrade

import (
	"strings"

	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
)

// check reports the first construct, in source order, that the target
// lacks and that no rewrite covers.
func check(prog *js.Program, t Target) error {
	var err error
	js.Inspect(prog, func(n js.Node) bool {
		if err != nil {
			return false
		}
		f, what := requires(n)
		if f != "" && !t.Supports(f) && !Transformable(f) {
			err = unsupported(n, f, what)
		}
		return err == nil
	})
	return err
}

// requires returns the feature node n depends on beyond ES5, or "" when it
// is plain ES5 or handled by a rewrite.
func requires(n js.Node) (Feature, string) {
	switch n := n.(type) {
	case *js.ClassDecl:
		return Classes, "class declaration"
	case *js.ClassLit:
		return Classes, "class expression"
	case *js.Super:
		return Classes, "super"
	case *js.Function:
		switch {
		case n.Async && n.Generator:
			return AsyncFunctions, "async generator"
		case n.Generator:
			return Generators, "generator function"
		case n.Async:
			return AsyncFunctions, "async function"
		}
	case *js.Yield:
		return Generators, "yield"
	case *js.Await:
		return AsyncFunctions, "await"
	case *js.Spread:
		return Spread, "spread element"
	case *js.Property:
		if n.Kind == js.PropSpread {
			return ObjectRestSpread, "object spread"
		}
		if n.Computed {
			return ComputedProperties, "computed property key"
		}
	case *js.ObjectPattern:
		if n.Rest != nil {
			return ObjectRestSpread, "object rest element"
		}
	case *js.Binary:
		switch n.Op {
		case "**":
			return ExponentOperator, "** operator"
		case "??":
			return NullishCoalescing, "?? operator"
		}
	case *js.Assign:
		switch n.Op {
		case "**=":
			return ExponentOperator, "**= operator"
		case "&&=", "||=", "??=":
			return LogicalAssignment, n.Op + " operator"
		}
	case *js.Template:
		if n.Tag != nil {
			return TaggedTemplates, "tagged template"
		}
	case *js.Member:
		if n.Optional {
			return OptionalChaining, "optional chaining"
		}
	case *js.Call:
		if n.Optional {
			return OptionalChaining, "optional call"
		}
		if id, ok := n.Callee.(*js.Ident); ok && id.Name == "import" {
			return DynamicImport, "import()"
		}
	case *js.MetaProperty:
		if n.Meta == "new" {
			return NewTarget, "new.target"
		}
		return ImportMeta, "import.meta"
	case *js.Literal:
		switch n.Kind {
		case js.LitNumber:
			if strings.HasSuffix(n.Raw, "n") {
				return BigInt, "BigInt literal"
			}
		case js.LitRegexp:
			flags := n.Raw[strings.LastIndexByte(n.Raw, '/')+1:]
			if strings.ContainsAny(flags, "uy") {
				return RegexpFlags, "regular expression flag"
			}
			if strings.ContainsRune(flags, 's') {
				return RegexpDotAll, "regular expression flag"
			}
		}
	}
	return "", ""
}

func unsupported(n js.Node, f Feature, what string) *errors.UnsupportedSyntaxError {
	loc := n.Pos()
	return &errors.UnsupportedSyntaxError{
		Line:    loc.Line,
		Column:  loc.Col,
		Feature: string(f),
		Reason:  what,
	}
}
