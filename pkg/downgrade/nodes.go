package downgrade

import (
	"strconv"
	"strings"

	"github.com/matzehuels/legacypack/pkg/js"
)

// Constructors for the nodes the rewrites synthesize. Every identifier is a
// fresh node so that later renames never alias two positions.

func ident(name string) *js.Ident { return &js.Ident{Name: name} }

func num(i int) *js.Literal {
	return &js.Literal{Kind: js.LitNumber, Raw: strconv.Itoa(i)}
}

func str(s string) *js.Literal {
	return &js.Literal{Kind: js.LitString, Raw: js.Quote(s)}
}

func voidZero() js.Expr { return &js.Unary{Op: "void", X: num(0)} }

// member builds x.name, switching to x["name"] for reserved words, which
// ES3 engines reject after a dot.
func member(x js.Expr, name string) *js.Member {
	if js.IsReserved(name) {
		return &js.Member{X: ref(x), Prop: str(name), Computed: true}
	}
	return &js.Member{X: ref(x), Prop: ident(name)}
}

func index(x, i js.Expr) *js.Member {
	return &js.Member{X: ref(x), Prop: i, Computed: true}
}

func call(callee js.Expr, args ...js.Expr) *js.Call {
	return &js.Call{Callee: callee, Args: args}
}

func assign(target js.Pattern, value js.Expr) *js.Assign {
	return &js.Assign{Op: "=", Target: target, Value: value}
}

// ref returns a copy of identifier x so that the same name can appear in
// several positions; other expressions are returned unchanged.
func ref(x js.Expr) js.Expr {
	if id, ok := x.(*js.Ident); ok {
		return &js.Ident{Loc: id.Loc, Name: id.Name}
	}
	return x
}

// seq joins expressions with the comma operator.
func seq(list []js.Expr) js.Expr {
	switch len(list) {
	case 0:
		return voidZero()
	case 1:
		return list[0]
	}
	return &js.Seq{Loc: list[0].Pos(), List: list}
}

// slice builds Array.prototype.slice.call(x, from).
func slice(x js.Expr, from int) js.Expr {
	fn := member(member(member(ident("Array"), "prototype"), "slice"), "call")
	if from == 0 {
		return call(fn, ref(x))
	}
	return call(fn, ref(x), num(from))
}

// defaulted builds v === void 0 ? def : v.
func defaulted(v, def js.Expr) js.Expr {
	return &js.Cond{
		Test: &js.Binary{Op: "===", X: ref(v), Y: voidZero()},
		Then: def,
		Else: ref(v),
	}
}

func varDecl(kind string, decls ...*js.Declarator) *js.VarDecl {
	return &js.VarDecl{Kind: kind, List: decls}
}

func declarator(name string, init js.Expr) *js.Declarator {
	return &js.Declarator{Target: ident(name), Init: init}
}

// binds reports whether pattern p declares or assigns name.
func binds(p js.Pattern, name string) bool {
	for _, id := range js.PatternIdents(p) {
		if id.Name == name {
			return true
		}
	}
	return false
}

func isDestructuring(p js.Node) bool {
	switch p.(type) {
	case *js.ArrayPattern, *js.ObjectPattern:
		return true
	}
	return false
}

func isLoop(s js.Stmt) bool {
	switch s.(type) {
	case *js.For, *js.ForIn, *js.While, *js.DoWhile:
		return true
	}
	return false
}

// insertPrologue places extra after the directive prologue of list.
func insertPrologue(list, extra []js.Stmt) []js.Stmt {
	if len(extra) == 0 {
		return list
	}
	n := 0
	for n < len(list) && isDirective(list[n]) {
		n++
	}
	out := make([]js.Stmt, 0, len(list)+len(extra))
	out = append(out, list[:n]...)
	out = append(out, extra...)
	return append(out, list[n:]...)
}

func isDirective(s js.Stmt) bool {
	es, ok := s.(*js.ExprStmt)
	if !ok {
		return false
	}
	lit, ok := es.X.(*js.Literal)
	return ok && lit.Kind == js.LitString
}

// lexicalNames returns the let, const and class names declared directly in
// list.
func lexicalNames(list []js.Stmt) map[string]bool {
	names := make(map[string]bool)
	for _, s := range list {
		switch s := s.(type) {
		case *js.VarDecl:
			if s.Kind == "var" {
				continue
			}
			for _, d := range s.List {
				for _, id := range js.PatternIdents(d.Target) {
					names[id.Name] = true
				}
			}
		case *js.ClassDecl:
			if s.Class.Name != nil {
				names[s.Class.Name.Name] = true
			}
		}
	}
	return names
}

// prependBody puts head in front of a loop body. The body keeps its own
// block when one of its declarations would collide with the head.
func prependBody(body js.Stmt, head js.Stmt) js.Stmt {
	switch b := body.(type) {
	case *js.Empty:
		return &js.Block{Loc: b.Loc, List: []js.Stmt{head}}
	case *js.Block:
		declared := lexicalNames(b.List)
		clash := false
		for name := range lexicalNames([]js.Stmt{head}) {
			if declared[name] {
				clash = true
			}
		}
		if !clash {
			b.List = append([]js.Stmt{head}, b.List...)
			return b
		}
	}
	return &js.Block{Loc: body.Pos(), List: []js.Stmt{head, body}}
}

// namer hands out identifiers that occur nowhere in the module.
type namer struct {
	used map[string]bool
}

func newNamer(used map[string]bool) *namer {
	n := &namer{used: make(map[string]bool, len(used))}
	for k := range used {
		n.used[k] = true
	}
	return n
}

// fresh returns "_base", "_base2", "_base3", ... whichever is free first.
func (n *namer) fresh(base string) string {
	base = strings.TrimLeft(base, "_")
	if base == "" {
		base = "ref"
	}
	name := "_" + base
	for i := 2; n.used[name]; i++ {
		name = "_" + base + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}
