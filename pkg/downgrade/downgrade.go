// Package downgrade rewrites modern JavaScript into the legacy dialect of
// a target engine.
//
// The rewrites cover arrow functions, let/const (including per-iteration
// bindings captured by closures in loops), destructuring, for-of over
// array-likes, template literals, default and rest parameters, binary and
// octal literals, and optional catch bindings. Constructs without a
// rewrite, such as classes or generators, fail with an
// [errors.UnsupportedSyntaxError] when the target lacks them.
//
// Downgrading is deterministic and idempotent: applying it to its own
// output for the same target yields the same text.
package downgrade

import (
	stderrors "errors"

	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
)

// Downgrade parses src, rewrites it for t and prints the result.
func Downgrade(src string, t Target) (string, error) {
	return DowngradeFile("", src, t)
}

// DowngradeFile is Downgrade with path attached to the reported errors.
func DowngradeFile(path, src string, t Target) (string, error) {
	prog, err := js.Parse(src)
	if err != nil {
		return "", SyntaxError(path, err)
	}
	if err := DowngradeProgram(prog, t); err != nil {
		return "", WithPath(err, path)
	}
	return js.Print(prog), nil
}

// SyntaxError wraps a parse failure of the file at path.
func SyntaxError(path string, err error) error {
	if path == "" {
		path = "<input>"
	}
	return errors.Wrap(errors.ErrCodeSyntax, err, "%s", path)
}

// WithPath fills in the file path of an unsupported syntax error.
func WithPath(err error, path string) error {
	var us *errors.UnsupportedSyntaxError
	if stderrors.As(err, &us) && us.Path == "" {
		us.Path = path
	}
	return err
}

// DowngradeProgram rewrites prog in place. The tree must come straight from
// js.Parse: the rewrites rely on every identifier being a distinct node.
func DowngradeProgram(prog *js.Program, t Target) (err error) {
	if err := check(prog, t); err != nil {
		return err
	}
	tr := newTransformer(prog, t)
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(failure)
			if !ok {
				panic(r)
			}
			err = f.err
		}
	}()
	if tr.scoping {
		tr.prepareScoping(prog)
	}
	tr.program(prog)
	if tr.scoping {
		lowerLexicalKinds(prog)
	}
	return nil
}

// failure carries a rewrite error out of the recursive descent.
type failure struct{ err error }

// fnCtx is one function-like frame of the rewrite: a function, the program,
// or the synthetic function that replaces a loop body.
type fnCtx struct {
	arrow bool
	loop  bool

	thisName string
	argsName string
	temps    []string
}

type transformer struct {
	target Target
	info   *js.Info
	names  *namer
	stack  []*fnCtx

	// wrap marks loops whose body must run in a function of its own so
	// that closures see a fresh binding per iteration.
	wrap map[js.Stmt]bool

	arrows       bool
	scoping      bool
	destructure  bool
	forOf        bool
	templates    bool
	params       bool
	literals     bool
	catchBinding bool
}

func newTransformer(prog *js.Program, t Target) *transformer {
	info := js.Analyze(prog)
	return &transformer{
		target:       t,
		info:         info,
		names:        newNamer(info.Names),
		wrap:         make(map[js.Stmt]bool),
		arrows:       !t.Supports(ArrowFunctions),
		scoping:      !t.Supports(BlockScoping),
		destructure:  !t.Supports(Destructuring),
		forOf:        !t.Supports(ForOf),
		templates:    !t.Supports(TemplateLiterals),
		params:       !t.Supports(Parameters),
		literals:     !t.Supports(Literals),
		catchBinding: !t.Supports(OptionalCatchBinding),
	}
}

func (t *transformer) fail(n js.Node, f Feature, what string) {
	panic(failure{unsupported(n, f, what)})
}

func (t *transformer) push(c *fnCtx) { t.stack = append(t.stack, c) }
func (t *transformer) pop()          { t.stack = t.stack[:len(t.stack)-1] }
func (t *transformer) top() *fnCtx   { return t.stack[len(t.stack)-1] }

// temp declares a fresh variable at the top of the current frame.
func (t *transformer) temp(base string) *js.Ident {
	name := t.names.fresh(base)
	c := t.top()
	c.temps = append(c.temps, name)
	return ident(name)
}

// capture replaces this or arguments (x) when the frame that evaluates it
// is not the frame the value belongs to: an arrow being converted or a loop
// body moved into a function. The value is then read from a variable
// initialized in the nearest frame that owns it.
func (t *transformer) capture(x js.Expr, args bool) js.Expr {
	need := false
	for i := len(t.stack) - 1; i >= 0; i-- {
		c := t.stack[i]
		if c.loop || (c.arrow && t.arrows) {
			need = true
			continue
		}
		if c.arrow && !need {
			continue
		}
		if !need {
			return x
		}
		if args {
			if c.argsName == "" {
				c.argsName = t.names.fresh("arguments")
			}
			return &js.Ident{Loc: x.Pos(), Name: c.argsName}
		}
		if c.thisName == "" {
			c.thisName = t.names.fresh("this")
		}
		return &js.Ident{Loc: x.Pos(), Name: c.thisName}
	}
	return x
}

// header returns the declarations a frame needs at its top.
func header(c *fnCtx) []js.Stmt {
	var out []js.Stmt
	var captured []*js.Declarator
	if c.thisName != "" {
		captured = append(captured, declarator(c.thisName, &js.This{}))
	}
	if c.argsName != "" {
		captured = append(captured, declarator(c.argsName, ident("arguments")))
	}
	if len(captured) > 0 {
		out = append(out, varDecl("var", captured...))
	}
	if len(c.temps) > 0 {
		temps := make([]*js.Declarator, len(c.temps))
		for i, name := range c.temps {
			temps[i] = &js.Declarator{Target: ident(name)}
		}
		out = append(out, varDecl("var", temps...))
	}
	return out
}

func (t *transformer) program(p *js.Program) {
	ctx := &fnCtx{}
	t.push(ctx)
	p.Body = t.stmts(p.Body)
	t.pop()
	p.Body = insertPrologue(p.Body, header(ctx))
}

func (t *transformer) stmts(list []js.Stmt) []js.Stmt {
	out := make([]js.Stmt, 0, len(list))
	for _, s := range list {
		out = append(out, t.stmt(s)...)
	}
	return out
}

// sub rewrites a statement that occupies a single statement position.
func (t *transformer) sub(s js.Stmt) js.Stmt {
	out := t.stmt(s)
	if len(out) == 1 {
		return out[0]
	}
	return &js.Block{Loc: s.Pos(), List: out}
}

func (t *transformer) stmt(s js.Stmt) []js.Stmt {
	switch s := s.(type) {
	case *js.VarDecl:
		t.varDecl(s)
	case *js.FuncDecl:
		t.function(s.Func)
	case *js.ClassDecl:
		t.class(s.Class)
	case *js.ExprStmt:
		s.X = t.exprStmt(s.X)
	case *js.Block:
		s.List = t.stmts(s.List)
	case *js.Return:
		if t.top().loop {
			t.fail(s, BlockScoping, "return inside a loop whose bindings are captured by closures")
		}
		if s.X != nil {
			s.X = t.expr(s.X)
		}
	case *js.Throw:
		s.X = t.expr(s.X)
	case *js.If:
		s.Test = t.expr(s.Test)
		s.Then = t.sub(s.Then)
		if s.Else != nil {
			s.Else = t.sub(s.Else)
		}
	case *js.For, *js.ForIn, *js.While, *js.DoWhile:
		return t.loop(s, "")
	case *js.Labeled:
		if isLoop(s.Body) {
			out := t.loop(s.Body, s.Label)
			s.Body = out[len(out)-1]
			return append(out[:len(out)-1], s)
		}
		s.Body = t.sub(s.Body)
	case *js.Try:
		t.try(s)
	case *js.Switch:
		s.Disc = t.expr(s.Disc)
		for _, c := range s.Cases {
			if c.Test != nil {
				c.Test = t.expr(c.Test)
			}
			c.Body = t.stmts(c.Body)
		}
	case *js.With:
		s.X = t.expr(s.X)
		s.Body = t.sub(s.Body)
	case *js.ExportDecl:
		return t.exportDecl(s)
	case *js.ExportDefault:
		switch d := s.Decl.(type) {
		case *js.FuncDecl:
			t.function(d.Func)
		case *js.ClassDecl:
			t.class(d.Class)
		case *js.ExprStmt:
			d.X = t.expr(d.X)
		}
	}
	return []js.Stmt{s}
}

func (t *transformer) varDecl(d *js.VarDecl) {
	for _, dl := range d.List {
		dl.Target = t.pattern(dl.Target)
		if dl.Init != nil {
			dl.Init = t.expr(dl.Init)
		}
	}
	if t.destructure {
		d.List = t.lowerDecls(d.List)
	}
}

// exportDecl keeps exported names stable when a destructuring declaration
// expands into temporaries: the plain declaration is followed by an export
// list of the original names.
func (t *transformer) exportDecl(s *js.ExportDecl) []js.Stmt {
	switch d := s.Decl.(type) {
	case *js.VarDecl:
		var names []*js.Ident
		pattern := false
		for _, dl := range d.List {
			names = append(names, js.PatternIdents(dl.Target)...)
			pattern = pattern || isDestructuring(dl.Target)
		}
		t.varDecl(d)
		if !pattern || !t.destructure {
			return []js.Stmt{s}
		}
		list := &js.ExportNamed{Loc: s.Loc}
		for _, id := range names {
			list.Specs = append(list.Specs, &js.ExportSpec{Loc: id.Loc, Local: ident(id.Name), Exported: id.Name})
		}
		return []js.Stmt{d, list}
	case *js.FuncDecl:
		t.function(d.Func)
	case *js.ClassDecl:
		t.class(d.Class)
	}
	return []js.Stmt{s}
}

func (t *transformer) try(s *js.Try) {
	s.Block.List = t.stmts(s.Block.List)
	if s.Handler != nil {
		switch {
		case s.Param == nil && t.catchBinding:
			s.Param = ident(t.names.fresh("unused"))
		case s.Param != nil:
			s.Param = t.pattern(s.Param)
		}
		s.Handler.List = t.stmts(s.Handler.List)
		if t.destructure && isDestructuring(s.Param) {
			tmp := t.names.fresh("ref")
			d := varDecl("let", &js.Declarator{Loc: s.Param.Pos(), Target: s.Param, Init: ident(tmp)})
			d.List = t.lowerDecls(d.List)
			s.Handler.List = append([]js.Stmt{d}, s.Handler.List...)
			s.Param = ident(tmp)
		}
	}
	if s.Finally != nil {
		s.Finally.List = t.stmts(s.Finally.List)
	}
}

func (t *transformer) class(c *js.Class) {
	if c.Super != nil {
		c.Super = t.expr(c.Super)
	}
	for _, m := range c.Members {
		if m.Computed {
			m.Key = t.expr(m.Key)
		}
		t.function(m.Value)
	}
}

// function rewrites a function of any kind in place. Arrows become plain
// functions when the target lacks them, with this and arguments read from
// the enclosing frame.
func (t *transformer) function(f *js.Function) {
	convert := f.Arrow && t.arrows
	ctx := &fnCtx{arrow: f.Arrow}
	t.push(ctx)
	for i, p := range f.Params {
		f.Params[i] = t.pattern(p)
	}
	if f.ExprBody != nil {
		f.ExprBody = t.expr(f.ExprBody)
	} else if f.Body != nil {
		f.Body.List = t.stmts(f.Body.List)
	}
	prologue := t.lowerParams(f, f.Arrow && !convert)
	t.pop()

	if convert {
		f.Arrow = false
	}
	extra := append(header(ctx), prologue...)
	if f.ExprBody != nil && (convert || len(extra) > 0) {
		f.Body = &js.Block{Loc: f.ExprBody.Pos(), List: []js.Stmt{&js.Return{Loc: f.ExprBody.Pos(), X: f.ExprBody}}}
		f.ExprBody = nil
	}
	if len(extra) > 0 {
		f.Body.List = insertPrologue(f.Body.List, extra)
	}
}

// pattern rewrites the expressions embedded in a target: defaults, computed
// keys and the objects of member targets.
func (t *transformer) pattern(p js.Pattern) js.Pattern {
	switch p := p.(type) {
	case *js.Member:
		p.X = t.expr(p.X)
		if p.Computed {
			p.Prop = t.expr(p.Prop)
		}
	case *js.ArrayPattern:
		for i, e := range p.Elems {
			if e != nil {
				p.Elems[i] = t.pattern(e)
			}
		}
		if p.Rest != nil {
			p.Rest = t.pattern(p.Rest)
		}
	case *js.ObjectPattern:
		for _, pp := range p.Props {
			if pp.Computed {
				pp.Key = t.expr(pp.Key)
			}
			pp.Value = t.pattern(pp.Value)
		}
		if p.Rest != nil {
			p.Rest = t.pattern(p.Rest)
		}
	case *js.AssignPattern:
		p.Target = t.pattern(p.Target)
		p.Default = t.expr(p.Default)
	case *js.RestElement:
		p.Target = t.pattern(p.Target)
	}
	return p
}

// exprStmt rewrites an expression whose value is discarded.
func (t *transformer) exprStmt(x js.Expr) js.Expr {
	if a, ok := x.(*js.Assign); ok && a.Op == "=" && t.destructure && isDestructuring(a.Target) {
		a.Target = t.pattern(a.Target)
		a.Value = t.expr(a.Value)
		return t.lowerAssign(a, true)
	}
	return t.expr(x)
}

func (t *transformer) exprs(list []js.Expr) {
	for i, x := range list {
		if x != nil {
			list[i] = t.expr(x)
		}
	}
}

func (t *transformer) expr(x js.Expr) js.Expr {
	switch x := x.(type) {
	case *js.Ident:
		if x.Name == "arguments" && t.info.Bindings[x] == nil {
			return t.capture(x, true)
		}
	case *js.This:
		return t.capture(x, false)
	case *js.Literal:
		if t.literals {
			return lowerLiteral(x)
		}
	case *js.Template:
		if x.Tag != nil {
			x.Tag = t.expr(x.Tag)
		}
		t.exprs(x.Exprs)
		if t.templates && x.Tag == nil {
			return lowerTemplate(x)
		}
	case *js.ArrayLit:
		t.exprs(x.Elems)
	case *js.ObjectLit:
		for _, p := range x.Props {
			switch {
			case p.Computed:
				p.Key = t.expr(p.Key)
			case t.literals:
				if lit, ok := p.Key.(*js.Literal); ok {
					p.Key = lowerLiteral(lit)
				}
			}
			p.Value = t.expr(p.Value)
		}
	case *js.FuncLit:
		t.function(x.Func)
	case *js.ClassLit:
		t.class(x.Class)
	case *js.Unary:
		x.X = t.expr(x.X)
	case *js.Update:
		x.X = t.expr(x.X)
	case *js.Binary:
		x.X = t.expr(x.X)
		x.Y = t.expr(x.Y)
	case *js.Assign:
		x.Target = t.pattern(x.Target)
		x.Value = t.expr(x.Value)
		if x.Op == "=" && t.destructure && isDestructuring(x.Target) {
			return t.lowerAssign(x, false)
		}
	case *js.Cond:
		x.Test = t.expr(x.Test)
		x.Then = t.expr(x.Then)
		x.Else = t.expr(x.Else)
	case *js.Call:
		x.Callee = t.expr(x.Callee)
		t.exprs(x.Args)
	case *js.New:
		x.Callee = t.expr(x.Callee)
		t.exprs(x.Args)
	case *js.Member:
		x.X = t.expr(x.X)
		if x.Computed {
			x.Prop = t.expr(x.Prop)
		}
	case *js.Seq:
		t.exprs(x.List)
	case *js.Spread:
		x.X = t.expr(x.X)
	case *js.Yield:
		if x.X != nil {
			x.X = t.expr(x.X)
		}
	case *js.Await:
		x.X = t.expr(x.X)
	}
	return x
}
