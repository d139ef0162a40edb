package js

// ScopeKind classifies a lexical scope.
type ScopeKind int

const (
	ScopeFunction ScopeKind = iota // program, function or arrow body
	ScopeBlock                     // block, switch body
	ScopeLoop                      // head of a for, for-in or for-of loop
	ScopeCatch                     // catch clause parameter
)

// BindingKind records how a name was declared.
type BindingKind int

const (
	BindVar BindingKind = iota
	BindLet
	BindConst
	BindFunction
	BindParam
	BindCatch
	BindImport
	BindClass
	BindFuncName // name of a function expression, visible inside it only
)

// BlockScoped reports whether the binding follows let/const scoping.
func (k BindingKind) BlockScoped() bool {
	return k == BindLet || k == BindConst || k == BindClass
}

// Scope is one lexical scope.
type Scope struct {
	Kind     ScopeKind
	Parent   *Scope
	Func     *Scope // nearest enclosing function scope, itself for functions
	Node     Node   // *Program, *Function, *Block, *For, *ForIn, *Try, *Switch
	Arrow    bool   // function scope of an arrow function
	Names    map[string]*Binding
	Bindings []*Binding // declaration order
	Children []*Scope
}

// Lookup resolves name starting at s.
func (s *Scope) Lookup(name string) *Binding {
	for ; s != nil; s = s.Parent {
		if b, ok := s.Names[name]; ok {
			return b
		}
	}
	return nil
}

// Contains reports whether inner is s or nested inside s.
func (s *Scope) Contains(inner *Scope) bool {
	for ; inner != nil; inner = inner.Parent {
		if inner == s {
			return true
		}
	}
	return false
}

// Binding is a declared name and everything that refers to it.
type Binding struct {
	Name  string
	Kind  BindingKind
	Scope *Scope
	Decls []*Ident
	Refs  []*Ident

	// Assigned is set when a reference writes the binding after its
	// declaration.
	Assigned bool
	// Captured is set when the binding is referenced from a function nested
	// inside its declaring function.
	Captured bool
	// RefScopes holds the scope of each entry in Refs.
	RefScopes []*Scope
	// Writes lists the references that assign the binding.
	Writes []*Ident
}

// Rename changes the name at every declaration and reference.
func (b *Binding) Rename(name string) {
	if s := b.Scope; s != nil && s.Names[b.Name] == b {
		delete(s.Names, b.Name)
		s.Names[name] = b
	}
	b.Name = name
	for _, id := range b.Decls {
		id.Name = name
	}
	for _, id := range b.Refs {
		id.Name = name
	}
}

// Info is the result of scope analysis.
type Info struct {
	Root *Scope

	// Bindings maps every declaring and resolved referencing identifier to
	// its binding.
	Bindings map[*Ident]*Binding
	// Scopes maps scope-introducing nodes to their scope.
	Scopes map[Node]*Scope
	// Globals lists references that resolve to no declaration.
	Globals map[string][]*Ident
	// Names holds every identifier name in the program.
	Names map[string]bool
	// RefScopes maps every referencing identifier, resolved or global, to
	// the scope it occurs in.
	RefScopes map[*Ident]*Scope
}

// Analyze resolves the scopes of prog. Function declarations are hoisted
// to the enclosing function scope in all positions.
func Analyze(prog *Program) *Info {
	a := &analyzer{info: &Info{
		Bindings:  make(map[*Ident]*Binding),
		Scopes:    make(map[Node]*Scope),
		Globals:   make(map[string][]*Ident),
		Names:     make(map[string]bool),
		RefScopes: make(map[*Ident]*Scope),
	}}
	a.info.Root = a.push(ScopeFunction, prog)
	a.hoist(prog.Body)
	a.stmts(prog.Body)
	a.pop()
	a.resolve()
	return a.info
}

type pendingRef struct {
	id    *Ident
	scope *Scope
	write bool
}

type analyzer struct {
	info *Info
	cur  *Scope
	refs []pendingRef
}

func (a *analyzer) push(kind ScopeKind, n Node) *Scope {
	s := &Scope{Kind: kind, Parent: a.cur, Node: n, Names: make(map[string]*Binding)}
	if kind == ScopeFunction {
		s.Func = s
	} else {
		s.Func = a.cur.Func
	}
	if a.cur != nil {
		a.cur.Children = append(a.cur.Children, s)
	}
	a.info.Scopes[n] = s
	a.cur = s
	return s
}

func (a *analyzer) pop() { a.cur = a.cur.Parent }

func (a *analyzer) declare(s *Scope, id *Ident, kind BindingKind) {
	a.info.Names[id.Name] = true
	b, ok := s.Names[id.Name]
	if !ok {
		b = &Binding{Name: id.Name, Kind: kind, Scope: s}
		s.Names[id.Name] = b
		s.Bindings = append(s.Bindings, b)
	} else if kind == BindFunction && b.Kind == BindVar {
		b.Kind = BindFunction
	}
	b.Decls = append(b.Decls, id)
	a.info.Bindings[id] = b
}

func (a *analyzer) ref(id *Ident, write bool) {
	a.info.Names[id.Name] = true
	a.refs = append(a.refs, pendingRef{id: id, scope: a.cur, write: write})
}

func (a *analyzer) resolve() {
	for _, r := range a.refs {
		a.info.RefScopes[r.id] = r.scope
		b := r.scope.Lookup(r.id.Name)
		if b == nil {
			a.info.Globals[r.id.Name] = append(a.info.Globals[r.id.Name], r.id)
			continue
		}
		b.Refs = append(b.Refs, r.id)
		b.RefScopes = append(b.RefScopes, r.scope)
		a.info.Bindings[r.id] = b
		if r.write {
			b.Assigned = true
			b.Writes = append(b.Writes, r.id)
		}
		if r.scope.Func != b.Scope.Func {
			b.Captured = true
		}
	}
}

// hoist declares var and function bindings of list in the current
// function scope before the statements are visited.
func (a *analyzer) hoist(list []Stmt) {
	for _, s := range list {
		a.hoistStmt(s)
	}
}

func (a *analyzer) hoistStmt(s Stmt) {
	fs := a.cur.Func
	switch s := s.(type) {
	case *VarDecl:
		if s.Kind == "var" {
			for _, d := range s.List {
				a.declarePattern(fs, d.Target, BindVar)
			}
		}
	case *FuncDecl:
		if s.Func.Name != nil {
			a.declare(fs, s.Func.Name, BindFunction)
		}
	case *ExportDecl:
		a.hoistStmt(s.Decl)
	case *ExportDefault:
		if fd, ok := s.Decl.(*FuncDecl); ok && fd.Func.Name != nil {
			a.declare(fs, fd.Func.Name, BindFunction)
		}
	case *Import:
		if s.Default != nil {
			a.declare(fs, s.Default, BindImport)
		}
		if s.Namespace != nil {
			a.declare(fs, s.Namespace, BindImport)
		}
		for _, sp := range s.Specs {
			a.declare(fs, sp.Local, BindImport)
		}
	case *Block:
		a.hoist(s.List)
	case *If:
		a.hoistStmt(s.Then)
		if s.Else != nil {
			a.hoistStmt(s.Else)
		}
	case *For:
		if d, ok := s.Init.(*VarDecl); ok {
			a.hoistStmt(d)
		}
		a.hoistStmt(s.Body)
	case *ForIn:
		if d, ok := s.Left.(*VarDecl); ok {
			a.hoistStmt(d)
		}
		a.hoistStmt(s.Body)
	case *While:
		a.hoistStmt(s.Body)
	case *DoWhile:
		a.hoistStmt(s.Body)
	case *Try:
		a.hoist(s.Block.List)
		if s.Handler != nil {
			a.hoist(s.Handler.List)
		}
		if s.Finally != nil {
			a.hoist(s.Finally.List)
		}
	case *Switch:
		for _, c := range s.Cases {
			a.hoist(c.Body)
		}
	case *Labeled:
		a.hoistStmt(s.Body)
	case *With:
		a.hoistStmt(s.Body)
	}
}

// declareLexical declares the let, const and class bindings that list
// introduces directly into the current scope.
func (a *analyzer) declareLexical(list []Stmt) {
	for _, s := range list {
		if e, ok := s.(*ExportDecl); ok {
			s = e.Decl
		}
		switch s := s.(type) {
		case *VarDecl:
			switch s.Kind {
			case "let":
				for _, d := range s.List {
					a.declarePattern(a.cur, d.Target, BindLet)
				}
			case "const":
				for _, d := range s.List {
					a.declarePattern(a.cur, d.Target, BindConst)
				}
			}
		case *ClassDecl:
			if s.Class.Name != nil {
				a.declare(a.cur, s.Class.Name, BindClass)
			}
		case *ExportDefault:
			if cd, ok := s.Decl.(*ClassDecl); ok && cd.Class.Name != nil {
				a.declare(a.cur, cd.Class.Name, BindClass)
			}
		}
	}
}

// declarePattern declares every identifier bound by p and records the
// default values as references.
func (a *analyzer) declarePattern(s *Scope, p Pattern, kind BindingKind) {
	for _, id := range PatternIdents(p) {
		a.declare(s, id, kind)
	}
}

// PatternIdents returns the identifiers bound by p in source order.
func PatternIdents(p Pattern) []*Ident {
	var out []*Ident
	var walk func(Pattern)
	walk = func(p Pattern) {
		switch p := p.(type) {
		case *Ident:
			out = append(out, p)
		case *ArrayPattern:
			for _, e := range p.Elems {
				if e != nil {
					walk(e)
				}
			}
			if p.Rest != nil {
				walk(p.Rest)
			}
		case *ObjectPattern:
			for _, pp := range p.Props {
				walk(pp.Value)
			}
			if p.Rest != nil {
				walk(p.Rest)
			}
		case *AssignPattern:
			walk(p.Target)
		case *RestElement:
			walk(p.Target)
		}
	}
	walk(p)
	return out
}

// patternExprs visits the expressions embedded in a pattern: defaults,
// computed keys and member targets. Identifier targets are reported as
// writes when assign is set.
func (a *analyzer) patternExprs(p Pattern, assign bool) {
	switch p := p.(type) {
	case *Ident:
		if assign {
			a.ref(p, true)
		}
	case *Member:
		a.expr(p)
	case *ArrayPattern:
		for _, e := range p.Elems {
			if e != nil {
				a.patternExprs(e, assign)
			}
		}
		if p.Rest != nil {
			a.patternExprs(p.Rest, assign)
		}
	case *ObjectPattern:
		for _, pp := range p.Props {
			if pp.Computed {
				a.expr(pp.Key)
			}
			a.patternExprs(pp.Value, assign)
		}
		if p.Rest != nil {
			a.patternExprs(p.Rest, assign)
		}
	case *AssignPattern:
		a.patternExprs(p.Target, assign)
		a.expr(p.Default)
	case *RestElement:
		a.patternExprs(p.Target, assign)
	}
}

func (a *analyzer) stmts(list []Stmt) {
	a.declareLexical(list)
	for _, s := range list {
		a.stmt(s)
	}
}

func (a *analyzer) block(b *Block) {
	a.push(ScopeBlock, b)
	a.stmts(b.List)
	a.pop()
}

func (a *analyzer) stmt(s Stmt) {
	switch s := s.(type) {
	case *VarDecl:
		for _, d := range s.List {
			a.patternExprs(d.Target, false)
			if d.Init != nil {
				a.expr(d.Init)
			}
		}
	case *FuncDecl:
		a.function(s.Func, false)
	case *ClassDecl:
		a.class(s.Class)
	case *ExprStmt:
		a.expr(s.X)
	case *Block:
		a.block(s)
	case *Return:
		if s.X != nil {
			a.expr(s.X)
		}
	case *If:
		a.expr(s.Test)
		a.stmt(s.Then)
		if s.Else != nil {
			a.stmt(s.Else)
		}
	case *For:
		a.push(ScopeLoop, s)
		switch init := s.Init.(type) {
		case *VarDecl:
			a.declareLexical([]Stmt{init})
			a.stmt(init)
		case Expr:
			a.expr(init)
		}
		if s.Test != nil {
			a.expr(s.Test)
		}
		if s.Update != nil {
			a.expr(s.Update)
		}
		a.stmt(s.Body)
		a.pop()
	case *ForIn:
		a.push(ScopeLoop, s)
		switch left := s.Left.(type) {
		case *VarDecl:
			a.declareLexical([]Stmt{left})
			a.stmt(left)
		case Pattern:
			a.patternExprs(left, true)
		}
		a.expr(s.Right)
		a.stmt(s.Body)
		a.pop()
	case *While:
		a.expr(s.Test)
		a.stmt(s.Body)
	case *DoWhile:
		a.stmt(s.Body)
		a.expr(s.Test)
	case *Throw:
		a.expr(s.X)
	case *Try:
		a.block(s.Block)
		if s.Handler != nil {
			a.push(ScopeCatch, s)
			if s.Param != nil {
				a.declarePattern(a.cur, s.Param, BindCatch)
				a.patternExprs(s.Param, false)
			}
			a.block(s.Handler)
			a.pop()
		}
		if s.Finally != nil {
			a.block(s.Finally)
		}
	case *Switch:
		a.expr(s.Disc)
		a.push(ScopeBlock, s)
		var all []Stmt
		for _, c := range s.Cases {
			all = append(all, c.Body...)
		}
		a.declareLexical(all)
		for _, c := range s.Cases {
			if c.Test != nil {
				a.expr(c.Test)
			}
			for _, st := range c.Body {
				a.stmt(st)
			}
		}
		a.pop()
	case *Labeled:
		a.stmt(s.Body)
	case *With:
		a.expr(s.X)
		a.stmt(s.Body)
	case *ExportNamed:
		if s.Source == nil {
			for _, sp := range s.Specs {
				a.ref(sp.Local, false)
			}
		}
	case *ExportDecl:
		a.stmt(s.Decl)
	case *ExportDefault:
		switch d := s.Decl.(type) {
		case *FuncDecl:
			a.function(d.Func, false)
		case *ClassDecl:
			a.class(d.Class)
		case *ExprStmt:
			a.expr(d.X)
		}
	}
}

func (a *analyzer) function(f *Function, expr bool) {
	a.push(ScopeFunction, f)
	a.cur.Arrow = f.Arrow
	for _, p := range f.Params {
		a.declarePattern(a.cur, p, BindParam)
	}
	for _, p := range f.Params {
		a.patternExprs(p, false)
	}
	if f.Body != nil {
		a.hoist(f.Body.List)
		a.stmts(f.Body.List)
	} else if f.ExprBody != nil {
		a.expr(f.ExprBody)
	}
	if expr && f.Name != nil {
		if _, ok := a.cur.Names[f.Name.Name]; !ok {
			a.declare(a.cur, f.Name, BindFuncName)
		} else {
			a.info.Names[f.Name.Name] = true
		}
	}
	a.pop()
}

func (a *analyzer) class(c *Class) {
	if c.Super != nil {
		a.expr(c.Super)
	}
	for _, m := range c.Members {
		if m.Computed {
			a.expr(m.Key)
		}
		a.function(m.Value, false)
	}
}

func (a *analyzer) expr(x Expr) {
	switch x := x.(type) {
	case *Ident:
		a.ref(x, false)
	case *Template:
		if x.Tag != nil {
			a.expr(x.Tag)
		}
		for _, e := range x.Exprs {
			a.expr(e)
		}
	case *ArrayLit:
		for _, e := range x.Elems {
			if e != nil {
				a.expr(e)
			}
		}
	case *ObjectLit:
		for _, p := range x.Props {
			if p.Computed {
				a.expr(p.Key)
			}
			a.expr(p.Value)
		}
	case *FuncLit:
		a.function(x.Func, true)
	case *ClassLit:
		a.push(ScopeBlock, x)
		if x.Class.Name != nil {
			a.declare(a.cur, x.Class.Name, BindClass)
		}
		a.class(x.Class)
		a.pop()
	case *Unary:
		a.expr(x.X)
	case *Update:
		if id, ok := x.X.(*Ident); ok {
			a.ref(id, true)
		} else {
			a.expr(x.X)
		}
	case *Binary:
		a.expr(x.X)
		a.expr(x.Y)
	case *Assign:
		a.patternExprs(x.Target, true)
		a.expr(x.Value)
	case *Cond:
		a.expr(x.Test)
		a.expr(x.Then)
		a.expr(x.Else)
	case *Call:
		a.expr(x.Callee)
		for _, e := range x.Args {
			a.expr(e)
		}
	case *New:
		a.expr(x.Callee)
		for _, e := range x.Args {
			a.expr(e)
		}
	case *Member:
		a.expr(x.X)
		if x.Computed {
			a.expr(x.Prop)
		}
	case *Seq:
		for _, e := range x.List {
			a.expr(e)
		}
	case *Spread:
		a.expr(x.X)
	case *Yield:
		if x.X != nil {
			a.expr(x.X)
		}
	case *Await:
		a.expr(x.X)
	}
}
