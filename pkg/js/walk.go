package js

// Inspect traverses the tree rooted at n in source order. It calls f for
// every node; when f returns false the children of that node are skipped.
// Non-computed property names and member names are not visited as
// identifiers.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || isNilNode(n) || !f(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		inspectStmts(n.Body, f)
	case *Template:
		if n.Tag != nil {
			Inspect(n.Tag, f)
		}
		for _, x := range n.Exprs {
			Inspect(x, f)
		}
	case *ArrayLit:
		for _, x := range n.Elems {
			if x != nil {
				Inspect(x, f)
			}
		}
	case *ObjectLit:
		for _, p := range n.Props {
			Inspect(p, f)
		}
	case *Property:
		if n.Computed {
			Inspect(n.Key, f)
		}
		Inspect(n.Value, f)
		if n.Init != nil {
			Inspect(n.Init, f)
		}
	case *FuncLit:
		Inspect(n.Func, f)
	case *Function:
		if n.Name != nil {
			Inspect(n.Name, f)
		}
		for _, p := range n.Params {
			Inspect(p, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
		if n.ExprBody != nil {
			Inspect(n.ExprBody, f)
		}
	case *ClassLit:
		Inspect(n.Class, f)
	case *Class:
		if n.Name != nil {
			Inspect(n.Name, f)
		}
		if n.Super != nil {
			Inspect(n.Super, f)
		}
		for _, m := range n.Members {
			Inspect(m, f)
		}
	case *ClassMember:
		if n.Computed {
			Inspect(n.Key, f)
		}
		Inspect(n.Value, f)
	case *Unary:
		Inspect(n.X, f)
	case *Update:
		Inspect(n.X, f)
	case *Binary:
		Inspect(n.X, f)
		Inspect(n.Y, f)
	case *Assign:
		Inspect(n.Target, f)
		Inspect(n.Value, f)
	case *Cond:
		Inspect(n.Test, f)
		Inspect(n.Then, f)
		Inspect(n.Else, f)
	case *Call:
		Inspect(n.Callee, f)
		for _, x := range n.Args {
			Inspect(x, f)
		}
	case *New:
		Inspect(n.Callee, f)
		for _, x := range n.Args {
			Inspect(x, f)
		}
	case *Member:
		Inspect(n.X, f)
		if n.Computed {
			Inspect(n.Prop, f)
		}
	case *Seq:
		for _, x := range n.List {
			Inspect(x, f)
		}
	case *Spread:
		Inspect(n.X, f)
	case *Yield:
		if n.X != nil {
			Inspect(n.X, f)
		}
	case *Await:
		Inspect(n.X, f)

	case *ArrayPattern:
		for _, e := range n.Elems {
			if e != nil {
				Inspect(e, f)
			}
		}
		if n.Rest != nil {
			Inspect(n.Rest, f)
		}
	case *ObjectPattern:
		for _, p := range n.Props {
			Inspect(p, f)
		}
		if n.Rest != nil {
			Inspect(n.Rest, f)
		}
	case *PatternProp:
		if n.Computed {
			Inspect(n.Key, f)
		}
		Inspect(n.Value, f)
	case *AssignPattern:
		Inspect(n.Target, f)
		Inspect(n.Default, f)
	case *RestElement:
		Inspect(n.Target, f)

	case *VarDecl:
		for _, d := range n.List {
			Inspect(d, f)
		}
	case *Declarator:
		Inspect(n.Target, f)
		if n.Init != nil {
			Inspect(n.Init, f)
		}
	case *FuncDecl:
		Inspect(n.Func, f)
	case *ClassDecl:
		Inspect(n.Class, f)
	case *ExprStmt:
		Inspect(n.X, f)
	case *Block:
		inspectStmts(n.List, f)
	case *Return:
		if n.X != nil {
			Inspect(n.X, f)
		}
	case *If:
		Inspect(n.Test, f)
		Inspect(n.Then, f)
		if n.Else != nil {
			Inspect(n.Else, f)
		}
	case *For:
		if n.Init != nil {
			Inspect(n.Init, f)
		}
		if n.Test != nil {
			Inspect(n.Test, f)
		}
		if n.Update != nil {
			Inspect(n.Update, f)
		}
		Inspect(n.Body, f)
	case *ForIn:
		Inspect(n.Left, f)
		Inspect(n.Right, f)
		Inspect(n.Body, f)
	case *While:
		Inspect(n.Test, f)
		Inspect(n.Body, f)
	case *DoWhile:
		Inspect(n.Body, f)
		Inspect(n.Test, f)
	case *Throw:
		Inspect(n.X, f)
	case *Try:
		Inspect(n.Block, f)
		if n.Param != nil {
			Inspect(n.Param, f)
		}
		if n.Handler != nil {
			Inspect(n.Handler, f)
		}
		if n.Finally != nil {
			Inspect(n.Finally, f)
		}
	case *Switch:
		Inspect(n.Disc, f)
		for _, c := range n.Cases {
			Inspect(c, f)
		}
	case *Case:
		if n.Test != nil {
			Inspect(n.Test, f)
		}
		inspectStmts(n.Body, f)
	case *Labeled:
		Inspect(n.Body, f)
	case *With:
		Inspect(n.X, f)
		Inspect(n.Body, f)
	case *Import:
		if n.Default != nil {
			Inspect(n.Default, f)
		}
		if n.Namespace != nil {
			Inspect(n.Namespace, f)
		}
		for _, s := range n.Specs {
			Inspect(s.Local, f)
		}
		Inspect(n.Source, f)
	case *ExportNamed:
		if n.Source == nil {
			for _, s := range n.Specs {
				Inspect(s.Local, f)
			}
		} else {
			Inspect(n.Source, f)
		}
	case *ExportDecl:
		Inspect(n.Decl, f)
	case *ExportDefault:
		Inspect(n.Decl, f)
	case *ExportAll:
		Inspect(n.Source, f)
	}
}

func inspectStmts(list []Stmt, f func(Node) bool) {
	for _, s := range list {
		Inspect(s, f)
	}
}

// isNilNode guards against typed nil pointers stored in interfaces, which
// appear for optional fields such as Import.Source on malformed trees.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Literal:
		return n == nil
	case *Ident:
		return n == nil
	case *Block:
		return n == nil
	}
	return false
}

// Rewrite visits every expression position under n bottom-up and replaces
// each expression with the result of f. Binding and assignment target
// identifiers are not expression positions and are left alone; member
// targets and default values inside patterns are rewritten.
func Rewrite(n Node, f func(Expr) Expr) {
	r := rewriter{f: f}
	r.node(n)
}

type rewriter struct {
	f func(Expr) Expr
}

func (r *rewriter) expr(x Expr) Expr {
	if x == nil {
		return nil
	}
	switch x := x.(type) {
	case *Template:
		if x.Tag != nil {
			x.Tag = r.expr(x.Tag)
		}
		r.exprs(x.Exprs)
	case *ArrayLit:
		r.exprs(x.Elems)
	case *ObjectLit:
		for _, p := range x.Props {
			if p.Computed {
				p.Key = r.expr(p.Key)
			}
			p.Value = r.expr(p.Value)
			if p.Init != nil {
				p.Init = r.expr(p.Init)
			}
		}
	case *FuncLit:
		r.function(x.Func)
	case *ClassLit:
		r.class(x.Class)
	case *Unary:
		x.X = r.expr(x.X)
	case *Update:
		x.X = r.expr(x.X)
	case *Binary:
		x.X = r.expr(x.X)
		x.Y = r.expr(x.Y)
	case *Assign:
		x.Target = r.pattern(x.Target)
		x.Value = r.expr(x.Value)
	case *Cond:
		x.Test = r.expr(x.Test)
		x.Then = r.expr(x.Then)
		x.Else = r.expr(x.Else)
	case *Call:
		x.Callee = r.expr(x.Callee)
		r.exprs(x.Args)
	case *New:
		x.Callee = r.expr(x.Callee)
		r.exprs(x.Args)
	case *Member:
		x.X = r.expr(x.X)
		if x.Computed {
			x.Prop = r.expr(x.Prop)
		}
	case *Seq:
		r.exprs(x.List)
	case *Spread:
		x.X = r.expr(x.X)
	case *Yield:
		x.X = r.expr(x.X)
	case *Await:
		x.X = r.expr(x.X)
	}
	return r.f(x)
}

func (r *rewriter) exprs(list []Expr) {
	for i, x := range list {
		if x != nil {
			list[i] = r.expr(x)
		}
	}
}

// pattern rewrites the expressions inside a target. A member target may be
// replaced by another member expression only.
func (r *rewriter) pattern(p Pattern) Pattern {
	switch p := p.(type) {
	case *Member:
		p.X = r.expr(p.X)
		if p.Computed {
			p.Prop = r.expr(p.Prop)
		}
	case *ArrayPattern:
		for i, e := range p.Elems {
			if e != nil {
				p.Elems[i] = r.pattern(e)
			}
		}
		if p.Rest != nil {
			p.Rest = r.pattern(p.Rest)
		}
	case *ObjectPattern:
		for _, pp := range p.Props {
			if pp.Computed {
				pp.Key = r.expr(pp.Key)
			}
			pp.Value = r.pattern(pp.Value)
		}
		if p.Rest != nil {
			p.Rest = r.pattern(p.Rest)
		}
	case *AssignPattern:
		p.Target = r.pattern(p.Target)
		p.Default = r.expr(p.Default)
	case *RestElement:
		p.Target = r.pattern(p.Target)
	}
	return p
}

func (r *rewriter) function(fn *Function) {
	for i, p := range fn.Params {
		fn.Params[i] = r.pattern(p)
	}
	if fn.Body != nil {
		r.stmts(fn.Body.List)
	}
	if fn.ExprBody != nil {
		fn.ExprBody = r.expr(fn.ExprBody)
	}
}

func (r *rewriter) class(c *Class) {
	if c.Super != nil {
		c.Super = r.expr(c.Super)
	}
	for _, m := range c.Members {
		if m.Computed {
			m.Key = r.expr(m.Key)
		}
		r.function(m.Value)
	}
}

func (r *rewriter) stmts(list []Stmt) {
	for _, s := range list {
		r.node(s)
	}
}

func (r *rewriter) node(n Node) {
	switch n := n.(type) {
	case nil:
	case *Program:
		r.stmts(n.Body)
	case Expr:
		r.expr(n)
	case *VarDecl:
		for _, d := range n.List {
			d.Target = r.pattern(d.Target)
			d.Init = r.expr(d.Init)
		}
	case *FuncDecl:
		r.function(n.Func)
	case *ClassDecl:
		r.class(n.Class)
	case *ExprStmt:
		n.X = r.expr(n.X)
	case *Block:
		r.stmts(n.List)
	case *Return:
		n.X = r.expr(n.X)
	case *If:
		n.Test = r.expr(n.Test)
		r.node(n.Then)
		r.node(n.Else)
	case *For:
		switch init := n.Init.(type) {
		case Expr:
			n.Init = r.expr(init)
		case *VarDecl:
			r.node(init)
		}
		n.Test = r.expr(n.Test)
		n.Update = r.expr(n.Update)
		r.node(n.Body)
	case *ForIn:
		switch left := n.Left.(type) {
		case *VarDecl:
			r.node(left)
		case Pattern:
			n.Left = r.pattern(left)
		}
		n.Right = r.expr(n.Right)
		r.node(n.Body)
	case *While:
		n.Test = r.expr(n.Test)
		r.node(n.Body)
	case *DoWhile:
		r.node(n.Body)
		n.Test = r.expr(n.Test)
	case *Throw:
		n.X = r.expr(n.X)
	case *Try:
		r.node(n.Block)
		if n.Param != nil {
			n.Param = r.pattern(n.Param)
		}
		if n.Handler != nil {
			r.node(n.Handler)
		}
		if n.Finally != nil {
			r.node(n.Finally)
		}
	case *Switch:
		n.Disc = r.expr(n.Disc)
		for _, c := range n.Cases {
			c.Test = r.expr(c.Test)
			r.stmts(c.Body)
		}
	case *Labeled:
		r.node(n.Body)
	case *With:
		n.X = r.expr(n.X)
		r.node(n.Body)
	case *ExportDecl:
		r.node(n.Decl)
	case *ExportDefault:
		r.node(n.Decl)
	}
}
