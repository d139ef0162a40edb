package downgrade

import "github.com/matzehuels/legacypack/pkg/js"

// loop rewrites a loop statement. The returned list ends with the loop
// itself, preceded by any declarations the loop needs.
func (t *transformer) loop(s js.Stmt, label string) []js.Stmt {
	wrap := t.wrap[s]
	var params []*js.Ident
	if wrap {
		params = t.loopParams(s)
		t.checkHeadWrites(s, params)
	}
	var ctx *fnCtx
	enter := func() {
		if wrap {
			ctx = &fnCtx{loop: true}
			t.push(ctx)
		}
	}
	leave := func(body js.Stmt) ([]js.Stmt, js.Stmt) {
		if !wrap {
			return nil, body
		}
		t.pop()
		return t.wrapLoop(s, body, params, ctx, label)
	}

	switch s := s.(type) {
	case *js.For:
		switch init := s.Init.(type) {
		case *js.VarDecl:
			t.varDecl(init)
		case js.Expr:
			s.Init = t.exprStmt(init)
		}
		if s.Test != nil {
			s.Test = t.expr(s.Test)
		}
		if s.Update != nil {
			s.Update = t.exprStmt(s.Update)
		}
		enter()
		pre, body := leave(t.sub(s.Body))
		s.Body = body
		return append(pre, s)

	case *js.ForIn:
		s.Right = t.expr(s.Right)
		switch left := s.Left.(type) {
		case *js.VarDecl:
			left.List[0].Target = t.pattern(left.List[0].Target)
		case js.Pattern:
			s.Left = t.pattern(left)
		}
		enter()
		body := t.sub(s.Body)
		if s.Of && t.forOf {
			var loop *js.For
			loop, body = t.lowerForOf(s, body)
			pre, body := leave(body)
			loop.Body = body
			return append(pre, loop)
		}
		body = t.lowerForInHead(s, body)
		pre, body := leave(body)
		s.Body = body
		return append(pre, s)

	case *js.While:
		s.Test = t.expr(s.Test)
		enter()
		pre, body := leave(t.sub(s.Body))
		s.Body = body
		return append(pre, s)

	case *js.DoWhile:
		enter()
		pre, body := leave(t.sub(s.Body))
		s.Body = body
		s.Test = t.expr(s.Test)
		return append(pre, s)
	}
	return []js.Stmt{s}
}

// loopParams lists the let and const bindings declared in the loop head
// that stay in the head and must be passed to the per-iteration function.
func (t *transformer) loopParams(s js.Stmt) []*js.Ident {
	var d *js.VarDecl
	switch s := s.(type) {
	case *js.For:
		d, _ = s.Init.(*js.VarDecl)
	case *js.ForIn:
		if s.Of && t.forOf {
			return nil
		}
		d, _ = s.Left.(*js.VarDecl)
	}
	if d == nil || d.Kind == "var" {
		return nil
	}
	var out []*js.Ident
	for _, dl := range d.List {
		out = append(out, js.PatternIdents(dl.Target)...)
	}
	return out
}

// checkHeadWrites rejects loop bodies that assign a head binding: the
// per-iteration function only receives a copy.
func (t *transformer) checkHeadWrites(s js.Stmt, head []*js.Ident) {
	if len(head) == 0 {
		return
	}
	bound := make(map[*js.Binding]bool, len(head))
	for _, id := range head {
		if b := t.info.Bindings[id]; b != nil {
			bound[b] = true
		}
	}
	var body js.Stmt
	switch s := s.(type) {
	case *js.For:
		body = s.Body
	case *js.ForIn:
		body = s.Body
	}
	js.Inspect(body, func(n js.Node) bool {
		var targets []*js.Ident
		switch n := n.(type) {
		case *js.Assign:
			targets = js.PatternIdents(n.Target)
		case *js.Update:
			if id, ok := n.X.(*js.Ident); ok {
				targets = []*js.Ident{id}
			}
		}
		for _, id := range targets {
			if bound[t.info.Bindings[id]] {
				t.fail(id, BlockScoping, "loop variable "+id.Name+" is assigned in a loop whose bindings are captured by closures")
			}
		}
		return true
	})
}

// lowerForOf turns for (x of xs) into an index loop over the array-like
// xs. The head binding moves into the body so that it is fresh on every
// iteration.
func (t *transformer) lowerForOf(s *js.ForIn, body js.Stmt) (*js.For, js.Stmt) {
	i := t.names.fresh("i")
	arr := t.names.fresh("arr")
	head := t.headStmt(s.Left, index(ident(arr), ident(i)))
	loop := &js.For{
		Loc:    s.Loc,
		Init:   varDecl("var", declarator(i, num(0)), declarator(arr, s.Right)),
		Test:   &js.Binary{Op: "<", X: ident(i), Y: member(ident(arr), "length")},
		Update: &js.Update{Op: "++", X: ident(i)},
	}
	return loop, prependBody(body, head)
}

// lowerForInHead moves a destructuring for-in head into the body.
func (t *transformer) lowerForInHead(s *js.ForIn, body js.Stmt) js.Stmt {
	if !t.destructure {
		return body
	}
	kind := "var"
	switch left := s.Left.(type) {
	case *js.VarDecl:
		if !isDestructuring(left.List[0].Target) {
			return body
		}
		kind = left.Kind
	default:
		if !isDestructuring(left) {
			return body
		}
	}
	tmp := t.names.fresh("ref")
	head := t.headStmt(s.Left, ident(tmp))
	s.Left = varDecl(kind, &js.Declarator{Target: ident(tmp)})
	return prependBody(body, head)
}

// headStmt builds the statement that binds a loop head to value.
func (t *transformer) headStmt(left js.Node, value js.Expr) js.Stmt {
	switch left := left.(type) {
	case *js.VarDecl:
		d := &js.VarDecl{
			Loc:  left.Loc,
			Kind: left.Kind,
			List: []*js.Declarator{{Loc: left.Loc, Target: left.List[0].Target, Init: value}},
		}
		if t.destructure {
			d.List = t.lowerDecls(d.List)
		}
		return d
	case js.Pattern:
		a := &js.Assign{Loc: left.Pos(), Op: "=", Target: left, Value: value}
		if t.destructure && isDestructuring(left) {
			return &js.ExprStmt{Loc: a.Loc, X: t.lowerAssign(a, true)}
		}
		return &js.ExprStmt{Loc: a.Loc, X: a}
	}
	return &js.Empty{}
}

// wrapLoop moves a loop body into a function called once per iteration.
// The function is declared right before the loop; var declarations of the
// body are hoisted next to it so they stay visible after the loop.
func (t *transformer) wrapLoop(loop js.Stmt, body js.Stmt, params []*js.Ident, ctx *fnCtx, label string) ([]js.Stmt, js.Stmt) {
	list := []js.Stmt{body}
	if b, ok := body.(*js.Block); ok {
		list = b.List
	}
	cr := &controlRewriter{t: t, label: label}
	list = cr.list(list, false, false, nil)
	h := &varHoister{seen: make(map[string]bool)}
	list = h.list(list)
	list = insertPrologue(list, header(ctx))

	name := t.names.fresh("loop")
	fnParams := make([]js.Pattern, len(params))
	args := make([]js.Expr, len(params))
	for i, id := range params {
		fnParams[i] = ident(id.Name)
		args[i] = ident(id.Name)
	}
	fn := &js.FuncLit{Loc: loop.Pos(), Func: &js.Function{
		Loc:    loop.Pos(),
		Params: fnParams,
		Body:   &js.Block{Loc: body.Pos(), List: list},
	}}

	var pre []js.Stmt
	if len(h.names) > 0 {
		decls := make([]*js.Declarator, len(h.names))
		for i, n := range h.names {
			decls[i] = &js.Declarator{Target: ident(n)}
		}
		pre = append(pre, varDecl("var", decls...))
	}
	// Declared as let so that an enclosing wrapper keeps it local; the
	// final pass turns it into var.
	pre = append(pre, varDecl("let", declarator(name, fn)))
	newBody := &js.Block{Loc: body.Pos(), List: []js.Stmt{
		&js.ExprStmt{Loc: body.Pos(), X: call(ident(name), args...)},
	}}
	return pre, newBody
}

// controlRewriter adapts break and continue inside a loop body that moves
// into a function: continue becomes return, jumps out of the body fail.
type controlRewriter struct {
	t     *transformer
	label string
}

func (c *controlRewriter) list(list []js.Stmt, inLoop, inSwitch bool, labels map[string]bool) []js.Stmt {
	for i, s := range list {
		list[i] = c.stmt(s, inLoop, inSwitch, labels)
	}
	return list
}

func (c *controlRewriter) stmt(s js.Stmt, inLoop, inSwitch bool, labels map[string]bool) js.Stmt {
	switch s := s.(type) {
	case *js.Continue:
		switch {
		case s.Label == "" && inLoop, labels[s.Label]:
			return s
		case s.Label == "" || s.Label == c.label:
			return &js.Return{Loc: s.Loc}
		}
		c.t.fail(s, BlockScoping, "continue to an outer loop from a loop whose bindings are captured by closures")
	case *js.Break:
		if s.Label == "" && (inLoop || inSwitch) || labels[s.Label] {
			return s
		}
		c.t.fail(s, BlockScoping, "break out of a loop whose bindings are captured by closures")
	case *js.Block:
		s.List = c.list(s.List, inLoop, inSwitch, labels)
	case *js.If:
		s.Then = c.stmt(s.Then, inLoop, inSwitch, labels)
		if s.Else != nil {
			s.Else = c.stmt(s.Else, inLoop, inSwitch, labels)
		}
	case *js.For:
		s.Body = c.stmt(s.Body, true, inSwitch, labels)
	case *js.ForIn:
		s.Body = c.stmt(s.Body, true, inSwitch, labels)
	case *js.While:
		s.Body = c.stmt(s.Body, true, inSwitch, labels)
	case *js.DoWhile:
		s.Body = c.stmt(s.Body, true, inSwitch, labels)
	case *js.Switch:
		for _, cs := range s.Cases {
			cs.Body = c.list(cs.Body, inLoop, true, labels)
		}
	case *js.Labeled:
		inner := make(map[string]bool, len(labels)+1)
		for l := range labels {
			inner[l] = true
		}
		inner[s.Label] = true
		s.Body = c.stmt(s.Body, inLoop, inSwitch, inner)
	case *js.Try:
		c.list(s.Block.List, inLoop, inSwitch, labels)
		if s.Handler != nil {
			c.list(s.Handler.List, inLoop, inSwitch, labels)
		}
		if s.Finally != nil {
			c.list(s.Finally.List, inLoop, inSwitch, labels)
		}
	case *js.With:
		s.Body = c.stmt(s.Body, inLoop, inSwitch, labels)
	}
	return s
}

// varHoister turns the var declarations of a loop body into assignments
// and collects the declared names.
type varHoister struct {
	names []string
	seen  map[string]bool
}

func (h *varHoister) add(p js.Pattern) {
	for _, id := range js.PatternIdents(p) {
		if !h.seen[id.Name] {
			h.seen[id.Name] = true
			h.names = append(h.names, id.Name)
		}
	}
}

func (h *varHoister) list(list []js.Stmt) []js.Stmt {
	out := list[:0]
	for _, s := range list {
		if s = h.stmt(s); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (h *varHoister) sub(s js.Stmt) js.Stmt {
	if r := h.stmt(s); r != nil {
		return r
	}
	return &js.Empty{Loc: s.Pos()}
}

// assignments returns the initializing assignments of a var declaration,
// or nil when there are none.
func (h *varHoister) assignments(d *js.VarDecl) js.Expr {
	var list []js.Expr
	for _, dl := range d.List {
		h.add(dl.Target)
		if dl.Init != nil {
			list = append(list, &js.Assign{Loc: dl.Loc, Op: "=", Target: dl.Target, Value: dl.Init})
		}
	}
	if len(list) == 0 {
		return nil
	}
	return seq(list)
}

func (h *varHoister) stmt(s js.Stmt) js.Stmt {
	switch s := s.(type) {
	case *js.VarDecl:
		if s.Kind != "var" {
			return s
		}
		x := h.assignments(s)
		if x == nil {
			return nil
		}
		return &js.ExprStmt{Loc: s.Loc, X: x}
	case *js.Block:
		s.List = h.list(s.List)
	case *js.If:
		s.Then = h.sub(s.Then)
		if s.Else != nil {
			s.Else = h.sub(s.Else)
		}
	case *js.For:
		if d, ok := s.Init.(*js.VarDecl); ok && d.Kind == "var" {
			if x := h.assignments(d); x != nil {
				s.Init = x
			} else {
				s.Init = nil
			}
		}
		s.Body = h.sub(s.Body)
	case *js.ForIn:
		if d, ok := s.Left.(*js.VarDecl); ok && d.Kind == "var" {
			h.add(d.List[0].Target)
			s.Left = d.List[0].Target
		}
		s.Body = h.sub(s.Body)
	case *js.While:
		s.Body = h.sub(s.Body)
	case *js.DoWhile:
		s.Body = h.sub(s.Body)
	case *js.Labeled:
		s.Body = h.sub(s.Body)
	case *js.With:
		s.Body = h.sub(s.Body)
	case *js.Try:
		s.Block.List = h.list(s.Block.List)
		if s.Handler != nil {
			s.Handler.List = h.list(s.Handler.List)
		}
		if s.Finally != nil {
			s.Finally.List = h.list(s.Finally.List)
		}
	case *js.Switch:
		for _, c := range s.Cases {
			c.Body = h.list(c.Body)
		}
	}
	return s
}
