package downgrade

import "github.com/matzehuels/legacypack/pkg/js"

// prepareScoping runs before let and const become var. It rejects writes
// to constants, renames block bindings that would collide once hoisted to
// their function, and marks loops whose per-iteration bindings are
// captured by closures.
func (t *transformer) prepareScoping(prog *js.Program) {
	t.checkConstWrites()
	t.renameBlockBindings()
	t.markCapturingLoops(prog)
}

func eachScope(s *js.Scope, f func(*js.Scope)) {
	f(s)
	for _, c := range s.Children {
		eachScope(c, f)
	}
}

func (t *transformer) checkConstWrites() {
	eachScope(t.info.Root, func(s *js.Scope) {
		for _, b := range s.Bindings {
			if b.Kind == js.BindConst && len(b.Writes) > 0 {
				t.fail(b.Writes[0], BlockScoping, "assignment to constant "+b.Name)
			}
		}
	})
}

// hoisted reports whether b moves to its function scope when let and const
// become var. Destructured catch parameters move too, because their
// pattern turns into a declaration in the handler.
func (t *transformer) hoisted(b *js.Binding) bool {
	switch b.Kind {
	case js.BindLet, js.BindConst:
		return true
	case js.BindCatch:
		if try, ok := b.Scope.Node.(*js.Try); ok {
			return t.destructure && isDestructuring(try.Param)
		}
	}
	return false
}

func enclosingFunc(f *js.Scope) *js.Scope {
	if f.Parent == nil {
		return nil
	}
	return f.Parent.Func
}

// renameBlockBindings gives block-level bindings a fresh name when their
// function already uses the name: for its own bindings, for another block
// binding, or for a reference that resolves outside the function.
func (t *transformer) renameBlockBindings() {
	outer := make(map[*js.Scope]map[string]bool)
	for id, sc := range t.info.RefScopes {
		b := t.info.Bindings[id]
		for f := sc.Func; f != nil; f = enclosingFunc(f) {
			if b != nil && f.Contains(b.Scope) {
				break
			}
			if outer[f] == nil {
				outer[f] = make(map[string]bool)
			}
			outer[f][id.Name] = true
		}
	}

	eachScope(t.info.Root, func(fs *js.Scope) {
		if fs.Kind != js.ScopeFunction {
			return
		}
		taken := make(map[string]bool)
		for name := range fs.Names {
			taken[name] = true
		}
		for name := range outer[fs] {
			taken[name] = true
		}
		var visit func(*js.Scope)
		visit = func(s *js.Scope) {
			for _, b := range s.Bindings {
				if !t.hoisted(b) {
					continue
				}
				if taken[b.Name] {
					b.Rename(t.names.fresh(b.Name))
				}
				taken[b.Name] = true
			}
			for _, c := range s.Children {
				if c.Kind != js.ScopeFunction {
					visit(c)
				}
			}
		}
		for _, c := range fs.Children {
			if c.Kind != js.ScopeFunction {
				visit(c)
			}
		}
	})
}

// markCapturingLoops finds loops that declare a let or const binding which
// a closure created inside the loop refers to. Each binding belongs to the
// innermost loop around its declaration within the same function.
func (t *transformer) markCapturingLoops(prog *js.Program) {
	var visit func(n js.Node, loop js.Stmt)
	visit = func(n js.Node, loop js.Stmt) {
		js.Inspect(n, func(m js.Node) bool {
			if m == n {
				return true
			}
			switch m := m.(type) {
			case *js.Function:
				visit(m, nil)
				return false
			case *js.For, *js.ForIn, *js.While, *js.DoWhile:
				visit(m, m.(js.Stmt))
				return false
			case *js.VarDecl:
				if loop == nil || m.Kind == "var" {
					return true
				}
				for _, d := range m.List {
					for _, id := range js.PatternIdents(d.Target) {
						if b := t.info.Bindings[id]; b != nil && b.Captured {
							t.wrap[loop] = true
						}
					}
				}
			}
			return true
		})
	}
	visit(prog, nil)
}

// lowerLexicalKinds turns every remaining let and const into var. A let
// without initializer is reset to undefined, which keeps its value from
// leaking into the next iteration of an enclosing loop.
func lowerLexicalKinds(prog *js.Program) {
	heads := make(map[*js.VarDecl]bool)
	js.Inspect(prog, func(n js.Node) bool {
		switch n := n.(type) {
		case *js.ForIn:
			if d, ok := n.Left.(*js.VarDecl); ok {
				heads[d] = true
			}
		case *js.VarDecl:
			if n.Kind == "var" {
				return true
			}
			if n.Kind == "let" && !heads[n] {
				for _, d := range n.List {
					if d.Init == nil {
						d.Init = voidZero()
					}
				}
			}
			n.Kind = "var"
		}
		return true
	})
}
