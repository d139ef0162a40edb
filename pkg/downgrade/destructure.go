package downgrade

import "github.com/matzehuels/legacypack/pkg/js"

// lowerDecls expands declarators whose target is an array or object
// pattern into one declarator per bound name. Intermediate values live in
// temporaries declared in the same list, so each source expression is
// evaluated once and in order.
func (t *transformer) lowerDecls(list []*js.Declarator) []*js.Declarator {
	out := make([]*js.Declarator, 0, len(list))
	for _, d := range list {
		if !isDestructuring(d.Target) {
			out = append(out, d)
			continue
		}
		init := d.Init
		if init == nil {
			init = voidZero()
		}
		n := len(out)
		out = t.destructDecl(out, d.Target, init)
		if len(out) == n {
			// An empty pattern still evaluates its source.
			out = append(out, declarator(t.names.fresh("ref"), init))
		}
	}
	return out
}

func (t *transformer) destructDecl(out []*js.Declarator, p js.Pattern, src js.Expr) []*js.Declarator {
	switch p := p.(type) {
	case *js.Ident:
		return append(out, &js.Declarator{Loc: p.Loc, Target: p, Init: src})
	case *js.AssignPattern:
		v, out := t.memoDecl(out, src, p.Target)
		return t.destructDecl(out, p.Target, defaulted(v, p.Default))
	case *js.ArrayPattern:
		r, out := t.memoDecl(out, src, p)
		for i, e := range p.Elems {
			if e != nil {
				out = t.destructDecl(out, e, index(r, num(i)))
			}
		}
		if p.Rest != nil {
			out = t.destructDecl(out, p.Rest, slice(r, len(p.Elems)))
		}
		return out
	case *js.ObjectPattern:
		if p.Rest != nil {
			t.fail(p.Rest, ObjectRestSpread, "object rest element")
		}
		r, out := t.memoDecl(out, src, p)
		for _, pp := range p.Props {
			out = t.destructDecl(out, pp.Value, propAccess(r, pp))
		}
		return out
	case *js.RestElement:
		return t.destructDecl(out, p.Target, src)
	}
	t.fail(p, Destructuring, "invalid declaration target")
	return out
}

// memoDecl makes src safe to read more than once: identifiers that p does
// not rebind are used directly, anything else goes through a temporary.
func (t *transformer) memoDecl(out []*js.Declarator, src js.Expr, p js.Pattern) (js.Expr, []*js.Declarator) {
	if id, ok := src.(*js.Ident); ok && !binds(p, id.Name) {
		return id, out
	}
	name := t.names.fresh("ref")
	return ident(name), append(out, declarator(name, src))
}

// lowerAssign rewrites a destructuring assignment into a comma sequence.
// Unless the value is discarded the sequence ends with the assigned value.
func (t *transformer) lowerAssign(a *js.Assign, discard bool) js.Expr {
	var list []js.Expr
	src := a.Value
	if id, ok := src.(*js.Ident); !ok || binds(a.Target, id.Name) {
		tmp := t.temp("ref")
		list = append(list, &js.Assign{Loc: a.Loc, Op: "=", Target: tmp, Value: src})
		src = ident(tmp.Name)
	}
	list = t.destructAssign(list, a.Target, src)
	if !discard || len(list) == 0 {
		list = append(list, ref(src))
	}
	return seq(list)
}

func (t *transformer) destructAssign(out []js.Expr, p js.Pattern, src js.Expr) []js.Expr {
	switch p := p.(type) {
	case *js.Ident, *js.Member:
		return append(out, assign(p, src))
	case *js.AssignPattern:
		v, out := t.memoAssign(out, src, p.Target)
		return t.destructAssign(out, p.Target, defaulted(v, p.Default))
	case *js.ArrayPattern:
		r, out := t.memoAssign(out, src, p)
		for i, e := range p.Elems {
			if e != nil {
				out = t.destructAssign(out, e, index(r, num(i)))
			}
		}
		if p.Rest != nil {
			out = t.destructAssign(out, p.Rest, slice(r, len(p.Elems)))
		}
		return out
	case *js.ObjectPattern:
		if p.Rest != nil {
			t.fail(p.Rest, ObjectRestSpread, "object rest element")
		}
		r, out := t.memoAssign(out, src, p)
		for _, pp := range p.Props {
			out = t.destructAssign(out, pp.Value, propAccess(r, pp))
		}
		return out
	case *js.RestElement:
		return t.destructAssign(out, p.Target, src)
	}
	t.fail(p, Destructuring, "invalid assignment target")
	return out
}

func (t *transformer) memoAssign(out []js.Expr, src js.Expr, p js.Pattern) (js.Expr, []js.Expr) {
	if id, ok := src.(*js.Ident); ok && !binds(p, id.Name) {
		return id, out
	}
	tmp := t.temp("ref")
	return ident(tmp.Name), append(out, assign(tmp, src))
}

// propAccess reads the property an object pattern entry names from r.
func propAccess(r js.Expr, pp *js.PatternProp) js.Expr {
	if pp.Computed {
		return index(r, pp.Key)
	}
	switch k := pp.Key.(type) {
	case *js.Ident:
		return member(r, k.Name)
	case *js.Literal:
		if k.Kind == js.LitString {
			if name := js.StringValue(k.Raw); isPlainName(name) {
				return member(r, name)
			}
		}
		return index(r, lowerLiteral(k))
	}
	return index(r, pp.Key)
}

func isPlainName(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		letter := c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
		if !letter && (i == 0 || c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// lowerParams moves default values, rest parameters and parameter patterns
// into statements at the top of the body, returned as the prologue.
//
// Parameters before the first default or rest parameter stay in the list so
// that the function's length is unchanged; the others are read from
// arguments. Arrows kept as arrows have no arguments object of their own and
// test each parameter against undefined instead.
func (t *transformer) lowerParams(f *js.Function, keptArrow bool) []js.Stmt {
	if !t.params && !t.destructure {
		return nil
	}
	keep := len(f.Params)
	if t.params && !keptArrow {
		for i, p := range f.Params {
			switch p.(type) {
			case *js.AssignPattern, *js.RestElement:
				keep = i
			}
			if keep != len(f.Params) {
				break
			}
		}
	}

	var pro []*js.VarDecl
	params := make([]js.Pattern, 0, keep)
	bind := func(target js.Pattern, init js.Expr) {
		pro = append(pro, varDecl("var", &js.Declarator{Loc: target.Pos(), Target: target, Init: init}))
	}
	for _, p := range f.Params[:keep] {
		switch q := p.(type) {
		case *js.ArrayPattern, *js.ObjectPattern:
			if !t.destructure {
				params = append(params, p)
				continue
			}
			tmp := t.names.fresh("ref")
			params = append(params, ident(tmp))
			bind(p, ident(tmp))
		case *js.AssignPattern:
			if !t.params {
				if t.destructure && isDestructuring(q.Target) {
					tmp := t.names.fresh("ref")
					params = append(params, &js.AssignPattern{Loc: q.Loc, Target: ident(tmp), Default: q.Default})
					bind(q.Target, ident(tmp))
				} else {
					params = append(params, p)
				}
				continue
			}
			// Kept arrow: the parameter keeps its slot and is defaulted in
			// the body.
			target := q.Target
			if isDestructuring(target) {
				tmp := t.names.fresh("ref")
				params = append(params, ident(tmp))
				bind(target, defaulted(ident(tmp), q.Default))
				continue
			}
			params = append(params, target)
			id := target.(*js.Ident)
			bind(ident(id.Name), defaulted(ident(id.Name), q.Default))
		case *js.RestElement:
			if t.params {
				t.fail(q, Parameters, "rest parameter in an arrow function")
			}
			if t.destructure && isDestructuring(q.Target) {
				tmp := t.names.fresh("ref")
				params = append(params, &js.RestElement{Loc: q.Loc, Target: ident(tmp)})
				bind(q.Target, ident(tmp))
			} else {
				params = append(params, p)
			}
		default:
			params = append(params, p)
		}
	}

	for i := keep; i < len(f.Params); i++ {
		arg := index(ident("arguments"), num(i))
		switch p := f.Params[i].(type) {
		case *js.AssignPattern:
			present := &js.Binary{
				Op: "&&",
				X:  &js.Binary{Op: ">", X: member(ident("arguments"), "length"), Y: num(i)},
				Y:  &js.Binary{Op: "!==", X: arg, Y: voidZero()},
			}
			bind(p.Target, &js.Cond{Test: present, Then: index(ident("arguments"), num(i)), Else: p.Default})
		case *js.RestElement:
			bind(p.Target, slice(ident("arguments"), i))
		default:
			bind(p, arg)
		}
	}
	f.Params = params

	out := make([]js.Stmt, len(pro))
	for i, d := range pro {
		if t.destructure {
			d.List = t.lowerDecls(d.List)
		}
		out[i] = d
	}
	return out
}
