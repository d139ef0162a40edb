package bundle

import (
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
	"github.com/matzehuels/legacypack/pkg/modgraph"
)

// RequireName is the registry function passed to every module factory.
const RequireName = "__require__"

// LinkOptions configures Link.
type LinkOptions struct {
	// Node selects the substitution of __dirname and __filename.
	Node config.NodeGlobals
}

// Linked is the result of linking one module.
type Linked struct {
	// Exports lists the exported names in source order.
	Exports []string
}

// Link rewrites prog, the parsed code of m, into the body of a registry
// factory. Import declarations become __require__ locals and references to
// imported bindings become member reads on them, so bindings stay live.
// Exports are registered as getters ahead of the module body. Resolved
// require calls are redirected to the registry.
func Link(m *modgraph.Module, prog *js.Program, g *modgraph.Graph, opts LinkOptions) (*Linked, error) {
	l := &linker{
		m:        m,
		g:        g,
		opts:     opts,
		info:     js.Analyze(prog),
		vars:     make(map[string]*source),
		bound:    make(map[*js.Binding]func() js.Expr),
		produced: make(map[*js.Member]bool),
	}
	l.used = make(map[string]bool, len(l.info.Names)+3)
	for name := range l.info.Names {
		l.used[name] = true
	}
	for _, name := range []string{"module", "exports", RequireName} {
		l.used[name] = true
	}

	for _, s := range prog.Body {
		if imp, ok := s.(*js.Import); ok {
			if err := l.importDecl(imp); err != nil {
				return nil, err
			}
		}
	}
	if err := l.rewriteRefs(prog); err != nil {
		return nil, err
	}

	var body []js.Stmt
	for _, s := range prog.Body {
		out, err := l.stmt(s)
		if err != nil {
			return nil, err
		}
		body = append(body, out...)
	}

	var head []js.Stmt
	if m.ESM {
		head = append(head,
			&js.ExprStmt{X: &js.Literal{Kind: js.LitString, Raw: `"use strict"`}},
			exprStmt(call(helper("r"), ident("exports"))),
		)
		if len(l.getters) > 0 {
			head = append(head, exprStmt(call(helper("d"), ident("exports"), l.getterObject())))
		}
	}
	head = append(head, l.declarations()...)
	for _, name := range l.star {
		head = append(head, exprStmt(call(helper("a"), ident("exports"), ident(name))))
	}
	prog.Body = append(head, body...)

	res := &Linked{}
	for _, gt := range l.getters {
		res.Exports = append(res.Exports, gt.name)
	}
	return res, nil
}

// source is the local that holds the exports of one imported module.
type source struct {
	key     string // registry key
	name    string // local holding the exports object
	interop string // local holding the default interop wrapper, if any
	esm     bool
}

type getter struct {
	name  string
	value func() js.Expr
}

type linker struct {
	m    *modgraph.Module
	g    *modgraph.Graph
	opts LinkOptions
	info *js.Info

	used     map[string]bool
	vars     map[string]*source
	order    []*source
	bound    map[*js.Binding]func() js.Expr
	produced map[*js.Member]bool
	getters  []getter
	star     []string
}

// key returns the registry key for a specifier of m.
func (l *linker) key(lit *js.Literal) (string, error) {
	spec := js.StringValue(lit.Raw)
	imp := l.m.ImportOf(spec)
	if imp == nil {
		return "", errors.New(errors.ErrCodeInternal, "%s: import %q was not resolved", l.m.ID, spec)
	}
	if imp.Module != "" {
		return imp.Module, nil
	}
	return imp.External, nil
}

// source returns the local for the module behind lit, declaring it on
// first use.
func (l *linker) source(lit *js.Literal) (*source, error) {
	key, err := l.key(lit)
	if err != nil {
		return nil, err
	}
	if src, ok := l.vars[key]; ok {
		return src, nil
	}
	src := &source{key: key, name: l.fresh(localBase(key))}
	if dep, ok := l.g.Modules[key]; ok {
		src.esm = dep.ESM
	}
	l.vars[key] = src
	l.order = append(l.order, src)
	return src, nil
}

// fresh returns an unused local name derived from base.
func (l *linker) fresh(base string) string {
	name := base
	for i := 2; l.used[name]; i++ {
		name = base + strconv.Itoa(i)
	}
	l.used[name] = true
	return name
}

// localBase derives a local name from a registry key: "./lib/date-utils.js"
// becomes "_dateUtils".
func localBase(key string) string {
	base := key
	if i := strings.LastIndexByte(base, ':'); i >= 0 {
		base = base[i+1:]
	}
	base = path.Base(base)
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	var b strings.Builder
	b.WriteByte('_')
	upper := false
	for _, r := range base {
		switch {
		case r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r) && b.Len() > 1:
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = b.Len() > 1
		}
	}
	if b.Len() == 1 {
		return "_module"
	}
	return b.String()
}

// defaultOf returns the expression reading the default export of src.
// Modules not written as ES modules export their exports object as the
// default, checked at load time for externals.
func (l *linker) defaultOf(src *source) js.Expr {
	if src.esm {
		return member(ident(src.name), "default")
	}
	if _, inlined := l.g.Modules[src.key]; inlined {
		return ident(src.name)
	}
	if src.interop == "" {
		src.interop = l.fresh(src.name + "Default")
	}
	return member(ident(src.interop), "default")
}

func (l *linker) exportOf(src *source, name string) js.Expr {
	if name == "default" {
		return l.defaultOf(src)
	}
	return member(ident(src.name), name)
}

func (l *linker) importDecl(imp *js.Import) error {
	src, err := l.source(imp.Source)
	if err != nil {
		return err
	}
	if imp.Default != nil {
		if b := l.info.Bindings[imp.Default]; b != nil {
			l.bound[b] = func() js.Expr { return l.defaultOf(src) }
		}
	}
	if imp.Namespace != nil {
		if b := l.info.Bindings[imp.Namespace]; b != nil {
			l.bound[b] = func() js.Expr { return ident(src.name) }
		}
	}
	for _, sp := range imp.Specs {
		name := sp.Imported
		if b := l.info.Bindings[sp.Local]; b != nil {
			l.bound[b] = func() js.Expr { return l.exportOf(src, name) }
		}
	}
	return nil
}

// rewriteRefs replaces references to imports, resolved require calls and
// the node path globals throughout prog.
func (l *linker) rewriteRefs(prog *js.Program) error {
	var err error
	js.Rewrite(prog, func(x js.Expr) js.Expr {
		switch x := x.(type) {
		case *js.Ident:
			b := l.info.Bindings[x]
			if b == nil {
				return l.nodeGlobal(x)
			}
			if mk, ok := l.bound[b]; ok {
				return l.mark(mk())
			}
		case *js.Call:
			// Calls through an import do not pass the exports object as this.
			if mem, ok := x.Callee.(*js.Member); ok && l.produced[mem] {
				x.Callee = &js.Seq{List: []js.Expr{&js.Literal{Kind: js.LitNumber, Raw: "0"}, mem}}
				return x
			}
			spec, ok := modgraph.RequireSpecifier(x, l.info)
			if !ok {
				return x
			}
			imp := l.m.ImportOf(spec)
			if imp == nil {
				if err == nil {
					err = errors.New(errors.ErrCodeInternal, "%s: require %q was not resolved", l.m.ID, spec)
				}
				return x
			}
			key := imp.Module
			if key == "" {
				key = imp.External
			}
			return requireCall(key)
		}
		return x
	})
	return err
}

func (l *linker) mark(x js.Expr) js.Expr {
	if mem, ok := x.(*js.Member); ok {
		l.produced[mem] = true
	}
	return x
}

// nodeGlobal substitutes a free __dirname or __filename reference.
func (l *linker) nodeGlobal(id *js.Ident) js.Expr {
	var policy config.GlobalPolicy
	var mock, rel string
	switch id.Name {
	case "__dirname":
		policy, mock, rel = l.opts.Node.Dirname, "/", path.Dir(strings.TrimPrefix(l.m.ID, "./"))
	case "__filename":
		policy, mock, rel = l.opts.Node.Filename, "/index.js", strings.TrimPrefix(l.m.ID, "./")
	default:
		return id
	}
	switch policy {
	case config.GlobalMock:
		return str(mock)
	case config.GlobalRelative:
		return str(rel)
	}
	return id
}

// stmt lowers one top-level statement, returning its replacement.
func (l *linker) stmt(s js.Stmt) ([]js.Stmt, error) {
	switch s := s.(type) {
	case *js.Import:
		return nil, nil

	case *js.ExportDecl:
		switch d := s.Decl.(type) {
		case *js.VarDecl:
			for _, decl := range d.List {
				for _, id := range js.PatternIdents(decl.Target) {
					l.exportLocal(id.Name, id.Name)
				}
			}
		case *js.FuncDecl:
			l.exportLocal(d.Func.Name.Name, d.Func.Name.Name)
		case *js.ClassDecl:
			l.exportLocal(d.Class.Name.Name, d.Class.Name.Name)
		}
		return []js.Stmt{s.Decl}, nil

	case *js.ExportDefault:
		switch d := s.Decl.(type) {
		case *js.FuncDecl:
			if d.Func.Name == nil {
				d.Func.Name = ident(l.fresh("_default"))
			}
			l.exportLocal("default", d.Func.Name.Name)
			return []js.Stmt{d}, nil
		case *js.ClassDecl:
			if d.Class.Name == nil {
				d.Class.Name = ident(l.fresh("_default"))
			}
			l.exportLocal("default", d.Class.Name.Name)
			return []js.Stmt{d}, nil
		case *js.ExprStmt:
			name := l.fresh("_default")
			l.exportLocal("default", name)
			return []js.Stmt{&js.VarDecl{Kind: "var", List: []*js.Declarator{{Target: ident(name), Init: d.X}}}}, nil
		}
		return nil, errors.New(errors.ErrCodeInternal, "%s: unexpected default export %T", l.m.ID, s.Decl)

	case *js.ExportNamed:
		if s.Source != nil {
			src, err := l.source(s.Source)
			if err != nil {
				return nil, err
			}
			for _, sp := range s.Specs {
				local := sp.Local.Name
				l.getters = append(l.getters, getter{name: sp.Exported, value: func() js.Expr { return l.exportOf(src, local) }})
			}
			return nil, nil
		}
		for _, sp := range s.Specs {
			if mk, ok := l.bound[l.info.Bindings[sp.Local]]; ok {
				l.getters = append(l.getters, getter{name: sp.Exported, value: mk})
				continue
			}
			l.exportLocal(sp.Exported, sp.Local.Name)
		}
		return nil, nil

	case *js.ExportAll:
		src, err := l.source(s.Source)
		if err != nil {
			return nil, err
		}
		if s.As != "" {
			l.getters = append(l.getters, getter{name: s.As, value: func() js.Expr { return ident(src.name) }})
			return nil, nil
		}
		l.star = append(l.star, src.name)
		return nil, nil
	}
	return []js.Stmt{s}, nil
}

func (l *linker) exportLocal(exported, local string) {
	l.getters = append(l.getters, getter{name: exported, value: func() js.Expr { return ident(local) }})
}

// getterObject builds {"name": function () { return name; }, ...}.
func (l *linker) getterObject() *js.ObjectLit {
	obj := &js.ObjectLit{}
	for _, gt := range l.getters {
		obj.Props = append(obj.Props, &js.Property{
			Kind: js.PropInit,
			Key:  str(gt.name),
			Value: &js.FuncLit{Func: &js.Function{
				Body: &js.Block{List: []js.Stmt{&js.Return{X: gt.value()}}},
			}},
		})
	}
	return obj
}

// declarations returns one var statement per imported module, in the
// order the modules were first imported.
func (l *linker) declarations() []js.Stmt {
	var out []js.Stmt
	for _, src := range l.order {
		decl := &js.VarDecl{Kind: "var", List: []*js.Declarator{{Target: ident(src.name), Init: requireCall(src.key)}}}
		if src.interop != "" {
			decl.List = append(decl.List, &js.Declarator{Target: ident(src.interop), Init: call(helper("n"), ident(src.name))})
		}
		out = append(out, decl)
	}
	return out
}

func ident(name string) *js.Ident { return &js.Ident{Name: name} }

func str(s string) *js.Literal { return &js.Literal{Kind: js.LitString, Raw: js.Quote(s)} }

func call(callee js.Expr, args ...js.Expr) *js.Call { return &js.Call{Callee: callee, Args: args} }

func exprStmt(x js.Expr) *js.ExprStmt { return &js.ExprStmt{X: x} }

// helper is a runtime helper attached to the registry function.
func helper(name string) *js.Member {
	return &js.Member{X: ident(RequireName), Prop: ident(name)}
}

func requireCall(key string) *js.Call { return call(ident(RequireName), str(key)) }

// member reads prop from x, with dot notation where the name allows it.
func member(x js.Expr, prop string) *js.Member {
	if js.IsIdentifierName(prop) && !js.IsReserved(prop) {
		return &js.Member{X: x, Prop: ident(prop)}
	}
	return &js.Member{X: x, Prop: str(prop), Computed: true}
}
