package js

import "fmt"

// Parse parses src as a JavaScript module or script. Module syntax (import
// and export) is accepted at the top level only.
func Parse(src string) (prog *Program, err error) {
	p := &parser{lex: newLexer(src)}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()
	p.next()
	prog = &Program{Loc: Loc{Line: 1, Col: 1}}
	for p.tok.Type != EOF {
		prog.Body = append(prog.Body, p.parseStatement(true))
	}
	if err := checkCoverInit(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// ParseExpr parses a single expression.
func ParseExpr(src string) (x Expr, err error) {
	p := &parser{lex: newLexer(src)}
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			x, err = nil, b.err
		}
	}()
	p.next()
	x = p.parseExpression()
	if p.tok.Type != EOF {
		p.unexpected()
	}
	return x, nil
}

// bailout carries a syntax error up the recursive descent.
type bailout struct{ err error }

type parser struct {
	lex *lexer
	tok Token

	inFunction  bool
	inGenerator bool
	inAsync     bool
	noIn        bool
}

func (p *parser) fail(loc Loc, format string, args ...any) {
	panic(bailout{&SyntaxError{Loc: loc, Msg: fmt.Sprintf(format, args...)}})
}

func (p *parser) unexpected() {
	p.fail(p.tok.Loc, "unexpected %s", p.tok)
}

func (p *parser) check(err error) {
	if err != nil {
		panic(bailout{err})
	}
}

func (p *parser) next() {
	tok, err := p.lex.next()
	p.check(err)
	p.tok = tok
}

// peek returns the token after the current one without consuming it.
func (p *parser) peek() Token {
	st := p.lex.save()
	tok, err := p.lex.next()
	p.lex.restore(st)
	if err != nil {
		return Token{Type: EOF}
	}
	return tok
}

// is reports whether the current token is the punctuator v.
func (p *parser) is(v string) bool {
	return p.tok.Type == Punct && p.tok.Value == v
}

// isName reports whether the current token is the name or keyword v.
func (p *parser) isName(v string) bool {
	return p.tok.Type == Name && p.tok.Value == v
}

func (p *parser) eat(v string) bool {
	if p.is(v) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(v string) Loc {
	loc := p.tok.Loc
	if !p.is(v) {
		p.fail(loc, "expected %q, found %s", v, p.tok)
	}
	p.next()
	return loc
}

func (p *parser) expectName(v string) {
	if !p.isName(v) {
		p.fail(p.tok.Loc, "expected %q, found %s", v, p.tok)
	}
	p.next()
}

// semicolon consumes a statement terminator, applying automatic semicolon
// insertion.
func (p *parser) semicolon() {
	if p.eat(";") {
		return
	}
	if p.is("}") || p.tok.Type == EOF || p.tok.NewlineBefore {
		return
	}
	p.unexpected()
}

// ident consumes a binding or reference identifier.
func (p *parser) ident() *Ident {
	if p.tok.Type != Name || IsReserved(p.tok.Value) {
		p.fail(p.tok.Loc, "expected identifier, found %s", p.tok)
	}
	id := &Ident{Loc: p.tok.Loc, Name: p.tok.Value}
	p.next()
	return id
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *parser) parseStatement(top bool) Stmt {
	loc := p.tok.Loc
	if p.tok.Type == Punct {
		switch p.tok.Value {
		case "{":
			return p.parseBlock()
		case ";":
			p.next()
			return &Empty{Loc: loc}
		}
		return p.parseExprStatement()
	}
	if p.tok.Type != Name {
		return p.parseExprStatement()
	}

	switch p.tok.Value {
	case "var", "const":
		kind := p.tok.Value
		p.next()
		d := p.parseVarDecl(loc, kind)
		p.semicolon()
		return d
	case "let":
		if p.letDeclarationAhead() {
			p.next()
			d := p.parseVarDecl(loc, "let")
			p.semicolon()
			return d
		}
	case "function":
		p.next()
		return &FuncDecl{Loc: loc, Func: p.parseFunction(loc, false, true)}
	case "async":
		if nt := p.peek(); nt.Type == Name && nt.Value == "function" && !nt.NewlineBefore {
			p.next()
			p.next()
			return &FuncDecl{Loc: loc, Func: p.parseFunction(loc, true, true)}
		}
	case "class":
		return &ClassDecl{Loc: loc, Class: p.parseClass(true)}
	case "if":
		return p.parseIf()
	case "for":
		return p.parseFor()
	case "while":
		p.next()
		test := p.parseParenExpr()
		return &While{Loc: loc, Test: test, Body: p.parseStatement(false)}
	case "do":
		p.next()
		body := p.parseStatement(false)
		p.expectName("while")
		test := p.parseParenExpr()
		p.eat(";")
		return &DoWhile{Loc: loc, Body: body, Test: test}
	case "return":
		p.next()
		r := &Return{Loc: loc}
		if !p.is(";") && !p.is("}") && p.tok.Type != EOF && !p.tok.NewlineBefore {
			r.X = p.parseExpression()
		}
		p.semicolon()
		return r
	case "break", "continue":
		kw := p.tok.Value
		p.next()
		label := ""
		if p.tok.Type == Name && !p.tok.NewlineBefore && !IsReserved(p.tok.Value) {
			label = p.tok.Value
			p.next()
		}
		p.semicolon()
		if kw == "break" {
			return &Break{Loc: loc, Label: label}
		}
		return &Continue{Loc: loc, Label: label}
	case "throw":
		p.next()
		if p.tok.NewlineBefore {
			p.fail(p.tok.Loc, "illegal newline after throw")
		}
		x := p.parseExpression()
		p.semicolon()
		return &Throw{Loc: loc, X: x}
	case "try":
		return p.parseTry()
	case "switch":
		return p.parseSwitch()
	case "debugger":
		p.next()
		p.semicolon()
		return &Debugger{Loc: loc}
	case "with":
		p.next()
		x := p.parseParenExpr()
		return &With{Loc: loc, X: x, Body: p.parseStatement(false)}
	case "import":
		if nt := p.peek(); !(nt.Type == Punct && (nt.Value == "(" || nt.Value == ".")) {
			if !top {
				p.fail(loc, "import declarations may only appear at top level")
			}
			return p.parseImport()
		}
	case "export":
		if !top {
			p.fail(loc, "export declarations may only appear at top level")
		}
		return p.parseExport()
	}

	if !IsReserved(p.tok.Value) {
		if nt := p.peek(); nt.Type == Punct && nt.Value == ":" {
			label := p.tok.Value
			p.next()
			p.next()
			return &Labeled{Loc: loc, Label: label, Body: p.parseStatement(false)}
		}
	}
	return p.parseExprStatement()
}

// letDeclarationAhead distinguishes "let x" from an identifier named let.
func (p *parser) letDeclarationAhead() bool {
	nt := p.peek()
	switch nt.Type {
	case Name:
		return nt.Value != "in" && nt.Value != "instanceof"
	case Punct:
		return nt.Value == "[" || nt.Value == "{"
	}
	return false
}

func (p *parser) parseExprStatement() Stmt {
	loc := p.tok.Loc
	x := p.parseExpression()
	p.semicolon()
	return &ExprStmt{Loc: loc, X: x}
}

func (p *parser) parseBlock() *Block {
	b := &Block{Loc: p.expect("{")}
	for !p.is("}") {
		if p.tok.Type == EOF {
			p.unexpected()
		}
		b.List = append(b.List, p.parseStatement(false))
	}
	p.next()
	return b
}

func (p *parser) parseParenExpr() Expr {
	p.expect("(")
	x := p.parseExpression()
	p.expect(")")
	return x
}

func (p *parser) parseVarDecl(loc Loc, kind string) *VarDecl {
	d := &VarDecl{Loc: loc, Kind: kind}
	for {
		dl := &Declarator{Loc: p.tok.Loc, Target: p.parseBindingTarget()}
		if p.eat("=") {
			dl.Init = p.parseAssign()
		}
		d.List = append(d.List, dl)
		if !p.eat(",") {
			break
		}
	}
	return d
}

func (p *parser) parseIf() Stmt {
	loc := p.tok.Loc
	p.next()
	s := &If{Loc: loc, Test: p.parseParenExpr(), Then: p.parseStatement(false)}
	if p.isName("else") {
		p.next()
		s.Else = p.parseStatement(false)
	}
	return s
}

func (p *parser) parseFor() Stmt {
	loc := p.tok.Loc
	p.next()
	if p.isName("await") {
		p.fail(p.tok.Loc, "for await is not supported")
	}
	p.expect("(")

	var init Node
	if !p.is(";") {
		p.noIn = true
		initLoc := p.tok.Loc
		switch {
		case p.isName("var") || p.isName("const") || (p.isName("let") && p.letDeclarationAhead()):
			kind := p.tok.Value
			p.next()
			d := p.parseVarDecl(initLoc, kind)
			p.noIn = false
			if (p.isName("in") || p.isName("of")) && len(d.List) == 1 && d.List[0].Init == nil {
				return p.parseForIn(loc, d)
			}
			init = d
		default:
			x := p.parseExpression()
			p.noIn = false
			if p.isName("in") || p.isName("of") {
				return p.parseForIn(loc, p.toPattern(x, false))
			}
			init = x
		}
		p.noIn = false
	}
	p.expect(";")
	f := &For{Loc: loc, Init: init}
	if !p.is(";") {
		f.Test = p.parseExpression()
	}
	p.expect(";")
	if !p.is(")") {
		f.Update = p.parseExpression()
	}
	p.expect(")")
	f.Body = p.parseStatement(false)
	return f
}

func (p *parser) parseForIn(loc Loc, left Node) Stmt {
	of := p.isName("of")
	p.next()
	var right Expr
	if of {
		right = p.parseAssign()
	} else {
		right = p.parseExpression()
	}
	p.expect(")")
	return &ForIn{Loc: loc, Left: left, Right: right, Body: p.parseStatement(false), Of: of}
}

func (p *parser) parseTry() Stmt {
	loc := p.tok.Loc
	p.next()
	t := &Try{Loc: loc, Block: p.parseBlock()}
	if p.isName("catch") {
		p.next()
		if p.eat("(") {
			t.Param = p.parseBindingTarget()
			p.expect(")")
		}
		t.Handler = p.parseBlock()
	}
	if p.isName("finally") {
		p.next()
		t.Finally = p.parseBlock()
	}
	if t.Handler == nil && t.Finally == nil {
		p.fail(loc, "missing catch or finally after try")
	}
	return t
}

func (p *parser) parseSwitch() Stmt {
	loc := p.tok.Loc
	p.next()
	s := &Switch{Loc: loc, Disc: p.parseParenExpr()}
	p.expect("{")
	for !p.eat("}") {
		c := &Case{Loc: p.tok.Loc}
		switch {
		case p.isName("case"):
			p.next()
			c.Test = p.parseExpression()
		case p.isName("default"):
			p.next()
		default:
			p.unexpected()
		}
		p.expect(":")
		for !p.is("}") && !p.isName("case") && !p.isName("default") {
			if p.tok.Type == EOF {
				p.unexpected()
			}
			c.Body = append(c.Body, p.parseStatement(false))
		}
		s.Cases = append(s.Cases, c)
	}
	return s
}

// ---------------------------------------------------------------------------
// Modules
// ---------------------------------------------------------------------------

func (p *parser) parseModuleSource() *Literal {
	if p.tok.Type != String {
		p.fail(p.tok.Loc, "expected module specifier, found %s", p.tok)
	}
	lit := &Literal{Loc: p.tok.Loc, Kind: LitString, Raw: p.tok.Value}
	p.next()
	return lit
}

// moduleExportName reads a name in an import or export list, where
// reserved words and string names are allowed.
func (p *parser) moduleExportName() (string, Loc) {
	loc := p.tok.Loc
	switch p.tok.Type {
	case Name:
		v := p.tok.Value
		p.next()
		return v, loc
	case String:
		v := StringValue(p.tok.Value)
		p.next()
		return v, loc
	}
	p.fail(loc, "expected name, found %s", p.tok)
	return "", loc
}

func (p *parser) parseImport() Stmt {
	imp := &Import{Loc: p.tok.Loc}
	p.next()
	if p.tok.Type == String {
		imp.Source = p.parseModuleSource()
		p.semicolon()
		return imp
	}
	if p.tok.Type == Name {
		imp.Default = p.ident()
		if p.eat(",") {
			p.parseImportBindings(imp)
		}
	} else {
		p.parseImportBindings(imp)
	}
	p.expectName("from")
	imp.Source = p.parseModuleSource()
	p.semicolon()
	return imp
}

// parseImportBindings reads a namespace import or a braced import list.
func (p *parser) parseImportBindings(imp *Import) {
	switch {
	case p.is("*"):
		p.next()
		p.expectName("as")
		imp.Namespace = p.ident()
	case p.is("{"):
		p.next()
		for !p.eat("}") {
			name, loc := p.moduleExportName()
			spec := &ImportSpec{Loc: loc, Imported: name}
			if p.isName("as") {
				p.next()
				spec.Local = p.ident()
			} else {
				if IsReserved(name) {
					p.fail(loc, "unexpected reserved word %q", name)
				}
				spec.Local = &Ident{Loc: loc, Name: name}
			}
			imp.Specs = append(imp.Specs, spec)
			if !p.is("}") {
				p.expect(",")
			}
		}
	default:
		p.unexpected()
	}
}

func (p *parser) parseExport() Stmt {
	loc := p.tok.Loc
	p.next()
	switch {
	case p.is("*"):
		p.next()
		all := &ExportAll{Loc: loc}
		if p.isName("as") {
			p.next()
			all.As, _ = p.moduleExportName()
		}
		p.expectName("from")
		all.Source = p.parseModuleSource()
		p.semicolon()
		return all
	case p.is("{"):
		p.next()
		n := &ExportNamed{Loc: loc}
		for !p.eat("}") {
			name, nloc := p.moduleExportName()
			spec := &ExportSpec{Loc: nloc, Local: &Ident{Loc: nloc, Name: name}, Exported: name}
			if p.isName("as") {
				p.next()
				spec.Exported, _ = p.moduleExportName()
			}
			n.Specs = append(n.Specs, spec)
			if !p.is("}") {
				p.expect(",")
			}
		}
		if p.isName("from") {
			p.next()
			n.Source = p.parseModuleSource()
		} else {
			for _, s := range n.Specs {
				if IsReserved(s.Local.Name) {
					p.fail(s.Loc, "unexpected reserved word %q", s.Local.Name)
				}
			}
		}
		p.semicolon()
		return n
	case p.isName("default"):
		p.next()
		dloc := p.tok.Loc
		switch {
		case p.isName("function"):
			p.next()
			return &ExportDefault{Loc: loc, Decl: &FuncDecl{Loc: dloc, Func: p.parseFunction(dloc, false, false)}}
		case p.isName("async") && p.peek().Value == "function" && !p.peek().NewlineBefore:
			p.next()
			p.next()
			return &ExportDefault{Loc: loc, Decl: &FuncDecl{Loc: dloc, Func: p.parseFunction(dloc, true, false)}}
		case p.isName("class"):
			return &ExportDefault{Loc: loc, Decl: &ClassDecl{Loc: dloc, Class: p.parseClass(false)}}
		}
		x := p.parseAssign()
		p.semicolon()
		return &ExportDefault{Loc: loc, Decl: &ExprStmt{Loc: dloc, X: x}}
	case p.isName("var"), p.isName("let"), p.isName("const"), p.isName("function"),
		p.isName("async"), p.isName("class"):
		decl := p.parseStatement(false)
		switch decl.(type) {
		case *VarDecl, *FuncDecl, *ClassDecl:
		default:
			p.fail(loc, "unexpected export")
		}
		return &ExportDecl{Loc: loc, Decl: decl}
	}
	p.unexpected()
	return nil
}

// ---------------------------------------------------------------------------
// Functions and classes
// ---------------------------------------------------------------------------

// parseFunction parses the rest of a function after the "function" keyword.
func (p *parser) parseFunction(loc Loc, async, requireName bool) *Function {
	f := &Function{Loc: loc, Async: async}
	if p.eat("*") {
		f.Generator = true
	}
	if p.tok.Type == Name {
		f.Name = p.ident()
	} else if requireName {
		p.fail(p.tok.Loc, "function name expected")
	}
	p.parseFunctionRest(f)
	return f
}

// parseFunctionRest parses parameters and body into f.
func (p *parser) parseFunctionRest(f *Function) {
	saved := [4]bool{p.inFunction, p.inGenerator, p.inAsync, p.noIn}
	p.inFunction, p.inGenerator, p.inAsync, p.noIn = true, f.Generator, f.Async, false
	f.Params = p.parseParams()
	f.Body = p.parseBlock()
	p.inFunction, p.inGenerator, p.inAsync, p.noIn = saved[0], saved[1], saved[2], saved[3]
}

func (p *parser) parseParams() []Pattern {
	p.expect("(")
	var params []Pattern
	for !p.eat(")") {
		if p.is("...") {
			loc := p.tok.Loc
			p.next()
			params = append(params, &RestElement{Loc: loc, Target: p.parseBindingTarget()})
			p.expect(")")
			break
		}
		params = append(params, p.parseBindingElement())
		if !p.is(")") {
			p.expect(",")
		}
	}
	return params
}

// parseArrowBody parses the body of an arrow function whose parameters have
// already been read.
func (p *parser) parseArrowBody(f *Function) {
	if p.tok.NewlineBefore {
		p.fail(p.tok.Loc, "line terminator before arrow")
	}
	p.expect("=>")
	saved := [4]bool{p.inFunction, p.inGenerator, p.inAsync, p.noIn}
	p.inFunction, p.inGenerator, p.inAsync = true, false, f.Async
	if p.is("{") {
		p.noIn = false
		f.Body = p.parseBlock()
	} else {
		f.ExprBody = p.parseAssign()
	}
	p.inFunction, p.inGenerator, p.inAsync, p.noIn = saved[0], saved[1], saved[2], saved[3]
}

// propertyKey parses an object or class member name.
func (p *parser) propertyKey() (key Expr, computed bool) {
	loc := p.tok.Loc
	switch p.tok.Type {
	case Name:
		key = &Ident{Loc: loc, Name: p.tok.Value}
	case String:
		key = &Literal{Loc: loc, Kind: LitString, Raw: p.tok.Value}
	case Number:
		key = &Literal{Loc: loc, Kind: LitNumber, Raw: p.tok.Value}
	case Punct:
		if p.is("[") {
			p.next()
			noIn := p.noIn
			p.noIn = false
			key = p.parseAssign()
			p.noIn = noIn
			p.expect("]")
			return key, true
		}
		if p.is("#") {
			p.fail(loc, "private names are not supported")
		}
		p.unexpected()
	default:
		p.unexpected()
	}
	p.next()
	return key, false
}

// methodPrefix reports whether the current name token is a get, set,
// async or static modifier rather than a member name.
func (p *parser) methodPrefix() bool {
	nt := p.peek()
	if nt.Type == Punct {
		switch nt.Value {
		case ",", ":", "(", "}", "=", ";":
			return false
		}
	}
	if p.isName("async") && nt.NewlineBefore {
		return false
	}
	return nt.Type != EOF
}

func (p *parser) parseClass(requireName bool) *Class {
	c := &Class{Loc: p.tok.Loc}
	p.next()
	if p.tok.Type == Name && !p.isName("extends") {
		c.Name = p.ident()
	} else if requireName {
		p.fail(p.tok.Loc, "class name expected")
	}
	if p.isName("extends") {
		p.next()
		c.Super = p.parseSubscripts(p.parsePrimary(), false)
	}
	p.expect("{")
	for !p.eat("}") {
		if p.eat(";") {
			continue
		}
		m := &ClassMember{Loc: p.tok.Loc, Kind: PropInit}
		if p.isName("static") && p.methodPrefix() {
			m.Static = true
			p.next()
		}
		async, gen := false, false
		if p.isName("async") && p.methodPrefix() {
			async = true
			p.next()
		}
		if p.eat("*") {
			gen = true
		}
		if !async && !gen && (p.isName("get") || p.isName("set")) && p.methodPrefix() {
			if p.tok.Value == "get" {
				m.Kind = PropGet
			} else {
				m.Kind = PropSet
			}
			p.next()
		}
		m.Key, m.Computed = p.propertyKey()
		if !p.is("(") {
			p.fail(p.tok.Loc, "class fields are not supported")
		}
		f := &Function{Loc: m.Loc, Async: async, Generator: gen}
		p.parseFunctionRest(f)
		m.Value = f
		c.Members = append(c.Members, m)
	}
	return c
}

// ---------------------------------------------------------------------------
// Binding patterns
// ---------------------------------------------------------------------------

func (p *parser) parseBindingTarget() Pattern {
	switch {
	case p.is("["):
		return p.parseArrayBinding()
	case p.is("{"):
		return p.parseObjectBinding()
	}
	return p.ident()
}

func (p *parser) parseBindingElement() Pattern {
	loc := p.tok.Loc
	target := p.parseBindingTarget()
	if p.eat("=") {
		noIn := p.noIn
		p.noIn = false
		def := p.parseAssign()
		p.noIn = noIn
		return &AssignPattern{Loc: loc, Target: target, Default: def}
	}
	return target
}

func (p *parser) parseArrayBinding() Pattern {
	ap := &ArrayPattern{Loc: p.expect("[")}
	for !p.eat("]") {
		if p.is(",") {
			p.next()
			ap.Elems = append(ap.Elems, nil)
			continue
		}
		if p.eat("...") {
			ap.Rest = p.parseBindingTarget()
			p.expect("]")
			break
		}
		ap.Elems = append(ap.Elems, p.parseBindingElement())
		if !p.is("]") {
			p.expect(",")
		}
	}
	return ap
}

func (p *parser) parseObjectBinding() Pattern {
	op := &ObjectPattern{Loc: p.expect("{")}
	for !p.eat("}") {
		if p.eat("...") {
			op.Rest = p.ident()
			p.expect("}")
			break
		}
		loc := p.tok.Loc
		key, computed := p.propertyKey()
		prop := &PatternProp{Loc: loc, Key: key, Computed: computed}
		if p.eat(":") {
			prop.Value = p.parseBindingElement()
		} else {
			id, ok := key.(*Ident)
			if !ok || computed || IsReserved(id.Name) {
				p.fail(loc, "invalid shorthand property in pattern")
			}
			prop.Shorthand = true
			var target Pattern = &Ident{Loc: id.Loc, Name: id.Name}
			if p.eat("=") {
				target = &AssignPattern{Loc: loc, Target: target, Default: p.parseAssign()}
			}
			prop.Value = target
		}
		op.Props = append(op.Props, prop)
		if !p.is("}") {
			p.expect(",")
		}
	}
	return op
}

// toPattern reinterprets an expression parsed under the cover grammar as
// an assignment or binding target. Binding targets may not contain member
// expressions.
func (p *parser) toPattern(x Expr, binding bool) Pattern {
	switch x := x.(type) {
	case *Ident:
		if IsReserved(x.Name) {
			p.fail(x.Loc, "unexpected reserved word %q", x.Name)
		}
		return x
	case *Member:
		if binding || x.Optional {
			break
		}
		return x
	case *Assign:
		if x.Op != "=" {
			break
		}
		target := x.Target
		if binding {
			target = p.rebind(target)
		}
		return &AssignPattern{Loc: x.Loc, Target: target, Default: x.Value}
	case *ArrayLit:
		ap := &ArrayPattern{Loc: x.Loc}
		for i, e := range x.Elems {
			if e == nil {
				ap.Elems = append(ap.Elems, nil)
				continue
			}
			if s, ok := e.(*Spread); ok {
				if i != len(x.Elems)-1 {
					p.fail(s.Loc, "rest element must be last")
				}
				ap.Rest = p.toPattern(s.X, binding)
				break
			}
			ap.Elems = append(ap.Elems, p.toPattern(e, binding))
		}
		return ap
	case *ObjectLit:
		op := &ObjectPattern{Loc: x.Loc}
		for i, prop := range x.Props {
			switch {
			case prop.Kind == PropSpread:
				if i != len(x.Props)-1 {
					p.fail(prop.Loc, "rest element must be last")
				}
				op.Rest = p.toPattern(prop.Value, binding)
			case prop.Kind != PropInit || prop.Method:
				p.fail(prop.Loc, "invalid destructuring target")
			default:
				pp := &PatternProp{Loc: prop.Loc, Key: prop.Key, Computed: prop.Computed, Shorthand: prop.Shorthand}
				if prop.Shorthand {
					id := prop.Value.(*Ident)
					pp.Value = p.toPattern(id, binding)
					if prop.Init != nil {
						pp.Value = &AssignPattern{Loc: prop.Loc, Target: pp.Value, Default: prop.Init}
						prop.Init = nil
					}
				} else {
					pp.Value = p.toPattern(prop.Value, binding)
				}
				op.Props = append(op.Props, pp)
			}
		}
		return op
	}
	p.fail(x.Pos(), "invalid assignment target")
	return nil
}

// rebind validates an assignment pattern for use as a binding pattern.
func (p *parser) rebind(pat Pattern) Pattern {
	switch pat := pat.(type) {
	case *Member:
		p.fail(pat.Loc, "invalid binding target")
	case *ArrayPattern:
		for _, e := range pat.Elems {
			if e != nil {
				p.rebind(e)
			}
		}
		if pat.Rest != nil {
			p.rebind(pat.Rest)
		}
	case *ObjectPattern:
		for _, pp := range pat.Props {
			p.rebind(pp.Value)
		}
		if pat.Rest != nil {
			p.rebind(pat.Rest)
		}
	case *AssignPattern:
		p.rebind(pat.Target)
	}
	return pat
}

// toParams converts an arrow function's parenthesized list.
func (p *parser) toParams(items []Expr) []Pattern {
	params := make([]Pattern, 0, len(items))
	for i, it := range items {
		if s, ok := it.(*Spread); ok {
			if i != len(items)-1 {
				p.fail(s.Loc, "rest parameter must be last")
			}
			params = append(params, &RestElement{Loc: s.Loc, Target: p.toPattern(s.X, true)})
			continue
		}
		params = append(params, p.toPattern(it, true))
	}
	return params
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *parser) parseExpression() Expr {
	loc := p.tok.Loc
	x := p.parseAssign()
	if !p.is(",") {
		return x
	}
	seq := &Seq{Loc: loc, List: []Expr{x}}
	for p.eat(",") {
		seq.List = append(seq.List, p.parseAssign())
	}
	return seq
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

func (p *parser) parseAssign() Expr {
	if p.inGenerator && p.isName("yield") {
		return p.parseYield()
	}
	loc := p.tok.Loc
	left := p.parseConditional()
	if fl, ok := left.(*FuncLit); ok && fl.Func.Arrow {
		return left
	}
	if p.tok.Type != Punct || !assignOps[p.tok.Value] {
		return left
	}
	op := p.tok.Value
	var target Pattern
	if op == "=" {
		target = p.toPattern(left, false)
	} else {
		switch t := left.(type) {
		case *Ident:
			target = p.toPattern(t, false)
		case *Member:
			if t.Optional {
				p.fail(t.Loc, "invalid assignment target")
			}
			target = t
		default:
			p.fail(left.Pos(), "invalid assignment target")
		}
	}
	p.next()
	return &Assign{Loc: loc, Op: op, Target: target, Value: p.parseAssign()}
}

func (p *parser) parseYield() Expr {
	y := &Yield{Loc: p.tok.Loc}
	p.next()
	if p.tok.NewlineBefore || p.tok.Type == EOF {
		return y
	}
	if p.tok.Type == Punct {
		switch p.tok.Value {
		case ")", "]", "}", ",", ";", ":":
			return y
		case "*":
			y.Delegate = true
			p.next()
		}
	}
	y.X = p.parseAssign()
	return y
}

func (p *parser) parseConditional() Expr {
	loc := p.tok.Loc
	test := p.parseBinary(0)
	if fl, ok := test.(*FuncLit); ok && fl.Func.Arrow {
		return test
	}
	if !p.is("?") {
		return test
	}
	p.next()
	noIn := p.noIn
	p.noIn = false
	then := p.parseAssign()
	p.noIn = noIn
	p.expect(":")
	return &Cond{Loc: loc, Test: test, Then: then, Else: p.parseAssign()}
}

// binaryPrec returns the precedence of the current token as a binary
// operator, or 0.
func (p *parser) binaryPrec() int {
	switch p.tok.Type {
	case Punct:
		return binaryPrecedence[p.tok.Value]
	case Name:
		switch p.tok.Value {
		case "instanceof":
			return precRelational
		case "in":
			if !p.noIn {
				return precRelational
			}
		}
	}
	return 0
}

const (
	precNullish    = 3
	precOr         = 4
	precAnd        = 5
	precRelational = 10
	precExponent   = 14
)

var binaryPrecedence = map[string]int{
	"??": precNullish,
	"||": precOr,
	"&&": precAnd,
	"|":  6, "^": 7, "&": 8,
	"==": 9, "!=": 9, "===": 9, "!==": 9,
	"<": precRelational, ">": precRelational, "<=": precRelational, ">=": precRelational,
	"<<": 11, ">>": 11, ">>>": 11,
	"+": 12, "-": 12,
	"*": 13, "/": 13, "%": 13,
	"**": precExponent,
}

// parseBinary is precedence climbing over binary operators binding tighter
// than minPrec.
func (p *parser) parseBinary(minPrec int) Expr {
	x := p.parseUnary()
	if fl, ok := x.(*FuncLit); ok && fl.Func.Arrow {
		return x
	}
	for {
		prec := p.binaryPrec()
		if prec == 0 || prec <= minPrec {
			return x
		}
		op := p.tok.Value
		p.next()
		var y Expr
		if op == "**" {
			y = p.parseBinary(prec - 1)
		} else {
			y = p.parseBinary(prec)
		}
		x = &Binary{Loc: x.Pos(), Op: op, X: x, Y: y}
	}
}

func (p *parser) parseUnary() Expr {
	loc := p.tok.Loc
	switch p.tok.Type {
	case Punct:
		switch p.tok.Value {
		case "!", "~", "+", "-":
			op := p.tok.Value
			p.next()
			return &Unary{Loc: loc, Op: op, X: p.parseUnary()}
		case "++", "--":
			op := p.tok.Value
			p.next()
			x := p.parseUnary()
			p.checkSimpleTarget(x)
			return &Update{Loc: loc, Op: op, Prefix: true, X: x}
		}
	case Name:
		switch p.tok.Value {
		case "typeof", "void", "delete":
			op := p.tok.Value
			p.next()
			return &Unary{Loc: loc, Op: op, X: p.parseUnary()}
		case "await":
			if p.inAsync {
				p.next()
				return &Await{Loc: loc, X: p.parseUnary()}
			}
		}
	}
	x, arrow := p.parsePrimaryArrow()
	if arrow {
		return x
	}
	x = p.parseSubscripts(x, false)
	if (p.is("++") || p.is("--")) && !p.tok.NewlineBefore {
		p.checkSimpleTarget(x)
		op := p.tok.Value
		p.next()
		return &Update{Loc: loc, Op: op, X: x}
	}
	return x
}

func (p *parser) checkSimpleTarget(x Expr) {
	switch x := x.(type) {
	case *Ident:
		return
	case *Member:
		if !x.Optional {
			return
		}
	}
	p.fail(x.Pos(), "invalid update target")
}

func (p *parser) parseArgs() []Expr {
	p.expect("(")
	noIn := p.noIn
	p.noIn = false
	var args []Expr
	for !p.eat(")") {
		if p.is("...") {
			loc := p.tok.Loc
			p.next()
			args = append(args, &Spread{Loc: loc, X: p.parseAssign()})
		} else {
			args = append(args, p.parseAssign())
		}
		if !p.is(")") {
			p.expect(",")
		}
	}
	p.noIn = noIn
	return args
}

// parseSubscripts parses member accesses, calls and tagged templates
// following x. With noCalls set it stops before an argument list, as needed
// for the callee of new.
func (p *parser) parseSubscripts(x Expr, noCalls bool) Expr {
	chain := false
	for {
		loc := x.Pos()
		switch {
		case p.is("."):
			p.next()
			if p.tok.Type != Name {
				if p.is("#") {
					p.fail(p.tok.Loc, "private names are not supported")
				}
				p.unexpected()
			}
			x = &Member{Loc: loc, X: x, Prop: &Ident{Loc: p.tok.Loc, Name: p.tok.Value}}
			p.next()
		case p.is("?."):
			if noCalls {
				p.fail(p.tok.Loc, "optional chain in new expression")
			}
			chain = true
			p.next()
			switch {
			case p.is("("):
				x = &Call{Loc: loc, Callee: x, Args: p.parseArgs(), Optional: true}
			case p.is("["):
				p.next()
				prop := p.parseExpression()
				p.expect("]")
				x = &Member{Loc: loc, X: x, Prop: prop, Computed: true, Optional: true}
			case p.tok.Type == Name:
				x = &Member{Loc: loc, X: x, Prop: &Ident{Loc: p.tok.Loc, Name: p.tok.Value}, Optional: true}
				p.next()
			default:
				p.unexpected()
			}
		case p.is("["):
			p.next()
			noIn := p.noIn
			p.noIn = false
			prop := p.parseExpression()
			p.noIn = noIn
			p.expect("]")
			x = &Member{Loc: loc, X: x, Prop: prop, Computed: true}
		case p.is("(") && !noCalls:
			x = &Call{Loc: loc, Callee: x, Args: p.parseArgs()}
		case p.tok.Type == TemplateChunk:
			if chain {
				p.fail(p.tok.Loc, "tagged template in optional chain")
			}
			x = p.parseTemplate(x)
		default:
			return x
		}
	}
}

// parsePrimaryArrow parses a primary expression and reports whether it is
// an arrow function, which takes no subscripts.
func (p *parser) parsePrimaryArrow() (Expr, bool) {
	loc := p.tok.Loc
	if p.tok.Type == Name && !IsReserved(p.tok.Value) {
		nt := p.peek()
		if nt.Type == Punct && nt.Value == "=>" && !nt.NewlineBefore {
			f := &Function{Loc: loc, Arrow: true, Params: []Pattern{p.ident()}}
			p.parseArrowBody(f)
			return &FuncLit{Loc: loc, Func: f}, true
		}
		if p.tok.Value == "async" && !nt.NewlineBefore {
			switch {
			case nt.Type == Name && nt.Value != "function" && !IsReserved(nt.Value):
				p.next()
				f := &Function{Loc: loc, Arrow: true, Async: true, Params: []Pattern{p.ident()}}
				p.parseArrowBody(f)
				return &FuncLit{Loc: loc, Func: f}, true
			case nt.Type == Punct && nt.Value == "(":
				p.next()
				items, _ := p.parseParenItems()
				if p.is("=>") && !p.tok.NewlineBefore {
					f := &Function{Loc: loc, Arrow: true, Async: true, Params: p.toParams(items)}
					p.parseArrowBody(f)
					return &FuncLit{Loc: loc, Func: f}, true
				}
				return &Call{Loc: loc, Callee: &Ident{Loc: loc, Name: "async"}, Args: items}, false
			}
		}
	}
	if p.is("(") {
		items, trailing := p.parseParenItems()
		if p.is("=>") && !p.tok.NewlineBefore {
			f := &Function{Loc: loc, Arrow: true, Params: p.toParams(items)}
			p.parseArrowBody(f)
			return &FuncLit{Loc: loc, Func: f}, true
		}
		if len(items) == 0 || trailing {
			p.fail(loc, "unexpected %s", p.tok)
		}
		for _, it := range items {
			if s, ok := it.(*Spread); ok {
				p.fail(s.Loc, "unexpected ...")
			}
		}
		if len(items) == 1 {
			return items[0], false
		}
		return &Seq{Loc: items[0].Pos(), List: items}, false
	}
	return p.parsePrimary(), false
}

// parseParenItems reads a parenthesized list that is either an expression
// or an arrow parameter list. It reports a trailing comma.
func (p *parser) parseParenItems() ([]Expr, bool) {
	p.expect("(")
	noIn := p.noIn
	p.noIn = false
	var items []Expr
	trailing := false
	for !p.eat(")") {
		trailing = false
		if p.is("...") {
			loc := p.tok.Loc
			p.next()
			var target Expr
			switch {
			case p.is("["), p.is("{"):
				target = p.parsePrimary()
			default:
				target = p.ident()
			}
			items = append(items, &Spread{Loc: loc, X: target})
			p.expect(")")
			break
		}
		items = append(items, p.parseAssign())
		if !p.is(")") {
			p.expect(",")
			trailing = p.is(")")
		}
	}
	p.noIn = noIn
	return items, trailing
}

func (p *parser) parsePrimary() Expr {
	loc := p.tok.Loc
	switch p.tok.Type {
	case Number:
		lit := &Literal{Loc: loc, Kind: LitNumber, Raw: p.tok.Value}
		p.next()
		return lit
	case String:
		lit := &Literal{Loc: loc, Kind: LitString, Raw: p.tok.Value}
		p.next()
		return lit
	case TemplateChunk:
		return p.parseTemplate(nil)
	case Punct:
		switch p.tok.Value {
		case "[":
			return p.parseArray()
		case "{":
			return p.parseObject()
		case "(":
			x, _ := p.parsePrimaryArrow()
			return x
		case "/", "/=":
			tok, err := p.lex.rescanRegexp(p.tok)
			p.check(err)
			p.tok = tok
			lit := &Literal{Loc: loc, Kind: LitRegexp, Raw: tok.Value}
			p.next()
			return lit
		}
	case Name:
		switch p.tok.Value {
		case "this":
			p.next()
			return &This{Loc: loc}
		case "super":
			p.next()
			if !p.is("(") && !p.is(".") && !p.is("[") {
				p.fail(loc, "unexpected super")
			}
			return &Super{Loc: loc}
		case "null":
			p.next()
			return &Literal{Loc: loc, Kind: LitNull, Raw: "null"}
		case "true":
			p.next()
			return &Literal{Loc: loc, Kind: LitTrue, Raw: "true"}
		case "false":
			p.next()
			return &Literal{Loc: loc, Kind: LitFalse, Raw: "false"}
		case "function":
			p.next()
			return &FuncLit{Loc: loc, Func: p.parseFunction(loc, false, false)}
		case "async":
			if nt := p.peek(); nt.Type == Name && nt.Value == "function" && !nt.NewlineBefore {
				p.next()
				p.next()
				return &FuncLit{Loc: loc, Func: p.parseFunction(loc, true, false)}
			}
		case "class":
			return &ClassLit{Loc: loc, Class: p.parseClass(false)}
		case "new":
			return p.parseNew()
		case "import":
			p.next()
			if p.eat(".") {
				if !p.isName("meta") {
					p.unexpected()
				}
				p.next()
				return &MetaProperty{Loc: loc, Meta: "import", Prop: "meta"}
			}
			if !p.is("(") {
				p.unexpected()
			}
			return &Call{Loc: loc, Callee: &Ident{Loc: loc, Name: "import"}, Args: p.parseArgs()}
		}
		return p.ident()
	}
	p.unexpected()
	return nil
}

func (p *parser) parseNew() Expr {
	loc := p.tok.Loc
	p.next()
	if p.eat(".") {
		if !p.isName("target") || !p.inFunction {
			p.fail(loc, "unexpected new.target")
		}
		p.next()
		return &MetaProperty{Loc: loc, Meta: "new", Prop: "target"}
	}
	var callee Expr
	if p.isName("new") {
		callee = p.parseNew()
	} else {
		callee = p.parsePrimary()
	}
	callee = p.parseSubscripts(callee, true)
	n := &New{Loc: loc, Callee: callee}
	if p.is("(") {
		n.Args = p.parseArgs()
	}
	return n
}

func (p *parser) parseTemplate(tag Expr) Expr {
	t := &Template{Loc: p.tok.Loc, Tag: tag}
	if tag != nil {
		t.Loc = tag.Pos()
	}
	noIn := p.noIn
	p.noIn = false
	for {
		t.Quasis = append(t.Quasis, p.tok.Value)
		if p.tok.Tail {
			break
		}
		p.next()
		t.Exprs = append(t.Exprs, p.parseExpression())
		if !p.is("}") {
			p.fail(p.tok.Loc, "expected } in template literal, found %s", p.tok)
		}
		tok, err := p.lex.rescanTemplate(p.tok)
		p.check(err)
		p.tok = tok
	}
	p.noIn = noIn
	p.next()
	return t
}

func (p *parser) parseArray() Expr {
	a := &ArrayLit{Loc: p.expect("[")}
	noIn := p.noIn
	p.noIn = false
	for !p.eat("]") {
		if p.is(",") {
			p.next()
			a.Elems = append(a.Elems, nil)
			continue
		}
		if p.is("...") {
			loc := p.tok.Loc
			p.next()
			a.Elems = append(a.Elems, &Spread{Loc: loc, X: p.parseAssign()})
		} else {
			a.Elems = append(a.Elems, p.parseAssign())
		}
		if !p.is("]") {
			p.expect(",")
		}
	}
	p.noIn = noIn
	return a
}

func (p *parser) parseObject() Expr {
	o := &ObjectLit{Loc: p.expect("{")}
	noIn := p.noIn
	p.noIn = false
	for !p.eat("}") {
		o.Props = append(o.Props, p.parseProperty())
		if !p.is("}") {
			p.expect(",")
		}
	}
	p.noIn = noIn
	return o
}

func (p *parser) parseProperty() *Property {
	loc := p.tok.Loc
	if p.eat("...") {
		return &Property{Loc: loc, Kind: PropSpread, Value: p.parseAssign()}
	}
	prop := &Property{Loc: loc, Kind: PropInit}
	async, gen := false, false
	if p.isName("async") && p.methodPrefix() {
		async = true
		p.next()
	}
	if p.eat("*") {
		gen = true
	}
	if !async && !gen && (p.isName("get") || p.isName("set")) && p.methodPrefix() {
		if p.tok.Value == "get" {
			prop.Kind = PropGet
		} else {
			prop.Kind = PropSet
		}
		p.next()
	}
	prop.Key, prop.Computed = p.propertyKey()

	if prop.Kind != PropInit || async || gen || p.is("(") {
		f := &Function{Loc: loc, Async: async, Generator: gen}
		p.parseFunctionRest(f)
		prop.Value = &FuncLit{Loc: loc, Func: f}
		prop.Method = prop.Kind == PropInit
		return prop
	}
	if p.eat(":") {
		prop.Value = p.parseAssign()
		return prop
	}

	id, ok := prop.Key.(*Ident)
	if !ok || prop.Computed || IsReserved(id.Name) {
		p.fail(loc, "unexpected %s", p.tok)
	}
	prop.Shorthand = true
	prop.Value = &Ident{Loc: id.Loc, Name: id.Name}
	if p.is("=") {
		p.next()
		prop.Init = p.parseAssign()
	}
	return prop
}

// checkCoverInit rejects shorthand initializers ({a = 1}) left in object
// literals that were never reinterpreted as patterns.
func checkCoverInit(prog *Program) error {
	var err error
	Inspect(prog, func(n Node) bool {
		if err != nil {
			return false
		}
		if o, ok := n.(*ObjectLit); ok {
			for _, prop := range o.Props {
				if prop.Init != nil {
					err = &SyntaxError{Loc: prop.Loc, Msg: "invalid shorthand property initializer"}
					return false
				}
			}
		}
		return true
	})
	return err
}
