package js

import "strings"

// Print renders a program or statement in the canonical layout: two-space
// indentation, one statement per line, expanded object members and the
// minimal set of parentheses. Printing the result of parsing printed code
// reproduces it exactly.
func Print(n Node) string {
	return PrintIndent(n, 0)
}

// PrintIndent is Print with every line indented by level steps.
func PrintIndent(n Node, level int) string {
	p := &printer{level: level}
	switch n := n.(type) {
	case *Program:
		p.stmtList(n.Body)
	case Stmt:
		p.stmtList([]Stmt{n})
	case Expr:
		p.indent()
		p.expr(n, precSeq)
		p.w("\n")
	}
	return p.buf.String()
}

// PrintExpr renders a single expression on one logical line.
func PrintExpr(x Expr) string {
	p := &printer{}
	p.expr(x, precSeq)
	return p.buf.String()
}

// Operator precedence levels, lowest first.
const (
	precSeq     = 0
	precAssign  = 1
	precCond    = 2
	precUnary   = 15
	precUpdate  = 16
	precCall    = 17
	precNew     = 18
	precPrimary = 19
	precExpLeft = 16
)

type printer struct {
	buf   strings.Builder
	level int
	noIn  bool
}

func (p *printer) w(s string) { p.buf.WriteString(s) }

func (p *printer) indent() {
	for i := 0; i < p.level; i++ {
		p.buf.WriteString("  ")
	}
}

func (p *printer) line() {
	p.buf.WriteByte('\n')
	p.indent()
}

// sub returns a printer that shares the indentation but writes to its own
// buffer, so that output can be inspected before it is committed.
func (p *printer) sub() *printer {
	return &printer{level: p.level, noIn: p.noIn}
}

func (p *printer) stmtList(list []Stmt) {
	for _, s := range list {
		p.indent()
		p.stmt(s)
		p.w("\n")
	}
}

func (p *printer) block(list []Stmt) {
	if len(list) == 0 {
		p.w("{}")
		return
	}
	p.w("{")
	p.level++
	for _, s := range list {
		p.line()
		p.stmt(s)
	}
	p.level--
	p.line()
	p.w("}")
}

// body prints the sub-statement of a compound statement, either as a block
// on the same line or indented on the next one.
func (p *printer) body(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.w(" ")
		p.block(s.List)
	case *Empty:
		p.w(";")
	default:
		p.level++
		p.line()
		p.stmt(s)
		p.level--
	}
}

func isBlock(s Stmt) bool {
	_, ok := s.(*Block)
	return ok
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.block(s.List)
	case *Empty:
		p.w(";")
	case *Debugger:
		p.w("debugger;")
	case *VarDecl:
		p.varDecl(s)
		p.w(";")
	case *FuncDecl:
		p.function(s.Func)
	case *ClassDecl:
		p.class(s.Class)
	case *ExprStmt:
		p.exprStmt(s.X)
	case *Return:
		p.w("return")
		if s.X != nil {
			p.w(" ")
			p.expr(s.X, precSeq)
		}
		p.w(";")
	case *Throw:
		p.w("throw ")
		p.expr(s.X, precSeq)
		p.w(";")
	case *Break:
		p.w("break")
		if s.Label != "" {
			p.w(" " + s.Label)
		}
		p.w(";")
	case *Continue:
		p.w("continue")
		if s.Label != "" {
			p.w(" " + s.Label)
		}
		p.w(";")
	case *If:
		p.ifStmt(s)
	case *For:
		p.w("for (")
		switch init := s.Init.(type) {
		case *VarDecl:
			p.noIn = true
			p.varDecl(init)
			p.noIn = false
		case Expr:
			p.noIn = true
			p.expr(init, precSeq)
			p.noIn = false
		}
		p.w(";")
		if s.Test != nil {
			p.w(" ")
			p.expr(s.Test, precSeq)
		}
		p.w(";")
		if s.Update != nil {
			p.w(" ")
			p.expr(s.Update, precSeq)
		}
		p.w(")")
		p.body(s.Body)
	case *ForIn:
		p.w("for (")
		switch left := s.Left.(type) {
		case *VarDecl:
			p.varDecl(left)
		case Pattern:
			p.pattern(left)
		}
		if s.Of {
			p.w(" of ")
			p.expr(s.Right, precAssign)
		} else {
			p.w(" in ")
			p.expr(s.Right, precSeq)
		}
		p.w(")")
		p.body(s.Body)
	case *While:
		p.w("while (")
		p.expr(s.Test, precSeq)
		p.w(")")
		p.body(s.Body)
	case *DoWhile:
		p.w("do")
		p.body(s.Body)
		if isBlock(s.Body) {
			p.w(" ")
		} else {
			p.line()
		}
		p.w("while (")
		p.expr(s.Test, precSeq)
		p.w(");")
	case *Try:
		p.w("try ")
		p.block(s.Block.List)
		if s.Handler != nil {
			p.w(" catch ")
			if s.Param != nil {
				p.w("(")
				p.pattern(s.Param)
				p.w(") ")
			}
			p.block(s.Handler.List)
		}
		if s.Finally != nil {
			p.w(" finally ")
			p.block(s.Finally.List)
		}
	case *Switch:
		p.w("switch (")
		p.expr(s.Disc, precSeq)
		p.w(") {")
		p.level++
		for _, c := range s.Cases {
			p.line()
			if c.Test != nil {
				p.w("case ")
				p.expr(c.Test, precSeq)
				p.w(":")
			} else {
				p.w("default:")
			}
			p.level++
			for _, st := range c.Body {
				p.line()
				p.stmt(st)
			}
			p.level--
		}
		p.level--
		p.line()
		p.w("}")
	case *Labeled:
		p.w(s.Label + ": ")
		p.stmt(s.Body)
	case *With:
		p.w("with (")
		p.expr(s.X, precSeq)
		p.w(")")
		p.body(s.Body)
	case *Import:
		p.importDecl(s)
	case *ExportNamed:
		p.w("export {")
		for i, sp := range s.Specs {
			if i > 0 {
				p.w(",")
			}
			p.w(" " + sp.Local.Name)
			if sp.Exported != sp.Local.Name {
				p.w(" as " + exportName(sp.Exported))
			}
		}
		if len(s.Specs) > 0 {
			p.w(" ")
		}
		p.w("}")
		if s.Source != nil {
			p.w(" from " + s.Source.Raw)
		}
		p.w(";")
	case *ExportDecl:
		p.w("export ")
		p.stmt(s.Decl)
	case *ExportDefault:
		p.w("export default ")
		switch d := s.Decl.(type) {
		case *ExprStmt:
			out := p.sub()
			out.expr(d.X, precAssign)
			text := out.buf.String()
			if startsAmbiguous(text) {
				text = "(" + text + ")"
			}
			p.w(text + ";")
		default:
			p.stmt(d)
		}
	case *ExportAll:
		p.w("export *")
		if s.As != "" {
			p.w(" as " + exportName(s.As))
		}
		p.w(" from " + s.Source.Raw + ";")
	}
}

func exportName(name string) string {
	if IsIdentifierName(name) {
		return name
	}
	return Quote(name)
}

// IsIdentifierName reports whether name can be written as a bare
// identifier or property name.
func IsIdentifierName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && !isIdentStart(r) || i > 0 && !isIdentPart(r) {
			return false
		}
	}
	return true
}

func (p *printer) ifStmt(s *If) {
	p.w("if (")
	p.expr(s.Test, precSeq)
	p.w(")")
	then := s.Then
	if s.Else != nil && !isBlock(then) {
		then = &Block{Loc: then.Pos(), List: []Stmt{then}}
	}
	p.body(then)
	if s.Else == nil {
		return
	}
	if isBlock(then) {
		p.w(" ")
	} else {
		p.line()
	}
	p.w("else")
	if elif, ok := s.Else.(*If); ok {
		p.w(" ")
		p.ifStmt(elif)
		return
	}
	p.body(s.Else)
}

// startsAmbiguous reports whether text would be read as a declaration or
// block when it begins an expression statement.
func startsAmbiguous(text string) bool {
	if strings.HasPrefix(text, "{") {
		return true
	}
	for _, kw := range []string{"function", "class", "async function", "let["} {
		if strings.HasPrefix(text, kw) {
			rest := text[len(kw):]
			if kw == "let[" || rest == "" {
				return true
			}
			if r := rune(rest[0]); !isIdentPart(r) {
				return true
			}
		}
	}
	return false
}

func (p *printer) exprStmt(x Expr) {
	out := p.sub()
	out.expr(x, precSeq)
	text := out.buf.String()
	if startsAmbiguous(text) {
		text = "(" + text + ")"
	}
	p.w(text + ";")
}

func (p *printer) varDecl(d *VarDecl) {
	p.w(d.Kind + " ")
	for i, dl := range d.List {
		if i > 0 {
			p.w(", ")
		}
		p.pattern(dl.Target)
		if dl.Init != nil {
			p.w(" = ")
			p.expr(dl.Init, precAssign)
		}
	}
}

func (p *printer) importDecl(s *Import) {
	p.w("import ")
	parts := 0
	if s.Default != nil {
		p.w(s.Default.Name)
		parts++
	}
	if s.Namespace != nil {
		if parts > 0 {
			p.w(", ")
		}
		p.w("* as " + s.Namespace.Name)
		parts++
	}
	if len(s.Specs) > 0 {
		if parts > 0 {
			p.w(", ")
		}
		p.w("{")
		for i, sp := range s.Specs {
			if i > 0 {
				p.w(",")
			}
			p.w(" ")
			if sp.Imported != sp.Local.Name {
				p.w(exportName(sp.Imported) + " as ")
			}
			p.w(sp.Local.Name)
		}
		p.w(" }")
		parts++
	}
	if parts > 0 {
		p.w(" from ")
	}
	p.w(s.Source.Raw + ";")
}

func (p *printer) function(f *Function) {
	if f.Arrow {
		p.arrow(f)
		return
	}
	if f.Async {
		p.w("async ")
	}
	p.w("function")
	if f.Generator {
		p.w("*")
	}
	if f.Name != nil {
		p.w(" " + f.Name.Name)
	} else if !f.Generator {
		p.w(" ")
	}
	p.params(f.Params)
	p.w(" ")
	p.funcBody(f.Body)
}

func (p *printer) funcBody(b *Block) {
	saved := p.noIn
	p.noIn = false
	if b == nil {
		p.w("{}")
	} else {
		p.block(b.List)
	}
	p.noIn = saved
}

func (p *printer) params(params []Pattern) {
	p.w("(")
	for i, prm := range params {
		if i > 0 {
			p.w(", ")
		}
		p.pattern(prm)
	}
	p.w(")")
}

func (p *printer) arrow(f *Function) {
	if f.Async {
		p.w("async ")
	}
	p.params(f.Params)
	p.w(" => ")
	if f.Body != nil {
		p.funcBody(f.Body)
		return
	}
	out := p.sub()
	out.noIn = false
	out.expr(f.ExprBody, precAssign)
	text := out.buf.String()
	if strings.HasPrefix(text, "{") {
		text = "(" + text + ")"
	}
	p.w(text)
}

func (p *printer) class(c *Class) {
	p.w("class")
	if c.Name != nil {
		p.w(" " + c.Name.Name)
	}
	if c.Super != nil {
		p.w(" extends ")
		p.expr(c.Super, precCall)
	}
	p.w(" ")
	if len(c.Members) == 0 {
		p.w("{}")
		return
	}
	p.w("{")
	p.level++
	for _, m := range c.Members {
		p.line()
		if m.Static {
			p.w("static ")
		}
		switch m.Kind {
		case PropGet:
			p.w("get ")
		case PropSet:
			p.w("set ")
		}
		if m.Value.Async {
			p.w("async ")
		}
		if m.Value.Generator {
			p.w("*")
		}
		p.propKey(m.Key, m.Computed)
		p.params(m.Value.Params)
		p.w(" ")
		p.funcBody(m.Value.Body)
	}
	p.level--
	p.line()
	p.w("}")
}

func (p *printer) propKey(key Expr, computed bool) {
	if computed {
		p.w("[")
		p.expr(key, precAssign)
		p.w("]")
		return
	}
	switch k := key.(type) {
	case *Ident:
		p.w(k.Name)
	case *Literal:
		p.w(k.Raw)
	default:
		p.expr(key, precPrimary)
	}
}

func (p *printer) pattern(pat Pattern) {
	switch pat := pat.(type) {
	case *Ident:
		p.w(pat.Name)
	case *Member:
		p.expr(pat, precCall)
	case *AssignPattern:
		p.pattern(pat.Target)
		p.w(" = ")
		p.expr(pat.Default, precAssign)
	case *RestElement:
		p.w("...")
		p.pattern(pat.Target)
	case *ArrayPattern:
		p.w("[")
		for i, e := range pat.Elems {
			if i > 0 {
				p.w(", ")
			}
			if e != nil {
				p.pattern(e)
			}
		}
		if n := len(pat.Elems); n > 0 && pat.Elems[n-1] == nil && pat.Rest == nil {
			p.w(",")
		}
		if pat.Rest != nil {
			if len(pat.Elems) > 0 {
				p.w(", ")
			}
			p.w("...")
			p.pattern(pat.Rest)
		}
		p.w("]")
	case *ObjectPattern:
		if len(pat.Props) == 0 && pat.Rest == nil {
			p.w("{}")
			return
		}
		p.w("{ ")
		for i, pp := range pat.Props {
			if i > 0 {
				p.w(", ")
			}
			p.propKey(pp.Key, pp.Computed)
			p.w(": ")
			p.pattern(pp.Value)
		}
		if pat.Rest != nil {
			if len(pat.Props) > 0 {
				p.w(", ")
			}
			p.w("...")
			p.pattern(pat.Rest)
		}
		p.w(" }")
	}
}

// precedence returns the binding strength of x.
func precedence(x Expr) int {
	switch x := x.(type) {
	case *Seq:
		return precSeq
	case *Assign, *Yield:
		return precAssign
	case *FuncLit:
		if x.Func.Arrow {
			return precAssign
		}
		return precPrimary
	case *Cond:
		return precCond
	case *Binary:
		if x.Op == "in" || x.Op == "instanceof" {
			return precRelational
		}
		return binaryPrecedence[x.Op]
	case *Unary, *Await:
		return precUnary
	case *Update:
		if x.Prefix {
			return precUnary
		}
		return precUpdate
	case *Call, *Member:
		return precCall
	case *New:
		return precNew
	case *Template:
		if x.Tag != nil {
			return precCall
		}
		return precPrimary
	case *Spread:
		return precAssign
	}
	return precPrimary
}

func (p *printer) expr(x Expr, minPrec int) {
	wrap := precedence(x) < minPrec
	if b, ok := x.(*Binary); ok && b.Op == "in" && p.noIn {
		wrap = true
	}
	if wrap {
		p.w("(")
		saved := p.noIn
		p.noIn = false
		p.exprInner(x)
		p.noIn = saved
		p.w(")")
		return
	}
	p.exprInner(x)
}

func (p *printer) exprInner(x Expr) {
	switch x := x.(type) {
	case *Ident:
		p.w(x.Name)
	case *Literal:
		p.w(x.Raw)
	case *This:
		p.w("this")
	case *Super:
		p.w("super")
	case *MetaProperty:
		p.w(x.Meta + "." + x.Prop)
	case *Template:
		if x.Tag != nil {
			p.expr(x.Tag, precCall)
		}
		p.w("`")
		for i, q := range x.Quasis {
			p.w(q)
			if i < len(x.Exprs) {
				p.w("${")
				saved := p.noIn
				p.noIn = false
				p.expr(x.Exprs[i], precSeq)
				p.noIn = saved
				p.w("}")
			}
		}
		p.w("`")
	case *ArrayLit:
		p.w("[")
		for i, e := range x.Elems {
			if i > 0 {
				p.w(", ")
			}
			if e != nil {
				p.expr(e, precAssign)
			}
		}
		if n := len(x.Elems); n > 0 && x.Elems[n-1] == nil {
			p.w(",")
		}
		p.w("]")
	case *ObjectLit:
		p.object(x)
	case *FuncLit:
		p.function(x.Func)
	case *ClassLit:
		p.class(x.Class)
	case *Unary:
		p.w(x.Op)
		if len(x.Op) > 1 {
			p.w(" ")
		} else if needsUnarySpace(x.Op, x.X) {
			p.w(" ")
		}
		p.expr(x.X, precUnary)
	case *Update:
		if x.Prefix {
			p.w(x.Op)
			p.expr(x.X, precUnary)
		} else {
			p.expr(x.X, precUpdate+1)
			p.w(x.Op)
		}
	case *Binary:
		p.binary(x)
	case *Assign:
		p.pattern(x.Target)
		p.w(" " + x.Op + " ")
		p.expr(x.Value, precAssign)
	case *Cond:
		p.expr(x.Test, precCond+1)
		p.w(" ? ")
		saved := p.noIn
		p.noIn = false
		p.expr(x.Then, precAssign)
		p.noIn = saved
		p.w(" : ")
		p.expr(x.Else, precAssign)
	case *Call:
		p.callee(x.Callee)
		if x.Optional {
			p.w("?.")
		}
		p.args(x.Args)
	case *New:
		p.w("new ")
		if hasCall(x.Callee) {
			p.w("(")
			p.expr(x.Callee, precSeq)
			p.w(")")
		} else {
			p.expr(x.Callee, precCall)
		}
		p.args(x.Args)
	case *Member:
		p.callee(x.X)
		if x.Computed {
			if x.Optional {
				p.w("?.")
			}
			p.w("[")
			saved := p.noIn
			p.noIn = false
			p.expr(x.Prop, precSeq)
			p.noIn = saved
			p.w("]")
		} else {
			if x.Optional {
				p.w("?.")
			} else {
				p.w(".")
			}
			p.w(x.Prop.(*Ident).Name)
		}
	case *Seq:
		for i, e := range x.List {
			if i > 0 {
				p.w(", ")
			}
			p.expr(e, precAssign)
		}
	case *Spread:
		p.w("...")
		p.expr(x.X, precAssign)
	case *Yield:
		p.w("yield")
		if x.Delegate {
			p.w("*")
		}
		if x.X != nil {
			p.w(" ")
			p.expr(x.X, precAssign)
		}
	case *Await:
		p.w("await ")
		p.expr(x.X, precUnary)
	}
}

// callee prints the object of a member access or the callee of a call.
// Function expressions and numeric literals are parenthesized there.
func (p *printer) callee(x Expr) {
	switch c := x.(type) {
	case *FuncLit, *ClassLit:
		p.w("(")
		p.exprInner(c)
		p.w(")")
		return
	case *Literal:
		if c.Kind == LitNumber {
			p.w("(" + c.Raw + ")")
			return
		}
	}
	p.expr(x, precCall)
}

func (p *printer) args(args []Expr) {
	p.w("(")
	saved := p.noIn
	p.noIn = false
	for i, a := range args {
		if i > 0 {
			p.w(", ")
		}
		p.expr(a, precAssign)
	}
	p.noIn = saved
	p.w(")")
}

// hasCall reports whether the member chain of a new callee contains a call,
// which would otherwise bind the argument list.
func hasCall(x Expr) bool {
	for {
		switch c := x.(type) {
		case *Call:
			return true
		case *Member:
			x = c.X
		case *Template:
			if c.Tag == nil {
				return false
			}
			x = c.Tag
		default:
			return false
		}
	}
}

func needsUnarySpace(op string, x Expr) bool {
	switch x := x.(type) {
	case *Unary:
		return x.Op == op
	case *Update:
		return x.Prefix && x.Op[0] == op[0]
	}
	return false
}

func (p *printer) binary(x *Binary) {
	prec := precedence(x)
	left, right := prec, prec+1
	if x.Op == "**" {
		left, right = precExpLeft, precExponent
	}
	p.operand(x.X, x.Op, left)
	p.w(" " + x.Op + " ")
	p.operand(x.Y, x.Op, right)
}

// operand prints a binary operand, adding the parentheses that ?? requires
// when mixed with || and &&.
func (p *printer) operand(x Expr, op string, minPrec int) {
	if b, ok := x.(*Binary); ok {
		mixed := op == "??" && (b.Op == "||" || b.Op == "&&") ||
			(op == "||" || op == "&&") && b.Op == "??"
		if mixed {
			minPrec = precPrimary
		}
	}
	p.expr(x, minPrec)
}

func (p *printer) object(o *ObjectLit) {
	if len(o.Props) == 0 {
		p.w("{}")
		return
	}
	saved := p.noIn
	p.noIn = false
	p.w("{")
	p.level++
	for i, prop := range o.Props {
		p.line()
		switch prop.Kind {
		case PropSpread:
			p.w("...")
			p.expr(prop.Value, precAssign)
		case PropGet, PropSet:
			if prop.Kind == PropGet {
				p.w("get ")
			} else {
				p.w("set ")
			}
			p.propKey(prop.Key, prop.Computed)
			f := prop.Value.(*FuncLit).Func
			p.params(f.Params)
			p.w(" ")
			p.funcBody(f.Body)
		default:
			p.propKey(prop.Key, prop.Computed)
			p.w(": ")
			p.expr(prop.Value, precAssign)
		}
		if i < len(o.Props)-1 {
			p.w(",")
		}
	}
	p.level--
	p.line()
	p.w("}")
	p.noIn = saved
}
