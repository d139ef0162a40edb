package js

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Loc
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by statements and declarations.
type Stmt interface {
	Node
	stmtNode()
}

// Pattern is implemented by binding and assignment targets: identifiers,
// member expressions, array and object patterns, defaults and rest
// elements.
type Pattern interface {
	Node
	patternNode()
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Ident is a reference to or declaration of a name.
type Ident struct {
	Loc
	Name string
}

// LitKind distinguishes literal tokens.
type LitKind int

const (
	LitNumber LitKind = iota
	LitString
	LitRegexp
	LitTrue
	LitFalse
	LitNull
)

// Literal is a primitive literal. Raw keeps the exact source spelling,
// quotes included for strings.
type Literal struct {
	Loc
	Kind LitKind
	Raw  string
}

// This is the "this" keyword.
type This struct{ Loc }

// Super is the "super" keyword.
type Super struct{ Loc }

// MetaProperty is new.target or import.meta.
type MetaProperty struct {
	Loc
	Meta, Prop string
}

// Template is a template literal, optionally tagged. Quasis holds the raw
// text chunks; len(Quasis) == len(Exprs)+1.
type Template struct {
	Loc
	Tag    Expr
	Quasis []string
	Exprs  []Expr
}

// ArrayLit is an array literal. Nil elements are holes.
type ArrayLit struct {
	Loc
	Elems []Expr
}

// PropKind distinguishes object literal members.
type PropKind int

const (
	PropInit PropKind = iota
	PropGet
	PropSet
	PropSpread
)

// Property is a member of an object literal.
//
// Key is an *Ident for plain names, a *Literal for string and number keys,
// or any expression when Computed is set. For PropSpread only Value is set.
// Shorthand properties ({a}) keep a separate Value identifier so that the
// reference can be rewritten independently of the key.
type Property struct {
	Loc
	Kind      PropKind
	Key       Expr
	Computed  bool
	Value     Expr
	Shorthand bool
	Method    bool

	// Init is the default of a shorthand cover initializer ({a = 1}); it is
	// only legal when the literal is reinterpreted as a pattern.
	Init Expr
}

// ObjectLit is an object literal.
type ObjectLit struct {
	Loc
	Props []*Property
}

// Function is shared by declarations, expressions, arrows, methods and
// accessors.
type Function struct {
	Loc
	Name      *Ident
	Params    []Pattern
	Body      *Block
	Arrow     bool
	Async     bool
	Generator bool

	// ExprBody is the concise body of an arrow function (x => x + 1). When
	// set, Body is nil.
	ExprBody Expr
}

// FuncLit is a function or arrow function expression.
type FuncLit struct {
	Loc
	Func *Function
}

// ClassMember is a method, accessor or constructor.
type ClassMember struct {
	Loc
	Kind     PropKind // PropInit for methods, PropGet, PropSet
	Static   bool
	Key      Expr
	Computed bool
	Value    *Function
}

// Class is shared by class declarations and expressions.
type Class struct {
	Loc
	Name    *Ident
	Super   Expr
	Members []*ClassMember
}

// ClassLit is a class expression.
type ClassLit struct {
	Loc
	Class *Class
}

// Unary is a prefix operator: ! ~ + - typeof void delete.
type Unary struct {
	Loc
	Op string
	X  Expr
}

// Update is ++ or --, prefix or postfix.
type Update struct {
	Loc
	Op     string
	Prefix bool
	X      Expr
}

// Binary covers arithmetic, comparison and logical operators.
type Binary struct {
	Loc
	Op   string
	X, Y Expr
}

// Assign is an assignment; Target is a pattern for "=" and a simple
// target (identifier or member) for compound operators.
type Assign struct {
	Loc
	Op     string
	Target Pattern
	Value  Expr
}

// Cond is the conditional operator.
type Cond struct {
	Loc
	Test, Then, Else Expr
}

// Call is a function call.
type Call struct {
	Loc
	Callee   Expr
	Args     []Expr
	Optional bool
}

// New is a constructor call.
type New struct {
	Loc
	Callee Expr
	Args   []Expr
}

// Member is a property access. Prop is an *Ident for dotted access.
type Member struct {
	Loc
	X        Expr
	Prop     Expr
	Computed bool
	Optional bool
}

// Seq is the comma operator.
type Seq struct {
	Loc
	List []Expr
}

// Spread is "...x" in arrays, calls and object literals.
type Spread struct {
	Loc
	X Expr
}

// Yield is a yield expression.
type Yield struct {
	Loc
	X        Expr
	Delegate bool
}

// Await is an await expression.
type Await struct {
	Loc
	X Expr
}

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

// ArrayPattern is [a, , b = 1, ...rest]. Nil elements are holes.
type ArrayPattern struct {
	Loc
	Elems []Pattern
	Rest  Pattern
}

// PatternProp is one entry of an object pattern.
type PatternProp struct {
	Loc
	Key       Expr
	Computed  bool
	Value     Pattern
	Shorthand bool
}

// ObjectPattern is {a, b: c, ...rest}.
type ObjectPattern struct {
	Loc
	Props []*PatternProp
	Rest  Pattern
}

// AssignPattern is a target with a default value.
type AssignPattern struct {
	Loc
	Target  Pattern
	Default Expr
}

// RestElement is "...x" in parameter lists.
type RestElement struct {
	Loc
	Target Pattern
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// Declarator is one binding of a variable declaration.
type Declarator struct {
	Loc
	Target Pattern
	Init   Expr
}

// VarDecl is a var, let or const declaration.
type VarDecl struct {
	Loc
	Kind string
	List []*Declarator
}

// FuncDecl is a function declaration.
type FuncDecl struct {
	Loc
	Func *Function
}

// ClassDecl is a class declaration.
type ClassDecl struct {
	Loc
	Class *Class
}

// ExprStmt is an expression statement.
type ExprStmt struct {
	Loc
	X Expr
}

// Block is a braced statement list.
type Block struct {
	Loc
	List []Stmt
}

// Empty is a lone semicolon.
type Empty struct{ Loc }

// Debugger is the debugger statement.
type Debugger struct{ Loc }

// Return is a return statement.
type Return struct {
	Loc
	X Expr
}

// If is an if statement.
type If struct {
	Loc
	Test Expr
	Then Stmt
	Else Stmt
}

// For is a C-style for loop. Init is a *VarDecl, an Expr or nil.
type For struct {
	Loc
	Init   Node
	Test   Expr
	Update Expr
	Body   Stmt
}

// ForIn is for-in or, with Of set, for-of. Left is a *VarDecl with a
// single declarator without initializer, or a Pattern.
type ForIn struct {
	Loc
	Left  Node
	Right Expr
	Body  Stmt
	Of    bool
}

// While is a while loop.
type While struct {
	Loc
	Test Expr
	Body Stmt
}

// DoWhile is a do-while loop.
type DoWhile struct {
	Loc
	Body Stmt
	Test Expr
}

// Break is a break statement.
type Break struct {
	Loc
	Label string
}

// Continue is a continue statement.
type Continue struct {
	Loc
	Label string
}

// Throw is a throw statement.
type Throw struct {
	Loc
	X Expr
}

// Try is a try statement. Handler is nil without a catch clause; Param is
// nil for an optional catch binding.
type Try struct {
	Loc
	Block   *Block
	Param   Pattern
	Handler *Block
	Finally *Block
}

// Case is one clause of a switch; Test is nil for default.
type Case struct {
	Loc
	Test Expr
	Body []Stmt
}

// Switch is a switch statement.
type Switch struct {
	Loc
	Disc  Expr
	Cases []*Case
}

// Labeled is a labeled statement.
type Labeled struct {
	Loc
	Label string
	Body  Stmt
}

// With is a with statement.
type With struct {
	Loc
	X    Expr
	Body Stmt
}

// ImportSpec is one named import: {Imported as Local}.
type ImportSpec struct {
	Loc
	Imported string
	Local    *Ident
}

// Import is an import declaration. Source keeps its quotes.
type Import struct {
	Loc
	Default   *Ident
	Namespace *Ident
	Specs     []*ImportSpec
	Source    *Literal
}

// ExportSpec is one entry of an export list: {Local as Exported}.
type ExportSpec struct {
	Loc
	Local    *Ident
	Exported string
}

// ExportNamed is "export { ... }" with an optional "from" source.
type ExportNamed struct {
	Loc
	Specs  []*ExportSpec
	Source *Literal
}

// ExportDecl is "export" followed by a declaration.
type ExportDecl struct {
	Loc
	Decl Stmt
}

// ExportDefault is "export default". Decl is a *FuncDecl, *ClassDecl or
// *ExprStmt.
type ExportDefault struct {
	Loc
	Decl Stmt
}

// ExportAll is "export * from" or "export * as ns from".
type ExportAll struct {
	Loc
	As     string
	Source *Literal
}

// Program is a parsed source file.
type Program struct {
	Loc
	Body []Stmt
}

func (*Ident) exprNode()        {}
func (*Literal) exprNode()      {}
func (*This) exprNode()         {}
func (*Super) exprNode()        {}
func (*MetaProperty) exprNode() {}
func (*Template) exprNode()     {}
func (*ArrayLit) exprNode()     {}
func (*ObjectLit) exprNode()    {}
func (*FuncLit) exprNode()      {}
func (*ClassLit) exprNode()     {}
func (*Unary) exprNode()        {}
func (*Update) exprNode()       {}
func (*Binary) exprNode()       {}
func (*Assign) exprNode()       {}
func (*Cond) exprNode()         {}
func (*Call) exprNode()         {}
func (*New) exprNode()          {}
func (*Member) exprNode()       {}
func (*Seq) exprNode()          {}
func (*Spread) exprNode()       {}
func (*Yield) exprNode()        {}
func (*Await) exprNode()        {}

func (*Ident) patternNode()         {}
func (*Member) patternNode()        {}
func (*ArrayPattern) patternNode()  {}
func (*ObjectPattern) patternNode() {}
func (*AssignPattern) patternNode() {}
func (*RestElement) patternNode()   {}

func (*VarDecl) stmtNode()       {}
func (*FuncDecl) stmtNode()      {}
func (*ClassDecl) stmtNode()     {}
func (*ExprStmt) stmtNode()      {}
func (*Block) stmtNode()         {}
func (*Empty) stmtNode()         {}
func (*Debugger) stmtNode()      {}
func (*Return) stmtNode()        {}
func (*If) stmtNode()            {}
func (*For) stmtNode()           {}
func (*ForIn) stmtNode()         {}
func (*While) stmtNode()         {}
func (*DoWhile) stmtNode()       {}
func (*Break) stmtNode()         {}
func (*Continue) stmtNode()      {}
func (*Throw) stmtNode()         {}
func (*Try) stmtNode()           {}
func (*Switch) stmtNode()        {}
func (*Labeled) stmtNode()       {}
func (*With) stmtNode()          {}
func (*Import) stmtNode()        {}
func (*ExportNamed) stmtNode()   {}
func (*ExportDecl) stmtNode()    {}
func (*ExportDefault) stmtNode() {}
func (*ExportAll) stmtNode()     {}

// IsModule reports whether the program uses import or export syntax.
func (p *Program) IsModule() bool {
	for _, s := range p.Body {
		switch s.(type) {
		case *Import, *ExportNamed, *ExportDecl, *ExportDefault, *ExportAll:
			return true
		}
	}
	return false
}

// StringValue decodes a string literal's raw spelling. It handles the
// escapes that matter for module specifiers and property names; unknown
// escapes yield the escaped character itself.
func StringValue(raw string) string {
	if len(raw) < 2 {
		return raw
	}
	body := raw[1 : len(raw)-1]
	out := make([]rune, 0, len(body))
	rs := []rune(body)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r != '\\' || i+1 >= len(rs) {
			out = append(out, r)
			continue
		}
		i++
		switch rs[i] {
		case 'n':
			out = append(out, '\n')
		case 't':
			out = append(out, '\t')
		case 'r':
			out = append(out, '\r')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '0':
			out = append(out, 0)
		case '\r':
			if i+1 < len(rs) && rs[i+1] == '\n' {
				i++
			}
		case '\n', '\u2028', '\u2029':
			// line continuation
		case 'x':
			if i+2 < len(rs) {
				if v, ok := parseHex(string(rs[i+1 : i+3])); ok {
					out = append(out, rune(v))
					i += 2
					continue
				}
			}
			out = append(out, 'x')
		case 'u':
			if i+1 < len(rs) && rs[i+1] == '{' {
				end := i + 2
				for end < len(rs) && rs[end] != '}' {
					end++
				}
				if end < len(rs) {
					if v, ok := parseHex(string(rs[i+2 : end])); ok && end > i+2 && v <= 0x10ffff {
						out = append(out, rune(v))
						i = end
						continue
					}
				}
			}
			if i+4 < len(rs) {
				if v, ok := parseHex(string(rs[i+1 : i+5])); ok {
					r := rune(v)
					i += 4
					if utf16.IsSurrogate(r) && i+6 < len(rs) && rs[i+1] == '\\' && rs[i+2] == 'u' {
						if lo, ok := parseHex(string(rs[i+3 : i+7])); ok {
							if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
								r = pair
								i += 6
							}
						}
					}
					out = append(out, r)
					continue
				}
			}
			out = append(out, 'u')
		default:
			out = append(out, rs[i])
		}
	}
	return string(out)
}

func parseHex(s string) (int, bool) {
	v := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v = v*16 + int(c-'0')
		case c >= 'a' && c <= 'f':
			v = v*16 + int(c-'a'+10)
		case c >= 'A' && c <= 'F':
			v = v*16 + int(c-'A'+10)
		default:
			return 0, false
		}
	}
	return v, true
}

// Quote returns s as a double-quoted JavaScript string literal that only
// uses escapes understood by ES3 engines.
func Quote(s string) string {
	buf := make([]byte, 0, len(s)+2)
	buf = append(buf, '"')
	for _, r := range s {
		switch r {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\u2028':
			buf = append(buf, `\u2028`...)
		case '\u2029':
			buf = append(buf, `\u2029`...)
		default:
			if r < 0x20 {
				buf = append(buf, []byte(hex4(r))...)
				continue
			}
			buf = append(buf, string(r)...)
		}
	}
	buf = append(buf, '"')
	return string(buf)
}

func hex4(r rune) string {
	const digits = "0123456789abcdef"
	return string([]byte{'\\', 'u',
		digits[(r>>12)&0xf], digits[(r>>8)&0xf], digits[(r>>4)&0xf], digits[r&0xf]})
}

// TemplateValue returns the cooked text of a raw template chunk.
func TemplateValue(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return StringValue("`" + raw + "`")
}
