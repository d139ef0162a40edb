package js

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	Name          // identifier or keyword
	Number        // numeric literal
	String        // string literal, quotes included
	TemplateChunk // template chunk, see Token.Tail
	Regexp        // regular expression literal, slashes and flags included
	Punct         // operator or punctuator
)

var tokenNames = map[TokenType]string{
	EOF:           "EOF",
	Name:          "name",
	Number:        "number",
	String:        "string",
	TemplateChunk: "template",
	Regexp:        "regexp",
	Punct:         "punctuator",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical unit.
//
// For TemplateChunk tokens Value holds the raw text between the delimiters and
// Tail reports whether the chunk closes the template (ends with a backtick
// rather than "${").
type Token struct {
	Type  TokenType
	Value string
	Loc   Loc

	// NewlineBefore is set when a line terminator separates this token from
	// the previous one. It drives automatic semicolon insertion.
	NewlineBefore bool
	Tail          bool

	start, end int
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Value)
}

// Loc is a 1-based source position.
type Loc struct {
	Line int
	Col  int
}

// Pos returns the location itself so that every node embedding Loc
// satisfies Node.
func (l Loc) Pos() Loc { return l }

func (l Loc) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Col) }

// reserved words can never be used as binding or reference identifiers.
var reserved = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "export": true, "extends": true, "finally": true, "for": true,
	"function": true, "if": true, "import": true, "in": true, "instanceof": true,
	"new": true, "return": true, "super": true, "switch": true, "this": true,
	"throw": true, "try": true, "typeof": true, "var": true, "void": true,
	"while": true, "with": true, "null": true, "true": true, "false": true,
	"enum": true,
}

// IsReserved reports whether name is a reserved word.
func IsReserved(name string) bool { return reserved[name] }

// punctuators ordered longest first for maximal munch.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "**", "<<", ">>",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@", "#",
}
