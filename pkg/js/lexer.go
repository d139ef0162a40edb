package js

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError reports source text the parser cannot accept.
type SyntaxError struct {
	Loc Loc
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Loc.Line, e.Loc.Col, e.Msg)
}

// lexer holds all mutable state for a single scanning pass over src.
// Tokens are produced on demand because whether "/" starts a regular
// expression, and where a template literal resumes after "}", is only known
// to the parser.
type lexer struct {
	src       string
	pos       int // byte offset of the next unread character
	line      int // current 1-based line
	lineStart int // byte offset where the current line starts
}

// lexState is a snapshot used for speculative scanning.
type lexState struct {
	pos, line, lineStart int
}

func newLexer(src string) *lexer {
	l := &lexer{src: src, line: 1}
	if strings.HasPrefix(src, "#!") {
		for l.pos < len(src) && src[l.pos] != '\n' {
			l.pos++
		}
	}
	return l
}

func (l *lexer) save() lexState {
	return lexState{pos: l.pos, line: l.line, lineStart: l.lineStart}
}

func (l *lexer) restore(s lexState) {
	l.pos, l.line, l.lineStart = s.pos, s.line, s.lineStart
}

func (l *lexer) loc() Loc {
	return Loc{Line: l.line, Col: l.pos - l.lineStart + 1}
}

func (l *lexer) errorf(loc Loc, format string, args ...any) error {
	return &SyntaxError{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// peekRune decodes the rune at offset off from the current position.
func (l *lexer) peekRune(off int) (rune, int) {
	if l.pos+off >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.pos+off:])
}

func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == '\u2028' || r == '\u2029'
}

func isIdentStart(r rune) bool {
	return r == '$' || r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r) || r == '\u200c' || r == '\u200d' ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// newline consumes one line terminator (CRLF counts once).
func (l *lexer) newline(r rune, size int) {
	l.pos += size
	if r == '\r' && l.pos < len(l.src) && l.src[l.pos] == '\n' {
		l.pos++
	}
	l.line++
	l.lineStart = l.pos
}

// skipSpace discards whitespace and comments and reports whether a line
// terminator was crossed.
func (l *lexer) skipSpace() (bool, error) {
	nl := false
	for l.pos < len(l.src) {
		r, size := l.peekRune(0)
		switch {
		case isLineTerminator(r):
			l.newline(r, size)
			nl = true
		case r == ' ' || r == '\t' || r == '\v' || r == '\f' || r == '\u00a0' || r == '\ufeff' || unicode.Is(unicode.Zs, r):
			l.pos += size
		case r == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) {
				r, size := l.peekRune(0)
				if isLineTerminator(r) {
					break
				}
				l.pos += size
			}
		case r == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			start := l.loc()
			l.pos += 2
			closed := false
			for l.pos < len(l.src) {
				if l.src[l.pos] == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/' {
					l.pos += 2
					closed = true
					break
				}
				r, size := l.peekRune(0)
				if isLineTerminator(r) {
					l.newline(r, size)
					nl = true
					continue
				}
				l.pos += size
			}
			if !closed {
				return nl, l.errorf(start, "unterminated comment")
			}
		default:
			return nl, nil
		}
	}
	return nl, nil
}

// next scans the next token.
func (l *lexer) next() (Token, error) {
	nl, err := l.skipSpace()
	if err != nil {
		return Token{}, err
	}
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	tok.NewlineBefore = nl
	return tok, nil
}

func (l *lexer) scan() (Token, error) {
	loc := l.loc()
	start := l.pos
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Loc: loc, start: start, end: start}, nil
	}

	r, _ := l.peekRune(0)
	c := l.src[l.pos]
	switch {
	case isIdentStart(r):
		return l.scanName(loc), nil
	case r == '\\':
		return Token{}, l.errorf(loc, "unicode escapes in identifiers are not supported")
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.scanNumber(loc)
	case c == '\'' || c == '"':
		return l.scanString(loc)
	case c == '`':
		l.pos++
		return l.scanTemplate(loc, start)
	}

	for _, p := range punctuators {
		if strings.HasPrefix(l.src[l.pos:], p) {
			// "?." followed by a digit is a conditional, as in a?.5:b
			if p == "?." && l.pos+2 < len(l.src) && isDigit(l.src[l.pos+2]) {
				continue
			}
			l.pos += len(p)
			return Token{Type: Punct, Value: p, Loc: loc, start: start, end: l.pos}, nil
		}
	}
	return Token{}, l.errorf(loc, "unexpected character %q", r)
}

func (l *lexer) scanName(loc Loc) Token {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := l.peekRune(0)
		if !isIdentPart(r) {
			break
		}
		l.pos += size
	}
	return Token{Type: Name, Value: l.src[start:l.pos], Loc: loc, start: start, end: l.pos}
}

func (l *lexer) scanDigits(valid func(byte) bool) int {
	n := 0
	for l.pos < len(l.src) && valid(l.src[l.pos]) {
		l.pos++
		n++
	}
	return n
}

func (l *lexer) scanNumber(loc Loc) (Token, error) {
	start := l.pos
	c := l.src[l.pos]
	if c == '0' && l.pos+1 < len(l.src) {
		var valid func(byte) bool
		switch l.src[l.pos+1] {
		case 'x', 'X':
			valid = isHexDigit
		case 'o', 'O':
			valid = func(b byte) bool { return b >= '0' && b <= '7' }
		case 'b', 'B':
			valid = func(b byte) bool { return b == '0' || b == '1' }
		}
		if valid != nil {
			l.pos += 2
			if l.scanDigits(valid) == 0 {
				return Token{}, l.errorf(loc, "malformed number literal")
			}
			return l.finishNumber(loc, start)
		}
	}

	l.scanDigits(isDigit)
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		l.scanDigits(isDigit)
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.scanDigits(isDigit) == 0 {
			return Token{}, l.errorf(loc, "malformed exponent")
		}
	}
	return l.finishNumber(loc, start)
}

func (l *lexer) finishNumber(loc Loc, start int) (Token, error) {
	if l.pos < len(l.src) && l.src[l.pos] == 'n' {
		l.pos++
	}
	if l.pos < len(l.src) {
		if r, _ := l.peekRune(0); isIdentStart(r) || isDigit(l.src[l.pos]) {
			return Token{}, l.errorf(loc, "identifier directly after number")
		}
	}
	return Token{Type: Number, Value: l.src[start:l.pos], Loc: loc, start: start, end: l.pos}, nil
}

func (l *lexer) scanString(loc Loc) (Token, error) {
	start := l.pos
	quote := l.src[l.pos]
	l.pos++
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(loc, "unterminated string literal")
		}
		r, size := l.peekRune(0)
		switch {
		case r == rune(quote):
			l.pos++
			return Token{Type: String, Value: l.src[start:l.pos], Loc: loc, start: start, end: l.pos}, nil
		case r == '\\':
			l.pos++
			if l.pos >= len(l.src) {
				return Token{}, l.errorf(loc, "unterminated string literal")
			}
			r, size := l.peekRune(0)
			if isLineTerminator(r) {
				l.newline(r, size)
				continue
			}
			l.pos += size
		case r == '\n' || r == '\r':
			return Token{}, l.errorf(loc, "unterminated string literal")
		default:
			l.pos += size
		}
	}
}

// scanTemplate reads one template chunk starting right after "`" or "}".
func (l *lexer) scanTemplate(loc Loc, start int) (Token, error) {
	body := l.pos
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(loc, "unterminated template literal")
		}
		r, size := l.peekRune(0)
		switch {
		case r == '`':
			raw := l.src[body:l.pos]
			l.pos++
			return Token{Type: TemplateChunk, Value: raw, Tail: true, Loc: loc, start: start, end: l.pos}, nil
		case r == '$' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '{':
			raw := l.src[body:l.pos]
			l.pos += 2
			return Token{Type: TemplateChunk, Value: raw, Loc: loc, start: start, end: l.pos}, nil
		case r == '\\':
			l.pos++
			if l.pos < len(l.src) {
				r, size := l.peekRune(0)
				if isLineTerminator(r) {
					l.newline(r, size)
					continue
				}
				l.pos += size
			}
		case isLineTerminator(r):
			l.newline(r, size)
		default:
			l.pos += size
		}
	}
}

// rescanTemplate resumes a template literal after the "}" token tok that
// closed a substitution.
func (l *lexer) rescanTemplate(tok Token) (Token, error) {
	l.pos = tok.end
	tmpl, err := l.scanTemplate(tok.Loc, tok.start)
	if err != nil {
		return Token{}, err
	}
	return tmpl, nil
}

// rescanRegexp reinterprets the "/" or "/=" token tok as the start of a
// regular expression literal. The parser calls it where an expression is
// expected.
func (l *lexer) rescanRegexp(tok Token) (Token, error) {
	l.pos = tok.start
	l.line, l.lineStart = tok.Loc.Line, tok.start-tok.Loc.Col+1
	re, err := l.scanRegexp(tok.Loc)
	if err != nil {
		return Token{}, err
	}
	re.NewlineBefore = tok.NewlineBefore
	return re, nil
}

func (l *lexer) scanRegexp(loc Loc) (Token, error) {
	start := l.pos
	l.pos++
	inClass := false
	for {
		if l.pos >= len(l.src) {
			return Token{}, l.errorf(loc, "unterminated regular expression")
		}
		r, size := l.peekRune(0)
		if isLineTerminator(r) {
			return Token{}, l.errorf(loc, "unterminated regular expression")
		}
		l.pos += size
		switch r {
		case '\\':
			if l.pos < len(l.src) {
				_, size := l.peekRune(0)
				l.pos += size
			}
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if !inClass {
				for l.pos < len(l.src) {
					r, size := l.peekRune(0)
					if !isIdentPart(r) {
						break
					}
					l.pos += size
				}
				return Token{Type: Regexp, Value: l.src[start:l.pos], Loc: loc, start: start, end: l.pos}, nil
			}
		}
	}
}
