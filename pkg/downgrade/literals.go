package downgrade

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/matzehuels/legacypack/pkg/js"
)

// lowerLiteral rewrites binary and octal numbers in decimal and replaces
// code point escapes (\u{...}) in strings with UTF-16 escapes.
func lowerLiteral(lit *js.Literal) *js.Literal {
	switch lit.Kind {
	case js.LitNumber:
		if dec, ok := decimal(lit.Raw); ok {
			return &js.Literal{Loc: lit.Loc, Kind: js.LitNumber, Raw: dec}
		}
	case js.LitString:
		if strings.Contains(lit.Raw, `\u{`) {
			return &js.Literal{Loc: lit.Loc, Kind: js.LitString, Raw: codePointEscapes(lit.Raw)}
		}
	}
	return lit
}

func decimal(raw string) (string, bool) {
	if len(raw) < 3 || raw[0] != '0' {
		return "", false
	}
	var base int
	switch raw[1] {
	case 'b', 'B':
		base = 2
	case 'o', 'O':
		base = 8
	default:
		return "", false
	}
	n, ok := new(big.Int).SetString(raw[2:], base)
	if !ok {
		return "", false
	}
	return n.String(), true
}

// codePointEscapes rewrites \u{X} escapes of a string literal spelling.
func codePointEscapes(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		if raw[i+1] != 'u' || i+2 >= len(raw) || raw[i+2] != '{' {
			b.WriteByte(c)
			b.WriteByte(raw[i+1])
			i++
			continue
		}
		end := strings.IndexByte(raw[i+3:], '}')
		if end < 0 {
			b.WriteString(raw[i:])
			break
		}
		v, err := strconv.ParseUint(raw[i+3:i+3+end], 16, 32)
		if err != nil || v > 0x10ffff {
			b.WriteString(raw[i : i+4+end])
		} else {
			b.WriteString(utf16Escape(rune(v)))
		}
		i += 3 + end
	}
	return b.String()
}

func utf16Escape(r rune) string {
	hex := func(v rune) string {
		s := strconv.FormatInt(int64(v), 16)
		return `\u` + strings.Repeat("0", 4-len(s)) + s
	}
	if r < 0x10000 {
		return hex(r)
	}
	r -= 0x10000
	return hex(0xd800+(r>>10)) + hex(0xdc00+(r&0x3ff))
}

// lowerTemplate turns an untagged template into a concat call on its first
// chunk. String.prototype.concat converts each value with ToString, as
// template substitution does.
func lowerTemplate(x *js.Template) js.Expr {
	head := str(js.TemplateValue(x.Quasis[0]))
	head.Loc = x.Loc
	if len(x.Exprs) == 0 {
		return head
	}
	var args []js.Expr
	for i, e := range x.Exprs {
		args = append(args, e)
		if q := js.TemplateValue(x.Quasis[i+1]); q != "" {
			args = append(args, str(q))
		}
	}
	c := call(member(head, "concat"), args...)
	c.Loc = x.Loc
	return c
}
