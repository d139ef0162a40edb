package js

import "testing"

func TestPrint(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"declaration", "var a=1,b", "var a = 1, b;\n"},
		{"left associative", "(a + b) * c - (d - e)", "(a + b) * c - (d - e);\n"},
		{"redundant parens dropped", "((a)) + ((b * c))", "a + b * c;\n"},
		{"assignment chain", "a = b = c", "a = b = c;\n"},
		{"sequence in argument", "f((a, b))", "f((a, b));\n"},
		{"unary spacing", "- -a; + +b; typeof x", "- -a;\n+ +b;\ntypeof x;\n"},
		{"conditional", "x ? y : z ? u : v", "x ? y : z ? u : v;\n"},
		{"new without args", "new Foo", "new Foo();\n"},
		{"function expression statement", "(function () {})()", "(function () {})();\n"},
		{"empty object", "var o = {}", "var o = {};\n"},
		{"return", "function f() { return }", "function f() {\n  return;\n}\n"},
		{"string quotes kept", "var s = 'a'", "var s = 'a';\n"},
		{"block", "{ a(); b() }", "{\n  a();\n  b();\n}\n"},
		{"export list", "export {a as b, c}", "export { a as b, c };\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if got := Print(prog); got != tt.want {
				t.Errorf("Print() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPrintStable(t *testing.T) {
	sources := []string{
		"var a = 1, b = 'x', c = /re/g;",
		"let [x, , y = 2, ...rest] = list;",
		"const {a, b: {c}, ['k']: d} = obj;",
		"for (const [k, v] of entries) { use(k, v); }",
		"for (var key in obj) if (key) continue;",
		"for (var i = 0, n = ('x' in o); i < n; i++) {}",
		"label: for (;;) { break label; }",
		"var f = (a, {b} = {}) => ({a: a, b: b});",
		"class A extends B { static create() { return new this(); } get x() { return super.x; } }",
		"var t = tag`a${b}c`, u = `x${`y${z}`}`;",
		"var x = (a ?? b) || c;",
		"var n = 0b1010 + 0o17 + 0x1F + 1e3 + .5;",
		"try { f(); } catch { g(); } finally { h(); }",
		"import def, * as ns from 'mod';",
		"export default function () {}",
		"export default (1, 2);",
		"if (a) b(); else if (c) { d(); } else e();",
		"switch (x) { case 1: y(); break; default: z(); }",
		"do x++; while (x < 10);",
		"var o = { get a() { return 1; }, set a(v) {}, b, c() {}, 'd-e': 2, 3: 4 };",
		"x = y => y * 2; x = async y => y; x = () => {};",
		"a = b ? (c, d) : e => e;",
		"(a, b) => (c, d);",
		"new (f())(); new (a.b().c)(); new a.b.C();",
		"a ** -b; (-a) ** b; (a ** b) ** c;",
		"!(a instanceof B); void (0, f)();",
		"var re = a / b / c, r2 = /[/]/.test(s);",
		"x = function* () { yield; yield a, b; };",
		"({}).toString(); ({a} = b);",
		"let async = 1; async = 2;",
	}
	for _, src := range sources {
		prog, err := Parse(src)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", src, err)
		}
		first := Print(prog)
		again, err := Parse(first)
		if err != nil {
			t.Fatalf("Parse(Print(%q)) error = %v\n%s", src, err, first)
		}
		if second := Print(again); second != first {
			t.Errorf("Print is not stable for %q:\nfirst:\n%s\nsecond:\n%s", src, first, second)
		}
	}
}

func TestPrintExpr(t *testing.T) {
	x, err := ParseExpr("a  +  b.c[ d ]")
	if err != nil {
		t.Fatalf("ParseExpr() error = %v", err)
	}
	if got, want := PrintExpr(x), "a + b.c[d]"; got != want {
		t.Errorf("PrintExpr() = %q, want %q", got, want)
	}
}
