package downgrade

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/matzehuels/legacypack/pkg/errors"
)

func TestDowngradeES5(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "arrow expression body",
			src:  "const add = (a, b) => a + b;",
			want: "var add = function (a, b) {\n  return a + b;\n};\n",
		},
		{
			name: "arrow captures this",
			src:  "function C() { this.x = 1; setTimeout(() => { this.x++; }); }",
			want: "function C() {\n  var _this = this;\n  this.x = 1;\n  setTimeout(function () {\n    _this.x++;\n  });\n}\n",
		},
		{
			name: "template literal",
			src:  "const s = `a${x}b`;",
			want: "var s = \"a\".concat(x, \"b\");\n",
		},
		{
			name: "template without substitutions",
			src:  "var s = `line`;",
			want: "var s = \"line\";\n",
		},
		{
			name: "shadowed let is renamed",
			src:  "let x = 1; { let x = 2; f(x); } f(x);",
			want: "var x = 1;\n{\n  var _x = 2;\n  f(_x);\n}\nf(x);\n",
		},
		{
			name: "uninitialized let is reset",
			src:  "let x;",
			want: "var x = void 0;\n",
		},
		{
			name: "loop closure gets its own binding",
			src:  "var fns = []; for (let i = 0; i < 3; i++) { fns.push(() => i); }",
			want: "var fns = [];\n" +
				"var _loop = function (i) {\n  fns.push(function () {\n    return i;\n  });\n};\n" +
				"for (var i = 0; i < 3; i++) {\n  _loop(i);\n}\n",
		},
		{
			name: "object and array destructuring",
			src:  "const {a, b: [c, d = 1]} = obj;",
			want: "var a = obj.a, _ref = obj.b, c = _ref[0], _ref2 = _ref[1], d = _ref2 === void 0 ? 1 : _ref2;\n",
		},
		{
			name: "default and rest parameters",
			src:  "function f(a, b = 2, ...rest) { return a + b + rest.length; }",
			want: "function f(a) {\n" +
				"  var b = arguments.length > 1 && arguments[1] !== void 0 ? arguments[1] : 2;\n" +
				"  var rest = Array.prototype.slice.call(arguments, 2);\n" +
				"  return a + b + rest.length;\n}\n",
		},
		{
			name: "for-of over an array-like",
			src:  "var sum = 0; for (const x of xs) { sum += x; }",
			want: "var sum = 0;\nfor (var _i = 0, _arr = xs; _i < _arr.length; _i++) {\n  var x = _arr[_i];\n  sum += x;\n}\n",
		},
		{
			name: "optional catch binding",
			src:  "try { f(); } catch { g(); }",
			want: "try {\n  f();\n} catch (_unused) {\n  g();\n}\n",
		},
		{
			name: "binary and octal literals",
			src:  "var n = 0b101 + 0o17;",
			want: "var n = 5 + 15;\n",
		},
		{
			name: "shorthand properties and methods",
			src:  "var o = { a, m() { return 1; } };",
			want: "var o = {\n  a: a,\n  m: function () {\n    return 1;\n  }\n};\n",
		},
		{
			name: "reserved property name in pattern",
			src:  "var {default: d} = mod;",
			want: "var d = mod[\"default\"];\n",
		},
		{
			name: "destructuring assignment statement",
			src:  "var a, b; [a, b] = [b, a];",
			want: "var _ref;\nvar a, b;\n_ref = [b, a], a = _ref[0], b = _ref[1];\n",
		},
		{
			name: "plain es5 is untouched",
			src:  "var x = 1;\nfunction f(y) {\n  return x + y;\n}\n",
			want: "var x = 1;\nfunction f(y) {\n  return x + y;\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Downgrade(tt.src, ES5)
			if err != nil {
				t.Fatalf("Downgrade() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Downgrade() =\n%s\nwant\n%s", got, tt.want)
			}
		})
	}
}

func TestDowngradeUnsupported(t *testing.T) {
	tests := []struct {
		name        string
		src         string
		wantFeature Feature
		wantLine    int
	}{
		{"class", "var a = 1;\nclass A {}", Classes, 2},
		{"generator", "function* g() { yield 1; }", Generators, 1},
		{"async", "async function f() {}", AsyncFunctions, 1},
		{"spread", "f(...args);", Spread, 1},
		{"computed key", "var o = { [k]: 1 };", ComputedProperties, 1},
		{"exponent", "var x = a ** b;", ExponentOperator, 1},
		{"optional chaining", "var x = a?.b;", OptionalChaining, 1},
		{"nullish", "var x = a ?? b;", NullishCoalescing, 1},
		{"object rest", "var { a, ...rest } = o;", ObjectRestSpread, 1},
		{"tagged template", "tag`x`;", TaggedTemplates, 1},
		{"sticky regexp", "var r = /a/y;", RegexpFlags, 1},
		{"const assignment", "const x = 1;\nx = 2;", BlockScoping, 2},
		{"break from captured loop", "for (let i = 0; i < 3; i++) {\n  f(() => i);\n  break;\n}", BlockScoping, 3},
		{"return from captured loop", "function g() {\n  for (let i of xs) {\n    f(() => i);\n    return;\n  }\n}", BlockScoping, 4},
		{"loop variable reassigned", "for (let i = 0; i < 3; i++) {\n  f(() => i);\n  i += 1;\n}", BlockScoping, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DowngradeFile("src/a.js", tt.src, ES5)
			var us *errors.UnsupportedSyntaxError
			if !stderrors.As(err, &us) {
				t.Fatalf("DowngradeFile() error = %v, want UnsupportedSyntaxError", err)
			}
			if us.Feature != string(tt.wantFeature) {
				t.Errorf("Feature = %q, want %q", us.Feature, tt.wantFeature)
			}
			if us.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", us.Line, tt.wantLine)
			}
			if us.Path != "src/a.js" {
				t.Errorf("Path = %q, want %q", us.Path, "src/a.js")
			}
			if !errors.Is(err, errors.ErrCodeUnsupportedSyntax) {
				t.Errorf("errors.Is(err, ErrCodeUnsupportedSyntax) = false")
			}
		})
	}
}

func TestDowngradeSyntaxError(t *testing.T) {
	_, err := DowngradeFile("src/bad.js", "var = ;", ES5)
	if !errors.Is(err, errors.ErrCodeSyntax) {
		t.Fatalf("DowngradeFile() error = %v, want code %s", err, errors.ErrCodeSyntax)
	}
	if !strings.Contains(err.Error(), "src/bad.js") {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestDowngradeRespectsTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		src    string
		want   string
	}{
		{
			name:   "es2015 keeps arrows and let",
			target: Target{Level: 2015},
			src:    "let f = (x) => x;",
			want:   "let f = (x) => x;\n",
		},
		{
			name:   "es2015 keeps classes",
			target: Target{Level: 2015},
			src:    "class A {}",
			want:   "class A {}\n",
		},
		{
			name:   "override keeps arrows on es5",
			target: ES5.With(ArrowFunctions, true),
			src:    "var f = (x) => x;",
			want:   "var f = (x) => x;\n",
		},
		{
			name:   "override keeps templates on es5",
			target: ES5.With(TemplateLiterals, true),
			src:    "var s = `a${b}`;",
			want:   "var s = `a${b}`;\n",
		},
		{
			name:   "es2018 lowers optional catch binding",
			target: Target{Level: 2018},
			src:    "try {} catch {}",
			want:   "try {} catch (_unused) {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Downgrade(tt.src, tt.target)
			if err != nil {
				t.Fatalf("Downgrade() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Downgrade() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDowngradeIdempotent(t *testing.T) {
	sources := []string{
		"const add = (a, b) => a + b;",
		"var fns = []; for (let i = 0; i < 3; i++) { fns.push(() => i); }",
		"function C() { setTimeout(() => this.x++); }",
		"const {a, b: [c, d = 1]} = obj; let [x, ...ys] = list;",
		"function f({a}, b = 2, ...rest) { return `${a}${b}${rest}`; }",
		"for (const [k, v] of entries) { let k2 = k; out.push(() => k2 + v); }",
		"let x = 1; { let x = 2; } try { g(); } catch ({message}) { log(message); }",
	}
	for _, src := range sources {
		first, err := Downgrade(src, ES5)
		if err != nil {
			t.Fatalf("Downgrade(%q) error = %v", src, err)
		}
		second, err := Downgrade(first, ES5)
		if err != nil {
			t.Fatalf("Downgrade(Downgrade(%q)) error = %v", src, err)
		}
		if first != second {
			t.Errorf("Downgrade is not idempotent for %q:\nfirst:\n%s\nsecond:\n%s", src, first, second)
		}
	}
}

func TestDowngradeDeterministic(t *testing.T) {
	src := "let a = 1; { let a = 2; { let a = 3; f(() => a); } } for (let i of xs) { g(() => i); }"
	want, err := Downgrade(src, ES5)
	if err != nil {
		t.Fatalf("Downgrade() error = %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := Downgrade(src, ES5)
		if err != nil {
			t.Fatalf("Downgrade() error = %v", err)
		}
		if got != want {
			t.Fatalf("Downgrade() run %d differs:\n%s\nwant\n%s", i, got, want)
		}
	}
}
