package js

import "testing"

func analyze(t *testing.T, src string) (*Program, *Info) {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return prog, Analyze(prog)
}

// binding returns the binding of the n-th identifier named name.
func binding(t *testing.T, prog *Program, info *Info, name string, n int) *Binding {
	t.Helper()
	seen := 0
	var found *Binding
	Inspect(prog, func(node Node) bool {
		if id, ok := node.(*Ident); ok && id.Name == name && found == nil {
			if seen == n {
				found = info.Bindings[id]
			}
			seen++
		}
		return true
	})
	return found
}

func TestAnalyzeBlockScoping(t *testing.T) {
	prog, info := analyze(t, "let x = 1; { let x = 2; f(x); } f(x);")
	outer := binding(t, prog, info, "x", 0)
	inner := binding(t, prog, info, "x", 1)
	if outer == nil || inner == nil {
		t.Fatalf("bindings not resolved: outer=%v inner=%v", outer, inner)
	}
	if outer == inner {
		t.Fatalf("block let shares the outer binding")
	}
	if got := binding(t, prog, info, "x", 2); got != inner {
		t.Errorf("reference inside block resolves to %v, want inner binding", got)
	}
	if got := binding(t, prog, info, "x", 3); got != outer {
		t.Errorf("reference after block resolves to %v, want outer binding", got)
	}
	if inner.Scope.Kind != ScopeBlock {
		t.Errorf("inner scope kind = %v, want ScopeBlock", inner.Scope.Kind)
	}
}

func TestAnalyzeVarHoisting(t *testing.T) {
	prog, info := analyze(t, "function f() { g(v); { var v = 1; } }")
	ref := binding(t, prog, info, "v", 0)
	if ref == nil {
		t.Fatal("reference to hoisted var is unresolved")
	}
	if ref.Kind != BindVar {
		t.Errorf("Kind = %v, want BindVar", ref.Kind)
	}
	if ref.Scope.Kind != ScopeFunction {
		t.Errorf("scope kind = %v, want ScopeFunction", ref.Scope.Kind)
	}
	if len(info.Globals["g"]) != 1 {
		t.Errorf("Globals[g] = %d refs, want 1", len(info.Globals["g"]))
	}
}

func TestAnalyzeCaptured(t *testing.T) {
	prog, info := analyze(t, "for (let i = 0; i < 3; i++) { let j = i; fns.push(() => j); }")
	i := binding(t, prog, info, "i", 0)
	j := binding(t, prog, info, "j", 0)
	if i == nil || j == nil {
		t.Fatal("loop bindings not resolved")
	}
	if i.Captured {
		t.Errorf("i.Captured = true, want false")
	}
	if !j.Captured {
		t.Errorf("j.Captured = false, want true")
	}
	if !i.Assigned || len(i.Writes) != 1 {
		t.Errorf("i writes = %d (Assigned %v), want 1", len(i.Writes), i.Assigned)
	}
}

func TestAnalyzeWrites(t *testing.T) {
	prog, info := analyze(t, "const c = 1; let l = 2; l = 3; [l] = [4]; l++; c;")
	c := binding(t, prog, info, "c", 0)
	l := binding(t, prog, info, "l", 0)
	if len(c.Writes) != 0 {
		t.Errorf("const writes = %d, want 0", len(c.Writes))
	}
	if len(l.Writes) != 3 {
		t.Errorf("let writes = %d, want 3", len(l.Writes))
	}
	if len(l.Refs) != 3 {
		t.Errorf("let refs = %d, want 3", len(l.Refs))
	}
}

func TestAnalyzeFunctionScopes(t *testing.T) {
	prog, info := analyze(t, "var f = function g(a) { return g(a, arguments); }; g;")
	g := binding(t, prog, info, "g", 0)
	if g == nil || g.Kind != BindFuncName {
		t.Fatalf("function name binding = %v, want BindFuncName", g)
	}
	if got := binding(t, prog, info, "g", 2); got != nil {
		t.Errorf("outer g resolves to %v, want global", got)
	}
	if a := binding(t, prog, info, "a", 0); a == nil || a.Kind != BindParam {
		t.Errorf("param binding = %v, want BindParam", a)
	}
	if got := binding(t, prog, info, "arguments", 0); got != nil {
		t.Errorf("arguments resolves to %v, want no binding", got)
	}
}

func TestBindingRename(t *testing.T) {
	prog, info := analyze(t, "let x = 1; f(x, x);")
	b := binding(t, prog, info, "x", 0)
	b.Rename("_x")
	if got, want := Print(prog), "let _x = 1;\nf(_x, _x);\n"; got != want {
		t.Errorf("Print() after Rename = %q, want %q", got, want)
	}
	if b.Scope.Lookup("_x") != b {
		t.Errorf("Lookup(_x) did not find the renamed binding")
	}
	if b.Scope.Lookup("x") != nil {
		t.Errorf("Lookup(x) still finds the old name")
	}
}

func TestPatternIdents(t *testing.T) {
	prog, err := Parse("var [a, {b, c: [d = 1]}, ...e] = v;")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	target := prog.Body[0].(*VarDecl).List[0].Target
	var names []string
	for _, id := range PatternIdents(target) {
		names = append(names, id.Name)
	}
	want := []string{"a", "b", "d", "e"}
	if len(names) != len(want) {
		t.Fatalf("PatternIdents() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("PatternIdents()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
