package modgraph

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
)

// project writes files (slash-separated names) into a fresh directory.
func project(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func ptr[T any](v T) *T { return &v }

func resolveConfig(t *testing.T, dir string, f *config.File) *config.Config {
	t.Helper()
	if f.Entry == nil {
		f.Entry = ptr("main.js")
	}
	cfg, err := config.Resolve(f, dir)
	if err != nil {
		t.Fatalf("config.Resolve() error: %v", err)
	}
	return cfg
}

func quiet() Options { return Options{Logger: log.New(io.Discard)} }

func build(t *testing.T, dir string, f *config.File) (*Graph, error) {
	t.Helper()
	return Build(context.Background(), resolveConfig(t, dir, f), quiet())
}

func TestBuildCanvasScenario(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { helper } from './util.js';\nconst Canvas = require('canvas');\nhelper(Canvas);\n",
		"util.js": "export function helper(c) { return c; }\n",
	})
	g, err := build(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if g.Entry != "./main.js" {
		t.Errorf("Entry = %q, want ./main.js", g.Entry)
	}
	if diff := cmp.Diff([]string{"./util.js", "./main.js"}, g.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"canvas"}, g.ExternalNames()); diff != "" {
		t.Errorf("ExternalNames() mismatch (-want +got):\n%s", diff)
	}
	if _, ok := g.Modules["./canvas"]; ok {
		t.Error("external must not be inlined")
	}
	main := g.Modules["./main.js"]
	want := []*Import{
		{Specifier: "./util.js", Kind: ImportStatic, Line: 1, Module: "./util.js"},
		{Specifier: "canvas", Kind: ImportRequire, Line: 2, External: "canvas"},
	}
	if diff := cmp.Diff(want, main.Imports); diff != "" {
		t.Errorf("Imports mismatch (-want +got):\n%s", diff)
	}
	if got := g.Dependents("canvas"); !cmp.Equal(got, []string{"./main.js"}) {
		t.Errorf("Dependents(canvas) = %v", got)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("EdgeCount() = %d, want 2", g.EdgeCount())
	}
}

func TestBuildCycleVisitsOnce(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import './a.js';\n",
		"a.js":    "import { b } from './b.js';\nexport var a = 1;\n",
		"b.js":    "import { a } from './a.js';\nexport var b = 2;\n",
	})
	g, err := build(t, dir, &config.File{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(g.Modules) != 3 {
		t.Errorf("len(Modules) = %d, want 3", len(g.Modules))
	}
	if diff := cmp.Diff([]string{"./b.js", "./a.js", "./main.js"}, g.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{{"./a.js", "./b.js"}}, g.Cycles()); diff != "" {
		t.Errorf("Cycles() mismatch (-want +got):\n%s", diff)
	}
}

func TestOrderDiamond(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":   "require('./lib/a');\nrequire('./lib/b');\n",
		"lib/a.js":  "module.exports = require('./c') + 1;\n",
		"lib/b.js":  "module.exports = require('./c') + 2;\n",
		"lib/c.js":  "module.exports = 0;\n",
		"unused.js": "module.exports = 'never imported';\n",
	})
	g, err := build(t, dir, &config.File{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	want := []string{"./lib/c.js", "./lib/a.js", "./lib/b.js", "./main.js"}
	if diff := cmp.Diff(want, g.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	if len(g.Cycles()) != 0 {
		t.Errorf("Cycles() = %v, want none", g.Cycles())
	}
}

func TestBuildUnresolvedImport(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "var x = 1;\nimport './missing.js';\n",
	})
	_, err := build(t, dir, &config.File{})
	var ui *errors.UnresolvedImportError
	if !stderrors.As(err, &ui) {
		t.Fatalf("Build() error = %v, want UnresolvedImportError", err)
	}
	if ui.Importer != "./main.js" || ui.Specifier != "./missing.js" || ui.Line != 2 {
		t.Errorf("UnresolvedImportError = %+v", ui)
	}
	if !errors.Is(err, errors.ErrCodeUnresolvedImport) {
		t.Errorf("GetCode() = %q", errors.GetCode(err))
	}
}

func TestBuildUnreadableImport(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}
	dir := project(t, map[string]string{
		"main.js":   "import './locked.js';\n",
		"locked.js": "1;\n",
	})
	locked := filepath.Join(dir, "locked.js")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0o644) })

	_, err := build(t, dir, &config.File{})
	var ui *errors.UnresolvedImportError
	if !stderrors.As(err, &ui) {
		t.Fatalf("Build() error = %v, want UnresolvedImportError", err)
	}
	if ui.Importer != "./main.js" || ui.Specifier != "./locked.js" || ui.Line != 1 {
		t.Errorf("UnresolvedImportError = %+v", ui)
	}
	if !stderrors.Is(err, os.ErrPermission) {
		t.Errorf("error %v does not wrap the read failure", err)
	}
	if got := errors.GetCode(err); got != errors.ErrCodeUnresolvedImport {
		t.Errorf("GetCode() = %q, want %q", got, errors.ErrCodeUnresolvedImport)
	}
}

func TestBuildEntryNotFound(t *testing.T) {
	dir := project(t, map[string]string{"src/app.js": "1;\n"})
	tests := []struct {
		name  string
		entry string
	}{
		{"missing", "main.js"},
		{"directory", "src"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, dir, &config.File{Entry: ptr(tt.entry)})
			var nf *errors.EntryNotFoundError
			if !stderrors.As(err, &nf) {
				t.Fatalf("Build() error = %v, want EntryNotFoundError", err)
			}
			if nf.Path != filepath.Join(dir, tt.entry) {
				t.Errorf("Path = %q", nf.Path)
			}
		})
	}
}

func TestBuildSyntaxError(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "require('./bad');\n",
		"bad.js":  "var = ;\n",
	})
	_, err := build(t, dir, &config.File{})
	if !errors.Is(err, errors.ErrCodeSyntax) {
		t.Fatalf("Build() error = %v, want SYNTAX_ERROR", err)
	}
	if !strings.Contains(err.Error(), "./bad.js") {
		t.Errorf("error %q should name the module", err)
	}
}

func TestBuildInvalidJSON(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":   "require('./data.json');\n",
		"data.json": "{oops",
	})
	if _, err := build(t, dir, &config.File{}); !errors.Is(err, errors.ErrCodeSyntax) {
		t.Fatalf("Build() error = %v, want SYNTAX_ERROR", err)
	}
}

func TestBuildCancelled(t *testing.T) {
	dir := project(t, map[string]string{"main.js": "1;\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, resolveConfig(t, dir, &config.File{}), quiet())
	if err != context.Canceled {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestBuildDynamicRequireWarning(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "var name = 'x';\nrequire(name);\n",
	})
	g, err := build(t, dir, &config.File{})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if len(g.Warnings) != 1 || g.Warnings[0].Line != 2 {
		t.Errorf("Warnings = %v, want one on line 2", g.Warnings)
	}
}

func TestBuildTranspileExclude(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":           "require('./vendor/lib.min.js');\n",
		"vendor/lib.min.js": "module.exports = 1;\n",
	})
	g, err := build(t, dir, &config.File{TranspileExclude: []string{`\.min\.js$`}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !g.Modules["./vendor/lib.min.js"].SkipDowngrade {
		t.Error("vendor bundle should skip the downgrade")
	}
	if g.Modules["./main.js"].SkipDowngrade {
		t.Error("main.js should be downgraded")
	}
}

func TestResolve(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":                              "",
		"src/util.js":                          "",
		"src/data.json":                        "{}",
		"src/widgets/index.js":                 "",
		"src/pkg/package.json":                 `{"main": "lib/entry"}`,
		"src/pkg/lib/entry.js":                 "",
		"node_modules/canvas/index.js":         "",
		"node_modules/lodash/package.json":     `{"main": "lodash.js"}`,
		"node_modules/lodash/lodash.js":        "",
		"node_modules/@scope/pkg/index.js":     "",
		"src/deep/node_modules/local/index.js": "",
		"src/deep/file.js":                     "",
	})
	cfg := resolveConfig(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas", "jquery": "global jQuery"}})
	r := NewResolver(cfg)
	main := filepath.Join(dir, "main.js")
	deep := filepath.Join(dir, "src", "deep", "file.js")

	tests := []struct {
		name      string
		importer  string
		spec      string
		wantPath  string
		wantExt   *External
		wantFound bool
	}{
		{"exact", main, "./src/util.js", "src/util.js", nil, true},
		{"extension", main, "./src/util", "src/util.js", nil, true},
		{"json", main, "./src/data", "src/data.json", nil, true},
		{"index", main, "./src/widgets", "src/widgets/index.js", nil, true},
		{"package main", main, "./src/pkg", "src/pkg/lib/entry.js", nil, true},
		{"parent", deep, "../util", "src/util.js", nil, true},
		{"declared external wins", main, "canvas", "", &External{Key: "canvas", External: config.External{Strategy: config.StrategyCommonJS, Name: "canvas"}, Kind: ExternalDeclared}, true},
		{"declared global", main, "jquery", "", &External{Key: "jquery", External: config.External{Strategy: config.StrategyGlobal, Name: "jQuery"}, Kind: ExternalDeclared}, true},
		{"builtin", main, "fs", "", &External{Key: "fs", External: config.External{Strategy: config.StrategyCommonJS, Name: "fs"}, Kind: ExternalBuiltin}, true},
		{"builtin scheme", main, "node:path", "", &External{Key: "node:path", External: config.External{Strategy: config.StrategyCommonJS, Name: "node:path"}, Kind: ExternalBuiltin}, true},
		{"builtin subpath", main, "fs/promises", "", &External{Key: "fs/promises", External: config.External{Strategy: config.StrategyCommonJS, Name: "fs/promises"}, Kind: ExternalBuiltin}, true},
		{"excluded package", main, "lodash", "", &External{Key: "lodash", External: config.External{Strategy: config.StrategyCommonJS, Name: "lodash"}, Kind: ExternalExcluded}, true},
		{"excluded scoped", main, "@scope/pkg", "", &External{Key: "@scope/pkg", External: config.External{Strategy: config.StrategyCommonJS, Name: "@scope/pkg"}, Kind: ExternalExcluded}, true},
		{"nearest node_modules", deep, "local", "", &External{Key: "local", External: config.External{Strategy: config.StrategyCommonJS, Name: "local"}, Kind: ExternalExcluded}, true},
		{"excluded relative file", main, "./node_modules/canvas/index.js", "", &External{Key: "external:./node_modules/canvas/index.js", External: config.External{Strategy: config.StrategyCommonJS, Name: "./node_modules/canvas/index.js"}, Kind: ExternalExcluded}, true},
		{"excluded relative dir", deep, "../../node_modules/canvas", "", &External{Key: "external:./node_modules/canvas/index.js", External: config.External{Strategy: config.StrategyCommonJS, Name: "./node_modules/canvas/index.js"}, Kind: ExternalExcluded}, true},
		{"missing file", main, "./nope", "", nil, false},
		{"missing package", main, "left-pad", "", nil, false},
		{"bare scope", main, "@scope", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Resolve(tt.importer, tt.spec)
			if ok != tt.wantFound {
				t.Fatalf("Resolve(%q) found = %v, want %v", tt.spec, ok, tt.wantFound)
			}
			wantPath := ""
			if tt.wantPath != "" {
				wantPath = filepath.Join(dir, filepath.FromSlash(tt.wantPath))
			}
			if got.Path != wantPath {
				t.Errorf("Resolve(%q).Path = %q, want %q", tt.spec, got.Path, wantPath)
			}
			if diff := cmp.Diff(tt.wantExt, got.External); diff != "" {
				t.Errorf("Resolve(%q).External mismatch (-want +got):\n%s", tt.spec, diff)
			}
		})
	}
}

func TestBuildExcludedRelativeImport(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":    "import { a } from './lib/a.js';\nimport { b } from './x/b.js';\nexport const result = [a, b];\n",
		"lib/a.js":   "export const a = 'inlined';\n",
		"x/b.js":     "export { a as b } from './lib/a.js';\n",
		"x/lib/a.js": "export const a = 'host';\n",
	})
	g, err := build(t, dir, &config.File{
		Exclude: []string{"/x/lib/"},
		Output:  &config.OutputFile{Path: ptr("dist")},
	})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if diff := cmp.Diff([]string{"./lib/a.js", "./x/b.js", "./main.js"}, g.Order()); diff != "" {
		t.Errorf("Order() mismatch (-want +got):\n%s", diff)
	}
	want := map[string]*External{
		"external:./x/lib/a.js": {
			Key:      "external:./x/lib/a.js",
			External: config.External{Strategy: config.StrategyCommonJS, Name: "../x/lib/a.js"},
			Kind:     ExternalExcluded,
		},
	}
	if diff := cmp.Diff(want, g.Externals); diff != "" {
		t.Errorf("Externals mismatch (-want +got):\n%s", diff)
	}
	for key := range g.Externals {
		if _, ok := g.Modules[key]; ok {
			t.Errorf("external key %q is also a module ID", key)
		}
	}
	if got := g.Modules["./x/b.js"].Imports[0].External; got != "external:./x/lib/a.js" {
		t.Errorf("x/b.js import External = %q, want external:./x/lib/a.js", got)
	}
}

func TestResolveWebHostHasNoBuiltins(t *testing.T) {
	dir := project(t, map[string]string{"main.js": ""})
	cfg := resolveConfig(t, dir, &config.File{Target: &config.TargetFile{Host: ptr("web")}})
	if _, ok := NewResolver(cfg).Resolve(filepath.Join(dir, "main.js"), "fs"); ok {
		t.Error("fs should not resolve for the web host")
	}
}

func TestResolveWithoutExclude(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":                    "",
		"node_modules/tiny/index.js": "",
	})
	cfg := resolveConfig(t, dir, &config.File{Exclude: []string{}})
	got, ok := NewResolver(cfg).Resolve(filepath.Join(dir, "main.js"), "tiny")
	if !ok || got.External != nil {
		t.Fatalf("Resolve(tiny) = %+v, %v; want inlined file", got, ok)
	}
	if want := filepath.Join(dir, "node_modules", "tiny", "index.js"); got.Path != want {
		t.Errorf("Path = %q, want %q", got.Path, want)
	}
}

func TestDiscover(t *testing.T) {
	src := `
import a from "./a";
import "./side-effect";
export { b } from "./b";
export * from "./c";
var d = require("./d");
var again = require("./a");
var e = require(` + "`./e`" + `);
var dyn = require("./" + name);
function local(require) { return require("./not-a-dependency"); }
`
	prog, err := js.Parse(src)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	deps, dynamic := discover(prog)
	want := []found{
		{"./a", ImportStatic, 2},
		{"./side-effect", ImportStatic, 3},
		{"./b", ImportReexport, 4},
		{"./c", ImportReexport, 5},
		{"./d", ImportRequire, 6},
		{"./e", ImportRequire, 8},
	}
	if diff := cmp.Diff(want, deps, cmp.AllowUnexported(found{})); diff != "" {
		t.Errorf("discover() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{9}, dynamic); diff != "" {
		t.Errorf("dynamic mismatch (-want +got):\n%s", diff)
	}
}

func TestIsBuiltin(t *testing.T) {
	tests := map[string]bool{
		"fs": true, "node:fs": true, "fs/promises": true, "path": true,
		"node:test": true, "canvas": false, "fs/extra": false, "./fs": false,
	}
	for spec, want := range tests {
		if got := IsBuiltin(spec); got != want {
			t.Errorf("IsBuiltin(%q) = %v, want %v", spec, got, want)
		}
	}
}

func TestModuleID(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "p")
	tests := []struct {
		path, want string
	}{
		{filepath.Join(root, "main.js"), "./main.js"},
		{filepath.Join(root, "src", "a.js"), "./src/a.js"},
		{filepath.Join(string(filepath.Separator), "shared", "b.js"), "../shared/b.js"},
	}
	for _, tt := range tests {
		if got := moduleID(root, tt.path); got != tt.want {
			t.Errorf("moduleID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDOTAndJSON(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import './util.js';\nrequire('canvas');\n",
		"util.js": "",
	})
	g, err := build(t, dir, &config.File{Externals: map[string]string{"canvas": ""}})
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	dot := g.DOT()
	for _, want := range []string{
		`"./main.js" [label="./main.js", penwidth=2];`,
		`"./main.js" -> "./util.js";`,
		`"./main.js" -> "external:canvas" [style=dashed];`,
		`"external:canvas" [label="canvas\n(commonjs canvas)"`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT() missing %q\n%s", want, dot)
		}
	}
	if dot != g.DOT() {
		t.Error("DOT() should be deterministic")
	}

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}
	var decoded struct {
		Entry   string `json:"entry"`
		Modules []struct {
			ID string `json:"id"`
		} `json:"modules"`
		Externals []struct {
			Key        string   `json:"key"`
			Kind       string   `json:"kind"`
			Dependents []string `json:"dependents"`
		} `json:"externals"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded.Entry != "./main.js" || len(decoded.Modules) != 2 || decoded.Modules[0].ID != "./util.js" {
		t.Errorf("decoded graph = %+v", decoded)
	}
	if len(decoded.Externals) != 1 || decoded.Externals[0].Kind != "declared" ||
		!cmp.Equal(decoded.Externals[0].Dependents, []string{"./main.js"}) {
		t.Errorf("decoded externals = %+v", decoded.Externals)
	}
	if g.vertexKind("./util.js") != kindModule {
		t.Errorf("vertexKind(./util.js) = %q", g.vertexKind("./util.js"))
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="100pt" height="50pt" viewBox="0.00 0.00 100.00 50.00" xmlns="http://www.w3.org/2000/svg"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100.00 50.00" width="100" height="50"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox() = %q, want %q", got, want)
	}
	plain := []byte("<svg><g/></svg>")
	if string(normalizeViewBox(plain)) != string(plain) {
		t.Error("normalizeViewBox() should leave svg without viewBox alone")
	}
}
