package bundle

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/downgrade"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/modgraph"
)

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

// emit builds, downgrades and emits the project in dir.
func emit(t *testing.T, dir string, f *config.File) (*Artifact, *config.Config) {
	t.Helper()
	if f.Entry == nil {
		f.Entry = ptr("main.js")
	}
	cfg, err := config.Resolve(f, dir)
	if err != nil {
		t.Fatalf("config.Resolve() error: %v", err)
	}
	logger := log.New(io.Discard)
	g, err := modgraph.Build(context.Background(), cfg, modgraph.Options{Logger: logger})
	if err != nil {
		t.Fatalf("modgraph.Build() error: %v", err)
	}
	for _, m := range g.Modules {
		if m.JSON() || m.SkipDowngrade {
			continue
		}
		code, err := downgrade.DowngradeFile(m.ID, m.Source, cfg.Target)
		if err != nil {
			t.Fatalf("DowngradeFile(%s) error: %v", m.ID, err)
		}
		m.Code = code
	}
	a, err := Emit(context.Background(), g, cfg, Options{Logger: logger})
	if err != nil {
		t.Fatalf("Emit() error: %v", err)
	}
	return a, cfg
}

// run executes the artifact after prelude and returns JSON.stringify(expr).
func run(t *testing.T, code []byte, prelude, expr string) string {
	t.Helper()
	vm := goja.New()
	if _, err := vm.RunString(prelude); err != nil {
		t.Fatalf("prelude error: %v", err)
	}
	if _, err := vm.RunString(string(code)); err != nil {
		t.Fatalf("RunString() error = %v\nbundle:\n%s", err, code)
	}
	v, err := vm.RunString("JSON.stringify(" + expr + ")")
	if err != nil {
		t.Fatalf("RunString(%s) error = %v", expr, err)
	}
	return v.String()
}

// nodeHost fakes the CommonJS wrapper of a Node module.
const nodeHost = `var required = [];
function require(name) { required.push(name); return {kind: name}; }
var module = {exports: {}};`

func TestEmitCanvasScenario(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { helper } from './util.js';\nconst Canvas = require('canvas');\nexport const result = helper(Canvas);\n",
		"util.js": "export function helper(c) { return `drawn with ${c.kind}`; }\n",
	})
	a, _ := emit(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})

	code := string(a.Code)
	util := strings.Index(code, "// ./util.js")
	main := strings.Index(code, "// ./main.js")
	if util < 0 || main < 0 || util > main {
		t.Errorf("factories out of order: util at %d, main at %d", util, main)
	}
	if !strings.Contains(code, `return require("canvas");`) {
		t.Error("canvas must be resolved through the host require")
	}
	for _, bad := range []string{"import {", "export ", "`", "=>"} {
		if strings.Contains(code, bad) {
			t.Errorf("artifact contains %q", bad)
		}
	}

	got := run(t, a.Code, nodeHost, "[module.exports.result, required]")
	if want := `["drawn with canvas",["canvas"]]`; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
	if diff := cmp.Diff([]string{"result"}, a.Exports); diff != "" {
		t.Errorf("Exports mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitLiveBindingsAndCycles(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": `import { count, inc } from './counter.js';
import { a } from './a.js';
import { callA } from './b.js';
inc();
inc();
export var result = [count, a(), callA()];
`,
		"counter.js": "export let count = 0;\nexport function inc() { count++; }\n",
		"a.js":       "import { b } from './b.js';\nexport function a() { return 'a' + b(); }\n",
		"b.js":       "import { a } from './a.js';\nexport function b() { return 'b'; }\nexport function callA() { return a(); }\n",
	})
	a, _ := emit(t, dir, &config.File{})
	if n := strings.Count(string(a.Code), "// ./a.js\n"); n != 1 {
		t.Errorf("./a.js emitted %d times, want 1", n)
	}
	got := run(t, a.Code, nodeHost, "module.exports.result")
	if want := `[2,"ab","ab"]`; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestEmitDefaultsAndReexports(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": `import d from './dflt.js';
import c from './cjs.js';
import * as ns from './cjs.js';
import Canvas from 'canvas';
export { d as renamed };
export * from './more.js';
export * as extra from './more.js';
export { more as again } from './more.js';
export default 42;
export var result = [d(), c.v, ns.v, Canvas.kind];
`,
		"dflt.js": "export default function () { return 'd'; }\n",
		"cjs.js":  "module.exports = { v: 1 };\n",
		"more.js": "export var more = 'm';\nexport default 'ignored';\n",
	})
	a, _ := emit(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})
	got := run(t, a.Code, nodeHost,
		`[module.exports.result, typeof module.exports.renamed, module.exports.more, module.exports.extra.more, module.exports.again, module.exports["default"], module.exports.__esModule]`)
	if want := `[["d",1,1,"canvas"],"function","m","m","m",42,true]`; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
	if !strings.Contains(string(a.Code), `__require__.n(_canvas)`) {
		t.Error("external default import must go through the interop helper")
	}
}

func TestEmitCallsThroughImportsDropReceiver(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { who } from './who.js';\nexport var result = who();\n",
		"who.js":  "export function who() { return this === undefined ? 'none' : 'exports'; }\n",
	})
	a, _ := emit(t, dir, &config.File{})
	if !strings.Contains(string(a.Code), "(0, _who.who)()") {
		t.Errorf("call through import not rewritten:\n%s", a.Code)
	}
	if got := run(t, a.Code, nodeHost, "module.exports.result"); got != `"none"` {
		t.Errorf("result = %s, want \"none\"", got)
	}
}

func TestEmitJSONModule(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":   "var data = require('./data.json');\nexports.result = data.list;\n",
		"data.json": "{\n  \"list\": [1, 2, \"\u2028\"]\n}\n",
	})
	a, _ := emit(t, dir, &config.File{})
	if !strings.Contains(string(a.Code), `module.exports = {"list":[1,2,"\u2028"]};`) {
		t.Errorf("JSON factory not compacted:\n%s", a.Code)
	}
	if got := run(t, a.Code, nodeHost, "module.exports.result.length"); got != "3" {
		t.Errorf("result length = %s, want 3", got)
	}
}

func TestEmitNodeGlobals(t *testing.T) {
	files := map[string]string{"src/main.js": "exports.result = [__dirname, __filename];\n"}
	tests := []struct {
		policy config.GlobalPolicy
		want   string
	}{
		{config.GlobalMock, `["/","/index.js"]`},
		{config.GlobalRelative, `["src","src/main.js"]`},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			dir := project(t, files)
			a, _ := emit(t, dir, &config.File{
				Entry: ptr("src/main.js"),
				Node:  &config.NodeFile{Dirname: ptr(tt.policy), Filename: ptr(tt.policy)},
			})
			if got := run(t, a.Code, nodeHost, "module.exports.result"); got != tt.want {
				t.Errorf("result = %s, want %s", got, tt.want)
			}
		})
	}

	t.Run("keep", func(t *testing.T) {
		dir := project(t, files)
		a, _ := emit(t, dir, &config.File{Entry: ptr("src/main.js")})
		if !strings.Contains(string(a.Code), "[__dirname, __filename]") {
			t.Errorf("host globals must be left alone:\n%s", a.Code)
		}
	})
}

func TestEmitLibraryAndGlobalExternal(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import $ from 'jquery';\nexport var result = $.fn.version;\n",
	})
	a, _ := emit(t, dir, &config.File{
		Target:    &config.TargetFile{Host: ptr("web")},
		Output:    &config.OutputFile{Library: ptr("Acme.widgets")},
		Externals: map[string]string{"jquery": "global jQuery"},
	})
	got := run(t, a.Code, `var jQuery = {fn: {version: "1.12"}};`, "Acme.widgets.result")
	if got != `"1.12"` {
		t.Errorf("Acme.widgets.result = %s, want \"1.12\"", got)
	}
}

func TestEmitExternalLoadedLazily(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "exports.load = function () { return require('canvas'); };\n",
	})
	a, _ := emit(t, dir, &config.File{Externals: map[string]string{"canvas": "canvas"}})
	got := run(t, a.Code, nodeHost, "[required.length, module.exports.load().kind, required.length]")
	if want := `[0,"canvas",1]`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestEmitExcludedRelativeImport(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":    "import { a } from './lib/a.js';\nimport { b } from './x/b.js';\nexport const result = [a, b];\n",
		"lib/a.js":   "export const a = 'inlined';\n",
		"x/b.js":     "const dep = require('./lib/a.js');\nexport const b = dep.kind;\n",
		"x/lib/a.js": "exports.a = 'host';\n",
	})
	a, _ := emit(t, dir, &config.File{Exclude: []string{"/x/lib/"}})
	got := run(t, a.Code, nodeHost, "[module.exports.result, required]")
	if want := `[["inlined","./x/lib/a.js"],["./x/lib/a.js"]]`; got != want {
		t.Errorf("result = %s, want %s", got, want)
	}
}

func TestEmitFailedFactoryIsNotCached(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":  "var attempts = 0;\nfunction load() { try { return require('./flaky.js'); } catch (e) { attempts++; return null; } }\nload();\nload();\nexports.result = attempts;\n",
		"flaky.js": "throw new Error('boom');\n",
	})
	a, _ := emit(t, dir, &config.File{})
	if got := run(t, a.Code, nodeHost, "module.exports.result"); got != "2" {
		t.Errorf("attempts = %s, want 2", got)
	}
}

func TestEmitDeterministic(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { x } from './x.js';\nimport y from './y.js';\nexport default x + y;\n",
		"x.js":    "export const x = 1;\n",
		"y.js":    "export default 2;\n",
	})
	f := &config.File{Externals: map[string]string{"b": "commonjs b", "a": "global A"}}
	first, _ := emit(t, dir, f)
	second, _ := emit(t, dir, f)
	if diff := cmp.Diff(string(first.Code), string(second.Code)); diff != "" {
		t.Errorf("consecutive builds differ (-first +second):\n%s", diff)
	}
	if first.BuildID() != second.BuildID() {
		t.Errorf("BuildID() = %s then %s", first.BuildID(), second.BuildID())
	}
}

func TestEmitMinify(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { helper } from './util.js';\nexport const result = helper([1, 2, 3]);\n",
		"util.js": "export const helper = (xs) => xs.map((x) => x * 2);\n",
	})
	plain, _ := emit(t, dir, &config.File{})
	small, _ := emit(t, dir, &config.File{Minify: ptr(true)})
	if !small.Minified {
		t.Error("Minified = false, want true")
	}
	if len(small.Code) >= len(plain.Code) {
		t.Errorf("minified size %d, plain size %d", len(small.Code), len(plain.Code))
	}
	if got := run(t, small.Code, nodeHost, "module.exports.result"); got != "[2,4,6]" {
		t.Errorf("result = %s, want [2,4,6]", got)
	}
}

func TestWrite(t *testing.T) {
	dir := project(t, map[string]string{"main.js": "exports.ok = true;\n"})
	a, _ := emit(t, dir, &config.File{Output: &config.OutputFile{Path: ptr("dist"), Metafile: ptr(true)}})
	if err := a.Write(); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "dist", "bundle.js"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(a.Code) {
		t.Error("written artifact differs from Code")
	}
	if _, err := os.Stat(filepath.Join(dir, "dist", "bundle.js.meta.json")); err != nil {
		t.Errorf("metafile not written: %v", err)
	}
	assertNoTemp(t, filepath.Join(dir, "dist"))
}

func TestWriteFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string) string
		op    string
	}{
		{
			name: "parent is a file",
			setup: func(t *testing.T, dir string) string {
				if err := os.WriteFile(filepath.Join(dir, "out"), nil, 0o644); err != nil {
					t.Fatal(err)
				}
				return filepath.Join(dir, "out", "bundle.js")
			},
			op: "mkdir",
		},
		{
			name: "target is a directory",
			setup: func(t *testing.T, dir string) string {
				target := filepath.Join(dir, "bundle.js")
				if err := os.MkdirAll(filepath.Join(target, "keep"), 0o755); err != nil {
					t.Fatal(err)
				}
				return target
			},
			op: "rename",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			a := &Artifact{Path: tt.setup(t, dir), Code: []byte("x;\n")}
			err := a.Write()
			var ioErr *errors.EmitIOError
			if !stderrors.As(err, &ioErr) {
				t.Fatalf("Write() error = %v, want EmitIOError", err)
			}
			if ioErr.Op != tt.op {
				t.Errorf("Op = %q, want %q", ioErr.Op, tt.op)
			}
			if !errors.Is(err, errors.ErrCodeEmitIO) {
				t.Errorf("GetCode() = %s, want %s", errors.GetCode(err), errors.ErrCodeEmitIO)
			}
			assertNoTemp(t, dir)
		})
	}
}

func TestWriteReadOnlyDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions do not apply to root")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(dir, 0o755) })

	a := &Artifact{Path: filepath.Join(dir, "bundle.js"), Code: []byte("x;\n")}
	if err := a.Write(); !errors.Is(err, errors.ErrCodeEmitIO) {
		t.Fatalf("Write() error = %v, want %s", err, errors.ErrCodeEmitIO)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("output directory has %d entries, want 0", len(entries))
	}
}

func assertNoTemp(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}
}

func TestMetafile(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js": "import { helper } from './util.js';\nconst Canvas = require('canvas');\nexport const result = helper(Canvas);\n",
		"util.js": "export function helper(c) { return c; }\n",
	})
	a, _ := emit(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})
	mf := a.Metafile()

	wantMain := []MetafileImport{
		{Path: "./util.js", Kind: "import-statement", Original: "./util.js"},
		{Path: "canvas", Kind: "require-call", External: true, Original: "canvas"},
	}
	if diff := cmp.Diff(wantMain, mf.Inputs["./main.js"].Imports); diff != "" {
		t.Errorf("main imports mismatch (-want +got):\n%s", diff)
	}
	if got := mf.Inputs["./util.js"].Format; got != "esm" {
		t.Errorf("util format = %q, want esm", got)
	}
	out, ok := mf.Outputs["bundle.js"]
	if !ok {
		t.Fatalf("Outputs = %v, want bundle.js", mf.Outputs)
	}
	if out.Bytes != len(a.Code) || out.EntryPoint != "./main.js" {
		t.Errorf("output = %+v", out)
	}
	wantExt := []MetafileImport{{Path: "canvas", Kind: "commonjs", External: true, Original: "canvas"}}
	if diff := cmp.Diff(wantExt, out.Imports); diff != "" {
		t.Errorf("output imports mismatch (-want +got):\n%s", diff)
	}
	if mf.BuildID != a.BuildID() || mf.Target != "es5" || mf.Host != "node" {
		t.Errorf("header = %s %s %s", mf.BuildID, mf.Target, mf.Host)
	}
}

func TestLocalBase(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"./util.js", "_util"},
		{"./lib/date-utils.js", "_dateUtils"},
		{"canvas", "_canvas"},
		{"@scope/pkg", "_pkg"},
		{"node:fs", "_fs"},
		{"./3d.js", "_d"},
		{"./---.js", "_module"},
	}
	for _, tt := range tests {
		if got := localBase(tt.key); got != tt.want {
			t.Errorf("localBase(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestGlobalPath(t *testing.T) {
	if got, want := globalPath("a.b"), `["a"]["b"]`; got != want {
		t.Errorf("globalPath() = %s, want %s", got, want)
	}
	if got, want := externalExpr(config.External{Strategy: config.StrategyGlobal, Name: "jQuery"}), `root["jQuery"]`; got != want {
		t.Errorf("externalExpr() = %s, want %s", got, want)
	}
}
