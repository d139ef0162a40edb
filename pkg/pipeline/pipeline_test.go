package pipeline

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/legacypack/pkg/cache"
	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/observability"
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

func options(t *testing.T, dir string, f *config.File) Options {
	t.Helper()
	if f.Entry == nil {
		f.Entry = ptr("main.js")
	}
	cfg, err := config.Resolve(f, dir)
	if err != nil {
		t.Fatalf("config.Resolve() error: %v", err)
	}
	return Options{Config: cfg}
}

func newRunner(t *testing.T, c cache.Cache) *Runner {
	t.Helper()
	return NewRunner(c, nil, log.New(io.Discard))
}

var canvasProject = map[string]string{
	"main.js": "import { helper } from './util.js';\nconst Canvas = require('canvas');\nexport const result = helper(Canvas);\n",
	"util.js": "export const helper = (c) => `drawn with ${c}`;\n",
}

func TestExecute(t *testing.T) {
	dir := project(t, canvasProject)
	opts := options(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})

	res, err := newRunner(t, nil).Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if res.Stats.ModuleCount != 2 || res.Stats.ExternalCount != 1 || res.Stats.EdgeCount != 2 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	data, err := os.ReadFile(filepath.Join(dir, "bundle.js"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(data) != string(res.Artifact.Code) {
		t.Error("written artifact differs from result")
	}
	if res.Stats.Bytes != len(data) {
		t.Errorf("Stats.Bytes = %d, want %d", res.Stats.Bytes, len(data))
	}
	for _, id := range []string{"./main.js", "./util.js"} {
		if res.Graph.Modules[id].Code == "" {
			t.Errorf("%s was not downgraded", id)
		}
	}
}

func TestExecuteUsesCache(t *testing.T) {
	dir := project(t, canvasProject)
	opts := options(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})
	mem, err := cache.NewMemoryCache(0)
	if err != nil {
		t.Fatal(err)
	}
	r := newRunner(t, mem)

	first, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Execute() error: %v", err)
	}
	if diff := cmp.Diff(CacheInfo{Misses: 2}, first.CacheInfo); diff != "" {
		t.Errorf("first CacheInfo mismatch (-want +got):\n%s", diff)
	}

	second, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute() error: %v", err)
	}
	if diff := cmp.Diff(CacheInfo{Hits: 2}, second.CacheInfo); diff != "" {
		t.Errorf("second CacheInfo mismatch (-want +got):\n%s", diff)
	}
	if string(first.Artifact.Code) != string(second.Artifact.Code) {
		t.Error("cached build differs from fresh build")
	}

	opts.Refresh = true
	third, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("refresh Execute() error: %v", err)
	}
	if third.CacheInfo.Hits != 0 {
		t.Errorf("refresh CacheInfo.Hits = %d, want 0", third.CacheInfo.Hits)
	}
}

func TestExecuteTargetChangesCacheKey(t *testing.T) {
	dir := project(t, canvasProject)
	mem, _ := cache.NewMemoryCache(0)
	r := newRunner(t, mem)
	ext := map[string]string{"canvas": "commonjs canvas"}

	if _, err := r.Execute(context.Background(), options(t, dir, &config.File{Externals: ext})); err != nil {
		t.Fatal(err)
	}
	res, err := r.Execute(context.Background(), options(t, dir, &config.File{
		Externals: ext,
		Target:    &config.TargetFile{Features: map[string]bool{"arrow-functions": true}},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.CacheInfo.Hits != 0 {
		t.Errorf("CacheInfo.Hits = %d, want 0 after target change", res.CacheInfo.Hits)
	}
}

func TestExecuteFailsFast(t *testing.T) {
	dir := project(t, map[string]string{
		"main.js":  "import './a.js';\nimport './b.js';\n",
		"a.js":     "export const a = 1;\n",
		"b.js":     "export class B {}\n",
		"keep.txt": "untouched",
	})
	_, err := newRunner(t, nil).Execute(context.Background(), options(t, dir, &config.File{}))
	var us *errors.UnsupportedSyntaxError
	if !stderrors.As(err, &us) {
		t.Fatalf("Execute() error = %v, want UnsupportedSyntaxError", err)
	}
	if us.Path != "./b.js" {
		t.Errorf("Path = %q, want ./b.js", us.Path)
	}
	if _, err := os.Stat(filepath.Join(dir, "bundle.js")); !os.IsNotExist(err) {
		t.Errorf("artifact written despite failure: %v", err)
	}
}

func TestExecuteUnresolved(t *testing.T) {
	dir := project(t, map[string]string{"main.js": "import x from './missing.js';\n"})
	_, err := newRunner(t, nil).Execute(context.Background(), options(t, dir, &config.File{}))
	if !errors.Is(err, errors.ErrCodeUnresolvedImport) {
		t.Fatalf("Execute() error = %v, want %s", err, errors.ErrCodeUnresolvedImport)
	}
}

func TestExecuteDryRun(t *testing.T) {
	dir := project(t, canvasProject)
	opts := options(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}})
	opts.DryRun = true
	res, err := newRunner(t, nil).Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if len(res.Artifact.Code) == 0 {
		t.Error("dry run produced no code")
	}
	if _, err := os.Stat(filepath.Join(dir, "bundle.js")); !os.IsNotExist(err) {
		t.Errorf("dry run wrote the artifact: %v", err)
	}
}

func TestExecuteCancelled(t *testing.T) {
	dir := project(t, canvasProject)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(t, nil).Execute(ctx, options(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}}))
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("ValidateAndSetDefaults() error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
	o = Options{Config: &config.Config{}}
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults() error: %v", err)
	}
	if o.Concurrency < 1 || o.Logger == nil {
		t.Errorf("defaults not applied: %+v", o)
	}
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu         sync.Mutex
	downgraded map[string]bool
	emitted    int
}

func (h *recordingHooks) OnModuleDowngraded(_ context.Context, id string, cached bool, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.downgraded[id] = cached
}

func (h *recordingHooks) OnEmitComplete(_ context.Context, _ string, bytes int, _ time.Duration, err error) {
	h.emitted = bytes
}

func TestExecuteReportsHooks(t *testing.T) {
	hooks := &recordingHooks{downgraded: make(map[string]bool)}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	dir := project(t, canvasProject)
	res, err := newRunner(t, nil).Execute(context.Background(), options(t, dir, &config.File{Externals: map[string]string{"canvas": "commonjs canvas"}}))
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if diff := cmp.Diff(map[string]bool{"./main.js": false, "./util.js": false}, hooks.downgraded); diff != "" {
		t.Errorf("downgrade events mismatch (-want +got):\n%s", diff)
	}
	if hooks.emitted != len(res.Artifact.Code) {
		t.Errorf("emit event bytes = %d, want %d", hooks.emitted, len(res.Artifact.Code))
	}
}
