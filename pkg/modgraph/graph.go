package modgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/dominikbraun/graph"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
)

// Vertex attributes stored in the underlying graph.
const (
	attrKind      = "kind"
	kindModule    = "module"
	kindExternal  = "external"
	attrImportVia = "via"
)

// Options configures Build.
type Options struct {
	// Logger receives debug output and warnings. Defaults to log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Warning is a non-fatal finding of the traversal.
type Warning struct {
	Module  string
	Line    int
	Message string
}

func (w Warning) String() string { return fmt.Sprintf("%s:%d: %s", w.Module, w.Line, w.Message) }

// Graph is the dependency graph of a build: the entry, every module
// reachable through inlined imports and the externals they reference.
type Graph struct {
	Root      string
	Entry     string
	Modules   map[string]*Module
	Externals map[string]*External
	Warnings  []Warning

	g graph.Graph[string, string]
}

func newGraph(root string) *Graph {
	return &Graph{
		Root:      root,
		Modules:   make(map[string]*Module),
		Externals: make(map[string]*External),
		g:         graph.New(graph.StringHash, graph.Directed()),
	}
}

// Build discovers the modules reachable from cfg.Entry.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Graph, error) {
	opts = opts.WithDefaults()

	fi, err := os.Stat(cfg.Entry)
	if err != nil {
		return nil, &errors.EntryNotFoundError{Path: cfg.Entry, Err: err}
	}
	if !fi.Mode().IsRegular() {
		return nil, &errors.EntryNotFoundError{Path: cfg.Entry, Err: fmt.Errorf("not a regular file")}
	}

	b := &builder{
		ctx:      ctx,
		cfg:      cfg,
		logger:   opts.Logger,
		resolver: NewResolver(cfg),
		g:        newGraph(cfg.Root),
	}
	b.g.Entry = moduleID(cfg.Root, cfg.Entry)
	if err := b.visit(cfg.Entry, nil); err != nil {
		return nil, err
	}
	return b.g, nil
}

type builder struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *log.Logger
	resolver *Resolver
	g        *Graph
}

// visit reads, parses and registers the module at path, then visits its
// dependencies depth-first in source order. site is the import that led
// here, nil for the entry.
func (b *builder) visit(path string, site *errors.UnresolvedImportError) error {
	if err := b.ctx.Err(); err != nil {
		return err
	}
	id := moduleID(b.cfg.Root, path)
	data, err := os.ReadFile(path)
	if err != nil {
		if site == nil {
			return &errors.EntryNotFoundError{Path: path, Err: err}
		}
		site.Err = err
		return site
	}
	m := &Module{
		ID:            id,
		Path:          path,
		Source:        string(data),
		SkipDowngrade: b.cfg.SkipDowngrade(path),
	}
	b.g.Modules[id] = m
	_ = b.g.g.AddVertex(id, graph.VertexAttribute(attrKind, kindModule))

	if m.JSON() {
		if !json.Valid(data) {
			return errors.New(errors.ErrCodeSyntax, "%s: invalid JSON", id)
		}
		return nil
	}

	prog, err := js.Parse(m.Source)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSyntax, err, "%s", id)
	}
	m.ESM = prog.IsModule()
	found, dynamic := discover(prog)
	for _, line := range dynamic {
		w := Warning{Module: id, Line: line, Message: "require with a computed argument is left to the host"}
		b.g.Warnings = append(b.g.Warnings, w)
		b.logger.Warn("dynamic require", "module", id, "line", line)
	}

	for _, f := range found {
		res, ok := b.resolver.Resolve(path, f.specifier)
		if !ok {
			return &errors.UnresolvedImportError{Importer: id, Specifier: f.specifier, Line: f.line}
		}
		imp := &Import{Specifier: f.specifier, Kind: f.kind, Line: f.line}
		m.Imports = append(m.Imports, imp)

		if res.External != nil {
			imp.External = res.External.Key
			b.addExternal(res.External)
			_ = b.g.g.AddEdge(id, externalVertex(res.External.Key), graph.EdgeAttribute(attrImportVia, f.kind.String()))
			continue
		}

		dep := moduleID(b.cfg.Root, res.Path)
		imp.Module = dep
		if _, seen := b.g.Modules[dep]; !seen {
			site := &errors.UnresolvedImportError{Importer: id, Specifier: f.specifier, Line: f.line}
			if err := b.visit(res.Path, site); err != nil {
				return err
			}
		}
		_ = b.g.g.AddEdge(id, dep, graph.EdgeAttribute(attrImportVia, f.kind.String()))
	}
	b.logger.Debug("module", "id", id, "imports", len(m.Imports))
	return nil
}

func (b *builder) addExternal(e *External) {
	if _, ok := b.g.Externals[e.Key]; ok {
		return
	}
	b.g.Externals[e.Key] = e
	_ = b.g.g.AddVertex(externalVertex(e.Key), graph.VertexAttribute(attrKind, kindExternal))
	b.logger.Debug("external", "name", e.Key, "strategy", e.Strategy, "kind", e.Kind)
}

// externalVertex is the vertex hash of an external. Module IDs start with
// "./", "../" or a root, so the prefix cannot collide with them.
func externalVertex(key string) string { return "external:" + key }

// Order returns the module IDs in emission order: a depth-first post-order
// from the entry following imports in source order, with the back edges of
// cycles skipped. Dependencies come before the modules that import them.
func (g *Graph) Order() []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.Modules))
	order := make([]string, 0, len(g.Modules))

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = gray
		for _, imp := range g.Modules[id].Imports {
			if imp.Module != "" && color[imp.Module] == white {
				dfs(imp.Module)
			}
		}
		color[id] = black
		order = append(order, id)
	}
	if _, ok := g.Modules[g.Entry]; ok {
		dfs(g.Entry)
	}
	return order
}

// ExternalNames returns the external keys in sorted order.
func (g *Graph) ExternalNames() []string {
	names := make([]string, 0, len(g.Externals))
	for k := range g.Externals {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Dependents returns the sorted IDs of the modules that import id, which
// may be a module ID or an external key.
func (g *Graph) Dependents(id string) []string {
	if _, ok := g.Externals[id]; ok {
		id = externalVertex(id)
	}
	preds, err := g.g.PredecessorMap()
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(preds[id]))
	for p := range preds[id] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Cycles returns the import cycles among inlined modules, each as a sorted
// list of module IDs. Cycles are legal; they are reported for diagnostics.
func (g *Graph) Cycles() [][]string {
	sccs, err := graph.StronglyConnectedComponents(g.g)
	if err != nil {
		return nil
	}
	var out [][]string
	for _, c := range sccs {
		if len(c) == 1 && !g.selfImport(c[0]) {
			continue
		}
		sort.Strings(c)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

func (g *Graph) selfImport(id string) bool {
	m := g.Modules[id]
	if m == nil {
		return false
	}
	for _, imp := range m.Imports {
		if imp.Module == id {
			return true
		}
	}
	return false
}

// EdgeCount returns the number of import edges, externals included.
func (g *Graph) EdgeCount() int {
	n, err := g.g.Size()
	if err != nil {
		return 0
	}
	return n
}
