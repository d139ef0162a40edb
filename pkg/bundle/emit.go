package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/js"
	"github.com/matzehuels/legacypack/pkg/modgraph"
)

// Options configures Emit.
type Options struct {
	// Logger receives debug output. Defaults to log.Default().
	Logger *log.Logger
}

// WithDefaults returns a copy with unset fields filled in.
func (o Options) WithDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Artifact is an assembled bundle that has not been written yet.
type Artifact struct {
	// Path is the absolute output file.
	Path         string
	// MetafilePath is the report path, empty when no report is written.
	MetafilePath string
	// Code is the artifact text.
	Code         []byte

	Entry     string
	Host      config.Host
	Target    string
	Minified  bool
	Inputs    []Input
	Externals []*modgraph.External
	// Exports lists the names exported by the entry module.
	Exports   []string
}

// Input describes one inlined module of an artifact.
type Input struct {
	ID            string
	// Bytes is the size of the source file.
	Bytes         int
	// BytesInOutput is the size of the module factory before minification.
	BytesInOutput int
	// Format is "esm", "cjs" or "json".
	Format        string
	SkipDowngrade bool
	Imports       []*modgraph.Import
}

// Emit assembles the artifact for g. Modules are linked from their
// downgraded code and emitted in g.Order(), so identical inputs produce
// identical bytes.
func Emit(ctx context.Context, g *modgraph.Graph, cfg *config.Config, opts Options) (*Artifact, error) {
	opts = opts.WithDefaults()

	a := &Artifact{
		Path:   cfg.Output.File(),
		Entry:  g.Entry,
		Host:   cfg.Host,
		Target: cfg.Target.String(),
	}
	if cfg.Output.Metafile {
		a.MetafilePath = a.Path + ".meta.json"
	}

	keys := g.ExternalNames()
	refs := make(map[string]config.External, len(keys))
	for _, key := range keys {
		refs[key] = g.Externals[key].External
		a.Externals = append(a.Externals, g.Externals[key])
	}

	var b strings.Builder
	b.WriteString(runtimeHead)
	writeExternals(&b, keys, refs)
	b.WriteString(runtimeRegistry)
	writeEntry(&b, g.Entry, cfg.Output.Library)
	b.WriteString("})(" + runtimeRoot + ", {\n")

	order := g.Order()
	for i, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m := g.Modules[id]
		body, linked, err := factoryBody(m, g, cfg)
		if err != nil {
			return nil, err
		}
		factory := "  // " + id + "\n  " + js.Quote(id) + ": function (module, exports, " + RequireName + ") {\n" + body + "  }"
		if i < len(order)-1 {
			factory += ","
		}
		factory += "\n"
		b.WriteString(factory)

		in := Input{
			ID:            id,
			Bytes:         len(m.Source),
			BytesInOutput: len(factory),
			Format:        format(m),
			SkipDowngrade: m.SkipDowngrade,
			Imports:       m.Imports,
		}
		a.Inputs = append(a.Inputs, in)
		if id == g.Entry && linked != nil {
			a.Exports = linked.Exports
		}
		opts.Logger.Debug("emit", "module", id, "bytes", in.BytesInOutput)
	}
	b.WriteString("});\n")
	a.Code = []byte(b.String())

	if cfg.Minify {
		code, err := Minify(a.Code, cfg.Target)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("minify", "before", len(a.Code), "after", len(code))
		a.Code = code
		a.Minified = true
	}
	return a, nil
}

func format(m *modgraph.Module) string {
	switch {
	case m.JSON():
		return "json"
	case m.ESM:
		return "esm"
	}
	return "cjs"
}

// factoryBody returns the indented body of the factory for m.
func factoryBody(m *modgraph.Module, g *modgraph.Graph, cfg *config.Config) (string, *Linked, error) {
	if m.JSON() {
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(m.Source)); err != nil {
			return "", nil, errors.Wrap(errors.ErrCodeSyntax, err, "%s", m.ID)
		}
		text := strings.NewReplacer("\u2028", `\u2028`, "\u2029", `\u2029`).Replace(buf.String())
		return "    module.exports = " + text + ";\n", nil, nil
	}
	prog, err := js.Parse(m.Text())
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeSyntax, err, "%s", m.ID)
	}
	linked, err := Link(m, prog, g, LinkOptions{Node: cfg.Node})
	if err != nil {
		return "", nil, err
	}
	return js.PrintIndent(prog, 2), linked, nil
}
