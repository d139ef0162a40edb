package modgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/goccy/go-graphviz"
)

// DOT renders the graph in Graphviz DOT format. Modules appear in emission
// order; externals are drawn dashed and labeled with their strategy.
func (g *Graph) DOT() string {
	var buf bytes.Buffer
	buf.WriteString("digraph modules {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("\n")

	order := g.Order()
	for _, id := range order {
		attrs := fmt.Sprintf("label=%q", id)
		if id == g.Entry {
			attrs += ", penwidth=2"
		}
		if g.Modules[id].SkipDowngrade {
			attrs += ", fillcolor=lightyellow"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id, attrs)
	}
	for _, key := range g.ExternalNames() {
		v := externalVertex(key)
		if g.vertexKind(v) != kindExternal {
			continue
		}
		e := g.Externals[key]
		fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n",
			v, key+"\n("+e.String()+")")
	}

	buf.WriteString("\n")
	for _, id := range order {
		for _, imp := range g.Modules[id].Imports {
			to := imp.Module
			if to == "" {
				to = externalVertex(imp.External)
			}
			attrs := ""
			if e, err := g.g.Edge(id, to); err == nil && e.Properties.Attributes[attrImportVia] == ImportRequire.String() {
				attrs = " [style=dashed]"
			}
			fmt.Fprintf(&buf, "  %q -> %q%s;\n", id, to, attrs)
		}
	}
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the graph to SVG with Graphviz.
func (g *Graph) RenderSVG(ctx context.Context) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	dg, err := graphviz.ParseBytes([]byte(g.DOT()))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer dg.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, dg, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// sized to the view box so that browsers scale the drawing.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

type graphJSON struct {
	Entry     string         `json:"entry"`
	Modules   []moduleJSON   `json:"modules"`
	Externals []externalJSON `json:"externals"`
	Cycles    [][]string     `json:"cycles,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

type moduleJSON struct {
	ID            string       `json:"id"`
	Bytes         int          `json:"bytes"`
	SkipDowngrade bool         `json:"skip_downgrade,omitempty"`
	Imports       []importJSON `json:"imports"`
}

type importJSON struct {
	Specifier string `json:"specifier"`
	Kind      string `json:"kind"`
	Line      int    `json:"line"`
	Module    string `json:"module,omitempty"`
	External  string `json:"external,omitempty"`
}

type externalJSON struct {
	Key        string   `json:"key"`
	Strategy   string   `json:"strategy"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Dependents []string `json:"dependents"`
}

// MarshalJSON encodes modules in emission order and externals sorted by
// key.
func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{Entry: g.Entry, Cycles: g.Cycles()}
	for _, id := range g.Order() {
		m := g.Modules[id]
		mj := moduleJSON{ID: id, Bytes: len(m.Source), SkipDowngrade: m.SkipDowngrade, Imports: []importJSON{}}
		for _, imp := range m.Imports {
			mj.Imports = append(mj.Imports, importJSON{
				Specifier: imp.Specifier,
				Kind:      imp.Kind.String(),
				Line:      imp.Line,
				Module:    imp.Module,
				External:  imp.External,
			})
		}
		out.Modules = append(out.Modules, mj)
	}
	out.Externals = []externalJSON{}
	for _, key := range g.ExternalNames() {
		e := g.Externals[key]
		out.Externals = append(out.Externals, externalJSON{
			Key:        key,
			Strategy:   string(e.Strategy),
			Name:       e.Name,
			Kind:       e.Kind.String(),
			Dependents: g.Dependents(key),
		})
	}
	for _, w := range g.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	return json.Marshal(out)
}

var _ json.Marshaler = (*Graph)(nil)

// vertexKind reports whether hash is a module or an external vertex.
func (g *Graph) vertexKind(hash string) string {
	_, props, err := g.g.VertexWithProperties(hash)
	if err != nil {
		return ""
	}
	return props.Attributes[attrKind]
}
