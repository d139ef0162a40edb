package bundle

import (
	"encoding/json"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/legacypack/pkg/modgraph"
)

// Metafile is the build report, laid out like an esbuild metafile with a
// few additions describing the build.
type Metafile struct {
	BuildID string                    `json:"buildId"`
	Host    string                    `json:"host"`
	Target  string                    `json:"target"`
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput is an inlined module.
type MetafileInput struct {
	Bytes         int              `json:"bytes"`
	Imports       []MetafileImport `json:"imports"`
	Format        string           `json:"format,omitempty"`
	SkipDowngrade bool             `json:"skipDowngrade,omitempty"`
}

// MetafileImport is one dependency of an input or the output.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput is the written artifact.
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint"`
	Minified   bool                    `json:"minified,omitempty"`
}

// InputContrib is the share of an input in the output.
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// BuildID identifies the artifact by content: rebuilding identical inputs
// yields the same ID.
func (a *Artifact) BuildID() string {
	return uuid.NewSHA1(uuid.NameSpaceURL, a.Code).String()
}

// Metafile returns the build report.
func (a *Artifact) Metafile() *Metafile {
	mf := &Metafile{
		BuildID: a.BuildID(),
		Host:    string(a.Host),
		Target:  a.Target,
		Inputs:  make(map[string]MetafileInput, len(a.Inputs)),
		Outputs: make(map[string]MetafileOutput, 1),
	}
	out := MetafileOutput{
		Bytes:      len(a.Code),
		Inputs:     make(map[string]InputContrib, len(a.Inputs)),
		Imports:    []MetafileImport{},
		Exports:    a.Exports,
		EntryPoint: a.Entry,
		Minified:   a.Minified,
	}
	if out.Exports == nil {
		out.Exports = []string{}
	}
	for _, in := range a.Inputs {
		mi := MetafileInput{Bytes: in.Bytes, Imports: []MetafileImport{}, Format: in.Format, SkipDowngrade: in.SkipDowngrade}
		for _, imp := range in.Imports {
			mi.Imports = append(mi.Imports, metafileImport(imp))
		}
		mf.Inputs[in.ID] = mi
		out.Inputs[in.ID] = InputContrib{BytesInOutput: in.BytesInOutput}
	}
	for _, e := range a.Externals {
		out.Imports = append(out.Imports, MetafileImport{Path: e.Name, Kind: string(e.Strategy), External: true, Original: e.Key})
	}
	mf.Outputs[filepath.Base(a.Path)] = out
	return mf
}

// Report encodes the build report as indented JSON.
func (a *Artifact) Report() ([]byte, error) {
	data, err := json.MarshalIndent(a.Metafile(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func metafileImport(imp *modgraph.Import) MetafileImport {
	kind := "import-statement"
	switch imp.Kind {
	case modgraph.ImportRequire:
		kind = "require-call"
	case modgraph.ImportReexport:
		kind = "export-from"
	}
	if imp.External != "" {
		return MetafileImport{Path: imp.External, Kind: kind, External: true, Original: imp.Specifier}
	}
	return MetafileImport{Path: imp.Module, Kind: kind, Original: imp.Specifier}
}
