package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/matzehuels/legacypack/pkg/errors"
)

// DefaultFiles are the configuration file names Find looks for, in order.
var DefaultFiles = []string{"legacypack.toml", "legacypack.hcl"}

// File is the raw content of a configuration file or of command-line
// overrides. Unset fields are nil so that Merge can tell "absent" from
// "false" or "".
type File struct {
	Entry            *string           `toml:"entry" hcl:"entry,optional"`
	Minify           *bool             `toml:"minify" hcl:"minify,optional"`
	Exclude          []string          `toml:"exclude" hcl:"exclude,optional"`
	TranspileExclude []string          `toml:"transpile_exclude" hcl:"transpile_exclude,optional"`
	Externals        map[string]string `toml:"externals" hcl:"externals,optional"`
	Cache            *string           `toml:"cache" hcl:"cache,optional"`
	RedisURL         *string           `toml:"redis_url" hcl:"redis_url,optional"`

	Output *OutputFile `toml:"output" hcl:"output,block"`
	Target *TargetFile `toml:"target" hcl:"target,block"`
	Node   *NodeFile   `toml:"node" hcl:"node,block"`
}

// OutputFile is the [output] table.
type OutputFile struct {
	Path     *string `toml:"path" hcl:"path,optional"`
	Filename *string `toml:"filename" hcl:"filename,optional"`
	Library  *string `toml:"library" hcl:"library,optional"`
	Metafile *bool   `toml:"metafile" hcl:"metafile,optional"`
}

// TargetFile is the [target] table.
type TargetFile struct {
	Host     *string         `toml:"host" hcl:"host,optional"`
	Engine   *string         `toml:"engine" hcl:"engine,optional"`
	Features map[string]bool `toml:"features" hcl:"features,optional"`
}

// NodeFile is the [node] table.
type NodeFile struct {
	Dirname  *GlobalPolicy `toml:"dirname" hcl:"dirname,optional"`
	Filename *GlobalPolicy `toml:"filename" hcl:"filename,optional"`
}

// ReadFile decodes a .toml or .hcl configuration file. Unknown keys are
// errors so that typos do not silently fall back to defaults.
func ReadFile(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return readTOML(path)
	case ".hcl":
		return readHCL(path)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unsupported config format (want .toml or .hcl)", path)
}

func readTOML(path string) (*File, error) {
	var f File
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config file %s not found", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return &f, nil
}

func readHCL(path string) (*File, error) {
	parser := hclparse.NewParser()
	hf, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, diags, "%s", path)
	}
	var f File
	if diags := gohcl.DecodeBody(hf.Body, nil, &f); diags.HasErrors() {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, diags, "%s", path)
	}
	return &f, nil
}

// Find returns the first default configuration file present in dir, or ""
// when there is none.
func Find(dir string) string {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// Merge copies every field set in o over f.
func (f *File) Merge(o *File) {
	if o == nil {
		return
	}
	setString(&f.Entry, o.Entry)
	setBool(&f.Minify, o.Minify)
	setString(&f.Cache, o.Cache)
	setString(&f.RedisURL, o.RedisURL)
	if o.Exclude != nil {
		f.Exclude = o.Exclude
	}
	if o.TranspileExclude != nil {
		f.TranspileExclude = o.TranspileExclude
	}
	for name, v := range o.Externals {
		if f.Externals == nil {
			f.Externals = make(map[string]string)
		}
		f.Externals[name] = v
	}
	if o.Output != nil {
		if f.Output == nil {
			f.Output = &OutputFile{}
		}
		setString(&f.Output.Path, o.Output.Path)
		setString(&f.Output.Filename, o.Output.Filename)
		setString(&f.Output.Library, o.Output.Library)
		setBool(&f.Output.Metafile, o.Output.Metafile)
	}
	if o.Target != nil {
		if f.Target == nil {
			f.Target = &TargetFile{}
		}
		setString(&f.Target.Host, o.Target.Host)
		setString(&f.Target.Engine, o.Target.Engine)
		for name, v := range o.Target.Features {
			if f.Target.Features == nil {
				f.Target.Features = make(map[string]bool)
			}
			f.Target.Features[name] = v
		}
	}
	if o.Node != nil {
		if f.Node == nil {
			f.Node = &NodeFile{}
		}
		if o.Node.Dirname != nil {
			f.Node.Dirname = o.Node.Dirname
		}
		if o.Node.Filename != nil {
			f.Node.Filename = o.Node.Filename
		}
	}
}

func setString(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

func setBool(dst **bool, v *bool) {
	if v != nil {
		*dst = v
	}
}

// GlobalPolicy controls what __dirname and __filename mean in the bundle.
type GlobalPolicy string

const (
	// GlobalKeep leaves the host's own value.
	GlobalKeep GlobalPolicy = "false"
	// GlobalMock substitutes "/" and "/index.js".
	GlobalMock GlobalPolicy = "mock"
	// GlobalRelative substitutes the module's project-relative location.
	GlobalRelative GlobalPolicy = "true"
)

// UnmarshalTOML accepts true, false or "mock".
func (p *GlobalPolicy) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case bool:
		if v {
			*p = GlobalRelative
		} else {
			*p = GlobalKeep
		}
		return nil
	case string:
		*p = GlobalPolicy(v)
		return nil
	}
	return fmt.Errorf("want true, false or \"mock\", got %v", v)
}

func (p GlobalPolicy) valid() bool {
	switch p {
	case GlobalKeep, GlobalMock, GlobalRelative:
		return true
	}
	return false
}
