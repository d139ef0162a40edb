// Package config loads and validates build configuration.
//
// A configuration comes from a legacypack.toml or legacypack.hcl file,
// optionally overridden by command-line flags, and is resolved into an
// immutable [Config]: absolute paths, compiled patterns and a parsed
// [downgrade.Target].
//
// # Example
//
//	# legacypack.toml
//	entry = "./hexin-v.js"
//
//	[output]
//	filename = "hexin-v.bundle.js"
//
//	[target]
//	host = "node"
//	engine = "ie9"
//
//	[externals]
//	canvas = "commonjs canvas"
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/matzehuels/legacypack/pkg/downgrade"
	"github.com/matzehuels/legacypack/pkg/errors"
)

// Defaults applied by Resolve.
const (
	DefaultFilename = "bundle.js"
	DefaultHost     = HostNode
	DefaultEngine   = "es5"
	DefaultCache    = CacheFile
)

// DefaultExclude keeps third-party packages out of the bundle.
var DefaultExclude = []string{"/node_modules/"}

// Host is the environment that loads the artifact.
type Host string

const (
	HostNode Host = "node"
	HostWeb  Host = "web"
)

// Strategy is how the host supplies an external module.
type Strategy string

const (
	// StrategyCommonJS loads the module with the host's require.
	StrategyCommonJS Strategy = "commonjs"
	// StrategyGlobal reads a property of the global object.
	StrategyGlobal Strategy = "global"
)

// CacheKind selects the transform cache backend.
type CacheKind string

const (
	CacheNone   CacheKind = "none"
	CacheFile   CacheKind = "file"
	CacheMemory CacheKind = "memory"
	CacheRedis  CacheKind = "redis"
)

// External is a module supplied by the host at load time.
type External struct {
	Strategy Strategy
	// Name is the module name passed to require, or the global property.
	Name string
}

// String renders the external the way it is written in configuration.
func (e External) String() string { return string(e.Strategy) + " " + e.Name }

// Output describes the artifact location.
type Output struct {
	Path     string // absolute directory
	Filename string
	Library  string
	Metafile bool
}

// File returns the absolute artifact path.
func (o Output) File() string { return filepath.Join(o.Path, o.Filename) }

// NodeGlobals is the __dirname/__filename policy.
type NodeGlobals struct {
	Dirname  GlobalPolicy
	Filename GlobalPolicy
}

// Config is a resolved, validated build configuration. It is not modified
// after Resolve returns.
type Config struct {
	// Root is the project root; module IDs are relative to it.
	Root  string
	Entry string // absolute

	Output    Output
	Host      Host
	Target    downgrade.Target
	Externals map[string]External

	Exclude          []*regexp.Regexp
	TranspileExclude []*regexp.Regexp

	Minify   bool
	Node     NodeGlobals
	Cache    CacheKind
	RedisURL string
}

// Load reads the file at path (if any), applies overrides and resolves the
// result. Relative paths in the file are relative to its directory; with no
// file they are relative to the working directory.
func Load(path string, overrides *File) (*Config, error) {
	f := &File{}
	root := ""
	if path != "" {
		read, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		f = read
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "%s", path)
		}
		root = filepath.Dir(abs)
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "working directory")
		}
		root = wd
	}
	f.Merge(overrides)
	return Resolve(f, root)
}

// Resolve applies defaults to f and validates it. Relative paths are taken
// from root.
func Resolve(f *File, root string) (*Config, error) {
	if f == nil {
		f = &File{}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "%s", root)
	}
	cfg := &Config{Root: root}

	entry := deref(f.Entry, "")
	if entry == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "entry is required")
	}
	if err := errors.ValidateEntryPath(entry); err != nil {
		return nil, err
	}
	cfg.Entry = absFrom(root, entry)

	out := f.Output
	if out == nil {
		out = &OutputFile{}
	}
	cfg.Output = Output{
		Path:     absFrom(root, deref(out.Path, ".")),
		Filename: deref(out.Filename, DefaultFilename),
		Library:  deref(out.Library, ""),
		Metafile: deref(out.Metafile, false),
	}
	if err := errors.ValidateOutputFilename(cfg.Output.Filename); err != nil {
		return nil, err
	}
	if cfg.Output.Library != "" {
		if err := errors.ValidateLibraryName(cfg.Output.Library); err != nil {
			return nil, err
		}
	}

	tgt := f.Target
	if tgt == nil {
		tgt = &TargetFile{}
	}
	cfg.Host = Host(deref(tgt.Host, string(DefaultHost)))
	if cfg.Host != HostNode && cfg.Host != HostWeb {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "target.host must be %q or %q, got %q", HostNode, HostWeb, cfg.Host)
	}
	cfg.Target, err = downgrade.ParseTarget(deref(tgt.Engine, DefaultEngine), tgt.Features)
	if err != nil {
		return nil, err
	}

	cfg.Externals = make(map[string]External, len(f.Externals))
	for name, spec := range f.Externals {
		ext, err := ParseExternal(name, spec, cfg.Host)
		if err != nil {
			return nil, err
		}
		cfg.Externals[name] = ext
	}

	exclude := f.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	if cfg.Exclude, err = compile("exclude", exclude); err != nil {
		return nil, err
	}
	if cfg.TranspileExclude, err = compile("transpile_exclude", f.TranspileExclude); err != nil {
		return nil, err
	}

	cfg.Minify = deref(f.Minify, false)

	cfg.Node = NodeGlobals{Dirname: GlobalKeep, Filename: GlobalKeep}
	if f.Node != nil {
		if f.Node.Dirname != nil {
			cfg.Node.Dirname = *f.Node.Dirname
		}
		if f.Node.Filename != nil {
			cfg.Node.Filename = *f.Node.Filename
		}
	}
	for key, p := range map[string]GlobalPolicy{"node.dirname": cfg.Node.Dirname, "node.filename": cfg.Node.Filename} {
		if !p.valid() {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "%s must be false, \"mock\" or true, got %q", key, p)
		}
	}

	cfg.Cache = CacheKind(deref(f.Cache, string(DefaultCache)))
	cfg.RedisURL = deref(f.RedisURL, "")
	switch cfg.Cache {
	case CacheNone, CacheFile, CacheMemory:
	case CacheRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "cache = \"redis\" requires redis_url")
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown cache %q (want none, file, memory or redis)", cfg.Cache)
	}

	return cfg, nil
}

// ParseExternal parses an externals value such as "commonjs canvas" or
// "global Canvas". A bare name uses the host's default strategy: commonjs
// for node, global for web.
func ParseExternal(name, spec string, host Host) (External, error) {
	if err := errors.ValidateModuleName(name); err != nil {
		return External{}, err
	}
	fields := strings.Fields(spec)
	var ext External
	switch len(fields) {
	case 0:
		ext = External{Name: name}
	case 1:
		ext = External{Name: fields[0]}
	case 2:
		ext = External{Strategy: Strategy(fields[0]), Name: fields[1]}
	default:
		return External{}, errors.New(errors.ErrCodeInvalidConfig, "externals.%s: want \"<strategy> <name>\", got %q", name, spec)
	}
	if ext.Strategy == "" {
		ext.Strategy = StrategyCommonJS
		if host == HostWeb {
			ext.Strategy = StrategyGlobal
		}
	}
	switch ext.Strategy {
	case StrategyCommonJS:
		if err := errors.ValidateModuleName(ext.Name); err != nil {
			return External{}, err
		}
	case StrategyGlobal:
		if err := errors.ValidateLibraryName(ext.Name); err != nil {
			return External{}, err
		}
	default:
		return External{}, errors.New(errors.ErrCodeInvalidConfig, "externals.%s: unknown strategy %q", name, ext.Strategy)
	}
	return ext, nil
}

// ExternalNames returns the configured external names in sorted order.
func (c *Config) ExternalNames() []string {
	names := make([]string, 0, len(c.Externals))
	for n := range c.Externals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Excluded reports whether the absolute path matches an exclude pattern.
func (c *Config) Excluded(path string) bool { return matchAny(c.Exclude, path) }

// SkipDowngrade reports whether the absolute path matches a
// transpile_exclude pattern.
func (c *Config) SkipDowngrade(path string) bool { return matchAny(c.TranspileExclude, path) }

func matchAny(res []*regexp.Regexp, path string) bool {
	p := filepath.ToSlash(path)
	for _, re := range res {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func compile(key string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s: bad pattern %q", key, p)
		}
		out = append(out, re)
	}
	return out, nil
}

func absFrom(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

func deref[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}
