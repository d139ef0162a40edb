package modgraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/legacypack/pkg/config"
)

// Extensions are tried, in order, for specifiers without a matching file.
var Extensions = []string{".js", ".mjs", ".cjs", ".json"}

// Resolution is the outcome of resolving one specifier.
type Resolution struct {
	// Path is the absolute file to inline, empty for externals.
	Path string
	// External is set when the host supplies the module.
	External *External
}

// Resolver maps import specifiers to files or externals.
type Resolver struct {
	cfg *config.Config
}

// NewResolver creates a resolver for cfg.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve resolves specifier as imported by the file at importer. The
// boolean result is false when nothing matches.
func (r *Resolver) Resolve(importer, specifier string) (Resolution, bool) {
	if ext, ok := r.cfg.Externals[specifier]; ok {
		return Resolution{External: &External{Key: externalKey(specifier), External: ext, Kind: ExternalDeclared}}, true
	}
	if r.cfg.Host == config.HostNode && IsBuiltin(specifier) {
		return Resolution{External: &External{
			Key:      specifier,
			External: config.External{Strategy: config.StrategyCommonJS, Name: specifier},
			Kind:     ExternalBuiltin,
		}}, true
	}

	var path string
	var ok bool
	if isPathSpecifier(specifier) {
		p := specifier
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(importer), filepath.FromSlash(specifier))
		}
		path, ok = r.resolvePath(p)
	} else {
		path, ok = r.resolvePackage(filepath.Dir(importer), specifier)
	}
	if !ok {
		return Resolution{}, false
	}
	if r.cfg.Excluded(path) {
		key, name := specifier, specifier
		if isPathSpecifier(specifier) {
			key = externalKey(moduleID(r.cfg.Root, path))
			name = r.outputRelative(path)
		}
		return Resolution{External: &External{
			Key:      key,
			External: config.External{Strategy: config.StrategyCommonJS, Name: name},
			Kind:     ExternalExcluded,
		}}, true
	}
	return Resolution{Path: path}, true
}

// externalKey maps a specifier to its key in the externals table. Module
// IDs are path-like, so path-like specifiers get a prefix to keep the two
// namespaces of the runtime registry apart.
func externalKey(specifier string) string {
	if isPathSpecifier(specifier) {
		return "external:" + specifier
	}
	return specifier
}

// outputRelative is the specifier the host needs to load path from the
// artifact's directory.
func (r *Resolver) outputRelative(path string) string {
	rel, err := filepath.Rel(r.cfg.Output.Path, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") {
		return rel
	}
	return "./" + rel
}

func isPathSpecifier(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		strings.HasPrefix(s, "/")
}

// resolvePath applies file, extension and directory resolution to p.
func (r *Resolver) resolvePath(p string) (string, bool) {
	if f, ok := r.resolveFile(p); ok {
		return f, true
	}
	return r.resolveDir(p)
}

func (r *Resolver) resolveFile(p string) (string, bool) {
	if r.isFile(p) {
		return p, true
	}
	for _, ext := range Extensions {
		if r.isFile(p + ext) {
			return p + ext, true
		}
	}
	return "", false
}

func (r *Resolver) resolveDir(dir string) (string, bool) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return "", false
	}
	if main := packageMain(filepath.Join(dir, "package.json")); main != "" {
		p := filepath.Join(dir, filepath.FromSlash(main))
		if f, ok := r.resolveFile(p); ok {
			return f, true
		}
		if f, ok := r.resolveIndex(p); ok {
			return f, true
		}
	}
	return r.resolveIndex(dir)
}

func (r *Resolver) resolveIndex(dir string) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(dir, "index"+ext)
		if r.isFile(p) {
			return p, true
		}
	}
	return "", false
}

// resolvePackage searches node_modules directories from dir up to the
// project root.
func (r *Resolver) resolvePackage(dir, specifier string) (string, bool) {
	if specifier == "" || strings.HasPrefix(specifier, "@") && !strings.Contains(specifier, "/") {
		return "", false
	}
	rel := filepath.FromSlash(specifier)
	for {
		if filepath.Base(dir) != "node_modules" {
			if p, ok := r.resolvePath(filepath.Join(dir, "node_modules", rel)); ok {
				return p, true
			}
		}
		if dir == r.cfg.Root || !within(r.cfg.Root, dir) {
			return "", false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

func (r *Resolver) isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

// within reports whether dir is root or below it.
func within(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// packageMain returns the "main" field of a package.json, or "".
func packageMain(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if json.Unmarshal(data, &pkg) != nil {
		return ""
	}
	return pkg.Main
}
