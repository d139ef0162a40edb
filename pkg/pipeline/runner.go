package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/legacypack/pkg/buildinfo"
	"github.com/matzehuels/legacypack/pkg/bundle"
	"github.com/matzehuels/legacypack/pkg/cache"
	"github.com/matzehuels/legacypack/pkg/downgrade"
	"github.com/matzehuels/legacypack/pkg/modgraph"
	"github.com/matzehuels/legacypack/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger; it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete resolve → downgrade → emit pipeline. The first
// error of any stage ends the build; nothing is written in that case.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{}

	// Stage 1: Resolve
	resolveStart := time.Now()
	g, err := r.Resolve(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Graph = g
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Stats.ModuleCount = len(g.Modules)
	result.Stats.ExternalCount = len(g.Externals)
	result.Stats.EdgeCount = g.EdgeCount()

	opts.Logger.Info("resolved modules",
		"modules", result.Stats.ModuleCount,
		"externals", result.Stats.ExternalCount,
		"duration", result.Stats.ResolveTime)

	// Stage 2: Downgrade
	downgradeStart := time.Now()
	info, err := r.Downgrade(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	result.CacheInfo = info
	result.Stats.DowngradeTime = time.Since(downgradeStart)

	opts.Logger.Info("downgraded modules",
		"target", opts.Config.Target,
		"cached", info.Hits,
		"duration", result.Stats.DowngradeTime)

	// Stage 3: Emit
	emitStart := time.Now()
	a, err := r.Emit(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	result.Artifact = a
	result.Stats.Bytes = len(a.Code)
	result.Stats.EmitTime = time.Since(emitStart)

	opts.Logger.Info("emitted bundle",
		"path", a.Path,
		"bytes", result.Stats.Bytes,
		"duration", result.Stats.EmitTime)

	return result, nil
}

// Resolve builds the module graph from the configured entry.
func (r *Runner) Resolve(ctx context.Context, opts Options) (*modgraph.Graph, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	entry := opts.Config.Entry
	hooks.OnResolveStart(ctx, entry)
	start := time.Now()
	g, err := modgraph.Build(ctx, opts.Config, modgraph.Options{Logger: opts.Logger})
	count := 0
	if g != nil {
		count = len(g.Modules)
	}
	hooks.OnResolveComplete(ctx, entry, count, time.Since(start), err)
	return g, err
}

// Downgrade rewrites every inlined module of g for the configured target
// and stores the result in Module.Code. Modules are processed concurrently,
// each goroutine writing only its own module; the first failure cancels the
// remaining work and is returned.
func (r *Runner) Downgrade(ctx context.Context, g *modgraph.Graph, opts Options) (CacheInfo, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return CacheInfo{}, err
	}

	var pending []*modgraph.Module
	for _, id := range g.Order() {
		m := g.Modules[id]
		if m.JSON() || m.SkipDowngrade {
			continue
		}
		pending = append(pending, m)
	}

	hooks := observability.Pipeline()
	target := opts.Config.Target.String()
	hooks.OnDowngradeStart(ctx, target, len(pending))
	start := time.Now()

	hits := make([]bool, len(pending))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Concurrency)
	for i, m := range pending {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			moduleStart := time.Now()
			code, hit, err := r.downgradeModule(ctx, m, opts)
			hooks.OnModuleDowngraded(ctx, m.ID, hit, time.Since(moduleStart), err)
			if err != nil {
				return err
			}
			m.Code = code
			hits[i] = hit
			return nil
		})
	}
	err := eg.Wait()
	hooks.OnDowngradeComplete(ctx, target, time.Since(start), err)
	if err != nil {
		return CacheInfo{}, err
	}

	var info CacheInfo
	for _, hit := range hits {
		if hit {
			info.Hits++
		} else {
			info.Misses++
		}
	}
	return info, nil
}

// downgradeModule returns the downgraded code of m and whether it came
// from the cache. Cache failures are logged and never fail the build.
func (r *Runner) downgradeModule(ctx context.Context, m *modgraph.Module, opts Options) (string, bool, error) {
	key := r.Keyer.TransformKey([]byte(m.Source), cache.TransformKeyOpts{
		Target:  opts.Config.Target.String(),
		Version: buildinfo.CacheSalt(),
	})
	cacheHooks := observability.Cache()

	if !opts.Refresh {
		data, hit, err := r.Cache.Get(ctx, key)
		switch {
		case err != nil:
			opts.Logger.Debug("cache read failed", "module", m.ID, "error", err)
		case hit:
			cacheHooks.OnCacheHit(ctx, "transform")
			return string(data), true, nil
		default:
			cacheHooks.OnCacheMiss(ctx, "transform")
		}
	}

	code, err := downgrade.DowngradeFile(m.ID, m.Source, opts.Config.Target)
	if err != nil {
		return "", false, err
	}
	if err := r.Cache.Set(ctx, key, []byte(code), cache.TTLTransform); err != nil {
		opts.Logger.Debug("cache write failed", "module", m.ID, "error", err)
	} else {
		cacheHooks.OnCacheSet(ctx, "transform", len(code))
	}
	opts.Logger.Debug("downgraded", "module", m.ID, "bytes", len(code))
	return code, false, nil
}

// Emit assembles the artifact for g and writes it unless opts.DryRun is set.
func (r *Runner) Emit(ctx context.Context, g *modgraph.Graph, opts Options) (*bundle.Artifact, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	path := opts.Config.Output.File()
	hooks.OnEmitStart(ctx, path)
	start := time.Now()

	a, err := bundle.Emit(ctx, g, opts.Config, bundle.Options{Logger: opts.Logger})
	if err == nil && !opts.DryRun {
		err = a.Write()
	}
	size := 0
	if a != nil {
		size = len(a.Code)
	}
	hooks.OnEmitComplete(ctx, path, size, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
