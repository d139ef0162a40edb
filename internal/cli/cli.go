// Package cli implements the legacypack command-line interface.
//
// # Commands
//
//   - build: bundle an entry module for a legacy engine
//   - transform: downgrade a single file
//   - graph: print the module graph as DOT, SVG or JSON
//   - cache: inspect and clear the transform cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which also
// shows per-module downgrade and cache events from the pipeline. The logger
// travels through context.Context and is shared with the pipeline Runner.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/legacypack/pkg/buildinfo"
	"github.com/matzehuels/legacypack/pkg/cache"
	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "legacypack"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Legacypack bundles JavaScript modules for legacy engines",
		Long: `Legacypack follows the imports of an entry module, rewrites modern syntax
for an older engine and links every module into a single self-contained file.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.buildCommand())
	root.AddCommand(c.transformCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner backed by the cache cfg selects.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) (*pipeline.Runner, error) {
	store, keyer, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(store, keyer, c.Logger), nil
}

// newCache opens the transform cache. A missing user cache directory
// disables caching instead of failing the build.
func newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, cache.Keyer, error) {
	kind := cfg.Cache
	if noCache {
		kind = config.CacheNone
	}
	switch kind {
	case config.CacheNone:
		return cache.NewNullCache(), nil, nil
	case config.CacheMemory:
		store, err := cache.NewMemoryCache(0)
		return store, nil, err
	case config.CacheRedis:
		store, err := cache.NewRedisCache(ctx, cache.RedisConfig{URL: cfg.RedisURL})
		if err != nil {
			return nil, nil, err
		}
		return store, cache.NewScopedKeyer(nil, appName+":"), nil
	default:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil, nil
		}
		store, err := cache.NewFileCache(dir)
		return store, nil, err
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the transform cache directory (~/.cache/legacypack/ on
// Linux, honouring XDG_CACHE_HOME).
func cacheDir() (string, error) {
	return cache.DefaultDir()
}
