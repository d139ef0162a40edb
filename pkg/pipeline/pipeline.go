// Package pipeline provides the build pipeline shared by the CLI commands.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Resolve: walk the module graph from the entry ([modgraph.Build])
//  2. Downgrade: rewrite every inlined module for the target, in parallel
//     and through the transform cache
//  3. Emit: link the modules into one artifact and write it atomically
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Config: cfg})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Artifact.Path)
package pipeline

import (
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/legacypack/pkg/bundle"
	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/modgraph"
)

// Options contains all configuration for one build.
type Options struct {
	// Config is the resolved build configuration. Required.
	Config *config.Config

	// Refresh ignores cached transforms; fresh results are still stored.
	Refresh bool
	// DryRun assembles the artifact without writing it.
	DryRun bool
	// Concurrency bounds the parallel downgrade. Defaults to GOMAXPROCS.
	Concurrency int

	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Graph is the resolved module graph with downgraded code attached.
	Graph *modgraph.Graph

	// Artifact is the assembled bundle.
	Artifact *bundle.Artifact

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks transform cache usage.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ModuleCount   int
	ExternalCount int
	EdgeCount     int
	Bytes         int
	ResolveTime   time.Duration
	DowngradeTime time.Duration
	EmitTime      time.Duration
}

// CacheInfo counts transform cache lookups.
type CacheInfo struct {
	Hits   int // modules served from the cache
	Misses int // modules downgraded in this run
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Config == nil {
		return errors.New(errors.ErrCodeInvalidInput, "config is required")
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}
