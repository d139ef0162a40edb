// Package pkg provides the libraries behind legacypack, a bundler that links
// JavaScript modules into one file runnable on legacy engines.
//
// # Overview
//
// The pkg directory is organized by pipeline stage:
//
//  1. [js] - Parser, scope analysis and printer for the JavaScript subset
//  2. [modgraph] - Module resolution and the import graph
//  3. [downgrade] - Rewrites modern syntax for an older target
//  4. [bundle] - Links modules into the artifact and writes it
//  5. [pipeline] - Orchestration (resolve → downgrade → emit)
//
// Supporting packages: [config] (project files and defaults), [cache]
// (transform cache backends), [errors] (coded and typed build errors),
// [observability] (pipeline hooks) and [buildinfo] (version stamps).
//
// # Architecture
//
// The data flow of one build:
//
//	legacypack.toml / flags
//	         ↓
//	    [config] package (resolved Config)
//	         ↓
//	    [modgraph] package (entry → module graph, externals)
//	         ↓
//	    [downgrade] package (per module, cached, in parallel)
//	         ↓
//	    [bundle] package (runtime + factories → bundle.js)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/legacypack/pkg/config"
//	    "github.com/matzehuels/legacypack/pkg/pipeline"
//	)
//
//	cfg, err := config.Load("legacypack.toml", nil)
//	if err != nil {
//	    return err
//	}
//	runner := pipeline.NewRunner(nil, nil, nil)
//	res, err := runner.Execute(context.Background(), pipeline.Options{Config: cfg})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Artifact.Path)
//
// Downgrade a single snippet without bundling:
//
//	t, _ := downgrade.ParseTarget("es5", nil)
//	out, err := downgrade.Downgrade("const f = (x) => x * 2;", t)
//
// [js]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/js
// [modgraph]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/modgraph
// [downgrade]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/downgrade
// [bundle]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/bundle
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/pipeline
// [config]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/config
// [cache]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/cache
// [errors]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/legacypack/pkg/buildinfo
package pkg
