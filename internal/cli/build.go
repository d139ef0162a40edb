package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/pipeline"
)

// buildFlags holds the flag values shared by the commands that load a
// project configuration.
type buildFlags struct {
	config    string
	output    string
	filename  string
	library   string
	host      string
	engine    string
	externals []string
	exclude   []string
	features  []string
	minify    bool
	metafile  bool
	noCache   bool
	refresh   bool
	dryRun    bool
}

// buildCommand creates the build command.
func (c *CLI) buildCommand() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build [entry]",
		Short: "Bundle an entry module and its imports into one file",
		Long: `Build resolves every module reachable from the entry, downgrades modern
syntax for the target engine and writes a single bundle.

Settings are read from legacypack.toml or legacypack.hcl in the working
directory (or the file given with --config); flags override the file.`,
		Example: `  # Bundle for Node with the defaults
  legacypack build src/main.js

  # Browser bundle that reads jQuery from the page
  legacypack build src/app.js --host web --external jquery="global jQuery" --library App

  # Keep arrow functions for an engine that has them
  legacypack build src/main.js --engine es5 --feature arrow-functions`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeEntry,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := flags.overrides(cmd.Flags(), args)
			if err != nil {
				return err
			}
			if err := flags.applyOutput(cmd.Flags(), overrides); err != nil {
				return err
			}
			cfg, err := loadConfig(flags.config, overrides)
			if err != nil {
				return err
			}
			return c.runBuild(cmd, cfg, flags)
		},
	}

	flags.register(cmd.Flags())
	flags.registerOutput(cmd.Flags())
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the transform cache")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "ignore cached transforms")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "build without writing the bundle")

	return cmd
}

// register adds the flags that select the project, host and target.
func (f *buildFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.config, "config", "c", "", "config file (default legacypack.toml or legacypack.hcl)")
	fs.StringVar(&f.host, "host", "", "host environment: node or web")
	fs.StringVar(&f.engine, "engine", "", "oldest engine to support (es5, es2015, ie11, node4, ...)")
	fs.StringArrayVar(&f.externals, "external", nil, `external module as name="commonjs name" or name="global Name" (repeatable)`)
	fs.StringArrayVar(&f.exclude, "exclude", nil, "regexp of paths to leave out of the traversal (repeatable)")
	fs.StringArrayVar(&f.features, "feature", nil, "feature the target supports natively, optionally feature=false (repeatable)")
	_ = cobra.MarkFlagFilename(fs, "config", "toml", "hcl")
}

// registerOutput adds the flags that shape the artifact.
func (f *buildFlags) registerOutput(fs *pflag.FlagSet) {
	fs.StringVarP(&f.output, "output", "o", "", "output directory")
	fs.StringVarP(&f.filename, "filename", "f", "", "output file name (default bundle.js)")
	fs.StringVar(&f.library, "library", "", "global name that receives the entry exports")
	fs.BoolVar(&f.minify, "minify", false, "compact the bundle")
	fs.BoolVar(&f.metafile, "metafile", false, "write a build report next to the bundle")
}

// overrides converts the project and target flags that were set on the
// command line into a config layer. The entry is made absolute against the
// working directory.
func (f *buildFlags) overrides(fs *pflag.FlagSet, args []string) (*config.File, error) {
	o := &config.File{}
	if len(args) > 0 {
		entry, err := filepath.Abs(args[0])
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "%s", args[0])
		}
		o.Entry = &entry
	}

	target := &config.TargetFile{}
	if fs.Changed("host") {
		target.Host = &f.host
	}
	if fs.Changed("engine") {
		target.Engine = &f.engine
	}
	features, err := parseFeatures(f.features)
	if err != nil {
		return nil, err
	}
	target.Features = features
	if target.Host != nil || target.Engine != nil || target.Features != nil {
		o.Target = target
	}

	for _, v := range f.externals {
		name, spec, ok := strings.Cut(v, "=")
		if !ok || name == "" || spec == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "--external %s: expected name=strategy", v)
		}
		if o.Externals == nil {
			o.Externals = make(map[string]string)
		}
		o.Externals[name] = spec
	}
	if len(f.exclude) > 0 {
		o.Exclude = f.exclude
	}
	return o, nil
}

// applyOutput adds the output flags of the build command to o.
func (f *buildFlags) applyOutput(fs *pflag.FlagSet, o *config.File) error {
	output := &config.OutputFile{}
	if fs.Changed("output") {
		dir, err := filepath.Abs(f.output)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "%s", f.output)
		}
		output.Path = &dir
	}
	if fs.Changed("filename") {
		output.Filename = &f.filename
	}
	if fs.Changed("library") {
		output.Library = &f.library
	}
	if fs.Changed("metafile") {
		output.Metafile = &f.metafile
	}
	if *output != (config.OutputFile{}) {
		o.Output = output
	}

	if fs.Changed("minify") {
		o.Minify = &f.minify
	}
	return nil
}

// parseFeatures reads feature flags of the form name or name=bool.
func parseFeatures(values []string) (map[string]bool, error) {
	var features map[string]bool
	for _, v := range values {
		name, value, hasValue := strings.Cut(v, "=")
		supported := true
		if hasValue {
			switch strings.ToLower(value) {
			case "true", "1", "yes":
			case "false", "0", "no":
				supported = false
			default:
				return nil, errors.New(errors.ErrCodeInvalidInput, "--feature %s: value must be true or false", v)
			}
		}
		if features == nil {
			features = make(map[string]bool)
		}
		features[name] = supported
	}
	return features, nil
}

// loadConfig reads path, or the default config file of the working
// directory when path is empty, and applies overrides. Without any config
// file the project root is the directory of the entry given on the command
// line.
func loadConfig(path string, overrides *config.File) (*config.Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "working directory")
		}
		path = config.Find(wd)
	}
	if path == "" && overrides.Entry != nil {
		return config.Resolve(overrides, filepath.Dir(*overrides.Entry))
	}
	return config.Load(path, overrides)
}

func (c *CLI) runBuild(cmd *cobra.Command, cfg *config.Config, flags buildFlags) error {
	ctx := cmd.Context()
	runner, err := c.newRunner(ctx, cfg, flags.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Bundling "+relPath(cfg.Entry)+"...")
	spinner.Start()
	res, err := runner.Execute(ctx, pipeline.Options{
		Config:  cfg,
		Refresh: flags.refresh,
		DryRun:  flags.dryRun,
	})
	if err != nil {
		spinner.StopWithError("Build failed")
		return err
	}
	spinner.Stop()

	for _, w := range res.Graph.Warnings {
		printWarning("%s", w)
	}
	if flags.dryRun {
		printSuccess("Bundle assembled (dry run, %s)", formatBytes(res.Stats.Bytes))
	} else {
		printSuccess("Bundle written")
		printFile(relPath(res.Artifact.Path))
		if res.Artifact.MetafilePath != "" {
			printFile(relPath(res.Artifact.MetafilePath))
		}
	}
	printStats(res.Stats, res.CacheInfo)
	printDetail("Target: %s (%s)", cfg.Target, cfg.Host)
	if !flags.dryRun {
		printNextStep("Inspect the module graph", fmt.Sprintf("%s graph %s --format svg", appName, relPath(cfg.Entry)))
	}
	return nil
}

// relPath shortens p to a path relative to the working directory when it
// lies below it.
func relPath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return rel
}
