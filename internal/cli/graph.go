package cli

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/legacypack/pkg/errors"
	"github.com/matzehuels/legacypack/pkg/modgraph"
	"github.com/matzehuels/legacypack/pkg/pipeline"
)

// Graph output formats.
const (
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatJSON = "json"
)

// graphCommand creates the graph command, which resolves the module graph
// without downgrading or emitting anything.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		flags  buildFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "graph [entry]",
		Short: "Print the module graph of an entry",
		Long: `Graph resolves every module reachable from the entry and prints the import
graph as Graphviz DOT, rendered SVG or JSON. Externals appear as leaves.`,
		Example: `  legacypack graph src/main.js
  legacypack graph src/main.js --format svg -o graph.svg
  legacypack graph --format json | jq '.modules[].id'`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: completeEntry,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != formatDOT && format != formatSVG && format != formatJSON {
				return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (use dot, svg or json)", format)
			}
			overrides, err := flags.overrides(cmd.Flags(), args)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(flags.config, overrides)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			logger := loggerFromContext(ctx)
			runner := pipeline.NewRunner(nil, nil, logger)
			prog := newProgress(logger)
			g, err := runner.Resolve(ctx, pipeline.Options{Config: cfg})
			if err != nil {
				return err
			}
			prog.done("resolved graph", "modules", len(g.Modules), "externals", len(g.Externals))
			for _, w := range g.Warnings {
				logger.Warn(w.Message, "module", w.Module, "line", w.Line)
			}
			for _, cycle := range g.Cycles() {
				logger.Info("import cycle", "modules", strings.Join(cycle, " -> "))
			}

			data, err := renderGraph(cmd, g, format)
			if err != nil {
				return err
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
			}
			printSuccess("Graph written")
			printFile(output)
			return nil
		},
	}

	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", formatDOT, "output format: dot, svg or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	return cmd
}

func renderGraph(cmd *cobra.Command, g *modgraph.Graph, format string) ([]byte, error) {
	switch format {
	case formatSVG:
		return g.RenderSVG(cmd.Context())
	case formatJSON:
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return []byte(g.DOT()), nil
	}
}
