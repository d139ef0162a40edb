package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/legacypack/pkg/config"
	"github.com/matzehuels/legacypack/pkg/downgrade"
	"github.com/matzehuels/legacypack/pkg/errors"
)

// transformCommand creates the transform command, which downgrades a single
// file without bundling it.
func (c *CLI) transformCommand() *cobra.Command {
	var (
		engine   string
		features []string
		output   string
		explain  bool
	)

	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Downgrade one file and print the result",
		Long: `Transform parses a single source file, rewrites the syntax the target engine
lacks and prints the result. Imports are left untouched.`,
		Example: `  legacypack transform src/util.js
  legacypack transform src/util.js --engine es2015 -o util.es2015.js
  legacypack transform src/util.js --explain`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseFeatures(features)
			if err != nil {
				return err
			}
			t, err := downgrade.ParseTarget(engine, overrides)
			if err != nil {
				return err
			}
			if explain {
				printTarget(t)
				return nil
			}

			logger := loggerFromContext(cmd.Context())
			prog := newProgress(logger)
			src, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", args[0])
			}
			code, err := downgrade.DowngradeFile(args[0], string(src), t)
			if err != nil {
				return err
			}
			prog.done("downgraded", "file", args[0], "target", t.String(), "bytes", len(code))

			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), code)
				return err
			}
			if err := os.WriteFile(output, []byte(code), 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", output)
			}
			printSuccess("Transformed %s", args[0])
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&engine, "engine", config.DefaultEngine, "oldest engine to support")
	cmd.Flags().StringArrayVar(&features, "feature", nil, "feature the target supports natively, optionally feature=false (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	cmd.Flags().BoolVar(&explain, "explain", false, "list what the target rewrites and rejects, then exit")

	return cmd
}

// printTarget shows which features t rewrites and which it rejects.
func printTarget(t downgrade.Target) {
	rewritten, rejected := t.Describe()
	printKeyValue("Target", t.String())
	printKeyValue("Rewritten", joinFeatures(rewritten))
	printKeyValue("Rejected", joinFeatures(rejected))
}

func joinFeatures(fs []downgrade.Feature) string {
	if len(fs) == 0 {
		return StyleDim.Render("none")
	}
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
