package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	debugpkg "github.com/amanthanvi/tripbook/internal/debug"
)

func newDebugCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Diagnostics helpers",
		Example: "  tripbook debug bundle --output ./tripbook-debug.json",
	}
	cmd.AddCommand(newDebugBundleCommand(deps))
	return cmd
}

func newDebugBundleCommand(deps commandDeps) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Collect diagnostics without record contents into a JSON bundle",
		Example: "  tripbook debug bundle --output ./tripbook-debug.json\n" +
			"  tripbook --json debug bundle --output ./tripbook-debug.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("debug bundle does not accept positional arguments")
			}
			if strings.TrimSpace(outputPath) == "" {
				return usageErrorf("debug bundle requires --output")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)
			if err := debugpkg.WriteBundle(outputPath, bundle); err != nil {
				return mapCommandError(err)
			}
			if deps.globals.JSON {
				return printJSON(deps.out, map[string]any{"output": outputPath, "healthy": bundle.Healthy()})
			}
			if deps.globals.Quiet {
				return nil
			}
			_, err := fmt.Fprintf(deps.out, "debug bundle written: %s\n", outputPath)
			return mapCommandError(err)
		},
	}
	cmd.Flags().StringVar(&outputPath, "output", "", "Output JSON bundle path")
	return cmd
}
