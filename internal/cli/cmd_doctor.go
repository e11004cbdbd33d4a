package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record file and audit status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("status does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				health, err := rt.stats.Health(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, health)
				}
				if deps.globals.Quiet {
					return nil
				}
				_, err = fmt.Fprintf(
					deps.out,
					"status=%s records=%d file=%s audit=%s\n",
					health.Status,
					health.RecordCount,
					boolToState(health.FileExists, health.DataFile, "missing"),
					boolToState(health.Audit, "enabled", "disabled"),
				)
				return err
			})
		},
	}
}

func newDoctorCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check config, record file and audit journal health",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("doctor does not accept positional arguments")
			}

			bundle := collectDiagnostics(cmd.Context(), deps)
			if deps.globals.JSON {
				if err := printJSON(deps.out, map[string]any{"checks": bundle.Checks}); err != nil {
					return mapCommandError(err)
				}
			} else if !deps.globals.Quiet {
				for _, check := range bundle.Checks {
					state := "ok"
					if !check.OK {
						state = "fail"
					}
					if _, err := fmt.Fprintf(deps.out, "%s: %s (%s)\n", check.Name, state, check.Message); err != nil {
						return mapCommandError(err)
					}
				}
			}

			if !bundle.Healthy() {
				return &ExitError{Code: ExitCodeGeneric, Err: errors.New("doctor: one or more checks failed")}
			}
			return nil
		},
	}
}
