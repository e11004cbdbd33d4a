package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/tripbook/internal/audit"
)

func newAuditCommand(deps commandDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the tamper-evident journal of record changes",
		Example: "  tripbook audit list --limit 50\n" +
			"  tripbook audit verify",
	}
	cmd.AddCommand(
		newAuditListCommand(deps),
		newAuditVerifyCommand(deps),
	)
	return cmd
}

func newAuditListCommand(deps commandDeps) *cobra.Command {
	var (
		limit  int
		action string
		kind   string
		target string
		since  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit events",
		Example: "  tripbook audit list\n" +
			"  tripbook audit list --action record.delete --since 24h\n" +
			"  tripbook audit list --type flight --target 3",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("audit list does not accept positional arguments")
			}
			if limit < 0 || since < 0 {
				return usageErrorf("--limit and --since must not be negative")
			}
			return withAudit(cmd.Context(), deps, func(ctx context.Context, svc *audit.Service) error {
				filter := audit.Filter{Action: action, TargetType: kind, TargetID: target, Limit: limit}
				if since > 0 {
					from := time.Now().UTC().Add(-since)
					filter.Since = &from
				}
				events, err := svc.List(ctx, filter)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if events == nil {
						events = []audit.RecordedEvent{}
					}
					return printJSON(deps.out, events)
				}
				if deps.globals.Quiet {
					return nil
				}
				for _, event := range events {
					if _, err := fmt.Fprintf(
						deps.out,
						"%d %s action=%s target=%s/%s result=%s\n",
						event.Seq,
						event.Timestamp.Format(time.RFC3339),
						event.Action,
						event.TargetType,
						event.TargetID,
						event.Result,
					); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of events (0 uses the journal default of 1000)")
	cmd.Flags().StringVar(&action, "action", "", "Only events with this action, e.g. record.create")
	cmd.Flags().StringVar(&kind, "type", "", "Only events for this target type: client, airline, flight, store or server")
	cmd.Flags().StringVar(&target, "target", "", "Only events for this target ID")
	cmd.Flags().DurationVar(&since, "since", 0, "Only events newer than this age, e.g. 24h")
	return cmd
}

func newAuditVerifyCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify audit hash chain integrity",
		Example: "  tripbook audit verify\n" +
			"  tripbook --json audit verify",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("audit verify does not accept positional arguments")
			}
			return withAudit(cmd.Context(), deps, func(ctx context.Context, svc *audit.Service) error {
				result, err := svc.Verify(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					if err := printJSON(deps.out, result); err != nil {
						return err
					}
				} else if !deps.globals.Quiet {
					if _, err := fmt.Fprintf(
						deps.out,
						"valid=%t events=%d chain_tip=%s error=%s\n",
						result.Valid,
						result.EventCount,
						result.ChainTip,
						result.Error,
					); err != nil {
						return err
					}
				}
				if !result.Valid {
					return &ExitError{Code: ExitCodeGeneric, Err: fmt.Errorf("audit chain is broken: %s", result.Error)}
				}
				return nil
			})
		},
	}
}

func withAudit(cmdCtx context.Context, deps commandDeps, fn func(context.Context, *audit.Service) error) error {
	if deps.globals != nil && deps.globals.NoAudit {
		return usageErrorf("audit commands cannot run with --no-audit")
	}
	return withRuntime(cmdCtx, deps, func(ctx context.Context, rt *runtime) error {
		if rt.audit == nil {
			return usageErrorf("audit journal is disabled (audit.enabled = false)")
		}
		return fn(ctx, rt.audit)
	})
}
