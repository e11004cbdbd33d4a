package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/tripbook/internal/app"
)

func newSearchCommand(deps commandDeps) *cobra.Command {
	var req app.SearchRequest
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find records whose field equals (or contains) a value, ignoring case",
		Example: "  tripbook search --field City --value oslo\n" +
			"  tripbook search --type flight --field \"End City\" --value par --match contains\n" +
			"  tripbook search --type client --value berg --match contains",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("search does not accept positional arguments")
			}
			if strings.TrimSpace(req.Value) == "" {
				return usageErrorf("search requires --value")
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				found, err := rt.search.Search(ctx, req)
				if err != nil {
					return err
				}
				return writeRecordList(deps, found)
			})
		},
	}
	cmd.Flags().StringVar(&req.Type, "type", "", "Restrict to client, airline or flight")
	cmd.Flags().StringVar(&req.Field, "field", "all", "Field to compare, or all")
	cmd.Flags().StringVar(&req.Value, "value", "", "Value to look for")
	cmd.Flags().StringVar(&req.Match, "match", app.MatchExact, "exact or contains")
	return cmd
}

func newStatsCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the record collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("stats does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				stats, err := rt.stats.Stats(ctx)
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, stats)
				}
				_, err = fmt.Fprintf(
					deps.out,
					"total=%d clients=%d airlines=%d flights=%d untyped=%d next_id=%d\nstart_cities=%s\nend_cities=%s\n",
					stats.TotalRecords,
					stats.Clients,
					stats.Airlines,
					stats.Flights,
					stats.Untyped,
					stats.NextID,
					strings.Join(stats.UniqueStartCities, ","),
					strings.Join(stats.UniqueEndCities, ","),
				)
				return err
			})
		},
	}
}

func newNextIDCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "next-id",
		Short: "Print the ID the next created record will receive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("next-id does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, func(_ context.Context, rt *runtime) error {
				next, err := rt.repo.NextID()
				if err != nil {
					return err
				}
				if deps.globals.JSON {
					return printJSON(deps.out, map[string]int64{"next_id": next})
				}
				_, err = fmt.Fprintln(deps.out, next)
				return err
			})
		},
	}
}
