package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/amanthanvi/tripbook/internal/app"
	"github.com/amanthanvi/tripbook/internal/record"
	"github.com/amanthanvi/tripbook/internal/storage"
	"github.com/amanthanvi/tripbook/internal/tui"
)

var runBrowserFn = tui.Run

func newBrowseCommand(deps commandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse, search and delete records in an interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("browse does not accept positional arguments")
			}
			return withRuntime(cmd.Context(), deps, func(_ context.Context, rt *runtime) error {
				return runBrowserFn(tui.Options{
					Client: browserClient{rt: rt},
					IsTTY: func() bool {
						return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
					},
				})
			})
		},
	}
}

// browserClient serves the terminal UI straight from the loaded runtime.
type browserClient struct {
	rt *runtime
}

func (c browserClient) List(ctx context.Context, recordType string) ([]*record.Record, error) {
	svc, err := c.service(recordType)
	if err != nil {
		return nil, err
	}
	return svc.List(ctx)
}

func (c browserClient) Search(ctx context.Context, recordType, value string) ([]*record.Record, error) {
	return c.rt.search.Search(ctx, app.SearchRequest{
		Type:  recordType,
		Field: storage.AllFields,
		Value: value,
		Match: app.MatchContains,
	})
}

func (c browserClient) Delete(ctx context.Context, recordType string, id int64) error {
	svc, err := c.service(recordType)
	if err != nil {
		return err
	}
	return svc.Delete(ctx, id)
}

func (c browserClient) service(recordType string) (*app.RecordService, error) {
	svc, ok := c.rt.records[recordType]
	if !ok {
		return nil, usageErrorf("unknown record type %q", recordType)
	}
	return svc, nil
}
