package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanthanvi/tripbook/internal/api"
	"github.com/amanthanvi/tripbook/internal/config"
)

func newServeCommand(deps commandDeps) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the record store over a JSON HTTP API",
		Example: "  tripbook serve\n" +
			"  tripbook serve --listen 0.0.0.0:5000",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 {
				return usageErrorf("serve does not accept positional arguments")
			}

			overrideListen := func(opts *config.LoadOptions) {
				if trimmed := strings.TrimSpace(listen); trimmed != "" {
					opts.Flags.Listen = &trimmed
				}
			}
			return withRuntime(cmd.Context(), deps, func(ctx context.Context, rt *runtime) error {
				server, err := api.NewServer(api.Config{
					Listen:          rt.cfg.Server.Listen,
					ReadTimeout:     rt.cfg.Server.ReadTimeout,
					WriteTimeout:    rt.cfg.Server.WriteTimeout,
					ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
					RatePerSecond:   rt.cfg.Server.RatePerSecond,
					RateBurst:       rt.cfg.Server.RateBurst,
				}, api.Services{
					Records:  rt.records,
					Search:   rt.search,
					Stats:    rt.stats,
					Recorder: rt.recorder,
				}, api.VersionInfo{
					Version:   deps.build.Version,
					Commit:    deps.build.Commit,
					BuildTime: deps.build.BuildTime,
				}, rt.logger)
				if err != nil {
					return err
				}

				listener, err := net.Listen("tcp", rt.cfg.Server.Listen)
				if err != nil {
					return fmt.Errorf("listen %s: %w", rt.cfg.Server.Listen, err)
				}

				if !deps.globals.Quiet {
					if _, err := fmt.Fprintf(deps.out, "serving %d records on http://%s/api/\n", rt.repo.Len(), listener.Addr()); err != nil {
						_ = listener.Close()
						return err
					}
				}

				sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()
				return server.Serve(sigCtx, listener)
			}, overrideListen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (overrides config)")
	return cmd
}
