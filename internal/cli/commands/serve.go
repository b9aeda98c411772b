package commands

import (
	"fmt"

	"github.com/leapstack-labs/wqlbridge/internal/metrics"
	"github.com/leapstack-labs/wqlbridge/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve bridge queries over HTTP",
		Long: `Start an HTTP server that answers bridge queries.

Endpoints:
- POST /v1/query       {"namespace": ..., "query": ..., "properties": [...]}
- GET  /v1/namespaces  namespaces the bridge serves
- GET  /v1/events      server-sent fixture reload events (--watch)
- GET  /metrics        Prometheus metrics
- GET  /healthz        liveness

With --watch and the memory adapter, the fixture file is reloaded whenever
it changes on disk.`,
		Example: `  # Serve on the default address
  wqlbridge serve

  # Serve a fixture and reload it on change
  wqlbridge serve --adapter memory --adapter-path fixture.yaml --watch

  # Listen on all interfaces
  wqlbridge serve --addr 0.0.0.0:8765`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	// Bound to server.addr and server.watch by the config loader.
	cmd.Flags().String("addr", "", "Listen address (default: 127.0.0.1:8765)")
	cmd.Flags().Bool("watch", false, "Reload the fixture file when it changes")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	m := metrics.New()

	cmdCtx, cleanup, err := NewCommandContext(cmd, m)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := server.Config{
		Bridge:  cmdCtx.Bridge,
		Metrics: m,
		Addr:    cmdCtx.Cfg.Server.Addr,
		Watch:   cmdCtx.Cfg.Server.Watch,
		Logger:  cmdCtx.Logger,
	}
	if r, ok := cmdCtx.Adapter.(server.Reloader); ok {
		cfg.Reloader = r
	} else if cfg.Watch {
		cmdCtx.Logger.Warn("--watch ignored: adapter has no fixture file to reload")
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving wqlbridge on http://%s\n", cfg.Addr)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

	return server.New(cfg).Serve(cmd.Context())
}
