package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/metrics"
	"github.com/teranos/autoblog/pulse/schedule"
	"github.com/teranos/autoblog/server"
	"github.com/teranos/autoblog/sym"
)

// ServeCmd runs the HTTP API, the worker pool and the schedule ticker
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: sym.Pulse + " Run the API server, workers and scheduler",
	Long: sym.Pulse + ` serve: the long-running autoblog process.

Starts, in order:
- orphan recovery (queued jobs re-dispatched, interrupted jobs failed)
- the worker pool that runs generate-and-publish jobs
- the schedule ticker that sweeps due schedules
- the HTTP API with the /ws/jobs live feed and /metrics

Ctrl+C stops the ticker, then the server, then the workers.

Examples:
  autoblog serve
  autoblog serve --port 9000 --no-ticker`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().Int("port", 0, "Listen port (default from am config)")
	ServeCmd.Flags().Bool("no-ticker", false, "Do not sweep schedules automatically")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.start()
	if err := a.recoverOrphans(ctx); err != nil {
		return err
	}

	var ticker *schedule.Ticker
	interval := schedule.ConfigFrom(a.cfg).TickerInterval
	if noTicker, _ := cmd.Flags().GetBool("no-ticker"); !noTicker && interval > 0 {
		ticker = schedule.NewTicker(ctx, a.scheduler, interval, a.logger)
		ticker.Start()
		defer ticker.Stop()
	}

	srv := server.New(server.Deps{
		Store:        a.store,
		Trigger:      a.trigger,
		Orchestrator: a.orch,
		Sites:        a.wordpress,
		Runs:         a.runs,
		Usage:        a.usage,
		Pool:         a.pool,
		Ticker:       ticker,
		Hub:          a.hub,
		Metrics:      metrics.HTTPHandler(a.registry),
		Config:       a.cfg,
	}, a.logger)

	if path := am.ProjectConfigPath(); path != "" {
		watcher, err := am.NewConfigWatcher(path, a.logger)
		if err != nil {
			a.logger.Warnw("Config hot reload disabled", logger.FieldError, err)
		} else {
			// only the WebSocket origin allow-list is applied live
			watcher.OnReload(func(cfg *am.Config) error {
				srv.SetAllowedOrigins(cfg.Server.AllowedOrigins)
				return nil
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	port := a.cfg.GetServerPort()
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		port = p
	}
	addr := fmt.Sprintf(":%d", port)

	logger.AddPulseOpenSymbol(a.logger).Infow("autoblog serving",
		logger.FieldAddress, addr,
		"workers", a.pool.Workers(),
		"ticker", ticker != nil)

	if err := srv.Serve(ctx, addr); err != nil {
		return err
	}
	logger.AddPulseCloseSymbol(a.logger).Infow("autoblog stopped")
	return nil
}
