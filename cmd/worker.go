package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/api"
	"github.com/JakeFAU/summit-index-crawler/internal/assignment"
	"github.com/JakeFAU/summit-index-crawler/internal/clock/system"
	"github.com/JakeFAU/summit-index-crawler/internal/schedule"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Serve the assignment API and expire stale assignments",
		Long: `Runs the worker role: accepts crawl queue assignments from the coordinator
on worker.port and drops them when no keep-alive arrives within
worker.keep_alive_ttl.`,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	store := assignment.NewStore(system.NewMonotonic(), cfg.Worker.KeepAliveTTL, logger.Named("assignment"))
	keepAlive, err := schedule.New("keep-alive", cfg.Worker.KeepAliveCheckInterval, func(_ context.Context) {
		store.MonitorKeepAlive()
	}, schedule.WithLogger(logger.Named("schedule")))
	if err != nil {
		return err
	}

	server := api.NewWorkerServer(store, logger.Named("api"))
	logger.Info("worker starting",
		zap.Int("port", cfg.Worker.Port),
		zap.Duration("keep_alive_ttl", cfg.Worker.KeepAliveTTL),
	)
	return runUntilDone(ctx, cfg.Worker.Port, server.Handler(), schedule.NewGroup(keepAlive),
		shutdownTimeoutOrDefault(cfg.Server.ShutdownTimeout), logger)
}
