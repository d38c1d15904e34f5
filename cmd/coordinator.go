package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/api"
	"github.com/JakeFAU/summit-index-crawler/internal/clock/system"
	"github.com/JakeFAU/summit-index-crawler/internal/coordinator"
	"github.com/JakeFAU/summit-index-crawler/internal/health"
	"github.com/JakeFAU/summit-index-crawler/internal/id/uuid"
	"github.com/JakeFAU/summit-index-crawler/internal/refresh"
	"github.com/JakeFAU/summit-index-crawler/internal/schedule"
	"github.com/JakeFAU/summit-index-crawler/internal/taskmonitor"
	"github.com/JakeFAU/summit-index-crawler/internal/telemetry"
	"github.com/JakeFAU/summit-index-crawler/internal/workerclient"
)

func newCoordinatorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coordinator",
		Short: "Run the task, health, refresh and assignment loops",
		Long: `Runs the coordinator role: refreshes due index sources, drives crawl task
lifecycle, probes worker health and periodically reassigns crawl queues to
healthy workers. Serves a diagnostics API on server.port.`,
		RunE: runCoordinator,
	}
}

func runCoordinator(cmd *cobra.Command, _ []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := a.cfg, a.logger

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var cl closers
	defer cl.run()

	queue, err := buildQueue(cfg.Queue, logger, &cl)
	if err != nil {
		return err
	}
	st, err := buildStores(ctx, cfg.Store, logger, &cl)
	if err != nil {
		return err
	}
	hub, err := buildHub(ctx, cfg.Events, logger, &cl)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutOrDefault(cfg.Server.ShutdownTimeout))
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("lifecycle hub close failed", zap.Error(err))
		}
	}()

	shutdownTracing, err := telemetry.Init(ctx, "summitcrawler-coordinator")
	if err != nil {
		return err
	}
	cl.add(func() { _ = shutdownTracing(context.Background()) })

	clock := system.New()
	client := workerclient.New(&http.Client{Timeout: cfg.HTTPClient.Timeout})

	tasks := taskmonitor.New(st.tasks, queue, uuid.New(), clock, hub, taskmonitor.Config{
		EmptyQueueMonitorDuration: cfg.Coordinator.EmptyQueueMonitorDuration,
	}, logger.Named("taskmonitor"))

	sources := refresh.New(st.sources, queue, tasks, clock, hub, refresh.Config{
		Environment:     cfg.Environment,
		QueuePrefix:     cfg.Queue.Prefix,
		DefaultInterval: cfg.Coordinator.DefaultRefreshInterval,
	}, logger.Named("refresh"))

	tracker, err := health.New(client, cfg.Coordinator.Workers, clock, hub, health.Config{
		RecoveryThreshold: cfg.Coordinator.RecoveryThreshold,
		MaxFailCount:      cfg.Coordinator.MaxFailCount,
	}, logger.Named("health"))
	if err != nil {
		return fmt.Errorf("worker health tracker: %w", err)
	}

	coord := coordinator.New(tasks, tracker, client, clock, hub, logger.Named("coordinator"))

	loopLogger := logger.Named("schedule")
	heartbeatLoop, err := schedule.New("heartbeat", cfg.Coordinator.HeartbeatInterval,
		tracker.MonitorWorkers, schedule.WithLogger(loopLogger), schedule.WithImmediate())
	if err != nil {
		return err
	}
	taskLoop, err := schedule.New("task-monitor", cfg.Coordinator.TaskMonitorInterval,
		logErrors(tasks.MonitorTasks, "task sweep", logger), schedule.WithLogger(loopLogger), schedule.WithImmediate())
	if err != nil {
		return err
	}
	refreshLoop, err := schedule.New("source-refresh", cfg.Coordinator.SourceRefreshInterval,
		logErrors(sources.CheckSources, "source refresh", logger), schedule.WithLogger(loopLogger), schedule.WithImmediate())
	if err != nil {
		return err
	}
	roundLoop, err := schedule.New("assignment-round", cfg.Coordinator.RoundInterval,
		logErrors(coord.Coordinate, "assignment round", logger), schedule.WithLogger(loopLogger))
	if err != nil {
		return err
	}

	server := api.NewCoordinatorServer(api.CoordinatorDeps{
		Tasks:   tasks,
		Workers: tracker,
		Plans:   coord,
		Client:  client,
		Rounds:  roundLoop,
		Refresh: refreshLoop,
		Ready:   st.ready,
	}, cfg.HTTPClient.Timeout, logger.Named("api"))

	logger.Info("coordinator starting",
		zap.Int("workers", len(cfg.Coordinator.Workers)),
		zap.String("queue", cfg.Queue.Provider),
		zap.String("store", cfg.Store.Provider),
		zap.Duration("round_interval", cfg.Coordinator.RoundInterval),
	)
	group := schedule.NewGroup(heartbeatLoop, taskLoop, refreshLoop, roundLoop)
	return runUntilDone(ctx, cfg.Server.Port, server.Handler(), group, shutdownTimeoutOrDefault(cfg.Server.ShutdownTimeout), logger)
}

// logErrors adapts an error-returning body to a traced schedule.Func.
func logErrors(fn func(context.Context) error, what string, logger *zap.Logger) schedule.Func {
	return func(ctx context.Context) {
		if err := telemetry.Traced(ctx, what, fn); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn(what+" failed", zap.Error(err))
		}
	}
}
