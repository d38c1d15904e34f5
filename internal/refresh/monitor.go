// Package refresh scans index sources that are due, makes sure each has a
// crawl queue and a task, and schedules its next refresh.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
)

// DefaultRefreshInterval applies to sources without a positive interval.
const DefaultRefreshInterval = 24 * time.Hour

// TaskMonitor is the subset of the task lifecycle owner used here.
type TaskMonitor interface {
	HasTaskForSource(ctx context.Context, source crawler.IndexSource) (bool, error)
	EnqueueTaskForSource(ctx context.Context, source crawler.IndexSource) (crawler.Task, error)
}

// Config controls queue naming and interval fallback.
type Config struct {
	Environment     string
	QueuePrefix     string
	DefaultInterval time.Duration
}

// Monitor runs refresh scans.
type Monitor struct {
	sources crawler.IndexSourceStore
	queue   crawler.IndexingTaskQueueClient
	tasks   TaskMonitor
	clock   crawler.Clock
	events  progress.Emitter
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Monitor.
func New(
	sources crawler.IndexSourceStore,
	queue crawler.IndexingTaskQueueClient,
	tasks TaskMonitor,
	clock crawler.Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Monitor {
	if cfg.QueuePrefix == "" {
		cfg.QueuePrefix = crawler.DefaultQueuePrefix
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		sources: sources,
		queue:   queue,
		tasks:   tasks,
		clock:   clock,
		events:  progress.OrNop(events),
		cfg:     cfg,
		logger:  logger,
	}
}

// CheckSources processes every due source. A failing source is logged and
// skipped so it cannot block the others; the joined per-source errors are
// returned after the scan.
func (m *Monitor) CheckSources(ctx context.Context) error {
	now := m.clock.Now()
	due, err := m.sources.RefreshableSources(ctx, now)
	if err != nil {
		metrics.ObserveSourceRefresh(metrics.ResultFailure)
		return fmt.Errorf("list refreshable sources: %w", err)
	}
	var errs []error
	for _, src := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := m.refresh(ctx, src, now); err != nil {
			metrics.ObserveSourceRefresh(metrics.ResultFailure)
			m.logger.Warn("source refresh failed", zap.String("host", src.Host), zap.Error(err))
			errs = append(errs, fmt.Errorf("source %s: %w", src.Host, err))
			continue
		}
		metrics.ObserveSourceRefresh(metrics.ResultSuccess)
	}
	return errors.Join(errs...)
}

func (m *Monitor) refresh(ctx context.Context, src crawler.IndexSource, now time.Time) error {
	name := crawler.QueueName(m.cfg.QueuePrefix, m.cfg.Environment, src.Host)
	exists, err := m.queue.QueueExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check queue %s: %w", name, err)
	}
	switch {
	case !exists:
		url, err := m.queue.CreateQueue(ctx, name)
		if err != nil {
			return fmt.Errorf("create queue %s: %w", name, err)
		}
		src.QueueURL = url
		if err := m.sources.Save(ctx, src); err != nil {
			return fmt.Errorf("save queue url: %w", err)
		}
		m.logger.Info("crawl queue created", zap.String("host", src.Host), zap.String("queue_url", url))
	case src.QueueURL == "":
		url, err := m.queue.QueueURL(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve queue %s: %w", name, err)
		}
		src.QueueURL = url
		if err := m.sources.Save(ctx, src); err != nil {
			return fmt.Errorf("save queue url: %w", err)
		}
	}

	has, err := m.tasks.HasTaskForSource(ctx, src)
	if err != nil {
		return err
	}
	note := "task active"
	if !has {
		_, err := m.tasks.EnqueueTaskForSource(ctx, src)
		switch {
		case err == nil:
			note = "task created"
		case errors.Is(err, crawler.ErrNoSeeds):
			note = "no seeds"
			m.logger.Warn("source has no seeds, no task created", zap.String("host", src.Host))
		case !errors.Is(err, crawler.ErrTaskExists):
			return fmt.Errorf("enqueue task: %w", err)
		}
	}

	interval := time.Duration(src.RefreshIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = m.cfg.DefaultInterval
	}
	src.NextUpdate = now.Add(interval).UnixMilli()
	if err := m.sources.Save(ctx, src); err != nil {
		return fmt.Errorf("save next update: %w", err)
	}
	m.events.Emit(progress.Event{
		Kind:     progress.KindSourceRefreshed,
		TS:       now,
		Host:     src.Host,
		QueueURL: src.QueueURL,
		Note:     note,
	})
	return nil
}
