// Package taskmonitor owns the lifecycle of crawl tasks: it seeds new tasks
// into their queue, watches queues drain, and retires finished tasks. The
// RUNNING tasks observed by the last sweep are cached for the assignment
// coordinator.
package taskmonitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
	"github.com/JakeFAU/summit-index-crawler/internal/queue"
)

// DefaultEmptyQueueMonitorDuration is how long a queue must stay empty before
// its task completes.
const DefaultEmptyQueueMonitorDuration = 10 * time.Minute

// Config controls Monitor behavior.
type Config struct {
	// EmptyQueueMonitorDuration is the grace period a RUNNING task's queue
	// must stay empty before the task completes.
	EmptyQueueMonitorDuration time.Duration
}

// Monitor drives the PENDING -> RUNNING -> COMPLETED -> deleted state machine.
type Monitor struct {
	store  crawler.TaskStore
	queue  crawler.IndexingTaskQueueClient
	ids    crawler.IDGenerator
	clock  crawler.Clock
	events progress.Emitter
	cfg    Config
	logger *zap.Logger

	mu     sync.RWMutex
	active []crawler.Task
}

// New constructs a Monitor.
func New(
	store crawler.TaskStore,
	queue crawler.IndexingTaskQueueClient,
	ids crawler.IDGenerator,
	clock crawler.Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Monitor {
	if cfg.EmptyQueueMonitorDuration <= 0 {
		cfg.EmptyQueueMonitorDuration = DefaultEmptyQueueMonitorDuration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		store:  store,
		queue:  queue,
		ids:    ids,
		clock:  clock,
		events: progress.OrNop(events),
		cfg:    cfg,
		logger: logger,
	}
}

// ActiveTasks returns a copy of the RUNNING tasks seen by the last sweep.
func (m *Monitor) ActiveTasks() []crawler.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]crawler.Task, len(m.active))
	for i, t := range m.active {
		out[i] = t.Clone()
	}
	return out
}

// HasTaskForSource reports whether a task exists for the source host, either
// in the active cache or in the store.
func (m *Monitor) HasTaskForSource(ctx context.Context, source crawler.IndexSource) (bool, error) {
	m.mu.RLock()
	cached := slices.ContainsFunc(m.active, func(t crawler.Task) bool { return t.Host == source.Host })
	m.mu.RUnlock()
	if cached {
		return true, nil
	}
	_, err := m.store.GetTask(ctx, source.Host)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, crawler.ErrTaskNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup task for %s: %w", source.Host, err)
	}
}

// EnqueueTaskForSource records a PENDING task for the source. The next sweep
// seeds its queue. It returns crawler.ErrTaskExists when the store already
// holds a task for the host.
func (m *Monitor) EnqueueTaskForSource(ctx context.Context, source crawler.IndexSource) (crawler.Task, error) {
	if len(source.Seeds) == 0 {
		return crawler.Task{}, fmt.Errorf("host %s: %w", source.Host, crawler.ErrNoSeeds)
	}
	if _, err := m.store.GetTask(ctx, source.Host); err == nil {
		return crawler.Task{}, fmt.Errorf("host %s: %w", source.Host, crawler.ErrTaskExists)
	} else if !errors.Is(err, crawler.ErrTaskNotFound) {
		return crawler.Task{}, fmt.Errorf("lookup task for %s: %w", source.Host, err)
	}
	id, err := m.ids.NewID()
	if err != nil {
		return crawler.Task{}, fmt.Errorf("generate task id: %w", err)
	}
	task := crawler.Task{
		ID:          id,
		Host:        source.Host,
		Status:      crawler.TaskStatusPending,
		QueueURL:    source.QueueURL,
		Seeds:       slices.Clone(source.Seeds),
		DocumentTTL: source.DocumentTTL,
	}
	if err := m.store.Save(ctx, task); err != nil {
		return crawler.Task{}, fmt.Errorf("save task for %s: %w", source.Host, err)
	}
	metrics.ObserveTaskTransition("NEW", string(crawler.TaskStatusPending))
	m.events.Emit(progress.Event{
		Kind:     progress.KindTaskCreated,
		TS:       m.clock.Now(),
		TaskID:   task.ID,
		Host:     task.Host,
		QueueURL: task.QueueURL,
		Count:    len(task.Seeds),
	})
	m.logger.Info("task created", zap.String("task_id", task.ID), zap.String("host", task.Host))
	return task, nil
}

// MonitorTasks runs one sweep over every stored task and swaps in the new
// active-task cache. Per-task failures are logged and counted; the task is
// retried on the next sweep. An error is returned only when the task list
// cannot be loaded, in which case the previous cache is kept.
func (m *Monitor) MonitorTasks(ctx context.Context) error {
	tasks, err := m.store.Tasks(ctx)
	if err != nil {
		metrics.IncTaskSweepErrors()
		return fmt.Errorf("list tasks: %w", err)
	}
	now := m.clock.Now()
	active := make([]crawler.Task, 0, len(tasks))
	for _, task := range tasks {
		next, err := m.advance(ctx, task, now)
		if err != nil {
			metrics.IncTaskSweepErrors()
			m.logger.Warn("task sweep step failed",
				zap.String("task_id", task.ID),
				zap.String("host", task.Host),
				zap.String("status", string(task.Status)),
				zap.Error(err),
			)
		}
		if next.Status == crawler.TaskStatusRunning {
			active = append(active, next)
		}
	}

	m.mu.Lock()
	m.active = active
	m.mu.Unlock()
	metrics.SetActiveTasks(len(active))
	m.logger.Debug("task sweep finished", zap.Int("tasks", len(tasks)), zap.Int("active", len(active)))
	return nil
}

// advance applies one state-machine step and returns the task as it should be
// considered afterwards. The returned task only carries a new status once the
// store accepted it.
func (m *Monitor) advance(ctx context.Context, task crawler.Task, now time.Time) (crawler.Task, error) {
	switch task.Status {
	case crawler.TaskStatusPending:
		return m.start(ctx, task, now)
	case crawler.TaskStatusRunning:
		return m.watch(ctx, task, now)
	case crawler.TaskStatusCompleted:
		return m.retire(ctx, task, now)
	default:
		return task, fmt.Errorf("unknown task status %q", task.Status)
	}
}

func (m *Monitor) start(ctx context.Context, task crawler.Task, now time.Time) (crawler.Task, error) {
	entries := make([]crawler.QueueEntry, 0, len(task.Seeds))
	for _, seed := range task.Seeds {
		entries = append(entries, crawler.QueueEntry{
			TaskID:      task.ID,
			Host:        task.Host,
			URL:         seed,
			DocumentTTL: task.DocumentTTL,
			EnqueuedAt:  now,
		})
	}
	for _, batch := range queue.Chunk(entries, crawler.MaxQueueBatchSize) {
		if err := m.queue.AddTasks(ctx, task.QueueURL, batch); err != nil {
			return task, fmt.Errorf("seed queue %s: %w", task.QueueURL, err)
		}
	}
	running := task.Clone()
	running.Status = crawler.TaskStatusRunning
	running.MonitorTimestamp = nil
	if err := m.store.Save(ctx, running); err != nil {
		return task, fmt.Errorf("mark task running: %w", err)
	}
	metrics.ObserveTaskTransition(string(crawler.TaskStatusPending), string(crawler.TaskStatusRunning))
	m.events.Emit(progress.Event{
		Kind:     progress.KindTaskRunning,
		TS:       now,
		TaskID:   task.ID,
		Host:     task.Host,
		QueueURL: task.QueueURL,
		Count:    len(entries),
	})
	return running, nil
}

func (m *Monitor) watch(ctx context.Context, task crawler.Task, now time.Time) (crawler.Task, error) {
	count, err := m.queue.TaskCount(ctx, task.QueueURL)
	if err != nil {
		return task, fmt.Errorf("count queue %s: %w", task.QueueURL, err)
	}
	next := task.Clone()
	switch {
	case count > 0:
		next.MonitorTimestamp = nil
	case task.MonitorTimestamp == nil:
		ts := now
		next.MonitorTimestamp = &ts
	case now.Sub(*task.MonitorTimestamp) >= m.cfg.EmptyQueueMonitorDuration:
		next.Status = crawler.TaskStatusCompleted
	default:
		return task, nil
	}
	if err := m.store.Save(ctx, next); err != nil {
		return task, fmt.Errorf("save running task: %w", err)
	}
	if next.Status == crawler.TaskStatusCompleted {
		emptyFor := now.Sub(*task.MonitorTimestamp)
		metrics.ObserveTaskTransition(string(crawler.TaskStatusRunning), string(crawler.TaskStatusCompleted))
		m.events.Emit(progress.Event{
			Kind:     progress.KindTaskCompleted,
			TS:       now,
			TaskID:   task.ID,
			Host:     task.Host,
			QueueURL: task.QueueURL,
			Dur:      emptyFor,
		})
		m.logger.Info("task completed", zap.String("task_id", task.ID), zap.String("host", task.Host),
			zap.Duration("empty_for", emptyFor))
	}
	return next, nil
}

func (m *Monitor) retire(ctx context.Context, task crawler.Task, now time.Time) (crawler.Task, error) {
	if err := m.store.Delete(ctx, task); err != nil {
		return task, fmt.Errorf("delete completed task: %w", err)
	}
	metrics.ObserveTaskTransition(string(crawler.TaskStatusCompleted), "DELETED")
	m.events.Emit(progress.Event{
		Kind:     progress.KindTaskRetired,
		TS:       now,
		TaskID:   task.ID,
		Host:     task.Host,
		QueueURL: task.QueueURL,
	})
	m.logger.Info("task retired", zap.String("task_id", task.ID), zap.String("host", task.Host))
	return task, nil
}
