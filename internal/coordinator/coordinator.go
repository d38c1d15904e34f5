// Package coordinator distributes active crawl tasks across healthy workers.
// Every round clears all worker assignments and hands tasks out again in FIFO
// order, one slot per task, so there is no per-worker state to reconcile.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
)

// TaskSource supplies the tasks to distribute.
type TaskSource interface {
	ActiveTasks() []crawler.Task
}

// WorkerSource supplies the workers eligible for assignment.
type WorkerSource interface {
	HealthyWorkers() []crawler.Worker
}

// Assignment is the set of queues pushed to one worker in a round.
type Assignment struct {
	WorkerID  string   `json:"worker_id"`
	QueueURLs []string `json:"queue_urls"`
}

// Plan describes a completed round.
type Plan struct {
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Workers     int           `json:"workers"`
	Assignments []Assignment  `json:"assignments"`
	// Unassigned lists queues left over once every slot was filled.
	Unassigned []string `json:"unassigned"`
}

// Coordinator runs assignment rounds.
type Coordinator struct {
	tasks   TaskSource
	workers WorkerSource
	client  crawler.WorkerClient
	clock   crawler.Clock
	events  progress.Emitter
	logger  *zap.Logger

	mu       sync.RWMutex
	lastPlan *Plan
}

// New constructs a Coordinator.
func New(
	tasks TaskSource,
	workers WorkerSource,
	client crawler.WorkerClient,
	clock crawler.Clock,
	events progress.Emitter,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		tasks:   tasks,
		workers: workers,
		client:  client,
		clock:   clock,
		events:  progress.OrNop(events),
		logger:  logger,
	}
}

// Coordinate runs one round: clear every healthy worker, then fill each
// worker's slots from the front of the active-task list. The first error
// aborts the round; the next scheduled round is the retry.
func (c *Coordinator) Coordinate(ctx context.Context) error {
	start := c.clock.Now()
	tasks := c.tasks.ActiveTasks()
	workers := c.workers.HealthyWorkers()

	plan, err := c.round(ctx, tasks, workers)
	dur := c.clock.Now().Sub(start)
	if err != nil {
		metrics.ObserveRound(metrics.ResultFailure, dur)
		c.events.Emit(progress.Event{Kind: progress.KindRoundFailed, TS: c.clock.Now(), Dur: max(dur, 0), Note: err.Error()})
		c.logger.Error("assignment round failed", zap.Error(err))
		return err
	}
	plan.StartedAt = start
	plan.Duration = dur

	assigned := len(tasks) - len(plan.Unassigned)
	metrics.ObserveRound(metrics.ResultSuccess, dur)
	metrics.AddAssignmentsPushed(assigned)
	metrics.AddTasksUnassigned(len(plan.Unassigned))
	c.events.Emit(progress.Event{Kind: progress.KindRoundCompleted, TS: c.clock.Now(), Count: assigned, Dur: max(dur, 0)})
	if len(plan.Unassigned) > 0 {
		c.logger.Warn("not enough worker slots for active tasks",
			zap.Int("unassigned", len(plan.Unassigned)), zap.Int("workers", len(workers)))
	}
	c.logger.Debug("assignment round finished", zap.Int("tasks", len(tasks)), zap.Int("assigned", assigned))

	c.mu.Lock()
	c.lastPlan = &plan
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) round(ctx context.Context, tasks []crawler.Task, workers []crawler.Worker) (Plan, error) {
	for _, w := range workers {
		if err := c.client.ClearAssignments(ctx, w); err != nil {
			return Plan{}, fmt.Errorf("clear assignments on %s: %w", w.ID, err)
		}
	}
	plan := Plan{Workers: len(workers)}
	next := 0
	for _, w := range workers {
		n := min(w.AvailableSlots, len(tasks)-next)
		if n <= 0 {
			continue
		}
		batch := append([]crawler.Task(nil), tasks[next:next+n]...)
		next += n
		if err := c.client.AddAssignments(ctx, w, batch); err != nil {
			return Plan{}, fmt.Errorf("add assignments on %s: %w", w.ID, err)
		}
		plan.Assignments = append(plan.Assignments, Assignment{WorkerID: w.ID, QueueURLs: crawler.QueueURLs(batch)})
	}
	plan.Unassigned = crawler.QueueURLs(tasks[next:])
	return plan, nil
}

// LastPlan returns the plan of the most recent successful round.
func (c *Coordinator) LastPlan() (Plan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastPlan == nil {
		return Plan{}, false
	}
	p := *c.lastPlan
	p.Assignments = make([]Assignment, len(c.lastPlan.Assignments))
	for i, a := range c.lastPlan.Assignments {
		p.Assignments[i] = Assignment{WorkerID: a.WorkerID, QueueURLs: append([]string(nil), a.QueueURLs...)}
	}
	p.Unassigned = append([]string(nil), c.lastPlan.Unassigned...)
	return p, true
}
