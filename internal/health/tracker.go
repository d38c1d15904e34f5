// Package health classifies crawl workers as healthy or unhealthy from
// periodic heartbeats. A worker enters the healthy set after more than
// RecoveryThreshold consecutive successful heartbeats and leaves it after
// MaxFailCount consecutive failures, so a single flaky probe never flaps it.
package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
)

// Default hysteresis thresholds.
const (
	DefaultRecoveryThreshold = 2
	DefaultMaxFailCount      = 3
)

// Config holds the hysteresis thresholds.
type Config struct {
	// RecoveryThreshold: a worker becomes healthy at RecoveryThreshold+1
	// consecutive successes. Negative values select the default.
	RecoveryThreshold int
	// MaxFailCount: a healthy worker is removed at this many consecutive
	// failures. Non-positive values select the default.
	MaxFailCount int
}

// Status is a point-in-time view of one worker.
type Status struct {
	Worker    crawler.Worker `json:"worker"`
	Healthy   bool           `json:"healthy"`
	Successes int            `json:"consecutive_successes"`
	Failures  int            `json:"consecutive_failures"`
}

type record struct {
	successes int
	failures  int
	healthy   bool
}

// Tracker probes the configured workers and maintains the healthy set.
type Tracker struct {
	client  crawler.WorkerClient
	workers []crawler.Worker
	cfg     Config
	clock   crawler.Clock
	events  progress.Emitter
	logger  *zap.Logger

	mu      sync.RWMutex
	records map[string]*record
}

// New constructs a Tracker for workers. Worker IDs must be unique and non-empty.
func New(
	client crawler.WorkerClient,
	workers []crawler.Worker,
	clock crawler.Clock,
	events progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) (*Tracker, error) {
	if client == nil {
		return nil, errors.New("worker client is required")
	}
	if cfg.RecoveryThreshold < 0 {
		cfg.RecoveryThreshold = DefaultRecoveryThreshold
	}
	if cfg.MaxFailCount <= 0 {
		cfg.MaxFailCount = DefaultMaxFailCount
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	records := make(map[string]*record, len(workers))
	for _, w := range workers {
		if w.ID == "" {
			return nil, fmt.Errorf("worker %q: id is required", w.URL)
		}
		if _, dup := records[w.ID]; dup {
			return nil, fmt.Errorf("duplicate worker id %q", w.ID)
		}
		records[w.ID] = &record{}
	}
	return &Tracker{
		client:  client,
		workers: append([]crawler.Worker(nil), workers...),
		cfg:     cfg,
		clock:   clock,
		events:  progress.OrNop(events),
		logger:  logger,
		records: records,
	}, nil
}

// MonitorWorkers sends one heartbeat to every configured worker and applies
// each result to its counters. Heartbeats go out concurrently so a hanging
// worker cannot delay the keep-alive of the others.
func (t *Tracker) MonitorWorkers(ctx context.Context) {
	var g errgroup.Group
	for _, w := range t.workers {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			err := t.client.SendHeartBeat(ctx, w)
			metrics.ObserveHeartbeat(w.ID, err == nil)
			if err != nil {
				t.logger.Debug("heartbeat failed", zap.String("worker_id", w.ID), zap.Error(err))
			}
			t.observe(w, err)
			return nil
		})
	}
	_ = g.Wait()
	metrics.SetHealthyWorkers(len(t.HealthyWorkers()))
}

// observe applies one heartbeat result and reports whether the worker
// changed sides of the healthy set.
func (t *Tracker) observe(w crawler.Worker, heartbeatErr error) {
	t.mu.Lock()
	rec := t.records[w.ID]
	before := rec.healthy
	if heartbeatErr == nil {
		rec.successes++
		rec.failures = 0
		if !rec.healthy && rec.successes >= t.cfg.RecoveryThreshold+1 {
			rec.healthy = true
		}
	} else {
		rec.failures++
		rec.successes = 0
		if rec.healthy && rec.failures >= t.cfg.MaxFailCount {
			rec.healthy = false
		}
	}
	healthy := rec.healthy
	t.mu.Unlock()

	if healthy == before {
		return
	}
	kind := progress.KindWorkerUnhealthy
	if healthy {
		kind = progress.KindWorkerHealthy
	}
	evt := progress.Event{Kind: kind, WorkerID: w.ID}
	if t.clock != nil {
		evt.TS = t.clock.Now()
	}
	if heartbeatErr != nil {
		evt.Note = heartbeatErr.Error()
	}
	t.events.Emit(evt)
	t.logger.Info("worker health changed", zap.String("worker_id", w.ID), zap.Bool("healthy", healthy))
}

// HealthyWorkers returns the healthy workers in configured order.
func (t *Tracker) HealthyWorkers() []crawler.Worker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]crawler.Worker, 0, len(t.workers))
	for _, w := range t.workers {
		if t.records[w.ID].healthy {
			out = append(out, w)
		}
	}
	return out
}

// Snapshot returns the counters of every configured worker.
func (t *Tracker) Snapshot() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Status, 0, len(t.workers))
	for _, w := range t.workers {
		rec := t.records[w.ID]
		out = append(out, Status{
			Worker:    w,
			Healthy:   rec.healthy,
			Successes: rec.successes,
			Failures:  rec.failures,
		})
	}
	return out
}

// Worker looks up a configured worker by ID.
func (t *Tracker) Worker(id string) (crawler.Worker, bool) {
	for _, w := range t.workers {
		if w.ID == id {
			return w, true
		}
	}
	return crawler.Worker{}, false
}
