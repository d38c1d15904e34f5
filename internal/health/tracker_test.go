package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/progress"
)

var errUnreachable = errors.New("connection refused")

func TestWorkerBecomesHealthyAfterRecoveryThresholdPlusOne(t *testing.T) {
	t.Parallel()

	for _, threshold := range []int{0, 1, 2, 5} {
		client := newScriptedClient()
		tracker := newTestTracker(t, client, Config{RecoveryThreshold: threshold, MaxFailCount: 3}, nil, worker("w1"))

		for range threshold {
			tracker.MonitorWorkers(context.Background())
		}
		require.Empty(t, tracker.HealthyWorkers(), "threshold %d: %d successes are not enough", threshold, threshold)

		tracker.MonitorWorkers(context.Background())
		require.Equal(t, []crawler.Worker{worker("w1")}, tracker.HealthyWorkers(), "threshold %d", threshold)
	}
}

func TestHealthyWorkerRemovedAfterMaxFailCount(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	events := &recordingEmitter{}
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 2, MaxFailCount: 3}, events, worker("w1"))
	makeHealthy(t, tracker, 2)

	client.fail("w1", errUnreachable)
	tracker.MonitorWorkers(context.Background())
	tracker.MonitorWorkers(context.Background())
	require.Len(t, tracker.HealthyWorkers(), 1, "MaxFailCount-1 failures keep the worker healthy")

	tracker.MonitorWorkers(context.Background())
	require.Empty(t, tracker.HealthyWorkers())
	require.Equal(t, []progress.Kind{progress.KindWorkerHealthy, progress.KindWorkerUnhealthy}, events.kinds())
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 0, MaxFailCount: 2}, nil, worker("w1"))
	makeHealthy(t, tracker, 0)

	client.fail("w1", errUnreachable)
	tracker.MonitorWorkers(context.Background())
	client.fail("w1", nil)
	tracker.MonitorWorkers(context.Background())
	client.fail("w1", errUnreachable)
	tracker.MonitorWorkers(context.Background())
	require.Len(t, tracker.HealthyWorkers(), 1, "failures must be consecutive")

	snap := tracker.Snapshot()
	require.Equal(t, 1, snap[0].Failures)
	require.Equal(t, 0, snap[0].Successes)
}

func TestRemovedWorkerRecoversWithFreshSuccesses(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 2, MaxFailCount: 1}, nil, worker("w1"))
	makeHealthy(t, tracker, 2)

	client.fail("w1", errUnreachable)
	tracker.MonitorWorkers(context.Background())
	require.Empty(t, tracker.HealthyWorkers())

	client.fail("w1", nil)
	tracker.MonitorWorkers(context.Background())
	tracker.MonitorWorkers(context.Background())
	require.Empty(t, tracker.HealthyWorkers())

	// A failure mid-recovery restarts the count.
	client.fail("w1", errUnreachable)
	tracker.MonitorWorkers(context.Background())
	client.fail("w1", nil)
	tracker.MonitorWorkers(context.Background())
	tracker.MonitorWorkers(context.Background())
	require.Empty(t, tracker.HealthyWorkers())

	tracker.MonitorWorkers(context.Background())
	require.Len(t, tracker.HealthyWorkers(), 1)
}

func TestHealthyWorkersKeepsConfiguredOrder(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 0, MaxFailCount: 1}, nil,
		worker("c"), worker("a"), worker("b"))
	client.fail("a", errUnreachable)
	tracker.MonitorWorkers(context.Background())

	ids := []string{}
	for _, w := range tracker.HealthyWorkers() {
		ids = append(ids, w.ID)
	}
	require.Equal(t, []string{"c", "b"}, ids)
	require.ElementsMatch(t, []string{"c", "a", "b"}, client.order())

	w, ok := tracker.Worker("a")
	require.True(t, ok)
	require.Equal(t, "a", w.ID)
	_, ok = tracker.Worker("zzz")
	require.False(t, ok)
}

func TestHangingWorkersDoNotDelayHealthyHeartbeat(t *testing.T) {
	t.Parallel()

	client := &blockingClient{
		hang:      map[string]bool{"slow-1": true, "slow-2": true},
		release:   make(chan struct{}),
		delivered: make(chan string, 3),
	}
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 0, MaxFailCount: 1}, nil,
		worker("slow-1"), worker("slow-2"), worker("ok"))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tracker.MonitorWorkers(ctx)
	}()

	select {
	case id := <-client.delivered:
		require.Equal(t, "ok", id)
	case <-time.After(2 * time.Second):
		t.Fatal("healthy worker heartbeat waited on hanging workers")
	}
	select {
	case <-done:
		t.Fatal("sweep returned before hanging heartbeats finished")
	default:
	}

	close(client.release)
	<-done
	ids := []string{}
	for _, w := range tracker.HealthyWorkers() {
		ids = append(ids, w.ID)
	}
	require.Equal(t, []string{"ok"}, ids)
}

func TestNewValidatesWorkers(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	_, err := New(client, []crawler.Worker{{URL: "http://w"}}, nil, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(client, []crawler.Worker{worker("a"), worker("a")}, nil, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(nil, nil, nil, nil, Config{}, nil)
	require.Error(t, err)

	tracker, err := New(client, nil, nil, nil, Config{RecoveryThreshold: -1}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultRecoveryThreshold, tracker.cfg.RecoveryThreshold)
	require.Equal(t, DefaultMaxFailCount, tracker.cfg.MaxFailCount)
}

func TestConcurrentMonitorAndReads(t *testing.T) {
	t.Parallel()

	client := newScriptedClient()
	tracker := newTestTracker(t, client, Config{RecoveryThreshold: 0, MaxFailCount: 1}, nil, worker("a"), worker("b"))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			tracker.MonitorWorkers(context.Background())
		}()
		go func() {
			defer wg.Done()
			_ = tracker.HealthyWorkers()
			_ = tracker.Snapshot()
		}()
	}
	wg.Wait()
	require.Len(t, tracker.HealthyWorkers(), 2)
}

func worker(id string) crawler.Worker {
	return crawler.Worker{ID: id, URL: "http://" + id + ":8081", AvailableSlots: 2}
}

func makeHealthy(t *testing.T, tracker *Tracker, threshold int) {
	t.Helper()
	for range threshold + 1 {
		tracker.MonitorWorkers(context.Background())
	}
	require.NotEmpty(t, tracker.HealthyWorkers())
}

func newTestTracker(t *testing.T, client crawler.WorkerClient, cfg Config, events progress.Emitter, workers ...crawler.Worker) *Tracker {
	t.Helper()
	tracker, err := New(client, workers, fixedClock{}, events, cfg, nil)
	require.NoError(t, err)
	return tracker
}

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Unix(1_700_000_000, 0).UTC() }

type scriptedClient struct {
	mu     sync.Mutex
	errs   map[string]error
	probed []string
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{errs: make(map[string]error)}
}

func (c *scriptedClient) fail(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[id] = err
}

func (c *scriptedClient) order() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.probed...)
}

func (c *scriptedClient) SendHeartBeat(_ context.Context, w crawler.Worker) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probed = append(c.probed, w.ID)
	return c.errs[w.ID]
}

func (c *scriptedClient) ClearAssignments(context.Context, crawler.Worker) error { return nil }

func (c *scriptedClient) AddAssignments(context.Context, crawler.Worker, []crawler.Task) error {
	return nil
}

func (c *scriptedClient) Assignments(context.Context, crawler.Worker) ([]string, error) {
	return nil, nil
}

// blockingClient holds heartbeats to hanging workers until release is closed.
type blockingClient struct {
	scriptedClient
	hang      map[string]bool
	release   chan struct{}
	delivered chan string
}

func (c *blockingClient) SendHeartBeat(ctx context.Context, w crawler.Worker) error {
	if c.hang[w.ID] {
		select {
		case <-c.release:
		case <-ctx.Done():
		}
		return errUnreachable
	}
	c.delivered <- w.ID
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recordingEmitter) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) kinds() []progress.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
