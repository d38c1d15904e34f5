package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/coordinator"
	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/health"
)

type stubTasks []crawler.Task

func (s stubTasks) ActiveTasks() []crawler.Task { return s }

type stubRegistry []health.Status

func (s stubRegistry) Snapshot() []health.Status { return s }

func (s stubRegistry) Worker(id string) (crawler.Worker, bool) {
	for _, st := range s {
		if st.Worker.ID == id {
			return st.Worker, true
		}
	}
	return crawler.Worker{}, false
}

type stubPlans struct {
	plan *coordinator.Plan
}

func (s stubPlans) LastPlan() (coordinator.Plan, bool) {
	if s.plan == nil {
		return coordinator.Plan{}, false
	}
	return *s.plan, true
}

type stubTrigger struct {
	mu    sync.Mutex
	busy  bool
	calls int
}

func (s *stubTrigger) Trigger(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.calls++
	return true
}

type stubWorkerClient struct {
	crawler.WorkerClient
	queues []string
	err    error
}

func (s stubWorkerClient) Assignments(context.Context, crawler.Worker) ([]string, error) {
	return s.queues, s.err
}

func serve(t *testing.T, deps CoordinatorDeps, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewCoordinatorServer(deps, time.Second, nil).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func baseDeps() CoordinatorDeps {
	return CoordinatorDeps{
		Tasks: stubTasks{{ID: "t1", Host: "h1", Status: crawler.TaskStatusRunning, QueueURL: "q1"}},
		Workers: stubRegistry{
			{Worker: crawler.Worker{ID: "w1", URL: "http://w1", AvailableSlots: 2}, Healthy: true, Successes: 3},
			{Worker: crawler.Worker{ID: "w2", URL: "http://w2", AvailableSlots: 1}, Failures: 1},
		},
		Plans:  stubPlans{},
		Client: stubWorkerClient{queues: []string{"q1"}},
	}
}

func TestCoordinatorServerListTasks(t *testing.T) {
	t.Parallel()

	rec := serve(t, baseDeps(), http.MethodGet, "/v1/tasks")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tasks []crawler.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	require.Equal(t, "q1", body.Tasks[0].QueueURL)
}

func TestCoordinatorServerEmptyTasksIsArray(t *testing.T) {
	t.Parallel()

	deps := baseDeps()
	deps.Tasks = stubTasks(nil)
	rec := serve(t, deps, http.MethodGet, "/v1/tasks")
	require.JSONEq(t, `{"tasks":[]}`, rec.Body.String())
}

func TestCoordinatorServerListWorkers(t *testing.T) {
	t.Parallel()

	rec := serve(t, baseDeps(), http.MethodGet, "/v1/workers")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Workers []health.Status `json:"workers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Workers, 2)
	require.True(t, body.Workers[0].Healthy)
	require.False(t, body.Workers[1].Healthy)
}

func TestCoordinatorServerWorkerAssignments(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		path     string
		client   stubWorkerClient
		wantCode int
	}{
		{"known worker", "/v1/workers/w1/assignments", stubWorkerClient{queues: []string{"q1"}}, http.StatusOK},
		{"unknown worker", "/v1/workers/nope/assignments", stubWorkerClient{}, http.StatusNotFound},
		{"worker down", "/v1/workers/w2/assignments", stubWorkerClient{err: errors.New("dial tcp")}, http.StatusBadGateway},
		{"worker slow", "/v1/workers/w2/assignments", stubWorkerClient{err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			deps := baseDeps()
			deps.Client = tc.client
			rec := serve(t, deps, http.MethodGet, tc.path)
			require.Equal(t, tc.wantCode, rec.Code)
			if tc.wantCode == http.StatusOK {
				require.JSONEq(t, `{"worker_id":"w1","assignments":["q1"]}`, rec.Body.String())
			}
		})
	}
}

func TestCoordinatorServerLastRound(t *testing.T) {
	t.Parallel()

	deps := baseDeps()
	rec := serve(t, deps, http.MethodGet, "/v1/rounds/last")
	require.Equal(t, http.StatusNotFound, rec.Code)

	deps.Plans = stubPlans{plan: &coordinator.Plan{
		Workers:     1,
		Assignments: []coordinator.Assignment{{WorkerID: "w1", QueueURLs: []string{"q1"}}},
		Unassigned:  []string{},
	}}
	rec = serve(t, deps, http.MethodGet, "/v1/rounds/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var plan coordinator.Plan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	require.Equal(t, "w1", plan.Assignments[0].WorkerID)
}

func TestCoordinatorServerTriggers(t *testing.T) {
	t.Parallel()

	rounds := &stubTrigger{}
	refresh := &stubTrigger{busy: true}
	deps := baseDeps()
	deps.Rounds = rounds
	deps.Refresh = refresh

	rec := serve(t, deps, http.MethodPost, "/v1/rounds")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, rounds.calls)

	rec = serve(t, deps, http.MethodPost, "/v1/sources/refresh")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Zero(t, refresh.calls)
}

func TestCoordinatorServerTriggerNotConfigured(t *testing.T) {
	t.Parallel()

	rec := serve(t, baseDeps(), http.MethodPost, "/v1/rounds")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCoordinatorServerReadiness(t *testing.T) {
	t.Parallel()

	deps := baseDeps()
	require.Equal(t, http.StatusOK, serve(t, deps, http.MethodGet, "/readyz").Code)

	deps.Ready = func(context.Context) error { return errors.New("db down") }
	require.Equal(t, http.StatusServiceUnavailable, serve(t, deps, http.MethodGet, "/readyz").Code)
	require.Equal(t, http.StatusOK, serve(t, deps, http.MethodGet, "/healthz").Code)
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(nopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddlewareKeepsIncomingID(t *testing.T) {
	t.Parallel()

	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc", seen)
	require.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func nopLogger() *zap.Logger { return zap.NewNop() }
