package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/coordinator"
	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/health"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
)

// TaskLister exposes the active task cache.
type TaskLister interface {
	ActiveTasks() []crawler.Task
}

// WorkerRegistry exposes worker health state.
type WorkerRegistry interface {
	Snapshot() []health.Status
	Worker(id string) (crawler.Worker, bool)
}

// PlanReader exposes the most recent assignment round.
type PlanReader interface {
	LastPlan() (coordinator.Plan, bool)
}

// Trigger runs a loop body out of band. It returns false when the body is
// already running.
type Trigger interface {
	Trigger(ctx context.Context) bool
}

// ReadyFunc reports whether the coordinator's dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// CoordinatorDeps bundles the collaborators of the coordinator server.
// Rounds, Refresh and Ready are optional; missing triggers answer 503.
type CoordinatorDeps struct {
	Tasks   TaskLister
	Workers WorkerRegistry
	Plans   PlanReader
	Client  crawler.WorkerClient
	Rounds  Trigger
	Refresh Trigger
	Ready   ReadyFunc
}

// CoordinatorServer serves the coordinator's diagnostics API.
type CoordinatorServer struct {
	router  chi.Router
	deps    CoordinatorDeps
	timeout time.Duration
	logger  *zap.Logger
}

// NewCoordinatorServer builds the diagnostics router. timeout bounds the
// outbound calls made while serving a request; zero selects 5s.
func NewCoordinatorServer(deps CoordinatorDeps, timeout time.Duration, logger *zap.Logger) *CoordinatorServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &CoordinatorServer{deps: deps, timeout: timeout, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Get("/tasks", s.listTasks)
		r.Get("/workers", s.listWorkers)
		r.Get("/workers/{worker_id}/assignments", s.workerAssignments)
		r.Get("/rounds/last", s.lastRound)
		r.Post("/rounds", s.runRound)
		r.Post("/sources/refresh", s.runRefresh)
	})
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *CoordinatorServer) Handler() http.Handler {
	return s.router
}

func (s *CoordinatorServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *CoordinatorServer) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready == nil {
		writeJSON(w, http.StatusOK, statusOK)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	if err := s.deps.Ready(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *CoordinatorServer) listTasks(w http.ResponseWriter, _ *http.Request) {
	tasks := s.deps.Tasks.ActiveTasks()
	if tasks == nil {
		tasks = []crawler.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *CoordinatorServer) listWorkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workers": s.deps.Workers.Snapshot()})
}

func (s *CoordinatorServer) workerAssignments(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "worker_id")
	worker, ok := s.deps.Workers.Worker(workerID)
	if !ok {
		writeError(w, http.StatusNotFound, "worker not found")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	queues, err := s.deps.Client.Assignments(ctx, worker)
	if err != nil {
		s.logger.Warn("worker assignment lookup failed", zap.String("worker_id", workerID), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "worker unreachable")
		return
	}
	if queues == nil {
		queues = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"worker_id": workerID, "assignments": queues})
}

func (s *CoordinatorServer) lastRound(w http.ResponseWriter, _ *http.Request) {
	plan, ok := s.deps.Plans.LastPlan()
	if !ok {
		writeError(w, http.StatusNotFound, "no round completed yet")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *CoordinatorServer) runRound(w http.ResponseWriter, r *http.Request) {
	s.runTrigger(w, r, s.deps.Rounds, "round")
}

func (s *CoordinatorServer) runRefresh(w http.ResponseWriter, r *http.Request) {
	s.runTrigger(w, r, s.deps.Refresh, "refresh")
}

func (s *CoordinatorServer) runTrigger(w http.ResponseWriter, r *http.Request, trigger Trigger, name string) {
	if trigger == nil {
		writeError(w, http.StatusServiceUnavailable, name+" trigger not configured")
		return
	}
	// The loop body must not be cut short by a disconnecting client.
	ctx := context.WithoutCancel(r.Context())
	if !trigger.Trigger(ctx) {
		writeError(w, http.StatusConflict, name+" already running")
		return
	}
	s.logger.Info("manual trigger completed", zap.String("loop", name), zap.String("request_id", RequestID(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "loop": name})
}
