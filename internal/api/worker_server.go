package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/assignment"
	"github.com/JakeFAU/summit-index-crawler/internal/metrics"
)

type assignmentsBody struct {
	Assignments []string `json:"assignments"`
}

// WorkerServer exposes a worker's assignment state to the coordinator.
type WorkerServer struct {
	router chi.Router
	store  *assignment.Store
	logger *zap.Logger
}

// NewWorkerServer wires the assignment store to the worker routes.
func NewWorkerServer(store *assignment.Store, logger *zap.Logger) *WorkerServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &WorkerServer{store: store, logger: logger}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/heartbeat", s.heartbeat)
	r.Get("/assignments", s.getAssignments)
	r.Put("/assignments", s.putAssignments)
	r.Delete("/assignments", s.deleteAssignments)
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *WorkerServer) Handler() http.Handler {
	return s.router
}

func (s *WorkerServer) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *WorkerServer) heartbeat(w http.ResponseWriter, _ *http.Request) {
	s.store.UpdateKeepAlive()
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *WorkerServer) getAssignments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, assignmentsBody{Assignments: s.store.Assignments()})
}

func (s *WorkerServer) putAssignments(w http.ResponseWriter, r *http.Request) {
	var body assignmentsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	s.store.Assign(body.Assignments)
	s.store.UpdateKeepAlive()
	s.logger.Info("assignments received", zap.Strings("queues", body.Assignments))
	writeJSON(w, http.StatusOK, statusOK)
}

func (s *WorkerServer) deleteAssignments(w http.ResponseWriter, _ *http.Request) {
	s.store.Clear()
	s.store.UpdateKeepAlive()
	writeJSON(w, http.StatusOK, statusOK)
}
