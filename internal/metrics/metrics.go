// Package metrics exposes Prometheus collectors for the coordinator and worker roles.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Round results recorded by ObserveRound.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

var (
	coordinationRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_coordination_rounds_total",
			Help: "Assignment rounds executed, labeled by result.",
		},
		[]string{"result"},
	)

	coordinationRoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summit_coordination_round_duration_seconds",
			Help:    "Wall time of assignment rounds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		},
	)

	assignmentsPushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_assignments_pushed_total",
			Help: "Tasks pushed to workers across all assignment rounds.",
		},
	)

	tasksUnassignedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_tasks_unassigned_total",
			Help: "Active tasks left without a worker slot at the end of a round.",
		},
	)

	healthyWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summit_healthy_workers",
			Help: "Workers currently in the healthy set.",
		},
	)

	heartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_heartbeats_total",
			Help: "Heartbeats sent to workers, labeled by worker and result.",
		},
		[]string{"worker", "result"},
	)

	taskTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_task_transitions_total",
			Help: "Task lifecycle transitions, labeled by source and target status.",
		},
		[]string{"from", "to"},
	)

	taskSweepErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_task_sweep_errors_total",
			Help: "Per-task errors encountered during task monitor sweeps.",
		},
	)

	activeTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summit_active_tasks",
			Help: "Tasks currently RUNNING and eligible for assignment.",
		},
	)

	sourceRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summit_source_refresh_total",
			Help: "Index source refresh attempts, labeled by result.",
		},
		[]string{"result"},
	)

	keepAliveExpirationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "summit_assignment_keepalive_expirations_total",
			Help: "Times a worker dropped its assignments after the keep-alive TTL elapsed.",
		},
	)

	assignedQueues = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "summit_assigned_queues",
			Help: "Crawl queues currently assigned to this worker.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRound records the outcome and duration of one assignment round.
func ObserveRound(result string, duration time.Duration) {
	coordinationRoundsTotal.WithLabelValues(result).Inc()
	if duration > 0 {
		coordinationRoundDuration.Observe(duration.Seconds())
	}
}

// AddAssignmentsPushed counts tasks pushed to a worker.
func AddAssignmentsPushed(n int) {
	if n > 0 {
		assignmentsPushedTotal.Add(float64(n))
	}
}

// AddTasksUnassigned counts tasks that found no slot in a round.
func AddTasksUnassigned(n int) {
	if n > 0 {
		tasksUnassignedTotal.Add(float64(n))
	}
}

// SetHealthyWorkers sets the healthy worker gauge.
func SetHealthyWorkers(n int) {
	healthyWorkers.Set(float64(n))
}

// ObserveHeartbeat records one heartbeat result for a worker.
func ObserveHeartbeat(workerID string, ok bool) {
	result := ResultSuccess
	if !ok {
		result = ResultFailure
	}
	heartbeatsTotal.WithLabelValues(workerID, result).Inc()
}

// ObserveTaskTransition counts a task status change.
func ObserveTaskTransition(from, to string) {
	taskTransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncTaskSweepErrors counts a per-task sweep failure.
func IncTaskSweepErrors() {
	taskSweepErrorsTotal.Inc()
}

// SetActiveTasks sets the active task gauge.
func SetActiveTasks(n int) {
	activeTasks.Set(float64(n))
}

// ObserveSourceRefresh counts one source refresh attempt.
func ObserveSourceRefresh(result string) {
	sourceRefreshTotal.WithLabelValues(result).Inc()
}

// IncKeepAliveExpirations counts a keep-alive expiry on the worker.
func IncKeepAliveExpirations() {
	keepAliveExpirationsTotal.Inc()
}

// SetAssignedQueues sets the worker-side assigned queue gauge.
func SetAssignedQueues(n int) {
	assignedQueues.Set(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
