package progress

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the lifecycle milestone represented by an Event.
type Kind string

// Supported lifecycle kinds.
const (
	KindTaskCreated     Kind = "TASK_CREATED"
	KindTaskRunning     Kind = "TASK_RUNNING"
	KindTaskCompleted   Kind = "TASK_COMPLETED"
	KindTaskRetired     Kind = "TASK_RETIRED"
	KindWorkerHealthy   Kind = "WORKER_HEALTHY"
	KindWorkerUnhealthy Kind = "WORKER_UNHEALTHY"
	KindRoundCompleted  Kind = "ROUND_COMPLETED"
	KindRoundFailed     Kind = "ROUND_FAILED"
	KindSourceRefreshed Kind = "SOURCE_REFRESHED"
)

// Event captures a single orchestration transition.
type Event struct {
	// Kind denotes which milestone occurred.
	Kind Kind `json:"kind"`
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time `json:"ts"`
	// TaskID identifies the task for task events.
	TaskID string `json:"task_id,omitempty"`
	// Host scopes task and source events to a crawl source.
	Host string `json:"host,omitempty"`
	// QueueURL is the crawl queue the task drains.
	QueueURL string `json:"queue_url,omitempty"`
	// WorkerID identifies the worker for health events.
	WorkerID string `json:"worker_id,omitempty"`
	// Count carries a kind-specific tally (tasks assigned in a round, seeds pushed).
	Count int `json:"count,omitempty"`
	// Dur captures round latency or how long a queue stayed empty.
	Dur time.Duration `json:"dur,omitempty"`
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string `json:"note,omitempty"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindTaskCreated, KindTaskRunning, KindTaskCompleted, KindTaskRetired:
		if e.TaskID == "" || e.Host == "" {
			return fmt.Errorf("%s requires task id and host", e.Kind)
		}
	case KindWorkerHealthy, KindWorkerUnhealthy:
		if e.WorkerID == "" {
			return fmt.Errorf("%s requires worker id", e.Kind)
		}
	case KindSourceRefreshed:
		if e.Host == "" {
			return errors.New("source refresh requires host")
		}
	case KindRoundCompleted, KindRoundFailed:
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// IsTask reports whether the event concerns a task transition.
func (e Event) IsTask() bool {
	switch e.Kind {
	case KindTaskCreated, KindTaskRunning, KindTaskCompleted, KindTaskRetired:
		return true
	default:
		return false
	}
}
