package crawler

import (
	"context"
	"time"
)

// TaskStore persists Task records keyed by host.
type TaskStore interface {
	// GetTask returns ErrTaskNotFound when no record exists for host.
	GetTask(ctx context.Context, host string) (Task, error)
	Tasks(ctx context.Context) ([]Task, error)
	Save(ctx context.Context, task Task) error
	Delete(ctx context.Context, task Task) error
}

// IndexSourceStore persists IndexSource records.
type IndexSourceStore interface {
	// RefreshableSources returns every source whose NextUpdate is before now.
	RefreshableSources(ctx context.Context, now time.Time) ([]IndexSource, error)
	Save(ctx context.Context, source IndexSource) error
}

// IndexingTaskQueueClient manages the crawl queues consumed by workers.
type IndexingTaskQueueClient interface {
	QueueExists(ctx context.Context, name string) (bool, error)
	// CreateQueue creates the named queue and returns its URL.
	CreateQueue(ctx context.Context, name string) (string, error)
	// QueueURL resolves the URL of an existing queue.
	QueueURL(ctx context.Context, name string) (string, error)
	// TaskCount returns the number of entries still pending on the queue.
	TaskCount(ctx context.Context, queueURL string) (int64, error)
	AddTask(ctx context.Context, queueURL string, entry QueueEntry) error
	// AddTasks accepts at most MaxQueueBatchSize entries per call.
	AddTasks(ctx context.Context, queueURL string, entries []QueueEntry) error
}

// WorkerClient talks to a crawl worker's assignment API.
type WorkerClient interface {
	// SendHeartBeat returns a non-nil error when the worker did not acknowledge.
	SendHeartBeat(ctx context.Context, worker Worker) error
	ClearAssignments(ctx context.Context, worker Worker) error
	AddAssignments(ctx context.Context, worker Worker, tasks []Task) error
	Assignments(ctx context.Context, worker Worker) ([]string, error)
}

// Clock returns the current wall time (useful for testing).
type Clock interface {
	Now() time.Time
}

// MonotonicClock reports elapsed time since an arbitrary fixed origin. It is
// immune to wall-clock adjustments.
type MonotonicClock interface {
	Elapsed() time.Duration
}

// IDGenerator produces task IDs.
type IDGenerator interface {
	NewID() (string, error)
}
