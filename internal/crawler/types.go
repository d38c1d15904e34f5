// Package crawler defines the core orchestration types shared across the
// coordinator and worker subsystems.
package crawler

import (
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a crawl task.
type TaskStatus string

// Task status values persisted in the task store.
const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted:
		return true
	default:
		return false
	}
}

// MaxQueueBatchSize caps the number of entries accepted by a single AddTasks call.
const MaxQueueBatchSize = 10

// DefaultQueuePrefix is prepended to every crawl queue name.
const DefaultQueuePrefix = "sts-index-queue"

// Task tracks whether the crawl queue of one source is being actively worked.
// There is at most one non-deleted Task per Host.
type Task struct {
	ID     string     `json:"id"`
	Host   string     `json:"host"`
	Status TaskStatus `json:"status"`
	// QueueURL addresses the crawl queue of the source. Workers receive it as
	// the assignment identifier.
	QueueURL string   `json:"queue_url"`
	Seeds    []string `json:"seeds"`
	// DocumentTTL is copied from the source and stamped on every seeded entry.
	DocumentTTL int64 `json:"document_ttl,omitempty"`
	// MonitorTimestamp is set when the queue is first observed empty and
	// cleared whenever it is observed non-empty.
	MonitorTimestamp *time.Time `json:"monitor_timestamp,omitempty"`
}

// Clone returns a deep copy so callers never share slices or pointers with
// the owner of the original.
func (t Task) Clone() Task {
	cp := t
	if t.Seeds != nil {
		cp.Seeds = append([]string(nil), t.Seeds...)
	}
	if t.MonitorTimestamp != nil {
		ts := *t.MonitorTimestamp
		cp.MonitorTimestamp = &ts
	}
	return cp
}

// IndexSource is one crawlable host and its refresh schedule.
type IndexSource struct {
	Host  string   `json:"host"`
	Seeds []string `json:"seeds"`
	// NextUpdate is the epoch millisecond after which the source is due.
	NextUpdate             int64  `json:"next_update"`
	RefreshIntervalSeconds int64  `json:"refresh_interval_seconds"`
	DocumentTTL            int64  `json:"document_ttl"`
	QueueURL               string `json:"queue_url"`
}

// Clone returns a deep copy of the source.
func (s IndexSource) Clone() IndexSource {
	cp := s
	if s.Seeds != nil {
		cp.Seeds = append([]string(nil), s.Seeds...)
	}
	return cp
}

// Worker is a crawl worker endpoint and its capacity.
type Worker struct {
	ID  string `json:"id" mapstructure:"id"`
	URL string `json:"url" mapstructure:"url"`
	// AvailableSlots is the number of crawl tasks the worker accepts at once.
	AvailableSlots int `json:"available_slots" mapstructure:"available_slots"`
}

// QueueEntry is one crawl request pushed onto a task queue.
type QueueEntry struct {
	TaskID      string    `json:"task_id"`
	Host        string    `json:"host"`
	URL         string    `json:"url"`
	Depth       int       `json:"depth"`
	DocumentTTL int64     `json:"document_ttl,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// QueueName derives the crawl queue name for a host, scoped by environment:
// "<prefix>-<env>-<host with dots replaced by dashes>".
func QueueName(prefix, env, host string) string {
	if prefix == "" {
		prefix = DefaultQueuePrefix
	}
	parts := []string{strings.TrimSuffix(prefix, "-")}
	if env != "" {
		parts = append(parts, env)
	}
	parts = append(parts, strings.ReplaceAll(strings.ToLower(host), ".", "-"))
	return strings.Join(parts, "-")
}

// QueueURLs extracts the queue identifiers of the given tasks, preserving order.
func QueueURLs(tasks []Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.QueueURL)
	}
	return out
}
