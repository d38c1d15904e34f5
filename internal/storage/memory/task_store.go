package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

// TaskStore keeps Task records keyed by host.
type TaskStore struct {
	tasks *xsync.Map[string, crawler.Task]
}

// NewTaskStore constructs an empty TaskStore.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: xsync.NewMap[string, crawler.Task]()}
}

// GetTask returns the task recorded for host or crawler.ErrTaskNotFound.
func (s *TaskStore) GetTask(_ context.Context, host string) (crawler.Task, error) {
	task, ok := s.tasks.Load(host)
	if !ok {
		return crawler.Task{}, fmt.Errorf("host %s: %w", host, crawler.ErrTaskNotFound)
	}
	return task.Clone(), nil
}

// Tasks returns every stored task ordered by host.
func (s *TaskStore) Tasks(_ context.Context) ([]crawler.Task, error) {
	out := make([]crawler.Task, 0, s.tasks.Size())
	s.tasks.Range(func(_ string, task crawler.Task) bool {
		out = append(out, task.Clone())
		return true
	})
	slices.SortFunc(out, func(a, b crawler.Task) int {
		return strings.Compare(a.Host, b.Host)
	})
	return out, nil
}

// Save upserts the task under its host.
func (s *TaskStore) Save(_ context.Context, task crawler.Task) error {
	if task.Host == "" {
		return fmt.Errorf("task %s: host is required", task.ID)
	}
	s.tasks.Store(task.Host, task.Clone())
	return nil
}

// Delete removes the record for the task's host when the IDs match.
func (s *TaskStore) Delete(_ context.Context, task crawler.Task) error {
	s.tasks.Compute(task.Host, func(old crawler.Task, loaded bool) (crawler.Task, xsync.ComputeOp) {
		if !loaded || old.ID != task.ID {
			return old, xsync.CancelOp
		}
		return old, xsync.DeleteOp
	})
	return nil
}
