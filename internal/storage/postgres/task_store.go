package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

const taskColumns = `id, host, status, queue_url, seeds, document_ttl, monitor_timestamp`

// TaskStore implements crawler.TaskStore on the crawl_tasks table.
type TaskStore struct {
	db DB
}

// NewTaskStore wraps db.
func NewTaskStore(db DB) (*TaskStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &TaskStore{db: db}, nil
}

// GetTask returns the task for host or crawler.ErrTaskNotFound.
func (s *TaskStore) GetTask(ctx context.Context, host string) (crawler.Task, error) {
	row := s.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM crawl_tasks WHERE host = $1`, host)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Task{}, fmt.Errorf("host %s: %w", host, crawler.ErrTaskNotFound)
	}
	if err != nil {
		return crawler.Task{}, fmt.Errorf("get task %s: %w", host, err)
	}
	return task, nil
}

// Tasks returns every task ordered by host.
func (s *TaskStore) Tasks(ctx context.Context) ([]crawler.Task, error) {
	rows, err := s.db.Query(ctx, `SELECT `+taskColumns+` FROM crawl_tasks ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []crawler.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// Save upserts the task keyed by host.
func (s *TaskStore) Save(ctx context.Context, task crawler.Task) error {
	if task.Host == "" {
		return fmt.Errorf("task %s: host is required", task.ID)
	}
	seeds := task.Seeds
	if seeds == nil {
		seeds = []string{}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO crawl_tasks (host, id, status, queue_url, seeds, document_ttl, monitor_timestamp, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (host) DO UPDATE SET
	id = EXCLUDED.id,
	status = EXCLUDED.status,
	queue_url = EXCLUDED.queue_url,
	seeds = EXCLUDED.seeds,
	document_ttl = EXCLUDED.document_ttl,
	monitor_timestamp = EXCLUDED.monitor_timestamp,
	updated_at = now()`,
		task.Host, task.ID, string(task.Status), task.QueueURL, seeds, task.DocumentTTL, task.MonitorTimestamp,
	)
	if err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// Delete removes the host's record only while it still belongs to task.ID.
func (s *TaskStore) Delete(ctx context.Context, task crawler.Task) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM crawl_tasks WHERE host = $1 AND id = $2`, task.Host, task.ID); err != nil {
		return fmt.Errorf("delete task %s: %w", task.ID, err)
	}
	return nil
}

func scanTask(row pgx.Row) (crawler.Task, error) {
	var (
		task   crawler.Task
		status string
		ts     *time.Time
	)
	if err := row.Scan(&task.ID, &task.Host, &status, &task.QueueURL, &task.Seeds, &task.DocumentTTL, &ts); err != nil {
		return crawler.Task{}, err
	}
	task.Status = crawler.TaskStatus(status)
	if ts != nil {
		utc := ts.UTC()
		task.MonitorTimestamp = &utc
	}
	return task, nil
}
