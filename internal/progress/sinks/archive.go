package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/progress"
	"github.com/JakeFAU/summit-index-crawler/internal/storage"
)

// ArchiveRecord is the document written for each retired task.
type ArchiveRecord struct {
	TaskID    string    `json:"task_id"`
	Host      string    `json:"host"`
	QueueURL  string    `json:"queue_url,omitempty"`
	RetiredAt time.Time `json:"retired_at"`
}

// ArchiveSink writes a JSON record for every TASK_RETIRED event to a blob store
// at tasks/<host>/<task-id>.json. Other kinds are ignored.
type ArchiveSink struct {
	store  storage.BlobStore
	logger *zap.Logger
}

// NewArchiveSink builds a sink writing into store.
func NewArchiveSink(store storage.BlobStore, logger *zap.Logger) *ArchiveSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{store: store, logger: logger}
}

// ArchivePath returns the object path for a retired task.
func ArchivePath(host, taskID string) string {
	return path.Join("tasks", host, taskID+".json")
}

// Consume archives retired tasks from the batch.
func (s *ArchiveSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.store == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		if evt.Kind != progress.KindTaskRetired {
			continue
		}
		data, err := json.Marshal(ArchiveRecord{
			TaskID:    evt.TaskID,
			Host:      evt.Host,
			QueueURL:  evt.QueueURL,
			RetiredAt: evt.TS,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal archive record: %w", err))
			continue
		}
		uri, err := s.store.PutObject(ctx, ArchivePath(evt.Host, evt.TaskID), "application/json", bytes.NewReader(data))
		if err != nil {
			errs = append(errs, fmt.Errorf("archive task %s: %w", evt.TaskID, err))
			continue
		}
		s.logger.Debug("retired task archived", zap.String("task_id", evt.TaskID), zap.String("uri", uri))
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *ArchiveSink) Close(context.Context) error {
	return nil
}
