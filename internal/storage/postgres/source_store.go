package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

// IndexSourceStore implements crawler.IndexSourceStore on the index_sources table.
type IndexSourceStore struct {
	db DB
}

// NewIndexSourceStore wraps db.
func NewIndexSourceStore(db DB) (*IndexSourceStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &IndexSourceStore{db: db}, nil
}

// RefreshableSources returns sources with next_update before now, oldest first.
func (s *IndexSourceStore) RefreshableSources(ctx context.Context, now time.Time) ([]crawler.IndexSource, error) {
	rows, err := s.db.Query(ctx, `
SELECT host, seeds, next_update, refresh_interval_seconds, document_ttl, queue_url
FROM index_sources
WHERE next_update < $1
ORDER BY next_update, host`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list refreshable sources: %w", err)
	}
	defer rows.Close()

	var out []crawler.IndexSource
	for rows.Next() {
		var src crawler.IndexSource
		if err := rows.Scan(&src.Host, &src.Seeds, &src.NextUpdate, &src.RefreshIntervalSeconds, &src.DocumentTTL, &src.QueueURL); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list refreshable sources: %w", err)
	}
	return out, nil
}

// Save upserts the source keyed by host.
func (s *IndexSourceStore) Save(ctx context.Context, source crawler.IndexSource) error {
	if source.Host == "" {
		return errors.New("index source: host is required")
	}
	seeds := source.Seeds
	if seeds == nil {
		seeds = []string{}
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO index_sources (host, seeds, next_update, refresh_interval_seconds, document_ttl, queue_url)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (host) DO UPDATE SET
	seeds = EXCLUDED.seeds,
	next_update = EXCLUDED.next_update,
	refresh_interval_seconds = EXCLUDED.refresh_interval_seconds,
	document_ttl = EXCLUDED.document_ttl,
	queue_url = EXCLUDED.queue_url`,
		source.Host, seeds, source.NextUpdate, source.RefreshIntervalSeconds, source.DocumentTTL, source.QueueURL,
	)
	if err != nil {
		return fmt.Errorf("save source %s: %w", source.Host, err)
	}
	return nil
}
