package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

// IndexSourceStore keeps IndexSource records keyed by host.
type IndexSourceStore struct {
	sources *xsync.Map[string, crawler.IndexSource]
}

// NewIndexSourceStore constructs a store seeded with sources.
func NewIndexSourceStore(sources ...crawler.IndexSource) *IndexSourceStore {
	s := &IndexSourceStore{sources: xsync.NewMap[string, crawler.IndexSource]()}
	for _, src := range sources {
		s.sources.Store(src.Host, src.Clone())
	}
	return s
}

// RefreshableSources returns every source whose NextUpdate is before now,
// ordered by NextUpdate then host.
func (s *IndexSourceStore) RefreshableSources(_ context.Context, now time.Time) ([]crawler.IndexSource, error) {
	cutoff := now.UnixMilli()
	var out []crawler.IndexSource
	s.sources.Range(func(_ string, src crawler.IndexSource) bool {
		if src.NextUpdate < cutoff {
			out = append(out, src.Clone())
		}
		return true
	})
	slices.SortFunc(out, func(a, b crawler.IndexSource) int {
		if a.NextUpdate != b.NextUpdate {
			if a.NextUpdate < b.NextUpdate {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Host, b.Host)
	})
	return out, nil
}

// Save upserts the source under its host.
func (s *IndexSourceStore) Save(_ context.Context, source crawler.IndexSource) error {
	if source.Host == "" {
		return fmt.Errorf("index source: host is required")
	}
	s.sources.Store(source.Host, source.Clone())
	return nil
}

// Source returns the stored record for host.
func (s *IndexSourceStore) Source(host string) (crawler.IndexSource, bool) {
	src, ok := s.sources.Load(host)
	if !ok {
		return crawler.IndexSource{}, false
	}
	return src.Clone(), true
}
