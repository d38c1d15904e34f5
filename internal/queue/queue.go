// Package queue holds helpers shared by the crawl queue clients in the memory
// and jetstream subpackages.
package queue

import (
	"fmt"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
)

// CheckBatch rejects empty batches and batches above crawler.MaxQueueBatchSize.
func CheckBatch(entries []crawler.QueueEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("empty queue batch")
	}
	if len(entries) > crawler.MaxQueueBatchSize {
		return fmt.Errorf("%d entries: %w", len(entries), crawler.ErrBatchTooLarge)
	}
	return nil
}

// Chunk splits entries into consecutive batches of at most size entries.
func Chunk(entries []crawler.QueueEntry, size int) [][]crawler.QueueEntry {
	if size <= 0 {
		size = crawler.MaxQueueBatchSize
	}
	var out [][]crawler.QueueEntry
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		out = append(out, entries[start:end])
	}
	return out
}
