// Package memory provides an in-process crawl queue client for local runs and
// tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/queue"
)

const urlScheme = "memory://"

// Client keeps one FIFO of entries per named queue.
type Client struct {
	mu     sync.Mutex
	queues map[string][]crawler.QueueEntry
}

// NewClient constructs an empty queue client.
func NewClient() *Client {
	return &Client{queues: make(map[string][]crawler.QueueEntry)}
}

// QueueExists reports whether name was created.
func (c *Client) QueueExists(_ context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.queues[urlScheme+name]
	return ok, nil
}

// CreateQueue creates name if needed and returns its URL.
func (c *Client) CreateQueue(_ context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("queue name is required")
	}
	url := urlScheme + name
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.queues[url]; !ok {
		c.queues[url] = nil
	}
	return url, nil
}

// QueueURL resolves the URL of an existing queue.
func (c *Client) QueueURL(_ context.Context, name string) (string, error) {
	url := urlScheme + name
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.queues[url]; !ok {
		return "", fmt.Errorf("queue %s: %w", name, crawler.ErrQueueNotFound)
	}
	return url, nil
}

// TaskCount returns the number of pending entries.
func (c *Client) TaskCount(_ context.Context, queueURL string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, ok := c.queues[queueURL]
	if !ok {
		return 0, fmt.Errorf("queue %s: %w", queueURL, crawler.ErrQueueNotFound)
	}
	return int64(len(entries)), nil
}

// AddTask appends one entry.
func (c *Client) AddTask(ctx context.Context, queueURL string, entry crawler.QueueEntry) error {
	return c.AddTasks(ctx, queueURL, []crawler.QueueEntry{entry})
}

// AddTasks appends up to crawler.MaxQueueBatchSize entries atomically.
func (c *Client) AddTasks(ctx context.Context, queueURL string, entries []crawler.QueueEntry) error {
	if err := queue.CheckBatch(entries); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("add tasks canceled: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.queues[queueURL]
	if !ok {
		return fmt.Errorf("queue %s: %w", queueURL, crawler.ErrQueueNotFound)
	}
	c.queues[queueURL] = append(existing, entries...)
	return nil
}

// Pop removes and returns the oldest entry, reporting false when the queue is
// empty or unknown.
func (c *Client) Pop(queueURL string) (crawler.QueueEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.queues[queueURL]
	if len(entries) == 0 {
		return crawler.QueueEntry{}, false
	}
	head := entries[0]
	c.queues[queueURL] = entries[1:]
	return head, true
}

// Entries returns a copy of the pending entries.
func (c *Client) Entries(queueURL string) []crawler.QueueEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]crawler.QueueEntry(nil), c.queues[queueURL]...)
}
