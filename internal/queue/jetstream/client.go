// Package jetstream implements the crawl queue client on NATS JetStream. Each
// crawl queue is a work-queue stream named after the queue, with a single
// subject "<name>.entries"; the queue URL is the stream name.
package jetstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/JakeFAU/summit-index-crawler/internal/crawler"
	"github.com/JakeFAU/summit-index-crawler/internal/queue"
)

const subjectSuffix = ".entries"

// Config tunes the streams created for crawl queues.
type Config struct {
	// Replicas is the stream replication factor (default 1).
	Replicas int
	// MaxAge drops entries older than this; zero keeps them until consumed.
	MaxAge time.Duration
	// Storage selects file or memory storage (default file).
	Storage jetstream.StorageType
}

// Client talks to JetStream through a jetstream.JetStream handle.
type Client struct {
	js  jetstream.JetStream
	cfg Config
}

// New wraps js.
func New(js jetstream.JetStream, cfg Config) (*Client, error) {
	if js == nil {
		return nil, errors.New("jetstream handle is required")
	}
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	return &Client{js: js, cfg: cfg}, nil
}

// Subject returns the publish subject of a queue.
func Subject(queueURL string) string {
	return queueURL + subjectSuffix
}

// QueueExists reports whether the stream exists.
func (c *Client) QueueExists(ctx context.Context, name string) (bool, error) {
	_, err := c.js.Stream(ctx, name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup stream %s: %w", name, err)
	}
}

// CreateQueue creates the work-queue stream and returns its URL. An existing
// stream with the same name is reused.
func (c *Client) CreateQueue(ctx context.Context, name string) (string, error) {
	_, err := c.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:      name,
		Subjects:  []string{Subject(name)},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   c.cfg.Storage,
		Replicas:  c.cfg.Replicas,
		MaxAge:    c.cfg.MaxAge,
	})
	if err != nil && !errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return "", fmt.Errorf("create stream %s: %w", name, err)
	}
	return name, nil
}

// QueueURL resolves an existing stream.
func (c *Client) QueueURL(ctx context.Context, name string) (string, error) {
	ok, err := c.QueueExists(ctx, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("queue %s: %w", name, crawler.ErrQueueNotFound)
	}
	return name, nil
}

// TaskCount returns the number of unconsumed messages on the stream.
func (c *Client) TaskCount(ctx context.Context, queueURL string) (int64, error) {
	stream, err := c.js.Stream(ctx, queueURL)
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return 0, fmt.Errorf("queue %s: %w", queueURL, crawler.ErrQueueNotFound)
		}
		return 0, fmt.Errorf("lookup stream %s: %w", queueURL, err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("stream info %s: %w", queueURL, err)
	}
	return int64(info.State.Msgs), nil
}

// AddTask publishes one entry.
func (c *Client) AddTask(ctx context.Context, queueURL string, entry crawler.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal queue entry: %w", err)
	}
	if _, err := c.js.Publish(ctx, Subject(queueURL), data); err != nil {
		return fmt.Errorf("publish to %s: %w", queueURL, err)
	}
	return nil
}

// AddTasks publishes up to crawler.MaxQueueBatchSize entries in order.
func (c *Client) AddTasks(ctx context.Context, queueURL string, entries []crawler.QueueEntry) error {
	if err := queue.CheckBatch(entries); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := c.AddTask(ctx, queueURL, entry); err != nil {
			return err
		}
	}
	return nil
}
