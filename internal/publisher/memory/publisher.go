// Package memory contains an in-memory publisher for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/JakeFAU/summit-index-crawler/internal/publisher"
)

// Publisher records published messages for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []publisher.Message
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records a copy of the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, msg publisher.Message) (string, error) {
	cp := publisher.Message{
		Topic:      msg.Topic,
		Data:       append([]byte(nil), msg.Data...),
		Attributes: maps.Clone(msg.Attributes),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, cp)
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []publisher.Message {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.Message, len(p.messages))
	copy(out, p.messages)
	return out
}
