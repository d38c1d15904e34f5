// Package pubsub publishes lifecycle messages to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"

	"github.com/JakeFAU/summit-index-crawler/internal/publisher"
)

// Publisher wraps a Pub/Sub topic publisher. The topic on each Message is
// informational; the wrapped client is bound to one topic.
type Publisher struct {
	publisher *pubsub.Publisher
}

// New creates a Publisher for the provided topic publisher.
func New(p *pubsub.Publisher) *Publisher {
	return &Publisher{publisher: p}
}

// NewFromClient binds a Publisher to topic on an existing client.
func NewFromClient(client *pubsub.Client, topic string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("pubsub client is required")
	}
	if topic == "" {
		return nil, errors.New("pubsub topic is required")
	}
	return New(client.Publisher(topic)), nil
}

// Publish sends msg, injecting the trace context into the message attributes,
// and waits for the server-assigned ID.
func (p *Publisher) Publish(ctx context.Context, msg publisher.Message) (string, error) {
	if p == nil || p.publisher == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	out := &pubsub.Message{
		Data:       msg.Data,
		Attributes: make(map[string]string, len(msg.Attributes)+2),
	}
	for k, v := range msg.Attributes {
		out.Attributes[k] = v
	}
	otel.GetTextMapPropagator().Inject(ctx, attributeCarrier(out.Attributes))

	id, err := p.publisher.Publish(ctx, out).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and releases the publisher.
func (p *Publisher) Stop() {
	if p != nil && p.publisher != nil {
		p.publisher.Stop()
	}
}

// attributeCarrier adapts Pub/Sub attributes to propagation.TextMapCarrier.
type attributeCarrier map[string]string

func (c attributeCarrier) Get(key string) string {
	return c[key]
}

func (c attributeCarrier) Set(key, value string) {
	c[key] = value
}

func (c attributeCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
