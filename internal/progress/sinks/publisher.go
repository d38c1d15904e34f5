package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/summit-index-crawler/internal/progress"
	"github.com/JakeFAU/summit-index-crawler/internal/publisher"
)

// PublisherSink forwards each event as a JSON message to a topic. The event
// kind and host travel as message attributes so subscribers can filter.
type PublisherSink struct {
	pub    publisher.Publisher
	topic  string
	logger *zap.Logger
}

// NewPublisherSink builds a sink publishing to topic through pub.
func NewPublisherSink(pub publisher.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{pub: pub, topic: topic, logger: logger}
}

// Consume publishes every event. A failed publish does not stop the batch;
// the joined error is returned once all events were attempted.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.pub == nil {
		return nil
	}
	var errs []error
	for _, evt := range batch {
		data, err := json.Marshal(evt)
		if err != nil {
			errs = append(errs, fmt.Errorf("marshal %s event: %w", evt.Kind, err))
			continue
		}
		attrs := map[string]string{"kind": string(evt.Kind)}
		if evt.Host != "" {
			attrs["host"] = evt.Host
		}
		id, err := s.pub.Publish(ctx, publisher.Message{Topic: s.topic, Data: data, Attributes: attrs})
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s event: %w", evt.Kind, err))
			continue
		}
		s.logger.Debug("lifecycle event published", zap.String("kind", string(evt.Kind)), zap.String("message_id", id))
	}
	return errors.Join(errs...)
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
