// Package publisher defines the message publication contract used to fan
// lifecycle events out to downstream consumers.
package publisher

import "context"

// Message is one payload destined for a topic.
type Message struct {
	Topic      string
	Data       []byte
	Attributes map[string]string
}

// Publisher delivers messages and returns the broker-assigned message ID.
type Publisher interface {
	Publish(ctx context.Context, msg Message) (string, error)
}
