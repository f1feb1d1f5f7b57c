package pubsub

import (
	"context"

	gojson "github.com/goccy/go-json"
)

// Topics published by the pipeline
const (
	TopicCircuitStatus = "circuit_status"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string            `json:"topic"`   // e.g. "circuit_status"
	Type    string            `json:"type"`    // e.g. "indexing", "ready", "failed"
	Data    gojson.RawMessage `json:"data"`    // Event payload
	Version int               `json:"version"` // Per-topic sequence number
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// subscription is closed or the publisher shuts down.
	Events() <-chan Event

	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic.
	// Context cancellation will close the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	Close() error
}

// CircuitStatus is the payload of circuit_status events.
type CircuitStatus struct {
	State   string `json:"state"`   // loading, generating, indexing, verifying, exporting, ready, failed
	Message string `json:"message"` // Human-readable status message
	Step    int    `json:"step"`    // Current step number (1-based)
	Total   int    `json:"total"`   // Total number of steps
	Build   int    `json:"build"`   // Increments on every pipeline run
}
