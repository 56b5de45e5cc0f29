// Package pubsub provides a generic publish/subscribe event system.
//
// Subscribers either receive events on a buffered channel (for consumers on
// another goroutine, such as a bubbletea command) or through a synchronous
// handler invoked inside Publish (for consumers running on the publisher's
// own event loop).
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
	// SignalEvent carries a one-shot notification that is not tied to a
	// lifecycle transition, e.g. an image widget asking to be loaded.
	SignalEvent EventType = "signal"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
