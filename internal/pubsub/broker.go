package pubsub

import (
	"context"
	"slices"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Broker is a generic pub/sub event broker.
type Broker[T any] struct {
	subs       map[chan Event[T]]struct{}
	handlers   map[int]func(Event[T])
	nextID     int
	mu         sync.RWMutex
	done       chan struct{}
	bufferSize int
	now        func() time.Time
}

// Option configures a Broker.
type Option func(*options)

type options struct {
	bufferSize int
	now        func() time.Time
}

// WithBuffer sets the per-subscriber channel buffer.
func WithBuffer(size int) Option {
	return func(o *options) { o.bufferSize = size }
}

// WithClock sets the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewBroker creates a new broker with the default buffer size (64).
func NewBroker[T any](opts ...Option) *Broker[T] {
	o := options{bufferSize: defaultBufferSize, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		subs:       make(map[chan Event[T]]struct{}),
		handlers:   make(map[int]func(Event[T])),
		done:       make(chan struct{}),
		bufferSize: o.bufferSize,
		now:        o.now,
	}
}

// NewBrokerWithBuffer creates a new broker with a custom buffer size.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return NewBroker[T](WithBuffer(size))
}

// Subscribe creates a new subscription channel.
// The channel is automatically closed when ctx is cancelled.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := make(chan Event[T], b.bufferSize)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.closed() {
			return
		}
		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Handle registers fn to be called synchronously by Publish, on the
// publisher's goroutine, in registration order. The returned func removes it.
func (b *Broker[T]) Handle(fn func(Event[T])) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish sends an event to all subscribers.
// Channel delivery is non-blocking: events are dropped for full subscribers.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	if b.closed() {
		b.mu.RUnlock()
		return
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: b.now(),
	}

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}

	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	handlers := make([]func(Event[T]), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	// Handlers run unlocked so they may publish or unsubscribe.
	for _, h := range handlers {
		h(event)
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed() {
		return
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
	b.handlers = nil
}

// SubscriberCount returns the number of active channel subscribers and
// synchronous handlers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs) + len(b.handlers)
}

func (b *Broker[T]) closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
