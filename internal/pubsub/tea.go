package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Wrap converts an event into the message type an Update loop switches on.
type Wrap[T any] func(Event[T]) tea.Msg

// ListenCmd returns a command that waits for the next event on ch and
// delivers it through wrap, or as the bare Event when wrap is nil.
// The command yields nil once ctx is done or ch is closed.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T], wrap Wrap[T]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if wrap == nil {
				return event
			}
			return wrap(event)
		}
	}
}

// Listener feeds one subscription into an Update loop. Issue Next again
// after each delivered message to keep receiving.
type Listener[T any] struct {
	ctx  context.Context
	ch   <-chan Event[T]
	wrap Wrap[T]
}

// NewListener wraps a subscription channel, such as one returned by
// Broker.Subscribe.
func NewListener[T any](ctx context.Context, ch <-chan Event[T], wrap Wrap[T]) *Listener[T] {
	return &Listener[T]{ctx: ctx, ch: ch, wrap: wrap}
}

// Next waits for the following event.
func (l *Listener[T]) Next() tea.Cmd {
	if l == nil {
		return nil
	}
	return ListenCmd(l.ctx, l.ch, l.wrap)
}
