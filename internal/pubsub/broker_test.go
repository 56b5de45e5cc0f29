package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// lineChange stands in for the editor notifications carried in practice.
type lineChange struct{ From, To int }

func recv[T any](t *testing.T, ch <-chan Event[T]) Event[T] {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(100 * time.Millisecond):
		require.FailNow(t, "timeout waiting for event")
	}
	return Event[T]{}
}

func TestBroker_FanOut(t *testing.T) {
	broker := NewBroker[lineChange]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subs := []<-chan Event[lineChange]{broker.Subscribe(ctx), broker.Subscribe(ctx)}
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(UpdatedEvent, lineChange{From: 2, To: 4})
	for _, ch := range subs {
		ev := recv(t, ch)
		require.Equal(t, lineChange{From: 2, To: 4}, ev.Payload)
		require.Equal(t, UpdatedEvent, ev.Type)
		require.False(t, ev.Timestamp.IsZero())
	}
}

func TestBroker_CancelledSubscriberIsRemoved(t *testing.T) {
	broker := NewBroker[lineChange]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	cancel()

	require.Eventually(t, func() bool { return broker.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	require.False(t, ok)
}

func TestBroker_FullSubscriberDropsEvents(t *testing.T) {
	broker := NewBrokerWithBuffer[int](1)
	defer broker.Close()
	ch := broker.Subscribe(context.Background())

	done := make(chan struct{})
	go func() {
		for i := 1; i <= 3; i++ {
			broker.Publish(UpdatedEvent, i)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		require.FailNow(t, "Publish blocked")
	}

	require.Equal(t, 1, recv(t, ch).Payload)
	select {
	case ev := <-ch:
		require.Failf(t, "unexpected event", "%v", ev.Payload)
	default:
	}
}

func TestBroker_Close(t *testing.T) {
	broker := NewBroker[string]()
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, broker.SubscriberCount())

	_, ok = <-broker.Subscribe(context.Background())
	require.False(t, ok, "subscribing after close yields a closed channel")
	broker.Publish(UpdatedEvent, "late")
}

func TestBroker_HandleIsSynchronous(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	var got []string
	unsubscribe := broker.Handle(func(e Event[string]) {
		got = append(got, string(e.Type)+":"+e.Payload)
	})

	broker.Publish(CreatedEvent, "a")
	broker.Publish(DeletedEvent, "b")
	require.Equal(t, []string{"created:a", "deleted:b"}, got, "handler runs inside Publish")
	require.Equal(t, 1, broker.SubscriberCount())

	unsubscribe()
	broker.Publish(SignalEvent, "c")
	require.Len(t, got, 2)
	require.Equal(t, 0, broker.SubscriberCount())
}

func TestBroker_HandlersRunInRegistrationOrder(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	var order []int
	for i := range 5 {
		broker.Handle(func(Event[int]) { order = append(order, i) })
	}
	broker.Publish(UpdatedEvent, 0)
	require.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBroker_HandlerMayPublish(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	var seen []int
	broker.Handle(func(e Event[int]) {
		seen = append(seen, e.Payload)
		if e.Payload < 3 {
			broker.Publish(UpdatedEvent, e.Payload+1)
		}
	})
	broker.Publish(UpdatedEvent, 1)
	require.Equal(t, []int{1, 2, 3}, seen)
}

func TestBroker_WithClock(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	broker := NewBroker[string](WithClock(func() time.Time { return fixed }))
	defer broker.Close()

	var ts time.Time
	broker.Handle(func(e Event[string]) { ts = e.Timestamp })
	broker.Publish(SignalEvent, "x")
	require.Equal(t, fixed, ts)
}

func TestBroker_HandleAfterClose(t *testing.T) {
	broker := NewBroker[string]()
	broker.Close()

	called := false
	unsubscribe := broker.Handle(func(Event[string]) { called = true })
	broker.Publish(CreatedEvent, "x")
	unsubscribe()
	require.False(t, called)
}
