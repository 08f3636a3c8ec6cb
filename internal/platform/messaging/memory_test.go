package messaging

import (
	"context"
	"testing"
	"time"

	"contestvote/internal/shared/events"

	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	require.NoError(t, bus.Subscribe(ctx, "ballot.appended", "test-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, "ballot.appended", events.Envelope{EventID: "evt-1", EventType: "ballot.appended"}))

	select {
	case event := <-received:
		require.Equal(t, "evt-1", event.EventID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestMemoryBusIgnoresOtherTopics(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan events.Envelope, 1)
	require.NoError(t, bus.Subscribe(ctx, "ballot.appended", "test-cg", func(_ context.Context, event events.Envelope) error {
		received <- event
		return nil
	}))
	require.NoError(t, bus.Publish(ctx, "other.topic", events.Envelope{EventID: "evt-2"}))

	select {
	case event := <-received:
		t.Fatalf("unexpected delivery of %s", event.EventID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusRemovesSubscriberOnCancel(t *testing.T) {
	bus := NewMemoryBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, bus.Subscribe(ctx, "ballot.appended", "test-cg", func(context.Context, events.Envelope) error {
		return nil
	}))
	cancel()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers["ballot.appended"]) == 0
	}, time.Second, 10*time.Millisecond)
}
