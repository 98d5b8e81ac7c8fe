package eventbus_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/eventbus"
)

type ping struct{ N int }

type pong struct{}

func TestSubscribePublish(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var got []string
	unsubA := eventbus.Subscribe(func(_ context.Context, p ping) { got = append(got, "a") })
	unsubB := eventbus.Subscribe(func(_ context.Context, p ping) { got = append(got, "b") })
	defer unsubB()
	eventbus.Subscribe(func(context.Context, pong) { got = append(got, "pong") })

	eventbus.Publish(context.Background(), ping{N: 1})
	require.Equal(t, []string{"a", "b"}, got)

	// A second unsubscribe must not remove another handler.
	unsubA()
	unsubA()
	got = nil
	eventbus.Publish(context.Background(), ping{N: 2})
	require.Equal(t, []string{"b"}, got)
}

func TestWithoutBus(t *testing.T) {
	eventbus.Use(nil)
	called := false
	unsub := eventbus.Subscribe(func(context.Context, ping) { called = true })
	eventbus.Publish(context.Background(), ping{})
	unsub()
	require.False(t, called)
}

func TestSubscribeFromHandler(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var late []int
	var once bool
	eventbus.Subscribe(func(_ context.Context, p ping) {
		if once {
			return
		}
		once = true
		eventbus.Subscribe(func(_ context.Context, p ping) { late = append(late, p.N) })
	})

	eventbus.Publish(context.Background(), ping{N: 1})
	require.Empty(t, late)
	eventbus.Publish(context.Background(), ping{N: 2})
	require.Equal(t, []int{2}, late)
}
