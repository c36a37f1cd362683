package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/queue"
	"github.com/gerritevents/gerrit-events/internal/relay"
)

func TestEmitter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	outgoing := queue.New[entity.Event]()

	emitter := relay.NewEmitter(clock, 10*time.Second, outgoing)

	done := make(chan error, 1)

	go func() {
		done <- emitter.Run(ctx)
	}()

	// One keepalive right away
	require.Eventually(t, func() bool { return outgoing.Len() == 1 }, time.Second, 5*time.Millisecond)

	clock.BlockUntil(1)

	clock.Advance(9 * time.Second)
	assert.Never(t, func() bool { return outgoing.Len() > 1 }, 50*time.Millisecond, 5*time.Millisecond)

	clock.Advance(time.Second)
	require.Eventually(t, func() bool { return outgoing.Len() == 2 }, time.Second, 5*time.Millisecond)

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return outgoing.Len() == 3 }, time.Second, 5*time.Millisecond)

	for range 3 {
		event, ok := outgoing.TryPop()
		require.True(t, ok)
		assert.Equal(t, entity.NewKeepalive(), event)
		assert.Equal(t, "ping", event.Value())
	}

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("emitter did not stop")
	}
}
