package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

// collector records consumed events for assertions.
type collector struct {
	mu     sync.Mutex
	events []*core.ChangeEvent
	fail   bool
}

func (c *collector) consume(_ context.Context, ev *core.ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("consumer down")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestDrainerForwardsEvents(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)
	defer q.Close()
	c := &collector{}

	d := NewDrainer(q, c.consume, DrainerConfig{DrainRate: 1000, PollInterval: time.Millisecond})
	require.NoError(t, d.Start(ctx))
	defer d.Stop()
	assert.True(t, d.IsRunning())

	require.NoError(t, q.Enqueue(ctx, event("a")))
	require.NoError(t, q.Enqueue(ctx, event("b")))

	waitFor(t, func() bool { return c.count() == 2 })
	assert.Equal(t, "a", c.events[0].ID)
	assert.Equal(t, "b", c.events[1].ID)
}

func TestDrainerStartStop(t *testing.T) {
	q := NewMemoryQueue(10)
	defer q.Close()
	d := NewDrainer(q, (&collector{}).consume, DrainerConfig{PollInterval: time.Millisecond})

	require.NoError(t, d.Start(context.Background()))
	assert.Error(t, d.Start(context.Background()), "double start must fail")

	d.Stop()
	assert.False(t, d.IsRunning())
	d.Stop() // idempotent

	// Restart after a clean stop.
	require.NoError(t, d.Start(context.Background()))
	d.Stop()
}

func TestDrainerDropsOnConsumerFailure(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(10)
	defer q.Close()
	c := &collector{fail: true}

	d := NewDrainer(q, c.consume, DrainerConfig{DrainRate: 1000, PollInterval: time.Millisecond})
	require.NoError(t, d.Start(ctx))
	defer d.Stop()

	require.NoError(t, q.Enqueue(ctx, event("a")))

	// The failed event is dropped, not retried: the queue drains anyway.
	waitFor(t, func() bool {
		evs, _ := q.Dequeue(ctx, 1)
		return len(evs) == 0 && c.count() == 0
	})
}
