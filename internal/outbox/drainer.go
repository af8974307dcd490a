package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
	"golang.org/x/time/rate"
)

// Consumer handles one drained change event.
type Consumer func(ctx context.Context, event *core.ChangeEvent) error

// DrainerConfig tunes the outbox drainer.
type DrainerConfig struct {
	// DrainRate caps forwarded events per second.
	DrainRate int `yaml:"drain_rate,omitempty" json:"drain_rate,omitempty"`

	// PollInterval is how long the drainer sleeps when the queue is
	// empty.
	PollInterval time.Duration `yaml:"poll_interval,omitempty" json:"poll_interval,omitempty"`
}

// Drainer forwards queued change events to a consumer at a bounded rate.
// Consumer failures are logged and the event is dropped; the outbox is a
// best-effort feed, not the source of truth.
type Drainer struct {
	queue    Queue
	consumer Consumer
	config   DrainerConfig

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewDrainer creates a drainer over the queue.
func NewDrainer(queue Queue, consumer Consumer, config DrainerConfig) *Drainer {
	if config.DrainRate <= 0 {
		config.DrainRate = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &Drainer{queue: queue, consumer: consumer, config: config}
}

// Start launches the drain loop. Calling Start on a running drainer is an
// error.
func (d *Drainer) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("drainer is already running")
	}
	d.running = true
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.loop(ctx, d.stop, d.done)
	return nil
}

// Stop halts the drain loop and waits for it to exit.
func (d *Drainer) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	close(d.stop)
	done := d.done
	d.mu.Unlock()
	<-done
}

// IsRunning reports whether the drain loop is active.
func (d *Drainer) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Drainer) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	limiter := rate.NewLimiter(rate.Limit(d.config.DrainRate), 1)

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		events, err := d.queue.Dequeue(ctx, 1)
		if err != nil {
			logger.Warn("outbox dequeue failed: %v", err)
			return
		}
		if len(events) == 0 {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(d.config.PollInterval):
			}
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if err := d.consumer(ctx, events[0]); err != nil {
			logger.Warn("outbox consumer failed for event %s: %v", events[0].ID, err)
		}
	}
}
