// Package outbox queues committed-mutation events for downstream sync
// consumers. The adapter offers an event after each write transaction
// commits; a drainer forwards events to a consumer at a bounded rate.
package outbox

import (
	"context"
	"errors"
	"sync"

	"github.com/ripplekit/storebridge/internal/core"
)

var (
	// ErrQueueClosed is returned when enqueueing to a closed queue.
	ErrQueueClosed = errors.New("outbox queue is closed")

	// ErrQueueFull is returned when the queue cannot accept more events.
	ErrQueueFull = errors.New("outbox queue is full")
)

// Queue is the change-event queue contract.
type Queue interface {
	// Enqueue adds an event to the queue.
	Enqueue(ctx context.Context, event *core.ChangeEvent) error

	// Dequeue retrieves up to batchSize events in FIFO order. Fewer (or
	// zero) events are returned when the queue holds fewer.
	Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error)

	// Close releases the queue's resources.
	Close() error
}

// MemoryQueue is a channel-backed in-process queue, the default when no
// broker is configured.
type MemoryQueue struct {
	queue  chan *core.ChangeEvent
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory queue holding at most bufferSize
// events.
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &MemoryQueue{queue: make(chan *core.ChangeEvent, bufferSize)}
}

// Enqueue adds an event without blocking; a full queue is an error.
func (q *MemoryQueue) Enqueue(ctx context.Context, event *core.ChangeEvent) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}

	select {
	case q.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue drains up to batchSize buffered events without blocking.
func (q *MemoryQueue) Dequeue(ctx context.Context, batchSize int) ([]*core.ChangeEvent, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	events := make([]*core.ChangeEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		select {
		case event, ok := <-q.queue:
			if !ok {
				return events, nil
			}
			events = append(events, event)
		case <-ctx.Done():
			return events, ctx.Err()
		default:
			return events, nil
		}
	}
	return events, nil
}

// Close closes the queue; buffered events remain drainable.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.queue)
	return nil
}
