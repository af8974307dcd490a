// Package observe bridges the backend's table-change notifications into
// the observable-of-record-arrays contract the sync framework expects.
// Each live subscription re-evaluates its compiled query when its table
// changes and emits a fresh record array.
package observe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
	"github.com/ripplekit/storebridge/internal/predicate"
)

// emissionBuffer bounds how many pending emissions a slow consumer can
// hold before further emissions are dropped.
const emissionBuffer = 16

// Query identifies what a subscription watches.
type Query struct {
	// Table is the native table under observation.
	Table string

	// Model is the framework model name.
	Model string

	// Directives is the compiled predicate/sort/pagination.
	Directives core.Directives

	// Fingerprint is the query-cache fingerprint for the same query, so
	// teardown can drop the now-stale cached entry.
	Fingerprint string
}

// Fetch supplies the current contents of a table.
type Fetch func(ctx context.Context, table string) ([]core.Record, error)

// Convert maps native-shape records to the framework's record shape.
type Convert func(records []core.Record) []core.Record

// Subscription is one live change-observation handle.
type Subscription struct {
	id      uint64
	query   Query
	convert Convert
	ch      chan []core.Record
	hub     *Hub
	once    sync.Once
}

// Records is the emission stream. It is closed on unsubscribe.
func (s *Subscription) Records() <-chan []core.Record { return s.ch }

// Query returns what this subscription watches.
func (s *Subscription) Query() Query { return s.query }

// Unsubscribe removes the handle from the hub and closes the stream.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.ch)
	})
	return nil
}

func (s *Subscription) emit(records []core.Record) {
	if s.convert != nil {
		records = s.convert(records)
	}
	select {
	case s.ch <- records:
	default:
		logger.Warn("dropping emission for table %q: subscriber is not keeping up", s.query.Table)
	}
}

// Hub tracks the active subscription set and fans table-change
// notifications out to the affected subscriptions.
type Hub struct {
	fetch Fetch

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	// onRemove is invoked with the subscription's fingerprint after it
	// leaves the set, letting the adapter drop the stale cache entry.
	onRemove func(fingerprint string)
}

// NewHub creates a hub reading table contents through fetch.
func NewHub(fetch Fetch, onRemove func(fingerprint string)) *Hub {
	return &Hub{
		fetch:    fetch,
		subs:     make(map[uint64]*Subscription),
		onRemove: onRemove,
	}
}

// Subscribe opens a subscription and emits the query's current result as
// the first emission.
func (h *Hub) Subscribe(ctx context.Context, q Query, convert Convert) *Subscription {
	sub := &Subscription{
		id:      atomic.AddUint64(&h.nextID, 1),
		query:   q,
		convert: convert,
		ch:      make(chan []core.Record, emissionBuffer),
		hub:     h,
	}
	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	if records, err := h.fetch(ctx, q.Table); err == nil {
		sub.emit(predicate.Apply(records, q.Directives))
	} else {
		logger.Warn("initial fetch for observation on table %q failed: %v", q.Table, err)
	}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	_, present := h.subs[sub.id]
	delete(h.subs, sub.id)
	h.mu.Unlock()
	if present && h.onRemove != nil {
		h.onRemove(sub.query.Fingerprint)
	}
}

// Len returns the active subscription count.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// NotifyTableChanged re-evaluates every subscription watching the table
// and emits the fresh result to each.
func (h *Hub) NotifyTableChanged(ctx context.Context, table string) {
	h.mu.Lock()
	watching := make([]*Subscription, 0)
	for _, sub := range h.subs {
		if sub.query.Table == table {
			watching = append(watching, sub)
		}
	}
	h.mu.Unlock()
	if len(watching) == 0 {
		return
	}

	records, err := h.fetch(ctx, table)
	if err != nil {
		logger.Warn("re-fetch for observations on table %q failed: %v", table, err)
		return
	}
	for _, sub := range watching {
		sub.emit(predicate.Apply(records, sub.query.Directives))
	}
}

// UnsubscribeAll tears down every subscription. Per-subscription failures
// are logged and skipped so one bad handle never blocks the rest.
func (h *Hub) UnsubscribeAll() {
	h.mu.Lock()
	all := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		all = append(all, sub)
	}
	h.mu.Unlock()

	for _, sub := range all {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("failed to unsubscribe observation on table %q: %v", sub.query.Table, err)
		}
	}
}
