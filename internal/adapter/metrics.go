package adapter

import (
	"sync/atomic"

	"github.com/ripplekit/storebridge/internal/cache"
)

// opCounters tracks operation volume since adapter construction.
type opCounters struct {
	queries atomic.Uint64
	saves   atomic.Uint64
	deletes atomic.Uint64
	batches atomic.Uint64
}

// Metrics is a point-in-time snapshot of the adapter's internals.
type Metrics struct {
	// State is the lifecycle state name.
	State string `json:"state"`

	// Tier is the selected backend tier, "" before setup.
	Tier string `json:"tier"`

	// Collections is the number of registered collection handles.
	Collections int `json:"collections"`

	// Subscriptions is the number of live observations.
	Subscriptions int `json:"subscriptions"`

	// BatchSize is the advisory batch size.
	BatchSize int `json:"batch_size"`

	// Queries counts Query and QueryOne calls served.
	Queries uint64 `json:"queries"`

	// Saves counts records written through Save and BatchSave.
	Saves uint64 `json:"saves"`

	// Deletes counts records removed or tombstoned.
	Deletes uint64 `json:"deletes"`

	// Batches counts Batch transactions committed.
	Batches uint64 `json:"batches"`

	// Cache is the query cache's own snapshot.
	Cache cache.Stats `json:"cache"`
}

// Metrics returns a snapshot of the adapter's counters and cache state.
func (a *Adapter) Metrics() Metrics {
	a.mu.RLock()
	state := a.state
	tier := a.tier
	collections := len(a.collections)
	a.mu.RUnlock()

	return Metrics{
		State:         state.String(),
		Tier:          tier,
		Collections:   collections,
		Subscriptions: a.hub.Len(),
		BatchSize:     a.opts.BatchSize,
		Queries:       a.metrics.queries.Load(),
		Saves:         a.metrics.saves.Load(),
		Deletes:       a.metrics.deletes.Load(),
		Batches:       a.metrics.batches.Load(),
		Cache:         a.cache.Stats(),
	}
}
