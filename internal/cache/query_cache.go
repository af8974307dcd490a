// Package cache implements the bounded, TTL-based query-result cache that
// fronts the storage backend. Entries are table-scoped through their
// fingerprint prefix so any mutation on a table can invalidate exactly
// that table's results.
package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ripplekit/storebridge/internal/core"
)

const (
	// DefaultMaxSize is the default entry capacity.
	DefaultMaxSize = 100

	// DefaultTTL is the default entry lifetime.
	DefaultTTL = 5 * time.Minute

	fingerprintDelimiter = ":"
)

type entry struct {
	result     []core.Record
	insertedAt time.Time
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// QueryCache is a bounded TTL cache of query results keyed by fingerprint.
// Eviction removes the earliest-inserted entry once capacity is exceeded;
// there is no access-time refresh. TTL expiry is lazy: it is evaluated
// only at lookup time, never by a background sweep.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	order   []string // fingerprints in insertion order
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithClock overrides the cache's clock. Useful for testing TTL expiry.
func WithClock(now func() time.Time) Option {
	return func(c *QueryCache) { c.now = now }
}

// New creates a query cache with the given capacity and TTL. Non-positive
// values fall back to the defaults.
func New(maxSize int, ttl time.Duration, opts ...Option) *QueryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &QueryCache{
		entries: make(map[string]*entry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fingerprint builds the cache key for a query: table name, a
// deterministic serialization of the predicate, and a deterministic
// serialization of the pagination, joined by a fixed delimiter. Two
// logically identical predicates built in different shapes serialize
// differently and are cache-distinct; that costs an extra fetch, never a
// wrong result.
func Fingerprint(table string, pred *core.Predicate, page *core.Pagination) string {
	return table + fingerprintDelimiter + serialize(pred) + fingerprintDelimiter + serialize(page)
}

func serialize(v interface{}) string {
	if v == nil {
		return "nil"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("unserializable(%T)", v)
	}
	return string(data)
}

// Lookup returns the cached result for a fingerprint. The second return
// value is false both when the fingerprint was never inserted and when
// its TTL has elapsed; expired entries are removed as a side effect.
func (c *QueryCache) Lookup(fingerprint string) ([]core.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.removeLocked(fingerprint)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.result, true
}

// Insert stores a query result. At capacity the earliest-inserted entry
// is evicted first. Overwriting an existing fingerprint resets its TTL
// clock and moves it to the back of the eviction order.
func (c *QueryCache) Insert(fingerprint string, result []core.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fingerprint]; exists {
		c.removeLocked(fingerprint)
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		c.removeLocked(c.order[0])
		c.evictions++
	}
	c.entries[fingerprint] = &entry{result: result, insertedAt: c.now()}
	c.order = append(c.order, fingerprint)
}

// InvalidateTable removes every entry whose fingerprint is prefixed by
// the table name plus the delimiter.
func (c *QueryCache) InvalidateTable(table string) {
	prefix := table + fingerprintDelimiter
	c.mu.Lock()
	defer c.mu.Unlock()
	for fp := range c.entries {
		if strings.HasPrefix(fp, prefix) {
			c.removeLocked(fp)
		}
	}
}

// Remove deletes a single fingerprint if present.
func (c *QueryCache) Remove(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(fingerprint)
}

// Clear removes every entry.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry, c.maxSize)
	c.order = c.order[:0]
}

// Len returns the current entry count.
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *QueryCache) removeLocked(fingerprint string) {
	if _, ok := c.entries[fingerprint]; !ok {
		return
	}
	delete(c.entries, fingerprint)
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
