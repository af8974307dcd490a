package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func result(id string) []core.Record {
	return []core.Record{{"id": id}}
}

func TestLookupMissAndHit(t *testing.T) {
	c := New(10, time.Minute)

	_, ok := c.Lookup("todo:nil:nil")
	assert.False(t, ok)

	c.Insert("todo:nil:nil", result("a"))
	got, ok := c.Lookup("todo:nil:nil")
	require.True(t, ok)
	assert.Equal(t, result("a"), got)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestEvictionRemovesEarliestInserted(t *testing.T) {
	c := New(2, time.Minute)
	c.Insert("todo:a:nil", result("a"))
	c.Insert("todo:b:nil", result("b"))
	c.Insert("todo:c:nil", result("c"))

	_, ok := c.Lookup("todo:a:nil")
	assert.False(t, ok, "earliest entry should be evicted")
	_, ok = c.Lookup("todo:b:nil")
	assert.True(t, ok)
	_, ok = c.Lookup("todo:c:nil")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), c.Stats().Evictions)
}

func TestOverwriteMovesToBack(t *testing.T) {
	c := New(2, time.Minute)
	c.Insert("todo:a:nil", result("a"))
	c.Insert("todo:b:nil", result("b"))

	// Re-inserting "a" makes "b" the eviction candidate.
	c.Insert("todo:a:nil", result("a2"))
	c.Insert("todo:c:nil", result("c"))

	got, ok := c.Lookup("todo:a:nil")
	require.True(t, ok)
	assert.Equal(t, result("a2"), got)
	_, ok = c.Lookup("todo:b:nil")
	assert.False(t, ok)
}

func TestLazyTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New(10, time.Minute, WithClock(func() time.Time { return now }))

	c.Insert("todo:a:nil", result("a"))
	_, ok := c.Lookup("todo:a:nil")
	assert.True(t, ok)

	// Entry survives right up to the TTL boundary.
	now = now.Add(time.Minute)
	_, ok = c.Lookup("todo:a:nil")
	assert.True(t, ok)

	// One tick past the boundary it expires and is removed.
	now = now.Add(time.Nanosecond)
	_, ok = c.Lookup("todo:a:nil")
	assert.False(t, ok)
	assert.Zero(t, c.Len())

	// Overwriting resets the TTL clock.
	c.Insert("todo:a:nil", result("a"))
	now = now.Add(30 * time.Second)
	c.Insert("todo:a:nil", result("a2"))
	now = now.Add(45 * time.Second)
	_, ok = c.Lookup("todo:a:nil")
	assert.True(t, ok)
}

func TestInvalidateTableScopesByPrefix(t *testing.T) {
	c := New(10, time.Minute)
	c.Insert(Fingerprint("todo", nil, nil), result("a"))
	c.Insert(Fingerprint("todo", core.Field("priority", core.OpEq, 1), nil), result("b"))
	c.Insert(Fingerprint("todo_archive", nil, nil), result("c"))

	c.InvalidateTable("todo")

	_, ok := c.Lookup(Fingerprint("todo", nil, nil))
	assert.False(t, ok)
	_, ok = c.Lookup(Fingerprint("todo", core.Field("priority", core.OpEq, 1), nil))
	assert.False(t, ok)

	// A different table sharing the name prefix is untouched: the
	// delimiter is part of the invalidation prefix.
	_, ok = c.Lookup(Fingerprint("todo_archive", nil, nil))
	assert.True(t, ok)
}

func TestFingerprintDistinguishesQueries(t *testing.T) {
	base := Fingerprint("todo", nil, nil)
	withPred := Fingerprint("todo", core.Field("priority", core.OpEq, 1), nil)
	withPage := Fingerprint("todo", nil, &core.Pagination{Limit: 5})

	assert.NotEqual(t, base, withPred)
	assert.NotEqual(t, base, withPage)
	assert.NotEqual(t, withPred, withPage)

	// Identical queries fingerprint identically.
	assert.Equal(t, withPred, Fingerprint("todo", core.Field("priority", core.OpEq, 1), nil))
}

func TestRemoveAndClear(t *testing.T) {
	c := New(10, time.Minute)
	c.Insert("todo:a:nil", result("a"))
	c.Insert("todo:b:nil", result("b"))

	c.Remove("todo:a:nil")
	assert.Equal(t, 1, c.Len())
	c.Remove("todo:a:nil") // absent, no-op

	c.Clear()
	assert.Zero(t, c.Len())
}
