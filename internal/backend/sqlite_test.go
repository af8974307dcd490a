package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func openSQLite(t *testing.T) core.Backend {
	t.Helper()
	ctx := context.Background()
	b, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Initialize(ctx, todoSchema()))
	return b
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openSQLite(t)
	assert.Equal(t, TierLocal, b.Kind())

	put(t, b, "todo", core.Record{"id": "1", "title": "buy milk", "priority": float64(2)})

	rec, err := b.Get(ctx, "todo", "1")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", rec["title"])
	assert.Equal(t, float64(2), rec["priority"])

	_, err = b.Get(ctx, "todo", "missing")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	// NULL columns are omitted from the record.
	put(t, b, "todo", core.Record{"id": "2", "title": "walk dog"})
	rec, err = b.Get(ctx, "todo", "2")
	require.NoError(t, err)
	_, present := rec["priority"]
	assert.False(t, present)

	records, err := b.List(ctx, "todo")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSQLiteUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	b := openSQLite(t)

	put(t, b, "todo", core.Record{"id": "1", "title": "before"})
	put(t, b, "todo", core.Record{"id": "1", "title": "after", "priority": float64(1)})

	rec, err := b.Get(ctx, "todo", "1")
	require.NoError(t, err)
	assert.Equal(t, "after", rec["title"])

	records, _ := b.List(ctx, "todo")
	assert.Len(t, records, 1)
}

func TestSQLiteTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	b := openSQLite(t)
	put(t, b, "todo", core.Record{"id": "1", "title": "keep me"})

	boom := errors.New("boom")
	err := b.Write(ctx, func(tx core.WriteTx) error {
		require.NoError(t, tx.Put(ctx, "todo", core.Record{"id": "2", "title": "discard me"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	records, err := b.List(ctx, "todo")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSQLiteUnknownTable(t *testing.T) {
	ctx := context.Background()
	b := openSQLite(t)
	_, err := b.List(ctx, "nonexistent")
	assert.Error(t, err)
}

func TestSQLiteReset(t *testing.T) {
	ctx := context.Background()
	b := openSQLite(t)
	put(t, b, "todo", core.Record{"id": "1", "title": "gone soon"})

	require.NoError(t, b.Reset(ctx))
	require.NoError(t, b.Initialize(ctx, todoSchema()))
	records, err := b.List(ctx, "todo")
	require.NoError(t, err)
	assert.Empty(t, records)
}
