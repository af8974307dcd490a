package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func todoSchema() *core.NativeSchema {
	return &core.NativeSchema{
		Version:  "1",
		Syncable: true,
		Tables: map[string]*core.TableSchema{
			"todo": {
				Name: "todo",
				Columns: []core.ColumnSchema{
					{Name: "id", Type: core.ColumnTypeString},
					{Name: "title", Type: core.ColumnTypeString},
					{Name: "priority", Type: core.ColumnTypeNumber, Optional: true},
				},
			},
			core.MetadataTable: {
				Name: core.MetadataTable,
				Columns: []core.ColumnSchema{
					{Name: "id", Type: core.ColumnTypeString},
				},
			},
		},
	}
}

func put(t *testing.T, b core.Backend, table string, rec core.Record) {
	t.Helper()
	require.NoError(t, b.Write(context.Background(), func(tx core.WriteTx) error {
		return tx.Put(context.Background(), table, rec)
	}))
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Initialize(ctx, todoSchema()))

	put(t, m, "todo", core.Record{"id": "1", "title": "buy milk"})
	put(t, m, "todo", core.Record{"id": "2", "title": "walk dog"})

	rec, err := m.Get(ctx, "todo", "1")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", rec["title"])

	_, err = m.Get(ctx, "todo", "missing")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	// List preserves insertion order.
	records, err := m.List(ctx, "todo")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0]["id"])
	assert.Equal(t, "2", records[1]["id"])

	// Overwriting keeps the original position.
	put(t, m, "todo", core.Record{"id": "1", "title": "buy oat milk"})
	records, _ = m.List(ctx, "todo")
	require.Len(t, records, 2)
	assert.Equal(t, "buy oat milk", records[0]["title"])

	require.NoError(t, m.Write(ctx, func(tx core.WriteTx) error {
		return tx.Delete(ctx, "todo", "1")
	}))
	records, _ = m.List(ctx, "todo")
	require.Len(t, records, 1)
	assert.Equal(t, "2", records[0]["id"])
}

func TestMemoryWriteRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Initialize(ctx, todoSchema()))
	put(t, m, "todo", core.Record{"id": "1", "title": "keep me"})

	boom := errors.New("boom")
	err := m.Write(ctx, func(tx core.WriteTx) error {
		require.NoError(t, tx.Put(ctx, "todo", core.Record{"id": "2", "title": "discard me"}))
		require.NoError(t, tx.Delete(ctx, "todo", "1"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	// The failed transaction left nothing behind.
	records, err := m.List(ctx, "todo")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0]["id"])
}

func TestMemoryTxReadsItsOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Initialize(ctx, todoSchema()))

	require.NoError(t, m.Write(ctx, func(tx core.WriteTx) error {
		require.NoError(t, tx.Put(ctx, "todo", core.Record{"id": "1", "title": "staged"}))
		rec, err := tx.Get(ctx, "todo", "1")
		require.NoError(t, err)
		assert.Equal(t, "staged", rec["title"])
		return nil
	}))
}

func TestMemoryDeleteAllAndReset(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Initialize(ctx, todoSchema()))
	put(t, m, "todo", core.Record{"id": "1"})
	put(t, m, core.MetadataTable, core.Record{"id": "meta"})

	require.NoError(t, m.Write(ctx, func(tx core.WriteTx) error {
		return tx.DeleteAll(ctx, "todo")
	}))
	records, _ := m.List(ctx, "todo")
	assert.Empty(t, records)
	records, _ = m.List(ctx, core.MetadataTable)
	assert.Len(t, records, 1)

	require.NoError(t, m.Reset(ctx))
	records, _ = m.List(ctx, core.MetadataTable)
	assert.Empty(t, records)
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Initialize(ctx, todoSchema()))
	require.NoError(t, m.Close())

	_, err := m.List(ctx, "todo")
	assert.ErrorIs(t, err, core.ErrBackendClosed)
	err = m.Write(ctx, func(core.WriteTx) error { return nil })
	assert.ErrorIs(t, err, core.ErrBackendClosed)
}
