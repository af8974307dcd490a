package storebridge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todoSchema() *SchemaDescription {
	return &SchemaDescription{
		Version:   "1",
		Namespace: "test",
		Syncable:  true,
		Models: map[string]ModelDefinition{
			"Todo": {
				Name: "Todo",
				Fields: map[string]FieldDescriptor{
					"title":       {Type: "String", Required: true},
					"isCompleted": {Type: "Boolean", Required: true},
					"priority":    {Type: "Int"},
				},
			},
		},
	}
}

func newBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	b, err := New(DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	require.NoError(t, b.Setup(context.Background(), todoSchema()))
	return b
}

func TestBridgeEndToEnd(t *testing.T) {
	ctx := context.Background()
	b := newBridge(t)
	assert.Equal(t, "memory", b.Tier())

	saved, op, err := b.Save(ctx, "Todo", Record{"title": "buy milk", "isCompleted": false, "priority": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, OpInsert, op)
	require.NotEmpty(t, saved["id"])

	_, _, err = b.Save(ctx, "Todo", Record{"title": "walk dog", "isCompleted": true, "priority": 2}, nil)
	require.NoError(t, err)

	open, err := b.Query(ctx, "Todo", Field("isCompleted", "eq", false), nil)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "buy milk", open[0]["title"])

	first, err := b.QueryOne(ctx, "Todo", First)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "buy milk", first["title"])

	deleted, failed, err := b.Delete(ctx, "Todo", Field("isCompleted", "eq", true))
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.Len(t, deleted, 1)

	remaining, err := b.Query(ctx, "Todo", nil, nil)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	m := b.Metrics()
	assert.Equal(t, "ready", m.State)
	assert.Equal(t, 1, m.Collections)
}

func TestBridgeRecordFactory(t *testing.T) {
	ctx := context.Background()
	b := newBridge(t, WithRecordFactory(func(model string, fields Record) Record {
		rec := fields.Clone()
		rec["_model"] = model
		return rec
	}))

	_, _, err := b.Save(ctx, "Todo", Record{"title": "x", "isCompleted": false}, nil)
	require.NoError(t, err)

	records, err := b.Query(ctx, "Todo", nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Todo", records[0]["_model"])
}

func TestBridgeOutboxFeedsConsumer(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var seen []*ChangeEvent
	consumer := func(_ context.Context, ev *ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev)
		return nil
	}

	cfg := DefaultConfig()
	cfg.Outbox.Enabled = true
	cfg.Outbox.Drainer.PollInterval = time.Millisecond
	cfg.Outbox.Drainer.DrainRate = 1000

	b, err := New(cfg, WithChangeConsumer(consumer))
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Setup(ctx, todoSchema()))

	_, _, err = b.Save(ctx, "Todo", Record{"title": "x", "isCompleted": false}, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("change event never reached the consumer")
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "todo", seen[0].Table)
	assert.Equal(t, "Todo", seen[0].Model)
	assert.NotEmpty(t, seen[0].RecordID)
}

func TestBridgeConflictHandler(t *testing.T) {
	b := newBridge(t)
	handler := b.GetConflictHandler()
	require.NotNil(t, handler)

	verdict := handler(ConflictData{
		LocalRecord:  Record{"_version": float64(1)},
		RemoteRecord: Record{"_version": float64(2)},
		Operation:    "UPDATE",
	})
	assert.Equal(t, AcceptRemote, verdict)
}
