package backend

import (
	"context"
	"sync"

	"github.com/ripplekit/storebridge/internal/core"
)

// TierMemory identifies the in-process memory engine.
const TierMemory = "memory"

type memTable struct {
	records map[string]core.Record
	order   []string // ids in insertion order
}

func newMemTable() *memTable {
	return &memTable{records: make(map[string]core.Record)}
}

func (t *memTable) clone() *memTable {
	out := &memTable{
		records: make(map[string]core.Record, len(t.records)),
		order:   append([]string(nil), t.order...),
	}
	for id, rec := range t.records {
		out.records[id] = rec.Clone()
	}
	return out
}

// Memory is a fully functional in-process engine keeping all records in
// process memory. Natural fetch order is insertion order. Used as the
// synchronous in-process tier in tests and development setups.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]*memTable
	closed bool
}

// NewMemory creates an empty memory backend.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string]*memTable)}
}

// MemoryFactory returns a factory constructing the memory tier.
func MemoryFactory() core.BackendFactory {
	return FactoryFunc{
		ID: TierMemory,
		Build: func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
			b := NewMemory()
			if err := b.Initialize(ctx, schema); err != nil {
				return nil, err
			}
			return b, nil
		},
	}
}

// Kind returns the tier identifier.
func (m *Memory) Kind() string { return TierMemory }

// Initialize creates one empty table per schema table.
func (m *Memory) Initialize(_ context.Context, schema *core.NativeSchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrBackendClosed
	}
	for name := range schema.Tables {
		if _, ok := m.tables[name]; !ok {
			m.tables[name] = newMemTable()
		}
	}
	return nil
}

// Get retrieves a record by id.
func (m *Memory) Get(_ context.Context, table, id string) (core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, core.ErrBackendClosed
	}
	t, ok := m.tables[table]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	rec, ok := t.records[id]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// List returns all records of a table in insertion order.
func (m *Memory) List(_ context.Context, table string) ([]core.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, core.ErrBackendClosed
	}
	t, ok := m.tables[table]
	if !ok {
		return []core.Record{}, nil
	}
	out := make([]core.Record, 0, len(t.order))
	for _, id := range t.order {
		if rec, ok := t.records[id]; ok {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// memoryTx stages mutations on a cloned table set and swaps the clone in
// on commit, so a failed transaction leaves the backend untouched.
type memoryTx struct {
	tables map[string]*memTable
}

func (tx *memoryTx) table(name string) *memTable {
	t, ok := tx.tables[name]
	if !ok {
		t = newMemTable()
		tx.tables[name] = t
	}
	return t
}

func (tx *memoryTx) Get(_ context.Context, table, id string) (core.Record, error) {
	t, ok := tx.tables[table]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	rec, ok := t.records[id]
	if !ok {
		return nil, core.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (tx *memoryTx) Put(_ context.Context, table string, record core.Record) error {
	id := record.ID()
	if id == "" {
		return core.ErrRecordNotFound
	}
	t := tx.table(table)
	if _, exists := t.records[id]; !exists {
		t.order = append(t.order, id)
	}
	t.records[id] = record.Clone()
	return nil
}

func (tx *memoryTx) Delete(_ context.Context, table, id string) error {
	t, ok := tx.tables[table]
	if !ok {
		return nil
	}
	if _, exists := t.records[id]; !exists {
		return nil
	}
	delete(t.records, id)
	for i, ordered := range t.order {
		if ordered == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func (tx *memoryTx) DeleteAll(_ context.Context, table string) error {
	tx.tables[table] = newMemTable()
	return nil
}

// Write runs fn against a staged copy of the store and commits the copy
// atomically on success. Writers are serialized by the backend's lock.
func (m *Memory) Write(_ context.Context, fn func(tx core.WriteTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrBackendClosed
	}

	staged := make(map[string]*memTable, len(m.tables))
	for name, t := range m.tables {
		staged[name] = t.clone()
	}
	tx := &memoryTx{tables: staged}
	if err := fn(tx); err != nil {
		return err
	}
	m.tables = tx.tables
	return nil
}

// Reset drops every table and all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrBackendClosed
	}
	m.tables = make(map[string]*memTable)
	return nil
}

// Close marks the backend closed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
