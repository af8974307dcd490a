package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ripplekit/storebridge/internal/cache"
	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
	"github.com/ripplekit/storebridge/internal/predicate"
)

// nowMillis is the timestamp source for record stamping.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Query returns every record of a model matching the predicate, converted
// to framework shape. Results are served from the query cache when an
// unexpired entry for the exact same query exists. Querying a model that
// was never registered returns an empty result, not an error.
func (a *Adapter) Query(ctx context.Context, model string, pred *core.Predicate, page *core.Pagination) ([]core.Record, error) {
	if _, err := a.requireReady(); err != nil {
		return nil, err
	}
	col := a.collection(model)
	if col == nil {
		logger.Debug("query for unregistered model %q returns empty", model)
		return []core.Record{}, nil
	}

	fingerprint := cache.Fingerprint(col.Table, pred, page)
	if cached, ok := a.cache.Lookup(fingerprint); ok {
		a.metrics.queries.Add(1)
		return cached, nil
	}

	compiler := predicate.NewCompiler(col.Model)
	dir, dropped := compiler.CompileQuery(pred, page)
	if len(dropped) > 0 {
		logger.Debug("query on %q dropped %d condition(s)", model, len(dropped))
	}

	records, err := a.fetchTable(ctx, col.Table)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", model, err)
	}
	result := a.convertAll(col.Model, predicate.Apply(records, dir))
	a.cache.Insert(fingerprint, result)
	a.metrics.queries.Add(1)
	return result, nil
}

// QueryOne returns the first or last record of a model in the backend's
// natural fetch order, or nil when the model has no records. QueryOne
// never consults or populates the query cache.
func (a *Adapter) QueryOne(ctx context.Context, model string, which core.QueryOne) (core.Record, error) {
	if _, err := a.requireReady(); err != nil {
		return nil, err
	}
	col := a.collection(model)
	if col == nil {
		return nil, nil
	}
	records, err := a.fetchTable(ctx, col.Table)
	if err != nil {
		return nil, fmt.Errorf("queryOne %s: %w", model, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	a.metrics.queries.Add(1)
	if which == core.Last {
		return a.toFramework(col.Model, records[len(records)-1]), nil
	}
	return a.toFramework(col.Model, records[0]), nil
}

// Save inserts or updates one record inside a single write transaction,
// deciding between the two by probing for the record's id. The returned
// operation type reports which path ran. The optional condition guards
// updates: when the stored record does not satisfy it, the save fails and
// nothing is written.
//
// The table's cached queries are invalidated before the write executes,
// so a failed write costs cache entries rather than risking stale reads.
func (a *Adapter) Save(ctx context.Context, model string, record core.Record, condition *core.Predicate) (core.Record, core.OpType, error) {
	b, err := a.requireReady()
	if err != nil {
		return nil, "", err
	}
	col := a.collection(model)
	if col == nil {
		return nil, "", fmt.Errorf("%w: %s", core.ErrCollectionNotRegistered, model)
	}

	a.cache.InvalidateTable(col.Table)

	var saved core.Record
	var op core.OpType
	err = b.Write(ctx, func(tx core.WriteTx) error {
		var txErr error
		saved, op, txErr = a.saveInTx(ctx, tx, col, record, condition)
		return txErr
	})
	if err != nil {
		return nil, "", fmt.Errorf("save %s: %w", model, err)
	}

	a.metrics.saves.Add(1)
	a.afterMutation(ctx, col, saved, kindForOp(op))
	return a.toFramework(col.Model, saved), op, nil
}

// saveInTx is the find-or-create core shared by Save and BatchSave. It
// returns the stored native record and the operation performed.
func (a *Adapter) saveInTx(ctx context.Context, tx core.WriteTx, col *Collection, record core.Record, condition *core.Predicate) (core.Record, core.OpType, error) {
	native, err := a.toNative(col.Model, record)
	if err != nil {
		return nil, "", err
	}

	// Ids are assigned by the framework layer, never by the engine's
	// auto-increment machinery.
	id, _ := native[core.ColumnID].(string)
	if id == "" {
		id = uuid.NewString()
		native[core.ColumnID] = id
	}

	existing, err := tx.Get(ctx, col.Table, id)
	if err != nil && !errors.Is(err, core.ErrRecordNotFound) {
		return nil, "", err
	}

	now := float64(nowMillis())
	var op core.OpType
	if existing == nil {
		op = core.OpInsert
		native[core.ColumnCreatedAt] = now
		native[core.ColumnVersion] = float64(1)
	} else {
		op = core.OpUpdate
		if condition != nil {
			// A clause the compiler drops would silently widen the guard;
			// failing the save is the only safe reading of a condition
			// that cannot be evaluated as written.
			conds, condDropped := predicate.NewCompiler(col.Model).Compile(condition)
			if len(condDropped) > 0 {
				return nil, "", fmt.Errorf("save condition for %s %q could not be compiled: %s", col.Model.Name, id, strings.Join(condDropped, "; "))
			}
			if !predicate.Matches(existing, conds) {
				return nil, "", fmt.Errorf("save condition not satisfied for %s %q", col.Model.Name, id)
			}
		}
		merged := existing.Clone()
		for k, v := range native {
			merged[k] = v
		}
		native = merged
		if v, ok := native[core.ColumnVersion].(float64); ok {
			native[core.ColumnVersion] = v + 1
		}
	}
	native[core.ColumnUpdatedAt] = now
	native[core.ColumnLastChanged] = now

	if err := tx.Put(ctx, col.Table, native); err != nil {
		return nil, "", err
	}
	return native, op, nil
}

// DeleteRecord deletes exactly one record by its id. On sync-tracked
// schemas the record is tombstoned in place; otherwise it is removed for
// good. The deleted record is returned in framework shape; deleting an
// absent id deletes nothing and returns an empty result.
func (a *Adapter) DeleteRecord(ctx context.Context, model string, record core.Record) ([]core.Record, []core.Record, error) {
	id := record.ID()
	if id == "" {
		return nil, nil, fmt.Errorf("delete %s: record has no id", model)
	}
	return a.deleteMatching(ctx, model, func(rec core.Record) bool {
		return rec.ID() == id
	})
}

// Delete removes every record of a model matching the predicate. A nil
// predicate matches the whole collection. It returns the deleted records
// in framework shape; the second slice is reserved for per-record
// failures and is always empty because the enclosing transaction makes
// deletion all-or-nothing.
func (a *Adapter) Delete(ctx context.Context, model string, pred *core.Predicate) ([]core.Record, []core.Record, error) {
	var conds []core.Condition
	if pred != nil {
		col := a.collection(model)
		if col != nil {
			conds, _ = predicate.NewCompiler(col.Model).Compile(pred)
		}
	}
	return a.deleteMatching(ctx, model, func(rec core.Record) bool {
		return predicate.Matches(rec, conds)
	})
}

func (a *Adapter) deleteMatching(ctx context.Context, model string, match func(core.Record) bool) ([]core.Record, []core.Record, error) {
	b, err := a.requireReady()
	if err != nil {
		return nil, nil, err
	}
	col := a.collection(model)
	if col == nil {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrCollectionNotRegistered, model)
	}

	records, err := a.fetchTable(ctx, col.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("delete %s: %w", model, err)
	}
	var victims []core.Record
	for _, rec := range records {
		if match(rec) {
			victims = append(victims, rec)
		}
	}
	if len(victims) == 0 {
		return []core.Record{}, []core.Record{}, nil
	}

	a.mu.RLock()
	soft := a.native.Syncable
	a.mu.RUnlock()

	a.cache.InvalidateTable(col.Table)

	err = b.Write(ctx, func(tx core.WriteTx) error {
		now := float64(nowMillis())
		for i, rec := range victims {
			if soft {
				tombstone := rec.Clone()
				tombstone[core.ColumnDeleted] = true
				tombstone[core.ColumnLastChanged] = now
				tombstone[core.ColumnUpdatedAt] = now
				if err := tx.Put(ctx, col.Table, tombstone); err != nil {
					return err
				}
				victims[i] = tombstone
			} else if err := tx.Delete(ctx, col.Table, rec.ID()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("delete %s: %w", model, err)
	}

	a.metrics.deletes.Add(uint64(len(victims)))
	deleted := make([]core.Record, 0, len(victims))
	for _, rec := range victims {
		a.publish(ctx, a.changeEvent(col, rec, core.ChangeDeleted, !soft))
		deleted = append(deleted, a.toFramework(col.Model, rec))
	}
	a.hub.NotifyTableChanged(ctx, col.Table)
	return deleted, []core.Record{}, nil
}

// BatchSave saves many records of one model sequentially inside a single
// write transaction. The table's cache entries are invalidated once, up
// front, and observers are notified once after commit. Either every
// record lands or none does.
func (a *Adapter) BatchSave(ctx context.Context, model string, records []core.Record) ([]core.Record, []core.OpType, error) {
	b, err := a.requireReady()
	if err != nil {
		return nil, nil, err
	}
	col := a.collection(model)
	if col == nil {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrCollectionNotRegistered, model)
	}
	if len(records) == 0 {
		return []core.Record{}, []core.OpType{}, nil
	}

	a.cache.InvalidateTable(col.Table)

	saved := make([]core.Record, 0, len(records))
	ops := make([]core.OpType, 0, len(records))
	err = b.Write(ctx, func(tx core.WriteTx) error {
		saved = saved[:0]
		ops = ops[:0]
		for i, rec := range records {
			nat, op, txErr := a.saveInTx(ctx, tx, col, rec, nil)
			if txErr != nil {
				return fmt.Errorf("record %d: %w", i, txErr)
			}
			saved = append(saved, nat)
			ops = append(ops, op)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("batchSave %s: %w", model, err)
	}

	a.metrics.saves.Add(uint64(len(saved)))
	out := make([]core.Record, 0, len(saved))
	for i, nat := range saved {
		a.publish(ctx, a.changeEvent(col, nat, kindForOp(ops[i]), false))
		out = append(out, a.toFramework(col.Model, nat))
	}
	a.hub.NotifyTableChanged(ctx, col.Table)
	return out, ops, nil
}

// BatchKind is the mutation kind of one BatchOperation.
type BatchKind string

const (
	// BatchCreate inserts a record; saving over an existing id updates
	// it instead, matching Save's find-or-create behavior.
	BatchCreate BatchKind = "create"

	// BatchUpdate updates a record through the same find-or-create path.
	BatchUpdate BatchKind = "update"

	// BatchDelete removes a record respecting the schema's soft-delete
	// policy.
	BatchDelete BatchKind = "delete"

	// BatchDestroy removes a record unconditionally, tombstones
	// included.
	BatchDestroy BatchKind = "destroy"
)

// BatchOperation is one heterogeneous mutation inside Batch.
type BatchOperation struct {
	Kind   BatchKind
	Model  string
	Record core.Record
}

// Batch applies a heterogeneous set of mutations across models in one
// atomic write transaction, then clears the entire query cache: with
// arbitrary tables touched, table-scoped invalidation buys nothing.
func (a *Adapter) Batch(ctx context.Context, operations []BatchOperation) error {
	b, err := a.requireReady()
	if err != nil {
		return err
	}
	if len(operations) == 0 {
		return nil
	}

	type committed struct {
		col    *Collection
		record core.Record
		kind   core.ChangeKind
		hard   bool
	}
	var results []committed

	a.mu.RLock()
	soft := a.native.Syncable
	a.mu.RUnlock()

	err = b.Write(ctx, func(tx core.WriteTx) error {
		results = results[:0]
		now := float64(nowMillis())
		for i, op := range operations {
			col := a.collection(op.Model)
			if col == nil {
				return fmt.Errorf("operation %d: %w: %s", i, core.ErrCollectionNotRegistered, op.Model)
			}
			switch op.Kind {
			case BatchCreate, BatchUpdate:
				nat, saveOp, txErr := a.saveInTx(ctx, tx, col, op.Record, nil)
				if txErr != nil {
					return fmt.Errorf("operation %d: %w", i, txErr)
				}
				results = append(results, committed{col, nat, kindForOp(saveOp), false})
			case BatchDelete, BatchDestroy:
				id := op.Record.ID()
				if id == "" {
					return fmt.Errorf("operation %d: record has no id", i)
				}
				if op.Kind == BatchDelete && soft {
					existing, txErr := tx.Get(ctx, col.Table, id)
					if txErr != nil {
						if errors.Is(txErr, core.ErrRecordNotFound) {
							continue
						}
						return fmt.Errorf("operation %d: %w", i, txErr)
					}
					tombstone := existing.Clone()
					tombstone[core.ColumnDeleted] = true
					tombstone[core.ColumnLastChanged] = now
					tombstone[core.ColumnUpdatedAt] = now
					if txErr := tx.Put(ctx, col.Table, tombstone); txErr != nil {
						return fmt.Errorf("operation %d: %w", i, txErr)
					}
					results = append(results, committed{col, tombstone, core.ChangeDeleted, false})
				} else {
					if txErr := tx.Delete(ctx, col.Table, id); txErr != nil {
						return fmt.Errorf("operation %d: %w", i, txErr)
					}
					results = append(results, committed{col, op.Record, core.ChangeDeleted, true})
				}
			default:
				return fmt.Errorf("operation %d: unknown kind %q", i, op.Kind)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	a.cache.Clear()
	a.metrics.batches.Add(1)

	notified := make(map[string]bool)
	for _, r := range results {
		a.publish(ctx, a.changeEvent(r.col, r.record, r.kind, r.hard))
		if !notified[r.col.Table] {
			notified[r.col.Table] = true
			a.hub.NotifyTableChanged(ctx, r.col.Table)
		}
	}
	return nil
}

// Clear stops every active subscription, destroys the contents of every
// registered collection in one write transaction, and drops the query
// cache. The sync-metadata table and the schema itself survive;
// collection handles stay registered.
func (a *Adapter) Clear(ctx context.Context) error {
	b, err := a.requireReady()
	if err != nil {
		return err
	}

	a.hub.UnsubscribeAll()

	a.mu.RLock()
	tables := make([]string, 0, len(a.collections))
	for table := range a.collections {
		tables = append(tables, table)
	}
	a.mu.RUnlock()

	err = b.Write(ctx, func(tx core.WriteTx) error {
		for _, table := range tables {
			if err := tx.DeleteAll(ctx, table); err != nil {
				return fmt.Errorf("table %q: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clear: %w", err)
	}

	a.cache.Clear()
	return nil
}

// UnsafeResetDatabase destroys the backing store entirely, then rebuilds
// the empty schema on the same backend so the adapter comes back Ready.
// Fails with ErrNoBackend when no backend was ever bound. Irreversible.
func (a *Adapter) UnsafeResetDatabase(ctx context.Context) error {
	a.mu.RLock()
	b := a.backend
	native := a.native
	a.mu.RUnlock()
	if b == nil {
		return core.ErrNoBackend
	}

	a.hub.UnsubscribeAll()
	if err := b.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	if err := b.Initialize(ctx, native); err != nil {
		return fmt.Errorf("reinitialize after reset: %w", err)
	}
	a.cache.Clear()
	logger.Warn("[ADAPTER] database reset on tier %q", b.Kind())
	return nil
}

// SyncMetadata returns the sync-state row for a model, or nil when the
// model has never recorded sync state. Metadata reads bypass the query
// cache.
func (a *Adapter) SyncMetadata(ctx context.Context, model string) (core.Record, error) {
	b, err := a.requireReady()
	if err != nil {
		return nil, err
	}
	rec, err := b.Get(ctx, core.MetadataTable, a.metadataID(model))
	if errors.Is(err, core.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sync metadata for %s: %w", model, err)
	}
	return rec, nil
}

// SetSyncStatus upserts a model's sync-state row with the given status
// and sync timestamp.
func (a *Adapter) SetSyncStatus(ctx context.Context, model, status string, at time.Time) error {
	b, err := a.requireReady()
	if err != nil {
		return err
	}
	a.mu.RLock()
	namespace := a.description.Namespace
	a.mu.RUnlock()

	row := core.Record{
		core.ColumnID:  a.metadataID(model),
		"namespace":    namespace,
		"model":        model,
		"last_sync_at": float64(at.UnixMilli()),
		"sync_status":  status,
	}
	err = b.Write(ctx, func(tx core.WriteTx) error {
		return tx.Put(ctx, core.MetadataTable, row)
	})
	if err != nil {
		return fmt.Errorf("set sync status for %s: %w", model, err)
	}
	return nil
}

// metadataID keys the sync-state row for a model within the schema's
// namespace.
func (a *Adapter) metadataID(model string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.description != nil && a.description.Namespace != "" {
		return a.description.Namespace + ":" + model
	}
	return model
}

// afterMutation fans a committed single-record mutation out to observers
// and the outbox.
func (a *Adapter) afterMutation(ctx context.Context, col *Collection, record core.Record, kind core.ChangeKind) {
	a.publish(ctx, a.changeEvent(col, record, kind, false))
	a.hub.NotifyTableChanged(ctx, col.Table)
}

func (a *Adapter) changeEvent(col *Collection, record core.Record, kind core.ChangeKind, hard bool) *core.ChangeEvent {
	ev := &core.ChangeEvent{
		ID:        uuid.NewString(),
		Table:     col.Table,
		Model:     col.Model.Name,
		Kind:      kind,
		RecordID:  record.ID(),
		Timestamp: time.Now(),
	}
	if !hard {
		ev.Record = record.Clone()
	}
	return ev
}

func kindForOp(op core.OpType) core.ChangeKind {
	if op == core.OpUpdate {
		return core.ChangeUpdated
	}
	return core.ChangeCreated
}
