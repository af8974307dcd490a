// Package storebridge lets an offline-sync framework persist its models
// in an embedded or remote storage engine. It translates the framework's
// model schema into native tables, compiles framework predicates into
// native query conditions, and exposes CRUD, batch, observation, and
// conflict-resolution operations over whichever storage tier is
// reachable.
//
// Typical usage:
//
//	bridge, _ := storebridge.New(storebridge.DefaultConfig())
//	defer bridge.Close()
//
//	_ = bridge.Setup(ctx, schema)
//	saved, op, _ := bridge.Save(ctx, "Todo", record, nil)
//	todos, _ := bridge.Query(ctx, "Todo", predicate, nil)
package storebridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ripplekit/storebridge/internal/adapter"
	"github.com/ripplekit/storebridge/internal/backend"
	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/observe"
	"github.com/ripplekit/storebridge/internal/outbox"
)

// Re-exported types so callers never import internal packages.
type (
	// Record is the framework record shape: plain field data keyed by
	// mixed-case field names.
	Record = core.Record

	// SchemaDescription is the framework's model schema.
	SchemaDescription = core.SchemaDescription

	// ModelDefinition declares one model of a schema.
	ModelDefinition = core.ModelDefinition

	// FieldDescriptor declares one field of a model.
	FieldDescriptor = core.FieldDescriptor

	// Association declares a relationship between two models.
	Association = core.Association

	// Predicate is a framework query predicate.
	Predicate = core.Predicate

	// Pagination is a framework page/limit/sort directive.
	Pagination = core.Pagination

	// SortDirective orders query results by a field.
	SortDirective = core.SortDirective

	// OpType reports whether a save inserted or updated.
	OpType = core.OpType

	// QueryOne selects the first or last record of a collection.
	QueryOne = core.QueryOne

	// ConflictData carries both sides of a sync conflict.
	ConflictData = core.ConflictData

	// ConflictHandler resolves a sync conflict.
	ConflictHandler = core.ConflictHandler

	// ConflictResolution is a conflict handler's verdict.
	ConflictResolution = core.ConflictResolution

	// Subscription is a live change-observation handle.
	Subscription = observe.Subscription

	// ChangeEvent describes one committed mutation.
	ChangeEvent = core.ChangeEvent

	// Metrics is a snapshot of the bridge's internals.
	Metrics = adapter.Metrics

	// BatchOperation is one mutation inside Batch.
	BatchOperation = adapter.BatchOperation

	selectorFactory = core.BackendFactory
)

// Re-exported constants.
const (
	OpInsert = core.OpInsert
	OpUpdate = core.OpUpdate

	First = core.First
	Last  = core.Last

	AcceptRemote = core.AcceptRemote
	RetryLocal   = core.RetryLocal

	BatchCreate  = adapter.BatchCreate
	BatchUpdate  = adapter.BatchUpdate
	BatchDelete  = adapter.BatchDelete
	BatchDestroy = adapter.BatchDestroy
)

// Re-exported errors.
var (
	ErrNotInitialized          = core.ErrNotInitialized
	ErrRecordNotFound          = core.ErrRecordNotFound
	ErrCollectionNotRegistered = core.ErrCollectionNotRegistered
	ErrNoBackend               = core.ErrNoBackend
)

// Field starts a predicate on a field. See core predicate operators for
// the supported comparison names.
func Field(name, operator string, operands ...interface{}) *Predicate {
	return core.Field(name, core.Operator(operator), operands...)
}

// And combines predicates with logical conjunction.
func And(preds ...*Predicate) *Predicate { return core.And(preds...) }

// Or combines predicates with logical disjunction.
func Or(preds ...*Predicate) *Predicate { return core.Or(preds...) }

// Option customizes a Bridge beyond what Config expresses.
type Option func(*options)

type options struct {
	recordFactory core.RecordFactory
	cacheClock    func() time.Time
	consumer      outbox.Consumer
}

// WithRecordFactory installs the framework's record constructor, used to
// materialize every record the bridge returns.
func WithRecordFactory(factory core.RecordFactory) Option {
	return func(o *options) { o.recordFactory = factory }
}

// WithChangeConsumer attaches a consumer to the outbox drainer. Requires
// the outbox to be enabled in the configuration.
func WithChangeConsumer(consumer outbox.Consumer) Option {
	return func(o *options) { o.consumer = consumer }
}

// WithCacheClock overrides the query cache clock. Testing only.
func WithCacheClock(now func() time.Time) Option {
	return func(o *options) { o.cacheClock = now }
}

// Bridge is the public handle over the storage adapter. All methods are
// safe for concurrent use.
type Bridge struct {
	adapter *adapter.Adapter
	queue   outbox.Queue
	drainer *outbox.Drainer

	mu     sync.Mutex
	closed bool
}

// New creates a bridge from a configuration. Setup must be called before
// any data operation.
func New(config *Config, opts ...Option) (*Bridge, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	cfg := *config
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var queue outbox.Queue
	if cfg.Outbox.Enabled {
		switch cfg.Outbox.QueueType {
		case "kafka":
			kq, err := outbox.NewKafkaQueue(cfg.Outbox.Kafka)
			if err != nil {
				return nil, fmt.Errorf("outbox: %w", err)
			}
			queue = kq
		default:
			queue = outbox.NewMemoryQueue(cfg.Outbox.BufferSize)
		}
	}

	a, err := adapter.New(adapter.Options{
		Selector:         backend.NewSelector(cfg.factories()...),
		RecordFactory:    o.recordFactory,
		CacheMaxSize:     cfg.Cache.MaxSize,
		CacheTTL:         cfg.Cache.TTL,
		CacheClock:       o.cacheClock,
		BatchSize:        cfg.BatchSize,
		ConflictStrategy: core.ConflictResolution(cfg.Conflict.Strategy),
		Outbox:           queue,
	})
	if err != nil {
		return nil, err
	}

	b := &Bridge{adapter: a, queue: queue}
	if queue != nil && o.consumer != nil {
		b.drainer = outbox.NewDrainer(queue, o.consumer, cfg.Outbox.Drainer)
	}
	return b, nil
}

// Setup translates the schema, binds a storage tier, and registers the
// model collections. Idempotent once the bridge is ready.
func (b *Bridge) Setup(ctx context.Context, schema *SchemaDescription) error {
	if err := b.adapter.Setup(ctx, schema); err != nil {
		return err
	}
	if b.drainer != nil {
		if err := b.drainer.Start(ctx); err != nil {
			return fmt.Errorf("outbox drainer: %w", err)
		}
	}
	return nil
}

// Tier returns the storage tier bound at setup, "" beforehand.
func (b *Bridge) Tier() string { return b.adapter.Tier() }

// Query returns the records of a model matching the predicate.
func (b *Bridge) Query(ctx context.Context, model string, pred *Predicate, page *Pagination) ([]Record, error) {
	return b.adapter.Query(ctx, model, pred, page)
}

// QueryOne returns the first or last record of a model, or nil when the
// model is empty.
func (b *Bridge) QueryOne(ctx context.Context, model string, which QueryOne) (Record, error) {
	return b.adapter.QueryOne(ctx, model, which)
}

// Save inserts or updates one record, reporting which it did.
func (b *Bridge) Save(ctx context.Context, model string, record Record, condition *Predicate) (Record, OpType, error) {
	return b.adapter.Save(ctx, model, record, condition)
}

// BatchSave saves many records of one model in a single transaction.
func (b *Bridge) BatchSave(ctx context.Context, model string, records []Record) ([]Record, []OpType, error) {
	return b.adapter.BatchSave(ctx, model, records)
}

// Delete removes every record of a model matching the predicate; a nil
// predicate matches the whole collection. It returns the deleted records.
func (b *Bridge) Delete(ctx context.Context, model string, pred *Predicate) ([]Record, []Record, error) {
	return b.adapter.Delete(ctx, model, pred)
}

// DeleteRecord removes one record by its id.
func (b *Bridge) DeleteRecord(ctx context.Context, model string, record Record) ([]Record, []Record, error) {
	return b.adapter.DeleteRecord(ctx, model, record)
}

// Batch applies heterogeneous mutations across models atomically.
func (b *Bridge) Batch(ctx context.Context, operations []BatchOperation) error {
	return b.adapter.Batch(ctx, operations)
}

// Clear destroys the contents of every registered collection.
func (b *Bridge) Clear(ctx context.Context) error {
	return b.adapter.Clear(ctx)
}

// Observe opens a live subscription for a query.
func (b *Bridge) Observe(ctx context.Context, model string, pred *Predicate, page *Pagination) (*Subscription, error) {
	return b.adapter.Observe(ctx, model, pred, page)
}

// StopObserve tears down every active subscription.
func (b *Bridge) StopObserve() error {
	return b.adapter.StopObserve()
}

// GetConflictHandler returns the bridge's conflict-resolution policy.
func (b *Bridge) GetConflictHandler() ConflictHandler {
	return b.adapter.GetConflictHandler()
}

// SyncMetadata returns the sync-state row for a model, or nil.
func (b *Bridge) SyncMetadata(ctx context.Context, model string) (Record, error) {
	return b.adapter.SyncMetadata(ctx, model)
}

// SetSyncStatus upserts a model's sync-state row.
func (b *Bridge) SetSyncStatus(ctx context.Context, model, status string, at time.Time) error {
	return b.adapter.SetSyncStatus(ctx, model, status, at)
}

// UnsafeResetDatabase destroys all stored data and rebuilds the empty
// schema. Irreversible.
func (b *Bridge) UnsafeResetDatabase(ctx context.Context) error {
	return b.adapter.UnsafeResetDatabase(ctx)
}

// Metrics returns a snapshot of the bridge's internals.
func (b *Bridge) Metrics() Metrics { return b.adapter.Metrics() }

// Close stops the drainer and releases the outbox. The underlying
// storage tier stays intact.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.drainer != nil {
		b.drainer.Stop()
	}
	if b.queue != nil {
		return b.queue.Close()
	}
	return nil
}
