// Package adapter implements the storage-adapter contract the offline-sync
// framework programs against: schema-driven CRUD, predicate queries,
// pagination, change observation, and conflict resolution, delegated to
// whichever storage tier the selector binds at setup.
package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ripplekit/storebridge/internal/backend"
	"github.com/ripplekit/storebridge/internal/cache"
	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
	"github.com/ripplekit/storebridge/internal/observe"
	"github.com/ripplekit/storebridge/internal/outbox"
	"github.com/ripplekit/storebridge/internal/schema"
)

// State is the adapter lifecycle state.
type State int32

const (
	// StateUninitialized is the state before Setup succeeds.
	StateUninitialized State = iota

	// StateInitializing is the transient state while Setup runs.
	StateInitializing

	// StateReady is the state in which all operations are available.
	StateReady
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// DefaultBatchSize is the advisory batch size when none is configured.
// It is reported through Metrics but not enforced as a chunking boundary
// anywhere in the batch path.
const DefaultBatchSize = 1000

// Collection is the registered handle for one model's table. Handles live
// for the adapter's lifetime and are torn down only on a full reset.
type Collection struct {
	// Table is the native table name.
	Table string

	// Model is the bound model descriptor.
	Model *core.ModelDescriptor
}

// Options configures an Adapter.
type Options struct {
	// Selector probes the backend tiers at setup. Required.
	Selector *backend.Selector

	// RecordFactory materializes framework records. Defaults to
	// core.DefaultRecordFactory.
	RecordFactory core.RecordFactory

	// CacheMaxSize bounds the query cache entry count.
	CacheMaxSize int

	// CacheTTL bounds query cache entry lifetime.
	CacheTTL time.Duration

	// CacheClock overrides the cache clock. Testing only.
	CacheClock func() time.Time

	// BatchSize is advisory; it is surfaced through Metrics and never
	// enforced as a hard chunking boundary.
	BatchSize int

	// ConflictStrategy, when set, overrides the conflict handler's final
	// fallback verdict once every earlier policy step has tied.
	ConflictStrategy core.ConflictResolution

	// Outbox, when set, receives a change event after every committed
	// mutation. Best effort: enqueue failures are logged, not returned.
	Outbox outbox.Queue
}

// Adapter is the storage adapter bound to one schema description.
type Adapter struct {
	opts    Options
	factory core.RecordFactory

	mu          sync.RWMutex
	state       State
	description *core.SchemaDescription
	native      *core.NativeSchema
	collections map[string]*Collection // keyed by table name
	tableByName map[string]string      // model name -> table name
	backend     core.Backend
	tier        string

	cache   *cache.QueryCache
	hub     *observe.Hub
	metrics opCounters
}

// New creates an adapter. Setup must run before any other operation.
func New(opts Options) (*Adapter, error) {
	if opts.Selector == nil {
		return nil, fmt.Errorf("a backend selector is required")
	}
	factory := opts.RecordFactory
	if factory == nil {
		factory = core.DefaultRecordFactory
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	a := &Adapter{
		opts:        opts,
		factory:     factory,
		state:       StateUninitialized,
		collections: make(map[string]*Collection),
		tableByName: make(map[string]string),
	}
	var cacheOpts []cache.Option
	if opts.CacheClock != nil {
		cacheOpts = append(cacheOpts, cache.WithClock(opts.CacheClock))
	}
	a.cache = cache.New(opts.CacheMaxSize, opts.CacheTTL, cacheOpts...)
	a.hub = observe.NewHub(a.fetchTable, a.cache.Remove)
	return a, nil
}

// Setup translates the schema, selects a backend tier, and registers the
// collections. Idempotent: a second call while Ready is a no-op. Any
// failure leaves the adapter Uninitialized and propagates to the caller;
// Setup never retries.
func (a *Adapter) Setup(ctx context.Context, description *core.SchemaDescription) error {
	a.mu.Lock()
	switch a.state {
	case StateReady:
		a.mu.Unlock()
		return nil
	case StateInitializing:
		a.mu.Unlock()
		return fmt.Errorf("setup is already in progress")
	}
	a.state = StateInitializing
	a.mu.Unlock()

	fail := func(err error) error {
		a.mu.Lock()
		a.state = StateUninitialized
		a.mu.Unlock()
		return err
	}

	translator := schema.NewTranslator()
	native, err := translator.BuildNativeSchema(description)
	if err != nil {
		return fail(fmt.Errorf("schema translation failed: %w", err))
	}
	descriptors, err := translator.BuildModelDescriptors(description, native)
	if err != nil {
		return fail(fmt.Errorf("model descriptor construction failed: %w", err))
	}

	// Selection never fails; exhaustion binds the non-persistent
	// stand-in.
	b := a.opts.Selector.Select(ctx, native)

	a.mu.Lock()
	a.description = description
	a.native = native
	a.backend = b
	a.tier = b.Kind()
	a.collections = make(map[string]*Collection, len(descriptors))
	a.tableByName = make(map[string]string, len(descriptors))
	for table, md := range descriptors {
		a.collections[table] = &Collection{Table: table, Model: md}
		a.tableByName[md.Name] = table
	}
	a.state = StateReady
	a.mu.Unlock()

	logger.Debug("adapter ready: %d collections on tier %q", len(descriptors), b.Kind())
	return nil
}

// Tier returns the identifier of the backend tier selected at setup, or
// "" before setup.
func (a *Adapter) Tier() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tier
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// requireReady snapshots the fields every operation needs, failing fast
// while the adapter is not Ready.
func (a *Adapter) requireReady() (core.Backend, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.state != StateReady {
		return nil, core.ErrNotInitialized
	}
	return a.backend, nil
}

// collection resolves a model name to its registered collection handle.
func (a *Adapter) collection(model string) *Collection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	table, ok := a.tableByName[model]
	if !ok {
		return nil
	}
	return a.collections[table]
}

// fetchTable lists a table's live records, filtering out soft-delete
// tombstones so reads and observations never surface them.
func (a *Adapter) fetchTable(ctx context.Context, table string) ([]core.Record, error) {
	a.mu.RLock()
	b := a.backend
	a.mu.RUnlock()
	if b == nil {
		return nil, core.ErrNoBackend
	}
	records, err := b.List(ctx, table)
	if err != nil {
		return nil, err
	}
	live := make([]core.Record, 0, len(records))
	for _, rec := range records {
		if deleted, _ := rec[core.ColumnDeleted].(bool); deleted {
			continue
		}
		live = append(live, rec)
	}
	return live, nil
}

// toNative converts a framework-shape record into native column shape,
// coercing every value to its column's canonical type. Fields without a
// backing column (has-many accessors, unknown names) are skipped, as are
// fields targeting adapter-maintained columns: versions, tombstones, and
// audit timestamps are stamped by the save path, never taken from input.
func (a *Adapter) toNative(md *core.ModelDescriptor, rec core.Record) (core.Record, error) {
	native := make(core.Record, len(rec))
	for field, value := range rec {
		column := md.ColumnFor(field, schema.ToSnake)
		if md.ReadOnly[column] {
			logger.Debug("ignoring field %q: column %q is adapter-maintained", field, column)
			continue
		}
		cs := md.Schema.Column(column)
		if cs == nil {
			logger.Debug("skipping field %q: no column on table %q", field, md.Table)
			continue
		}
		converted, err := schema.ToColumnValue(value, cs.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		native[column] = converted
	}
	return native, nil
}

// toFramework converts a native record back to framework shape through
// the record-construction callback, case-converting every column name
// back to mixed case.
func (a *Adapter) toFramework(md *core.ModelDescriptor, rec core.Record) core.Record {
	fields := make(core.Record, len(rec))
	for column, value := range rec {
		fields[md.FieldFor(column, schema.ToCamel)] = value
	}
	return a.factory(md.Name, fields)
}

func (a *Adapter) convertAll(md *core.ModelDescriptor, records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, a.toFramework(md, rec))
	}
	return out
}

// publish offers a change event to the outbox. Enqueue failures are
// logged, never returned to the caller.
func (a *Adapter) publish(ctx context.Context, event *core.ChangeEvent) {
	if a.opts.Outbox == nil {
		return
	}
	if err := a.opts.Outbox.Enqueue(ctx, event); err != nil {
		logger.Warn("failed to enqueue change event %s: %v", event.ID, err)
	}
}
