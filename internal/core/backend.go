package core

import "context"

// WriteTx is the transactional write surface a backend exposes inside
// Backend.Write. Implementations must apply either all or none of the
// operations performed through the transaction where the underlying
// engine supports it.
type WriteTx interface {
	// Get retrieves a record by id from a table.
	// Returns ErrRecordNotFound if the id is absent.
	Get(ctx context.Context, table, id string) (Record, error)

	// Put inserts or replaces a record. The record must carry its id.
	Put(ctx context.Context, table string, record Record) error

	// Delete removes a record by id. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, table, id string) error

	// DeleteAll removes every record in a table.
	DeleteAll(ctx context.Context, table string) error
}

// Backend is the storage-engine contract every selection tier implements.
// Records cross this boundary in native column shape (snake-cased keys).
type Backend interface {
	// Kind returns the tier identifier (e.g. "memory", "local").
	Kind() string

	// Initialize prepares storage for the translated schema. Called at
	// binding, and again after Reset; an error at binding fails the tier
	// and selection moves on.
	Initialize(ctx context.Context, schema *NativeSchema) error

	// Get retrieves a record by id outside any transaction.
	// Returns ErrRecordNotFound if the id is absent.
	Get(ctx context.Context, table, id string) (Record, error)

	// List returns every record of a table in the backend's natural
	// fetch order. An empty table yields an empty slice.
	List(ctx context.Context, table string) ([]Record, error)

	// Write runs fn inside the backend's write-transaction primitive.
	// Concurrent writers against the same backend instance are
	// serialized by the backend; the adapter holds no locks of its own.
	Write(ctx context.Context, fn func(tx WriteTx) error) error

	// Reset destroys all stored data and schema state. Irreversible.
	Reset(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// BackendFactory constructs one selection tier. Construction errors make
// the selector fall through to the next tier.
type BackendFactory interface {
	// Tier returns the tier identifier this factory builds.
	Tier() string

	// Create constructs and initializes the backend for the schema.
	Create(ctx context.Context, schema *NativeSchema) (Backend, error)
}
