package backend

import (
	"context"

	"github.com/ripplekit/storebridge/internal/core"
)

// TierEphemeral identifies the non-persistent stand-in bound when every
// selection tier fails.
const TierEphemeral = "ephemeral"

// Ephemeral is the stand-in backend of last resort. It never errors, never
// persists anything, and returns empty results for every read, so a fully
// degraded setup still satisfies the adapter contract instead of failing.
type Ephemeral struct{}

// NewEphemeral creates the stand-in backend.
func NewEphemeral() *Ephemeral { return &Ephemeral{} }

// Kind returns the tier identifier.
func (e *Ephemeral) Kind() string { return TierEphemeral }

// Initialize accepts any schema.
func (e *Ephemeral) Initialize(context.Context, *core.NativeSchema) error { return nil }

// Get reports every id as absent.
func (e *Ephemeral) Get(context.Context, string, string) (core.Record, error) {
	return nil, core.ErrRecordNotFound
}

// List returns an empty result for every table.
func (e *Ephemeral) List(context.Context, string) ([]core.Record, error) {
	return []core.Record{}, nil
}

// Write runs fn against a sink that accepts and discards every mutation.
func (e *Ephemeral) Write(_ context.Context, fn func(tx core.WriteTx) error) error {
	return fn(ephemeralTx{})
}

// Reset is a no-op.
func (e *Ephemeral) Reset(context.Context) error { return nil }

// Close is a no-op.
func (e *Ephemeral) Close() error { return nil }

type ephemeralTx struct{}

func (ephemeralTx) Get(context.Context, string, string) (core.Record, error) {
	return nil, core.ErrRecordNotFound
}
func (ephemeralTx) Put(context.Context, string, core.Record) error { return nil }
func (ephemeralTx) Delete(context.Context, string, string) error   { return nil }
func (ephemeralTx) DeleteAll(context.Context, string) error        { return nil }
