// Package backend provides the storage-engine tiers the adapter can bind
// to, and the selector that probes them in priority order at setup.
package backend

import (
	"context"

	"github.com/ripplekit/storebridge/internal/core"
	"github.com/ripplekit/storebridge/internal/logger"
)

// Selector probes backend construction strategies in fixed priority order
// and binds the first that initializes successfully. A strategy gets no
// retries: its first construction failure is terminal for that tier only.
type Selector struct {
	factories []core.BackendFactory
}

// NewSelector creates a selector over the given tiers, probed in argument
// order.
func NewSelector(factories ...core.BackendFactory) *Selector {
	return &Selector{factories: factories}
}

// Tiers returns the tier identifiers in probe order.
func (s *Selector) Tiers() []string {
	tiers := make([]string, 0, len(s.factories))
	for _, f := range s.factories {
		tiers = append(tiers, f.Tier())
	}
	return tiers
}

// Select attempts each tier in order and returns the first backend that
// constructs successfully. When every tier fails, the non-persistent
// stand-in is returned; selection itself never fails.
func (s *Selector) Select(ctx context.Context, schema *core.NativeSchema) core.Backend {
	for _, factory := range s.factories {
		b, err := factory.Create(ctx, schema)
		if err != nil {
			logger.Warn("backend tier %q failed to initialize: %v", factory.Tier(), err)
			continue
		}
		logger.Debug("selected backend tier %q", factory.Tier())
		return b
	}
	logger.Warn("all backend tiers failed; falling back to the non-persistent stand-in")
	return NewEphemeral()
}

// FactoryFunc adapts a construction function into a core.BackendFactory.
type FactoryFunc struct {
	ID    string
	Build func(ctx context.Context, schema *core.NativeSchema) (core.Backend, error)
}

// Tier returns the tier identifier.
func (f FactoryFunc) Tier() string { return f.ID }

// Create constructs the tier's backend.
func (f FactoryFunc) Create(ctx context.Context, schema *core.NativeSchema) (core.Backend, error) {
	return f.Build(ctx, schema)
}
