package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func failingFactory(tier string) core.BackendFactory {
	return FactoryFunc{
		ID: tier,
		Build: func(context.Context, *core.NativeSchema) (core.Backend, error) {
			return nil, errors.New("unreachable")
		},
	}
}

func TestSelectorBindsFirstWorkingTier(t *testing.T) {
	s := NewSelector(
		failingFactory("local"),
		failingFactory("async"),
		MemoryFactory(),
		failingFactory("server"),
	)
	b := s.Select(context.Background(), todoSchema())
	require.NotNil(t, b)
	assert.Equal(t, TierMemory, b.Kind())
}

func TestSelectorProbeOrder(t *testing.T) {
	var probed []string
	mk := func(tier string) core.BackendFactory {
		return FactoryFunc{
			ID: tier,
			Build: func(context.Context, *core.NativeSchema) (core.Backend, error) {
				probed = append(probed, tier)
				return nil, errors.New("nope")
			},
		}
	}
	s := NewSelector(mk("local"), mk("async"), mk("durable"), mk("server"))
	assert.Equal(t, []string{"local", "async", "durable", "server"}, s.Tiers())

	s.Select(context.Background(), todoSchema())
	assert.Equal(t, []string{"local", "async", "durable", "server"}, probed)
}

func TestSelectorFallsBackToEphemeral(t *testing.T) {
	ctx := context.Background()
	s := NewSelector(failingFactory("local"), failingFactory("server"))
	b := s.Select(ctx, todoSchema())
	require.NotNil(t, b)
	assert.Equal(t, TierEphemeral, b.Kind())

	// The stand-in accepts writes and serves empty reads, never errors.
	err := b.Write(ctx, func(tx core.WriteTx) error {
		return tx.Put(ctx, "todo", core.Record{"id": "1", "title": "vanishes"})
	})
	require.NoError(t, err)

	records, err := b.List(ctx, "todo")
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = b.Get(ctx, "todo", "1")
	assert.ErrorIs(t, err, core.ErrRecordNotFound)

	require.NoError(t, b.Reset(ctx))
	require.NoError(t, b.Close())
}

func TestSelectorWithNoFactories(t *testing.T) {
	b := NewSelector().Select(context.Background(), todoSchema())
	require.NotNil(t, b)
	assert.Equal(t, TierEphemeral, b.Kind())
}
