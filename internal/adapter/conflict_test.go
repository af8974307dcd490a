package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/backend"
	"github.com/ripplekit/storebridge/internal/core"
)

func handlerWithStrategy(t *testing.T, strategy core.ConflictResolution) core.ConflictHandler {
	t.Helper()
	a, err := New(Options{
		Selector:         backend.NewSelector(backend.MemoryFactory()),
		ConflictStrategy: strategy,
	})
	require.NoError(t, err)
	return a.GetConflictHandler()
}

func TestConflictHandlerPolicy(t *testing.T) {
	handler := handlerWithStrategy(t, "")

	local := func(version, changedAt float64) core.Record {
		return core.Record{"_version": version, "_lastChangedAt": changedAt}
	}

	cases := []struct {
		name string
		data core.ConflictData
		want core.ConflictResolution
	}{
		{
			name: "too many attempts loses",
			data: core.ConflictData{
				LocalRecord:  local(9, 0),
				RemoteRecord: local(1, 0),
				Operation:    core.ConflictOpUpdate,
				Attempts:     4,
			},
			want: core.AcceptRemote,
		},
		{
			name: "a conflicting delete loses",
			data: core.ConflictData{
				LocalRecord:  local(9, 0),
				RemoteRecord: local(1, 0),
				Operation:    core.ConflictOpDelete,
			},
			want: core.AcceptRemote,
		},
		{
			name: "higher remote version wins",
			data: core.ConflictData{
				LocalRecord:  local(1, 0),
				RemoteRecord: local(2, 0),
				Operation:    core.ConflictOpUpdate,
			},
			want: core.AcceptRemote,
		},
		{
			name: "higher local version wins",
			data: core.ConflictData{
				LocalRecord:  local(2, 0),
				RemoteRecord: local(1, 0),
				Operation:    core.ConflictOpUpdate,
			},
			want: core.RetryLocal,
		},
		{
			name: "version tie with strictly newer remote timestamp",
			data: core.ConflictData{
				LocalRecord:  local(3, 100),
				RemoteRecord: local(3, 200),
				Operation:    core.ConflictOpUpdate,
			},
			want: core.AcceptRemote,
		},
		{
			name: "version tie with equal timestamps retries locally",
			data: core.ConflictData{
				LocalRecord:  local(3, 100),
				RemoteRecord: local(3, 100),
				Operation:    core.ConflictOpUpdate,
			},
			want: core.RetryLocal,
		},
		{
			name: "version tie with older remote timestamp retries locally",
			data: core.ConflictData{
				LocalRecord:  local(3, 200),
				RemoteRecord: local(3, 100),
				Operation:    core.ConflictOpCreate,
			},
			want: core.RetryLocal,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, handler(tc.data))
		})
	}
}

func TestConflictHandlerConfiguredFallback(t *testing.T) {
	handler := handlerWithStrategy(t, core.AcceptRemote)

	// The configured strategy only decides the final tie.
	tie := core.ConflictData{
		LocalRecord:  core.Record{"_version": float64(3), "_lastChangedAt": float64(100)},
		RemoteRecord: core.Record{"_version": float64(3), "_lastChangedAt": float64(100)},
		Operation:    core.ConflictOpUpdate,
	}
	assert.Equal(t, core.AcceptRemote, handler(tie))

	// Earlier policy steps are untouched by configuration.
	localAhead := core.ConflictData{
		LocalRecord:  core.Record{"_version": float64(2)},
		RemoteRecord: core.Record{"_version": float64(1)},
		Operation:    core.ConflictOpUpdate,
	}
	assert.Equal(t, core.RetryLocal, handler(localAhead))
}

func TestConflictHandlerReadsNativeColumnNames(t *testing.T) {
	handler := handlerWithStrategy(t, "")

	data := core.ConflictData{
		LocalRecord:  core.Record{core.ColumnVersion: float64(1), core.ColumnLastChanged: float64(50)},
		RemoteRecord: core.Record{core.ColumnVersion: float64(1), core.ColumnLastChanged: float64(90)},
		Operation:    core.ConflictOpUpdate,
	}
	assert.Equal(t, core.AcceptRemote, handler(data))
}
