package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func sampleTodos() []core.Record {
	return []core.Record{
		{"id": "a", "title": "buy milk", "is_completed": false, "priority": float64(1)},
		{"id": "b", "title": "walk dog", "is_completed": true, "priority": float64(2)},
		{"id": "c", "title": "buy bread", "is_completed": false, "priority": float64(3)},
		{"id": "d", "title": "file taxes", "is_completed": true, "priority": float64(1)},
	}
}

func TestMatchesOperators(t *testing.T) {
	rec := core.Record{"title": "buy milk", "priority": float64(2), "is_completed": false}

	match := func(cond core.Condition) bool {
		return Matches(rec, []core.Condition{cond})
	}

	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpEq, Value: 2}))
	assert.False(t, match(core.Condition{Column: "priority", Operator: core.OpEq, Value: 3}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpNe, Value: 3}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpGt, Value: 1}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpGe, Value: 2}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpLt, Value: 3}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpLe, Value: 2}))
	assert.True(t, match(core.Condition{Column: "title", Operator: core.OpContains, Value: "milk"}))
	assert.True(t, match(core.Condition{Column: "title", Operator: core.OpNotContains, Value: "bread"}))
	assert.True(t, match(core.Condition{Column: "title", Operator: core.OpBeginsWith, Value: "buy"}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpBetween, Values: []interface{}{1, 3}}))
	assert.False(t, match(core.Condition{Column: "priority", Operator: core.OpBetween, Values: []interface{}{3, 9}}))
	assert.True(t, match(core.Condition{Column: "priority", Operator: core.OpIn, Values: []interface{}{1, 2}}))
	assert.False(t, match(core.Condition{Column: "priority", Operator: core.OpNotIn, Values: []interface{}{2}}))
	assert.True(t, match(core.Condition{Column: "is_completed", Operator: core.OpEq, Value: false}))

	// Absent fields: eq never matches, ne always does.
	assert.False(t, match(core.Condition{Column: "owner", Operator: core.OpEq, Value: "x"}))
	assert.True(t, match(core.Condition{Column: "owner", Operator: core.OpNe, Value: "x"}))
}

func TestMatchesBranches(t *testing.T) {
	rec := core.Record{"priority": float64(2), "is_completed": false}

	or := core.Condition{Or: []core.Condition{
		{Column: "priority", Operator: core.OpEq, Value: 9},
		{Column: "is_completed", Operator: core.OpEq, Value: false},
	}}
	assert.True(t, Matches(rec, []core.Condition{or}))

	and := core.Condition{And: []core.Condition{
		{Column: "priority", Operator: core.OpEq, Value: 2},
		{Column: "is_completed", Operator: core.OpEq, Value: true},
	}}
	assert.False(t, Matches(rec, []core.Condition{and}))
}

func TestApplyFilterSortPaginate(t *testing.T) {
	dir := core.Directives{
		Conditions: []core.Condition{
			{Column: "is_completed", Operator: core.OpEq, Value: false},
		},
		Sort: []core.SortColumn{{Column: "priority", Descending: true}},
	}
	out := Apply(sampleTodos(), dir)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0]["id"])
	assert.Equal(t, "a", out[1]["id"])

	// Take/skip slice after sorting.
	dir = core.Directives{
		Sort: []core.SortColumn{{Column: "priority", Descending: false}},
		Take: 2,
		Skip: 1,
	}
	out = Apply(sampleTodos(), dir)
	require.Len(t, out, 2)
	assert.Equal(t, float64(1), out[0]["priority"])
	assert.Equal(t, float64(2), out[1]["priority"])

	// Skip past the end yields nothing.
	out = Apply(sampleTodos(), core.Directives{Skip: 10})
	assert.Empty(t, out)

	// No directives returns everything in input order.
	out = Apply(sampleTodos(), core.Directives{})
	require.Len(t, out, 4)
	assert.Equal(t, "a", out[0]["id"])
}

func TestApplyStableSort(t *testing.T) {
	// Equal keys keep input order.
	dir := core.Directives{Sort: []core.SortColumn{{Column: "priority"}}}
	out := Apply(sampleTodos(), dir)
	require.Len(t, out, 4)
	assert.Equal(t, "a", out[0]["id"])
	assert.Equal(t, "d", out[1]["id"])
}
