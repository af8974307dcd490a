package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ripplekit/storebridge/internal/core"
)

func TestToColumnValue(t *testing.T) {
	v, err := ToColumnValue(int64(7), core.ColumnTypeNumber)
	require.NoError(t, err)
	assert.Equal(t, float64(7), v)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v, err = ToColumnValue(at, core.ColumnTypeNumber)
	require.NoError(t, err)
	assert.Equal(t, float64(at.UnixMilli()), v)

	v, err = ToColumnValue("true", core.ColumnTypeBoolean)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = ToColumnValue(42, core.ColumnTypeString)
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	v, err = ToColumnValue(nil, core.ColumnTypeNumber)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ToColumnValue("not a number", core.ColumnTypeNumber)
	assert.Error(t, err)

	_, err = ToColumnValue([]string{"x"}, core.ColumnTypeBoolean)
	assert.Error(t, err)
}
