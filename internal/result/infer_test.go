package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/common"
)

func TestInferringIterInfersFromFirstNonNullValue(t *testing.T) {
	inner := NewSliceIter([]Row{
		{nil, "hello"},
		{int64(7), "world"},
	})
	it := NewInferringIter(inner, 2)

	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{nil, "hello"}, row)

	cols := it.Columns([]string{"a", "b"})
	assert.Equal(t, common.TypeLongLong, cols[0].Type)
	assert.Equal(t, common.TypeVarString, cols[1].Type)

	row, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{int64(7), "world"}, row)

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInferringIterAllNullColumnBecomesTypeNull(t *testing.T) {
	inner := NewSliceIter([]Row{{nil}, {nil}})
	it := NewInferringIter(inner, 1)

	_, _, err := it.Next()
	require.NoError(t, err)

	cols := it.Columns([]string{"c"})
	assert.Equal(t, common.TypeNull, cols[0].Type)
}

func TestInferringIterMixedKindColumnPrefersHigherPriority(t *testing.T) {
	inner := NewSliceIter([]Row{
		{int64(1), nil},
		{true, "x"},
	})
	it := NewInferringIter(inner, 2)

	_, _, err := it.Next()
	require.NoError(t, err)

	cols := it.Columns([]string{"flag", "other"})
	assert.Equal(t, common.TypeTiny, cols[0].Type)
}

func TestInferringIterDoesNotDropRowsBeforePriming(t *testing.T) {
	inner := NewSliceIter([]Row{
		{nil, nil},
		{nil, int64(1)},
		{"x", int64(2)},
	})
	it := NewInferringIter(inner, 2)

	var got []Row
	for {
		row, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, row)
	}
	assert.Len(t, got, 3)
}
