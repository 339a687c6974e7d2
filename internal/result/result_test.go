package result

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/common"
)

func TestEncodeTextValueNull(t *testing.T) {
	assert.Equal(t, []byte{0xFB}, EncodeTextValue(nil))
}

func TestEncodeTextValueDecimal(t *testing.T) {
	d := decimal.RequireFromString("12.340")
	assert.Equal(t, "12.340", EncodeTextValueString(d))
}

func TestEncodeTextValueBool(t *testing.T) {
	assert.Equal(t, "1", EncodeTextValueString(true))
	assert.Equal(t, "0", EncodeTextValueString(false))
}

func TestNullBitmapRoundTrip(t *testing.T) {
	row := Row{int64(1), nil, "x", nil}
	bitmap := NullBitmap(row, 2)
	got := ReadNullBitmap(bitmap, len(row), 2)
	assert.Equal(t, []bool{false, true, false, true}, got)
}

func TestEncodeBinaryValueIntegers(t *testing.T) {
	b, err := EncodeBinaryValue(common.TypeLong, int64(42))
	require.NoError(t, err)
	assert.Len(t, b, 4)

	b, err = EncodeBinaryValue(common.TypeLongLong, int64(1<<40))
	require.NoError(t, err)
	assert.Len(t, b, 8)
}

func TestEncodeBinaryDatetimeZeroValueIsSingleByte(t *testing.T) {
	b, err := EncodeBinaryValue(common.TypeDatetime, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, b)
}

func TestEncodeBinaryDatetimeWithFraction(t *testing.T) {
	ts := time.Date(2024, 3, 15, 10, 30, 0, 123000000, time.UTC)
	b, err := EncodeBinaryValue(common.TypeDatetime, ts)
	require.NoError(t, err)
	assert.Equal(t, byte(11), b[0])
}

func TestEncodeBinaryRowSkipsNulls(t *testing.T) {
	cols := []Column{{Type: common.TypeLong}, {Type: common.TypeVarString}}
	row := Row{int64(7), nil}
	buf, err := EncodeBinaryRow(cols, row)
	require.NoError(t, err)
	assert.NotEmpty(t, buf)
}

func TestSliceIterExhausts(t *testing.T) {
	it := NewSliceIter([]Row{{1}, {2}})
	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Row{1}, row)

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}
