package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

func TestEncodeStmtPrepareOK(t *testing.T) {
	buf := EncodeStmtPrepareOK(5, 2, 1, 0)
	assert.Equal(t, byte(0x00), buf[0])
}

func TestDecodeComStmtExecuteHeaderNoParams(t *testing.T) {
	buf := wire.PutUint4(nil, 7)
	buf = append(buf, 0)           // cursor type
	buf = wire.PutUint4(buf, 1)    // iteration count
	e, n, err := DecodeComStmtExecuteHeader(buf, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), e.StatementID)
	assert.Equal(t, 9, n)
	assert.Empty(t, e.Params)
}

func TestDecodeComStmtExecuteHeaderWithParams(t *testing.T) {
	buf := wire.PutUint4(nil, 1)
	buf = append(buf, 0)
	buf = wire.PutUint4(buf, 1)
	buf = append(buf, 0x00)       // null bitmap: 1 param, not null
	buf = append(buf, 0x01)       // new-params-bound
	buf = append(buf, common.TypeLong, 0x00)
	buf = wire.PutUint4(buf, 99) // value

	e, _, err := DecodeComStmtExecuteHeader(buf, 1, false)
	require.NoError(t, err)
	require.Len(t, e.Params, 1)
	assert.False(t, e.Params[0].IsNull)
	assert.Equal(t, common.TypeLong, e.Params[0].Type)
	assert.Equal(t, []byte{99, 0, 0, 0}, e.Params[0].Value)
}

func TestDecodeComStmtExecuteHeaderNullParam(t *testing.T) {
	buf := wire.PutUint4(nil, 1)
	buf = append(buf, 0)
	buf = wire.PutUint4(buf, 1)
	buf = append(buf, 0x01) // bit 0 set: param is null
	buf = append(buf, 0x01)
	buf = append(buf, common.TypeLong, 0x00)

	e, _, err := DecodeComStmtExecuteHeader(buf, 1, false)
	require.NoError(t, err)
	require.Len(t, e.Params, 1)
	assert.True(t, e.Params[0].IsNull)
}

func TestDecodeBinaryValueFixedWidth(t *testing.T) {
	_, n, err := DecodeBinaryValue([]byte{1, 2, 3, 4}, common.TypeLong, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, n, err = DecodeBinaryValue([]byte{1, 2, 3, 4, 5, 6, 7, 8}, common.TypeLongLong, false)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
}

func TestDecodeBinaryValueStringLike(t *testing.T) {
	b := wire.PutLengthEncodedString(nil, "hi")
	val, n, err := DecodeBinaryValue(b, common.TypeVarString, false)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(val))
	assert.Equal(t, len(b), n)
}

func TestEncodeStmtFetchOK(t *testing.T) {
	buf := EncodeStmtFetchOK(false, 0)
	assert.Equal(t, byte(0x00), buf[0])

	buf = EncodeStmtFetchOK(true, common.ClientDeprecateEOF)
	assert.Equal(t, byte(0xFE), buf[0])
}
