package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIntRoundTrip(t *testing.T) {
	widths := []int{1, 2, 3, 4, 6, 8}
	for _, n := range widths {
		max := uint64(1)<<(uint(n)*8) - 1
		if n == 8 {
			max = ^uint64(0)
		}
		for _, v := range []uint64{0, 1, max} {
			buf := PutFixed(nil, v, n)
			got, consumed, err := ReadFixed(buf, n)
			assert.NoError(t, err)
			assert.Equal(t, n, consumed)
			assert.Equal(t, v, got)
		}
	}
}

func TestLengthEncodedIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 250, 251, 1<<16 - 1, 1 << 16, 1<<24 - 1, 1 << 24, 1 << 40} {
		buf := PutLengthEncodedInt(nil, v)
		got, n, isNull, err := ReadLengthEncodedInt(buf)
		assert.NoError(t, err)
		assert.False(t, isNull)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestLengthEncodedIntNull(t *testing.T) {
	_, n, isNull, err := ReadLengthEncodedInt([]byte{0xFB, 0x99})
	assert.NoError(t, err)
	assert.True(t, isNull)
	assert.Equal(t, 1, n)
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	s := "hello, world"
	buf := PutLengthEncodedString(nil, s)
	got, n, err := ReadLengthEncodedString(buf)
	assert.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, len(buf), n)
}

func TestNullTerminatedStringRoundTrip(t *testing.T) {
	s := "root"
	buf := PutNullTerminatedString(nil, s)
	got, n, err := ReadNullTerminatedString(buf)
	assert.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, len(buf), n)
}

func TestShortReadsAreMalformed(t *testing.T) {
	_, _, err := ReadFixed([]byte{0x01}, 4)
	assert.ErrorIs(t, err, ErrMalformedPacket)

	_, _, err = ReadNullTerminatedString([]byte{'a', 'b'})
	assert.ErrorIs(t, err, ErrMalformedPacket)

	_, _, _, err = ReadLengthEncodedInt([]byte{0xFE, 0x01})
	assert.ErrorIs(t, err, ErrMalformedPacket)
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	peeked, ok := Peek(b, 3)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, peeked)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b)

	_, ok = Peek(b, 10)
	assert.False(t, ok)
}
