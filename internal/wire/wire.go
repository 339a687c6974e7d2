// Package wire implements the primitive integer and string codecs that
// every MySQL packet is built from: fixed-width little-endian integers,
// the variable-width length-encoded integer, and the four string
// encodings the protocol uses.
//
// All reads are bounds-checked; a short buffer yields ErrMalformedPacket
// rather than a panic, since a client can send arbitrary garbage.
package wire

import (
	"bytes"
	"errors"
)

// ErrMalformedPacket is returned whenever a read would run past the end
// of the supplied buffer.
var ErrMalformedPacket = errors.New("malformed packet: short read")

// ReadFixed reads an n-byte little-endian unsigned integer, n in
// {1,2,3,4,6,8}. It returns the value and the number of bytes consumed.
func ReadFixed(b []byte, n int) (uint64, int, error) {
	if len(b) < n {
		return 0, 0, ErrMalformedPacket
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, n, nil
}

// PutFixed appends an n-byte little-endian unsigned integer to dst.
func PutFixed(dst []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		dst = append(dst, byte(v))
		v >>= 8
	}
	return dst
}

// ReadUint1/2/3/4/6/8 are thin convenience wrappers over ReadFixed for
// the widths the protocol actually uses.
func ReadUint1(b []byte) (uint8, int, error) {
	v, n, err := ReadFixed(b, 1)
	return uint8(v), n, err
}

func ReadUint2(b []byte) (uint16, int, error) {
	v, n, err := ReadFixed(b, 2)
	return uint16(v), n, err
}

func ReadUint3(b []byte) (uint32, int, error) {
	v, n, err := ReadFixed(b, 3)
	return uint32(v), n, err
}

func ReadUint4(b []byte) (uint32, int, error) {
	v, n, err := ReadFixed(b, 4)
	return uint32(v), n, err
}

func ReadUint6(b []byte) (uint64, int, error) {
	return ReadFixed(b, 6)
}

func ReadUint8(b []byte) (uint64, int, error) {
	return ReadFixed(b, 8)
}

func PutUint1(dst []byte, v uint8) []byte  { return PutFixed(dst, uint64(v), 1) }
func PutUint2(dst []byte, v uint16) []byte { return PutFixed(dst, uint64(v), 2) }
func PutUint3(dst []byte, v uint32) []byte { return PutFixed(dst, uint64(v), 3) }
func PutUint4(dst []byte, v uint32) []byte { return PutFixed(dst, uint64(v), 4) }
func PutUint6(dst []byte, v uint64) []byte { return PutFixed(dst, v, 6) }
func PutUint8(dst []byte, v uint64) []byte { return PutFixed(dst, v, 8) }

// ReadLengthEncodedInt reads a length-encoded integer
// (https://dev.mysql.com/doc/internals/en/integer.html#packet-Protocol::LengthEncodedInteger).
// It returns isNull=true (not an error) when the first byte is 0xFB,
// the NULL sentinel used inside length-encoded strings.
func ReadLengthEncodedInt(b []byte) (v uint64, n int, isNull bool, err error) {
	if len(b) < 1 {
		return 0, 0, false, ErrMalformedPacket
	}
	switch first := b[0]; {
	case first < 0xFB:
		return uint64(first), 1, false, nil
	case first == 0xFB:
		return 0, 1, true, nil
	case first == 0xFC:
		v, n, err := ReadFixed(b[1:], 2)
		return v, n + 1, false, err
	case first == 0xFD:
		v, n, err := ReadFixed(b[1:], 3)
		return v, n + 1, false, err
	case first == 0xFE:
		v, n, err := ReadFixed(b[1:], 8)
		return v, n + 1, false, err
	default: // 0xFF: error sentinel, never valid inside a payload
		return 0, 0, false, ErrMalformedPacket
	}
}

// PutLengthEncodedInt appends v encoded as a length-encoded integer.
func PutLengthEncodedInt(dst []byte, v uint64) []byte {
	switch {
	case v < 251:
		return append(dst, byte(v))
	case v < 1<<16:
		dst = append(dst, 0xFC)
		return PutUint2(dst, uint16(v))
	case v < 1<<24:
		dst = append(dst, 0xFD)
		return PutUint3(dst, uint32(v))
	default:
		dst = append(dst, 0xFE)
		return PutUint8(dst, v)
	}
}

// ReadNullTerminatedString reads bytes up to (not including) the next
// 0x00 byte.
func ReadNullTerminatedString(b []byte) (string, int, error) {
	idx := bytes.IndexByte(b, 0)
	if idx < 0 {
		return "", 0, ErrMalformedPacket
	}
	return string(b[:idx]), idx + 1, nil
}

// PutNullTerminatedString appends s followed by a 0x00 terminator.
func PutNullTerminatedString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

// ReadLengthEncodedString reads a length-encoded-int length prefix
// followed by that many bytes.
func ReadLengthEncodedString(b []byte) (string, int, error) {
	l, n, isNull, err := ReadLengthEncodedInt(b)
	if err != nil {
		return "", 0, err
	}
	if isNull {
		return "", n, nil
	}
	if uint64(len(b)) < uint64(n)+l {
		return "", 0, ErrMalformedPacket
	}
	return string(b[n : uint64(n)+l]), n + int(l), nil
}

// PutLengthEncodedString appends the length-encoded length of s
// followed by s itself.
func PutLengthEncodedString(dst []byte, s string) []byte {
	dst = PutLengthEncodedInt(dst, uint64(len(s)))
	return append(dst, s...)
}

// ReadFixedString reads exactly n bytes as a string.
func ReadFixedString(b []byte, n int) (string, int, error) {
	if len(b) < n {
		return "", 0, ErrMalformedPacket
	}
	return string(b[:n]), n, nil
}

// ReadRestOfPacketString consumes every remaining byte in b.
func ReadRestOfPacketString(b []byte) string {
	return string(b)
}

// Peek returns the next n bytes without indicating any consumption,
// used to disambiguate SSLRequest from HandshakeResponse41 before
// committing to a parse.
func Peek(b []byte, n int) ([]byte, bool) {
	if len(b) < n {
		return nil, false
	}
	return b[:n], true
}
