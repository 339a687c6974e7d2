package protocol

import (
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

// EncodeStmtPrepareOK builds the first packet of a COM_STMT_PREPARE
// response: statement id, column count, param count, filler, warnings.
func EncodeStmtPrepareOK(stmtID uint32, numColumns, numParams uint16, warnings uint16) []byte {
	buf := wire.PutUint1(nil, 0x00)
	buf = wire.PutUint4(buf, stmtID)
	buf = wire.PutUint2(buf, numColumns)
	buf = wire.PutUint2(buf, numParams)
	buf = wire.PutUint1(buf, 0) // filler
	buf = wire.PutUint2(buf, warnings)
	return buf
}

// StmtParam is one bound parameter decoded off COM_STMT_EXECUTE.
type StmtParam struct {
	Type     byte
	Unsigned bool
	Name     string // non-empty only when query attributes are present
	Value    []byte
	IsNull   bool
}

// ComStmtExecute is the decoded, but not yet value-typed, payload of
// COM_STMT_EXECUTE.
type ComStmtExecute struct {
	StatementID uint32
	CursorType  byte
	Params      []StmtParam
}

// DecodeComStmtExecuteHeader parses the fixed header (statement id,
// cursor flags, iteration count) and the parameter-type/value section
// when numParams>0 or query attributes are negotiated, per spec.md
// §4.C's "Prepared execute parameter decoding" note. The caller
// supplies numParams (from the prepared-statement table) since the
// wire payload does not repeat it unless PARAMETER_COUNT_AVAILABLE is
// set, in which case a length-encoded count precedes the null bitmap.
func DecodeComStmtExecuteHeader(b []byte, numParams int, hasQueryAttrs bool) (ComStmtExecute, int, error) {
	var e ComStmtExecute
	if len(b) < 9 {
		return e, 0, wire.ErrMalformedPacket
	}
	stmtID, _, err := wire.ReadUint4(b[0:4])
	if err != nil {
		return e, 0, err
	}
	e.StatementID = stmtID
	e.CursorType = b[4]
	off := 9 // skip iteration-count u4, always 1

	n := numParams
	if e.CursorType&common.ParameterCountAvailable != 0 {
		count, read, _, err := wire.ReadLengthEncodedInt(b[off:])
		if err != nil {
			return e, 0, err
		}
		off += read
		n = int(count)
	}

	if n == 0 && !hasQueryAttrs {
		return e, off, nil
	}
	if n == 0 {
		return e, off, nil
	}

	nullBitmapLen := (n + 7) / 8
	if off+nullBitmapLen > len(b) {
		return e, 0, wire.ErrMalformedPacket
	}
	nullBitmap := b[off : off+nullBitmapLen]
	off += nullBitmapLen

	if off >= len(b) {
		return e, 0, wire.ErrMalformedPacket
	}
	newParamsBound := b[off]
	off++

	e.Params = make([]StmtParam, n)
	for i := 0; i < n; i++ {
		isNull := (nullBitmap[i/8]>>(uint(i)%8))&1 == 1
		e.Params[i].IsNull = isNull
	}

	if newParamsBound == 1 {
		for i := 0; i < n; i++ {
			if off+2 > len(b) {
				return e, 0, wire.ErrMalformedPacket
			}
			e.Params[i].Type = b[off]
			e.Params[i].Unsigned = b[off+1]&0x80 != 0
			off += 2
			if hasQueryAttrs {
				name, read, err := wire.ReadLengthEncodedString(b[off:])
				if err != nil {
					return e, 0, err
				}
				e.Params[i].Name = name
				off += read
			}
		}
	}

	for i := 0; i < n; i++ {
		if e.Params[i].IsNull {
			continue
		}
		val, read, err := DecodeBinaryValue(b[off:], e.Params[i].Type, e.Params[i].Unsigned)
		if err != nil {
			return e, 0, err
		}
		e.Params[i].Value = val
		off += read
	}

	return e, off, nil
}

// DecodeBinaryValue returns the raw bytes of a single binary-protocol
// encoded value of the given column type, together with the number of
// bytes consumed, without interpreting it; interpretation happens in
// internal/result.
func DecodeBinaryValue(b []byte, typ byte, unsigned bool) (value []byte, consumed int, err error) {
	switch typ {
	case common.TypeTiny:
		if len(b) < 1 {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[:1], 1, nil
	case common.TypeShort, common.TypeYear:
		if len(b) < 2 {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[:2], 2, nil
	case common.TypeLong, common.TypeInt24, common.TypeFloat:
		if len(b) < 4 {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[:4], 4, nil
	case common.TypeLongLong, common.TypeDouble:
		if len(b) < 8 {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[:8], 8, nil
	case common.TypeDate, common.TypeDatetime, common.TypeTimestamp, common.TypeTime:
		if len(b) < 1 {
			return nil, 0, wire.ErrMalformedPacket
		}
		n := int(b[0])
		if len(b) < 1+n {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[:1+n], 1 + n, nil
	default: // string-like / decimal / blob / json / bit: length-encoded string
		l, n, isNull, err := wire.ReadLengthEncodedInt(b)
		if err != nil {
			return nil, 0, err
		}
		if isNull {
			return nil, n, nil
		}
		if uint64(len(b)) < uint64(n)+l {
			return nil, 0, wire.ErrMalformedPacket
		}
		return b[n : uint64(n)+l], n + int(l), nil
	}
}

// EncodeStmtFetchOK builds the OK packet that follows a COM_STMT_FETCH
// batch, carrying CURSOR_EXISTS (more rows remain) or LAST_ROW_SENT
// (the cursor is exhausted).
func EncodeStmtFetchOK(lastRowSent bool, capabilities uint32) []byte {
	status := uint16(common.ServerStatusCursorExists)
	if lastRowSent {
		status = common.ServerStatusLastRowSent
	}
	header := byte(0x00)
	if capabilities&common.ClientDeprecateEOF != 0 {
		header = 0xFE
	}
	return EncodeOK(header, 0, 0, status, 0, "")
}
