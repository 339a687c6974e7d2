package protocol

import (
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

// EncodeOK builds an OK packet body. header is 0x00 (or 0xFE when
// CLIENT_DEPRECATE_EOF is set and this OK terminates a result set).
func EncodeOK(header byte, affectedRows, lastInsertID uint64, statusFlags, warnings uint16, info string) []byte {
	buf := []byte{header}
	buf = wire.PutLengthEncodedInt(buf, affectedRows)
	buf = wire.PutLengthEncodedInt(buf, lastInsertID)
	buf = wire.PutUint2(buf, statusFlags)
	buf = wire.PutUint2(buf, warnings)
	buf = append(buf, info...)
	return buf
}

// EncodeEOF builds an EOF packet body (0xFE + warnings + status),
// valid only when CLIENT_DEPRECATE_EOF is unset.
func EncodeEOF(warnings, statusFlags uint16) []byte {
	buf := []byte{0xFE}
	buf = wire.PutUint2(buf, warnings)
	buf = wire.PutUint2(buf, statusFlags)
	return buf
}

// EncodeErr builds an ERR packet body.
func EncodeErr(code uint16, sqlState, message string) []byte {
	buf := []byte{0xFF}
	buf = wire.PutUint2(buf, code)
	buf = append(buf, '#')
	buf = append(buf, sqlState...)
	buf = append(buf, message...)
	return buf
}

// ColumnDefinition41 describes a single result-set column.
type ColumnDefinition41 struct {
	Catalog      string
	Schema       string
	Table        string
	OrgTable     string
	Name         string
	OrgName      string
	CharsetID    uint16
	ColumnLength uint32
	Type         byte
	Flags        uint16
	Decimals     byte
}

// Encode renders the ColumnDefinition41 payload.
func (c ColumnDefinition41) Encode() []byte {
	if c.Catalog == "" {
		c.Catalog = "def"
	}
	buf := wire.PutLengthEncodedString(nil, c.Catalog)
	buf = wire.PutLengthEncodedString(buf, c.Schema)
	buf = wire.PutLengthEncodedString(buf, c.Table)
	buf = wire.PutLengthEncodedString(buf, c.OrgTable)
	buf = wire.PutLengthEncodedString(buf, c.Name)
	buf = wire.PutLengthEncodedString(buf, c.OrgName)
	buf = wire.PutLengthEncodedInt(buf, 0x0C) // length of next fields
	buf = wire.PutUint2(buf, c.CharsetID)
	buf = wire.PutUint4(buf, c.ColumnLength)
	buf = wire.PutUint1(buf, c.Type)
	buf = wire.PutUint2(buf, c.Flags)
	buf = wire.PutUint1(buf, c.Decimals)
	buf = wire.PutUint2(buf, 0) // filler
	return buf
}

// ComQuery is the decoded payload of COM_QUERY, which may carry query
// attributes when CLIENT_QUERY_ATTRIBUTES is negotiated.
type ComQuery struct {
	SQL        string
	Attrs      map[string]string
}

// DecodeComQuery parses a COM_QUERY payload (command byte stripped).
func DecodeComQuery(b []byte, capabilities uint32) (ComQuery, error) {
	var q ComQuery
	off := 0
	if capabilities&common.ClientQueryAttributes != 0 {
		if len(b) < 2 {
			return q, wire.ErrMalformedPacket
		}
		paramCount, n, _, err := wire.ReadLengthEncodedInt(b)
		if err != nil {
			return q, err
		}
		off += n
		_, n, _, err = wire.ReadLengthEncodedInt(b[off:]) // parameter_set_count, always 1
		if err != nil {
			return q, err
		}
		off += n

		if paramCount > 0 {
			nullBitmapLen := (int(paramCount) + 7) / 8
			if off+nullBitmapLen > len(b) {
				return q, wire.ErrMalformedPacket
			}
			off += nullBitmapLen
			if off >= len(b) {
				return q, wire.ErrMalformedPacket
			}
			newParamsBound := b[off]
			off++
			q.Attrs = map[string]string{}
			if newParamsBound == 1 {
				names := make([]string, paramCount)
				for i := range names {
					// type (2 bytes: type + unsigned flag byte)
					if off+2 > len(b) {
						return q, wire.ErrMalformedPacket
					}
					off += 2
					name, n, err := wire.ReadLengthEncodedString(b[off:])
					if err != nil {
						return q, err
					}
					off += n
					names[i] = name
				}
				for _, name := range names {
					val, n, err := wire.ReadLengthEncodedString(b[off:])
					if err != nil {
						return q, err
					}
					off += n
					q.Attrs[name] = val
				}
			}
		}
	}
	q.SQL = wire.ReadRestOfPacketString(b[off:])
	return q, nil
}

// EncodeComQuery builds a COM_QUERY payload carrying no query
// attributes.
func EncodeComQuery(sql string) []byte {
	buf := []byte{common.ComQuery}
	return append(buf, sql...)
}
