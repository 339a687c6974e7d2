// Package result implements the text and binary result-set protocols:
// column descriptors, per-type value encoders (keyed by MySQL column
// type, with shopspring/decimal backing DECIMAL/NEWDECIMAL so exact
// numeric values survive the round trip), the null-bitmap codec, and
// the column-type inference pass for backends that hand back bare
// Go values instead of typed columns.
package result

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

// Column describes one result-set column.
type Column struct {
	Name      string
	Table     string
	Schema    string
	Type      byte
	Charset   uint16
	Length    uint32
	Flags     uint16
	Decimals  byte
}

// Set is a materialized or streaming result: columns plus a row
// source. Rows is nil for statements with no result set (e.g. an OK
// response).
type Set struct {
	Columns      []Column
	Rows         RowIter
	AffectedRows uint64
	LastInsertID uint64
	Info         string
}

// Row is one row of untyped scalar values; nil entries mean SQL NULL.
type Row []interface{}

// RowIter is a pull-style row source. Next returns (nil, false, nil)
// when exhausted. An implementation may represent an unbounded or
// async-backed source; callers must not assume Next returns instantly.
type RowIter interface {
	Next() (Row, bool, error)
}

// SliceIter adapts a plain slice of rows into a RowIter, the common
// case for backends that materialize everything up front.
type SliceIter struct {
	rows []Row
	pos  int
}

func NewSliceIter(rows []Row) *SliceIter { return &SliceIter{rows: rows} }

func (s *SliceIter) Next() (Row, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r, true, nil
}

// YieldEvery is the cooperative-yield interval during row
// serialization, matching spec.md §4.E's default of 10 000 rows.
const YieldEvery = 10000

// EncodeTextValue renders v as a MySQL text-protocol value: a
// length-encoded string, or the single byte 0xFB for NULL.
func EncodeTextValue(v interface{}) []byte {
	if v == nil {
		return []byte{0xFB}
	}
	return wire.PutLengthEncodedString(nil, textRepr(v))
}

// EncodeTextValueString renders v the same way EncodeTextValue does but
// returns the bare string, for callers that need the text (e.g. as a
// query-attribute value) rather than a wire-framed field.
func EncodeTextValueString(v interface{}) string {
	if v == nil {
		return ""
	}
	return textRepr(v)
}

func textRepr(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "1"
		}
		return "0"
	case string:
		return t
	case []byte:
		return string(t)
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", t)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", t)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case decimal.Decimal:
		if t.Exponent() < 0 {
			return t.StringFixed(-t.Exponent())
		}
		return t.String()
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case time.Duration:
		return formatDuration(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatDuration(d time.Duration) string {
	neg := ""
	if d < 0 {
		neg = "-"
		d = -d
	}
	h := int64(d / time.Hour)
	m := int64((d % time.Hour) / time.Minute)
	s := int64((d % time.Minute) / time.Second)
	return fmt.Sprintf("%s%02d:%02d:%02d", neg, h, m, s)
}

// NullBitmap builds the binary-protocol null bitmap for a row, with
// the given bit offset (2 for result rows, 0 for COM_STMT_EXECUTE
// parameters).
func NullBitmap(row Row, offset int) []byte {
	n := (len(row) + offset + 7) / 8
	bitmap := make([]byte, n)
	for i, v := range row {
		if v == nil {
			pos := i + offset
			bitmap[pos/8] |= 1 << uint(pos%8)
		}
	}
	return bitmap
}

// ReadNullBitmap reports which of n logical positions have their bit
// set in bitmap, starting at the given bit offset.
func ReadNullBitmap(bitmap []byte, n, offset int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		pos := i + offset
		if pos/8 >= len(bitmap) {
			continue
		}
		out[i] = bitmap[pos/8]>>(uint(pos)%8)&1 == 1
	}
	return out
}

// EncodeBinaryRow renders a full binary-protocol row packet body:
// 0x00 + null bitmap (offset 2) + each non-null value in its column's
// binary encoding.
func EncodeBinaryRow(cols []Column, row Row) ([]byte, error) {
	buf := []byte{0x00}
	buf = append(buf, NullBitmap(row, 2)...)
	for i, v := range row {
		if v == nil {
			continue
		}
		enc, err := EncodeBinaryValue(cols[i].Type, v)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", cols[i].Name)
		}
		buf = append(buf, enc...)
	}
	return buf, nil
}

// EncodeBinaryValue renders v per the binary encoding for column type
// typ. Unrecognized combinations fall back to a length-encoded string
// of the value's text representation, which is always wire-valid even
// if not byte-optimal.
func EncodeBinaryValue(typ byte, v interface{}) ([]byte, error) {
	switch typ {
	case common.TypeTiny:
		return []byte{byte(toInt64(v))}, nil
	case common.TypeShort, common.TypeYear:
		return wire.PutUint2(nil, uint16(toInt64(v))), nil
	case common.TypeLong, common.TypeInt24:
		return wire.PutUint4(nil, uint32(toInt64(v))), nil
	case common.TypeLongLong:
		return wire.PutUint8(nil, uint64(toInt64(v))), nil
	case common.TypeFloat:
		bits := math.Float32bits(toFloat32(v))
		return wire.PutUint4(nil, bits), nil
	case common.TypeDouble:
		bits := math.Float64bits(toFloat64(v))
		return wire.PutUint8(nil, bits), nil
	case common.TypeDate, common.TypeDatetime, common.TypeTimestamp:
		return encodeBinaryDatetime(v), nil
	case common.TypeTime:
		return encodeBinaryTime(v), nil
	case common.TypeNewDecimal, common.TypeDecimal,
		common.TypeVarchar, common.TypeVarString, common.TypeString,
		common.TypeBlob, common.TypeTinyBlob, common.TypeMediumBlob, common.TypeLongBlob,
		common.TypeJSON, common.TypeEnum, common.TypeSet, common.TypeGeometry, common.TypeBit:
		return wire.PutLengthEncodedString(nil, textRepr(v)), nil
	default:
		return wire.PutLengthEncodedString(nil, textRepr(v)), nil
	}
}

func encodeBinaryDatetime(v interface{}) []byte {
	t, ok := v.(time.Time)
	if !ok {
		return []byte{0}
	}
	if t.IsZero() {
		return []byte{0}
	}
	hasFrac := t.Nanosecond() != 0
	hasTime := hasFrac || t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	var buf []byte
	if hasFrac {
		buf = make([]byte, 0, 12)
	} else if hasTime {
		buf = make([]byte, 0, 8)
	} else {
		buf = make([]byte, 0, 5)
	}
	n := byte(4)
	if hasTime {
		n = 7
	}
	if hasFrac {
		n = 11
	}
	buf = append(buf, n)
	buf = wire.PutUint2(buf, uint16(t.Year()))
	buf = append(buf, byte(t.Month()), byte(t.Day()))
	if hasTime || hasFrac {
		buf = append(buf, byte(t.Hour()), byte(t.Minute()), byte(t.Second()))
	}
	if hasFrac {
		buf = wire.PutUint4(buf, uint32(t.Nanosecond()/1000))
	}
	return buf
}

func encodeBinaryTime(v interface{}) []byte {
	d, ok := v.(time.Duration)
	if !ok {
		return []byte{0}
	}
	if d == 0 {
		return []byte{0}
	}
	neg := byte(0)
	if d < 0 {
		neg = 1
		d = -d
	}
	days := int32(d / (24 * time.Hour))
	rem := d % (24 * time.Hour)
	h := byte(rem / time.Hour)
	m := byte((rem % time.Hour) / time.Minute)
	s := byte((rem % time.Minute) / time.Second)
	micro := uint32((rem % time.Second) / time.Microsecond)

	n := byte(8)
	if micro != 0 {
		n = 12
	}
	buf := []byte{n, neg}
	buf = wire.PutUint4(buf, uint32(days))
	buf = append(buf, h, m, s)
	if micro != 0 {
		buf = wire.PutUint4(buf, micro)
	}
	return buf
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return int64(t)
	case float64:
		return int64(t)
	case decimal.Decimal:
		return t.IntPart()
	default:
		n, _ := strconv.ParseInt(fmt.Sprintf("%v", t), 10, 64)
		return n
	}
}

func toFloat32(v interface{}) float32 {
	return float32(toFloat64(v))
}

func toFloat64(v interface{}) float64 {
	switch t := v.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	case decimal.Decimal:
		f, _ := t.Float64()
		return f
	default:
		f, _ := strconv.ParseFloat(fmt.Sprintf("%v", t), 64)
		return f
	}
}
