package result

import (
	"math"
	"time"

	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

// DecodeBinaryParam interprets the raw bytes protocol.DecodeBinaryValue
// extracted for one COM_STMT_EXECUTE parameter (or COM_STMT_EXECUTE
// column, symmetrically) into a Go value matching what EncodeTextValue
// / EncodeBinaryValue accept, the inverse of this package's encoders.
func DecodeBinaryParam(raw []byte, typ byte, unsigned bool) (interface{}, error) {
	switch typ {
	case common.TypeTiny:
		v, _, err := wire.ReadUint1(raw)
		if err != nil {
			return nil, err
		}
		if unsigned {
			return uint8(v), nil
		}
		return int8(v), nil
	case common.TypeShort, common.TypeYear:
		v, _, err := wire.ReadUint2(raw)
		if err != nil {
			return nil, err
		}
		if unsigned {
			return v, nil
		}
		return int16(v), nil
	case common.TypeLong, common.TypeInt24:
		v, _, err := wire.ReadUint4(raw)
		if err != nil {
			return nil, err
		}
		if unsigned {
			return v, nil
		}
		return int32(v), nil
	case common.TypeLongLong:
		v, _, err := wire.ReadUint8(raw)
		if err != nil {
			return nil, err
		}
		if unsigned {
			return v, nil
		}
		return int64(v), nil
	case common.TypeFloat:
		v, _, err := wire.ReadUint4(raw)
		if err != nil {
			return nil, err
		}
		return math.Float32frombits(v), nil
	case common.TypeDouble:
		v, _, err := wire.ReadUint8(raw)
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil
	case common.TypeDate, common.TypeDatetime, common.TypeTimestamp:
		return decodeBinaryDatetime(raw)
	case common.TypeTime:
		return decodeBinaryTime(raw)
	default:
		return string(raw), nil
	}
}

// decodeBinaryDatetime and decodeBinaryTime take the raw bytes as
// returned by protocol.DecodeBinaryValue, which retain the leading
// length byte (0, 4, 7 or 11) the wire format uses to size the rest.
func decodeBinaryDatetime(raw []byte) (interface{}, error) {
	if len(raw) == 0 || raw[0] == 0 {
		return time.Time{}, nil
	}
	raw = raw[1:]
	year, _, err := wire.ReadUint2(raw[0:2])
	if err != nil {
		return nil, err
	}
	month, day := int(raw[2]), int(raw[3])
	var hour, min, sec, nsec int
	if len(raw) >= 7 {
		hour, min, sec = int(raw[4]), int(raw[5]), int(raw[6])
	}
	if len(raw) >= 11 {
		micro, _, err := wire.ReadUint4(raw[7:11])
		if err != nil {
			return nil, err
		}
		nsec = int(micro) * 1000
	}
	return time.Date(int(year), time.Month(month), day, hour, min, sec, nsec, time.UTC), nil
}

func decodeBinaryTime(raw []byte) (interface{}, error) {
	if len(raw) == 0 || raw[0] == 0 {
		return time.Duration(0), nil
	}
	raw = raw[1:]
	neg := raw[0] == 1
	days, _, err := wire.ReadUint4(raw[1:5])
	if err != nil {
		return nil, err
	}
	hour, min, sec := time.Duration(raw[5]), time.Duration(raw[6]), time.Duration(raw[7])
	d := time.Duration(days)*24*time.Hour + hour*time.Hour + min*time.Minute + sec*time.Second
	if len(raw) >= 12 {
		micro, _, err := wire.ReadUint4(raw[8:12])
		if err != nil {
			return nil, err
		}
		d += time.Duration(micro) * time.Microsecond
	}
	if neg {
		d = -d
	}
	return d, nil
}
