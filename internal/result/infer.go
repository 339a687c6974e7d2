package result

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mimicd/mimicd/internal/common"
)

// inferPriority orders candidate Go kinds the same way spec.md §4.E
// prescribes: bool < datetime < string < bytes < int < float < date <
// timedelta. Lower index wins when a column's peeked values are
// ambiguous (should not normally happen, since all non-null values in
// a column share one Go type in practice).
var inferPriority = []string{"bool", "datetime", "string", "bytes", "int", "float", "date", "duration"}

func kindOf(v interface{}) string {
	switch v.(type) {
	case bool:
		return "bool"
	case time.Time:
		return "datetime"
	case string:
		return "string"
	case []byte:
		return "bytes"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "int"
	case float32, float64, decimal.Decimal:
		return "float"
	case time.Duration:
		return "duration"
	default:
		return "string"
	}
}

func columnTypeForKind(kind string) (typ byte, flags uint16) {
	switch kind {
	case "bool":
		return common.TypeTiny, 0
	case "datetime":
		return common.TypeDatetime, 0
	case "string":
		return common.TypeVarString, 0
	case "bytes":
		return common.TypeBlob, common.FlagNotNull
	case "int":
		return common.TypeLongLong, 0
	case "float":
		return common.TypeDouble, 0
	case "date":
		return common.TypeDate, 0
	case "duration":
		return common.TypeTime, 0
	default:
		return common.TypeVarString, 0
	}
}

// InferringIter wraps an untyped RowIter, peeking ahead to discover a
// Go-kind for each bare column name, then re-yielding the peeked rows
// so no row is lost. Columns whose values are all null become
// NULL-typed. See spec.md §4.E "Type inference".
type InferringIter struct {
	inner   RowIter
	ncols   int
	buf     []Row
	bufPos  int
	primed  bool
	kinds   []string
}

// NewInferringIter returns an iterator that lazily infers ncols column
// kinds from inner's first non-null values per column.
func NewInferringIter(inner RowIter, ncols int) *InferringIter {
	return &InferringIter{inner: inner, ncols: ncols}
}

func (it *InferringIter) prime() error {
	found := make([]bool, it.ncols)
	remaining := it.ncols

	for remaining > 0 {
		row, ok, err := it.inner.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		it.buf = append(it.buf, row)
		for i := 0; i < it.ncols && i < len(row); i++ {
			if found[i] || row[i] == nil {
				continue
			}
			found[i] = true
			remaining--
		}
	}

	it.kinds = make([]string, it.ncols)
	for i := range it.kinds {
		it.kinds[i] = bestKind(it.buf, i, found[i])
	}
	it.primed = true
	return nil
}

// bestKind scans the already-buffered rows for column col and returns
// the highest-priority non-null kind seen there, per spec.md §4.E's
// "picks a type from a priority list (bool < datetime < string < bytes
// < int < float < date < timedelta)". kindOf's type switch already
// disambiguates any single value unambiguously, so the priority list
// only has work to do when a column's peeked rows carry more than one
// Go kind (mixed data) and a deterministic winner is needed.
func bestKind(buf []Row, col int, hasValue bool) string {
	if !hasValue {
		return "null"
	}
	best := len(inferPriority)
	winner := "string"
	for _, row := range buf {
		if col >= len(row) || row[col] == nil {
			continue
		}
		k := kindOf(row[col])
		if idx := priorityIndexOf(k); idx < best {
			best = idx
			winner = k
		}
	}
	return winner
}

func priorityIndexOf(kind string) int {
	for i, k := range inferPriority {
		if k == kind {
			return i
		}
	}
	return len(inferPriority)
}

// Kinds returns the inferred per-column kind strings; valid only after
// the first call to Next.
func (it *InferringIter) Kinds() []string { return it.kinds }

// Columns builds ColumnDefinition-ready Column entries named by names,
// typed per the inferred kinds.
func (it *InferringIter) Columns(names []string) []Column {
	cols := make([]Column, len(names))
	for i, name := range names {
		kind := "string"
		if i < len(it.kinds) {
			kind = it.kinds[i]
		}
		typ, flags := common.TypeVarString, uint16(0)
		if kind != "null" {
			typ, flags = columnTypeForKind(kind)
		} else {
			typ = common.TypeNull
		}
		cols[i] = Column{Name: name, Type: typ, Flags: flags, Charset: 45}
	}
	return cols
}

func (it *InferringIter) Next() (Row, bool, error) {
	if !it.primed {
		if err := it.prime(); err != nil {
			return nil, false, err
		}
	}
	if it.bufPos < len(it.buf) {
		r := it.buf[it.bufPos]
		it.bufPos++
		return r, true, nil
	}
	return it.inner.Next()
}
