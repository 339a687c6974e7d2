package sqlast

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CountPlaceholders counts `?` placeholders outside quoted literals,
// per spec.md §4.D's COM_STMT_PREPARE parameter count.
func CountPlaceholders(sql string) int {
	n := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			if c == '\\' && quote != '`' {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '?':
			n++
		}
	}
	return n
}

// InterpolatePlaceholders substitutes each `?` outside quoted literals
// with args[i] rendered as a SQL literal, in order, per spec.md §4.D.
// Unlike the source's bare textual substitution (spec.md §9's
// documented limitation), string arguments are single-quoted with
// embedded quotes doubled (quoteLiteral), so a string argument
// containing a single quote round-trips correctly: the elect-to-escape
// path spec.md §9 permits as a documented divergence.
func InterpolatePlaceholders(sql string, args []interface{}) (string, error) {
	if len(args) == 0 {
		return sql, nil
	}
	var out strings.Builder
	var quote byte
	argIdx := 0
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			out.WriteByte(c)
			if c == '\\' && quote != '`' {
				if i+1 < len(sql) {
					i++
					out.WriteByte(sql[i])
				}
				continue
			}
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			out.WriteByte(c)
		case c == '?':
			if argIdx >= len(args) {
				return "", fmt.Errorf("not enough bound parameters for statement")
			}
			out.WriteString(literalFor(args[argIdx]))
			argIdx++
		default:
			out.WriteByte(c)
		}
	}
	if argIdx != len(args) {
		return "", fmt.Errorf("too many bound parameters for statement")
	}
	return out.String(), nil
}

func literalFor(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	switch t := v.(type) {
	case string:
		return quoteLiteral(t)
	case []byte:
		return quoteLiteral(string(t))
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		return quoteLiteral(t.Format("2006-01-02 15:04:05"))
	case time.Duration:
		return quoteLiteral(formatDurationLiteral(t))
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatDurationLiteral(d time.Duration) string {
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
