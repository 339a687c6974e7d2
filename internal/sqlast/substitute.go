package sqlast

import (
	"regexp"
	"strings"
)

// SetVarHint is one `name=value` pair extracted from a `/*+ SET_VAR(...) */`
// optimizer hint comment.
type SetVarHint struct {
	Name  string
	Value string
}

var reSetVarHint = regexp.MustCompile(`(?is)/\*\+\s*(.*?)\s*\*/`)
var reSetVarAssign = regexp.MustCompile(`(?is)SET_VAR\s*\(\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*=\s*([^)]*)\)`)

// ExtractSetVarHints pulls every `/*+ SET_VAR(name=value) ... */` hint
// out of sql (innermost-first order is preserved as encountered,
// matching spec.md §4.G stage 1 where outer hints override inner
// ones when applied in sequence) and returns the hints plus sql with
// the hint comments stripped.
func ExtractSetVarHints(sql string) ([]SetVarHint, string) {
	var hints []SetVarHint
	stripped := reSetVarHint.ReplaceAllStringFunc(sql, func(block string) string {
		for _, m := range reSetVarAssign.FindAllStringSubmatch(block, -1) {
			hints = append(hints, SetVarHint{Name: m[1], Value: strings.TrimSpace(m[2])})
		}
		return ""
	})
	return hints, stripped
}

// InfoFunctions lists the information-function names stage 2 of the
// middleware chain rewrites, per spec.md §4.G stage 2.
var InfoFunctions = map[string]bool{
	"CONNECTION_ID": true, "USER": true, "SYSTEM_USER": true, "SESSION_USER": true,
	"CURRENT_USER": true, "VERSION": true, "DATABASE": true, "SCHEMA": true,
	"NOW": true, "CURRENT_TIMESTAMP": true, "LOCALTIME": true, "LOCALTIMESTAMP": true,
	"CURDATE": true, "CURRENT_DATE": true, "CURTIME": true, "CURRENT_TIME": true,
}

var reFuncOrBareword = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s*(\(\s*\))?`)
var reSessionVarRef = regexp.MustCompile(`@@([a-zA-Z_][a-zA-Z0-9_.]*)`)

// InfoFunctionReplacer supplies the current values for each information
// function/bareword and for @@name references.
type InfoFunctionReplacer struct {
	ConnectionID string
	User         string // USER() / SYSTEM_USER() / SESSION_USER()
	CurrentUser  string // CURRENT_USER
	Version      string
	Database     string // "" renders NULL
	Now          string // frozen once per statement, per spec.md §4.G stage 2
	CurDate      string
	CurTime      string
	SessionVar   func(name string) (string, bool)
}

// Substitute rewrites recognized information functions and `@@name`
// references in sql with their current literal values. When a
// replaced expression sits in a top-level SELECT projection list with
// no explicit alias, the literal is aliased to the original
// expression's source text so `SELECT @@version_comment` still
// reports a column named `@@version_comment` to the client, per
// spec.md §4.G stage 2.
func (r *InfoFunctionReplacer) Substitute(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT") && isWordBoundary(byteAt(trimmed, 6)) {
		return r.substituteSelect(trimmed)
	}
	return r.substitutePlain(sql)
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return ' '
	}
	return s[i]
}

// substituteSelect rewrites only the top-level projection list of a
// SELECT statement, preserving (or synthesizing) a per-projection
// alias equal to the original source text whenever substitutePlain
// actually changed that projection and the user supplied no explicit
// AS clause of their own.
func (r *InfoFunctionReplacer) substituteSelect(sql string) string {
	body := sql[len("SELECT"):]
	projPart, tail := splitProjectionTail(body)
	projections := splitTopLevelComma(projPart)

	rewritten := make([]string, len(projections))
	for i, proj := range projections {
		original := strings.TrimSpace(proj)
		if hasTopLevelAs(original) {
			rewritten[i] = " " + r.substitutePlain(original)
			continue
		}
		substituted := r.substitutePlain(original)
		if substituted != original {
			alias := strings.ReplaceAll(original, "`", "``")
			rewritten[i] = " " + substituted + " AS `" + alias + "`"
		} else {
			rewritten[i] = " " + substituted
		}
	}

	return "SELECT " + strings.TrimSpace(strings.Join(rewritten, ",")) + r.substitutePlain(tail)
}

// splitProjectionTail splits body (everything after the SELECT
// keyword) at the first top-level occurrence of a clause keyword
// (FROM/WHERE/GROUP BY/HAVING/ORDER BY/LIMIT/JOIN), returning the
// projection list and the unconsumed tail (kept verbatim, including
// its leading whitespace).
func splitProjectionTail(body string) (proj, tail string) {
	keywords := []string{"FROM", "WHERE", "GROUP BY", "HAVING", "ORDER BY", "LIMIT", "JOIN"}
	upper := strings.ToUpper(body)
	var quote byte
	depth := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '\'' || c == '"' || c == '`':
			quote = c
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if i != 0 && !isWordBoundary(body[i-1]) {
			continue
		}
		for _, kw := range keywords {
			end := i + len(kw)
			if end <= len(upper) && upper[i:end] == kw && isWordBoundary(byteAt(body, end)) {
				j := i
				for j > 0 && (body[j-1] == ' ' || body[j-1] == '\t' || body[j-1] == '\n' || body[j-1] == '\r') {
					j--
				}
				return body[:j], body[j:]
			}
		}
	}
	return body, ""
}

func isWordBoundary(c byte) bool {
	return !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9'))
}

// hasTopLevelAs reports whether proj already carries an explicit
// top-level `AS alias` clause the caller should leave untouched.
func hasTopLevelAs(proj string) bool {
	upper := strings.ToUpper(proj)
	var quote byte
	depth := 0
	for i := 0; i < len(proj); i++ {
		c := proj[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '\'' || c == '"' || c == '`':
			quote = c
			continue
		case c == '(':
			depth++
			continue
		case c == ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		if i != 0 && !isWordBoundary(proj[i-1]) {
			continue
		}
		if i+2 <= len(upper) && upper[i:i+2] == "AS" && isWordBoundary(byteAt(proj, i+2)) {
			return true
		}
	}
	return false
}

// substitutePlain rewrites recognized information functions and
// `@@name` references anywhere in sql with their current literal
// values, without any alias handling; used both for non-SELECT
// statements and for the tail/each-projection text within a SELECT.
func (r *InfoFunctionReplacer) substitutePlain(sql string) string {
	sql = reSessionVarRef.ReplaceAllStringFunc(sql, func(m string) string {
		name := m[2:]
		if r.SessionVar != nil {
			if v, ok := r.SessionVar(name); ok {
				return quoteLiteral(v)
			}
		}
		return "NULL"
	})

	return reFuncOrBareword.ReplaceAllStringFunc(sql, func(m string) string {
		sub := reFuncOrBareword.FindStringSubmatch(m)
		name := strings.ToUpper(sub[1])
		isCall := sub[2] != ""
		switch name {
		case "CONNECTION_ID":
			if isCall {
				return r.ConnectionID
			}
		case "USER", "SYSTEM_USER", "SESSION_USER":
			if isCall {
				return quoteLiteral(r.User)
			}
		case "CURRENT_USER":
			if !isCall || sub[2] == "()" {
				return quoteLiteral(r.CurrentUser)
			}
		case "VERSION":
			if isCall {
				return quoteLiteral(r.Version)
			}
		case "DATABASE", "SCHEMA":
			if isCall {
				if r.Database == "" {
					return "NULL"
				}
				return quoteLiteral(r.Database)
			}
		case "NOW", "CURRENT_TIMESTAMP", "LOCALTIME", "LOCALTIMESTAMP":
			return quoteLiteral(r.Now)
		case "CURDATE", "CURRENT_DATE":
			return quoteLiteral(r.CurDate)
		case "CURTIME", "CURRENT_TIME":
			return quoteLiteral(r.CurTime)
		}
		return m
	})
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
