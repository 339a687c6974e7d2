// Package sqlast is the minimal statement-shape recognizer the session
// middleware chain depends on. spec.md explicitly keeps full SQL
// parsing out of scope — the core depends only on an AST abstraction
// that can recognize administrative statements (SET/SHOW/USE/KILL/
// DESCRIBE/static-SELECT) and rewrite information functions and
// SET_VAR hints inside a statement's text. This is therefore a
// hand-built, regexp-driven recognizer rather than a ported library:
// no complete third-party Go SQL parser appears anywhere in the
// retrieval pack, and the teacher's own vendored vitess-derived parser
// is a full relational-algebra AST, far larger than an administrative-
// statement interceptor needs. See DESIGN.md.
package sqlast

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates the statement shapes the middleware chain acts on.
type Kind int

const (
	KindOther Kind = iota
	KindSet
	KindShow
	KindUse
	KindKill
	KindDescribe
	KindTransactionNoOp // BEGIN/COMMIT/ROLLBACK
	KindSelect
)

// SetAssignment is one `name = value` (or SET NAMES/CHARACTER SET/
// TRANSACTION clause) recognized inside a SET statement.
type SetAssignment struct {
	Kind  string // "var", "names", "charset", "transaction"
	Scope string // "SESSION", "GLOBAL", "PERSIST", "PERSIST_ONLY", "" (unspecified -> SESSION)
	Name  string
	Value string // raw textual value, coercion happens in internal/session
}

// Statement is the result of Parse: a recognized shape plus enough
// fields for the middleware stage responsible for it.
type Statement struct {
	Kind Kind
	Raw  string

	SetAssignments []SetAssignment

	ShowType   string // VARIABLES, STATUS, COLUMNS, TABLES, DATABASES, INDEX, WARNINGS, ERRORS, ENGINES, CHARSET, COLLATION
	ShowTable  string
	ShowFromDB string
	ShowLike   string

	Database string // USE

	KillID   int64
	KillKind string // CONNECTION or QUERY

	DescribeTable string

	// SELECT-only: set when the statement has no table reference
	// (FROM clause) so it's eligible for static, backend-free
	// evaluation (spec.md §4.G stage 4).
	IsTableless bool
	// The table named directly after each FROM keyword, used by the
	// INFORMATION_SCHEMA fallthrough check (stage 9): each entry is
	// "db.table" or "table" if unqualified. Tables named after JOIN, or
	// after a comma in a FROM list, are not collected.
	TableRefs []string
}

var (
	reSet        = regexp.MustCompile(`(?is)^\s*SET\s+(.*)$`)
	reShow       = regexp.MustCompile(`(?is)^\s*SHOW\s+(.*)$`)
	reUse        = regexp.MustCompile(`(?is)^\s*USE\s+` + "`?" + `([a-zA-Z0-9_$]+)` + "`?" + `\s*;?\s*$`)
	reKill       = regexp.MustCompile(`(?is)^\s*KILL\s+(CONNECTION\s+|QUERY\s+)?(\d+)\s*;?\s*$`)
	reDescribe   = regexp.MustCompile(`(?is)^\s*(?:DESCRIBE|DESC)\s+` + "`?" + `([a-zA-Z0-9_$.]+)` + "`?" + `\s*;?\s*$`)
	reTxnNoOp    = regexp.MustCompile(`(?is)^\s*(BEGIN|START\s+TRANSACTION|COMMIT|ROLLBACK)\b`)
	reSelect     = regexp.MustCompile(`(?is)^\s*SELECT\b(.*)$`)
	reFrom       = regexp.MustCompile(`(?is)\bFROM\s+` + "`?" + `([a-zA-Z0-9_$]+)` + "`?" + `(?:\s*\.\s*` + "`?" + `([a-zA-Z0-9_$]+)` + "`?" + `)?`)
)

// Parse recognizes the shape of sql (a single statement; splitting
// multi-statement batches happens above this package). Unrecognized
// shapes come back as KindOther and must fall through to the backend.
func Parse(sql string) Statement {
	st := Statement{Raw: sql}
	trimmed := strings.TrimSpace(sql)

	if m := reSet.FindStringSubmatch(trimmed); m != nil {
		st.Kind = KindSet
		st.SetAssignments = parseSetClauses(m[1])
		return st
	}
	if m := reShow.FindStringSubmatch(trimmed); m != nil {
		st.Kind = KindShow
		parseShow(m[1], &st)
		return st
	}
	if m := reUse.FindStringSubmatch(trimmed); m != nil {
		st.Kind = KindUse
		st.Database = m[1]
		return st
	}
	if m := reKill.FindStringSubmatch(trimmed); m != nil {
		st.Kind = KindKill
		st.KillKind = "CONNECTION"
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(m[1])), "QUERY") {
			st.KillKind = "QUERY"
		}
		id, _ := strconv.ParseInt(m[2], 10, 64)
		st.KillID = id
		return st
	}
	if m := reDescribe.FindStringSubmatch(trimmed); m != nil {
		st.Kind = KindDescribe
		st.DescribeTable = m[1]
		return st
	}
	if reTxnNoOp.MatchString(trimmed) {
		st.Kind = KindTransactionNoOp
		return st
	}
	if reSelect.MatchString(trimmed) {
		st.Kind = KindSelect
		st.TableRefs = findTableRefs(trimmed)
		st.IsTableless = len(st.TableRefs) == 0 && !containsClause(trimmed)
		return st
	}

	st.TableRefs = findTableRefs(trimmed)
	return st
}

func containsClause(sql string) bool {
	upper := strings.ToUpper(sql)
	for _, kw := range []string{" JOIN ", " WHERE ", " GROUP BY ", " HAVING "} {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

func findTableRefs(sql string) []string {
	var refs []string
	for _, m := range reFrom.FindAllStringSubmatch(sql, -1) {
		if m[2] != "" {
			refs = append(refs, m[1]+"."+m[2])
		} else {
			refs = append(refs, m[1])
		}
	}
	return refs
}

func parseSetClauses(rest string) []SetAssignment {
	var out []SetAssignment
	for _, part := range splitTopLevelComma(rest) {
		part = strings.TrimSpace(part)
		upper := strings.ToUpper(part)
		switch {
		case strings.HasPrefix(upper, "NAMES "):
			out = append(out, SetAssignment{Kind: "names", Value: strings.TrimSpace(part[len("NAMES "):])})
		case strings.HasPrefix(upper, "CHARACTER SET "):
			out = append(out, SetAssignment{Kind: "charset", Value: strings.TrimSpace(part[len("CHARACTER SET "):])})
		case strings.HasPrefix(upper, "TRANSACTION "):
			out = append(out, SetAssignment{Kind: "transaction", Value: strings.TrimSpace(part[len("TRANSACTION "):])})
		default:
			out = append(out, parseVarAssignment(part))
		}
	}
	return out
}

var reVarAssign = regexp.MustCompile(`(?is)^(GLOBAL\s+|SESSION\s+|LOCAL\s+|PERSIST_ONLY\s+|PERSIST\s+)?@{0,2}([a-zA-Z_][a-zA-Z0-9_.]*)\s*(?::=|=)\s*(.*)$`)

func parseVarAssignment(part string) SetAssignment {
	m := reVarAssign.FindStringSubmatch(part)
	if m == nil {
		return SetAssignment{Kind: "var", Name: part}
	}
	scope := strings.ToUpper(strings.TrimSpace(m[1]))
	if scope == "" {
		scope = "SESSION"
	}
	return SetAssignment{Kind: "var", Scope: scope, Name: m[2], Value: strings.TrimSpace(m[3])}
}

// splitTopLevelComma splits on commas that are not inside quotes.
func splitTopLevelComma(s string) []string {
	var parts []string
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == ',':
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseShow(rest string, st *Statement) {
	trimmed := strings.TrimSpace(rest)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasPrefix(upper, "VARIABLES"):
		st.ShowType = "VARIABLES"
		st.ShowLike = extractLike(trimmed)
	case strings.HasPrefix(upper, "STATUS"):
		st.ShowType = "STATUS"
		st.ShowLike = extractLike(trimmed)
	case strings.HasPrefix(upper, "WARNINGS"):
		st.ShowType = "WARNINGS"
	case strings.HasPrefix(upper, "ERRORS"):
		st.ShowType = "ERRORS"
	case strings.HasPrefix(upper, "ENGINES"):
		st.ShowType = "ENGINES"
	case strings.HasPrefix(upper, "CHARACTER SET") || strings.HasPrefix(upper, "CHARSET"):
		st.ShowType = "CHARSET"
		st.ShowLike = extractLike(trimmed)
	case strings.HasPrefix(upper, "COLLATION"):
		st.ShowType = "COLLATION"
		st.ShowLike = extractLike(trimmed)
	case strings.HasPrefix(upper, "DATABASES") || strings.HasPrefix(upper, "SCHEMAS"):
		st.ShowType = "DATABASES"
		st.ShowLike = extractLike(trimmed)
	case strings.HasPrefix(upper, "TABLES"):
		st.ShowType = "TABLES"
		st.ShowFromDB, st.ShowLike = extractFromAndLike(trimmed, "TABLES")
	case strings.HasPrefix(upper, "COLUMNS") || strings.HasPrefix(upper, "FIELDS"):
		st.ShowType = "COLUMNS"
		st.ShowTable, st.ShowFromDB, st.ShowLike = extractTableFromLike(trimmed)
	case strings.HasPrefix(upper, "INDEX") || strings.HasPrefix(upper, "INDEXES") || strings.HasPrefix(upper, "KEYS"):
		st.ShowType = "INDEX"
		st.ShowTable, st.ShowFromDB, st.ShowLike = extractTableFromLike(trimmed)
	default:
		st.ShowType = "UNKNOWN"
	}
}

var reLike = regexp.MustCompile(`(?is)LIKE\s+'([^']*)'`)

func extractLike(s string) string {
	m := reLike.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

var reFromDB = regexp.MustCompile(`(?is)FROM\s+` + "`?" + `([a-zA-Z0-9_$]+)` + "`?")

func extractFromAndLike(s, keyword string) (db, like string) {
	m := reFromDB.FindStringSubmatch(s)
	if m != nil {
		db = m[1]
	}
	return db, extractLike(s)
}

var reColumnsFrom = regexp.MustCompile(`(?is)(?:COLUMNS|FIELDS|INDEX|INDEXES|KEYS)\s+FROM\s+` + "`?" + `([a-zA-Z0-9_$]+)` + "`?" + `(?:\s+FROM\s+` + "`?" + `([a-zA-Z0-9_$]+)` + "`?" + `)?`)

func extractTableFromLike(s string) (table, db, like string) {
	m := reColumnsFrom.FindStringSubmatch(s)
	if m != nil {
		table = m[1]
		db = m[2]
	}
	return table, db, extractLike(s)
}
