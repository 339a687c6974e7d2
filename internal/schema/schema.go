// Package schema materializes the synthetic INFORMATION_SCHEMA (and a
// handful of mysql.* stub) tables from a user-supplied nested schema
// mapping, and answers the SHOW-statement translations the session
// middleware chain delegates here. Grounded on the teacher's
// server/innodb/metadata InfoSchemaManager contract, reinterpreted
// against a plain in-memory map instead of the InnoDB catalog, per
// spec.md §4.H.
package schema

import (
	"sort"
	"strings"

	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/result"
)

// ColumnDef is one column's declared SQL-type-string, the leaf of the
// user-supplied schema mapping.
type ColumnDef struct {
	Name string
	Type string
}

// Table is a named, ordered set of columns.
type Table struct {
	Name    string
	Columns []ColumnDef
}

// Database is a named, ordered set of tables.
type Database struct {
	Name   string
	Tables []Table
}

// Map is the up-to-four-level schema the backend supplies: catalog
// defaults to "def"; only database->table->column->type is normally
// populated directly by callers via NewMap.
type Map struct {
	Catalog   string
	Databases []Database
}

// NewMap builds a Map from the common three-level shorthand
// (database -> table -> column -> type-string), defaulting catalog to
// "def" as spec.md §4.H specifies.
func NewMap(schema map[string]map[string]map[string]string) *Map {
	m := &Map{Catalog: "def"}
	dbNames := sortedKeys(schema)
	for _, dbName := range dbNames {
		tables := schema[dbName]
		db := Database{Name: dbName}
		for _, tblName := range sortedKeys(tables) {
			cols := tables[tblName]
			tbl := Table{Name: tblName}
			for _, colName := range sortedKeys(cols) {
				tbl.Columns = append(tbl.Columns, ColumnDef{Name: colName, Type: cols[colName]})
			}
			db.Tables = append(db.Tables, tbl)
		}
		m.Databases = append(m.Databases, db)
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Map) database(name string) (Database, bool) {
	for _, db := range m.Databases {
		if strings.EqualFold(db.Name, name) {
			return db, true
		}
	}
	return Database{}, false
}

func (db Database) table(name string) (Table, bool) {
	for _, t := range db.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Manager answers SHOW-translation and INFORMATION_SCHEMA queries
// against a Map.
type Manager struct {
	Schema *Map
}

func NewManager(m *Map) *Manager { return &Manager{Schema: m} }

func likeMatch(pattern, s string) bool {
	if pattern == "" {
		return true
	}
	// MySQL LIKE: % = any run, _ = single char. Translate to a simple
	// glob matcher; administrative SHOW...LIKE patterns rarely need
	// more than this.
	return globMatch(strings.ToLower(pattern), strings.ToLower(s))
}

func globMatch(pattern, s string) bool {
	// classic DP glob match with % and _
	pn, sn := len(pattern), len(s)
	dp := make([][]bool, pn+1)
	for i := range dp {
		dp[i] = make([]bool, sn+1)
	}
	dp[0][0] = true
	for i := 1; i <= pn; i++ {
		if pattern[i-1] == '%' {
			dp[i][0] = dp[i-1][0]
		}
	}
	for i := 1; i <= pn; i++ {
		for j := 1; j <= sn; j++ {
			switch pattern[i-1] {
			case '%':
				dp[i][j] = dp[i-1][j] || dp[i][j-1]
			case '_':
				dp[i][j] = dp[i-1][j-1]
			default:
				dp[i][j] = dp[i-1][j-1] && pattern[i-1] == s[j-1]
			}
		}
	}
	return dp[pn][sn]
}

// ShowColumns answers `SHOW COLUMNS FROM table [FROM db] [LIKE pat]`.
func (mgr *Manager) ShowColumns(currentDB, table, fromDB, like string) (*result.Set, error) {
	dbName := currentDB
	if fromDB != "" {
		dbName = fromDB
	}
	if dbName == "" {
		return nil, &common.SchemaError{Code: common.ErNoDBError, Message: "No database selected"}
	}
	db, ok := mgr.database(dbName)
	if !ok {
		return nil, &common.SchemaError{Code: common.ErNoDBError, Message: "Unknown database '" + dbName + "'"}
	}
	tbl, ok := db.table(table)
	if !ok {
		return emptyResult(showColumnsHeader()), nil
	}
	var rows []result.Row
	for _, c := range tbl.Columns {
		if !likeMatch(like, c.Name) {
			continue
		}
		rows = append(rows, result.Row{c.Name, c.Type, "YES", "", nil, ""})
	}
	return &result.Set{Columns: showColumnsHeader(), Rows: result.NewSliceIter(rows)}, nil
}

func showColumnsHeader() []result.Column {
	return []result.Column{
		{Name: "Field", Type: common.TypeVarString},
		{Name: "Type", Type: common.TypeVarString},
		{Name: "Null", Type: common.TypeVarString},
		{Name: "Key", Type: common.TypeVarString},
		{Name: "Default", Type: common.TypeVarString},
		{Name: "Extra", Type: common.TypeVarString},
	}
}

// ShowTables answers `SHOW TABLES [FROM db] [LIKE pat]`.
func (mgr *Manager) ShowTables(currentDB, fromDB, like string) (*result.Set, error) {
	dbName := currentDB
	if fromDB != "" {
		dbName = fromDB
	}
	col := result.Column{Name: "Tables_in_" + dbName, Type: common.TypeVarString}
	db, ok := mgr.database(dbName)
	if !ok {
		return &result.Set{Columns: []result.Column{col}}, nil
	}
	var rows []result.Row
	for _, t := range db.Tables {
		if likeMatch(like, t.Name) {
			rows = append(rows, result.Row{t.Name})
		}
	}
	return &result.Set{Columns: []result.Column{col}, Rows: result.NewSliceIter(rows)}, nil
}

// ShowDatabases answers `SHOW DATABASES [LIKE pat]`.
func (mgr *Manager) ShowDatabases(like string) *result.Set {
	col := result.Column{Name: "Database", Type: common.TypeVarString}
	var rows []result.Row
	rows = append(rows, result.Row{"information_schema"})
	for _, db := range mgr.Schema.Databases {
		if likeMatch(like, db.Name) {
			rows = append(rows, result.Row{db.Name})
		}
	}
	return &result.Set{Columns: []result.Column{col}, Rows: result.NewSliceIter(rows)}
}

// ShowIndex answers `SHOW INDEX FROM table [FROM db]` with an always-
// empty result: this front end has no key metadata to report.
func (mgr *Manager) ShowIndex() *result.Set {
	cols := []result.Column{
		{Name: "Table", Type: common.TypeVarString}, {Name: "Non_unique", Type: common.TypeLong},
		{Name: "Key_name", Type: common.TypeVarString}, {Name: "Seq_in_index", Type: common.TypeLong},
		{Name: "Column_name", Type: common.TypeVarString},
	}
	return emptyResult(cols)
}

// ShowWarningsOrErrors answers `SHOW WARNINGS`/`SHOW ERRORS`, always
// empty, per SPEC_FULL.md §4's supplemented feature list.
func ShowWarningsOrErrors() *result.Set {
	cols := []result.Column{
		{Name: "Level", Type: common.TypeVarString},
		{Name: "Code", Type: common.TypeLong},
		{Name: "Message", Type: common.TypeVarString},
	}
	return emptyResult(cols)
}

func emptyResult(cols []result.Column) *result.Set {
	return &result.Set{Columns: cols, Rows: result.NewSliceIter(nil)}
}

// IsInformationSchemaOnly reports whether every "db.table"/"table"
// reference in refs resolves to a database named information_schema,
// mysql, or performance_schema, per spec.md §4.G stage 9's fallthrough
// test. A bare table name (no db qualifier) is treated as unqualified
// and returns false, since it cannot be proven to live in one of those
// databases.
func IsInformationSchemaOnly(refs []string) bool {
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs {
		parts := strings.SplitN(ref, ".", 2)
		if len(parts) != 2 {
			return false
		}
		db := strings.ToLower(parts[0])
		if db != "information_schema" && db != "mysql" && db != "performance_schema" {
			return false
		}
	}
	return true
}

// Query answers a simple `SELECT col,... FROM information_schema.X
// [WHERE col = 'value']` or `SELECT * FROM mysql.X` against the
// synthetic tables this package knows about. The projection argument
// is not applied: every modeled column of the table is returned. It is
// intentionally only as capable as driver bootstrap queries require;
// anything it cannot answer yields ErrUnsupportedQuery rather than
// silently returning an empty set.
func (mgr *Manager) Query(dbTable string, projection []string, whereCol, whereVal string) (*result.Set, error) {
	parts := strings.SplitN(dbTable, ".", 2)
	if len(parts) != 2 {
		return nil, ErrUnsupportedQuery
	}
	db, tbl := strings.ToLower(parts[0]), strings.ToLower(parts[1])
	switch db {
	case "information_schema":
		return mgr.queryInformationSchema(tbl, projection, whereCol, whereVal)
	case "mysql":
		return mgr.queryMysqlStub(tbl, projection)
	case "performance_schema":
		return mgr.queryPerformanceSchemaStub(tbl)
	}
	return nil, ErrUnsupportedQuery
}

func (mgr *Manager) queryInformationSchema(tbl string, projection []string, whereCol, whereVal string) (*result.Set, error) {
	allCols := []result.Column{
		{Name: "TABLE_CATALOG", Type: common.TypeVarString},
		{Name: "TABLE_SCHEMA", Type: common.TypeVarString},
		{Name: "TABLE_NAME", Type: common.TypeVarString},
		{Name: "COLUMN_NAME", Type: common.TypeVarString},
		{Name: "DATA_TYPE", Type: common.TypeVarString},
	}
	switch tbl {
	case "schemata":
		cols := []result.Column{{Name: "CATALOG_NAME", Type: common.TypeVarString}, {Name: "SCHEMA_NAME", Type: common.TypeVarString}}
		var rows []result.Row
		for _, db := range mgr.Schema.Databases {
			rows = append(rows, result.Row{mgr.Schema.Catalog, db.Name})
		}
		return &result.Set{Columns: cols, Rows: result.NewSliceIter(rows)}, nil
	case "tables":
		cols := []result.Column{{Name: "TABLE_CATALOG", Type: common.TypeVarString}, {Name: "TABLE_SCHEMA", Type: common.TypeVarString}, {Name: "TABLE_NAME", Type: common.TypeVarString}, {Name: "TABLE_TYPE", Type: common.TypeVarString}}
		var rows []result.Row
		for _, db := range mgr.Schema.Databases {
			if whereCol == "TABLE_SCHEMA" && whereVal != "" && !strings.EqualFold(db.Name, whereVal) {
				continue
			}
			for _, t := range db.Tables {
				rows = append(rows, result.Row{mgr.Schema.Catalog, db.Name, t.Name, "BASE TABLE"})
			}
		}
		return &result.Set{Columns: cols, Rows: result.NewSliceIter(rows)}, nil
	case "columns":
		var rows []result.Row
		for _, db := range mgr.Schema.Databases {
			if whereCol == "TABLE_SCHEMA" && whereVal != "" && !strings.EqualFold(db.Name, whereVal) {
				continue
			}
			for _, t := range db.Tables {
				if whereCol == "TABLE_NAME" && whereVal != "" && !strings.EqualFold(t.Name, whereVal) {
					continue
				}
				for _, c := range t.Columns {
					rows = append(rows, result.Row{mgr.Schema.Catalog, db.Name, t.Name, c.Name, c.Type})
				}
			}
		}
		return &result.Set{Columns: allCols, Rows: result.NewSliceIter(rows)}, nil
	case "character_sets":
		cols := []result.Column{{Name: "CHARACTER_SET_NAME", Type: common.TypeVarString}, {Name: "DEFAULT_COLLATE_NAME", Type: common.TypeVarString}}
		rows := []result.Row{
			{"utf8mb4", "utf8mb4_general_ci"},
			{"utf8", "utf8_general_ci"},
			{"latin1", "latin1_swedish_ci"},
			{"binary", "binary"},
		}
		return &result.Set{Columns: cols, Rows: result.NewSliceIter(rows)}, nil
	case "key_column_usage", "referential_constraints", "statistics", "parameters":
		// No constraint/index/routine metadata is modeled; these stay
		// empty so bootstrap queries that join against them succeed.
		return emptyResult(allCols), nil
	default:
		return nil, ErrUnsupportedQuery
	}
}

func (mgr *Manager) queryMysqlStub(tbl string, projection []string) (*result.Set, error) {
	switch tbl {
	case "user":
		cols := []result.Column{{Name: "User", Type: common.TypeVarString}, {Name: "Host", Type: common.TypeVarString}}
		return emptyResult(cols), nil
	case "role_edges":
		cols := []result.Column{{Name: "FROM_HOST", Type: common.TypeVarString}, {Name: "FROM_USER", Type: common.TypeVarString}, {Name: "TO_HOST", Type: common.TypeVarString}, {Name: "TO_USER", Type: common.TypeVarString}}
		return emptyResult(cols), nil
	case "procs_priv":
		cols := []result.Column{{Name: "Host", Type: common.TypeVarString}, {Name: "Db", Type: common.TypeVarString}, {Name: "User", Type: common.TypeVarString}, {Name: "Routine_name", Type: common.TypeVarString}}
		return emptyResult(cols), nil
	case "time_zone_name":
		cols := []result.Column{{Name: "Name", Type: common.TypeVarString}}
		return emptyResult(cols), nil
	default:
		return nil, ErrUnsupportedQuery
	}
}

// queryPerformanceSchemaStub answers probes against
// performance_schema.session_variables with an always-empty result,
// per SPEC_FULL.md's supplemented-features section: driver bootstrap
// sequences that check this table should see it exist, not error.
func (mgr *Manager) queryPerformanceSchemaStub(tbl string) (*result.Set, error) {
	switch tbl {
	case "session_variables":
		cols := []result.Column{{Name: "VARIABLE_NAME", Type: common.TypeVarString}, {Name: "VARIABLE_VALUE", Type: common.TypeVarString}}
		return emptyResult(cols), nil
	default:
		return nil, ErrUnsupportedQuery
	}
}
