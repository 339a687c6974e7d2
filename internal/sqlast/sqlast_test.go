package sqlast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSetSimple(t *testing.T) {
	st := Parse("SET autocommit = OFF")
	require.Equal(t, KindSet, st.Kind)
	require.Len(t, st.SetAssignments, 1)
	assert.Equal(t, "var", st.SetAssignments[0].Kind)
	assert.Equal(t, "autocommit", st.SetAssignments[0].Name)
	assert.Equal(t, "OFF", st.SetAssignments[0].Value)
}

func TestParseSetNamesAndCharset(t *testing.T) {
	st := Parse("SET NAMES utf8mb4")
	require.Len(t, st.SetAssignments, 1)
	assert.Equal(t, "names", st.SetAssignments[0].Kind)
	assert.Equal(t, "utf8mb4", st.SetAssignments[0].Value)

	st = Parse("SET CHARACTER SET latin1")
	require.Len(t, st.SetAssignments, 1)
	assert.Equal(t, "charset", st.SetAssignments[0].Kind)
}

func TestParseSetMultipleAssignments(t *testing.T) {
	st := Parse("SET autocommit = 1, sql_mode = 'STRICT_TRANS_TABLES'")
	require.Len(t, st.SetAssignments, 2)
	assert.Equal(t, "autocommit", st.SetAssignments[0].Name)
	assert.Equal(t, "sql_mode", st.SetAssignments[1].Name)
	assert.Equal(t, "'STRICT_TRANS_TABLES'", st.SetAssignments[1].Value)
}

func TestParseSetGlobalScope(t *testing.T) {
	st := Parse("SET GLOBAL max_connections = 100")
	require.Len(t, st.SetAssignments, 1)
	assert.Equal(t, "GLOBAL", st.SetAssignments[0].Scope)
}

func TestParseUse(t *testing.T) {
	st := Parse("USE `mydb`")
	assert.Equal(t, KindUse, st.Kind)
	assert.Equal(t, "mydb", st.Database)
}

func TestParseKillConnectionAndQuery(t *testing.T) {
	st := Parse("KILL 42")
	assert.Equal(t, KindKill, st.Kind)
	assert.Equal(t, int64(42), st.KillID)
	assert.Equal(t, "CONNECTION", st.KillKind)

	st = Parse("KILL QUERY 7")
	assert.Equal(t, "QUERY", st.KillKind)
	assert.Equal(t, int64(7), st.KillID)
}

func TestParseDescribe(t *testing.T) {
	st := Parse("DESCRIBE users")
	assert.Equal(t, KindDescribe, st.Kind)
	assert.Equal(t, "users", st.DescribeTable)

	st = Parse("DESC mydb.users")
	assert.Equal(t, "mydb.users", st.DescribeTable)
}

func TestParseTransactionNoOps(t *testing.T) {
	for _, sql := range []string{"BEGIN", "START TRANSACTION", "COMMIT", "ROLLBACK"} {
		st := Parse(sql)
		assert.Equal(t, KindTransactionNoOp, st.Kind, sql)
	}
}

func TestParseSelectTablelessVsWithTable(t *testing.T) {
	st := Parse("SELECT 1")
	assert.Equal(t, KindSelect, st.Kind)
	assert.True(t, st.IsTableless)
	assert.Empty(t, st.TableRefs)

	st = Parse("SELECT * FROM mydb.users")
	assert.False(t, st.IsTableless)
	assert.Equal(t, []string{"mydb.users"}, st.TableRefs)

	st = Parse("SELECT 1 WHERE 1=1")
	assert.False(t, st.IsTableless)
}

func TestParseShowVariablesWithLike(t *testing.T) {
	st := Parse("SHOW VARIABLES LIKE 'auto%'")
	assert.Equal(t, KindShow, st.Kind)
	assert.Equal(t, "VARIABLES", st.ShowType)
	assert.Equal(t, "auto%", st.ShowLike)
}

func TestParseShowColumnsFrom(t *testing.T) {
	st := Parse("SHOW COLUMNS FROM users FROM mydb")
	assert.Equal(t, "COLUMNS", st.ShowType)
	assert.Equal(t, "users", st.ShowTable)
	assert.Equal(t, "mydb", st.ShowFromDB)
}

func TestParseUnrecognizedShapeIsKindOther(t *testing.T) {
	st := Parse("INSERT INTO users (a) VALUES (1)")
	assert.Equal(t, KindOther, st.Kind)
}
