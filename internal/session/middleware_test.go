package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/result"
	"github.com/mimicd/mimicd/internal/sqlast"
)

type fakeBackend struct {
	queries []string
	useDB   string
	useErr  error
}

func (b *fakeBackend) Query(stmt sqlast.Statement, sqlText string, attrs map[string]string) (*result.Set, error) {
	b.queries = append(b.queries, sqlText)
	return &result.Set{Rows: result.NewSliceIter([]result.Row{{"ok"}}), Columns: []result.Column{{Name: "col"}}}, nil
}

func (b *fakeBackend) Schema() (map[string]map[string]map[string]string, error) { return nil, nil }
func (b *fakeBackend) Init(s *Session) error                                    { return nil }
func (b *fakeBackend) Close() error                                             { return nil }
func (b *fakeBackend) Reset() error                                             { return nil }
func (b *fakeBackend) Use(db string) error {
	if b.useErr != nil {
		return b.useErr
	}
	b.useDB = db
	return nil
}

type fakeConn struct{ id uint32 }

func (c fakeConn) ConnectionID() uint32 { return c.id }

type fakeKiller struct {
	connID uint32
	kind   string
	err    error
}

func (k *fakeKiller) Kill(connID uint32, kind string) error {
	k.connID = connID
	k.kind = kind
	return k.err
}

func newTestMiddleware(backend Backend) *Middleware {
	s := New(backend, fakeConn{id: 5})
	return &Middleware{Session: s, Version: "8.0.34-mimicd"}
}

func TestMiddlewareSetAndSelectSessionVariable(t *testing.T) {
	m := newTestMiddleware(&fakeBackend{})

	_, err := m.Execute("SET autocommit = OFF", nil)
	require.NoError(t, err)

	set, err := m.Execute("SELECT @@autocommit", nil)
	require.NoError(t, err)
	require.Len(t, set.Columns, 1)
	assert.Equal(t, "@@autocommit", set.Columns[0].Name)
	assert.Equal(t, common.TypeVarString, set.Columns[0].Type)

	row, ok, err := set.Rows.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "OFF", row[0])
}

func TestMiddlewareVersionCommentAliasing(t *testing.T) {
	m := newTestMiddleware(&fakeBackend{})
	set, err := m.Execute("SELECT @@version_comment LIMIT 1", nil)
	require.NoError(t, err)
	require.Len(t, set.Columns, 1)
	assert.Equal(t, "@@version_comment", set.Columns[0].Name)
}

func TestMiddlewareUseDelegatesToBackend(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestMiddleware(backend)
	_, err := m.Execute("USE somedb", nil)
	require.NoError(t, err)
	assert.Equal(t, "somedb", backend.useDB)
	assert.Equal(t, "somedb", m.Session.Database)
}

func TestMiddlewareKillWithNoDispatcherErrors(t *testing.T) {
	m := newTestMiddleware(&fakeBackend{})
	_, err := m.Execute("KILL 7", nil)
	assert.Error(t, err)
}

func TestMiddlewareKillDispatchesToKiller(t *testing.T) {
	killer := &fakeKiller{}
	m := newTestMiddleware(&fakeBackend{})
	m.Kill = killer
	_, err := m.Execute("KILL QUERY 9", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), killer.connID)
	assert.Equal(t, "QUERY", killer.kind)
}

func TestMiddlewareSetVarHintAppliesThenRestores(t *testing.T) {
	m := newTestMiddleware(&fakeBackend{})
	_, err := m.Execute("SELECT /*+ SET_VAR(sql_mode=STRICT_TRANS_TABLES) */ 1", nil)
	require.NoError(t, err)

	val, ok := m.Session.Vars.Get("sql_mode")
	require.True(t, ok)
	assert.Equal(t, "NO_ENGINE_SUBSTITUTION", val)
}

func TestMiddlewareFallsThroughToBackendForOrdinaryQuery(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestMiddleware(backend)
	set, err := m.Execute("SELECT * FROM users", nil)
	require.NoError(t, err)
	require.NotNil(t, set)
	assert.Len(t, backend.queries, 1)
}

func TestMiddlewareBackendErrorIsWrappedButUnwrapsToMySQLError(t *testing.T) {
	backend := &erroringBackend{err: common.NewError(common.ErNoDBError, "no database selected")}
	m := newTestMiddleware(backend)
	_, err := m.Execute("SELECT * FROM users", nil)
	require.Error(t, err)
	mysqlErr := common.AsMySQLError(err)
	assert.Equal(t, common.ErNoDBError, mysqlErr.Code)
}

type erroringBackend struct{ err error }

func (b *erroringBackend) Query(stmt sqlast.Statement, sqlText string, attrs map[string]string) (*result.Set, error) {
	return nil, b.err
}
func (b *erroringBackend) Schema() (map[string]map[string]map[string]string, error) { return nil, nil }
func (b *erroringBackend) Init(s *Session) error                                     { return nil }
func (b *erroringBackend) Close() error                                              { return nil }
func (b *erroringBackend) Reset() error                                              { return nil }
func (b *erroringBackend) Use(db string) error                                       { return nil }

func TestMiddlewareTransactionStatementsAreNoOps(t *testing.T) {
	backend := &fakeBackend{}
	m := newTestMiddleware(backend)
	set, err := m.Execute("BEGIN", nil)
	require.NoError(t, err)
	assert.NotNil(t, set)
	assert.Empty(t, backend.queries)
}
