package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/auth"
	"github.com/mimicd/mimicd/internal/result"
	"github.com/mimicd/mimicd/internal/session"
	"github.com/mimicd/mimicd/internal/sqlast"
)

type fakeIdentity struct {
	plugin auth.Plugin
	hasIt  bool
}

func (f *fakeIdentity) GetPlugins() []string                 { return []string{"mysql_native_password"} }
func (f *fakeIdentity) GetUser(username string) (*auth.User, error) { return nil, nil }
func (f *fakeIdentity) GetPlugin(name string) (auth.Plugin, bool) {
	if f.hasIt {
		return f.plugin, true
	}
	return nil, false
}

func TestLookupPluginPrefersIdentitySuppliedPlugin(t *testing.T) {
	custom := &auth.ClearPasswordPlugin{Check: func(u, p string) bool { return true }}
	c := &Connection{cfg: Config{Identity: &fakeIdentity{plugin: custom, hasIt: true}}}
	got := c.lookupPlugin("mysql_clear_password", nil)
	assert.Same(t, custom, got)
}

func TestLookupPluginFallsBackToBuiltin(t *testing.T) {
	c := &Connection{cfg: Config{Identity: &fakeIdentity{hasIt: false}}}
	got := c.lookupPlugin("mysql_native_password", []byte("01234567890123456789"))
	require.NotNil(t, got)
	_, ok := got.(*auth.NativePasswordPlugin)
	assert.True(t, ok)
}

func TestLookupPluginWithNoIdentityProviderUsesBuiltin(t *testing.T) {
	c := &Connection{cfg: Config{}}
	got := c.lookupPlugin("mysql_no_login", nil)
	require.NotNil(t, got)
	_, ok := got.(*auth.NoLoginPlugin)
	assert.True(t, ok)
}

func TestLookupPluginUnknownNameReturnsNil(t *testing.T) {
	c := &Connection{cfg: Config{}}
	assert.Nil(t, c.lookupPlugin("mysql_sha256_password", nil))
}

type fakeBackendWithSchema struct {
	schema map[string]map[string]map[string]string
	err    error
}

func (b *fakeBackendWithSchema) Query(stmt sqlast.Statement, sqlText string, attrs map[string]string) (*result.Set, error) {
	return nil, nil
}
func (b *fakeBackendWithSchema) Schema() (map[string]map[string]map[string]string, error) {
	return b.schema, b.err
}
func (b *fakeBackendWithSchema) Init(s *session.Session) error { return nil }
func (b *fakeBackendWithSchema) Close() error                  { return nil }
func (b *fakeBackendWithSchema) Reset() error                  { return nil }
func (b *fakeBackendWithSchema) Use(db string) error            { return nil }

func TestSchemaManagerBuildsMapFromBackend(t *testing.T) {
	backend := &fakeBackendWithSchema{schema: map[string]map[string]map[string]string{
		"test": {"x": {"a": "int"}},
	}}
	c := &Connection{sess: &session.Session{Backend: backend}}
	mgr, err := c.schemaManager()
	require.NoError(t, err)
	require.Len(t, mgr.Schema.Databases, 1)
	assert.Equal(t, "test", mgr.Schema.Databases[0].Name)
}

func TestSchemaManagerPropagatesBackendError(t *testing.T) {
	backend := &fakeBackendWithSchema{err: assertError("boom")}
	c := &Connection{sess: &session.Session{Backend: backend}}
	_, err := c.schemaManager()
	assert.Error(t, err)
}

type assertError string

func (e assertError) Error() string { return string(e) }
