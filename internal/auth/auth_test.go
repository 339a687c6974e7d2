package auth

import (
	"crypto/sha1"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativePasswordAdmitsCorrectPassword(t *testing.T) {
	nonce := []byte("01234567890123456789")
	plugin := &NativePasswordPlugin{nonce: nonce}

	first, err := plugin.Step(nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallenge, first.Kind)
	assert.Equal(t, nonce, first.Challenge)

	user := &User{Name: "root", AuthString: HashPassword("secret")}
	resp := scramble("secret", nonce)

	outcome, err := plugin.Step(&Info{Username: "root", Data: resp, User: user})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, "root", outcome.AuthenticatedAs)
}

func TestNativePasswordRejectsWrongPassword(t *testing.T) {
	nonce := []byte("01234567890123456789")
	plugin := &NativePasswordPlugin{nonce: nonce}
	_, err := plugin.Step(nil)
	require.NoError(t, err)

	user := &User{Name: "root", AuthString: HashPassword("secret")}
	resp := scramble("wrong", nonce)

	outcome, err := plugin.Step(&Info{Username: "root", Data: resp, User: user})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForbidden, outcome.Kind)
}

func TestNativePasswordQuickPathForEmptyPassword(t *testing.T) {
	nonce := []byte("01234567890123456789")
	plugin := &NativePasswordPlugin{nonce: nonce}
	_, err := plugin.Step(nil)
	require.NoError(t, err)

	user := &User{Name: "root", AuthString: ""}
	outcome, err := plugin.Step(&Info{Username: "root", Data: nil, User: user})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestNativePasswordRejectsUnknownUser(t *testing.T) {
	plugin := &NativePasswordPlugin{nonce: []byte("01234567890123456789")}
	_, err := plugin.Step(nil)
	require.NoError(t, err)

	outcome, err := plugin.Step(&Info{Username: "ghost", Data: []byte("x"), User: nil})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForbidden, outcome.Kind)
}

func TestNativePasswordAcceptsOldAuthString(t *testing.T) {
	nonce := []byte("01234567890123456789")
	plugin := &NativePasswordPlugin{nonce: nonce}
	_, err := plugin.Step(nil)
	require.NoError(t, err)

	user := &User{Name: "root", AuthString: HashPassword("newpass"), OldAuthString: HashPassword("oldpass")}
	resp := scramble("oldpass", nonce)

	outcome, err := plugin.Step(&Info{Username: "root", Data: resp, User: user})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
}

func TestClearPasswordPluginChecksCallback(t *testing.T) {
	plugin := &ClearPasswordPlugin{Check: func(user, pass string) bool {
		return user == "root" && pass == "hunter2"
	}}
	first, err := plugin.Step(nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeChallenge, first.Kind)

	outcome, err := plugin.Step(&Info{Username: "root", Data: []byte("hunter2\x00")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome.Kind)

	plugin2 := &ClearPasswordPlugin{Check: func(user, pass string) bool { return false }}
	_, _ = plugin2.Step(nil)
	outcome, err = plugin2.Step(&Info{Username: "root", Data: []byte("wrong\x00")})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForbidden, outcome.Kind)
}

func TestNoLoginPluginAlwaysForbidden(t *testing.T) {
	plugin := &NoLoginPlugin{}
	outcome, err := plugin.Step(&Info{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeForbidden, outcome.Kind)
}

func TestNewPluginUnknownNameReturnsNil(t *testing.T) {
	assert.Nil(t, NewPlugin("mysql_sha256_password", nil))
}

// scramble reproduces the client side of mysql_native_password's
// challenge/response: SHA1(password) XOR SHA1(nonce + SHA1(SHA1(password))).
func scramble(password string, nonce []byte) []byte {
	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])
	mask := sha1.Sum(append(append([]byte{}, nonce...), stage2[:]...))
	out := make([]byte, len(stage1))
	for i := range out {
		out[i] = stage1[i] ^ mask[i]
	}
	return out
}
