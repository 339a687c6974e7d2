package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0", cfg.BindAddress)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "mysql_native_password", cfg.DefaultAuthPlugin)
	assert.Equal(t, "8.0.34-mimicd", cfg.VersionString())
}

func TestVersionStringFallsBackWhenEmpty(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "8.0.34-mimicd", cfg.VersionString())
}

func TestParseFlagsConfigPath(t *testing.T) {
	args, err := ParseFlags([]string{"-configPath", "/etc/mimicd.ini"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/mimicd.ini", args.ConfigPath)
}

func TestLoadWithNoConfigPathReturnsDefaults(t *testing.T) {
	cfg, err := Load(CommandLineArgs{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadReadsIniSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mimicd.ini")
	content := `
[mysqld]
bind_address = 127.0.0.1
port = 3307
socket = /tmp/mimicd.sock
max_session_number = 100
ssl_cert = /etc/mimicd/cert.pem
ssl_key = /etc/mimicd/key.pem
default_authentication_plugin = mysql_clear_password
version = 8.0.99-mimicd

[session]
wait_timeout = 60

[log]
level = debug
file = /var/log/mimicd.log
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(CommandLineArgs{ConfigPath: path})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.BindAddress)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "/tmp/mimicd.sock", cfg.SocketPath)
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, "/etc/mimicd/cert.pem", cfg.TLSCertFile)
	assert.Equal(t, "/etc/mimicd/key.pem", cfg.TLSKeyFile)
	assert.Equal(t, "mysql_clear_password", cfg.DefaultAuthPlugin)
	assert.Equal(t, "8.0.99-mimicd", cfg.ServerVersion)
	assert.Equal(t, 60, cfg.WaitTimeoutSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/log/mimicd.log", cfg.LogFile)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(CommandLineArgs{ConfigPath: "/nonexistent/path/mimicd.ini"})
	assert.Error(t, err)
}
