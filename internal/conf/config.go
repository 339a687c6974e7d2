// Package conf loads server configuration from an ini file, the same
// way the teacher's server/conf/config.go does: a [mysqld] section for
// network/process settings and a [session] section for per-connection
// defaults, read with gopkg.in/ini.v1. Generalized here to also carry
// the TLS material and default auth plugin that a MySQL-protocol front
// end needs.
package conf

import (
	"flag"

	"gopkg.in/ini.v1"
)

// Config is the fully-resolved server configuration.
type Config struct {
	BindAddress string
	Port        int
	SocketPath  string

	MaxConnections int

	TLSCertFile string
	TLSKeyFile  string

	DefaultAuthPlugin string

	LogLevel string
	LogFile  string

	WaitTimeoutSeconds int

	ServerVersion string
}

// VersionString returns the string advertised in HandshakeV10's
// server_version field.
func (c *Config) VersionString() string {
	if c.ServerVersion == "" {
		return "8.0.34-mimicd"
	}
	return c.ServerVersion
}

// CommandLineArgs holds flags parsed from argv.
type CommandLineArgs struct {
	ConfigPath string
}

// ParseFlags parses -configPath out of args (os.Args[1:] in normal use).
func ParseFlags(args []string) (CommandLineArgs, error) {
	fs := flag.NewFlagSet("mimicd", flag.ContinueOnError)
	var cfgPath string
	fs.StringVar(&cfgPath, "configPath", "", "path to the mimicd ini configuration file")
	if err := fs.Parse(args); err != nil {
		return CommandLineArgs{}, err
	}
	return CommandLineArgs{ConfigPath: cfgPath}, nil
}

// Default returns the zero-config defaults used when no -configPath is
// supplied.
func Default() *Config {
	return &Config{
		BindAddress:        "0.0.0.0",
		Port:               3306,
		MaxConnections:     65536,
		DefaultAuthPlugin:  "mysql_native_password",
		LogLevel:           "info",
		WaitTimeoutSeconds: 28800,
		ServerVersion:      "8.0.34-mimicd",
	}
}

// Load reads args.ConfigPath (if non-empty) over top of Default().
func Load(args CommandLineArgs) (*Config, error) {
	cfg := Default()
	if args.ConfigPath == "" {
		return cfg, nil
	}
	f, err := ini.Load(args.ConfigPath)
	if err != nil {
		return nil, err
	}
	if sec, err := f.GetSection("mysqld"); err == nil {
		cfg.BindAddress = valueAsString(sec, "bind_address", cfg.BindAddress)
		cfg.Port = sec.Key("port").MustInt(cfg.Port)
		cfg.SocketPath = valueAsString(sec, "socket", cfg.SocketPath)
		cfg.MaxConnections = sec.Key("max_session_number").MustInt(cfg.MaxConnections)
		cfg.TLSCertFile = valueAsString(sec, "ssl_cert", cfg.TLSCertFile)
		cfg.TLSKeyFile = valueAsString(sec, "ssl_key", cfg.TLSKeyFile)
		cfg.DefaultAuthPlugin = valueAsString(sec, "default_authentication_plugin", cfg.DefaultAuthPlugin)
		cfg.ServerVersion = valueAsString(sec, "version", cfg.ServerVersion)
	}
	if sec, err := f.GetSection("session"); err == nil {
		cfg.WaitTimeoutSeconds = sec.Key("wait_timeout").MustInt(cfg.WaitTimeoutSeconds)
	}
	if sec, err := f.GetSection("log"); err == nil {
		cfg.LogLevel = valueAsString(sec, "level", cfg.LogLevel)
		cfg.LogFile = valueAsString(sec, "file", cfg.LogFile)
	}
	return cfg, nil
}

// valueAsString reads a key's value, falling back to def when the key
// is absent or empty, mirroring the teacher's own defensive accessor.
func valueAsString(sec *ini.Section, key, def string) string {
	if !sec.HasKey(key) {
		return def
	}
	v := sec.Key(key).Value()
	if v == "" {
		return def
	}
	return v
}
