// Package conn implements the connection state machine that
// orchestrates every other package: Handshake -> Auth -> Command,
// per spec.md §4.C. Grounded on the teacher's server/net/connection.go
// for the stream lifecycle and server/auth/auth_service.go for the
// authentication orchestration shape, generalized from the teacher's
// hardwired InnoDB identity source to the pluggable IdentityProvider
// contract spec.md §6 specifies.
//
// Concurrency note: spec.md §5 describes a cooperative, single-
// threaded-per-connection scheduling model with explicit suspension
// points (the source language's generator/async idioms). Go has no
// such cooperative scheduler; this front end instead runs one real
// goroutine per connection, which is Go's idiomatic equivalent and
// preserves every ordering guarantee spec.md §5 lists (a single
// goroutine can only do one thing at a time, so response ordering and
// monotonic sequence numbers fall out for free). KILL therefore takes
// effect at the next command-loop boundary rather than truly
// preempting an in-flight backend call.
package conn

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/mimicd/mimicd/internal/auth"
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/control"
	"github.com/mimicd/mimicd/internal/logger"
	"github.com/mimicd/mimicd/internal/protocol"
	"github.com/mimicd/mimicd/internal/schema"
	"github.com/mimicd/mimicd/internal/session"
	"github.com/mimicd/mimicd/internal/stmt"
	"github.com/mimicd/mimicd/internal/stream"
)

// IdentityProvider is the pluggable identity store, per spec.md §6.
// GetPlugin lets an application supply a pre-configured or entirely
// custom auth.Plugin (e.g. a ClearPasswordPlugin with its Check
// callback wired to the application's own credential check, or a
// bespoke plugin unrelated to the three built-ins); ok is false to
// fall back to the built-in plugin of that name, if any.
type IdentityProvider interface {
	GetPlugins() []string
	GetUser(username string) (*auth.User, error)
	GetPlugin(name string) (plugin auth.Plugin, ok bool)
}

// Config is the server-wide configuration a Connection needs.
type Config struct {
	ServerVersion     string
	DefaultAuthPlugin string
	TLSConfig         *tls.Config
	Identity          IdentityProvider
	NewBackend        func() session.Backend
	Registry          *control.Registry
}

// Connection owns one client's entire lifetime: its packet stream, its
// session, its capability bitmask, its prepared-statement table, and a
// cancellation channel the control plane signals into.
type Connection struct {
	id       uint32
	cfg      Config
	stream   *stream.Stream
	sess     *session.Session
	stmts    *stmt.Table
	cancelCh chan control.CancelKind

	capabilities   uint32
	charset        uint8
	maxPacketSize  uint32
	connectAttrs   map[string]string

	handshakeNonce  []byte
	handshakePlugin string
}

// New wraps a freshly-accepted net.Conn, allocating it a connection id
// from registry.
func New(netConn net.Conn, cfg Config) (*Connection, error) {
	c := &Connection{
		cfg:      cfg,
		stream:   stream.New(netConn),
		stmts:    stmt.NewTable(),
		cancelCh: make(chan control.CancelKind, 1),
	}
	registered, err := cfg.Registry.Add(func(id uint32) control.Cancelable {
		c.id = id
		return c
	})
	if err != nil {
		_ = netConn.Close()
		return nil, err
	}
	_ = registered
	backend := cfg.NewBackend()
	c.sess = session.New(backend, c)
	return c, nil
}

// ConnectionID implements control.Cancelable and session.ConnRef.
func (c *Connection) ConnectionID() uint32 { return c.id }

// Cancel implements control.Cancelable; it never blocks.
func (c *Connection) Cancel(kind control.CancelKind) {
	select {
	case <-c.cancelCh:
	default:
	}
	select {
	case c.cancelCh <- kind:
	default:
	}
}

// Serve drives the connection through Handshake, Auth and the Command
// loop until the client disconnects, is killed, or a fatal protocol
// error occurs. Serve removes the connection from the registry itself
// before it returns.
func (c *Connection) Serve() error {
	defer c.cfg.Registry.Remove(c.id)
	defer c.stream.Close()
	defer func() {
		if c.sess.Backend != nil {
			_ = c.sess.Backend.Close()
		}
	}()

	if err := c.handshake(); err != nil {
		logger.WithFields(map[string]interface{}{"conn_id": c.id}).Warnf("handshake failed: %v", err)
		c.writeErrBestEffort(common.NewError(common.ErHandshakeError, "%s", err.Error()))
		return nil
	}

	if err := c.sess.Backend.Init(c.sess); err != nil {
		c.writeErrBestEffort(common.AsMySQLError(err))
		return nil
	}

	return c.commandLoop()
}

func (c *Connection) writeErrBestEffort(e *common.MySQLError) {
	_ = c.stream.WritePacket(protocol.EncodeErr(e.Code, e.SQLState(), e.Message))
	_ = c.stream.Flush()
}

func (c *Connection) handshake() error {
	nonce, err := protocol.NewNonce(20)
	if err != nil {
		return err
	}
	c.handshakeNonce = nonce
	c.handshakePlugin = c.cfg.DefaultAuthPlugin

	serverCaps := common.ServerCapabilities
	if c.cfg.TLSConfig != nil {
		serverCaps |= common.ClientSSL
	}

	greeting := protocol.HandshakeV10{
		ServerVersion:   c.cfg.ServerVersion,
		ConnectionID:    c.id,
		AuthPluginData:  nonce,
		CapabilityFlags: serverCaps,
		CharacterSet:    45, // utf8mb4_general_ci
		StatusFlags:     common.ServerStatusAutocommit,
		AuthPluginName:  c.handshakePlugin,
	}
	if err := c.stream.WritePacket(greeting.Encode()); err != nil {
		return err
	}
	if err := c.stream.Flush(); err != nil {
		return err
	}

	payload, err := c.stream.ReadPacket()
	if err != nil {
		return err
	}

	if caps, isSSL, ok := protocol.IsSSLRequest(payload); ok && isSSL {
		if c.cfg.TLSConfig == nil {
			return fmt.Errorf("client requested TLS but none is configured")
		}
		if err := c.stream.UpgradeTLS(c.cfg.TLSConfig); err != nil {
			return err
		}
		_ = caps
		payload, err = c.stream.ReadPacket()
		if err != nil {
			return err
		}
	}

	resp, err := protocol.DecodeHandshakeResponse41(payload)
	if err != nil {
		return err
	}

	c.capabilities = serverCaps & resp.CapabilityFlags
	c.maxPacketSize = resp.MaxPacketSize
	c.charset = resp.CharacterSet
	c.connectAttrs = resp.ConnectAttrs
	c.sess.Database = resp.Database

	outcome, err := c.runAuthLifecycle(resp.Username, resp.AuthResponse, resp.AuthPluginName, true)
	if err != nil {
		return err
	}
	if outcome.Kind != auth.OutcomeSuccess {
		e := common.NewError(common.ErAccessDeniedError, "Access denied for user '%s'", resp.Username)
		c.writeErrBestEffort(e)
		return e
	}

	c.sess.AuthenticatedUser = outcome.AuthenticatedAs
	c.sess.ExternalUser = resp.Username

	if err := c.stream.WritePacket(protocol.EncodeOK(0x00, 0, 0, common.ServerStatusAutocommit, 0, "")); err != nil {
		return err
	}
	if err := c.stream.Flush(); err != nil {
		return err
	}
	c.stream.ResetSeq()
	return nil
}

// runAuthLifecycle implements spec.md §4.F's plugin negotiation:
// optimistic resume when the client's plugin matches the handshake
// plugin, otherwise AuthSwitchRequest, then the Challenge/AuthMoreData
// loop until Success or Forbidden.
func (c *Connection) runAuthLifecycle(username string, firstResponse []byte, clientPluginName string, reuseHandshakeNonce bool) (auth.Outcome, error) {
	user, _ := c.cfg.Identity.GetUser(username)

	wantPlugin := c.handshakePlugin
	if user != nil && user.AuthPluginName != "" {
		wantPlugin = user.AuthPluginName
	}

	var plugin auth.Plugin
	var data []byte

	if wantPlugin == c.handshakePlugin && (clientPluginName == "" || clientPluginName == c.handshakePlugin) {
		var nonce []byte
		if reuseHandshakeNonce {
			nonce = c.handshakeNonce
		}
		plugin = c.lookupPlugin(c.handshakePlugin, nonce)
		if plugin == nil {
			return auth.Outcome{}, fmt.Errorf("unsupported auth plugin %q", c.handshakePlugin)
		}
		if _, err := plugin.Step(nil); err != nil {
			return auth.Outcome{}, err
		}
		data = firstResponse
	} else {
		var nonce []byte
		if reuseHandshakeNonce && wantPlugin == c.handshakePlugin {
			nonce = c.handshakeNonce
		}
		plugin = c.lookupPlugin(wantPlugin, nonce)
		if plugin == nil {
			return auth.Outcome{}, fmt.Errorf("unsupported auth plugin %q", wantPlugin)
		}
		initial, err := plugin.Step(nil)
		if err != nil {
			return auth.Outcome{}, err
		}
		if err := c.stream.WritePacket(protocol.EncodeAuthSwitchRequest(wantPlugin, initial.Challenge)); err != nil {
			return auth.Outcome{}, err
		}
		if err := c.stream.Flush(); err != nil {
			return auth.Outcome{}, err
		}
		resp, err := c.stream.ReadPacket()
		if err != nil {
			return auth.Outcome{}, err
		}
		data = resp
	}

	for {
		outcome, err := plugin.Step(&auth.Info{
			Username:     username,
			Data:         data,
			User:         user,
			ConnectAttrs: c.connectAttrs,
		})
		if err != nil {
			return auth.Outcome{}, err
		}
		switch outcome.Kind {
		case auth.OutcomeSuccess, auth.OutcomeForbidden:
			return outcome, nil
		case auth.OutcomeChallenge:
			if err := c.stream.WritePacket(protocol.EncodeAuthMoreData(outcome.Challenge)); err != nil {
				return auth.Outcome{}, err
			}
			if err := c.stream.Flush(); err != nil {
				return auth.Outcome{}, err
			}
			resp, err := c.stream.ReadPacket()
			if err != nil {
				return auth.Outcome{}, err
			}
			data = resp
		}
	}
}

// lookupPlugin prefers an application-supplied plugin (e.g. a
// mysql_clear_password configured with a real Check callback) and
// falls back to the built-in plugin of that name, per spec.md §6's
// GetPlugin contract.
func (c *Connection) lookupPlugin(name string, nonce []byte) auth.Plugin {
	if c.cfg.Identity != nil {
		if p, ok := c.cfg.Identity.GetPlugin(name); ok {
			return p
		}
	}
	return auth.NewPlugin(name, nonce)
}

func (c *Connection) schemaManager() (*schema.Manager, error) {
	raw, err := c.sess.Backend.Schema()
	if err != nil {
		return nil, err
	}
	return schema.NewManager(schema.NewMap(raw)), nil
}
