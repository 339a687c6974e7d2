// Package mimicd wires together the connection registry, identity
// store and backend factory into a listening server. Grounded on the
// teacher's server/net/mysql_server.go MySQLServer for the startup
// banner and signal-driven shutdown shape, adapted from its getty
// event-loop registration to a plain net.Listener accept loop since
// this front end runs one goroutine per connection (see
// internal/conn's package doc).
package mimicd

import (
	"crypto/tls"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	log "github.com/AlexStocks/log4go"

	"github.com/mimicd/mimicd/internal/conf"
	"github.com/mimicd/mimicd/internal/conn"
	"github.com/mimicd/mimicd/internal/control"
	"github.com/mimicd/mimicd/internal/logger"
	"github.com/mimicd/mimicd/internal/session"
)

const banner = `
******************************************************************************************
  mimicd - a MySQL wire-protocol front end
******************************************************************************************
`

// Server owns the listening socket(s), the connection registry and the
// identity/backend factories every accepted connection is configured
// with.
type Server struct {
	cfg      *conf.Config
	identity conn.IdentityProvider
	newBack  func() session.Backend
	tlsCfg   *tls.Config
	registry *control.Registry

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// New builds a Server from cfg, an identity provider and a backend
// factory (called once per accepted connection).
func New(cfg *conf.Config, identity conn.IdentityProvider, newBackend func() session.Backend, tlsCfg *tls.Config) *Server {
	return &Server{
		cfg:      cfg,
		identity: identity,
		newBack:  newBackend,
		tlsCfg:   tlsCfg,
		registry: control.NewRegistry(0),
	}
}

// Registry exposes the connection registry, e.g. for an admin
// interface to report Count() or issue a Kill.
func (s *Server) Registry() *control.Registry { return s.registry }

// Start binds the configured TCP (and, if set, Unix-socket) listeners
// and begins accepting connections, each served on its own goroutine.
// It returns once both listeners are bound; call Wait to block until
// the server is asked to shut down.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	log.Info(banner)
	log.Info("mimicd listening on %s", addr)
	s.wg.Add(1)
	go s.acceptLoop(ln)

	if s.cfg.SocketPath != "" {
		uln, err := net.Listen("unix", s.cfg.SocketPath)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, uln)
		s.mu.Unlock()
		log.Info("mimicd listening on unix:%s", s.cfg.SocketPath)
		s.wg.Add(1)
		go s.acceptLoop(uln)
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		netConn, err := ln.Accept()
		if err != nil {
			log.Info("listener %s closed: %v", ln.Addr(), err)
			return
		}
		go s.serve(netConn)
	}
}

func (s *Server) serve(netConn net.Conn) {
	c, err := conn.New(netConn, conn.Config{
		ServerVersion:     s.cfg.VersionString(),
		DefaultAuthPlugin: s.cfg.DefaultAuthPlugin,
		TLSConfig:         s.tlsCfg,
		Identity:          s.identity,
		NewBackend:        s.newBack,
		Registry:          s.registry,
	})
	if err != nil {
		log.Warn("connection rejected: %v", err)
		return
	}
	if err := c.Serve(); err != nil {
		logger.WithFields(map[string]interface{}{"conn_id": c.ConnectionID()}).Warnf("connection ended: %v", err)
	}
}

// Stop closes every listener. Connections already accepted are not
// closed; they keep being served until they end on their own.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		_ = ln.Close()
	}
}

// Wait blocks until every accept loop has returned.
func (s *Server) Wait() { s.wg.Wait() }

// WaitForSignal blocks until SIGINT/SIGTERM/SIGHUP/SIGQUIT is received,
// then stops the server, matching the teacher's initSignal shape.
func (s *Server) WaitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
	sig := <-signals
	log.Info("received signal %s, shutting down", sig.String())
	s.Stop()
	s.Wait()
	log.Info("mimicd exited")
}
