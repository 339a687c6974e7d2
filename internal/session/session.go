package session

import (
	"time"

	"github.com/mimicd/mimicd/internal/result"
	"github.com/mimicd/mimicd/internal/sqlast"
)

// Backend is the pluggable SQL execution sink every statement
// eventually reaches if nothing in the middleware chain claims it.
// Out of scope per spec.md §1; this is the contract the core depends
// on.
type Backend interface {
	Query(stmt sqlast.Statement, sqlText string, attrs map[string]string) (*result.Set, error)
	Schema() (map[string]map[string]map[string]string, error)
	Init(s *Session) error
	Close() error
	Reset() error
	Use(db string) error
}

// ConnRef is the weak back-reference Session keeps to its owning
// Connection, used only for CONNECTION_ID() and kill dispatch, per
// spec.md §9's note on breaking the Session/Connection cyclic
// reference rather than modeling bidirectional ownership.
type ConnRef interface {
	ConnectionID() uint32
}

// Session holds per-connection state that survives across commands but
// not across COM_CHANGE_USER/COM_RESET_CONNECTION (see Reset), per
// spec.md §3.
type Session struct {
	Database          string
	AuthenticatedUser string
	ExternalUser      string
	Vars              *Variables
	Backend           Backend
	Conn              ConnRef

	// nowFreeze is set at the start of each top-level statement by the
	// middleware chain (stage 2, information-function substitution) so
	// NOW()/CURDATE()/CURTIME() read one consistent value throughout
	// that statement, per spec.md §4.G stage 2.
	nowFreeze time.Time
}

// New constructs a Session bound to backend and conn.
func New(backend Backend, conn ConnRef) *Session {
	return &Session{Vars: NewVariables(nil), Backend: backend, Conn: conn}
}

// FreezeNow latches the current wall-clock time for one statement.
func (s *Session) FreezeNow() { s.nowFreeze = time.Now() }

// Now returns the latched time, or the real current time if none has
// been frozen yet this statement.
func (s *Session) Now() time.Time {
	if s.nowFreeze.IsZero() {
		return time.Now()
	}
	return s.nowFreeze
}

// Reset clears session state back to a freshly-authenticated baseline,
// called on COM_CHANGE_USER and COM_RESET_CONNECTION.
func (s *Session) Reset() error {
	s.Database = ""
	s.Vars = NewVariables(nil)
	if s.Backend != nil {
		return s.Backend.Reset()
	}
	return nil
}

// Use assigns the current database, delegating to the backend so it
// can validate/track it, then updating local state once the backend
// accepts it; a backend error is returned and leaves the current
// database unchanged (spec.md §4.G stage 5 treats USE as producing an
// empty result once the assignment is made).
func (s *Session) Use(db string) error {
	if s.Backend != nil {
		if err := s.Backend.Use(db); err != nil {
			return err
		}
	}
	s.Database = db
	return nil
}
