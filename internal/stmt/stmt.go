// Package stmt implements the per-connection prepared-statement table:
// id allocation, long-data parameter buffers, and the server-side
// cursor handle a statement may own while a client drains it with
// COM_STMT_FETCH.
package stmt

import (
	"sync"

	"github.com/mimicd/mimicd/internal/result"
)

// Statement is one prepared statement, per spec.md §3's PreparedStatement.
type Statement struct {
	ID            uint32
	SQL           string
	NumParams     uint16
	ParamColumns  []result.Column

	mu           sync.Mutex
	paramBuffers map[uint16][]byte
	cursor       result.RowIter
	cursorCols   []result.Column
}

// AppendLongData accumulates a COM_STMT_SEND_LONG_DATA chunk for
// paramID, creating the buffer map on first use.
func (s *Statement) AppendLongData(paramID uint16, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paramBuffers == nil {
		s.paramBuffers = make(map[uint16][]byte)
	}
	s.paramBuffers[paramID] = append(s.paramBuffers[paramID], data...)
}

// LongData returns the accumulated long-data buffer for paramID, if any.
func (s *Statement) LongData(paramID uint16) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.paramBuffers[paramID]
	return b, ok
}

// ClearBuffers drops accumulated long-data buffers and closes any open
// cursor; called on every COM_STMT_EXECUTE regardless of outcome, and
// by COM_STMT_RESET, per spec.md §3's invariants.
func (s *Statement) ClearBuffers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramBuffers = nil
	s.cursor = nil
	s.cursorCols = nil
}

// OpenCursor stashes rows as this statement's open server-side cursor.
func (s *Statement) OpenCursor(cols []result.Column, rows result.RowIter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursorCols = cols
	s.cursor = rows
}

// HasCursor reports whether a cursor is currently open.
func (s *Statement) HasCursor() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor != nil
}

// Fetch pulls up to n rows from the open cursor, returning whether the
// cursor was exhausted by this call (LAST_ROW_SENT) or not
// (CURSOR_EXISTS).
func (s *Statement) Fetch(n int) (rows []result.Row, lastRowSent bool, err error) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()
	if cursor == nil {
		return nil, true, nil
	}
	for i := 0; i < n; i++ {
		row, ok, err := cursor.Next()
		if err != nil {
			return rows, true, err
		}
		if !ok {
			s.mu.Lock()
			s.cursor = nil
			s.mu.Unlock()
			return rows, true, nil
		}
		rows = append(rows, row)
	}
	return rows, false, nil
}

// CursorColumns returns the column descriptors for the open cursor.
func (s *Statement) CursorColumns() []result.Column {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorCols
}

// Table is a connection-owned map of prepared statements.
type Table struct {
	mu       sync.Mutex
	byID     map[uint32]*Statement
	nextID   uint32
}

// NewTable returns an empty prepared-statement table.
func NewTable() *Table {
	return &Table{byID: make(map[uint32]*Statement)}
}

// Prepare allocates a new Statement with the next id.
func (t *Table) Prepare(sql string, numParams uint16, paramCols []result.Column) *Statement {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	s := &Statement{ID: t.nextID, SQL: sql, NumParams: numParams, ParamColumns: paramCols}
	t.byID[s.ID] = s
	return s
}

// Get looks up a statement by id.
func (t *Table) Get(id uint32) (*Statement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byID[id]
	return s, ok
}

// Close drops a statement from the table.
func (t *Table) Close(id uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// CloseAll drops every statement, used on COM_CHANGE_USER / COM_RESET_CONNECTION.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[uint32]*Statement)
}
