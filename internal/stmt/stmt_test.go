package stmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimicd/mimicd/internal/result"
)

func TestTablePrepareAllocatesIncreasingIDs(t *testing.T) {
	table := NewTable()
	s1 := table.Prepare("SELECT 1", 0, nil)
	s2 := table.Prepare("SELECT ?", 1, nil)
	assert.Equal(t, uint32(1), s1.ID)
	assert.Equal(t, uint32(2), s2.ID)

	got, ok := table.Get(s1.ID)
	require.True(t, ok)
	assert.Same(t, s1, got)
}

func TestTableCloseRemovesStatement(t *testing.T) {
	table := NewTable()
	s := table.Prepare("SELECT 1", 0, nil)
	table.Close(s.ID)
	_, ok := table.Get(s.ID)
	assert.False(t, ok)
}

func TestTableCloseAllClearsEverything(t *testing.T) {
	table := NewTable()
	s1 := table.Prepare("SELECT 1", 0, nil)
	s2 := table.Prepare("SELECT 2", 0, nil)
	table.CloseAll()
	_, ok1 := table.Get(s1.ID)
	_, ok2 := table.Get(s2.ID)
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestStatementLongDataAccumulates(t *testing.T) {
	s := &Statement{}
	s.AppendLongData(0, []byte("hel"))
	s.AppendLongData(0, []byte("lo"))
	buf, ok := s.LongData(0)
	require.True(t, ok)
	assert.Equal(t, "hello", string(buf))

	_, ok = s.LongData(1)
	assert.False(t, ok)
}

func TestStatementClearBuffersDropsCursorAndLongData(t *testing.T) {
	s := &Statement{}
	s.AppendLongData(0, []byte("x"))
	s.OpenCursor([]result.Column{{Name: "a"}}, result.NewSliceIter(nil))
	s.ClearBuffers()
	_, ok := s.LongData(0)
	assert.False(t, ok)
	assert.False(t, s.HasCursor())
}

func TestStatementCursorFetchPartialThenExhausted(t *testing.T) {
	s := &Statement{}
	rows := []result.Row{{1}, {2}, {3}}
	s.OpenCursor([]result.Column{{Name: "a"}}, result.NewSliceIter(rows))
	assert.True(t, s.HasCursor())

	got, last, err := s.Fetch(2)
	require.NoError(t, err)
	assert.False(t, last)
	assert.Len(t, got, 2)
	assert.True(t, s.HasCursor())

	got, last, err = s.Fetch(2)
	require.NoError(t, err)
	assert.True(t, last)
	assert.Len(t, got, 1)
	assert.False(t, s.HasCursor())
}

func TestStatementFetchWithNoCursorReturnsLastRowSent(t *testing.T) {
	s := &Statement{}
	rows, last, err := s.Fetch(10)
	require.NoError(t, err)
	assert.True(t, last)
	assert.Nil(t, rows)
}

func TestStatementCursorColumns(t *testing.T) {
	s := &Statement{}
	cols := []result.Column{{Name: "a"}, {Name: "b"}}
	s.OpenCursor(cols, result.NewSliceIter(nil))
	assert.Equal(t, cols, s.CursorColumns())
}
