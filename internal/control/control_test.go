package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       uint32
	canceled []CancelKind
}

func (c *fakeConn) ConnectionID() uint32   { return c.id }
func (c *fakeConn) Cancel(kind CancelKind) { c.canceled = append(c.canceled, kind) }

func TestRegistryAddAssignsUniqueIDsWithServerPrefix(t *testing.T) {
	reg := NewRegistry(7)
	var conns []*fakeConn
	newConn := func(id uint32) Cancelable {
		c := &fakeConn{id: id}
		conns = append(conns, c)
		return c
	}

	c1, err := reg.Add(newConn)
	require.NoError(t, err)
	c2, err := reg.Add(newConn)
	require.NoError(t, err)

	assert.NotEqual(t, c1.ConnectionID(), c2.ConnectionID())
	assert.Equal(t, uint16(7), uint16(c1.ConnectionID()>>16))
	assert.Equal(t, 2, reg.Count())
}

func TestRegistryRemoveDecrementsCount(t *testing.T) {
	reg := NewRegistry(1)
	conn, err := reg.Add(func(id uint32) Cancelable { return &fakeConn{id: id} })
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Count())

	reg.Remove(conn.ConnectionID())
	assert.Equal(t, 0, reg.Count())
}

func TestRegistryKillUnknownIDErrors(t *testing.T) {
	reg := NewRegistry(1)
	err := reg.Kill(999, "CONNECTION")
	assert.Error(t, err)
}

func TestRegistryKillDispatchesClassifiedCancel(t *testing.T) {
	reg := NewRegistry(1)
	var captured *fakeConn
	conn, err := reg.Add(func(id uint32) Cancelable {
		c := &fakeConn{id: id}
		captured = c
		return c
	})
	require.NoError(t, err)

	require.NoError(t, reg.Kill(conn.ConnectionID(), "QUERY"))
	require.Len(t, captured.canceled, 1)
	assert.Equal(t, CancelQuery, captured.canceled[0])

	require.NoError(t, reg.Kill(conn.ConnectionID(), "CONNECTION"))
	require.Len(t, captured.canceled, 2)
	assert.Equal(t, CancelConnection, captured.canceled[1])
}

func TestNewRegistryDefaultsNonZeroServerID(t *testing.T) {
	reg := NewRegistry(0)
	assert.NotZero(t, reg.serverID)
}
