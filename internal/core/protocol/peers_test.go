package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memConn struct {
	sent   [][]byte
	fail   error
	closed int
}

func (c *memConn) Send(data []byte) error {
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *memConn) Close() error {
	c.closed++
	return nil
}

func TestPeerTableEventsInOrder(t *testing.T) {
	table := NewPeerTable()
	require.NoError(t, table.Add("a", "1.1.1.1:1", &memConn{}))
	table.Receive("a", "1.1.1.1:1", []byte("x"))
	table.Remove("a", "1.1.1.1:1")
	table.Remove("a", "1.1.1.1:1")

	events := table.Poll()
	require.Len(t, events, 3)
	assert.Equal(t, EventConnect, events[0].Type)
	assert.Equal(t, EventReceive, events[1].Type)
	assert.Equal(t, []byte("x"), events[1].Data)
	assert.Equal(t, EventDisconnect, events[2].Type)
	assert.Empty(t, table.Poll())
}

func TestPeerTableSend(t *testing.T) {
	table := NewPeerTable()
	a, b := &memConn{}, &memConn{fail: errors.New("broken pipe")}
	require.NoError(t, table.Add("a", "", a))
	require.NoError(t, table.Add("b", "", b))

	require.NoError(t, table.Send("a", []byte("hi")))
	assert.Equal(t, [][]byte{[]byte("hi")}, a.sent)
	assert.ErrorIs(t, table.Send("zz", nil), ErrPeerNotFound)

	err := table.Broadcast([]byte("all"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peer b")
	assert.Len(t, a.sent, 2)

	assert.Equal(t, []PeerID{"a", "b"}, table.Peers())
}

func TestPeerTableClose(t *testing.T) {
	table := NewPeerTable()
	a := &memConn{}
	require.NoError(t, table.Add("a", "", a))

	first, err := table.Close()
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, 1, a.closed)
	assert.Empty(t, table.Poll())
	assert.Empty(t, table.Peers())

	first, _ = table.Close()
	assert.False(t, first)
	assert.ErrorIs(t, table.Add("b", "", &memConn{}), ErrEndpointClosed)
	assert.ErrorIs(t, table.Send("a", nil), ErrEndpointClosed)
	assert.ErrorIs(t, table.Broadcast(nil), ErrEndpointClosed)
}
