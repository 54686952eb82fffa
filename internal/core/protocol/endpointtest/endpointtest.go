// Package endpointtest runs the same loopback checks against every transport.
package endpointtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simcore/internal/core/protocol"
)

const waitFor = 5 * time.Second

// Collector accumulates polled events across calls.
type Collector struct {
	ep     protocol.Endpoint
	events []protocol.Event
}

func NewCollector(ep protocol.Endpoint) *Collector {
	return &Collector{ep: ep}
}

// Wait polls until an event of type typ is seen and returns it.
func (c *Collector) Wait(t *testing.T, typ protocol.EventType) protocol.Event {
	t.Helper()
	var found protocol.Event
	require.Eventually(t, func() bool {
		c.events = append(c.events, c.ep.Poll()...)
		for i, ev := range c.events {
			if ev.Type == typ {
				found = ev
				c.events = append(c.events[:i:i], c.events[i+1:]...)
				return true
			}
		}
		return false
	}, waitFor, 10*time.Millisecond, "no %s event", typ)
	return found
}

// Loopback listens on 127.0.0.1:0, dials it and checks connect, send in both
// directions, broadcast and disconnect.
func Loopback(t *testing.T, d protocol.Dialer) {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	server, err := d.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = server.Close() }()

	client, err := d.Dial(ctx, server.Addr().String())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	sc, cc := NewCollector(server), NewCollector(client)

	conn := sc.Wait(t, protocol.EventConnect)
	assert.NotEmpty(t, conn.RemoteAddr)
	serverSide := cc.Wait(t, protocol.EventConnect)
	assert.Equal(t, []protocol.PeerID{conn.Peer}, server.Peers())
	assert.Equal(t, []protocol.PeerID{serverSide.Peer}, client.Peers())

	require.NoError(t, client.Send(serverSide.Peer, []byte("first")))
	require.NoError(t, client.Send(serverSide.Peer, []byte("second")))
	got := sc.Wait(t, protocol.EventReceive)
	assert.Equal(t, conn.Peer, got.Peer)
	assert.Equal(t, []byte("first"), got.Data)
	got = sc.Wait(t, protocol.EventReceive)
	assert.Equal(t, []byte("second"), got.Data)

	require.NoError(t, server.Send(conn.Peer, []byte("pong")))
	require.NoError(t, server.Broadcast([]byte("everyone")))
	assert.Equal(t, []byte("pong"), cc.Wait(t, protocol.EventReceive).Data)
	assert.Equal(t, []byte("everyone"), cc.Wait(t, protocol.EventReceive).Data)

	assert.ErrorIs(t, server.Send("nobody", []byte("x")), protocol.ErrPeerNotFound)

	require.NoError(t, client.Close())
	gone := sc.Wait(t, protocol.EventDisconnect)
	assert.Equal(t, conn.Peer, gone.Peer)
	assert.Empty(t, server.Peers())
	assert.ErrorIs(t, client.Send(serverSide.Peer, nil), protocol.ErrEndpointClosed)
}
