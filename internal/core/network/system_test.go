package network

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/plugin"
	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/internal/core/wire"
)

type memEndpoint struct {
	addr       string
	pending    []protocol.Event
	sent       map[protocol.PeerID][][]byte
	broadcasts [][]byte
	closed     bool
}

func (e *memEndpoint) Poll() []protocol.Event {
	out := e.pending
	e.pending = nil
	return out
}

func (e *memEndpoint) Send(peer protocol.PeerID, data []byte) error {
	e.sent[peer] = append(e.sent[peer], data)
	return nil
}

func (e *memEndpoint) Broadcast(data []byte) error {
	e.broadcasts = append(e.broadcasts, data)
	return nil
}

func (e *memEndpoint) Peers() []protocol.PeerID { return nil }

func (e *memEndpoint) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 7000}
}

func (e *memEndpoint) Close() error {
	e.closed = true
	return nil
}

type memDialer struct {
	endpoints []*memEndpoint
	fail      error
}

func (d *memDialer) Name() string { return "mem" }

func (d *memDialer) open(addr string) (protocol.Endpoint, error) {
	if d.fail != nil {
		return nil, d.fail
	}
	ep := &memEndpoint{addr: addr, sent: make(map[protocol.PeerID][][]byte)}
	d.endpoints = append(d.endpoints, ep)
	return ep, nil
}

func (d *memDialer) Listen(_ context.Context, addr string) (protocol.Endpoint, error) {
	return d.open(addr)
}

func (d *memDialer) Dial(_ context.Context, addr string) (protocol.Endpoint, error) {
	return d.open(addr)
}

func (d *memDialer) last() *memEndpoint {
	return d.endpoints[len(d.endpoints)-1]
}

type fixture struct {
	bus     *bus.Bus
	manager *entity.Manager
	dialer  *memDialer
	codec   wire.Codec
	system  *NetSystem
	got     []bus.Message
}

func newFixture(t *testing.T, forward ...ids.StringID) *fixture {
	t.Helper()
	f := &fixture{
		bus:    bus.New(),
		dialer: &memDialer{},
		codec:  wire.NewProtoCodec(messages.NewFactory()),
	}
	f.manager = entity.NewManager(f.bus, log.NewNop())

	loader := plugin.NewLoader(f.manager, log.NewNop())
	loader.AddFactory(NewFactory(Config{Dialer: f.dialer, Codec: f.codec, Forward: forward}))
	require.NoError(t, loader.StartEntitySystem(TypeNet))

	sys, err := entity.SystemAs[*NetSystem](f.manager, TypeNet)
	require.NoError(t, err)
	f.system = sys

	for _, typ := range []ids.StringID{messages.TypeSpawnEntity, messages.TypePeerConnected, messages.TypePeerDisconnected} {
		require.NoError(t, f.bus.RegisterForMessages(typ, bus.NewFunctor(func(msg bus.Message) error {
			f.got = append(f.got, msg)
			return nil
		}), bus.OrderDefault, "test"))
	}
	return f
}

func (f *fixture) tick(t *testing.T) {
	t.Helper()
	require.NoError(t, f.bus.EmitMessage(messages.TickMessage{DeltaSeconds: 0.016}))
}

func (f *fixture) encode(t *testing.T, msg bus.Message) []byte {
	t.Helper()
	data, err := f.codec.Encode(msg)
	require.NoError(t, err)
	return data
}

func TestInitializeServerSubscribesLate(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))

	assert.Equal(t, RoleServer, f.system.Role())
	assert.Equal(t, ":7000", f.dialer.last().addr)
	assert.Equal(t, []bus.SubscriberInfo{{DebugName: "NetSystem.tick", Order: bus.OrderLate}},
		f.bus.Subscribers(messages.TypeTick))
}

func TestTickHandlesEvents(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	ep := f.dialer.last()

	spawn := messages.SpawnEntityMessage{SpawnerName: "tree", UniqueID: "t1", AddToScene: true}
	ep.pending = []protocol.Event{
		{Type: protocol.EventConnect, Peer: "p1", RemoteAddr: "10.0.0.2:4000"},
		{Type: protocol.EventReceive, Peer: "p1", Data: []byte{0xff, 0x01}},
		{Type: protocol.EventReceive, Peer: "p1", Data: f.encode(t, spawn)},
	}
	f.tick(t)

	assert.Equal(t, []protocol.PeerID{"p1"}, f.system.Peers())
	addr, ok := f.system.PeerAddress("p1")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2:4000", addr)
	// the undecodable packet is dropped
	assert.Equal(t, []bus.Message{
		messages.PeerConnectedMessage{PeerID: "p1", Address: "10.0.0.2:4000"},
		spawn,
	}, f.got)

	f.got = nil
	ep.pending = []protocol.Event{{Type: protocol.EventDisconnect, Peer: "p1", RemoteAddr: "10.0.0.2:4000"}}
	f.tick(t)
	assert.Empty(t, f.system.Peers())
	assert.Equal(t, []bus.Message{messages.PeerDisconnectedMessage{PeerID: "p1", Address: "10.0.0.2:4000"}}, f.got)
}

func TestSendToPeer(t *testing.T) {
	f := newFixture(t)
	msg := messages.DeleteEntityMessage{UniqueID: "t1"}
	assert.ErrorIs(t, f.system.SendToPeer(msg), ErrNoPeer)

	require.NoError(t, f.system.Connect(context.Background(), "example.org", 7000))
	assert.Equal(t, RoleClient, f.system.Role())
	assert.Equal(t, "example.org:7000", f.dialer.last().addr)
	// connected, but the handshake has not been polled yet
	assert.ErrorIs(t, f.system.SendToPeer(msg), ErrNoPeer)

	ep := f.dialer.last()
	ep.pending = []protocol.Event{{Type: protocol.EventConnect, Peer: "server"}}
	f.tick(t)

	require.NoError(t, f.system.SendToPeer(msg))
	require.Len(t, ep.sent["server"], 1)
	decoded, err := f.codec.Decode(ep.sent["server"][0])
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	assert.ErrorIs(t, f.system.SendTo("stranger", msg), ErrNoPeer)
}

func TestServerHasNoSinglePeer(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	f.dialer.last().pending = []protocol.Event{{Type: protocol.EventConnect, Peer: "p1"}}
	f.tick(t)

	assert.ErrorIs(t, f.system.SendToPeer(messages.DeleteEntityMessage{}), ErrNoPeer)
	assert.NoError(t, f.system.SendTo("p1", messages.DeleteEntityMessage{}))
}

func TestBroadcast(t *testing.T) {
	f := newFixture(t)
	msg := messages.SceneLoadedMessage{SceneName: "main"}
	assert.ErrorIs(t, f.system.Broadcast(msg), ErrNotConnected)

	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	require.NoError(t, f.system.Broadcast(msg))
	require.Len(t, f.dialer.last().broadcasts, 1)
}

func TestRestartTearsDownPreviousEndpoint(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	first := f.dialer.last()
	first.pending = []protocol.Event{{Type: protocol.EventConnect, Peer: "p1"}}
	f.tick(t)

	require.NoError(t, f.system.Connect(context.Background(), "localhost", 7001))
	assert.True(t, first.closed)
	assert.Empty(t, f.system.Peers())
	assert.Equal(t, RoleClient, f.system.Role())
	assert.Len(t, f.bus.Subscribers(messages.TypeTick), 1)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	f.system.Disconnect()

	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	f.system.Disconnect()
	f.system.Disconnect()

	assert.True(t, f.dialer.last().closed)
	assert.Equal(t, RoleNone, f.system.Role())
	assert.Empty(t, f.bus.Subscribers(messages.TypeTick))
	assert.Nil(t, f.system.Endpoint())
}

func TestFailedStartLeavesNoSubscription(t *testing.T) {
	f := newFixture(t)
	f.dialer.fail = errors.New("address in use")

	err := f.system.InitializeServer(context.Background(), 7000)
	require.Error(t, err)
	assert.Equal(t, RoleNone, f.system.Role())
	assert.Empty(t, f.bus.Subscribers(messages.TypeTick))
}

func TestForwardDoesNotEchoReceivedMessages(t *testing.T) {
	f := newFixture(t, messages.TypeSpawnEntity)
	require.NoError(t, f.system.InitializeServer(context.Background(), 7000))
	ep := f.dialer.last()

	require.NoError(t, f.bus.EmitMessage(messages.SpawnEntityMessage{SpawnerName: "local"}))
	require.Len(t, ep.broadcasts, 1)

	ep.pending = []protocol.Event{
		{Type: protocol.EventConnect, Peer: "p1"},
		{Type: protocol.EventReceive, Peer: "p1", Data: f.encode(t, messages.SpawnEntityMessage{SpawnerName: "remote"})},
	}
	f.tick(t)
	assert.Len(t, ep.broadcasts, 1)
}

func TestNoTransportConfigured(t *testing.T) {
	m := entity.NewManager(bus.New(), log.NewNop())
	s := NewNetSystem(m, Config{})
	require.NoError(t, m.AddEntitySystem(s))
	assert.ErrorIs(t, s.InitializeServer(context.Background(), 1), ErrNoDialer)
}
