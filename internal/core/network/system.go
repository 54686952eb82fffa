// Package network bridges the local message bus to remote hosts. Outgoing
// messages are encoded with a wire.Codec and sent through a protocol.Endpoint;
// incoming packets are decoded and emitted on the local bus during the tick.
package network

import (
	"context"
	"net"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/observability/log"
	"github.com/zeusync/simcore/internal/core/plugin"
	"github.com/zeusync/simcore/internal/core/protocol"
	"github.com/zeusync/simcore/internal/core/wire"
)

// Role is the endpoint role the system currently plays.
type Role uint8

const (
	RoleNone Role = iota
	RoleServer
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	default:
		return "none"
	}
}

type Config struct {
	Dialer protocol.Dialer
	Codec  wire.Codec
	// BindHost is the interface InitializeServer listens on. Empty means all.
	BindHost string
	// Forward lists message types broadcast to every peer when emitted
	// locally.
	Forward []ids.StringID
}

// NewFactory returns the built-in factory for the network system.
func NewFactory(cfg Config) plugin.Factory {
	return &plugin.FuncFactory{
		FactoryName:        "NetSystem",
		ComponentType:      TypeNet,
		FactoryDescription: "message bus to network bridge",
		FactoryVersion:     "1.0.0",
		New: func(m *entity.Manager) (entity.EntitySystem, error) {
			return NewNetSystem(m, cfg), nil
		},
	}
}

// NetSystem owns at most one endpoint. All methods run on the tick thread.
type NetSystem struct {
	*entity.DefaultSystem[*NetComponent]

	manager  *entity.Manager
	logger   log.Log
	dialer   protocol.Dialer
	codec    wire.Codec
	bindHost string

	endpoint protocol.Endpoint
	role     Role
	peers    map[protocol.PeerID]string
	// the client's only peer
	serverPeer protocol.PeerID

	tickFunctor *bus.Functor
	ticking     bool

	forward        []ids.StringID
	forwardFunctor *bus.Functor
	// set while a received message is re-emitted so it is not sent back out
	replaying bool
}

func NewNetSystem(m *entity.Manager, cfg Config) *NetSystem {
	s := &NetSystem{
		DefaultSystem: entity.NewDefaultSystem(TypeNet, func() *NetComponent { return &NetComponent{} }),
		manager:       m,
		logger:        m.Logger().With(log.String("system", "net")),
		dialer:        cfg.Dialer,
		codec:         cfg.Codec,
		bindHost:      cfg.BindHost,
		peers:         make(map[protocol.PeerID]string),
		forward:       append([]ids.StringID(nil), cfg.Forward...),
	}
	s.tickFunctor = bus.NewFunctor(s.tick)
	s.forwardFunctor = bus.NewFunctor(s.onForward)
	return s
}

func (s *NetSystem) OnAddedToEntityManager(m *entity.Manager) error {
	if err := s.DefaultSystem.OnAddedToEntityManager(m); err != nil {
		return err
	}
	for _, t := range s.forward {
		if err := m.RegisterForMessages(t, s.forwardFunctor, bus.OrderLate, "NetSystem.forward"); err != nil {
			return err
		}
	}
	return nil
}

func (s *NetSystem) OnRemovedFromEntityManager(m *entity.Manager) {
	s.Disconnect()
	for _, t := range s.forward {
		m.UnregisterForMessages(t, s.forwardFunctor)
	}
	s.DefaultSystem.OnRemovedFromEntityManager(m)
}

func (s *NetSystem) CreateComponent(e entity.Entity) (entity.Component, error) {
	return s.DefaultSystem.CreateComponent(e)
}

func (s *NetSystem) Role() Role {
	return s.role
}

// Peers lists connected peers, sorted.
func (s *NetSystem) Peers() []protocol.PeerID {
	out := make([]protocol.PeerID, 0, len(s.peers))
	for id := range s.peers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *NetSystem) PeerAddress(id protocol.PeerID) (string, bool) {
	addr, ok := s.peers[id]
	return addr, ok
}

func (s *NetSystem) Endpoint() protocol.Endpoint {
	return s.endpoint
}

// InitializeServer listens on port, replacing any previous endpoint.
func (s *NetSystem) InitializeServer(ctx context.Context, port int) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.Disconnect()

	addr := net.JoinHostPort(s.bindHost, strconv.Itoa(port))
	ep, err := s.dialer.Listen(ctx, addr)
	if err != nil {
		s.logger.Error("Could not create server endpoint", log.String("addr", addr), log.Error(err))
		return errors.Wrapf(err, "initialize server on %s", addr)
	}
	return s.start(ep, RoleServer)
}

// Connect dials host:port, replacing any previous endpoint.
func (s *NetSystem) Connect(ctx context.Context, host string, port int) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.Disconnect()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ep, err := s.dialer.Dial(ctx, addr)
	if err != nil {
		s.logger.Error("Could not connect", log.String("addr", addr), log.Error(err))
		return errors.Wrapf(err, "connect to %s", addr)
	}
	return s.start(ep, RoleClient)
}

func (s *NetSystem) ready() error {
	if s.dialer == nil {
		return ErrNoDialer
	}
	if s.codec == nil {
		return ErrNoCodec
	}
	return nil
}

func (s *NetSystem) start(ep protocol.Endpoint, role Role) error {
	if err := s.manager.RegisterForMessages(messages.TypeTick, s.tickFunctor, bus.OrderLate, "NetSystem.tick"); err != nil {
		_ = ep.Close()
		return err
	}
	s.endpoint = ep
	s.role = role
	s.ticking = true
	s.logger.Info("Network started",
		log.String("role", role.String()),
		log.String("transport", s.dialer.Name()),
		log.String("addr", ep.Addr().String()))
	return nil
}

// Disconnect stops polling and closes the endpoint. Peers are forgotten
// without PeerDisconnectedMessages. Calling it while disconnected does
// nothing.
func (s *NetSystem) Disconnect() {
	if s.ticking {
		s.manager.UnregisterForMessages(messages.TypeTick, s.tickFunctor)
		s.ticking = false
	}
	if s.endpoint == nil {
		return
	}
	if err := s.endpoint.Close(); err != nil {
		s.logger.Warn("Endpoint close failed", log.Error(err))
	}
	s.endpoint = nil
	s.role = RoleNone
	s.serverPeer = ""
	clear(s.peers)
	s.logger.Info("Network stopped")
}

// Broadcast sends msg to every connected peer.
func (s *NetSystem) Broadcast(msg bus.Message) error {
	if s.endpoint == nil {
		return ErrNotConnected
	}
	data, err := s.codec.Encode(msg)
	if err != nil {
		s.logger.Error("Could not encode message", log.String("type", msg.Type().String()), log.Error(err))
		return err
	}
	return s.endpoint.Broadcast(data)
}

// SendToPeer sends msg to the server this client is connected to.
func (s *NetSystem) SendToPeer(msg bus.Message) error {
	if s.endpoint == nil || s.serverPeer == "" {
		s.logger.Error("Cannot send to peer, no connection")
		return ErrNoPeer
	}
	return s.SendTo(s.serverPeer, msg)
}

func (s *NetSystem) SendTo(peer protocol.PeerID, msg bus.Message) error {
	if s.endpoint == nil {
		return ErrNotConnected
	}
	if _, ok := s.peers[peer]; !ok {
		return errors.Wrapf(ErrNoPeer, "%s", peer)
	}
	data, err := s.codec.Encode(msg)
	if err != nil {
		s.logger.Error("Could not encode message", log.String("type", msg.Type().String()), log.Error(err))
		return err
	}
	return s.endpoint.Send(peer, data)
}

// tick drains the endpoint. Handler failures of re-emitted messages are
// logged; the tick itself never fails.
func (s *NetSystem) tick(bus.Message) error {
	if s.endpoint == nil {
		return nil
	}
	for _, ev := range s.endpoint.Poll() {
		switch ev.Type {
		case protocol.EventConnect:
			s.peers[ev.Peer] = ev.RemoteAddr
			if s.role == RoleClient {
				s.serverPeer = ev.Peer
			}
			s.logger.Info("Peer connected", log.String("peer", string(ev.Peer)), log.String("remote_addr", ev.RemoteAddr))
			s.emit(messages.PeerConnectedMessage{PeerID: string(ev.Peer), Address: ev.RemoteAddr})

		case protocol.EventDisconnect:
			delete(s.peers, ev.Peer)
			if ev.Peer == s.serverPeer {
				s.serverPeer = ""
			}
			s.logger.Info("Peer disconnected", log.String("peer", string(ev.Peer)))
			s.emit(messages.PeerDisconnectedMessage{PeerID: string(ev.Peer), Address: ev.RemoteAddr})

		case protocol.EventReceive:
			msg, err := s.codec.Decode(ev.Data)
			if err != nil {
				s.logger.Error("Could not decode message", log.String("peer", string(ev.Peer)), log.Error(err))
				continue
			}
			s.replaying = true
			s.emit(msg)
			s.replaying = false
		}
		// a handler may have disconnected us
		if s.endpoint == nil {
			return nil
		}
	}
	return nil
}

func (s *NetSystem) onForward(msg bus.Message) error {
	if s.replaying || s.endpoint == nil {
		return nil
	}
	return s.Broadcast(msg)
}

func (s *NetSystem) emit(msg bus.Message) {
	if err := s.manager.EmitMessage(msg); err != nil {
		s.logger.Warn("Message handler failed", log.String("type", msg.Type().String()), log.Error(err))
	}
}
