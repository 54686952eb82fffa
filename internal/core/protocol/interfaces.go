// Package protocol defines the transport contract used by the network bridge.
// Transports live in the websocket and quic subpackages.
package protocol

import (
	"context"
	"net"
)

// PeerID names one connection for the lifetime of an endpoint.
type PeerID string

type EventType uint8

const (
	EventConnect EventType = iota + 1
	EventDisconnect
	EventReceive
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Event is produced by transport goroutines and consumed by Poll.
type Event struct {
	Type       EventType
	Peer       PeerID
	RemoteAddr string
	// Data is set for EventReceive only.
	Data []byte
}

// Endpoint is one side of a connection set: a listening server or a dialed
// client. Delivery to a peer is reliable and ordered.
type Endpoint interface {
	// Poll drains the pending events without blocking. It has a single
	// consumer.
	Poll() []Event
	Send(peer PeerID, data []byte) error
	Broadcast(data []byte) error
	Peers() []PeerID
	Addr() net.Addr
	Close() error
}

// Dialer creates endpoints of one transport.
type Dialer interface {
	Name() string
	Listen(ctx context.Context, addr string) (Endpoint, error)
	Dial(ctx context.Context, addr string) (Endpoint, error)
}

// PeerConn is the write side of one transport connection.
type PeerConn interface {
	Send(data []byte) error
	Close() error
}
