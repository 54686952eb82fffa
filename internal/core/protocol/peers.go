package protocol

import (
	"errors"
	"sort"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// PeerTable is the peer set and event queue shared by the transports. Reader
// goroutines call Add, Receive and Remove; the owner calls Poll.
type PeerTable struct {
	mu     sync.Mutex
	peers  map[PeerID]PeerConn
	events []Event
	closed bool
}

func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[PeerID]PeerConn)}
}

// Add registers a connection and queues EventConnect. It fails once the
// table is closed; the caller then owns closing conn.
func (t *PeerTable) Add(id PeerID, remoteAddr string, conn PeerConn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrEndpointClosed
	}
	t.peers[id] = conn
	t.events = append(t.events, Event{Type: EventConnect, Peer: id, RemoteAddr: remoteAddr})
	return nil
}

// Remove forgets a connection and queues EventDisconnect. Unknown ids are
// ignored so a reader and Close may both call it.
func (t *PeerTable) Remove(id PeerID, remoteAddr string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.peers[id]; !ok {
		return
	}
	delete(t.peers, id)
	t.events = append(t.events, Event{Type: EventDisconnect, Peer: id, RemoteAddr: remoteAddr})
}

func (t *PeerTable) Receive(id PeerID, remoteAddr string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.events = append(t.events, Event{Type: EventReceive, Peer: id, RemoteAddr: remoteAddr, Data: data})
}

func (t *PeerTable) Poll() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.events
	t.events = nil
	return out
}

func (t *PeerTable) Send(id PeerID, data []byte) error {
	t.mu.Lock()
	conn, ok := t.peers[id]
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrEndpointClosed
	}
	if !ok {
		return pkgerrors.Wrapf(ErrPeerNotFound, "%s", id)
	}
	return conn.Send(data)
}

// Broadcast sends data to every peer and joins the failures.
func (t *PeerTable) Broadcast(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrEndpointClosed
	}
	conns := make(map[PeerID]PeerConn, len(t.peers))
	for id, c := range t.peers {
		conns[id] = c
	}
	t.mu.Unlock()

	var all error
	for id, c := range conns {
		if err := c.Send(data); err != nil {
			all = errors.Join(all, pkgerrors.Wrapf(err, "peer %s", id))
		}
	}
	return all
}

// Peers lists connected peers, sorted.
func (t *PeerTable) Peers() []PeerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PeerID, 0, len(t.peers))
	for id := range t.peers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close marks the table closed, closes every connection and drops pending
// events. It reports false if the table was already closed.
func (t *PeerTable) Close() (bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false, nil
	}
	t.closed = true
	conns := t.peers
	t.peers = make(map[PeerID]PeerConn)
	t.events = nil
	t.mu.Unlock()

	var all error
	for _, c := range conns {
		if err := c.Close(); err != nil {
			all = errors.Join(all, err)
		}
	}
	return true, all
}

func (t *PeerTable) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
