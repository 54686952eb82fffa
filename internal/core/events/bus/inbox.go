package bus

import (
	"errors"
	"sync"
)

// Inbox is a serializing queue into the tick thread. Any goroutine may Post;
// only the goroutine that owns the Bus may Drain.
type Inbox struct {
	mu      sync.Mutex
	pending []Message
}

// NewInbox creates an empty inbox.
func NewInbox() *Inbox {
	return &Inbox{}
}

// Post enqueues msg for delivery on the next Drain. Nil messages are ignored.
func (in *Inbox) Post(msg Message) {
	if msg == nil {
		return
	}
	in.mu.Lock()
	in.pending = append(in.pending, msg)
	in.mu.Unlock()
}

// Len returns the number of queued messages.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Drain emits every queued message on b in FIFO order. Messages posted while
// draining wait for the next Drain. Emission errors are joined.
func (in *Inbox) Drain(b *Bus) error {
	in.mu.Lock()
	batch := in.pending
	in.pending = nil
	in.mu.Unlock()

	var all error
	for _, msg := range batch {
		if err := b.EmitMessage(msg); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}
