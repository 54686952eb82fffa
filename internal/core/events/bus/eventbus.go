package bus

import (
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/ids"
)

type subscription struct {
	functor   *Functor
	order     Order
	debugName string
	active    bool
}

// Bus is the process-wide message router. Dispatch is synchronous and
// depth-first: a message emitted from inside a handler is fully delivered
// before the outer emission continues.
//
// The bus is not safe for concurrent use. It belongs to the tick thread; other
// goroutines hand messages over through an Inbox.
type Bus struct {
	// handlers: type -> subscriptions ordered by (order, registration)
	handlers  map[ids.StringID][]*subscription
	observers []Observer
	metrics   Metrics
	depth     int
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		handlers: make(map[ids.StringID][]*subscription),
	}
}

// RegisterForMessages subscribes functor to msgType. Registering a functor that
// is already subscribed to msgType replaces its order and debug name; it is
// never delivered twice.
func (b *Bus) RegisterForMessages(msgType ids.StringID, functor *Functor, order Order, debugName string) error {
	if functor == nil || functor.fn == nil {
		return ErrNilFunctor
	}

	subs := b.handlers[msgType]
	for i, s := range subs {
		if s.functor != functor {
			continue
		}
		if s.order == order {
			s.debugName = debugName
			return nil
		}
		s.active = false
		subs = append(subs[:i:i], subs[i+1:]...)
		break
	}

	sub := &subscription{functor: functor, order: order, debugName: debugName, active: true}

	// insert after the last subscription of the same or an earlier bucket
	pos := len(subs)
	for i, s := range subs {
		if s.order > order {
			pos = i
			break
		}
	}
	// build a fresh slice: an emission in progress holds the old one
	next := make([]*subscription, 0, len(subs)+1)
	next = append(next, subs[:pos]...)
	next = append(next, sub)
	next = append(next, subs[pos:]...)
	b.handlers[msgType] = next
	return nil
}

// UnregisterForMessages removes functor from msgType. A removal during an
// emission prevents delivery to functor if it has not run yet. Returns false if
// the functor was not registered.
func (b *Bus) UnregisterForMessages(msgType ids.StringID, functor *Functor) bool {
	subs := b.handlers[msgType]
	for i, s := range subs {
		if s.functor != functor {
			continue
		}
		s.active = false
		// copy instead of shifting in place: an emission in progress holds the old slice
		next := make([]*subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, msgType)
		} else {
			b.handlers[msgType] = next
		}
		return true
	}
	return false
}

// IsRegistered reports whether functor is subscribed to msgType.
func (b *Bus) IsRegistered(msgType ids.StringID, functor *Functor) bool {
	for _, s := range b.handlers[msgType] {
		if s.functor == functor {
			return true
		}
	}
	return false
}

// Subscribers lists registrations for msgType in delivery order.
func (b *Bus) Subscribers(msgType ids.StringID) []SubscriberInfo {
	subs := b.handlers[msgType]
	out := make([]SubscriberInfo, 0, len(subs))
	for _, s := range subs {
		out = append(out, SubscriberInfo{DebugName: s.debugName, Order: s.order})
	}
	return out
}

// EmitMessage delivers msg to every subscriber of its type. All subscribers run
// even if some fail; their errors are joined. No subscribers is not an error.
func (b *Bus) EmitMessage(msg Message) error {
	if msg == nil {
		return ErrNilMessage
	}
	return b.deliver(msg)
}

// EmitMessageFiltered applies filters before delivery; if any filter returns
// false, the message is dropped and not delivered to handlers.
func (b *Bus) EmitMessageFiltered(msg Message, filters ...Filter) error {
	if msg == nil {
		return ErrNilMessage
	}
	for _, f := range filters {
		if !f(msg) {
			if len(b.observers) > 0 {
				b.metrics.DroppedByFilters++
			}
			return nil
		}
	}
	return b.deliver(msg)
}

// AddObserver registers an observer to receive emission callbacks.
func (b *Bus) AddObserver(obs Observer) {
	for _, o := range b.observers {
		if o == obs {
			return
		}
	}
	b.observers = append(b.observers, obs)
}

// RemoveObserver unregisters a previously added observer.
func (b *Bus) RemoveObserver(obs Observer) {
	for i, o := range b.observers {
		if o == obs {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// GetMetrics returns accumulated metrics. Metrics are only collected while at
// least one observer is registered.
func (b *Bus) GetMetrics() Metrics {
	return b.metrics
}

func (b *Bus) deliver(msg Message) error {
	start := time.Now()
	msgType := msg.Type()

	// the slice is never mutated in place, so holding it is a stable snapshot
	subs := b.handlers[msgType]
	observed := len(b.observers) > 0

	if observed {
		for _, obs := range b.observers {
			obs.OnEmit(msgType, msg)
		}
	}

	b.depth++
	if observed && uint64(b.depth) > b.metrics.MaxDepth {
		b.metrics.MaxDepth = uint64(b.depth)
	}

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.active {
			continue
		}
		delivered++
		if err := s.functor.fn(msg); err != nil {
			all = errors.Join(all, pkgerrors.Wrapf(err, "handler %s", s.debugName))
		}
	}
	b.depth--

	if observed {
		dur := time.Since(start).Microseconds()
		for _, obs := range b.observers {
			obs.OnDelivered(msgType, delivered, all, dur)
		}
		b.metrics.Emitted++
		b.metrics.DeliveredHandlers += uint64(delivered)
		if all != nil {
			b.metrics.Errors++
		}
		var count uint64
		for _, s := range b.handlers {
			count += uint64(len(s))
		}
		b.metrics.Subscribers = count
	}
	return all
}
