package bus

import (
	"errors"

	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/property"
)

// Message is an immutable value routed by its Type. Properties exposes the
// named fields so codecs can serialize any message without knowing its Go type.
//
// Implementations should treat Message values as read-only.
type Message interface {
	Type() ids.StringID
	Properties() property.Map
}

// Order is the coarse priority bucket a handler is registered in. Buckets fire
// Early, then Default, then Late; inside a bucket handlers fire in registration order.
type Order uint8

const (
	OrderEarly Order = iota
	OrderDefault
	OrderLate
)

func (o Order) String() string {
	switch o {
	case OrderEarly:
		return "early"
	case OrderDefault:
		return "default"
	case OrderLate:
		return "late"
	default:
		return "unknown"
	}
}

// Functor wraps a handler callback. Its pointer is the handler identity:
// registering the same *Functor twice for one type never delivers twice.
type Functor struct {
	fn func(Message) error
}

// NewFunctor wraps fn. A nil fn yields a functor that the bus refuses to register.
func NewFunctor(fn func(Message) error) *Functor {
	return &Functor{fn: fn}
}

// Call invokes the handler directly.
func (f *Functor) Call(msg Message) error {
	return f.fn(msg)
}

// Filter decides whether a message should be delivered. If any filter returns
// false, the message is dropped silently.
type Filter func(Message) bool

// Observer is notified about emissions. Observers should return quickly.
type Observer interface {
	OnEmit(msgType ids.StringID, msg Message)
	OnDelivered(msgType ids.StringID, handlers int, err error, durationMicros int64)
}

// Metrics is a minimal set of counters; it is updated only when at least one
// observer is registered.
type Metrics struct {
	Emitted           uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	Subscribers       uint64
	MaxDepth          uint64
}

// SubscriberInfo describes one registration for introspection.
type SubscriberInfo struct {
	DebugName string
	Order     Order
}

var (
	ErrNilFunctor = errors.New("bus: nil functor")
	ErrNilMessage = errors.New("bus: nil message")
)
