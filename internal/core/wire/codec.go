// Package wire turns bus messages into bytes for the network and back. Codecs
// only see a message's type and property map, so every message registered
// with a messages.Factory can cross the wire.
package wire

import (
	"errors"

	pkgerrors "github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/messages"
)

var (
	ErrMalformed    = errors.New("wire: malformed packet")
	ErrUnknownKind  = errors.New("wire: unknown property kind")
	ErrUnknownCodec = errors.New("wire: unknown codec")
	ErrUnknownName  = errors.New("wire: string id not known to this process")
)

// Codec converts messages to packets and back.
type Codec interface {
	Name() string
	Encode(msg bus.Message) ([]byte, error)
	Decode(data []byte) (bus.Message, error)
}

// New returns the codec registered under name ("proto" or "json").
func New(name string, f *messages.Factory) (Codec, error) {
	switch name {
	case "proto", "protobuf", "":
		return NewProtoCodec(f), nil
	case "json":
		return NewJSONCodec(f), nil
	default:
		return nil, pkgerrors.Wrapf(ErrUnknownCodec, "%q", name)
	}
}
