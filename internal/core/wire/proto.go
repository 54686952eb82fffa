package wire

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/property"
)

// Packet layout in protobuf wire format:
//
//	1: string type
//	2: repeated Entry props
//
//	Entry {
//	  1: string name
//	  2: varint kind
//	  3: bool | 4: sint64 | 5: uint64 | 6: double | 7: string | 8: string (string id name)
//	}
const (
	fieldType  protowire.Number = 1
	fieldProps protowire.Number = 2

	fieldName     protowire.Number = 1
	fieldKind     protowire.Number = 2
	fieldBool     protowire.Number = 3
	fieldInt      protowire.Number = 4
	fieldUint     protowire.Number = 5
	fieldFloat    protowire.Number = 6
	fieldString   protowire.Number = 7
	fieldStringID protowire.Number = 8
)

// ProtoCodec writes packets in protobuf wire format without generated code.
type ProtoCodec struct {
	factory *messages.Factory
}

func NewProtoCodec(f *messages.Factory) *ProtoCodec {
	return &ProtoCodec{factory: f}
}

func (*ProtoCodec) Name() string { return "proto" }

func (c *ProtoCodec) Encode(msg bus.Message) ([]byte, error) {
	if msg == nil {
		return nil, bus.ErrNilMessage
	}
	b := protowire.AppendTag(nil, fieldType, protowire.BytesType)
	b = protowire.AppendString(b, msg.Type().String())

	props := msg.Properties()
	var entry []byte
	for _, name := range props.Names() {
		v := props[name]
		entry = protowire.AppendTag(entry[:0], fieldName, protowire.BytesType)
		entry = protowire.AppendString(entry, name.String())
		entry = protowire.AppendTag(entry, fieldKind, protowire.VarintType)
		entry = protowire.AppendVarint(entry, uint64(v.Kind()))

		switch v.Kind() {
		case property.KindBool:
			x, _ := v.Bool()
			entry = protowire.AppendTag(entry, fieldBool, protowire.VarintType)
			entry = protowire.AppendVarint(entry, protowire.EncodeBool(x))
		case property.KindInt:
			x, _ := v.Int()
			entry = protowire.AppendTag(entry, fieldInt, protowire.VarintType)
			entry = protowire.AppendVarint(entry, protowire.EncodeZigZag(x))
		case property.KindUint:
			x, _ := v.Uint()
			entry = protowire.AppendTag(entry, fieldUint, protowire.VarintType)
			entry = protowire.AppendVarint(entry, x)
		case property.KindFloat:
			x, _ := v.Float()
			entry = protowire.AppendTag(entry, fieldFloat, protowire.Fixed64Type)
			entry = protowire.AppendFixed64(entry, math.Float64bits(x))
		case property.KindString:
			x, _ := v.Str()
			entry = protowire.AppendTag(entry, fieldString, protowire.BytesType)
			entry = protowire.AppendString(entry, x)
		case property.KindStringID:
			x, _ := v.StringID()
			entry = protowire.AppendTag(entry, fieldStringID, protowire.BytesType)
			entry = protowire.AppendString(entry, x.String())
		default:
			return nil, errors.Wrapf(ErrUnknownKind, "%s.%s", msg.Type(), name)
		}

		b = protowire.AppendTag(b, fieldProps, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b, nil
}

func (c *ProtoCodec) Decode(data []byte) (bus.Message, error) {
	var (
		typeName string
		haveType bool
		props    = property.Map{}
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, errors.Wrapf(ErrMalformed, "tag: %v", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldType && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformed, "type: %v", protowire.ParseError(n))
			}
			typeName, haveType = s, true
			data = data[n:]
		case num == fieldProps && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformed, "entry: %v", protowire.ParseError(n))
			}
			name, v, err := decodeEntry(raw)
			if err != nil {
				return nil, err
			}
			// no message reads a name this process never interned
			if id, known := ids.Find(name); known {
				props[id] = v
			}
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, errors.Wrapf(ErrMalformed, "field %d: %v", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	if !haveType {
		return nil, errors.Wrap(ErrMalformed, "missing message type")
	}
	msgType, ok := ids.Find(typeName)
	if !ok {
		return nil, errors.Wrapf(messages.ErrUnknownMessageType, "%q", typeName)
	}
	return c.factory.New(msgType, props)
}

func decodeEntry(b []byte) (string, property.Value, error) {
	var (
		name  string
		kind  property.Kind
		value property.Value
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", property.Value{}, errors.Wrapf(ErrMalformed, "entry tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			x, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return "", property.Value{}, errors.Wrapf(ErrMalformed, "entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldKind:
				kind = property.Kind(x)
			case fieldBool:
				value = property.Bool(protowire.DecodeBool(x))
			case fieldInt:
				value = property.Int(protowire.DecodeZigZag(x))
			case fieldUint:
				value = property.Uint(x)
			}
		case protowire.Fixed64Type:
			x, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return "", property.Value{}, errors.Wrapf(ErrMalformed, "entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldFloat {
				value = property.Float(math.Float64frombits(x))
			}
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", property.Value{}, errors.Wrapf(ErrMalformed, "entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldName:
				name = s
			case fieldString:
				value = property.String(s)
			case fieldStringID:
				id, known := ids.Find(s)
				if !known {
					return "", property.Value{}, errors.Wrapf(ErrUnknownName, "%q", s)
				}
				value = property.StringIDValue(id)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", property.Value{}, errors.Wrapf(ErrMalformed, "entry field %d: %v", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if name == "" {
		return "", property.Value{}, errors.Wrap(ErrMalformed, "entry without name")
	}
	if kind == property.KindInvalid || kind > property.KindStringID {
		return "", property.Value{}, errors.Wrapf(ErrUnknownKind, "%s: kind %d", name, kind)
	}
	// proto3 style: a zero value may be written without its field
	if value.Kind() != kind {
		if !value.IsValid() {
			value = zeroOf(kind)
		} else {
			return "", property.Value{}, errors.Wrapf(ErrMalformed, "%s: kind %s carries %s", name, kind, value.Kind())
		}
	}
	return name, value, nil
}

func zeroOf(kind property.Kind) property.Value {
	switch kind {
	case property.KindBool:
		return property.Bool(false)
	case property.KindInt:
		return property.Int(0)
	case property.KindUint:
		return property.Uint(0)
	case property.KindFloat:
		return property.Float(0)
	case property.KindString:
		return property.String("")
	default:
		return property.StringIDValue(ids.Empty)
	}
}
