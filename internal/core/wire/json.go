package wire

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/zeusync/simcore/internal/core/events/bus"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/messages"
	"github.com/zeusync/simcore/internal/core/property"
)

type jsonValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

type jsonPacket struct {
	Type  string               `json:"type"`
	Props map[string]jsonValue `json:"props,omitempty"`
}

// JSONCodec writes one JSON object per packet. Every property carries its
// kind so integers survive the trip without going through float64.
type JSONCodec struct {
	factory *messages.Factory
}

func NewJSONCodec(f *messages.Factory) *JSONCodec {
	return &JSONCodec{factory: f}
}

func (*JSONCodec) Name() string { return "json" }

func (c *JSONCodec) Encode(msg bus.Message) ([]byte, error) {
	if msg == nil {
		return nil, bus.ErrNilMessage
	}
	props := msg.Properties()
	pkt := jsonPacket{Type: msg.Type().String()}
	if len(props) > 0 {
		pkt.Props = make(map[string]jsonValue, len(props))
	}
	for name, v := range props {
		if !v.IsValid() {
			return nil, errors.Wrapf(ErrUnknownKind, "%s.%s", msg.Type(), name)
		}
		raw, err := json.Marshal(v.Interface())
		if err != nil {
			return nil, errors.Wrapf(err, "encode %s.%s", msg.Type(), name)
		}
		pkt.Props[name.String()] = jsonValue{Kind: v.Kind().String(), Value: raw}
	}
	return json.Marshal(pkt)
}

func (c *JSONCodec) Decode(data []byte) (bus.Message, error) {
	var pkt jsonPacket
	if err := json.Unmarshal(data, &pkt); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "%v", err)
	}
	if pkt.Type == "" {
		return nil, errors.Wrap(ErrMalformed, "missing message type")
	}
	msgType, ok := ids.Find(pkt.Type)
	if !ok {
		return nil, errors.Wrapf(messages.ErrUnknownMessageType, "%q", pkt.Type)
	}

	props := make(property.Map, len(pkt.Props))
	for name, jv := range pkt.Props {
		v, err := decodeJSONValue(jv)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", pkt.Type, name)
		}
		if id, known := ids.Find(name); known {
			props[id] = v
		}
	}
	return c.factory.New(msgType, props)
}

func decodeJSONValue(jv jsonValue) (property.Value, error) {
	kind, err := property.ParseKind(jv.Kind)
	if err != nil {
		return property.Value{}, errors.Wrapf(ErrUnknownKind, "%v", err)
	}

	var v property.Value
	switch kind {
	case property.KindBool:
		var x bool
		err = json.Unmarshal(jv.Value, &x)
		v = property.Bool(x)
	case property.KindInt:
		var x int64
		err = json.Unmarshal(jv.Value, &x)
		v = property.Int(x)
	case property.KindUint:
		var x uint64
		err = json.Unmarshal(jv.Value, &x)
		v = property.Uint(x)
	case property.KindFloat:
		var x float64
		err = json.Unmarshal(jv.Value, &x)
		v = property.Float(x)
	case property.KindString:
		var x string
		err = json.Unmarshal(jv.Value, &x)
		v = property.String(x)
	case property.KindStringID:
		var x string
		if err = json.Unmarshal(jv.Value, &x); err != nil {
			break
		}
		id, known := ids.Find(x)
		if !known {
			return property.Value{}, errors.Wrapf(ErrUnknownName, "%q", x)
		}
		v = property.StringIDValue(id)
	}
	if err != nil {
		return property.Value{}, errors.Wrapf(ErrMalformed, "%v", err)
	}
	return v, nil
}
