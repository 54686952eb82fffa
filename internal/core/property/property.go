// Package property implements the typed name/value bags carried by components
// and messages.
package property

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zeusync/simcore/internal/core/ids"
)

// Kind tags the member of Value that is set.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindStringID
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindStringID:
		return "stringid"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "bool":
		return KindBool, nil
	case "int":
		return KindInt, nil
	case "uint":
		return KindUint, nil
	case "float":
		return KindFloat, nil
	case "string":
		return KindString, nil
	case "stringid":
		return KindStringID, nil
	default:
		return KindInvalid, fmt.Errorf("unknown property kind %q", s)
	}
}

// Value is an immutable tagged union. The zero Value is invalid.
type Value struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

func Bool(v bool) Value {
	return Value{kind: KindBool, b: v}
}

func Int(v int64) Value {
	return Value{kind: KindInt, i: v}
}

func Uint(v uint64) Value {
	return Value{kind: KindUint, u: v}
}

func Float(v float64) Value {
	return Value{kind: KindFloat, f: v}
}

func String(v string) Value {
	return Value{kind: KindString, s: v}
}

func StringIDValue(v ids.StringID) Value {
	return Value{kind: KindStringID, u: uint64(v)}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) Uint() (uint64, bool) {
	return v.u, v.kind == KindUint
}

func (v Value) Float() (float64, bool) {
	return v.f, v.kind == KindFloat
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) StringID() (ids.StringID, bool) {
	return ids.StringID(v.u), v.kind == KindStringID
}

// Interface returns the held value as a plain Go value. StringID values are
// returned as their interned string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindStringID:
		return ids.StringID(v.u).String()
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	case KindStringID:
		return ids.StringID(v.u).String()
	default:
		return "<invalid>"
	}
}

// FromInterface converts a decoded plain value into a Value of the given kind.
// Numbers may arrive as any Go numeric type (yaml and json decoders differ).
func FromInterface(kind Kind, raw any) (Value, error) {
	switch kind {
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, fmt.Errorf("expected bool, got %T", raw)
		}
		return Bool(b), nil
	case KindInt:
		n, err := toInt64(raw)
		if err != nil {
			return Value{}, err
		}
		return Int(n), nil
	case KindUint:
		n, err := toUint64(raw)
		if err != nil {
			return Value{}, err
		}
		return Uint(n), nil
	case KindFloat:
		f, err := toFloat64(raw)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string, got %T", raw)
		}
		return String(s), nil
	case KindStringID:
		s, ok := raw.(string)
		if !ok {
			return Value{}, fmt.Errorf("expected string id name, got %T", raw)
		}
		return StringIDValue(ids.SID(s)), nil
	default:
		return Value{}, fmt.Errorf("invalid property kind %d", kind)
	}
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer, got %T", raw)
	}
}

func toUint64(raw any) (uint64, error) {
	switch n := raw.(type) {
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case uint64:
		return n, nil
	case uint:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	case string:
		return strconv.ParseUint(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected unsigned integer, got %T", raw)
	}
}

func toFloat64(raw any) (float64, error) {
	switch n := raw.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected float, got %T", raw)
	}
}

// Map is a bag of named properties.
type Map map[ids.StringID]Value

// Set stores v under name and returns the map for chaining.
func (m Map) Set(name ids.StringID, v Value) Map {
	m[name] = v
	return m
}

func (m Map) Get(name ids.StringID) (Value, bool) {
	v, ok := m[name]
	return v, ok
}

func (m Map) GetBool(name ids.StringID) (bool, bool) {
	v, ok := m[name]
	if !ok {
		return false, false
	}
	return v.Bool()
}

func (m Map) GetInt(name ids.StringID) (int64, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	return v.Int()
}

func (m Map) GetUint(name ids.StringID) (uint64, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	return v.Uint()
}

func (m Map) GetFloat(name ids.StringID) (float64, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	return v.Float()
}

func (m Map) GetString(name ids.StringID) (string, bool) {
	v, ok := m[name]
	if !ok {
		return "", false
	}
	return v.Str()
}

func (m Map) GetStringID(name ids.StringID) (ids.StringID, bool) {
	v, ok := m[name]
	if !ok {
		return 0, false
	}
	return v.StringID()
}

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (m Map) Clone() Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Names returns the property names sorted by their interned string, giving
// encoders a stable order.
func (m Map) Names() []ids.StringID {
	names := make([]ids.StringID, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}
