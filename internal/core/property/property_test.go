package property

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/simcore/internal/core/ids"
)

func TestValueAccessorsCheckKind(t *testing.T) {
	v := Uint(7)

	n, ok := v.Uint()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)

	_, ok = v.Int()
	assert.False(t, ok, "uint value must not read as int")
	assert.False(t, Value{}.IsValid())
}

func TestMapTypedGetters(t *testing.T) {
	name := ids.SID("EntityName")
	flag := ids.SID("SaveWithMap")
	m := Map{}
	m.Set(name, String("tree")).Set(flag, Bool(true))

	s, ok := m.GetString(name)
	require.True(t, ok)
	assert.Equal(t, "tree", s)

	_, ok = m.GetString(flag)
	assert.False(t, ok)

	b, ok := m.GetBool(flag)
	require.True(t, ok)
	assert.True(t, b)

	_, ok = m.GetBool(ids.SID("missing"))
	assert.False(t, ok)
}

func TestFromInterfaceAcceptsDecoderNumbers(t *testing.T) {
	v, err := FromInterface(KindUint, 12)
	require.NoError(t, err)
	assert.Equal(t, Uint(12), v)

	v, err = FromInterface(KindFloat, 3)
	require.NoError(t, err)
	assert.Equal(t, Float(3), v)

	v, err = FromInterface(KindStringID, "Map")
	require.NoError(t, err)
	assert.Equal(t, StringIDValue(ids.SID("Map")), v)

	_, err = FromInterface(KindBool, "yes")
	assert.Error(t, err)
}

func TestKindStringRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindBool, KindInt, KindUint, KindFloat, KindString, KindStringID} {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("vec3")
	assert.Error(t, err)
}

func TestNamesSorted(t *testing.T) {
	m := Map{
		ids.SID("b"): Int(1),
		ids.SID("a"): Int(2),
		ids.SID("c"): Int(3),
	}
	names := m.Names()
	require.Len(t, names, 3)
	assert.Equal(t, "a", names[0].String())
	assert.Equal(t, "c", names[2].String())
}
