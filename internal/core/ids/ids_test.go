package ids

import (
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
)

func TestSIDEqualStringsShareHandle(t *testing.T) {
	a := SID("Map")
	b := SID("Map")
	c := SID("Net")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "Map", a.String())
}

func TestTableLookup(t *testing.T) {
	table := NewTable()
	id := table.Intern("UniqueId")

	s, ok := table.Lookup(id)
	assert.True(t, ok)
	assert.Equal(t, "UniqueId", s)

	_, ok = table.Lookup(id + 1)
	assert.False(t, ok)
	assert.Equal(t, 1, table.Len())
}

func TestTableCollisionProbesToFreeHandle(t *testing.T) {
	table := NewTable()

	// occupy the handle "beta" hashes to with a different string
	hashed := StringID(xxhash.Sum64String("beta"))
	table.byString["impostor"] = hashed
	table.byID[hashed] = "impostor"

	got := table.Intern("beta")
	assert.Equal(t, hashed+1, got)
	assert.Equal(t, got, table.Intern("beta"))

	s, _ := table.Lookup(got)
	assert.Equal(t, "beta", s)
	s, _ = table.Lookup(hashed)
	assert.Equal(t, "impostor", s)
}

func TestEntityIDString(t *testing.T) {
	assert.Equal(t, "42", EntityID(42).String())
	assert.Equal(t, EntityID(0), NoEntity)
}

func TestTableFindDoesNotIntern(t *testing.T) {
	table := NewTable()
	_, ok := table.Find("Spawner")
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())

	id := table.Intern("Spawner")
	got, ok := table.Find("Spawner")
	assert.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, table.Len())
}
