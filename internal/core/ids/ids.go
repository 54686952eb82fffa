// Package ids holds the identifier space shared by every other package:
// entity handles and interned string handles.
package ids

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// EntityID identifies an entity. Zero is the "no entity" sentinel.
type EntityID uint64

// NoEntity is the reserved zero handle.
const NoEntity EntityID = 0

func (id EntityID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// StringID is an interned string handle. Two equal strings always intern to the
// same handle, so StringIDs compare by value instead of by string contents.
type StringID uint64

// Empty is the handle of the empty string.
var Empty = SID("")

// String resolves the handle through the default table.
func (s StringID) String() string {
	v, ok := defaultTable.Lookup(s)
	if !ok {
		return "#" + strconv.FormatUint(uint64(s), 16)
	}
	return v
}

// Table is an intern table mapping strings to handles and back. Handles are
// derived from xxhash64; on the rare collision the next free handle is taken,
// so a handle stays stable for the table's lifetime.
type Table struct {
	mu       sync.RWMutex
	byString map[string]StringID
	byID     map[StringID]string
}

// NewTable returns an empty intern table.
func NewTable() *Table {
	return &Table{
		byString: make(map[string]StringID),
		byID:     make(map[StringID]string),
	}
}

// Intern returns the handle for s, creating it if needed.
func (t *Table) Intern(s string) StringID {
	t.mu.RLock()
	id, ok := t.byString[s]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok = t.byString[s]; ok {
		return id
	}
	id = StringID(xxhash.Sum64String(s))
	for {
		if _, taken := t.byID[id]; !taken {
			break
		}
		id++
	}
	t.byString[s] = id
	t.byID[id] = s
	return id
}

// Find returns the handle for s only if s is already interned. Unlike Intern
// it never grows the table.
func (t *Table) Find(s string) (StringID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byString[s]
	return id, ok
}

// Lookup reverse-resolves a handle.
func (t *Table) Lookup(id StringID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.byID[id]
	return s, ok
}

// Len reports the number of interned strings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

var defaultTable = NewTable()

// SID interns s in the process-wide table.
func SID(s string) StringID {
	return defaultTable.Intern(s)
}

// Find resolves s in the process-wide table without interning it. Use it for
// names that arrive from outside the process.
func Find(s string) (StringID, bool) {
	return defaultTable.Find(s)
}

// Lookup reverse-resolves id in the process-wide table.
func Lookup(id StringID) (string, bool) {
	return defaultTable.Lookup(id)
}
