// Package memtable implements the in-memory staging area for writes:
// a single ordered, mutable Memtable and a Set that manages the active
// memtable plus a FIFO queue of sealed memtables awaiting flush.
package memtable

import (
	"github.com/huandu/skiplist"
)

// record is the value half of a memtable entry. Tombstone is carried
// as an explicit flag rather than aliased on an empty value, so a
// put(k, "") and a delete(k) remain distinguishable in memory.
type record struct {
	value     []byte
	tombstone bool
}

// Entry is a single ordered (key, value-or-tombstone) pair, returned
// by Memtable.Iterator.
type Entry struct {
	Key       []byte
	Value     []byte
	Tombstone bool
}

// Memtable is an ordered in-memory map from key to value-or-tombstone,
// with a running byte-size estimate.
type Memtable struct {
	data *skiplist.SkipList
	size int
}

// New returns an empty memtable.
func New() *Memtable {
	return &Memtable{data: skiplist.New(skiplist.String)}
}

// Get returns the stored record for key. ok is false if the key has
// never been written to this memtable.
func (m *Memtable) Get(key []byte) (value []byte, tombstone bool, ok bool) {
	elem := m.data.Get(string(key))
	if elem == nil {
		return nil, false, false
	}
	r := elem.Value.(record)
	return r.value, r.tombstone, true
}

// Put inserts or overwrites key with value, adjusting the size
// estimate for the old and new contribution.
func (m *Memtable) Put(key, value []byte) {
	m.set(key, record{value: value})
}

// Delete inserts a tombstone for key.
func (m *Memtable) Delete(key []byte) {
	m.set(key, record{tombstone: true})
}

func (m *Memtable) set(key []byte, r record) {
	k := string(key)
	if old := m.data.Get(k); old != nil {
		m.size -= pairSize(k, old.Value.(record))
	}
	m.data.Set(k, r)
	m.size += pairSize(k, r)
}

func pairSize(key string, r record) int {
	if r.tombstone {
		return len(key)
	}
	return len(key) + len(r.value)
}

// Size returns the running byte-size estimate.
func (m *Memtable) Size() int {
	return m.size
}

// Len returns the number of distinct keys held.
func (m *Memtable) Len() int {
	return m.data.Len()
}

// Iterator returns entries in ascending key order.
func (m *Memtable) Iterator() *Iterator {
	return &Iterator{elem: m.data.Front()}
}

// Iterator walks a Memtable's entries in ascending key order.
type Iterator struct {
	elem *skiplist.Element
}

// HasNext reports whether another entry remains.
func (it *Iterator) HasNext() bool {
	return it.elem != nil
}

// Next returns the current entry and advances the iterator.
func (it *Iterator) Next() Entry {
	k := it.elem.Key().(string)
	r := it.elem.Value.(record)
	it.elem = it.elem.Next()
	return Entry{Key: []byte(k), Value: r.value, Tombstone: r.tombstone}
}
