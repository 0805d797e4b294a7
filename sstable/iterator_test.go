package sstable_test

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsmkv/memtable"
	"lsmkv/sstable"
)

func TestIteratorVisitsAllEntriesInOrder(t *testing.T) {
	dir := t.TempDir()
	mt := buildMemtable(300)
	path := filepath.Join(dir, "iter.sst")

	seg, err := sstable.CreateFromMemtable(mt, path, 256, 1000, 3, nil)
	require.NoError(t, err)

	it := sstable.NewIterator(seg)
	defer it.Close()

	count := 0
	var lastKey []byte
	for it.HasNext() {
		key, _, _, err := it.Next()
		require.NoError(t, err)
		if lastKey != nil {
			assert.Less(t, string(lastKey), string(key), "entries must be strictly ascending")
		}
		lastKey = key
		count++
	}
	assert.Equal(t, 300, count)
}

func TestIteratorIncludesTombstones(t *testing.T) {
	dir := t.TempDir()
	mt := memtable.New()
	mt.Put([]byte("a"), []byte("1"))
	mt.Delete([]byte("b"))
	mt.Put([]byte("c"), []byte("3"))
	path := filepath.Join(dir, "tomb.sst")

	seg, err := sstable.CreateFromMemtable(mt, path, 4096, 1000, 3, nil)
	require.NoError(t, err)

	it := sstable.NewIterator(seg)
	defer it.Close()

	var sawTombstone bool
	for it.HasNext() {
		key, _, ts, err := it.Next()
		require.NoError(t, err)
		if string(key) == "b" {
			sawTombstone = ts
		}
	}
	assert.True(t, sawTombstone)
}

func TestIteratorNextErrorsWhenExhausted(t *testing.T) {
	dir := t.TempDir()
	mt := memtable.New()
	mt.Put([]byte("only"), []byte("1"))
	path := filepath.Join(dir, "one.sst")

	seg, err := sstable.CreateFromMemtable(mt, path, 4096, 1000, 3, nil)
	require.NoError(t, err)

	it := sstable.NewIterator(seg)
	require.True(t, it.HasNext())
	_, _, _, err = it.Next()
	require.NoError(t, err)

	assert.False(t, it.HasNext())
	_, _, _, err = it.Next()
	assert.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}
