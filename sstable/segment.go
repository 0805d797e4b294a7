package sstable

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"lsmkv/bloom"
	"lsmkv/memtable"
)

var segmentSeq atomic.Uint64

// NewSegmentPath returns a unique path for a new segment file under
// dataDir, named sstable_<nanosecond-timestamp>_<seq>.sst per the
// external interface spec.
func NewSegmentPath(dataDir string) string {
	seq := segmentSeq.Add(1)
	name := fmt.Sprintf("sstable_%d_%d.sst", time.Now().UnixNano(), seq)
	return filepath.Join(dataDir, name)
}

// CreateFromMemtable writes mt's entries, in key order, as a new
// segment file at path, with blocks bounded by blockSize bytes and a
// Bloom filter of the given size/hash-count.
func CreateFromMemtable(mt *memtable.Memtable, path string, blockSize int, bloomBits, bloomHash uint, cache *BlockCache) (*Segment, error) {
	w, err := NewWriter(path, blockSize, bloomBits, bloomHash)
	if err != nil {
		return nil, err
	}

	for it := mt.Iterator(); it.HasNext(); {
		e := it.Next()
		if err := w.Write(e.Key, e.Value, e.Tombstone); err != nil {
			w.Abort()
			return nil, fmt.Errorf("sstable: create %s: %w", path, err)
		}
	}

	if w.Empty() {
		w.Abort()
		return nil, nil
	}

	return w.Finish(cache)
}

// Open scans path sequentially, rebuilding the block index, Bloom
// filter, and min/max keys using identical block accounting to
// CreateFromMemtable.
func Open(path string, blockSize int, bloomBits, bloomHash uint, cache *BlockCache) (*Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", path, err)
	}
	defer f.Close()

	s := &Segment{
		path:      path,
		bloom:     bloom.New(bloomBits, bloomHash),
		blockSize: blockSize,
		cache:     cache,
	}

	var (
		offset          int64
		blockStart      int64
		currentBlockLen int64
		firstKeyOfBlock []byte
	)

	finalizeBlock := func() {
		s.index = append(s.index, indexEntry{
			firstKey: firstKeyOfBlock,
			block:    blockInfo{offset: blockStart, length: currentBlockLen},
		})
		blockStart = offset
		currentBlockLen = 0
		firstKeyOfBlock = nil
	}

	for {
		key, value, tombstone, err := decodeEntry(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sstable: open %s: %w", path, err)
		}

		size := int64(entrySize(key, value, tombstone))
		if currentBlockLen > 0 && currentBlockLen+size > int64(blockSize) {
			finalizeBlock()
		}
		if currentBlockLen == 0 {
			firstKeyOfBlock = key
		}

		offset += size
		currentBlockLen += size
		s.bloom.Add(key)

		if s.minKey == nil {
			s.minKey = key
		}
		s.maxKey = key
	}

	if currentBlockLen > 0 {
		finalizeBlock()
	}

	return s, nil
}

// Get returns the value stored for key, whether it is a tombstone,
// and whether the key was found at all. Reading never crosses a
// block boundary.
func (s *Segment) Get(key []byte) (value []byte, tombstone bool, found bool, err error) {
	if s.minKey == nil || bytes.Compare(key, s.minKey) < 0 || bytes.Compare(key, s.maxKey) > 0 {
		return nil, false, false, nil
	}
	if !s.bloom.MightContain(key) {
		return nil, false, false, nil
	}

	blk, ok := s.floorBlock(key)
	if !ok {
		return nil, false, false, nil
	}

	entries, err := s.readBlock(blk)
	if err != nil {
		return nil, false, false, err
	}

	for _, e := range entries {
		if bytes.Equal(e.key, key) {
			return e.value, e.tombstone, true, nil
		}
	}
	return nil, false, false, nil
}

// floorBlock returns the block whose firstKey is the largest one <= key.
func (s *Segment) floorBlock(key []byte) (blockInfo, bool) {
	i := sort.Search(len(s.index), func(i int) bool {
		return bytes.Compare(s.index[i].firstKey, key) > 0
	})
	if i == 0 {
		return blockInfo{}, false
	}
	return s.index[i-1].block, true
}

func (s *Segment) readBlock(blk blockInfo) ([]decodedEntry, error) {
	if entries, ok := s.cache.get(s.path, blk.offset); ok {
		return entries, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("sstable: open %s: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Seek(blk.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("sstable: seek %s: %w", s.path, err)
	}

	raw := make([]byte, blk.length)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("sstable: read block %s: %w", s.path, err)
	}

	r := bytes.NewReader(raw)
	var entries []decodedEntry
	for r.Len() > 0 {
		key, value, tombstone, err := decodeEntry(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sstable: decode block %s: %w", s.path, err)
		}
		entries = append(entries, decodedEntry{key: key, value: value, tombstone: tombstone})
	}

	s.cache.put(s.path, blk.offset, entries)
	return entries, nil
}

// Delete unlinks the segment's file. Failure to unlink an existing
// file is returned as an error; a file that is already gone is not an
// error.
func (s *Segment) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sstable: delete %s: %w", s.path, err)
	}
	return nil
}
