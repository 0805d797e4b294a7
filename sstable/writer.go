package sstable

import (
	"bufio"
	"fmt"
	"os"

	"lsmkv/bloom"
)

// Writer accumulates encoded entries into ≤blockSize blocks, building
// a block index, a Bloom filter, and min/max key bounds as it goes.
// It is the block-accounting implementation shared by
// CreateFromMemtable and the compaction sorted-run builder; Open
// repeats the same accounting when it rebuilds an index, so whichever
// path builds a segment produces identical block boundaries.
type Writer struct {
	file *os.File
	buf  *bufio.Writer

	blockSize int

	index     blockIndex
	bloom     *bloom.Filter
	minKey    []byte
	maxKey    []byte
	written   int64 // total bytes written so far

	blockStart      int64
	currentBlockLen int64
	firstKeyOfBlock []byte
}

// NewWriter creates path and returns a Writer ready to accept entries.
func NewWriter(path string, blockSize int, bloomBits, bloomHash uint) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sstable: create %s: %w", path, err)
	}
	return &Writer{
		file:      f,
		buf:       bufio.NewWriter(f),
		blockSize: blockSize,
		bloom:     bloom.New(bloomBits, bloomHash),
	}, nil
}

// Write appends one entry, finalizing the current block first if the
// entry would overflow it.
func (w *Writer) Write(key, value []byte, tombstone bool) error {
	size := int64(entrySize(key, value, tombstone))

	if w.currentBlockLen > 0 && w.currentBlockLen+size > int64(w.blockSize) {
		w.finalizeBlock()
	}
	if w.currentBlockLen == 0 {
		w.firstKeyOfBlock = append([]byte(nil), key...)
	}

	if _, err := encodeEntry(w.buf, key, value, tombstone); err != nil {
		return fmt.Errorf("sstable: write entry: %w", err)
	}

	w.written += size
	w.currentBlockLen += size
	w.bloom.Add(key)

	if w.minKey == nil {
		w.minKey = append([]byte(nil), key...)
	}
	w.maxKey = append([]byte(nil), key...)

	return nil
}

func (w *Writer) finalizeBlock() {
	w.index = append(w.index, indexEntry{
		firstKey: w.firstKeyOfBlock,
		block:    blockInfo{offset: w.blockStart, length: w.currentBlockLen},
	})
	w.blockStart = w.written
	w.currentBlockLen = 0
	w.firstKeyOfBlock = nil
}

// Size returns the number of bytes written to the entry stream so far
// (excludes any buffering overhead).
func (w *Writer) Size() int64 {
	return w.written
}

// Finish flushes and closes the file, finalizing any partial trailing
// block, and returns the assembled Segment.
func (w *Writer) Finish(cache *BlockCache) (*Segment, error) {
	if w.currentBlockLen > 0 {
		w.finalizeBlock()
	}

	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return nil, fmt.Errorf("sstable: flush %s: %w", w.file.Name(), err)
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return nil, fmt.Errorf("sstable: sync %s: %w", w.file.Name(), err)
	}
	if err := w.file.Close(); err != nil {
		return nil, fmt.Errorf("sstable: close %s: %w", w.file.Name(), err)
	}

	return &Segment{
		path:      w.file.Name(),
		index:     w.index,
		bloom:     w.bloom,
		minKey:    w.minKey,
		maxKey:    w.maxKey,
		blockSize: w.blockSize,
		cache:     cache,
	}, nil
}

// Abort closes and removes a partially written file, used when
// construction fails partway through.
func (w *Writer) Abort() {
	w.file.Close()
	os.Remove(w.file.Name())
}

// Empty reports whether no entries have been written yet.
func (w *Writer) Empty() bool {
	return w.written == 0 && w.currentBlockLen == 0
}
