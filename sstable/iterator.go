package sstable

import "fmt"

// Iterator is a single-pass, forward-only iterator producing a
// segment's entries in ascending key order, including tombstones. It
// walks the block index one block at a time, buffering the whole
// block before decoding entries from it one by one.
type Iterator struct {
	seg *Segment

	nextBlock int // index into seg.index of the next block to load
	block     []decodedEntry
	pos       int // position within block

	closed bool
}

// NewIterator returns an iterator positioned before the first entry.
func NewIterator(seg *Segment) *Iterator {
	return &Iterator{seg: seg}
}

// HasNext reports whether another entry remains.
func (it *Iterator) HasNext() bool {
	if it.closed {
		return false
	}
	if it.pos < len(it.block) {
		return true
	}
	return it.nextBlock < len(it.seg.index)
}

// Next returns the next entry and advances the iterator. It returns an
// error if called when HasNext is false.
func (it *Iterator) Next() (key, value []byte, tombstone bool, err error) {
	if it.pos >= len(it.block) {
		if err := it.loadNextBlock(); err != nil {
			return nil, nil, false, err
		}
	}
	e := it.block[it.pos]
	it.pos++
	return e.key, e.value, e.tombstone, nil
}

func (it *Iterator) loadNextBlock() error {
	if it.nextBlock >= len(it.seg.index) {
		return fmt.Errorf("sstable: iterator exhausted for %s", it.seg.path)
	}
	blk := it.seg.index[it.nextBlock].block
	it.nextBlock++

	entries, err := it.seg.readBlock(blk)
	if err != nil {
		return err
	}
	it.block = entries
	it.pos = 0
	return nil
}

// Close releases resources held by the iterator. The segment's file
// is opened per-block-read rather than held open across the whole
// iteration, so Close is a no-op beyond marking the iterator done.
func (it *Iterator) Close() error {
	it.closed = true
	return nil
}
