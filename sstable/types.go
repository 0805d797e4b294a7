package sstable

import "lsmkv/bloom"

// blockInfo records the byte range of one block within a segment file.
type blockInfo struct {
	offset int64
	length int64
}

// indexEntry maps the first key of a block to its location.
type indexEntry struct {
	firstKey []byte
	block    blockInfo
}

// blockIndex is an ordered slice of indexEntry, ascending by firstKey.
// Lookup is a floor-search: the entry with the largest firstKey <= a
// target key.
type blockIndex []indexEntry

// Segment is an immutable, sorted on-disk key/value file with an
// in-memory block index and Bloom filter, as described in spec §4.2.
type Segment struct {
	path string

	index  blockIndex
	bloom  *bloom.Filter
	minKey []byte
	maxKey []byte

	blockSize int
	cache     *BlockCache
}

// Path returns the segment's file path.
func (s *Segment) Path() string { return s.path }

// MinKey returns the smallest key contained in the segment.
func (s *Segment) MinKey() []byte { return s.minKey }

// MaxKey returns the largest key contained in the segment.
func (s *Segment) MaxKey() []byte { return s.maxKey }
