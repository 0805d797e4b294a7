package sstable

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// blockCacheKey identifies one block within one segment file.
type blockCacheKey struct {
	path   string
	offset int64
}

// BlockCache is a bounded, shared cache of decoded blocks keyed by
// (segment path, block offset). It backs Options.BlockCacheSize and is
// consulted by both Segment.Get and Iterator before doing a disk read,
// so a compaction pass that iterates a segment warms the cache for
// concurrent point reads against the same file.
type BlockCache struct {
	c *lru.Cache[blockCacheKey, []decodedEntry]
}

// NewBlockCache returns a cache holding up to size decoded blocks.
// A non-positive size disables caching.
func NewBlockCache(size int) *BlockCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[blockCacheKey, []decodedEntry](size)
	if err != nil {
		// Only returns an error for a non-positive size, already excluded above.
		return nil
	}
	return &BlockCache{c: c}
}

func (bc *BlockCache) get(path string, offset int64) ([]decodedEntry, bool) {
	if bc == nil {
		return nil, false
	}
	return bc.c.Get(blockCacheKey{path: path, offset: offset})
}

func (bc *BlockCache) put(path string, offset int64, entries []decodedEntry) {
	if bc == nil {
		return
	}
	bc.c.Add(blockCacheKey{path: path, offset: offset}, entries)
}

// decodedEntry is one entry decoded from a block, cached to avoid
// re-parsing the same bytes on repeated lookups.
type decodedEntry struct {
	key       []byte
	value     []byte
	tombstone bool
}
