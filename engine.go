// Package lsmkv implements an embedded, log-structured merge-tree
// key-value store for string keys and values: an in-memory memtable
// set backed by a durable manifest of on-disk sorted-string-table
// segments, kept compact by background flush and compaction workers.
package lsmkv

import (
	"fmt"
	"sync"
	"time"

	"lsmkv/compaction"
	"lsmkv/manifest"
	"lsmkv/memtable"
	"lsmkv/sstable"
)

// defaultShutdownTimeout bounds how long Close waits for an in-flight
// background tick to finish before returning anyway.
const defaultShutdownTimeout = 5 * time.Second

// Engine is the facade described in spec §4.9: put/delete/get plus
// start/stop for the background flush and compaction tasks.
type Engine struct {
	opts Options

	memtables *memtable.Set
	manifest  *manifest.Manifest
	cache     *sstable.BlockCache

	flush     *compaction.FlushWorker
	compactor *compaction.CompactionWorker

	mu     sync.Mutex
	closed bool
}

// Open initializes an Engine over opts.DataDirectory, recovering any
// existing manifest and segments. The returned Engine's background
// tasks are not yet running; call Start to begin flushing and
// compacting.
func Open(opts Options) (*Engine, error) {
	cache := sstable.NewBlockCache(opts.BlockCacheSize)

	opener := func(path string) (*sstable.Segment, error) {
		return sstable.Open(path, opts.BlockSize, opts.BloomBits, opts.BloomHashes, cache)
	}

	m, err := manifest.Open(opts.DataDirectory, opener)
	if err != nil {
		return nil, fmt.Errorf("lsmkv: open manifest: %w", err)
	}

	e := &Engine{
		opts:      opts,
		memtables: memtable.NewSet(),
		manifest:  m,
		cache:     cache,
	}

	e.flush = &compaction.FlushWorker{
		Memtables: e.memtables,
		Manifest:  e.manifest,
		DataDir:   opts.DataDirectory,
		BlockSize: opts.BlockSize,
		BloomBits: opts.BloomBits,
		BloomHash: opts.BloomHashes,
		Cache:     cache,
	}
	e.compactor = &compaction.CompactionWorker{
		Manifest: e.manifest,
		Builder: &compaction.SortedRunBuilder{
			DataDir:   opts.DataDirectory,
			BlockSize: opts.BlockSize,
			BloomBits: opts.BloomBits,
			BloomHash: opts.BloomHashes,
			Cache:     cache,
		},
		Threshold:   opts.levelThreshold(),
		SegmentSize: opts.SegmentSize,
	}

	return e, nil
}

// Start spawns the flush and compaction background tasks.
func (e *Engine) Start() {
	e.flush.Start()
	e.compactor.Start()
}

// Stop cancels the flush and compaction background tasks without
// awaiting any in-flight tick.
func (e *Engine) Stop() {
	e.flush.Stop()
	e.compactor.Stop()
}

// Put inserts or overwrites key's value.
func (e *Engine) Put(key, value []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	e.memtables.Put(key, value, e.opts.MemtableThresholdBytes)
	return nil
}

// Delete inserts a tombstone for key.
func (e *Engine) Delete(key []byte) error {
	if len(key) == 0 {
		return ErrKeyEmpty
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	e.memtables.Delete(key, e.opts.MemtableThresholdBytes)
	return nil
}

// Get searches the memtable set first, then on-disk segments in level
// order (newest-first within level 0), per spec §4.9. The first hit —
// including a tombstone — terminates the search, so a tombstone in an
// earlier source always shadows an older live value in a later one.
func (e *Engine) Get(key []byte) ([]byte, bool, error) {
	if len(key) == 0 {
		return nil, false, ErrKeyEmpty
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, false, ErrClosed
	}

	if value, tombstone, found := e.memtables.Get(key); found {
		if tombstone {
			return nil, false, nil
		}
		return value, true, nil
	}

	maxLevel := e.manifest.MaxLevel()
	for level := 0; level <= maxLevel; level++ {
		for _, seg := range e.manifest.GetSSTables(level) {
			value, tombstone, found, err := seg.Get(key)
			if err != nil {
				return nil, false, fmt.Errorf("lsmkv: read segment %s: %w", seg.Path(), err)
			}
			if found {
				if tombstone {
					return nil, false, nil
				}
				return value, true, nil
			}
		}
	}
	return nil, false, nil
}

// Flush seals the active memtable and synchronously writes every
// sealed memtable to level 0, without waiting on the periodic flush
// task. Because there is no write-ahead log, writes are only durable
// across a restart once they have been flushed; callers that need a
// clean, durable shutdown should call Flush before Close.
func (e *Engine) Flush() error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return e.flush.FlushAll()
}

// Close cancels background tasks and releases the manifest's
// directory lock. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.flush.AwaitStop(defaultShutdownTimeout)
	e.compactor.AwaitStop(defaultShutdownTimeout)
	return e.manifest.Close()
}
