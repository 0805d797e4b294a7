package compaction

import (
	"context"
	"fmt"
	"log"
	"time"

	"lsmkv/manifest"
	"lsmkv/memtable"
	"lsmkv/sstable"
)

// DefaultFlushPeriod is the reference tick period for the flush task.
const DefaultFlushPeriod = 50 * time.Millisecond

// FlushWorker periodically drains the oldest sealed memtable to a
// level-0 segment, per spec §4.7. Per the §5 two-phase optimization,
// the segment write itself happens without holding either lock, which
// is sound because the memtable being flushed is already immutable
// once sealed. The segment is installed in the manifest before the
// memtable leaves the flush queue, each step under its own lock, so
// its entries stay readable throughout.
type FlushWorker struct {
	Memtables *memtable.Set
	Manifest  *manifest.Manifest

	DataDir   string
	BlockSize int
	BloomBits uint
	BloomHash uint
	Cache     *sstable.BlockCache

	ticker *time.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// Start spawns the flush task on its own ticker goroutine.
func (w *FlushWorker) Start() {
	period := DefaultFlushPeriod
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.ticker = time.NewTicker(period)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		defer w.ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.ticker.C:
				w.tick()
			}
		}
	}()
}

// Stop cancels the flush task. It does not await the in-flight tick.
func (w *FlushWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// AwaitStop cancels the flush task and blocks until the current tick,
// if any, finishes or timeout elapses.
func (w *FlushWorker) AwaitStop(timeout time.Duration) {
	w.Stop()
	if w.done == nil {
		return
	}
	select {
	case <-w.done:
	case <-time.After(timeout):
	}
}

func (w *FlushWorker) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("flush: recovered from panic, skipping tick: %v", r)
		}
	}()

	if _, err := w.flushOne(); err != nil {
		log.Printf("flush: %v, skipping tick", err)
	}
}

// flushOne drains at most one sealed memtable to a level-0 segment.
// It reports whether a memtable was found (regardless of whether it
// produced a segment).
func (w *FlushWorker) flushOne() (bool, error) {
	mt := w.Memtables.PeekFlushable()
	if mt == nil {
		return false, nil
	}

	seg, err := sstable.CreateFromMemtable(mt, sstable.NewSegmentPath(w.DataDir), w.BlockSize, w.BloomBits, w.BloomHash, w.Cache)
	if err != nil {
		return true, fmt.Errorf("failed to write segment: %w", err)
	}
	if seg == nil {
		// Sealed memtable had no entries (should not normally happen,
		// but is not an error); still dequeue it so the worker makes
		// forward progress.
		w.Memtables.RemoveFlushable(mt)
		return true, nil
	}

	if err := w.Manifest.AddSSTable(0, seg); err != nil {
		return true, fmt.Errorf("failed to install segment in manifest: %w", err)
	}
	w.Memtables.RemoveFlushable(mt)
	return true, nil
}

// FlushAll seals the active memtable and synchronously drains every
// sealed memtable to level 0, bypassing the periodic ticker. Used for
// an explicit, durable shutdown: since there is no write-ahead log,
// anything still sitting in the active memtable is lost on process
// exit, so a caller that needs the last writes to survive a restart
// must flush before closing.
func (w *FlushWorker) FlushAll() error {
	w.Memtables.Rotate()
	for {
		found, err := w.flushOne()
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
	}
}
