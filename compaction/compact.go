package compaction

import (
	"context"
	"log"
	"time"

	"lsmkv/manifest"
	"lsmkv/sstable"
)

// DefaultCompactionPeriod is the reference tick period for the
// compaction task.
const DefaultCompactionPeriod = 200 * time.Millisecond

// CompactionWorker periodically inspects each level and, when it
// exceeds its configured threshold, merges it into the next level via
// SortedRunBuilder, per spec §4.8. As with FlushWorker, the merge I/O
// runs unlocked; only the manifest reads (reader lock) and the replace
// (writer lock) take the manifest's lock (§5).
type CompactionWorker struct {
	Manifest  *manifest.Manifest
	Builder   *SortedRunBuilder
	Threshold LevelThreshold

	SegmentSize int64

	ticker *time.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// Start spawns the compaction task on its own ticker goroutine.
func (w *CompactionWorker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.ticker = time.NewTicker(DefaultCompactionPeriod)
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

// Stop cancels the compaction task. It does not await the in-flight tick.
func (w *CompactionWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
}

// AwaitStop cancels the compaction task and blocks until the current
// tick, if any, finishes or timeout elapses.
func (w *CompactionWorker) AwaitStop(timeout time.Duration) {
	w.Stop()
	if w.done == nil {
		return
	}
	select {
	case <-w.done:
	case <-time.After(timeout):
	}
}

func (w *CompactionWorker) tick() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("compaction: recovered from panic, skipping tick: %v", r)
		}
	}()

	maxLevel := w.Manifest.MaxLevel()
	for level := 0; level <= maxLevel; level++ {
		w.compactLevel(level)
		// Compacting level may have pushed maxLevel+1 into existence.
		if next := w.Manifest.MaxLevel(); next > maxLevel {
			maxLevel = next
		}
	}
}

func (w *CompactionWorker) compactLevel(level int) {
	sourceTables := w.Manifest.GetSSTables(level)
	if len(sourceTables) <= w.Threshold(level) {
		return
	}
	targetTables := w.Manifest.GetSSTables(level + 1)

	inputs := make([]*sstable.Segment, 0, len(sourceTables)+len(targetTables))
	inputs = append(inputs, sourceTables...)
	inputs = append(inputs, targetTables...)

	merged, err := w.Builder.Merge(inputs, w.SegmentSize)
	if err != nil {
		log.Printf("compaction: level %d merge failed, skipping tick: %v", level, err)
		return
	}

	if err := w.Manifest.Replace(level, sourceTables, level+1, merged); err != nil {
		log.Printf("compaction: level %d replace failed, skipping tick: %v", level, err)
		for _, seg := range merged {
			seg.Delete()
		}
		return
	}

	for _, seg := range sourceTables {
		if err := seg.Delete(); err != nil {
			log.Printf("compaction: failed to remove old segment %s: %v", seg.Path(), err)
		}
	}
	for _, seg := range targetTables {
		if err := seg.Delete(); err != nil {
			log.Printf("compaction: failed to remove old segment %s: %v", seg.Path(), err)
		}
	}
}
