// Package compaction implements the k-way merge / sorted-run builder
// and the two background workers (flush, compaction) described in
// spec §4.6-§4.8.
package compaction

import (
	"container/heap"
	"fmt"

	"lsmkv/sstable"
)

// mergeEntry is one candidate entry sitting in the merge heap, tagged
// with the index of the iterator it came from.
type mergeEntry struct {
	key       []byte
	value     []byte
	tombstone bool
	iterIndex int
}

// mergeHeap orders by key ascending, then by iterator index ascending
// — a smaller index is "newer" per the builder's contract: inputs
// must be supplied source-level-first (newest-first within level 0),
// then target-level inputs.
type mergeHeap []*mergeEntry

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	c := compareBytes(h[i].key, h[j].key)
	if c != 0 {
		return c < 0
	}
	return h[i].iterIndex < h[j].iterIndex
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*mergeEntry)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

// SortedRunBuilder performs the k-way merge described in spec §4.6:
// stable multi-source merge with duplicate suppression, tombstone
// preservation, and size-bounded output splitting.
type SortedRunBuilder struct {
	DataDir   string
	BlockSize int
	BloomBits uint
	BloomHash uint
	Cache     *sstable.BlockCache
}

// Merge merges inputs (ordered so that a lower index is "newer") into
// one or more segments of at most targetSize bytes each, except that a
// single entry larger than targetSize gets a segment of its own. Inputs
// must already be ordered per the builder's contract: source-level
// segments (newest-first within level 0) followed by target-level
// segments.
func (b *SortedRunBuilder) Merge(inputs []*sstable.Segment, targetSize int64) ([]*sstable.Segment, error) {
	iters := make([]*sstable.Iterator, len(inputs))
	for i, seg := range inputs {
		iters[i] = sstable.NewIterator(seg)
	}
	defer func() {
		for _, it := range iters {
			it.Close()
		}
	}()

	h := &mergeHeap{}
	heap.Init(h)
	for i, it := range iters {
		if err := pushNext(h, it, i); err != nil {
			return nil, err
		}
	}

	var (
		output      []*sstable.Segment
		writer      *sstable.Writer
		lastKey     []byte
		haveLastKey bool
	)

	finalize := func() error {
		if writer == nil || writer.Empty() {
			if writer != nil {
				writer.Abort()
			}
			return nil
		}
		seg, err := writer.Finish(b.Cache)
		if err != nil {
			return err
		}
		output = append(output, seg)
		return nil
	}

	for h.Len() > 0 {
		item := heap.Pop(h).(*mergeEntry)

		isDuplicate := haveLastKey && compareBytes(item.key, lastKey) == 0
		if !isDuplicate {
			lastKey = item.key
			haveLastKey = true

			size := int64(sstable.EntrySize(item.key, item.value, item.tombstone))
			if writer != nil && writer.Size() > 0 && writer.Size()+size > targetSize {
				if err := finalize(); err != nil {
					return nil, err
				}
				writer = nil
			}
			if writer == nil {
				w, err := sstable.NewWriter(sstable.NewSegmentPath(b.DataDir), b.BlockSize, b.BloomBits, b.BloomHash)
				if err != nil {
					return nil, err
				}
				writer = w
			}
			if err := writer.Write(item.key, item.value, item.tombstone); err != nil {
				return nil, fmt.Errorf("compaction: write merged entry: %w", err)
			}
		}

		if err := pushNext(h, iters[item.iterIndex], item.iterIndex); err != nil {
			return nil, err
		}
	}

	if err := finalize(); err != nil {
		return nil, err
	}

	return output, nil
}

func pushNext(h *mergeHeap, it *sstable.Iterator, idx int) error {
	if !it.HasNext() {
		return nil
	}
	key, value, tombstone, err := it.Next()
	if err != nil {
		return fmt.Errorf("compaction: read next entry: %w", err)
	}
	heap.Push(h, &mergeEntry{key: key, value: value, tombstone: tombstone, iterIndex: idx})
	return nil
}
