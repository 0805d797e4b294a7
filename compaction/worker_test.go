package compaction_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsmkv/compaction"
	"lsmkv/manifest"
	"lsmkv/memtable"
	"lsmkv/sstable"
)

func openManifest(t *testing.T, dir string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Open(dir, func(path string) (*sstable.Segment, error) {
		return sstable.Open(path, 4096, 1000, 3, nil)
	})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestFlushWorkerDrainsQueueToLevelZero(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, dir)
	set := memtable.NewSet()

	set.Put([]byte("k1"), []byte("v1"), 1<<30)
	set.Rotate()
	require.True(t, set.HasFlushable())

	w := &compaction.FlushWorker{
		Memtables: set,
		Manifest:  m,
		DataDir:   dir,
		BlockSize: 4096,
		BloomBits: 1000,
		BloomHash: 3,
	}
	w.Start()
	defer w.AwaitStop(time.Second)

	require.Eventually(t, func() bool {
		return !set.HasFlushable() && len(m.GetSSTables(0)) == 1
	}, 2*time.Second, 5*time.Millisecond)

	segs := m.GetSSTables(0)
	require.Len(t, segs, 1)
	value, tombstone, found, err := segs[0].Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, tombstone)
	assert.Equal(t, []byte("v1"), value)
}

func TestFlushWorkerIdleWhenNothingSealed(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, dir)
	set := memtable.NewSet()

	w := &compaction.FlushWorker{
		Memtables: set,
		Manifest:  m,
		DataDir:   dir,
		BlockSize: 4096,
		BloomBits: 1000,
		BloomHash: 3,
	}
	w.Start()
	time.Sleep(3 * compaction.DefaultFlushPeriod)
	w.AwaitStop(time.Second)

	assert.Empty(t, m.GetSSTables(0))
}

func flushedSegment(t *testing.T, dir string, name string, entries map[string]string) *sstable.Segment {
	t.Helper()
	mt := memtable.New()
	for k, v := range entries {
		mt.Put([]byte(k), []byte(v))
	}
	seg, err := sstable.CreateFromMemtable(mt, dir+"/"+name, 4096, 1000, 3, nil)
	require.NoError(t, err)
	return seg
}

func TestCompactionWorkerMovesOverfullLevelToNext(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, dir)

	threshold := 2
	for i := 0; i < threshold+1; i++ {
		seg := flushedSegment(t, dir, fmt.Sprintf("l0-%d.sst", i), map[string]string{
			fmt.Sprintf("k-%d", i): fmt.Sprintf("v-%d", i),
		})
		require.NoError(t, m.AddSSTable(0, seg))
	}

	w := &compaction.CompactionWorker{
		Manifest:    m,
		Builder:     &compaction.SortedRunBuilder{DataDir: dir, BlockSize: 4096, BloomBits: 1000, BloomHash: 3},
		Threshold:   compaction.DefaultLevelThreshold(threshold, 10),
		SegmentSize: 1 << 20,
	}
	w.Start()
	defer w.AwaitStop(time.Second)

	require.Eventually(t, func() bool {
		return len(m.GetSSTables(0)) == 0 && len(m.GetSSTables(1)) > 0
	}, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < threshold+1; i++ {
		found := false
		for _, seg := range m.GetSSTables(1) {
			if _, _, ok, err := seg.Get([]byte(fmt.Sprintf("k-%d", i))); err == nil && ok {
				found = true
				break
			}
		}
		assert.True(t, found, "key k-%d must survive compaction", i)
	}
}

func TestCompactionWorkerIdleUnderThreshold(t *testing.T) {
	dir := t.TempDir()
	m := openManifest(t, dir)
	seg := flushedSegment(t, dir, "l0-0.sst", map[string]string{"k": "v"})
	require.NoError(t, m.AddSSTable(0, seg))

	w := &compaction.CompactionWorker{
		Manifest:    m,
		Builder:     &compaction.SortedRunBuilder{DataDir: dir, BlockSize: 4096, BloomBits: 1000, BloomHash: 3},
		Threshold:   compaction.DefaultLevelThreshold(4, 10),
		SegmentSize: 1 << 20,
	}
	w.Start()
	time.Sleep(3 * compaction.DefaultCompactionPeriod)
	w.AwaitStop(time.Second)

	assert.Len(t, m.GetSSTables(0), 1)
	assert.Empty(t, m.GetSSTables(1))
}
