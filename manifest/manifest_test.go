package manifest_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lsmkv/manifest"
	"lsmkv/memtable"
	"lsmkv/sstable"
)

func openerFor(t *testing.T) manifest.SegmentOpener {
	t.Helper()
	return func(path string) (*sstable.Segment, error) {
		return sstable.Open(path, 4096, 1000, 3, nil)
	}
}

func newSegment(t *testing.T, dir string, n int) *sstable.Segment {
	t.Helper()
	mt := memtable.New()
	mt.Put([]byte(fmt.Sprintf("k-%03d", n)), []byte("v"))
	path := filepath.Join(dir, fmt.Sprintf("seg-%d.sst", n))
	seg, err := sstable.CreateFromMemtable(mt, path, 4096, 1000, 3, nil)
	require.NoError(t, err)
	return seg
}

func TestManifestInitializesEmpty(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, -1, m.MaxLevel())
	assert.Empty(t, m.GetSSTables(0))
}

func TestManifestAddSSTablePrependsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer m.Close()

	s1 := newSegment(t, dir, 1)
	s2 := newSegment(t, dir, 2)

	require.NoError(t, m.AddSSTable(0, s1))
	require.NoError(t, m.AddSSTable(0, s2))

	segs := m.GetSSTables(0)
	require.Len(t, segs, 2)
	assert.Equal(t, s2.Path(), segs[0].Path(), "most recent flush must be at index 0")
	assert.Equal(t, s1.Path(), segs[1].Path())
}

func TestManifestReplaceClearsSourceAndTarget(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer m.Close()

	l0a := newSegment(t, dir, 1)
	l0b := newSegment(t, dir, 2)
	l1 := newSegment(t, dir, 3)
	require.NoError(t, m.AddSSTable(0, l0a))
	require.NoError(t, m.AddSSTable(0, l0b))
	require.NoError(t, m.AddSSTable(1, l1))

	merged := newSegment(t, dir, 4)
	require.NoError(t, m.Replace(0, m.GetSSTables(0), 1, []*sstable.Segment{merged}))

	assert.Empty(t, m.GetSSTables(0), "source level must be empty after compaction")
	segs := m.GetSSTables(1)
	require.Len(t, segs, 1, "target level must contain exactly the merged output, not old + new")
	assert.Equal(t, merged.Path(), segs[0].Path())
}

func TestManifestDurabilityAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)

	s1 := newSegment(t, dir, 1)
	require.NoError(t, m.AddSSTable(0, s1))
	require.NoError(t, m.Close())

	reopened, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer reopened.Close()

	segs := reopened.GetSSTables(0)
	require.Len(t, segs, 1)
	assert.Equal(t, s1.Path(), segs[0].Path())
}

func TestManifestRefusesConcurrentOpen(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer m.Close()

	_, err = manifest.Open(dir, openerFor(t))
	assert.Error(t, err)
}

func TestManifestMaxLevel(t *testing.T) {
	dir := t.TempDir()
	m, err := manifest.Open(dir, openerFor(t))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, -1, m.MaxLevel())

	require.NoError(t, m.AddSSTable(0, newSegment(t, dir, 1)))
	assert.Equal(t, 0, m.MaxLevel())

	require.NoError(t, m.AddSSTable(2, newSegment(t, dir, 2)))
	assert.Equal(t, 2, m.MaxLevel())
}
