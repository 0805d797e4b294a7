// Package manifest implements the durable, crash-safe catalog of
// live segments per level, as described in spec §4.5.
package manifest

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"lsmkv/sstable"
)

// ErrInvariantViolation is reported when a compaction attempts to
// replace tables that no longer match the manifest's current state,
// or otherwise assumes state the manifest does not hold.
var ErrInvariantViolation = errors.New("manifest: invariant violation")

const (
	currentFileName = "CURRENT"
	lockFileName    = "LOCK"
	manifestPrefix  = "MANIFEST-"
)

// SegmentOpener rebuilds a Segment from its on-disk file, used when
// loading the manifest at startup. It is the same signature as
// sstable.Open with its tuning parameters bound.
type SegmentOpener func(path string) (*sstable.Segment, error)

// Manifest is the authoritative, durable mapping from level index to
// an ordered list of live segments.
type Manifest struct {
	mu sync.RWMutex

	dataDir string
	lock    *flock.Flock

	levels  map[int][]*sstable.Segment
	nextNum int // next MANIFEST-NNNNNN sequence number to write
}

// Open loads dataDir's manifest, or initializes an empty one if none
// exists yet. It acquires an exclusive LOCK file for the lifetime of
// the returned Manifest so a second process cannot open the same data
// directory concurrently.
func Open(dataDir string, opener SegmentOpener) (*Manifest, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("manifest: create data dir %s: %w", dataDir, err)
	}

	lock := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("manifest: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("manifest: data directory %s is already open by another process", dataDir)
	}

	m := &Manifest{
		dataDir: dataDir,
		lock:    lock,
		levels:  make(map[int][]*sstable.Segment),
		nextNum: 1,
	}

	currentPath := filepath.Join(dataDir, currentFileName)
	if _, err := os.Stat(currentPath); err == nil {
		if err := m.load(currentPath, opener); err != nil {
			lock.Unlock()
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := m.persistLocked(); err != nil {
			lock.Unlock()
			return nil, err
		}
	} else {
		lock.Unlock()
		return nil, fmt.Errorf("manifest: stat %s: %w", currentPath, err)
	}

	return m, nil
}

func (m *Manifest) load(currentPath string, opener SegmentOpener) error {
	raw, err := os.ReadFile(currentPath)
	if err != nil {
		return fmt.Errorf("manifest: read %s: %w", currentPath, err)
	}
	manifestFile := strings.TrimSpace(string(raw))

	f, err := os.Open(filepath.Join(m.dataDir, manifestFile))
	if err != nil {
		return fmt.Errorf("manifest: open %s: %w", manifestFile, err)
	}
	defer f.Close()

	var serialized map[int][]string
	if err := gob.NewDecoder(f).Decode(&serialized); err != nil {
		return fmt.Errorf("manifest: decode %s: %w", manifestFile, err)
	}

	for level, relPaths := range serialized {
		segs := make([]*sstable.Segment, 0, len(relPaths))
		for _, rel := range relPaths {
			seg, err := opener(filepath.Join(m.dataDir, rel))
			if err != nil {
				return fmt.Errorf("manifest: reopen segment %s: %w", rel, err)
			}
			segs = append(segs, seg)
		}
		m.levels[level] = segs
	}

	if n := manifestSeqOf(manifestFile); n >= m.nextNum {
		m.nextNum = n + 1
	}
	return nil
}

func manifestSeqOf(fileName string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(fileName, manifestPrefix))
	if err != nil {
		return 0
	}
	return n
}

// GetSSTables returns a snapshot copy of level's segment list; callers
// never observe or mutate the live list.
func (m *Manifest) GetSSTables(level int) []*sstable.Segment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.levels[level]
	out := make([]*sstable.Segment, len(src))
	copy(out, src)
	return out
}

// MaxLevel returns the largest populated level, or -1 if empty.
func (m *Manifest) MaxLevel() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	max := -1
	for level, segs := range m.levels {
		if len(segs) > 0 && level > max {
			max = level
		}
	}
	return max
}

// AddSSTable prepends seg at level (newest-first) and persists.
func (m *Manifest) AddSSTable(level int, seg *sstable.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[level] = append([]*sstable.Segment{seg}, m.levels[level]...)
	return m.persistLocked()
}

// Replace removes oldTables from sourceLevel, clears targetLevel
// entirely, and installs newTables at targetLevel. Segments at
// sourceLevel that are not in oldTables (such as one flushed to level 0
// while the merge ran) are kept. The previous contents of targetLevel
// are dropped, so newTables must already subsume them, as a compaction
// that merges the entire target level does. If sourceLevel does not
// hold every segment in oldTables, Replace returns
// ErrInvariantViolation and leaves the manifest unchanged.
func (m *Manifest) Replace(sourceLevel int, oldTables []*sstable.Segment, targetLevel int, newTables []*sstable.Segment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]*sstable.Segment, 0, len(m.levels[sourceLevel]))
	for _, seg := range m.levels[sourceLevel] {
		if !slices.Contains(oldTables, seg) {
			kept = append(kept, seg)
		}
	}
	if len(m.levels[sourceLevel])-len(kept) != len(oldTables) {
		return fmt.Errorf("%w: level %d does not hold every table being replaced", ErrInvariantViolation, sourceLevel)
	}
	m.levels[sourceLevel] = kept
	delete(m.levels, targetLevel)
	if len(newTables) > 0 {
		m.levels[targetLevel] = append([]*sstable.Segment(nil), newTables...)
	}
	return m.persistLocked()
}

// Close releases the manifest's directory lock.
func (m *Manifest) Close() error {
	return m.lock.Unlock()
}
