package lsmkv

import "lsmkv/compaction"

// Options configures an Engine. DefaultOptions returns an Options with
// every field set to its reference default; Open does not fill in
// zero-value fields from those defaults.
type Options struct {
	// DataDirectory is where segments, the manifest, and the LOCK file
	// live.
	DataDirectory string

	// MemtableThresholdBytes is the active-memtable size at which it is
	// sealed and rotated into the flush queue.
	MemtableThresholdBytes int

	// SegmentSize bounds the size of each segment produced by a
	// compaction merge. A flush writes each sealed memtable as a single
	// segment regardless of SegmentSize.
	SegmentSize int64

	// BlockSize bounds the size of a data block within a segment.
	BlockSize int

	// BloomBits and BloomHashes tune the Bloom filter built for every
	// segment.
	BloomBits   uint
	BloomHashes uint

	// BlockCacheSize is the number of decoded blocks cached in memory
	// across all open segments. Zero disables the cache.
	BlockCacheSize int

	// LevelThreshold decides, for each level, how many tables it may
	// hold before compaction is triggered. Defaults to
	// compaction.DefaultLevelThreshold(LevelBaseThreshold, LevelGrowthFactor).
	LevelThreshold compaction.LevelThreshold

	// LevelBaseThreshold and LevelGrowthFactor parameterize the default
	// LevelThreshold policy when LevelThreshold is left nil.
	LevelBaseThreshold int
	LevelGrowthFactor  float64
}

// DefaultOptions returns the reference configuration: a 4 MB memtable
// rotation threshold, 4 KB blocks, a 1000-bit/3-hash Bloom filter per
// segment, and a level-0 threshold of 4 tables growing by a factor of
// 10 per level, matching the trigger policy described in spec §4.8.
func DefaultOptions(dataDirectory string) Options {
	return Options{
		DataDirectory:          dataDirectory,
		MemtableThresholdBytes: 4 * 1024 * 1024,
		SegmentSize:            4 * 1024 * 1024,
		BlockSize:              4096,
		BloomBits:              1000,
		BloomHashes:            3,
		BlockCacheSize:         2048,
		LevelBaseThreshold:     4,
		LevelGrowthFactor:      10,
	}
}

func (o Options) levelThreshold() compaction.LevelThreshold {
	if o.LevelThreshold != nil {
		return o.LevelThreshold
	}
	return compaction.DefaultLevelThreshold(o.LevelBaseThreshold, o.LevelGrowthFactor)
}
