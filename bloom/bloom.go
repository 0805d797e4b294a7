// Package bloom implements the per-segment probabilistic membership
// filter used by sstable to short-circuit point lookups for absent keys.
package bloom

import (
	bloomfilter "github.com/bits-and-blooms/bloom/v3"
)

// DefaultBits and DefaultHashes match the reference filter's tuning:
// 1000 bits, 3 hash positions per key.
const (
	DefaultBits   uint = 1000
	DefaultHashes uint = 3
)

// Filter is a fixed-size Bloom filter. False positives are possible;
// false negatives are not.
type Filter struct {
	f *bloomfilter.BloomFilter
}

// New creates an empty filter with the given bit-vector size and hash count.
func New(bits, hashes uint) *Filter {
	if bits == 0 {
		bits = DefaultBits
	}
	if hashes == 0 {
		hashes = DefaultHashes
	}
	return &Filter{f: bloomfilter.New(bits, hashes)}
}

// Add sets the k bit positions derived from key.
func (f *Filter) Add(key []byte) {
	f.f.Add(key)
}

// MightContain returns false only if key is definitely absent.
func (f *Filter) MightContain(key []byte) bool {
	return f.f.Test(key)
}
