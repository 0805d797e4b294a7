package bloom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lsmkv/bloom"
)

func TestFilterSoundness(t *testing.T) {
	f := bloom.New(bloom.DefaultBits, bloom.DefaultHashes)

	keys := [][]byte{[]byte("a"), []byte("b"), []byte("banana"), []byte("key-000123")}
	for _, k := range keys {
		f.Add(k)
	}

	for _, k := range keys {
		assert.True(t, f.MightContain(k), "present key must never be reported absent: %s", k)
	}
}

func TestFilterDefaultsWhenZero(t *testing.T) {
	f := bloom.New(0, 0)
	f.Add([]byte("x"))
	assert.True(t, f.MightContain([]byte("x")))
}

func TestFilterLikelyAbsent(t *testing.T) {
	f := bloom.New(bloom.DefaultBits, bloom.DefaultHashes)
	f.Add([]byte("present"))

	// Not a soundness guarantee (false positives are allowed), but with
	// a 1000-bit filter and a single inserted key this should not collide.
	assert.False(t, f.MightContain([]byte("definitely-not-inserted-key")))
}
