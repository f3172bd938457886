// Package bloom implements a small probabilistic membership filter used by
// internal/metaindex to short-circuit lookups for keys it has never seen.
//
// Adapted from the bitset-of-k-hashes bloom filter pattern, generalized to
// operate over arbitrary composite keys ([]byte) instead of strings. The
// bitset is sized once by New and does not grow as entries are added.
package bloom

import (
	"hash"
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

const (
	defaultBits   = 1 << 16 // bitset size used when New's n/p are not usable.
	defaultHashes = 4
)

// Filter is a fixed-k bloom filter over []byte keys, safe for concurrent use.
type Filter struct {
	mu      sync.RWMutex
	bitset  []uint64
	hashFns []hash.Hash32
	k       int
}

// New creates a filter sized for roughly n entries at false-positive rate p.
// If n or p are not usable, a filter with sane defaults is returned instead
// of nil, since a bloom pre-check is always optional and must never block
// normal operation.
func New(n int, p float64) *Filter {
	bits := defaultBits
	k := defaultHashes

	if n > 0 && p > 0 && p < 1 {
		m := int(math.Ceil(-float64(n) * math.Log(p) / math.Pow(math.Log(2), 2)))
		if m > 0 {
			bits = m
		}
		kk := int(math.Round((float64(bits) / float64(n)) * math.Log(2)))
		if kk > 0 {
			k = kk
		}
	}

	return newFilter(bits, k)
}

func newFilter(bits, k int) *Filter {
	words := (bits + 63) / 64
	hashFns := make([]hash.Hash32, k)
	for i := range hashFns {
		hashFns[i] = murmur3.New32WithSeed(uint32(i))
	}
	return &Filter{
		bitset:  make([]uint64, words),
		hashFns: hashFns,
		k:       k,
	}
}

func (f *Filter) nbits() int {
	return len(f.bitset) * 64
}

// Add records key as present in the filter.
func (f *Filter) Add(key []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.nbits()
	for _, fn := range f.hashFns {
		fn.Reset()
		_, _ = fn.Write(key)
		idx := int(fn.Sum32()) % n
		if idx < 0 {
			idx += n
		}
		f.bitset[idx/64] |= 1 << uint(idx%64)
	}
}

// MaybeContains returns false if key is definitely absent, true if it might
// be present (subject to the filter's false-positive rate).
func (f *Filter) MaybeContains(key []byte) bool {
	// A full lock, not a read lock: the shared hashers are reset and written.
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.nbits()
	for _, fn := range f.hashFns {
		fn.Reset()
		_, _ = fn.Write(key)
		idx := int(fn.Sum32()) % n
		if idx < 0 {
			idx += n
		}
		if f.bitset[idx/64]&(1<<uint(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears the filter in place. The metadata index does not call it: a
// committed compaction replaces the index's filter with the one built
// alongside the shadow tree.
func (f *Filter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bitset {
		f.bitset[i] = 0
	}
}
