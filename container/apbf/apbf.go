// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package apbf implements an age-partitioned bloom filter: a ring of N
// bloom-filter generations that together approximate a sliding window of
// recently-seen items without the unbounded growth of a plain set.  The
// sync driver uses it to deduplicate recently-announced inventory hashes
// across peers.
package apbf

import (
	"math"
	"sync"

	"github.com/dchest/siphash"
)

// Filter is an age-partitioned bloom filter.  Insert always writes to the
// newest generation; Contains checks every live generation.  Generations
// are rotated by calling NextGeneration, typically on a timer or every K
// insertions, which drops the oldest generation and starts a fresh one.
type Filter struct {
	mtx         sync.Mutex
	generations [][]uint64 // one bitset per generation, most-recent last
	bitsPerGen  uint32
	numHashes   uint8
	k0, k1      uint64
}

// numGenerations is the number of overlapping generations kept alive; the
// filter approximates a window covering numGenerations rotations.
const numGenerations = 4

// New returns a Filter sized to hold approximately maxItems items per
// generation at the given false-positive rate fpRate, seeded with an
// arbitrary 128-bit key (key material need not be secret; it only needs
// to avoid adversarial hash-flooding of the underlying SipHash).
func New(maxItems uint32, fpRate float64, k0, k1 uint64) *Filter {
	if maxItems == 0 {
		maxItems = 1
	}
	m := optimalBits(maxItems, fpRate)
	k := optimalHashes(m, maxItems)

	f := &Filter{
		bitsPerGen: m,
		numHashes:  k,
		k0:         k0,
		k1:         k1,
	}
	words := (m + 63) / 64
	for i := 0; i < numGenerations; i++ {
		f.generations = append(f.generations, make([]uint64, words))
	}
	return f
}

func optimalBits(n uint32, p float64) uint32 {
	m := -float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	if m < 64 {
		m = 64
	}
	return uint32(m)
}

func optimalHashes(m, n uint32) uint8 {
	k := math.Round(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}
	return uint8(k)
}

// Insert adds item to the newest generation.
func (f *Filter) Insert(item []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	gen := f.generations[len(f.generations)-1]
	h1, h2 := f.splitHash(item)
	m := uint64(f.bitsPerGen)
	for i := uint8(0); i < f.numHashes; i++ {
		bit := (h1 + uint64(i)*h2) % m
		gen[bit/64] |= 1 << (bit % 64)
	}
}

// Contains reports whether item was plausibly inserted within the filter's
// current window.  False positives are possible; false negatives are not,
// as long as the item hasn't aged out of every live generation.
func (f *Filter) Contains(item []byte) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	h1, h2 := f.splitHash(item)
	m := uint64(f.bitsPerGen)
	for _, gen := range f.generations {
		hit := true
		for i := uint8(0); i < f.numHashes; i++ {
			bit := (h1 + uint64(i)*h2) % m
			if gen[bit/64]&(1<<(bit%64)) == 0 {
				hit = false
				break
			}
		}
		if hit {
			return true
		}
	}
	return false
}

// NextGeneration rotates the ring, dropping the oldest generation and
// starting a fresh (empty) newest generation.  Callers typically invoke
// this on a fixed insertion count or fixed wall-clock interval so the
// filter tracks a rolling window rather than growing forever.
func (f *Filter) NextGeneration() {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	words := (f.bitsPerGen + 63) / 64
	f.generations = append(f.generations[1:], make([]uint64, words))
}

func (f *Filter) splitHash(item []byte) (uint64, uint64) {
	h := siphash.Hash(f.k0, f.k1, item)
	// Derive a second independent-enough value via a salted re-hash
	// (Kirsch-Mitzenmacher double hashing), avoiding a second key schedule.
	h2 := siphash.Hash(f.k1, f.k0+1, item)
	return h, h2
}
