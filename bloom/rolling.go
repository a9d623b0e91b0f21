// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package bloom

import (
	"math"
	"sync"

	"github.com/dchest/siphash"
)

// RollingFilter is a probabilistic set that forgets its oldest entries
// as new ones are inserted, used to deduplicate recently seen
// transactions and addresses without unbounded growth.
type RollingFilter struct {
	mtx sync.Mutex

	entriesPerGeneration uint32
	generations uint8
	hashFuncs uint32

	entryCount uint32
	generation uint8
	data []uint64
	bitsPerEntry uint32
	key0, key1 uint64
}

// NewRollingFilter returns a rolling bloom filter sized for maxElements
// entries at the requested false positive rate (scenario 4
// exercises capacity 50, fpr 0.00001).
func NewRollingFilter(maxElements uint32, fpRate float64) *RollingFilter {
	const generations = 3

	logFp := math.Log(fpRate)
	hashFuncs := uint32(math.Max(1, math.Round(logFp/math.Log(0.5))))
	if hashFuncs > 50 {
		hashFuncs = 50
	}

	entriesPerGeneration := (maxElements + 1) / 2
	maxEntries := entriesPerGeneration * (generations + 1)

	bitsPerEntry := uint32(math.Ceil(-1 * float64(hashFuncs) / math.Log(1-math.Pow(fpRate, 1.0/float64(hashFuncs)))))
	if bitsPerEntry == 0 {
		bitsPerEntry = 1
	}

	numBits := maxEntries * bitsPerEntry
	numWords := (numBits + 63) / 64

	return &RollingFilter{
		entriesPerGeneration: entriesPerGeneration,
		generations: generations,
		hashFuncs: hashFuncs,
		data: make([]uint64, numWords),
		bitsPerEntry: bitsPerEntry,
		key0: 0x736f6d6570736575,
		key1: 0x646f72616e646f6d,
	}
}

// Reset clears the filter and reseeds its hash keys so previously
// inserted elements are forgotten.
func (f *RollingFilter) Reset(key0, key1 uint64) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	for i := range f.data {
		f.data[i] = 0
	}
	f.entryCount = 0
	f.generation = 0
	f.key0, f.key1 = key0, key1
}

// Insert adds data to the filter, rotating to a new generation (and
// clearing the oldest one) once the current generation fills up.
func (f *RollingFilter) Insert(data []byte) {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	if f.entryCount == f.entriesPerGeneration {
		f.entryCount = 0
		f.generation++
		if f.generation >= f.generations+1 {
			f.generation = 0
		}
		f.clearGeneration(f.generation)
	}
	f.entryCount++

	for _, idx := range f.bitIndexes(data, f.generation) {
		f.setBit(idx)
	}
}

// Contains reports whether data may have been inserted into the filter.
// False positives are possible; false negatives are not, until an entry
// ages out of every generation.
func (f *RollingFilter) Contains(data []byte) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	for gen := uint8(0); gen <= f.generations; gen++ {
		matched := true
		for _, idx := range f.bitIndexes(data, gen) {
			if !f.isSet(idx) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// bitIndexes returns the f.hashFuncs bit positions data maps to within
// the partition owned by generation gen.
func (f *RollingFilter) bitIndexes(data []byte, gen uint8) []uint64 {
	bitsPerGen := uint64(f.entriesPerGeneration) * uint64(f.bitsPerEntry)
	base := bitsPerGen * uint64(gen)

	h0 := siphash.Hash(f.key0, f.key1, data)
	idxs := make([]uint64, f.hashFuncs)
	for i := uint32(0); i < f.hashFuncs; i++ {
		combined := h0 + uint64(i)*0x9e3779b97f4a7c15
		idxs[i] = base + combined%bitsPerGen
	}
	return idxs
}

func (f *RollingFilter) setBit(idx uint64) {
	f.data[idx/64] |= 1 << (idx % 64)
}

func (f *RollingFilter) isSet(idx uint64) bool {
	return f.data[idx/64]&(1<<(idx%64)) != 0
}

// clearGeneration zeroes the bit range owned by the given generation.
func (f *RollingFilter) clearGeneration(gen uint8) {
	bitsPerGen := uint64(f.entriesPerGeneration) * uint64(f.bitsPerEntry)
	start := bitsPerGen * uint64(gen)
	end := start + bitsPerGen
	for idx := start; idx < end && idx/64 < uint64(len(f.data)); idx++ {
		f.data[idx/64] &^= 1 << (idx % 64)
	}
}
