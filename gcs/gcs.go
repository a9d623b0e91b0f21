// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2016-2017 The Lightning Network Developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package gcs implements a Golomb-coded set filter used to build
// compact, committed per-block filters for SPV-style rescans (the
// "committed filters" component in SPEC_FULL.md's supplemented
// component list). This is additive infrastructure alongside the
// per-peer bloom filter in the bloom package, not a replacement for it.
package gcs

import (
	"encoding/binary"
	"errors"
	"math"
	"sort"

	"github.com/aead/siphash"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/dchest/blake256"
)

var (
	// ErrNTooBig signifies that the filter can't handle N items.
	ErrNTooBig = errors.New("N does not fit in uint32")

	// ErrPTooBig signifies that the filter can't handle `1/2**P`
	// collision probability.
	ErrPTooBig = errors.New("P is too large")

	// ErrNoData signifies that an empty slice was passed.
	ErrNoData = errors.New("no data provided")

	// ErrMisserialized signifies a filter was misserialized and is
	// missing the N and/or P parameters of a serialized filter.
	ErrMisserialized = errors.New("misserialized filter")
)

// KeySize is the size of the byte array required for key material for
// the SipHash keyed hash function.
const KeySize = siphash.KeySize

// DefaultP is the collision probability exponent used for basic
// committed filters: a false positive rate of 1/2^19.
const DefaultP = 19

// Filter describes an immutable filter that can be built from a set of
// data elements, serialized, deserialized, and queried. The serialized
// form is compressed as a Golomb Coded Set (GCS); N and P are carried
// alongside it by the caller (the database package's cf/ index stores
// them next to the filter bytes).
type Filter struct {
	n           uint32
	p           uint8
	modulusNP   uint64
	filterNData []byte // 4 bytes n big endian, remainder is filter data
}

// NewFilter builds a new GCS filter with the collision probability of
// `1/(2**P)`, key `key`, and including every `[]byte` in `data` as a
// member of the set.
func NewFilter(P uint8, key [KeySize]byte, data [][]byte) (*Filter, error) {
	if len(data) == 0 {
		return nil, ErrNoData
	}
	if len(data) > math.MaxInt32 {
		return nil, ErrNTooBig
	}
	if P > 32 {
		return nil, ErrPTooBig
	}

	modP := uint64(1) << P
	f := Filter{
		n:         uint32(len(data)),
		p:         P,
		modulusNP: uint64(len(data)) * modP,
	}
	modPMask := modP - 1

	values := make(uint64Slice, 0, len(data))
	for _, d := range data {
		v := siphash.Sum64(d, &key) % f.modulusNP
		values = append(values, v)
	}
	sort.Sort(values)

	var b bitWriter
	var lastValue uint64
	for _, v := range values {
		remainder := (v - lastValue) & modPMask
		quotient := (v - lastValue - remainder) >> f.p
		lastValue = v

		for quotient > 0 {
			b.writeOne()
			quotient--
		}
		b.writeZero()
		b.writeNBits(remainder, uint(f.p))
	}

	ndata := make([]byte, 4+len(b.bytes))
	binary.BigEndian.PutUint32(ndata, f.n)
	copy(ndata[4:], b.bytes)
	f.filterNData = ndata

	return &f, nil
}

// FromBytes deserializes a GCS filter from a known N, P, and serialized
// filter as returned by Bytes().
func FromBytes(N uint32, P uint8, d []byte) (*Filter, error) {
	if P > 32 {
		return nil, ErrPTooBig
	}
	ndata := make([]byte, 4+len(d))
	binary.BigEndian.PutUint32(ndata, N)
	copy(ndata[4:], d)

	return &Filter{
		n:           N,
		p:           P,
		modulusNP:   uint64(N) * (uint64(1) << P),
		filterNData: ndata,
	}, nil
}

// Bytes returns the serialized filter body, excluding N and P.
func (f *Filter) Bytes() []byte { return f.filterNData[4:] }

// P returns the filter's collision probability as a negative power of
// 2 (a collision probability of 1/2**20 is represented as 20).
func (f *Filter) P() uint8 { return f.p }

// N returns the size of the data set used to build the filter.
func (f *Filter) N() uint32 { return f.n }

// Match checks whether a []byte value is likely (within collision
// probability) to be a member of the set represented by the filter.
func (f *Filter) Match(key [KeySize]byte, data []byte) bool {
	b := newBitReader(f.filterNData[4:])
	term := siphash.Sum64(data, &key) % f.modulusNP

	var lastValue uint64
	for lastValue < term {
		value, err := f.readFullUint64(&b)
		if err != nil {
			return false
		}
		value += lastValue
		if value == term {
			return true
		}
		lastValue = value
	}
	return false
}

// MatchAny checks whether any []byte value is likely (within collision
// probability) to be a member of the set represented by the filter,
// faster than calling Match for each value individually.
func (f *Filter) MatchAny(key [KeySize]byte, data [][]byte) bool {
	if len(data) == 0 {
		return false
	}

	b := newBitReader(f.filterNData[4:])

	values := make(uint64Slice, 0, len(data))
	for _, d := range data {
		values = append(values, siphash.Sum64(d, &key)%f.modulusNP)
	}
	sort.Sort(values)

	var lastValue1, lastValue2 uint64
	lastValue2 = values[0]
	i := 1
	for lastValue1 != lastValue2 {
		switch {
		case lastValue1 > lastValue2:
			if i < len(values) {
				lastValue2 = values[i]
				i++
			} else {
				return false
			}
		case lastValue2 > lastValue1:
			value, err := f.readFullUint64(&b)
			if err != nil {
				return false
			}
			lastValue1 += value
		}
	}
	return true
}

// readFullUint64 reads a value represented by the sum of a unary
// multiple of the filter's P modulus (2**P) and a big-endian P-bit
// remainder.
func (f *Filter) readFullUint64(b *bitReader) (uint64, error) {
	v, err := b.readUnary()
	if err != nil {
		return 0, err
	}
	rem, err := b.readNBits(uint(f.p))
	if err != nil {
		return 0, err
	}
	return v<<f.p + rem, nil
}

// Hash returns the BLAKE256 hash of the filter, used to chain filter
// headers the same way block headers chain block hashes.
func (f *Filter) Hash() chainhash.Hash {
	h := blake256.New()
	h.Write(f.filterNData)

	var hash chainhash.Hash
	copy(hash[:], h.Sum(nil))
	return hash
}

// MakeHeaderForFilter makes a filter chain header for a filter, given
// the filter and the previous filter chain header.
func MakeHeaderForFilter(filter *Filter, prevHeader *chainhash.Hash) chainhash.Hash {
	filterTip := make([]byte, 2*chainhash.HashSize)
	filterHash := filter.Hash()
	copy(filterTip, filterHash[:])
	copy(filterTip[chainhash.HashSize:], prevHeader[:])

	h := blake256.New()
	h.Write(filterTip)
	var hash chainhash.Hash
	copy(hash[:], h.Sum(nil))
	return hash
}
