// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package bloom implements the BIP37 bloom filter used to serve SPV
// clients a filtered view of the chain. The consensus core treats an
// installed filter as an opaque match predicate; this package owns the
// predicate's internal representation and update rules.
package bloom

import (
	"math"
	"sync"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

const (
	// ln2Squared is used in the BIP37 filter size formula.
	ln2Squared = math.Ln2 * math.Ln2
	ln2 = math.Ln2

	// maxFilterBits caps a filter at the same size wire.MsgFilterLoad
	// will accept.
	maxFilterBits = wire.MaxFilterLoadFilterSize * 8

	maxFilterHashFuncs = wire.MaxFilterLoadHashFuncs
)

// Filter defines a bloom filter that can be updated incrementally as
// elements are added, following the semantics of BIP37's filterload,
// filteradd, and filterclear messages.
type Filter struct {
	mtx sync.Mutex
	filter []byte
	hashFuncs uint32
	tweak uint32
	update wire.BloomUpdateType
}

// NewFilter creates a new bloom filter tuned for approximately
// numElements entries at the requested false positive rate. tweak
// randomizes the hash seed so independent peers load distinguishable
// filters; updateType controls how matching outputs extend the filter.
func NewFilter(numElements, tweak uint32, fpRate float64, updateType wire.BloomUpdateType) *Filter {
	bitsNeeded := uint32(-1 * float64(numElements) * math.Log(fpRate) / ln2Squared)
	if bitsNeeded > maxFilterBits {
		bitsNeeded = maxFilterBits
	}
	dataLen := (bitsNeeded + 7) / 8

	hashFuncs := uint32(float64(dataLen*8) / float64(numElements) * ln2)
	if hashFuncs > maxFilterHashFuncs {
		hashFuncs = maxFilterHashFuncs
	}
	if hashFuncs < 1 {
		hashFuncs = 1
	}

	return &Filter{
		filter: make([]byte, dataLen),
		hashFuncs: hashFuncs,
		tweak: tweak,
		update: updateType,
	}
}

// LoadFilter returns a Filter built from a decoded filterload message.
func LoadFilter(msg *wire.MsgFilterLoad) *Filter {
	if msg.HashFuncs > maxFilterHashFuncs {
		return &Filter{}
	}
	return &Filter{
		filter: msg.Filter,
		hashFuncs: msg.HashFuncs,
		tweak: msg.Tweak,
		update: msg.Flags,
	}
}

// MsgFilterLoad returns a filterload message carrying the current
// filter state.
func (bf *Filter) MsgFilterLoad() *wire.MsgFilterLoad {
	bf.mtx.Lock()
	defer bf.mtx.Unlock()

	data := make([]byte, len(bf.filter))
	copy(data, bf.filter)
	return &wire.MsgFilterLoad{
		Filter: data,
		HashFuncs: bf.hashFuncs,
		Tweak: bf.tweak,
		Flags: bf.update,
	}
}

// hash returns the bit index for the i'th hash function applied to data,
// using the murmur3-based scheme specified by BIP37.
func (bf *Filter) hash(hashNum uint32, data []byte) uint32 {
	seed := hashNum*0xfba4c795 + bf.tweak
	h := murmurHash3(seed, data)
	return h % (uint32(len(bf.filter)) * 8)
}

func (bf *Filter) setBit(idx uint32) {
	bf.filter[idx>>3] |= 1 << (idx & 7)
}

func (bf *Filter) isSet(idx uint32) bool {
	return bf.filter[idx>>3]&(1<<(idx&7)) != 0
}

// matches reports whether data is a member of the filter.
func (bf *Filter) matches(data []byte) bool {
	if len(bf.filter) == 0 {
		return false
	}
	for i := uint32(0); i < bf.hashFuncs; i++ {
		if !bf.isSet(bf.hash(i, data)) {
			return false
		}
	}
	return true
}

// Add inserts data into the filter.
func (bf *Filter) Add(data []byte) {
	bf.mtx.Lock()
	defer bf.mtx.Unlock()

	if len(bf.filter) == 0 {
		return
	}
	for i := uint32(0); i < bf.hashFuncs; i++ {
		bf.setBit(bf.hash(i, data))
	}
}

// AddHash inserts the bytes of a chain hash into the filter.
func (bf *Filter) AddHash(hash *chainhash.Hash) {
	bf.Add(hash[:])
}

// AddOutPoint inserts a serialized outpoint (hash || little-endian
// index) into the filter.
func (bf *Filter) AddOutPoint(outpoint *wire.OutPoint) {
	data := make([]byte, chainhash.HashSize+4)
	copy(data, outpoint.Hash[:])
	data[chainhash.HashSize] = byte(outpoint.Index)
	data[chainhash.HashSize+1] = byte(outpoint.Index >> 8)
	data[chainhash.HashSize+2] = byte(outpoint.Index >> 16)
	data[chainhash.HashSize+3] = byte(outpoint.Index >> 24)
	bf.Add(data)
}

// Matches reports whether data is a member of the filter.
func (bf *Filter) Matches(data []byte) bool {
	bf.mtx.Lock()
	defer bf.mtx.Unlock()
	return bf.matches(data)
}

// MatchHash reports whether a chain hash is a member of the filter.
func (bf *Filter) MatchHash(hash *chainhash.Hash) bool {
	return bf.Matches(hash[:])
}

// MatchTxAndUpdate checks a transaction's hash, its outputs' scripts,
// and its inputs' previous outpoints against the filter, extending the
// filter per the BloomUpdateType in effect (BIP37's filter-update
// rules). It returns true if the transaction matched.
func (bf *Filter) MatchTxAndUpdate(tx *wire.MsgTx) bool {
	bf.mtx.Lock()
	defer bf.mtx.Unlock()

	matched := false
	hash := tx.TxHash()
	if bf.matches(hash[:]) {
		matched = true
	}

	for i, txOut := range tx.TxOut {
		if bf.matches(txOut.PkScript) {
			matched = true

			switch bf.update {
			case wire.BloomUpdateAll:
				op := wire.OutPoint{Hash: hash, Index: uint32(i)}
				bf.addOutPointLocked(&op)
			case wire.BloomUpdateP2PubkeyOnly:
				if isPubkeyOrMultisig(txOut.PkScript) {
					op := wire.OutPoint{Hash: hash, Index: uint32(i)}
					bf.addOutPointLocked(&op)
				}
			}
		}
	}

	if matched {
		return true
	}

	for _, txIn := range tx.TxIn {
		if bf.matches(txIn.PreviousOutPoint.Hash[:]) {
			matched = true
			continue
		}
		data := make([]byte, chainhash.HashSize+4)
		copy(data, txIn.PreviousOutPoint.Hash[:])
		data[chainhash.HashSize] = byte(txIn.PreviousOutPoint.Index)
		data[chainhash.HashSize+1] = byte(txIn.PreviousOutPoint.Index >> 8)
		data[chainhash.HashSize+2] = byte(txIn.PreviousOutPoint.Index >> 16)
		data[chainhash.HashSize+3] = byte(txIn.PreviousOutPoint.Index >> 24)
		if bf.matches(data) {
			matched = true
		}
	}

	return matched
}

func (bf *Filter) addOutPointLocked(op *wire.OutPoint) {
	data := make([]byte, chainhash.HashSize+4)
	copy(data, op.Hash[:])
	data[chainhash.HashSize] = byte(op.Index)
	data[chainhash.HashSize+1] = byte(op.Index >> 8)
	data[chainhash.HashSize+2] = byte(op.Index >> 16)
	data[chainhash.HashSize+3] = byte(op.Index >> 24)
	for i := uint32(0); i < bf.hashFuncs; i++ {
		bf.setBit(bf.hash(i, data))
	}
}

// isPubkeyOrMultisig does a cheap structural check for standalone
// pubkey or bare-multisig scripts, without depending on txscript, to
// keep the bloom package collaborator-only.
func isPubkeyOrMultisig(pkScript []byte) bool {
	if len(pkScript) == 35 && pkScript[0] == 0x21 && pkScript[34] == 0xac {
		return true
	}
	if len(pkScript) == 67 && pkScript[0] == 0x41 && pkScript[66] == 0xac {
		return true
	}
	return len(pkScript) > 0 && pkScript[len(pkScript)-1] == 0xae
}

// murmurHash3 is the 32-bit murmur3 hash used by BIP37 filters.
func murmurHash3(seed uint32, data []byte) uint32 {
	const (
		c1 = 0xcc9e2d51
		c2 = 0x1b873593
	)

	h1 := seed
	nblocks := len(data) / 4

	for i := 0; i < nblocks; i++ {
		k1 := uint32(data[i*4]) | uint32(data[i*4+1])<<8 |
		uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24

		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2

		h1 ^= k1
		h1 = (h1 << 13) | (h1 >> 19)
		h1 = h1*5 + 0xe6546b64
	}

	tail := data[nblocks*4:]
	var k1 uint32
	switch len(tail) {
	case 3:
		k1 ^= uint32(tail[2]) << 16
		fallthrough
	case 2:
		k1 ^= uint32(tail[1]) << 8
		fallthrough
	case 1:
		k1 ^= uint32(tail[0])
		k1 *= c1
		k1 = (k1 << 15) | (k1 >> 17)
		k1 *= c2
		h1 ^= k1
	}

	h1 ^= uint32(len(data))
	h1 ^= h1 >> 16
	h1 *= 0x85ebca6b
	h1 ^= h1 >> 13
	h1 *= 0xc2b2ae35
	h1 ^= h1 >> 16

	return h1
}
