// Copyright (c) 2015-2016 The btcsuite developers
// Copyright (c) 2016-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package txscript

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/dchest/siphash"
)

// ProactiveEvictionDepth is the depth at which signatures for the
// transactions within a block are nearly guaranteed to no longer be
// useful to re-verify, so the entries may be proactively evicted.
const ProactiveEvictionDepth = 2

// shortTxHashKeySize is the size of the byte array required for key
// material for the SipHash keyed shortTxHash function.
const shortTxHashKeySize = 16

// sigCacheEntry represents an entry in the SigCache, keyed by the
// sighash of the signature. A cache hit triggers a secondary comparison
// of the signature and public key to rule out sighash collisions.
type sigCacheEntry struct {
	sig *ecdsa.Signature
	pubKey *secp256k1.PublicKey
	shortTxHash uint64
}

// SigCache implements an ECDSA signature verification cache with a
// randomized eviction policy. Only valid signatures are cached; a hit
// lets block validation skip re-running an already-verified mempool
// signature (worker-pool verification).
type SigCache struct {
	sync.RWMutex
	validSigs map[chainhash.Hash]sigCacheEntry
	maxEntries uint
	shortTxHashKey [shortTxHashKeySize]byte
}

// NewSigCache creates and initializes a new SigCache bounded to
// maxEntries; random entries are evicted to make room for new ones.
func NewSigCache(maxEntries uint) (*SigCache, error) {
	shortTxHashKey, err := createShortTxHashKey()
	if err != nil {
		return nil, err
	}

	return &SigCache{
		validSigs: make(map[chainhash.Hash]sigCacheEntry, maxEntries),
		maxEntries: maxEntries,
		shortTxHashKey: shortTxHashKey,
	}, nil
}

// Exists returns true if an entry of sig over sigHash for pubKey is
// found within the cache.
func (s *SigCache) Exists(sigHash chainhash.Hash, sig *ecdsa.Signature, pubKey *secp256k1.PublicKey) bool {
	s.RLock()
	entry, ok := s.validSigs[sigHash]
	s.RUnlock()

	return ok && entry.pubKey.IsEqual(pubKey) && entry.sig.IsEqual(sig)
}

// Add adds an entry for sig over sigHash under pubKey to the cache,
// evicting a random existing entry first if the cache is full.
func (s *SigCache) Add(sigHash chainhash.Hash, sig *ecdsa.Signature, pubKey *secp256k1.PublicKey, tx *wire.MsgTx) {
	s.Lock()
	defer s.Unlock()

	if s.maxEntries == 0 {
		return
	}

	if uint(len(s.validSigs)+1) > s.maxEntries {
		for sigEntry := range s.validSigs {
			delete(s.validSigs, sigEntry)
			break
		}
	}
	s.validSigs[sigHash] = sigCacheEntry{sig, pubKey, shortTxHash(tx, s.shortTxHashKey)}
}

func createShortTxHashKey() ([shortTxHashKeySize]byte, error) {
	var key [shortTxHashKeySize]byte
	_, err := rand.Read(key[:])
	return key, err
}

// shortTxHash generates a short, keyed hash from a transaction's hash
// using SipHash-2-4 so eviction-by-block doesn't need the full 32-byte
// tx hash as a cache key.
func shortTxHash(msg *wire.MsgTx, key [shortTxHashKeySize]byte) uint64 {
	k0 := binary.LittleEndian.Uint64(key[0:8])
	k1 := binary.LittleEndian.Uint64(key[8:16])
	txHash := msg.TxHash()
	return siphash.Hash(k0, k1, txHash[:])
}

// EvictEntries removes all entries from the cache that correspond to
// the transactions in block, which should be ProactiveEvictionDepth
// blocks deep.
func (s *SigCache) EvictEntries(block *wire.MsgBlock) {
	s.RLock()
	if len(s.validSigs) == 0 {
		s.RUnlock()
		return
	}
	s.RUnlock()

	go s.evictEntries(block)
}

func (s *SigCache) evictEntries(block *wire.MsgBlock) {
	shortTxHashSet := make(map[uint64]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		shortTxHashSet[shortTxHash(tx, s.shortTxHashKey)] = struct{}{}
	}

	s.Lock()
	for sigHash, sigEntry := range s.validSigs {
		if _, ok := shortTxHashSet[sigEntry.shortTxHash]; ok {
			delete(s.validSigs, sigHash)
		}
	}
	s.Unlock()
}
