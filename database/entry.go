// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/math/uint256"
	"github.com/chaincore/btcnode/wire"
)

// ChainEntry is a header together with its derived height and
// accumulated work (ChainEntry entity).
type ChainEntry struct {
	Header wire.BlockHeader
	Height int32
	Chainwork *uint256.Uint256
}

// Hash returns the entry's block hash.
func (e *ChainEntry) Hash() chainhash.Hash {
	return e.Header.BlockHash()
}

// serializeEntry encodes an entry as: 80-byte header, 4-byte LE height,
// 32-byte big-endian chainwork.
func serializeEntry(e *ChainEntry) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	var heightBuf [4]byte
	binary.LittleEndian.PutUint32(heightBuf[:], uint32(e.Height))
	buf.Write(heightBuf[:])

	work := e.Chainwork.ToBig().Bytes()
	var workBuf [32]byte
	copy(workBuf[32-len(work):], work)
	buf.Write(workBuf[:])
	return buf.Bytes(), nil
}

func deserializeEntry(data []byte) (*ChainEntry, error) {
	r := bytes.NewReader(data)
	var e ChainEntry
	if err := e.Header.Deserialize(r); err != nil {
		return nil, err
	}
	var heightBuf [4]byte
	if _, err := r.Read(heightBuf[:]); err != nil {
		return nil, err
	}
	e.Height = int32(binary.LittleEndian.Uint32(heightBuf[:]))

	var workBuf [32]byte
	if _, err := r.Read(workBuf[:]); err != nil {
		return nil, err
	}
	e.Chainwork = uint256.NewFromBig(new(big.Int).SetBytes(workBuf[:]))
	return &e, nil
}

// PutEntry stages the header/height/chainwork record for hash, keyed by
// the e/ prefix, and the h/ quick-height-by-hash index.
func (b *Batch) PutEntry(hash chainhash.Hash, e *ChainEntry) error {
	data, err := serializeEntry(e)
	if err != nil {
		return err
	}
	b.b.Put(concatKey(prefixEntry, hash[:]), data)

	var heightBuf [4]byte
	binary.LittleEndian.PutUint32(heightBuf[:], uint32(e.Height))
	b.b.Put(concatKey(prefixHeight, hash[:]), heightBuf[:])
	return nil
}

// Entry fetches (and caches) the entry for hash.
func (s *Store) Entry(hash chainhash.Hash) (*ChainEntry, error) {
	if e, ok := s.entryCache.Get(hash); ok {
		return e, nil
	}
	data, err := s.get(concatKey(prefixEntry, hash[:]))
	if err != nil {
		return nil, err
	}
	e, err := deserializeEntry(data)
	if err != nil {
		return nil, err
	}
	s.entryCache.Add(hash, e)
	return e, nil
}

// HeightByHash returns the height recorded for hash without decoding
// the full entry.
func (s *Store) HeightByHash(hash chainhash.Hash) (int32, error) {
	data, err := s.get(concatKey(prefixHeight, hash[:]))
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}

func heightKey(height int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(height))
	return buf[:]
}

// SetMainChainHash stages the height->hash main-chain index entry
// (H/ prefix, big-endian height for range scans).
func (b *Batch) SetMainChainHash(height int32, hash chainhash.Hash) {
	b.b.Put(concatKey(prefixMain, heightKey(height)), hash[:])
}

// DeleteMainChainHash removes the height->hash main-chain index entry,
// used when disconnecting the block at height during a reorg.
func (b *Batch) DeleteMainChainHash(height int32) {
	b.b.Delete(concatKey(prefixMain, heightKey(height)))
}

// HashByHeight resolves the main-chain hash at height, consulting the
// height LRU before the H/ index.
func (s *Store) HashByHeight(height int32) (chainhash.Hash, error) {
	if h, ok := s.heightCache.Get(height); ok {
		return h, nil
	}
	data, err := s.get(concatKey(prefixMain, heightKey(height)))
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], data)
	s.heightCache.Add(height, h)
	return h, nil
}

// SetNextHash stages the forward pointer used to walk the main chain
// without consulting the height index (n/ prefix, main chain only).
func (b *Batch) SetNextHash(hash, next chainhash.Hash) {
	b.b.Put(concatKey(prefixNext, hash[:]), next[:])
}

// DeleteNextHash removes the forward pointer for hash.
func (b *Batch) DeleteNextHash(hash chainhash.Hash) {
	b.b.Delete(concatKey(prefixNext, hash[:]))
}

// NextHash returns the main-chain successor of hash, if any.
func (s *Store) NextHash(hash chainhash.Hash) (chainhash.Hash, error) {
	data, err := s.get(concatKey(prefixNext, hash[:]))
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], data)
	return h, nil
}

// InvalidateCachedHeight drops height from the height LRU, used when a
// reorg disconnects the block at height so its cached main-chain hash
// is no longer served (the e/ record itself is retained for history).
func (s *Store) InvalidateCachedHeight(height int32) {
	s.heightCache.Remove(height)
}
