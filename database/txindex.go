// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"encoding/binary"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// TxLocation records where a transaction lives within a stored block,
// the value of the optional t/ transaction index.
type TxLocation struct {
	BlockHash chainhash.Hash
	BlockIndex int32
	Offset uint32
	Length uint32
}

func serializeTxLocation(loc TxLocation) []byte {
	var buf bytes.Buffer
	buf.Write(loc.BlockHash[:])
	var rest [12]byte
	binary.LittleEndian.PutUint32(rest[0:4], uint32(loc.BlockIndex))
	binary.LittleEndian.PutUint32(rest[4:8], loc.Offset)
	binary.LittleEndian.PutUint32(rest[8:12], loc.Length)
	buf.Write(rest[:])
	return buf.Bytes()
}

func deserializeTxLocation(data []byte) TxLocation {
	var loc TxLocation
	copy(loc.BlockHash[:], data[:chainhash.HashSize])
	rest := data[chainhash.HashSize:]
	loc.BlockIndex = int32(binary.LittleEndian.Uint32(rest[0:4]))
	loc.Offset = binary.LittleEndian.Uint32(rest[4:8])
	loc.Length = binary.LittleEndian.Uint32(rest[8:12])
	return loc
}

// PutTxIndex stages the optional txid -> location record. A no-op when
// txIndexEnabled is false, since the index is opt-in overhead.
func (b *Batch) PutTxIndex(txIndexEnabled bool, txid chainhash.Hash, loc TxLocation) {
	if !txIndexEnabled {
		return
	}
	b.b.Put(concatKey(prefixTx, txid[:]), serializeTxLocation(loc))
}

// DeleteTxIndex removes the optional txid -> location record.
func (b *Batch) DeleteTxIndex(txid chainhash.Hash) {
	b.b.Delete(concatKey(prefixTx, txid[:]))
}

// TxLocation resolves a txid to its stored block location.
func (s *Store) TxLocation(txid chainhash.Hash) (TxLocation, error) {
	data, err := s.get(concatKey(prefixTx, txid[:]))
	if err != nil {
		return TxLocation{}, err
	}
	return deserializeTxLocation(data), nil
}

// addrKey builds the common T/addrhash/txid and C/addrhash/txid/index
// key shape.
func addrKey(prefix, addrHash []byte, rest...[]byte) []byte {
	return concatKey(prefix, append([][]byte{addrHash}, rest...)...)
}

// PutAddrTx stages an address->transaction index entry (T/ prefix).
func (b *Batch) PutAddrTx(addrIndexEnabled bool, addrHash []byte, txid chainhash.Hash) {
	if !addrIndexEnabled {
		return
	}
	b.b.Put(addrKey(prefixAddrTx, addrHash, txid[:]), []byte{0})
}

// DeleteAddrTx removes an address->transaction index entry.
func (b *Batch) DeleteAddrTx(addrHash []byte, txid chainhash.Hash) {
	b.b.Delete(addrKey(prefixAddrTx, addrHash, txid[:]))
}

// AddrTxs returns every txid indexed under addrHash.
func (s *Store) AddrTxs(addrHash []byte) ([]chainhash.Hash, error) {
	var out []chainhash.Hash
	prefix := concatKey(prefixAddrTx, addrHash)
	err := s.iteratePrefix(prefix, func(key, _ []byte) bool {
			var h chainhash.Hash
			copy(h[:], key[len(prefix):])
			out = append(out, h)
			return true
	})
	return out, err
}

// PutAddrCoin stages an address->coin index entry (C/ prefix).
func (b *Batch) PutAddrCoin(addrIndexEnabled bool, addrHash []byte, op wire.OutPoint) {
	if !addrIndexEnabled {
		return
	}
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	b.b.Put(addrKey(prefixAddrCoin, addrHash, op.Hash[:], idx[:]), []byte{0})
}

// DeleteAddrCoin removes an address->coin index entry.
func (b *Batch) DeleteAddrCoin(addrHash []byte, op wire.OutPoint) {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	b.b.Delete(addrKey(prefixAddrCoin, addrHash, op.Hash[:], idx[:]))
}

// AddrCoins returns every outpoint indexed as spendable by addrHash.
func (s *Store) AddrCoins(addrHash []byte) ([]wire.OutPoint, error) {
	var out []wire.OutPoint
	prefix := concatKey(prefixAddrCoin, addrHash)
	err := s.iteratePrefix(prefix, func(key, _ []byte) bool {
			rest := key[len(prefix):]
			if len(rest) != chainhash.HashSize+4 {
				return true
			}
			var op wire.OutPoint
			copy(op.Hash[:], rest[:chainhash.HashSize])
			op.Index = binary.LittleEndian.Uint32(rest[chainhash.HashSize:])
			out = append(out, op)
			return true
	})
	return out, err
}
