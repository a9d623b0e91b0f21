// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// Coin is an unspent output record (Coin entity): created
// when an output is created, removed when spent, and carried into an
// UndoRecord when its removal is the result of connecting a block.
type Coin struct {
	Value int64
	PkScript []byte
	Height int32
	IsCoinBase bool
}

// UndoRecord is the ordered list of Coins a block's connection removed,
// in the order their spending inputs appear in the block.
type UndoRecord []Coin

func coinKey(op wire.OutPoint) []byte {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], op.Index)
	return concatKey(prefixCoin, op.Hash[:], idx[:])
}

func serializeCoin(c *Coin) []byte {
	var buf bytes.Buffer
	var hdr [9]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(c.Value))
	if c.IsCoinBase {
		hdr[8] = 1
	}
	buf.Write(hdr[:])
	var heightBuf [4]byte
	binary.LittleEndian.PutUint32(heightBuf[:], uint32(c.Height))
	buf.Write(heightBuf[:])
	_ = wire.WriteVarBytes(&buf, 0, c.PkScript)
	return buf.Bytes()
}

func deserializeCoin(data []byte) (*Coin, error) {
	if len(data) < 13 {
		return nil, io.ErrUnexpectedEOF
	}
	c := &Coin{
		Value: int64(binary.LittleEndian.Uint64(data[:8])),
		IsCoinBase: data[8] != 0,
		Height: int32(binary.LittleEndian.Uint32(data[9:13])),
	}
	script, err := wire.ReadVarBytes(bytes.NewReader(data[13:]), 0, wire.MaxMessagePayload, "coin script")
	if err != nil {
		return nil, err
	}
	c.PkScript = script
	return c, nil
}

// PutCoin stages the UTXO record for outpoint.
func (b *Batch) PutCoin(op wire.OutPoint, c *Coin) {
	b.b.Put(coinKey(op), serializeCoin(c))
}

// DeleteCoin stages removal of the UTXO record for outpoint, used when
// the output is spent.
func (b *Batch) DeleteCoin(op wire.OutPoint) {
	b.b.Delete(coinKey(op))
}

// Coin fetches the UTXO record for outpoint, or ErrNotFound if the
// output does not exist or is already spent.
func (s *Store) Coin(op wire.OutPoint) (*Coin, error) {
	data, err := s.get(coinKey(op))
	if err != nil {
		return nil, err
	}
	return deserializeCoin(data)
}

// HasCoin reports whether an unspent record exists for outpoint,
// without decoding the value.
func (s *Store) HasCoin(op wire.OutPoint) (bool, error) {
	return s.has(coinKey(op))
}

func serializeUndo(u UndoRecord) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(u)))
	for i := range u {
		data := serializeCoin(&u[i])
		_ = wire.WriteVarBytes(&buf, 0, data)
	}
	return buf.Bytes()
}

func deserializeUndo(data []byte) (UndoRecord, error) {
	r := bytes.NewReader(data)
	count, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return nil, err
	}
	out := make(UndoRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		raw, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "undo coin")
		if err != nil {
			return nil, err
		}
		c, err := deserializeCoin(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// PutUndoBlock stages the undo record for the block identified by hash.
// A no-op in SPV mode.
func (b *Batch) PutUndoBlock(s *Store, hash chainhash.Hash, u UndoRecord) {
	if s.spv {
		return
	}
	b.b.Put(concatKey(prefixUndo, hash[:]), serializeUndo(u))
}

// DeleteUndoBlock stages removal of the undo record for hash, done
// after a pruning window closes or a disconnect consumes it.
func (b *Batch) DeleteUndoBlock(hash chainhash.Hash) {
	b.b.Delete(concatKey(prefixUndo, hash[:]))
}

// UndoBlock fetches the undo record for hash.
func (s *Store) UndoBlock(hash chainhash.Hash) (UndoRecord, error) {
	data, err := s.get(concatKey(prefixUndo, hash[:]))
	if err != nil {
		return nil, err
	}
	return deserializeUndo(data)
}

// PutBlock stages the raw block body for hash. A no-op in SPV mode.
func (b *Batch) PutBlock(s *Store, hash chainhash.Hash, blk *wire.MsgBlock) error {
	if s.spv {
		return nil
	}
	var buf bytes.Buffer
	if err := blk.BtcEncode(&buf, wire.ProtocolVersion); err != nil {
		return err
	}
	b.b.Put(concatKey(prefixBlock, hash[:]), buf.Bytes())
	return nil
}

// DeleteBlock stages removal of the raw block body for hash, used by
// pruning.
func (b *Batch) DeleteBlock(hash chainhash.Hash) {
	b.b.Delete(concatKey(prefixBlock, hash[:]))
}

// Block fetches the raw block body for hash. Returns ErrNotFound if the
// store is SPV-only or the block has been pruned.
func (s *Store) Block(hash chainhash.Hash) (*wire.MsgBlock, error) {
	data, err := s.get(concatKey(prefixBlock, hash[:]))
	if err != nil {
		return nil, err
	}
	blk := new(wire.MsgBlock)
	if err := blk.BtcDecode(bytes.NewReader(data), wire.ProtocolVersion); err != nil {
		return nil, err
	}
	return blk, nil
}

// HasBlock reports whether a block body is stored for hash.
func (s *Store) HasBlock(hash chainhash.Hash) (bool, error) {
	return s.has(concatKey(prefixBlock, hash[:]))
}
