// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// MaxBlockPayload is a defensive cap on a decoded block message's size.
// The consensus weight limit is enforced by the chain
// engine; this is only a wire-level allocation guard.
const MaxBlockPayload = 8 * 1024 * 1024

// MsgBlock defines a Bitcoin block (Block entity): a header
// together with its transactions. It is immutable once parsed.
type MsgBlock struct {
	Header BlockHeader
	Transactions []*MsgTx
}

// BtcDecode decodes r into the receiver.
func (msg *MsgBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxTxPerBlock {
		return messageError("MsgBlock.BtcDecode", "too many transactions")
	}

	msg.Transactions = make([]*MsgTx, 0, count)
	for i := uint64(0); i < count; i++ {
		tx := new(MsgTx)
		if err := tx.BtcDecode(r, pver); err != nil {
			return err
		}
		msg.Transactions = append(msg.Transactions, tx)
	}
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.Transactions))); err != nil {
		return err
	}
	for _, tx := range msg.Transactions {
		if err := tx.BtcEncode(w, pver); err != nil {
			return err
		}
	}
	return nil
}

// Command returns "block".
func (msg *MsgBlock) Command() string { return CmdBlock }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}

// BlockHash returns the block's identifier (the header hash).
func (msg *MsgBlock) BlockHash() chainhash.Hash {
	return msg.Header.BlockHash()
}

// AddTransaction appends a transaction to the block.
func (msg *MsgBlock) AddTransaction(tx *MsgTx) {
	msg.Transactions = append(msg.Transactions, tx)
}

// SerializeSize returns the number of bytes it would take to serialize
// the block, including witness data.
func (msg *MsgBlock) SerializeSize() int {
	n := BlockHeaderLen + VarIntSerializeSize(uint64(len(msg.Transactions)))
	for _, tx := range msg.Transactions {
		n += tx.SerializeSize()
	}
	return n
}

// Weight computes the block's consensus weight: 3 times the base
// (non-witness) size plus the total size, matching MAX_BLOCK_WEIGHT
// scaling.
func (msg *MsgBlock) Weight() int64 {
	var baseBuf bytes.Buffer
	_ = msg.Header.Serialize(&baseBuf)
	_ = WriteVarInt(&baseBuf, 0, uint64(len(msg.Transactions)))
	totalSize := int64(baseBuf.Len())
	baseSize := totalSize
	for _, tx := range msg.Transactions {
		var b, full bytes.Buffer
		_ = tx.serialize(&b, false)
		_ = tx.serialize(&full, tx.HasWitness())
		baseSize += int64(b.Len())
		totalSize += int64(full.Len())
	}
	return baseSize*3 + totalSize
}
