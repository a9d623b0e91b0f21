// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// maxFlagsPerMerkleBlock is a defensive cap on the flag bitfield of a
// merkleblock message.
const maxFlagsPerMerkleBlock = MaxBlockHeadersPerMsg * 2

// MsgMerkleBlock implements the Message interface and delivers a block
// header plus a merkle proof for the subset of its transactions that
// match a peer's installed bloom filter (FILTERED_BLOCK,
// treated as an opaque predicate by the consensus core).
type MsgMerkleBlock struct {
	Header BlockHeader
	Transactions uint32
	Hashes []*chainhash.Hash
	Flags []byte
}

// BtcDecode decodes r into the receiver.
func (msg *MsgMerkleBlock) BtcDecode(r io.Reader, pver uint32) error {
	if err := msg.Header.Deserialize(r); err != nil {
		return err
	}

	txCount, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Transactions = txCount

	hashCount, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if hashCount > MaxBlockHeadersPerMsg {
		return messageError("MsgMerkleBlock.BtcDecode", "too many hashes")
	}
	hashes := make([]chainhash.Hash, hashCount)
	msg.Hashes = make([]*chainhash.Hash, hashCount)
	for i := uint64(0); i < hashCount; i++ {
		h := &hashes[i]
		msg.Hashes[i] = h
		if err := readElement(r, h); err != nil {
			return err
		}
	}

	flags, err := ReadVarBytes(r, pver, maxFlagsPerMerkleBlock, "merkle flags")
	if err != nil {
		return err
	}
	msg.Flags = flags
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgMerkleBlock) BtcEncode(w io.Writer, pver uint32) error {
	if err := msg.Header.Serialize(w); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, msg.Transactions); err != nil {
		return err
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.Hashes))); err != nil {
		return err
	}
	for _, h := range msg.Hashes {
		if err := writeElement(w, h); err != nil {
			return err
		}
	}
	return WriteVarBytes(w, pver, msg.Flags)
}

// Command returns "merkleblock".
func (msg *MsgMerkleBlock) Command() string { return CmdMerkleBlock }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgMerkleBlock) MaxPayloadLength(pver uint32) uint32 {
	return MaxBlockPayload
}
