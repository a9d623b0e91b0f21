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

// MaxBlockLocatorsPerMsg is the maximum number of block locator hashes
// allowed per message.
const MaxBlockLocatorsPerMsg = 500

// MsgGetBlocks implements the Message interface and requests an inv of
// block hashes starting after the first locator hash the receiver
// recognizes, up to HashStop (blocks-first sync mode).
type MsgGetBlocks struct {
	ProtocolVersion uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetBlocks) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.AddBlockLocatorHash", "too many block locator hashes")
	}
	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

// BtcDecode decodes r into the receiver.
func (msg *MsgGetBlocks) BtcDecode(r io.Reader, pver uint32) error {
	pv, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.ProtocolVersion = pv

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.BtcDecode", "too many block locator hashes")
	}

	locators := make([]chainhash.Hash, count)
	msg.BlockLocatorHashes = make([]*chainhash.Hash, count)
	for i := uint64(0); i < count; i++ {
		h := &locators[i]
		msg.BlockLocatorHashes[i] = h
		if err := readElement(r, h); err != nil {
			return err
		}
	}

	return readElement(r, &msg.HashStop)
}

// BtcEncode encodes the receiver to w.
func (msg *MsgGetBlocks) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.BlockLocatorHashes) > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetBlocks.BtcEncode", "too many block locator hashes")
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, hash := range msg.BlockLocatorHashes {
		if err := writeElement(w, hash); err != nil {
			return err
		}
	}
	return writeElement(w, &msg.HashStop)
}

// Command returns "getblocks".
func (msg *MsgGetBlocks) Command() string { return CmdGetBlocks }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgGetBlocks) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(MaxBlockLocatorsPerMsg)) +
	MaxBlockLocatorsPerMsg*chainhash.HashSize + chainhash.HashSize
}

// NewMsgGetBlocks returns a new getblocks message stopping at hashStop
// (the zero hash requests as many as the peer will send).
func NewMsgGetBlocks(hashStop *chainhash.Hash) *MsgGetBlocks {
	return &MsgGetBlocks{
		ProtocolVersion: ProtocolVersion,
		HashStop: *hashStop,
	}
}

// MsgGetHeaders implements the Message interface and requests a headers
// message starting after the first locator hash the receiver recognizes,
// up to HashStop (headers-first sync mode).
type MsgGetHeaders struct {
	ProtocolVersion uint32
	BlockLocatorHashes []*chainhash.Hash
	HashStop chainhash.Hash
}

// AddBlockLocatorHash adds a new block locator hash to the message.
func (msg *MsgGetHeaders) AddBlockLocatorHash(hash *chainhash.Hash) error {
	if len(msg.BlockLocatorHashes)+1 > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.AddBlockLocatorHash", "too many block locator hashes")
	}
	msg.BlockLocatorHashes = append(msg.BlockLocatorHashes, hash)
	return nil
}

// BtcDecode decodes r into the receiver.
func (msg *MsgGetHeaders) BtcDecode(r io.Reader, pver uint32) error {
	pv, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.ProtocolVersion = pv

	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.BtcDecode", "too many block locator hashes")
	}

	locators := make([]chainhash.Hash, count)
	msg.BlockLocatorHashes = make([]*chainhash.Hash, count)
	for i := uint64(0); i < count; i++ {
		h := &locators[i]
		msg.BlockLocatorHashes[i] = h
		if err := readElement(r, h); err != nil {
			return err
		}
	}

	return readElement(r, &msg.HashStop)
}

// BtcEncode encodes the receiver to w.
func (msg *MsgGetHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.BlockLocatorHashes) > MaxBlockLocatorsPerMsg {
		return messageError("MsgGetHeaders.BtcEncode", "too many block locator hashes")
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.BlockLocatorHashes))); err != nil {
		return err
	}
	for _, hash := range msg.BlockLocatorHashes {
		if err := writeElement(w, hash); err != nil {
			return err
		}
	}
	return writeElement(w, &msg.HashStop)
}

// Command returns "getheaders".
func (msg *MsgGetHeaders) Command() string { return CmdGetHeaders }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgGetHeaders) MaxPayloadLength(pver uint32) uint32 {
	return 4 + uint32(VarIntSerializeSize(MaxBlockLocatorsPerMsg)) +
	MaxBlockLocatorsPerMsg*chainhash.HashSize + chainhash.HashSize
}

// NewMsgGetHeaders returns a new getheaders message with a zero HashStop.
func NewMsgGetHeaders() *MsgGetHeaders {
	return &MsgGetHeaders{ProtocolVersion: ProtocolVersion}
}
