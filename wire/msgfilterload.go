// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MaxFilterLoadHashFuncs and MaxFilterLoadFilterSize bound a BIP37
// filterload payload (filterload).
const (
	MaxFilterLoadHashFuncs = 50
	MaxFilterLoadFilterSize = 36000
)

// BloomUpdateType defines how the remote peer should update a bloom
// filter as new transactions are observed, per BIP37.
type BloomUpdateType uint8

// Bloom update types.
const (
	BloomUpdateNone BloomUpdateType = iota
	BloomUpdateAll
	BloomUpdateP2PubkeyOnly
)

// MsgFilterLoad implements the Message interface and installs a bloom
// filter for SPV-style transaction. The core treats this
// filter as an opaque predicate ; matching semantics live in
// the bloom package, which is an external collaborator to consensus.
type MsgFilterLoad struct {
	Filter []byte
	HashFuncs uint32
	Tweak uint32
	Flags BloomUpdateType
}

// BtcDecode decodes r into the receiver.
func (msg *MsgFilterLoad) BtcDecode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, pver, MaxFilterLoadFilterSize, "filter")
	if err != nil {
		return err
	}
	msg.Filter = filter

	if msg.HashFuncs, err = binarySerializer.Uint32(r, binary.LittleEndian); err != nil {
		return err
	}
	if msg.HashFuncs > MaxFilterLoadHashFuncs {
		return messageError("MsgFilterLoad.BtcDecode", "too many hash functions")
	}
	if msg.Tweak, err = binarySerializer.Uint32(r, binary.LittleEndian); err != nil {
		return err
	}

	flags, err := binarySerializer.Uint8(r)
	if err != nil {
		return err
	}
	msg.Flags = BloomUpdateType(flags)
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgFilterLoad) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Filter) > MaxFilterLoadFilterSize {
		return messageError("MsgFilterLoad.BtcEncode", "filter too large")
	}
	if err := WriteVarBytes(w, pver, msg.Filter); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, msg.HashFuncs); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, msg.Tweak); err != nil {
		return err
	}
	return binarySerializer.PutUint8(w, uint8(msg.Flags))
}

// Command returns "filterload".
func (msg *MsgFilterLoad) Command() string { return CmdFilterLoad }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFilterLoad) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) + MaxFilterLoadFilterSize + 9
}

// MsgFilterAdd implements the Message interface and adds a single
// element to a previously installed bloom filter.
type MsgFilterAdd struct {
	Data []byte
}

// BtcDecode decodes r into the receiver.
func (msg *MsgFilterAdd) BtcDecode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, pver, MaxFilterLoadFilterSize, "data")
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgFilterAdd) BtcEncode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, pver, msg.Data)
}

// Command returns "filteradd".
func (msg *MsgFilterAdd) Command() string { return CmdFilterAdd }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFilterAdd) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxFilterLoadFilterSize)) + MaxFilterLoadFilterSize
}
