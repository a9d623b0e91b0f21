// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MsgPing implements the Message interface and is used to confirm that a
// connection is still valid.
type MsgPing struct {
	Nonce uint64
}

// BtcDecode decodes r into the receiver.
func (msg *MsgPing) BtcDecode(r io.Reader, pver uint32) error {
	nonce, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Nonce = nonce
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgPing) BtcEncode(w io.Writer, pver uint32) error {
	return binarySerializer.PutUint64(w, binary.LittleEndian, msg.Nonce)
}

// Command returns "ping".
func (msg *MsgPing) Command() string { return CmdPing }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgPing) MaxPayloadLength(pver uint32) uint32 { return 8 }

// MsgPong implements the Message interface and replies to a ping,
// echoing its nonce.
type MsgPong struct {
	Nonce uint64
}

// BtcDecode decodes r into the receiver.
func (msg *MsgPong) BtcDecode(r io.Reader, pver uint32) error {
	nonce, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Nonce = nonce
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgPong) BtcEncode(w io.Writer, pver uint32) error {
	return binarySerializer.PutUint64(w, binary.LittleEndian, msg.Nonce)
}

// Command returns "pong".
func (msg *MsgPong) Command() string { return CmdPong }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgPong) MaxPayloadLength(pver uint32) uint32 { return 8 }
