// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MsgFeeFilter implements the Message interface and asks a peer to only
// announce transactions paying at least MinFee satoshis per kilobyte,
// per BIP133.
type MsgFeeFilter struct {
	MinFee int64
}

// BtcDecode decodes r into the receiver.
func (msg *MsgFeeFilter) BtcDecode(r io.Reader, pver uint32) error {
	v, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.MinFee = int64(v)
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgFeeFilter) BtcEncode(w io.Writer, pver uint32) error {
	return binarySerializer.PutUint64(w, binary.LittleEndian, uint64(msg.MinFee))
}

// Command returns "feefilter".
func (msg *MsgFeeFilter) Command() string { return CmdFeeFilter }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgFeeFilter) MaxPayloadLength(pver uint32) uint32 { return 8 }

// NewMsgFeeFilter returns a new feefilter message with the given minimum
// fee rate.
func NewMsgFeeFilter(minFee int64) *MsgFeeFilter {
	return &MsgFeeFilter{MinFee: minFee}
}

// MsgSendCmpct implements the Message interface.  The core does not
// implement compact block relay; per the Open Question decision in
// DESIGN.md, a node replies to each incoming sendcmpct with
// Announce=false, Version=1, and otherwise ignores the feature.
type MsgSendCmpct struct {
	Announce bool
	Version  uint64
}

// BtcDecode decodes r into the receiver.
func (msg *MsgSendCmpct) BtcDecode(r io.Reader, pver uint32) error {
	announce, err := binarySerializer.Uint8(r)
	if err != nil {
		return err
	}
	msg.Announce = announce != 0

	version, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Version = version
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgSendCmpct) BtcEncode(w io.Writer, pver uint32) error {
	var announce uint8
	if msg.Announce {
		announce = 1
	}
	if err := binarySerializer.PutUint8(w, announce); err != nil {
		return err
	}
	return binarySerializer.PutUint64(w, binary.LittleEndian, msg.Version)
}

// Command returns "sendcmpct".
func (msg *MsgSendCmpct) Command() string { return CmdSendCmpct }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgSendCmpct) MaxPayloadLength(pver uint32) uint32 { return 9 }

// NewMsgSendCmpctReply returns the node's canned reply to a peer's
// sendcmpct announcement.
func NewMsgSendCmpctReply() *MsgSendCmpct {
	return &MsgSendCmpct{Announce: false, Version: 1}
}
