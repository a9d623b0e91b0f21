// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// RejectCode is a numeric value identifying why a message was rejected,
// per reject code taxonomy.
type RejectCode uint8

// Supported reject codes.
const (
	RejectMalformed RejectCode = 0x01
	RejectInvalid RejectCode = 0x10
	RejectObsolete RejectCode = 0x11
	RejectDuplicate RejectCode = 0x12
	RejectNonstandard RejectCode = 0x40
	RejectDust RejectCode = 0x41
	RejectInsufficientFee RejectCode = 0x42
	RejectCheckpoint RejectCode = 0x43
)

// String returns a human-readable name for the reject code.
func (code RejectCode) String() string {
	switch code {
	case RejectMalformed:
		return "REJECT_MALFORMED"
	case RejectInvalid:
		return "REJECT_INVALID"
	case RejectObsolete:
		return "REJECT_OBSOLETE"
	case RejectDuplicate:
		return "REJECT_DUPLICATE"
	case RejectNonstandard:
		return "REJECT_NONSTANDARD"
	case RejectDust:
		return "REJECT_DUST"
	case RejectInsufficientFee:
		return "REJECT_INSUFFICIENTFEE"
	case RejectCheckpoint:
		return "REJECT_CHECKPOINT"
	default:
		return "unknown reject code"
	}
}

const (
	maxRejectMessageLength = CommandSize
	maxRejectReasonLength = 250
)

// MsgReject implements the Message interface and informs a peer why a
// previous message from them was rejected, optionally carrying the hash
// of the offending block or transaction.
type MsgReject struct {
	Message string
	Code RejectCode
	Reason string
	Hash chainhash.Hash
}

// BtcDecode decodes r into the receiver.
func (msg *MsgReject) BtcDecode(r io.Reader, pver uint32) error {
	message, err := ReadVarString(r, pver)
	if err != nil {
		return err
	}
	msg.Message = message

	code, err := binarySerializer.Uint8(r)
	if err != nil {
		return err
	}
	msg.Code = RejectCode(code)

	reason, err := ReadVarString(r, pver)
	if err != nil {
		return err
	}
	msg.Reason = reason

	switch message {
	case CmdBlock, CmdTx:
		if err := readElement(r, &msg.Hash); err != nil {
			return err
		}
	}
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgReject) BtcEncode(w io.Writer, pver uint32) error {
	if err := WriteVarString(w, pver, msg.Message); err != nil {
		return err
	}
	if err := binarySerializer.PutUint8(w, uint8(msg.Code)); err != nil {
		return err
	}
	if err := WriteVarString(w, pver, msg.Reason); err != nil {
		return err
	}
	switch msg.Message {
	case CmdBlock, CmdTx:
		if err := writeElement(w, &msg.Hash); err != nil {
			return err
		}
	}
	return nil
}

// Command returns "reject".
func (msg *MsgReject) Command() string { return CmdReject }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgReject) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(maxRejectMessageLength)) + maxRejectMessageLength +
	1 +
	uint32(VarIntSerializeSize(maxRejectReasonLength)) + maxRejectReasonLength +
	chainhash.HashSize
}
