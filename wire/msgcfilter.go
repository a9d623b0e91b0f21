// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"fmt"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// MaxCFilterDataSize is the maximum byte size of a committed filter
// (the gcs-encoded set described in SPEC_FULL.md's DOMAIN STACK
// supplemented components).
const MaxCFilterDataSize = 256 * 1024

// FilterType identifies a committed filter variant.  Only the basic
// filter type (scriptPubKeys plus spent prevout scriptPubKeys) is
// currently defined.
type FilterType uint8

// Supported filter types.
const (
	GCSFilterBasic FilterType = 0
)

// MsgCFilter implements the Message interface and carries a committed
// filter for a single block in response to a getcfilter request.
type MsgCFilter struct {
	BlockHash  chainhash.Hash
	FilterType FilterType
	Data       []byte
}

// BtcDecode decodes r into the receiver.
func (msg *MsgCFilter) BtcDecode(r io.Reader, pver uint32) error {
	if pver < NodeCFVersion {
		return messageError("MsgCFilter.BtcDecode", fmt.Sprintf(
			"cfilter message invalid for protocol version %d", pver))
	}

	if err := readElement(r, &msg.BlockHash); err != nil {
		return err
	}

	ft, err := binarySerializer.Uint8(r)
	if err != nil {
		return err
	}
	msg.FilterType = FilterType(ft)

	data, err := ReadVarBytes(r, pver, MaxCFilterDataSize, "cfilter data")
	if err != nil {
		return err
	}
	msg.Data = data
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgCFilter) BtcEncode(w io.Writer, pver uint32) error {
	if pver < NodeCFVersion {
		return messageError("MsgCFilter.BtcEncode", fmt.Sprintf(
			"cfilter message invalid for protocol version %d", pver))
	}
	if len(msg.Data) > MaxCFilterDataSize {
		return messageError("MsgCFilter.BtcEncode", "cfilter data too large")
	}

	if err := writeElement(w, &msg.BlockHash); err != nil {
		return err
	}
	if err := binarySerializer.PutUint8(w, uint8(msg.FilterType)); err != nil {
		return err
	}
	return WriteVarBytes(w, pver, msg.Data)
}

// Deserialize decodes a filter from r using the stable storage format,
// which is currently identical to the wire encoding.
func (msg *MsgCFilter) Deserialize(r io.Reader) error {
	return msg.BtcDecode(r, NodeCFVersion)
}

// Command returns "cfilter".
func (msg *MsgCFilter) Command() string { return CmdCFilter }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgCFilter) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxCFilterDataSize)) +
		MaxCFilterDataSize + chainhash.HashSize + 1
}

// NewMsgCFilter returns a new cfilter message for the given block.
func NewMsgCFilter(blockHash *chainhash.Hash, filterType FilterType, data []byte) *MsgCFilter {
	return &MsgCFilter{
		BlockHash:  *blockHash,
		FilterType: filterType,
		Data:       data,
	}
}
