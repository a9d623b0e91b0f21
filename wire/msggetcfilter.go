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

// MsgGetCFilter implements the Message interface and requests a
// committed filter for a single block by hash.
type MsgGetCFilter struct {
	BlockHash  chainhash.Hash
	FilterType FilterType
}

// BtcDecode decodes r into the receiver.
func (msg *MsgGetCFilter) BtcDecode(r io.Reader, pver uint32) error {
	if pver < NodeCFVersion {
		return messageError("MsgGetCFilter.BtcDecode", fmt.Sprintf(
			"getcfilter message invalid for protocol version %d", pver))
	}
	if err := readElement(r, &msg.BlockHash); err != nil {
		return err
	}
	ft, err := binarySerializer.Uint8(r)
	if err != nil {
		return err
	}
	msg.FilterType = FilterType(ft)
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgGetCFilter) BtcEncode(w io.Writer, pver uint32) error {
	if pver < NodeCFVersion {
		return messageError("MsgGetCFilter.BtcEncode", fmt.Sprintf(
			"getcfilter message invalid for protocol version %d", pver))
	}
	if err := writeElement(w, &msg.BlockHash); err != nil {
		return err
	}
	return binarySerializer.PutUint8(w, uint8(msg.FilterType))
}

// Command returns "getcfilter".
func (msg *MsgGetCFilter) Command() string { return CmdGetCFilter }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgGetCFilter) MaxPayloadLength(pver uint32) uint32 {
	return chainhash.HashSize + 1
}

// NewMsgGetCFilter returns a new getcfilter message for the given block.
func NewMsgGetCFilter(blockHash *chainhash.Hash, filterType FilterType) *MsgGetCFilter {
	return &MsgGetCFilter{BlockHash: *blockHash, FilterType: filterType}
}
