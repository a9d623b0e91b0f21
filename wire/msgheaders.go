// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxBlockHeadersPerMsg is the maximum number of block headers allowed
// per headers message.
const MaxBlockHeadersPerMsg = 2000

// MsgHeaders implements the Message interface and is the reply to a
// getheaders message, delivering headers for headers-first sync
//.
type MsgHeaders struct {
	Headers []*BlockHeader
}

// AddBlockHeader adds a new block header to the message.
func (msg *MsgHeaders) AddBlockHeader(bh *BlockHeader) error {
	if len(msg.Headers)+1 > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.AddBlockHeader", "too many headers")
	}
	msg.Headers = append(msg.Headers, bh)
	return nil
}

// BtcDecode decodes r into the receiver.
func (msg *MsgHeaders) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.BtcDecode", "too many headers")
	}

	headers := make([]BlockHeader, count)
	msg.Headers = make([]*BlockHeader, count)
	for i := uint64(0); i < count; i++ {
		bh := &headers[i]
		msg.Headers[i] = bh
		if err := bh.Deserialize(r); err != nil {
			return err
		}
		// Every header in a headers message is followed by a transaction
		// count, always zero since no block bodies are included.
		txCount, err := ReadVarInt(r, pver)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return messageError("MsgHeaders.BtcDecode", "non-zero transaction count")
		}
	}
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgHeaders) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.Headers) > MaxBlockHeadersPerMsg {
		return messageError("MsgHeaders.BtcEncode", "too many headers")
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.Headers))); err != nil {
		return err
	}
	for _, bh := range msg.Headers {
		if err := bh.Serialize(w); err != nil {
			return err
		}
		if err := WriteVarInt(w, pver, 0); err != nil {
			return err
		}
	}
	return nil
}

// Command returns "headers".
func (msg *MsgHeaders) Command() string { return CmdHeaders }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgHeaders) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxBlockHeadersPerMsg)) +
	MaxBlockHeadersPerMsg*(BlockHeaderLen+1)
}

// NewMsgHeaders returns a new empty headers message.
func NewMsgHeaders() *MsgHeaders { return &MsgHeaders{} }
