// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// MaxAddrPerMsg is the maximum number of addresses in a single addr
// message.
const MaxAddrPerMsg = 1000

// MsgAddr implements the Message interface and is used to advertise known
// peer addresses in response to a getaddr message.
type MsgAddr struct {
	AddrList []*NetAddress
}

// AddAddress adds a known active peer to the message.
func (msg *MsgAddr) AddAddress(na *NetAddress) error {
	if len(msg.AddrList)+1 > MaxAddrPerMsg {
		return messageError("MsgAddr.AddAddress", "too many addresses")
	}
	msg.AddrList = append(msg.AddrList, na)
	return nil
}

// BtcDecode decodes r into the receiver.
func (msg *MsgAddr) BtcDecode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcDecode", "too many addresses")
	}

	addrs := make([]NetAddress, count)
	msg.AddrList = make([]*NetAddress, count)
	for i := uint64(0); i < count; i++ {
		na := &addrs[i]
		msg.AddrList[i] = na
		if err := readNetAddress(r, pver, na, true); err != nil {
			return err
		}
	}
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgAddr) BtcEncode(w io.Writer, pver uint32) error {
	if len(msg.AddrList) > MaxAddrPerMsg {
		return messageError("MsgAddr.BtcEncode", "too many addresses")
	}
	if err := WriteVarInt(w, pver, uint64(len(msg.AddrList))); err != nil {
		return err
	}
	for _, na := range msg.AddrList {
		if err := writeNetAddress(w, pver, na, true); err != nil {
			return err
		}
	}
	return nil
}

// Command returns "addr".
func (msg *MsgAddr) Command() string { return CmdAddr }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgAddr) MaxPayloadLength(pver uint32) uint32 {
	return uint32(VarIntSerializeSize(MaxAddrPerMsg)) + MaxAddrPerMsg*30
}

// NewMsgAddr returns a new empty addr message.
func NewMsgAddr() *MsgAddr { return &MsgAddr{} }
