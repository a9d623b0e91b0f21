// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// invList is the shared wire representation of inv, getdata, and
// notfound: a count-prefixed list of InvVect.
type invList struct {
	InvList []*InvVect
}

func (m *invList) addInvVect(iv *InvVect) error {
	if len(m.InvList)+1 > MaxInvPerMsg {
		return messageError("addInvVect", "too many inventory vectors")
	}
	m.InvList = append(m.InvList, iv)
	return nil
}

func (m *invList) decode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r, pver)
	if err != nil {
		return err
	}
	if count > MaxInvPerMsg {
		return messageError("invList.decode", "too many inventory vectors")
	}

	invs := make([]InvVect, count)
	m.InvList = make([]*InvVect, count)
	for i := uint64(0); i < count; i++ {
		iv := &invs[i]
		m.InvList[i] = iv
		if err := readInvVect(r, pver, iv); err != nil {
			return err
		}
	}
	return nil
}

func (m *invList) encode(w io.Writer, pver uint32) error {
	if len(m.InvList) > MaxInvPerMsg {
		return messageError("invList.encode", "too many inventory vectors")
	}
	if err := WriteVarInt(w, pver, uint64(len(m.InvList))); err != nil {
		return err
	}
	for _, iv := range m.InvList {
		if err := writeInvVect(w, pver, iv); err != nil {
			return err
		}
	}
	return nil
}

func (m *invList) maxPayloadLength() uint32 {
	return uint32(VarIntSerializeSize(MaxInvPerMsg)) + maxInvPayload
}

// MsgInv implements the Message interface and announces items (blocks or
// transactions) a peer has available.
type MsgInv struct{ invList }

// AddInvVect adds an inventory vector to the message.
func (msg *MsgInv) AddInvVect(iv *InvVect) error { return msg.addInvVect(iv) }

// BtcDecode decodes r into the receiver.
func (msg *MsgInv) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r, pver) }

// BtcEncode encodes the receiver to w.
func (msg *MsgInv) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w, pver) }

// Command returns "inv".
func (msg *MsgInv) Command() string { return CmdInv }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgInv) MaxPayloadLength(pver uint32) uint32 { return msg.maxPayloadLength() }

// NewMsgInv returns a new empty inv message.
func NewMsgInv() *MsgInv { return &MsgInv{} }

// MsgGetData implements the Message interface and requests the payload
// (tx, block, or filtered block) for each listed inventory vector. The
// WITNESS_MASK may be OR'd onto a TX or BLOCK type here.
type MsgGetData struct{ invList }

// AddInvVect adds an inventory vector to the message.
func (msg *MsgGetData) AddInvVect(iv *InvVect) error { return msg.addInvVect(iv) }

// BtcDecode decodes r into the receiver.
func (msg *MsgGetData) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r, pver) }

// BtcEncode encodes the receiver to w.
func (msg *MsgGetData) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w, pver) }

// Command returns "getdata".
func (msg *MsgGetData) Command() string { return CmdGetData }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgGetData) MaxPayloadLength(pver uint32) uint32 { return msg.maxPayloadLength() }

// NewMsgGetData returns a new empty getdata message.
func NewMsgGetData() *MsgGetData { return &MsgGetData{} }

// MsgNotFound implements the Message interface and is sent in response
// to a getdata request for an item that could not be relayed.
type MsgNotFound struct{ invList }

// AddInvVect adds an inventory vector to the message.
func (msg *MsgNotFound) AddInvVect(iv *InvVect) error { return msg.addInvVect(iv) }

// BtcDecode decodes r into the receiver.
func (msg *MsgNotFound) BtcDecode(r io.Reader, pver uint32) error { return msg.decode(r, pver) }

// BtcEncode encodes the receiver to w.
func (msg *MsgNotFound) BtcEncode(w io.Writer, pver uint32) error { return msg.encode(w, pver) }

// Command returns "notfound".
func (msg *MsgNotFound) Command() string { return CmdNotFound }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgNotFound) MaxPayloadLength(pver uint32) uint32 { return msg.maxPayloadLength() }

// NewMsgNotFound returns a new empty notfound message.
func NewMsgNotFound() *MsgNotFound { return &MsgNotFound{} }
