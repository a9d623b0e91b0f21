// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
)

// MaxUserAgentLen is the maximum allowed length for the user agent field
// in a version message.
const MaxUserAgentLen = 256

// MsgVersion implements the Message interface and represents the first
// message exchanged in the handshake.
type MsgVersion struct {
	ProtocolVersion int32
	Services ServiceFlag
	Timestamp int64
	AddrRecv NetAddress
	AddrFrom NetAddress
	Nonce uint64
	UserAgent string
	LastBlock int32
	DisableRelayTx bool
}

// NewMsgVersion returns a new version message.
func NewMsgVersion(addrRecv, addrFrom *NetAddress, nonce uint64, lastBlock int32) *MsgVersion {
	return &MsgVersion{
		ProtocolVersion: int32(ProtocolVersion),
		Services: 0,
		AddrRecv: *addrRecv,
		AddrFrom: *addrFrom,
		Nonce: nonce,
		UserAgent: "/btcnode:0.1.0/",
		LastBlock: lastBlock,
	}
}

// BtcDecode decodes r into the receiver.
func (msg *MsgVersion) BtcDecode(r io.Reader, pver uint32) error {
	pv, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.ProtocolVersion = int32(pv)

	svc, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Services = ServiceFlag(svc)

	ts, err := binarySerializer.Uint64(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.Timestamp = int64(ts)

	if err := readNetAddress(r, pver, &msg.AddrRecv, false); err != nil {
		return err
	}
	if err := readNetAddress(r, pver, &msg.AddrFrom, false); err != nil {
		return err
	}

	if msg.Nonce, err = binarySerializer.Uint64(r, binary.LittleEndian); err != nil {
		return err
	}

	ua, err := ReadVarString(r, pver)
	if err != nil {
		return err
	}
	if len(ua) > MaxUserAgentLen {
		return messageError("MsgVersion.BtcDecode", "user agent too long")
	}
	msg.UserAgent = ua

	lb, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg.LastBlock = int32(lb)

	// DisableRelayTx (BIP37's relay byte) is optional on older peers.
	relay, err := binarySerializer.Uint8(r)
	if err == io.EOF {
		msg.DisableRelayTx = false
		return nil
	}
	if err != nil {
		return err
	}
	msg.DisableRelayTx = relay == 0
	return nil
}

// BtcEncode encodes the receiver to w.
func (msg *MsgVersion) BtcEncode(w io.Writer, pver uint32) error {
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(msg.ProtocolVersion)); err != nil {
		return err
	}
	if err := binarySerializer.PutUint64(w, binary.LittleEndian, uint64(msg.Services)); err != nil {
		return err
	}
	if err := binarySerializer.PutUint64(w, binary.LittleEndian, uint64(msg.Timestamp)); err != nil {
		return err
	}
	if err := writeNetAddress(w, pver, &msg.AddrRecv, false); err != nil {
		return err
	}
	if err := writeNetAddress(w, pver, &msg.AddrFrom, false); err != nil {
		return err
	}
	if err := binarySerializer.PutUint64(w, binary.LittleEndian, msg.Nonce); err != nil {
		return err
	}
	if err := WriteVarString(w, pver, msg.UserAgent); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(msg.LastBlock)); err != nil {
		return err
	}
	relay := uint8(1)
	if msg.DisableRelayTx {
		relay = 0
	}
	return binarySerializer.PutUint8(w, relay)
}

// Command returns "version".
func (msg *MsgVersion) Command() string { return CmdVersion }

// MaxPayloadLength returns the maximum length the payload can be.
func (msg *MsgVersion) MaxPayloadLength(pver uint32) uint32 {
	return 4 + 8 + 8 + 26 + 26 + 8 + uint32(VarIntSerializeSize(MaxUserAgentLen)) + MaxUserAgentLen + 4 + 1
}
