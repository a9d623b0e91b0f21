// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "io"

// emptyMessage is embedded by every message with no payload; it satisfies
// the BtcDecode/BtcEncode/MaxPayloadLength portion of the Message
// interface identically for all of them.
type emptyMessage struct{}

func (emptyMessage) BtcDecode(r io.Reader, pver uint32) error { return nil }
func (emptyMessage) BtcEncode(w io.Writer, pver uint32) error { return nil }
func (emptyMessage) MaxPayloadLength(pver uint32) uint32 { return 0 }

// MsgVerAck defines a verack message, sent in response to a version
// message to acknowledge the handshake.
type MsgVerAck struct{ emptyMessage }

// Command returns "verack".
func (msg *MsgVerAck) Command() string { return CmdVerAck }

// MsgGetAddr defines a getaddr message, requesting known peer addresses.
type MsgGetAddr struct{ emptyMessage }

// Command returns "getaddr".
func (msg *MsgGetAddr) Command() string { return CmdGetAddr }

// MsgMemPool defines a mempool message, requesting the inv list of the
// receiving peer's mempool contents.
type MsgMemPool struct{ emptyMessage }

// Command returns "mempool".
func (msg *MsgMemPool) Command() string { return CmdMemPool }

// MsgFilterClear defines a filterclear message, removing the bloom
// filter previously installed with filterload.
type MsgFilterClear struct{ emptyMessage }

// Command returns "filterclear".
func (msg *MsgFilterClear) Command() string { return CmdFilterClear }

// MsgSendHeaders defines a sendheaders message, requesting that new
// blocks be announced via headers rather than inv.
type MsgSendHeaders struct{ emptyMessage }

// Command returns "sendheaders".
func (msg *MsgSendHeaders) Command() string { return CmdSendHeaders }
