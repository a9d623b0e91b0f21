// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wire implements the Bitcoin peer-to-peer wire protocol: message
// framing, the supported command set, and the compact-size /
// little-endian codec every message and every chain-store record depends
// on.
package wire

import "fmt"

// ProtocolVersion is the latest protocol version this package supports.
const ProtocolVersion uint32 = 70016

// MultipleAddressVersion is the protocol version which added multiple
// addresses per message (pver >= this communicates support for getaddr
// with more than one address in the reply).
const MultipleAddressVersion uint32 = 209

// BIP0031Version is the protocol version which added the pong message and
// a nonce on ping.
const BIP0031Version uint32 = 60000

// FeeFilterVersion is the protocol version which added the feefilter
// message.
const FeeFilterVersion uint32 = 70013

// SendHeadersVersion is the protocol version which added the sendheaders
// message.
const SendHeadersVersion uint32 = 70012

// NodeCFVersion is the protocol version which added committed filter
// support (getcfilter/cfilter).
const NodeCFVersion uint32 = 70015

// WitnessVersion is the protocol version from which segregated witness
// serialization and relay are supported.
const WitnessVersion uint32 = 70012

// MaxMessagePayload is the maximum bytes a message payload can be, the
// length bound enforced before a payload-sized buffer is allocated.
const MaxMessagePayload = 32 * 1024 * 1024

// CommandSize is the fixed size in bytes of a message command field.
const CommandSize = 12

// MessageHeaderSize is the number of bytes in a message header: 4 byte
// magic, 12 byte command, 4 byte payload length, 4 byte checksum.
const MessageHeaderSize = 24

// BitcoinNet represents which Bitcoin network a message belongs to.
type BitcoinNet uint32

// Network magics.
const (
	MainNet BitcoinNet = 0xd9b4bef9
	TestNet3 BitcoinNet = 0x0709110b
	SimNet BitcoinNet = 0x12141c16
	RegTest BitcoinNet = 0xdab5bffa
)

// String returns the BitcoinNet in human-readable form.
func (n BitcoinNet) String() string {
	switch n {
	case MainNet:
		return "MainNet"
	case TestNet3:
		return "TestNet3"
	case SimNet:
		return "SimNet"
	case RegTest:
		return "RegTest"
	default:
		return fmt.Sprintf("Unknown BitcoinNet (%d)", uint32(n))
	}
}

// ServiceFlag identifies services supported by a Bitcoin peer.
type ServiceFlag uint64

// Service flags.
const (
	SFNodeNetwork ServiceFlag = 1 << iota
	SFNodeGetUTXO
	SFNodeBloom
	SFNodeWitness
	SFNodeXthin
	SFNodeCompactFilters
	SFNodeNetworkLimited
)

// InvType represents the allowed types of an inventory vector.
type InvType uint32

// Inventory vector types. InvWitnessFlag may be OR'd onto TX or BLOCK in a
// getdata request only.
const (
	InvTypeError InvType = 0
	InvTypeTx InvType = 1
	InvTypeBlock InvType = 2
	InvTypeFilteredBlock InvType = 3
	InvTypeCompactBlock InvType = 4
	InvWitnessFlag InvType = 1 << 30
	InvTypeWitnessBlock = InvTypeBlock | InvWitnessFlag
	InvTypeWitnessTx = InvTypeTx | InvWitnessFlag
)

// String returns the InvType in human-readable form.
func (t InvType) String() string {
	base := t &^ InvWitnessFlag
	var s string
	switch base {
	case InvTypeError:
		s = "ERROR"
	case InvTypeTx:
		s = "MSG_TX"
	case InvTypeBlock:
		s = "MSG_BLOCK"
	case InvTypeFilteredBlock:
		s = "MSG_FILTERED_BLOCK"
	case InvTypeCompactBlock:
		s = "MSG_CMPCT_BLOCK"
	default:
		s = fmt.Sprintf("Unknown InvType (%d)", uint32(base))
	}
	if t&InvWitnessFlag != 0 {
		s += "|WITNESS"
	}
	return s
}

// Message command strings, sent in the 12-byte command field of every
// message header.
const (
	CmdVersion = "version"
	CmdVerAck = "verack"
	CmdPing = "ping"
	CmdPong = "pong"
	CmdGetAddr = "getaddr"
	CmdAddr = "addr"
	CmdInv = "inv"
	CmdGetData = "getdata"
	CmdNotFound = "notfound"
	CmdGetBlocks = "getblocks"
	CmdGetHeaders = "getheaders"
	CmdHeaders = "headers"
	CmdTx = "tx"
	CmdBlock = "block"
	CmdMerkleBlock = "merkleblock"
	CmdMemPool = "mempool"
	CmdFilterLoad = "filterload"
	CmdFilterAdd = "filteradd"
	CmdFilterClear = "filterclear"
	CmdReject = "reject"
	CmdSendHeaders = "sendheaders"
	CmdFeeFilter = "feefilter"
	CmdSendCmpct = "sendcmpct"
	CmdCFilter = "cfilter"
	CmdGetCFilter = "getcfilter"
)
