// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// Message is the interface every wire protocol message implements.
type Message interface {
	BtcDecode(r io.Reader, pver uint32) error
	BtcEncode(w io.Writer, pver uint32) error
	Command() string
	MaxPayloadLength(pver uint32) uint32
}

// makeEmptyMessage creates a Message of the appropriate concrete type
// based on the command string found in a message header.
func makeEmptyMessage(command string) (Message, error) {
	switch command {
	case CmdVersion:
		return &MsgVersion{}, nil
	case CmdVerAck:
		return &MsgVerAck{}, nil
	case CmdPing:
		return &MsgPing{}, nil
	case CmdPong:
		return &MsgPong{}, nil
	case CmdGetAddr:
		return &MsgGetAddr{}, nil
	case CmdAddr:
		return &MsgAddr{}, nil
	case CmdInv:
		return &MsgInv{}, nil
	case CmdGetData:
		return &MsgGetData{}, nil
	case CmdNotFound:
		return &MsgNotFound{}, nil
	case CmdGetBlocks:
		return &MsgGetBlocks{}, nil
	case CmdGetHeaders:
		return &MsgGetHeaders{}, nil
	case CmdHeaders:
		return &MsgHeaders{}, nil
	case CmdTx:
		return &MsgTx{}, nil
	case CmdBlock:
		return &MsgBlock{}, nil
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, nil
	case CmdMemPool:
		return &MsgMemPool{}, nil
	case CmdFilterLoad:
		return &MsgFilterLoad{}, nil
	case CmdFilterAdd:
		return &MsgFilterAdd{}, nil
	case CmdFilterClear:
		return &MsgFilterClear{}, nil
	case CmdReject:
		return &MsgReject{}, nil
	case CmdSendHeaders:
		return &MsgSendHeaders{}, nil
	case CmdFeeFilter:
		return &MsgFeeFilter{}, nil
	case CmdSendCmpct:
		return &MsgSendCmpct{}, nil
	case CmdCFilter:
		return &MsgCFilter{}, nil
	case CmdGetCFilter:
		return &MsgGetCFilter{}, nil
	}
	return nil, messageError("makeEmptyMessage", fmt.Sprintf("unhandled command %q", command))
}

// messageHeader is the on-wire frame preceding every message payload.
type messageHeader struct {
	magic BitcoinNet
	command string
	length uint32
	checksum [4]byte
}

// checksum returns the first four bytes of the double-SHA-256 of payload.
func checksum(payload []byte) [4]byte {
	h := chainhash.HashB(payload)
	var c [4]byte
	copy(c[:], h[:4])
	return c
}

// WriteMessageN writes a message to w, framed, and returns
// the number of bytes written.
func WriteMessageN(w io.Writer, msg Message, pver uint32, btcnet BitcoinNet) (int, error) {
	var buf bytes.Buffer
	if err := msg.BtcEncode(&buf, pver); err != nil {
		return 0, err
	}
	payload := buf.Bytes()
	lenp := len(payload)

	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return 0, messageError("WriteMessageN",
			fmt.Sprintf("command %q too long", cmd))
	}

	var header [MessageHeaderSize]byte
	bin := header[:0]
	bin = appendUint32LE(bin, uint32(btcnet))
	var cmdBytes [CommandSize]byte
	copy(cmdBytes[:], cmd)
	bin = append(bin, cmdBytes[:]...)
	bin = appendUint32LE(bin, uint32(lenp))
	cksum := checksum(payload)
	bin = append(bin, cksum[:]...)

	n1, err := w.Write(bin)
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(payload)
	return n1 + n2, err
}

// ReadMessageN reads, validates, and decodes the next wire message from r.
// It checks magic and then length before allocating a payload-sized
// buffer, and checks the checksum once the payload has been read.
func ReadMessageN(r io.Reader, pver uint32, btcnet BitcoinNet) (int, Message, []byte, error) {
	var hdrBuf [MessageHeaderSize]byte
	n, err := io.ReadFull(r, hdrBuf[:])
	if err != nil {
		return n, nil, nil, err
	}

	magic := BitcoinNet(leUint32(hdrBuf[0:4]))
	if magic != btcnet {
		return n, nil, nil, messageError("ReadMessageN",
			fmt.Sprintf("unexpected network magic %v, want %v", magic, btcnet))
	}

	command := commandString(hdrBuf[4:16])
	length := leUint32(hdrBuf[16:20])
	if length > MaxMessagePayload {
		return n, nil, nil, messageError("ReadMessageN",
			fmt.Sprintf("payload length %d exceeds max %d", length, MaxMessagePayload))
	}

	var wantCksum [4]byte
	copy(wantCksum[:], hdrBuf[20:24])

	payload := make([]byte, length)
	nn, err := io.ReadFull(r, payload)
	n += nn
	if err != nil {
		return n, nil, nil, err
	}

	gotCksum := checksum(payload)
	if gotCksum != wantCksum {
		return n, nil, nil, messageError("ReadMessageN", "checksum mismatch")
	}

	msg, err := makeEmptyMessage(command)
	if err != nil {
		return n, nil, payload, err
	}

	if uint32(length) > msg.MaxPayloadLength(pver) {
		return n, nil, nil, messageError("ReadMessageN",
			fmt.Sprintf("%s payload exceeds max length", command))
	}

	if err := msg.BtcDecode(bytes.NewReader(payload), pver); err != nil {
		return n, nil, payload, err
	}

	return n, msg, payload, nil
}

func commandString(b []byte) string {
	i := 0
	for i < len(b) && b[i] != 0 {
		i++
	}
	return string(b[:i])
}

func appendUint32LE(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
