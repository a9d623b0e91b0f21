// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/chaincore/btcnode/chainhash"
)

// BlockHeaderLen is the number of bytes in a serialized block header: 4
// byte version, 32 byte previous block hash, 32 byte merkle root, 4 byte
// timestamp, 4 byte compact target ("bits"), 4 byte nonce.
const BlockHeaderLen = 80

// BlockHeader defines the consensus header of a block. It is immutable
// once parsed.
type BlockHeader struct {
	Version int32
	PrevBlock chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp time.Time
	Bits uint32
	Nonce uint32
}

// BlockHash computes the block identifier: the double-SHA-256 of the
// serialized header.
func (h *BlockHeader) BlockHash() chainhash.Hash {
	buf := make([]byte, 0, BlockHeaderLen)
	w := &sliceWriter{buf: buf}
	_ = h.Serialize(w)
	return chainhash.HashH(w.buf)
}

// Serialize encodes the header to w using the on-wire format.
func (h *BlockHeader) Serialize(w io.Writer) error {
	sec := uint32(h.Timestamp.Unix())
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(h.Version)); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, sec); err != nil {
		return err
	}
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, h.Bits); err != nil {
		return err
	}
	return binarySerializer.PutUint32(w, binary.LittleEndian, h.Nonce)
}

// Deserialize decodes a header from r using the on-wire format.
func (h *BlockHeader) Deserialize(r io.Reader) error {
	ver, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	h.Version = int32(ver)

	if _, err := io.ReadFull(r, h.PrevBlock[:]); err != nil {
		return err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return err
	}

	sec, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	h.Timestamp = time.Unix(int64(sec), 0)

	if h.Bits, err = binarySerializer.Uint32(r, binary.LittleEndian); err != nil {
		return err
	}
	h.Nonce, err = binarySerializer.Uint32(r, binary.LittleEndian)
	return err
}

// sliceWriter is a minimal io.Writer over a growable byte slice, used to
// avoid pulling in bytes.Buffer just to serialize a fixed 80-byte header.
type sliceWriter struct{ buf []byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}
