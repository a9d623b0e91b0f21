// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"io"

	"github.com/chaincore/btcnode/chainhash"
)

// MaxInvPerMsg is the maximum number of inventory vectors that can be in a
// single inv, getdata, or notfound message.
const MaxInvPerMsg = 50000

// maxInvPayload is the maximum payload size, in bytes, an inv-family
// message can have.
const maxInvPayload = MaxInvPerMsg * (4 + chainhash.HashSize)

// InvVect defines a single inventory vector: a type and a hash.
type InvVect struct {
	Type InvType
	Hash chainhash.Hash
}

// NewInvVect returns a new InvVect using the provided type and hash.
func NewInvVect(typ InvType, hash *chainhash.Hash) *InvVect {
	return &InvVect{Type: typ, Hash: *hash}
}

func readInvVect(r io.Reader, pver uint32, iv *InvVect) error {
	t, err := binarySerializer.Uint32(r, binary.LittleEndian)
	if err != nil {
		return err
	}
	iv.Type = InvType(t)
	return readElement(r, &iv.Hash)
}

func writeInvVect(w io.Writer, pver uint32, iv *InvVect) error {
	if err := binarySerializer.PutUint32(w, binary.LittleEndian, uint32(iv.Type)); err != nil {
		return err
	}
	return writeElement(w, &iv.Hash)
}
