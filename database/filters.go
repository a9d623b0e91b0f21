// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"encoding/binary"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/gcs"
)

// PutFilter stages the basic committed filter for a connecting block,
// the supplemented cf/ index described in SPEC_FULL.md. A no-op in SPV
// mode: the filter is additive infrastructure for rescans, not part of
// the header-only contract.
func (b *Batch) PutFilter(s *Store, hash chainhash.Hash, f *gcs.Filter) {
	if s.spv {
		return
	}
	var pBuf [1]byte
	pBuf[0] = f.P()
	var nBuf [4]byte
	binary.BigEndian.PutUint32(nBuf[:], f.N())
	data := append(append(pBuf[:], nBuf[:]...), f.Bytes()...)
	b.b.Put(concatKey(prefixFilter, hash[:]), data)
}

// DeleteFilter removes the committed filter for hash, following the
// block body into the pruning window.
func (b *Batch) DeleteFilter(hash chainhash.Hash) {
	b.b.Delete(concatKey(prefixFilter, hash[:]))
}

// Filter fetches the committed filter for hash.
func (s *Store) Filter(hash chainhash.Hash) (*gcs.Filter, error) {
	data, err := s.get(concatKey(prefixFilter, hash[:]))
	if err != nil {
		return nil, err
	}
	p := data[0]
	n := binary.BigEndian.Uint32(data[1:5])
	return gcs.FromBytes(n, p, data[5:])
}
