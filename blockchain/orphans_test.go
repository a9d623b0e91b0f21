// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/chaincore/btcnode/wire"
)

func simpleBlock(prev wire.BlockHeader, nonce uint32) *wire.MsgBlock {
	coinbase := &wire.MsgTx{
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			SignatureScript:  []byte{byte(nonce), byte(nonce >> 8)},
		}},
		TxOut: []*wire.TxOut{{PkScript: []byte{0x51}}},
	}
	block := &wire.MsgBlock{
		Header:       wire.BlockHeader{PrevBlock: prev.BlockHash()},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = coinbase.TxHash()
	return block
}

func TestOrphanPoolRootWalksChain(t *testing.T) {
	p := newOrphanPool()

	a := simpleBlock(wire.BlockHeader{}, 0)
	b := simpleBlock(a.Header, 1)
	c := simpleBlock(b.Header, 2)

	p.add(b)
	p.add(c)

	// b and c are both orphans chained off a, which is still unknown.
	root := p.root(c.BlockHash())
	if root != b.Header.PrevBlock {
		t.Fatalf("root = %v, want a's hash %v", root, b.Header.PrevBlock)
	}

	kids := p.children(b.BlockHash())
	if len(kids) != 1 || kids[0].BlockHash() != c.BlockHash() {
		t.Fatalf("children(b) = %v, want [c]", kids)
	}

	p.remove(b.BlockHash())
	if p.has(b.BlockHash()) {
		t.Fatalf("b should have been removed")
	}
	if len(p.children(b.BlockHash())) != 0 {
		t.Fatalf("removed orphan should no longer be indexed by prev-hash")
	}
}

func TestOrphanPoolExpiration(t *testing.T) {
	p := newOrphanPool()
	a := simpleBlock(wire.BlockHeader{}, 0)
	p.add(a)

	if n := p.removeExpired(time.Now()); n != 0 {
		t.Fatalf("fresh orphan should not expire yet, removed %d", n)
	}
	if n := p.removeExpired(time.Now().Add(2 * time.Hour)); n != 1 {
		t.Fatalf("orphan past its expiration should be evicted, removed %d", n)
	}
	if p.has(a.BlockHash()) {
		t.Fatalf("expired orphan should be gone")
	}
}
