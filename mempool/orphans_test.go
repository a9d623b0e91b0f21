// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

func orphanSpending(parent chainhash.Hash, extra byte) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: parent, Index: 0},
		}},
		TxOut: []*wire.TxOut{{Value: 1000, PkScript: []byte{0x51, extra}}},
	}
}

func TestOrphanPoolAddAndChildren(t *testing.T) {
	p := newOrphanPool(10)
	parent := chainhash.HashH([]byte("parent"))
	child1 := orphanSpending(parent, 1)
	child2 := orphanSpending(parent, 2)

	p.add(child1)
	p.add(child2)

	if p.count() != 2 {
		t.Fatalf("count = %d, want 2", p.count())
	}
	if !p.has(child1.TxHash()) {
		t.Fatalf("child1 not tracked")
	}

	children := p.children(parent)
	if len(children) != 2 {
		t.Fatalf("children = %d, want 2", len(children))
	}
}

func TestOrphanPoolRemoveClearsParentIndex(t *testing.T) {
	p := newOrphanPool(10)
	parent := chainhash.HashH([]byte("parent"))
	child := orphanSpending(parent, 1)
	p.add(child)

	p.remove(child.TxHash())

	if p.has(child.TxHash()) {
		t.Fatalf("removed orphan still tracked")
	}
	if children := p.children(parent); len(children) != 0 {
		t.Fatalf("parent index not cleared after remove, children = %d", len(children))
	}
}

func TestOrphanPoolEvictsAtCapacity(t *testing.T) {
	p := newOrphanPool(2)
	parent := chainhash.HashH([]byte("parent"))
	p.add(orphanSpending(parent, 1))
	p.add(orphanSpending(parent, 2))
	p.add(orphanSpending(parent, 3)) // pushes the pool past capacity

	if p.count() != 2 {
		t.Fatalf("count = %d, want 2 after capacity eviction", p.count())
	}
}

func TestOrphanPoolRemoveExpired(t *testing.T) {
	p := newOrphanPool(10)
	tx := orphanSpending(chainhash.HashH([]byte("parent")), 1)
	p.add(tx)

	if n := p.removeExpired(time.Now()); n != 0 {
		t.Fatalf("removeExpired evicted %d fresh orphans, want 0", n)
	}

	future := time.Now().Add(orphanExpiration + time.Minute)
	if n := p.removeExpired(future); n != 1 {
		t.Fatalf("removeExpired evicted %d, want 1 once past expiration", n)
	}
	if p.has(tx.TxHash()) {
		t.Fatalf("expired orphan still tracked")
	}
}
