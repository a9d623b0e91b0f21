// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"math/rand"
	"sync"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// orphanExpiration bounds how long an orphan transaction is kept
// waiting for its missing parent before it is evicted.
const orphanExpiration = 20 * time.Minute

// orphanTx is a transaction parked because one or more of its inputs
// spend an outpoint that is neither in the mempool nor the chain
// (step 6).
type orphanTx struct {
	tx *wire.MsgTx
	expiration time.Time
}

// orphanPool holds transactions waiting on an unresolved parent,
// indexed by the orphan's own hash and, for every missing input, by
// the parent txid it waits on so a newly admitted transaction can pull
// in every dependent orphan at once.
type orphanPool struct {
	mtx sync.Mutex
	orphans map[chainhash.Hash]*orphanTx
	byParent map[chainhash.Hash]map[chainhash.Hash]struct{}
	maxSize int
}

func newOrphanPool(maxSize int) *orphanPool {
	return &orphanPool{
		orphans: make(map[chainhash.Hash]*orphanTx),
		byParent: make(map[chainhash.Hash]map[chainhash.Hash]struct{}),
		maxSize: maxSize,
	}
}

// add parks tx in the pool, indexed by every distinct input it spends.
// If the pool is at capacity, a random existing orphan is evicted first
// (step 6's capped, random-eviction orphan pool).
func (p *orphanPool) add(tx *wire.MsgTx) {
	hash := tx.TxHash()
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, ok := p.orphans[hash]; ok {
		return
	}
	if len(p.orphans) >= p.maxSize {
		p.evictRandomLocked()
	}

	p.orphans[hash] = &orphanTx{tx: tx, expiration: time.Now().Add(orphanExpiration)}
	seen := make(map[chainhash.Hash]struct{})
	for _, in := range tx.TxIn {
		parent := in.PreviousOutPoint.Hash
		if _, dup := seen[parent]; dup {
			continue
		}
		seen[parent] = struct{}{}
		if p.byParent[parent] == nil {
			p.byParent[parent] = make(map[chainhash.Hash]struct{})
		}
		p.byParent[parent][hash] = struct{}{}
	}
}

// evictRandomLocked drops one arbitrary orphan; callers must hold mtx.
func (p *orphanPool) evictRandomLocked() {
	n := rand.Intn(len(p.orphans))
	i := 0
	for h := range p.orphans {
		if i == n {
			p.removeLocked(h)
			return
		}
		i++
	}
}

func (p *orphanPool) has(hash chainhash.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_, ok := p.orphans[hash]
	return ok
}

// children returns the orphans directly waiting on parentHash, without
// removing them.
func (p *orphanPool) children(parentHash chainhash.Hash) []*wire.MsgTx {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	out := make([]*wire.MsgTx, 0, len(p.byParent[parentHash]))
	for h := range p.byParent[parentHash] {
		if ot, ok := p.orphans[h]; ok {
			out = append(out, ot.tx)
		}
	}
	return out
}

func (p *orphanPool) remove(hash chainhash.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.removeLocked(hash)
}

func (p *orphanPool) removeLocked(hash chainhash.Hash) {
	ot, ok := p.orphans[hash]
	if !ok {
		return
	}
	delete(p.orphans, hash)
	for _, in := range ot.tx.TxIn {
		parent := in.PreviousOutPoint.Hash
		siblings := p.byParent[parent]
		delete(siblings, hash)
		if len(siblings) == 0 {
			delete(p.byParent, parent)
		}
	}
}

// removeExpired evicts every orphan past its expiration, returning how
// many were dropped.
func (p *orphanPool) removeExpired(now time.Time) int {
	p.mtx.Lock()
	var expired []chainhash.Hash
	for h, ot := range p.orphans {
		if now.After(ot.expiration) {
			expired = append(expired, h)
		}
	}
	for _, h := range expired {
		p.removeLocked(h)
	}
	p.mtx.Unlock()
	return len(expired)
}

func (p *orphanPool) count() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.orphans)
}
