// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sync"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// orphanExpiration bounds how long an orphan block is kept waiting for
// its parent before it is evicted, preventing an unbounded orphan pool
// from a peer that never supplies the missing ancestor.
const orphanExpiration = time.Hour

// orphanBlock is a block parked in the orphan pool because its parent
// hasn't been seen yet (pipeline step 2).
type orphanBlock struct {
	block *wire.MsgBlock
	expiration time.Time
}

// orphanPool holds blocks whose parent is unknown, indexed both by the
// orphan's own hash and by its (missing) parent hash so a later
// connecting block can pull in every waiting descendant.
type orphanPool struct {
	mtx sync.Mutex
	orphans map[chainhash.Hash]*orphanBlock
	byPrevHash map[chainhash.Hash][]chainhash.Hash
}

func newOrphanPool() *orphanPool {
	return &orphanPool{
		orphans: make(map[chainhash.Hash]*orphanBlock),
		byPrevHash: make(map[chainhash.Hash][]chainhash.Hash),
	}
}

func (p *orphanPool) add(block *wire.MsgBlock) {
	hash := block.BlockHash()
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if _, ok := p.orphans[hash]; ok {
		return
	}
	p.orphans[hash] = &orphanBlock{block: block, expiration: time.Now().Add(orphanExpiration)}
	prev := block.Header.PrevBlock
	p.byPrevHash[prev] = append(p.byPrevHash[prev], hash)
}

func (p *orphanPool) has(hash chainhash.Hash) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	_, ok := p.orphans[hash]
	return ok
}

// children returns the orphans directly waiting on parentHash, without
// removing them.
func (p *orphanPool) children(parentHash chainhash.Hash) []*wire.MsgBlock {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	hashes := p.byPrevHash[parentHash]
	out := make([]*wire.MsgBlock, 0, len(hashes))
	for _, h := range hashes {
		if ob, ok := p.orphans[h]; ok {
			out = append(out, ob.block)
		}
	}
	return out
}

func (p *orphanPool) remove(hash chainhash.Hash) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	ob, ok := p.orphans[hash]
	if !ok {
		return
	}
	delete(p.orphans, hash)
	prev := ob.block.Header.PrevBlock
	siblings := p.byPrevHash[prev]
	for i, h := range siblings {
		if h == hash {
			p.byPrevHash[prev] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(p.byPrevHash[prev]) == 0 {
		delete(p.byPrevHash, prev)
	}
}

// removeExpired evicts every orphan past its expiration, returning how
// many were dropped.
func (p *orphanPool) removeExpired(now time.Time) int {
	p.mtx.Lock()
	var expired []chainhash.Hash
	for h, ob := range p.orphans {
		if now.After(ob.expiration) {
			expired = append(expired, h)
		}
	}
	p.mtx.Unlock()
	for _, h := range expired {
		p.remove(h)
	}
	return len(expired)
}

// root walks from hash up through known orphans to the deepest ancestor
// still missing from the pool, the block a peer should be asked for to
// unblock the chain (`getOrphanRoot`).
func (p *orphanPool) root(hash chainhash.Hash) chainhash.Hash {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	root := hash
	for {
		ob, ok := p.orphans[root]
		if !ok {
			return root
		}
		root = ob.block.Header.PrevBlock
	}
}
