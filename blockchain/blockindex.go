// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sync"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/math/uint256"
	"github.com/chaincore/btcnode/wire"
)

// blockStatus is the per-entry state machine names:
// Unknown -> Orphan on missing parent, Orphan -> Headers when the
// parent links up, Headers -> Valid on successful connect, and any
// state -> Invalid on a consensus failure (recorded so descendants fail
// fast without re-validating).
type blockStatus uint8

const (
	statusUnknown blockStatus = iota
	statusOrphan
	statusHeaders
	statusValid
	statusInvalid
)

// blockNode is the in-memory representation of a chain entry, linked to
// its parent so ancestry walks (retarget windows, locators, common
// ancestor search) never touch the store. It mirrors, but does not
// replace, the persisted database.ChainEntry: blockNode is rebuilt from
// disk on startup and is never itself the source of truth.
type blockNode struct {
	parent *blockNode
	hash chainhash.Hash
	height int32
	header wire.BlockHeader
	workSum *uint256.Uint256
	status blockStatus
	versionOK bool // caches CheckBlockHeaderVersionBits result
}

func newBlockNode(header wire.BlockHeader, parent *blockNode) *blockNode {
	n := &blockNode{
		header: header,
		hash: header.BlockHash(),
	}
	if parent != nil {
		n.parent = parent
		n.height = parent.height + 1
		n.workSum = parent.workSum.Add(targetToWork(header.Bits))
	} else {
		n.height = 0
		n.workSum = targetToWork(header.Bits)
	}
	return n
}

// ancestor returns the ancestor of n at the given height, or nil if
// height is out of range. It walks parent links one block at a time
// (there are no skip pointers), so the cost is linear in the distance
// from n to height.
func (n *blockNode) ancestor(height int32) *blockNode {
	if height < 0 || height > n.height {
		return nil
	}
	node := n
	for node != nil && node.height > height {
		node = node.parent
	}
	return node
}

// relativeAncestor returns the ancestor distance blocks behind n.
func (n *blockNode) relativeAncestor(distance int32) *blockNode {
	return n.ancestor(n.height - distance)
}

// calcPastMedianTime returns the median time of the past 11 blocks
// ending with n, the BIP113 "median time past" used for both timestamp
// sanity (step 3) and locktime comparisons.
func (n *blockNode) calcPastMedianTime() int64 {
	timestamps := make([]int64, 0, 11)
	iter := n
	for i := 0; i < 11 && iter != nil; i++ {
		timestamps = append(timestamps, iter.header.Timestamp.Unix())
		iter = iter.parent
	}
	// Insertion sort; 11 elements at most.
	for i := 1; i < len(timestamps); i++ {
		for j := i; j > 0 && timestamps[j-1] > timestamps[j]; j-- {
			timestamps[j-1], timestamps[j] = timestamps[j], timestamps[j-1]
		}
	}
	return timestamps[len(timestamps)/2]
}

// blockIndex owns every known blockNode, keyed by hash. Orphan blocks
// are not held here; they wait in the chain's orphanPool.
type blockIndex struct {
	mtx sync.RWMutex
	index map[chainhash.Hash]*blockNode
}

func newBlockIndex() *blockIndex {
	return &blockIndex{index: make(map[chainhash.Hash]*blockNode)}
}

func (bi *blockIndex) addNode(n *blockNode) {
	bi.mtx.Lock()
	bi.index[n.hash] = n
	bi.mtx.Unlock()
}

func (bi *blockIndex) lookupNode(hash chainhash.Hash) *blockNode {
	bi.mtx.RLock()
	defer bi.mtx.RUnlock()
	return bi.index[hash]
}

func (bi *blockIndex) setStatus(n *blockNode, s blockStatus) {
	bi.mtx.Lock()
	n.status = s
	bi.mtx.Unlock()
}

// findFork returns the highest common ancestor of a and b, walking both
// chains back to equal height first, then in lockstep.
func findFork(a, b *blockNode) *blockNode {
	if a == nil || b == nil {
		return nil
	}
	for a.height > b.height {
		a = a.parent
	}
	for b.height > a.height {
		b = b.parent
	}
	for a != b {
		a = a.parent
		b = b.parent
	}
	return a
}
