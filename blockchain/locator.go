// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/chaincore/btcnode/chainhash"

// BlockLocator is a sparse list of block hashes, oldest entry last, used
// to ask a peer for its view of the chain without transmitting every
// known hash.
type BlockLocator []chainhash.Hash

// GetLocator builds a locator starting from node (or the current tip if
// node is nil): hashes at offsets 0,1,2,...,9, then step doubling, until
// genesis, which always appears last. Built entirely from in-memory
// blockNode ancestry, never touching block bodies.
func (c *Chain) GetLocator(node *blockNode) BlockLocator {
	c.mtx.RLock()
	if node == nil {
		node = c.tip
	}
	c.mtx.RUnlock()
	if node == nil {
		return nil
	}

	var locator BlockLocator
	step := int32(1)
	for node != nil {
		locator = append(locator, node.hash)
		if node.height == 0 {
			break
		}
		height := node.height - step
		if height < 0 {
			height = 0
		}
		node = node.ancestor(height)
		if len(locator) >= 10 {
			step *= 2
		}
	}
	return locator
}

// LocateFirstMatch returns the highest blockNode named in locator that
// this chain also knows about, or nil if none match (the peer's view
// shares no ancestry we recognize).
func (c *Chain) LocateFirstMatch(locator BlockLocator) *blockNode {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	for _, hash := range locator {
		if n := c.index.lookupNode(hash); n != nil && c.isMainChain(n) {
			return n
		}
	}
	return nil
}
