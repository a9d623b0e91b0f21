// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// MaxHeadersPerMsg bounds a single LocateHeaders response, matching the
// wire protocol's headers message limit.
const MaxHeadersPerMsg = 2000

// HaveBlock reports whether hash names a block this chain has accepted,
// on the main chain or a known side branch.
func (c *Chain) HaveBlock(hash chainhash.Hash) bool {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.index.lookupNode(hash) != nil
}

// HaveHeader reports whether hash names a header this chain has
// indexed, regardless of whether the full block body is present.
func (c *Chain) HaveHeader(hash chainhash.Hash) bool {
	return c.HaveBlock(hash)
}

// LocateHeaders serves a getheaders request: starting immediately after
// the highest locator hash found on the main chain (genesis if none
// match), it returns up to maxHeaders consecutive headers, stopping
// early at stopHash if encountered.
func (c *Chain) LocateHeaders(locator BlockLocator, stopHash chainhash.Hash, maxHeaders int) ([]wire.BlockHeader, error) {
	if maxHeaders <= 0 || maxHeaders > MaxHeadersPerMsg {
		maxHeaders = MaxHeadersPerMsg
	}

	start := int32(0)
	if match := c.LocateFirstMatch(locator); match != nil {
		start = match.height + 1
	}

	var zero chainhash.Hash
	var headers []wire.BlockHeader
	for height := start; len(headers) < maxHeaders; height++ {
		hash, err := c.store.HashByHeight(height)
		if err != nil {
			break
		}
		entry, err := c.store.Entry(hash)
		if err != nil {
			return nil, err
		}
		headers = append(headers, entry.Header)
		if stopHash != zero && hash == stopHash {
			break
		}
	}
	return headers, nil
}

// LocateBlockHashes is LocateHeaders' inv-list counterpart, used to
// answer a getblocks request with block hashes rather than full headers.
func (c *Chain) LocateBlockHashes(locator BlockLocator, stopHash chainhash.Hash, maxHashes int) ([]chainhash.Hash, error) {
	headers, err := c.LocateHeaders(locator, stopHash, maxHashes)
	if err != nil {
		return nil, err
	}
	hashes := make([]chainhash.Hash, len(headers))
	for i, h := range headers {
		hashes[i] = h.BlockHash()
	}
	return hashes, nil
}

// BlockByHash returns the full block body for hash, for serving a
// getdata request.
func (c *Chain) BlockByHash(hash chainhash.Hash) (*wire.MsgBlock, error) {
	return c.store.Block(hash)
}
