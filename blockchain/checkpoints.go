// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/chaincore/btcnode/chainhash"

// checkpointConflict reports whether extending to height/hash would
// contradict a compiled-in checkpoint, per : "a fork that
// contradicts a checkpoint fails with score 100".
func (c *Chain) checkpointConflict(height int32, hash chainhash.Hash) error {
	for _, cp := range c.params.Checkpoints {
		if int64(height) == cp.Height && hash != *cp.Hash {
			return ruleError(ErrCheckpointMismatch, 100, "block contradicts a checkpoint")
		}
	}
	return nil
}

// latestCheckpointHeight returns the height of the highest checkpoint at
// or below height, or -1 if none qualifies. Block acceptance does not
// call it: a fork below the latest checkpoint is not rejected on that
// ground, only by checkpointConflict's exact-height hash match.
func (c *Chain) latestCheckpointHeight(height int32) int64 {
	best := int64(-1)
	for _, cp := range c.params.Checkpoints {
		if cp.Height <= int64(height) && cp.Height > best {
			best = cp.Height
		}
	}
	return best
}
