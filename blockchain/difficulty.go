// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"math/big"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/math/uint256"
)

// oneLsh256 is 1 << 256, used to turn a difficulty target into the work
// it represents: work = 2^256 / (target+1).
var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// targetToWork converts a compact target ("bits") into the amount of
// proof-of-work it represents, satisfying invariant
// `ChainEntry.chainwork = parent.chainwork + targetToWork(entry.bits)`.
func targetToWork(bits uint32) *uint256.Uint256 {
	target := chaincfg.CompactToBig(bits)
	if target.Sign() <= 0 {
		return uint256.Zero
	}
	denominator := new(big.Int).Add(target, bigOne)
	work := new(big.Int).Div(oneLsh256, denominator)
	return uint256.NewFromBig(work)
}

var bigOne = big.NewInt(1)

// calcNextRequiredDifficulty implements Bitcoin's plain retarget rule:
// every RetargetInterval blocks, scale the previous target by the ratio
// of actual to expected timespan, clamped to a 4x band and the network
// proof-of-work limit. Between retarget boundaries the difficulty does
// not change, except for the optional testnet minimum-difficulty rule.
func (c *Chain) calcNextRequiredDifficulty(prevNode *blockNode, newBlockTime time.Time) uint32 {
	params := c.params
	if prevNode == nil {
		return params.PowLimitBits
	}

	nextHeight := prevNode.height + 1
	interval := retargetInterval(params)
	if nextHeight%interval != 0 {
		if params.ReduceMinDifficulty {
			allowMinTime := prevNode.header.Timestamp.Add(params.MinDiffReductionTime)
			if newBlockTime.After(allowMinTime) {
				return params.PowLimitBits
			}
			return c.findPrevMinDifficulty(prevNode)
		}
		return prevNode.header.Bits
	}

	if params.NoDifficultyRetargeting {
		return prevNode.header.Bits
	}

	firstNode := prevNode.relativeAncestor(interval - 1)
	if firstNode == nil {
		return params.PowLimitBits
	}

	actualTimespan := prevNode.header.Timestamp.Sub(firstNode.header.Timestamp)
	adjustedTimespan := clampTimespan(actualTimespan, params)

	oldTarget := chaincfg.CompactToBig(prevNode.header.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(int64(adjustedTimespan/time.Second)))
	newTarget.Div(newTarget, big.NewInt(int64(params.PowTargetTimespan/time.Second)))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget = params.PowLimit
	}
	return chaincfg.BigToCompact(newTarget)
}

func retargetInterval(params *chaincfg.Params) int32 {
	return int32(params.PowTargetTimespan / params.PowTargetSpacing)
}

func clampTimespan(actual time.Duration, params *chaincfg.Params) time.Duration {
	min := params.PowTargetTimespan / time.Duration(params.RetargetAdjustmentFactor)
	max := params.PowTargetTimespan * time.Duration(params.RetargetAdjustmentFactor)
	switch {
	case actual < min:
		return min
	case actual > max:
		return max
	default:
		return actual
	}
}

// findPrevMinDifficulty searches backwards for the last block that
// wasn't using the special testnet minimum-difficulty exception,
// matching reference-implementation semantics for the
// ReduceMinDifficulty rule.
func (c *Chain) findPrevMinDifficulty(startNode *blockNode) uint32 {
	interval := retargetInterval(c.params)
	iter := startNode
	for iter.parent != nil && iter.height%interval != 0 &&
	iter.header.Bits == c.params.PowLimitBits {
		iter = iter.parent
	}
	return iter.header.Bits
}

// checkProofOfWork verifies that header's hash satisfies the target
// encoded by its own Bits field.
func checkProofOfWork(hash [32]byte, bits uint32, powLimit *big.Int) error {
	target := chaincfg.CompactToBig(bits)
	if target.Sign() <= 0 || target.Cmp(powLimit) > 0 {
		return ruleError(ErrBadDifficultyBits, 100, "block target difficulty out of range")
	}

	hashNum := hashToBig(hash)
	if hashNum.Cmp(target) > 0 {
		return ruleError(ErrBadPOW, 100, "block hash does not satisfy target difficulty")
	}
	return nil
}

// hashToBig interprets a hash as a big-endian integer after reversing
// its internal little-endian byte order, the standard "hash as a
// 256-bit number" conversion used to compare against a target.
func hashToBig(hash [32]byte) *big.Int {
	var buf [32]byte
	for i := 0; i < 32; i++ {
		buf[i] = hash[31-i]
	}
	return new(big.Int).SetBytes(buf[:])
}
