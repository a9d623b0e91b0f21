// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/chaincore/btcnode/wire"
)

// LockTimeFlags mirrors Bitcoin Core's script verification context
// flags that affect locktime/sequence interpretation rather than
// scripts, kept distinct from txscript.ScriptFlags because they gate
// checkFinal/checkLocks rather than script execution.
type LockTimeFlags uint32

const (
	// LockTimeVerifySequence enables BIP68 relative lock-time
	// enforcement for transactions with version >= 2.
	LockTimeVerifySequence LockTimeFlags = 1 << iota

	// LockTimeMedianTimePast uses a block's median time past, rather
	// than its own timestamp, when comparing a locktime expressed as a
	// Unix time.
	LockTimeMedianTimePast
)

// StandardLockTimeFlags is the flag combination applied to relayed and
// mined transactions, per step 3's "STANDARD_LOCKTIME_FLAGS".
const StandardLockTimeFlags = LockTimeVerifySequence | LockTimeMedianTimePast

const (
	sequenceLockTimeDisableFlag = 1 << 31
	sequenceLockTimeIsSeconds = 1 << 22
	sequenceLockTimeGranularity = 9
	sequenceLockTimeMask = 0x0000ffff
)

// SequenceLock is the pair of constraints BIP68 derives from a
// transaction's inputs: the tx may not be included in a block unless
// both the block height and the block's median time past exceed these.
type SequenceLock struct {
	Height int32
	Time int64
	Disabled bool
}

// calcSequenceLock computes the SequenceLock for tx given the coin
// height each input spends, evaluated relative to the chain tip
// represented by node.
func calcSequenceLock(node *blockNode, tx *wire.MsgTx, inputHeights []int32, flags LockTimeFlags) SequenceLock {
	sl := SequenceLock{Height: -1, Time: -1, Disabled: true}
	if tx.Version < 2 || flags&LockTimeVerifySequence == 0 {
		return sl
	}
	sl.Disabled = false

	for i, txIn := range tx.TxIn {
		if txIn.Sequence&sequenceLockTimeDisableFlag != 0 {
			continue
		}
		inputHeight := inputHeights[i]
		if inputHeight < 0 {
			inputHeight = node.height + 1
		}

		if txIn.Sequence&sequenceLockTimeIsSeconds != 0 {
			relativeLock := int64(txIn.Sequence&sequenceLockTimeMask) << sequenceLockTimeGranularity
			ancestor := node.ancestor(inputHeight - 1)
			var past int64
			if ancestor != nil {
				past = ancestor.calcPastMedianTime()
			}
			lockTime := past + relativeLock - 1
			if lockTime > sl.Time {
				sl.Time = lockTime
			}
			continue
		}

		lockHeight := inputHeight + int32(txIn.Sequence&sequenceLockTimeMask) - 1
		if lockHeight > sl.Height {
			sl.Height = lockHeight
		}
	}
	return sl
}

// sequenceLockActive reports whether sl's constraints are satisfied as
// of a block extending node.
func sequenceLockActive(sl SequenceLock, height int32, medianTime int64) bool {
	if sl.Disabled {
		return true
	}
	return height > sl.Height && medianTime > sl.Time
}

// lockTimeThreshold is the point at which a locktime/sequence value is
// interpreted as a Unix timestamp rather than a block height.
const lockTimeThreshold = 500000000

// checkFinal reports whether tx may be included in a block extending
// node, applying locktime comparability rule: a
// non-final transaction (at least one input's sequence < 0xffffffff) with a
// non-zero LockTime must have that locktime already passed.
func checkFinal(node *blockNode, tx *wire.MsgTx, flags LockTimeFlags) bool {
	if tx.LockTime == 0 {
		return true
	}

	blockHeight := node.height + 1
	blockTime := node.header.Timestamp.Unix()
	if flags&LockTimeMedianTimePast != 0 {
		blockTime = node.calcPastMedianTime()
	}

	var lockTimeCutoff int64
	if tx.LockTime < lockTimeThreshold {
		lockTimeCutoff = int64(blockHeight)
	} else {
		lockTimeCutoff = blockTime
	}
	if int64(tx.LockTime) < lockTimeCutoff {
		return true
	}

	for _, txIn := range tx.TxIn {
		if txIn.Sequence != wire.MaxTxInSequenceNum {
			return false
		}
	}
	return true
}

// checkLocks reports whether every BIP68 relative lock-time implied by
// tx's inputs has matured as of a block extending node.
func checkLocks(node *blockNode, tx *wire.MsgTx, inputHeights []int32, flags LockTimeFlags) bool {
	sl := calcSequenceLock(node, tx, inputHeights, flags)
	medianTime := node.calcPastMedianTime()
	return sequenceLockActive(sl, node.height+1, medianTime)
}

// adjustedTimeTolerance is the maximum allowed drift (step
// 3, "network-adjusted now + 2h") between a block's timestamp and the
// local clock.
const adjustedTimeTolerance = 2 * time.Hour

// maxFutureBlockTime returns the latest timestamp a new block header may
// carry as of now.
func maxFutureBlockTime(now time.Time) time.Time {
	return now.Add(adjustedTimeTolerance)
}
