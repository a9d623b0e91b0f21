// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/chaincore/btcnode/wire"
)

func chainOfHeight(height int32, spacing time.Duration) *blockNode {
	var parent *blockNode
	base := time.Unix(1600000000, 0)
	for h := int32(0); h <= height; h++ {
		header := wire.BlockHeader{
			Timestamp: base.Add(time.Duration(h) * spacing),
			Bits:      0x207fffff,
		}
		parent = newBlockNode(header, parent)
	}
	return parent
}

func TestCheckFinalHeightLockTime(t *testing.T) {
	tip := chainOfHeight(9, time.Minute)

	tx := &wire.MsgTx{
		TxIn:     []*wire.TxIn{{Sequence: 0}},
		LockTime: 11, // matures at height 11, tip+1 is only height 10
	}
	if checkFinal(tip, tx, StandardLockTimeFlags) {
		t.Fatalf("transaction locked to height 11 should not be final at height 10")
	}

	tx.LockTime = 9
	if !checkFinal(tip, tx, StandardLockTimeFlags) {
		t.Fatalf("transaction locked to height 9 should be final once the chain reaches height 10")
	}
}

func TestCheckFinalFinalSequenceAlwaysFinal(t *testing.T) {
	tip := chainOfHeight(0, time.Minute)
	tx := &wire.MsgTx{
		TxIn:     []*wire.TxIn{{Sequence: wire.MaxTxInSequenceNum}},
		LockTime: 0xffffffff,
	}
	if !checkFinal(tip, tx, StandardLockTimeFlags) {
		t.Fatalf("all-inputs-final transaction must always be considered final")
	}
}

func TestCalcSequenceLockHeightBased(t *testing.T) {
	tip := chainOfHeight(20, time.Minute)
	tx := &wire.MsgTx{
		Version: 2,
		TxIn:    []*wire.TxIn{{Sequence: 5}}, // relative lock of 5 blocks, height-based
	}
	inputHeights := []int32{10}

	sl := calcSequenceLock(tip, tx, inputHeights, StandardLockTimeFlags)
	if sl.Disabled {
		t.Fatalf("sequence lock should not be disabled for version 2 tx")
	}
	wantHeight := int32(10) + 5 - 1
	if sl.Height != wantHeight {
		t.Fatalf("sequence lock height = %d, want %d", sl.Height, wantHeight)
	}

	if !sequenceLockActive(sl, wantHeight+1, tip.calcPastMedianTime()) {
		t.Fatalf("sequence lock should be active once height exceeds the locked height")
	}
	if sequenceLockActive(sl, wantHeight, tip.calcPastMedianTime()) {
		t.Fatalf("sequence lock should not yet be active at exactly the locked height")
	}
}

func TestCalcSequenceLockDisabledFlag(t *testing.T) {
	tip := chainOfHeight(5, time.Minute)
	tx := &wire.MsgTx{
		Version: 2,
		TxIn:    []*wire.TxIn{{Sequence: 1 << 31}}, // disable flag set
	}
	sl := calcSequenceLock(tip, tx, []int32{0}, StandardLockTimeFlags)
	if sl.Height != -1 || sl.Time != -1 {
		t.Fatalf("a disabled input should not constrain the sequence lock")
	}
}

func TestCalcSequenceLockVersion1Disabled(t *testing.T) {
	tip := chainOfHeight(5, time.Minute)
	tx := &wire.MsgTx{
		Version: 1,
		TxIn:    []*wire.TxIn{{Sequence: 5}},
	}
	sl := calcSequenceLock(tip, tx, []int32{0}, StandardLockTimeFlags)
	if !sl.Disabled {
		t.Fatalf("version 1 transactions are not subject to BIP68")
	}
}
