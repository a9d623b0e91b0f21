// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"

	"github.com/chaincore/btcnode/txscript"
	"github.com/chaincore/btcnode/wire"
)

func TestIsDustScalesByScriptClass(t *testing.T) {
	const feeRate = 3000

	p2pkh := &wire.TxOut{Value: 100_000, PkScript: []byte{
		txscript.OP_DUP, txscript.OP_HASH160, 0x14,
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20,
		txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG,
	}}
	if isDust(p2pkh, feeRate) {
		t.Fatalf("100000-satoshi p2pkh output flagged as dust at %d sat/kvB", feeRate)
	}
	if !isDust(&wire.TxOut{Value: 1, PkScript: p2pkh.PkScript}, feeRate) {
		t.Fatalf("1-satoshi output not flagged as dust")
	}

	nullData := &wire.TxOut{Value: 0, PkScript: []byte{txscript.OP_RETURN, 0x00}}
	if isDust(nullData, feeRate) {
		t.Fatalf("null-data output flagged as dust; it carries no value to spend back out")
	}
}

func TestCheckStandardOutputsRejectsMultipleNullData(t *testing.T) {
	tx := &wire.MsgTx{
		Version: 1,
		TxOut: []*wire.TxOut{
			{Value: 1000, PkScript: []byte{txscript.OP_RETURN, 0x01, 0xAA}},
			{Value: 1000, PkScript: []byte{txscript.OP_RETURN, 0x01, 0xBB}},
		},
	}
	err := checkStandardOutputs(tx, 3000)
	if err == nil || !IsRejectCode(err, RejectNonstandard) {
		t.Fatalf("err = %v, want RejectNonstandard for a second null-data output", err)
	}
}

func TestCheckStandardInputsRejectsNonPushOnly(t *testing.T) {
	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			SignatureScript: []byte{txscript.OP_DUP},
		}},
	}
	err := checkStandardInputs(tx)
	if err == nil || !IsRejectCode(err, RejectNonstandard) {
		t.Fatalf("err = %v, want RejectNonstandard for a non-push-only scriptSig", err)
	}
}

func TestIsStandardTxRejectsPrematureWitness(t *testing.T) {
	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			Witness: [][]byte{{0x01}},
		}},
		TxOut: []*wire.TxOut{{Value: 1000, PkScript: []byte{txscript.OP_RETURN}}},
	}
	err := isStandardTx(tx, 0, DefaultPolicy())
	if err == nil || !IsRejectCode(err, RejectNonstandard) {
		t.Fatalf("err = %v, want RejectNonstandard for witness data before segwit activation", err)
	}

	// AcceptNonStdTxs bypasses every policy check, premature witness
	// included.
	permissive := DefaultPolicy()
	permissive.AcceptNonStdTxs = true
	if err := isStandardTx(tx, 0, permissive); err != nil {
		t.Fatalf("AcceptNonStdTxs still rejected tx: %v", err)
	}
}

func TestCalcPriorityIgnoresUnconfirmedAge(t *testing.T) {
	tx := &wire.MsgTx{
		Version: 1,
		TxIn:    []*wire.TxIn{{}},
		TxOut:   []*wire.TxOut{{Value: 1000, PkScript: []byte{0x51}}},
	}
	// An input confirmed at the same height as nextHeight has zero age
	// and so contributes nothing to priority.
	p := calcPriority(tx, []int64{5_000_000_00}, []int32{100}, 100)
	if p != 0 {
		t.Fatalf("priority = %v, want 0 for a zero-age input", p)
	}

	p = calcPriority(tx, []int64{5_000_000_00}, []int32{0}, 100)
	if p <= 0 {
		t.Fatalf("priority = %v, want positive for a 100-block-old input", p)
	}
}
