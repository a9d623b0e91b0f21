// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/txscript"
	"github.com/chaincore/btcnode/wire"
)

// maxStandardTxVersion bounds the transaction version field accepted
// for relay (step 2's "version in allowed range").
const maxStandardTxVersion = 2

// maxStandardSigScriptSize is the largest signature script a standard
// transaction may carry, wide enough for the largest reasonable
// multisig redeem script without permitting scriptSig abuse.
const maxStandardSigScriptSize = 1650

// maxNullDataSize is the largest standard OP_RETURN payload.
const maxNullDataSize = 83

// Policy bundles the node-operator relay policy knobs: fee floors,
// orphan/ancestor caps, and the free-relay budget.
// Unlike chaincfg.Params these are not consensus rules — two honest
// nodes may run different Policy values and still agree on the chain.
type Policy struct {
	// MaxOrphanTxs caps the orphan pool's resident transaction count
	// (step 6's MAX_ORPHAN_TX), beyond which a random
	// entry is evicted to make room.
	MaxOrphanTxs int

	// MaxOrphanTxSize rejects an orphan transaction outright if its
	// serialized size exceeds this, bounding per-entry memory use.
	MaxOrphanTxSize int

	// MinRelayTxFeeRate is the minimum fee, in satoshis per 1000
	// virtual bytes, relayed regardless of priority or free-relay
	// budget.
	MinRelayTxFeeRate int64

	// MinReasonableFeeRate raises dynamicMinRate by at least this much
	// on every eviction (step 11).
	MinReasonableFeeRate int64

	// DustRelayFeeRate values an output as dust when spending it back
	// out, at this fee rate, would cost more than the output itself is
	// worth.
	DustRelayFeeRate int64

	// FreeTxRelayLimit sizes the free-relay budget consumed by
	// below-minimum-fee transactions admitted on free-relay allowance
	// (step 7's limitFreeRelay): the budget is FreeTxRelayLimit*10 kB,
	// decaying over a ten-minute time constant.
	FreeTxRelayLimit float64

	// RelayPriority enables the free-priority admission path for
	// below-minimum-fee transactions (step 7).
	RelayPriority bool

	// RejectAbsurdFees rejects a transaction paying more than 10000x
	// the minimum relay fee, a guard against fat-fingered fees
	// (step 7).
	RejectAbsurdFees bool

	// AncestorLimit bounds the number of in-mempool ancestors a
	// transaction may have. Descendant counts are not limited.
	AncestorLimit int

	// MaxMempoolBytes is the resident memory cap that triggers
	// eviction once exceeded (step 11).
	MaxMempoolBytes int64

	// AcceptNonStdTxs disables the isStandard gate entirely, mirroring
	// chaincfg.Params.AcceptNonStdTxs for a regression-test network.
	AcceptNonStdTxs bool
}

// DefaultPolicy returns the mainnet-shaped policy defaults, the
// starting point callers scale for their own memory budget.
func DefaultPolicy() Policy {
	return Policy{
		MaxOrphanTxs: 100,
		MaxOrphanTxSize: 100_000,
		MinRelayTxFeeRate: 1_000,
		MinReasonableFeeRate: 1_000,
		DustRelayFeeRate: 3_000,
		FreeTxRelayLimit: 15.0,
		RelayPriority: true,
		RejectAbsurdFees: true,
		AncestorLimit: 25,
		MaxMempoolBytes: 300_000_000,
	}
}

// isDust reports whether txOut's value is too small to be worth
// spending back out at feeRate satoshis per 1000 vbytes, following the
// same scriptPubKey-class dependent "cost to spend" estimate Bitcoin
// Core's standardness check uses.
func isDust(txOut *wire.TxOut, feeRate int64) bool {
	if txscript.IsNullDataScript(txOut.PkScript) {
		return false
	}

	// Estimate the size of the input needed to spend this output: the
	// outpoint, sequence, and length prefixes are fixed; the
	// scriptSig/witness size varies by output type.
	spendSize := int64(32 + 4 + 4 + 1)
	switch {
	case txscript.IsWitnessPubKeyHashScript(txOut.PkScript), txscript.IsWitnessScriptHashScript(txOut.PkScript):
		spendSize += 107 / 4
	case txscript.IsScriptHashScript(txOut.PkScript):
		spendSize += 23
	default:
		spendSize += 148
	}

	return txOut.Value*1000 < 3*spendSize*feeRate
}

// checkStandardOutputs rejects output shapes or values relay policy
// doesn't allow: unrecognized script types, more than one null-data
// output, an oversized null-data payload, or dust.
func checkStandardOutputs(tx *wire.MsgTx, feeRate int64) error {
	nullDataCount := 0
	for _, out := range tx.TxOut {
		switch txscript.GetScriptType(out.PkScript) {
		case txscript.STNonStandard:
			return txRuleError(RejectNonstandard, 0, "output script is not a standard type")
		case txscript.STNullData:
			nullDataCount++
			if len(out.PkScript) > maxNullDataSize {
				return txRuleError(RejectNonstandard, 0, "null-data output exceeds the standard size limit")
			}
		}
		if isDust(out, feeRate) {
			return txRuleError(RejectDust, 0, "output value is dust at the standard relay fee rate")
		}
	}
	if nullDataCount > 1 {
		return txRuleError(RejectNonstandard, 0, "more than one null-data output")
	}
	return nil
}

// checkStandardInputs rejects non-push-only signature scripts and
// signature scripts larger than relay policy allows.
func checkStandardInputs(tx *wire.MsgTx) error {
	for _, in := range tx.TxIn {
		if len(in.SignatureScript) > maxStandardSigScriptSize {
			return txRuleError(RejectNonstandard, 0, "signature script is larger than the standard limit")
		}
		if !txscript.IsPushOnlyScript(in.SignatureScript) {
			return txRuleError(RejectNonstandard, 0, "signature script is not push-only")
		}
	}
	return nil
}

// isStandardTx applies step 2's policy gate: transaction
// version, scriptSig shape, output script types and dust, and premature
// witness data ahead of segwit activation. A false flags.HasFlag(ScriptVerifyWitness)
// with a witness-bearing tx is rejected unless the policy opts out of
// standardness checks entirely (a regression-test network).
func isStandardTx(tx *wire.MsgTx, flags txscript.ScriptFlags, policy Policy) error {
	if policy.AcceptNonStdTxs {
		return nil
	}
	if tx.Version < 1 || tx.Version > maxStandardTxVersion {
		return txRuleError(RejectNonstandard, 0, "transaction version is outside the standard range")
	}
	if tx.HasWitness() && !flags.HasFlag(txscript.ScriptVerifyWitness) {
		return txRuleError(RejectNonstandard, 0, "witness data is premature before segwit activation")
	}
	if err := checkStandardInputs(tx); err != nil {
		return err
	}
	return checkStandardOutputs(tx, policy.DustRelayFeeRate)
}

// calcPriority computes step 7's getPriority(height):
// the coin-age-weighted value of a transaction's inputs divided by its
// virtual size. An input resolved from the mempool rather than the
// chain (age zero) contributes nothing.
func calcPriority(tx *wire.MsgTx, inputValues []int64, inputHeights []int32, nextHeight int32) float64 {
	var sum float64
	for i := range tx.TxIn {
		age := nextHeight - inputHeights[i]
		if age < 0 {
			age = 0
		}
		sum += float64(inputValues[i]) * float64(age)
	}
	vsize := tx.VirtualSize()
	if vsize == 0 {
		return 0
	}
	return sum / float64(vsize)
}

// sigOpCost sums the per-input weighted sigop cost blockchain.InputSigOpCost
// defines, the same accounting the chain engine applies at connect time,
// for per-transaction sigop cost policy limit.
func sigOpCost(tx *wire.MsgTx, prevOuts []wire.TxOut) int64 {
	var cost int64
	for i, in := range tx.TxIn {
		cost += blockchain.InputSigOpCost(prevOuts[i].PkScript, in.SignatureScript, in.Witness)
	}
	return cost
}
