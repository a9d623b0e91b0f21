// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/database"
	"github.com/chaincore/btcnode/txscript"
	"github.com/chaincore/btcnode/wire"
)

// MaxBlockWeight is BIP141's block weight ceiling: base size counted
// once, witness size counted a further three times.
const MaxBlockWeight = 4_000_000

// MaxBlockSigOpsCost is the per-block accounting limit on weighted
// signature operations ("per-block sigops cost").
const MaxBlockSigOpsCost = 80_000

// WitnessScaleFactor is the divisor applied to witness bytes when
// computing a transaction or block's virtual size.
const WitnessScaleFactor = 4

// CoinbaseMaturity is the fixed consensus constant names
// ("Coinbase maturity exactly at COINBASE_MATURITY=100 blocks").
// chaincfg.Params.CoinbaseMaturity remains the knob actually consulted
// by checkInputs so alternate networks can override it; this constant
// documents the value every shipped network parameter set uses.
const CoinbaseMaturity = 100

// InputSigOpCost returns the weighted sigop cost a single input
// contributes once its previous output's script is known: the prevOut
// script's own sigops (legacy and P2SH-aware) scaled by
// WitnessScaleFactor, plus the unscaled witness program sigop count.
// Both the chain engine's per-block accounting and the mempool's
// per-transaction admission gate use this so the two never drift.
func InputSigOpCost(pkScript, sigScript []byte, witness [][]byte) int64 {
	cost := int64(txscript.GetSigOpCount(pkScript)) * WitnessScaleFactor
	cost += int64(txscript.GetP2SHSigOpCount(sigScript, pkScript)) * WitnessScaleFactor
	cost += int64(txscript.GetWitnessSigOpCount(sigScript, pkScript, witness))
	return cost
}

// MaxMoney is the maximum number of satoshis that can ever exist,
// bounding any single output value and any transaction's output total
// (no negative or overflowing values are allowed).
const MaxMoney = 21_000_000 * 100_000_000

// CheckTransactionSanity validates tx using only information it carries
// on its own, independent of chain context or its presence in a block:
// it has at least one input and one output, every output value is
// non-negative and within MaxMoney, the output total doesn't overflow
// or exceed MaxMoney, no input spends the same outpoint twice, and a
// coinbase-shaped input (a zero-hash previous outpoint with index
// 0xffffffff) only appears in
// a transaction that is itself a coinbase. Both block-level sanity
// checking and mempool admission sanity checking resolve to this.
func CheckTransactionSanity(tx *wire.MsgTx) error {
	if len(tx.TxIn) == 0 {
		return ruleError(ErrNoTxInputs, 100, "transaction has no inputs")
	}
	if len(tx.TxOut) == 0 {
		return ruleError(ErrNoTxOutputs, 100, "transaction has no outputs")
	}

	var total int64
	for _, out := range tx.TxOut {
		if out.Value < 0 || out.Value > MaxMoney {
			return ruleError(ErrBadTxOutValue, 100, "transaction output value is out of range")
		}
		total += out.Value
		if total > MaxMoney {
			return ruleError(ErrBadTxOutValue, 100, "transaction output total exceeds the maximum money supply")
		}
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if _, dup := seen[in.PreviousOutPoint]; dup {
			return ruleError(ErrDuplicateTxInputs, 100, "transaction spends the same outpoint twice")
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}

	if tx.IsCoinBase() {
		scriptLen := len(tx.TxIn[0].SignatureScript)
		if scriptLen < 2 || scriptLen > 100 {
			return ruleError(ErrBadCoinbaseScriptLen, 100, "coinbase script length out of range")
		}
		return nil
	}
	for _, in := range tx.TxIn {
		if in.PreviousOutPoint.Index == 0xffffffff && in.PreviousOutPoint.Hash == (chainhash.Hash{}) {
			return ruleError(ErrBadTxInput, 100, "non-coinbase transaction has a coinbase-shaped input")
		}
	}
	return nil
}

// checkBlockSanity performs the stateless checks on a block that don't
// require chain context: well-formed transaction list, per-transaction
// sanity, merkle root, and the block weight bound.
func checkBlockSanity(block *wire.MsgBlock) error {
	if len(block.Transactions) == 0 {
		return ruleError(ErrNoTransactions, 100, "block has no transactions")
	}
	if !block.Transactions[0].IsCoinBase() {
		return ruleError(ErrFirstTxNotCoinbase, 100, "first transaction is not a coinbase")
	}
	for _, tx := range block.Transactions[1:] {
		if tx.IsCoinBase() {
			return ruleError(ErrMultipleCoinbases, 100, "block contains multiple coinbase transactions")
		}
	}
	for _, tx := range block.Transactions {
		if err := CheckTransactionSanity(tx); err != nil {
			return err
		}
	}

	if block.Weight > MaxBlockWeight {
		return ruleError(ErrBlockWeightTooHigh, 100, "block weight exceeds maximum")
	}

	seen := make(map[chainhash.Hash]struct{}, len(block.Transactions))
	for _, tx := range block.Transactions {
		h := tx.TxHash()
		if _, ok := seen[h]; ok {
			return ruleError(ErrDuplicateTx, 100, "block contains a duplicate transaction")
		}
		seen[h] = struct{}{}
	}

	root := blockMerkleRoot(block)
	if root != block.Header.MerkleRoot {
		return ruleError(ErrBadMerkleRoot, 100, "merkle root mismatch")
	}
	return nil
}

// checkWitnessCommitment enforces BIP141's coinbase commitment once
// segwit is active and the block actually carries witness data.
func checkWitnessCommitment(block *wire.MsgBlock) error {
	if !blockHasWitness(block) {
		return nil
	}
	commitment, ok := findWitnessCommitment(block.Transactions[0])
	if !ok {
		return ruleError(ErrBadWitnessCommitment, 100, "segwit block missing witness commitment")
	}

	coinbase := block.Transactions[0]
	if len(coinbase.TxIn[0].Witness) != 1 || len(coinbase.TxIn[0].Witness[0]) != 32 {
		return ruleError(ErrBadWitnessCommitment, 100, "coinbase witness reserved value malformed")
	}
	var nonce chainhash.Hash
	copy(nonce[:], coinbase.TxIn[0].Witness[0])

	var buf [64]byte
	root := witnessMerkleRoot(block)
	copy(buf[:32], root[:])
	copy(buf[32:], nonce[:])
	want := chainhash.HashH(buf[:])
	if want != commitment {
		return ruleError(ErrBadWitnessCommitment, 100, "witness commitment does not match computed root")
	}
	return nil
}

// checkBlockHeaderSanity validates header against its parent: proof of
// work, the retarget formula, and the timestamp bounds (must be after
// the median of the last 11 blocks and not too far in the future).
func (c *Chain) checkBlockHeaderSanity(header *wire.BlockHeader, parent *blockNode, now time.Time) error {
	hash := header.BlockHash()
	if err := checkProofOfWork(hash, header.Bits, c.params.PowLimit); err != nil {
		return err
	}

	wantBits := c.params.PowLimitBits
	if parent != nil {
		wantBits = c.calcNextRequiredDifficulty(parent, header.Timestamp)
	}
	if header.Bits != wantBits {
		return ruleError(ErrBadDifficultyBits, 100, "block difficulty bits do not match expected value")
	}

	if parent != nil {
		medianTime := parent.calcPastMedianTime()
		if header.Timestamp.Unix() <= medianTime {
			return ruleError(ErrTimeTooOld, 100, "block timestamp is not after median of last 11 blocks")
		}
	}
	if header.Timestamp.After(maxFutureBlockTime(now)) {
		return ruleError(ErrTimeTooNew, 100, "block timestamp too far in the future")
	}
	return nil
}

// checkInputsResult carries the per-transaction totals checkInputs
// derives: the fee paid, the height each spent coin was created at
// (needed for BIP68 relative locktime), and the coins consumed (folded
// into the block's UndoRecord).
type checkInputsResult struct {
	fee int64
	heights []int32
	spent database.UndoRecord
}

// checkInputs validates tx's inputs against the UTXO view, enforcing
// coinbase maturity and balanced value (contextual
// validation: "all referenced coins exist, not coinbase spent within
// COINBASE_MATURITY, input sum >= output sum, fee non-negative").
func checkInputs(tx *wire.MsgTx, nextHeight int32, maturity int32, fetchCoin func(wire.OutPoint) (*database.Coin, error)) (*checkInputsResult, error) {
	res := &checkInputsResult{heights: make([]int32, len(tx.TxIn))}
	var totalIn int64
	for i, txIn := range tx.TxIn {
		coin, err := fetchCoin(txIn.PreviousOutPoint)
		if err != nil {
			return nil, ruleError(ErrMissingTxOut, 100, "referenced output does not exist or is already spent")
		}
		if coin.IsCoinBase && nextHeight-coin.Height < maturity {
			return nil, ruleError(ErrImmatureSpend, 100, "attempt to spend immature coinbase output")
		}
		totalIn += coin.Value
		res.heights[i] = coin.Height
		res.spent = append(res.spent, *coin)
	}

	var totalOut int64
	for _, txOut := range tx.TxOut {
		totalOut += txOut.Value
	}

	if totalIn < totalOut {
		return nil, ruleError(ErrSpendTooHigh, 100, "total input value less than total output value")
	}
	res.fee = totalIn - totalOut
	return res, nil
}

// segwitActive reports whether BIP141 validation rules (witness
// commitment, witness program evaluation) apply at nextHeight.
func segwitActive(params *chaincfg.Params, nextHeight int32) bool {
	return params.SegwitHeight != 0 && nextHeight >= params.SegwitHeight
}

// bip34Active, bip65Active, and bip66Active gate the fixed-height soft
// forks lists alongside the versionbits deployments.
func bip34Active(params *chaincfg.Params, height int32) bool {
	return params.BIP0034Height != 0 && height >= params.BIP0034Height
}

func bip65Active(params *chaincfg.Params, height int32) bool {
	return params.BIP0065Height != 0 && height >= params.BIP0065Height
}

func bip66Active(params *chaincfg.Params, height int32) bool {
	return params.BIP0066Height != 0 && height >= params.BIP0066Height
}

func csvActive(params *chaincfg.Params, height int32) bool {
	return params.CSVHeight != 0 && height >= params.CSVHeight
}

// encodeMinimalScriptNum encodes n as a CScriptNum: sign-magnitude,
// little-endian, shortest form (CScriptNum rules).
func encodeMinimalScriptNum(n int64) []byte {
	if n == 0 {
		return nil
	}
	neg := n < 0
	abs := uint64(n)
	if neg {
		abs = uint64(-n)
	}

	var result []byte
	for abs > 0 {
		result = append(result, byte(abs&0xff))
		abs >>= 8
	}
	if result[len(result)-1]&0x80 != 0 {
		if neg {
			result = append(result, 0x80)
		} else {
			result = append(result, 0x00)
		}
	} else if neg {
		result[len(result)-1] |= 0x80
	}
	return result
}

// coinbaseHeightScript returns the minimal push-script BIP34 requires a
// coinbase's signature script to begin with: the block height encoded
// as a CScriptNum.
func coinbaseHeightScript(height int32) []byte {
	data := encodeMinimalScriptNum(int64(height))
	script := make([]byte, 0, len(data)+1)
	script = append(script, byte(len(data)))
	script = append(script, data...)
	return script
}

// checkCoinbaseHeight reports whether coinbase's signature script
// begins with the BIP34-mandated height push.
func checkCoinbaseHeight(height int32, coinbase *wire.MsgTx) bool {
	want := coinbaseHeightScript(height)
	sig := coinbase.TxIn[0].SignatureScript
	return len(sig) >= len(want) && string(sig[:len(want)]) == string(want)
}
