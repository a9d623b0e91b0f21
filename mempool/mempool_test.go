// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/database"
	"github.com/chaincore/btcnode/wire"
)

// opTrueScript is a one-byte OP_TRUE output script: any scriptSig
// satisfies it, including an empty one, so tests can spend it without
// constructing real signatures.
var opTrueScript = []byte{0x51}

// newTestPool opens a fresh chain under regtest parameters and mines n
// blocks on top of genesis, returning a TxPool wired to it plus every
// mined block (index 0 is genesis).
func newTestPool(t *testing.T, n int, policy Policy) (*TxPool, *chaincfg.Params, []*wire.MsgBlock) {
	t.Helper()
	params := chaincfg.RegressionNetParams()
	store, err := database.Open(t.TempDir(), database.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chain, err := blockchain.NewChain(params, store, nil, nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}

	blocks := make([]*wire.MsgBlock, 0, n+1)
	blocks = append(blocks, params.GenesisBlock)
	for h := int32(1); h <= int32(n); h++ {
		block := mineBlock(blocks[len(blocks)-1], h, params, 0)
		if _, err := chain.Add(block, "test"); err != nil {
			t.Fatalf("add block %d: %v", h, err)
		}
		blocks = append(blocks, block)
	}

	pool := New(Config{Chain: chain, Policy: policy})
	return pool, params, blocks
}

// coinbaseFor mirrors blockchain's own helper: a valid coinbase paying
// height's subsidy to an OP_TRUE output, nonced so distinct heights
// never collide on txid.
func coinbaseFor(height int32, params *chaincfg.Params, extraNonce uint32) *wire.MsgTx {
	sigScript := []byte{
		byte(height), byte(height >> 8), byte(height >> 16), byte(height >> 24),
		byte(extraNonce), byte(extraNonce >> 8), byte(extraNonce >> 16), byte(extraNonce >> 24),
	}
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			SignatureScript:  sigScript,
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{
			Value:    blockchain.CalcBlockSubsidy(height, params),
			PkScript: opTrueScript,
		}},
	}
}

func mineBlock(parent *wire.MsgBlock, height int32, params *chaincfg.Params, extraNonce uint32) *wire.MsgBlock {
	coinbase := coinbaseFor(height, params, extraNonce)
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: parent.BlockHash(),
			Timestamp: parent.Header.Timestamp.Add(time.Second),
			Bits:      parent.Header.Bits,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = coinbase.TxHash()
	// Grind the nonce until the hash, read as a little-endian number,
	// meets the regtest target encoded in Bits.
	target := chaincfg.CompactToBig(block.Header.Bits)
	for {
		hash := block.BlockHash()
		for i := 0; i < chainhash.HashSize/2; i++ {
			hash[i], hash[chainhash.HashSize-1-i] = hash[chainhash.HashSize-1-i], hash[i]
		}
		if new(big.Int).SetBytes(hash[:]).Cmp(target) <= 0 {
			return block
		}
		block.Header.Nonce++
	}
}

// spendCoinbase builds a standalone transaction spending block's sole
// coinbase output entirely to a single OP_TRUE output, paying fee
// satoshis to the pool. An empty signature script is enough since
// OP_TRUE requires no data on the stack.
func spendCoinbase(block *wire.MsgBlock, fee int64) *wire.MsgTx {
	coinbase := block.Transactions[0]
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: coinbase.TxHash(), Index: 0},
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{
			Value:    coinbase.TxOut[0].Value - fee,
			PkScript: opTrueScript,
		}},
	}
}

// spendOutput builds a transaction spending tx's sole output.
func spendOutput(tx *wire.MsgTx, fee int64) *wire.MsgTx {
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: tx.TxHash(), Index: 0},
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{
			Value:    tx.TxOut[0].Value - fee,
			PkScript: opTrueScript,
		}},
	}
}

func permissivePolicy() Policy {
	p := DefaultPolicy()
	p.AcceptNonStdTxs = true
	return p
}

func TestAddTransactionSpendingMaturedCoinbase(t *testing.T) {
	pool, _, blocks := newTestPool(t, 101, permissivePolicy())

	tx := spendCoinbase(blocks[1], 1000)
	entry, orphan, err := pool.AddTransaction(tx, time.Now())
	if err != nil {
		t.Fatalf("add tx: %v", err)
	}
	if orphan {
		t.Fatalf("spend of a resolvable coinbase parked as an orphan")
	}
	if entry.Fee != 1000 {
		t.Fatalf("fee = %d, want 1000", entry.Fee)
	}
	if !pool.HaveTransaction(tx.TxHash()) {
		t.Fatalf("admitted tx not found in pool")
	}
	if pool.Count() != 1 {
		t.Fatalf("count = %d, want 1", pool.Count())
	}
}

func TestAddTransactionImmatureCoinbaseRejected(t *testing.T) {
	pool, _, blocks := newTestPool(t, 5, permissivePolicy())

	// blocks[5]'s coinbase is only one confirmation deep; maturity is
	// 100 blocks on every chaincfg network, including regtest.
	tx := spendCoinbase(blocks[5], 1000)
	_, _, err := pool.AddTransaction(tx, time.Now())
	if err == nil {
		t.Fatalf("immature coinbase spend was admitted")
	}
	if !IsRejectCode(err, RejectNonstandard) {
		t.Fatalf("err = %v, want RejectNonstandard", err)
	}
}

func TestAddTransactionOrphansOnMissingParent(t *testing.T) {
	pool, _, _ := newTestPool(t, 101, permissivePolicy())

	parent := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.HashH([]byte("nonexistent")), Index: 0},
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{Value: 1000, PkScript: opTrueScript}},
	}

	_, orphan, err := pool.AddTransaction(parent, time.Now())
	if err != nil {
		t.Fatalf("orphan admission returned an error: %v", err)
	}
	if !orphan {
		t.Fatalf("tx with an unresolvable input was not parked as an orphan")
	}
	if pool.Count() != 0 {
		t.Fatalf("orphan counted as resident, count = %d", pool.Count())
	}
	if !pool.HaveTransaction(parent.TxHash()) {
		t.Fatalf("orphan not tracked by HaveTransaction")
	}
}

func TestOrphanPromotedWhenParentArrives(t *testing.T) {
	pool, _, blocks := newTestPool(t, 101, permissivePolicy())

	parent := spendCoinbase(blocks[1], 1000)
	child := spendOutput(parent, 1000)

	// The child arrives first: parent is neither confirmed nor pooled,
	// so it parks as an orphan.
	_, orphan, err := pool.AddTransaction(child, time.Now())
	if err != nil {
		t.Fatalf("add child: %v", err)
	}
	if !orphan {
		t.Fatalf("child with an unresolved parent was not orphaned")
	}
	if pool.Count() != 0 {
		t.Fatalf("count = %d, want 0 before parent arrives", pool.Count())
	}

	// The parent arrives and should pull the waiting child in with it.
	_, orphan, err = pool.AddTransaction(parent, time.Now())
	if err != nil {
		t.Fatalf("add parent: %v", err)
	}
	if orphan {
		t.Fatalf("parent with a resolvable input was orphaned")
	}
	if pool.Count() != 2 {
		t.Fatalf("count = %d, want 2 after promotion", pool.Count())
	}
	if !pool.HaveTransaction(child.TxHash()) {
		t.Fatalf("promoted child not found in pool")
	}
	if pool.orphans.count() != 0 {
		t.Fatalf("orphan pool still holds %d entries after promotion", pool.orphans.count())
	}
}

func TestDuplicateTransactionRejected(t *testing.T) {
	pool, _, blocks := newTestPool(t, 101, permissivePolicy())

	tx := spendCoinbase(blocks[1], 1000)
	if _, _, err := pool.AddTransaction(tx, time.Now()); err != nil {
		t.Fatalf("first add: %v", err)
	}
	_, _, err := pool.AddTransaction(tx, time.Now())
	if err == nil {
		t.Fatalf("duplicate add was admitted")
	}
	if !IsRejectCode(err, RejectDuplicate) {
		t.Fatalf("err = %v, want RejectDuplicate", err)
	}
}

func TestDoubleSpendRejected(t *testing.T) {
	pool, _, blocks := newTestPool(t, 101, permissivePolicy())

	tx1 := spendCoinbase(blocks[1], 1000)
	tx2 := spendCoinbase(blocks[1], 2000) // same input, different fee/txid

	if _, _, err := pool.AddTransaction(tx1, time.Now()); err != nil {
		t.Fatalf("add tx1: %v", err)
	}
	_, _, err := pool.AddTransaction(tx2, time.Now())
	if err == nil {
		t.Fatalf("double-spend was admitted")
	}
	if !IsRejectCode(err, RejectDuplicate) {
		t.Fatalf("err = %v, want RejectDuplicate", err)
	}
}

func TestInsufficientFeeRejected(t *testing.T) {
	policy := permissivePolicy()
	policy.MinRelayTxFeeRate = 10_000
	policy.RelayPriority = false
	policy.FreeTxRelayLimit = 0
	pool, _, blocks := newTestPool(t, 101, policy)

	tx := spendCoinbase(blocks[1], 0) // zero fee
	_, _, err := pool.AddTransaction(tx, time.Now())
	if err == nil {
		t.Fatalf("zero-fee tx was admitted")
	}
	if !IsRejectCode(err, RejectInsufficientFee) {
		t.Fatalf("err = %v, want RejectInsufficientFee", err)
	}
}

func TestBlockConfirmationRemovesFromPool(t *testing.T) {
	pool, params, blocks := newTestPool(t, 101, permissivePolicy())

	tx := spendCoinbase(blocks[1], 1000)
	if _, _, err := pool.AddTransaction(tx, time.Now()); err != nil {
		t.Fatalf("add tx: %v", err)
	}
	if pool.Count() != 1 {
		t.Fatalf("count = %d, want 1", pool.Count())
	}

	confirming := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: blocks[len(blocks)-1].BlockHash(),
			Timestamp: blocks[len(blocks)-1].Header.Timestamp.Add(time.Second),
			Bits:      blocks[len(blocks)-1].Header.Bits,
		},
		Transactions: []*wire.MsgTx{coinbaseFor(int32(len(blocks)), params, 0), tx},
	}
	pool.RemoveBlockTx(confirming)

	if pool.Count() != 0 {
		t.Fatalf("count = %d, want 0 after confirmation", pool.Count())
	}
	if pool.HaveTransaction(tx.TxHash()) {
		t.Fatalf("confirmed tx still tracked by the pool")
	}
}

// TestEvictionRaisesDynamicMinFeeRate fills the pool past its byte cap
// with transactions of increasing fee rate, forcing the lowest-paying
// one out, then checks that a fresh low-fee transaction below the
// resulting dynamic floor is rejected outright.
func TestEvictionRaisesDynamicMinFeeRate(t *testing.T) {
	policy := permissivePolicy()
	policy.MinRelayTxFeeRate = 0
	policy.MinReasonableFeeRate = 500
	policy.RelayPriority = false
	policy.FreeTxRelayLimit = 0
	// With MinRelayTxFeeRate at 0, every positive fee would exceed the
	// absurd-fee ceiling of 10000 times the minimum relay fee.
	policy.RejectAbsurdFees = false
	policy.MaxMempoolBytes = 150 // a couple of simple txs' worth

	// Mine enough blocks that coinbases up to height 4 are all mature
	// (maturity is 100 blocks on every chaincfg network).
	pool, _, blocks := newTestPool(t, 105, policy)

	fees := []int64{1000, 2000, 3000}
	var txs []*wire.MsgTx
	for i, fee := range fees {
		tx := spendCoinbase(blocks[i+1], fee)
		txs = append(txs, tx)
		if _, _, err := pool.AddTransaction(tx, time.Now()); err != nil {
			t.Fatalf("add tx %d (fee %d): %v", i, fee, err)
		}
	}

	// The lowest-fee transaction should have been evicted to bring the
	// pool back under its byte cap.
	if pool.HaveTransaction(txs[0].TxHash()) {
		t.Fatalf("lowest-fee tx survived eviction")
	}
	if !pool.HaveTransaction(txs[len(txs)-1].TxHash()) {
		t.Fatalf("highest-fee tx was evicted")
	}

	pool.mtx.RLock()
	dynRate := pool.dynamicMinRate
	pool.mtx.RUnlock()
	if dynRate <= policy.MinReasonableFeeRate {
		t.Fatalf("dynamicMinRate = %d, want more than MinReasonableFeeRate (%d)", dynRate, policy.MinReasonableFeeRate)
	}

	// A new, low-fee transaction paying less than the raised dynamic
	// floor must now be rejected as insufficientfee.
	cheap := spendCoinbase(blocks[len(fees)+1], 10)
	_, _, err := pool.AddTransaction(cheap, time.Now())
	if err == nil {
		t.Fatalf("tx below the raised dynamic minimum fee rate was admitted")
	}
	if !IsRejectCode(err, RejectInsufficientFee) {
		t.Fatalf("err = %v, want RejectInsufficientFee", err)
	}
}
