// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool implements the admission pipeline, orphan pool, and
// eviction policy for unconfirmed transactions.
package mempool

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/txscript"
	"github.com/chaincore/btcnode/wire"
)

// EventKind distinguishes the mempool lifecycle notifications emitted
// under the mempool's event ordering guarantees.
type EventKind int

const (
	// EventTx fires for every transaction admitted to the pool.
	EventTx EventKind = iota
	// EventAddTx fires alongside EventTx; kept distinct so a listener
	// that only cares about pool-size changes can subscribe narrowly.
	EventAddTx
	// EventConfirmed fires during removal when a pooled transaction is
	// pulled out because a block confirmed it.
	EventConfirmed
)

// Event is a mempool lifecycle notification.
type Event struct {
	Kind EventKind
	Hash chainhash.Hash
}

// TxEntry is MempoolEntry: everything the pool tracks
// about one admitted transaction.
type TxEntry struct {
	Tx *wire.MsgTx
	Added time.Time
	Height int32 // chain height at admission
	Size int64 // virtual size
	Fee int64
	InputValue int64
	Priority float64
}

func (e *TxEntry) feeRate() float64 {
	if e.Size == 0 {
		return 0
	}
	return float64(e.Fee) / float64(e.Size)
}

// Config wires a TxPool to the chain it admits transactions against and
// the relay policy it enforces.
type Config struct {
	Chain *blockchain.Chain
	Policy Policy
	SigCache *txscript.SigCache
	Notify func(Event)
	Journal *Journal
}

// TxPool is the node's unconfirmed transaction pool: admission
// pipeline, orphan pool, indexes, and eviction/fee-floor bookkeeping
//.
type TxPool struct {
	cfg Config

	mtx sync.RWMutex
	pool map[chainhash.Hash]*TxEntry
	outpoints map[wire.OutPoint]chainhash.Hash

	orphans *orphanPool

	totalBytes int64
	dynamicMinRate int64
	lastDecay time.Time

	freeUsedBytes float64
	lastFreeCheck time.Time
}

// New constructs an empty pool from cfg.
func New(cfg Config) *TxPool {
	return &TxPool{
		cfg: cfg,
		pool: make(map[chainhash.Hash]*TxEntry),
		outpoints: make(map[wire.OutPoint]chainhash.Hash),
		orphans: newOrphanPool(cfg.Policy.MaxOrphanTxs),
		lastDecay: time.Now(),
		lastFreeCheck: time.Now(),
	}
}

func (p *TxPool) emit(kind EventKind, hash chainhash.Hash) {
	if p.cfg.Notify != nil {
		p.cfg.Notify(Event{Kind: kind, Hash: hash})
	}
}

// Count returns the number of transactions currently resident.
func (p *TxPool) Count() int {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	return len(p.pool)
}

// HaveTransaction reports whether hash is already known, either
// admitted or parked as an orphan.
func (p *TxPool) HaveTransaction(hash chainhash.Hash) bool {
	p.mtx.RLock()
	_, inPool := p.pool[hash]
	p.mtx.RUnlock()
	return inPool || p.orphans.has(hash)
}

// TxHashes returns the hashes of every admitted transaction, answering
// a peer's mempool command.
func (p *TxPool) TxHashes() []chainhash.Hash {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	hashes := make([]chainhash.Hash, 0, len(p.pool))
	for hash := range p.pool {
		hashes = append(hashes, hash)
	}
	return hashes
}

// FetchTransaction returns a pooled transaction by hash.
func (p *TxPool) FetchTransaction(hash chainhash.Hash) (*wire.MsgTx, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	entry, ok := p.pool[hash]
	if !ok {
		return nil, false
	}
	return entry.Tx, true
}

// FeeRate returns a pooled transaction's fee rate in satoshis per
// thousand bytes, for fee-filter relay suppression.
func (p *TxPool) FeeRate(hash chainhash.Hash) (int64, bool) {
	p.mtx.RLock()
	defer p.mtx.RUnlock()
	entry, ok := p.pool[hash]
	if !ok {
		return 0, false
	}
	return int64(entry.feeRate() * 1000), true
}

// resolvedInput is what fetchInputLocked found for one spent outpoint.
type resolvedInput struct {
	out wire.TxOut
	height int32
	isCoinbase bool
}

// fetchInputLocked resolves op's output, the height it was created at,
// and whether it came from a coinbase, checking the pool first and
// falling back to the chain (step 6). It must be called
// with mtx held for reading at least.
func (p *TxPool) fetchInputLocked(op wire.OutPoint) (resolvedInput, bool, error) {
	if entry, ok := p.pool[op.Hash]; ok {
		if int(op.Index) >= len(entry.Tx.TxOut) {
			return resolvedInput{}, false, nil
		}
		// An unconfirmed parent contributes zero coin-age: report its
		// admission height so calcPriority's age term is zero. A pooled
		// transaction is never a coinbase.
		return resolvedInput{out: *entry.Tx.TxOut[op.Index], height: entry.Height + 1}, true, nil
	}
	coin, err := p.cfg.Chain.FetchUtxo(op)
	if err != nil {
		return resolvedInput{}, false, err
	}
	if coin == nil {
		return resolvedInput{}, false, nil
	}
	out := wire.TxOut{Value: coin.Value, PkScript: coin.PkScript}
	return resolvedInput{out: out, height: coin.Height, isCoinbase: coin.IsCoinBase}, true, nil
}

// AddTransaction runs tx through admission pipeline.
// acceptedOrphan reports whether tx was parked as an orphan rather than
// admitted or rejected outright.
func (p *TxPool) AddTransaction(tx *wire.MsgTx, now time.Time) (entry *TxEntry, acceptedOrphan bool, err error) {
	hash := tx.TxHash()

	// Step 1: sanity.
	if tx.IsCoinBase() {
		return nil, false, txRuleError(RejectInvalid, 100, "coinbase transaction cannot enter the mempool")
	}
	if err := blockchain.CheckTransactionSanity(tx); err != nil {
		return nil, false, txRuleError(RejectMalformed, 100, err.Error())
	}
	if tx.VirtualSize()*4 > blockchain.MaxBlockWeight {
		return nil, false, txRuleError(RejectMalformed, 100, "transaction is larger than the maximum block weight allows")
	}

	// Step 2: policy (standardness).
	flags := p.cfg.Chain.NextBlockScriptFlags()
	if err := isStandardTx(tx, flags, p.cfg.Policy); err != nil {
		return nil, false, err
	}

	// Step 3: finality and relative lock-time, evaluated against the
	// current tip under the standard locktime flags.
	if !p.cfg.Chain.CheckFinal(tx, blockchain.StandardLockTimeFlags) {
		return nil, false, txRuleError(RejectNonstandard, 0, "transaction is not final")
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	// Step 4: duplicate check.
	if _, ok := p.pool[hash]; ok {
		return nil, false, txRuleError(RejectDuplicate, 0, "transaction already in the mempool")
	}
	if p.orphans.has(hash) {
		return nil, false, txRuleError(RejectDuplicate, 0, "transaction already parked as an orphan")
	}
	if coin, err := p.cfg.Chain.FetchUtxo(wire.OutPoint{Hash: hash, Index: 0}); err != nil {
		return nil, false, err
	} else if coin != nil {
		return nil, false, txRuleError(RejectDuplicate, 0, "transaction already confirmed and unspent")
	}

	// Step 5: double-spend check against other pooled transactions. No
	// replace-by-fee in this pipeline: the first spender wins.
	for _, in := range tx.TxIn {
		if spender, ok := p.outpoints[in.PreviousOutPoint]; ok {
			return nil, false, txRuleError(RejectDuplicate, 0,
				"input double-spends an output already spent by mempool tx "+spender.String())
		}
	}

	// Step 6: coin resolution, mempool first then chain. Any
	// unresolved input parks tx as an orphan.
	prevOuts := make([]wire.TxOut, len(tx.TxIn))
	inputHeights := make([]int32, len(tx.TxIn))
	var inputValue int64
	nextHeight := p.cfg.Chain.BestSnapshot().Height + 1
	maturity := int32(p.cfg.Chain.Params().CoinbaseMaturity)

	for i, in := range tx.TxIn {
		resolved, ok, err := p.fetchInputLocked(in.PreviousOutPoint)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			if tx.SerializeSize() > p.cfg.Policy.MaxOrphanTxSize {
				return nil, false, txRuleError(RejectNonstandard, 0, "orphan transaction exceeds the maximum orphan size")
			}
			p.orphans.removeExpired(now)
			p.orphans.add(tx)
			return nil, true, nil
		}
		if resolved.isCoinbase && nextHeight-resolved.height < maturity {
			return nil, false, txRuleError(RejectNonstandard, 0, "transaction spends an immature coinbase output")
		}
		prevOuts[i] = resolved.out
		inputHeights[i] = resolved.height
		inputValue += resolved.out.Value
	}

	var outputValue int64
	for _, out := range tx.TxOut {
		outputValue += out.Value
	}
	if inputValue < outputValue {
		return nil, false, txRuleError(RejectInvalid, 100, "transaction spends more than its inputs provide")
	}
	fee := inputValue - outputValue

	if !p.cfg.Chain.CheckLocks(tx, inputHeights, blockchain.StandardLockTimeFlags) {
		return nil, false, txRuleError(RejectNonstandard, 0, "transaction's relative locktime has not matured")
	}

	if cost := sigOpCost(tx, prevOuts); cost > blockchain.MaxBlockSigOpsCost/5 {
		return nil, false, txRuleError(RejectNonstandard, 0, "transaction sigop cost is too high")
	}

	// Step 7: fee / priority gate.
	vsize := tx.VirtualSize()
	minFeeRate := p.cfg.Policy.MinRelayTxFeeRate
	if p.dynamicMinRate > minFeeRate {
		minFeeRate = p.dynamicMinRate
	}
	minFee := minFeeRate * vsize / 1000

	if fee < minFee {
		priority := calcPriority(tx, valuesOf(prevOuts), inputHeights, nextHeight)
		freePriority := p.cfg.Policy.RelayPriority && priority > p.cfg.Chain.Params().FreeThreshold
		if !freePriority && !p.allowFreeRelayLocked(vsize, now) {
			return nil, false, txRuleError(RejectInsufficientFee, 0, "transaction fee is below the minimum relay rate")
		}
	}
	if p.cfg.Policy.RejectAbsurdFees && fee > 10_000*p.cfg.Policy.MinRelayTxFeeRate*vsize/1000 {
		return nil, false, txRuleError(RejectInsufficientFee, 0, "transaction fee is absurdly high")
	}

	// Step 8: ancestor-count bound.
	if n := p.countAncestorsLocked(tx); n > p.cfg.Policy.AncestorLimit {
		return nil, false, txRuleError(RejectNonstandard, 0, "transaction has too many unconfirmed ancestors")
	}

	// Step 9: full script verification, standard flags first, then
	// mandatory-only to classify a failure as policy versus consensus.
	if err := verifyInputs(tx, prevOuts, txscript.StandardVerifyFlags, p.cfg.SigCache); err != nil {
		if verifyInputs(tx, prevOuts, txscript.MandatoryVerifyFlags, p.cfg.SigCache) != nil {
			return nil, false, txRuleError(RejectInvalid, 100, "script verification failed under mandatory flags: "+err.Error())
		}
		return nil, false, txRuleError(RejectNonstandard, 0, "script verification failed under standard flags: "+err.Error())
	}

	// Step 10: insert.
	priority := calcPriority(tx, valuesOf(prevOuts), inputHeights, nextHeight)
	entry = &TxEntry{
		Tx: tx,
		Added: now,
		Height: nextHeight - 1,
		Size: vsize,
		Fee: fee,
		InputValue: inputValue,
		Priority: priority,
	}
	p.insertLocked(entry)
	if p.cfg.Journal != nil {
		if err := p.cfg.Journal.Put(tx); err != nil {
			log.Warnf("failed to journal tx %v: %v", hash, err)
		}
	}
	p.emit(EventTx, hash)
	p.emit(EventAddTx, hash)

	p.promoteOrphansLocked(hash, now)

	// Step 11: eviction if the memory cap is exceeded.
	p.evictIfOverCapLocked(now)

	return entry, false, nil
}

func valuesOf(outs []wire.TxOut) []int64 {
	vals := make([]int64, len(outs))
	for i, o := range outs {
		vals[i] = o.Value
	}
	return vals
}

// allowFreeRelayLocked spends vsize bytes from the decaying free-relay
// budget, admitting the transaction if the budget covers it. Callers
// must hold mtx.
func (p *TxPool) allowFreeRelayLocked(vsize int64, now time.Time) bool {
	elapsed := now.Sub(p.lastFreeCheck).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	// Budget decays exponentially toward zero with a ten-minute time
	// constant (a factor of e every 600 seconds), the same shape step 7
	// describes for limitFreeRelay.
	decay := math.Exp(-elapsed / 600.0)
	p.freeUsedBytes *= decay
	p.lastFreeCheck = now

	budget := p.cfg.Policy.FreeTxRelayLimit * 1000 * 10
	if p.freeUsedBytes+float64(vsize) > budget {
		return false
	}
	p.freeUsedBytes += float64(vsize)
	return true
}

// countAncestorsLocked counts tx's distinct in-mempool ancestors by
// walking parent links transitively, counting each ancestor once.
func (p *TxPool) countAncestorsLocked(tx *wire.MsgTx) int {
	seen := make(map[chainhash.Hash]struct{})
	var walk func(h chainhash.Hash)
	walk = func(h chainhash.Hash) {
		entry, ok := p.pool[h]
		if !ok {
			return
		}
		if _, dup := seen[h]; dup {
			return
		}
		seen[h] = struct{}{}
		for _, in := range entry.Tx.TxIn {
			walk(in.PreviousOutPoint.Hash)
		}
	}
	for _, in := range tx.TxIn {
		walk(in.PreviousOutPoint.Hash)
	}
	return len(seen)
}

func (p *TxPool) insertLocked(entry *TxEntry) {
	hash := entry.Tx.TxHash()
	p.pool[hash] = entry
	for _, in := range entry.Tx.TxIn {
		p.outpoints[in.PreviousOutPoint] = hash
	}
	p.totalBytes += entry.Size
}

func (p *TxPool) removeLocked(hash chainhash.Hash) {
	entry, ok := p.pool[hash]
	if !ok {
		return
	}
	delete(p.pool, hash)
	for _, in := range entry.Tx.TxIn {
		if p.outpoints[in.PreviousOutPoint] == hash {
			delete(p.outpoints, in.PreviousOutPoint)
		}
	}
	p.totalBytes -= entry.Size
	if p.cfg.Journal != nil {
		if err := p.cfg.Journal.Delete(hash); err != nil {
			log.Warnf("failed to remove tx %v from journal: %v", hash, err)
		}
	}
}

// promoteOrphansLocked pulls in every orphan that was waiting on hash,
// re-running each through the full admission pipeline so a chain of
// orphans unblocks transitively.
func (p *TxPool) promoteOrphansLocked(hash chainhash.Hash, now time.Time) {
	for _, child := range p.orphans.children(hash) {
		childHash := child.TxHash()
		p.orphans.remove(childHash)
		p.mtx.Unlock()
		_, _, err := p.AddTransaction(child, now)
		p.mtx.Lock()
		if err != nil {
			log.Debugf("orphan %v failed admission after parent arrived: %v", childHash, err)
		}
	}
}

// RemoveBlockTx removes block's transactions from the pool because they
// were just confirmed ("removal on block acceptance"),
// traversing in reverse so a transaction is removed before any mempool
// entry that spent its change output.
func (p *TxPool) RemoveBlockTx(block *wire.MsgBlock) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	for i := len(block.Transactions) - 1; i >= 0; i-- {
		tx := block.Transactions[i]
		hash := tx.TxHash()
		if _, ok := p.pool[hash]; ok {
			p.removeLocked(hash)
			p.emit(EventConfirmed, hash)
		}
		for _, in := range tx.TxIn {
			if spender, ok := p.outpoints[in.PreviousOutPoint]; ok {
				p.removeLocked(spender)
			}
		}
	}
}

// ReinsertBlockTx re-admits block's non-coinbase transactions after a
// disconnect by running each through the full AddTransaction pipeline;
// no admission step is skipped for them, so the fee, ancestor and
// script checks run again, and a transaction failing any check is
// logged and dropped (disconnect handling).
func (p *TxPool) ReinsertBlockTx(block *wire.MsgBlock, now time.Time) {
	for _, tx := range block.Transactions {
		if tx.IsCoinBase() {
			continue
		}
		if _, _, err := p.AddTransaction(tx, now); err != nil {
			log.Debugf("disconnected tx %v not reinserted: %v", tx.TxHash(), err)
		}
	}
}

// evictIfOverCapLocked drops the lowest fee-rate entries until the pool
// is back under its memory cap, raising the dynamic minimum fee rate by
// at least the evicted rate plus MinReasonableFeeRate. Callers must hold
// mtx.
func (p *TxPool) evictIfOverCapLocked(now time.Time) {
	p.decayDynamicRateLocked(now)
	if p.totalBytes <= p.cfg.Policy.MaxMempoolBytes {
		return
	}

	entries := make([]*TxEntry, 0, len(p.pool))
	for _, e := range p.pool {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].feeRate() < entries[j].feeRate() })

	var evictedRate int64
	for _, e := range entries {
		if p.totalBytes <= p.cfg.Policy.MaxMempoolBytes {
			break
		}
		rate := int64(e.feeRate() * 1000)
		if rate > evictedRate {
			evictedRate = rate
		}
		hash := e.Tx.TxHash()
		p.removeLocked(hash)
		for _, child := range p.orphanDependentsLocked(hash) {
			p.removeLocked(child)
		}
	}
	if evictedRate > 0 {
		p.dynamicMinRate += evictedRate + p.cfg.Policy.MinReasonableFeeRate
	}
}

// orphanDependentsLocked returns the hashes of pooled transactions that
// spend an output of hash, the in-pool analogue of an orphan's parent
// link, evicted alongside their parent.
func (p *TxPool) orphanDependentsLocked(hash chainhash.Hash) []chainhash.Hash {
	var out []chainhash.Hash
	for op, spender := range p.outpoints {
		if op.Hash == hash {
			out = append(out, spender)
		}
	}
	return out
}

// decayDynamicRateLocked relaxes the dynamic minimum fee rate raised by
// a prior eviction back toward zero with FeeHalfLife, quartered when the
// pool is under half its cap and halved otherwise (step
// 11's decay schedule). Callers must hold mtx.
func (p *TxPool) decayDynamicRateLocked(now time.Time) {
	if p.dynamicMinRate == 0 {
		p.lastDecay = now
		return
	}
	elapsed := now.Sub(p.lastDecay)
	if elapsed <= 0 {
		return
	}
	p.lastDecay = now

	halfLife := p.cfg.Chain.Params().FeeHalfLife
	if halfLife <= 0 {
		p.dynamicMinRate = 0
		return
	}
	halvings := float64(elapsed) / float64(halfLife)
	if p.totalBytes < p.cfg.Policy.MaxMempoolBytes/2 {
		halvings *= 4
	} else {
		halvings *= 2
	}
	decayed := float64(p.dynamicMinRate) * math.Pow(0.5, halvings)
	p.dynamicMinRate = int64(decayed)
}

// verifyInputs runs the script interpreter over every input, the
// engine-level counterpart to the chain engine's checkConnectBlock
// script step, using the amount and pkScript recorded in prevOuts.
func verifyInputs(tx *wire.MsgTx, prevOuts []wire.TxOut, flags txscript.ScriptFlags, sigCache *txscript.SigCache) error {
	fetcher := prevOutFetcher(prevOuts, tx)
	for i, out := range prevOuts {
		if err := txscript.Verify(tx, i, out.PkScript, out.Value, flags, sigCache, fetcher); err != nil {
			return err
		}
	}
	return nil
}

func prevOutFetcher(prevOuts []wire.TxOut, tx *wire.MsgTx) txscript.PrevOutputFetcher {
	m := make(map[wire.OutPoint]wire.TxOut, len(prevOuts))
	for i, out := range prevOuts {
		m[tx.TxIn[i].PreviousOutPoint] = out
	}
	return txscript.NewMultiPrevOutFetcher(m)
}
