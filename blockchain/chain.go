// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockchain implements the consensus engine: block
// acceptance, contextual validation, reorganization, and the
// versionbits/checkpoint machinery that gates it.
package blockchain

import (
	"errors"
	"sync"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/database"
	"github.com/chaincore/btcnode/math/uint256"
	"github.com/chaincore/btcnode/txscript"
	"github.com/chaincore/btcnode/wire"
	"golang.org/x/sync/errgroup"
)

// AddOutcome reports how Add's block was classified.
type AddOutcome int

const (
	// Connected means the block extended the best chain, possibly
	// after a reorganization.
	Connected AddOutcome = iota

	// Orphaned means the block's parent hasn't been seen yet; it was
	// parked in the orphan pool.
	Orphaned

	// AlreadyKnown means the block (or an invalid ancestor of it) was
	// already in the index.
	AlreadyKnown

	// SideBranch means the block connected to a known ancestor but
	// didn't have enough work to become the new tip.
	SideBranch
)

// EventKind identifies the shape of an Event, one of the notification
// kinds the engine emits as it processes a block.
type EventKind int

const (
	EventRemoveBlock EventKind = iota
	EventAddBlock
	EventBlock
	EventFork
	EventInvalid
	EventExists
	EventOrphan
	EventFull
	EventChainProgress
)

// Event is a single chain-state notification. Height is -1 where it
// doesn't apply (e.g. EventOrphan, whose block isn't placed yet).
type Event struct {
	Kind EventKind
	Hash chainhash.Hash
	Height int32
}

// BestState is a snapshot of the chain's current tip.
type BestState struct {
	Hash chainhash.Hash
	Height int32
	Chainwork *uint256.Uint256
}

// Chain is the consensus engine: the sole writer of database.Store
// (single-writer invariant), holding the in-memory block
// index and serializing every connect/disconnect/reorg through writeMtx
// so callers never observe a torn chain state.
type Chain struct {
	params *chaincfg.Params
	store *database.Store
	sigCache *txscript.SigCache
	notify func(Event)

	writeMtx sync.Mutex

	mtx sync.RWMutex
	tip *blockNode

	index *blockIndex
	orphans *orphanPool
	thresholds *thresholdCache
}

// NewChain opens the consensus engine over store, bootstrapping the
// genesis block if the store is empty or rebuilding the in-memory index
// from the persisted tip otherwise.
func NewChain(params *chaincfg.Params, store *database.Store, sigCache *txscript.SigCache, notify func(Event)) (*Chain, error) {
	c := &Chain{
		params: params,
		store: store,
		sigCache: sigCache,
		notify: notify,
		index: newBlockIndex(),
		orphans: newOrphanPool(),
		thresholds: newThresholdCache(),
	}
	if err := c.initChainState(); err != nil {
		return nil, err
	}
	return c, nil
}

// initChainState loads the persisted tip into the in-memory blockNode
// graph, or writes the genesis block if the store has never been
// initialized.
func (c *Chain) initChainState() error {
	tipHash, err := c.store.Tip()
	if errors.Is(err, database.ErrNotFound) {
		return c.createGenesisState()
	}
	if err != nil {
		return err
	}
	return c.loadChain(tipHash)
}

func (c *Chain) createGenesisState() error {
	genesis := c.params.GenesisBlock
	node := newBlockNode(genesis.Header, nil)
	node.status = statusValid
	c.index.addNode(node)

	batch := c.store.NewBatch()
	entry := &database.ChainEntry{Header: genesis.Header, Height: 0, Chainwork: node.workSum}
	if err := batch.PutEntry(node.hash, entry); err != nil {
		return err
	}
	batch.SetMainChainHash(0, node.hash)
	batch.SetTip(node.hash)
	if err := batch.PutBlock(c.store, node.hash, genesis); err != nil {
		return err
	}
	if err := c.store.Commit(batch); err != nil {
		return err
	}

	c.tip = node
	return nil
}

// loadChain rebuilds the blockNode graph backward from tipHash to
// genesis, trusting the height and chainwork already recorded in each
// persisted database.ChainEntry rather than recomputing them.
func (c *Chain) loadChain(tipHash chainhash.Hash) error {
	var entries []*database.ChainEntry
	hash := tipHash
	for {
		entry, err := c.store.Entry(hash)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
		if entry.Height == 0 {
			break
		}
		hash = entry.Header.PrevBlock
	}

	var parent *blockNode
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		node := &blockNode{
			parent: parent,
			hash: e.Hash(),
			height: e.Height,
			header: e.Header,
			workSum: e.Chainwork,
			status: statusValid,
		}
		c.index.addNode(node)
		parent = node
	}
	c.tip = parent
	return nil
}

// BestSnapshot returns the current tip.
func (c *Chain) BestSnapshot() BestState {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	if c.tip == nil {
		return BestState{}
	}
	return BestState{Hash: c.tip.hash, Height: c.tip.height, Chainwork: c.tip.workSum}
}

// isMainChain reports whether node is on the best chain, consulting the
// persisted height index rather than walking ancestry from the tip.
func (c *Chain) isMainChain(node *blockNode) bool {
	hash, err := c.store.HashByHeight(node.height)
	return err == nil && hash == node.hash
}

func (c *Chain) emit(kind EventKind, hash chainhash.Hash, height int32) {
	if c.notify != nil {
		c.notify(Event{Kind: kind, Hash: hash, Height: height})
	}
}

// Add validates and, if it connects to known history, links block into
// the chain: duplicate check, orphan parking, header sanity, checkpoint
// conflict, extend or reorganize, then orphan promotion.
func (c *Chain) Add(block *wire.MsgBlock, source string) (AddOutcome, error) {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	return c.addLocked(block, time.Now())
}

func (c *Chain) addLocked(block *wire.MsgBlock, now time.Time) (AddOutcome, error) {
	hash := block.BlockHash()

	if existing := c.index.lookupNode(hash); existing != nil {
		if existing.status == statusInvalid {
			c.emit(EventExists, hash, existing.height)
			return AlreadyKnown, ruleError(ErrInvalidAncestor, -1, "block has a previously rejected ancestor")
		}
		c.emit(EventExists, hash, existing.height)
		return AlreadyKnown, nil
	}

	var parent *blockNode
	isGenesis := block.Header.PrevBlock == (chainhash.Hash{})
	if !isGenesis {
		parent = c.index.lookupNode(block.Header.PrevBlock)
		if parent == nil {
			c.orphans.removeExpired(now)
			c.orphans.add(block)
			c.emit(EventOrphan, hash, -1)
			return Orphaned, nil
		}
		if parent.status == statusInvalid {
			return AlreadyKnown, ruleError(ErrInvalidAncestor, -1, "parent block previously rejected")
		}
	}

	if err := c.checkBlockHeaderSanity(&block.Header, parent, now); err != nil {
		return AlreadyKnown, err
	}
	if err := checkBlockSanity(block); err != nil {
		return AlreadyKnown, err
	}

	node := newBlockNode(block.Header, parent)
	if err := c.checkpointConflict(node.height, node.hash); err != nil {
		node.status = statusInvalid
		c.index.addNode(node)
		c.emit(EventInvalid, hash, node.height)
		return AlreadyKnown, err
	}

	node.status = statusHeaders
	c.index.addNode(node)

	batch := c.store.NewBatch()
	entry := &database.ChainEntry{Header: block.Header, Height: node.height, Chainwork: node.workSum}
	if err := batch.PutEntry(node.hash, entry); err != nil {
		return AlreadyKnown, err
	}
	if err := batch.PutBlock(c.store, node.hash, block); err != nil {
		return AlreadyKnown, err
	}
	if err := c.store.Commit(batch); err != nil {
		return AlreadyKnown, err
	}

	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()

	var outcome AddOutcome
	var err error
	switch {
	case tip == nil || (parent != nil && parent.hash == tip.hash):
		err = c.extendTip(node, block)
		outcome = Connected
	case node.workSum.Cmp(tip.workSum) > 0:
		err = c.reorganize(node, block)
		outcome = Connected
	default:
		c.emit(EventFork, hash, node.height)
		outcome = SideBranch
	}

	if err != nil {
		c.index.setStatus(node, statusInvalid)
		c.emit(EventInvalid, hash, node.height)
		return AlreadyKnown, err
	}

	c.tryExtendOrphans(hash, now)
	return outcome, nil
}

// extendTip connects node directly atop the current tip.
func (c *Chain) extendTip(node *blockNode, block *wire.MsgBlock) error {
	if err := c.connectNode(node, block); err != nil {
		return err
	}
	c.mtx.Lock()
	c.tip = node
	c.mtx.Unlock()

	c.emit(EventAddBlock, node.hash, node.height)
	c.emit(EventBlock, node.hash, node.height)
	c.emit(EventChainProgress, node.hash, node.height)
	return nil
}

// blockForNode fetches the body of a previously-seen block, preferring
// known (the block just supplied to Add) over a store round-trip.
func (c *Chain) blockForNode(node *blockNode, known *wire.MsgBlock) (*wire.MsgBlock, error) {
	if known != nil && known.BlockHash() == node.hash {
		return known, nil
	}
	return c.store.Block(node.hash)
}

// reorganize disconnects the current best chain down to the fork point
// with node's ancestry, then connects node's branch, emitting
// EventRemoveBlock/EventAddBlock in the order requires.
func (c *Chain) reorganize(node *blockNode, newBlock *wire.MsgBlock) error {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()

	fork := findFork(tip, node)

	for n := tip; n != nil && n != fork; n = n.parent {
		blk, err := c.blockForNode(n, nil)
		if err != nil {
			return err
		}
		if err := c.disconnectNode(n, blk); err != nil {
			return err
		}
		c.emit(EventRemoveBlock, n.hash, n.height)
	}

	var attach []*blockNode
	for n := node; n != nil && n != fork; n = n.parent {
		attach = append(attach, n)
	}
	for i := len(attach) - 1; i >= 0; i-- {
		n := attach[i]
		blk, err := c.blockForNode(n, newBlock)
		if err != nil {
			return err
		}
		if err := c.connectNode(n, blk); err != nil {
			return err
		}
		c.emit(EventAddBlock, n.hash, n.height)
	}

	c.mtx.Lock()
	c.tip = node
	c.mtx.Unlock()

	c.emit(EventBlock, node.hash, node.height)
	c.emit(EventChainProgress, node.hash, node.height)
	return nil
}

// connectNode applies block's effects to the store: full contextual
// validation and UTXO updates for a full node, or just the main-chain
// pointers for an SPV store.
func (c *Chain) connectNode(node *blockNode, block *wire.MsgBlock) error {
	batch := c.store.NewBatch()

	if !c.store.SPV() {
		undo, err := c.checkConnectBlock(node, block, batch)
		if err != nil {
			return err
		}
		batch.PutUndoBlock(c.store, node.hash, undo)
		batch.ScheduleForPruning(c.store, node.height, node.hash)
		if err := c.store.ApplyPruning(batch, node.height); err != nil {
			return err
		}
	}

	batch.SetMainChainHash(node.height, node.hash)
	if node.parent != nil {
		batch.SetNextHash(node.parent.hash, node.hash)
	}
	batch.SetTip(node.hash)

	if err := c.store.Commit(batch); err != nil {
		return err
	}
	c.index.setStatus(node, statusValid)
	return nil
}

// disconnectNode reverses block's effects: restores every coin it spent
// from the block's UndoRecord and removes the coins it created.
func (c *Chain) disconnectNode(node *blockNode, block *wire.MsgBlock) error {
	batch := c.store.NewBatch()

	if !c.store.SPV() {
		undo, err := c.store.UndoBlock(node.hash)
		if err != nil {
			return err
		}

		for _, tx := range block.Transactions {
			txid := tx.TxHash()
			for i := range tx.TxOut {
				batch.DeleteCoin(wire.OutPoint{Hash: txid, Index: uint32(i)})
			}
		}

		undoIdx := 0
		for _, tx := range block.Transactions {
			if tx.IsCoinBase() {
				continue
			}
			for _, txIn := range tx.TxIn {
				coin := undo[undoIdx]
				undoIdx++
				batch.PutCoin(txIn.PreviousOutPoint, &coin)
			}
		}
		batch.DeleteUndoBlock(node.hash)
	}

	batch.DeleteMainChainHash(node.height)
	if node.parent != nil {
		batch.DeleteNextHash(node.parent.hash)
		batch.SetTip(node.parent.hash)
	}

	if err := c.store.Commit(batch); err != nil {
		return err
	}
	c.store.InvalidateCachedHeight(node.height)
	return nil
}

// scriptCheckJob is one input's script verification, queued during
// checkConnectBlock's sequential pass and run across a worker pool
// once every input's prevout has been resolved.
type scriptCheckJob struct {
	tx       *wire.MsgTx
	idx      int
	pkScript []byte
	amount   int64
	fetcher  txscript.PrevOutputFetcher
}

// checkConnectBlock performs the full contextual validation of block
// extending node.parent (contextual checklist): witness
// commitment, BIP34 coinbase height, per-transaction input/output
// balance and maturity, finality and relative lock-time, sigop cost,
// script execution, BIP30 duplicate-output rejection, and the subsidy
// bound. It returns the UndoRecord for every coin the block spent.
func (c *Chain) checkConnectBlock(node *blockNode, block *wire.MsgBlock, batch *database.Batch) (database.UndoRecord, error) {
	if segwitActive(c.params, node.height) {
		if err := checkWitnessCommitment(block); err != nil {
			return nil, err
		}
	}
	if bip34Active(c.params, node.height) {
		if !checkCoinbaseHeight(node.height, block.Transactions[0]) {
			return nil, ruleError(ErrBadBlockHeight, 100, "coinbase does not commit to block height")
		}
	}

	maturity := int32(c.params.CoinbaseMaturity)
	flags := c.blockScriptFlags(node.height)

	created := make(map[wire.OutPoint]*database.Coin)
	spentInBlock := make(map[wire.OutPoint]struct{})

	fetchCoin := func(op wire.OutPoint) (*database.Coin, error) {
		if coin, ok := created[op]; ok {
			return coin, nil
		}
		return c.store.Coin(op)
	}

	var undo database.UndoRecord
	var totalFees int64
	var sigOpsCost int64
	var scriptJobs []scriptCheckJob

	for txIdx, tx := range block.Transactions {
		txid := tx.TxHash()

		// BIP30: a transaction's outputs must not already exist as
		// unspent coins from an earlier, still-live transaction.
		exists, err := c.store.HasCoin(wire.OutPoint{Hash: txid, Index: 0})
		if err != nil {
			return nil, err
		}
		if exists {
			if _, ok := created[wire.OutPoint{Hash: txid, Index: 0}]; !ok {
				return nil, ruleError(ErrOverwriteTx, 100, "transaction output already exists unspent")
			}
		}

		if txIdx > 0 {
			if !checkFinal(node.parent, tx, StandardLockTimeFlags) {
				return nil, ruleError(ErrBadBlockHeight, 100, "transaction is not final")
			}

			res, err := checkInputs(tx, node.height, maturity, fetchCoin)
			if err != nil {
				return nil, err
			}
			if csvActive(c.params, node.height) {
				if !checkLocks(node.parent, tx, res.heights, StandardLockTimeFlags) {
					return nil, ruleError(ErrBadBlockHeight, 100, "transaction violates relative lock-time")
				}
			}
			totalFees += res.fee
			undo = append(undo, res.spent...)

			// txFetcher resolves every prevout this tx's inputs spend, so
			// the sighash computation for input i can see its siblings'
			// amounts without touching the block-wide created/store
			// lookups from a verification goroutine.
			txFetcher := make(txscript.MultiPrevOutFetcher, len(tx.TxIn))
			for i, txIn := range tx.TxIn {
				coin := res.spent[i]
				txFetcher[txIn.PreviousOutPoint] = wire.TxOut{Value: coin.Value, PkScript: coin.PkScript}
			}

			for i, txIn := range tx.TxIn {
				op := txIn.PreviousOutPoint
				if _, dup := spentInBlock[op]; dup {
					return nil, ruleError(ErrMissingTxOut, 100, "output double-spent within block")
				}
				spentInBlock[op] = struct{}{}
				batch.DeleteCoin(op)
				delete(created, op)

				coin := res.spent[i]
				sigOpsCost += InputSigOpCost(coin.PkScript, txIn.SignatureScript, txIn.Witness)
				if sigOpsCost > MaxBlockSigOpsCost {
					return nil, ruleError(ErrTooManySigOps, 100, "block exceeds the maximum sigop cost")
				}

				scriptJobs = append(scriptJobs, scriptCheckJob{
					tx:       tx,
					idx:      i,
					pkScript: coin.PkScript,
					amount:   coin.Value,
					fetcher:  txFetcher,
				})
			}
		}

		for i, txOut := range tx.TxOut {
			op := wire.OutPoint{Hash: txid, Index: uint32(i)}
			coin := &database.Coin{
				Value: txOut.Value,
				PkScript: txOut.PkScript,
				Height: node.height,
				IsCoinBase: txIdx == 0,
			}
			created[op] = coin
			batch.PutCoin(op, coin)
		}
	}

	g := new(errgroup.Group)
	for _, job := range scriptJobs {
		job := job
		g.Go(func() error {
			return txscript.Verify(job.tx, job.idx, job.pkScript, job.amount, flags, c.sigCache, job.fetcher)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ruleError(ErrScriptValidation, 100, "script validation failed: "+err.Error())
	}

	subsidy := CalcBlockSubsidy(node.height, c.params)
	var coinbaseOut int64
	for _, txOut := range block.Transactions[0].TxOut {
		coinbaseOut += txOut.Value
	}
	if coinbaseOut > subsidy+totalFees {
		return nil, ruleError(ErrSpendTooHigh, 100, "coinbase pays more than subsidy plus fees")
	}

	return undo, nil
}

// blockScriptFlags returns the script verification flags active for a
// block at height, layering in each soft fork once its activation
// height (or versionbits deployment, for future extension) is reached.
func (c *Chain) blockScriptFlags(height int32) txscript.ScriptFlags {
	flags := txscript.ScriptBip16
	if bip65Active(c.params, height) {
		flags |= txscript.ScriptVerifyCheckLockTimeVerify
	}
	if csvActive(c.params, height) {
		flags |= txscript.ScriptVerifyCheckSequenceVerify
	}
	if bip66Active(c.params, height) {
		flags |= txscript.ScriptVerifyDERSignatures
	}
	if segwitActive(c.params, height) {
		flags |= txscript.ScriptVerifyWitness | txscript.ScriptVerifyNullDummy
	}
	return flags
}

// NextBlockScriptFlags returns the script verification flags a
// transaction must satisfy to be eligible for the block that would
// next extend the current tip, the consensus-flags half of mempool
// admission's standardness check.
func (c *Chain) NextBlockScriptFlags() txscript.ScriptFlags {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()
	var nextHeight int32
	if tip != nil {
		nextHeight = tip.height + 1
	}
	return c.blockScriptFlags(nextHeight)
}

// Params returns the consensus parameters this chain was opened with,
// letting dependent packages such as mempool read policy-relevant
// constants (e.g. FreeThreshold) without duplicating them.
func (c *Chain) Params() *chaincfg.Params {
	return c.params
}

// FetchUtxo looks up an unspent output directly from the chain store,
// the fallback step of step 6's coin resolution once the
// mempool's own outputs have been checked first.
func (c *Chain) FetchUtxo(op wire.OutPoint) (*database.Coin, error) {
	coin, err := c.store.Coin(op)
	if err == database.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return coin, nil
}

// CheckFinal reports whether tx could be included in a block extending
// the current tip, per locktime finality rule.
func (c *Chain) CheckFinal(tx *wire.MsgTx, flags LockTimeFlags) bool {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()
	if tip == nil {
		return true
	}
	return checkFinal(tip, tx, flags)
}

// CheckLocks reports whether tx's BIP68 relative lock-times have
// matured as of a block extending the current tip.
func (c *Chain) CheckLocks(tx *wire.MsgTx, inputHeights []int32, flags LockTimeFlags) bool {
	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()
	if tip == nil {
		return true
	}
	return checkLocks(tip, tx, inputHeights, flags)
}

// GetOrphanRoot returns the deepest known ancestor of hash still missing
// from the chain, the block a sync driver should request next to
// unblock an orphan chain.
func (c *Chain) GetOrphanRoot(hash chainhash.Hash) chainhash.Hash {
	return c.orphans.root(hash)
}

// tryExtendOrphans recursively promotes every orphan directly or
// transitively waiting on parentHash now that it has connected.
func (c *Chain) tryExtendOrphans(parentHash chainhash.Hash, now time.Time) {
	children := c.orphans.children(parentHash)
	for _, child := range children {
		hash := child.BlockHash()
		c.orphans.remove(hash)
		if _, err := c.addLocked(child, now); err != nil {
			log.Warnf("orphan %v failed to connect after parent arrived: %v", hash, err)
			continue
		}
		c.tryExtendOrphans(hash, now)
	}
}

// Reset disconnects the current chain down to the named ancestor,
// useful for rewinding state in tests or after detecting corruption.
func (c *Chain) Reset(to chainhash.Hash) error {
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()

	target := c.index.lookupNode(to)
	if target == nil {
		return ruleError(ErrMissingParent, -1, "reset target is not a known block")
	}

	c.mtx.RLock()
	tip := c.tip
	c.mtx.RUnlock()

	for n := tip; n != nil && n != target; n = n.parent {
		blk, err := c.blockForNode(n, nil)
		if err != nil {
			return err
		}
		if err := c.disconnectNode(n, blk); err != nil {
			return err
		}
		c.emit(EventRemoveBlock, n.hash, n.height)
	}

	c.mtx.Lock()
	c.tip = target
	c.mtx.Unlock()
	c.emit(EventChainProgress, target.hash, target.height)
	return nil
}
