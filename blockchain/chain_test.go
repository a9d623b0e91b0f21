// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/database"
	"github.com/chaincore/btcnode/wire"
)

// newTestChain opens a fresh on-disk store (in a temp directory wiped
// with the test) under regtest parameters, whose trivial
// proof-of-work target and disabled retargeting keep block construction
// simple.
func newTestChain(t *testing.T) (*Chain, *chaincfg.Params) {
	t.Helper()
	params := chaincfg.RegressionNetParams()
	store, err := database.Open(t.TempDir(), database.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c, err := NewChain(params, store, nil, nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	return c, params
}

// coinbaseFor builds a valid coinbase transaction paying height's
// subsidy to an OP_TRUE output, with a unique extra-nonce in the
// signature script so successive coinbases never collide on txid (the
// BIP30 duplicate-transaction check would otherwise reject them).
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
			Value:    CalcBlockSubsidy(height, params),
			PkScript: []byte{0x51}, // OP_TRUE
		}},
	}
}

// mineBlock builds a block extending parent at height, with prevBits
// carried forward (regtest disables retargeting) and a timestamp one
// second after parent's, then increments the nonce until the header
// hash meets the regtest proof-of-work target (about two tries).
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
	for checkProofOfWork(block.BlockHash(), block.Header.Bits, params.PowLimit) != nil {
		block.Header.Nonce++
	}
	return block
}

func TestGenesisBootstrap(t *testing.T) {
	c, params := newTestChain(t)
	snap := c.BestSnapshot()
	if snap.Hash != params.GenesisHash {
		t.Fatalf("tip = %v, want genesis %v", snap.Hash, params.GenesisHash)
	}
	if snap.Height != 0 {
		t.Fatalf("height = %d, want 0", snap.Height)
	}

	// Reopening the same store must rebuild the identical tip rather
	// than re-bootstrap genesis.
	store := c.store
	c2, err := NewChain(params, store, nil, nil)
	if err != nil {
		t.Fatalf("reload chain: %v", err)
	}
	snap2 := c2.BestSnapshot()
	if snap2.Hash != snap.Hash || snap2.Height != snap.Height {
		t.Fatalf("reloaded snapshot %+v != original %+v", snap2, snap)
	}
}

func TestAddSimpleConnect(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock

	block1 := mineBlock(genesis, 1, params, 0)
	outcome, err := c.Add(block1, "test")
	if err != nil {
		t.Fatalf("add block1: %v", err)
	}
	if outcome != Connected {
		t.Fatalf("outcome = %v, want Connected", outcome)
	}

	snap := c.BestSnapshot()
	if snap.Hash != block1.BlockHash() || snap.Height != 1 {
		t.Fatalf("tip = %+v, want block1 at height 1", snap)
	}

	block2 := mineBlock(block1, 2, params, 0)
	if _, err := c.Add(block2, "test"); err != nil {
		t.Fatalf("add block2: %v", err)
	}
	snap = c.BestSnapshot()
	if snap.Height != 2 {
		t.Fatalf("height = %d, want 2", snap.Height)
	}

	// Re-adding a known block reports AlreadyKnown, not an error.
	outcome, err = c.Add(block1, "test")
	if err != nil {
		t.Fatalf("re-add block1: %v", err)
	}
	if outcome != AlreadyKnown {
		t.Fatalf("re-add outcome = %v, want AlreadyKnown", outcome)
	}
}

func TestAddOrphan(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock

	block1 := mineBlock(genesis, 1, params, 0)
	block2 := mineBlock(block1, 2, params, 0)

	// block2 arrives first: its parent is unknown, so it parks as an
	// orphan rather than failing outright.
	outcome, err := c.Add(block2, "test")
	if err != nil {
		t.Fatalf("add block2: %v", err)
	}
	if outcome != Orphaned {
		t.Fatalf("outcome = %v, want Orphaned", outcome)
	}
	if c.BestSnapshot().Height != 0 {
		t.Fatalf("tip advanced on an orphan")
	}

	root := c.GetOrphanRoot(block2.BlockHash())
	if root != block1.BlockHash() {
		t.Fatalf("orphan root = %v, want block1 %v", root, block1.BlockHash())
	}

	// Supplying the missing parent promotes block2 automatically.
	if _, err := c.Add(block1, "test"); err != nil {
		t.Fatalf("add block1: %v", err)
	}
	snap := c.BestSnapshot()
	if snap.Height != 2 || snap.Hash != block2.BlockHash() {
		t.Fatalf("tip = %+v, want block2 at height 2", snap)
	}
}

func TestReorgToHeavierSideChain(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock

	// Build the initial best chain: genesis -> a1 -> a2.
	a1 := mineBlock(genesis, 1, params, 0)
	a2 := mineBlock(a1, 2, params, 0)
	if _, err := c.Add(a1, "test"); err != nil {
		t.Fatalf("add a1: %v", err)
	}
	if _, err := c.Add(a2, "test"); err != nil {
		t.Fatalf("add a2: %v", err)
	}

	// A competing branch off genesis that doesn't yet have more work
	// stays a side branch.
	b1 := mineBlock(genesis, 1, params, 1)
	outcome, err := c.Add(b1, "test")
	if err != nil {
		t.Fatalf("add b1: %v", err)
	}
	if outcome != SideBranch {
		t.Fatalf("outcome = %v, want SideBranch", outcome)
	}
	if c.BestSnapshot().Hash != a2.BlockHash() {
		t.Fatalf("tip moved off a2 despite b1 having less work")
	}

	// Extending b with equal-difficulty blocks eventually overtakes a's
	// chainwork (b2 ties a's work at height 2 under equal bits, so a
	// third block is needed to clear the tie in hash-order-independent
	// fashion: add b2 then b3).
	b2 := mineBlock(b1, 2, params, 1)
	if _, err := c.Add(b2, "test"); err != nil {
		t.Fatalf("add b2: %v", err)
	}
	b3 := mineBlock(b2, 3, params, 1)
	outcome, err = c.Add(b3, "test")
	if err != nil {
		t.Fatalf("add b3: %v", err)
	}
	if outcome != Connected {
		t.Fatalf("outcome = %v, want Connected (reorg)", outcome)
	}

	snap := c.BestSnapshot()
	if snap.Hash != b3.BlockHash() || snap.Height != 3 {
		t.Fatalf("tip = %+v, want b3 at height 3", snap)
	}

	// The chain must still answer height-indexed queries along the new
	// best branch, not the abandoned one.
	hash, err := c.store.HashByHeight(1)
	if err != nil {
		t.Fatalf("hash by height 1: %v", err)
	}
	if hash != b1.BlockHash() {
		t.Fatalf("height 1 hash = %v, want b1 %v", hash, b1.BlockHash())
	}
}

func TestCheckpointConflictRejected(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock
	block1 := mineBlock(genesis, 1, params, 0)

	cpHash := block1.BlockHash()
	cpHash[0] ^= 0xff // corrupt it so block1 can never match
	params.Checkpoints = []chaincfg.Checkpoint{{Height: 1, Hash: &cpHash}}

	_, err := c.Add(block1, "test")
	if err == nil {
		t.Fatalf("expected checkpoint conflict error")
	}
	if !IsErrorCode(err, ErrCheckpointMismatch) {
		t.Fatalf("err = %v, want ErrCheckpointMismatch", err)
	}
}
