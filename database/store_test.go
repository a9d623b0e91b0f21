// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/math/uint256"
	"github.com/chaincore/btcnode/wire"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "btcnode-database-test")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Open(dir, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(height int32) (chainhash.Hash, *ChainEntry) {
	hdr := wire.BlockHeader{
		Version: 1,
		Timestamp: time.Unix(1231006505, 0),
		Bits: 0x1d00ffff,
		Nonce: uint32(height),
	}
	e := &ChainEntry{
		Header: hdr,
		Height: height,
		Chainwork: uint256.NewFromBig(big.NewInt(int64(height) + 1)),
	}
	return hdr.BlockHash(), e
}

func TestEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	hash, entry := testEntry(100)

	b := s.NewBatch()
	if err := b.PutEntry(hash, entry); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	b.SetMainChainHash(entry.Height, hash)
	if err := s.Commit(b); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := s.Entry(hash)
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if got.Height != entry.Height || got.Chainwork.Cmp(entry.Chainwork) != 0 {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, entry)
	}

	gotHash, err := s.HashByHeight(entry.Height)
	if err != nil {
		t.Fatalf("HashByHeight: %v", err)
	}
	if gotHash != hash {
		t.Fatalf("HashByHeight = %v, want %v", gotHash, hash)
	}
}

func TestCoinConnectDisconnectRoundTrip(t *testing.T) {
	s := openTestStore(t)
	op := wire.OutPoint{Index: 3}
	coin := &Coin{Value: 5000, PkScript: []byte{0x51}, Height: 10}

	b := s.NewBatch()
	b.PutCoin(op, coin)
	if err := s.Commit(b); err != nil {
		t.Fatalf("Commit put: %v", err)
	}

	got, err := s.Coin(op)
	if err != nil {
		t.Fatalf("Coin: %v", err)
	}
	if got.Value != coin.Value || got.Height != coin.Height {
		t.Fatalf("Coin mismatch: got %+v want %+v", got, coin)
	}

	undo := UndoRecord{*coin}
	var blockHash chainhash.Hash
	blockHash[0] = 0xaa

	b2 := s.NewBatch()
	b2.DeleteCoin(op)
	b2.PutUndoBlock(s, blockHash, undo)
	if err := s.Commit(b2); err != nil {
		t.Fatalf("Commit delete: %v", err)
	}

	if _, err := s.Coin(op); err != ErrNotFound {
		t.Fatalf("Coin after spend: got err %v, want ErrNotFound", err)
	}

	gotUndo, err := s.UndoBlock(blockHash)
	if err != nil {
		t.Fatalf("UndoBlock: %v", err)
	}
	if len(gotUndo) != 1 || gotUndo[0].Value != coin.Value {
		t.Fatalf("UndoBlock mismatch: got %+v", gotUndo)
	}

	// Disconnect: restore the coin, delete the undo record. The UTXO
	// keyspace must return to its pre-spend state (invariant
	// 3).
	b3 := s.NewBatch()
	b3.PutCoin(op, &gotUndo[0])
	b3.DeleteUndoBlock(blockHash)
	if err := s.Commit(b3); err != nil {
		t.Fatalf("Commit restore: %v", err)
	}

	restored, err := s.Coin(op)
	if err != nil {
		t.Fatalf("Coin after restore: %v", err)
	}
	if restored.Value != coin.Value {
		t.Fatalf("restored coin mismatch: got %+v want %+v", restored, coin)
	}
	if _, err := s.UndoBlock(blockHash); err != ErrNotFound {
		t.Fatalf("UndoBlock after delete: got err %v, want ErrNotFound", err)
	}
}

func TestPruningQueue(t *testing.T) {
	s := openTestStore(t)
	s.pruning = true
	s.keepBlocks = 2
	s.pruneAfterHeight = 0

	var hash chainhash.Hash
	hash[0] = 0x01

	b := s.NewBatch()
	blk := &wire.MsgBlock{}
	if err := b.PutBlock(s, hash, blk); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	b.ScheduleForPruning(s, 10, hash)
	if err := s.Commit(b); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if has, _ := s.HasBlock(hash); !has {
		t.Fatalf("block should exist before prune height reached")
	}

	b2 := s.NewBatch()
	if err := s.ApplyPruning(b2, 12); err != nil {
		t.Fatalf("ApplyPruning: %v", err)
	}
	if err := s.Commit(b2); err != nil {
		t.Fatalf("Commit prune: %v", err)
	}

	if has, _ := s.HasBlock(hash); has {
		t.Fatalf("block should have been pruned at height 12")
	}
}
