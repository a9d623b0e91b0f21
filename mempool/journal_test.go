// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"path/filepath"
	"testing"

	"github.com/chaincore/btcnode/wire"
)

func TestJournalPutLoadDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mempool.db")
	j, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	tx := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			SignatureScript:  []byte{0x01, 0x02},
		}},
		TxOut: []*wire.TxOut{{Value: 5000, PkScript: []byte{0x51}}},
	}
	if err := j.Put(tx); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := j.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d txs, want 1", len(loaded))
	}
	if loaded[0].TxHash() != tx.TxHash() {
		t.Fatalf("loaded tx hash = %v, want %v", loaded[0].TxHash(), tx.TxHash())
	}

	if err := j.Delete(tx.TxHash()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, err = j.LoadAll()
	if err != nil {
		t.Fatalf("load all after delete: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("loaded %d txs after delete, want 0", len(loaded))
	}
}

func TestOpenJournalReopensExistingBucket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mempool.db")
	j1, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	tx := &wire.MsgTx{
		Version: 1,
		TxIn:    []*wire.TxIn{{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}}},
		TxOut:   []*wire.TxOut{{Value: 1, PkScript: []byte{0x51}}},
	}
	if err := j1.Put(tx); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := j1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	j2, err := OpenJournal(path)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j2.Close()
	loaded, err := j2.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d txs after reopen, want 1", len(loaded))
	}
}
