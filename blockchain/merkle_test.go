// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

func TestCalcMerkleRootSingle(t *testing.T) {
	h := chainhash.HashH([]byte("tx"))
	root := calcMerkleRoot([]chainhash.Hash{h})
	if root != h {
		t.Fatalf("single-leaf root = %v, want %v", root, h)
	}
}

func TestCalcMerkleRootOddDuplicatesLast(t *testing.T) {
	a := chainhash.HashH([]byte("a"))
	b := chainhash.HashH([]byte("b"))
	c := chainhash.HashH([]byte("c"))

	got := calcMerkleRoot([]chainhash.Hash{a, b, c})
	want := calcMerkleRoot([]chainhash.Hash{a, b, c, c})
	if got != want {
		t.Fatalf("odd-length root does not match explicit duplicate-last root")
	}
}

func buildWitnessBlock(t *testing.T) *wire.MsgBlock {
	t.Helper()
	coinbase := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			SignatureScript:  []byte{0x00, 0x00},
			Witness:          [][]byte{make([]byte, 32)},
		}},
		TxOut: []*wire.TxOut{{Value: 0, PkScript: []byte{0x51}}},
	}

	spend := &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: chainhash.HashH([]byte("prev")), Index: 0},
			Witness:          [][]byte{{0x01, 0x02}},
		}},
		TxOut: []*wire.TxOut{{Value: 1, PkScript: []byte{0x51}}},
	}

	block := &wire.MsgBlock{Transactions: []*wire.MsgTx{coinbase, spend}}

	root := witnessMerkleRoot(block)
	nonce := chainhash.Hash{}
	commitScript := witnessCommitmentScript(root, nonce)
	coinbase.TxOut = append(coinbase.TxOut, &wire.TxOut{PkScript: commitScript})

	return block
}

func TestCheckWitnessCommitmentAccepted(t *testing.T) {
	block := buildWitnessBlock(t)
	if err := checkWitnessCommitment(block); err != nil {
		t.Fatalf("checkWitnessCommitment: %v", err)
	}
}

func TestCheckWitnessCommitmentTamperedRejected(t *testing.T) {
	block := buildWitnessBlock(t)
	// Flip a byte in the commitment output so it no longer matches.
	commitOut := block.Transactions[0].TxOut[1]
	commitOut.PkScript[len(commitOut.PkScript)-1] ^= 0xff

	if err := checkWitnessCommitment(block); err == nil {
		t.Fatalf("expected tampered witness commitment to be rejected")
	}
}

func TestFindWitnessCommitmentLastMatchWins(t *testing.T) {
	var nonceA, nonceB chainhash.Hash
	nonceB[0] = 1
	root := chainhash.HashH([]byte("root"))

	coinbase := &wire.MsgTx{
		TxOut: []*wire.TxOut{
			{PkScript: witnessCommitmentScript(root, nonceA)},
			{PkScript: witnessCommitmentScript(root, nonceB)},
		},
	}
	got, ok := findWitnessCommitment(coinbase)
	if !ok {
		t.Fatalf("expected a witness commitment to be found")
	}
	want, _ := findWitnessCommitment(&wire.MsgTx{TxOut: []*wire.TxOut{coinbase.TxOut[1]}})
	if got != want {
		t.Fatalf("last matching commitment output did not win")
	}
}
