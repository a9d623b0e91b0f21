// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"bytes"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// calcMerkleRoot builds the standard Bitcoin merkle tree over hashes and
// returns its root. An odd level is completed by duplicating its last
// entry. An empty input returns the zero hash.
func calcMerkleRoot(hashes []chainhash.Hash) chainhash.Hash {
	if len(hashes) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var buf [64]byte
			copy(buf[:32], level[2*i][:])
			copy(buf[32:], level[2*i+1][:])
			next[i] = chainhash.HashH(buf[:])
		}
		level = next
	}
	return level[0]
}

// blockMerkleRoot computes a block's transaction merkle root from its
// (non-witness) transaction IDs, satisfying the contextual validation
// check in "merkle root check".
func blockMerkleRoot(block *wire.MsgBlock) chainhash.Hash {
	hashes := make([]chainhash.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		hashes[i] = tx.TxHash()
	}
	return calcMerkleRoot(hashes)
}

// witnessCommitmentNonce is the all-zero 32-byte nonce used when this
// repo constructs a witness commitment; verification accepts whatever
// nonce the block supplies, per BIP141.
var witnessCommitmentNonce chainhash.Hash

// witnessMerkleRoot computes the witness merkle root used in a segwit
// block's coinbase commitment: identical to blockMerkleRoot but with the
// coinbase's witness hash forced to the zero hash (its witness carries
// only the commitment nonce, which is excluded from its own root).
func witnessMerkleRoot(block *wire.MsgBlock) chainhash.Hash {
	hashes := make([]chainhash.Hash, len(block.Transactions))
	for i, tx := range block.Transactions {
		if i == 0 {
			hashes[i] = chainhash.Hash{}
			continue
		}
		hashes[i] = tx.WitnessHash()
	}
	return calcMerkleRoot(hashes)
}

// witnessCommitmentScript builds the OP_RETURN output script a coinbase
// carries to commit to witnessMerkleRoot and the commitment nonce.
func witnessCommitmentScript(witnessRoot chainhash.Hash, nonce chainhash.Hash) []byte {
	var buf [64]byte
	copy(buf[:32], witnessRoot[:])
	copy(buf[32:], nonce[:])
	commitment := chainhash.HashH(buf[:])

	script := make([]byte, 0, 38)
	script = append(script, 0x6a, 0x24) // OP_RETURN, push 36 bytes
	script = append(script, 0xaa, 0x21, 0xa9, 0xed)
	script = append(script, commitment[:]...)
	return script
}

// findWitnessCommitment scans a coinbase transaction's outputs for the
// BIP141 witness commitment output (the last output matching the
// `OP_RETURN 0xaa21a9ed <32 bytes>` template wins, per BIP141), and
// returns the committed hash and whether one was found.
func findWitnessCommitment(coinbase *wire.MsgTx) (chainhash.Hash, bool) {
	var commitment chainhash.Hash
	found := false
	marker := []byte{0x6a, 0x24, 0xaa, 0x21, 0xa9, 0xed}
	for _, out := range coinbase.TxOut {
		if len(out.PkScript) == 38 && bytes.HasPrefix(out.PkScript, marker) {
			copy(commitment[:], out.PkScript[6:38])
			found = true
		}
	}
	return commitment, found
}

// blockHasWitness reports whether any transaction in block carries a
// non-empty witness, the trigger for requiring a commitment output.
func blockHasWitness(block *wire.MsgBlock) bool {
	for _, tx := range block.Transactions {
		if tx.HasWitness() {
			return true
		}
	}
	return false
}
