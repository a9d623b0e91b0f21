// Copyright (c) 2016-2017 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package gcs

import (
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
)

// DeriveKey derives the SipHash key for a block's basic filter from the
// first 16 bytes of its block hash, the same keying scheme BIP158 uses
// so the filter can be verified without distributing a separate key.
func DeriveKey(blockHash *chainhash.Hash) [KeySize]byte {
	var key [KeySize]byte
	copy(key[:], blockHash[:KeySize])
	return key
}

// BuildBasicFilter builds a basic committed filter over a block: every
// output script, plus the previous output script spent by every input
// (coinbase inputs excluded). prevScripts must supply, in transaction
// and input order, the scriptPubKey of each non-coinbase input's
// previous output.
func BuildBasicFilter(block *wire.MsgBlock, prevScripts [][]byte) (*Filter, error) {
	blockHash := block.BlockHash()
	key := DeriveKey(&blockHash)

	var elements [][]byte
	for _, tx := range block.Transactions {
		for _, txOut := range tx.TxOut {
			if len(txOut.PkScript) > 0 {
				elements = append(elements, txOut.PkScript)
			}
		}
	}
	for _, script := range prevScripts {
		if len(script) > 0 {
			elements = append(elements, script)
		}
	}

	if len(elements) == 0 {
		return nil, ErrNoData
	}
	return NewFilter(DefaultP, key, elements)
}
