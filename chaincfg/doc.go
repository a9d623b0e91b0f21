// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chaincfg defines the network parameters consumed by the chain
// engine, chain store, and mempool: magic numbers, DNS seeds, the
// genesis block, retarget limits, subsidy schedule, soft-fork
// activation heights, versionbits deployments, and address encoding
// magics.
//
// A main package selects one of the package-level Params functions
// (MainNetParams, TestNet3Params, RegressionNetParams, SimNetParams)
// and threads the resulting *Params through the blockchain, database,
// and mempool constructors.
//
//	var chainParams = chaincfg.MainNetParams()
//
//	if *testnet {
//		chainParams = chaincfg.TestNet3Params()
//	}
package chaincfg
