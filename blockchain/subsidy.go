// Copyright (c) 2013-2015 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "github.com/chaincore/btcnode/chaincfg"

// CalcBlockSubsidy returns the block creation subsidy at height, halving
// every params.SubsidyReductionInterval blocks until it reaches zero.
func CalcBlockSubsidy(height int32, params *chaincfg.Params) int64 {
	if params.SubsidyReductionInterval <= 0 {
		return params.BaseSubsidy
	}
	halvings := height / params.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return params.BaseSubsidy >> uint(halvings)
}
