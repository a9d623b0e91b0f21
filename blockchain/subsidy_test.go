// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/chaincore/btcnode/chaincfg"
)

func TestCalcBlockSubsidyHalving(t *testing.T) {
	params := chaincfg.RegressionNetParams()
	params.SubsidyReductionInterval = 210000
	params.BaseSubsidy = 50 * 1e8

	cases := []struct {
		height int32
		want   int64
	}{
		{0, 50 * 1e8},
		{1, 50 * 1e8},
		{209999, 50 * 1e8},
		{210000, 25 * 1e8},
		{420000, 1250000000},
	}
	for _, c := range cases {
		got := CalcBlockSubsidy(c.height, params)
		if got != c.want {
			t.Errorf("CalcBlockSubsidy(%d) = %d, want %d", c.height, got, c.want)
		}
	}
}

func TestCalcBlockSubsidyReachesZero(t *testing.T) {
	params := chaincfg.RegressionNetParams()
	params.SubsidyReductionInterval = 210000
	params.BaseSubsidy = 50 * 1e8

	height := int32(64) * params.SubsidyReductionInterval
	if got := CalcBlockSubsidy(height, params); got != 0 {
		t.Errorf("CalcBlockSubsidy at 64 halvings = %d, want 0", got)
	}
}

func TestCalcBlockSubsidyNoReduction(t *testing.T) {
	params := chaincfg.RegressionNetParams()
	params.SubsidyReductionInterval = 0
	params.BaseSubsidy = 50 * 1e8
	if got := CalcBlockSubsidy(1000000, params); got != params.BaseSubsidy {
		t.Errorf("CalcBlockSubsidy with no reduction interval = %d, want %d", got, params.BaseSubsidy)
	}
}
