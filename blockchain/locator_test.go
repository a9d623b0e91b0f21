// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import "testing"

func TestGetLocatorIncludesGenesisAndRecentBlocks(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock

	tip := genesis
	for h := int32(1); h <= 15; h++ {
		block := mineBlock(tip, h, params, uint32(h))
		if _, err := c.Add(block, "test"); err != nil {
			t.Fatalf("add block %d: %v", h, err)
		}
		tip = block
	}

	loc := c.GetLocator(nil)
	if len(loc) == 0 {
		t.Fatalf("locator should not be empty")
	}
	if loc[0] != tip.BlockHash() {
		t.Fatalf("locator[0] = %v, want tip %v", loc[0], tip.BlockHash())
	}
	if loc[len(loc)-1] != genesis.BlockHash() {
		t.Fatalf("locator must end with genesis, got %v", loc[len(loc)-1])
	}
}

func TestLocateFirstMatch(t *testing.T) {
	c, params := newTestChain(t)
	genesis := params.GenesisBlock

	block1 := mineBlock(genesis, 1, params, 0)
	if _, err := c.Add(block1, "test"); err != nil {
		t.Fatalf("add block1: %v", err)
	}

	unknown := mineBlock(block1, 2, params, 99)
	loc := BlockLocator{unknown.BlockHash(), block1.BlockHash(), genesis.BlockHash()}

	match := c.LocateFirstMatch(loc)
	if match == nil || match.hash != block1.BlockHash() {
		t.Fatalf("LocateFirstMatch should skip the unknown hash and return block1")
	}
}
