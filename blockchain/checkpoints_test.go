// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
)

func TestCheckpointConflict(t *testing.T) {
	good := chainhash.HashH([]byte("good"))
	bad := chainhash.HashH([]byte("bad"))

	c := &Chain{params: &chaincfg.Params{
		Checkpoints: []chaincfg.Checkpoint{{Height: 100, Hash: &good}},
	}}

	if err := c.checkpointConflict(100, good); err != nil {
		t.Fatalf("matching checkpoint hash should not conflict: %v", err)
	}
	if err := c.checkpointConflict(100, bad); err == nil {
		t.Fatalf("expected a checkpoint conflict at height 100")
	}
	if err := c.checkpointConflict(101, bad); err != nil {
		t.Fatalf("heights without a checkpoint should never conflict: %v", err)
	}
}

func TestLatestCheckpointHeight(t *testing.T) {
	h1, h2 := chainhash.HashH([]byte("1")), chainhash.HashH([]byte("2"))
	c := &Chain{params: &chaincfg.Params{
		Checkpoints: []chaincfg.Checkpoint{
			{Height: 100, Hash: &h1},
			{Height: 200, Hash: &h2},
		},
	}}

	if got := c.latestCheckpointHeight(50); got != -1 {
		t.Fatalf("latestCheckpointHeight(50) = %d, want -1", got)
	}
	if got := c.latestCheckpointHeight(150); got != 100 {
		t.Fatalf("latestCheckpointHeight(150) = %d, want 100", got)
	}
	if got := c.latestCheckpointHeight(250); got != 200 {
		t.Fatalf("latestCheckpointHeight(250) = %d, want 200", got)
	}
}
