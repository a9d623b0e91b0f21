// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"testing"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/wire"
)

// buildDeploymentChain constructs a chain of the given length, signaling
// bit on every block at height signalFrom or above, used to drive a
// versionbits deployment through its states.
func buildDeploymentChain(length int32, bit uint8, signalFrom int32, spacing time.Duration) *blockNode {
	var parent *blockNode
	base := time.Unix(1600000000, 0)
	for h := int32(0); h < length; h++ {
		version := int32(0x20000000)
		if h >= signalFrom {
			version |= 1 << uint(bit)
		}
		header := wire.BlockHeader{
			Version:   version,
			Timestamp: base.Add(time.Duration(h) * spacing),
			Bits:      0x207fffff,
		}
		parent = newBlockNode(header, parent)
	}
	return parent
}

// TestThresholdStateLocksInAfterSignaling exercises four consecutive
// 10-block windows: the first has nobody signaling (the genesis window
// stays Defined), the second is Started and has every block signaling
// (which the third window's evaluation locks in on), and the fourth
// settles into Active
// unconditionally once locked in. A BIP9 deployment's state always
// lags the window that earned it by one full window, since a window's
// signal count can only be tallied once it has completed.
func TestThresholdStateLocksInAfterSignaling(t *testing.T) {
	params := chaincfg.RegressionNetParams()
	params.MinerConfirmationWindow = 10
	params.RuleChangeActivationThreshold = 8
	params.Deployments[chaincfg.DeploymentCSV] = chaincfg.ConsensusDeployment{BitNumber: 0, StartTime: 0, ExpireTime: 0}

	c := &Chain{params: params, thresholds: newThresholdCache()}
	bit := uint8(0)

	extend := func(tip *blockNode, from, to int32, signal bool) *blockNode {
		base := tip.header.Timestamp
		for h := from; h < to; h++ {
			version := int32(0x20000000)
			if signal {
				version |= 1 << uint(bit)
			}
			header := wire.BlockHeader{
				Version:   version,
				Timestamp: base.Add(time.Duration(h-from+1) * time.Minute),
				Bits:      0x207fffff,
			}
			tip = newBlockNode(header, tip)
		}
		return tip
	}

	// Window 0 (blocks 0-9): nobody signals. The genesis window has no
	// prior window to evaluate, so the deployment is still Defined.
	tip := buildDeploymentChain(10, bit, 1<<20, time.Minute)
	if state := c.calcThresholdState(tip, chaincfg.DeploymentCSV); state != ThresholdDefined {
		t.Fatalf("state after window 0 = %v, want Defined", state)
	}

	// Window 1 (blocks 10-19): everyone signals, but the decision is
	// made evaluating the PRIOR completed window (window 0): StartTime==0
	// moves Defined to Started, and this window's own signaling is not
	// counted yet.
	tip = extend(tip, 10, 20, true)
	if state := c.calcThresholdState(tip, chaincfg.DeploymentCSV); state != ThresholdStarted {
		t.Fatalf("state after signaling window = %v, want Started", state)
	}

	// Window 2 (blocks 20-29): no one signals here, but window 1's full
	// signaling now clears the 8/10 threshold, locking in.
	tip = extend(tip, 20, 30, false)
	if state := c.calcThresholdState(tip, chaincfg.DeploymentCSV); state != ThresholdLockedIn {
		t.Fatalf("state after window following signaling = %v, want LockedIn", state)
	}

	// Window 3: once locked in, the next window is unconditionally
	// Active regardless of further signaling.
	tip = extend(tip, 30, 40, false)
	if state := c.calcThresholdState(tip, chaincfg.DeploymentCSV); state != ThresholdActive {
		t.Fatalf("state after lock-in window = %v, want Active", state)
	}
}

func TestIsSignalingBit(t *testing.T) {
	if !isSignalingBit(0x20000001, 0) {
		t.Fatalf("version 0x20000001 should signal bit 0")
	}
	if isSignalingBit(0x10000001, 0) {
		t.Fatalf("version without the top-bits convention must not count as signaling")
	}
	if isSignalingBit(0x20000002, 0) {
		t.Fatalf("version 0x20000002 should not signal bit 0")
	}
}
