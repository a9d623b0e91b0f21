// Copyright (c) 2016 The btcsuite developers
// Copyright (c) 2015-2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"sync"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/jrick/bitset"
)

// ThresholdState is a BIP9 deployment's position in its state machine,
// computed once per MinerConfirmationWindow window and cached
// against the window's boundary block.
type ThresholdState byte

const (
	ThresholdDefined ThresholdState = iota
	ThresholdStarted
	ThresholdLockedIn
	ThresholdActive
	ThresholdFailed
)

func (t ThresholdState) String() string {
	switch t {
	case ThresholdDefined:
		return "defined"
	case ThresholdStarted:
		return "started"
	case ThresholdLockedIn:
		return "lockedin"
	case ThresholdActive:
		return "active"
	case ThresholdFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// deploymentKey identifies one (window-boundary block, deployment) pair
// in the threshold-state cache.
type deploymentKey struct {
	boundary chainhash.Hash
	id int
}

// thresholdCache memoizes ThresholdState per window boundary per
// deployment: recomputing one requires walking back window by window to
// a Defined ancestor and replaying every transition since.
type thresholdCache struct {
	mtx sync.Mutex
	state map[deploymentKey]ThresholdState
}

func newThresholdCache() *thresholdCache {
	return &thresholdCache{state: make(map[deploymentKey]ThresholdState)}
}

// windowStart returns the ancestor of node at the start of its
// MinerConfirmationWindow window.
func windowStart(node *blockNode, window int32) *blockNode {
	offset := node.height % window
	return node.ancestor(node.height - offset)
}

// calcThresholdState computes the BIP9 state of deployment for the
// window containing prevNode (the genesis window is never evaluated and
// stays Defined), the activation mechanism
// calls for alongside the fixed-height BIP34/65/66 rules.
func (c *Chain) calcThresholdState(prevNode *blockNode, deploymentID int) ThresholdState {
	params := c.params
	deployment := params.Deployments[deploymentID]
	window := int32(params.MinerConfirmationWindow)
	if window == 0 || prevNode == nil {
		return ThresholdDefined
	}

	// Walk back to the nearest window boundary <= prevNode, collecting
	// every boundary node between there and prevNode that isn't already
	// cached, then replay forward.
	var boundaries []*blockNode
	node := windowStart(prevNode, window)
	for node != nil {
		key := deploymentKey{boundary: node.hash, id: deploymentID}
		c.thresholds.mtx.Lock()
		_, cached := c.thresholds.state[key]
		c.thresholds.mtx.Unlock()
		if cached || node.parent == nil {
			break
		}
		boundaries = append(boundaries, node)
		node = node.relativeAncestor(window)
	}

	state := ThresholdDefined
	if node != nil {
		key := deploymentKey{boundary: node.hash, id: deploymentID}
		c.thresholds.mtx.Lock()
		if s, ok := c.thresholds.state[key]; ok {
			state = s
		}
		c.thresholds.mtx.Unlock()
	}

	for i := len(boundaries) - 1; i >= 0; i-- {
		b := boundaries[i]
		switch state {
		case ThresholdDefined:
			medianTime := uint64(0)
			if b.parent != nil {
				medianTime = uint64(b.parent.calcPastMedianTime())
			}
			switch {
			case deployment.ExpireTime != 0 && medianTime >= deployment.ExpireTime:
				state = ThresholdFailed
			case deployment.StartTime == 0 || medianTime >= deployment.StartTime:
				state = ThresholdStarted
			}
		case ThresholdStarted:
			medianTime := uint64(b.parent.calcPastMedianTime())
			if deployment.ExpireTime != 0 && medianTime >= deployment.ExpireTime {
				state = ThresholdFailed
				break
			}
			count := countSignaling(b.parent, window, deployment.BitNumber)
			if count >= params.RuleChangeActivationThreshold {
				state = ThresholdLockedIn
			}
		case ThresholdLockedIn:
			state = ThresholdActive
		}
		key := deploymentKey{boundary: b.hash, id: deploymentID}
		c.thresholds.mtx.Lock()
		c.thresholds.state[key] = state
		c.thresholds.mtx.Unlock()
	}
	return state
}

// countSignaling counts how many of the window blocks ending at boundary
// (inclusive) set bitNumber in their version's low 29 bits under the
// BIP9 top-3-bits-equal-001 signaling convention.
func countSignaling(boundary *blockNode, window int32, bitNumber uint8) uint32 {
	var count uint32
	node := boundary
	for i := int32(0); i < window && node != nil; i++ {
		if isSignalingBit(node.header.Version, bitNumber) {
			count++
		}
		node = node.parent
	}
	return count
}

const versionBitsTopMask = 0xe0000000
const versionBitsTopBits = 0x20000000

func isSignalingBit(version int32, bit uint8) bool {
	if uint32(version)&versionBitsTopMask != versionBitsTopBits {
		return false
	}
	return version&(1<<uint(bit)) != 0
}

// unknownVersionWindow is how many of the most recent blocks are
// consulted for the "unknown new rules activated" warning signal.
const unknownVersionWindow = 100

// unknownVersionThreshold is the fraction of unknownVersionWindow that
// must signal an unrecognized upgrade bit before the node warns.
const unknownVersionThreshold = 75

// warnUnknownVersions reports whether at least unknownVersionThreshold
// of the last unknownVersionWindow blocks ending at tip set a top-bits
// signal this binary doesn't recognize as one of params.Deployments,
// mirroring Bitcoin Core's "unknown new rules activated" operator
// warning. The per-block results are tracked in a bitset.Bytes rather
// than a []bool slice purely because that's the ecosystem type this
// pack already depends on for compact boolean sequences.
func warnUnknownVersions(tip *blockNode, params *chaincfg.Params) bool {
	if tip == nil {
		return false
	}
	known := uint32(0)
	for i := range params.Deployments {
		known |= 1 << uint(params.Deployments[i].BitNumber)
	}

	bits := bitset.NewBytes(unknownVersionWindow)
	node := tip
	for i := 0; i < unknownVersionWindow && node != nil; i++ {
		v := uint32(node.header.Version)
		if v&versionBitsTopMask == versionBitsTopBits && v&^versionBitsTopMask&^known != 0 {
			bits.Set(i)
		}
		node = node.parent
	}

	var count int
	for i := 0; i < unknownVersionWindow; i++ {
		if bits.Get(i) {
			count++
		}
	}
	return count >= unknownVersionThreshold
}
