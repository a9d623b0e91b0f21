// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"context"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/chaincore/btcnode/addrmgr"
	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/database"
	"github.com/chaincore/btcnode/mempool"
	"github.com/chaincore/btcnode/peer"
	"github.com/chaincore/btcnode/wire"
)

var opTrueScript = []byte{0x51}

func coinbaseFor(height int32, params *chaincfg.Params, extraNonce uint32) *wire.MsgTx {
	sigScript := []byte{
		byte(height), byte(height >> 8), byte(height >> 16), byte(height >> 24),
		byte(extraNonce), byte(extraNonce >> 8), byte(extraNonce >> 16), byte(extraNonce >> 24),
	}
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Index: 0xffffffff},
			SignatureScript:  sigScript,
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{
			Value:    blockchain.CalcBlockSubsidy(height, params),
			PkScript: opTrueScript,
		}},
	}
}

func mineBlock(parent *wire.MsgBlock, height int32, params *chaincfg.Params, extraNonce uint32) *wire.MsgBlock {
	coinbase := coinbaseFor(height, params, extraNonce)
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   1,
			PrevBlock: parent.BlockHash(),
			Timestamp: parent.Header.Timestamp.Add(time.Second),
			Bits:      parent.Header.Bits,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
	block.Header.MerkleRoot = coinbase.TxHash()

	// Grind the nonce until the header hash, read as a big-endian
	// number, meets the compact target.
	target := chaincfg.CompactToBig(block.Header.Bits)
	for {
		hash := block.Header.BlockHash()
		for i, j := 0, len(hash)-1; i < j; i, j = i+1, j-1 {
			hash[i], hash[j] = hash[j], hash[i]
		}
		if new(big.Int).SetBytes(hash[:]).Cmp(target) <= 0 {
			break
		}
		block.Header.Nonce++
	}
	return block
}

func spendCoinbase(block *wire.MsgBlock, fee int64) *wire.MsgTx {
	coinbase := block.Transactions[0]
	return &wire.MsgTx{
		Version: 1,
		TxIn: []*wire.TxIn{{
			PreviousOutPoint: wire.OutPoint{Hash: coinbase.TxHash(), Index: 0},
			Sequence:         wire.MaxTxInSequenceNum,
		}},
		TxOut: []*wire.TxOut{{
			Value:    coinbase.TxOut[0].Value - fee,
			PkScript: opTrueScript,
		}},
	}
}

// newTestManager opens a fresh temp-dir-backed chain and tx pool under
// regtest parameters and wraps them in a headers-first Manager.
func newTestManager(t *testing.T) (*Manager, *chaincfg.Params, []*wire.MsgBlock) {
	t.Helper()
	params := chaincfg.RegressionNetParams()
	store, err := database.Open(t.TempDir(), database.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	chain, err := blockchain.NewChain(params, store, nil, nil)
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}

	blocks := make([]*wire.MsgBlock, 0, 102)
	blocks = append(blocks, params.GenesisBlock)
	for h := int32(1); h <= 101; h++ {
		block := mineBlock(blocks[len(blocks)-1], h, params, 0)
		if _, err := chain.Add(block, "test"); err != nil {
			t.Fatalf("add block %d: %v", h, err)
		}
		blocks = append(blocks, block)
	}

	policy := mempool.DefaultPolicy()
	policy.AcceptNonStdTxs = true
	pool := mempool.New(mempool.Config{Chain: chain, Policy: policy})

	m := New(&Config{
		Chain:        chain,
		TxPool:       pool,
		AddrMgr:      addrmgr.New(),
		HeadersFirst: true,
	})
	return m, params, blocks
}

// connectedPeerPair negotiates two peers over a real loopback
// connection and returns the outbound one, the handle a Manager
// drives; the inbound one is wired with inboundListeners so the test
// can observe what the manager sends.
func connectedPeerPair(t *testing.T, inboundListeners peer.MessageListeners) *peer.Peer {
	t.Helper()
	params := chaincfg.SimNetParams()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	inboundCfg := &peer.Config{
		UserAgentName:    "testnode",
		UserAgentVersion: "0.1.0",
		ChainParams:      params,
		Services:         wire.SFNodeNetwork,
		ProtocolVersion:  wire.ProtocolVersion,
		Listeners:        inboundListeners,
	}
	outboundCfg := &peer.Config{
		UserAgentName:    "testnode",
		UserAgentVersion: "0.1.0",
		ChainParams:      params,
		Services:         wire.SFNodeNetwork,
		ProtocolVersion:  wire.ProtocolVersion,
	}

	accepted := make(chan *peer.Peer, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		ib := peer.NewInboundPeer(inboundCfg, conn)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ib.Start(ctx); err != nil {
			return
		}
		accepted <- ib
	}()

	ob := peer.NewOutboundPeer(outboundCfg, ln.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ob.Connect(ctx); err != nil {
		t.Fatalf("outbound connect: %v", err)
	}
	t.Cleanup(ob.Disconnect)

	select {
	case ib := <-accepted:
		t.Cleanup(ib.Disconnect)
	case <-time.After(5 * time.Second):
		t.Fatal("inbound side never finished negotiating")
	}

	return ob
}

func TestAddPeerElectsLoaderAndRequestsSync(t *testing.T) {
	m, _, _ := newTestManager(t)

	got := make(chan *wire.MsgGetHeaders, 1)
	ob := connectedPeerPair(t, peer.MessageListeners{
		OnGetHeaders: func(p *peer.Peer, msg *wire.MsgGetHeaders) { got <- msg },
	})

	m.AddPeer(ob)

	select {
	case <-got:
	case <-time.After(5 * time.Second):
		t.Fatal("loader peer never received a getheaders request")
	}

	if m.PeerCount() != 1 {
		t.Fatalf("PeerCount() = %d, want 1", m.PeerCount())
	}
	if m.loader() == nil || m.loader().peer.ID() != ob.ID() {
		t.Fatal("single peer should be elected loader")
	}
}

func TestRemovePeerElectsNewLoader(t *testing.T) {
	m, _, _ := newTestManager(t)

	got1 := make(chan *wire.MsgGetHeaders, 1)
	ob1 := connectedPeerPair(t, peer.MessageListeners{
		OnGetHeaders: func(p *peer.Peer, msg *wire.MsgGetHeaders) { got1 <- msg },
	})
	got2 := make(chan *wire.MsgGetHeaders, 4)
	ob2 := connectedPeerPair(t, peer.MessageListeners{
		OnGetHeaders: func(p *peer.Peer, msg *wire.MsgGetHeaders) { got2 <- msg },
	})

	m.AddPeer(ob1)
	<-got1
	m.AddPeer(ob2)

	if m.loader().peer.ID() != ob1.ID() {
		t.Fatal("first peer added should be loader")
	}

	m.RemovePeer(ob1)

	select {
	case <-got2:
	case <-time.After(5 * time.Second):
		t.Fatal("newly elected loader never received a getheaders request")
	}
	if m.loader() == nil || m.loader().peer.ID() != ob2.ID() {
		t.Fatal("remaining peer should be elected loader after removal")
	}
}

func TestClaimRequestDedup(t *testing.T) {
	m, _, _ := newTestManager(t)
	ps1 := &peerState{peer: peer.NewOutboundPeer(testPeerConfig(), "10.0.0.1:1"),
		requestedBlocks: make(map[chainhash.Hash]struct{}), requestedTxns: make(map[chainhash.Hash]struct{})}
	ps2 := &peerState{peer: peer.NewOutboundPeer(testPeerConfig(), "10.0.0.2:1"),
		requestedBlocks: make(map[chainhash.Hash]struct{}), requestedTxns: make(map[chainhash.Hash]struct{})}

	var hash chainhash.Hash
	hash[0] = 7

	if !m.claimRequest(ps1, hash, wire.InvTypeBlock, time.Minute) {
		t.Fatal("first claim should succeed")
	}
	if m.claimRequest(ps2, hash, wire.InvTypeBlock, time.Minute) {
		t.Fatal("second claim of the same hash should fail")
	}

	req := m.resolveRequest(hash)
	if req == nil || req.peerID != ps1.peer.ID() {
		t.Fatal("resolveRequest should return the claiming peer's request")
	}
	if m.resolveRequest(hash) != nil {
		t.Fatal("resolving twice should return nil the second time")
	}

	// Once resolved, the hash is claimable again.
	if !m.claimRequest(ps2, hash, wire.InvTypeBlock, time.Minute) {
		t.Fatal("claim should succeed again after being resolved")
	}
	m.failRequest(hash, "test cleanup")
}

func testPeerConfig() *peer.Config {
	return &peer.Config{
		UserAgentName:    "testnode",
		UserAgentVersion: "0.1.0",
		ChainParams:      chaincfg.SimNetParams(),
		Services:         wire.SFNodeNetwork,
		ProtocolVersion:  wire.ProtocolVersion,
	}
}

func TestSetMisbehaviorBansAfterThreshold(t *testing.T) {
	m, _, _ := newTestManager(t)
	p := peer.NewOutboundPeer(testPeerConfig(), "10.1.2.3:8333")

	m.setMisbehavior(p, 50, "test")
	if IsBanned(p.Addr()) {
		t.Fatal("50 should not cross the ban threshold")
	}

	m.setMisbehavior(p, 60, "test")
	if !IsBanned(p.Addr()) {
		t.Fatal("110 cumulative should cross the ban threshold and ban the host")
	}
}

func TestBroadcastAckFiresOnlyOnce(t *testing.T) {
	m, _, _ := newTestManager(t)

	var hash chainhash.Hash
	hash[0] = 9
	acks := 0
	m.Broadcast(hash, wire.InvTypeTx, wire.NewMsgTx(1), func() { acks++ }, nil)

	m.ackBroadcast(hash)
	m.ackBroadcast(hash)
	if acks != 1 {
		t.Fatalf("onAck fired %d times, want 1", acks)
	}

	m.broadcastMtx.Lock()
	_, exists := m.broadcasts[hash]
	m.broadcastMtx.Unlock()
	if exists {
		t.Fatal("acked broadcast should be removed from the tracking map")
	}
}

func TestBroadcastRejectInvokesCallback(t *testing.T) {
	m, _, _ := newTestManager(t)

	var hash chainhash.Hash
	hash[0] = 11
	var gotCode wire.RejectCode
	m.Broadcast(hash, wire.InvTypeTx, wire.NewMsgTx(1), nil, func(code wire.RejectCode) { gotCode = code })

	m.onReject(nil, &wire.MsgReject{Message: wire.CmdTx, Hash: hash, Code: wire.RejectInsufficientFee})

	if gotCode != wire.RejectInsufficientFee {
		t.Fatalf("onReject code = %v, want RejectInsufficientFee", gotCode)
	}
}

func TestExpireBroadcastRemovesEntryWithoutAck(t *testing.T) {
	m, _, _ := newTestManager(t)

	var hash chainhash.Hash
	hash[0] = 13
	acked := false
	m.Broadcast(hash, wire.InvTypeTx, wire.NewMsgTx(1), func() { acked = true }, nil)

	m.expireBroadcast(hash)

	if acked {
		t.Fatal("expiring a broadcast must not fire its ack callback")
	}
	m.broadcastMtx.Lock()
	_, exists := m.broadcasts[hash]
	m.broadcastMtx.Unlock()
	if exists {
		t.Fatal("expired broadcast should be removed from the tracking map")
	}
}

func TestRelaySkipsPeersAboveFeeFilter(t *testing.T) {
	m, _, blocks := newTestManager(t)

	tx := spendCoinbase(blocks[1], 2000)
	entry, _, err := m.cfg.TxPool.AddTransaction(tx, time.Now())
	if err != nil {
		t.Fatalf("add tx: %v", err)
	}
	feeRate, ok := m.cfg.TxPool.FeeRate(entry.Tx.TxHash())
	if !ok {
		t.Fatal("FeeRate should find the pooled transaction")
	}

	lowFilterRecv := make(chan *wire.MsgInv, 1)
	obLow := connectedPeerPair(t, peer.MessageListeners{
		OnInv: func(p *peer.Peer, msg *wire.MsgInv) { lowFilterRecv <- msg },
	})
	highFilterRecv := make(chan *wire.MsgInv, 1)
	obHigh := connectedPeerPair(t, peer.MessageListeners{
		OnInv: func(p *peer.Peer, msg *wire.MsgInv) { highFilterRecv <- msg },
	})

	m.mtx.Lock()
	m.peers[obLow.ID()] = &peerState{peer: obLow, requestedBlocks: make(map[chainhash.Hash]struct{}), requestedTxns: make(map[chainhash.Hash]struct{}), feeFilterRate: 0}
	m.peers[obHigh.ID()] = &peerState{peer: obHigh, requestedBlocks: make(map[chainhash.Hash]struct{}), requestedTxns: make(map[chainhash.Hash]struct{}), feeFilterRate: feeRate + 1000}
	m.mtx.Unlock()

	hash := entry.Tx.TxHash()
	m.relay(wire.NewInvVect(wire.InvTypeTx, &hash), 0)

	select {
	case <-lowFilterRecv:
	case <-time.After(5 * time.Second):
		t.Fatal("peer below the tx's fee rate should receive the inv")
	}

	select {
	case <-highFilterRecv:
		t.Fatal("peer above the tx's fee rate should not receive the inv")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestBlockBatchSizeTiers(t *testing.T) {
	cases := []struct {
		height, peerHeight int32
		want               int
	}{
		{0, 20000, 128},
		{0, 5000, 32},
		{0, 100, 10},
	}
	for _, c := range cases {
		if got := blockBatchSize(c.height, c.peerHeight); got != c.want {
			t.Fatalf("blockBatchSize(%d, %d) = %d, want %d", c.height, c.peerHeight, got, c.want)
		}
	}
}
