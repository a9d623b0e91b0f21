// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package netsync is the peer pool and sync driver: it designates a
// loader peer for blockchain download, tracks in-flight block/tx
// requests across the pool with per-item timeouts, relays new blocks
// and transactions, and enforces ban scoring for misbehaving peers.
package netsync

import (
	"sync"
	"time"

	"github.com/chaincore/btcnode/addrmgr"
	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/container/apbf"
	"github.com/chaincore/btcnode/mempool"
	"github.com/chaincore/btcnode/peer"
	"github.com/chaincore/btcnode/wire"
)

// blockRequestTimeout bounds how long a getdata(BLOCK) may go
// unanswered before the request fails; a failed request is logged and
// dropped, not reissued to another peer.
const blockRequestTimeout = 20 * time.Minute

// txRequestTimeout is the equivalent bound for getdata(TX); lower
// because transactions are small and peers should have them on hand.
const txRequestTimeout = 2 * time.Minute

// broadcastTimeout is how long a locally originated BroadcastItem
// waits for an ack (a getdata for it) before giving up.
const broadcastTimeout = 60 * time.Second

// orphanBanWindow and orphanBanThreshold bound how many parent-unknown
// blocks a single peer may send before it's penalized for flooding
// the orphan pool.
const (
	orphanBanWindow    = 3 * time.Minute
	orphanBanThreshold = 200
)

// invDedupMaxItems and invDedupFPRate size the recently-seen inv
// filter; k0/k1 are arbitrary fixed keys (not secret).
const (
	invDedupMaxItems = 50000
	invDedupFPRate   = 0.0001
)

var invDedupK0, invDedupK1 uint64 = 0x6e65747379, 0x6e63706f6f6c

// Config configures a Manager.
type Config struct {
	Chain     *blockchain.Chain
	TxPool    *mempool.TxPool
	AddrMgr   *addrmgr.AddrManager

	// HeadersFirst selects headers-first sync (SPV-style) over
	// getblocks/inv-driven sync; the zero value selects getblocks.
	HeadersFirst bool

	// MaxOrphanBanScore is the score added when a peer crosses
	// orphanBanThreshold within orphanBanWindow.
	MaxOrphanBanScore uint32
}

// peerState is the sync driver's bookkeeping for one connected peer,
// layered on top of peer.Peer.
type peerState struct {
	peer *peer.Peer

	mtx             sync.Mutex
	requestedBlocks map[chainhash.Hash]struct{}
	requestedTxns   map[chainhash.Hash]struct{}
	feeFilterRate   int64

	orphanCount       int
	orphanWindowStart time.Time
}

// loadRequest is one outstanding getdata request, tracked so a
// timeout, notfound, or peer disconnect can fail it uniformly.
type loadRequest struct {
	hash    chainhash.Hash
	invType wire.InvType
	peerID  int32
	timer   *time.Timer
}

// BroadcastItem is a tx or block the node originated and is relaying
// to its peers, tracked until the first peer acks it (requests it with
// getdata) or broadcastTimeout passes; a peer's reject of it invokes
// onReject.
type BroadcastItem struct {
	Hash    chainhash.Hash
	InvType wire.InvType
	Msg     wire.Message

	timer    *time.Timer
	acked    bool
	onAck    func()
	onReject func(code wire.RejectCode)
}

// Manager is the peer pool and sync driver.
type Manager struct {
	cfg Config

	mtx      sync.Mutex
	peers    map[int32]*peerState
	loaderID int32

	requestsMtx sync.Mutex
	requests    map[chainhash.Hash]*loadRequest

	broadcastMtx sync.Mutex
	broadcasts   map[chainhash.Hash]*BroadcastItem

	invFilter *apbf.Filter

	quit chan struct{}
}

// New returns a Manager driving sync over cfg.Chain and cfg.TxPool.
func New(cfg *Config) *Manager {
	m := &Manager{
		cfg:        *cfg,
		peers:      make(map[int32]*peerState),
		requests:   make(map[chainhash.Hash]*loadRequest),
		broadcasts: make(map[chainhash.Hash]*BroadcastItem),
		invFilter:  apbf.New(invDedupMaxItems, invDedupFPRate, invDedupK0, invDedupK1),
		quit:       make(chan struct{}),
	}
	if m.cfg.MaxOrphanBanScore == 0 {
		m.cfg.MaxOrphanBanScore = 100
	}
	return m
}

// Listeners returns the peer.MessageListeners a Peer should be built
// with so inbound messages reach this manager's handlers.
func (m *Manager) Listeners() peer.MessageListeners {
	return peer.MessageListeners{
		OnVersion:     m.onVersion,
		OnGetAddr:     m.onGetAddr,
		OnAddr:        m.onAddr,
		OnInv:         m.onInv,
		OnGetData:     m.onGetData,
		OnNotFound:    m.onNotFound,
		OnGetBlocks:   m.onGetBlocks,
		OnGetHeaders:  m.onGetHeaders,
		OnHeaders:     m.onHeaders,
		OnTx:          m.onTx,
		OnBlock:       m.onBlock,
		OnMemPool:     m.onMemPool,
		OnReject:      m.onReject,
		OnFeeFilter:   m.onFeeFilter,
	}
}

// AddPeer registers p with the pool. Called once its handshake has
// completed (p.Connected() is true).
func (m *Manager) AddPeer(p *peer.Peer) {
	ps := &peerState{
		peer:            p,
		requestedBlocks: make(map[chainhash.Hash]struct{}),
		requestedTxns:   make(map[chainhash.Hash]struct{}),
	}

	m.mtx.Lock()
	m.peers[p.ID()] = ps
	needLoader := m.loaderID == 0
	if needLoader {
		m.loaderID = p.ID()
	}
	m.mtx.Unlock()

	log.Infof("peer %s (%d) joined the pool", p.Addr(), p.ID())
	if needLoader {
		log.Infof("peer %d designated loader", p.ID())
		m.requestHeadersOrBlocks(ps, chainhash.Hash{})
	}
}

// RemovePeer unregisters p, failing its in-flight requests and
// electing a new loader if it was the loader.
func (m *Manager) RemovePeer(p *peer.Peer) {
	m.mtx.Lock()
	delete(m.peers, p.ID())
	wasLoader := m.loaderID == p.ID()
	var next *peerState
	if wasLoader {
		m.loaderID = 0
		for _, ps := range m.peers {
			next = ps
			m.loaderID = ps.peer.ID()
			break
		}
	}
	m.mtx.Unlock()

	m.requestsMtx.Lock()
	for hash, req := range m.requests {
		if req.peerID == p.ID() {
			req.timer.Stop()
			delete(m.requests, hash)
		}
	}
	m.requestsMtx.Unlock()

	log.Infof("peer %s (%d) left the pool", p.Addr(), p.ID())
	if next != nil {
		log.Infof("peer %d elected loader", next.peer.ID())
		m.requestHeadersOrBlocks(next, chainhash.Hash{})
	}
}

// PeerCount returns the number of peers currently in the pool.
func (m *Manager) PeerCount() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return len(m.peers)
}

func (m *Manager) peerState(id int32) *peerState {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.peers[id]
}

func (m *Manager) loader() *peerState {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.peers[m.loaderID]
}

// requestHeadersOrBlocks issues the next sync request to ps: getheaders
// when configured headers-first, getblocks otherwise. orphanRoot, when
// non-zero, targets the request at resolving a specific orphan chain
// instead of continuing the main sync from the tip.
func (m *Manager) requestHeadersOrBlocks(ps *peerState, orphanRoot chainhash.Hash) {
	locator := m.cfg.Chain.GetLocator(nil)
	if m.cfg.HeadersFirst {
		if err := ps.peer.PushGetHeadersMsg(locator, &orphanRoot); err != nil {
			log.Debugf("pushing getheaders to peer %d: %v", ps.peer.ID(), err)
		}
		return
	}
	if err := ps.peer.PushGetBlocksMsg(locator, &orphanRoot); err != nil {
		log.Debugf("pushing getblocks to peer %d: %v", ps.peer.ID(), err)
	}
}

// blockBatchSize scales how many blocks are requested from a peer at
// once: large catch-up batches far from the tip, small batches (to
// bound memory and keep latency low) once nearly synced.
func blockBatchSize(height, peerHeight int32) int {
	behind := peerHeight - height
	switch {
	case behind > 10000:
		return 128
	case behind > 1000:
		return 32
	default:
		return 10
	}
}

// Stop finishes all outstanding requests and broadcasts.
func (m *Manager) Stop() {
	close(m.quit)

	m.requestsMtx.Lock()
	for hash, req := range m.requests {
		req.timer.Stop()
		delete(m.requests, hash)
	}
	m.requestsMtx.Unlock()

	m.broadcastMtx.Lock()
	for hash, item := range m.broadcasts {
		item.timer.Stop()
		delete(m.broadcasts, hash)
	}
	m.broadcastMtx.Unlock()
}
