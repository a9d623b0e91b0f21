// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"time"

	"github.com/chaincore/btcnode/blockchain"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/peer"
	"github.com/chaincore/btcnode/wire"
)

func (m *Manager) onVersion(p *peer.Peer, v *wire.MsgVersion) {
	log.Debugf("peer %d: version=%d services=%v agent=%q height=%d",
		p.ID(), v.ProtocolVersion, v.Services, v.UserAgent, v.LastBlock)
}

func (m *Manager) onGetAddr(p *peer.Peer, _ *wire.MsgGetAddr) {
	if m.cfg.AddrMgr == nil {
		return
	}
	addrs := m.cfg.AddrMgr.AddressCache(wire.MaxAddrPerMsg)
	if err := p.PushAddrMsg(addrs); err != nil {
		log.Debugf("peer %d: pushing addr reply: %v", p.ID(), err)
	}
}

func (m *Manager) onAddr(p *peer.Peer, msg *wire.MsgAddr) {
	if m.cfg.AddrMgr == nil {
		return
	}
	m.cfg.AddrMgr.AddAddresses(msg.AddrList, nil)
}

func (m *Manager) onMemPool(p *peer.Peer, _ *wire.MsgMemPool) {
	if m.cfg.TxPool == nil {
		return
	}
	inv := wire.NewMsgInv()
	for _, hash := range m.cfg.TxPool.TxHashes() {
		h := hash
		iv := wire.NewInvVect(wire.InvTypeTx, &h)
		if err := inv.AddInvVect(iv); err != nil {
			break
		}
	}
	if len(inv.InvList) > 0 {
		p.QueueMessage(inv)
	}
}

// onInv handles an unsolicited inv announcement: anything not already
// known or in flight is requested with getdata.
func (m *Manager) onInv(p *peer.Peer, msg *wire.MsgInv) {
	ps := m.peerState(p.ID())
	if ps == nil {
		return
	}

	getData := wire.NewMsgGetData()
	for _, iv := range msg.InvList {
		if iv.Type&wire.InvWitnessFlag != 0 && p.Services()&wire.SFNodeWitness == 0 {
			m.setMisbehavior(p, 100, "witness-masked inv from non-witness peer")
			return
		}
		if m.invFilter.Contains(iv.Hash[:]) {
			continue
		}
		switch iv.Type &^ wire.InvWitnessFlag {
		case wire.InvTypeTx:
			if m.cfg.TxPool != nil && m.cfg.TxPool.HaveTransaction(iv.Hash) {
				continue
			}
			if !m.claimRequest(ps, iv.Hash, iv.Type, txRequestTimeout) {
				continue
			}
		case wire.InvTypeBlock:
			if m.cfg.Chain.HaveBlock(iv.Hash) {
				continue
			}
			if !m.claimRequest(ps, iv.Hash, iv.Type, blockRequestTimeout) {
				continue
			}
		default:
			continue
		}
		m.invFilter.Insert(iv.Hash[:])
		if err := getData.AddInvVect(iv); err != nil {
			break
		}
	}
	if len(getData.InvList) > 0 {
		p.QueueMessage(getData)
	}
}

// claimRequest registers hash as in flight to ps if no other peer
// already owns it, starting its timeout timer.
func (m *Manager) claimRequest(ps *peerState, hash chainhash.Hash, invType wire.InvType, timeout time.Duration) bool {
	m.requestsMtx.Lock()
	if _, exists := m.requests[hash]; exists {
		m.requestsMtx.Unlock()
		return false
	}
	req := &loadRequest{hash: hash, invType: invType, peerID: ps.peer.ID()}
	req.timer = time.AfterFunc(timeout, func() { m.failRequest(hash, "timeout") })
	m.requests[hash] = req
	m.requestsMtx.Unlock()

	ps.mtx.Lock()
	if invType&^wire.InvWitnessFlag == wire.InvTypeTx {
		ps.requestedTxns[hash] = struct{}{}
	} else {
		ps.requestedBlocks[hash] = struct{}{}
	}
	ps.mtx.Unlock()
	return true
}

func (m *Manager) resolveRequest(hash chainhash.Hash) *loadRequest {
	m.requestsMtx.Lock()
	defer m.requestsMtx.Unlock()
	req, ok := m.requests[hash]
	if !ok {
		return nil
	}
	req.timer.Stop()
	delete(m.requests, hash)
	return req
}

func (m *Manager) failRequest(hash chainhash.Hash, reason string) {
	req := m.resolveRequest(hash)
	if req == nil {
		return
	}
	log.Debugf("request %v from peer %d failed: %s", hash, req.peerID, reason)
}

func toLocator(hashes []*chainhash.Hash) blockchain.BlockLocator {
	locator := make(blockchain.BlockLocator, len(hashes))
	for i, h := range hashes {
		locator[i] = *h
	}
	return locator
}

func (m *Manager) onGetData(p *peer.Peer, msg *wire.MsgGetData) {
	notFound := wire.NewMsgNotFound()
	for _, iv := range msg.InvList {
		switch iv.Type &^ wire.InvWitnessFlag {
		case wire.InvTypeTx:
			tx, ok := m.txForRequest(iv.Hash)
			if !ok {
				notFound.AddInvVect(iv)
				continue
			}
			p.QueueMessage(tx)
			m.ackBroadcast(iv.Hash)
		case wire.InvTypeBlock, wire.InvTypeFilteredBlock:
			block, err := m.cfg.Chain.BlockByHash(iv.Hash)
			if err != nil {
				notFound.AddInvVect(iv)
				continue
			}
			p.QueueMessage(block)
			m.ackBroadcast(iv.Hash)
		default:
			notFound.AddInvVect(iv)
		}
	}
	if len(notFound.InvList) > 0 {
		p.QueueMessage(notFound)
	}
}

func (m *Manager) txForRequest(hash chainhash.Hash) (*wire.MsgTx, bool) {
	if m.cfg.TxPool == nil {
		return nil, false
	}
	return m.cfg.TxPool.FetchTransaction(hash)
}

func (m *Manager) onNotFound(p *peer.Peer, msg *wire.MsgNotFound) {
	for _, iv := range msg.InvList {
		m.failRequest(iv.Hash, "notfound")
	}
}

func (m *Manager) onGetBlocks(p *peer.Peer, msg *wire.MsgGetBlocks) {
	locator := toLocator(msg.BlockLocatorHashes)
	hashes, err := m.cfg.Chain.LocateBlockHashes(locator, msg.HashStop, blockchain.MaxHeadersPerMsg)
	if err != nil {
		log.Debugf("peer %d: LocateBlockHashes: %v", p.ID(), err)
		return
	}
	inv := wire.NewMsgInv()
	for i := range hashes {
		iv := wire.NewInvVect(wire.InvTypeBlock, &hashes[i])
		if err := inv.AddInvVect(iv); err != nil {
			break
		}
	}
	if len(inv.InvList) > 0 {
		p.QueueMessage(inv)
	}
}

func (m *Manager) onGetHeaders(p *peer.Peer, msg *wire.MsgGetHeaders) {
	locator := toLocator(msg.BlockLocatorHashes)
	headers, err := m.cfg.Chain.LocateHeaders(locator, msg.HashStop, blockchain.MaxHeadersPerMsg)
	if err != nil {
		log.Debugf("peer %d: LocateHeaders: %v", p.ID(), err)
		return
	}
	reply := wire.NewMsgHeaders()
	for i := range headers {
		if err := reply.AddBlockHeader(&headers[i]); err != nil {
			break
		}
	}
	p.QueueMessage(reply)
}

// onHeaders implements headers-first sync: each header not already
// known triggers a getdata(BLOCK) for its body, up to blockBatchSize
// requests per headers message.
func (m *Manager) onHeaders(p *peer.Peer, msg *wire.MsgHeaders) {
	ps := m.peerState(p.ID())
	if ps == nil || len(msg.Headers) == 0 {
		return
	}

	height := m.cfg.Chain.BestSnapshot().Height
	batch := blockBatchSize(height, p.LastBlock())

	getData := wire.NewMsgGetData()
	for _, h := range msg.Headers {
		if len(getData.InvList) >= batch {
			break
		}
		hash := h.BlockHash()
		if m.cfg.Chain.HaveHeader(hash) {
			continue
		}
		if !m.claimRequest(ps, hash, wire.InvTypeBlock, blockRequestTimeout) {
			continue
		}
		hc := hash
		if err := getData.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hc)); err != nil {
			break
		}
	}
	if len(getData.InvList) > 0 {
		p.QueueMessage(getData)
	}

	if len(msg.Headers) == blockchain.MaxHeadersPerMsg {
		last := msg.Headers[len(msg.Headers)-1].BlockHash()
		m.requestHeadersOrBlocks(ps, last)
	}
}

func (m *Manager) onTx(p *peer.Peer, msg *wire.MsgTx) {
	hash := msg.TxHash()
	m.resolveRequest(hash)

	if m.cfg.TxPool != nil {
		if _, _, err := m.cfg.TxPool.AddTransaction(msg, time.Now()); err != nil {
			log.Debugf("peer %d: rejecting tx %v: %v", p.ID(), hash, err)
			return
		}
	}
	m.ackBroadcast(hash)
	m.relay(wire.NewInvVect(wire.InvTypeTx, &hash), p.ID())
}

func (m *Manager) onBlock(p *peer.Peer, msg *wire.MsgBlock) {
	hash := msg.BlockHash()
	m.resolveRequest(hash)

	outcome, err := m.cfg.Chain.Add(msg, p.Addr())
	if err != nil {
		log.Debugf("peer %d: rejecting block %v: %v", p.ID(), hash, err)
		return
	}

	switch outcome {
	case blockchain.Orphaned:
		m.handleOrphan(p, hash)
	case blockchain.Connected:
		if m.cfg.TxPool != nil {
			m.cfg.TxPool.RemoveBlockTx(msg)
		}
		m.ackBroadcast(hash)
		m.relay(wire.NewInvVect(wire.InvTypeBlock, &hash), p.ID())
	}
}

// handleOrphan reacts to a block whose parent chain isn't known: it
// asks the loader to resume from the orphan's root, and penalizes the
// sending peer if it's flooding the pool with orphans.
func (m *Manager) handleOrphan(p *peer.Peer, hash chainhash.Hash) {
	ps := m.peerState(p.ID())
	if ps != nil {
		ps.mtx.Lock()
		now := time.Now()
		if ps.orphanWindowStart.IsZero() || now.Sub(ps.orphanWindowStart) > orphanBanWindow {
			ps.orphanWindowStart = now
			ps.orphanCount = 0
		}
		ps.orphanCount++
		count := ps.orphanCount
		ps.mtx.Unlock()

		if count > orphanBanThreshold {
			m.setMisbehavior(p, m.cfg.MaxOrphanBanScore, "excessive orphan blocks")
		}
	}

	root := m.cfg.Chain.GetOrphanRoot(hash)
	if loader := m.loader(); loader != nil {
		m.requestHeadersOrBlocks(loader, root)
	}
}

// relay announces iv to every peer except the one it came from (from
// equal to 0 relays to everyone, used for locally originated items).
func (m *Manager) relay(iv *wire.InvVect, from int32) {
	m.mtx.Lock()
	peers := make([]*peerState, 0, len(m.peers))
	for id, ps := range m.peers {
		if id == from {
			continue
		}
		peers = append(peers, ps)
	}
	m.mtx.Unlock()

	var txFeeRate int64
	isTx := iv.Type&^wire.InvWitnessFlag == wire.InvTypeTx
	if isTx && m.cfg.TxPool != nil {
		txFeeRate, _ = m.cfg.TxPool.FeeRate(iv.Hash)
	}

	for _, ps := range peers {
		if isTx {
			ps.mtx.Lock()
			filterRate := ps.feeFilterRate
			ps.mtx.Unlock()
			if filterRate > 0 && txFeeRate < filterRate {
				continue
			}
		}
		inv := wire.NewMsgInv()
		inv.AddInvVect(iv)
		ps.peer.QueueMessage(inv)
	}
}

func (m *Manager) onFeeFilter(p *peer.Peer, msg *wire.MsgFeeFilter) {
	ps := m.peerState(p.ID())
	if ps == nil {
		return
	}
	ps.mtx.Lock()
	ps.feeFilterRate = msg.MinFee
	ps.mtx.Unlock()
}

func (m *Manager) onReject(p *peer.Peer, msg *wire.MsgReject) {
	if msg.Message != wire.CmdTx && msg.Message != wire.CmdBlock {
		return
	}
	m.broadcastMtx.Lock()
	item, ok := m.broadcasts[msg.Hash]
	m.broadcastMtx.Unlock()
	if !ok {
		return
	}
	if item.onReject != nil {
		item.onReject(msg.Code)
	}
}
