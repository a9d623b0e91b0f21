// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package netsync

import (
	"sync"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/peer"
	"github.com/chaincore/btcnode/wire"
)

// banTime is how long a misbehaving host stays banned after crossing
// the ban-score threshold.
const banTime = 24 * time.Hour

var (
	misbehavingMtx sync.Mutex
	misbehaving    = make(map[string]time.Time)
)

// setMisbehavior adds score to p's cumulative ban score and, once the
// threshold is crossed, bans p's host and disconnects it.
func (m *Manager) setMisbehavior(p *peer.Peer, score uint32, reason string) {
	if !p.AddBanScore(score, reason) {
		return
	}

	host := p.Addr()
	misbehavingMtx.Lock()
	misbehaving[host] = time.Now().Add(banTime)
	misbehavingMtx.Unlock()

	log.Warnf("banning peer %s for %v: %s", host, banTime, reason)
	p.Disconnect()
}

// IsBanned reports whether host is currently within its ban window.
func IsBanned(host string) bool {
	misbehavingMtx.Lock()
	defer misbehavingMtx.Unlock()
	until, ok := misbehaving[host]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(misbehaving, host)
		return false
	}
	return true
}

// Broadcast announces msg (a tx or block this node originated) to
// every connected peer and tracks it until acked, rejected, or timed
// out. onAck and onReject may be nil.
func (m *Manager) Broadcast(hash chainhash.Hash, invType wire.InvType, msg wire.Message, onAck func(), onReject func(wire.RejectCode)) {
	item := &BroadcastItem{
		Hash:     hash,
		InvType:  invType,
		Msg:      msg,
		onAck:    onAck,
		onReject: onReject,
	}
	item.timer = time.AfterFunc(broadcastTimeout, func() { m.expireBroadcast(hash) })

	m.broadcastMtx.Lock()
	m.broadcasts[hash] = item
	m.broadcastMtx.Unlock()

	hc := hash
	m.relay(wire.NewInvVect(invType, &hc), 0)
}

func (m *Manager) ackBroadcast(hash chainhash.Hash) {
	m.broadcastMtx.Lock()
	item, ok := m.broadcasts[hash]
	if ok {
		item.timer.Stop()
		delete(m.broadcasts, hash)
	}
	m.broadcastMtx.Unlock()

	if ok && !item.acked {
		item.acked = true
		if item.onAck != nil {
			item.onAck()
		}
	}
}

func (m *Manager) expireBroadcast(hash chainhash.Hash) {
	m.broadcastMtx.Lock()
	_, ok := m.broadcasts[hash]
	delete(m.broadcasts, hash)
	m.broadcastMtx.Unlock()
	if ok {
		log.Debugf("broadcast of %v timed out unacked", hash)
	}
}
