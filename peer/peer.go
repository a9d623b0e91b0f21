// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package peer implements a single connection to a remote node: the
// version/verack handshake, the read/write message loops, and per-peer
// bookkeeping (ban score, advertised services, negotiated protocol
// version) that the sync driver in netsync needs to treat a Peer as a
// source of blocks and transactions.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
	"github.com/davecgh/go-spew/spew"
)

// handshakeTimeout bounds how long the version/verack exchange may
// take before a peer is disconnected for stalling.
const handshakeTimeout = 15 * time.Second

// pingInterval is how often an established peer is pinged to detect a
// dead connection.
const pingInterval = 2 * time.Minute

// outputBufferSize is how many messages can queue for send before
// QueueMessage blocks the caller.
const outputBufferSize = 50

// MessageListeners holds the callbacks invoked for each inbound message
// type. Every field is optional; a nil listener means the message is
// acknowledged at the wire level but otherwise ignored.
type MessageListeners struct {
	OnVersion     func(p *Peer, msg *wire.MsgVersion)
	OnVerAck      func(p *Peer, msg *wire.MsgVerAck)
	OnGetAddr     func(p *Peer, msg *wire.MsgGetAddr)
	OnAddr        func(p *Peer, msg *wire.MsgAddr)
	OnInv         func(p *Peer, msg *wire.MsgInv)
	OnGetData     func(p *Peer, msg *wire.MsgGetData)
	OnNotFound    func(p *Peer, msg *wire.MsgNotFound)
	OnGetBlocks   func(p *Peer, msg *wire.MsgGetBlocks)
	OnGetHeaders  func(p *Peer, msg *wire.MsgGetHeaders)
	OnHeaders     func(p *Peer, msg *wire.MsgHeaders)
	OnTx          func(p *Peer, msg *wire.MsgTx)
	OnBlock       func(p *Peer, msg *wire.MsgBlock)
	OnMerkleBlock func(p *Peer, msg *wire.MsgMerkleBlock)
	OnMemPool     func(p *Peer, msg *wire.MsgMemPool)
	OnFilterLoad  func(p *Peer, msg *wire.MsgFilterLoad)
	OnFilterAdd   func(p *Peer, msg *wire.MsgFilterAdd)
	OnFilterClear func(p *Peer, msg *wire.MsgFilterClear)
	OnReject      func(p *Peer, msg *wire.MsgReject)
	OnSendHeaders func(p *Peer, msg *wire.MsgSendHeaders)
	OnFeeFilter   func(p *Peer, msg *wire.MsgFeeFilter)
}

// Config configures every Peer a node creates.
type Config struct {
	UserAgentName    string
	UserAgentVersion string
	ChainParams      *chaincfg.Params
	Services         wire.ServiceFlag
	ProtocolVersion  uint32
	Listeners        MessageListeners

	// NewestBlock reports the local chain's tip, sent in the version
	// message's LastBlock field.
	NewestBlock func() (hash chainhash.Hash, height int32, err error)
}

// banScoreThreshold is the cumulative score at which a peer is
// considered misbehaving and should be disconnected and banned.
const banScoreThreshold = 100

// Peer represents a single connection, inbound or outbound, to a
// remote node speaking the wire protocol.
type Peer struct {
	id    int32
	cfg   Config
	conn  net.Conn
	addr  string
	na    wire.NetAddress
	inbound bool

	sendQueue chan wire.Message
	quit      chan struct{}
	wg        sync.WaitGroup

	versionSent     int32 // atomic bool
	verAckReceived  int32 // atomic bool
	versionKnown    int32 // atomic bool
	disconnected    int32 // atomic bool

	statsMtx        sync.RWMutex
	protocolVersion uint32
	services        wire.ServiceFlag
	userAgent       string
	lastBlock       int32
	startingHeight  int32
	timeOffset      int64

	banMtx   sync.Mutex
	banScore uint32
}

var peerIDCounter int32

func nextPeerID() int32 {
	return atomic.AddInt32(&peerIDCounter, 1)
}

// NewOutboundPeer returns a Peer that will dial addr when Connect is
// called.
func NewOutboundPeer(cfg *Config, addr string) *Peer {
	return &Peer{
		id:        nextPeerID(),
		cfg:       *cfg,
		addr:      addr,
		inbound:   false,
		sendQueue: make(chan wire.Message, outputBufferSize),
		quit:      make(chan struct{}),
	}
}

// NewInboundPeer returns a Peer wrapping an already-accepted conn.
func NewInboundPeer(cfg *Config, conn net.Conn) *Peer {
	return &Peer{
		id:        nextPeerID(),
		cfg:       *cfg,
		conn:      conn,
		addr:      conn.RemoteAddr().String(),
		inbound:   true,
		sendQueue: make(chan wire.Message, outputBufferSize),
		quit:      make(chan struct{}),
	}
}

// ID returns the peer's locally-assigned identifier.
func (p *Peer) ID() int32 { return p.id }

// Addr returns the remote address this peer connects to or from.
func (p *Peer) Addr() string { return p.addr }

// Inbound reports whether the remote end initiated the connection.
func (p *Peer) Inbound() bool { return p.inbound }

// ProtocolVersion returns the negotiated protocol version, valid only
// after the handshake completes.
func (p *Peer) ProtocolVersion() uint32 {
	p.statsMtx.RLock()
	defer p.statsMtx.RUnlock()
	return p.protocolVersion
}

// Services returns the service flags the peer advertised.
func (p *Peer) Services() wire.ServiceFlag {
	p.statsMtx.RLock()
	defer p.statsMtx.RUnlock()
	return p.services
}

// UserAgent returns the peer's advertised user agent string.
func (p *Peer) UserAgent() string {
	p.statsMtx.RLock()
	defer p.statsMtx.RUnlock()
	return p.userAgent
}

// LastBlock returns the height the peer claimed in its version message.
func (p *Peer) LastBlock() int32 {
	p.statsMtx.RLock()
	defer p.statsMtx.RUnlock()
	return p.lastBlock
}

// Connected reports whether the handshake has completed and the peer
// hasn't since disconnected.
func (p *Peer) Connected() bool {
	return atomic.LoadInt32(&p.versionKnown) != 0 &&
		atomic.LoadInt32(&p.verAckReceived) != 0 &&
		atomic.LoadInt32(&p.disconnected) == 0
}

// Connect dials an outbound peer, performs the handshake, and starts
// its message loops. It blocks until the handshake completes or fails.
func (p *Peer) Connect(ctx context.Context) error {
	if p.inbound {
		return errors.New("peer: Connect called on an inbound peer")
	}
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return err
	}
	p.conn = conn
	return p.negotiate(ctx)
}

// Start performs the handshake on an already-connected peer (inbound
// or already-dialed outbound) and launches its read/write loops.
func (p *Peer) Start(ctx context.Context) error {
	if p.conn == nil {
		return errors.New("peer: Start called before a connection exists")
	}
	return p.negotiate(ctx)
}

func (p *Peer) negotiate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- p.handshake() }()

	select {
	case err := <-errCh:
		if err != nil {
			p.conn.Close()
			return err
		}
	case <-ctx.Done():
		p.conn.Close()
		return ctx.Err()
	}

	p.wg.Add(2)
	go p.readLoop()
	go p.writeLoop()
	p.wg.Add(1)
	go p.pingLoop()
	return nil
}

// handshake runs the version/verack exchange. Outbound peers send
// first, matching the usual initiator convention.
func (p *Peer) handshake() error {
	var localNonce uint64 = uint64(nextPeerID())<<32 | uint64(time.Now().UnixNano())

	sendVersion := func() error {
		var height int32
		if p.cfg.NewestBlock != nil {
			_, h, err := p.cfg.NewestBlock()
			if err != nil {
				return err
			}
			height = h
		}
		me := wire.NewNetAddressIPPort(net.IPv4zero, 0, p.cfg.Services)
		them := wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
		v := wire.NewMsgVersion(them, me, localNonce, height)
		v.ProtocolVersion = int32(p.cfg.ProtocolVersion)
		v.Services = p.cfg.Services
		v.UserAgent = fmt.Sprintf("/%s:%s/", p.cfg.UserAgentName, p.cfg.UserAgentVersion)
		v.Timestamp = time.Now().Unix()
		atomic.StoreInt32(&p.versionSent, 1)
		return p.writeMessage(v)
	}

	readUntilVersion := func() (*wire.MsgVersion, error) {
		for {
			msg, err := p.readMessage()
			if err != nil {
				return nil, err
			}
			if v, ok := msg.(*wire.MsgVersion); ok {
				return v, nil
			}
			return nil, fmt.Errorf("peer: expected version, got %s", msg.Command())
		}
	}

	if !p.inbound {
		if err := sendVersion(); err != nil {
			return err
		}
	}

	v, err := readUntilVersion()
	if err != nil {
		return err
	}
	p.statsMtx.Lock()
	p.protocolVersion = minUint32(uint32(v.ProtocolVersion), p.cfg.ProtocolVersion)
	p.services = v.Services
	p.userAgent = v.UserAgent
	p.lastBlock = v.LastBlock
	p.statsMtx.Unlock()
	atomic.StoreInt32(&p.versionKnown, 1)

	if p.inbound {
		if err := sendVersion(); err != nil {
			return err
		}
	}
	if err := p.writeMessage(&wire.MsgVerAck{}); err != nil {
		return err
	}

	for {
		msg, err := p.readMessage()
		if err != nil {
			return err
		}
		if _, ok := msg.(*wire.MsgVerAck); ok {
			atomic.StoreInt32(&p.verAckReceived, 1)
			if p.cfg.Listeners.OnVersion != nil {
				p.cfg.Listeners.OnVersion(p, v)
			}
			return nil
		}
	}
}

func minUint32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func (p *Peer) btcnet() wire.BitcoinNet {
	if p.cfg.ChainParams != nil {
		return p.cfg.ChainParams.Net
	}
	return wire.MainNet
}

func (p *Peer) writeMessage(msg wire.Message) error {
	_, err := wire.WriteMessageN(p.conn, msg, p.cfg.ProtocolVersion, p.btcnet())
	return err
}

func (p *Peer) readMessage() (wire.Message, error) {
	_, msg, _, err := wire.ReadMessageN(p.conn, p.cfg.ProtocolVersion, p.btcnet())
	return msg, err
}

// QueueMessage schedules msg for delivery to the remote peer on the
// write loop. It blocks while the send queue is full, and returns
// without queuing once the peer has quit.
func (p *Peer) QueueMessage(msg wire.Message) {
	select {
	case p.sendQueue <- msg:
	case <-p.quit:
	}
}

func (p *Peer) writeLoop() {
	defer p.wg.Done()
	for {
		select {
		case msg := <-p.sendQueue:
			if err := p.writeMessage(msg); err != nil {
				log.Debugf("peer %d: write error: %v", p.id, err)
				p.Disconnect()
				return
			}
		case <-p.quit:
			return
		}
	}
}

func (p *Peer) readLoop() {
	defer p.wg.Done()
	for {
		msg, err := p.readMessage()
		if err != nil {
			if err != io.EOF {
				log.Debugf("peer %d: read error: %v", p.id, err)
			}
			p.Disconnect()
			return
		}
		p.dispatch(msg)
	}
}

func (p *Peer) dispatch(msg wire.Message) {
	l := p.cfg.Listeners
	switch m := msg.(type) {
	case *wire.MsgPing:
		p.QueueMessage(&wire.MsgPong{Nonce: m.Nonce})
	case *wire.MsgPong:
	case *wire.MsgGetAddr:
		if l.OnGetAddr != nil {
			l.OnGetAddr(p, m)
		}
	case *wire.MsgAddr:
		if l.OnAddr != nil {
			l.OnAddr(p, m)
		}
	case *wire.MsgInv:
		if l.OnInv != nil {
			l.OnInv(p, m)
		}
	case *wire.MsgGetData:
		if l.OnGetData != nil {
			l.OnGetData(p, m)
		}
	case *wire.MsgNotFound:
		if l.OnNotFound != nil {
			l.OnNotFound(p, m)
		}
	case *wire.MsgGetBlocks:
		if l.OnGetBlocks != nil {
			l.OnGetBlocks(p, m)
		}
	case *wire.MsgGetHeaders:
		if l.OnGetHeaders != nil {
			l.OnGetHeaders(p, m)
		}
	case *wire.MsgHeaders:
		if l.OnHeaders != nil {
			l.OnHeaders(p, m)
		}
	case *wire.MsgTx:
		if l.OnTx != nil {
			l.OnTx(p, m)
		}
	case *wire.MsgBlock:
		if l.OnBlock != nil {
			l.OnBlock(p, m)
		}
	case *wire.MsgMerkleBlock:
		if l.OnMerkleBlock != nil {
			l.OnMerkleBlock(p, m)
		}
	case *wire.MsgMemPool:
		if l.OnMemPool != nil {
			l.OnMemPool(p, m)
		}
	case *wire.MsgFilterLoad:
		if l.OnFilterLoad != nil {
			l.OnFilterLoad(p, m)
		}
	case *wire.MsgFilterAdd:
		if l.OnFilterAdd != nil {
			l.OnFilterAdd(p, m)
		}
	case *wire.MsgFilterClear:
		if l.OnFilterClear != nil {
			l.OnFilterClear(p, m)
		}
	case *wire.MsgReject:
		if l.OnReject != nil {
			l.OnReject(p, m)
		}
	case *wire.MsgSendHeaders:
		if l.OnSendHeaders != nil {
			l.OnSendHeaders(p, m)
		}
	case *wire.MsgFeeFilter:
		if l.OnFeeFilter != nil {
			l.OnFeeFilter(p, m)
		}
	case *wire.MsgSendCmpct:
		p.QueueMessage(wire.NewMsgSendCmpctReply())
	default:
		log.Debugf("peer %d: unhandled message %s: %s", p.id, msg.Command(), spew.Sdump(msg))
	}
}

func (p *Peer) pingLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			nonce := uint64(time.Now().UnixNano())
			p.QueueMessage(&wire.MsgPing{Nonce: nonce})
		case <-p.quit:
			return
		}
	}
}

// AddBanScore adds score to the peer's cumulative ban score and
// reports whether the peer has now crossed the ban threshold.
func (p *Peer) AddBanScore(score uint32, reason string) bool {
	p.banMtx.Lock()
	p.banScore += score
	total := p.banScore
	p.banMtx.Unlock()
	log.Debugf("peer %d: ban score now %d (%s)", p.id, total, reason)
	return total >= banScoreThreshold
}

// BanScore returns the peer's current cumulative ban score.
func (p *Peer) BanScore() uint32 {
	p.banMtx.Lock()
	defer p.banMtx.Unlock()
	return p.banScore
}

// Disconnect closes the underlying connection and stops the peer's
// loops. Safe to call more than once.
func (p *Peer) Disconnect() {
	if !atomic.CompareAndSwapInt32(&p.disconnected, 0, 1) {
		return
	}
	close(p.quit)
	if p.conn != nil {
		p.conn.Close()
	}
}

// WaitForDisconnect blocks until the peer's read/write/ping loops have
// fully stopped.
func (p *Peer) WaitForDisconnect() {
	p.wg.Wait()
}

// PushGetBlocksMsg queues a getblocks request built from locator,
// stopping at stopHash (or the 500-block wire cap if zero).
func (p *Peer) PushGetBlocksMsg(locator []chainhash.Hash, stopHash *chainhash.Hash) error {
	if stopHash == nil {
		stopHash = &chainhash.Hash{}
	}
	msg := wire.NewMsgGetBlocks(stopHash)
	for i := range locator {
		if err := msg.AddBlockLocatorHash(&locator[i]); err != nil {
			return err
		}
	}
	p.QueueMessage(msg)
	return nil
}

// PushGetHeadersMsg queues a getheaders request built from locator.
func (p *Peer) PushGetHeadersMsg(locator []chainhash.Hash, stopHash *chainhash.Hash) error {
	msg := wire.NewMsgGetHeaders()
	for i := range locator {
		if err := msg.AddBlockLocatorHash(&locator[i]); err != nil {
			return err
		}
	}
	if stopHash != nil {
		msg.HashStop = *stopHash
	}
	p.QueueMessage(msg)
	return nil
}

// PushAddrMsg queues up to wire.MaxAddrPerMsg addresses for delivery.
func (p *Peer) PushAddrMsg(addrs []*wire.NetAddress) error {
	msg := wire.NewMsgAddr()
	for _, na := range addrs {
		if len(msg.AddrList) >= wire.MaxAddrPerMsg {
			break
		}
		if err := msg.AddAddress(na); err != nil {
			return err
		}
	}
	p.QueueMessage(msg)
	return nil
}
