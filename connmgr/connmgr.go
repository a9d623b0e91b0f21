// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connmgr drives outbound connection attempts for the node: it
// keeps a target number of outbound peers connected, retrying failed
// dials with exponential backoff and handing successful connections
// off to the caller via OnConnection.
package connmgr

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/go-socks/socks"
)

// ConnState represents the state of a ConnReq over its lifetime.
type ConnState uint8

const (
	ConnPending ConnState = iota
	ConnEstablished
	ConnDisconnected
	ConnFailing
	ConnCanceled
)

func (s ConnState) String() string {
	switch s {
	case ConnPending:
		return "pending"
	case ConnEstablished:
		return "established"
	case ConnDisconnected:
		return "disconnected"
	case ConnFailing:
		return "failing"
	case ConnCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// defaultRetryDuration is the initial backoff before a failed dial is
// retried; it doubles on each subsequent failure up to MaxRetryDuration.
const defaultRetryDuration = time.Second

// defaultMaxRetryDuration caps the exponential backoff between retries.
const defaultMaxRetryDuration = 5 * time.Minute

// defaultTargetOutbound is how many outbound connections the manager
// tries to keep alive when Config doesn't override it.
const defaultTargetOutbound = 8

// ConnReq tracks a single outbound connection attempt or established
// connection.
type ConnReq struct {
	id uint64

	Addr      net.Addr
	Permanent bool

	mtx        sync.RWMutex
	conn       net.Conn
	state      ConnState
	retryCount uint32
}

// ID returns the connection request's manager-assigned identifier.
func (c *ConnReq) ID() uint64 {
	return atomic.LoadUint64(&c.id)
}

// State returns the request's current state.
func (c *ConnReq) State() ConnState {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	return c.state
}

func (c *ConnReq) updateState(state ConnState) {
	c.mtx.Lock()
	c.state = state
	c.mtx.Unlock()
}

func (c *ConnReq) String() string {
	if c.Addr == nil {
		return fmt.Sprintf("reqid %d", c.ID())
	}
	return fmt.Sprintf("%s (reqid %d)", c.Addr, c.ID())
}

// DialFunc dials addr, returning an established connection.
type DialFunc func(addr net.Addr) (net.Conn, error)

// Config configures a ConnManager.
type Config struct {
	// TargetOutbound is the number of outbound peers to keep connected.
	TargetOutbound uint32

	// RetryDuration is the initial backoff between dial retries.
	RetryDuration time.Duration

	// MaxRetryDuration caps the exponential dial backoff.
	MaxRetryDuration time.Duration

	// Dial opens a connection to addr. Required.
	Dial DialFunc

	// OnConnection is called after a dial succeeds.
	OnConnection func(*ConnReq, net.Conn)

	// OnDisconnection is called after an established connection drops.
	OnDisconnection func(*ConnReq)

	// GetNewAddress supplies the next outbound candidate when the
	// manager is below TargetOutbound. Required.
	GetNewAddress func() (net.Addr, error)
}

// ConnManager maintains a target number of outbound connections,
// retrying failed dials with backoff.
type ConnManager struct {
	connReqCount uint64
	start        int32
	stop         int32

	cfg   Config
	mtx   sync.Mutex
	conns map[uint64]*ConnReq

	wg       sync.WaitGroup
	requests chan interface{}
	quit     chan struct{}
}

type registerPending struct {
	c    *ConnReq
	done chan struct{}
}

type handleConnected struct {
	c    *ConnReq
	conn net.Conn
}

type handleDisconnected struct {
	id    uint64
	retry bool
}

type handleFailed struct {
	c   *ConnReq
	err error
}

// New returns a ConnManager using cfg, applying defaults for any
// unset durations and target count.
func New(cfg *Config) (*ConnManager, error) {
	if cfg.Dial == nil {
		return nil, errors.New("connmgr: Config.Dial must not be nil")
	}
	if cfg.GetNewAddress == nil {
		return nil, errors.New("connmgr: Config.GetNewAddress must not be nil")
	}
	c := &ConnManager{
		cfg:      *cfg,
		conns:    make(map[uint64]*ConnReq),
		requests: make(chan interface{}),
		quit:     make(chan struct{}),
	}
	if c.cfg.TargetOutbound == 0 {
		c.cfg.TargetOutbound = defaultTargetOutbound
	}
	if c.cfg.RetryDuration <= 0 {
		c.cfg.RetryDuration = defaultRetryDuration
	}
	if c.cfg.MaxRetryDuration <= 0 {
		c.cfg.MaxRetryDuration = defaultMaxRetryDuration
	}
	return c, nil
}

// Run starts the manager's event loop in its own goroutine, dials up to
// TargetOutbound fresh addresses, and returns; Stop ends the loop.
func (cm *ConnManager) Run() {
	if !atomic.CompareAndSwapInt32(&cm.start, 0, 1) {
		return
	}
	cm.wg.Add(1)
	go cm.connHandler()
	cm.assignOutbound()
}

// Stop shuts the manager down, canceling pending dials.
func (cm *ConnManager) Stop() {
	if !atomic.CompareAndSwapInt32(&cm.stop, 0, 1) {
		return
	}
	close(cm.quit)
	cm.wg.Wait()
}

// connHandler serializes all state transitions onto a single goroutine
// so ConnReq bookkeeping never races.
func (cm *ConnManager) connHandler() {
	defer cm.wg.Done()
	for {
		select {
		case req := <-cm.requests:
			switch msg := req.(type) {
			case registerPending:
				cm.mtx.Lock()
				cm.conns[msg.c.ID()] = msg.c
				cm.mtx.Unlock()
				close(msg.done)

			case handleConnected:
				msg.c.updateState(ConnEstablished)
				msg.c.mtx.Lock()
				msg.c.conn = msg.conn
				msg.c.retryCount = 0
				msg.c.mtx.Unlock()
				if cm.cfg.OnConnection != nil {
					cm.cfg.OnConnection(msg.c, msg.conn)
				}

			case handleDisconnected:
				cm.mtx.Lock()
				c, ok := cm.conns[msg.id]
				if !ok {
					cm.mtx.Unlock()
					continue
				}
				if !msg.retry || !c.Permanent {
					delete(cm.conns, msg.id)
				}
				cm.mtx.Unlock()

				c.updateState(ConnDisconnected)
				if cm.cfg.OnDisconnection != nil {
					cm.cfg.OnDisconnection(c)
				}
				if msg.retry && c.Permanent {
					cm.retry(c)
				} else {
					cm.assignOutbound()
				}

			case handleFailed:
				msg.c.updateState(ConnFailing)
				log.Debugf("failed to connect to %v: %v", msg.c, msg.err)
				cm.retry(msg.c)
			}

		case <-cm.quit:
			cm.mtx.Lock()
			for id, c := range cm.conns {
				c.updateState(ConnCanceled)
				if c.conn != nil {
					c.conn.Close()
				}
				delete(cm.conns, id)
			}
			cm.mtx.Unlock()
			return
		}
	}
}

// retry schedules another dial attempt for c after an exponentially
// growing backoff.
func (cm *ConnManager) retry(c *ConnReq) {
	c.mtx.Lock()
	c.retryCount++
	count := c.retryCount
	c.mtx.Unlock()

	backoff := cm.cfg.RetryDuration * time.Duration(1<<min(count-1, 16))
	if backoff > cm.cfg.MaxRetryDuration || backoff <= 0 {
		backoff = cm.cfg.MaxRetryDuration
	}

	log.Debugf("retrying connection to %v in %v", c, backoff)
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		select {
		case <-time.After(backoff):
			cm.dial(c)
		case <-cm.quit:
		}
	}()
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// Connect assigns c an id and begins dialing it.
func (cm *ConnManager) Connect(c *ConnReq) {
	c.id = atomic.AddUint64(&cm.connReqCount, 1)
	c.updateState(ConnPending)

	done := make(chan struct{})
	select {
	case cm.requests <- registerPending{c: c, done: done}:
	case <-cm.quit:
		return
	}
	select {
	case <-done:
	case <-cm.quit:
		return
	}

	cm.dial(c)
}

func (cm *ConnManager) dial(c *ConnReq) {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		conn, err := cm.cfg.Dial(c.Addr)
		if err != nil {
			select {
			case cm.requests <- handleFailed{c: c, err: err}:
			case <-cm.quit:
			}
			return
		}
		select {
		case cm.requests <- handleConnected{c: c, conn: conn}:
		case <-cm.quit:
			conn.Close()
		}
	}()
}

// Disconnect closes the connection identified by id. If retry is true
// and the request is permanent, the manager retries it; otherwise it's
// forgotten.
func (cm *ConnManager) Disconnect(id uint64, retry bool) {
	cm.mtx.Lock()
	c, ok := cm.conns[id]
	cm.mtx.Unlock()
	if !ok {
		return
	}
	c.mtx.RLock()
	conn := c.conn
	c.mtx.RUnlock()
	if conn != nil {
		conn.Close()
	}
	select {
	case cm.requests <- handleDisconnected{id: id, retry: retry}:
	case <-cm.quit:
	}
}

// ConnectedCount returns the number of connections currently
// established.
func (cm *ConnManager) ConnectedCount() int32 {
	cm.mtx.Lock()
	defer cm.mtx.Unlock()
	var n int32
	for _, c := range cm.conns {
		if c.State() == ConnEstablished {
			n++
		}
	}
	return n
}

// assignOutbound tops the manager up to TargetOutbound by requesting
// fresh addresses and dialing them.
func (cm *ConnManager) assignOutbound() {
	need := int(cm.cfg.TargetOutbound) - int(cm.ConnectedCount())
	for i := 0; i < need; i++ {
		addr, err := cm.cfg.GetNewAddress()
		if err != nil {
			log.Debugf("no new outbound address available: %v", err)
			return
		}
		cm.Connect(&ConnReq{Addr: addr})
	}
}

// SocksDialer returns a DialFunc that dials through a SOCKS5 proxy
// (Tor or otherwise) listening at proxyAddr.
func SocksDialer(proxyAddr, username, password string) DialFunc {
	proxy := &socks.Proxy{
		Addr:     proxyAddr,
		Username: username,
		Password: password,
	}
	return func(addr net.Addr) (net.Conn, error) {
		return proxy.Dial(addr.Network(), addr.String())
	}
}
