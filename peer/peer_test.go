// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package peer

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/chaincore/btcnode/chaincfg"
	"github.com/chaincore/btcnode/wire"
)

func testConfig() *Config {
	return &Config{
		UserAgentName:    "testpeer",
		UserAgentVersion: "0.1.0",
		ChainParams:      chaincfg.SimNetParams(),
		Services:         wire.SFNodeNetwork,
		ProtocolVersion:  wire.ProtocolVersion,
	}
}

// fakeConn wraps a net.Conn with a fixed remote address, which
// NewInboundPeer reads through conn.RemoteAddr().
type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

type fakeConn struct {
	net.Conn
	remote net.Addr
}

func (c *fakeConn) RemoteAddr() net.Addr { return c.remote }

func TestHandshakeCompletesBothDirections(t *testing.T) {
	// A loopback TCP pair rather than net.Pipe: both sides write their
	// verack before reading the other's, which an unbuffered pipe
	// cannot carry.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	a, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	b, err := ln.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer a.Close()
	defer b.Close()

	outboundDone := make(chan error, 1)
	inboundDone := make(chan error, 1)

	outboundPeer := NewOutboundPeer(testConfig(), "pipe")
	outboundPeer.conn = a

	inboundPeer := NewInboundPeer(testConfig(), &fakeConn{Conn: b, remote: fakeAddr("pipe")})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() { outboundDone <- outboundPeer.negotiate(ctx) }()
	go func() { inboundDone <- inboundPeer.negotiate(ctx) }()

	if err := <-outboundDone; err != nil {
		t.Fatalf("outbound handshake failed: %v", err)
	}
	if err := <-inboundDone; err != nil {
		t.Fatalf("inbound handshake failed: %v", err)
	}

	if !outboundPeer.Connected() {
		t.Fatal("outbound peer should report Connected after handshake")
	}
	if !inboundPeer.Connected() {
		t.Fatal("inbound peer should report Connected after handshake")
	}

	outboundPeer.Disconnect()
	inboundPeer.Disconnect()
	outboundPeer.WaitForDisconnect()
	inboundPeer.WaitForDisconnect()
}

func TestAddBanScoreCrossesThreshold(t *testing.T) {
	p := NewOutboundPeer(testConfig(), "10.0.0.1:8333")
	if p.AddBanScore(50, "test") {
		t.Fatal("50 should not cross the ban threshold")
	}
	if !p.AddBanScore(60, "test") {
		t.Fatal("110 cumulative should cross the ban threshold")
	}
	if p.BanScore() != 110 {
		t.Fatalf("BanScore() = %d, want 110", p.BanScore())
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	a, _ := net.Pipe()
	p := NewOutboundPeer(testConfig(), "pipe")
	p.conn = a
	p.Disconnect()
	p.Disconnect()
}
