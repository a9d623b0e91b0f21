// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connmgr

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAddr string

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return string(a) }

func TestConnectSucceeds(t *testing.T) {
	var connected int32
	done := make(chan struct{})

	cfg := &Config{
		TargetOutbound: 1,
		RetryDuration:  time.Millisecond,
		Dial: func(addr net.Addr) (net.Conn, error) {
			client, server := net.Pipe()
			server.Close()
			return client, nil
		},
		OnConnection: func(c *ConnReq, conn net.Conn) {
			atomic.StoreInt32(&connected, 1)
			close(done)
		},
		GetNewAddress: func() (net.Addr, error) {
			return fakeAddr("127.0.0.1:8333"), nil
		},
	}

	cm, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cm.Connect(&ConnReq{Addr: fakeAddr("127.0.0.1:8333")})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnConnection")
	}
	if atomic.LoadInt32(&connected) != 1 {
		t.Fatal("OnConnection was not invoked")
	}
}

func TestRetryOnDialFailure(t *testing.T) {
	var attempts int32
	success := make(chan struct{})

	cfg := &Config{
		RetryDuration: time.Millisecond,
		Dial: func(addr net.Addr) (net.Conn, error) {
			n := atomic.AddInt32(&attempts, 1)
			if n < 3 {
				return nil, errors.New("refused")
			}
			client, server := net.Pipe()
			server.Close()
			return client, nil
		},
		OnConnection: func(c *ConnReq, conn net.Conn) {
			close(success)
		},
		GetNewAddress: func() (net.Addr, error) {
			return fakeAddr("127.0.0.1:8333"), nil
		},
	}

	cm, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cm.Connect(&ConnReq{Addr: fakeAddr("127.0.0.1:8333")})

	select {
	case <-success:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for eventual connection")
	}
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("attempts = %d, want at least 3", attempts)
	}
}

func TestNewRejectsMissingDial(t *testing.T) {
	_, err := New(&Config{GetNewAddress: func() (net.Addr, error) { return nil, nil }})
	if err == nil {
		t.Fatal("New() with nil Dial should error")
	}
}

func TestNewRejectsMissingGetNewAddress(t *testing.T) {
	_, err := New(&Config{Dial: func(net.Addr) (net.Conn, error) { return nil, nil }})
	if err == nil {
		t.Fatal("New() with nil GetNewAddress should error")
	}
}

func TestConnManagerRunAssignsOutbound(t *testing.T) {
	var mu sync.Mutex
	var dialed []string

	cfg := &Config{
		TargetOutbound: 2,
		RetryDuration:  time.Millisecond,
		Dial: func(addr net.Addr) (net.Conn, error) {
			mu.Lock()
			dialed = append(dialed, addr.String())
			mu.Unlock()
			client, server := net.Pipe()
			server.Close()
			return client, nil
		},
		GetNewAddress: func() (net.Addr, error) {
			return fakeAddr("10.0.0.1:8333"), nil
		},
	}

	cm, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cm.Run()
	defer cm.Stop()

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	n := len(dialed)
	mu.Unlock()
	if n == 0 {
		t.Fatal("Run() did not dial any outbound addresses")
	}
}
