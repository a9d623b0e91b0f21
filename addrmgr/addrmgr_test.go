// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrmgr

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaincore/btcnode/wire"
)

func testAddr(ip string, port uint16) *wire.NetAddress {
	return &wire.NetAddress{
		Timestamp: time.Now(),
		IP:        net.ParseIP(ip),
		Port:      port,
	}
}

func TestAddAddressDeduplicates(t *testing.T) {
	am := New()
	src := testAddr("192.168.1.1", 8333)
	am.AddAddress(testAddr("10.0.0.1", 8333), src)
	am.AddAddress(testAddr("10.0.0.1", 8333), src)

	if n := am.NumAddresses(); n != 1 {
		t.Fatalf("NumAddresses() = %d, want 1", n)
	}
}

func TestGetAddressReturnsKnown(t *testing.T) {
	am := New()
	na := testAddr("10.0.0.2", 8333)
	am.AddAddress(na, testAddr("10.0.0.1", 8333))

	ka := am.GetAddress()
	if ka == nil {
		t.Fatalf("GetAddress() = nil, want a known address")
	}
	if !ka.Addr.IP.Equal(na.IP) {
		t.Fatalf("GetAddress() IP = %v, want %v", ka.Addr.IP, na.IP)
	}
}

func TestGetAddressEmptyManager(t *testing.T) {
	am := New()
	if ka := am.GetAddress(); ka != nil {
		t.Fatalf("GetAddress() on empty manager = %v, want nil", ka)
	}
}

func TestAttemptExcludesExhaustedAddress(t *testing.T) {
	am := New()
	na := testAddr("10.0.0.3", 8333)
	am.AddAddress(na, nil)

	now := time.Now()
	for i := 0; i < maxFailures; i++ {
		am.Attempt(na, now)
	}

	if ka := am.GetAddress(); ka != nil {
		t.Fatalf("GetAddress() after %d failures = %v, want nil", maxFailures, ka)
	}
}

func TestGoodResetsAttempts(t *testing.T) {
	am := New()
	na := testAddr("10.0.0.4", 8333)
	am.AddAddress(na, nil)

	now := time.Now()
	for i := 0; i < maxFailures; i++ {
		am.Attempt(na, now)
	}
	am.Good(na, now)

	if ka := am.GetAddress(); ka == nil {
		t.Fatalf("GetAddress() after Good() = nil, want the reset address")
	}
}

func TestAddressCacheRespectsLimit(t *testing.T) {
	am := New()
	for i := 0; i < 10; i++ {
		am.AddAddress(testAddr("10.0.1."+string(rune('0'+i)), 8333), nil)
	}

	cache := am.AddressCache(5)
	if len(cache) != 5 {
		t.Fatalf("AddressCache(5) returned %d addresses, want 5", len(cache))
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.json")

	am := New()
	na := testAddr("10.0.0.5", 8333)
	am.AddAddress(na, testAddr("10.0.0.1", 8333))
	if err := am.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	restored := New()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if n := restored.NumAddresses(); n != 1 {
		t.Fatalf("NumAddresses() after Load() = %d, want 1", n)
	}
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	am := New()
	if err := am.Load(filepath.Join(os.TempDir(), "does-not-exist-addrmgr.json")); err != nil {
		t.Fatalf("Load() on missing file returned error: %v", err)
	}
}
