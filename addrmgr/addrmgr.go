// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package addrmgr is the node's peer address book: the set of network
// addresses learned from addr messages and DNS seeds, tracked with
// enough history (attempts, successes, last seen) to bias connection
// attempts toward addresses that have recently worked.
//
// This is distinct from a wallet address index; it stores where peers
// live on the network, not output scripts.
package addrmgr

import (
	"encoding/json"
	"math/rand"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/chaincore/btcnode/wire"
)

// staleAfter is how long an address goes unconfirmed before Stale
// reports it as stale. GetAddress does not consult it.
const staleAfter = 30 * 24 * time.Hour

// maxFailures is the failed-attempt count at which GetAddress stops
// offering an address; the entry itself stays in the address book.
const maxFailures = 10

// KnownAddress wraps a network address with the bookkeeping the manager
// needs to pick good connection candidates.
type KnownAddress struct {
	Addr        wire.NetAddress
	Src         wire.NetAddress
	Attempts    int
	LastAttempt time.Time
	LastSuccess time.Time
}

// key returns the host:port string a KnownAddress is indexed by.
func (ka *KnownAddress) key() string {
	return addrKey(&ka.Addr)
}

// Stale reports whether ka hasn't been confirmed seen recently enough to
// trust without re-verifying it.
func (ka *KnownAddress) Stale(now time.Time) bool {
	return now.Sub(ka.Addr.Timestamp) > staleAfter
}

func addrKey(na *wire.NetAddress) string {
	return net.JoinHostPort(na.IP.String(), strconv.Itoa(int(na.Port)))
}

// AddrManager is the address book: every address the node has learned
// about, keyed by host:port, safe for concurrent use.
type AddrManager struct {
	mtx   sync.RWMutex
	addrs map[string]*KnownAddress
	rand  *rand.Rand
}

// New returns an empty address manager.
func New() *AddrManager {
	return &AddrManager{
		addrs: make(map[string]*KnownAddress),
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddAddress records na as learned from src, merging into an existing
// entry (taking the newer timestamp) rather than clobbering attempt
// history if the address is already known.
func (a *AddrManager) AddAddress(na, src *wire.NetAddress) {
	if na == nil || na.IP == nil {
		return
	}
	key := addrKey(na)

	a.mtx.Lock()
	defer a.mtx.Unlock()

	if existing, ok := a.addrs[key]; ok {
		if na.Timestamp.After(existing.Addr.Timestamp) {
			existing.Addr.Timestamp = na.Timestamp
			existing.Addr.Services |= na.Services
		}
		return
	}

	ka := &KnownAddress{Addr: *na}
	if src != nil {
		ka.Src = *src
	}
	a.addrs[key] = ka
	srcKey := "unknown"
	if src != nil {
		srcKey = addrKey(src)
	}
	log.Debugf("added new address %s from %s", key, srcKey)
}

// AddAddresses records every address in addrs as learned from src.
func (a *AddrManager) AddAddresses(addrs []*wire.NetAddress, src *wire.NetAddress) {
	for _, na := range addrs {
		a.AddAddress(na, src)
	}
}

// NumAddresses returns the number of addresses currently tracked.
func (a *AddrManager) NumAddresses() int {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	return len(a.addrs)
}

// GetAddress returns a random known address, biased against addresses
// that have recently failed to connect, or nil if none are known.
func (a *AddrManager) GetAddress() *KnownAddress {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if len(a.addrs) == 0 {
		return nil
	}

	candidates := make([]*KnownAddress, 0, len(a.addrs))
	for _, ka := range a.addrs {
		if ka.Attempts < maxFailures {
			candidates = append(candidates, ka)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	pick := *candidates[a.rand.Intn(len(candidates))]
	return &pick
}

// AddressCache returns up to maxAddrs known addresses for a getaddr
// reply, in random order.
func (a *AddrManager) AddressCache(maxAddrs int) []*wire.NetAddress {
	a.mtx.RLock()
	defer a.mtx.RUnlock()

	out := make([]*wire.NetAddress, 0, len(a.addrs))
	for _, ka := range a.addrs {
		na := ka.Addr
		out = append(out, &na)
	}
	a.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if maxAddrs > 0 && len(out) > maxAddrs {
		out = out[:maxAddrs]
	}
	return out
}

// Attempt records a connection attempt against addr, bumping its
// failure count so GetAddress deprioritizes it.
func (a *AddrManager) Attempt(addr *wire.NetAddress, now time.Time) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	ka, ok := a.addrs[addrKey(addr)]
	if !ok {
		return
	}
	ka.Attempts++
	ka.LastAttempt = now
}

// Good marks addr as successfully connected and handshaked, resetting
// its failure count and refreshing its last-seen timestamp.
func (a *AddrManager) Good(addr *wire.NetAddress, now time.Time) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	ka, ok := a.addrs[addrKey(addr)]
	if !ok {
		return
	}
	ka.Attempts = 0
	ka.LastSuccess = now
	ka.Addr.Timestamp = now
}

// addrManagerDisk is the on-disk representation AddrManager persists to
// and restores from, keeping the public KnownAddress shape stable
// across schema tweaks.
type addrManagerDisk struct {
	Addrs []*KnownAddress `json:"addrs"`
}

// Save writes the address book to path as JSON, the same shape Load
// reads back. There is no third-party serialization dependency in the
// retrieval pack for a flat address-book snapshot, so this uses
// encoding/json directly.
func (a *AddrManager) Save(path string) error {
	a.mtx.RLock()
	disk := addrManagerDisk{Addrs: make([]*KnownAddress, 0, len(a.addrs))}
	for _, ka := range a.addrs {
		disk.Addrs = append(disk.Addrs, ka)
	}
	a.mtx.RUnlock()

	data, err := json.Marshal(disk)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load restores the address book previously written by Save. A missing
// file is not an error; the manager simply starts empty.
func (a *AddrManager) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var disk addrManagerDisk
	if err := json.Unmarshal(data, &disk); err != nil {
		return err
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()
	for _, ka := range disk.Addrs {
		a.addrs[ka.key()] = ka
	}
	log.Infof("loaded %d addresses from %s", len(disk.Addrs), path)
	return nil
}
