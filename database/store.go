// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package database implements the chain store: indexed persistence of
// headers, blocks, coins, and undo data behind a key-prefix scheme,
// backed by an ordered byte-keyed storage engine with atomic
// write-batches.
package database

import (
	"errors"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key-space prefixes, matching conceptual byte prefixes.
var (
	prefixTip = []byte("R")
	prefixEntry = []byte("e/")
	prefixHeight = []byte("h/")
	prefixMain = []byte("H/")
	prefixNext = []byte("n/")
	prefixBlock = []byte("b/")
	prefixUndo = []byte("u/")
	prefixCoin = []byte("c/")
	prefixTx = []byte("t/")
	prefixAddrTx = []byte("T/")
	prefixAddrCoin = []byte("C/")
	prefixFilter = []byte("cf/")
	prefixPruneQ = []byte("b/q/")
)

// ErrNotFound is returned when a lookup finds no record. Callers that
// need to distinguish "unknown" from a real I/O failure use
// errors.Is(err, ErrNotFound).
var ErrNotFound = leveldb.ErrNotFound

// defaultLRUCapacity is sized to at least 2*retarget+100 so locator
// construction, retargeting, and versionbits lookups never fall
// through to disk during ordinary operation.
const defaultLRUCapacity = 2*2016 + 100

// Store is the sole persistence layer behind the chain engine: the
// engine is the only writer (single-writer invariant), but
// Store itself does no locking beyond what the underlying batch commit
// provides, by design — callers serialize writers externally.
type Store struct {
	db *leveldb.DB

	entryCache *lru.KVCache[chainhash.Hash, *ChainEntry]
	heightCache *lru.KVCache[int32, chainhash.Hash]

	spv bool
	pruning bool
	keepBlocks int32
	pruneAfterHeight int32
}

// Options configures a Store at Open time.
type Options struct {
	// SPV, when true, skips all block/undo/coin/tx/address index
	// writes (: "SPV mode skips all b/, u/, c/, t/, T/,
	// C/ writes").
	SPV bool

	// Pruning enables the block-deletion schedule. KeepBlocks is how
	// many blocks behind the connecting tip a block survives before
	// being queued for deletion; PruneAfterHeight is a floor below
	// which pruning never triggers.
	Pruning bool
	KeepBlocks int32
	PruneAfterHeight int32
}

// Open opens (creating if necessary) a chain store rooted at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{
		db: db,
		entryCache: lru.New[chainhash.Hash, *ChainEntry](defaultLRUCapacity),
		heightCache: lru.New[int32, chainhash.Hash](defaultLRUCapacity),
		spv: opts.SPV,
		pruning: opts.Pruning,
		keepBlocks: opts.KeepBlocks,
		pruneAfterHeight: opts.PruneAfterHeight,
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SPV reports whether the store was opened in header-only mode.
func (s *Store) SPV() bool { return s.spv }

// Batch accumulates a set of key/value mutations applied atomically by
// Commit, matching "all updates go through a single
// batch per connect/disconnect operation."
type Batch struct {
	b leveldb.Batch
}

// NewBatch returns an empty Batch.
func (s *Store) NewBatch() *Batch { return &Batch{} }

// Commit applies every mutation staged in b atomically.
func (s *Store) Commit(b *Batch) error {
	return s.db.Write(&b.b, nil)
}

func concatKey(prefix []byte, parts...[]byte) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	key = append(key, prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// get is a thin wrapper that turns leveldb's not-found sentinel into the
// package-level ErrNotFound so callers don't need to import goleveldb.
func (s *Store) get(key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (s *Store) has(key []byte) (bool, error) {
	return s.db.Has(key, nil)
}

// iteratePrefix calls fn for every key/value pair under prefix, in
// ascending key order, stopping early if fn returns false.
func (s *Store) iteratePrefix(prefix []byte, fn func(key, value []byte) bool) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !fn(iter.Key(), iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// Tip returns the current best tip hash.
func (s *Store) Tip() (chainhash.Hash, error) {
	v, err := s.get(prefixTip)
	if err != nil {
		return chainhash.Hash{}, err
	}
	var h chainhash.Hash
	copy(h[:], v)
	return h, nil
}

// SetTip stages the new best tip hash.
func (b *Batch) SetTip(hash chainhash.Hash) {
	b.b.Put(prefixTip, hash[:])
}
