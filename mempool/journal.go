// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"bytes"
	"fmt"
	"time"

	"github.com/chaincore/btcnode/chainhash"
	"github.com/chaincore/btcnode/wire"
	bolt "go.etcd.io/bbolt"
)

var journalBucket = []byte("mempool_journal")

// Journal persists the mempool's resident transactions across restarts
// in a bbolt database, separate from the chain engine's own LevelDB
// store: calls this an "ephemeral on-disk store" since it
// is advisory, not authoritative, and may be discarded and rebuilt from
// peers at any time.
type Journal struct {
	db *bolt.DB
}

// OpenJournal opens (creating if necessary) the bbolt-backed journal at
// path.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open mempool journal: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(journalBucket)
			return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create mempool journal bucket: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying bbolt database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Put records tx in the journal, keyed by its hash.
func (j *Journal) Put(tx *wire.MsgTx) error {
	var buf bytes.Buffer
	if err := tx.BtcEncode(&buf, wire.ProtocolVersion); err != nil {
		return err
	}
	hash := tx.TxHash()
	return j.db.Update(func(dbTx *bolt.Tx) error {
			return dbTx.Bucket(journalBucket).Put(hash[:], buf.Bytes())
	})
}

// Delete removes a transaction from the journal, a no-op if absent.
func (j *Journal) Delete(hash chainhash.Hash) error {
	return j.db.Update(func(dbTx *bolt.Tx) error {
			return dbTx.Bucket(journalBucket).Delete(hash[:])
	})
}

// LoadAll returns every transaction currently recorded in the journal,
// the set a freshly started node re-admits through the normal pipeline
// before considering the mempool warm.
func (j *Journal) LoadAll() ([]*wire.MsgTx, error) {
	var txs []*wire.MsgTx
	err := j.db.View(func(dbTx *bolt.Tx) error {
			return dbTx.Bucket(journalBucket).ForEach(func(_, v []byte) error {
					tx := new(wire.MsgTx)
					if err := tx.BtcDecode(bytes.NewReader(v), wire.ProtocolVersion); err != nil {
						return err
					}
					txs = append(txs, tx)
					return nil
				})
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}
