// Copyright (c) 2021 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package database

import (
	"encoding/binary"

	"github.com/chaincore/btcnode/chainhash"
)

// Pruning reports whether the store is configured to prune old block
// bodies and undo data.
func (s *Store) Pruning() bool { return s.pruning }

func pruneQueueKey(height int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(height))
	return concatKey(prefixPruneQ, buf[:])
}

// ScheduleForPruning stages the b/q/ queue entry that marks connecting
// as eligible for deletion once the chain reaches connecting+keepBlocks,
// per pruning schedule.
func (b *Batch) ScheduleForPruning(s *Store, connecting int32, hash chainhash.Hash) {
	if !s.pruning {
		return
	}
	deleteAt := connecting + s.keepBlocks
	b.b.Put(pruneQueueKey(deleteAt), hash[:])
}

// ApplyPruning dequeues and deletes the block/undo pair scheduled for
// deletion at the block height now being connected, and removes the
// queue entry. It is a no-op below PruneAfterHeight or when pruning is
// disabled, and never prunes below PruneAfterHeight.
func (s *Store) ApplyPruning(b *Batch, currentHeight int32) error {
	if !s.pruning || currentHeight < s.pruneAfterHeight {
		return nil
	}
	key := pruneQueueKey(currentHeight)
	data, err := s.get(key)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var hash chainhash.Hash
	copy(hash[:], data)

	b.b.Delete(key)
	b.DeleteBlock(hash)
	b.DeleteUndoBlock(hash)
	return nil
}
