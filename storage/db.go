// Package storage holds the two persistence surfaces described in spec
// §6: the canonical JSON files (blockchain.json, wallets.json) loaded and
// saved by Store, and a secondary, disposable BadgerDB lookup index kept
// only as an acceleration structure over the canonical chain.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/anoncoinproject/anoncoin/nodeerrors"
	"github.com/anoncoinproject/anoncoin/types"
)

// Index is a derived tx-id/block-hash -> height lookup accelerator. It is
// never the source of truth — Store's JSON files are — and is always
// rebuildable from the chain via Rebuild.
type Index struct {
	db *badger.DB
}

// OpenIndex opens or creates the BadgerDB index rooted at path.
func OpenIndex(path string) (*Index, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open index: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// IndexBlock records block's height under both its hash key and every
// transaction ID it contains, and as the latest height. Rebuild calls it
// once per block.
func (idx *Index) IndexBlock(block *types.Block) error {
	return idx.db.Update(func(txn *badger.Txn) error {
		heightBytes := encodeHeight(block.Index)
		if err := txn.Set(blockHashKey(block.Hash), heightBytes); err != nil {
			return err
		}
		for i := range block.Transactions {
			txID, err := block.Transactions[i].ID()
			if err != nil {
				return err
			}
			if err := txn.Set(txKey(txID), heightBytes); err != nil {
				return err
			}
		}
		return txn.Set(latestHeightKey(), heightBytes)
	})
}

// HeightForBlockHash looks up the height of the block with the given hash.
func (idx *Index) HeightForBlockHash(hash string) (uint64, bool, error) {
	return idx.lookup(blockHashKey(hash))
}

// HeightForTxID looks up the height of the block containing a transaction.
func (idx *Index) HeightForTxID(txID string) (uint64, bool, error) {
	return idx.lookup(txKey(txID))
}

// LatestHeight returns the highest height recorded in the index.
func (idx *Index) LatestHeight() (uint64, bool, error) {
	return idx.lookup(latestHeightKey())
}

func (idx *Index) lookup(key []byte) (uint64, bool, error) {
	var height uint64
	var found bool
	err := idx.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			height = binary.LittleEndian.Uint64(val)
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("index lookup: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	return height, found, nil
}

// Rebuild wipes and re-derives the index from chain. cmd/node runs it after
// loading from disk and on every periodic persist; a chain replacement is
// reflected at the next persist.
func (idx *Index) Rebuild(chain types.Chain) error {
	if err := idx.db.DropAll(); err != nil {
		return fmt.Errorf("drop index for rebuild: %w: %v", nodeerrors.ErrStorageIO, err)
	}
	for i := range chain {
		if err := idx.IndexBlock(&chain[i]); err != nil {
			return err
		}
	}
	return nil
}

func encodeHeight(h uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, h)
	return buf
}

func blockHashKey(hash string) []byte { return append([]byte{'h'}, []byte(hash)...) }
func txKey(txID string) []byte        { return append([]byte{'t'}, []byte(txID)...) }
func latestHeightKey() []byte         { return []byte("latest_height") }
