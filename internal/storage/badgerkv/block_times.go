// Package badgerkv keeps confirmed block timestamps in an embedded Badger
// database so restarts do not refetch headers already seen.
package badgerkv

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"dex-ledger/internal/storage"
)

var blockPrefix = []byte("block/")

// BlockTimeStore implements storage.BlockTimeStore on Badger.
type BlockTimeStore struct {
	db *badger.DB
}

// OpenOptions configures the Badger database.
type OpenOptions struct {
	Path     string
	InMemory bool // for tests; Path is ignored
}

// Open opens (or creates) the block time database.
func Open(opts OpenOptions) (*BlockTimeStore, error) {
	var bopts badger.Options
	switch {
	case opts.InMemory:
		bopts = badger.DefaultOptions("").WithInMemory(true)
	case strings.TrimSpace(opts.Path) == "":
		return nil, errors.New("badgerkv: path is required")
	default:
		bopts = badger.DefaultOptions(opts.Path)
	}

	db, err := badger.Open(bopts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BlockTimeStore{db: db}, nil
}

// Close closes the database.
func (s *BlockTimeStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetBlockTime returns the timestamp of block number.
// Returns ErrNotFound if the block is unknown.
func (s *BlockTimeStore) GetBlockTime(_ context.Context, number uint64) (int64, error) {
	var ts int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(number))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("block %d: bad value length %d", number, len(val))
			}
			ts = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("get block time: %w", err)
	}
	return ts, nil
}

// PutBlockTime saves the timestamp of block number.
func (s *BlockTimeStore) PutBlockTime(_ context.Context, number uint64, timestamp int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(timestamp))

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blockKey(number), val)
	})
	if err != nil {
		return fmt.Errorf("put block time: %w", err)
	}
	return nil
}

func blockKey(number uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], number)
	return key
}

var _ storage.BlockTimeStore = (*BlockTimeStore)(nil)
