// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/goclaw/holomem/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
	InMemory          bool
}

// BadgerStorage implements the Store interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

// Put writes value under key in a single transaction.
func (b *BadgerStorage) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return &storage.InvalidKeyError{Key: key}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := append([]byte(nil), value...)
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return &storage.WriteError{Key: key, Cause: err}
	}
	return nil
}

// Get retrieves the record stored under key.
func (b *BadgerStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &storage.NotFoundError{Key: key}
			}
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the record under key.
func (b *BadgerStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return &storage.WriteError{Key: key, Cause: err}
	}
	return nil
}

// Keys lists every key with the given prefix.
func (b *BadgerStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Badger iterates in byte order already; sort keeps the contract explicit.
	sort.Strings(keys)
	return keys, nil
}

// Close runs one value log GC pass on disk-backed databases and closes the
// database. A GC failure other than nothing to rewrite is returned with any
// close error.
func (b *BadgerStorage) Close() error {
	var gcErr error
	if !b.config.InMemory {
		if err := b.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			gcErr = fmt.Errorf("badger: value log gc: %w", err)
		}
	}
	return errors.Join(gcErr, b.db.Close())
}
