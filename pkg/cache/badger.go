package cache

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore persists cache entries in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (creating if needed) a Badger-backed store in dir.
// An empty dir opens the store in memory, which is what the tests and
// --no-cache runs use.
func OpenBadger(dir string) (*BadgerStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	// Badger's own logging is noisy at startup; the CLI reports cache
	// activity itself.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Get implements Store.
func (s *BadgerStore) Get(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read cache key %q: %w", key, err)
	}
	return value, nil
}

// Set implements Store.
func (s *BadgerStore) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("failed to write cache key %q: %w", key, err)
	}
	return nil
}

// Keys implements Store.
func (s *BadgerStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	return keys, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
