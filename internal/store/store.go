// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package store is the local key-value persistence layer. It wraps a single
// BadgerDB instance shared by the account registry, the local credential
// fallback and the inventory cache. Values are JSON encoded.
package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is a JSON document store over BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) the database at path. When inMemory is
// set the path is ignored and nothing touches disk.
func Open(path string, inMemory bool) (*Store, error) {
	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		opts = badger.DefaultOptions(path)
		opts.SyncWrites = true
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory is shorthand for Open("", true).
func OpenInMemory() (*Store, error) {
	return Open("", true)
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value under key into v.
func (s *Store) Get(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			return nil
		})
	})
}

// Put encodes v and stores it under key.
func (s *Store) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), data); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		return nil
	})
}

// DeletePrefix removes every key starting with prefix and returns the count.
func (s *Store) DeletePrefix(prefix string) (int, error) {
	keys, err := s.Keys(prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete([]byte(k)); err != nil {
				return fmt.Errorf("delete %s: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Keys lists keys with the given prefix in byte order.
func (s *Store) Keys(prefix string) ([]string, error) {
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return keys, nil
}

// Has reports whether key exists.
func (s *Store) Has(key string) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}
