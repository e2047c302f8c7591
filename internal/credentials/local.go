// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package credentials

import (
	"errors"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/store"
)

const localKeyPrefix = "credential:"

// migrationMarker is set in the local store once its values moved to the keyring.
const migrationMarker = "migration:keyring:v1"

// BadgerStore is the local fallback store.
type BadgerStore struct {
	st *store.Store
}

// NewBadgerStore wraps st.
func NewBadgerStore(st *store.Store) *BadgerStore {
	return &BadgerStore{st: st}
}

// Get reads key.
func (b *BadgerStore) Get(key string) (string, error) {
	var v string
	err := b.st.Get(localKeyPrefix+key, &v)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

// Set writes key.
func (b *BadgerStore) Set(key, value string) error {
	return b.st.Put(localKeyPrefix+key, value)
}

// Delete removes key.
func (b *BadgerStore) Delete(key string) error {
	return b.st.Delete(localKeyPrefix + key)
}

// FallbackStore reads and writes Primary, falling back to Fallback when
// Primary errors or (for reads) does not have the key.
type FallbackStore struct {
	Primary  Store
	Fallback Store
}

// Get tries Primary first.
func (f *FallbackStore) Get(key string) (string, error) {
	v, err := f.Primary.Get(key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrNotFound) {
		logging.Warn().Err(err).Str("key", key).Msg("Primary credential store read failed, using fallback")
	}
	return f.Fallback.Get(key)
}

// Set writes Primary, or Fallback if Primary fails.
func (f *FallbackStore) Set(key, value string) error {
	if err := f.Primary.Set(key, value); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Primary credential store write failed, using fallback")
		return f.Fallback.Set(key, value)
	}
	return nil
}

// Delete removes key from both stores.
func (f *FallbackStore) Delete(key string) error {
	perr := f.Primary.Delete(key)
	ferr := f.Fallback.Delete(key)
	return errors.Join(perr, ferr)
}

// Migrate copies keys present in from into to, removes them from from, and
// marks from as migrated so later calls are no-ops. It returns how many
// keys moved.
func Migrate(to Store, from *BadgerStore, keys []string) (int, error) {
	done, err := from.st.Has(migrationMarker)
	if err != nil {
		return 0, err
	}
	if done {
		return 0, nil
	}

	moved := 0
	for _, key := range keys {
		v, err := from.Get(key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return moved, err
		}
		if err := to.Set(key, v); err != nil {
			return moved, err
		}
		if err := from.Delete(key); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, from.st.Put(migrationMarker, true)
}
