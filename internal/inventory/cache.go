// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package inventory

import (
	"errors"
	"fmt"

	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/store"
)

// Key prefixes
const (
	snapshotKeyPrefix = "inventory:snapshot:"
	truthKeyPrefix    = "inventory:truth:"
)

var (
	// ErrSnapshotNotFound means no remote listing was ever cached for the account.
	ErrSnapshotNotFound = errors.New("no cached inventory snapshot")
	// ErrTruthNotFound means no truth inventory was loaded for the account.
	ErrTruthNotFound = errors.New("no truth inventory loaded")
)

// Cache persists remote snapshots and truth inventories per account.
type Cache struct {
	st *store.Store
}

// NewCache creates a cache over st.
func NewCache(st *store.Store) *Cache {
	return &Cache{st: st}
}

// PutSnapshot stores the latest remote listing of an account.
func (c *Cache) PutSnapshot(snap models.Snapshot) error {
	if err := c.st.Put(snapshotKeyPrefix+snap.AccountID, snap); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the cached remote listing of an account.
func (c *Cache) GetSnapshot(accountID string) (models.Snapshot, error) {
	var snap models.Snapshot
	err := c.st.Get(snapshotKeyPrefix+accountID, &snap)
	if errors.Is(err, store.ErrNotFound) {
		return models.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// PutTruth stores the truth inventory of an account.
func (c *Cache) PutTruth(accountID string, items []models.CanonicalItem) error {
	if items == nil {
		items = []models.CanonicalItem{}
	}
	if err := c.st.Put(truthKeyPrefix+accountID, items); err != nil {
		return fmt.Errorf("cache truth: %w", err)
	}
	return nil
}

// GetTruth loads the truth inventory of an account.
func (c *Cache) GetTruth(accountID string) ([]models.CanonicalItem, error) {
	var items []models.CanonicalItem
	err := c.st.Get(truthKeyPrefix+accountID, &items)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTruthNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load truth: %w", err)
	}
	return items, nil
}

// DeleteAccount drops everything cached for an account.
func (c *Cache) DeleteAccount(accountID string) error {
	if err := c.st.Delete(snapshotKeyPrefix + accountID); err != nil {
		return err
	}
	return c.st.Delete(truthKeyPrefix + accountID)
}
