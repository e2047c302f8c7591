// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package inventory holds the client-side picture of each account's remote
// inventory: an in-memory View that sync passes advance item by item, and a
// Badger-backed Cache that survives restarts.
package inventory

import (
	"sync"
	"time"

	"github.com/tomtom215/cellarsync/internal/models"
)

// View is the last known remote inventory of one account. Safe for
// concurrent use.
type View struct {
	mu        sync.RWMutex
	accountID string
	items     []models.RemoteItem
	index     map[string]int
	fetchedAt time.Time
}

// NewView returns an empty view for accountID.
func NewView(accountID string) *View {
	return &View{accountID: accountID, index: make(map[string]int)}
}

// Replace swaps the whole view for a fresh remote listing.
func (v *View) Replace(items []models.RemoteItem, fetchedAt time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.items = make([]models.RemoteItem, 0, len(items))
	v.index = make(map[string]int, len(items))
	for _, it := range items {
		if _, dup := v.index[it.SKU]; dup {
			continue
		}
		v.index[it.SKU] = len(v.items)
		v.items = append(v.items, it)
	}
	v.fetchedAt = fetchedAt
}

// Apply folds one sync instruction into the view. An insert for a SKU that
// is already present behaves like a set, and a set for an unknown SKU
// appends it.
func (v *View) Apply(u models.InventoryUpdate, at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if i, ok := v.index[u.SKU]; ok {
		v.items[i].Quantity = u.Quantity
		v.items[i].LastSyncedAt = at
		if v.items[i].Name == "" {
			v.items[i].Name = u.Name
		}
		return
	}
	v.index[u.SKU] = len(v.items)
	v.items = append(v.items, models.RemoteItem{
		SKU:          u.SKU,
		Name:         u.Name,
		Quantity:     u.Quantity,
		Status:       models.StatusActive,
		LastSyncedAt: at,
	})
}

// Items returns a copy of the view in remote order.
func (v *View) Items() []models.RemoteItem {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]models.RemoteItem, len(v.items))
	copy(out, v.items)
	return out
}

// Get looks up one SKU.
func (v *View) Get(sku string) (models.RemoteItem, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	i, ok := v.index[sku]
	if !ok {
		return models.RemoteItem{}, false
	}
	return v.items[i], true
}

// Len is the number of distinct SKUs in the view.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// Snapshot captures the view for persistence.
func (v *View) Snapshot() models.Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	items := make([]models.RemoteItem, len(v.items))
	copy(items, v.items)
	return models.Snapshot{AccountID: v.accountID, Items: items, FetchedAt: v.fetchedAt}
}

// FetchedAt is when the view was last replaced from the remote.
func (v *View) FetchedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.fetchedAt
}

// LowStock counts items with quantity strictly below threshold.
func LowStock(items []models.RemoteItem, threshold int) int {
	n := 0
	for _, it := range items {
		if it.Quantity < threshold {
			n++
		}
	}
	return n
}

// LowStockItems returns the items LowStock counts, in input order.
func LowStockItems(items []models.RemoteItem, threshold int) []models.RemoteItem {
	out := make([]models.RemoteItem, 0)
	for _, it := range items {
		if it.Quantity < threshold {
			out = append(out, it)
		}
	}
	return out
}
