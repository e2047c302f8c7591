// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package models

import "time"

// CanonicalItem is one line of the truth inventory.
type CanonicalItem struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ProductStatus is the remote listing state. The zero value means the
// remote did not say.
type ProductStatus string

const (
	StatusActive   ProductStatus = "active"
	StatusInactive ProductStatus = "inactive"
	StatusSoldOut  ProductStatus = "sold_out"
)

// RemoteItem is a product as reported by the remote service, normalized
// from whatever field names the response used.
type RemoteItem struct {
	SKU          string        `json:"sku"`
	Name         string        `json:"name"`
	Quantity     int           `json:"quantity"`
	Price        *float64      `json:"price,omitempty"`
	Category     string        `json:"category,omitempty"`
	Vintage      string        `json:"vintage,omitempty"`
	BottleSize   string        `json:"bottle_size,omitempty"`
	Status       ProductStatus `json:"status,omitempty"`
	LastSyncedAt time.Time     `json:"last_synced_at"`
}

// Canonical drops the remote-only attributes.
func (r RemoteItem) Canonical() CanonicalItem {
	return CanonicalItem{SKU: r.SKU, Name: r.Name, Quantity: r.Quantity}
}

// Snapshot is an account's remote inventory at a point in time.
type Snapshot struct {
	AccountID string       `json:"account_id"`
	Items     []RemoteItem `json:"items"`
	FetchedAt time.Time    `json:"fetched_at"`
}
