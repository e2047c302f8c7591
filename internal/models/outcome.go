// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package models

import "fmt"

// OutcomeKind classifies what a reconciliation pass did with one SKU.
type OutcomeKind string

const (
	OutcomeCreated           OutcomeKind = "created"
	OutcomeUpdated           OutcomeKind = "updated"
	OutcomeAlreadyInSync     OutcomeKind = "already_in_sync"
	OutcomeSkippedNotInTruth OutcomeKind = "skipped_not_in_truth"
	OutcomeFailed            OutcomeKind = "failed"
)

// OutcomeKinds lists every kind in reporting order.
var OutcomeKinds = []OutcomeKind{
	OutcomeCreated,
	OutcomeUpdated,
	OutcomeAlreadyInSync,
	OutcomeSkippedNotInTruth,
	OutcomeFailed,
}

// Outcome is the per-item result of a sync pass.
type Outcome struct {
	SKU  string      `json:"sku"`
	Kind OutcomeKind `json:"kind"`

	// Quantity is the truth quantity pushed (or already present).
	Quantity int `json:"quantity"`
	// PreviousQuantity is the remote quantity before an update.
	PreviousQuantity int `json:"previous_quantity,omitempty"`
	// Reason carries the error message for failed items.
	Reason string `json:"reason,omitempty"`

	// Update is the change the caller should apply to its remote view.
	// Nil for skipped and failed items.
	Update *InventoryUpdate `json:"update,omitempty"`
}

// Succeeded reports whether the remote now matches the truth for this SKU.
func (o Outcome) Succeeded() bool {
	switch o.Kind {
	case OutcomeCreated, OutcomeUpdated, OutcomeAlreadyInSync:
		return true
	default:
		return false
	}
}

// Message renders the outcome the way the activity log shows it.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeCreated:
		return fmt.Sprintf("Created %s (%d units)", o.SKU, o.Quantity)
	case OutcomeUpdated:
		return fmt.Sprintf("Updated %s: %d → %d", o.SKU, o.PreviousQuantity, o.Quantity)
	case OutcomeAlreadyInSync:
		return fmt.Sprintf("%s already in sync", o.SKU)
	case OutcomeSkippedNotInTruth:
		return fmt.Sprintf("%s not found in truth inventory", o.SKU)
	case OutcomeFailed:
		return fmt.Sprintf("Failed to sync %s: %s", o.SKU, o.Reason)
	default:
		return o.SKU
	}
}

// UpdateAction says how an InventoryUpdate changes the remote view.
type UpdateAction string

const (
	UpdateInsert UpdateAction = "insert"
	UpdateSet    UpdateAction = "set"
)

// InventoryUpdate is an instruction for whoever owns the in-memory remote
// view. The engine emits these instead of touching shared state.
type InventoryUpdate struct {
	Action   UpdateAction `json:"action"`
	SKU      string       `json:"sku"`
	Name     string       `json:"name"`
	Quantity int          `json:"quantity"`
}

// DiffKind classifies a comparison row.
type DiffKind string

const (
	DiffNew       DiffKind = "new"       // in truth, not remote
	DiffDifferent DiffKind = "different" // in both, quantities differ
	DiffMissing   DiffKind = "missing"   // in remote, not truth
)

// DiffEntry is one row of a truth/remote comparison. TruthQty is nil for
// missing rows; RemoteQty and Delta are nil for new rows.
type DiffEntry struct {
	SKU       string   `json:"sku"`
	Name      string   `json:"name"`
	Kind      DiffKind `json:"kind"`
	TruthQty  *int     `json:"truth_qty,omitempty"`
	RemoteQty *int     `json:"remote_qty,omitempty"`
	Delta     *int     `json:"delta,omitempty"`
}

// BatchResult is the per-item result of a batch inventory update.
type BatchResult struct {
	SKU     string `json:"sku"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
