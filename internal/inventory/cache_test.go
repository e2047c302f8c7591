// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewCache(st)
}

func TestCache_Snapshot(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)

	if _, err := c.GetSnapshot("acct"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("GetSnapshot() error = %v, want ErrSnapshotNotFound", err)
	}

	snap := models.Snapshot{
		AccountID: "acct",
		Items:     []models.RemoteItem{{SKU: "A", Name: "Alpha", Quantity: 3}},
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := c.PutSnapshot(snap); err != nil {
		t.Fatalf("PutSnapshot() error = %v", err)
	}
	got, err := c.GetSnapshot("acct")
	if err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].SKU != "A" || !got.FetchedAt.Equal(snap.FetchedAt) {
		t.Errorf("GetSnapshot() = %+v", got)
	}
}

func TestCache_Truth(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)

	if _, err := c.GetTruth("acct"); !errors.Is(err, ErrTruthNotFound) {
		t.Fatalf("GetTruth() error = %v, want ErrTruthNotFound", err)
	}
	if err := c.PutTruth("acct", nil); err != nil {
		t.Fatalf("PutTruth(nil) error = %v", err)
	}
	items, err := c.GetTruth("acct")
	if err != nil || len(items) != 0 {
		t.Errorf("GetTruth() = %v, %v, want empty", items, err)
	}
}

func TestCache_DeleteAccount(t *testing.T) {
	t.Parallel()
	c := newTestCache(t)

	_ = c.PutSnapshot(models.Snapshot{AccountID: "acct"})
	_ = c.PutTruth("acct", []models.CanonicalItem{{SKU: "A", Quantity: 1}})
	_ = c.PutTruth("other", []models.CanonicalItem{{SKU: "B", Quantity: 1}})

	if err := c.DeleteAccount("acct"); err != nil {
		t.Fatalf("DeleteAccount() error = %v", err)
	}
	if _, err := c.GetSnapshot("acct"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("snapshot survived DeleteAccount(): %v", err)
	}
	if _, err := c.GetTruth("acct"); !errors.Is(err, ErrTruthNotFound) {
		t.Errorf("truth survived DeleteAccount(): %v", err)
	}
	if _, err := c.GetTruth("other"); err != nil {
		t.Errorf("other account truth lost: %v", err)
	}
}
