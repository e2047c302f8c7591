// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package sync

import (
	"context"

	"github.com/tomtom215/cellarsync/internal/models"
)

// Compare diffs truth against remote without side effects. Rows for truth
// items (new, different) come first in truth order, followed by missing
// rows in remote order. SKUs whose quantities agree produce no row.
func Compare(truth []models.CanonicalItem, remote []models.RemoteItem) []models.DiffEntry {
	items := dedupeTruth(context.Background(), truth)
	remoteIndex := indexRemote(remote)
	truthIndex := indexTruth(items)

	diffs := make([]models.DiffEntry, 0)
	for _, item := range items {
		truthQty := item.Quantity
		r, ok := remoteIndex[item.SKU]
		if !ok {
			diffs = append(diffs, models.DiffEntry{
				SKU:      item.SKU,
				Name:     item.Name,
				Kind:     models.DiffNew,
				TruthQty: &truthQty,
			})
			continue
		}
		if r.Quantity != item.Quantity {
			remoteQty := r.Quantity
			delta := truthQty - remoteQty
			diffs = append(diffs, models.DiffEntry{
				SKU:       item.SKU,
				Name:      item.Name,
				Kind:      models.DiffDifferent,
				TruthQty:  &truthQty,
				RemoteQty: &remoteQty,
				Delta:     &delta,
			})
		}
	}

	reported := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		if _, inTruth := truthIndex[r.SKU]; inTruth {
			continue
		}
		if _, dup := reported[r.SKU]; dup {
			continue
		}
		reported[r.SKU] = struct{}{}
		remoteQty := r.Quantity
		diffs = append(diffs, models.DiffEntry{
			SKU:       r.SKU,
			Name:      r.Name,
			Kind:      models.DiffMissing,
			RemoteQty: &remoteQty,
		})
	}
	return diffs
}

// DiffSummary counts rows per kind.
type DiffSummary struct {
	New       int `json:"new"`
	Different int `json:"different"`
	Missing   int `json:"missing"`
}

// Summarize counts the rows of a comparison.
func Summarize(diffs []models.DiffEntry) DiffSummary {
	var s DiffSummary
	for _, d := range diffs {
		switch d.Kind {
		case models.DiffNew:
			s.New++
		case models.DiffDifferent:
			s.Different++
		case models.DiffMissing:
			s.Missing++
		}
	}
	return s
}
