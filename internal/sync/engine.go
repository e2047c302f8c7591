// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

/*
engine.go - Reconciliation Passes

Each pass is a left fold over the input items. Every step produces exactly
one models.Outcome; errors from the remote become failed outcomes instead of
aborting the fold. Only context cancellation stops a pass early, and then
the outcomes gathered so far are returned alongside the context error.

Per-item decision (shared by full and partial passes):

	remote missing            -> CreateProduct  -> created
	remote qty != truth qty   -> UpdateInventory -> updated
	remote qty == truth qty   -> (no call)      -> already_in_sync
	remote call fails         ->                -> failed

Partial passes additionally report skipped_not_in_truth for requested SKUs
that the truth does not know, without contacting the remote.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/vinoshipper"
)

// DefaultItemDelay is the minimum start-to-start interval between
// consecutive remote mutations within a pass. A call slower than the delay
// is followed immediately by the next one.
const DefaultItemDelay = 600 * time.Millisecond

// Mode names a pass kind in logs and metrics.
type Mode string

const (
	ModeFull    Mode = "full"
	ModePartial Mode = "partial"
)

// InventoryWriter is the part of the API client a pass mutates through.
// *vinoshipper.Client satisfies it.
type InventoryWriter interface {
	CreateProduct(ctx context.Context, req vinoshipper.CreateProductRequest) (vinoshipper.Result, error)
	UpdateInventory(ctx context.Context, sku string, quantity int) (vinoshipper.Result, error)
}

// Observer receives each outcome as soon as it is decided. The Manager
// uses it to advance its remote view and the activity log in real time.
type Observer func(models.Outcome)

// PassResult is the ordered record of one pass.
type PassResult struct {
	Mode       Mode                     `json:"mode"`
	Outcomes   []models.Outcome         `json:"outcomes"`
	Updates    []models.InventoryUpdate `json:"updates"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
}

// Count returns how many outcomes have kind k.
func (r PassResult) Count(k models.OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Clean reports whether no item failed.
func (r PassResult) Clean() bool {
	return r.Count(models.OutcomeFailed) == 0
}

// Engine runs reconciliation passes for one account.
type Engine struct {
	api       InventoryWriter
	itemDelay time.Duration
	now       func() time.Time
}

// NewEngine creates an engine writing through api. A non-positive
// itemDelay disables throttling.
func NewEngine(api InventoryWriter, itemDelay time.Duration) *Engine {
	return &Engine{api: api, itemDelay: itemDelay, now: time.Now}
}

// FullSync pushes every truth item to the remote.
func (e *Engine) FullSync(ctx context.Context, truth []models.CanonicalItem, remote []models.RemoteItem, observe Observer) (PassResult, error) {
	items := dedupeTruth(ctx, truth)
	return e.run(ctx, ModeFull, len(items), func(i int) step {
		return step{item: items[i], known: true}
	}, remote, observe)
}

// PartialSync pushes only the requested SKUs, taking quantities from truth.
// SKUs absent from truth are reported as skipped and never sent.
func (e *Engine) PartialSync(ctx context.Context, skus []string, truth []models.CanonicalItem, remote []models.RemoteItem, observe Observer) (PassResult, error) {
	index := indexTruth(dedupeTruth(ctx, truth))
	requested := dedupeSKUs(skus)
	return e.run(ctx, ModePartial, len(requested), func(i int) step {
		item, ok := index[requested[i]]
		if !ok {
			return step{item: models.CanonicalItem{SKU: requested[i]}}
		}
		return step{item: item, known: true}
	}, remote, observe)
}

// step is one input of the fold: the truth item and whether truth knows it.
type step struct {
	item  models.CanonicalItem
	known bool
}

func (e *Engine) run(ctx context.Context, mode Mode, n int, next func(int) step, remote []models.RemoteItem, observe Observer) (PassResult, error) {
	result := PassResult{
		Mode:      mode,
		Outcomes:  make([]models.Outcome, 0, n),
		Updates:   make([]models.InventoryUpdate, 0, n),
		StartedAt: e.now(),
	}
	remoteIndex := indexRemote(remote)
	throttle := e.newThrottle()
	log := logging.Ctx(ctx).With().Str("mode", string(mode)).Logger()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			result.FinishedAt = e.now()
			return result, err
		}

		s := next(i)
		var out models.Outcome
		if !s.known {
			out = models.Outcome{SKU: s.item.SKU, Kind: models.OutcomeSkippedNotInTruth}
		} else {
			current, exists := remoteIndex[s.item.SKU]
			if needsCall(current, exists, s.item) {
				if err := throttle.Wait(ctx); err != nil {
					result.FinishedAt = e.now()
					return result, err
				}
			}
			out = e.reconcile(ctx, s.item, current, exists)
		}

		result.Outcomes = append(result.Outcomes, out)
		if out.Update != nil {
			result.Updates = append(result.Updates, *out.Update)
		}
		logOutcome(&log, out)
		metrics.RecordSyncOutcome(string(mode), string(out.Kind))
		if observe != nil {
			observe(out)
		}
	}

	result.FinishedAt = e.now()
	return result, nil
}

func needsCall(current models.RemoteItem, exists bool, item models.CanonicalItem) bool {
	return !exists || current.Quantity != item.Quantity
}

// reconcile decides and performs the action for one truth item.
func (e *Engine) reconcile(ctx context.Context, item models.CanonicalItem, current models.RemoteItem, exists bool) models.Outcome {
	out := models.Outcome{SKU: item.SKU, Quantity: item.Quantity}

	switch {
	case !exists:
		_, err := e.api.CreateProduct(ctx, vinoshipper.CreateProductRequest{
			SKU:      item.SKU,
			Name:     item.Name,
			Quantity: item.Quantity,
		})
		if err != nil {
			return failed(out, err)
		}
		out.Kind = models.OutcomeCreated
		out.Update = &models.InventoryUpdate{Action: models.UpdateInsert, SKU: item.SKU, Name: item.Name, Quantity: item.Quantity}

	case current.Quantity != item.Quantity:
		if _, err := e.api.UpdateInventory(ctx, item.SKU, item.Quantity); err != nil {
			return failed(out, err)
		}
		out.Kind = models.OutcomeUpdated
		out.PreviousQuantity = current.Quantity
		out.Update = &models.InventoryUpdate{Action: models.UpdateSet, SKU: item.SKU, Name: current.Name, Quantity: item.Quantity}

	default:
		out.Kind = models.OutcomeAlreadyInSync
		out.Update = &models.InventoryUpdate{Action: models.UpdateSet, SKU: item.SKU, Name: current.Name, Quantity: item.Quantity}
	}
	return out
}

func failed(out models.Outcome, err error) models.Outcome {
	out.Kind = models.OutcomeFailed
	out.Reason = errorReason(err)
	return out
}

func errorReason(err error) string {
	if apiErr, ok := vinoshipper.AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

func logOutcome(log *zerolog.Logger, out models.Outcome) {
	var ev *zerolog.Event
	switch out.Kind {
	case models.OutcomeFailed:
		ev = log.Error().Str("reason", out.Reason)
	case models.OutcomeSkippedNotInTruth:
		ev = log.Error()
	default:
		ev = log.Info()
	}
	ev.Str("sku", out.SKU).Str("outcome", string(out.Kind)).Int("quantity", out.Quantity).Msg(out.Message())
}

// newThrottle returns a limiter releasing one call per itemDelay. The first
// call goes through immediately.
func (e *Engine) newThrottle() *rate.Limiter {
	if e.itemDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(e.itemDelay), 1)
}

// dedupeTruth collapses duplicate SKUs: last occurrence wins, first
// occurrence keeps its position. Blank SKUs are dropped.
func dedupeTruth(ctx context.Context, truth []models.CanonicalItem) []models.CanonicalItem {
	pos := make(map[string]int, len(truth))
	out := make([]models.CanonicalItem, 0, len(truth))
	for _, item := range truth {
		if strings.TrimSpace(item.SKU) == "" {
			continue
		}
		if i, seen := pos[item.SKU]; seen {
			logging.Ctx(ctx).Warn().Str("sku", item.SKU).
				Int("kept_quantity", item.Quantity).Int("dropped_quantity", out[i].Quantity).
				Msg("Duplicate SKU in truth inventory, last occurrence wins")
			out[i] = item
			continue
		}
		pos[item.SKU] = len(out)
		out = append(out, item)
	}
	return out
}

func dedupeSKUs(skus []string) []string {
	seen := make(map[string]struct{}, len(skus))
	out := make([]string, 0, len(skus))
	for _, sku := range skus {
		sku = strings.TrimSpace(sku)
		if sku == "" {
			continue
		}
		if _, ok := seen[sku]; ok {
			continue
		}
		seen[sku] = struct{}{}
		out = append(out, sku)
	}
	return out
}

func indexTruth(items []models.CanonicalItem) map[string]models.CanonicalItem {
	m := make(map[string]models.CanonicalItem, len(items))
	for _, it := range items {
		m[it.SKU] = it
	}
	return m
}

// indexRemote keeps the first occurrence of each SKU.
func indexRemote(items []models.RemoteItem) map[string]models.RemoteItem {
	m := make(map[string]models.RemoteItem, len(items))
	for _, it := range items {
		if _, ok := m[it.SKU]; !ok {
			m[it.SKU] = it
		}
	}
	return m
}
