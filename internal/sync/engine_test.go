// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package sync

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"
	"time"

	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/vinoshipper"
)

type writeCall struct {
	op       string
	sku      string
	quantity int
}

// fakeWriter records calls and applies them to an in-memory remote.
type fakeWriter struct {
	mu     stdsync.Mutex
	calls  []writeCall
	remote map[string]int
	fail   map[string]error
	onCall func(writeCall)
}

func newFakeWriter(remote []models.RemoteItem) *fakeWriter {
	w := &fakeWriter{remote: make(map[string]int), fail: make(map[string]error)}
	for _, r := range remote {
		w.remote[r.SKU] = r.Quantity
	}
	return w
}

func (w *fakeWriter) record(c writeCall) error {
	w.mu.Lock()
	w.calls = append(w.calls, c)
	err := w.fail[c.sku]
	if err == nil {
		w.remote[c.sku] = c.quantity
	}
	hook := w.onCall
	w.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return err
}

func (w *fakeWriter) CreateProduct(_ context.Context, req vinoshipper.CreateProductRequest) (vinoshipper.Result, error) {
	if err := w.record(writeCall{op: "create", sku: req.SKU, quantity: req.Quantity}); err != nil {
		return nil, err
	}
	return vinoshipper.Result{"sku": req.SKU}, nil
}

func (w *fakeWriter) UpdateInventory(_ context.Context, sku string, quantity int) (vinoshipper.Result, error) {
	if err := w.record(writeCall{op: "update", sku: sku, quantity: quantity}); err != nil {
		return nil, err
	}
	return vinoshipper.Result{"sku": sku}, nil
}

func (w *fakeWriter) remoteItems() []models.RemoteItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := make([]models.RemoteItem, 0, len(w.remote))
	for sku, qty := range w.remote {
		items = append(items, models.RemoteItem{SKU: sku, Quantity: qty})
	}
	return items
}

func kinds(outcomes []models.Outcome) []models.OutcomeKind {
	out := make([]models.OutcomeKind, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Kind
	}
	return out
}

func equalKinds(got, want []models.OutcomeKind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestFullSync_CreatesAndUpdates(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "WINE-001", Name: "Cabernet", Quantity: 50},
		{SKU: "WINE-002", Name: "Merlot", Quantity: 12},
	}
	remote := []models.RemoteItem{{SKU: "WINE-001", Name: "Cabernet", Quantity: 45}}
	w := newFakeWriter(remote)

	result, err := NewEngine(w, 0).FullSync(context.Background(), truth, remote, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}

	want := []models.OutcomeKind{models.OutcomeUpdated, models.OutcomeCreated}
	if got := kinds(result.Outcomes); !equalKinds(got, want) {
		t.Errorf("FullSync() kinds = %v, want %v", got, want)
	}
	if got := result.Outcomes[0].PreviousQuantity; got != 45 {
		t.Errorf("updated PreviousQuantity = %d, want 45", got)
	}
	if got := result.Outcomes[0].Message(); got != "Updated WINE-001: 45 → 50" {
		t.Errorf("updated Message() = %q", got)
	}
	if got := result.Outcomes[1].Message(); got != "Created WINE-002 (12 units)" {
		t.Errorf("created Message() = %q", got)
	}
	if len(w.calls) != 2 {
		t.Fatalf("remote calls = %d, want 2", len(w.calls))
	}
	if w.calls[0] != (writeCall{op: "update", sku: "WINE-001", quantity: 50}) {
		t.Errorf("calls[0] = %+v", w.calls[0])
	}
	if w.calls[1] != (writeCall{op: "create", sku: "WINE-002", quantity: 12}) {
		t.Errorf("calls[1] = %+v", w.calls[1])
	}
	if len(result.Updates) != 2 {
		t.Fatalf("Updates = %d, want 2", len(result.Updates))
	}
	if result.Updates[1].Action != models.UpdateInsert {
		t.Errorf("Updates[1].Action = %q, want %q", result.Updates[1].Action, models.UpdateInsert)
	}
	if !result.Clean() {
		t.Error("Clean() = false, want true")
	}
}

func TestFullSync_SecondPassIsNoop(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 0},
	}
	w := newFakeWriter(nil)
	engine := NewEngine(w, 0)

	if _, err := engine.FullSync(context.Background(), truth, w.remoteItems(), nil); err != nil {
		t.Fatalf("first FullSync() error = %v", err)
	}
	first := len(w.calls)

	result, err := engine.FullSync(context.Background(), truth, w.remoteItems(), nil)
	if err != nil {
		t.Fatalf("second FullSync() error = %v", err)
	}
	if got := len(w.calls) - first; got != 0 {
		t.Errorf("second pass made %d calls, want 0", got)
	}
	if got := result.Count(models.OutcomeAlreadyInSync); got != 3 {
		t.Errorf("already_in_sync = %d, want 3", got)
	}
}

func TestFullSync_NeverTouchesRemoteOnlyItems(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{{SKU: "WINE-001", Quantity: 50}}
	remote := []models.RemoteItem{
		{SKU: "WINE-001", Quantity: 45},
		{SKU: "WINE-999", Quantity: 7},
	}
	w := newFakeWriter(remote)

	result, err := NewEngine(w, 0).FullSync(context.Background(), truth, remote, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if len(result.Outcomes) != 1 {
		t.Errorf("outcomes = %d, want 1", len(result.Outcomes))
	}
	for _, c := range w.calls {
		if c.sku == "WINE-999" {
			t.Errorf("remote-only SKU was contacted: %+v", c)
		}
	}
	if got := w.remote["WINE-999"]; got != 7 {
		t.Errorf("WINE-999 quantity = %d, want 7", got)
	}
}

func TestFullSync_FailureDoesNotStopPass(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 3},
	}
	w := newFakeWriter(nil)
	w.fail["B"] = &vinoshipper.APIError{Message: "Invalid SKU", StatusCode: 400, Kind: vinoshipper.KindTerminalService}

	result, err := NewEngine(w, 0).FullSync(context.Background(), truth, nil, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}

	want := []models.OutcomeKind{models.OutcomeCreated, models.OutcomeFailed, models.OutcomeCreated}
	if got := kinds(result.Outcomes); !equalKinds(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
	if got := result.Outcomes[1].Reason; got != "Invalid SKU" {
		t.Errorf("Reason = %q, want %q", got, "Invalid SKU")
	}
	if got := result.Outcomes[1].Message(); got != "Failed to sync B: Invalid SKU" {
		t.Errorf("Message() = %q", got)
	}
	if result.Outcomes[1].Update != nil {
		t.Error("failed outcome carries an update")
	}
	if len(result.Updates) != 2 {
		t.Errorf("Updates = %d, want 2", len(result.Updates))
	}
	if result.Clean() {
		t.Error("Clean() = true, want false")
	}
}

func TestFullSync_PlainErrorReason(t *testing.T) {
	t.Parallel()

	w := newFakeWriter(nil)
	w.fail["A"] = errors.New("connection reset")

	result, err := NewEngine(w, 0).FullSync(context.Background(), []models.CanonicalItem{{SKU: "A", Quantity: 1}}, nil, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if got := result.Outcomes[0].Reason; got != "connection reset" {
		t.Errorf("Reason = %q, want %q", got, "connection reset")
	}
}

func TestFullSync_DuplicateTruthLastWins(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "A", Quantity: 9},
		{SKU: "  ", Quantity: 4},
	}
	w := newFakeWriter(nil)

	result, err := NewEngine(w, 0).FullSync(context.Background(), truth, nil, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(result.Outcomes))
	}
	if result.Outcomes[0].SKU != "A" || result.Outcomes[0].Quantity != 9 {
		t.Errorf("Outcomes[0] = %+v, want A with quantity 9", result.Outcomes[0])
	}
	if result.Outcomes[1].SKU != "B" {
		t.Errorf("Outcomes[1].SKU = %q, want B", result.Outcomes[1].SKU)
	}
}

func TestFullSync_ObserverSeesEveryOutcomeInOrder(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
	}
	remote := []models.RemoteItem{{SKU: "B", Quantity: 2}}
	w := newFakeWriter(remote)

	var seen []string
	result, err := NewEngine(w, 0).FullSync(context.Background(), truth, remote, func(o models.Outcome) {
		seen = append(seen, o.SKU+":"+string(o.Kind))
	})
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	want := []string{"A:created", "B:already_in_sync"}
	if len(seen) != len(want) {
		t.Fatalf("observer saw %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("observer[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
	if len(result.Outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2", len(result.Outcomes))
	}
}

func TestFullSync_CancelReturnsPartialResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 3},
	}
	w := newFakeWriter(nil)
	w.onCall = func(c writeCall) {
		if c.sku == "A" {
			cancel()
		}
	}

	result, err := NewEngine(w, 0).FullSync(ctx, truth, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FullSync() error = %v, want context.Canceled", err)
	}
	if len(result.Outcomes) != 1 || result.Outcomes[0].SKU != "A" {
		t.Errorf("Outcomes = %+v, want only A", result.Outcomes)
	}
	if len(w.calls) != 1 {
		t.Errorf("remote calls = %d, want 1", len(w.calls))
	}
}

func TestFullSync_ThrottlesRemoteCalls(t *testing.T) {
	t.Parallel()

	const delay = 50 * time.Millisecond
	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 3},
		{SKU: "D", Quantity: 4},
	}
	remote := []models.RemoteItem{
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 9},
	}
	w := newFakeWriter(remote)
	var stamps []time.Time
	w.onCall = func(writeCall) { stamps = append(stamps, time.Now()) }

	result, err := NewEngine(w, delay).FullSync(context.Background(), truth, remote, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	want := []models.OutcomeKind{models.OutcomeCreated, models.OutcomeAlreadyInSync, models.OutcomeUpdated, models.OutcomeCreated}
	if got := kinds(result.Outcomes); !equalKinds(got, want) {
		t.Fatalf("FullSync() kinds = %v, want %v", got, want)
	}
	if len(stamps) != 3 {
		t.Fatalf("remote calls = %d, want 3", len(stamps))
	}

	// A little slack for the gap between the limiter's reservation and
	// the recorded timestamp of the first call.
	const minGap = delay - 10*time.Millisecond
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < minGap {
			t.Errorf("gap between call %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestFullSync_NoDelayWithoutRemoteCalls(t *testing.T) {
	t.Parallel()

	const delay = 300 * time.Millisecond
	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 3},
	}
	remote := []models.RemoteItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 2},
		{SKU: "C", Quantity: 3},
	}
	w := newFakeWriter(remote)
	engine := NewEngine(w, delay)

	start := time.Now()
	if _, err := engine.FullSync(context.Background(), truth, remote, nil); err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if _, err := engine.PartialSync(context.Background(), []string{"X", "Y", "A", "Z"}, truth, remote, nil); err != nil {
		t.Fatalf("PartialSync() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed >= delay {
		t.Errorf("in-sync and skipped items took %v, want < %v", elapsed, delay)
	}
	if len(w.calls) != 0 {
		t.Errorf("remote calls = %d, want 0", len(w.calls))
	}
}

func TestFullSync_EmptyTruth(t *testing.T) {
	t.Parallel()

	w := newFakeWriter(nil)
	result, err := NewEngine(w, 0).FullSync(context.Background(), nil, []models.RemoteItem{{SKU: "X", Quantity: 1}}, nil)
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if len(result.Outcomes) != 0 || len(w.calls) != 0 {
		t.Errorf("outcomes = %d, calls = %d, want 0 and 0", len(result.Outcomes), len(w.calls))
	}
	if result.Mode != ModeFull {
		t.Errorf("Mode = %q, want %q", result.Mode, ModeFull)
	}
}

func TestPartialSync(t *testing.T) {
	t.Parallel()

	truth := []models.CanonicalItem{
		{SKU: "A", Quantity: 5},
		{SKU: "B", Quantity: 6},
		{SKU: "C", Quantity: 7},
	}
	remote := []models.RemoteItem{
		{SKU: "A", Quantity: 1},
		{SKU: "B", Quantity: 6},
	}

	tests := []struct {
		name      string
		skus      []string
		wantKinds []models.OutcomeKind
		wantCalls int
	}{
		{
			name:      "subset in requested order",
			skus:      []string{"C", "A"},
			wantKinds: []models.OutcomeKind{models.OutcomeCreated, models.OutcomeUpdated},
			wantCalls: 2,
		},
		{
			name:      "unknown sku is skipped without a call",
			skus:      []string{"ZZZ"},
			wantKinds: []models.OutcomeKind{models.OutcomeSkippedNotInTruth},
			wantCalls: 0,
		},
		{
			name:      "in sync item makes no call",
			skus:      []string{"B"},
			wantKinds: []models.OutcomeKind{models.OutcomeAlreadyInSync},
			wantCalls: 0,
		},
		{
			name:      "duplicate requests processed once",
			skus:      []string{"A", " A ", "A"},
			wantKinds: []models.OutcomeKind{models.OutcomeUpdated},
			wantCalls: 1,
		},
		{
			name:      "empty request",
			skus:      nil,
			wantKinds: []models.OutcomeKind{},
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := newFakeWriter(remote)
			result, err := NewEngine(w, 0).PartialSync(context.Background(), tt.skus, truth, remote, nil)
			if err != nil {
				t.Fatalf("PartialSync() error = %v", err)
			}
			if got := kinds(result.Outcomes); !equalKinds(got, tt.wantKinds) {
				t.Errorf("PartialSync() kinds = %v, want %v", got, tt.wantKinds)
			}
			if len(w.calls) != tt.wantCalls {
				t.Errorf("remote calls = %d, want %d", len(w.calls), tt.wantCalls)
			}
			if result.Mode != ModePartial {
				t.Errorf("Mode = %q, want %q", result.Mode, ModePartial)
			}
		})
	}
}

func TestPartialSync_SkippedMessage(t *testing.T) {
	t.Parallel()

	w := newFakeWriter(nil)
	result, err := NewEngine(w, 0).PartialSync(context.Background(), []string{"ZZZ"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("PartialSync() error = %v", err)
	}
	out := result.Outcomes[0]
	if out.Succeeded() {
		t.Error("Succeeded() = true for skipped item")
	}
	if got := out.Message(); got != "ZZZ not found in truth inventory" {
		t.Errorf("Message() = %q", got)
	}
	if out.Update != nil {
		t.Error("skipped outcome carries an update")
	}
}

func TestNeedsCall(t *testing.T) {
	t.Parallel()

	item := models.CanonicalItem{SKU: "A", Quantity: 3}
	tests := []struct {
		name    string
		current models.RemoteItem
		exists  bool
		want    bool
	}{
		{"missing", models.RemoteItem{}, false, true},
		{"differs", models.RemoteItem{SKU: "A", Quantity: 2}, true, true},
		{"equal", models.RemoteItem{SKU: "A", Quantity: 3}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := needsCall(tt.current, tt.exists, item); got != tt.want {
				t.Errorf("needsCall() = %v, want %v", got, tt.want)
			}
		})
	}
}
