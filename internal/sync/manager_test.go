// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/inventory"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/store"
	"github.com/tomtom215/cellarsync/internal/vinoshipper"
)

type staticAccounts struct {
	list []models.Account
}

func (s *staticAccounts) List() ([]models.Account, error) { return s.list, nil }

func (s *staticAccounts) Get(id string) (models.Account, error) {
	for _, a := range s.list {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("account %s: not found", id)
}

// remoteAccount is an ordered fake of one account's remote inventory.
type remoteAccount struct {
	mu        stdsync.Mutex
	items     []models.RemoteItem
	fetchErr  error
	failSKU   map[string]error
	valid     bool
	fetches   int
	fetchedAt []time.Time
	mutations int
}

func (r *remoteAccount) GetInventory(context.Context) ([]models.RemoteItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	r.fetchedAt = append(r.fetchedAt, time.Now())
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	out := make([]models.RemoteItem, len(r.items))
	copy(out, r.items)
	return out, nil
}

func (r *remoteAccount) CreateProduct(_ context.Context, req vinoshipper.CreateProductRequest) (vinoshipper.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	if err := r.failSKU[req.SKU]; err != nil {
		return nil, err
	}
	r.items = append(r.items, models.RemoteItem{SKU: req.SKU, Name: req.Name, Quantity: req.Quantity})
	return vinoshipper.Result{}, nil
}

func (r *remoteAccount) UpdateInventory(_ context.Context, sku string, quantity int) (vinoshipper.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations++
	if err := r.failSKU[sku]; err != nil {
		return nil, err
	}
	for i := range r.items {
		if r.items[i].SKU == sku {
			r.items[i].Quantity = quantity
		}
	}
	return vinoshipper.Result{}, nil
}

func (r *remoteAccount) ValidateCredentials(context.Context) (bool, error) {
	return r.valid, nil
}

type managerFixture struct {
	manager *Manager
	remotes map[string]*remoteAccount
	log     *activity.Log
	cache   *inventory.Cache
}

func newManagerFixture(t *testing.T, accounts []models.Account, remotes map[string]*remoteAccount) *managerFixture {
	t.Helper()
	st, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cache := inventory.NewCache(st)
	log := activity.NewLog(100)
	factory := func(a models.Account) (AccountClient, error) {
		r, ok := remotes[a.ID]
		if !ok {
			return nil, errors.New("no remote")
		}
		return r, nil
	}
	m := NewManager(&staticAccounts{list: accounts}, factory, cache, log, ManagerConfig{LowStockThreshold: 10})
	return &managerFixture{manager: m, remotes: remotes, log: log, cache: cache}
}

func demoFixture(t *testing.T) *managerFixture {
	t.Helper()
	return newManagerFixture(t,
		[]models.Account{{ID: "demo", Name: "Demo Winery"}},
		map[string]*remoteAccount{
			"demo": {items: []models.RemoteItem{
				{SKU: "WINE-001", Name: "Cabernet Sauvignon 2021", Quantity: 45},
				{SKU: "WINE-999", Name: "Library Release", Quantity: 3},
			}},
		})
}

func messages(l *activity.Log) []string {
	entries := l.Entries(0)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestManager_FullSyncEndToEnd(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	ctx := context.Background()

	if err := f.manager.SetTruth("demo", []models.CanonicalItem{
		{SKU: "WINE-001", Name: "Cabernet Sauvignon 2021", Quantity: 50},
		{SKU: "WINE-002", Name: "Chardonnay 2022", Quantity: 12},
	}); err != nil {
		t.Fatalf("SetTruth() error = %v", err)
	}

	var completed string
	f.manager.OnPassComplete = func(id string, _ PassResult) { completed = id }

	result, err := f.manager.FullSync(ctx, "demo")
	if err != nil {
		t.Fatalf("FullSync() error = %v", err)
	}
	if got := result.Count(models.OutcomeUpdated); got != 1 {
		t.Errorf("updated = %d, want 1", got)
	}
	if got := result.Count(models.OutcomeCreated); got != 1 {
		t.Errorf("created = %d, want 1", got)
	}
	if completed != "demo" {
		t.Errorf("OnPassComplete account = %q, want demo", completed)
	}

	snap, err := f.manager.Inventory(ctx, "demo", false)
	if err != nil {
		t.Fatalf("Inventory() error = %v", err)
	}
	want := map[string]int{"WINE-001": 50, "WINE-002": 12, "WINE-999": 3}
	if len(snap.Items) != len(want) {
		t.Fatalf("view has %d items, want %d", len(snap.Items), len(want))
	}
	for _, it := range snap.Items {
		if want[it.SKU] != it.Quantity {
			t.Errorf("view %s = %d, want %d", it.SKU, it.Quantity, want[it.SKU])
		}
	}

	logged := messages(f.log)
	for _, msg := range []string{
		"Starting full sync for Demo Winery: 2 items",
		"Updated WINE-001: 45 → 50",
		"Created WINE-002 (12 units)",
	} {
		if !contains(logged, msg) {
			t.Errorf("activity log missing %q; got %v", msg, logged)
		}
	}

	cached, err := f.cache.GetSnapshot("demo")
	if err != nil || len(cached.Items) != 3 {
		t.Errorf("cached snapshot = %d items, %v; want 3", len(cached.Items), err)
	}

	// Second pass is a no-op against the remote.
	before := f.remotes["demo"].mutations
	result, err = f.manager.FullSync(ctx, "demo")
	if err != nil {
		t.Fatalf("second FullSync() error = %v", err)
	}
	if f.remotes["demo"].mutations != before {
		t.Errorf("second pass mutated the remote %d times", f.remotes["demo"].mutations-before)
	}
	if got := result.Count(models.OutcomeAlreadyInSync); got != 2 {
		t.Errorf("already_in_sync = %d, want 2", got)
	}
}

func TestManager_PartialSync(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	_ = f.manager.SetTruth("demo", []models.CanonicalItem{{SKU: "WINE-001", Quantity: 50}})

	result, err := f.manager.PartialSync(context.Background(), "demo", []string{"WINE-001", "ZZZ"})
	if err != nil {
		t.Fatalf("PartialSync() error = %v", err)
	}
	if got := kinds(result.Outcomes); !equalKinds(got, []models.OutcomeKind{models.OutcomeUpdated, models.OutcomeSkippedNotInTruth}) {
		t.Errorf("kinds = %v", got)
	}
	if f.remotes["demo"].mutations != 1 {
		t.Errorf("mutations = %d, want 1", f.remotes["demo"].mutations)
	}

	var skipped *activity.Entry
	for _, e := range f.log.Entries(0) {
		if e.Message == "ZZZ not found in truth inventory" {
			e := e
			skipped = &e
		}
	}
	if skipped == nil || skipped.Level != activity.LevelError {
		t.Errorf("skipped entry = %+v, want error level", skipped)
	}
}

func TestManager_SyncWithoutTruth(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)

	if _, err := f.manager.FullSync(context.Background(), "demo"); !errors.Is(err, inventory.ErrTruthNotFound) {
		t.Errorf("FullSync() error = %v, want ErrTruthNotFound", err)
	}
	if f.remotes["demo"].fetches != 0 {
		t.Error("remote fetched without truth")
	}
}

func TestManager_SyncFetchFailure(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	_ = f.manager.SetTruth("demo", []models.CanonicalItem{{SKU: "A", Quantity: 1}})
	f.remotes["demo"].fetchErr = &vinoshipper.APIError{Message: "Unauthorized", StatusCode: 401}

	if _, err := f.manager.FullSync(context.Background(), "demo"); err == nil {
		t.Fatal("FullSync() error = nil, want fetch error")
	}
	if f.remotes["demo"].mutations != 0 {
		t.Error("remote mutated after failed fetch")
	}
	if !contains(messages(f.log), "Could not load inventory for Demo Winery: Unauthorized") {
		t.Errorf("activity = %v", messages(f.log))
	}
}

func TestManager_Compare(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	ctx := context.Background()
	_ = f.manager.SetTruth("demo", []models.CanonicalItem{{SKU: "WINE-001", Quantity: 50}})

	diffs, err := f.manager.Compare(ctx, "demo", true)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(diffs) != 2 {
		t.Fatalf("Compare() = %+v, want 2 rows", diffs)
	}
	if diffs[0].Kind != models.DiffDifferent || *diffs[0].Delta != 5 {
		t.Errorf("diffs[0] = %+v, want different with delta 5", diffs[0])
	}
	if diffs[1].SKU != "WINE-999" || diffs[1].Kind != models.DiffMissing {
		t.Errorf("diffs[1] = %+v, want WINE-999 missing", diffs[1])
	}
	if f.remotes["demo"].mutations != 0 {
		t.Error("Compare() mutated the remote")
	}

	// A cached view is reused without another fetch.
	fetches := f.remotes["demo"].fetches
	if _, err := f.manager.Compare(ctx, "demo", false); err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if f.remotes["demo"].fetches != fetches {
		t.Error("Compare(refresh=false) fetched again")
	}
}

func TestManager_CheckAllAccountsIsolatesFailures(t *testing.T) {
	t.Parallel()

	f := newManagerFixture(t,
		[]models.Account{
			{ID: "a", Name: "Alpha Cellars"},
			{ID: "b", Name: "Broken Vines"},
			{ID: "c", Name: "Cedar Ridge"},
		},
		map[string]*remoteAccount{
			"a": {items: []models.RemoteItem{{SKU: "1", Quantity: 2}, {SKU: "2", Quantity: 40}}},
			"b": {fetchErr: &vinoshipper.APIError{Message: "Service Unavailable", StatusCode: 503}},
			"c": {items: []models.RemoteItem{{SKU: "1", Quantity: 10}}},
		})

	summaries, err := f.manager.CheckAllAccounts(context.Background())
	if err != nil {
		t.Fatalf("CheckAllAccounts() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}

	want := []models.AccountSummary{
		{AccountID: "a", Name: "Alpha Cellars", ItemCount: 2, LowStockCount: 1},
		{AccountID: "b", Name: "Broken Vines", Error: "Service Unavailable"},
		{AccountID: "c", Name: "Cedar Ridge", ItemCount: 1, LowStockCount: 0},
	}
	for i := range want {
		if summaries[i] != want[i] {
			t.Errorf("summaries[%d] = %+v, want %+v", i, summaries[i], want[i])
		}
	}

	logged := messages(f.log)
	for _, msg := range []string{
		"Alpha Cellars: 1 low stock items",
		"Broken Vines: failed to check inventory: Service Unavailable",
		"Cedar Ridge: 0 low stock items",
	} {
		if !contains(logged, msg) {
			t.Errorf("activity log missing %q; got %v", msg, logged)
		}
	}
	for _, r := range f.remotes {
		if r.mutations != 0 {
			t.Error("check-all mutated a remote")
		}
	}
}

func TestManager_CheckAllAccountsSpacesAccounts(t *testing.T) {
	t.Parallel()

	const delay = 50 * time.Millisecond
	remotes := map[string]*remoteAccount{
		"a": {items: []models.RemoteItem{{SKU: "X", Quantity: 20}}},
		"b": {fetchErr: errors.New("unreachable")},
		"c": {items: []models.RemoteItem{{SKU: "Y", Quantity: 2}}},
	}
	f := newManagerFixture(t, []models.Account{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
		{ID: "c", Name: "Gamma"},
	}, remotes)
	f.manager.cfg.AccountDelay = delay

	summaries, err := f.manager.CheckAllAccounts(context.Background())
	if err != nil {
		t.Fatalf("CheckAllAccounts() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("summaries = %d, want 3", len(summaries))
	}

	stamps := make([]time.Time, 0, 3)
	for _, id := range []string{"a", "b", "c"} {
		if n := len(remotes[id].fetchedAt); n != 1 {
			t.Fatalf("account %s fetched %d times, want 1", id, n)
		}
		stamps = append(stamps, remotes[id].fetchedAt[0])
	}
	const minGap = delay - 10*time.Millisecond
	for i := 1; i < len(stamps); i++ {
		if gap := stamps[i].Sub(stamps[i-1]); gap < minGap {
			t.Errorf("gap between account %d and %d = %v, want >= %v", i-1, i, gap, delay)
		}
	}
}

func TestManager_CheckAllAccountsCanceled(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summaries, err := f.manager.CheckAllAccounts(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("CheckAllAccounts() error = %v, want context.Canceled", err)
	}
	if len(summaries) != 0 {
		t.Errorf("summaries = %d, want 0", len(summaries))
	}
}

func TestManager_ValidateAccount(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)

	ok, err := f.manager.ValidateAccount(context.Background(), "demo")
	if err != nil || ok {
		t.Errorf("ValidateAccount() = %v, %v, want false, nil", ok, err)
	}
	f.remotes["demo"].valid = true
	if ok, _ := f.manager.ValidateAccount(context.Background(), "demo"); !ok {
		t.Error("ValidateAccount() = false, want true")
	}
}

func TestManager_ViewRestoredFromCache(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	ctx := context.Background()

	if _, err := f.manager.Inventory(ctx, "demo", true); err != nil {
		t.Fatalf("Inventory() error = %v", err)
	}

	// A second manager over the same cache sees the snapshot without fetching.
	fresh := NewManager(&staticAccounts{list: []models.Account{{ID: "demo", Name: "Demo Winery"}}},
		func(models.Account) (AccountClient, error) { return f.remotes["demo"], nil },
		f.cache, nil, DefaultManagerConfig())
	fetches := f.remotes["demo"].fetches
	snap, err := fresh.Inventory(ctx, "demo", false)
	if err != nil {
		t.Fatalf("Inventory() error = %v", err)
	}
	if len(snap.Items) != 2 || f.remotes["demo"].fetches != fetches {
		t.Errorf("restored %d items with %d extra fetches", len(snap.Items), f.remotes["demo"].fetches-fetches)
	}
}

func TestManager_Forget(t *testing.T) {
	t.Parallel()
	f := demoFixture(t)
	_ = f.manager.SetTruth("demo", []models.CanonicalItem{{SKU: "A", Quantity: 1}})

	if err := f.manager.Forget("demo"); err != nil {
		t.Fatalf("Forget() error = %v", err)
	}
	if _, err := f.manager.Truth("demo"); !errors.Is(err, inventory.ErrTruthNotFound) {
		t.Errorf("Truth() after Forget() error = %v", err)
	}
}
