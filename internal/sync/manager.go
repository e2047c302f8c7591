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
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/inventory"
	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/metrics"
	"github.com/tomtom215/cellarsync/internal/models"
)

// Defaults for ManagerConfig.
const (
	DefaultAccountDelay      = 300 * time.Millisecond
	DefaultLowStockThreshold = 10
)

// AccountSource looks up configured accounts.
type AccountSource interface {
	List() ([]models.Account, error)
	Get(id string) (models.Account, error)
}

// AccountClient is everything the manager needs from a per-account API
// client. *vinoshipper.Client satisfies it.
type AccountClient interface {
	InventoryWriter
	GetInventory(ctx context.Context) ([]models.RemoteItem, error)
	ValidateCredentials(ctx context.Context) (bool, error)
}

// ClientFactory builds the API client for an account.
type ClientFactory func(models.Account) (AccountClient, error)

// SnapshotStore persists remote snapshots and truth inventories.
// *inventory.Cache satisfies it.
type SnapshotStore interface {
	PutSnapshot(snap models.Snapshot) error
	GetSnapshot(accountID string) (models.Snapshot, error)
	PutTruth(accountID string, items []models.CanonicalItem) error
	GetTruth(accountID string) ([]models.CanonicalItem, error)
	DeleteAccount(accountID string) error
}

// ActivityRecorder receives human-readable progress lines.
// *activity.Log satisfies it.
type ActivityRecorder interface {
	Add(accountID string, level activity.Level, message string) activity.Entry
}

// ManagerConfig tunes pacing and the low-stock report.
type ManagerConfig struct {
	ItemDelay         time.Duration
	AccountDelay      time.Duration
	LowStockThreshold int
}

// DefaultManagerConfig returns the stock pacing.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		ItemDelay:         DefaultItemDelay,
		AccountDelay:      DefaultAccountDelay,
		LowStockThreshold: DefaultLowStockThreshold,
	}
}

// Manager owns the per-account remote views and runs passes and checks
// on behalf of the CLI, the HTTP API and the assistant dispatcher.
type Manager struct {
	accounts AccountSource
	factory  ClientFactory
	cache    SnapshotStore
	activity ActivityRecorder
	cfg      ManagerConfig
	now      func() time.Time

	// OnPassComplete, when set, is called after every finished pass.
	OnPassComplete func(accountID string, result PassResult)

	syncMu stdsync.Mutex

	mu      stdsync.Mutex
	views   map[string]*inventory.View
	clients map[string]AccountClient
}

// NewManager wires a manager. rec may be nil.
func NewManager(accounts AccountSource, factory ClientFactory, cache SnapshotStore, rec ActivityRecorder, cfg ManagerConfig) *Manager {
	if cfg.LowStockThreshold <= 0 {
		cfg.LowStockThreshold = DefaultLowStockThreshold
	}
	return &Manager{
		accounts: accounts,
		factory:  factory,
		cache:    cache,
		activity: rec,
		cfg:      cfg,
		now:      time.Now,
		views:    make(map[string]*inventory.View),
		clients:  make(map[string]AccountClient),
	}
}

// Inventory returns the remote view of an account. With refresh unset a
// view already fetched (or restored from the cache) is returned as is.
func (m *Manager) Inventory(ctx context.Context, accountID string, refresh bool) (models.Snapshot, error) {
	acct, err := m.accounts.Get(accountID)
	if err != nil {
		return models.Snapshot{}, err
	}
	view := m.view(acct.ID)
	if !refresh && !view.FetchedAt().IsZero() {
		return view.Snapshot(), nil
	}
	if _, err := m.refresh(ctx, acct); err != nil {
		return models.Snapshot{}, err
	}
	return view.Snapshot(), nil
}

// SetTruth replaces the truth inventory of an account.
func (m *Manager) SetTruth(accountID string, items []models.CanonicalItem) error {
	acct, err := m.accounts.Get(accountID)
	if err != nil {
		return err
	}
	if err := m.cache.PutTruth(acct.ID, items); err != nil {
		return err
	}
	m.record(acct.ID, activity.LevelInfo, fmt.Sprintf("Loaded %d items from CSV for %s", len(items), acct.Name))
	return nil
}

// Truth returns the stored truth inventory of an account.
func (m *Manager) Truth(accountID string) ([]models.CanonicalItem, error) {
	acct, err := m.accounts.Get(accountID)
	if err != nil {
		return nil, err
	}
	return m.cache.GetTruth(acct.ID)
}

// FullSync pushes the whole truth inventory of an account.
func (m *Manager) FullSync(ctx context.Context, accountID string) (PassResult, error) {
	return m.runPass(ctx, accountID, ModeFull, nil)
}

// PartialSync pushes the listed SKUs of an account.
func (m *Manager) PartialSync(ctx context.Context, accountID string, skus []string) (PassResult, error) {
	return m.runPass(ctx, accountID, ModePartial, skus)
}

func (m *Manager) runPass(ctx context.Context, accountID string, mode Mode, skus []string) (PassResult, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	acct, err := m.accounts.Get(accountID)
	if err != nil {
		return PassResult{}, err
	}
	truth, err := m.cache.GetTruth(acct.ID)
	if err != nil {
		return PassResult{}, fmt.Errorf("%s: %w", acct.Name, err)
	}
	client, err := m.client(acct)
	if err != nil {
		return PassResult{}, err
	}

	ctx = passContext(ctx, acct)
	log := logging.Ctx(ctx)

	if mode == ModeFull {
		m.record(acct.ID, activity.LevelInfo, fmt.Sprintf("Starting full sync for %s: %d items", acct.Name, len(truth)))
	} else {
		m.record(acct.ID, activity.LevelInfo, fmt.Sprintf("Starting partial sync for %s: %d SKUs", acct.Name, len(skus)))
	}

	remote, err := m.refresh(ctx, acct)
	if err != nil {
		m.record(acct.ID, activity.LevelError, fmt.Sprintf("Could not load inventory for %s: %s", acct.Name, errorReason(err)))
		return PassResult{}, err
	}

	view := m.view(acct.ID)
	observe := func(o models.Outcome) {
		if o.Update != nil {
			view.Apply(*o.Update, m.now())
		}
		m.record(acct.ID, activity.LevelFor(o.Kind), o.Message())
	}

	engine := NewEngine(client, m.cfg.ItemDelay)
	var result PassResult
	if mode == ModeFull {
		result, err = engine.FullSync(ctx, truth, remote, observe)
	} else {
		result, err = engine.PartialSync(ctx, skus, truth, remote, observe)
	}

	m.persist(ctx, view)
	metrics.RecordSyncPass(string(mode), acct.Name, result.FinishedAt.Sub(result.StartedAt), err == nil && result.Clean())

	level := activity.LevelSuccess
	if !result.Clean() || err != nil {
		level = activity.LevelError
	}
	m.record(acct.ID, level, fmt.Sprintf("Sync complete for %s: %d created, %d updated, %d in sync, %d skipped, %d failed",
		acct.Name,
		result.Count(models.OutcomeCreated),
		result.Count(models.OutcomeUpdated),
		result.Count(models.OutcomeAlreadyInSync),
		result.Count(models.OutcomeSkippedNotInTruth),
		result.Count(models.OutcomeFailed)))
	log.Info().
		Str("mode", string(mode)).
		Int("items", len(result.Outcomes)).
		Int("failed", result.Count(models.OutcomeFailed)).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Sync pass finished")

	if m.OnPassComplete != nil {
		m.OnPassComplete(acct.ID, result)
	}
	return result, err
}

// Compare diffs the truth inventory of an account against its remote view.
func (m *Manager) Compare(ctx context.Context, accountID string, refresh bool) ([]models.DiffEntry, error) {
	truth, err := m.Truth(accountID)
	if err != nil {
		return nil, err
	}
	snap, err := m.Inventory(ctx, accountID, refresh)
	if err != nil {
		return nil, err
	}
	return Compare(truth, snap.Items), nil
}

// CheckAllAccounts fetches every account's inventory, one account at a
// time, and reports its size and low-stock count. An account whose fetch
// fails gets a summary with Error set; the sweep moves on. Only context
// cancellation stops it early, returning the summaries gathered so far.
func (m *Manager) CheckAllAccounts(ctx context.Context) ([]models.AccountSummary, error) {
	list, err := m.accounts.List()
	if err != nil {
		return nil, err
	}

	m.record("", activity.LevelInfo, "Checking inventory across all accounts...")
	limiter := rate.NewLimiter(rate.Inf, 1)
	if m.cfg.AccountDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(m.cfg.AccountDelay), 1)
	}

	summaries := make([]models.AccountSummary, 0, len(list))
	for _, acct := range list {
		if err := limiter.Wait(ctx); err != nil {
			return summaries, err
		}

		summary := models.AccountSummary{AccountID: acct.ID, Name: acct.Name}
		items, err := m.refresh(passContext(ctx, acct), acct)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summaries, ctxErr
			}
			summary.Error = errorReason(err)
			metrics.AccountCheckFailures.Inc()
			logging.Ctx(ctx).Error().Err(err).Str("account", acct.Name).Msg("Account inventory check failed")
			m.record(acct.ID, activity.LevelError, fmt.Sprintf("%s: failed to check inventory: %s", acct.Name, summary.Error))
			summaries = append(summaries, summary)
			continue
		}

		summary.ItemCount = len(items)
		summary.LowStockCount = inventory.LowStock(items, m.cfg.LowStockThreshold)
		level := activity.LevelSuccess
		if summary.LowStockCount > 0 {
			level = activity.LevelInfo
		}
		m.record(acct.ID, level, fmt.Sprintf("%s: %d low stock items", acct.Name, summary.LowStockCount))
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ValidateAccount checks the stored credential of an account.
func (m *Manager) ValidateAccount(ctx context.Context, accountID string) (bool, error) {
	acct, err := m.accounts.Get(accountID)
	if err != nil {
		return false, err
	}
	client, err := m.client(acct)
	if err != nil {
		return false, err
	}
	ok, err := client.ValidateCredentials(passContext(ctx, acct))
	if err != nil {
		return false, err
	}
	if ok {
		m.record(acct.ID, activity.LevelSuccess, fmt.Sprintf("Credentials for %s are valid", acct.Name))
	} else {
		m.record(acct.ID, activity.LevelError, fmt.Sprintf("Credentials for %s were rejected", acct.Name))
	}
	return ok, nil
}

// Forget drops the cached client, view and persisted data of an account.
func (m *Manager) Forget(accountID string) error {
	m.mu.Lock()
	delete(m.clients, accountID)
	delete(m.views, accountID)
	m.mu.Unlock()
	metrics.LowStockItems.DeleteLabelValues(accountID)
	return m.cache.DeleteAccount(accountID)
}

// refresh fetches the remote inventory and replaces the account's view.
func (m *Manager) refresh(ctx context.Context, acct models.Account) ([]models.RemoteItem, error) {
	client, err := m.client(acct)
	if err != nil {
		return nil, err
	}
	items, err := client.GetInventory(ctx)
	if err != nil {
		return nil, err
	}
	view := m.view(acct.ID)
	view.Replace(items, m.now())
	m.persist(ctx, view)
	metrics.LowStockItems.WithLabelValues(acct.ID).Set(float64(inventory.LowStock(items, m.cfg.LowStockThreshold)))
	return view.Items(), nil
}

func (m *Manager) persist(ctx context.Context, view *inventory.View) {
	if err := m.cache.PutSnapshot(view.Snapshot()); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to cache inventory snapshot")
	}
}

func (m *Manager) client(acct models.Account) (AccountClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.clients[acct.ID]; ok {
		return c, nil
	}
	c, err := m.factory(acct)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", acct.Name, err)
	}
	m.clients[acct.ID] = c
	return c, nil
}

// view returns the account's view, restoring it from the cache on first use.
func (m *Manager) view(accountID string) *inventory.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.views[accountID]; ok {
		return v
	}
	v := inventory.NewView(accountID)
	snap, err := m.cache.GetSnapshot(accountID)
	switch {
	case err == nil:
		v.Replace(snap.Items, snap.FetchedAt)
	case !errors.Is(err, inventory.ErrSnapshotNotFound):
		logging.Warn().Err(err).Str("account_id", accountID).Msg("Ignoring unreadable snapshot cache")
	}
	m.views[accountID] = v
	return v
}

func (m *Manager) record(accountID string, level activity.Level, message string) {
	if m.activity != nil {
		m.activity.Add(accountID, level, message)
	}
}

func passContext(ctx context.Context, acct models.Account) context.Context {
	if logging.CorrelationIDFromContext(ctx) == "" {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	return logging.ContextWithAccount(ctx, acct.Name)
}
