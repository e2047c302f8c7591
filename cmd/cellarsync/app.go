// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/cellarsync/internal/accounts"
	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/agent"
	"github.com/tomtom215/cellarsync/internal/config"
	"github.com/tomtom215/cellarsync/internal/credentials"
	"github.com/tomtom215/cellarsync/internal/inventory"
	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/store"
	"github.com/tomtom215/cellarsync/internal/sync"
	"github.com/tomtom215/cellarsync/internal/vinoshipper"
)

// App is the wired object graph shared by every command.
type App struct {
	Config     *config.Config
	Registry   *accounts.Registry
	Manager    *sync.Manager
	Activity   *activity.Log
	Dispatcher *agent.Dispatcher

	store *store.Store
}

// NewApp opens storage and wires the registry, manager and dispatcher.
func NewApp(cfg *config.Config) (*App, error) {
	policy, err := retryPolicy(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	creds, err := credentials.New(cfg.Credentials.Backend, cfg.Credentials.Service, st, accounts.StoreKeys)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	registry := accounts.NewRegistry(creds)
	log := activity.NewLog(activity.DefaultCapacity)
	manager := sync.NewManager(registry, clientFactory(cfg.Upstream, policy), inventory.NewCache(st), log, sync.ManagerConfig{
		ItemDelay:         cfg.Sync.ItemDelay,
		AccountDelay:      cfg.Sync.AccountDelay,
		LowStockThreshold: cfg.Sync.LowStockThreshold,
	})

	return &App{
		Config:     cfg,
		Registry:   registry,
		Manager:    manager,
		Activity:   log,
		Dispatcher: agent.NewDispatcher(registry, manager),
		store:      st,
	}, nil
}

// Close releases storage.
func (a *App) Close() error {
	return a.store.Close()
}

// retryPolicy resolves the configured preset and applies the per-field
// overrides that are set.
func retryPolicy(u config.UpstreamConfig) (vinoshipper.RetryPolicy, error) {
	p, err := vinoshipper.RetryPolicyByName(u.RetryPreset)
	if err != nil {
		return p, err
	}
	if u.MaxRetries >= 0 {
		p.MaxRetries = u.MaxRetries
	}
	if u.InitialDelay > 0 {
		p.InitialDelay = u.InitialDelay
	}
	if u.MaxDelay > 0 {
		p.MaxDelay = u.MaxDelay
	}
	if u.BackoffMultiplier > 0 {
		p.BackoffMultiplier = u.BackoffMultiplier
	}
	if len(u.RetryableStatusCodes) > 0 {
		p.RetryableStatusCodes = u.RetryableStatusCodes
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("invalid retry policy: %w", err)
	}
	return p, nil
}

// clientFactory builds one API client per account, each behind its own
// circuit breaker when enabled.
func clientFactory(u config.UpstreamConfig, policy vinoshipper.RetryPolicy) sync.ClientFactory {
	return func(acct models.Account) (sync.AccountClient, error) {
		opts := []vinoshipper.Option{
			vinoshipper.WithBaseURL(u.BaseURL),
			vinoshipper.WithRetryPolicy(policy),
			vinoshipper.WithHTTPClient(&http.Client{Timeout: u.Timeout}),
		}
		if cb := u.CircuitBreaker; cb.Enabled {
			opts = append(opts, vinoshipper.WithCircuitBreaker(vinoshipper.NewCircuitBreaker(acct.ID, vinoshipper.BreakerSettings{
				MaxRequests:  cb.MaxRequests,
				Interval:     cb.Interval,
				Timeout:      cb.Timeout,
				MinRequests:  cb.MinRequests,
				FailureRatio: cb.FailureRatio,
			})))
		}
		client, err := vinoshipper.NewClient(acct.Credential, opts...)
		if err != nil {
			return nil, err
		}
		logging.Debug().Str("account", acct.Name).Str("base_url", client.BaseURL()).
			Int("max_retries", policy.MaxRetries).Msg("Created inventory API client")
		return client, nil
	}
}
