// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package credentials stores secrets by key. The OS keyring is preferred;
// a local Badger store is used when the keyring is unavailable, and values
// written there before the keyring came back are migrated into it once.
package credentials

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/store"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = errors.New("credential not found")

// Backend names accepted by New.
const (
	BackendAuto    = "auto"
	BackendKeyring = "keyring"
	BackendLocal   = "local"
)

// Store is a flat secret store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// New builds the store for backend. In auto mode the keyring is probed and,
// when reachable, fronts the local store with migration applied.
func New(backend, service string, st *store.Store, migrateKeys []string) (Store, error) {
	local := NewBadgerStore(st)

	switch strings.ToLower(backend) {
	case BackendLocal:
		return local, nil
	case BackendKeyring:
		return NewKeyringStore(service), nil
	case BackendAuto, "":
		kr := NewKeyringStore(service)
		if err := kr.Probe(); err != nil {
			logging.Warn().Err(err).Msg("OS keyring unavailable, using local credential store")
			return local, nil
		}
		if n, err := Migrate(kr, local, migrateKeys); err != nil {
			logging.Warn().Err(err).Msg("Credential migration to keyring failed")
		} else if n > 0 {
			logging.Info().Int("keys", n).Msg("Migrated credentials to OS keyring")
		}
		return &FallbackStore{Primary: kr, Fallback: local}, nil
	default:
		return nil, fmt.Errorf("unknown credentials backend %q", backend)
	}
}
