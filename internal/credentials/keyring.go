// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package credentials

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const probeKey = "__cellarsync_probe__"

// KeyringStore keeps secrets in the OS keyring under one service name.
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a keyring store for service.
func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

// Get reads key from the keyring.
func (k *KeyringStore) Get(key string) (string, error) {
	v, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return v, err
}

// Set writes key to the keyring.
func (k *KeyringStore) Set(key, value string) error {
	return keyring.Set(k.service, key, value)
}

// Delete removes key. Missing keys are ignored.
func (k *KeyringStore) Delete(key string) error {
	err := keyring.Delete(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Probe checks that the keyring backend answers at all.
func (k *KeyringStore) Probe() error {
	_, err := keyring.Get(k.service, probeKey)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
