// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package accounts is the registry of configured winery accounts. The whole
// list is one JSON document in the credential store, since every entry
// carries an API secret.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cellarsync/internal/credentials"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/validation"
)

// Credential store keys.
const (
	ClientsKey  = "clients"
	SelectedKey = "selected_client"
)

// StoreKeys lists every key the registry writes, for credential migration.
var StoreKeys = []string{ClientsKey, SelectedKey}

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateAccount = errors.New("an account with that name already exists")
	ErrNoSelection      = errors.New("no account selected")
)

// Registry persists accounts and the current selection.
type Registry struct {
	mu    sync.Mutex
	creds credentials.Store
	newID func() string
}

// NewRegistry creates a registry over creds.
func NewRegistry(creds credentials.Store) *Registry {
	return &Registry{creds: creds, newID: uuid.NewString}
}

// List returns all accounts in insertion order.
func (r *Registry) List() ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns the account with id.
func (r *Registry) Get(id string) (models.Account, error) {
	list, err := r.List()
	if err != nil {
		return models.Account{}, err
	}
	for _, a := range list {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// FindByName matches names case-insensitively, ignoring surrounding space.
func (r *Registry) FindByName(name string) (models.Account, error) {
	list, err := r.List()
	if err != nil {
		return models.Account{}, err
	}
	want := normalizeName(name)
	for _, a := range list {
		if normalizeName(a.Name) == want {
			return a, nil
		}
	}
	return models.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
}

// Resolve accepts either an account id or a name.
func (r *Registry) Resolve(ref string) (models.Account, error) {
	if a, err := r.Get(ref); err == nil {
		return a, nil
	}
	return r.FindByName(ref)
}

// Add validates and stores a new account. The first account added becomes
// the selection. An empty fulfillment center defaults to Hydra (NY).
func (r *Registry) Add(name, credential, fulfillment string) (models.Account, error) {
	if fulfillment == "" {
		fulfillment = models.FulfillmentHydraNY
	}
	acct := models.Account{
		ID:                r.newID(),
		Name:              strings.TrimSpace(name),
		Credential:        strings.TrimSpace(credential),
		FulfillmentCenter: fulfillment,
	}
	if err := validation.ValidateStruct(acct); err != nil {
		return models.Account{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return models.Account{}, err
	}
	for _, a := range list {
		if normalizeName(a.Name) == normalizeName(acct.Name) {
			return models.Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, acct.Name)
		}
	}
	list = append(list, acct)
	if err := r.save(list); err != nil {
		return models.Account{}, err
	}

	if _, err := r.selectedID(); errors.Is(err, ErrNoSelection) {
		if err := r.creds.Set(SelectedKey, acct.ID); err != nil {
			return acct, fmt.Errorf("select account: %w", err)
		}
	}
	return acct, nil
}

// Remove deletes an account. If it was selected, the first remaining
// account becomes the selection.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return err
	}
	idx := -1
	for i, a := range list {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	list = append(list[:idx], list[idx+1:]...)
	if err := r.save(list); err != nil {
		return err
	}

	sel, err := r.selectedID()
	if err != nil && !errors.Is(err, ErrNoSelection) {
		return err
	}
	if sel != id {
		return nil
	}
	if len(list) == 0 {
		return r.creds.Delete(SelectedKey)
	}
	return r.creds.Set(SelectedKey, list[0].ID)
}

// Select makes id the current account.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load()
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.ID == id {
			return r.creds.Set(SelectedKey, id)
		}
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
}

// Selected returns the current account.
func (r *Registry) Selected() (models.Account, error) {
	r.mu.Lock()
	id, err := r.selectedID()
	r.mu.Unlock()
	if err != nil {
		return models.Account{}, err
	}
	a, err := r.Get(id)
	if errors.Is(err, ErrAccountNotFound) {
		return models.Account{}, ErrNoSelection
	}
	return a, err
}

func (r *Registry) selectedID() (string, error) {
	id, err := r.creds.Get(SelectedKey)
	if errors.Is(err, credentials.ErrNotFound) || (err == nil && id == "") {
		return "", ErrNoSelection
	}
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	return id, nil
}

func (r *Registry) load() ([]models.Account, error) {
	raw, err := r.creds.Get(ClientsKey)
	if errors.Is(err, credentials.ErrNotFound) {
		return []models.Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	var list []models.Account
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return list, nil
}

func (r *Registry) save(list []models.Account) error {
	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode accounts: %w", err)
	}
	if err := r.creds.Set(ClientsKey, string(data)); err != nil {
		return fmt.Errorf("write accounts: %w", err)
	}
	return nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
