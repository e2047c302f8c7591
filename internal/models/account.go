// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package models

// Fulfillment centers an account can ship from.
const (
	FulfillmentHydraNY  = "Hydra (NY)"
	FulfillmentShipEzCA = "ShipEz (CA)"
)

// FulfillmentOptions lists the accepted FulfillmentCenter values.
var FulfillmentOptions = []string{FulfillmentHydraNY, FulfillmentShipEzCA}

// Account is one tenant of the remote inventory service: a winery with its
// own API credential and inventory namespace.
type Account struct {
	ID                string `json:"id" validate:"required"`
	Name              string `json:"name" validate:"notblank,max=120"`
	Credential        string `json:"credential" validate:"credential"` // "key:secret"
	FulfillmentCenter string `json:"fulfillment_center" validate:"oneof='Hydra (NY)' 'ShipEz (CA)'"`
}

// Public returns a copy safe to hand to API consumers.
func (a Account) Public() AccountView {
	return AccountView{ID: a.ID, Name: a.Name, FulfillmentCenter: a.FulfillmentCenter}
}

// AccountView is Account without the credential.
type AccountView struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	FulfillmentCenter string `json:"fulfillment_center"`
}

// AccountSummary is the result of checking one account during check-all.
type AccountSummary struct {
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	ItemCount     int    `json:"item_count"`
	LowStockCount int    `json:"low_stock_count"`
	Error         string `json:"error,omitempty"`
}

// Failed reports whether the inventory fetch for this account failed.
func (s AccountSummary) Failed() bool {
	return s.Error != ""
}
