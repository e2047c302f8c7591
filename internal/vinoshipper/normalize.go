// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package vinoshipper

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cellarsync/internal/models"
)

// fieldRule maps one canonical field to the raw keys that may carry it, in
// priority order. The first key whose value the extractor accepts wins;
// otherwise the fallback (if any) is assigned.
type fieldRule struct {
	keys     []string
	extract  func(v any) (any, bool)
	fallback any
	assign   func(p *models.RemoteItem, v any)
}

// productRules is the whole normalization table. Adding a new alias for a
// field means adding a key here, nothing else.
var productRules = []fieldRule{
	{
		keys:     []string{"sku", "product_code", "id"},
		extract:  nonEmptyString,
		fallback: "UNKNOWN",
		assign:   func(p *models.RemoteItem, v any) { p.SKU = v.(string) },
	},
	{
		keys:     []string{"name", "title", "description"},
		extract:  nonEmptyString,
		fallback: "Unnamed Product",
		assign:   func(p *models.RemoteItem, v any) { p.Name = v.(string) },
	},
	{
		keys:     []string{"quantity", "stock", "inventory_count"},
		extract:  nonNegativeInt,
		fallback: 0,
		assign:   func(p *models.RemoteItem, v any) { p.Quantity = v.(int) },
	},
	{
		keys:    []string{"price", "retail_price"},
		extract: number,
		assign: func(p *models.RemoteItem, v any) {
			f := v.(float64)
			p.Price = &f
		},
	},
	{
		keys:    []string{"category", "type"},
		extract: nonEmptyString,
		assign:  func(p *models.RemoteItem, v any) { p.Category = v.(string) },
	},
	{
		keys:    []string{"vintage", "year"},
		extract: nonEmptyString,
		assign:  func(p *models.RemoteItem, v any) { p.Vintage = v.(string) },
	},
	{
		keys:    []string{"bottle_size", "size"},
		extract: nonEmptyString,
		assign:  func(p *models.RemoteItem, v any) { p.BottleSize = v.(string) },
	},
}

// NormalizeProduct converts one raw product object into a RemoteItem.
// It never fails: missing fields take their documented defaults.
func NormalizeProduct(raw map[string]any, now time.Time) models.RemoteItem {
	var item models.RemoteItem
	for _, rule := range productRules {
		if v, ok := firstMatch(raw, rule.keys, rule.extract); ok {
			rule.assign(&item, v)
		} else if rule.fallback != nil {
			rule.assign(&item, rule.fallback)
		}
	}
	item.Status = normalizeStatus(raw)
	item.LastSyncedAt = now
	return item
}

func firstMatch(raw map[string]any, keys []string, extract func(any) (any, bool)) (any, bool) {
	for _, k := range keys {
		v, present := raw[k]
		if !present || v == nil {
			continue
		}
		if out, ok := extract(v); ok {
			return out, true
		}
	}
	return nil, false
}

// normalizeStatus reads "status" first, then the boolean "active" flag.
func normalizeStatus(raw map[string]any) models.ProductStatus {
	if s, ok := raw["status"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "active":
			return models.StatusActive
		case "inactive":
			return models.StatusInactive
		case "sold_out", "sold out":
			return models.StatusSoldOut
		}
	}
	if active, ok := raw["active"].(bool); ok {
		if active {
			return models.StatusActive
		}
		return models.StatusInactive
	}
	return ""
}

// nonEmptyString accepts non-blank strings and renders numbers as text, so
// a numeric vintage (2019) or id (42) still counts.
func nonEmptyString(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	default:
		return nil, false
	}
}

// number accepts JSON numbers and numeric strings.
func number(v any) (any, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return nil, false
	}
}

// nonNegativeInt accepts any number (0 included) and truncates it to a
// non-negative int.
func nonNegativeInt(v any) (any, bool) {
	f, ok := number(v)
	if !ok {
		return nil, false
	}
	n := math.Trunc(f.(float64))
	if n < 0 || math.IsNaN(n) {
		return 0, true
	}
	if n > math.MaxInt32 {
		return math.MaxInt32, true
	}
	return int(n), true
}
