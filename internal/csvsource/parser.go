// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package csvsource reads a truth inventory from CSV exported by a
// winery's own system. Column names vary between exports, so each column
// is matched against a list of accepted header synonyms.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tomtom215/cellarsync/internal/models"
)

var (
	ErrTooFewLines           = errors.New("CSV must have at least a header row and one data row")
	ErrMissingSKUColumn      = errors.New("CSV must have a SKU column")
	ErrMissingQuantityColumn = errors.New("CSV must have a Quantity column")
)

// Header synonyms, compared after trimming and lower-casing.
var (
	SKUHeaders      = []string{"sku", "product_sku", "item_sku"}
	NameHeaders     = []string{"name", "product_name", "item_name", "description"}
	QuantityHeaders = []string{"quantity", "qty", "stock", "inventory"}
)

// Parse reads all items from r. Rows with an empty SKU are skipped, a
// missing name falls back to the SKU, and quantities that do not start
// with digits (or are negative) become 0.
func Parse(r io.Reader) ([]models.CanonicalItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrTooFewLines
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	skuIdx := column(header, SKUHeaders)
	if skuIdx < 0 {
		return nil, ErrMissingSKUColumn
	}
	qtyIdx := column(header, QuantityHeaders)
	if qtyIdx < 0 {
		return nil, ErrMissingQuantityColumn
	}
	nameIdx := column(header, NameHeaders)

	items := make([]models.CanonicalItem, 0, len(records)-1)
	for _, rec := range records[1:] {
		sku := field(rec, skuIdx)
		if sku == "" {
			continue
		}
		name := sku
		if nameIdx >= 0 {
			name = field(rec, nameIdx)
		}
		items = append(items, models.CanonicalItem{
			SKU:      sku,
			Name:     name,
			Quantity: ParseQuantity(field(rec, qtyIdx)),
		})
	}
	return items, nil
}

// ParseString is Parse over a string.
func ParseString(s string) ([]models.CanonicalItem, error) {
	return Parse(strings.NewReader(strings.TrimSpace(s)))
}

// ParseQuantity reads the leading integer of s ("12", "12.5", "12 btl").
// Anything unparsable or negative is 0.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func column(header []string, synonyms []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, s := range synonyms {
			if h == s {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
