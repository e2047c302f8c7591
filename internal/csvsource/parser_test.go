// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package csvsource

import (
	"errors"
	"testing"

	"github.com/tomtom215/cellarsync/internal/models"
)

func TestParseString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []models.CanonicalItem
	}{
		{
			name:  "canonical headers",
			input: "sku,name,quantity\nWINE-001,Cabernet,50\nWINE-002,Merlot,12\n",
			want: []models.CanonicalItem{
				{SKU: "WINE-001", Name: "Cabernet", Quantity: 50},
				{SKU: "WINE-002", Name: "Merlot", Quantity: 12},
			},
		},
		{
			name:  "synonyms and mixed case",
			input: "Item_SKU , Description, QTY\nA, Alpha ,3",
			want:  []models.CanonicalItem{{SKU: "A", Name: "Alpha", Quantity: 3}},
		},
		{
			name:  "name defaults to sku",
			input: "product_sku,stock\nA,7",
			want:  []models.CanonicalItem{{SKU: "A", Name: "A", Quantity: 7}},
		},
		{
			name:  "blank sku rows and blank lines skipped",
			input: "sku,qty\n,4\n\nB,5",
			want:  []models.CanonicalItem{{SKU: "B", Name: "B", Quantity: 5}},
		},
		{
			name:  "quoted name with comma",
			input: "sku,name,inventory\nA,\"Red, Dry\",2",
			want:  []models.CanonicalItem{{SKU: "A", Name: "Red, Dry", Quantity: 2}},
		},
		{
			name:  "bad quantities become zero",
			input: "sku,qty\nA,lots\nB,-4\nC,\nD,12.9",
			want: []models.CanonicalItem{
				{SKU: "A", Name: "A", Quantity: 0},
				{SKU: "B", Name: "B", Quantity: 0},
				{SKU: "C", Name: "C", Quantity: 0},
				{SKU: "D", Name: "D", Quantity: 12},
			},
		},
		{
			name:  "byte order mark",
			input: "\ufeffsku,qty\nA,1",
			want:  []models.CanonicalItem{{SKU: "A", Name: "A", Quantity: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseString(tt.input)
			if err != nil {
				t.Fatalf("ParseString() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseString() = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseString_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrTooFewLines},
		{"header only", "sku,quantity\n", ErrTooFewLines},
		{"no sku column", "name,quantity\nA,1", ErrMissingSKUColumn},
		{"no quantity column", "sku,name\nA,Alpha", ErrMissingQuantityColumn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseString(tt.input); !errors.Is(err, tt.want) {
				t.Errorf("ParseString() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		"0":      0,
		"45":     45,
		" 7 ":    7,
		"+3":     3,
		"8 btl":  8,
		"-1":     0,
		"abc":    0,
		"":       0,
		"-":      0,
		"99999":  99999,
		"1e3":    1,
		"12,000": 12,
	}
	for in, want := range tests {
		if got := ParseQuantity(in); got != want {
			t.Errorf("ParseQuantity(%q) = %d, want %d", in, got, want)
		}
	}
}
