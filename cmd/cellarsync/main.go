// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package main is the cellarsync command.
//
// cellarsync keeps the inventory of several wineries on the remote
// fulfillment service in line with each winery's own CSV export. The CSV is
// the source of truth: passes create missing products and overwrite
// quantities that differ, and never delete anything on the remote.
//
// # Configuration
//
// Settings are layered with koanf (highest priority wins):
//   - Environment variables (VINOSHIPPER_BASE_URL, SYNC_ITEM_DELAY, ...)
//   - config.yaml (CONFIG_PATH, or --config)
//   - Built-in defaults
//
// # Example Usage
//
//	cellarsync accounts add --name "Demo Winery" --credential key:secret
//	cellarsync compare --account "Demo Winery" --truth inventory.csv
//	cellarsync sync --account "Demo Winery" --truth inventory.csv
//	cellarsync partial-sync --account "Demo Winery" --sku WINE-001 --sku WINE-002
//	cellarsync check-all
//	cellarsync serve
package main

import (
	"fmt"
	"os"
)

func main() {
	opts := &RootOptions{}
	err := newRootCommand(opts).Execute()
	// Post-run hooks are skipped when a command fails.
	if closeErr := opts.close(); err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
