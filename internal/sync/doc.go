// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

/*
Package sync reconciles account inventories on the remote service against a
truth inventory.

Key Components:

  - Engine: runs one reconciliation pass (full or partial) against a remote
    snapshot and emits per-item outcomes plus view update instructions
  - Compare: pure diff between truth and remote (new, different, missing)
  - Manager: per-account orchestration, remote views, snapshot cache,
    activity log and the check-all sweep over every account

Reconciliation Rules:

  - The truth quantity always wins; the remote is never read back into it
  - Items present remotely but absent from truth are reported, never deleted
  - Items are processed strictly in input order, one at a time
  - Consecutive network calls are spaced by the configured item delay
  - A failing item is recorded and the pass continues

Duplicate SKUs in the truth list collapse to one entry: the last occurrence
supplies quantity and name, the first occurrence fixes the position.

Thread Safety:

Manager serializes passes with a mutex so two passes never interleave their
writes against the same remote. Engine holds no per-pass state and may be
shared.
*/
package sync
