// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package agent turns action tokens embedded in assistant replies into
// calls on the account registry and the sync manager. Producing those
// replies is somebody else's job; this package only reads them.
//
// Recognized tokens, first match wins in this order:
//
//	ACTION:SWITCH_CLIENT <name>
//	ACTION:CHECK_ALL_CLIENTS
//	ACTION:SYNC_ALL
//	ACTION:SYNC [SKU-1, SKU-2]
package agent

import (
	"regexp"
	"strings"
)

// Kind names a parsed action.
type Kind string

const (
	KindNone         Kind = "none"
	KindSwitchClient Kind = "switch_client"
	KindCheckAll     Kind = "check_all_clients"
	KindSyncAll      Kind = "sync_all"
	KindSyncSKUs     Kind = "sync_skus"
)

// Action is one parsed instruction.
type Action struct {
	Kind   Kind     `json:"kind"`
	Target string   `json:"target,omitempty"`
	SKUs   []string `json:"skus,omitempty"`
}

var (
	switchPattern = regexp.MustCompile(`(?i)ACTION:SWITCH_CLIENT\s+(.+)`)
	syncPattern   = regexp.MustCompile(`ACTION:SYNC\s+\[([\w\-,\s]+)\]`)
)

const (
	checkAllToken = "ACTION:CHECK_ALL_CLIENTS"
	syncAllToken  = "ACTION:SYNC_ALL"
)

// Parse extracts the first action from text. Text without a token yields
// KindNone.
func Parse(text string) Action {
	if m := switchPattern.FindStringSubmatch(text); m != nil {
		if target := strings.TrimSpace(m[1]); target != "" {
			return Action{Kind: KindSwitchClient, Target: target}
		}
	}
	if strings.Contains(text, checkAllToken) {
		return Action{Kind: KindCheckAll}
	}
	if strings.Contains(text, syncAllToken) {
		return Action{Kind: KindSyncAll}
	}
	if m := syncPattern.FindStringSubmatch(text); m != nil {
		var skus []string
		for _, s := range strings.Split(m[1], ",") {
			if s = strings.TrimSpace(s); s != "" {
				skus = append(skus, s)
			}
		}
		if len(skus) > 0 {
			return Action{Kind: KindSyncSKUs, SKUs: skus}
		}
	}
	return Action{Kind: KindNone}
}
