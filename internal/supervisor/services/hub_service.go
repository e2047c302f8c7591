// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package services

import (
	"context"
)

// ContextHub is satisfied by *activity.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// ActivityHubService supervises the activity websocket hub. The hub
// already follows the Serve contract; this wrapper gives it a name.
type ActivityHubService struct {
	hub  ContextHub
	name string
}

// NewActivityHubService wraps hub.
func NewActivityHubService(hub ContextHub) *ActivityHubService {
	return &ActivityHubService{
		hub:  hub,
		name: "activity-hub",
	}
}

// Serve implements suture.Service.
func (s *ActivityHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String names the service in supervisor logs.
func (s *ActivityHubService) String() string {
	return s.name
}
