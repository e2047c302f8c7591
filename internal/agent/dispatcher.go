// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/cellarsync/internal/accounts"
	"github.com/tomtom215/cellarsync/internal/inventory"
	"github.com/tomtom215/cellarsync/internal/models"
	"github.com/tomtom215/cellarsync/internal/sync"
)

// Registry is the part of accounts.Registry the dispatcher uses.
type Registry interface {
	List() ([]models.Account, error)
	Select(id string) error
	Selected() (models.Account, error)
}

// Syncer is the part of sync.Manager the dispatcher uses.
type Syncer interface {
	FullSync(ctx context.Context, accountID string) (sync.PassResult, error)
	PartialSync(ctx context.Context, accountID string, skus []string) (sync.PassResult, error)
	CheckAllAccounts(ctx context.Context) ([]models.AccountSummary, error)
}

// Reply is what a dispatched action produced. Message is meant for the
// chat transcript; Result carries the structured outcome.
type Reply struct {
	Action  Action `json:"action"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// Dispatcher executes parsed actions.
type Dispatcher struct {
	registry Registry
	syncer   Syncer
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry Registry, syncer Syncer) *Dispatcher {
	return &Dispatcher{registry: registry, syncer: syncer}
}

// Handle parses text and dispatches the action it contains.
func (d *Dispatcher) Handle(ctx context.Context, text string) (Reply, error) {
	return d.Dispatch(ctx, Parse(text))
}

// Dispatch executes a. User-level problems (unknown account, no CSV loaded)
// are reported in Reply.Message; only unexpected failures return an error.
func (d *Dispatcher) Dispatch(ctx context.Context, a Action) (Reply, error) {
	switch a.Kind {
	case KindSwitchClient:
		return d.switchClient(a)
	case KindCheckAll:
		summaries, err := d.syncer.CheckAllAccounts(ctx)
		if err != nil {
			return Reply{Action: a}, err
		}
		return Reply{Action: a, Message: checkAllMessage(summaries), Result: summaries}, nil
	case KindSyncAll:
		return d.sync(ctx, a, func(id string) (sync.PassResult, error) {
			return d.syncer.FullSync(ctx, id)
		})
	case KindSyncSKUs:
		return d.sync(ctx, a, func(id string) (sync.PassResult, error) {
			return d.syncer.PartialSync(ctx, id, a.SKUs)
		})
	default:
		return Reply{Action: a}, nil
	}
}

func (d *Dispatcher) switchClient(a Action) (Reply, error) {
	list, err := d.registry.List()
	if err != nil {
		return Reply{Action: a}, err
	}
	want := strings.ToLower(a.Target)
	for _, acct := range list {
		if strings.Contains(strings.ToLower(acct.Name), want) {
			if err := d.registry.Select(acct.ID); err != nil {
				return Reply{Action: a}, err
			}
			return Reply{Action: a, Message: "Switched to " + acct.Name, Result: acct.Public()}, nil
		}
	}
	names := make([]string, len(list))
	for i, acct := range list {
		names[i] = acct.Name
	}
	return Reply{
		Action:  a,
		Message: fmt.Sprintf("Account %q not found. Available accounts: %s", a.Target, strings.Join(names, ", ")),
	}, nil
}

func (d *Dispatcher) sync(ctx context.Context, a Action, run func(accountID string) (sync.PassResult, error)) (Reply, error) {
	acct, err := d.registry.Selected()
	if errors.Is(err, accounts.ErrNoSelection) {
		return Reply{Action: a, Message: "No account selected. Add or switch to an account first."}, nil
	}
	if err != nil {
		return Reply{Action: a}, err
	}

	result, err := run(acct.ID)
	if errors.Is(err, inventory.ErrTruthNotFound) {
		return Reply{Action: a, Message: "No CSV uploaded. Please upload a CSV file first."}, nil
	}
	if err != nil {
		return Reply{Action: a, Result: result}, err
	}
	return Reply{
		Action: a,
		Message: fmt.Sprintf("Synced %s: %d created, %d updated, %d already in sync, %d skipped, %d failed",
			acct.Name,
			result.Count(models.OutcomeCreated),
			result.Count(models.OutcomeUpdated),
			result.Count(models.OutcomeAlreadyInSync),
			result.Count(models.OutcomeSkippedNotInTruth),
			result.Count(models.OutcomeFailed)),
		Result: result,
	}, nil
}

func checkAllMessage(summaries []models.AccountSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checked %d accounts", len(summaries))
	for _, s := range summaries {
		if s.Failed() {
			fmt.Fprintf(&b, "\n%s: check failed (%s)", s.Name, s.Error)
			continue
		}
		fmt.Fprintf(&b, "\n%s: %d low stock items", s.Name, s.LowStockCount)
	}
	return b.String()
}
