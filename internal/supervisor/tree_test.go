// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("NewSupervisorTree() error = %v", err)
		}
		if tree.Root() == nil {
			t.Fatal("Root() = nil")
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want %+v", tree.config, DefaultTreeConfig())
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{FailureBackoff: time.Second})
		if tree.config.FailureBackoff != time.Second {
			t.Errorf("FailureBackoff = %v, want 1s", tree.config.FailureBackoff)
		}
		if tree.config.FailureThreshold != 5 {
			t.Errorf("FailureThreshold = %v, want 5", tree.config.FailureThreshold)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewSupervisorTree() error = %v", err)
	}

	hub := newMockService("hub")
	server := newMockService("http")
	tree.AddMessagingService(hub)
	tree.AddAPIService(server)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for (hub.StartCount() < 1 || server.StartCount() < 1) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.StartCount() < 1 || server.StartCount() < 1 {
		t.Errorf("starts = hub %d, http %d; want both started", hub.StartCount(), server.StartCount())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("ServeBackground() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}
}

func TestSupervisorTreeRestartsFailingService(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := newMockService("failing")
	failing.maxFails = 2
	stable := newMockService("stable")
	tree.AddMessagingService(failing)
	tree.AddAPIService(stable)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for failing.StartCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if failing.StartCount() < 3 {
		t.Errorf("failing service starts = %d, want at least 3", failing.StartCount())
	}
	if stable.StartCount() != 1 {
		t.Errorf("stable service starts = %d, want 1", stable.StartCount())
	}

	cancel()
	<-errCh
}
