// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/cellarsync/internal/activity"
	"github.com/tomtom215/cellarsync/internal/api"
	"github.com/tomtom215/cellarsync/internal/logging"
	"github.com/tomtom215/cellarsync/internal/supervisor"
	"github.com/tomtom215/cellarsync/internal/supervisor/services"
	"github.com/tomtom215/cellarsync/internal/sync"
)

func newServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and activity stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.App)
		},
	}
}

// serve runs the API under the supervisor tree until ctx ends.
func serve(ctx context.Context, app *App) error {
	cfg := app.Config.Server

	hub := activity.NewHub(app.Activity)
	app.Manager.OnPassComplete = func(accountID string, result sync.PassResult) {
		hub.BroadcastSyncCompleted(activity.SyncCompletedData{
			AccountID:  accountID,
			Mode:       string(result.Mode),
			Counts:     api.OutcomeCounts(result),
			DurationMs: result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		})
	}

	handler := api.NewHandler(app.Registry, app.Manager, app.Dispatcher, app.Activity, hub, cfg.CORSOrigins)
	router := api.NewRouter(handler, api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.RateLimitReqs,
		RateLimitWindow:    cfg.RateLimitWindow,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// No WriteTimeout: a full pass runs inside its request.
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.ShutdownTimeout,
	})
	if err != nil {
		return err
	}
	tree.AddMessagingService(services.NewActivityHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Addr()).Msg("Serving cellarsync API")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, s := range report {
			logging.Warn().Str("service", s.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	logging.Info().Msg("Shutdown complete")
	return nil
}
