// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package api serves the reconciliation operations over HTTP using the Chi
// router, with an activity websocket and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router binds handlers to routes.
type Router struct {
	handler *Handler
	config  MiddlewareConfig
}

// NewRouter creates a router.
func NewRouter(handler *Handler, cfg MiddlewareConfig) *Router {
	return &Router{handler: handler, config: cfg}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(CorrelationID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORS(router.config)) // global so OPTIONS preflight is answered

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Use(Metrics)

		r.Get("/health", router.handler.Health)

		// The stream is long-lived; keep it out of the request rate limit.
		r.Get("/activity/ws", router.handler.ActivityStream)

		r.Group(func(r chi.Router) {
			r.Use(RateLimit(router.config))

			r.Get("/activity", router.handler.Activity)
			r.Post("/check-all", router.handler.CheckAll)
			r.Post("/actions", router.handler.Action)

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", router.handler.ListAccounts)
				r.Post("/", router.handler.AddAccount)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", router.handler.GetAccount)
					r.Delete("/", router.handler.RemoveAccount)
					r.Post("/select", router.handler.SelectAccount)
					r.Post("/validate", router.handler.ValidateAccount)
					r.Get("/inventory", router.handler.GetInventory)
					r.Get("/truth", router.handler.GetTruth)
					r.Put("/truth", router.handler.PutTruth)
					r.Post("/sync", router.handler.Sync)
					r.Get("/compare", router.handler.Compare)
				})
			})
		})
	})

	return r
}
