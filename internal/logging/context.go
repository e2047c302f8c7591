// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	accountKey       contextKey = "account"
)

// GenerateCorrelationID returns the first 8 characters of a random UUID.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID tags ctx with a correlation ID. Every sync pass
// and every HTTP request gets one so its upstream calls can be grouped.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID tags ctx with a freshly generated ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithAccount tags ctx with the display name of the account being
// processed.
func ContextWithAccount(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, accountKey, name)
}

// AccountFromContext returns the account name or "".
func AccountFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(accountKey).(string); ok {
		return name
	}
	return ""
}

// Ctx returns the global logger enriched with the correlation_id and
// account fields found in ctx.
//
//	logging.Ctx(ctx).Info().Str("sku", sku).Msg("Created product")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := With()
	if id := CorrelationIDFromContext(ctx); id != "" {
		lc = lc.Str("correlation_id", id)
	}
	if name := AccountFromContext(ctx); name != "" {
		lc = lc.Str("account", name)
	}
	l := lc.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
