// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler is a slog.Handler backed by zerolog. The supervisor tree hands
// a *slog.Logger built on it to sutureslog so restarts and panics end up in
// the same stream as everything else.
type SlogHandler struct {
	logger zerolog.Logger
	attrs  []groupedAttr
	prefix string
}

// groupedAttr remembers the group prefix that was open when the attribute
// was attached.
type groupedAttr struct {
	prefix string
	attr   slog.Attr
}

// NewSlogHandler wraps the current global logger.
func NewSlogHandler() *SlogHandler {
	return &SlogHandler{logger: Logger()}
}

// NewSlogHandlerWithLogger wraps a specific logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger is shorthand for slog.New(NewSlogHandler()).
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandler())
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= toZerologLevel(level) && zerolog.GlobalLevel() <= toZerologLevel(level)
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Record is passed by value per slog.Handler interface
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(toZerologLevel(record.Level))
	for _, ga := range h.attrs {
		event = appendAttr(event, ga.prefix, ga.attr)
	}
	record.Attrs(func(a slog.Attr) bool {
		event = appendAttr(event, h.prefix, a)
		return true
	})
	event.Msg(record.Message)
	return nil
}

// WithAttrs implements slog.Handler.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]groupedAttr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, groupedAttr{prefix: h.prefix, attr: a})
	}
	return &SlogHandler{logger: h.logger, attrs: merged, prefix: h.prefix}
}

// WithGroup implements slog.Handler. Groups flatten into dotted keys.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func appendAttr(event *zerolog.Event, prefix string, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return event
	}
	key := prefix + a.Key

	switch a.Value.Kind() {
	case slog.KindString:
		return event.Str(key, a.Value.String())
	case slog.KindInt64:
		return event.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, a.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, a.Value.Duration())
	case slog.KindTime:
		return event.Time(key, a.Value.Time())
	case slog.KindGroup:
		groupPrefix := key + "."
		if a.Key == "" {
			groupPrefix = prefix
		}
		for _, ga := range a.Value.Group() {
			event = appendAttr(event, groupPrefix, ga)
		}
		return event
	default:
		if err, ok := a.Value.Any().(error); ok {
			return event.AnErr(key, err)
		}
		return event.Interface(key, a.Value.Any())
	}
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
