// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

// Package config loads Cellarsync configuration.
//
// Sources are layered with koanf, later ones overriding earlier ones:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH or one of DefaultConfigPaths)
//  3. Environment variables (see envMappings)
//
// Example config.yaml:
//
//	upstream:
//	  base_url: https://www.vinoshipper.com/api
//	  retry_preset: conservative
//	sync:
//	  item_delay: 600ms
//	  low_stock_threshold: 10
//	logging:
//	  level: debug
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Upstream    UpstreamConfig    `koanf:"upstream"`
	Sync        SyncConfig        `koanf:"sync"`
	Storage     StorageConfig     `koanf:"storage"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// UpstreamConfig configures the remote inventory API client.
//
// RetryPreset selects a named retry policy (default, aggressive, conservative,
// none). The remaining retry fields override the preset when set: MaxRetries
// when >= 0, durations and multiplier when > 0, status codes when non-empty.
type UpstreamConfig struct {
	BaseURL              string        `koanf:"base_url"`
	Timeout              time.Duration `koanf:"timeout"`
	RetryPreset          string        `koanf:"retry_preset"`
	MaxRetries           int           `koanf:"max_retries"`
	InitialDelay         time.Duration `koanf:"initial_delay"`
	MaxDelay             time.Duration `koanf:"max_delay"`
	BackoffMultiplier    float64       `koanf:"backoff_multiplier"`
	RetryableStatusCodes []int         `koanf:"retryable_status_codes"`
	CircuitBreaker       BreakerConfig `koanf:"circuit_breaker"`
}

// BreakerConfig configures the per-account circuit breaker.
type BreakerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	MaxRequests  uint32        `koanf:"max_requests"`
	Interval     time.Duration `koanf:"interval"`
	Timeout      time.Duration `koanf:"timeout"`
	MinRequests  uint32        `koanf:"min_requests"`
	FailureRatio float64       `koanf:"failure_ratio"`
}

// SyncConfig configures reconciliation passes.
type SyncConfig struct {
	ItemDelay         time.Duration `koanf:"item_delay"`
	AccountDelay      time.Duration `koanf:"account_delay"`
	LowStockThreshold int           `koanf:"low_stock_threshold"`
}

// StorageConfig configures the embedded badger database that backs the
// snapshot cache and the local credential fallback.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// CredentialsConfig selects where account credentials live.
// Backend is auto (keyring with local fallback), keyring or local.
type CredentialsConfig struct {
	Backend string `koanf:"backend"`
	Service string `koanf:"service"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
