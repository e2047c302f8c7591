// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package config

import (
	"fmt"
	"net/url"
	"strings"
)

var knownRetryPresets = map[string]bool{
	"default":      true,
	"aggressive":   true,
	"conservative": true,
	"none":         true,
}

var knownCredentialBackends = map[string]bool{
	"auto":    true,
	"keyring": true,
	"local":   true,
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := c.validateUpstream(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateUpstream() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("VINOSHIPPER_BASE_URL must be an absolute http(s) URL, got %q", c.Upstream.BaseURL)
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %v", c.Upstream.Timeout)
	}
	if !knownRetryPresets[strings.ToLower(c.Upstream.RetryPreset)] {
		return fmt.Errorf("RETRY_PRESET must be one of default, aggressive, conservative, none; got %q", c.Upstream.RetryPreset)
	}
	if c.Upstream.MaxRetries < -1 {
		return fmt.Errorf("RETRY_MAX_RETRIES must be >= 0 (or -1 for the preset value), got %d", c.Upstream.MaxRetries)
	}
	if c.Upstream.InitialDelay < 0 || c.Upstream.MaxDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.Upstream.InitialDelay > 0 && c.Upstream.MaxDelay > 0 && c.Upstream.InitialDelay > c.Upstream.MaxDelay {
		return fmt.Errorf("RETRY_INITIAL_DELAY (%v) must not exceed RETRY_MAX_DELAY (%v)", c.Upstream.InitialDelay, c.Upstream.MaxDelay)
	}
	if c.Upstream.BackoffMultiplier != 0 && c.Upstream.BackoffMultiplier <= 1 {
		return fmt.Errorf("RETRY_BACKOFF_MULTIPLIER must be greater than 1, got %v", c.Upstream.BackoffMultiplier)
	}
	for _, code := range c.Upstream.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("RETRY_STATUS_CODES contains invalid HTTP status %d", code)
		}
	}
	cb := c.Upstream.CircuitBreaker
	if cb.Enabled && (cb.FailureRatio <= 0 || cb.FailureRatio > 1) {
		return fmt.Errorf("circuit breaker failure ratio must be in (0, 1], got %v", cb.FailureRatio)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.ItemDelay < 0 || c.Sync.AccountDelay < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	if c.Sync.LowStockThreshold < 0 {
		return fmt.Errorf("LOW_STOCK_THRESHOLD must not be negative, got %d", c.Sync.LowStockThreshold)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	if !knownCredentialBackends[strings.ToLower(c.Credentials.Backend)] {
		return fmt.Errorf("CREDENTIALS_BACKEND must be auto, keyring or local; got %q", c.Credentials.Backend)
	}
	if c.Credentials.Service == "" {
		return fmt.Errorf("CREDENTIALS_SERVICE must not be empty")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.Server.RateLimitReqs > 0 && c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
