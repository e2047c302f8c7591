// Cellarsync - Multi-Account Wine Inventory Reconciliation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cellarsync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cellarsync/config.yaml",
}

// ConfigPathEnvVar names the environment variable holding an explicit
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultBaseURL is the production inventory API.
const DefaultBaseURL = "https://www.vinoshipper.com/api"

func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:     DefaultBaseURL,
			Timeout:     30 * time.Second,
			RetryPreset: "default",
			MaxRetries:  -1, // preset decides
			CircuitBreaker: BreakerConfig{
				Enabled:      true,
				MaxRequests:  3,
				Interval:     time.Minute,
				Timeout:      2 * time.Minute,
				MinRequests:  10,
				FailureRatio: 0.6,
			},
		},
		Sync: SyncConfig{
			ItemDelay:         600 * time.Millisecond,
			AccountDelay:      300 * time.Millisecond,
			LowStockThreshold: 10,
		},
		Storage: StorageConfig{
			Path: "data/cellarsync",
		},
		Credentials: CredentialsConfig{
			Backend: "auto",
			Service: "cellarsync",
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8417,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, file and environment, then
// validates it.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"upstream.retryable_status_codes",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"vinoshipper_base_url":     "upstream.base_url",
	"upstream_timeout":         "upstream.timeout",
	"retry_preset":             "upstream.retry_preset",
	"retry_max_retries":        "upstream.max_retries",
	"retry_initial_delay":      "upstream.initial_delay",
	"retry_max_delay":          "upstream.max_delay",
	"retry_backoff_multiplier": "upstream.backoff_multiplier",
	"retry_status_codes":       "upstream.retryable_status_codes",
	"circuit_breaker_enabled":  "upstream.circuit_breaker.enabled",
	"circuit_breaker_timeout":  "upstream.circuit_breaker.timeout",
	"sync_item_delay":          "sync.item_delay",
	"sync_account_delay":       "sync.account_delay",
	"low_stock_threshold":      "sync.low_stock_threshold",
	"storage_path":             "storage.path",
	"storage_in_memory":        "storage.in_memory",
	"credentials_backend":      "credentials.backend",
	"credentials_service":      "credentials.service",
	"http_host":                "server.host",
	"http_port":                "server.port",
	"cors_origins":             "server.cors_origins",
	"rate_limit_requests":      "server.rate_limit_requests",
	"rate_limit_window":        "server.rate_limit_window",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
	"log_caller":               "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
