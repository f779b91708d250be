// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Loading order (koanf v2): built-in defaults, then an optional YAML config
// file, then environment variables. Config is immutable after Load and safe
// for concurrent reads.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	API      APIConfig      `koanf:"api"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// StoreConfig holds DuckDB settings.
type StoreConfig struct {
	// Path is the database file, or ":memory:" for an ephemeral store.
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"` // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// RefreshConfig holds refresh coordinator settings.
type RefreshConfig struct {
	// Interval between scheduled refresh cycles.
	Interval time.Duration `koanf:"interval"`

	// UnitTimeout bounds each analytics unit's computation within a cycle.
	UnitTimeout time.Duration `koanf:"unit_timeout"`

	// Lookback limits how far back source records are read per cycle.
	Lookback time.Duration `koanf:"lookback"`

	// StaleAfter marks the published snapshot stale for health reporting.
	StaleAfter time.Duration `koanf:"stale_after"`

	// ManualPerMinute rate-limits manual refresh triggers.
	ManualPerMinute int `koanf:"manual_per_minute"`

	CohortGranularity string `koanf:"cohort_granularity"` // hour, day or week
	RFMTopN           int    `koanf:"rfm_top_n"`
	AnomalyBaseline   int    `koanf:"anomaly_baseline"`
	AnomalyLimit      int    `koanf:"anomaly_limit"`
	TopProductsLimit  int    `koanf:"top_products_limit"`
}

// IngestConfig holds event/order intake settings.
type IngestConfig struct {
	// BufferSize is the in-process message channel depth between the HTTP
	// intake and the store writer.
	BufferSize int `koanf:"buffer_size"`
}

// RealtimeConfig holds the optional Redis-backed live counters.
type RealtimeConfig struct {
	Enabled    bool          `koanf:"enabled"`
	RedisAddr  string        `koanf:"redis_addr"`
	RedisDB    int           `koanf:"redis_db"`
	Password   string        `koanf:"password"`
	ActiveTTL  time.Duration `koanf:"active_ttl"`  // active-user presence window
	CounterTTL time.Duration `koanf:"counter_ttl"` // hourly counter expiry
}

// SnapshotConfig holds snapshot persistence settings.
type SnapshotConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// APIConfig holds API response and rate limit settings.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
	RateLimitReqs   int `koanf:"rate_limit_reqs"` // requests per minute per IP
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json or console
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Store: StoreConfig{
			Path:                   "/data/metricus.duckdb",
			MaxMemory:              "2GB",
			Threads:                0,
			PreserveInsertionOrder: true,
		},
		Refresh: RefreshConfig{
			Interval:          5 * time.Minute,
			UnitTimeout:       2 * time.Minute,
			Lookback:          90 * 24 * time.Hour,
			StaleAfter:        15 * time.Minute,
			ManualPerMinute:   6,
			CohortGranularity: "day",
			RFMTopN:           1000,
			AnomalyBaseline:   24,
			AnomalyLimit:      48,
			TopProductsLimit:  10,
		},
		Ingest: IngestConfig{
			BufferSize: 4096,
		},
		Realtime: RealtimeConfig{
			Enabled:    false,
			RedisAddr:  "localhost:6379",
			RedisDB:    0,
			ActiveTTL:  5 * time.Minute,
			CounterTTL: 2 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Enabled: true,
			Dir:     "/data/snapshots",
		},
		API: APIConfig{
			DefaultPageSize: 50,
			MaxPageSize:     500,
			RateLimitReqs:   300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for values that would only fail later
// and deeper, at the component that consumes them.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive, got %s", c.Refresh.Interval)
	}
	if c.Refresh.UnitTimeout <= 0 {
		return fmt.Errorf("refresh.unit_timeout must be positive, got %s", c.Refresh.UnitTimeout)
	}
	switch c.Refresh.CohortGranularity {
	case "hour", "day", "week":
	default:
		return fmt.Errorf("refresh.cohort_granularity %q is not hour, day or week", c.Refresh.CohortGranularity)
	}
	if c.Ingest.BufferSize <= 0 {
		return fmt.Errorf("ingest.buffer_size must be positive, got %d", c.Ingest.BufferSize)
	}
	if c.Realtime.Enabled && c.Realtime.RedisAddr == "" {
		return fmt.Errorf("realtime.redis_addr is required when realtime is enabled")
	}
	if c.Snapshot.Enabled && c.Snapshot.Dir == "" {
		return fmt.Errorf("snapshot.dir is required when snapshot persistence is enabled")
	}
	if c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api.max_page_size %d below api.default_page_size %d",
			c.API.MaxPageSize, c.API.DefaultPageSize)
	}
	return nil
}
