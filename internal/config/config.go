// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers a YAML file and environment on top.
// - Every key has a koanf tag matching its env suffix (GRIDPICK_<KEY>).
package config

import (
	"time"
)

// Record store drivers.
const (
	DriverREST     = "rest"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ScoringAPIURL is the base URL of the scoring/settlement API.
	ScoringAPIURL string `koanf:"scoring_api_url"`

	// RecordStoreDriver is one of rest, postgres, memory.
	RecordStoreDriver string `koanf:"record_store_driver"`

	// RecordStoreURL and RecordStoreKey address a PostgREST-style backend.
	RecordStoreURL string `koanf:"record_store_url"`
	RecordStoreKey string `koanf:"record_store_key"`

	// DatabaseURL is the Postgres DSN used by the postgres driver.
	DatabaseURL string `koanf:"database_url"`

	// JWTSecret verifies session tokens issued by the auth collaborator.
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	// RequestTimeoutMS bounds every outbound call.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// StandingsTTLMS is how long fetched standings are served from cache.
	StandingsTTLMS int `koanf:"standings_ttl_ms"`

	// MaxStandingsLimit caps GET /standings?limit.
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// GradeQueueSize bounds pending manual-grade writes.
	GradeQueueSize int `koanf:"grade_queue_size"`

	// GradeWorkerCount sets the number of grade persistence workers.
	GradeWorkerCount int `koanf:"grade_worker_count"`

	// NotificationHistory is how many notifications are kept for late joiners.
	NotificationHistory int `koanf:"notification_history"`

	// AllowedOrigins restricts websocket upgrades; empty means same-origin only.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		ScoringAPIURL:       "http://localhost:8000",
		RecordStoreDriver:   DriverREST,
		RecordStoreURL:      "http://localhost:54321",
		JWTIssuer:           "",
		RequestTimeoutMS:    10_000,
		StandingsTTLMS:      30_000,
		MaxStandingsLimit:   100,
		GradeQueueSize:      1_000,
		GradeWorkerCount:    4,
		NotificationHistory: 50,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// StandingsTTL returns StandingsTTLMS as a duration.
func (c *Config) StandingsTTL() time.Duration {
	return time.Duration(c.StandingsTTLMS) * time.Millisecond
}
