// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package config

import "time"

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Proximity ProximityConfig `koanf:"proximity"`
	Database  DatabaseConfig  `koanf:"database"`
	Push      PushConfig      `koanf:"push"`
	NATS      NATSConfig      `koanf:"nats"`
	Dedup     DedupConfig     `koanf:"dedup"`
	Security  SecurityConfig  `koanf:"security"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// ProximityConfig carries the tuning constants of the marker engine.
type ProximityConfig struct {
	// LocationTTL is how long a reported position stays usable.
	LocationTTL time.Duration `koanf:"location_ttl"`

	// RadiusMeters is the notification radius around a new marker.
	RadiusMeters float64 `koanf:"radius_meters"`

	// MarkerTTL is the lifetime of expiring (point-of-interest) markers.
	MarkerTTL time.Duration `koanf:"marker_ttl"`

	// MaxNotificationsPerMarker caps fan-out for a single marker.
	MaxNotificationsPerMarker int `koanf:"max_notifications_per_marker"`

	SweepInterval         time.Duration `koanf:"sweep_interval"`
	LocationPurgeInterval time.Duration `koanf:"location_purge_interval"`

	// GridCellMeters sizes the spatial hash used to pre-select nearby connections.
	GridCellMeters float64 `koanf:"grid_cell_meters"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// PushConfig holds Web Push (VAPID) settings. When the keys are left empty
// a pair is generated once and stored in the database so browser
// subscriptions survive restarts.
type PushConfig struct {
	Enabled         bool          `koanf:"enabled"`
	VAPIDPublicKey  string        `koanf:"vapid_public_key"`
	VAPIDPrivateKey string        `koanf:"vapid_private_key"`
	Subject         string        `koanf:"subject"`
	TTL             int           `koanf:"ttl"`
	Timeout         time.Duration `koanf:"timeout"`
}

// NATSConfig controls mirroring of marker lifecycle events onto NATS.
type NATSConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url"`

	// EmbeddedServer starts an in-process nats-server listening on URL.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`

	SubjectPrefix string `koanf:"subject_prefix"`
}

// DedupConfig enables the persistent notification ledger.
type DedupConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`

	// InMemory keeps the ledger in RAM (tests and ephemeral deployments).
	InMemory bool `koanf:"in_memory"`
}

// SecurityConfig holds authentication, CORS and rate limit settings.
type SecurityConfig struct {
	// AuthMode is "jwt" or "none". In "none" mode sockets may pass userId and
	// username as query parameters.
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	TokenTTL          time.Duration `koanf:"token_ttl"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// WebSocketConfig bounds per-connection inbound traffic.
type WebSocketConfig struct {
	MessagesPerSecond float64 `koanf:"messages_per_second"`
	Burst             int     `koanf:"burst"`
	MaxMessageSize    int64   `koanf:"max_message_size"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
