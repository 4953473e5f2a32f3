// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package config loads the application configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file (CONFIG_PATH or config.yaml), then environment variables. The result
// is validated before it is returned by LoadWithKoanf.
//
// Sections:
//
//	server     listen address, timeouts, environment
//	proximity  location TTL, notification radius, marker TTL, cap, sweep
//	database   DuckDB path and resources
//	push       Web Push toggle and VAPID keys
//	nats       event publishing and the embedded server
//	dedup      Badger notification ledger
//	security   auth mode, JWT secret, CORS and HTTP rate limits
//	websocket  per-connection inbound limits
//	logging    level, format, caller
package config
