// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package logging provides zerolog-based structured logging for Sala Chat.
//
// A single global logger is configured once at startup and then used through
// package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("marker_id", id).Msg("Marker created")
//	logging.Error().Err(err).Str("endpoint", ep).Msg("Push delivery failed")
//
// # Configuration
//
// Level, format and caller reporting come from the logging section of the
// application config (LOG_LEVEL, LOG_FORMAT, LOG_CALLER). JSON is the
// production format; console output is meant for development.
//
// # Context
//
// HTTP requests carry a correlation id (the request id) and WebSocket
// handlers carry the connection and user ids. Ctx returns a logger with
// whichever of those fields the context holds:
//
//	ctx = logging.ContextWithConnection(ctx, conn.ID, conn.UserID)
//	logging.Ctx(ctx).Debug().Msg("Location updated")
//
// # slog
//
// The supervisor tree logs through log/slog. NewSlogLogger bridges those
// records into the same zerolog output.
package logging
