// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	connectionIDKey  contextKey = "connection_id"
	userIDKey        contextKey = "user_id"
)

// GenerateCorrelationID returns a short id suitable for log correlation.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID attaches id to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// ContextWithNewCorrelationID attaches a freshly generated correlation id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation id or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithConnection tags ctx with the socket connection and its user.
// Every engine call made on behalf of a socket carries both.
func ContextWithConnection(ctx context.Context, connectionID, userID string) context.Context {
	ctx = context.WithValue(ctx, connectionIDKey, connectionID)
	return context.WithValue(ctx, userIDKey, userID)
}

// ConnectionIDFromContext returns the connection id or "".
func ConnectionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(connectionIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger enriched with whatever ids ctx carries.
//
//	logging.Ctx(ctx).Info().Str("marker_id", id).Msg("Marker removed")
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		lc = lc.Str("correlation_id", v)
	}
	if v, ok := ctx.Value(connectionIDKey).(string); ok && v != "" {
		lc = lc.Str("connection_id", v)
	}
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		lc = lc.Str("user_id", v)
	}
	l := lc.Logger()
	return &l
}
