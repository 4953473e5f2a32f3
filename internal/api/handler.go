// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/juac793lc/sala-chat/internal/auth"
	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/proximity"
)

// MarkerSource is the read side of the proximity engine.
type MarkerSource interface {
	ListActive() []models.Marker
	Stats() proximity.Stats
}

// SubscriptionStore persists browser push subscriptions.
type SubscriptionStore interface {
	SavePushSubscription(ctx context.Context, s models.PushSubscription) error
	RemovePushSubscription(ctx context.Context, endpoint string) error
}

// Pinger reports storage reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies wires the handlers to the rest of the server. Nil
// collaborators disable the routes that need them.
type Dependencies struct {
	Markers        MarkerSource
	Subscriptions  SubscriptionStore
	Database       Pinger
	VAPIDPublicKey string
	WebSocket      http.Handler
	Auth           *auth.Authenticator
	Security       config.SecurityConfig
}

// Handler serves the HTTP routes.
type Handler struct {
	deps      Dependencies
	startTime time.Time
}

// NewHandler creates the HTTP handlers.
func NewHandler(deps Dependencies) *Handler {
	return &Handler{deps: deps, startTime: time.Now()}
}

// healthPingTimeout bounds the database ping of /health.
const healthPingTimeout = 2 * time.Second

// Health reports liveness plus engine counters. The status is "degraded"
// when the database does not answer; the engine keeps working in memory.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	if h.deps.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		status.Database = h.deps.Database.Ping(ctx) == nil
		if !status.Database {
			status.Status = "degraded"
		}
	}

	if h.deps.Markers != nil {
		s := h.deps.Markers.Stats()
		status.Connections = s.Connections
		status.ActiveMarkers = s.ActiveMarkers
		status.Locations = s.TrackedLocations
	}

	respondJSON(w, http.StatusOK, successResponse(status, nil))
}

// Markers returns the active markers, newest first.
func (h *Handler) Markers(w http.ResponseWriter, r *http.Request) {
	if h.deps.Markers == nil {
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Marker engine not available", nil)
		return
	}
	active := h.deps.Markers.ListActive()
	views := make([]models.MarkerView, len(active))
	for i := range active {
		views[i] = active[i].View()
	}
	count := len(views)
	respondJSON(w, http.StatusOK, successResponse(views, &count))
}
