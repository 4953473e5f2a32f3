// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package websocket

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/juac793lc/sala-chat/internal/auth"
	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/models"
)

// registerTimeout bounds the wait for the hub to accept a new client.
const registerTimeout = 5 * time.Second

// Handler upgrades authenticated requests to sockets.
type Handler struct {
	hub      *Hub
	router   *Router
	auth     *auth.Authenticator
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewHandler creates the /ws handler. allowedOrigins uses the CORS list;
// "*" accepts any origin.
func NewHandler(hub *Hub, router *Router, authn *auth.Authenticator, cfg config.WebSocketConfig, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		router: router,
		auth:   authn,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeHTTP authenticates, upgrades and registers the client.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := h.auth.Authenticate(r)
	if err != nil {
		logging.Debug().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket authentication failed")
		http.Error(w, "Token inválido", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := models.Connection{ID: uuid.NewString(), UserID: id.UserID, Username: id.Username}
	client := NewClient(h.hub, h.router, ws, conn, h.cfg)

	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		_ = ws.Close()
		return
	case <-time.After(registerTimeout):
		logging.Error().Str("connection_id", conn.ID).Msg("websocket hub is not accepting clients")
		_ = ws.Close()
		return
	}
	<-client.Registered()
	client.Start()
}
