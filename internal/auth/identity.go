// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package auth identifies the user behind a socket or API request.
//
// Two modes are supported. In "jwt" mode a HS256 token carrying userId and
// username is read from the token query parameter or the Authorization
// header. In "none" mode (development) userId and username come straight
// from the query string.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
)

// Authentication modes.
const (
	ModeJWT  = "jwt"
	ModeNone = "none"
)

var (
	// ErrNoCredentials means the request carried no token.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidToken means the token failed validation.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is an authenticated user.
type Identity struct {
	UserID   string
	Username string
}

type contextKey string

const identityContextKey contextKey = "identity"

// ContextWithIdentity stores id in ctx.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity stored by Middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// Authenticator resolves identities according to the configured mode.
type Authenticator struct {
	mode string
	jwt  *JWTManager
}

// NewAuthenticator builds an authenticator from the security section.
func NewAuthenticator(cfg *config.SecurityConfig) (*Authenticator, error) {
	a := &Authenticator{mode: cfg.AuthMode}
	switch cfg.AuthMode {
	case ModeJWT:
		m, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		a.jwt = m
	case ModeNone:
		logging.Warn().Msg("Authentication is disabled (AUTH_MODE=none); identities are taken from query parameters")
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.AuthMode)
	}
	return a, nil
}

// Mode returns the configured mode.
func (a *Authenticator) Mode() string {
	return a.mode
}

// JWT returns the token manager, nil in "none" mode.
func (a *Authenticator) JWT() *JWTManager {
	return a.jwt
}

// Authenticate resolves the identity of r.
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	if a.mode == ModeNone {
		q := r.URL.Query()
		userID := strings.TrimSpace(q.Get("userId"))
		if userID == "" {
			return Identity{}, ErrNoCredentials
		}
		return Identity{UserID: userID, Username: displayName(userID, q.Get("username"))}, nil
	}

	token := extractToken(r)
	if token == "" {
		return Identity{}, ErrNoCredentials
	}
	claims, err := a.jwt.ValidateToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	userID := string(claims.UserID)
	return Identity{UserID: userID, Username: displayName(userID, claims.Username)}, nil
}

// displayName falls back to User_<id> when no username was supplied.
func displayName(userID, username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return "User_" + userID
	}
	return username
}

// extractToken reads the token query parameter, then the Authorization
// header. Browsers cannot set headers on a WebSocket handshake.
func extractToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// Middleware rejects unauthenticated requests with 401 and stores the
// identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Request authentication failed")
			writeUnauthorized(w)
			return
		}
		ctx := ContextWithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "Token inválido"}) // client went away
}
