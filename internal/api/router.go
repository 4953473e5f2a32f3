// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/juac793lc/sala-chat/internal/middleware"
)

// compressionLevel is the gzip level of /api responses.
const compressionLevel = 5

// Router owns the handler and middleware factories.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures every HTTP route.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.Get("/health", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The socket authenticates itself so it can answer 401 before upgrading.
	if router.handler.deps.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", router.handler.deps.WebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(chimiddleware.Compress(compressionLevel, "application/json"))
		r.Use(OptionalIdentity(router.handler.deps.Auth))

		r.Get("/markers", router.handler.Markers)

		r.Route("/push", func(r chi.Router) {
			r.Get("/vapid-public-key", router.handler.VAPIDPublicKey)
			r.Post("/subscribe", router.handler.PushSubscribe)
			r.Post("/unsubscribe", router.handler.PushUnsubscribe)
		})
	})

	return r
}
