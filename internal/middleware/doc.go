// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: propagates or generates X-Request-ID and seeds the logging
    correlation id with it
  - PrometheusMetrics: request counters and latency labelled by chi route
    pattern
  - AccessLog: one structured log line per request

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

Every wrapper keeps http.Hijacker working so /ws can be upgraded behind it.
*/
package middleware
