// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

/*
Package api exposes the HTTP surface of the server on a chi router.

Routes:

	GET  /health                      liveness plus engine counters
	GET  /metrics                     Prometheus exposition
	GET  /ws                          WebSocket upgrade (?token= or Authorization)
	GET  /api/markers                 active markers, newest first
	GET  /api/push/vapid-public-key   VAPID application server key
	POST /api/push/subscribe          store a browser PushSubscription
	POST /api/push/unsubscribe        forget an endpoint

JSON responses use models.APIResponse:

	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}

Middleware order: request id, real IP, panic recovery, access log,
Prometheus metrics, CORS. The /api group adds security headers, gzip and
an IP rate limit from security.rate_limit_*.
*/
package api
