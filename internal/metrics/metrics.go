// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Marker lifecycle
	MarkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "markers_active",
			Help: "Current number of active markers held in memory",
		},
	)

	MarkersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markers_created_total",
			Help: "Total number of markers created",
		},
		[]string{"category"},
	)

	MarkersDeactivated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "markers_deactivated_total",
			Help: "Total number of markers deactivated",
		},
		[]string{"reason"}, // "expired", "sweep", "manual"
	)

	MarkerVotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marker_votes_total",
			Help: "Total number of confirm/deny votes",
		},
		[]string{"vote"},
	)

	// Proximity dispatch
	ProximityNotifications = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_notifications_total",
			Help: "Total number of map_notification events dispatched",
		},
	)

	ProximityNotificationsCapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_notifications_capped_total",
			Help: "Connections within radius skipped because the per-marker cap was reached",
		},
	)

	ProximityEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proximity_evaluation_duration_seconds",
			Help:    "Time spent evaluating proximity for one trigger",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"trigger"}, // "marker_create", "location_update"
	)

	LocationsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "locations_tracked",
			Help: "Current number of connection locations held in memory",
		},
	)

	LocationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "locations_purged_total",
			Help: "Total number of stale locations removed by the purge pass",
		},
	)

	// Storage
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of failed storage operations",
		},
		[]string{"operation"},
	)

	StoragePendingReconcile = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "storage_pending_reconcile",
			Help: "Storage writes waiting for the sweep to retry them",
		},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Push
	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Total number of Web Push delivery attempts",
		},
		[]string{"result"}, // "ok", "failed", "gone", "circuit_open"
	)

	PushSubscriptionsRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_subscriptions_removed_total",
			Help: "Subscriptions removed after the push service reported them gone",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Event bus
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Marker lifecycle events mirrored to the event bus",
		},
		[]string{"event", "result"},
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of inbound WebSocket messages",
		},
		[]string{"type"},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of outbound WebSocket messages",
		},
	)

	WSMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Outbound or inbound messages dropped",
		},
		[]string{"reason"}, // "slow_client", "rate_limited", "invalid"
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordDBQuery records a DuckDB query and, on failure, a storage error.
func RecordDBQuery(operation string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StorageErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records one HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordPushResult classifies one delivery outcome.
func RecordPushResult(ok, gone bool) {
	switch {
	case ok:
		PushDeliveries.WithLabelValues("ok").Inc()
	case gone:
		PushDeliveries.WithLabelValues("gone").Inc()
	default:
		PushDeliveries.WithLabelValues("failed").Inc()
	}
}

// RecordEventPublish records one event bus publication.
func RecordEventPublish(event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsPublished.WithLabelValues(event, result).Inc()
}
