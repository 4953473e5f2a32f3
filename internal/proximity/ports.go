// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"context"
	"time"

	"github.com/juac793lc/sala-chat/internal/models"
)

// Storage persists markers. Calls are made off the dispatch path.
type Storage interface {
	InsertMarker(ctx context.Context, m models.Marker) error
	DeactivateMarker(ctx context.Context, markerID string) error
	UpdateMarkerVotes(ctx context.Context, markerID string, confirms, denies int) error
	GetAllActiveMarkers(ctx context.Context) ([]models.Marker, error)
}

// SubscriptionStore lists and prunes Web Push subscriptions.
type SubscriptionStore interface {
	ListPushSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	RemovePushSubscription(ctx context.Context, endpoint string) error
}

// PushSender delivers one payload to many subscriptions and reports a
// result per subscription. One failure never stops the rest.
type PushSender interface {
	SendToSubscriptions(ctx context.Context, subs []models.PushSubscription, payload []byte) []models.PushResult
}

// Emitter delivers outbound events to connected clients.
type Emitter interface {
	SendTo(connectionID, event string, payload any)
	Broadcast(event string, payload any)
	BroadcastExcept(connectionID, event string, payload any)
}

// EventSink mirrors lifecycle events to an external bus.
type EventSink interface {
	Publish(ctx context.Context, event string, payload any) error
}

// NotificationLedger remembers which users were already notified about a
// marker so a restart does not notify them again. The engine reads it only
// when taking markers over from storage, never on the dispatch path.
type NotificationLedger interface {
	NotifiedUsers(markerID string) ([]string, error)
	MarkNotified(markerID string, userIDs []string, ttl time.Duration) error
	Forget(markerID string) error
}

type nopEmitter struct{}

func (nopEmitter) SendTo(string, string, any)          {}
func (nopEmitter) Broadcast(string, any)               {}
func (nopEmitter) BroadcastExcept(string, string, any) {}
