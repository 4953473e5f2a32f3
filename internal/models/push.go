// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package models

import (
	"net/http"
	"time"
)

// PushSubscription is a browser Web Push endpoint registered by a user.
// Endpoint is unique across subscriptions.
type PushSubscription struct {
	UserID    string    `json:"userId,omitempty"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"createdAt"`
}

// PushResult is the outcome of delivering one push message.
type PushResult struct {
	Endpoint   string
	OK         bool
	StatusCode int
	Err        error
}

// Gone reports whether the push service says the subscription no longer
// exists and should be deleted.
func (r PushResult) Gone() bool {
	return r.StatusCode == http.StatusNotFound || r.StatusCode == http.StatusGone
}

// PushPayload is the JSON document delivered to the service worker.
type PushPayload struct {
	Title    string     `json:"title"`
	Body     string     `json:"body"`
	Tag      string     `json:"tag"`
	Renotify bool       `json:"renotify"`
	Marker   MarkerView `json:"marker"`
}
