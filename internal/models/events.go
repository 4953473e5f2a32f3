// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package models

// Inbound socket events.
const (
	EventAddMarker              = "add_marker"
	EventUpdateLocation         = "update_location"
	EventRemoveMarker           = "remove_marker"
	EventConfirmMarker          = "confirm_marker"
	EventDenyMarker             = "deny_marker"
	EventRequestExistingMarkers = "request_existing_markers"
	EventPing                   = "ping"
)

// Outbound socket events.
const (
	EventAuthSuccess           = "auth_success"
	EventUserOnline            = "user_online"
	EventUserOffline           = "user_offline"
	EventMarkerAdded           = "marker_added"
	EventMarkerConfirmed       = "marker_confirmed"
	EventMapNotification       = "map_notification"
	EventMarkerAutoRemoved     = "marker_auto_removed"
	EventMarkerRemoved         = "marker_removed"
	EventMarkerRemoveConfirmed = "marker_remove_confirmed"
	EventMarkerVotes           = "marker_votes"
	EventExistingMarkers       = "existing_markers"
	EventErrorMessage          = "error_message"
	EventPong                  = "pong"
)

// MapNotification tells one connection that a marker appeared near it.
type MapNotification struct {
	NotificationID string     `json:"notificationId"`
	Type           string     `json:"type"`
	Marker         MarkerView `json:"marker"`
	DistanceMeters float64    `json:"distanceMeters"`
	Message        string     `json:"message"`
}

// MarkerAutoRemoved announces an expiry.
type MarkerAutoRemoved struct {
	MarkerID string `json:"markerId"`
	Reason   string `json:"reason"`
	Message  string `json:"message"`
}

// MarkerRemoved announces a manual removal.
type MarkerRemoved struct {
	MarkerID string `json:"markerId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// MarkerRemoveConfirmed is echoed to the connection that removed a marker.
type MarkerRemoveConfirmed struct {
	MarkerID string `json:"markerId"`
}

// MarkerVotes carries updated confirm/deny counts.
type MarkerVotes struct {
	ID       string `json:"id"`
	Confirms int    `json:"confirms"`
	Denies   int    `json:"denies"`
}

// ErrorMessage reports a rejected request to its sender only.
type ErrorMessage struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

// UserPresence is broadcast when a user connects or disconnects.
type UserPresence struct {
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	TotalConnected int    `json:"totalConnected"`
	TotalUsers     int    `json:"totalRegistered"`
}

// AuthSuccess acknowledges a socket handshake.
type AuthSuccess struct {
	Message string   `json:"message"`
	User    UserInfo `json:"user"`
}

// UserInfo identifies the authenticated user of a socket.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
