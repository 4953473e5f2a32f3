// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package models

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Coordinate is a degree value that clients send either as a JSON number or
// as a numeric string.
type Coordinate float64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("coordinate %q is not numeric", s)
		}
		*c = Coordinate(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("coordinate is not numeric: %w", err)
	}
	*c = Coordinate(f)
	return nil
}

// Float returns the value as float64.
func (c Coordinate) Float() float64 {
	return float64(c)
}

// ClientTime is an optional client timestamp: an RFC3339 string or epoch
// milliseconds. Unparsable input decodes to the zero time so the server can
// substitute its own clock.
type ClientTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler. It never fails.
func (t *ClientTime) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if json.Unmarshal(data, &s) != nil {
			return nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = ts
			return nil
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
			t.Time = time.UnixMilli(ms)
		}
		return nil
	}
	var ms float64
	if json.Unmarshal(data, &ms) == nil && ms > 0 {
		t.Time = time.UnixMilli(int64(ms))
	}
	return nil
}

// AddMarkerRequest is the add_marker payload. Category falls back to the
// legacy tipoReporte field.
type AddMarkerRequest struct {
	Latitude    *Coordinate `json:"latitude" validate:"required,latitude"`
	Longitude   *Coordinate `json:"longitude" validate:"required,longitude"`
	Category    string      `json:"category" validate:"omitempty,max=64"`
	TipoReporte string      `json:"tipoReporte" validate:"omitempty,max=64"`
}

// CategoryName returns whichever category field the client populated.
func (r *AddMarkerRequest) CategoryName() string {
	if r.Category != "" {
		return r.Category
	}
	return r.TipoReporte
}

// UpdateLocationRequest is the update_location payload.
type UpdateLocationRequest struct {
	Lat *Coordinate `json:"lat" validate:"required,latitude"`
	Lng *Coordinate `json:"lng" validate:"required,longitude"`
	Ts  ClientTime  `json:"ts"`
}

// MarkerIDRequest carries a marker id for remove/confirm/deny.
type MarkerIDRequest struct {
	MarkerID string `json:"markerId" validate:"required,max=64"`
}

// PushSubscribeRequest mirrors the browser PushSubscription JSON.
type PushSubscribeRequest struct {
	UserID       string `json:"userId" validate:"omitempty,max=128"`
	Subscription struct {
		Endpoint string `json:"endpoint" validate:"required,url,max=2048"`
		Keys     struct {
			P256dh string `json:"p256dh" validate:"required"`
			Auth   string `json:"auth" validate:"required"`
		} `json:"keys"`
	} `json:"subscription"`
}

// PushUnsubscribeRequest removes one endpoint.
type PushUnsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url,max=2048"`
}
