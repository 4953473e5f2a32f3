// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package models holds the domain records and wire payloads shared by the
// engine, storage, transport and HTTP layers.
package models

import (
	"strings"
	"time"
)

// Category classifies a marker. Only point-of-interest markers expire.
type Category string

const (
	CategoryGeneralReport   Category = "general-report"
	CategoryPointOfInterest Category = "point-of-interest"
)

// Legacy category names still sent by older clients.
const (
	legacyInteres = "interes"
	legacyPolicia = "policia"
	legacyReporte = "reporte"
)

// ParseCategory maps canonical and legacy names onto a Category.
// "policia" and "interes" are kept as aliases of point-of-interest for
// clients predating the rename. Anything unrecognised is a general report.
func ParseCategory(raw string) Category {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(CategoryPointOfInterest), legacyInteres, legacyPolicia:
		return CategoryPointOfInterest
	default:
		return CategoryGeneralReport
	}
}

// Expires reports whether markers of this category are removed automatically.
func (c Category) Expires() bool {
	return c == CategoryPointOfInterest
}

// Legacy returns the name older clients render (tipoReporte).
func (c Category) Legacy() string {
	if c == CategoryPointOfInterest {
		return legacyInteres
	}
	return legacyReporte
}

// Marker is a geolocated report on the shared map.
type Marker struct {
	ID        string
	OwnerID   string
	OwnerName string
	Latitude  float64
	Longitude float64
	Category  Category
	CreatedAt time.Time
	// ExpiresAt is zero for categories that never expire.
	ExpiresAt time.Time
	Confirms  int
	Denies    int
	Active    bool
}

// ExpiredAt reports whether an expiring marker has reached its deadline.
func (m *Marker) ExpiredAt(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}

// MarkerView is the JSON shape of a marker sent to clients. Times are epoch
// milliseconds.
type MarkerView struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Category    Category `json:"category"`
	TipoReporte string   `json:"tipoReporte"`
	Timestamp   int64    `json:"timestamp"`
	ExpiresAt   *int64   `json:"expiresAt"`
	Confirms    int      `json:"confirms"`
	Denies      int      `json:"denies"`
}

// View converts m to its wire form.
func (m *Marker) View() MarkerView {
	v := MarkerView{
		ID:          m.ID,
		UserID:      m.OwnerID,
		Username:    m.OwnerName,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		Category:    m.Category,
		TipoReporte: m.Category.Legacy(),
		Timestamp:   m.CreatedAt.UnixMilli(),
		Confirms:    m.Confirms,
		Denies:      m.Denies,
	}
	if !m.ExpiresAt.IsZero() {
		ms := m.ExpiresAt.UnixMilli()
		v.ExpiresAt = &ms
	}
	return v
}

// Connection identifies one live socket session and its user.
type Connection struct {
	ID       string
	UserID   string
	Username string
}
