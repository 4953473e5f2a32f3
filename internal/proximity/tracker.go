// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"time"

	"github.com/juac793lc/sala-chat/internal/geo"
)

// Location is the last reported position of a connection.
type Location struct {
	ConnectionID string
	Latitude     float64
	Longitude    float64
	ObservedAt   time.Time
}

// LocationTracker keeps at most one location per connection. Stale entries
// are filtered at read time and dropped by PurgeExpired.
//
// Not safe for concurrent use; the Engine serializes access.
type LocationTracker struct {
	ttl  time.Duration
	locs map[string]Location
	grid *geo.Grid
}

// NewLocationTracker creates a tracker. cellMeters sizes the spatial index.
func NewLocationTracker(ttl time.Duration, cellMeters float64) *LocationTracker {
	return &LocationTracker{
		ttl:  ttl,
		locs: make(map[string]Location),
		grid: geo.NewGrid(cellMeters),
	}
}

// Update upserts the location of a connection. A zero observedAt is
// replaced by receivedAt; timestamps from the future are clamped to it so a
// skewed client cannot keep a location alive past the TTL.
func (t *LocationTracker) Update(connectionID string, lat, lon float64, observedAt, receivedAt time.Time) Location {
	if observedAt.IsZero() || observedAt.After(receivedAt) {
		observedAt = receivedAt
	}
	loc := Location{ConnectionID: connectionID, Latitude: lat, Longitude: lon, ObservedAt: observedAt}
	t.locs[connectionID] = loc
	t.grid.Insert(connectionID, lat, lon)
	return loc
}

// Fresh reports whether loc is still inside the location TTL at now.
func (t *LocationTracker) Fresh(loc Location, now time.Time) bool {
	return t.fresh(loc, now)
}

func (t *LocationTracker) fresh(loc Location, now time.Time) bool {
	return now.Sub(loc.ObservedAt) <= t.ttl
}

// Get returns the location of a connection if it is still fresh.
func (t *LocationTracker) Get(connectionID string, now time.Time) (Location, bool) {
	loc, ok := t.locs[connectionID]
	if !ok || !t.fresh(loc, now) {
		return Location{}, false
	}
	return loc, true
}

// Active returns every fresh location.
func (t *LocationTracker) Active(now time.Time) []Location {
	out := make([]Location, 0, len(t.locs))
	for _, loc := range t.locs {
		if t.fresh(loc, now) {
			out = append(out, loc)
		}
	}
	return out
}

// Near returns fresh locations within radiusMeters of a point, using the
// spatial index to avoid scanning every connection.
func (t *LocationTracker) Near(lat, lon, radiusMeters float64, now time.Time) []Location {
	hits := t.grid.Nearby(lat, lon, radiusMeters)
	out := make([]Location, 0, len(hits))
	for _, h := range hits {
		if loc, ok := t.locs[h.ID]; ok && t.fresh(loc, now) {
			out = append(out, loc)
		}
	}
	return out
}

// PurgeExpired drops stale entries and returns how many were removed.
func (t *LocationTracker) PurgeExpired(now time.Time) int {
	removed := 0
	for id, loc := range t.locs {
		if !t.fresh(loc, now) {
			delete(t.locs, id)
			t.grid.Remove(id)
			removed++
		}
	}
	return removed
}

// Remove forgets a connection.
func (t *LocationTracker) Remove(connectionID string) {
	delete(t.locs, connectionID)
	t.grid.Remove(connectionID)
}

// Len counts stored entries, fresh or not.
func (t *LocationTracker) Len() int {
	return len(t.locs)
}
