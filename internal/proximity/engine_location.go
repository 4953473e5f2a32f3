// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"context"
	"errors"
	"time"

	"github.com/juac793lc/sala-chat/internal/geo"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
)

// OnLocationUpdate records the position of a connection and notifies it of
// every active marker in range it has not heard about yet. A zero
// observedAt means "now". A location already older than the location TTL is
// stored but takes no part in proximity checks.
func (e *Engine) OnLocationUpdate(ctx context.Context, connectionID string, lat, lon float64, observedAt time.Time) error {
	if connectionID == "" {
		return &ValidationError{Field: "connectionId", Message: "is required"}
	}
	if err := geo.ValidatePoint(lat, lon); err != nil {
		var ce *geo.CoordinateError
		if errors.As(err, &ce) {
			return &ValidationError{Field: ce.Field, Message: "out of range"}
		}
		return &ValidationError{Message: err.Error()}
	}

	start := time.Now()
	e.mu.Lock()
	now := e.now()
	loc := e.tracker.Update(connectionID, lat, lon, observedAt, now)

	sent := 0
	markers := e.markers.ListActive()
	if !e.tracker.Fresh(loc, now) {
		markers = nil
	}
	for _, m := range markers {
		if e.dispatcher.WasNotified(m.ID, connectionID) {
			continue
		}
		if geo.DistanceMeters(m.Latitude, m.Longitude, lat, lon) > e.dispatcher.Radius() {
			continue
		}
		sent += e.notifyLocked(ctx, m, []Location{loc})
	}
	metrics.LocationsTracked.Set(float64(e.tracker.Len()))
	e.mu.Unlock()

	metrics.ProximityEvaluationDuration.WithLabelValues("location_update").Observe(time.Since(start).Seconds())
	if sent > 0 {
		logging.Ctx(ctx).Debug().Int("notified", sent).Msg("Location update matched nearby markers")
	}
	return nil
}

// PurgeLocations drops stale locations. Run every location purge interval.
func (e *Engine) PurgeLocations() int {
	e.mu.Lock()
	removed := e.tracker.PurgeExpired(e.now())
	tracked := e.tracker.Len()
	e.mu.Unlock()

	metrics.LocationsTracked.Set(float64(tracked))
	if removed > 0 {
		metrics.LocationsPurged.Add(float64(removed))
		logging.Debug().Int("removed", removed).Int("tracked", tracked).Msg("Purged stale locations")
	}
	return removed
}
