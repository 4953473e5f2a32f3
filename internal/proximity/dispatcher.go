// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"sort"

	"github.com/sourcegraph/conc/iter"

	"github.com/juac793lc/sala-chat/internal/geo"
	"github.com/juac793lc/sala-chat/internal/models"
)

// parallelDistanceThreshold is the candidate count above which distances
// are computed on several goroutines.
const parallelDistanceThreshold = 2048

// Candidate is a connection selected for a map_notification.
type Candidate struct {
	ConnectionID   string
	DistanceMeters float64
}

// Dispatcher decides which connections hear about a marker. It keeps one
// NotificationRecord per marker so a connection is notified at most once,
// and sends at most maxPerMarker notifications per evaluation pass.
//
// Not safe for concurrent use; the Engine serializes access.
type Dispatcher struct {
	radius       float64
	maxPerMarker int
	records      map[string]map[string]struct{}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(radiusMeters float64, maxPerMarker int) *Dispatcher {
	return &Dispatcher{
		radius:       radiusMeters,
		maxPerMarker: maxPerMarker,
		records:      make(map[string]map[string]struct{}),
	}
}

// Radius returns the notification radius in meters.
func (d *Dispatcher) Radius() float64 {
	return d.radius
}

// Evaluate returns the connections among locs that are within radius of m
// and not yet notified, closest first, trimmed to maxPerMarker for this
// pass. capped counts in-range connections left out of the pass; they stay
// eligible for later passes. Evaluate does not record anything; call
// MarkNotified for what was sent.
func (d *Dispatcher) Evaluate(m models.Marker, locs []Location) (selected []Candidate, capped int) {
	rec := d.records[m.ID]
	pending := make([]Location, 0, len(locs))
	for _, l := range locs {
		if _, done := rec[l.ConnectionID]; !done {
			pending = append(pending, l)
		}
	}
	if len(pending) == 0 {
		return nil, 0
	}

	distance := func(l *Location) float64 {
		return geo.DistanceMeters(m.Latitude, m.Longitude, l.Latitude, l.Longitude)
	}
	var dists []float64
	if len(pending) >= parallelDistanceThreshold {
		dists = iter.Map(pending, distance)
	} else {
		dists = make([]float64, len(pending))
		for i := range pending {
			dists[i] = distance(&pending[i])
		}
	}

	for i, l := range pending {
		if dists[i] <= d.radius {
			selected = append(selected, Candidate{ConnectionID: l.ConnectionID, DistanceMeters: dists[i]})
		}
	}

	if len(selected) > d.maxPerMarker {
		sort.Slice(selected, func(i, j int) bool {
			if selected[i].DistanceMeters == selected[j].DistanceMeters {
				return selected[i].ConnectionID < selected[j].ConnectionID
			}
			return selected[i].DistanceMeters < selected[j].DistanceMeters
		})
		capped = len(selected) - d.maxPerMarker
		selected = selected[:d.maxPerMarker]
	}
	return selected, capped
}

// MarkNotified records delivery of marker markerID to the given connections.
func (d *Dispatcher) MarkNotified(markerID string, connectionIDs ...string) {
	if len(connectionIDs) == 0 {
		return
	}
	rec, ok := d.records[markerID]
	if !ok {
		rec = make(map[string]struct{}, len(connectionIDs))
		d.records[markerID] = rec
	}
	for _, id := range connectionIDs {
		rec[id] = struct{}{}
	}
}

// WasNotified reports whether connectionID already heard about markerID.
func (d *Dispatcher) WasNotified(markerID, connectionID string) bool {
	_, ok := d.records[markerID][connectionID]
	return ok
}

// Clear drops the NotificationRecord of a marker.
func (d *Dispatcher) Clear(markerID string) {
	delete(d.records, markerID)
}
