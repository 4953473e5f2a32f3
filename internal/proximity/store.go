// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/juac793lc/sala-chat/internal/models"
)

// MarkerStore holds the active markers. Deactivated markers are removed;
// their ids are remembered so they can never come back.
//
// Not safe for concurrent use; the Engine serializes access.
type MarkerStore struct {
	ttl     time.Duration
	markers map[string]*models.Marker
	retired map[string]time.Time
}

// NewMarkerStore creates a store giving expiring markers a lifetime of ttl.
func NewMarkerStore(ttl time.Duration) *MarkerStore {
	return &MarkerStore{
		ttl:     ttl,
		markers: make(map[string]*models.Marker),
		retired: make(map[string]time.Time),
	}
}

// Create allocates and stores a new active marker.
func (s *MarkerStore) Create(ownerID, ownerName string, lat, lon float64, category models.Category, now time.Time) models.Marker {
	m := &models.Marker{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		OwnerName: ownerName,
		Latitude:  lat,
		Longitude: lon,
		Category:  category,
		CreatedAt: now,
		Active:    true,
	}
	if category.Expires() {
		m.ExpiresAt = now.Add(s.ttl)
	}
	s.markers[m.ID] = m
	return *m
}

// Restore inserts a marker read back from storage. It refuses ids that were
// already deactivated in this process and inactive records.
func (s *MarkerStore) Restore(m models.Marker) bool {
	if !m.Active {
		return false
	}
	if _, dead := s.retired[m.ID]; dead {
		return false
	}
	if _, exists := s.markers[m.ID]; exists {
		return false
	}
	cp := m
	s.markers[m.ID] = &cp
	return true
}

// Get returns an active marker.
func (s *MarkerStore) Get(id string) (models.Marker, bool) {
	m, ok := s.markers[id]
	if !ok {
		return models.Marker{}, false
	}
	return *m, true
}

// Deactivate removes a marker. The second call for the same id returns
// false, which makes every deactivation path idempotent.
func (s *MarkerStore) Deactivate(id string, now time.Time) (models.Marker, bool) {
	m, ok := s.markers[id]
	if !ok {
		return models.Marker{}, false
	}
	delete(s.markers, id)
	s.retired[id] = now
	m.Active = false
	return *m, true
}

// Retired reports whether id was deactivated in this process.
func (s *MarkerStore) Retired(id string) bool {
	_, ok := s.retired[id]
	return ok
}

// ForgetRetiredBefore drops tombstones older than cutoff, except those in
// keep. Storage may still list a kept id as active.
func (s *MarkerStore) ForgetRetiredBefore(cutoff time.Time, keep map[string]struct{}) {
	for id, at := range s.retired {
		if _, held := keep[id]; held {
			continue
		}
		if at.Before(cutoff) {
			delete(s.retired, id)
		}
	}
}

// Confirm adds a confirmation vote.
func (s *MarkerStore) Confirm(id string) (models.Marker, error) {
	m, ok := s.markers[id]
	if !ok {
		return models.Marker{}, &NotFoundError{MarkerID: id}
	}
	m.Confirms++
	return *m, nil
}

// Deny adds a denial vote.
func (s *MarkerStore) Deny(id string) (models.Marker, error) {
	m, ok := s.markers[id]
	if !ok {
		return models.Marker{}, &NotFoundError{MarkerID: id}
	}
	m.Denies++
	return *m, nil
}

// ListActive returns every active marker, newest first.
func (s *MarkerStore) ListActive() []models.Marker {
	out := make([]models.Marker, 0, len(s.markers))
	for _, m := range s.markers {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// ExpiredBy returns ids of active markers whose deadline is at or before now.
func (s *MarkerStore) ExpiredBy(now time.Time) []string {
	var ids []string
	for id, m := range s.markers {
		if m.ExpiredAt(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len counts active markers.
func (s *MarkerStore) Len() int {
	return len(s.markers)
}
