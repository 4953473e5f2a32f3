// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/juac793lc/sala-chat/internal/geo"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/validation"
)

// Deactivation reasons, also used as metric labels.
const (
	ReasonExpired = "expired"
	ReasonSweep   = "sweep"
	ReasonManual  = "manual"
)

// ledgerTTLNonExpiring bounds ledger entries of markers without a deadline.
const ledgerTTLNonExpiring = 7 * 24 * time.Hour

// OnMarkerCreate validates and creates a marker, announces it, arms its
// expiry and notifies nearby connections. The creating connection gets
// marker_confirmed; everyone else gets marker_added.
//
// The creating connection is skipped by the creation-time proximity pass; it
// is notified on its next location update like any other client.
func (e *Engine) OnMarkerCreate(ctx context.Context, conn models.Connection, req models.AddMarkerRequest) (models.Marker, error) {
	if err := validateRequest(&req); err != nil {
		return models.Marker{}, err
	}
	lat, lon := req.Latitude.Float(), req.Longitude.Float()
	if err := geo.ValidatePoint(lat, lon); err != nil {
		var ce *geo.CoordinateError
		if errors.As(err, &ce) {
			return models.Marker{}, &ValidationError{Field: ce.Field, Message: "out of range"}
		}
		return models.Marker{}, &ValidationError{Message: err.Error()}
	}
	category := models.ParseCategory(req.CategoryName())

	start := time.Now()
	e.mu.Lock()
	now := e.now()
	m := e.markers.Create(conn.UserID, conn.Username, lat, lon, category, now)
	if category.Expires() {
		e.scheduler.Schedule(m.ID, m.ExpiresAt)
	}
	if e.storage != nil {
		e.pendingInserts[m.ID] = struct{}{}
	}

	view := m.View()
	e.emitter.BroadcastExcept(conn.ID, models.EventMarkerAdded, view)
	e.emitter.SendTo(conn.ID, models.EventMarkerConfirmed, view)

	near := e.tracker.Near(lat, lon, e.dispatcher.Radius(), now)
	for i := 0; i < len(near); i++ {
		if near[i].ConnectionID == conn.ID {
			near = append(near[:i], near[i+1:]...)
			break
		}
	}
	sent := e.notifyLocked(ctx, m, near)
	e.updateGaugesLocked()
	e.mu.Unlock()

	metrics.MarkersCreated.WithLabelValues(string(category)).Inc()
	metrics.ProximityEvaluationDuration.WithLabelValues("marker_create").Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Info().
		Str("marker_id", m.ID).
		Str("category", string(category)).
		Float64("lat", lat).
		Float64("lon", lon).
		Int("notified", sent).
		Msg("Marker created")

	e.persistInsert(ctx, m)
	e.publish(ctx, models.EventMarkerAdded, view)
	if category == models.CategoryPointOfInterest {
		e.pushMarker(ctx, m)
	}
	return m, nil
}

// OnMarkerRemove deactivates a marker on request of a connection.
func (e *Engine) OnMarkerRemove(ctx context.Context, conn models.Connection, markerID string) error {
	if err := validateRequest(&models.MarkerIDRequest{MarkerID: markerID}); err != nil {
		return err
	}

	e.mu.Lock()
	m, ok := e.deactivateLocked(ctx, markerID, ReasonManual, &conn)
	e.mu.Unlock()
	if !ok {
		return &NotFoundError{MarkerID: markerID}
	}

	logging.Ctx(ctx).Info().Str("marker_id", m.ID).Msg("Marker removed")
	return nil
}

// OnConfirm adds a confirmation vote and broadcasts the new counts.
func (e *Engine) OnConfirm(ctx context.Context, conn models.Connection, markerID string) (models.Marker, error) {
	return e.vote(ctx, conn, markerID, "confirm", e.markers.Confirm)
}

// OnDeny adds a denial vote and broadcasts the new counts.
func (e *Engine) OnDeny(ctx context.Context, conn models.Connection, markerID string) (models.Marker, error) {
	return e.vote(ctx, conn, markerID, "deny", e.markers.Deny)
}

func (e *Engine) vote(ctx context.Context, conn models.Connection, markerID, kind string, apply func(string) (models.Marker, error)) (models.Marker, error) {
	if err := validateRequest(&models.MarkerIDRequest{MarkerID: markerID}); err != nil {
		return models.Marker{}, err
	}

	e.mu.Lock()
	m, err := apply(markerID)
	if err != nil {
		e.mu.Unlock()
		return models.Marker{}, err
	}
	votes := models.MarkerVotes{ID: m.ID, Confirms: m.Confirms, Denies: m.Denies}
	e.emitter.Broadcast(models.EventMarkerVotes, votes)
	e.mu.Unlock()

	metrics.MarkerVotes.WithLabelValues(kind).Inc()
	logging.Ctx(ctx).Debug().Str("marker_id", m.ID).Str("vote", kind).Str("voter", conn.UserID).Msg("Marker vote")

	if e.storage != nil {
		e.goBackground(ctx, func(ctx context.Context) {
			if err := e.storage.UpdateMarkerVotes(ctx, m.ID, m.Confirms, m.Denies); err != nil {
				perr := &PersistenceError{Op: "update_votes", MarkerID: m.ID, Err: err}
				logging.Ctx(ctx).Warn().Err(perr).Msg("Failed to persist marker votes")
			}
		})
	}
	e.publish(ctx, models.EventMarkerVotes, votes)
	return m, nil
}

// ExistingMarkers returns every active marker, newest first.
func (e *Engine) ExistingMarkers() []models.MarkerView {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.markers.ListActive()
	out := make([]models.MarkerView, len(list))
	for i := range list {
		out[i] = list[i].View()
	}
	return out
}

// ListActive returns copies of the active markers, newest first.
func (e *Engine) ListActive() []models.Marker {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markers.ListActive()
}

// expireByTimer is the scheduler callback.
func (e *Engine) expireByTimer(markerID string) {
	ctx := context.Background()
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.markers.Get(markerID)
	if !ok {
		// Removed manually or by the sweep after the deadline was popped.
		return
	}
	if now := e.now(); !m.ExpiredAt(now) {
		// Deadline moved or the clock stepped back; try again later.
		e.scheduler.Schedule(m.ID, m.ExpiresAt)
		return
	}
	e.deactivateLocked(ctx, markerID, ReasonExpired, nil)
}

// deactivateLocked is the single deactivation path shared by the timer,
// the sweep and manual removal. It returns false when the marker is already
// gone, which makes every caller idempotent. Must hold e.mu.
func (e *Engine) deactivateLocked(ctx context.Context, markerID, reason string, actor *models.Connection) (models.Marker, bool) {
	m, ok := e.markers.Deactivate(markerID, e.now())
	if !ok {
		return models.Marker{}, false
	}
	e.scheduler.Cancel(markerID)
	e.dispatcher.Clear(markerID)
	delete(e.notifiedUsers, markerID)
	delete(e.pendingInserts, markerID)
	if e.storage != nil {
		e.pendingDeactivations[markerID] = struct{}{}
	}
	e.updateGaugesLocked()
	metrics.MarkersDeactivated.WithLabelValues(reason).Inc()

	var (
		event   string
		payload any
	)
	if actor != nil {
		event = models.EventMarkerRemoved
		payload = models.MarkerRemoved{MarkerID: m.ID, UserID: actor.UserID, Username: actor.Username}
		e.emitter.BroadcastExcept(actor.ID, event, payload)
		e.emitter.SendTo(actor.ID, models.EventMarkerRemoveConfirmed, models.MarkerRemoveConfirmed{MarkerID: m.ID})
	} else {
		event = models.EventMarkerAutoRemoved
		payload = models.MarkerAutoRemoved{
			MarkerID: m.ID,
			Reason:   ReasonExpired,
			Message:  fmt.Sprintf("Estrella eliminada automáticamente (%d min)", int(math.Round(e.opts.MarkerTTL.Minutes()))),
		}
		e.emitter.Broadcast(event, payload)
		logging.Ctx(ctx).Info().Str("marker_id", m.ID).Str("reason", reason).Msg("Marker expired")
	}

	e.persistDeactivate(ctx, m.ID)
	e.publish(ctx, event, payload)
	if e.ledger != nil {
		e.goBackground(ctx, func(context.Context) {
			if err := e.ledger.Forget(m.ID); err != nil {
				logging.Warn().Err(err).Str("marker_id", m.ID).Msg("Failed to clear notification ledger")
			}
		})
	}
	return m, true
}

// notifyLocked runs the dispatcher for m against locs, sends the
// map_notifications and records them. Returns how many were sent. Must hold
// e.mu.
func (e *Engine) notifyLocked(ctx context.Context, m models.Marker, locs []Location) int {
	if len(locs) == 0 {
		return 0
	}
	selected, capped := e.dispatcher.Evaluate(m, locs)
	if capped > 0 {
		metrics.ProximityNotificationsCapped.Add(float64(capped))
	}
	if len(selected) == 0 {
		return 0
	}

	var (
		ids   = make([]string, 0, len(selected))
		users = make([]string, 0, len(selected))
		view  = m.View()
	)
	for _, c := range selected {
		user := e.conns[c.ConnectionID].UserID
		if e.ledger != nil && user != "" {
			if _, seen := e.notifiedUsers[m.ID][user]; seen {
				e.dispatcher.MarkNotified(m.ID, c.ConnectionID)
				continue
			}
		}

		e.emitter.SendTo(c.ConnectionID, models.EventMapNotification, models.MapNotification{
			NotificationID: uuid.NewString(),
			Type:           "marker",
			Marker:         view,
			DistanceMeters: math.Round(c.DistanceMeters*10) / 10,
			Message:        notificationMessage(m, c.DistanceMeters),
		})
		ids = append(ids, c.ConnectionID)
		if user != "" {
			users = append(users, user)
		}
	}

	e.dispatcher.MarkNotified(m.ID, ids...)
	metrics.ProximityNotifications.Add(float64(len(ids)))

	if e.ledger != nil && len(users) > 0 {
		e.rememberUsersLocked(m.ID, users)
		ttl := ledgerTTLNonExpiring
		if !m.ExpiresAt.IsZero() {
			ttl = m.ExpiresAt.Sub(e.now())
		}
		e.goBackground(ctx, func(ctx context.Context) {
			if err := e.ledger.MarkNotified(m.ID, users, ttl); err != nil {
				logging.Ctx(ctx).Warn().Err(err).Str("marker_id", m.ID).Msg("Notification ledger write failed")
			}
		})
	}
	return len(ids)
}

// rememberUsersLocked adds users to the notified set of markerID. Must hold
// e.mu.
func (e *Engine) rememberUsersLocked(markerID string, users []string) {
	if len(users) == 0 {
		return
	}
	set, ok := e.notifiedUsers[markerID]
	if !ok {
		set = make(map[string]struct{}, len(users))
		e.notifiedUsers[markerID] = set
	}
	for _, u := range users {
		set[u] = struct{}{}
	}
}

func notificationMessage(m models.Marker, distance float64) string {
	what := "Nuevo reporte"
	if m.Category == models.CategoryPointOfInterest {
		what = "Nueva estrella"
	}
	return fmt.Sprintf("%s de %s a %d m de ti", what, m.OwnerName, int(math.Round(distance)))
}

func validateRequest(req any) error {
	err := validation.ValidateStruct(req)
	if err == nil {
		return nil
	}
	var rve *validation.RequestValidationError
	if errors.As(err, &rve) && len(rve.Fields) > 0 {
		return &ValidationError{Field: rve.Fields[0].Field, Message: rve.Error()}
	}
	return &ValidationError{Message: err.Error()}
}
