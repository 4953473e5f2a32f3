// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

// minRetiredRetention is the shortest time a deactivated id is remembered.
const minRetiredRetention = time.Hour

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	Expired         int // deactivated by this pass
	Adopted         int // found in storage only and still live
	Reconciled      int // inactive here, still active in storage
	RetriedInserts  int
	RetriedDeletes  int
	StorageReadFail bool
}

// LoadActiveFromStorage rebuilds the marker store after a restart. Markers
// whose deadline already passed are deactivated immediately; the rest are
// rescheduled. Returns how many markers are active afterwards.
func (e *Engine) LoadActiveFromStorage(ctx context.Context) (int, error) {
	if e.storage == nil {
		return 0, nil
	}
	stored, err := e.storage.GetAllActiveMarkers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load active markers: %w", err)
	}
	ids := make([]string, len(stored))
	for i, m := range stored {
		ids[i] = m.ID
	}
	prior := e.readLedger(ctx, ids)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	restored, expired := 0, 0
	for _, m := range stored {
		switch e.adoptLocked(ctx, m, now, prior[m.ID]) {
		case adoptRestored:
			restored++
		case adoptExpired:
			expired++
		}
	}
	e.updateGaugesLocked()

	logging.Ctx(ctx).Info().
		Int("stored", len(stored)).
		Int("restored", restored).
		Int("expired", expired).
		Msg("Loaded active markers from storage")
	return e.markers.Len(), nil
}

type adoptResult int

const (
	adoptSkipped adoptResult = iota
	adoptRestored
	adoptExpired
)

// readLedger returns the users already notified for each marker id. Read
// failures are logged and treated as "nobody notified". Call without e.mu.
func (e *Engine) readLedger(ctx context.Context, markerIDs []string) map[string][]string {
	if e.ledger == nil || len(markerIDs) == 0 {
		return nil
	}
	out := make(map[string][]string, len(markerIDs))
	for _, id := range markerIDs {
		users, err := e.ledger.NotifiedUsers(id)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("marker_id", id).Msg("Notification ledger read failed")
			continue
		}
		if len(users) > 0 {
			out[id] = users
		}
	}
	return out
}

// adoptLocked takes over a marker read from storage, seeding its notified
// users from the ledger. Must hold e.mu.
func (e *Engine) adoptLocked(ctx context.Context, m models.Marker, now time.Time, notified []string) adoptResult {
	if m.Category.Expires() && m.ExpiresAt.IsZero() {
		m.ExpiresAt = m.CreatedAt.Add(e.opts.MarkerTTL)
	}
	if !m.Category.Expires() {
		m.ExpiresAt = time.Time{}
	}
	m.Active = true
	if !e.markers.Restore(m) {
		return adoptSkipped
	}
	if m.ExpiredAt(now) {
		e.deactivateLocked(ctx, m.ID, ReasonSweep, nil)
		return adoptExpired
	}
	if e.ledger != nil {
		e.rememberUsersLocked(m.ID, notified)
	}
	if !m.ExpiresAt.IsZero() {
		e.scheduler.Schedule(m.ID, m.ExpiresAt)
	}
	return adoptRestored
}

// Sweep is the periodic reconciliation pass. It deactivates expired markers
// the timer missed, adopts live markers found only in storage, and retries
// storage writes that failed. It is safe to run concurrently with the timer.
func (e *Engine) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	var report SweepReport

	var stored []models.Marker
	if e.storage != nil {
		var err error
		stored, err = e.storage.GetAllActiveMarkers(ctx)
		if err != nil {
			report.StorageReadFail = true
			logging.Ctx(ctx).Warn().Err(err).Msg("Sweep could not read active markers; running in-memory pass only")
		}
	}

	var prior map[string][]string
	if e.ledger != nil && len(stored) > 0 {
		e.mu.Lock()
		unknown := make([]string, 0, len(stored))
		for _, m := range stored {
			if _, live := e.markers.Get(m.ID); !live && !e.markers.Retired(m.ID) {
				unknown = append(unknown, m.ID)
			}
		}
		e.mu.Unlock()
		prior = e.readLedger(ctx, unknown)
	}

	e.mu.Lock()
	now := e.now()
	for _, m := range stored {
		if _, live := e.markers.Get(m.ID); live {
			continue
		}
		if e.markers.Retired(m.ID) {
			e.pendingDeactivations[m.ID] = struct{}{}
			report.Reconciled++
			continue
		}
		switch e.adoptLocked(ctx, m, now, prior[m.ID]) {
		case adoptRestored:
			report.Adopted++
		case adoptExpired:
			report.Expired++
		}
	}

	for _, id := range e.markers.ExpiredBy(now) {
		if _, ok := e.deactivateLocked(ctx, id, ReasonSweep, nil); ok {
			report.Expired++
		}
	}

	var inserts []models.Marker
	for id := range e.pendingInserts {
		m, ok := e.markers.Get(id)
		if !ok {
			delete(e.pendingInserts, id)
			continue
		}
		inserts = append(inserts, m)
	}
	deletes := make([]string, 0, len(e.pendingDeactivations))
	for id := range e.pendingDeactivations {
		deletes = append(deletes, id)
	}

	retention := 2 * e.opts.MarkerTTL
	if retention < minRetiredRetention {
		retention = minRetiredRetention
	}
	e.markers.ForgetRetiredBefore(now.Add(-retention), e.pendingDeactivations)
	e.updateGaugesLocked()
	e.mu.Unlock()

	for _, m := range inserts {
		e.persistInsert(ctx, m)
	}
	for _, id := range deletes {
		e.persistDeactivate(ctx, id)
	}
	report.RetriedInserts = len(inserts)
	report.RetriedDeletes = len(deletes)

	metrics.ProximityEvaluationDuration.WithLabelValues("sweep").Observe(time.Since(start).Seconds())
	if report.Expired > 0 || report.Adopted > 0 || report.Reconciled > 0 || len(inserts) > 0 || len(deletes) > 0 {
		logging.Ctx(ctx).Info().
			Int("expired", report.Expired).
			Int("adopted", report.Adopted).
			Int("reconciled", report.Reconciled).
			Int("retried_inserts", report.RetriedInserts).
			Int("retried_deletes", report.RetriedDeletes).
			Msg("Marker sweep completed")
	}
	return report
}

// persistInsert writes a new marker. A failure leaves it queued for the
// next sweep.
func (e *Engine) persistInsert(ctx context.Context, m models.Marker) {
	if e.storage == nil {
		return
	}
	e.goBackground(ctx, func(ctx context.Context) {
		if err := e.storage.InsertMarker(ctx, m); err != nil {
			perr := &PersistenceError{Op: "insert", MarkerID: m.ID, Err: err}
			logging.Ctx(ctx).Warn().Err(perr).Msg("Marker insert failed; will retry on sweep")
			return
		}
		e.mu.Lock()
		delete(e.pendingInserts, m.ID)
		e.updateGaugesLocked()
		e.mu.Unlock()
	})
}

// persistDeactivate marks a marker inactive in storage. A failure leaves it
// queued for the next sweep.
func (e *Engine) persistDeactivate(ctx context.Context, markerID string) {
	if e.storage == nil {
		return
	}
	e.goBackground(ctx, func(ctx context.Context) {
		if err := e.storage.DeactivateMarker(ctx, markerID); err != nil {
			perr := &PersistenceError{Op: "deactivate", MarkerID: markerID, Err: err}
			logging.Ctx(ctx).Warn().Err(perr).Msg("Marker deactivation failed; will retry on sweep")
			return
		}
		e.mu.Lock()
		delete(e.pendingDeactivations, markerID)
		e.updateGaugesLocked()
		e.mu.Unlock()
	})
}

// pushMarker fans a point-of-interest marker out to every Web Push
// subscription except the creator's own. Gone endpoints are removed.
func (e *Engine) pushMarker(ctx context.Context, m models.Marker) {
	if e.push == nil || e.subs == nil {
		return
	}
	e.goBackground(ctx, func(ctx context.Context) {
		log := logging.Ctx(ctx)

		all, err := e.subs.ListPushSubscriptions(ctx)
		if err != nil {
			log.Warn().Err(err).Str("marker_id", m.ID).Msg("Could not list push subscriptions")
			return
		}
		targets := make([]models.PushSubscription, 0, len(all))
		for _, s := range all {
			if m.OwnerID != "" && s.UserID == m.OwnerID {
				continue
			}
			targets = append(targets, s)
		}
		if len(targets) == 0 {
			return
		}

		payload, err := json.Marshal(models.PushPayload{
			Title:    "Nueva estrella en el mapa",
			Body:     fmt.Sprintf("%s marcó un punto de interés", m.OwnerName),
			Tag:      "marker-" + m.ID,
			Renotify: true,
			Marker:   m.View(),
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to encode push payload")
			return
		}

		delivered := 0
		for _, r := range e.push.SendToSubscriptions(ctx, targets, payload) {
			metrics.RecordPushResult(r.OK, r.Gone())
			if r.OK {
				delivered++
				continue
			}
			derr := &DeliveryError{Endpoint: r.Endpoint, StatusCode: r.StatusCode, Err: r.Err}
			log.Warn().Err(derr).Str("marker_id", m.ID).Msg("Push delivery failed")
			if derr.Permanent() {
				if err := e.subs.RemovePushSubscription(ctx, r.Endpoint); err != nil {
					log.Warn().Err(err).Msg("Failed to remove expired push subscription")
					continue
				}
				metrics.PushSubscriptionsRemoved.Inc()
			}
		}
		log.Info().
			Str("marker_id", m.ID).
			Int("targets", len(targets)).
			Int("delivered", delivered).
			Msg("Push fan-out finished")
	})
}
