// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

const markerColumns = `marker_id, user_id, username, latitude, longitude, category,
	created_at, expires_at, is_active, COALESCE(confirms, 0), COALESCE(denies, 0)`

// InsertMarker stores a new marker. Inserting an id that already exists is
// a no-op so sweep retries are safe.
func (db *DB) InsertMarker(ctx context.Context, m models.Marker) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_marker", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO map_markers (marker_id, user_id, username, latitude, longitude, category,
			created_at, expires_at, is_active, confirms, denies)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)
		ON CONFLICT DO NOTHING`,
		m.ID, m.OwnerID, m.OwnerName, m.Latitude, m.Longitude, string(m.Category),
		m.CreatedAt.UTC(), nullTime(m.ExpiresAt), m.Confirms, m.Denies)
	if err != nil {
		return fmt.Errorf("failed to insert marker %s: %w", m.ID, err)
	}
	return nil
}

// DeactivateMarker marks a marker inactive. Unknown ids are not an error.
func (db *DB) DeactivateMarker(ctx context.Context, markerID string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("deactivate_marker", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE map_markers SET is_active = FALSE, deactivated_at = ? WHERE marker_id = ? AND is_active`,
		time.Now().UTC(), markerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate marker %s: %w", markerID, err)
	}
	return nil
}

// UpdateMarkerVotes stores the current vote counters of a marker.
func (db *DB) UpdateMarkerVotes(ctx context.Context, markerID string, confirms, denies int) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update_votes", time.Since(start), err) }()

	_, err = db.conn.ExecContext(ctx,
		`UPDATE map_markers SET confirms = ?, denies = ? WHERE marker_id = ?`,
		confirms, denies, markerID)
	if err != nil {
		return fmt.Errorf("failed to update votes for marker %s: %w", markerID, err)
	}
	return nil
}

// GetAllActiveMarkers returns every active marker, newest first.
func (db *DB) GetAllActiveMarkers(ctx context.Context) (_ []models.Marker, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_active_markers", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+markerColumns+` FROM map_markers WHERE is_active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active markers: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var markers []models.Marker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, err
		}
		markers = append(markers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active markers: %w", err)
	}
	return markers, nil
}

// GetMarker returns a marker by id, active or not.
func (db *DB) GetMarker(ctx context.Context, markerID string) (models.Marker, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `SELECT `+markerColumns+` FROM map_markers WHERE marker_id = ?`, markerID)
	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Marker{}, ErrNotFound
	}
	return m, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMarker(r rowScanner) (models.Marker, error) {
	var (
		m         models.Marker
		category  string
		expiresAt sql.NullTime
	)
	err := r.Scan(&m.ID, &m.OwnerID, &m.OwnerName, &m.Latitude, &m.Longitude, &category,
		&m.CreatedAt, &expiresAt, &m.Active, &m.Confirms, &m.Denies)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m, err
		}
		return m, fmt.Errorf("failed to scan marker: %w", err)
	}
	// Rows written by older versions may hold legacy category names.
	m.Category = models.ParseCategory(category)
	m.CreatedAt = m.CreatedAt.UTC()
	if expiresAt.Valid {
		m.ExpiresAt = expiresAt.Time.UTC()
	}
	return m, nil
}
