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

// SavePushSubscription upserts a subscription keyed by endpoint. A browser
// that re-subscribes with the same endpoint replaces its keys and owner.
func (db *DB) SavePushSubscription(ctx context.Context, s models.PushSubscription) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_push_subscription", time.Since(start), err) }()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO push_subscriptions (endpoint, user_id, p256dh, auth, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth`,
		s.Endpoint, s.UserID, s.P256dh, s.Auth, s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

// ListPushSubscriptions returns every stored subscription.
func (db *DB) ListPushSubscriptions(ctx context.Context) (_ []models.PushSubscription, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_push_subscriptions", time.Since(start), err) }()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT endpoint, user_id, p256dh, auth, created_at FROM push_subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	var subs []models.PushSubscription
	for rows.Next() {
		var s models.PushSubscription
		if err := rows.Scan(&s.Endpoint, &s.UserID, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate push subscriptions: %w", err)
	}
	return subs, nil
}

// RemovePushSubscription deletes a subscription. Unknown endpoints are not
// an error.
func (db *DB) RemovePushSubscription(ctx context.Context, endpoint string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	start := time.Now()
	defer func() { metrics.RecordDBQuery("remove_push_subscription", time.Since(start), err) }()

	if _, err = db.conn.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("failed to remove push subscription: %w", err)
	}
	return nil
}

// LoadVAPIDKeys returns the persisted VAPID key pair, or ErrNotFound.
func (db *DB) LoadVAPIDKeys(ctx context.Context) (publicKey, privateKey string, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	err = db.conn.QueryRowContext(ctx, `SELECT public_key, private_key FROM vapid_keys WHERE id = 1`).
		Scan(&publicKey, &privateKey)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to load VAPID keys: %w", err)
	}
	return publicKey, privateKey, nil
}

// SaveVAPIDKeys persists the VAPID key pair, replacing any previous one.
func (db *DB) SaveVAPIDKeys(ctx context.Context, publicKey, privateKey string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO vapid_keys (id, public_key, private_key, created_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET public_key = EXCLUDED.public_key, private_key = EXCLUDED.private_key`,
		publicKey, privateKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save VAPID keys: %w", err)
	}
	return nil
}
