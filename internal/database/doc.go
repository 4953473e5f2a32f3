// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package database is the DuckDB persistence layer.
//
// # Overview
//
// DuckDB stores the durable side of the map: markers with their vote
// counts and active flag, Web Push subscriptions, and the generated VAPID
// key pair. The in-memory marker store in the proximity package is
// authoritative for live traffic; the database lets a restart recover the
// active markers (GetAllActiveMarkers) and keeps push endpoints across
// deploys.
//
// # Files
//
//   - database.go: connection lifecycle, pool sizing, Ping and Close
//   - database_schema.go: table and index creation
//   - migrations.go: versioned schema migrations
//   - crud_markers.go: marker insert, deactivate, vote update and listing
//   - crud_push.go: push subscriptions and VAPID keys
//   - database_utils.go: context defaults, checkpoint, record counts
//
// # Usage
//
//	db, err := database.New(&cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	markers, err := db.GetAllActiveMarkers(ctx)
//
// Lookups of a single missing row return ErrNotFound.
package database
