// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package services adapts blocking or periodic work to suture.Service.
//
// Components that already implement Serve(ctx) error (the websocket hub,
// the expiry scheduler, the notification ledger) are added to the tree
// directly. HTTPServerService wraps *http.Server; PeriodicService runs a
// task on a fixed interval.
package services
