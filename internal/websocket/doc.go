// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

/*
Package websocket is the real-time transport of the map.

Every frame is a JSON envelope:

	{"type": "add_marker", "data": {"latitude": 40.0, "longitude": -3.7, "category": "point-of-interest"}}

Inbound types are add_marker, update_location, remove_marker,
confirm_marker, deny_marker, request_existing_markers and ping. They are
decoded by the Router and handed to the proximity engine. Failures are
reported to the sender alone as error_message{code, event, message}.

Outbound events (marker_added, map_notification, marker_auto_removed and
the rest) are produced by the engine through the Hub, which implements
SendTo, Broadcast and BroadcastExcept.

# Delivery

Each Client owns a buffered send channel drained by its writePump. The hub
only ever enqueues without blocking; a client whose buffer is full loses the
message and is disconnected. Within one client, messages are written in the
order they were enqueued.

# Lifecycle

	hub := websocket.NewHub(engine)
	router := websocket.NewRouter(engine, hub)
	engine.SetEmitter(hub)
	mux.Handle("/ws", websocket.NewHandler(hub, router, authn, cfg.WebSocket, cfg.Security.CORSOrigins))

The hub runs under the supervisor (Serve). On registration it tells the
engine about the connection, sends auth_success to the client and
broadcasts user_online; unregistering does the reverse with user_offline.
Inbound traffic is limited per client with a token bucket.
*/
package websocket
