// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

/*
Package supervisor runs the long-lived parts of the server under a suture
tree.

	sala-chat
	├── data-layer        marker sweep, location purge, ledger GC
	├── messaging-layer   websocket hub, expiry scheduler
	└── api-layer         HTTP server

A service that returns an error or panics is restarted with backoff; a
failure in one layer does not stop the others. Supervisor events are
logged through sutureslog on the zerolog-backed slog logger.

	tree, _ := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddDataService(services.NewPeriodicService("marker-sweep", time.Minute, sweep))
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	err := tree.Serve(ctx)
*/
package supervisor
