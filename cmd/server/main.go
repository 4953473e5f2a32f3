// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package main is the entry point of the sala-chat marker server.
//
// The server keeps a shared map of user-submitted markers, tells connected
// clients about new markers within proximity.radius_meters of their last
// reported position, and retires point-of-interest markers after
// proximity.marker_ttl.
//
// # Startup order
//
//  1. Configuration (koanf: defaults, config.yaml, environment)
//  2. DuckDB storage and VAPID keys
//  3. Optional notification ledger (Badger) and event mirror (NATS)
//  4. Proximity engine, rebuilt from storage
//  5. WebSocket hub and HTTP router
//  6. Supervisor tree: sweep, purge, scheduler, hub, HTTP server
//
// # Signal handling
//
// SIGINT and SIGTERM cancel the tree. The HTTP server drains, the hub
// closes every socket, pending storage and push work finishes, then the
// ledger, event bus and database are closed in that order.
//
// # Example
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export PUSH_SUBJECT=mailto:ops@example.org
//	./sala-chat
//
// Development without tokens:
//
//	AUTH_MODE=none ./sala-chat
//	# ws://localhost:3000/ws?userId=ana&username=Ana
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/juac793lc/sala-chat/internal/api"
	"github.com/juac793lc/sala-chat/internal/auth"
	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/database"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/proximity"
	"github.com/juac793lc/sala-chat/internal/supervisor"
	"github.com/juac793lc/sala-chat/internal/supervisor/services"
	ws "github.com/juac793lc/sala-chat/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // sequential wiring of every component
func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Float64("radius_meters", cfg.Proximity.RadiusMeters).
		Dur("marker_ttl", cfg.Proximity.MarkerTTL).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	comps, err := initComponents(startupCtx, cfg, db)
	if err != nil {
		return err
	}
	defer comps.Close()

	engine := proximity.NewEngine(proximity.OptionsFromConfig(cfg.Proximity), comps.dependencies(db))

	hub := ws.NewHub(engine)
	engine.SetEmitter(hub)

	restored, err := engine.LoadActiveFromStorage(startupCtx)
	if err != nil {
		// The sweep adopts stored markers once storage answers again.
		logging.Warn().Err(err).Msg("Could not restore markers from storage")
	} else {
		logging.Info().Int("markers", restored).Msg("Active markers restored")
	}
	cancelStartup()

	authn, err := auth.NewAuthenticator(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize authentication: %w", err)
	}

	wsRouter := ws.NewRouter(engine, hub)
	wsHandler := ws.NewHandler(hub, wsRouter, authn, cfg.WebSocket, cfg.Security.CORSOrigins)

	handler := api.NewHandler(api.Dependencies{
		Markers:        engine,
		Subscriptions:  db,
		Database:       db,
		VAPIDPublicKey: comps.vapidPublicKey(),
		WebSocket:      wsHandler,
		Auth:           authn,
		Security:       cfg.Security,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(cfg.Security)))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddDataService(services.NewPeriodicService("marker-sweep", cfg.Proximity.SweepInterval, func(ctx context.Context) {
		report := engine.Sweep(ctx)
		if report != (proximity.SweepReport{}) {
			logging.Debug().Interface("report", report).Msg("Marker sweep finished")
		}
	}))
	tree.AddDataService(services.NewPeriodicService("location-purge", cfg.Proximity.LocationPurgeInterval, func(context.Context) {
		if n := engine.PurgeLocations(); n > 0 {
			logging.Debug().Int("purged", n).Msg("Stale locations purged")
		}
	}))
	if comps.ledger != nil {
		tree.AddDataService(comps.ledger)
	}
	tree.AddMessagingService(engine.Scheduler())
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	waitForTree(ctx, cancel, errCh)

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	// Let queued storage, push and publish calls finish before closing
	// what they write to.
	engine.Wait()
	return nil
}

// waitForTree blocks until the supervisor tree has stopped. ServeBackground
// delivers exactly one value and never closes the channel, so it is
// received once.
func waitForTree(ctx context.Context, cancel context.CancelFunc, errCh <-chan error) {
	var err error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
		cancel()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}
}
