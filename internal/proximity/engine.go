// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

// Package proximity is the marker lifecycle and proximity notification
// engine.
//
// A single Engine owns every piece of live state: the last location of each
// connection, the active markers, and the record of who was already told
// about which marker. All of it sits behind one mutex, so a location update
// and a marker creation arriving on different sockets are linearized.
//
// Storage writes, Web Push delivery and event bus publication run on
// background goroutines. Their outcome is logged and fed into the periodic
// sweep; it never gates an in-memory transition.
//
//	eng := proximity.NewEngine(proximity.OptionsFromConfig(cfg.Proximity), proximity.Dependencies{
//	    Storage: db, Subscriptions: db, Push: sender, Emitter: hub,
//	})
//	go eng.Scheduler().Serve(ctx)
package proximity

import (
	"context"
	"sync"
	"time"

	"github.com/juac793lc/sala-chat/internal/config"
	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/metrics"
	"github.com/juac793lc/sala-chat/internal/models"
)

// backgroundTimeout bounds one storage, push or publish call.
const backgroundTimeout = 15 * time.Second

// Options tunes the engine. Zero values fall back to DefaultOptions.
type Options struct {
	LocationTTL               time.Duration
	RadiusMeters              float64
	MarkerTTL                 time.Duration
	MaxNotificationsPerMarker int
	GridCellMeters            float64

	// Now overrides the clock (tests).
	Now func() time.Time
}

// DefaultOptions returns the production constants.
func DefaultOptions() Options {
	return Options{
		LocationTTL:               60 * time.Second,
		RadiusMeters:              2000,
		MarkerTTL:                 50 * time.Minute,
		MaxNotificationsPerMarker: 200,
		GridCellMeters:            1000,
	}
}

// OptionsFromConfig maps the proximity configuration section.
func OptionsFromConfig(c config.ProximityConfig) Options {
	return Options{
		LocationTTL:               c.LocationTTL,
		RadiusMeters:              c.RadiusMeters,
		MarkerTTL:                 c.MarkerTTL,
		MaxNotificationsPerMarker: c.MaxNotificationsPerMarker,
		GridCellMeters:            c.GridCellMeters,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LocationTTL <= 0 {
		o.LocationTTL = d.LocationTTL
	}
	if o.RadiusMeters <= 0 {
		o.RadiusMeters = d.RadiusMeters
	}
	if o.MarkerTTL <= 0 {
		o.MarkerTTL = d.MarkerTTL
	}
	if o.MaxNotificationsPerMarker <= 0 {
		o.MaxNotificationsPerMarker = d.MaxNotificationsPerMarker
	}
	if o.GridCellMeters <= 0 {
		o.GridCellMeters = d.GridCellMeters
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Dependencies are the collaborators of the engine. Only Emitter is
// required in practice; nil collaborators disable their feature.
type Dependencies struct {
	Storage       Storage
	Subscriptions SubscriptionStore
	Push          PushSender
	Emitter       Emitter
	Events        EventSink
	Ledger        NotificationLedger
}

// Engine orchestrates the marker lifecycle. See the package documentation.
type Engine struct {
	mu         sync.Mutex
	opts       Options
	now        func() time.Time
	tracker    *LocationTracker
	markers    *MarkerStore
	dispatcher *Dispatcher
	scheduler  *ExpiryScheduler
	conns      map[string]models.Connection

	// Users already notified per marker, kept when a ledger is configured.
	// Seeded from the ledger on adoption.
	notifiedUsers map[string]map[string]struct{}

	// Storage writes that failed and wait for the sweep.
	pendingInserts       map[string]struct{}
	pendingDeactivations map[string]struct{}

	storage Storage
	subs    SubscriptionStore
	push    PushSender
	emitter Emitter
	events  EventSink
	ledger  NotificationLedger

	bg sync.WaitGroup
}

// NewEngine creates an engine. The caller must run Scheduler().Serve.
func NewEngine(opts Options, deps Dependencies) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:                 opts,
		now:                  opts.Now,
		tracker:              NewLocationTracker(opts.LocationTTL, opts.GridCellMeters),
		markers:              NewMarkerStore(opts.MarkerTTL),
		dispatcher:           NewDispatcher(opts.RadiusMeters, opts.MaxNotificationsPerMarker),
		conns:                make(map[string]models.Connection),
		notifiedUsers:        make(map[string]map[string]struct{}),
		pendingInserts:       make(map[string]struct{}),
		pendingDeactivations: make(map[string]struct{}),
		storage:              deps.Storage,
		subs:                 deps.Subscriptions,
		push:                 deps.Push,
		emitter:              deps.Emitter,
		events:               deps.Events,
		ledger:               deps.Ledger,
	}
	if e.emitter == nil {
		e.emitter = nopEmitter{}
	}
	e.scheduler = NewExpiryScheduler(e.expireByTimer, opts.Now)
	return e
}

// SetEmitter replaces the emitter. The transport is usually built after the
// engine because it routes inbound events into it.
func (e *Engine) SetEmitter(em Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if em == nil {
		em = nopEmitter{}
	}
	e.emitter = em
}

// Scheduler returns the expiry scheduler, to be run by the supervisor.
func (e *Engine) Scheduler() *ExpiryScheduler {
	return e.scheduler
}

// OnConnect registers a live connection.
func (e *Engine) OnConnect(conn models.Connection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns[conn.ID] = conn
}

// OnDisconnect forgets the connection and its location. Markers it created
// stay on the map.
func (e *Engine) OnDisconnect(connectionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conns, connectionID)
	e.tracker.Remove(connectionID)
	metrics.LocationsTracked.Set(float64(e.tracker.Len()))
}

// Stats is a point-in-time view for health checks.
type Stats struct {
	ActiveMarkers      int
	TrackedLocations   int
	Connections        int
	PendingReconcile   int
	ScheduledDeadlines int
}

// Stats returns current counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		ActiveMarkers:      e.markers.Len(),
		TrackedLocations:   e.tracker.Len(),
		Connections:        len(e.conns),
		PendingReconcile:   len(e.pendingInserts) + len(e.pendingDeactivations),
		ScheduledDeadlines: e.scheduler.Pending(),
	}
}

// Wait blocks until background storage, push and publish calls finish.
func (e *Engine) Wait() {
	e.bg.Wait()
}

// goBackground runs fn detached from the caller's cancellation but keeping
// its logging fields.
func (e *Engine) goBackground(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(ctx, backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}

// publish mirrors an event to the bus, if one is configured.
func (e *Engine) publish(ctx context.Context, event string, payload any) {
	if e.events == nil {
		return
	}
	e.goBackground(ctx, func(ctx context.Context) {
		err := e.events.Publish(ctx, event, payload)
		metrics.RecordEventPublish(event, err)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("event", event).Msg("Failed to publish marker event")
		}
	})
}

func (e *Engine) updateGaugesLocked() {
	metrics.MarkersActive.Set(float64(e.markers.Len()))
	metrics.StoragePendingReconcile.Set(float64(len(e.pendingInserts) + len(e.pendingDeactivations)))
}
