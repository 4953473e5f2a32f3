// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/juac793lc/sala-chat/internal/logging"
)

// Task is one run of a periodic job.
type Task func(ctx context.Context)

// PeriodicService runs a task every interval until the context ends.
//
// Runs never overlap: a slow run delays the next tick instead of stacking.
// A panic inside the task escapes Serve so suture restarts the service.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     Task
}

// NewPeriodicService creates a periodic service. interval must be positive.
func NewPeriodicService(name string, interval time.Duration, task Task) *PeriodicService {
	if interval <= 0 {
		panic(fmt.Sprintf("services: non-positive interval %v for %s", interval, name))
	}
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	logging.Debug().Str("service", p.name).Dur("interval", p.interval).Msg("Periodic service started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.task(ctx)
		}
	}
}

// String implements fmt.Stringer for logging.
func (p *PeriodicService) String() string {
	return p.name
}
