// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"context"
	"sync"
	"time"
)

// idleWait is how long the scheduler sleeps when nothing is queued. Any
// Schedule call wakes it early.
const idleWait = time.Hour

// ExpiryScheduler fires a callback when a marker deadline passes. One
// goroutine (Serve) owns a single timer armed for the earliest deadline.
//
// Schedule and Cancel are safe to call from any goroutine, including while
// the caller holds the Engine lock: the scheduler never calls back while
// holding its own lock.
type ExpiryScheduler struct {
	mu     sync.Mutex
	queue  *deadlineQueue
	wake   chan struct{}
	expire func(markerID string)
	now    func() time.Time
}

// NewExpiryScheduler creates a scheduler that calls expire for due markers.
func NewExpiryScheduler(expire func(markerID string), now func() time.Time) *ExpiryScheduler {
	if now == nil {
		now = time.Now
	}
	return &ExpiryScheduler{
		queue:  newDeadlineQueue(),
		wake:   make(chan struct{}, 1),
		expire: expire,
		now:    now,
	}
}

// Schedule arms (or re-arms) the deadline of markerID. Deadlines in the past
// fire on the next loop iteration.
func (s *ExpiryScheduler) Schedule(markerID string, at time.Time) {
	s.mu.Lock()
	s.queue.set(markerID, at)
	s.mu.Unlock()
	s.poke()
}

// Cancel disarms markerID. A fire already in flight is harmless because the
// expire callback re-checks that the marker is still active.
func (s *ExpiryScheduler) Cancel(markerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.remove(markerID)
}

// Pending returns the number of armed deadlines.
func (s *ExpiryScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

func (s *ExpiryScheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Serve runs the timer loop until ctx is cancelled. It implements
// suture.Service.
func (s *ExpiryScheduler) Serve(ctx context.Context) error {
	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		for _, id := range s.due() {
			s.expire(id)
		}

		timer.Reset(s.untilNext())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *ExpiryScheduler) due() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.popDue(s.now())
}

func (s *ExpiryScheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.queue.peek()
	if !ok {
		return idleWait
	}
	wait := next.at.Sub(s.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// String implements fmt.Stringer for supervisor logs.
func (s *ExpiryScheduler) String() string {
	return "expiry-scheduler"
}
