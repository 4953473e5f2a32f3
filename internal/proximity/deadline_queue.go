// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import "time"

type deadline struct {
	markerID string
	at       time.Time
	index    int
}

// deadlineQueue is a min-heap of marker deadlines with O(1) lookup by id so
// a cancel or reschedule does not need a scan.
type deadlineQueue struct {
	items []*deadline
	byID  map[string]*deadline
}

func newDeadlineQueue() *deadlineQueue {
	return &deadlineQueue{byID: make(map[string]*deadline)}
}

func (q *deadlineQueue) Len() int { return len(q.items) }

// set inserts or moves the deadline of markerID.
func (q *deadlineQueue) set(markerID string, at time.Time) {
	if d, ok := q.byID[markerID]; ok {
		d.at = at
		q.fix(d.index)
		return
	}
	d := &deadline{markerID: markerID, at: at, index: len(q.items)}
	q.items = append(q.items, d)
	q.byID[markerID] = d
	q.up(d.index)
}

// remove drops markerID; it reports whether it was queued.
func (q *deadlineQueue) remove(markerID string) bool {
	d, ok := q.byID[markerID]
	if !ok {
		return false
	}
	q.removeAt(d.index)
	return true
}

// peek returns the earliest deadline.
func (q *deadlineQueue) peek() (*deadline, bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// popDue removes and returns every marker whose deadline is at or before now,
// earliest first.
func (q *deadlineQueue) popDue(now time.Time) []string {
	var ids []string
	for len(q.items) > 0 && !q.items[0].at.After(now) {
		ids = append(ids, q.removeAt(0).markerID)
	}
	return ids
}

func (q *deadlineQueue) removeAt(i int) *deadline {
	last := len(q.items) - 1
	d := q.items[i]
	delete(q.byID, d.markerID)
	if i != last {
		q.items[i] = q.items[last]
		q.items[i].index = i
	}
	q.items[last] = nil
	q.items = q.items[:last]
	if i < len(q.items) {
		q.fix(i)
	}
	return d
}

func (q *deadlineQueue) fix(i int) {
	if !q.up(i) {
		q.down(i)
	}
}

func (q *deadlineQueue) up(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !q.items[i].at.Before(q.items[parent].at) {
			break
		}
		q.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (q *deadlineQueue) down(i int) {
	n := len(q.items)
	for {
		least := i
		if l := 2*i + 1; l < n && q.items[l].at.Before(q.items[least].at) {
			least = l
		}
		if r := 2*i + 2; r < n && q.items[r].at.Before(q.items[least].at) {
			least = r
		}
		if least == i {
			return
		}
		q.swap(i, least)
		i = least
	}
}

func (q *deadlineQueue) swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}
