// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package proximity

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned for operations on unknown or deactivated markers.
var ErrNotFound = errors.New("marker not found")

// ValidationError rejects a malformed request. It is reported to the
// originating connection only.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError names the marker an operation could not find.
type NotFoundError struct {
	MarkerID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("marker %s not found or inactive", e.MarkerID)
}

// Unwrap lets errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// PersistenceError wraps a failed storage write. It never fails the
// in-memory transition that triggered it.
type PersistenceError struct {
	Op       string
	MarkerID string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s for marker %s: %v", e.Op, e.MarkerID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DeliveryError wraps a failed push to one recipient.
type DeliveryError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("push to %s failed with status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("push to %s failed: %v", e.Endpoint, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Permanent reports whether the endpoint is gone and should be forgotten.
func (e *DeliveryError) Permanent() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}
