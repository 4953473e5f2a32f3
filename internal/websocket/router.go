// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/logging"
	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/proximity"
	"github.com/juac793lc/sala-chat/internal/validation"
)

// error_message codes.
const (
	codeValidation     = "validation_error"
	codeNotFound       = "not_found"
	codeInvalidMessage = "invalid_message"
	codeUnknownEvent   = "unknown_event"
	codeRateLimited    = "rate_limited"
	codeInternal       = "internal_error"
)

// MarkerEngine is the part of the proximity engine the socket layer drives.
type MarkerEngine interface {
	OnMarkerCreate(ctx context.Context, conn models.Connection, req models.AddMarkerRequest) (models.Marker, error)
	OnMarkerRemove(ctx context.Context, conn models.Connection, markerID string) error
	OnConfirm(ctx context.Context, conn models.Connection, markerID string) (models.Marker, error)
	OnDeny(ctx context.Context, conn models.Connection, markerID string) (models.Marker, error)
	OnLocationUpdate(ctx context.Context, connectionID string, lat, lon float64, observedAt time.Time) error
	ExistingMarkers() []models.MarkerView
}

// Router maps inbound socket events onto engine operations. Every outcome
// visible to the client is emitted by the engine itself, except errors and
// direct answers (existing_markers, pong), which go to the sender only.
type Router struct {
	engine MarkerEngine
	hub    *Hub
}

// NewRouter creates a router.
func NewRouter(engine MarkerEngine, hub *Hub) *Router {
	return &Router{engine: engine, hub: hub}
}

// Dispatch handles one inbound message from c.
func (r *Router) Dispatch(ctx context.Context, c *Client, msg inboundMessage) {
	conn := c.Connection()
	var err error

	switch msg.Type {
	case models.EventAddMarker:
		var req models.AddMarkerRequest
		if err = decode(msg.Data, &req); err == nil {
			_, err = r.engine.OnMarkerCreate(ctx, conn, req)
		}

	case models.EventUpdateLocation:
		var req models.UpdateLocationRequest
		if err = decode(msg.Data, &req); err == nil {
			if err = validation.ValidateStruct(&req); err == nil {
				err = r.engine.OnLocationUpdate(ctx, conn.ID, req.Lat.Float(), req.Lng.Float(), req.Ts.Time)
			}
		}

	case models.EventRemoveMarker, models.EventConfirmMarker, models.EventDenyMarker:
		var req models.MarkerIDRequest
		if err = decode(msg.Data, &req); err == nil {
			err = r.markerAction(ctx, conn, msg.Type, req.MarkerID)
		}

	case models.EventRequestExistingMarkers:
		r.hub.SendTo(conn.ID, models.EventExistingMarkers, r.engine.ExistingMarkers())

	case models.EventPing:
		r.hub.SendTo(conn.ID, models.EventPong, nil)

	default:
		r.hub.SendTo(conn.ID, models.EventErrorMessage, errorPayload(codeUnknownEvent, msg.Type, "Evento desconocido"))
		return
	}

	if err != nil {
		r.reportError(ctx, conn, msg.Type, err)
	}
}

func (r *Router) markerAction(ctx context.Context, conn models.Connection, event, markerID string) error {
	switch event {
	case models.EventRemoveMarker:
		return r.engine.OnMarkerRemove(ctx, conn, markerID)
	case models.EventConfirmMarker:
		_, err := r.engine.OnConfirm(ctx, conn, markerID)
		return err
	default:
		_, err := r.engine.OnDeny(ctx, conn, markerID)
		return err
	}
}

// decode rejects payloads that are not a JSON object of the expected shape.
// An absent payload decodes to the zero request and fails validation later.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &proximity.ValidationError{Message: err.Error()}
	}
	return nil
}

// reportError sends error_message to the originating connection.
func (r *Router) reportError(ctx context.Context, conn models.Connection, event string, err error) {
	var (
		verr  *proximity.ValidationError
		rverr *validation.RequestValidationError
		nf    *proximity.NotFoundError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &rverr):
		logging.Ctx(ctx).Debug().Err(err).Str("event", event).Msg("Rejected invalid socket request")
		r.hub.SendTo(conn.ID, models.EventErrorMessage, errorPayload(codeValidation, event, err.Error()))
	case errors.As(err, &nf), errors.Is(err, proximity.ErrNotFound):
		r.hub.SendTo(conn.ID, models.EventErrorMessage, errorPayload(codeNotFound, event, "Marcador no encontrado o inactivo"))
	default:
		logging.Ctx(ctx).Error().Err(err).Str("event", event).Msg("Socket request failed")
		r.hub.SendTo(conn.ID, models.EventErrorMessage, errorPayload(codeInternal, event, "Error procesando la solicitud"))
	}
}

func errorPayload(code, event, message string) models.ErrorMessage {
	return models.ErrorMessage{Code: code, Event: event, Message: message}
}
