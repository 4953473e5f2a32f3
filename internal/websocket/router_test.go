// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/juac793lc/sala-chat/internal/models"
	"github.com/juac793lc/sala-chat/internal/proximity"
)

type call struct {
	op       string
	markerID string
	lat, lon float64
	category string
}

type fakeEngine struct {
	calls []call
	err   error
}

func (f *fakeEngine) OnMarkerCreate(_ context.Context, _ models.Connection, req models.AddMarkerRequest) (models.Marker, error) {
	c := call{op: "create", category: req.CategoryName()}
	if req.Latitude != nil && req.Longitude != nil {
		c.lat, c.lon = req.Latitude.Float(), req.Longitude.Float()
	}
	f.calls = append(f.calls, c)
	return models.Marker{}, f.err
}

func (f *fakeEngine) OnMarkerRemove(_ context.Context, _ models.Connection, id string) error {
	f.calls = append(f.calls, call{op: "remove", markerID: id})
	return f.err
}

func (f *fakeEngine) OnConfirm(_ context.Context, _ models.Connection, id string) (models.Marker, error) {
	f.calls = append(f.calls, call{op: "confirm", markerID: id})
	return models.Marker{}, f.err
}

func (f *fakeEngine) OnDeny(_ context.Context, _ models.Connection, id string) (models.Marker, error) {
	f.calls = append(f.calls, call{op: "deny", markerID: id})
	return models.Marker{}, f.err
}

func (f *fakeEngine) OnLocationUpdate(_ context.Context, _ string, lat, lon float64, _ time.Time) error {
	f.calls = append(f.calls, call{op: "location", lat: lat, lon: lon})
	return f.err
}

func (f *fakeEngine) ExistingMarkers() []models.MarkerView {
	return []models.MarkerView{{ID: "m1"}}
}

func newRouterFixture(t *testing.T, engine *fakeEngine) (*Router, *Client) {
	t.Helper()
	hub := NewHub(nil)
	router := NewRouter(engine, hub)
	c := createTestClient(hub, "c1", "ana")
	hub.register(c)
	drain(c)
	return router, c
}

func inbound(t *testing.T, typ, data string) inboundMessage {
	t.Helper()
	var raw json.RawMessage
	if data != "" {
		raw = json.RawMessage(data)
	}
	return inboundMessage{Type: typ, Data: raw}
}

func TestRouter_Dispatch(t *testing.T) {
	tests := []struct {
		name     string
		typ      string
		data     string
		wantCall call
		wantSent string
	}{
		{
			name:     "add marker with string coordinates",
			typ:      models.EventAddMarker,
			data:     `{"latitude":"40.4","longitude":-3.7,"tipoReporte":"policia"}`,
			wantCall: call{op: "create", lat: 40.4, lon: -3.7, category: "policia"},
		},
		{
			name:     "location update",
			typ:      models.EventUpdateLocation,
			data:     `{"lat":40.1,"lng":-3.1,"ts":"garbage"}`,
			wantCall: call{op: "location", lat: 40.1, lon: -3.1},
		},
		{name: "remove", typ: models.EventRemoveMarker, data: `{"markerId":"m9"}`, wantCall: call{op: "remove", markerID: "m9"}},
		{name: "confirm", typ: models.EventConfirmMarker, data: `{"markerId":"m9"}`, wantCall: call{op: "confirm", markerID: "m9"}},
		{name: "deny", typ: models.EventDenyMarker, data: `{"markerId":"m9"}`, wantCall: call{op: "deny", markerID: "m9"}},
		{name: "existing markers", typ: models.EventRequestExistingMarkers, wantSent: models.EventExistingMarkers},
		{name: "ping", typ: models.EventPing, wantSent: models.EventPong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{}
			router, c := newRouterFixture(t, engine)
			router.Dispatch(context.Background(), c, inbound(t, tt.typ, tt.data))

			if tt.wantCall.op != "" {
				if len(engine.calls) != 1 || engine.calls[0] != tt.wantCall {
					t.Errorf("calls = %+v, want %+v", engine.calls, tt.wantCall)
				}
			}
			sent := drain(c)
			if tt.wantSent != "" {
				if len(sent) != 1 || sent[0].Type != tt.wantSent {
					t.Errorf("sent %v, want %s", types(sent), tt.wantSent)
				}
			} else if len(sent) != 0 {
				t.Errorf("unexpected replies %v", types(sent))
			}
		})
	}
}

func TestRouter_Errors(t *testing.T) {
	tests := []struct {
		name      string
		typ       string
		data      string
		engineErr error
		wantCode  string
		wantCalls int
	}{
		{name: "unknown event", typ: "join_room", wantCode: codeUnknownEvent},
		{name: "malformed payload", typ: models.EventAddMarker, data: `{"latitude":"north"}`, wantCode: codeValidation},
		{name: "location without coordinates", typ: models.EventUpdateLocation, data: `{}`, wantCode: codeValidation},
		{name: "location out of range", typ: models.EventUpdateLocation, data: `{"lat":91,"lng":0}`, wantCode: codeValidation},
		{
			name: "engine validation", typ: models.EventAddMarker, data: `{"latitude":1,"longitude":1}`,
			engineErr: &proximity.ValidationError{Field: "latitude", Message: "out of range"}, wantCode: codeValidation, wantCalls: 1,
		},
		{
			name: "unknown marker", typ: models.EventRemoveMarker, data: `{"markerId":"gone"}`,
			engineErr: &proximity.NotFoundError{MarkerID: "gone"}, wantCode: codeNotFound, wantCalls: 1,
		},
		{
			name: "unexpected failure", typ: models.EventConfirmMarker, data: `{"markerId":"m1"}`,
			engineErr: errors.New("boom"), wantCode: codeInternal, wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{err: tt.engineErr}
			router, c := newRouterFixture(t, engine)
			router.Dispatch(context.Background(), c, inbound(t, tt.typ, tt.data))

			if len(engine.calls) != tt.wantCalls {
				t.Errorf("engine calls = %d, want %d", len(engine.calls), tt.wantCalls)
			}
			sent := drain(c)
			if len(sent) != 1 || sent[0].Type != models.EventErrorMessage {
				t.Fatalf("sent %v, want one error_message", types(sent))
			}
			if got := sent[0].Data.(models.ErrorMessage); got.Code != tt.wantCode {
				t.Errorf("code = %s, want %s (%s)", got.Code, tt.wantCode, got.Message)
			}
		})
	}
}

func TestClient_HandleFrame(t *testing.T) {
	engine := &fakeEngine{}
	router, c := newRouterFixture(t, engine)
	c.router = router

	c.handleFrame(context.Background(), []byte(`not json`))
	if sent := drain(c); len(sent) != 1 || sent[0].Data.(models.ErrorMessage).Code != codeInvalidMessage {
		t.Errorf("invalid frame replies = %v", types(sent))
	}

	c.handleFrame(context.Background(), []byte(`{"type":"ping"}`))
	if sent := drain(c); len(sent) != 1 || sent[0].Type != models.EventPong {
		t.Errorf("ping replies = %v", types(sent))
	}

	// Exhaust the bucket: burst defaults to 20.
	for i := 0; i < 40; i++ {
		c.handleFrame(context.Background(), []byte(`{"type":"ping"}`))
	}
	limited := 0
	for _, m := range drain(c) {
		if m.Type == models.EventErrorMessage && m.Data.(models.ErrorMessage).Code == codeRateLimited {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected rate limited replies")
	}
}
