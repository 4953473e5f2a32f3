// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/juac793lc/sala-chat/internal/models"
)

func coord(v float64) *models.Coordinate {
	c := models.Coordinate(v)
	return &c
}

func TestValidateStruct_AddMarker(t *testing.T) {
	tests := []struct {
		name       string
		req        models.AddMarkerRequest
		wantFields []string
	}{
		{"valid", models.AddMarkerRequest{Latitude: coord(40.1), Longitude: coord(-3.2)}, nil},
		{"missing latitude", models.AddMarkerRequest{Longitude: coord(1)}, []string{"latitude"}},
		{"missing both", models.AddMarkerRequest{}, []string{"latitude", "longitude"}},
		{"latitude out of range", models.AddMarkerRequest{Latitude: coord(91), Longitude: coord(0)}, []string{"latitude"}},
		{"longitude out of range", models.AddMarkerRequest{Latitude: coord(0), Longitude: coord(-181)}, []string{"longitude"}},
		{"category too long", models.AddMarkerRequest{
			Latitude: coord(0), Longitude: coord(0), Category: strings.Repeat("x", 65),
		}, []string{"category"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.req)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var rve *RequestValidationError
			if !errors.As(err, &rve) {
				t.Fatalf("error = %v, want *RequestValidationError", err)
			}
			got := strings.Join(rve.FieldNames(), ",")
			if got != strings.Join(tt.wantFields, ",") {
				t.Errorf("fields = %s, want %v", got, tt.wantFields)
			}
		})
	}
}

func TestValidateStruct_Messages(t *testing.T) {
	err := ValidateStruct(&models.MarkerIDRequest{})
	if err == nil || err.Error() != "markerId is required" {
		t.Fatalf("message = %v, want 'markerId is required'", err)
	}

	err = ValidateStruct(&models.PushUnsubscribeRequest{Endpoint: "not a url"})
	if err == nil || !strings.Contains(err.Error(), "endpoint must be a valid URL") {
		t.Fatalf("message = %v", err)
	}
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator should return the same instance")
	}
}
