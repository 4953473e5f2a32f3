// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package geo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"
)

func TestDistanceMeters(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tolerance        float64
	}{
		{"identical", 40.4168, -3.7038, 40.4168, -3.7038, 0, 1e-9},
		{"one degree latitude", 0, 0, 1, 0, 111195, 1},
		{"madrid to barcelona", 40.4168, -3.7038, 41.3874, 2.1686, 505000, 2000},
		{"antimeridian neighbours", 0, 179.9999, 0, -179.9999, 22.24, 0.1},
		{"antipodal", 0, 0, 0, 180, math.Pi * EarthRadiusMeters, 1},
		{"about 1.1 km", 0, 0, 0.01, 0, 1112, 1},
		{"about 11 km", 0, 0, 0.1, 0, 11119, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceMeters(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.want) > tt.tolerance {
				t.Errorf("DistanceMeters() = %.3f, want %.3f ± %.3f", got, tt.want, tt.tolerance)
			}
		})
	}
}

func TestDistanceMetersSymmetric(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		lat1, lon1 := r.Float64()*180-90, r.Float64()*360-180
		lat2, lon2 := r.Float64()*180-90, r.Float64()*360-180
		ab := DistanceMeters(lat1, lon1, lat2, lon2)
		ba := DistanceMeters(lat2, lon2, lat1, lon1)
		if math.Abs(ab-ba) > 1e-6 {
			t.Fatalf("asymmetric distance for (%v,%v)-(%v,%v): %v vs %v", lat1, lon1, lat2, lon2, ab, ba)
		}
		if DistanceMeters(lat1, lon1, lat1, lon1) != 0 {
			t.Fatalf("non-zero self distance at (%v,%v)", lat1, lon1)
		}
	}
}

func TestValidatePoint(t *testing.T) {
	tests := []struct {
		lat, lon float64
		field    string
	}{
		{0, 0, ""},
		{90, 180, ""},
		{-90, -180, ""},
		{90.01, 0, "latitude"},
		{math.NaN(), 0, "latitude"},
		{0, math.Inf(1), "longitude"},
		{0, -180.5, "longitude"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v,%v", tt.lat, tt.lon), func(t *testing.T) {
			err := ValidatePoint(tt.lat, tt.lon)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ce *CoordinateError
			if !errors.As(err, &ce) || ce.Field != tt.field {
				t.Fatalf("ValidatePoint() = %v, want CoordinateError on %s", err, tt.field)
			}
		})
	}
}

func TestGridInsertMoveRemove(t *testing.T) {
	g := NewGrid(500)
	g.Insert("a", 40.0, -3.0)
	g.Insert("b", 40.001, -3.0)
	if g.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", g.Len())
	}

	// Moving a far away must drop it from the original neighbourhood.
	g.Insert("a", 10.0, 10.0)
	hits := g.Nearby(40.0, -3.0, 1000)
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("Nearby after move = %+v, want only b", hits)
	}

	if !g.Remove("b") {
		t.Fatal("Remove(b) = false")
	}
	if g.Remove("b") {
		t.Fatal("second Remove(b) = true")
	}
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
}

func TestGridNearbyMatchesBruteForce(t *testing.T) {
	type pt struct{ lat, lon float64 }
	r := rand.New(rand.NewSource(7))

	centers := []pt{{40.4168, -3.7038}, {0, 179.99}, {89.5, 12}, {-33.45, -70.66}}
	for _, c := range centers {
		t.Run(fmt.Sprintf("%.2f,%.2f", c.lat, c.lon), func(t *testing.T) {
			g := NewGrid(1000)
			pts := make(map[string]pt)
			for i := 0; i < 400; i++ {
				p := pt{
					lat: math.Max(-90, math.Min(90, c.lat+(r.Float64()-0.5)*0.1)),
					lon: c.lon + (r.Float64()-0.5)*0.1,
				}
				if p.lon > 180 {
					p.lon -= 360
				}
				if p.lon < -180 {
					p.lon += 360
				}
				id := fmt.Sprintf("p%d", i)
				pts[id] = p
				g.Insert(id, p.lat, p.lon)
			}

			const radius = 2000.0
			var want []string
			for id, p := range pts {
				if DistanceMeters(c.lat, c.lon, p.lat, p.lon) <= radius {
					want = append(want, id)
				}
			}
			var got []string
			for _, h := range g.Nearby(c.lat, c.lon, radius) {
				got = append(got, h.ID)
			}
			sort.Strings(want)
			sort.Strings(got)

			if fmt.Sprint(got) != fmt.Sprint(want) {
				t.Fatalf("Nearby mismatch: got %d ids, want %d ids", len(got), len(want))
			}
		})
	}
}
