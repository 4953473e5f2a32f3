// Sala Chat - Proximity Map Markers and Real-Time Alerts
// Copyright 2026 juac793lc
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/juac793lc/sala-chat

package geo

import "math"

const metersPerDegree = EarthRadiusMeters * math.Pi / 180

type cellKey struct {
	X, Y int
}

type gridEntry struct {
	id       string
	lat, lon float64
	cell     cellKey
}

// Grid buckets points into fixed-size lat/lon cells so a radius query only
// inspects cells that can intersect the circle. Longitude wraps at the
// antimeridian.
//
// Grid is not safe for concurrent use; the owner serializes access.
type Grid struct {
	cellDeg float64
	cols    int
	cells   map[cellKey]map[string]*gridEntry
	entries map[string]*gridEntry
}

// NewGrid creates a grid whose cells are roughly cellMeters on a side at the
// equator. Non-positive sizes fall back to 1 km.
func NewGrid(cellMeters float64) *Grid {
	if cellMeters <= 0 {
		cellMeters = 1000
	}
	cellDeg := cellMeters / metersPerDegree
	return &Grid{
		cellDeg: cellDeg,
		cols:    int(math.Ceil(360 / cellDeg)),
		cells:   make(map[cellKey]map[string]*gridEntry),
		entries: make(map[string]*gridEntry),
	}
}

func (g *Grid) keyFor(lat, lon float64) cellKey {
	x := int(math.Floor((lon + 180) / g.cellDeg))
	y := int(math.Floor((lat + 90) / g.cellDeg))
	return cellKey{X: g.wrapX(x), Y: y}
}

func (g *Grid) wrapX(x int) int {
	return ((x % g.cols) + g.cols) % g.cols
}

// Insert adds or moves the point identified by id.
func (g *Grid) Insert(id string, lat, lon float64) {
	key := g.keyFor(lat, lon)
	if e, ok := g.entries[id]; ok {
		if e.cell == key {
			e.lat, e.lon = lat, lon
			return
		}
		g.unlink(e)
	}

	e := &gridEntry{id: id, lat: lat, lon: lon, cell: key}
	bucket, ok := g.cells[key]
	if !ok {
		bucket = make(map[string]*gridEntry, 4)
		g.cells[key] = bucket
	}
	bucket[id] = e
	g.entries[id] = e
}

// Remove deletes id; it reports whether the id was present.
func (g *Grid) Remove(id string) bool {
	e, ok := g.entries[id]
	if !ok {
		return false
	}
	g.unlink(e)
	delete(g.entries, id)
	return true
}

func (g *Grid) unlink(e *gridEntry) {
	bucket := g.cells[e.cell]
	delete(bucket, e.id)
	if len(bucket) == 0 {
		delete(g.cells, e.cell)
	}
}

// Len returns the number of stored points.
func (g *Grid) Len() int {
	return len(g.entries)
}

// Hit is a point returned by Nearby with its exact distance from the query.
type Hit struct {
	ID             string
	DistanceMeters float64
}

// Nearby returns every point within radiusMeters of (lat, lon), in no
// particular order. The haversine check is exact; cells only prune.
func (g *Grid) Nearby(lat, lon, radiusMeters float64) []Hit {
	if len(g.entries) == 0 || radiusMeters < 0 {
		return nil
	}

	radiusDeg := radiusMeters / metersPerDegree
	spanY := int(math.Ceil(radiusDeg/g.cellDeg)) + 1

	// Degrees of longitude shrink with cos(lat); widen the column span and
	// fall back to a full ring scan near the poles.
	spanX := g.cols
	if c := math.Cos((math.Abs(lat) + radiusDeg) * math.Pi / 180); c > 0.01 {
		spanX = int(math.Ceil(radiusDeg/c/g.cellDeg)) + 1
	}

	center := g.keyFor(lat, lon)
	var hits []Hit
	visit := func(key cellKey) {
		for _, e := range g.cells[key] {
			if d := DistanceMeters(lat, lon, e.lat, e.lon); d <= radiusMeters {
				hits = append(hits, Hit{ID: e.id, DistanceMeters: d})
			}
		}
	}

	if 2*spanX+1 >= g.cols || len(g.cells) <= (2*spanX+1)*(2*spanY+1) {
		// Scanning occupied cells is cheaper than probing the window.
		for key := range g.cells {
			if key.Y >= center.Y-spanY && key.Y <= center.Y+spanY && g.columnWithin(key.X, center.X, spanX) {
				visit(key)
			}
		}
		return hits
	}

	for dy := -spanY; dy <= spanY; dy++ {
		for dx := -spanX; dx <= spanX; dx++ {
			visit(cellKey{X: g.wrapX(center.X + dx), Y: center.Y + dy})
		}
	}
	return hits
}

// columnWithin reports whether column x is within span columns of center,
// measured around the ring.
func (g *Grid) columnWithin(x, center, span int) bool {
	if 2*span+1 >= g.cols {
		return true
	}
	d := x - center
	if d < 0 {
		d = -d
	}
	if g.cols-d < d {
		d = g.cols - d
	}
	return d <= span
}
