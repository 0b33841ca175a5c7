// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package cluster

import (
	"math"
	"sort"

	"github.com/tomtom215/hotspot/internal/geo"
)

// kmPerDegree is the length of one degree of latitude.
const kmPerDegree = 111.0

// cellKey is a grid cell coordinate.
type cellKey struct {
	X, Y int
}

// grid buckets point indices into cells of roughly cellSizeKm so a radius
// query only has to look at nearby cells. Columns wrap at the antimeridian,
// and a query whose circle reaches a pole scans every column of its rows.
//
// Time Complexity:
//   - Build: O(n)
//   - Query: O(k) where k = points in the cells covering the radius
type grid struct {
	points   []Point
	cells    map[cellKey][]int
	cellSize float64 // degrees
	cols     int     // longitude columns around the globe
}

func newGrid(points []Point, cellSizeKm float64) *grid {
	if cellSizeKm <= 0 {
		cellSizeKm = 1
	}
	size := cellSizeKm / kmPerDegree
	g := &grid{
		points:   points,
		cells:    make(map[cellKey][]int),
		cellSize: size,
		cols:     max(1, int(math.Ceil(360/size))),
	}
	for i, p := range points {
		k := g.key(p.Lat, p.Lng)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *grid) key(lat, lng float64) cellKey {
	return cellKey{
		X: g.wrap(int(math.Floor((lng + 180) / g.cellSize))),
		Y: int(math.Floor(lat / g.cellSize)),
	}
}

func (g *grid) wrap(x int) int {
	x %= g.cols
	if x < 0 {
		x += g.cols
	}
	return x
}

// columns returns the distinct longitude columns a query around lat needs,
// or nil when it needs all of them.
func (g *grid) columns(center int, lat, radiusKm float64) []int {
	delta := radiusKm / geo.EarthRadiusKm
	phi := math.Abs(lat) * math.Pi / 180
	if delta >= math.Pi/2-phi {
		return nil
	}
	// Widest longitude offset of a spherical cap that excludes the pole.
	spanDeg := math.Asin(math.Sin(delta)/math.Cos(phi)) * 180 / math.Pi
	// One column for the floor offset, one for the narrower seam column.
	dx := int(math.Ceil(spanDeg/g.cellSize)) + 2
	if 2*dx+1 >= g.cols {
		return nil
	}
	out := make([]int, 0, 2*dx+1)
	for x := -dx; x <= dx; x++ {
		out = append(out, g.wrap(center+x))
	}
	return out
}

// within returns the indices of every point at most radiusKm from point i,
// including i itself.
func (g *grid) within(i int, radiusKm float64) []int {
	p := g.points[i]
	center := g.key(p.Lat, p.Lng)
	dy := int(math.Ceil(radiusKm/kmPerDegree/g.cellSize)) + 1

	var out []int
	collect := func(members []int) {
		for _, j := range members {
			q := g.points[j]
			if geo.HaversineKm(p.Lat, p.Lng, q.Lat, q.Lng) <= radiusKm {
				out = append(out, j)
			}
		}
	}

	cols := g.columns(center.X, p.Lat, radiusKm)
	if cols == nil {
		// Every longitude is in range: walk the occupied cells of the rows.
		for k, members := range g.cells {
			if k.Y >= center.Y-dy && k.Y <= center.Y+dy {
				collect(members)
			}
		}
		sort.Ints(out)
		return out
	}
	for _, x := range cols {
		for y := -dy; y <= dy; y++ {
			collect(g.cells[cellKey{X: x, Y: center.Y + y}])
		}
	}
	return out
}
