// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package geo maps coordinates to H3 cells and geohashes and provides
// hour-anchor arithmetic for the sliding-window rollups.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/uber/h3-go/v4"
)

// EarthRadiusKm is the mean earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// ErrInvalidCoordinates is returned for NaN, infinite, or out-of-range coordinates.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Location is the spatial identity of a point at a fixed H3 resolution.
type Location struct {
	// Cell is the H3 cell id (hex string) containing the point.
	Cell string
	// Ring is Cell followed by its adjacent cells, deduplicated.
	Ring []string
}

// ValidCoordinates reports whether lat/lng are finite and within range.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Locate resolves the H3 cell of (lat, lng) at resolution res and its 1-ring.
func Locate(lat, lng float64, res int) (Location, error) {
	if !ValidCoordinates(lat, lng) {
		return Location{}, fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, lat, lng)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), res)
	if err != nil {
		return Location{}, fmt.Errorf("h3 cell at res %d: %w", res, err)
	}
	disk, err := h3.GridDisk(cell, 1)
	if err != nil {
		return Location{}, fmt.Errorf("h3 ring of %s: %w", cell.String(), err)
	}

	center := cell.String()
	ring := make([]string, 0, len(disk)+1)
	ring = append(ring, center)
	seen := map[string]struct{}{center: {}}
	for _, c := range disk {
		id := c.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ring = append(ring, id)
	}
	return Location{Cell: center, Ring: ring}, nil
}

// Geohash encodes (lat, lng) with the given number of characters.
func Geohash(lat, lng float64, precision uint) string {
	return geohash.EncodeWithPrecision(lat, lng, precision)
}

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const rad = math.Pi / 180.0
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
