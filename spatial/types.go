// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package spatial holds geographic points and distance helpers.
package spatial

import (
	"fmt"
	"math"

	"github.com/uber/h3-go/v4"
)

const earthRadius = 6371e3 // meters

// H3 resolutions stored for every located centre.
const (
	MinH3Resolution = 5
	MaxH3Resolution = 8
)

// Point represents a geographical point with latitude and longitude.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// String returns a string representation of the Point.
func (p Point) String() string {
	return fmt.Sprintf("POINT(%f %f)", p.Lng, p.Lat)
}

// HaversineDistance calculates the distance between two points on Earth in meters.
func (p *Point) HaversineDistance(other *Point) float64 {
	lat1 := p.Lat * math.Pi / 180
	lat2 := other.Lat * math.Pi / 180
	dLat := (other.Lat - p.Lat) * math.Pi / 180
	dLng := (other.Lng - p.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// DistanceKm is the haversine distance between a and b in kilometres,
// rounded to 3 decimal places.
func DistanceKm(a, b Point) float64 {
	return math.Round(a.HaversineDistance(&b)) / 1000
}

// H3Cells returns the H3 cells containing the point, indexed by resolution
// from MinH3Resolution to MaxH3Resolution.
func (p Point) H3Cells() (map[int]h3.Cell, error) {
	latLng := h3.NewLatLng(p.Lat, p.Lng)
	cells := make(map[int]h3.Cell, MaxH3Resolution-MinH3Resolution+1)

	for res := MinH3Resolution; res <= MaxH3Resolution; res++ {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return nil, fmt.Errorf("converting to h3 cell at res %d: %w", res, err)
		}

		cells[res] = cell
	}

	return cells, nil
}
