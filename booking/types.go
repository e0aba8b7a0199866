// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package booking holds the provider independent model of a slot search:
// centres, their bookable slots and the aggregated report, together with
// the ranking, merging and rendering rules applied to them.
package booking

import (
	"github.com/jcodagnone/leisureslots/spatial"
)

// UnknownSpaces is the Slot.Spaces value of providers that only report
// whether a slot is available, not how many places are left.
const UnknownSpaces = -1

// Candidate is a centre as listed by a provider, before it is located.
type Candidate struct {
	Name    string         `json:"name"`
	Address string         `json:"address,omitempty"`
	Ref     string         `json:"ref,omitempty"`
	Point   *spatial.Point `json:"point,omitempty"`
}

// Centre is a located candidate.
type Centre struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Company string `json:"company"`

	// Ref is the provider's own handle for the centre (a venue slug, a site id).
	Ref string `json:"ref,omitempty"`

	Point *spatial.Point `json:"point,omitempty"`

	// DistanceKm is nil when either end could not be geocoded.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Slot is one bookable time window.
type Slot struct {
	TimeRange string `json:"time_range"`
	// Price without currency sign, "" when the provider doesn't show one.
	Price  string `json:"price,omitempty"`
	Spaces int    `json:"spaces"`
}

// Dates maps a date (YYYY-MM-DD when the provider's format is known) to
// its slots in provider order.
type Dates map[string][]Slot

// Activities maps an activity name to its dates.
type Activities map[string]Dates

// CentreReport is the report entry of a single centre.
type CentreReport struct {
	Address    string     `json:"address"`
	Company    string     `json:"company"`
	DistanceKm *float64   `json:"distance_km"`
	Activities Activities `json:"activities"`
}

// Report is keyed by unique centre name.
type Report map[string]*CentreReport

// Entry is a named CentreReport.
type Entry struct {
	Name string `json:"name"`
	*CentreReport
}

// NewCentreReport creates the report entry for c.
func NewCentreReport(c Centre, activities Activities) *CentreReport {
	return &CentreReport{
		Address:    c.Address,
		Company:    c.Company,
		DistanceKm: c.DistanceKm,
		Activities: activities,
	}
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 {
	return &v
}
