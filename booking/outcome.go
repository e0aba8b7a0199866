// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"errors"
	"log"
)

// OutcomeKind tags the result of scraping one centre.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeOK OutcomeKind = iota
	// slots were found but the centre couldn't be located
	OutcomeGeocodeFailed
	OutcomeNotFound
	OutcomeEmpty
	OutcomeFailed
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeOK:            "ok",
	OutcomeGeocodeFailed: "geocode-failed",
	OutcomeNotFound:      "not-found",
	OutcomeEmpty:         "empty",
	OutcomeFailed:        "failed",
}

func (k OutcomeKind) String() string {
	if s, ok := outcomeNames[k]; ok {
		return s
	}

	return "unknown"
}

// ParseOutcomeKind is the inverse of OutcomeKind.String.
func ParseOutcomeKind(s string) (OutcomeKind, bool) {
	for k, name := range outcomeNames {
		if name == s {
			return k, true
		}
	}

	return OutcomeFailed, false
}

// Outcome is the result of one centre task.
type Outcome struct {
	Kind       OutcomeKind
	Centre     Centre
	Activities Activities
	Err        error
}

// Included reports whether the outcome enters the report.
func (o Outcome) Included() bool {
	return o.Kind == OutcomeOK || o.Kind == OutcomeGeocodeFailed
}

// NewOutcome tags the result of fetching the activities of c.
func NewOutcome(c Centre, activities Activities, err error) Outcome {
	o := Outcome{Centre: c, Err: err}

	switch {
	case errors.Is(err, ErrMatchNotFound):
		o.Kind = OutcomeNotFound
	case err != nil:
		o.Kind = OutcomeFailed
	default:
		o.Activities = Available(activities)
		if len(o.Activities) == 0 {
			o.Kind = OutcomeEmpty
		} else if c.DistanceKm == nil {
			o.Kind = OutcomeGeocodeFailed
		} else {
			o.Kind = OutcomeOK
		}
	}

	return o
}

// OutcomeMetrics counts outcomes per kind.
type OutcomeMetrics struct {
	OK            int
	GeocodeFailed int
	NotFound      int
	Empty         int
	Failed        int
}

// Add counts o.
func (m *OutcomeMetrics) Add(o Outcome) {
	switch o.Kind {
	case OutcomeOK:
		m.OK++
	case OutcomeGeocodeFailed:
		m.GeocodeFailed++
	case OutcomeNotFound:
		m.NotFound++
	case OutcomeEmpty:
		m.Empty++
	case OutcomeFailed:
		m.Failed++
	}
}

// Merge combines two OutcomeMetrics.
func (m *OutcomeMetrics) Merge(o *OutcomeMetrics) *OutcomeMetrics {
	if o == nil {
		return m
	}

	m.OK += o.OK
	m.GeocodeFailed += o.GeocodeFailed
	m.NotFound += o.NotFound
	m.Empty += o.Empty
	m.Failed += o.Failed

	return m
}

// ReportFromOutcomes builds a provider's partial report out of its
// included outcomes. Later outcomes win on centre name collision.
func ReportFromOutcomes(outcomes []Outcome) Report {
	report := Report{}

	for _, o := range outcomes {
		if !o.Included() {
			continue
		}

		if _, ok := report[o.Centre.Name]; ok {
			log.Printf("Centre %q reported twice, keeping the last one", o.Centre.Name)
		}

		report[o.Centre.Name] = NewCentreReport(o.Centre, o.Activities)
	}

	return report
}
