// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"time"

	"github.com/jcodagnone/leisureslots/spatial"
)

// Run is one search: what was asked, where home was, how each centre
// fared and the merged report.
type Run struct {
	ID        int64          `json:"id"`
	Origin    string         `json:"origin"`
	Activity  string         `json:"activity"`
	Home      *spatial.Point `json:"home,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Providers []string       `json:"providers"`

	Metrics OutcomeMetrics `json:"metrics"`
	// Outcomes of every centre searched, in provider then rank order.
	Outcomes []Outcome `json:"-"`
	Report   Report    `json:"report"`

	// File the report was written to, if any.
	File string `json:"file,omitempty"`
}

// Centres returns the centres searched, in provider then rank order.
func (r *Run) Centres() []Centre {
	ret := make([]Centre, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		ret = append(ret, o.Centre)
	}

	return ret
}
