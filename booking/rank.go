// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"cmp"
	"slices"

	"github.com/jcodagnone/leisureslots/spatial"
)

// compareDistance orders by distance, nil after everything else.
func compareDistance(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*a, *b)
	}
}

// Rank returns a copy of centres stable sorted by distance, the ones with
// unknown distance last, truncated to limit entries (limit <= 0 keeps all).
func Rank(centres []Centre, limit int) []Centre {
	ret := slices.Clone(centres)
	slices.SortStableFunc(ret, func(a, b Centre) int {
		return compareDistance(a.DistanceKm, b.DistanceKm)
	})

	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}

	return ret
}

// Locate turns a candidate into a Centre of company, measuring its distance
// from home. Either point may be nil, in which case the distance is unknown.
func Locate(c Candidate, company string, home *spatial.Point) Centre {
	centre := Centre{
		Name:    c.Name,
		Address: c.Address,
		Company: company,
		Ref:     c.Ref,
		Point:   c.Point,
	}

	if home != nil && c.Point != nil {
		centre.DistanceKm = Float64(spatial.DistanceKm(*home, *c.Point))
	}

	return centre
}

// Available drops the slots without spaces, then the dates and activities
// left empty. The input is not modified.
func Available(activities Activities) Activities {
	ret := Activities{}

	for activity, dates := range activities {
		kept := Dates{}

		for date, slots := range dates {
			available := slices.DeleteFunc(slices.Clone(slots), func(s Slot) bool {
				return s.Spaces == 0
			})
			if len(available) > 0 {
				kept[date] = available
			}
		}

		if len(kept) > 0 {
			ret[activity] = kept
		}
	}

	return ret
}
