// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uber/h3-go/v4"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/spatial"
)

// NearResolution is the H3 resolution CentresNear searches at. Cells are
// about 5 km² so a ring of k covers roughly 2.4·k km around the point.
const NearResolution = 7

// MaxRings bounds the k of CentresNear.
const MaxRings = 20

// CentresNear returns the centres ever searched within k H3 rings of p,
// nearest first. Each centre appears once, as it was last seen.
func (r *Repository) CentresNear(ctx context.Context, p spatial.Point, k int) ([]booking.Centre, error) {
	if k < 0 || k > MaxRings {
		return nil, fmt.Errorf("invalid rings %d, expected 0..%d", k, MaxRings)
	}

	origin, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), NearResolution)
	if err != nil {
		return nil, fmt.Errorf("converting to h3 cell: %w", err)
	}

	disk, err := h3.GridDisk(origin, k)
	if err != nil {
		return nil, fmt.Errorf("computing h3 disk: %w", err)
	}

	args := make([]any, 0, len(disk))
	for _, cell := range disk {
		args = append(args, int64(cell))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT name, company, COALESCE(address, ''), COALESCE(ref, ''), lat, lng
		FROM centres
		WHERE h3_res%d IN (%s)
		QUALIFY row_number() OVER (PARTITION BY name, company ORDER BY run_id DESC) = 1
		ORDER BY name
	`, NearResolution, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying centres near %s: %w", p, err)
	}
	defer rows.Close()

	var ret []booking.Centre

	for rows.Next() {
		var (
			c        booking.Candidate
			company  string
			lat, lng sql.NullFloat64
		)

		if err := rows.Scan(&c.Name, &company, &c.Address, &c.Ref, &lat, &lng); err != nil {
			return nil, fmt.Errorf("scanning centre: %w", err)
		}

		c.Point = &spatial.Point{Lat: lat.Float64, Lng: lng.Float64}
		ret = append(ret, booking.Locate(c, company, &p))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return booking.Rank(ret, 0), nil
}
