// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jcodagnone/leisureslots/geocode"
)

// LookupGeocode implements geocode.Cache.
func (r *Repository) LookupGeocode(ctx context.Context, query string) (*geocode.Result, error) {
	var (
		result                            geocode.Result
		confidence, provider, displayName sql.NullString
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT lat, lng, confidence, provider, display_name FROM geocode_cache WHERE query = ?
	`, query).Scan(&result.Point.Lat, &result.Point.Lng, &confidence, &provider, &displayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("querying geocode cache: %w", err)
	}

	result.Confidence = confidence.String
	result.Provider = provider.String
	result.DisplayName = displayName.String

	return &result, nil
}

// SaveGeocode implements geocode.Cache.
func (r *Repository) SaveGeocode(ctx context.Context, query string, result *geocode.Result) error {
	if result == nil {
		return errors.New("nil geocode result")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO geocode_cache (query, lat, lng, confidence, provider, display_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		query,
		result.Point.Lat,
		result.Point.Lng,
		nve(result.Confidence),
		nve(result.Provider),
		nve(result.DisplayName),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("saving geocode of %q: %w", query, err)
	}

	return nil
}
