// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"log"
	"strings"

	"github.com/jcodagnone/leisureslots/utils/textutils"
)

// Cache stores geocoding results across runs. A nil result with a nil
// error is a miss.
type Cache interface {
	LookupGeocode(ctx context.Context, query string) (*Result, error)
	SaveGeocode(ctx context.Context, query string, result *Result) error
}

// Cached answers from Cache before asking Geocoder, and stores what
// Geocoder finds. Failures are never cached.
type Cached struct {
	Geocoder Geocoder
	Cache    Cache
}

// Name implements Geocoder.
func (c *Cached) Name() string {
	return "cached(" + c.Geocoder.Name() + ")"
}

// CacheKey normalizes query so "kt20 5fh" and "KT20  5FH" share an entry.
func CacheKey(query string) string {
	return strings.ToUpper(textutils.SquashSpaces(query))
}

// Geocode implements Geocoder.
func (c *Cached) Geocode(ctx context.Context, query string) (*Result, error) {
	key := CacheKey(query)

	result, err := c.Cache.LookupGeocode(ctx, key)
	if err != nil {
		log.Printf("Geocode cache lookup failed for %q: %v", key, err)
	} else if result != nil {
		return result, nil
	}

	result, err = c.Geocoder.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	if err := c.Cache.SaveGeocode(ctx, key, result); err != nil {
		log.Printf("Geocode cache save failed for %q: %v", key, err)
	}

	return result, nil
}
