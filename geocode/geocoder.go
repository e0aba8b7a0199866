// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package geocode resolves postcodes and postal addresses to coordinates.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcodagnone/leisureslots/spatial"
)

// Result is a geocoding result from any provider.
type Result struct {
	Point       spatial.Point `json:"point"`
	Confidence  string        `json:"confidence"` // high, medium, low
	Provider    string        `json:"provider"`
	DisplayName string        `json:"display_name"`
}

// Geocoder resolves a free text query (a postcode, an address) to a point.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
	Name() string
}

// Chain tries each geocoder in turn and returns the first success.
type Chain []Geocoder

// Name implements Geocoder.
func (c Chain) Name() string {
	names := make([]string, 0, len(c))
	for _, g := range c {
		names = append(names, g.Name())
	}

	return strings.Join(names, "+")
}

// Geocode implements Geocoder.
func (c Chain) Geocode(ctx context.Context, query string) (*Result, error) {
	if len(c) == 0 {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "no geocoder configured"}
	}

	var errs []error

	for _, g := range c {
		result, err := g.Geocode(ctx, query)
		if err == nil {
			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, errors.Join(errs...)
}

// Point geocodes query and returns only its location, nil on failure.
func Point(ctx context.Context, g Geocoder, query string) (*spatial.Point, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "empty query"}
	}

	result, err := g.Geocode(ctx, query)
	if err != nil {
		return nil, err
	}

	p := result.Point

	return &p, nil
}
