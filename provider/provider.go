// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider defines the adapter every booking website is wrapped in,
// and a registry of the available adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jcodagnone/leisureslots/booking"
)

var (
	errProviderNotFound = errors.New("provider not found")
	errMultipleMatches  = errors.New("multiple matches")
	errDuplicated       = errors.New("provider already registered")
)

// Provider talks to the booking website of one leisure centre chain.
// Implementations report every failure as a *booking.ProviderError.
type Provider interface {
	// Name is the short, unique, lower case identifier ("better").
	Name() string
	// Company is the name shown in reports ("Everyone Active").
	Company() string
	// Version of the adapter. It changes every time the website does.
	Version() string

	// CandidateCentres lists the centres near origin, a postcode.
	CandidateCentres(ctx context.Context, origin string) ([]booking.Candidate, error)

	// ActivitySlots returns the slots of the activities of centre whose name
	// contains activity. Every call uses its own HTTP session.
	ActivitySlots(ctx context.Context, centre booking.Centre, activity string) (booking.Activities, error)
}

// Registry holds the providers in registration order, which is the order
// their reports are merged in.
type Registry struct {
	providers []Provider
}

// NewRegistry creates a registry with the given providers.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{}

	for _, p := range providers {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Register adds p to the registry.
func (r *Registry) Register(p Provider) error {
	for _, other := range r.providers {
		if strings.EqualFold(other.Name(), p.Name()) {
			return fmt.Errorf("%w: %q", errDuplicated, p.Name())
		}
	}

	r.providers = append(r.providers, p)

	return nil
}

// Find locates a provider by a case insensitive prefix of its name.
// Returns an error if no match or multiple matches are found.
func (r *Registry) Find(q string) (Provider, error) {
	if q == "" {
		return nil, errors.New("empty search query")
	}

	var found Provider

	for _, p := range r.providers {
		name := p.Name()
		if strings.EqualFold(name, q) {
			return p, nil
		}

		if len(name) >= len(q) && strings.EqualFold(name[:len(q)], q) {
			if found != nil {
				return nil, fmt.Errorf("%w for %q: %q, %q", errMultipleMatches, q, found.Name(), name)
			}

			found = p
		}
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %q", errProviderNotFound, q)
	}

	return found, nil
}

// Select returns the providers named by queries (see Find), in
// registration order. No queries selects every provider.
func (r *Registry) Select(queries ...string) (*Registry, error) {
	if len(queries) == 0 {
		return r, nil
	}

	selected := map[string]bool{}

	for _, q := range queries {
		p, err := r.Find(q)
		if err != nil {
			return nil, err
		}

		selected[p.Name()] = true
	}

	ret := &Registry{}

	for _, p := range r.providers {
		if selected[p.Name()] {
			ret.providers = append(ret.providers, p)
		}
	}

	return ret, nil
}

// Each applies the given callback function to each provider.
// It stops iteration and returns the error if the callback returns an error.
func (r *Registry) Each(callback func(Provider) error) error {
	for _, p := range r.providers {
		if err := callback(p); err != nil {
			return err
		}
	}

	return nil
}

// Names returns the names of the providers in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}

	return names
}

// Len is the number of providers.
func (r *Registry) Len() int {
	return len(r.providers)
}
