// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import (
	"errors"
	"fmt"
)

// Failure classes every provider fault is reported as.
var (
	ErrGeocodeFailure      = errors.New("geocode failure")
	ErrMatchNotFound       = errors.New("match not found")
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ErrorKind selects the sentinel a ProviderError resolves to.
type ErrorKind int

// Error kinds.
const (
	KindProviderUnavailable ErrorKind = iota
	KindGeocodeFailure
	KindMatchNotFound
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindGeocodeFailure:
		return ErrGeocodeFailure
	case KindMatchNotFound:
		return ErrMatchNotFound
	default:
		return ErrProviderUnavailable
	}
}

func (k ErrorKind) String() string {
	return k.sentinel().Error()
}

// ProviderError wraps a low level fault (HTTP, markup, JSON) raised while
// talking to a provider.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Centre   string
	Err      error
}

// NewProviderError returns a ProviderError, or nil when err is nil.
func NewProviderError(kind ErrorKind, provider, centre string, err error) error {
	if err == nil {
		return nil
	}

	return &ProviderError{Kind: kind, Provider: provider, Centre: centre, Err: err}
}

func (e *ProviderError) Error() string {
	where := e.Provider
	if e.Centre != "" {
		where += "/" + e.Centre
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %s", where, e.Kind)
	}

	return fmt.Sprintf("%s: %s: %v", where, e.Kind, e.Err)
}

// Unwrap returns the wrapped fault.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *ProviderError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Classify maps err to one of the failure sentinels. Unknown faults are
// ErrProviderUnavailable.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrGeocodeFailure):
		return ErrGeocodeFailure
	case errors.Is(err, ErrMatchNotFound):
		return ErrMatchNotFound
	default:
		return ErrProviderUnavailable
	}
}

// Wrap returns err as a ProviderError of provider and centre. Errors that
// already are one are returned unchanged; any other fault gets the kind of
// the sentinel it matches, or KindProviderUnavailable.
func Wrap(provider, centre string, err error) error {
	var pe *ProviderError
	if err == nil || errors.As(err, &pe) {
		return err
	}

	kind := KindProviderUnavailable

	switch Classify(err) {
	case ErrGeocodeFailure:
		kind = KindGeocodeFailure
	case ErrMatchNotFound:
		kind = KindMatchNotFound
	}

	return NewProviderError(kind, provider, centre, err)
}
