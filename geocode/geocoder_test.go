// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/spatial"
)

func newNominatim(t *testing.T, handler http.HandlerFunc) *Nominatim {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n, err := NewNominatim(&NominatimOptions{BaseURL: srv.URL, Interval: time.Millisecond})
	require.NoError(t, err)

	return n
}

func TestNominatim_Geocode(t *testing.T) {
	n := newNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "KT20 5FH", r.URL.Query().Get("q"))
		assert.Equal(t, "gb", r.URL.Query().Get("countrycodes"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"51.2891","lon":"-0.2397","display_name":"KT20 5FH, Tadworth","type":"postcode","importance":0.1}]`))
	})

	got, err := n.Geocode(context.Background(), "KT20 5FH")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: 51.2891, Lng: -0.2397}, got.Point)
	assert.Equal(t, "high", got.Confidence)
	assert.Equal(t, "nominatim", got.Provider)
	assert.Equal(t, "KT20 5FH, Tadworth", got.DisplayName)
}

func TestNominatim_NotFound(t *testing.T) {
	n := newNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := n.Geocode(context.Background(), "nowhere at all")
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
	assert.ErrorIs(t, err, booking.ErrGeocodeFailure)
}

func TestNominatim_RateLimited(t *testing.T) {
	n := newNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := n.Geocode(context.Background(), "KT20 5FH")
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
}

func TestNominatim_Throttles(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()

		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	const interval = 50 * time.Millisecond

	n, err := NewNominatim(&NominatimOptions{BaseURL: srv.URL, Interval: interval})
	require.NoError(t, err)

	for range 3 {
		_, err := n.Geocode(context.Background(), "x")
		require.NoError(t, err)
	}

	require.Len(t, times, 3)
	// the first request goes through at once, the next ones wait
	assert.GreaterOrEqual(t, times[2].Sub(times[0]), 2*interval-10*time.Millisecond)
}

func TestNominatim_CancelledWhileWaiting(t *testing.T) {
	n := newNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	})
	n.limiter.SetLimit(0.001)
	n.limiter.SetBurst(1)

	_, err := n.Geocode(context.Background(), "x")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = n.Geocode(ctx, "x")
	require.Error(t, err)
	assert.True(t, IsTimeoutError(err))
}

func TestGoogleMaps_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "uk", r.URL.Query().Get("region"))

		switch r.URL.Query().Get("address") {
		case "KT20 5FH":
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"formatted_address":"Tadworth KT20 5FH, UK",
				"geometry":{"location":{"lat":51.2891,"lng":-0.2397},"location_type":"GEOMETRIC_CENTER"}}]}`))
		case "denied":
			_, _ = w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"You have exceeded your daily request quota"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}
	}))
	defer srv.Close()

	g, err := NewGoogleMaps("secret", nil)
	require.NoError(t, err)

	g.BaseURL = srv.URL

	got, err := g.Geocode(context.Background(), "KT20 5FH")
	require.NoError(t, err)
	assert.Equal(t, spatial.Point{Lat: 51.2891, Lng: -0.2397}, got.Point)
	assert.Equal(t, "medium", got.Confidence)
	assert.Equal(t, "google_maps", got.Provider)

	_, err = g.Geocode(context.Background(), "denied")
	assert.True(t, IsQuotaExceededError(err))

	_, err = g.Geocode(context.Background(), "zzz")
	assert.True(t, IsNotFoundError(err))
}

func TestNewGoogleMaps_MissingKey(t *testing.T) {
	_, err := NewGoogleMaps("", nil)
	assert.Error(t, err)
}

type fakeGeocoder struct {
	name   string
	points map[string]spatial.Point
	calls  int
}

func (f *fakeGeocoder) Name() string { return f.name }

func (f *fakeGeocoder) Geocode(_ context.Context, query string) (*Result, error) {
	f.calls++

	p, ok := f.points[query]
	if !ok {
		return nil, &Error{Type: ErrorTypeNotFound, Message: f.name + ": not found"}
	}

	return &Result{Point: p, Provider: f.name}, nil
}

func TestChain(t *testing.T) {
	first := &fakeGeocoder{name: "first", points: map[string]spatial.Point{"a": {Lat: 1, Lng: 1}}}
	second := &fakeGeocoder{name: "second", points: map[string]spatial.Point{"a": {Lat: 2}, "b": {Lat: 2, Lng: 2}}}
	chain := Chain{first, second}

	assert.Equal(t, "first+second", chain.Name())

	got, err := chain.Geocode(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Provider)
	assert.Equal(t, 0, second.calls)

	got, err = chain.Geocode(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Provider)

	_, err = chain.Geocode(context.Background(), "c")
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrGeocodeFailure)
	assert.Contains(t, err.Error(), "first: first: not found")

	_, err = Chain{}.Geocode(context.Background(), "a")
	assert.Error(t, err)
}

func TestPoint(t *testing.T) {
	g := &fakeGeocoder{name: "fake", points: map[string]spatial.Point{"a": {Lat: 1, Lng: 2}}}

	p, err := Point(context.Background(), g, "a")
	require.NoError(t, err)
	assert.Equal(t, &spatial.Point{Lat: 1, Lng: 2}, p)

	_, err = Point(context.Background(), g, "  ")
	assert.Error(t, err)
	assert.Equal(t, 0, g.calls)
}

type memCache struct {
	results map[string]*Result
	failGet bool
}

func (m *memCache) LookupGeocode(_ context.Context, query string) (*Result, error) {
	if m.failGet {
		return nil, errors.New("db is gone")
	}

	return m.results[query], nil
}

func (m *memCache) SaveGeocode(_ context.Context, query string, result *Result) error {
	m.results[query] = result

	return nil
}

func TestCached(t *testing.T) {
	g := &fakeGeocoder{name: "fake", points: map[string]spatial.Point{"kt20 5fh": {Lat: 1, Lng: 2}}}
	cache := &memCache{results: map[string]*Result{}}
	c := &Cached{Geocoder: g, Cache: cache}

	assert.Equal(t, "cached(fake)", c.Name())

	for range 3 {
		got, err := c.Geocode(context.Background(), "kt20 5fh")
		require.NoError(t, err)
		assert.Equal(t, spatial.Point{Lat: 1, Lng: 2}, got.Point)
	}

	assert.Equal(t, 1, g.calls)
	assert.Contains(t, cache.results, "KT20 5FH")

	// failures are not cached
	_, err := c.Geocode(context.Background(), "nowhere")
	require.Error(t, err)
	assert.NotContains(t, cache.results, "NOWHERE")

	// a broken cache falls back to the geocoder
	cache.failGet = true
	_, err = c.Geocode(context.Background(), "kt20 5fh")
	require.NoError(t, err)
	assert.Equal(t, 3, g.calls)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "KT20 5FH", CacheKey("  kt20   5fh "))
}
