// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package finder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/geocode"
	"github.com/jcodagnone/leisureslots/provider"
	"github.com/jcodagnone/leisureslots/spatial"
)

type fakeGeocoder map[string]spatial.Point

func (g fakeGeocoder) Name() string { return "fake" }

func (g fakeGeocoder) Geocode(_ context.Context, query string) (*geocode.Result, error) {
	p, ok := g[query]
	if !ok {
		return nil, &geocode.Error{Type: geocode.ErrorTypeNotFound, Message: query}
	}

	return &geocode.Result{Point: p, Provider: "fake"}, nil
}

type fakeProvider struct {
	name       string
	candidates []booking.Candidate
	listErr    error
	slots      map[string]booking.Activities
	errs       map[string]error

	running atomic.Int32
	peak    atomic.Int32
	mu      sync.Mutex
	asked   []string
}

func (p *fakeProvider) Name() string    { return p.name }
func (p *fakeProvider) Company() string { return "Company " + p.name }
func (p *fakeProvider) Version() string { return "test" }

func (p *fakeProvider) CandidateCentres(context.Context, string) ([]booking.Candidate, error) {
	return p.candidates, p.listErr
}

func (p *fakeProvider) ActivitySlots(_ context.Context, c booking.Centre, _ string) (booking.Activities, error) {
	n := p.running.Add(1)
	defer p.running.Add(-1)

	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	time.Sleep(5 * time.Millisecond)

	p.mu.Lock()
	p.asked = append(p.asked, c.Name)
	p.mu.Unlock()

	return p.slots[c.Name], p.errs[c.Name]
}

var (
	home    = spatial.Point{Lat: 51.2853, Lng: -0.2347}
	near    = spatial.Point{Lat: 51.2953, Lng: -0.2347}
	far     = spatial.Point{Lat: 51.3853, Lng: -0.2347}
	farther = spatial.Point{Lat: 51.4853, Lng: -0.2347}
)

func badminton(price string, spaces int) booking.Activities {
	return booking.Activities{"Badminton": {"2025-06-01": {{TimeRange: "07:00 - 08:00", Price: price, Spaces: spaces}}}}
}

func newFinder(t *testing.T, options Options, providers ...provider.Provider) *Finder {
	t.Helper()

	registry, err := provider.NewRegistry(providers...)
	require.NoError(t, err)

	options.Origin = "KT20 5FH"
	options.Activity = "badminton"
	options.Providers = registry
	options.OutDir = t.TempDir()

	if options.Geocoder == nil {
		options.Geocoder = fakeGeocoder{
			"KT20 5FH":   home,
			"Far Road":   far,
			"Near Road":  near,
			"Other Road": farther,
		}
	}

	f, err := New(&options)
	require.NoError(t, err)

	return f
}

func TestRun(t *testing.T) {
	better := &fakeProvider{
		name: "better",
		candidates: []booking.Candidate{
			{Name: "Far", Address: "Far Road"},
			{Name: "Near", Address: "Near Road"},
			{Name: "Lost", Address: "Nowhere"},
		},
		slots: map[string]booking.Activities{
			"Far":  badminton("11.30", 2),
			"Near": badminton("9.00", 0),
			"Lost": badminton("5.00", 1),
		},
	}
	ea := &fakeProvider{
		name: "ea",
		candidates: []booking.Candidate{
			{Name: "Pointed", Point: &near},
			{Name: "Unknown", Point: &far},
			{Name: "Broken", Point: &farther},
		},
		slots: map[string]booking.Activities{
			"Pointed": badminton("", booking.UnknownSpaces),
		},
		errs: map[string]error{
			"Unknown": booking.NewProviderError(booking.KindMatchNotFound, "ea", "Unknown", errors.New("no site")),
			"Broken":  errors.New("connection reset"),
		},
	}

	f := newFinder(t, Options{MaxCentres: 3, Workers: 2}, better, ea)

	run, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &home, run.Home)
	assert.Equal(t, []string{"better", "ea"}, run.Providers)

	// Lost has no distance and sorts last
	assert.ElementsMatch(t, []string{"Near", "Far", "Lost"}, better.asked)

	var order []string
	for _, c := range run.Centres() {
		order = append(order, c.Name)
	}

	assert.Equal(t, []string{"Near", "Far", "Lost", "Pointed", "Unknown", "Broken"}, order)

	expectedMetrics := booking.OutcomeMetrics{OK: 2, GeocodeFailed: 1, NotFound: 1, Empty: 1, Failed: 1}
	if diff := cmp.Diff(expectedMetrics, run.Metrics); diff != "" {
		t.Errorf("Metrics mismatch (-expected +got):\n%s", diff)
	}

	assert.Equal(t, expectedMetrics, f.Metrics)

	entries := run.Report.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Pointed", entries[0].Name)
	assert.Equal(t, "Company ea", entries[0].Company)
	assert.Equal(t, "Far", entries[1].Name)
	assert.Equal(t, "Lost", entries[2].Name)
	assert.Nil(t, entries[2].DistanceKm)

	assert.ErrorIs(t, run.Outcomes[5].Err, booking.ErrProviderUnavailable)

	require.NotEmpty(t, run.File)
	assert.Equal(t, "Available badminton slots.txt", filepath.Base(run.File))

	content, err := os.ReadFile(run.File)
	require.NoError(t, err)
	assert.Equal(t, booking.RenderString(run.Report, "KT20 5FH", "badminton"), string(content))
}

func TestRun_Workers(t *testing.T) {
	var candidates []booking.Candidate
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		candidates = append(candidates, booking.Candidate{Name: name, Point: &near})
	}

	p := &fakeProvider{name: "better", candidates: candidates}
	f := newFinder(t, Options{MaxCentres: -1, Workers: 2, NoFile: true}, p)

	run, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, p.asked, 6)
	assert.LessOrEqual(t, p.peak.Load(), int32(2))
	assert.Equal(t, 6, run.Metrics.Empty)
	assert.Empty(t, run.File)
}

func TestRun_Degraded(t *testing.T) {
	down := &fakeProvider{name: "down", listErr: errors.New("503")}
	up := &fakeProvider{
		name:       "up",
		candidates: []booking.Candidate{{Name: "Near", Address: "Near Road"}},
		slots:      map[string]booking.Activities{"Near": badminton("9.00", 3)},
	}

	// the home postcode can't be located: no distances, slots still reported
	f := newFinder(t, Options{Geocoder: fakeGeocoder{"Near Road": near}}, down, up)

	run, err := f.Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, run.Home)
	require.Contains(t, run.Report, "Near")
	assert.Nil(t, run.Report["Near"].DistanceKm)
	assert.Equal(t, 1, run.Metrics.GeocodeFailed)
	assert.Contains(t, booking.RenderString(run.Report, "KT20 5FH", "badminton"), "Distance: Not Found")
}

type fakeRecorder struct {
	runs []*booking.Run
	err  error
}

func (r *fakeRecorder) SaveRun(_ context.Context, run *booking.Run) (int64, error) {
	r.runs = append(r.runs, run)

	return int64(len(r.runs)), r.err
}

func TestRun_Recorder(t *testing.T) {
	p := &fakeProvider{
		name:       "better",
		candidates: []booking.Candidate{{Name: "Near", Point: &near}},
		slots:      map[string]booking.Activities{"Near": badminton("9.00", 3)},
	}

	recorder := &fakeRecorder{}
	f := newFinder(t, Options{Recorder: recorder, NoFile: true}, p)

	run, err := f.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.ID)
	require.Len(t, recorder.runs, 1)
	assert.Same(t, run, recorder.runs[0])

	recorder.err = errors.New("disk full")
	run, err = f.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run.ID)
	assert.Equal(t, 2, f.Metrics.OK)
}

func TestRun_WriteFailure(t *testing.T) {
	p := &fakeProvider{name: "better"}
	f := newFinder(t, Options{}, p)
	f.options.OutDir = filepath.Join(t.TempDir(), "missing", "dir")

	_, err := f.Run(context.Background())
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	registry, err := provider.NewRegistry(&fakeProvider{name: "better"})
	require.NoError(t, err)

	valid := Options{Origin: "KT20 5FH", Activity: "badminton", Providers: registry, Geocoder: fakeGeocoder{}}

	f, err := New(&valid)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxCentres, f.options.MaxCentres)
	assert.Equal(t, DefaultTimeout, f.options.Timeout)
	assert.Positive(t, f.options.Workers)
	assert.Equal(t, ".", f.options.OutDir)

	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"NoOrigin", func(o *Options) { o.Origin = " " }},
		{"NoActivity", func(o *Options) { o.Activity = "" }},
		{"NoProviders", func(o *Options) { o.Providers = nil }},
		{"EmptyRegistry", func(o *Options) { o.Providers = &provider.Registry{} }},
		{"NoGeocoder", func(o *Options) { o.Geocoder = nil }},
		{"NegativeWorkers", func(o *Options) { o.Workers = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := valid
			tc.modify(&o)

			_, err := New(&o)
			assert.Error(t, err)
		})
	}

	_, err = New(nil)
	assert.Error(t, err)
}
