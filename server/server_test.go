// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/spatial"
	"github.com/jcodagnone/leisureslots/store"
)

var (
	home     = spatial.Point{Lat: 51.2853, Lng: -0.2347}
	tadworth = spatial.Point{Lat: 51.2900, Lng: -0.2360}
)

func setupServerTest(t *testing.T) (*gin.Engine, *store.Repository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := store.NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	return NewServer(repo).Handler(), repo
}

func saveRun(t *testing.T, repo *store.Repository) (*booking.Run, int64) {
	t.Helper()

	centre := booking.Locate(booking.Candidate{Name: "Tadworth", Address: "Preston Lane", Point: &tadworth}, "BETTER", &home)
	outcomes := []booking.Outcome{
		booking.NewOutcome(centre, booking.Activities{
			"Badminton 60min": {"2025-06-01": {{TimeRange: "07:00 - 08:00", Price: "11.30", Spaces: 4}}},
		}, nil),
		booking.NewOutcome(booking.Centre{Name: "Lost", Company: "BETTER"}, nil, fmt.Errorf("boom: %w", booking.ErrProviderUnavailable)),
	}

	run := &booking.Run{
		Origin:    "KT20 5FH",
		Activity:  "badminton",
		Home:      &home,
		StartedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		Providers: []string{"better"},
		Outcomes:  outcomes,
		Report:    booking.ReportFromOutcomes(outcomes),
	}

	id, err := repo.SaveRun(context.Background(), run)
	require.NoError(t, err)

	return run, id
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	return w
}

func TestLatestView(t *testing.T) {
	router, repo := setupServerTest(t)

	w := get(router, "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "No searches yet")

	run, _ := saveRun(t, repo)

	w = get(router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, booking.RenderString(run.Report, run.Origin, run.Activity), w.Body.String())
}

func TestListRuns(t *testing.T) {
	router, repo := setupServerTest(t)

	w := get(router, "/api/runs")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	_, id := saveRun(t, repo)
	saveRun(t, repo)

	w = get(router, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var runs []booking.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id+1, runs[0].ID)
	assert.Equal(t, "KT20 5FH", runs[0].Origin)

	w = get(router, "/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRun(t *testing.T) {
	router, repo := setupServerTest(t)
	run, id := saveRun(t, repo)

	w := get(router, fmt.Sprintf("/api/runs/%d", id))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ID      int64          `json:"id"`
		Report  booking.Report `json:"report"`
		Centres []struct {
			Name       string   `json:"name"`
			DistanceKm *float64 `json:"distance_km"`
			Outcome    string   `json:"outcome"`
			Error      string   `json:"error"`
		} `json:"centres"`
		Entries []struct {
			Name string `json:"name"`
		} `json:"entries"`
	}

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.ID)
	assert.Equal(t, run.Report, resp.Report)

	require.Len(t, resp.Centres, 2)
	assert.Equal(t, "ok", resp.Centres[0].Outcome)
	assert.NotNil(t, resp.Centres[0].DistanceKm)
	assert.Equal(t, "failed", resp.Centres[1].Outcome)
	assert.Contains(t, resp.Centres[1].Error, "boom")

	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Tadworth", resp.Entries[0].Name)

	w = get(router, fmt.Sprintf("/api/runs/%d/text", id))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Badminton 60min")

	tests := []struct {
		path string
		code int
	}{
		{"/api/runs/999", http.StatusNotFound},
		{"/api/runs/999/text", http.StatusNotFound},
		{"/api/runs/abc", http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.code, get(router, tc.path).Code)
		})
	}
}

func TestCentresNear(t *testing.T) {
	router, repo := setupServerTest(t)
	saveRun(t, repo)

	w := get(router, "/api/centres/near?lat=51.2853&lng=-0.2347&k=2")
	require.Equal(t, http.StatusOK, w.Code)

	var centres []booking.Centre
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &centres))
	require.Len(t, centres, 1)
	assert.Equal(t, "Tadworth", centres[0].Name)
	assert.Equal(t, &tadworth, centres[0].Point)

	w = get(router, "/api/centres/near?lat=53.8&lng=-1.55")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	for _, q := range []string{"", "lat=91&lng=0", "lat=x&lng=0", "lat=51&lng=0&k=-1", "lat=51&lng=0&k=100"} {
		t.Run(q, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(router, "/api/centres/near?"+q).Code)
		})
	}
}
