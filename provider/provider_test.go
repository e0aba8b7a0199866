// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/utils/htmlutils"
)

type namedProvider string

func (p namedProvider) Name() string    { return string(p) }
func (p namedProvider) Company() string { return strings.ToUpper(string(p)) }
func (p namedProvider) Version() string { return "test" }

func (p namedProvider) CandidateCentres(context.Context, string) ([]booking.Candidate, error) {
	return nil, nil
}

func (p namedProvider) ActivitySlots(context.Context, booking.Centre, string) (booking.Activities, error) {
	return nil, nil
}

func TestRegistry_Find(t *testing.T) {
	r, err := NewRegistry(namedProvider("better"), namedProvider("everyoneactive"), namedProvider("everyone"))
	require.NoError(t, err)

	tests := []struct {
		name         string
		query        string
		expectedName string
		expectErr    error
	}{
		{"ExactMatch", "better", "better", nil},
		{"CaseInsensitive", "BETTER", "better", nil},
		{"Prefix", "b", "better", nil},
		{"ExactWinsOverPrefix", "everyone", "everyone", nil},
		{"LongerPrefix", "everyonea", "everyoneactive", nil},
		{"MultipleMatches", "ev", "", errMultipleMatches},
		{"NoMatch", "xxx", "", errProviderNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Find(tc.query)
			if tc.expectErr != nil {
				require.ErrorIs(t, err, tc.expectErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedName, got.Name())
		})
	}

	_, err = r.Find("")
	assert.Error(t, err)
}

func TestRegistry_Register(t *testing.T) {
	r, err := NewRegistry(namedProvider("better"))
	require.NoError(t, err)

	err = r.Register(namedProvider("Better"))
	require.ErrorIs(t, err, errDuplicated)

	_, err = NewRegistry(namedProvider("a"), namedProvider("a"))
	assert.ErrorIs(t, err, errDuplicated)
}

func TestRegistry_SelectAndEach(t *testing.T) {
	r, err := NewRegistry(namedProvider("better"), namedProvider("everyoneactive"), namedProvider("places"))
	require.NoError(t, err)

	assert.Equal(t, []string{"better", "everyoneactive", "places"}, r.Names())
	assert.Equal(t, 3, r.Len())

	selected, err := r.Select("places", "b")
	require.NoError(t, err)
	// registration order, not query order
	assert.Equal(t, []string{"better", "places"}, selected.Names())

	all, err := r.Select()
	require.NoError(t, err)
	assert.Same(t, r, all)

	_, err = r.Select("nope")
	assert.Error(t, err)

	var seen []string

	boom := errors.New("boom")
	err = r.Each(func(p Provider) error {
		seen = append(seen, p.Name())
		if p.Name() == "everyoneactive" {
			return boom
		}

		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"better", "everyoneactive"}, seen)
}

const loginPage = `<!DOCTYPE html>
<html><head><title>Login</title></head>
<body>
<form method="post" action="./Login.aspx?ReturnUrl=%2f" id="aspnetForm">
  <input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="vs==" />
  <input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="ev==" />
  <input type="text" name="ctl00$MainContent$EmailAddress" id="emailAddress" />
  <input type="password" name="ctl00$MainContent$Password" id="password" />
  <input type="checkbox" name="remember" checked />
  <input type="checkbox" name="newsletter" />
  <select name="ctl00$MainContent$Site" id="site">
    <option value="">Choose</option>
    <option value="42" selected="selected">Tadworth</option>
  </select>
  <input type="submit" name="ctl00$MainContent$Login" value="Log in" />
</form>
</body></html>`

func TestParseForm(t *testing.T) {
	n, err := html.Parse(strings.NewReader(loginPage))
	require.NoError(t, err)

	base, _ := url.Parse("https://booking.example.org/Connect/Login.aspx")

	f, err := ParseForm(n, base, func(n *html.Node) bool { return htmlutils.Attr(n, "id") == "aspnetForm" })
	require.NoError(t, err)

	assert.Equal(t, "https://booking.example.org/Connect/Login.aspx?ReturnUrl=%2f", f.Action.String())
	assert.Equal(t, http.MethodPost, f.Method)

	expected := url.Values{
		"__VIEWSTATE":                    {"vs=="},
		"__EVENTVALIDATION":              {"ev=="},
		"ctl00$MainContent$EmailAddress": {""},
		"ctl00$MainContent$Password":     {""},
		"remember":                       {"on"},
		"ctl00$MainContent$Site":         {"42"},
	}
	if diff := cmp.Diff(expected, f.Values); diff != "" {
		t.Errorf("ParseForm() mismatch (-expected +got):\n%s", diff)
	}

	_, err = ParseForm(n, base, func(*html.Node) bool { return false })
	assert.Error(t, err)
}

func TestSelectByID(t *testing.T) {
	n, err := html.Parse(strings.NewReader(loginPage))
	require.NoError(t, err)

	name, options, ok := SelectByID(n, "site")
	require.True(t, ok)
	assert.Equal(t, "ctl00$MainContent$Site", name)
	assert.Equal(t, []Option{{Text: "Choose", Value: ""}, {Text: "Tadworth", Value: "42", Selected: true}}, options)

	_, _, ok = SelectByID(n, "emailAddress")
	assert.False(t, ok)
}

func TestSession_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Connect/Login.aspx":
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "vs==", r.PostForm.Get("__VIEWSTATE"))
			assert.Equal(t, "me@example.org", r.PostForm.Get("ctl00$MainContent$EmailAddress"))
			http.SetCookie(w, &http.Cookie{Name: "auth", Value: "1", Path: "/"})
			http.Redirect(w, r, "/Connect/Home.aspx", http.StatusFound)
		case "/Connect/Home.aspx":
			if _, err := r.Cookie("auth"); err != nil {
				w.WriteHeader(http.StatusForbidden)

				return
			}

			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<html><head><title>Home</title></head><body>Welcome</body></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s, err := NewSession(nil, "ea", "Tadworth")
	require.NoError(t, err)

	n, err := html.Parse(strings.NewReader(loginPage))
	require.NoError(t, err)

	base, _ := url.Parse(srv.URL + "/Connect/Login.aspx")
	f, err := ParseForm(n, base, func(*html.Node) bool { return true })
	require.NoError(t, err)

	page, final, err := s.Submit(context.Background(), f, url.Values{
		"ctl00$MainContent$EmailAddress": {"me@example.org"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/Connect/Home.aspx", final.Path)
	assert.Contains(t, htmlutils.Text(page), "Welcome")

	// plain page requests fail on anything but 200
	_, _, err = s.Page(context.Background(), http.MethodGet, srv.URL+"/missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, booking.ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "ea/Tadworth")
}

func TestSession_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://bookings.example.org", r.Header.Get("Origin"))
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Path == "/bad" {
			_, _ = io.WriteString(w, "{")

			return
		}

		_, _ = fmt.Fprint(w, `{"data":[{"name":"Badminton"}]}`)
	}))
	defer srv.Close()

	s, err := NewSession(nil, "better", "")
	require.NoError(t, err)

	header := http.Header{"Origin": {"https://bookings.example.org"}}

	var got struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}

	require.NoError(t, s.JSON(context.Background(), srv.URL+"/ok", header, &got))
	require.Len(t, got.Data, 1)
	assert.Equal(t, "Badminton", got.Data[0].Name)

	err = s.JSON(context.Background(), srv.URL+"/bad", header, &got)
	assert.ErrorIs(t, err, booking.ErrProviderUnavailable)
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold("Badminton 60min", "badminton"))
	assert.False(t, ContainsFold("Squash", "badminton"))
}
