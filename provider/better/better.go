// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package better adapts the BETTER (GLL) websites: the centre locator of
// www.better.org.uk and the JSON API behind bookings.better.org.uk.
package better

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/provider"
	"github.com/jcodagnone/leisureslots/utils/htmlutils"
	"github.com/jcodagnone/leisureslots/utils/httputils"
	"github.com/jcodagnone/leisureslots/utils/textutils"
)

// Defaults of Options.
const (
	LocatorURL   = "https://www.better.org.uk/centre-locator"
	APIURL       = "https://better-admin.org.uk"
	BookingsURL  = "https://bookings.better.org.uk"
	BookingsHost = "bookings.better"
	Category     = "sports-hall-activities"

	// business sector of the leisure centres in the locator search form
	leisureSector = "2"
)

// Options configures the adapter. Zero values take the defaults.
type Options struct {
	LocatorURL string
	APIURL     string
	// Sent as Origin, the API rejects requests without it.
	BookingsURL string
	// Booking links not containing it are ignored.
	BookingsHost string
	Category     string

	HTTP *httputils.ClientOptions
}

// Provider is the BETTER adapter.
type Provider struct {
	options Options
}

var _ provider.Provider = (*Provider)(nil)

// New creates the adapter.
func New(options *Options) *Provider {
	p := &Provider{}
	if options != nil {
		p.options = *options
	}

	o := &p.options
	o.LocatorURL = cmp.Or(o.LocatorURL, LocatorURL)
	o.APIURL = strings.TrimSuffix(cmp.Or(o.APIURL, APIURL), "/")
	o.BookingsURL = cmp.Or(o.BookingsURL, BookingsURL)
	o.BookingsHost = cmp.Or(o.BookingsHost, BookingsHost)
	o.Category = cmp.Or(o.Category, Category)

	return p
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "better" }

// Company implements provider.Provider.
func (p *Provider) Company() string { return "BETTER" }

// Version implements provider.Provider.
func (p *Provider) Version() string { return "1" }

// CandidateCentres implements provider.Provider. Candidates come in the
// locator's order and carry no coordinates; Ref is the venue slug.
func (p *Provider) CandidateCentres(ctx context.Context, origin string) ([]booking.Candidate, error) {
	s, err := provider.NewSession(p.options.HTTP, p.Name(), "")
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("venue_search[searchterm]", origin)
	form.Set("venue_search[business_sector_id]", leisureSector)

	n, _, err := s.Page(httputils.AllowRedirect(ctx), http.MethodGet, p.options.LocatorURL, form)
	if err != nil {
		return nil, err
	}

	return p.parseCandidates(n), nil
}

func (p *Provider) parseCandidates(n *html.Node) []booking.Candidate {
	var ret []booking.Candidate

	panels := htmlutils.FindAll(n, func(n *html.Node) bool {
		return htmlutils.HasClass(n, "venue-result-panel")
	})

	for _, panel := range panels {
		name := htmlutils.Find(panel, func(n *html.Node) bool {
			return htmlutils.ClassHasPrefix(n, "venue-result-panel__link")
		})
		if name == nil {
			continue
		}

		var venue string

		for _, a := range htmlutils.FindAll(panel, func(n *html.Node) bool {
			return htmlutils.IsElement(n, "a") && strings.Contains(htmlutils.Attr(n, "class"), "venue-result-panel__btn")
		}) {
			if venue = venueSlug(htmlutils.Attr(a, "href"), p.options.BookingsHost); venue != "" {
				break
			}
		}

		if venue == "" {
			continue
		}

		c := booking.Candidate{
			Name: textutils.SquashSpaces(htmlutils.Text(name)),
			Ref:  venue,
		}

		if address := htmlutils.Find(panel, func(n *html.Node) bool {
			return htmlutils.ClassHasPrefix(n, "venue-result-panel__address")
		}); address != nil {
			c.Address = textutils.JoinLines(htmlutils.Lines(address))
		}

		ret = append(ret, c)
	}

	return ret
}

// venueSlug returns the last path element of a booking link of host.
func venueSlug(href, host string) string {
	if !strings.Contains(href, host) {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	slug := path.Base(strings.TrimSuffix(u.Path, "/"))
	if slug == "." || slug == "/" {
		return ""
	}

	return slug
}

type activitiesResponse struct {
	Data []struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"data"`
}

type datesResponse struct {
	Data []struct {
		Raw string `json:"raw"`
	} `json:"data"`
}

type clock struct {
	Format24Hour string `json:"format_24_hour"`
}

type timesResponse struct {
	Data []struct {
		StartsAt clock `json:"starts_at"`
		EndsAt   clock `json:"ends_at"`
		Price    struct {
			FormattedAmount string `json:"formatted_amount"`
		} `json:"price"`
		Spaces int `json:"spaces"`
	} `json:"data"`
}

// Price without the currency sign.
func price(formatted string) string {
	formatted = strings.TrimSpace(formatted)

	return strings.TrimSpace(strings.TrimLeft(formatted, "£$€"))
}

func (p *Provider) venueURL(venue string, elem ...string) string {
	return p.options.APIURL + "/api/activities/venue/" + url.PathEscape(venue) + "/" + strings.Join(elem, "/")
}

// ActivitySlots implements provider.Provider.
func (p *Provider) ActivitySlots(ctx context.Context, centre booking.Centre, activity string) (booking.Activities, error) {
	if centre.Ref == "" {
		return nil, booking.NewProviderError(booking.KindMatchNotFound, p.Name(), centre.Name, fmt.Errorf("no venue"))
	}

	s, err := provider.NewSession(p.options.HTTP, p.Name(), centre.Name)
	if err != nil {
		return nil, err
	}

	header := http.Header{"Origin": {p.options.BookingsURL}}

	var activities activitiesResponse
	if err := s.JSON(ctx, p.venueURL(centre.Ref, "category", p.options.Category), header, &activities); err != nil {
		return nil, err
	}

	ret := booking.Activities{}

	for _, a := range activities.Data {
		if !provider.ContainsFold(a.Name, activity) {
			continue
		}

		dates, err := p.activityDates(ctx, s, header, centre.Ref, a.Slug)
		if err != nil {
			return nil, err
		}

		if len(dates) > 0 {
			ret[a.Name] = dates
		}
	}

	return ret, nil
}

func (p *Provider) activityDates(
	ctx context.Context,
	s *provider.Session,
	header http.Header,
	venue, slug string,
) (booking.Dates, error) {
	var dates datesResponse
	if err := s.JSON(ctx, p.venueURL(venue, "activity", url.PathEscape(slug), "dates"), header, &dates); err != nil {
		return nil, err
	}

	ret := booking.Dates{}

	for _, d := range dates.Data {
		var times timesResponse

		u := p.venueURL(venue, "activity", url.PathEscape(slug), "times") + "?" + url.Values{"date": {d.Raw}}.Encode()
		if err := s.JSON(ctx, u, header, &times); err != nil {
			return nil, err
		}

		for _, t := range times.Data {
			ret[d.Raw] = append(ret[d.Raw], booking.Slot{
				TimeRange: t.StartsAt.Format24Hour + " - " + t.EndsAt.Format24Hour,
				Price:     price(t.Price.FormattedAmount),
				Spaces:    t.Spaces,
			})
		}
	}

	return ret, nil
}
