// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

// Package everyoneactive adapts the Everyone Active websites: the centre
// finder of www.everyoneactive.com and the ASP.NET booking application
// behind profile.everyoneactive.com, which needs an account.
package everyoneactive

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/matching"
	"github.com/jcodagnone/leisureslots/provider"
	"github.com/jcodagnone/leisureslots/spatial"
	"github.com/jcodagnone/leisureslots/utils/htmlutils"
	"github.com/jcodagnone/leisureslots/utils/httputils"
	"github.com/jcodagnone/leisureslots/utils/textutils"
)

// Defaults of Options.
const (
	CentresURL = "https://www.everyoneactive.com/centre/"
	BookingURL = "https://profile.everyoneactive.com/booking"

	// SearchDays is how far ahead the advanced search looks.
	SearchDays = 14
	// GridPages is the number of availability grid pages read, one per week.
	GridPages = 2
)

// ids of the booking application controls.
const (
	frameID      = "bookingFrame"
	emailID      = "emailAddress"
	passwordID   = "password"
	sitesID      = "ctl00_MainContent__advanceSearchUserControl_SitesAdvanced"
	activitiesID = "ctl00_MainContent__advanceSearchUserControl_Activities"
	endDateID    = "ctl00_MainContent__advanceSearchUserControl_endDate"
	searchID     = "ctl00_MainContent__advanceSearchUserControl__searchBtn"
	forwardID    = "ctl00_MainContent_dateForward1"

	endDateLayout = "02/01/2006"
)

var errMissingCredentials = errors.New("missing Everyone Active credentials")

// Options configures the adapter. Zero values take the defaults.
type Options struct {
	CentresURL string
	BookingURL string

	Email    string
	Password string

	// Resolves centre names against the booking application sites.
	Matcher *matching.Matcher

	// Availability grid pages read per activity.
	Pages int

	Now  func() time.Time
	HTTP *httputils.ClientOptions
}

// Provider is the Everyone Active adapter.
type Provider struct {
	options Options
}

var _ provider.Provider = (*Provider)(nil)

// New creates the adapter. Credentials are only needed by ActivitySlots.
func New(options *Options) (*Provider, error) {
	p := &Provider{}
	if options != nil {
		p.options = *options
	}

	o := &p.options
	o.CentresURL = cmp.Or(o.CentresURL, CentresURL)
	o.BookingURL = cmp.Or(o.BookingURL, BookingURL)
	o.Pages = cmp.Or(o.Pages, GridPages)

	if o.Now == nil {
		o.Now = time.Now
	}

	if o.Matcher == nil {
		m, err := matching.New(nil)
		if err != nil {
			return nil, err
		}

		o.Matcher = m
	}

	return p, nil
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "everyoneactive" }

// Company implements provider.Provider.
func (p *Provider) Company() string { return "Everyone Active" }

// Version implements provider.Provider.
func (p *Provider) Version() string { return "1" }

// CandidateCentres implements provider.Provider. The finder lists every
// centre of the chain, so origin is not sent; centres without coordinates
// are skipped.
func (p *Provider) CandidateCentres(ctx context.Context, _ string) ([]booking.Candidate, error) {
	s, err := provider.NewSession(p.options.HTTP, p.Name(), "")
	if err != nil {
		return nil, err
	}

	n, _, err := s.Page(httputils.AllowRedirect(ctx), http.MethodGet, p.options.CentresURL, nil)
	if err != nil {
		return nil, err
	}

	return parseCandidates(n), nil
}

func parseCandidates(n *html.Node) []booking.Candidate {
	var ret []booking.Candidate

	items := htmlutils.FindAll(n, func(n *html.Node) bool {
		return htmlutils.HasClass(n, "centre-finder__results-item")
	})

	for _, item := range items {
		name := htmlutils.Find(item, func(n *html.Node) bool {
			return htmlutils.ClassHasPrefix(n, "centre-finder__results-item-name")
		})
		if name == nil {
			continue
		}

		if a := htmlutils.Find(name, func(n *html.Node) bool { return htmlutils.IsElement(n, "a") }); a != nil {
			name = a
		}

		c := booking.Candidate{
			Name: textutils.SquashSpaces(htmlutils.Text(name)),
			Ref:  htmlutils.Attr(name, "href"),
		}
		if c.Name == "" {
			continue
		}

		if link := htmlutils.Find(item, func(n *html.Node) bool {
			return htmlutils.HasClass(n, "centre-finder__results-details-link")
		}); link != nil {
			c.Point = parseCoordinates(htmlutils.Attr(link, "href"))
		}

		if c.Point == nil {
			continue
		}

		if address := htmlutils.Find(item, func(n *html.Node) bool {
			return htmlutils.ClassHasPrefix(n, "centre-finder__results-item-address")
		}); address != nil {
			c.Address = textutils.JoinLines(htmlutils.Lines(address))
		}

		ret = append(ret, c)
	}

	return ret
}

// parseCoordinates reads the "lat,lng" last path element of a map link.
func parseCoordinates(href string) *spatial.Point {
	u, err := url.Parse(href)
	if err != nil {
		return nil
	}

	lat, lng, ok := strings.Cut(path.Base(strings.TrimSuffix(u.Path, "/")), ",")
	if !ok {
		return nil
	}

	p := spatial.Point{}

	if p.Lat, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil {
		return nil
	}

	if p.Lng, err = strconv.ParseFloat(strings.TrimSpace(lng), 64); err != nil {
		return nil
	}

	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return nil
	}

	return &p
}

// page is a document of the booking application and the URL it came from.
type page struct {
	node *html.Node
	url  *url.URL
}

func (pg page) form() (*provider.Form, error) {
	return provider.ParseForm(pg.node, pg.url, func(*html.Node) bool { return true })
}

func (pg page) find(id string) *html.Node {
	return htmlutils.Find(pg.node, htmlutils.ByID(id))
}

// ActivitySlots implements provider.Provider.
func (p *Provider) ActivitySlots(ctx context.Context, centre booking.Centre, activity string) (booking.Activities, error) {
	s, err := provider.NewSession(p.options.HTTP, p.Name(), centre.Name)
	if err != nil {
		return nil, err
	}

	pg, err := p.login(ctx, s)
	if err != nil {
		return nil, err
	}

	pg, err = p.selectSite(ctx, s, pg, centre.Name)
	if err != nil {
		return nil, err
	}

	name, options, ok := provider.SelectByID(pg.node, activitiesID)
	if !ok {
		return nil, s.Unavailable("activities select not found")
	}

	ret := booking.Activities{}

	for _, o := range options {
		if o.Value == "" || !provider.ContainsFold(o.Text, activity) || provider.ContainsFold(o.Text, "mixed") {
			continue
		}

		dates, err := p.search(ctx, s, pg, name, o)
		if err != nil {
			return nil, err
		}

		if len(dates) > 0 {
			ret[o.Text] = dates
		}
	}

	return ret, nil
}

func (p *Provider) login(ctx context.Context, s *provider.Session) (page, error) {
	if p.options.Email == "" || p.options.Password == "" {
		return page{}, s.Fail(booking.KindProviderUnavailable, errMissingCredentials)
	}

	n, u, err := s.Page(httputils.AllowRedirect(ctx), http.MethodGet, p.options.BookingURL, nil)
	if err != nil {
		return page{}, err
	}

	pg := page{n, u}

	if email := pg.find(emailID); email != nil {
		password := pg.find(passwordID)
		if password == nil {
			return page{}, s.Unavailable("login form without password")
		}

		f, err := provider.ParseForm(n, u, func(form *html.Node) bool {
			return htmlutils.Find(form, htmlutils.ByID(emailID)) != nil
		})
		if err != nil {
			return page{}, s.Unavailable("login: %w", err)
		}

		values := url.Values{
			htmlutils.Attr(email, "name"):    {p.options.Email},
			htmlutils.Attr(password, "name"): {p.options.Password},
		}

		if submit := htmlutils.Find(n, isSubmit); submit != nil {
			for k, v := range click(submit) {
				values[k] = v
			}
		}

		if pg.node, pg.url, err = s.Submit(ctx, f, values); err != nil {
			return page{}, err
		}

		if pg.find(emailID) != nil || htmlutils.FailIfTitle(pg.node, "login", "log in") != nil {
			return page{}, s.Unavailable("login rejected")
		}
	}

	frame := pg.find(frameID)
	if frame == nil {
		return pg, nil
	}

	src, err := pg.url.Parse(htmlutils.Attr(frame, "src"))
	if err != nil {
		return page{}, s.Unavailable("booking frame: %w", err)
	}

	if pg.node, pg.url, err = s.Page(httputils.AllowRedirect(ctx), http.MethodGet, src.String(), nil); err != nil {
		return page{}, err
	}

	return pg, nil
}

// selectSite picks the site most similar to centre in the advanced search
// and posts the form back, which fills the activities select.
func (p *Provider) selectSite(ctx context.Context, s *provider.Session, pg page, centre string) (page, error) {
	name, options, ok := provider.SelectByID(pg.node, sitesID)
	if !ok {
		return page{}, s.Unavailable("sites select not found")
	}

	var sites []provider.Option

	for _, o := range options {
		if o.Value != "" {
			sites = append(sites, o)
		}
	}

	texts := make([]string, len(sites))
	for i, o := range sites {
		texts[i] = o.Text
	}

	m, ok := p.options.Matcher.FindBestMatch(centre, texts)
	if !ok {
		return page{}, s.Fail(booking.KindMatchNotFound, fmt.Errorf("no site like %q among %d", centre, len(sites)))
	}

	if m.Candidate != centre {
		log.Printf("Everyone Active - %q matched site %q (%.2f)", centre, m.Candidate, m.Score)
	}

	f, err := pg.form()
	if err != nil {
		return page{}, s.Unavailable("advanced search: %w", err)
	}

	var ret page

	ret.node, ret.url, err = s.Submit(ctx, f, url.Values{
		name:              {sites[m.Index].Value},
		"__EVENTTARGET":   {name},
		"__EVENTARGUMENT": {""},
	})

	return ret, err
}

// search runs the advanced search of one activity option and reads its
// availability grid.
func (p *Provider) search(
	ctx context.Context,
	s *provider.Session,
	pg page,
	selectName string,
	option provider.Option,
) (booking.Dates, error) {
	f, err := pg.form()
	if err != nil {
		return nil, s.Unavailable("advanced search: %w", err)
	}

	values := url.Values{
		selectName:        {option.Value},
		"__EVENTTARGET":   {""},
		"__EVENTARGUMENT": {""},
	}

	if endDate := pg.find(endDateID); endDate != nil {
		values.Set(htmlutils.Attr(endDate, "name"), p.options.Now().AddDate(0, 0, SearchDays).Format(endDateLayout))
	}

	if button := pg.find(searchID); button != nil {
		for k, v := range click(button) {
			values[k] = v
		}
	}

	var results page
	if results.node, results.url, err = s.Submit(ctx, f, values); err != nil {
		return nil, err
	}

	if noResults(results.node) {
		return nil, nil
	}

	button := htmlutils.Find(results.node, func(n *html.Node) bool {
		return htmlutils.HasClass(n, "availabilitybutton") && buttonText(n) == "Space"
	})
	if button == nil {
		return nil, nil
	}

	grid, err := p.open(ctx, s, results, button)
	if err != nil {
		return nil, err
	}

	ret := booking.Dates{}

	for i := range p.options.Pages {
		dates, ok := parseGrid(grid.node)
		if !ok {
			break
		}

		for date, slots := range dates {
			ret[date] = append(ret[date], slots...)
		}

		if i+1 == p.options.Pages {
			break
		}

		forward := grid.find(forwardID)
		if forward == nil {
			break
		}

		if grid, err = p.open(ctx, s, grid, forward); err != nil {
			return nil, err
		}
	}

	return ret, nil
}

// open follows a control of pg: posting the form back or following its link.
func (p *Provider) open(ctx context.Context, s *provider.Session, pg page, control *html.Node) (page, error) {
	var ret page

	if values := click(control); len(values) > 0 {
		f, err := pg.form()
		if err != nil {
			return page{}, s.Unavailable("postback: %w", err)
		}

		ret.node, ret.url, err = s.Submit(ctx, f, values)

		return ret, err
	}

	href, err := pg.url.Parse(htmlutils.Attr(control, "href"))
	if err != nil {
		return page{}, s.Unavailable("following link: %w", err)
	}

	ret.node, ret.url, err = s.Page(httputils.AllowRedirect(ctx), http.MethodGet, href.String(), nil)

	return ret, err
}

func noResults(n *html.Node) bool {
	alert := htmlutils.Find(n, func(n *html.Node) bool {
		return htmlutils.HasClass(n, "alert-warning") && strings.Contains(htmlutils.Text(n), "No results")
	})

	return alert != nil
}

func buttonText(n *html.Node) string {
	if htmlutils.IsElement(n, "input") {
		return strings.TrimSpace(htmlutils.Attr(n, "value"))
	}

	return textutils.SquashSpaces(htmlutils.Text(n))
}
