// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/jcodagnone/leisureslots/booking"
	"github.com/jcodagnone/leisureslots/utils/htmlutils"
	"github.com/jcodagnone/leisureslots/utils/httputils"
)

// Session is the HTTP session of one provider task: its own client and
// cookie jar, and the provider and centre every failure is reported for.
type Session struct {
	Client   *http.Client
	Provider string
	Centre   string
}

// NewSession creates a Session with a new client built from options.
func NewSession(options *httputils.ClientOptions, provider, centre string) (*Session, error) {
	client, err := httputils.NewClient(options)
	if err != nil {
		return nil, booking.NewProviderError(booking.KindProviderUnavailable, provider, centre, err)
	}

	return &Session{Client: client, Provider: provider, Centre: centre}, nil
}

// Fail wraps err as a ProviderError of kind.
func (s *Session) Fail(kind booking.ErrorKind, err error) error {
	return booking.NewProviderError(kind, s.Provider, s.Centre, err)
}

// Unavailable wraps err as a provider unavailable ProviderError.
func (s *Session) Unavailable(format string, a ...any) error {
	return s.Fail(booking.KindProviderUnavailable, fmt.Errorf(format, a...))
}

// Do sends req and returns the response if its status is 200.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, s.Unavailable("%s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		httputils.DrainAndClose(resp.Body)

		return nil, s.Unavailable("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	return resp, nil
}

// Page requests u and parses the HTML document it answers with.
func (s *Session) Page(ctx context.Context, method, u string, form url.Values) (*html.Node, *url.URL, error) {
	var (
		req *http.Request
		err error
	)

	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, u, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		if len(form) > 0 {
			u += "?" + form.Encode()
		}

		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}

	if err != nil {
		return nil, nil, s.Unavailable("building request: %w", err)
	}

	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.Do(req)
	if err != nil {
		return nil, nil, err
	}

	defer httputils.DrainAndClose(resp.Body)

	r, err := htmlutils.AsReader(resp)
	if err != nil {
		return nil, nil, s.Unavailable("%s: %w", req.URL.Path, err)
	}

	n, err := htmlutils.AsNode(r)
	if err != nil {
		return nil, nil, s.Unavailable("%s: %w", req.URL.Path, err)
	}

	return n, resp.Request.URL, nil
}

// JSON requests u and decodes its JSON answer into v.
func (s *Session) JSON(ctx context.Context, u string, header http.Header, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return s.Unavailable("building request: %w", err)
	}

	for k, values := range header {
		req.Header[k] = values
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.Do(req)
	if err != nil {
		return err
	}

	defer httputils.DrainAndClose(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return s.Unavailable("%s: decoding response: %w", req.URL.Path, err)
	}

	return nil
}

// Form is an HTML form: its action resolved against the page URL and the
// values a browser would submit without user input.
type Form struct {
	Action *url.URL
	Method string
	Values url.Values
}

// ParseForm reads the first form matching in n. Hidden and text inputs
// keep their values, selects their selected (or first) option.
func ParseForm(n *html.Node, base *url.URL, match func(*html.Node) bool) (*Form, error) {
	node := htmlutils.Find(n, func(n *html.Node) bool {
		return htmlutils.IsElement(n, "form") && match(n)
	})
	if node == nil {
		return nil, fmt.Errorf("form not found")
	}

	action, err := base.Parse(htmlutils.Attr(node, "action"))
	if err != nil {
		return nil, fmt.Errorf("parsing form action: %w", err)
	}

	method := strings.ToUpper(htmlutils.Attr(node, "method"))
	if method == "" {
		method = http.MethodGet
	}

	f := &Form{Action: action, Method: method, Values: url.Values{}}

	for _, input := range htmlutils.FindAll(node, func(n *html.Node) bool { return htmlutils.IsElement(n, "input") }) {
		name := htmlutils.Attr(input, "name")
		if name == "" {
			continue
		}

		switch strings.ToLower(htmlutils.Attr(input, "type")) {
		case "submit", "button", "image", "reset":
		case "checkbox", "radio":
			if hasAttr(input, "checked") {
				f.Values.Add(name, valueOr(input, "on"))
			}
		default:
			f.Values.Set(name, htmlutils.Attr(input, "value"))
		}
	}

	for _, sel := range htmlutils.FindAll(node, func(n *html.Node) bool { return htmlutils.IsElement(n, "select") }) {
		name := htmlutils.Attr(sel, "name")
		if name == "" {
			continue
		}

		options := Options(sel)
		if len(options) == 0 {
			continue
		}

		chosen := options[0]
		if i := slices.IndexFunc(options, func(o Option) bool { return o.Selected }); i != -1 {
			chosen = options[i]
		}

		f.Values.Set(name, chosen.Value)
	}

	return f, nil
}

func hasAttr(n *html.Node, key string) bool {
	return slices.ContainsFunc(n.Attr, func(a html.Attribute) bool { return strings.EqualFold(a.Key, key) })
}

func valueOr(n *html.Node, def string) string {
	if hasAttr(n, "value") {
		return htmlutils.Attr(n, "value")
	}

	return def
}

// Submit posts f with values overriding its own.
func (s *Session) Submit(ctx context.Context, f *Form, values url.Values) (*html.Node, *url.URL, error) {
	form := url.Values{}
	for k, v := range f.Values {
		form[k] = slices.Clone(v)
	}

	for k, v := range values {
		form[k] = v
	}

	return s.Page(httputils.AllowRedirect(ctx), f.Method, f.Action.String(), form)
}

// Option is an <option> of a <select>.
type Option struct {
	Text     string
	Value    string
	Selected bool
}

// Options lists the options of sel.
func Options(sel *html.Node) []Option {
	var ret []Option

	for _, o := range htmlutils.FindAll(sel, func(n *html.Node) bool { return htmlutils.IsElement(n, "option") }) {
		text := htmlutils.Text(o)

		ret = append(ret, Option{
			Text:     text,
			Value:    valueOr(o, text),
			Selected: hasAttr(o, "selected"),
		})
	}

	return ret
}

// SelectByID returns the options of the select with the given id, and its name.
func SelectByID(n *html.Node, id string) (name string, options []Option, ok bool) {
	sel := htmlutils.Find(n, htmlutils.ByID(id))
	if sel == nil || !htmlutils.IsElement(sel, "select") {
		return "", nil, false
	}

	return htmlutils.Attr(sel, "name"), Options(sel), true
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
