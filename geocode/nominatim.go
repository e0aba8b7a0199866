// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/jcodagnone/leisureslots/spatial"
	"github.com/jcodagnone/leisureslots/utils/httputils"
)

// NominatimURL is the public OpenStreetMap search endpoint.
const NominatimURL = "https://nominatim.openstreetmap.org/search"

// Nominatim uses the OpenStreetMap search API. The public instance allows
// one request per second and requires an identifying User-Agent.
type Nominatim struct {
	BaseURL      string
	CountryCodes string

	client  *http.Client
	limiter *rate.Limiter
}

// NominatimOptions configures NewNominatim.
type NominatimOptions struct {
	// BaseURL defaults to NominatimURL.
	BaseURL string
	// Comma separated ISO 3166-1 codes, "gb" when empty.
	CountryCodes string
	// Zero means one request per second.
	Interval time.Duration
	Client   *http.Client
}

// NewNominatim creates a Nominatim geocoder.
func NewNominatim(options *NominatimOptions) (*Nominatim, error) {
	if options == nil {
		options = &NominatimOptions{}
	}

	n := &Nominatim{
		BaseURL:      options.BaseURL,
		CountryCodes: options.CountryCodes,
		client:       options.Client,
	}

	if n.BaseURL == "" {
		n.BaseURL = NominatimURL
	}

	if n.CountryCodes == "" {
		n.CountryCodes = "gb"
	}

	interval := options.Interval
	if interval <= 0 {
		interval = time.Second
	}

	n.limiter = rate.NewLimiter(rate.Every(interval), 1)

	if n.client == nil {
		client, err := httputils.NewClient(&httputils.ClientOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}

		n.client = client
	}

	return n, nil
}

// Name implements Geocoder.
func (n *Nominatim) Name() string {
	return "nominatim"
}

type nominatimPlace struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Importance  float64 `json:"importance"`
	Type        string  `json:"type"`
}

func (p *nominatimPlace) confidence() string {
	switch {
	case p.Type == "postcode" || p.Importance >= 0.5:
		return "high"
	case p.Importance >= 0.2:
		return "medium"
	default:
		return "low"
	}
}

// Geocode implements Geocoder.
func (n *Nominatim) Geocode(ctx context.Context, query string) (*Result, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, &Error{Type: ErrorTypeTimeout, Message: "nominatim: waiting for rate limiter", Err: err}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", "1")
	params.Set("countrycodes", n.CountryCodes)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "nominatim: building request", Err: err}
	}

	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(n.Name(), err)
	}

	defer httputils.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, n.Name())
	}

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, &Error{Type: ErrorTypeUnknown, Message: "nominatim: decoding response", Err: err}
	}

	if len(places) == 0 {
		return nil, &Error{Type: ErrorTypeNotFound, Message: fmt.Sprintf("nominatim: no results found for %q", query)}
	}

	place := places[0]

	lat, err := strconv.ParseFloat(place.Lat, 64)
	if err != nil {
		return nil, &Error{Type: ErrorTypeUnknown, Message: "nominatim: parsing latitude", Err: err}
	}

	lng, err := strconv.ParseFloat(place.Lon, 64)
	if err != nil {
		return nil, &Error{Type: ErrorTypeUnknown, Message: "nominatim: parsing longitude", Err: err}
	}

	return &Result{
		Point:       spatial.Point{Lat: lat, Lng: lng},
		Confidence:  place.confidence(),
		Provider:    n.Name(),
		DisplayName: place.DisplayName,
	}, nil
}
