// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"

	"github.com/jcodagnone/leisureslots/spatial"
	"github.com/jcodagnone/leisureslots/utils/httputils"
)

// GoogleMapsURL is the Geocoding API endpoint.
const GoogleMapsURL = "https://maps.googleapis.com/maps/api/geocode/json"

// APIKeyDisplayName is the display name of the key APIKeyFromADC looks for.
const APIKeyDisplayName = "LeisureSlots Geocoding Key"

// GoogleMaps uses the Google Maps Geocoding API.
type GoogleMaps struct {
	BaseURL string
	// Region biases results, a ccTLD ("uk").
	Region string

	apiKey     string
	httpClient *http.Client
}

// NewGoogleMaps creates a Google Maps geocoder.
func NewGoogleMaps(apiKey string, client *http.Client) (*GoogleMaps, error) {
	if apiKey == "" {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "google_maps: missing API key"}
	}

	if client == nil {
		var err error

		client, err = httputils.NewClient(&httputils.ClientOptions{Timeout: 10 * time.Second})
		if err != nil {
			return nil, err
		}
	}

	return &GoogleMaps{
		BaseURL:    GoogleMapsURL,
		Region:     "uk",
		apiKey:     apiKey,
		httpClient: client,
	}, nil
}

// Name implements Geocoder.
func (g *GoogleMaps) Name() string {
	return "google_maps"
}

type googleMapsResponse struct {
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"` // ROOFTOP, RANGE_INTERPOLATED, GEOMETRIC_CENTER, APPROXIMATE
		} `json:"geometry"`
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status       string `json:"status"` // OK, ZERO_RESULTS, etc.
	ErrorMessage string `json:"error_message"`
}

func statusError(status, message string) *Error {
	e := &Error{Message: "google_maps status: " + status}
	if message != "" {
		e.Message += " - " + message
	}

	switch status {
	case "ZERO_RESULTS":
		e.Type = ErrorTypeNotFound
	case "OVER_QUERY_LIMIT":
		e.Type = ErrorTypeQuotaExceeded
	case "REQUEST_DENIED":
		e.Type = ErrorTypeQuotaExceeded
	case "INVALID_REQUEST":
		e.Type = ErrorTypeInvalidRequest
	default:
		e.Type = ErrorTypeUnknown
	}

	return e
}

// Geocode implements Geocoder.
func (g *GoogleMaps) Geocode(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.apiKey)
	params.Set("region", g.Region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &Error{Type: ErrorTypeInvalidRequest, Message: "google_maps: building request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(g.Name(), err)
	}

	defer httputils.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, g.Name())
	}

	var gmResp googleMapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&gmResp); err != nil {
		return nil, &Error{Type: ErrorTypeUnknown, Message: "google_maps: decoding response", Err: err}
	}

	if gmResp.Status != "OK" {
		return nil, statusError(gmResp.Status, gmResp.ErrorMessage)
	}

	if len(gmResp.Results) == 0 {
		return nil, &Error{Type: ErrorTypeNotFound, Message: fmt.Sprintf("google_maps: no results found for %q", query)}
	}

	result := gmResp.Results[0]

	confidence := "low"

	switch result.Geometry.LocationType {
	case "ROOFTOP", "RANGE_INTERPOLATED":
		confidence = "high"
	case "GEOMETRIC_CENTER":
		// postcodes resolve to their centroid
		confidence = "medium"
	}

	return &Result{
		Point:       spatial.Point{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng},
		Confidence:  confidence,
		Provider:    g.Name(),
		DisplayName: result.FormattedAddress,
	}, nil
}

// APIKeyFromADC retrieves the key named APIKeyDisplayName from the API Keys
// service of the Application Default Credentials project. projectID
// overrides the one of the credentials.
func APIKeyFromADC(ctx context.Context, projectID string) (string, error) {
	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return "", fmt.Errorf("finding default credentials: %w", err)
	}

	if projectID == "" {
		projectID = creds.ProjectID
	}

	if projectID == "" {
		return "", errors.New("no project ID in the default credentials")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != APIKeyDisplayName {
			continue
		}

		// ListKeys redacts the secret
		log.Printf("Found key resource '%s', retrieving secret...", key.Name)

		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key '%s' found but its key string is empty", APIKeyDisplayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name '%s' not found in project %s", APIKeyDisplayName, projectID)
}
