// Package sunrisesunset queries the sunrise-sunset.org API.
package sunrisesunset

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/sun"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "sunrise-sunset"

	// DefaultBaseURL is the sunrise-sunset.org API base URL.
	DefaultBaseURL = "https://api.sunrise-sunset.org"
)

// ClientConfig holds configuration for the sunrise-sunset client.
type ClientConfig struct {
	BaseURL string

	// Location is the zone used to pick the request date (default: time.Local).
	Location *time.Location

	HTTPClient resilience.Doer
	Logger     zerolog.Logger
}

// Client is a sunrise-sunset.org client.
type Client struct {
	baseURL    string
	location   *time.Location
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewClient creates a new sunrise-sunset client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	return &Client{
		baseURL:    baseURL,
		location:   loc,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetSunTimes fetches sunrise and sunset for date's local day.
func (c *Client) GetSunTimes(ctx context.Context, lat, lon float64, date time.Time) (sun.Instants, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("date", date.In(c.location).Format("2006-01-02"))
	q.Set("formatted", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json?"+q.Encode(), http.NoBody)
	if err != nil {
		return sun.Instants{}, fmt.Errorf("creating request: %w", err)
	}

	var resp sunResponse
	if err := resilience.DoJSON(c.httpClient, req, &resp); err != nil {
		return sun.Instants{}, err
	}
	if resp.Status != "OK" {
		return sun.Instants{}, source.DataError("sunrise-sunset status %q", resp.Status)
	}

	rise, err := time.Parse(time.RFC3339, resp.Results.Sunrise)
	if err != nil {
		return sun.Instants{}, source.DataError("parsing sunrise %q: %v", resp.Results.Sunrise, err)
	}
	set, err := time.Parse(time.RFC3339, resp.Results.Sunset)
	if err != nil {
		return sun.Instants{}, source.DataError("parsing sunset %q: %v", resp.Results.Sunset, err)
	}
	return sun.Instants{Sunrise: rise, Sunset: set}, nil
}

type sunResponse struct {
	Status  string `json:"status"`
	Results struct {
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	} `json:"results"`
}
