// Package noaa reads tide predictions from the NOAA CO-OPS data API.
package noaa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/tide"
)

const (
	// ProviderName identifies this tide provider.
	ProviderName = "noaa"

	// DefaultBaseURL is the CO-OPS datagetter endpoint.
	DefaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

	// timeLayout is the layout of prediction timestamps ("t").
	timeLayout = "2006-01-02 15:04"
)

// ClientConfig holds configuration for the NOAA client.
type ClientConfig struct {
	// BaseURL is the datagetter URL (optional).
	BaseURL string

	// Location is the zone prediction timestamps are read in. Predictions are
	// requested in station local time (lst_ldt). Default: time.Local
	Location *time.Location

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient resilience.Doer

	Logger zerolog.Logger
}

// Client is a NOAA CO-OPS predictions client.
type Client struct {
	baseURL    string
	location   *time.Location
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewClient creates a new NOAA client.
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

// GetPredictions fetches 6-minute MLLW predictions in feet for date's local day.
func (c *Client) GetPredictions(ctx context.Context, stationID string, date time.Time) ([]tide.Prediction, error) {
	day := date.In(c.location).Format("20060102")

	q := url.Values{}
	q.Set("product", "predictions")
	q.Set("begin_date", day)
	q.Set("end_date", day)
	q.Set("datum", "MLLW")
	q.Set("station", stationID)
	q.Set("time_zone", "lst_ldt")
	q.Set("units", "english")
	q.Set("interval", "6")
	q.Set("format", "json")
	q.Set("application", "tidewatch")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var resp predictionsResponse
	if err := resilience.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, source.DataError("station %s: %s", stationID, strings.TrimSpace(resp.Error.Message))
	}
	if len(resp.Predictions) == 0 {
		return nil, source.DataError("station %s: no predictions", stationID)
	}

	series := make([]tide.Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		at, err := time.ParseInLocation(timeLayout, p.T, c.location)
		if err != nil {
			return nil, source.DataError("station %s: bad timestamp %q", stationID, p.T)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(p.V), 64)
		if err != nil {
			return nil, source.DataError("station %s: bad height %q", stationID, p.V)
		}
		series = append(series, tide.Prediction{Time: at, HeightFt: v})
	}
	return series, nil
}

// NOAA API response structures.

type predictionsResponse struct {
	Predictions []struct {
		T string `json:"t"`
		V string `json:"v"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}
