package openweathermap

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
	"github.com/tidewatch/tidewatch/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to OpenWeatherMap API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient resilience.Doer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap 5 day / 3 hour forecast client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetForecast fetches the forecast list for a location in imperial units.
// A missing API key is reported without a network call.
func (c *Client) GetForecast(ctx context.Context, lat, lon float64) ([]weather.Entry, error) {
	if c.apiKey == "" {
		return nil, source.ConfigError("openweathermap api key is not set")
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "imperial")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/forecast?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var resp forecastResponse
	if err := resilience.DoJSON(c.httpClient, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.List) == 0 {
		return nil, source.DataError("forecast response has no list entries")
	}

	return toEntries(&resp), nil
}

// toEntries converts the OpenWeatherMap response to domain entries.
func toEntries(resp *forecastResponse) []weather.Entry {
	entries := make([]weather.Entry, 0, len(resp.List))
	for _, item := range resp.List {
		e := weather.Entry{
			Time:            time.Unix(item.Dt, 0).UTC(),
			TemperatureF:    item.Main.Temp,
			Humidity:        item.Main.Humidity,
			Pressure:        item.Main.Pressure,
			WindSpeedMph:    item.Wind.Speed,
			Visibility:      item.Visibility,
			PrecipitationMM: item.Rain.ThreeHour,
		}
		if len(item.Weather) > 0 {
			e.Description = item.Weather[0].Description
			e.IconCode = item.Weather[0].Icon
		}
		entries = append(entries, e)
	}
	return entries
}

// OpenWeatherMap API response structures.

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			Pressure float64 `json:"pressure"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Visibility float64 `json:"visibility"`
		Rain       struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}
