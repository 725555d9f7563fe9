package weather

import (
	"errors"
	"time"
)

// Weather errors.
var (
	ErrNoEntries = errors.New("forecast has no entries")
)

// SourceTag records whether a summary came from the forecast for the target
// day or from the current reading.
type SourceTag string

const (
	// SourceLiveForecast means at least one forecast entry fell on the target day.
	SourceLiveForecast SourceTag = "live_forecast"
	// SourceLiveCurrent means no entry matched and the first (current) entry was used.
	SourceLiveCurrent SourceTag = "live_current"
)

// Entry is one timestamped forecast reading as returned by a provider.
type Entry struct {
	Time time.Time

	// Imperial units: Fahrenheit, mph.
	TemperatureF float64
	WindSpeedMph float64

	// Humidity percentage (0-100)
	Humidity float64

	// Atmospheric pressure in hPa
	Pressure float64

	// Visibility in meters
	Visibility float64

	// Rain volume for the entry's window, millimeters
	PrecipitationMM float64

	Description string
	IconCode    string
}

// Summary is the normalized weather panel payload.
type Summary struct {
	TemperatureF int       `json:"temperatureF"`
	Description  string    `json:"description"`
	HumidityPct  float64   `json:"humidityPct"`
	Pressure     float64   `json:"pressure"`
	WindSpeedMph float64   `json:"windSpeedMph"`
	VisibilityMi int       `json:"visibilityMi"`
	IconCode     string    `json:"iconCode"`
	Hourly       []Hour    `json:"hourly"`
	SourceTag    SourceTag `json:"sourceTag"`
}

// Hour is one entry of the hourly breakdown.
type Hour struct {
	Time            string  `json:"time"`
	TemperatureF    int     `json:"tempF"`
	Description     string  `json:"description"`
	IconCode        string  `json:"iconCode"`
	PrecipitationIn float64 `json:"precipitationIn"`
}
