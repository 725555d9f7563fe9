package weather_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/weather"
)

type stubProvider struct {
	entries []weather.Entry
	err     error
	calls   int
}

func (p *stubProvider) GetForecast(_ context.Context, _, _ float64) ([]weather.Entry, error) {
	p.calls++
	return p.entries, p.err
}

func (p *stubProvider) Name() string { return "stub" }

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func newFetcher(t *testing.T, p weather.Provider, now time.Time) *weather.Fetcher {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(now)
	return weather.NewFetcher(weather.FetcherConfig{
		Provider: p,
		Resolver: displaymode.NewResolver(displaymode.Config{
			Clock:         mock,
			Timezone:      "America/Los_Angeles",
			ThresholdHour: 17,
		}),
		Logger: zerolog.Nop(),
	})
}

func TestSummarize_AveragesTargetDay(t *testing.T) {
	loc := mustLoad(t, "America/Los_Angeles")
	day := time.Date(2025, 1, 15, 9, 0, 0, 0, loc)

	entries := []weather.Entry{
		{Time: day.Add(-12 * time.Hour), TemperatureF: 40, Description: "previous day"},
		{Time: day, TemperatureF: 60, Description: "light rain", IconCode: "10d", Humidity: 80, Pressure: 1012, WindSpeedMph: 9, Visibility: 8046.7, PrecipitationMM: 2.54},
		{Time: day.Add(3 * time.Hour), TemperatureF: 62, Description: "overcast", IconCode: "04d"},
		{Time: day.Add(6 * time.Hour), TemperatureF: 64, Description: "clear", IconCode: "01d"},
		{Time: day.Add(18 * time.Hour), TemperatureF: 30, Description: "next day"},
	}

	s := weather.Summarize(entries, day, loc)

	assert.Equal(t, weather.SourceLiveForecast, s.SourceTag)
	assert.Equal(t, 62, s.TemperatureF)
	assert.Equal(t, "light rain", s.Description)
	assert.Equal(t, "10d", s.IconCode)
	assert.Equal(t, 80.0, s.HumidityPct)
	assert.Equal(t, 1012.0, s.Pressure)
	assert.Equal(t, 9.0, s.WindSpeedMph)
	assert.Equal(t, 5, s.VisibilityMi)

	require.Len(t, s.Hourly, 3)
	assert.Equal(t, "9:00 AM", s.Hourly[0].Time)
	assert.Equal(t, 0.1, s.Hourly[0].PrecipitationIn)
	assert.Equal(t, "12:00 PM", s.Hourly[1].Time)
	assert.Equal(t, "3:00 PM", s.Hourly[2].Time)
	assert.Equal(t, 64, s.Hourly[2].TemperatureF)
}

func TestSummarize_RoundsMean(t *testing.T) {
	loc := mustLoad(t, "UTC")
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, loc)

	s := weather.Summarize([]weather.Entry{
		{Time: day, TemperatureF: 60.4},
		{Time: day.Add(3 * time.Hour), TemperatureF: 61.0},
	}, day, loc)

	assert.Equal(t, 61, s.TemperatureF)
}

func TestSummarize_NoMatchUsesCurrent(t *testing.T) {
	loc := mustLoad(t, "UTC")
	day := time.Date(2025, 1, 20, 12, 0, 0, 0, loc)

	s := weather.Summarize([]weather.Entry{
		{Time: day.Add(-72 * time.Hour), TemperatureF: 55.6, Description: "mist", Visibility: 3218.68},
		{Time: day.Add(-69 * time.Hour), TemperatureF: 70},
	}, day, loc)

	assert.Equal(t, weather.SourceLiveCurrent, s.SourceTag)
	assert.Equal(t, 56, s.TemperatureF)
	assert.Equal(t, "mist", s.Description)
	assert.Equal(t, 2, s.VisibilityMi)
	assert.Empty(t, s.Hourly)
}

func TestSummarize_UsesLocalDate(t *testing.T) {
	loc := mustLoad(t, "America/Los_Angeles")
	// 2025-01-16 02:00 UTC is still the 15th in Los Angeles.
	entry := weather.Entry{Time: time.Date(2025, 1, 16, 2, 0, 0, 0, time.UTC), TemperatureF: 50}
	target := time.Date(2025, 1, 15, 12, 0, 0, 0, loc)

	s := weather.Summarize([]weather.Entry{entry}, target, loc)
	assert.Equal(t, weather.SourceLiveForecast, s.SourceTag)
	assert.Equal(t, "6:00 PM", s.Hourly[0].Time)
}

func TestFetcher_TomorrowTargetsNextDay(t *testing.T) {
	loc := mustLoad(t, "America/Los_Angeles")
	now := time.Date(2025, 1, 15, 18, 30, 0, 0, loc)
	tomorrow := time.Date(2025, 1, 16, 10, 0, 0, 0, loc)

	p := &stubProvider{entries: []weather.Entry{
		{Time: now, TemperatureF: 50},
		{Time: tomorrow, TemperatureF: 66},
	}}

	result := newFetcher(t, p, now).Fetch(context.Background(), displaymode.Tomorrow)
	require.True(t, result.OK())
	assert.Equal(t, "live_forecast", result.Source)
	assert.Equal(t, 66, result.Value.TemperatureF)
}

func TestFetcher_ProviderErrorFails(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		err  error
		kind source.Kind
	}{
		{"config", source.ConfigError("missing api key"), source.KindConfig},
		{"network", errors.New("connection refused"), source.KindNetwork},
		{"data", source.DataError("no list"), source.KindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newFetcher(t, &stubProvider{err: tt.err}, now).Fetch(context.Background(), displaymode.Today)
			require.True(t, result.Failed())
			assert.Equal(t, tt.kind, result.Kind())
			assert.Equal(t, weather.SourceName, result.Source)
		})
	}
}

func TestFetcher_EmptyEntriesIsDataError(t *testing.T) {
	now := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	result := newFetcher(t, &stubProvider{}, now).Fetch(context.Background(), displaymode.Today)

	require.True(t, result.Failed())
	assert.Equal(t, source.KindData, result.Kind())
}
