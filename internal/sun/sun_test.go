package sun_test

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
	"github.com/tidewatch/tidewatch/internal/sun"
)

type stubProvider struct {
	instants sun.Instants
	err      error
	date     time.Time
}

func (p *stubProvider) GetSunTimes(_ context.Context, _, _ float64, date time.Time) (sun.Instants, error) {
	p.date = date
	return p.instants, p.err
}

func (p *stubProvider) Name() string { return "stub" }

func newFetcher(p sun.Provider, now time.Time) *sun.Fetcher {
	mock := clock.NewMock()
	mock.Set(now)
	return sun.NewFetcher(sun.FetcherConfig{
		Provider: p,
		Resolver: displaymode.NewResolver(displaymode.Config{
			Clock:         mock,
			Timezone:      "America/Los_Angeles",
			ThresholdHour: 17,
		}),
		Logger: zerolog.Nop(),
	})
}

func TestFetcher_Live(t *testing.T) {
	p := &stubProvider{instants: sun.Instants{
		Sunrise: time.Date(2025, 1, 15, 15, 14, 0, 0, time.UTC),
		Sunset:  time.Date(2025, 1, 16, 1, 12, 0, 0, time.UTC),
	}}
	now := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	result := newFetcher(p, now).Fetch(context.Background(), displaymode.Today)

	require.True(t, result.OK())
	assert.Equal(t, "live", result.Source)
	assert.Equal(t, sun.Times{Sunrise: "7:14 AM", Sunset: "5:12 PM", SourceTag: sun.SourceLive}, result.Value)
}

func TestFetcher_FallbackNeverFails(t *testing.T) {
	now := time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC)

	tests := []struct {
		mode displaymode.Mode
		want sun.Times
	}{
		{displaymode.Today, sun.Times{Sunrise: "6:52 AM", Sunset: "7:18 PM", SourceTag: sun.SourceFallback}},
		{displaymode.Tomorrow, sun.Times{Sunrise: "6:53 AM", Sunset: "7:16 PM", SourceTag: sun.SourceFallback}},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			p := &stubProvider{err: errors.New("dial tcp: i/o timeout")}
			result := newFetcher(p, now).Fetch(context.Background(), tt.mode)

			require.True(t, result.OK())
			assert.Equal(t, "fallback", result.Source)
			assert.Equal(t, tt.want, result.Value)
		})
	}
}

func TestFetcher_TomorrowDate(t *testing.T) {
	p := &stubProvider{}
	now := time.Date(2025, 1, 15, 20, 0, 0, 0, time.UTC)

	newFetcher(p, now).Fetch(context.Background(), displaymode.Tomorrow)

	assert.Equal(t, 16, p.date.Day())
}
