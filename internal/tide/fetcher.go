// Package tide finds the target day's high and low water from station
// predictions, with a synthesized pattern when no station answers.
package tide

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
)

// Provider fetches a station's prediction series for one local day.
type Provider interface {
	GetPredictions(ctx context.Context, stationID string, date time.Time) ([]Prediction, error)
	Name() string
}

// FetcherConfig holds configuration for the tide fetcher.
type FetcherConfig struct {
	Provider Provider
	Resolver *displaymode.Resolver

	// Stations are tried in order (default: DefaultStations).
	Stations []Station

	Logger zerolog.Logger
}

// Fetcher walks the candidate stations until one yields an extremum.
type Fetcher struct {
	provider Provider
	resolver *displaymode.Resolver
	stations []Station
	logger   zerolog.Logger
}

// NewFetcher creates a new tide fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	stations := cfg.Stations
	if len(stations) == 0 {
		stations = DefaultStations
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = displaymode.NewResolver(displaymode.Config{ThresholdHour: displaymode.DefaultThresholdHour})
	}
	return &Fetcher{
		provider: cfg.Provider,
		resolver: resolver,
		stations: stations,
		logger:   cfg.Logger.With().Str("source", "tides").Logger(),
	}
}

// Fetch implements source.Fetcher. It never fails: when every station errors
// or yields no extremum the semidiurnal fallback is returned instead.
func (f *Fetcher) Fetch(ctx context.Context, mode displaymode.Mode) source.Result[[]Event] {
	target := f.resolver.Target(mode)

	for _, st := range f.stations {
		if ctx.Err() != nil {
			break
		}

		series, err := f.provider.GetPredictions(ctx, st.ID, target)
		if err != nil {
			f.logger.Warn().Err(err).Str("station", st.ID).Str("station_name", st.Name).Msg("tide station failed")
			continue
		}

		events := DetectExtrema(series)
		if len(events) == 0 {
			f.logger.Warn().Str("station", st.ID).Int("samples", len(series)).Msg("tide station yielded no extrema")
			continue
		}

		return source.Ok(events, f.provider.Name()+":"+st.ID)
	}

	f.logger.Warn().Int("stations", len(f.stations)).Msg("all tide stations exhausted, using estimate")
	return source.Ok(Fallback(target, f.resolver.Location()), FallbackSource)
}
