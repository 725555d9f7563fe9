// Package sun provides sunrise and sunset times for the target day. It always
// yields a displayable value.
package sun

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
)

// SourceTag records where the times came from.
type SourceTag string

const (
	SourceLive     SourceTag = "live"
	SourceFallback SourceTag = "fallback"
)

// Times is the sun panel payload.
type Times struct {
	Sunrise   string    `json:"sunriseLocal"`
	Sunset    string    `json:"sunsetLocal"`
	SourceTag SourceTag `json:"sourceTag"`
}

// Approximate times shown when the provider cannot be reached.
var (
	FallbackToday    = Times{Sunrise: "6:52 AM", Sunset: "7:18 PM", SourceTag: SourceFallback}
	FallbackTomorrow = Times{Sunrise: "6:53 AM", Sunset: "7:16 PM", SourceTag: SourceFallback}
)

// Instants are the provider's sunrise and sunset for one day.
type Instants struct {
	Sunrise time.Time
	Sunset  time.Time
}

// Provider looks up sunrise and sunset for a location and local date.
type Provider interface {
	GetSunTimes(ctx context.Context, lat, lon float64, date time.Time) (Instants, error)
	Name() string
}

// FetcherConfig holds configuration for the sun fetcher.
type FetcherConfig struct {
	Provider  Provider
	Resolver  *displaymode.Resolver
	Latitude  float64
	Longitude float64
	Logger    zerolog.Logger
}

// Fetcher resolves sun times for the display mode's target day.
type Fetcher struct {
	provider Provider
	resolver *displaymode.Resolver
	lat      float64
	lon      float64
	logger   zerolog.Logger
}

// NewFetcher creates a new sun fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = displaymode.NewResolver(displaymode.Config{ThresholdHour: displaymode.DefaultThresholdHour})
	}
	return &Fetcher{
		provider: cfg.Provider,
		resolver: resolver,
		lat:      cfg.Latitude,
		lon:      cfg.Longitude,
		logger:   cfg.Logger.With().Str("source", "sun").Logger(),
	}
}

// Fetch implements source.Fetcher. Provider failures are logged and masked
// with the fallback pair for mode.
func (f *Fetcher) Fetch(ctx context.Context, mode displaymode.Mode) source.Result[Times] {
	loc := f.resolver.Location()

	instants, err := f.provider.GetSunTimes(ctx, f.lat, f.lon, f.resolver.Target(mode))
	if err != nil {
		f.logger.Warn().Err(err).Str("mode", mode.String()).Msg("sun times unavailable, using fallback")
		fallback := Fallback(mode)
		return source.Ok(fallback, string(fallback.SourceTag))
	}

	return source.Ok(Times{
		Sunrise:   instants.Sunrise.In(loc).Format("3:04 PM"),
		Sunset:    instants.Sunset.In(loc).Format("3:04 PM"),
		SourceTag: SourceLive,
	}, string(SourceLive))
}

// Fallback returns the approximate pair for mode.
func Fallback(mode displaymode.Mode) Times {
	if mode == displaymode.Tomorrow {
		return FallbackTomorrow
	}
	return FallbackToday
}
