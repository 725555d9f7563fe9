package weather

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
)

// SourceName labels weather results that carry no provider tag.
const SourceName = "weather"

const (
	metersPerMile = 1609.34
	mmPerInch     = 25.4
	clockLayout   = "3:04 PM"
	dateLayout    = "2006-01-02"
)

// Provider defines the interface for forecast providers.
type Provider interface {
	// GetForecast returns the provider's forecast entries in chronological order.
	GetForecast(ctx context.Context, lat, lon float64) ([]Entry, error)

	// Name returns the provider name for logging.
	Name() string
}

// FetcherConfig holds configuration for the weather fetcher.
type FetcherConfig struct {
	Provider  Provider
	Resolver  *displaymode.Resolver
	Latitude  float64
	Longitude float64
	Logger    zerolog.Logger
}

// Fetcher summarizes the provider forecast for the display mode's target day.
type Fetcher struct {
	provider Provider
	resolver *displaymode.Resolver
	lat      float64
	lon      float64
	logger   zerolog.Logger
}

// NewFetcher creates a new weather fetcher.
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
		logger:   cfg.Logger.With().Str("source", SourceName).Logger(),
	}
}

// Fetch implements source.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, mode displaymode.Mode) source.Result[Summary] {
	entries, err := f.provider.GetForecast(ctx, f.lat, f.lon)
	if err != nil {
		f.logger.Error().Err(err).Str("provider", f.provider.Name()).Msg("forecast fetch failed")
		return source.Fail[Summary](err, SourceName)
	}
	if len(entries) == 0 {
		return source.Fail[Summary](source.DataError("%v", ErrNoEntries), SourceName)
	}

	summary := Summarize(entries, f.resolver.Target(mode), f.resolver.Location())
	f.logger.Debug().
		Str("mode", mode.String()).
		Str("tag", string(summary.SourceTag)).
		Int("hours", len(summary.Hourly)).
		Msg("weather summarized")
	return source.Ok(summary, string(summary.SourceTag))
}

// Summarize reduces entries to the target day's summary. Entries match when
// their local date in loc equals target's date in loc. entries must be non-empty.
func Summarize(entries []Entry, target time.Time, loc *time.Location) Summary {
	day := target.In(loc).Format(dateLayout)

	var matches []Entry
	for _, e := range entries {
		if e.Time.In(loc).Format(dateLayout) == day {
			matches = append(matches, e)
		}
	}

	if len(matches) == 0 {
		s := fromEntry(entries[0])
		s.TemperatureF = int(math.Round(entries[0].TemperatureF))
		s.Hourly = []Hour{}
		s.SourceTag = SourceLiveCurrent
		return s
	}

	var total float64
	hourly := make([]Hour, 0, len(matches))
	for _, m := range matches {
		total += m.TemperatureF
		hourly = append(hourly, Hour{
			Time:            m.Time.In(loc).Format(clockLayout),
			TemperatureF:    int(math.Round(m.TemperatureF)),
			Description:     m.Description,
			IconCode:        m.IconCode,
			PrecipitationIn: math.Round(m.PrecipitationMM/mmPerInch*100) / 100,
		})
	}

	s := fromEntry(matches[0])
	s.TemperatureF = int(math.Round(total / float64(len(matches))))
	s.Hourly = hourly
	s.SourceTag = SourceLiveForecast
	return s
}

func fromEntry(e Entry) Summary {
	return Summary{
		Description:  e.Description,
		HumidityPct:  e.Humidity,
		Pressure:     e.Pressure,
		WindSpeedMph: e.WindSpeedMph,
		VisibilityMi: int(math.Round(e.Visibility / metersPerMile)),
		IconCode:     e.IconCode,
	}
}
