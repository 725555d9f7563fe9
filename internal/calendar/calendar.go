package calendar

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
)

// SourceName labels calendar results.
const SourceName = "calendar"

// Backend lists events overlapping a time range.
type Backend interface {
	ListEvents(ctx context.Context, from, to time.Time) ([]Event, error)
	Name() string
}

// FetcherConfig holds configuration for the calendar fetcher.
type FetcherConfig struct {
	// Backend is the configured calendar variant. Nil means no calendar is
	// configured and every fetch is an empty success.
	Backend Backend

	Resolver *displaymode.Resolver
	Logger   zerolog.Logger
}

// Fetcher lists the target day's events from one backend.
type Fetcher struct {
	backend  Backend
	resolver *displaymode.Resolver
	logger   zerolog.Logger
}

// NewFetcher creates a new calendar fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = displaymode.NewResolver(displaymode.Config{ThresholdHour: displaymode.DefaultThresholdHour})
	}
	return &Fetcher{
		backend:  cfg.Backend,
		resolver: resolver,
		logger:   cfg.Logger.With().Str("source", SourceName).Logger(),
	}
}

// Fetch implements source.Fetcher. "Nothing to show" states are successes
// carrying a reason code; only failed backend calls are failures.
func (f *Fetcher) Fetch(ctx context.Context, mode displaymode.Mode) source.Result[[]Event] {
	if f.backend == nil {
		return source.Empty[[]Event](source.ReasonNotConfigured, SourceName)
	}

	loc := f.resolver.Location()
	day := f.resolver.Target(mode)
	from, to := dayRange(day, loc)

	events, err := f.backend.ListEvents(ctx, from, to)
	if errors.Is(err, ErrNoAccounts) {
		return source.Empty[[]Event](source.ReasonNoAccountsConnected, f.backend.Name())
	}
	if err != nil {
		f.logger.Error().Err(err).Str("backend", f.backend.Name()).Msg("calendar fetch failed")
		return source.Fail[[]Event](err, f.backend.Name())
	}

	return source.Ok(ForDay(events, day, loc, f.logger), f.backend.Name())
}

// ForDay keeps the events that overlap day's local calendar day and sorts
// them all-day first, then by start. Events with unparseable dates are
// dropped.
func ForDay(events []Event, day time.Time, loc *time.Location, logger zerolog.Logger) []Event {
	from, to := dayRange(day, loc)

	type bounded struct {
		event Event
		start time.Time
	}
	kept := make([]bounded, 0, len(events))
	for _, e := range events {
		start, end, err := e.Bounds(loc)
		if err != nil {
			logger.Debug().Err(err).Str("title", e.Title).Msg("skipping event with bad dates")
			continue
		}
		if overlaps(start, end, from, to) {
			kept = append(kept, bounded{event: e, start: start})
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].event.AllDay != kept[j].event.AllDay {
			return kept[i].event.AllDay
		}
		return kept[i].start.Before(kept[j].start)
	})

	out := make([]Event, len(kept))
	for i, b := range kept {
		out[i] = b.event
	}
	return out
}

func dayRange(day time.Time, loc *time.Location) (time.Time, time.Time) {
	local := day.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// overlaps reports whether [start,end) meets [from,to). Zero-length events
// count when they start inside the range.
func overlaps(start, end, from, to time.Time) bool {
	if !end.After(start) {
		return !start.Before(from) && start.Before(to)
	}
	return start.Before(to) && end.After(from)
}
