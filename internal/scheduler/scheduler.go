// Package scheduler drives the dashboard refresh cycle: it fans out the four
// source fetches, applies results that belong to the current generation, and
// retries with backoff when every source fails.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/sun"
	"github.com/tidewatch/tidewatch/internal/tide"
	"github.com/tidewatch/tidewatch/internal/weather"
)

// Trigger names what started a refresh cycle.
type Trigger string

const (
	TriggerStartup     Trigger = "startup"
	TriggerPeriodic    Trigger = "periodic"
	TriggerModeChange  Trigger = "mode_change"
	TriggerVisibility  Trigger = "visibility"
	TriggerManual      Trigger = "manual"
	TriggerDayBoundary Trigger = "day_boundary"
	TriggerRemote      Trigger = "remote"
	TriggerRetry       Trigger = "retry"
)

// State is the scheduler's lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateRetrying State = "retrying"
)

// Source names used in logs and metrics.
const (
	SourceWeather  = "weather"
	SourceTides    = "tides"
	SourceSun      = "sun"
	SourceCalendar = "calendar"
)

const sourceCount = 4

// Defaults.
const (
	DefaultRefreshInterval   = 30 * time.Minute
	DefaultModeCheckInterval = 60 * time.Second
	DefaultRetryBase         = 5 * time.Second
	DefaultMaxRetries        = 3
)

var (
	// ErrMissingFetcher is returned by New when a source fetcher is nil.
	ErrMissingFetcher = errors.New("scheduler: missing fetcher")

	// ErrMissingSink is returned by New when no sink is configured.
	ErrMissingSink = errors.New("scheduler: missing sink")
)

// Sink receives results as they arrive. Calls for one generation always
// follow that generation's BeginRefresh; calls are never concurrent.
type Sink interface {
	BeginRefresh(generation uint64, mode displaymode.Mode)
	ApplyWeather(result source.Result[weather.Summary])
	ApplyTides(result source.Result[[]tide.Event])
	ApplySun(result source.Result[sun.Times])
	ApplyCalendar(result source.Result[[]calendar.Event])
}

// Snapshot is a read-only copy of the aggregate state for the current
// generation. A nil result is still in flight.
type Snapshot struct {
	Generation    uint64           `json:"generation"`
	CycleID       string           `json:"cycleId"`
	Trigger       Trigger          `json:"trigger"`
	Mode          displaymode.Mode `json:"mode"`
	State         State            `json:"state"`
	Pending       int              `json:"pending"`
	RetryAttempt  int              `json:"retryAttempt"`
	FetchedAt     time.Time        `json:"fetchedAt"`
	LastSuccessAt *time.Time       `json:"lastSuccessAt,omitempty"`

	Weather  *source.Result[weather.Summary]  `json:"weather"`
	Tides    *source.Result[[]tide.Event]     `json:"tides"`
	Sun      *source.Result[sun.Times]        `json:"sun"`
	Calendar *source.Result[[]calendar.Event] `json:"calendar"`
}

// Config holds configuration for a Scheduler.
type Config struct {
	Weather  source.Fetcher[weather.Summary]
	Tides    source.Fetcher[[]tide.Event]
	Sun      source.Fetcher[sun.Times]
	Calendar source.Fetcher[[]calendar.Event]

	Resolver *displaymode.Resolver
	Clock    clock.Clock
	Sink     Sink

	RefreshInterval   time.Duration
	ModeCheckInterval time.Duration
	RetryBase         time.Duration
	MaxRetries        int

	Metrics *Metrics
	Logger  zerolog.Logger
}

// Scheduler coordinates refresh cycles.
type Scheduler struct {
	cfg    Config
	clock  clock.Clock
	logger zerolog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
	cycleStart time.Time
	failed     int
	visible    bool
	snapshot   Snapshot

	retryTimer   *clock.Timer
	retrySeq     uint64
	retryAttempt int

	stop    chan struct{}
	stopped sync.WaitGroup
	running bool
}

// New creates a Scheduler. It does not start any timers.
func New(cfg Config) (*Scheduler, error) {
	switch {
	case cfg.Weather == nil:
		return nil, fmt.Errorf("%w: weather", ErrMissingFetcher)
	case cfg.Tides == nil:
		return nil, fmt.Errorf("%w: tides", ErrMissingFetcher)
	case cfg.Sun == nil:
		return nil, fmt.Errorf("%w: sun", ErrMissingFetcher)
	case cfg.Calendar == nil:
		return nil, fmt.Errorf("%w: calendar", ErrMissingFetcher)
	case cfg.Sink == nil:
		return nil, ErrMissingSink
	}

	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = displaymode.NewResolver(displaymode.Config{Clock: cfg.Clock})
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.ModeCheckInterval <= 0 {
		cfg.ModeCheckInterval = DefaultModeCheckInterval
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	done := make(chan struct{})
	close(done)

	return &Scheduler{
		cfg:     cfg,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With().Str("component", "scheduler").Logger(),
		done:    done,
		visible: true,
		snapshot: Snapshot{
			Mode:  cfg.Resolver.Current(),
			State: StateIdle,
		},
	}, nil
}

// Start runs the startup refresh and begins the periodic and mode-check
// timers. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	refresh := s.clock.Ticker(s.cfg.RefreshInterval)
	modeCheck := s.clock.Ticker(s.cfg.ModeCheckInterval)
	s.refreshLocked(TriggerStartup)
	s.mu.Unlock()

	s.logger.Info().
		Dur("refresh_interval", s.cfg.RefreshInterval).
		Dur("mode_check_interval", s.cfg.ModeCheckInterval).
		Msg("scheduler started")

	s.stopped.Add(1)
	go func() {
		defer s.stopped.Done()
		defer refresh.Stop()
		defer modeCheck.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-refresh.C:
				s.RefreshAll(TriggerPeriodic)
			case <-modeCheck.C:
				s.CheckMode()
			}
		}
	}()
}

// Stop halts the timers, cancels in-flight fetches and any pending retry.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.cancelRetryLocked()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	s.stopped.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// RefreshAll starts a new generation, superseding any in-flight one, and
// returns its generation number. In-flight fetches are cancelled but not
// awaited.
func (s *Scheduler) RefreshAll(trigger Trigger) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(trigger)
}

// CheckMode refreshes when the display mode has changed since the last
// cycle. It reports whether a refresh was started.
func (s *Scheduler) CheckMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkModeLocked()
}

// Manual handles a user refresh: a mode change refresh if the mode moved,
// otherwise a manual refresh.
func (s *Scheduler) Manual() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkModeLocked() {
		return s.generation
	}
	return s.refreshLocked(TriggerManual)
}

// SetVisible records display visibility. Becoming visible after being
// hidden starts a refresh; it reports whether one was started.
func (s *Scheduler) SetVisible(visible bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasVisible := s.visible
	s.visible = visible
	if visible && !wasVisible {
		s.refreshLocked(TriggerVisibility)
		return true
	}
	return false
}

// Visible reports the last recorded visibility.
func (s *Scheduler) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Snapshot returns a copy of the aggregate state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.State
}

// Metrics returns the scheduler metrics, which may be nil.
func (s *Scheduler) Metrics() *Metrics {
	return s.cfg.Metrics
}

// WaitSettled blocks until the current generation has all four results or
// ctx is done. A superseding generation is waited for in turn.
func (s *Scheduler) WaitSettled(ctx context.Context) error {
	for {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		current := done == s.done
		s.mu.Unlock()
		if current {
			return nil
		}
	}
}

func (s *Scheduler) checkModeLocked() bool {
	mode := s.cfg.Resolver.Current()
	if mode == s.snapshot.Mode {
		return false
	}
	s.logger.Info().
		Str("from", s.snapshot.Mode.String()).
		Str("to", mode.String()).
		Msg("display mode changed")
	s.refreshLocked(TriggerModeChange)
	return true
}

func (s *Scheduler) refreshLocked(trigger Trigger) uint64 {
	if trigger != TriggerRetry {
		s.cancelRetryLocked()
		s.retryAttempt = 0
	}

	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}

	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.failed = 0
	s.cycleStart = s.clock.Now()

	mode := s.cfg.Resolver.Current()
	s.snapshot = Snapshot{
		Generation:    gen,
		CycleID:       uuid.NewString(),
		Trigger:       trigger,
		Mode:          mode,
		State:         StateFetching,
		Pending:       sourceCount,
		RetryAttempt:  s.retryAttempt,
		LastSuccessAt: s.snapshot.LastSuccessAt,
	}

	s.cfg.Sink.BeginRefresh(gen, mode)
	s.cfg.Metrics.refreshStarted(ctx, trigger)

	s.logger.Info().
		Uint64("generation", gen).
		Str("cycle_id", s.snapshot.CycleID).
		Str("trigger", string(trigger)).
		Str("mode", mode.String()).
		Msg("starting refresh")

	go run(s, ctx, gen, mode, SourceWeather, s.cfg.Weather, func(r source.Result[weather.Summary]) {
		s.snapshot.Weather = &r
		s.cfg.Sink.ApplyWeather(r)
	})
	go run(s, ctx, gen, mode, SourceTides, s.cfg.Tides, func(r source.Result[[]tide.Event]) {
		s.snapshot.Tides = &r
		s.cfg.Sink.ApplyTides(r)
	})
	go run(s, ctx, gen, mode, SourceSun, s.cfg.Sun, func(r source.Result[sun.Times]) {
		s.snapshot.Sun = &r
		s.cfg.Sink.ApplySun(r)
	})
	go run(s, ctx, gen, mode, SourceCalendar, s.cfg.Calendar, func(r source.Result[[]calendar.Event]) {
		s.snapshot.Calendar = &r
		s.cfg.Sink.ApplyCalendar(r)
	})

	return gen
}

func run[T any](s *Scheduler, ctx context.Context, gen uint64, mode displaymode.Mode, name string, f source.Fetcher[T], apply func(source.Result[T])) {
	start := s.clock.Now()
	result := safeFetch(ctx, mode, name, f)
	s.settle(ctx, gen, name, result.Err, s.clock.Since(start), func() { apply(result) })
}

func safeFetch[T any](ctx context.Context, mode displaymode.Mode, name string, f source.Fetcher[T]) (result source.Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = source.Fail[T](source.DataError("%s fetcher panicked: %v", name, r), name)
		}
	}()
	return f.Fetch(ctx, mode)
}

// settle applies one result if gen is still current.
func (s *Scheduler) settle(ctx context.Context, gen uint64, name string, fetchErr *source.Error, d time.Duration, apply func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.cfg.Metrics.resultDiscarded()
		s.logger.Debug().
			Uint64("generation", gen).
			Uint64("current", s.generation).
			Str("source", name).
			Msg("discarding superseded result")
		return
	}

	apply()
	s.cfg.Metrics.resultApplied(ctx, name, fetchErr != nil, d)
	s.snapshot.Pending--
	if fetchErr != nil {
		s.failed++
		s.logger.Warn().
			Err(fetchErr).
			Uint64("generation", gen).
			Str("source", name).
			Str("kind", string(fetchErr.Kind)).
			Msg("source fetch failed")
	}

	if s.snapshot.Pending == 0 {
		s.finishLocked(gen)
	}
}

func (s *Scheduler) finishLocked(gen uint64) {
	now := s.clock.Now()
	s.snapshot.FetchedAt = now
	elapsed := now.Sub(s.cycleStart)
	s.cfg.Metrics.cycleFinished(elapsed)
	close(s.done)

	if s.failed < sourceCount {
		s.snapshot.LastSuccessAt = &now
		s.snapshot.State = StateIdle
		s.retryAttempt = 0
		s.snapshot.RetryAttempt = 0
		s.logger.Info().
			Uint64("generation", gen).
			Int("failed", s.failed).
			Dur("duration", elapsed).
			Msg("refresh completed")
		return
	}

	if s.retryAttempt >= s.cfg.MaxRetries {
		s.snapshot.State = StateIdle
		s.logger.Warn().
			Uint64("generation", gen).
			Int("attempts", s.retryAttempt).
			Msg("all sources failed, giving up until next trigger")
		return
	}

	delay := s.cfg.RetryBase << s.retryAttempt
	s.retryAttempt++
	s.snapshot.State = StateRetrying
	s.snapshot.RetryAttempt = s.retryAttempt
	s.cfg.Metrics.retry(context.Background(), s.retryAttempt)

	s.retrySeq++
	seq := s.retrySeq
	s.retryTimer = s.clock.AfterFunc(delay, func() { s.fireRetry(seq) })

	s.logger.Warn().
		Uint64("generation", gen).
		Int("attempt", s.retryAttempt).
		Dur("delay", delay).
		Msg("all sources failed, scheduling retry")
}

func (s *Scheduler) fireRetry(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.retrySeq {
		return
	}
	s.retryTimer = nil
	s.refreshLocked(TriggerRetry)
}

func (s *Scheduler) cancelRetryLocked() {
	s.retrySeq++
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}
