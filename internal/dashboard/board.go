// Package dashboard projects source results into the presentation model the
// display renders.
package dashboard

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/source"
	"github.com/tidewatch/tidewatch/internal/sun"
	"github.com/tidewatch/tidewatch/internal/tide"
	"github.com/tidewatch/tidewatch/internal/weather"
)

// Status is a panel's display state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// PanelError is the user-facing error for a failed panel.
type PanelError struct {
	Kind      source.Kind `json:"kind"`
	Message   string      `json:"message"`
	RetryHint string      `json:"retryHint"`
}

// Panel is one region of the display. Data holds the last successful payload
// and survives later refreshes and failures; Stale marks it as not from the
// current cycle.
type Panel[T any] struct {
	Status    Status      `json:"status"`
	Data      *T          `json:"data,omitempty"`
	Source    string      `json:"source,omitempty"`
	Notice    string      `json:"notice,omitempty"`
	Stale     bool        `json:"stale"`
	Error     *PanelError `json:"error,omitempty"`
	UpdatedAt *time.Time  `json:"updatedAt,omitempty"`
}

// View is the presentation model.
type View struct {
	Generation    uint64           `json:"generation"`
	Mode          displaymode.Mode `json:"mode"`
	Date          string           `json:"date"`
	Headline      string           `json:"headline"`
	Greeting      string           `json:"greeting"`
	Encouragement string           `json:"encouragement"`
	RenderedAt    time.Time        `json:"renderedAt"`

	Weather  Panel[weather.Summary]  `json:"weather"`
	Tides    Panel[[]tide.Event]     `json:"tides"`
	Sun      Panel[sun.Times]        `json:"sun"`
	Calendar Panel[[]calendar.Event] `json:"calendar"`
}

// Config holds configuration for a Board.
type Config struct {
	Resolver *displaymode.Resolver

	// Locale selects the message catalog (default "en").
	Locale string

	// Seed drives encouragement selection; zero seeds from the clock.
	Seed int64

	Logger zerolog.Logger
}

// Board holds the rendered state of every panel. It is safe for concurrent use.
type Board struct {
	resolver *displaymode.Resolver
	messages Messages
	logger   zerolog.Logger

	mu            sync.RWMutex
	rng           *rand.Rand
	generation    uint64
	mode          displaymode.Mode
	encouragement string

	weather  Panel[weather.Summary]
	tides    Panel[[]tide.Event]
	sun      Panel[sun.Times]
	calendar Panel[[]calendar.Event]
}

// New creates a Board with every panel loading.
func New(cfg Config) *Board {
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = displaymode.NewResolver(displaymode.Config{})
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = resolver.Now().UnixNano()
	}

	b := &Board{
		resolver: resolver,
		messages: MessagesFor(cfg.Locale),
		logger:   cfg.Logger.With().Str("component", "dashboard").Logger(),
		rng:      rand.New(rand.NewSource(seed)),
		mode:     resolver.Current(),
		weather:  Panel[weather.Summary]{Status: StatusLoading},
		tides:    Panel[[]tide.Event]{Status: StatusLoading},
		sun:      Panel[sun.Times]{Status: StatusLoading},
		calendar: Panel[[]calendar.Event]{Status: StatusLoading},
	}
	b.encouragement = b.pickEncouragement()
	return b
}

// BeginRefresh marks every panel as loading. Panels keep their last
// successful data, flagged stale, until a new result arrives.
func (b *Board) BeginRefresh(generation uint64, mode displaymode.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.generation = generation
	b.mode = mode
	b.encouragement = b.pickEncouragement()
	begin(&b.weather)
	begin(&b.tides)
	begin(&b.sun)
	begin(&b.calendar)

	b.logger.Debug().
		Uint64("generation", generation).
		Str("mode", mode.String()).
		Msg("panels loading")
}

// ApplyWeather renders a weather result.
func (b *Board) ApplyWeather(result source.Result[weather.Summary]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apply(&b.weather, result, b.messages, b.resolver.Now())
}

// ApplyTides renders a tide result.
func (b *Board) ApplyTides(result source.Result[[]tide.Event]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apply(&b.tides, result, b.messages, b.resolver.Now())
}

// ApplySun renders a sun result.
func (b *Board) ApplySun(result source.Result[sun.Times]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apply(&b.sun, result, b.messages, b.resolver.Now())
}

// ApplyCalendar renders a calendar result.
func (b *Board) ApplyCalendar(result source.Result[[]calendar.Event]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apply(&b.calendar, result, b.messages, b.resolver.Now())
}

// View returns the current presentation model.
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.resolver.Now().In(b.resolver.Location())
	target := b.resolver.Target(b.mode)

	label := b.messages.Today
	if b.mode == displaymode.Tomorrow {
		label = b.messages.Tomorrow
	}

	return View{
		Generation:    b.generation,
		Mode:          b.mode,
		Date:          target.Format(calendar.DateLayout),
		Headline:      label + ", " + target.Format("Monday, January 2"),
		Greeting:      b.messages.greeting(now.Hour()),
		Encouragement: b.encouragement,
		RenderedAt:    now,
		Weather:       b.weather,
		Tides:         b.tides,
		Sun:           b.sun,
		Calendar:      b.calendar,
	}
}

func (b *Board) pickEncouragement() string {
	options := b.messages.Encouragements
	if len(options) == 0 {
		return ""
	}
	return options[b.rng.Intn(len(options))]
}

func begin[T any](p *Panel[T]) {
	p.Status = StatusLoading
	p.Stale = p.Data != nil
}

func apply[T any](p *Panel[T], result source.Result[T], m Messages, now time.Time) {
	if result.Failed() {
		p.Status = StatusError
		p.Stale = p.Data != nil
		p.Notice = ""
		p.Error = &PanelError{
			Kind:      result.Kind(),
			Message:   m.errorText(result.Kind()),
			RetryHint: m.RetryHint,
		}
		return
	}

	value := result.Value
	p.Status = StatusReady
	p.Data = &value
	p.Source = result.Source
	p.Stale = false
	p.Error = nil
	p.Notice = m.Reasons[result.Reason]
	p.UpdatedAt = &now
}
