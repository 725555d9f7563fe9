package ics

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

// ProviderName identifies this backend.
const ProviderName = "ics"

// maxFeedBytes bounds how much of a feed is read.
const maxFeedBytes = 8 << 20

// FeedConfig holds configuration for a public ICS feed.
type FeedConfig struct {
	// URL is the feed address (required).
	URL string

	// Relay, when set, is prefixed to the escaped feed URL
	// ("https://relay.example/?url=").
	Relay string

	Label string
	Color string

	HTTPClient resilience.Doer
	Logger     zerolog.Logger
}

// Feed fetches and parses a public ICS feed.
type Feed struct {
	url        string
	relay      string
	label      string
	color      string
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewFeed creates a feed backend.
func NewFeed(cfg FeedConfig) *Feed {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	label := cfg.Label
	if label == "" {
		label = "Calendar"
	}
	return &Feed{
		url:        cfg.URL,
		relay:      cfg.Relay,
		label:      label,
		color:      cfg.Color,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the backend name.
func (f *Feed) Name() string {
	return ProviderName
}

// ListEvents downloads the feed. The range is not sent upstream; the
// calendar fetcher narrows the events to the target day.
func (f *Feed) ListEvents(ctx context.Context, _, _ time.Time) ([]calendar.Event, error) {
	if f.url == "" {
		return nil, source.ConfigError("ics feed url is not set")
	}

	target := f.url
	if f.relay != "" {
		target = f.relay + url.QueryEscape(f.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &resilience.StatusError{Provider: ProviderName, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("reading feed: %w", err)
	}
	if !strings.Contains(string(body), "BEGIN:VCALENDAR") {
		return nil, source.DataError("ics feed is not an iCalendar document")
	}

	events, err := Parse(string(body), f.label, f.color)
	if err != nil {
		return nil, source.DataError("parsing ics feed: %w", err)
	}
	f.logger.Debug().Int("events", len(events)).Msg("ics feed parsed")
	return events, nil
}
