package ics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/calendar/ics"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

const sample = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:Tide pool walk\\, low tide\r\n" +
	"DTSTART;TZID=America/Los_Angeles:20250115T073000\r\n" +
	"DTEND;TZID=America/Los_Angeles:20250115T090000\r\n" +
	"LOCATION:Natural Bridges\\; north end\r\n" +
	"DESCRIPTION:Bring boots.\\nMeet at the\r\n" +
	"  kiosk \\\\ parking lot\r\n" +
	"BEGIN:VALARM\r\n" +
	"DESCRIPTION:Reminder\r\n" +
	"END:VALARM\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20250120\r\n" +
	"DTEND;VALUE=DATE:20250121\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseDate(t *testing.T) {
	tests := []struct {
		token   string
		iso     string
		allDay  bool
		wantErr bool
	}{
		{token: "20250115", iso: "2025-01-15", allDay: true},
		{token: "20250115T143000Z", iso: "2025-01-15T14:30:00Z"},
		{token: "20250115T143000", iso: "2025-01-15T14:30:00"},
		{token: "2025011", wantErr: true},
		{token: "2025-01-15", wantErr: true},
		{token: "20250115T14", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			iso, allDay, err := ics.ParseDate(tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.iso, iso)
			assert.Equal(t, tt.allDay, allDay)
		})
	}
}

func TestUnescape(t *testing.T) {
	tests := map[string]string{
		`plain`:             "plain",
		`a\nb`:              "a\nb",
		`a\Nb`:              "a\nb",
		`one\, two\; three`: "one, two; three",
		`back\\slash`:       `back\slash`,
		`keep\x`:            `keep\x`,
		`trailing\`:         `trailing\`,
	}
	for in, want := range tests {
		assert.Equal(t, want, ics.Unescape(in), in)
	}
}

func TestParse(t *testing.T) {
	events, err := ics.Parse(sample, "Family", "#0b84a5")
	require.NoError(t, err)
	require.Len(t, events, 2)

	walk := events[0]
	assert.Equal(t, "Tide pool walk, low tide", walk.Title)
	assert.Equal(t, "2025-01-15T07:30:00", walk.Start)
	assert.Equal(t, "2025-01-15T09:00:00", walk.End)
	assert.False(t, walk.AllDay)
	assert.Equal(t, "Natural Bridges; north end", walk.Location)
	assert.Equal(t, "Bring boots.\nMeet at the kiosk \\ parking lot", walk.Description)
	assert.Equal(t, "Family", walk.CalendarLabel)
	assert.Equal(t, "#0b84a5", walk.CalendarColor)

	holiday := events[1]
	assert.Equal(t, "Holiday", holiday.Title)
	assert.Equal(t, "2025-01-20", holiday.Start)
	assert.Equal(t, "2025-01-21", holiday.End)
	assert.True(t, holiday.AllDay)
}

func TestParse_IgnoresPropertiesOutsideEvents(t *testing.T) {
	events, err := ics.Parse("BEGIN:VCALENDAR\nSUMMARY:not an event\nEND:VCALENDAR\n", "", "")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestParse_OversizedLine(t *testing.T) {
	doc := "BEGIN:VCALENDAR\n" +
		"BEGIN:VEVENT\nSUMMARY:Big\nDESCRIPTION:" + strings.Repeat("x", 2<<20) + "\nEND:VEVENT\n" +
		"BEGIN:VEVENT\nSUMMARY:After\nDTSTART:20250115\nEND:VEVENT\n" +
		"END:VCALENDAR\n"

	events, err := ics.Parse(doc, "", "")
	assert.Error(t, err)
	assert.Nil(t, events)
}

func newFeed(cfg ics.FeedConfig) *ics.Feed {
	rc := resilience.DefaultClientConfig("test")
	rc.MaxRetries = 0
	cfg.HTTPClient = resilience.NewClient(rc)
	return ics.NewFeed(cfg)
}

func TestFeed_ListEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(sample))
	}))
	defer server.Close()

	events, err := newFeed(ics.FeedConfig{URL: server.URL + "/basic.ics"}).
		ListEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Calendar", events[0].CalendarLabel)
}

func TestFeed_Relay(t *testing.T) {
	gotURL := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL <- r.URL.Query().Get("url")
		_, _ = w.Write([]byte(sample))
	}))
	defer server.Close()

	feedURL := "https://calendar.example.com/feed.ics?token=a&b=c"
	_, err := newFeed(ics.FeedConfig{URL: feedURL, Relay: server.URL + "/relay?url="}).
		ListEvents(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, feedURL, <-gotURL)
}

func TestFeed_Errors(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		_, err := newFeed(ics.FeedConfig{}).ListEvents(context.Background(), time.Time{}, time.Time{})
		assert.ErrorIs(t, err, source.ErrConfig)
	})

	t.Run("not found", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := newFeed(ics.FeedConfig{URL: server.URL}).ListEvents(context.Background(), time.Time{}, time.Time{})
		require.Error(t, err)
		assert.Equal(t, source.KindNetwork, source.Classify(err).Kind)
	})

	t.Run("not a calendar", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("<html>", 3)))
		}))
		defer server.Close()

		_, err := newFeed(ics.FeedConfig{URL: server.URL}).ListEvents(context.Background(), time.Time{}, time.Time{})
		assert.ErrorIs(t, err, source.ErrData)
	})

	t.Run("oversized line", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("BEGIN:VCALENDAR\nBEGIN:VEVENT\nATTACH:" + strings.Repeat("A", 2<<20) + "\nEND:VEVENT\nEND:VCALENDAR\n"))
		}))
		defer server.Close()

		_, err := newFeed(ics.FeedConfig{URL: server.URL}).ListEvents(context.Background(), time.Time{}, time.Time{})
		assert.ErrorIs(t, err, source.ErrData)
	})
}
