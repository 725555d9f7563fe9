package caldav_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewatch/tidewatch/internal/calendar/caldav"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

const multistatus = `<?xml version="1.0" encoding="UTF-8"?>
<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav">
  <d:response>
    <d:href>/caldav/v2/me%40gmail.com/events/abc.ics</d:href>
    <d:propstat>
      <d:prop>
        <d:getetag>"1"</d:getetag>
        <cal:calendar-data>BEGIN:VCALENDAR
BEGIN:VEVENT
SUMMARY:Surf check
DTSTART:20250115T150000Z
DTEND:20250115T160000Z
END:VEVENT
END:VCALENDAR
</cal:calendar-data>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/caldav/v2/me%40gmail.com/events/gone.ics</d:href>
    <d:propstat>
      <d:prop><cal:calendar-data>BEGIN:VCALENDAR
BEGIN:VEVENT
SUMMARY:Should be ignored
DTSTART:20250115
END:VEVENT
END:VCALENDAR</cal:calendar-data></d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`

func oversizedMultistatus() string {
	return `<d:multistatus xmlns:d="DAV:" xmlns:cal="urn:ietf:params:xml:ns:caldav"><d:response>` +
		`<d:href>/events/big.ics</d:href><d:propstat><d:prop><cal:calendar-data>BEGIN:VCALENDAR
BEGIN:VEVENT
DESCRIPTION:` + strings.Repeat("x", 2<<20) + `
END:VEVENT
END:VCALENDAR</cal:calendar-data></d:prop><d:status>HTTP/1.1 200 OK</d:status></d:propstat>` +
		`</d:response></d:multistatus>`
}

func testHTTPClient() *resilience.Client {
	cfg := resilience.DefaultClientConfig("test")
	cfg.MaxRetries = 0
	return resilience.NewClient(cfg)
}

func TestServerFor(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"me@gmail.com", "https://apidata.googleusercontent.com/caldav/v2/me@gmail.com/events"},
		{"Me@GoogleMail.com", "https://apidata.googleusercontent.com/caldav/v2/Me@GoogleMail.com/events"},
		{"ops@harbor.example", "https://www.google.com/calendar/dav/ops@harbor.example/events"},
		// Consumer accounts on other TLDs are routed to the Workspace endpoint.
		{"me@gmail.co.uk", "https://www.google.com/calendar/dav/me@gmail.co.uk/events"},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.want, caldav.ServerFor(tt.email))
		})
	}
}

func TestClient_ListEvents(t *testing.T) {
	type captured struct {
		method, target, depth, user, pass, body string
	}
	got := make(chan captured, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		user, pass, _ := r.BasicAuth()
		got <- captured{r.Method, r.Header.Get(caldav.TargetHeader), r.Header.Get("Depth"), user, pass, string(body)}

		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		_, _ = w.Write([]byte(multistatus))
	}))
	defer server.Close()

	client := caldav.NewClient(caldav.ClientConfig{
		ProxyURL:    server.URL + "/api/caldav",
		Username:    "me@gmail.com",
		AppPassword: "abcd efgh ijkl mnop",
		Color:       "#f95d6a",
		HTTPClient:  testHTTPClient(),
	})

	from := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	events, err := client.ListEvents(context.Background(), from, from.Add(24*time.Hour))
	require.NoError(t, err)

	req := <-got
	assert.Equal(t, "REPORT", req.method)
	assert.Equal(t, caldav.ServerFor("me@gmail.com"), req.target)
	assert.Equal(t, "1", req.depth)
	assert.Equal(t, "me@gmail.com", req.user)
	assert.Equal(t, "abcd efgh ijkl mnop", req.pass)
	assert.Contains(t, req.body, `start="20250115T080000Z"`)
	assert.Contains(t, req.body, `end="20250116T080000Z"`)

	require.Len(t, events, 1)
	assert.Equal(t, "Surf check", events[0].Title)
	assert.Equal(t, "2025-01-15T15:00:00Z", events[0].Start)
	assert.Equal(t, "me@gmail.com", events[0].CalendarLabel)
	assert.Equal(t, "#f95d6a", events[0].CalendarColor)
}

func TestClient_ListEvents_Errors(t *testing.T) {
	t.Run("missing credentials", func(t *testing.T) {
		client := caldav.NewClient(caldav.ClientConfig{Username: "me@gmail.com", HTTPClient: testHTTPClient()})
		_, err := client.ListEvents(context.Background(), time.Now(), time.Now())
		assert.ErrorIs(t, err, source.ErrConfig)
	})

	tests := []struct {
		name   string
		status int
		body   string
		kind   source.Kind
	}{
		{"rejected password", http.StatusUnauthorized, "", source.KindAuth},
		{"proxy down", http.StatusBadGateway, "", source.KindNetwork},
		{"not xml", http.StatusMultiStatus, "<html", source.KindData},
		{"oversized calendar-data", http.StatusMultiStatus, oversizedMultistatus(), source.KindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := caldav.NewClient(caldav.ClientConfig{
				ProxyURL:    server.URL,
				Username:    "ops@harbor.example",
				AppPassword: "secret",
				HTTPClient:  testHTTPClient(),
			})
			_, err := client.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
			require.Error(t, err)
			assert.Equal(t, tt.kind, source.Classify(err).Kind)
		})
	}
}
