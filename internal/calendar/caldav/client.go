// Package caldav queries a CalDAV calendar collection through a
// same-origin pass-through proxy.
package caldav

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/calendar/ics"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

const (
	// ProviderName identifies this backend.
	ProviderName = "caldav"

	// TargetHeader carries the upstream collection URL to the proxy.
	TargetHeader = "X-CalDAV-Target"

	consumerServer  = "https://apidata.googleusercontent.com/caldav/v2/%s/events"
	workspaceServer = "https://www.google.com/calendar/dav/%s/events"

	timeRangeLayout = "20060102T150405Z"
	maxBodyBytes    = 8 << 20
)

// ServerFor picks the CalDAV collection URL for an account. Addresses at
// gmail.com or googlemail.com use the consumer endpoint; every other domain
// is assumed to be a Workspace account.
func ServerFor(email string) string {
	_, domain, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	escaped := url.PathEscape(strings.TrimSpace(email))
	switch domain {
	case "gmail.com", "googlemail.com":
		return fmt.Sprintf(consumerServer, escaped)
	default:
		return fmt.Sprintf(workspaceServer, escaped)
	}
}

// ClientConfig holds configuration for the CalDAV client.
type ClientConfig struct {
	// ProxyURL receives the REPORT; the upstream collection goes in
	// TargetHeader. Empty sends the REPORT straight to the collection.
	ProxyURL string

	// Username is the account email (required).
	Username string

	// AppPassword is the account's app-specific password (required).
	AppPassword string

	// ServerURL overrides the collection chosen by ServerFor.
	ServerURL string

	Label string
	Color string

	HTTPClient resilience.Doer
	Logger     zerolog.Logger
}

// Client issues calendar-query REPORTs.
type Client struct {
	proxyURL   string
	username   string
	password   string
	serverURL  string
	label      string
	color      string
	httpClient resilience.Doer
	logger     zerolog.Logger
}

// NewClient creates a CalDAV client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	server := cfg.ServerURL
	if server == "" && cfg.Username != "" {
		server = ServerFor(cfg.Username)
	}
	label := cfg.Label
	if label == "" {
		label = cfg.Username
	}
	return &Client{
		proxyURL:   cfg.ProxyURL,
		username:   cfg.Username,
		password:   cfg.AppPassword,
		serverURL:  server,
		label:      label,
		color:      cfg.Color,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the backend name.
func (c *Client) Name() string {
	return ProviderName
}

// ListEvents runs a VEVENT time-range calendar-query for [from, to).
func (c *Client) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	if c.username == "" || c.password == "" {
		return nil, source.ConfigError("caldav username and app password are required")
	}

	endpoint := c.serverURL
	if c.proxyURL != "" {
		endpoint = c.proxyURL
	}

	req, err := http.NewRequestWithContext(ctx, "REPORT", endpoint, strings.NewReader(calendarQuery(from, to)))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", "1")
	if c.proxyURL != "" {
		req.Header.Set(TargetHeader, c.serverURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &resilience.StatusError{Provider: ProviderName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var ms multiStatus
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&ms); err != nil {
		return nil, &resilience.DecodeError{Err: err}
	}

	var events []calendar.Event
	for _, r := range ms.Responses {
		for _, ps := range r.Propstat {
			if ps.Prop.CalendarData == "" || !statusOK(ps.Status) {
				continue
			}
			parsed, err := ics.Parse(ps.Prop.CalendarData, c.label, c.color)
			if err != nil {
				return nil, source.DataError("parsing calendar-data for %s: %w", r.Href, err)
			}
			events = append(events, parsed...)
		}
	}

	c.logger.Debug().Int("responses", len(ms.Responses)).Int("events", len(events)).Msg("caldav report decoded")
	return events, nil
}

func calendarQuery(from, to time.Time) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<c:calendar-query xmlns:d="DAV:" xmlns:c="urn:ietf:params:xml:ns:caldav">
  <d:prop>
    <d:getetag/>
    <c:calendar-data/>
  </d:prop>
  <c:filter>
    <c:comp-filter name="VCALENDAR">
      <c:comp-filter name="VEVENT">
        <c:time-range start="` + from.UTC().Format(timeRangeLayout) + `" end="` + to.UTC().Format(timeRangeLayout) + `"/>
      </c:comp-filter>
    </c:comp-filter>
  </c:filter>
</c:calendar-query>`
}

// statusOK accepts a missing status or an HTTP/1.x 2xx status line.
func statusOK(status string) bool {
	status = strings.TrimSpace(status)
	if status == "" {
		return true
	}
	fields := strings.Fields(status)
	return len(fields) >= 2 && strings.HasPrefix(fields[1], "2")
}

// WebDAV multistatus response structures.

type multiStatus struct {
	XMLName   xml.Name `xml:"DAV: multistatus"`
	Responses []struct {
		Href     string `xml:"DAV: href"`
		Propstat []struct {
			Prop struct {
				CalendarData string `xml:"urn:ietf:params:xml:ns:caldav calendar-data"`
			} `xml:"DAV: prop"`
			Status string `xml:"DAV: status"`
		} `xml:"DAV: propstat"`
	} `xml:"DAV: response"`
}
