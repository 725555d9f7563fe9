// Package google reads events from Google Calendar for every account in the
// token store and runs the interactive loopback sign-in.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/calendar/tokenstore"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/source"
)

// ProviderName identifies this backend.
const ProviderName = "google"

// OAuthConfig builds the read-only Calendar OAuth client configuration.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}
}

// BackendConfig holds configuration for the Google Calendar backend.
type BackendConfig struct {
	// OAuth is the client configuration used to refresh tokens (required).
	OAuth *oauth2.Config

	// Store holds the connected accounts (required).
	Store tokenstore.Store

	// APIEndpoint overrides the Calendar API base URL.
	APIEndpoint string

	// HTTPClient is the base client for token refresh and API calls.
	HTTPClient *http.Client

	// CalendarID is listed for each account (default: "primary").
	CalendarID string

	Logger zerolog.Logger
}

// Backend lists events for every stored account.
type Backend struct {
	oauth      *oauth2.Config
	store      tokenstore.Store
	endpoint   string
	httpClient *http.Client
	calendarID string
	logger     zerolog.Logger
}

// NewBackend creates a Google Calendar backend.
func NewBackend(cfg BackendConfig) *Backend {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Backend{
		oauth:      cfg.OAuth,
		store:      cfg.Store,
		endpoint:   cfg.APIEndpoint,
		httpClient: httpClient,
		calendarID: calendarID,
		logger:     cfg.Logger.With().Str("backend", ProviderName).Logger(),
	}
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return ProviderName
}

// ListEvents lists [from, to) for every account. It returns
// calendar.ErrNoAccounts when the store is empty and an error only when
// every account failed.
func (b *Backend) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	if b.oauth == nil || b.store == nil {
		return nil, source.ConfigError("google calendar client is not configured")
	}

	accounts, err := b.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, calendar.ErrNoAccounts
	}

	var (
		events   []calendar.Event
		firstErr error
		failed   int
	)
	for _, account := range accounts {
		evs, err := b.listAccount(ctx, account, from, to)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			b.logger.Warn().Err(err).Str("account", account.Email).Msg("google calendar account failed")
			continue
		}
		events = append(events, evs...)
	}
	if failed == len(accounts) {
		return nil, firstErr
	}
	return events, nil
}

func (b *Backend) listAccount(ctx context.Context, account *tokenstore.Account, from, to time.Time) ([]calendar.Event, error) {
	srv, err := b.service(ctx, account)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Events.List(b.calendarID).
		Context(ctx).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		OrderBy("startTime").
		Do()
	if err != nil {
		return nil, classify(err)
	}

	label := account.Label
	if label == "" {
		label = account.Email
	}
	events := make([]calendar.Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Start == nil || item.Status == "cancelled" {
			continue
		}
		events = append(events, toEvent(item, label, account.Color))
	}
	return events, nil
}

func (b *Backend) service(ctx context.Context, account *tokenstore.Account) (*gcal.Service, error) {
	return newService(ctx, b.oauth, account, b.store, b.httpClient, b.endpoint, b.logger)
}

func newService(ctx context.Context, oauth *oauth2.Config, account *tokenstore.Account, store tokenstore.Store,
	base *http.Client, endpoint string, logger zerolog.Logger,
) (*gcal.Service, error) {
	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, base)
	ts := &persistingSource{
		base:    oauth.TokenSource(refreshCtx, account.Token()),
		store:   store,
		account: account,
		last:    account.AccessToken,
		logger:  logger,
	}

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(refreshCtx, ts))}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return srv, nil
}

func toEvent(item *gcal.Event, label, color string) calendar.Event {
	e := calendar.Event{
		Title:         item.Summary,
		Location:      item.Location,
		Description:   item.Description,
		CalendarLabel: label,
		CalendarColor: color,
	}
	if item.Start.Date != "" {
		e.AllDay = true
		e.Start = item.Start.Date
		if item.End != nil {
			e.End = item.End.Date
		}
		return e
	}
	e.Start = item.Start.DateTime
	if item.End != nil {
		e.End = item.End.DateTime
	}
	return e
}

// classify maps API and token errors onto the transport error types.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &resilience.StatusError{Provider: ProviderName, StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &source.Error{Kind: source.KindAuth, Err: err}
	}
	return err
}

// persistingSource saves refreshed tokens back to the store.
type persistingSource struct {
	base    oauth2.TokenSource
	store   tokenstore.Store
	account *tokenstore.Account
	logger  zerolog.Logger

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last || p.store == nil {
		return tok, nil
	}
	p.last = tok.AccessToken
	p.account.SetToken(tok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.store.Save(ctx, p.account); err != nil {
		p.logger.Warn().Err(err).Str("account", p.account.Email).Msg("saving refreshed token failed")
	}
	return tok, nil
}
