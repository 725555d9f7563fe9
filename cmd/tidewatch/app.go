package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/tidewatch/tidewatch/internal/auth"
	"github.com/tidewatch/tidewatch/internal/calendar"
	"github.com/tidewatch/tidewatch/internal/calendar/caldav"
	"github.com/tidewatch/tidewatch/internal/calendar/google"
	"github.com/tidewatch/tidewatch/internal/calendar/ics"
	"github.com/tidewatch/tidewatch/internal/calendar/tokenstore"
	"github.com/tidewatch/tidewatch/internal/config"
	"github.com/tidewatch/tidewatch/internal/dashboard"
	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/displaymode"
	"github.com/tidewatch/tidewatch/internal/provider/resilience"
	"github.com/tidewatch/tidewatch/internal/scheduler"
	"github.com/tidewatch/tidewatch/internal/sun"
	"github.com/tidewatch/tidewatch/internal/sun/sunrisesunset"
	"github.com/tidewatch/tidewatch/internal/tide"
	"github.com/tidewatch/tidewatch/internal/tide/noaa"
	"github.com/tidewatch/tidewatch/internal/weather"
	"github.com/tidewatch/tidewatch/internal/weather/openweathermap"
)

// app is the wired dashboard: providers, fetchers, board and scheduler.
type app struct {
	resolver  *displaymode.Resolver
	registry  *resilience.Registry
	board     *dashboard.Board
	scheduler *scheduler.Scheduler
	tokens    *auth.TokenService

	closers []func()
}

func newApp(ctx context.Context, s *config.Settings, clk clock.Clock, logger zerolog.Logger) (*app, error) {
	a := &app{registry: resilience.NewRegistry()}

	a.resolver = displaymode.NewResolver(displaymode.Config{
		Clock:         clk,
		Timezone:      s.Location.Timezone,
		ThresholdHour: s.Display.ThresholdHour,
	})
	loc := a.resolver.Location()

	weatherFetcher := weather.NewFetcher(weather.FetcherConfig{
		Provider: openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:     s.Weather.APIKey,
			BaseURL:    s.Weather.BaseURL,
			HTTPClient: a.providerClient(openweathermap.ProviderName, logger),
			Logger:     logger,
		}),
		Resolver:  a.resolver,
		Latitude:  s.Location.Latitude,
		Longitude: s.Location.Longitude,
		Logger:    logger,
	})

	tideFetcher := tide.NewFetcher(tide.FetcherConfig{
		Provider: noaa.NewClient(noaa.ClientConfig{
			BaseURL:    s.Tide.BaseURL,
			Location:   loc,
			HTTPClient: a.providerClient(noaa.ProviderName, logger),
			Logger:     logger,
		}),
		Resolver: a.resolver,
		Stations: s.Tide.Stations,
		Logger:   logger,
	})

	sunFetcher := sun.NewFetcher(sun.FetcherConfig{
		Provider: sunrisesunset.NewClient(sunrisesunset.ClientConfig{
			BaseURL:    s.Sun.BaseURL,
			Location:   loc,
			HTTPClient: a.providerClient(sunrisesunset.ProviderName, logger),
			Logger:     logger,
		}),
		Resolver:  a.resolver,
		Latitude:  s.Location.Latitude,
		Longitude: s.Location.Longitude,
		Logger:    logger,
	})

	backend, err := a.calendarBackend(ctx, s, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	calendarFetcher := calendar.NewFetcher(calendar.FetcherConfig{
		Backend:  backend,
		Resolver: a.resolver,
		Logger:   logger,
	})

	a.board = dashboard.New(dashboard.Config{
		Resolver: a.resolver,
		Locale:   s.Display.Locale,
		Seed:     s.Display.Seed,
		Logger:   logger,
	})

	metrics, err := scheduler.NewMetrics()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("scheduler metrics: %w", err)
	}

	a.scheduler, err = scheduler.New(scheduler.Config{
		Weather:           weatherFetcher,
		Tides:             tideFetcher,
		Sun:               sunFetcher,
		Calendar:          calendarFetcher,
		Resolver:          a.resolver,
		Clock:             clk,
		Sink:              a.board,
		RefreshInterval:   s.Refresh.Interval,
		ModeCheckInterval: s.Refresh.ModeCheckInterval,
		RetryBase:         s.Refresh.RetryBase,
		MaxRetries:        s.Refresh.MaxRetries,
		Metrics:           metrics,
		Logger:            logger,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.tokens = auth.NewTokenService(auth.Config{
		SigningKey: s.Auth.SigningKey,
		Issuer:     s.Auth.Issuer,
		Now:        clk.Now,
	})

	return a, nil
}

// providerClient builds a resilient client registered for status reporting.
func (a *app) providerClient(name string, logger zerolog.Logger) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = a.registry
	cfg.Logger = logger
	return resilience.NewClient(cfg)
}

// calendarBackend returns nil for the none backend.
func (a *app) calendarBackend(ctx context.Context, s *config.Settings, logger zerolog.Logger) (calendar.Backend, error) {
	c := s.Calendar
	switch c.Backend {
	case config.BackendICS:
		return ics.NewFeed(ics.FeedConfig{
			URL:        c.ICS.URL,
			Relay:      c.ICS.Relay,
			Label:      c.ICS.Label,
			Color:      c.ICS.Color,
			HTTPClient: a.providerClient(ics.ProviderName, logger),
			Logger:     logger,
		}), nil

	case config.BackendCalDAV:
		return caldav.NewClient(caldav.ClientConfig{
			ProxyURL:    c.CalDAV.ProxyURL,
			Username:    c.CalDAV.Username,
			AppPassword: c.CalDAV.AppPassword,
			Label:       c.CalDAV.Label,
			Color:       c.CalDAV.Color,
			HTTPClient:  a.providerClient(caldav.ProviderName, logger),
			Logger:      logger,
		}), nil

	case config.BackendGoogle:
		store, err := a.tokenStore(ctx, s)
		if err != nil {
			return nil, err
		}
		return google.NewBackend(google.BackendConfig{
			OAuth:      google.OAuthConfig(c.Google.ClientID, c.Google.ClientSecret),
			Store:      store,
			HTTPClient: &http.Client{Timeout: 10 * time.Second},
			CalendarID: c.Google.CalendarID,
			Logger:     logger,
		}), nil
	}
	return nil, nil
}

// tokenStore opens the configured account store for the google backend.
func (a *app) tokenStore(ctx context.Context, s *config.Settings) (tokenstore.Store, error) {
	switch s.Calendar.Google.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemoryStore(), nil
	case config.TokenStorePostgres:
		pool, err := database.Connect(ctx, database.Config{
			URL:             s.Database.URL,
			MaxConns:        s.Database.MaxConns,
			MinConns:        s.Database.MinConns,
			ConnMaxLifetime: s.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("token store: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		store := tokenstore.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("token store schema: %w", err)
		}
		return store, nil
	default:
		return tokenstore.NewFileStore(s.Calendar.Google.TokenFile), nil
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
