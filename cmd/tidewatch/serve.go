package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/tidewatch/tidewatch/internal/api"
	"github.com/tidewatch/tidewatch/internal/api/middleware"
	"github.com/tidewatch/tidewatch/internal/telemetry"
	"github.com/tidewatch/tidewatch/internal/trigger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refresh scheduler and the dashboard API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	s := settings
	log.Info().Str("build_time", BuildTime).Msg("starting tidewatch")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    s.Telemetry.Environment,
		OTLPEndpoint:   s.Telemetry.OTLPEndpoint,
		Enabled:        s.Telemetry.Enabled,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", s.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}

	a, err := newApp(ctx, s, clock.New(), log)
	if err != nil {
		return err
	}
	defer a.close()

	if !a.tokens.Enabled() {
		log.Warn().Msg("auth.signing_key is not set; control endpoints are open")
	}

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	if s.Trigger.DayBoundary {
		day, err := trigger.NewDayBoundary(a.scheduler, a.resolver.Location(), log)
		if err != nil {
			return err
		}
		day.Start()
		defer day.Stop()
	}

	if s.Trigger.PubSubProject != "" && s.Trigger.PubSubSubscription != "" {
		ps, err := trigger.DialPubSub(ctx, s.Trigger.PubSubProject, s.Trigger.PubSubSubscription, trigger.PubSubConfig{
			Target: a.scheduler,
			Logger: log,
		})
		if err != nil {
			return err
		}
		defer ps.Close() //nolint:errcheck // best effort on shutdown
		go func() {
			if err := ps.Run(ctx); err != nil {
				log.Error().Err(err).Msg("pubsub trigger stopped")
			}
		}()
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     httpMetrics,
		Tokens:      a.tokens,
		Board:       a.board,
		Scheduler:   a.scheduler,
		Providers:   a.registry,
		RequireTLS:  s.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(s.Server.Port),
		Handler:      router,
		ReadTimeout:  s.Server.ReadTimeout,
		WriteTimeout: s.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
