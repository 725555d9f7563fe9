// Package database provides PostgreSQL connection management.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoURL is returned by Connect when no connection URL is configured.
var ErrNoURL = errors.New("database: no connection url")

// Pool defaults.
const (
	DefaultMaxConns        = 4
	DefaultMinConns        = 0
	DefaultConnMaxLifetime = 30 * time.Minute
)

// Config holds database connection configuration.
type Config struct {
	// URL is a postgres:// connection string or DSN.
	URL             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// PoolConfig parses cfg into a pgxpool configuration, filling defaults.
func PoolConfig(cfg Config) (*pgxpool.Config, error) {
	if cfg.URL == "" {
		return nil, ErrNoURL
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}
	minConns := cfg.MinConns
	if minConns < 0 || minConns > maxConns {
		minConns = DefaultMinConns
	}
	lifetime := cfg.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = DefaultConnMaxLifetime
	}

	poolConfig.MaxConns = int32(maxConns) //nolint:gosec // bounded by config validation
	poolConfig.MinConns = int32(minConns) //nolint:gosec // bounded by config validation
	poolConfig.MaxConnLifetime = lifetime

	return poolConfig, nil
}

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
