package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PoolOptions sizes the Postgres pool. Queue rebuilds, message writes and notification inserts
// all share it, so MaxConns bounds the instance's concurrent store traffic.
type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: 10 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
	}
}

func NewPostgresPool(ctx context.Context, databaseURL string, opts PoolOptions, logger zerolog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	defaults := DefaultPoolOptions()
	config.MaxConns = orDefault(opts.MaxConns, defaults.MaxConns)
	config.MinConns = min(orDefault(opts.MinConns, defaults.MinConns), config.MaxConns)
	config.MaxConnLifetime = orDefault(opts.MaxConnLifetime, defaults.MaxConnLifetime)
	config.MaxConnIdleTime = orDefault(opts.MaxConnIdleTime, defaults.MaxConnIdleTime)

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info().
		Str("host", config.ConnConfig.Host).
		Str("database", config.ConnConfig.Database).
		Int32("max_conns", config.MaxConns).
		Msg("Postgres pool created")
	return pool, nil
}

func orDefault[T int32 | int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}
