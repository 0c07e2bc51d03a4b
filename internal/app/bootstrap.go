// Package app wires the shared infrastructure every binary needs: the
// Postgres pool, Redis, schema migrations and the task queue client.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/comanda-app/backend-comanda/internal/config"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/resilience"
)

// NewPool opens a pgx pool with tracing enabled and verifies connectivity.
func NewPool(ctx context.Context, cfg *config.Config, appName string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.ConnConfig.Tracer = obs.PGXTracer{}
	if appName != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewRedis connects a go-redis client, optionally instrumented for
// tracing and metrics.
func NewRedis(ctx context.Context, cfg *config.Config, instrument bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if instrument {
		if err := redisotel.InstrumentTracing(client); err != nil {
			return nil, fmt.Errorf("instrument redis tracing: %w", err)
		}
		if err := redisotel.InstrumentMetrics(client); err != nil {
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// MigrateUp applies pending schema migrations. A database that is already
// current is not an error.
func MigrateUp(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewTaskClient returns an asynq client for enqueuing background tasks.
func NewTaskClient(cfg *config.Config) (*asynq.Client, error) {
	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for task queue: %w", err)
	}
	return asynq.NewClient(connOpt), nil
}

// NewTaskServer returns an asynq server consuming the given queues.
func NewTaskServer(cfg *config.Config, concurrency int, queues map[string]int) (*asynq.Server, error) {
	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url for task queue: %w", err)
	}
	return asynq.NewServer(connOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      queues,
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return resilience.Backoff(2*time.Second, n, 0.2)
		},
	}), nil
}
