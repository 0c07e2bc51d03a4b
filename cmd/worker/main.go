package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/comanda-app/backend-comanda/internal/app"
	"github.com/comanda-app/backend-comanda/internal/config"
	"github.com/comanda-app/backend-comanda/internal/db"
	"github.com/comanda-app/backend-comanda/internal/lock"
	"github.com/comanda-app/backend-comanda/internal/notify"
	"github.com/comanda-app/backend-comanda/internal/obs"
	"github.com/comanda-app/backend-comanda/internal/resilience"
)

const cartSweepLockKey = "lock:cart-sweep"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("OBS_LOG_FORMAT", "json"), envOrDefault("OBS_LOG_LEVEL", "info")).
		With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "comanda"), nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := app.NewPool(bootCtx, cfg, "comanda-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(bootCtx, cfg, false)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	store := db.New(pool)

	concurrency := envInt("WORKER_CONCURRENCY", 10)
	srv, err := app.NewTaskServer(cfg, concurrency, map[string]int{
		notify.QueueName: 5,
		"default":        1,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task server")
	}

	sender := &notify.WebhookSender{
		URL:     envOrDefault("WEBHOOK_URL", ""),
		Secret:  cfg.WebhookSecret,
		Client:  notify.HTTPClient(envInt("WEBHOOK_TIMEOUT_MS", 10000), false),
		Breaker: resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("webhook"),
	}
	worker := &notify.Worker{Sender: sender}

	mux := asynq.NewServeMux()
	mux.Use(func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			return next.ProcessTask(logger.WithContext(ctx), t)
		})
	})
	worker.Register(mux)

	sweepEvery := time.Duration(envInt("CART_SWEEP_INTERVAL_SEC", 600)) * time.Second
	go runCartSweeper(ctx, logger, store, redisClient, sweepEvery)

	logger.Info().Int("concurrency", concurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}

	<-ctx.Done()
	logger.Info().Msg("draining tasks")
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}

// runCartSweeper periodically purges expired carts. The Redis lock keeps the
// sweep single-flight when several worker replicas run.
func runCartSweeper(ctx context.Context, logger zerolog.Logger, store *db.Store, client *redis.Client, every time.Duration) {
	locker := lock.Locker{R: client}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := locker.WithLock(ctx, cartSweepLockKey, every/2, func(ctx context.Context) error {
			removed, err := store.DeleteExpiredCarts(ctx)
			if err != nil {
				return err
			}
			if removed > 0 {
				logger.Info().Int64("removed", removed).Msg("expired carts purged")
			}
			return nil
		})
		if errors.Is(err, lock.ErrHeld) {
			// Another replica is sweeping this tick.
			continue
		}
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("cart sweep failed")
		}
	}
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}
