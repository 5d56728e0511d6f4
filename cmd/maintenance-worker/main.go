package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/studyhub-backend/internal/maintenance"
	"github.com/angelmondragon/studyhub-backend/internal/push"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/instance"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/migrate"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
	"github.com/angelmondragon/studyhub-backend/pkg/redis"
)

const lockKeyFormat = "studyhub:maintenance:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "maintenance-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "maintenance-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Redis.Enabled() {
		logg.Error(ctx, "maintenance worker requires redis for its lock", errors.New("redis not configured"))
		os.Exit(1)
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var jobs []maintenance.Job

	tokens, err := push.NewRegistry(redisClient, cfg.Push.TokenTTL)
	if err != nil {
		logg.Error(ctx, "failed to create push token registry", err)
		os.Exit(1)
	}
	pruneJob, err := maintenance.NewPushTokenPruneJob(logg, tokens)
	if err != nil {
		logg.Error(ctx, "failed to create push token prune job", err)
		os.Exit(1)
	}
	jobs = append(jobs, pruneJob)

	if cfg.Store.UsesSQL() {
		dbClient, err := db.New(ctx, cfg.Store, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}

		retentionJob, err := maintenance.NewOutboxRetentionJob(maintenance.OutboxRetentionJobParams{
			Logger:           logg,
			DB:               dbClient,
			Repository:       outbox.NewRepository(dbClient.DB()),
			RetentionDays:    cfg.Outbox.RetentionDays,
			TerminalAttempts: cfg.Outbox.MaxAttempts,
		})
		if err != nil {
			logg.Error(ctx, "failed to create outbox retention job", err)
			os.Exit(1)
		}
		jobs = append(jobs, retentionJob)
	}

	lock, err := maintenance.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(ctx, "failed to create maintenance lock", err)
		os.Exit(1)
	}

	service, err := maintenance.NewService(maintenance.ServiceParams{
		Logger:   logg,
		Jobs:     jobs,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Outbox.MaintenanceInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create maintenance service", err)
		os.Exit(1)
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"store":    cfg.Store.NormalizedDriver(),
		"jobs":     len(jobs),
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting maintenance worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "maintenance worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "maintenance worker shutting down")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
