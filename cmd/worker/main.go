package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/studyhub-backend/internal/notifications/fanout"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/email"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/instance"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/pubsub"
	"github.com/angelmondragon/studyhub-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"instance":     instance.GetID(),
		"subscription": cfg.PubSub.FanoutSubscription,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	psClient, err := pubsub.NewClient(ctx, cfg.Firebase.ProjectID, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := psClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	fb := firebase.New(cfg.Firebase, logg)
	defer func() {
		if err := fb.Close(); err != nil {
			logg.Error(context.Background(), "error closing firebase clients", err)
		}
	}()

	mailer, err := email.New(cfg.Email)
	requireResource(ctx, logg, "email", err)

	registry := prometheus.NewRegistry()
	consumer, err := fanout.NewConsumer(fanout.ConsumerParams{
		Subscription: psClient.FanoutSubscription(),
		Dedupe:       redisClient,
		Directory:    fanout.NewFirebaseDirectory(fb),
		Sender:       mailer,
		PublicURL:    cfg.App.PublicURL,
		Logger:       logg,
		Jobs:         metrics.NewJobMetrics(registry),
		Domain:       metrics.NewDomainMetrics(registry),
	})
	requireResource(ctx, logg, "fanout consumer", err)

	svc, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		Redis:    redisClient,
		PubSub:   psClient,
		Consumer: consumer,
	})
	requireResource(ctx, logg, "worker service", err)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           metrics.Handler(registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logg.Info(ctx, "starting worker")
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped", err)
		os.Exit(1)
	}
	logg.Info(context.Background(), "worker shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
