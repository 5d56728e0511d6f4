package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/studyhub-backend/internal/notifications/fanout"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/migrate"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox/registry"
	"github.com/angelmondragon/studyhub-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	listDLQ := flag.Bool("dlq", false, "print dead-lettered events and exit")
	requeue := flag.String("requeue", "", "move a dead-lettered event id back into the outbox and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		fatal(logg, context.Background(), "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":   cfg.App.Env,
		"store": cfg.Store.NormalizedDriver(),
		"topic": cfg.PubSub.FanoutTopic,
	})

	if !cfg.Store.UsesSQL() {
		fatal(logg, ctx, "outbox publisher needs a sql store", fmt.Errorf("store driver %q has no outbox", cfg.Store.Driver))
	}
	dbClient, err := db.New(ctx, cfg.Store, cfg.DB, logg)
	if err != nil {
		fatal(logg, ctx, "failed to bootstrap database", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		fatal(logg, ctx, "failed to run dev migrations", err)
	}

	dlq := outbox.NewDLQRepository(dbClient.DB())
	switch {
	case *listDLQ:
		entries, err := dlq.List(ctx, 0)
		if err != nil {
			fatal(logg, ctx, "failed to list dead-lettered events", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(entries)
		return
	case *requeue != "":
		if err := dlq.Requeue(ctx, *requeue); err != nil {
			fatal(logg, ctx, "failed to requeue event", err)
		}
		logg.Info(logg.WithField(ctx, "event_id", *requeue), "event requeued")
		return
	}

	psClient, err := pubsub.NewClient(ctx, cfg.Firebase.ProjectID, cfg.PubSub, logg)
	if err != nil {
		fatal(logg, ctx, "failed to bootstrap pubsub", err)
	}
	defer func() {
		if err := psClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	events, err := registry.NewEventRegistry(fanout.OutboxDescriptor(cfg.PubSub.FanoutTopic))
	if err != nil {
		fatal(logg, ctx, "failed to build event registry", err)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		PubSub:        psClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: dlq,
		Jobs:          metrics.NewJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		fatal(logg, ctx, "failed to create outbox publisher", err)
	}
	defer service.Stop()

	logg.Info(ctx, "starting outbox publisher")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher stopped")
}

func fatal(logg *logger.Logger, ctx context.Context, msg string, err error) {
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
