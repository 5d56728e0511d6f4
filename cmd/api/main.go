package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/studyhub-backend/api/controllers"
	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/api/routes"
	"github.com/angelmondragon/studyhub-backend/internal/aiassist"
	"github.com/angelmondragon/studyhub-backend/internal/notifications"
	"github.com/angelmondragon/studyhub-backend/internal/notifications/fanout"
	"github.com/angelmondragon/studyhub-backend/internal/push"
	"github.com/angelmondragon/studyhub-backend/internal/resources"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/db"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/instance"
	"github.com/angelmondragon/studyhub-backend/pkg/llm"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	"github.com/angelmondragon/studyhub-backend/pkg/migrate"
	"github.com/angelmondragon/studyhub-backend/pkg/outbox"
	"github.com/angelmondragon/studyhub-backend/pkg/pubsub"
	"github.com/angelmondragon/studyhub-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	hubBuffer       = 16
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	responses.EnableDebug(cfg.App.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	domainMetrics := metrics.NewDomainMetrics(registry)

	fb := firebase.New(cfg.Firebase, logg)
	defer func() {
		if err := fb.Close(); err != nil {
			logg.Error(context.Background(), "error closing firebase clients", err)
		}
	}()

	ready := map[string]controllers.Pinger{}
	hub := notifications.NewHub(hubBuffer, logg)
	defer hub.Close()

	var (
		resourceRepo interface {
			resources.Repository
			resources.AIRepository
		}
		notificationRepo notifications.Repository
		serviceHub       = hub
		publisher        fanout.Publisher
	)
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
		if cfg.Store.AutoMigrate {
			if err := dbClient.AutoMigrate(); err != nil {
				logg.Error(ctx, "failed to auto-migrate models", err)
				os.Exit(1)
			}
		}
		ready["database"] = dbClient
		resourceRepo = resources.NewSQLRepository(dbClient.DB())
		notificationRepo = notifications.NewSQLRepository(dbClient.DB())

		if cfg.Outbox.Enabled {
			queue, err := fanout.NewOutboxPublisher(dbClient, outbox.NewService(outbox.NewRepository(dbClient.DB()), logg))
			if err != nil {
				logg.Error(ctx, "failed to create outbox publisher", err)
				os.Exit(1)
			}
			publisher = queue
		}
	} else {
		resourceRepo = resources.NewFirestoreRepository(fb)
		notificationRepo = notifications.NewFirestoreRepository(fb)

		// The feed delivers every new document, including the service's own
		// writes, so the service must not publish to the hub as well.
		serviceHub = nil
		feed, err := notifications.NewFirestoreFeed(fb, hub, logg)
		if err != nil {
			logg.Error(ctx, "failed to create notification feed", err)
			os.Exit(1)
		}
		go func() {
			if err := feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "notification feed stopped", err)
			}
		}()
	}

	deps := routes.Deps{
		Config:      cfg,
		Logger:      logg,
		Verifier:    fb,
		Diagnostics: fb,
		Ready:       ready,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
		Hub:         hub,
	}

	var pushSender notifications.Broadcaster
	if cfg.Redis.Enabled() {
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
		ready["redis"] = redisClient
		deps.Idempotency = redisClient
		deps.RateLimiter = redisClient

		tokens, err := push.NewRegistry(redisClient, cfg.Push.TokenTTL)
		if err != nil {
			logg.Error(ctx, "failed to create push token registry", err)
			os.Exit(1)
		}
		deps.Tokens = tokens

		sender, err := push.NewSender(push.SenderParams{
			Messaging: fb,
			Registry:  tokens,
			BatchSize: cfg.Push.BatchSize,
			IconURL:   cfg.Push.IconURL,
			Logger:    logg,
			Metrics:   domainMetrics,
		})
		if err != nil {
			logg.Error(ctx, "failed to create push sender", err)
			os.Exit(1)
		}
		pushSender = sender
	} else {
		logg.Warn(ctx, "redis not configured; push tokens, idempotency and rate limits are disabled")
	}

	switch {
	case publisher != nil:
		logg.Info(ctx, "notification email queued through the sql outbox")
	case cfg.PubSub.Enabled() && cfg.Firebase.ProjectID != "":
		psClient, err := pubsub.NewClient(ctx, cfg.Firebase.ProjectID, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		ready["pubsub"] = psClient

		topic, err := fanout.NewPubSubPublisher(psClient.FanoutPublisher())
		if err != nil {
			logg.Error(ctx, "failed to create fanout publisher", err)
			os.Exit(1)
		}
		defer topic.Stop()
		publisher = topic
	default:
		logg.Warn(ctx, "pubsub not configured; notification email is disabled")
	}

	resourceSvc, err := resources.NewService(resourceRepo, resourceRepo)
	if err != nil {
		logg.Error(ctx, "failed to create resources service", err)
		os.Exit(1)
	}
	deps.Resources = resourceSvc

	var completer llm.Completer
	if client, err := llm.New(cfg.LLM); err != nil {
		logg.Warn(logg.WithField(ctx, "reason", err.Error()), "ai assist disabled")
	} else {
		completer = client
	}
	aiSvc, err := aiassist.NewService(aiassist.ServiceParams{
		Resources: resourceSvc,
		Store:     resourceRepo,
		LLM:       completer,
		Logger:    logg,
		Metrics:   domainMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create ai assist service", err)
		os.Exit(1)
	}
	deps.AI = aiSvc

	notificationSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:      notificationRepo,
		Publisher: publisher,
		Push:      pushSender,
		Hub:       serviceHub,
		Logger:    logg,
		Metrics:   domainMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}
	deps.Notifications = notificationSvc

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
		"store":    cfg.Store.NormalizedDriver(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}
}
