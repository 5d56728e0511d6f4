package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/studyhub-backend/api/controllers"
	"github.com/angelmondragon/studyhub-backend/api/middleware"
	"github.com/angelmondragon/studyhub-backend/internal/access"
	"github.com/angelmondragon/studyhub-backend/internal/aiassist"
	"github.com/angelmondragon/studyhub-backend/internal/notifications"
	"github.com/angelmondragon/studyhub-backend/internal/resources"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
	"github.com/angelmondragon/studyhub-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/studyhub-backend/pkg/redis"
)

// Deps carries everything the router wires. Nil optional dependencies disable
// the feature that needs them.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Verifier      middleware.TokenVerifier
	Diagnostics   controllers.DiagnosticsSource
	Ready         map[string]controllers.Pinger
	Idempotency   pkgredis.IdempotencyStore
	RateLimiter   middleware.FixedWindowLimiter
	HTTPMetrics   *metrics.HTTPMetrics
	Gatherer      prometheus.Gatherer
	Resources     resources.Service
	AI            aiassist.Service
	Notifications notifications.Service
	Tokens        controllers.TokenRegistry
	Hub           controllers.Subscriber
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Preflight,
	)
	r.NotFound(controllers.RouteNotFound(logg))
	r.MethodNotAllowed(controllers.RejectMethod(logg))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Gatherer))
	}

	aiPolicy := middleware.NewRateLimitPolicy("ai", cfg.RateLimit.AIWindow, cfg.RateLimit.AILimit)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Verifier, logg))
		idempotent := middleware.Idempotency(d.Idempotency, middleware.DefaultIdempotencyTTL, logg)
		idempotentSend := middleware.Idempotency(d.Idempotency, middleware.SendIdempotencyTTL, logg)

		r.Get("/health", controllers.HealthDiagnostics(cfg, d.Diagnostics))
		r.With(middleware.RequireSession(logg)).Get("/access/resolve", controllers.ResolveAccess(logg))

		r.Route("/resources", func(r chi.Router) {
			r.Get("/", controllers.ListResources(d.Resources, logg))
			r.With(middleware.RequireCapability(access.CapResourcesWrite, logg), idempotent).
				Post("/", controllers.CreateResource(d.Resources, logg))

			r.Route("/{resourceId}", func(r chi.Router) {
				r.Get("/", controllers.GetResource(d.Resources, logg))
				r.With(middleware.RequireCapability(access.CapResourcesDelete, logg)).
					Delete("/", controllers.DeleteResource(d.Resources, logg))
				r.Get("/ai", controllers.ResourceAIData(d.Resources, logg))
				r.With(middleware.RateLimit(aiPolicy, d.RateLimiter, logg)).
					Post("/ai/{action}", controllers.GenerateResourceAI(d.AI, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.With(middleware.RequireCapability(access.CapNotificationsSend, logg), idempotentSend).
				Post("/send", controllers.SendNotification(d.Notifications, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession(logg))
				r.Get("/", controllers.ListNotifications(d.Notifications, logg))
				r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
				r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
				r.Post("/tokens", controllers.RegisterPushToken(d.Tokens, logg))
				r.Delete("/tokens", controllers.UnregisterPushToken(d.Tokens, logg))
				r.Get("/stream", controllers.NotificationStream(d.Hub, cfg.CORS.AllowedOrigins, logg))
			})
		})
	})

	return r
}
