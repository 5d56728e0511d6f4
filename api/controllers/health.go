package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/firebase"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

// Pinger is a readiness dependency.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StudyHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency and fails with 503 when any is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-StudyHub-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string, len(deps))
		var failed []string
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				failed = append(failed, name)
				continue
			}
			checks[name] = "ok"
		}

		if len(failed) > 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").
				WithDetails(map[string]any{"failed": failed, "checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

// DiagnosticsSource reports Firebase configuration state.
type DiagnosticsSource interface {
	Diagnostics() firebase.Diagnostics
}

// HealthDiagnostics reports configuration state without secrets.
func HealthDiagnostics(cfg *config.Config, fb DiagnosticsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"status":      "ok",
			"environment": cfg.App.Env,
			"store":       cfg.Store.NormalizedDriver(),
			"llm":         map[string]any{"configured": cfg.LLM.Configured(), "model": cfg.LLM.Model},
			"email":       map[string]any{"configured": cfg.Email.Configured(), "fanoutTopic": cfg.PubSub.FanoutTopic},
			"redis":       map[string]any{"configured": cfg.Redis.Enabled()},
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}
		if fb != nil {
			payload["firebase"] = fb.Diagnostics()
		}
		responses.WriteSuccess(w, payload)
	}
}
