package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/studyhub-backend/api/middleware"
	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/api/validators"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

// TokenRegistry is satisfied by push.Registry.
type TokenRegistry interface {
	Register(ctx context.Context, userID, token string) error
	Remove(ctx context.Context, tokens ...string) error
}

type pushTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

func RegisterPushToken(registry TokenRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "push token registry unavailable").
				WithDetails(map[string]string{"hint": "set STUDYHUB_REDIS_URL"}))
			return
		}
		var body pushTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := registry.Register(r.Context(), middleware.UserIDFromContext(r.Context()), body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]bool{"registered": true})
	}
}

func UnregisterPushToken(registry TokenRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if registry == nil {
			responses.WriteSuccess(w, map[string]bool{"registered": false})
			return
		}
		var body pushTokenRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := registry.Remove(r.Context(), body.Token); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"registered": false})
	}
}
