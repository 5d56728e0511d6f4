package controllers

import (
	"net/http"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

// RejectMethod renders 405 as the JSON envelope.
func RejectMethod(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethod, "method not allowed").
			WithDetails(map[string]string{"method": r.Method}))
	}
}

func RouteNotFound(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	}
}
