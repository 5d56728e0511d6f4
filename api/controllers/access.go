package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/internal/access"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

type accessResolution struct {
	Route      access.Route   `json:"route"`
	Redirected bool           `json:"redirected"`
	Role       string         `json:"role"`
	Routes     []access.Route `json:"routes"`
}

// ResolveAccess maps the requested route to the one the caller may open.
func ResolveAccess(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := access.SessionFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}

		requested := strings.TrimSpace(r.URL.Query().Get("route"))
		if requested == "" {
			requested = string(access.Home(session.Role))
		}
		route, redirected := access.Resolve(session.Role, access.Route(requested))

		responses.WriteSuccess(w, accessResolution{
			Route:      route,
			Redirected: redirected,
			Role:       string(session.Role),
			Routes:     access.Routes(session.Role),
		})
	}
}
