package middleware

import (
	"context"
	"net/http"
	"strings"

	"firebase.google.com/go/auth"

	"github.com/angelmondragon/studyhub-backend/api/responses"
	"github.com/angelmondragon/studyhub-backend/internal/access"
	pkgerrors "github.com/angelmondragon/studyhub-backend/pkg/errors"
	"github.com/angelmondragon/studyhub-backend/pkg/logger"
)

// TokenVerifier checks a Firebase ID token.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Authenticate attaches an access.Session when the request carries a valid
// bearer token. Requests without credentials pass through anonymously; a
// token that fails verification is rejected.
func Authenticate(verifier TokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if verifier == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConfiguration, "token verification is not configured").
					WithDetails(map[string]string{"hint": "set STUDYHUB_FIREBASE_PROJECT_ID and service account credentials"}))
				return
			}

			verified, err := verifier.VerifyIDToken(r.Context(), token)
			if err != nil {
				if pkgerrors.IsCode(err, pkgerrors.CodeConfiguration) {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if verified.UID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject"))
				return
			}

			session := access.SessionFromClaims(verified.UID, verified.Claims)
			ctx := access.WithSession(r.Context(), session)

			if logg != nil {
				ctx = logg.WithActor(ctx, session.UserID, string(session.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects anonymous requests.
func RequireSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := access.SessionFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	// Browsers cannot set headers on WebSocket upgrades.
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("token"))
	}
	return ""
}
