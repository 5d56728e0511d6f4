package access

import (
	"context"
	"strings"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// RoleClaim is the custom claim carrying the portal role.
const RoleClaim = "role"

// Session is the authenticated caller as seen by handlers.
type Session struct {
	UserID string
	Email  string
	Name   string
	Role   enums.MemberRole
}

// SessionFromClaims builds a session from verified ID-token claims.
func SessionFromClaims(uid string, claims map[string]any) Session {
	s := Session{UserID: uid, Role: enums.MemberRoleStudent}
	if claims == nil {
		return s
	}
	if v, ok := claims[RoleClaim].(string); ok {
		s.Role = NormalizeRole(v)
	}
	if v, ok := claims["email"].(string); ok {
		s.Email = strings.TrimSpace(v)
	}
	if v, ok := claims["name"].(string); ok {
		s.Name = strings.TrimSpace(v)
	}
	return s
}

// Can reports whether the session's role holds capability.
func (s Session) Can(capability Capability) bool {
	return Can(s.Role, capability)
}

type sessionKey struct{}

// WithSession stores s on ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by the auth middleware.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
