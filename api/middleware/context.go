package middleware

import (
	"context"

	"github.com/angelmondragon/studyhub-backend/internal/access"
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// UserIDFromContext returns the authenticated uid, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	s, _ := access.SessionFromContext(ctx)
	return s.UserID
}

// WithUserID attaches a student session for userID, keeping the role of any
// session already on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	s, ok := access.SessionFromContext(ctx)
	if !ok {
		s.Role = enums.MemberRoleStudent
	}
	s.UserID = userID
	return access.WithSession(ctx, s)
}
