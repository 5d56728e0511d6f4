package access

import (
	"context"
	"testing"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRedirectsToHome(t *testing.T) {
	route, redirected := Resolve(enums.MemberRoleStudent, RouteAdmin)
	assert.True(t, redirected)
	assert.Equal(t, RouteDashboard, route)

	route, redirected = Resolve(enums.MemberRoleAdmin, RouteAdminNotifications)
	assert.False(t, redirected)
	assert.Equal(t, RouteAdminNotifications, route)

	route, redirected = Resolve(enums.MemberRoleFaculty, RouteAdmin)
	assert.True(t, redirected)
	assert.Equal(t, RouteDashboard, route)
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		role enums.MemberRole
		cap  Capability
		want bool
	}{
		{enums.MemberRoleStudent, CapResourcesWrite, false},
		{enums.MemberRoleFaculty, CapResourcesWrite, true},
		{enums.MemberRoleFaculty, CapResourcesDelete, false},
		{enums.MemberRoleFaculty, CapNotificationsSend, false},
		{enums.MemberRoleAdmin, CapNotificationsSend, true},
		{enums.MemberRoleAdmin, CapResourcesDelete, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Can(tc.role, tc.cap), "%s/%s", tc.role, tc.cap)
	}
}

func TestUnknownRoleFallsBackToStudent(t *testing.T) {
	assert.Equal(t, enums.MemberRoleStudent, NormalizeRole("superuser"))
	assert.Equal(t, enums.MemberRoleAdmin, NormalizeRole(" Admin "))
	assert.Equal(t, Routes(enums.MemberRoleStudent), Routes(enums.MemberRole("ghost")))
}

func TestSessionFromClaims(t *testing.T) {
	s := SessionFromClaims("u1", map[string]any{"role": "faculty", "email": "a@b.edu", "name": " Ada "})
	assert.Equal(t, enums.MemberRoleFaculty, s.Role)
	assert.Equal(t, "Ada", s.Name)
	assert.True(t, s.Can(CapResourcesWrite))

	bare := SessionFromClaims("u2", nil)
	assert.Equal(t, enums.MemberRoleStudent, bare.Role)

	ctx := WithSession(context.Background(), s)
	got, ok := SessionFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", got.UserID)

	_, ok = SessionFromContext(context.Background())
	assert.False(t, ok)
}
