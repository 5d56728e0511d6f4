// Package access holds the single role capability table. Every role check in
// the service goes through Allowed, Resolve or Can.
package access

import (
	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// Route is a top-level view of the portal.
type Route string

const (
	RouteDashboard          Route = "/dashboard"
	RouteResources          Route = "/resources"
	RouteNotifications      Route = "/notifications"
	RouteStudy              Route = "/study"
	RouteUpload             Route = "/upload"
	RouteAnalytics          Route = "/analytics"
	RouteAdmin              Route = "/admin"
	RouteAdminNotifications Route = "/admin/notifications"
)

// Capability is a backend action gated by role.
type Capability string

const (
	CapResourcesWrite    Capability = "resources:write"
	CapResourcesDelete   Capability = "resources:delete"
	CapNotificationsSend Capability = "notifications:send"
)

type policy struct {
	home         Route
	routes       map[Route]struct{}
	capabilities map[Capability]struct{}
}

func set[T comparable](items ...T) map[T]struct{} {
	out := make(map[T]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}

var table = map[enums.MemberRole]policy{
	enums.MemberRoleStudent: {
		home:   RouteDashboard,
		routes: set(RouteDashboard, RouteResources, RouteNotifications, RouteStudy),
	},
	enums.MemberRoleFaculty: {
		home:         RouteDashboard,
		routes:       set(RouteDashboard, RouteResources, RouteNotifications, RouteStudy, RouteUpload, RouteAnalytics),
		capabilities: set(CapResourcesWrite),
	},
	enums.MemberRoleAdmin: {
		home: RouteAdmin,
		routes: set(RouteDashboard, RouteResources, RouteNotifications, RouteStudy, RouteUpload,
			RouteAnalytics, RouteAdmin, RouteAdminNotifications),
		capabilities: set(CapResourcesWrite, CapResourcesDelete, CapNotificationsSend),
	},
}

// NormalizeRole maps a raw claim value onto the closed role set. Unknown or
// missing values resolve to student.
func NormalizeRole(raw string) enums.MemberRole {
	role, err := enums.ParseMemberRole(raw)
	if err != nil {
		return enums.MemberRoleStudent
	}
	return role
}

func policyFor(role enums.MemberRole) policy {
	if p, ok := table[role]; ok {
		return p
	}
	return table[enums.MemberRoleStudent]
}

// Home is the landing route for role.
func Home(role enums.MemberRole) Route {
	return policyFor(role).home
}

// Allowed reports whether role may open route.
func Allowed(role enums.MemberRole, route Route) bool {
	_, ok := policyFor(role).routes[route]
	return ok
}

// Resolve returns route when allowed, otherwise the role's home route and redirected=true.
func Resolve(role enums.MemberRole, route Route) (Route, bool) {
	if Allowed(role, route) {
		return route, false
	}
	return Home(role), true
}

// Can reports whether role holds capability.
func Can(role enums.MemberRole, capability Capability) bool {
	_, ok := policyFor(role).capabilities[capability]
	return ok
}

// Routes lists the routes role may open, in declaration order.
func Routes(role enums.MemberRole) []Route {
	all := []Route{
		RouteDashboard, RouteResources, RouteNotifications, RouteStudy, RouteUpload,
		RouteAnalytics, RouteAdmin, RouteAdminNotifications,
	}
	out := make([]Route, 0, len(all))
	for _, r := range all {
		if Allowed(role, r) {
			out = append(out, r)
		}
	}
	return out
}
