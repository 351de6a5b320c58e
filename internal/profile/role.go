// Copyright (c) 2026 PU Connect. All rights reserved.

package profile

// # User Roles

// Role represents the access level attached to a profile.
type Role string

const (
	// Unrestricted system access, including admin management
	RoleSuperAdmin Role = "super_admin"

	// Can manage community content and moderate members
	RoleAdmin Role = "admin"

	// Can publish campus news articles
	RoleNewsPublisher Role = "news_publisher"

	// Can list items on the marketplace
	RoleSeller Role = "seller"

	// Default role for standard registered users
	RoleBuyer Role = "buyer"
)

// Valid reports whether the role is one of the known enumerated values.
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleNewsPublisher, RoleSeller, RoleBuyer:
		return true
	default:
		return false
	}
}

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r Role) AtLeast(target Role) bool {
	return r.level() >= target.level()
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r Role) level() int {

	// Linear scale (10-50) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 50
	case RoleAdmin:
		return 40
	case RoleNewsPublisher:
		return 30
	case RoleSeller:
		return 20
	case RoleBuyer:
		return 10
	default:
		return 0
	}
}
