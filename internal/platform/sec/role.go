// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"
	"strings"
)

// # User Roles

// Role represents the authorization level granted to an account.
//
// Roles form a fixed total order: MEMBER < MANAGER < ADMIN < SUPER_ADMIN.
type Role string

const (
	// Default role for every team member
	RoleMember Role = "MEMBER"

	// Runs projects and assigns work to members
	RoleManager Role = "MANAGER"

	// Manages users, projects and reports across the workspace
	RoleAdmin Role = "ADMIN"

	// Unrestricted system access, including other administrators
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// allRoles lists every role in ascending rank order.
var allRoles = []Role{RoleMember, RoleManager, RoleAdmin, RoleSuperAdmin}

// AllRoles returns every defined role in ascending rank order.
func AllRoles() []Role {
	roles := make([]Role, len(allRoles))
	copy(roles, allRoles)
	return roles
}

// ParseRole converts a client or database value into a [Role].
// Matching is case-insensitive; unknown values are rejected.
func ParseRole(value string) (Role, error) {
	candidate := Role(strings.ToUpper(strings.TrimSpace(value)))
	if !candidate.IsValid() {
		return "", fmt.Errorf("sec: unknown role %q", value)
	}
	return candidate, nil
}

// IsValid reports whether r is one of the defined roles.
func (r Role) IsValid() bool {
	return r.Rank() > 0
}

// String implements [fmt.Stringer].
func (r Role) String() string { return string(r) }

// # Role Hierarchy

// Rank maps a role to its position in the hierarchy. Unknown roles rank 0.
func (r Role) Rank() int {

	// Linear scale (10-40) allows for future intermediate roles
	switch r {
	case RoleSuperAdmin:
		return 40
	case RoleAdmin:
		return 30
	case RoleManager:
		return 20
	case RoleMember:
		return 10
	default:
		return 0
	}
}

// Outranks reports whether r has authority over other.
//
// A role outranks every role strictly below it. SUPER_ADMIN is the apex and
// also outranks its own rank; no other same-rank authority exists.
func (r Role) Outranks(other Role) bool {
	if !r.IsValid() || !other.IsValid() {
		return false
	}
	if r == RoleSuperAdmin {
		return true
	}
	return r.Rank() > other.Rank()
}
