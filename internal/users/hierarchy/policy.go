// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"fmt"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/sec"
)

// # Decisions

// Denial reasons. Each maps to one client-facing error.
const (
	ReasonInsufficientPrivilege = "insufficient_privilege"
	ReasonSelfOperation         = "self_operation"
	ReasonLastSuperAdmin        = "last_super_admin"
)

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed bool
	Reason  string
	Message string
}

var allowed = Decision{Allowed: true}

func deny(reason, format string, args ...any) Decision {
	return Decision{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Err converts a denial into its [apperr.AppError]; an allowed decision yields nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonSelfOperation:
		return apperr.SelfOperationForbidden(d.Message)
	case ReasonLastSuperAdmin:
		return apperr.LastSuperAdmin(d.Message)
	default:
		return apperr.InsufficientPrivilege(d.Message)
	}
}

// Subject is a user as seen by the policy.
type Subject struct {
	ID     string
	Role   sec.Role
	Active bool
}

// # Rules

// CanPromote allows the change only when actor outranks both the target's
// current role and newRole.
func CanPromote(actor, target, newRole sec.Role) Decision {
	if !actor.Outranks(target) {
		return deny(ReasonInsufficientPrivilege, "%s cannot manage a %s", actor, target)
	}
	if !actor.Outranks(newRole) {
		return deny(ReasonInsufficientPrivilege, "%s cannot assign the %s role", actor, newRole)
	}
	return allowed
}

// CanDemote allows the change only when actor outranks the target and may
// assign newRole. Taking the SUPER_ADMIN role away from an active holder also
// requires at least one other active SUPER_ADMIN; that guard is checked first
// and applies to every actor.
func CanDemote(actor sec.Role, target Subject, newRole sec.Role, activeSuperAdmins int) Decision {
	if losesLastSuperAdmin(target, newRole, activeSuperAdmins) {
		return deny(ReasonLastSuperAdmin, "At least one active SUPER_ADMIN must remain")
	}
	return CanPromote(actor, target.Role, newRole)
}

// CanRemove checks, in order: self-removal, the last SUPER_ADMIN guard, and
// that actor outranks the target.
func CanRemove(actor, target Subject, activeSuperAdmins int) Decision {
	if actor.ID == target.ID {
		return deny(ReasonSelfOperation, "You cannot remove your own account")
	}
	if losesLastSuperAdmin(target, "", activeSuperAdmins) {
		return deny(ReasonLastSuperAdmin, "At least one active SUPER_ADMIN must remain")
	}
	if !actor.Role.Outranks(target.Role) {
		return deny(ReasonInsufficientPrivilege, "%s cannot remove a %s", actor.Role, target.Role)
	}
	return allowed
}

// losesLastSuperAdmin reports whether moving target to newRole (or removing
// it, when newRole is empty) would leave no active SUPER_ADMIN.
func losesLastSuperAdmin(target Subject, newRole sec.Role, activeSuperAdmins int) bool {
	if target.Role != sec.RoleSuperAdmin || newRole == sec.RoleSuperAdmin || !target.Active {
		return false
	}
	return activeSuperAdmins < 2
}

// AssignableRoles lists the roles actor outranks, ascending. A SUPER_ADMIN
// may assign every role; a MEMBER none.
func AssignableRoles(actor sec.Role) []sec.Role {
	roles := []sec.Role{}
	for _, role := range sec.AllRoles() {
		if actor.Outranks(role) {
			roles = append(roles, role)
		}
	}
	return roles
}
