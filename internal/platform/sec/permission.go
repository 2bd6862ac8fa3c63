// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # Permissions

// Permission is a named capability derived from a [Role]. Permissions are
// computed on demand and never persisted.
type Permission string

const (
	PermViewProjects   Permission = "VIEW_PROJECTS"
	PermViewTasks      Permission = "VIEW_TASKS"
	PermUpdateOwnTasks Permission = "UPDATE_OWN_TASKS"
	PermViewHierarchy  Permission = "VIEW_HIERARCHY"

	PermCreateProject Permission = "CREATE_PROJECT"
	PermUpdateProject Permission = "UPDATE_PROJECT"
	PermCreateTask    Permission = "CREATE_TASK"
	PermAssignTask    Permission = "ASSIGN_TASK"
	PermPromoteUsers  Permission = "PROMOTE_USERS"

	PermDeleteProject Permission = "DELETE_PROJECT"
	PermManageUsers   Permission = "MANAGE_USERS"
	PermViewReports   Permission = "VIEW_REPORTS"

	PermManageAdmins   Permission = "MANAGE_ADMINS"
	PermManageSettings Permission = "MANAGE_SETTINGS"
)

// grants holds the permissions each role adds on top of the role below it.
var grants = map[Role][]Permission{
	RoleMember:     {PermViewProjects, PermViewTasks, PermUpdateOwnTasks, PermViewHierarchy},
	RoleManager:    {PermCreateProject, PermUpdateProject, PermCreateTask, PermAssignTask, PermPromoteUsers},
	RoleAdmin:      {PermDeleteProject, PermManageUsers, PermViewReports},
	RoleSuperAdmin: {PermManageAdmins, PermManageSettings},
}

// Permissions returns the cumulative capability set of r, ordered from the
// lowest granting role upward. Unknown roles have no permissions.
func (r Role) Permissions() []Permission {
	var permissions []Permission
	for _, role := range allRoles {
		if role.Rank() > r.Rank() {
			break
		}
		permissions = append(permissions, grants[role]...)
	}
	return permissions
}

// Can reports whether r grants permission.
func (r Role) Can(permission Permission) bool {
	for _, granted := range r.Permissions() {
		if granted == permission {
			return true
		}
	}
	return false
}
