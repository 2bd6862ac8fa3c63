// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account serves the authenticated user's own view of their identity:
the profile and the capabilities their role grants.

# Architecture

  - Entities: Capabilities (DTO).
  - Domain: This package depends on the auth package for the User entity.
*/
package account

import (
	"github.com/taibuivan/workhub/internal/platform/sec"
)

// # Domain Entities

// Capabilities lists what the current role allows. It is recomputed from the
// stored role on every request, never persisted.
type Capabilities struct {
	Role        sec.Role         `json:"role"`
	Rank        int              `json:"rank"`
	Permissions []sec.Permission `json:"permissions"`
}

// capabilitiesOf derives the [Capabilities] of role.
func capabilitiesOf(role sec.Role) Capabilities {
	permissions := role.Permissions()
	if permissions == nil {
		permissions = []sec.Permission{}
	}
	return Capabilities{Role: role, Rank: role.Rank(), Permissions: permissions}
}
