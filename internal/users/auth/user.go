// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the user identity layer: the User entity, credential
checks, and access token issuance.

# Architecture

Entities defined here are shared by the account and hierarchy packages, which
read and mutate the same users.account rows.
*/
package auth

import (
	"time"

	"github.com/taibuivan/workhub/internal/platform/sec"
)

// # Domain Entities

// User represents a member of a Workhub workspace.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // Explicitly omitted from JSON for security.
	Role         sec.Role  `json:"role"`
	Department   string    `json:"department,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// # Field Identifiers

const (
	FieldEmail      = "email"
	FieldPassword   = "password"
	FieldName       = "name"
	FieldDepartment = "department"
)
