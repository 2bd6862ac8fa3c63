// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package hierarchy implements the role hierarchy of a workspace: who may promote,
demote or remove whom, and the read views the dashboard builds on.

# Architecture

  - Policy (policy.go): pure decisions over roles, no I/O.
  - Service (service.go): loads users, applies the policy and persists the
    outcome inside one storage transaction.
  - Repository (store_postgres.go): users.account access with row and
    advisory locks.
  - SnapshotCache (cache_redis.go): versioned hierarchy snapshots in Redis.

# Invariant

An accepted sequence of operations never leaves the workspace without an
active SUPER_ADMIN. Every operation that can lower that count re-counts under
the SUPER_ADMIN role lock before deciding.
*/
package hierarchy

import (
	"context"

	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/users/auth"
)

// # Read Models

// Level groups the users holding one role.
type Level struct {
	Role  sec.Role     `json:"role"`
	Rank  int          `json:"rank"`
	Users []*auth.User `json:"users"`
}

// SuperAdminStatus reports whether the super administrator invariant holds
// and whether one more super administrator could be removed.
type SuperAdminStatus struct {
	Count        int  `json:"count"`
	IsSafe       bool `json:"isSafe"`
	CanRemoveOne bool `json:"canRemoveOne"`
}

// newSuperAdminStatus derives the status from an active count.
func newSuperAdminStatus(count int) SuperAdminStatus {
	return SuperAdminStatus{
		Count:        count,
		IsSafe:       count >= 1,
		CanRemoveOne: count >= 2,
	}
}

// Filter narrows the hierarchy view.
type Filter struct {
	// Department keeps only users of one department, compared lower-cased.
	Department string
	// IncludeInactive also lists deactivated (but not removed) users.
	IncludeInactive bool
}

// cacheKey identifies the snapshot of f inside one cache generation.
func (f Filter) cacheKey() string {
	key := "all"
	if f.Department != "" {
		key = "dept=" + f.Department
	}
	if f.IncludeInactive {
		key += ":inactive"
	}
	return key
}

// # Commands

// PromotionRequest carries one role change. It lives for a single operation.
type PromotionRequest struct {
	ActorID      string
	TargetUserID string
	NewRole      sec.Role
}

// # Collaborators

// Repository is the user storage collaborator.
//
// Reads never return removed (soft-deleted) accounts. Outside [Repository.Transact]
// every call runs on its own; inside, all calls share one transaction.
type Repository interface {
	FindByID(ctx context.Context, id string) (*auth.User, error)

	// FindByIDForUpdate is FindByID that also locks the row until the
	// surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id string) (*auth.User, error)

	FindByEmail(ctx context.Context, email string) (*auth.User, error)

	FindAll(ctx context.Context, filter Filter) ([]*auth.User, error)

	UpdateRole(ctx context.Context, id string, role sec.Role) (*auth.User, error)

	// CountByRole counts accounts holding role. With activeOnly, deactivated
	// accounts are excluded too.
	CountByRole(ctx context.Context, role sec.Role, activeOnly bool) (int, error)

	// SoftDelete deactivates the account and stamps its removal time.
	SoftDelete(ctx context.Context, id string) error

	// LockRole serializes transactions that may change how many users hold
	// role. It must be called inside Transact and is held until it ends.
	LockRole(ctx context.Context, role sec.Role) error

	// Transact runs fn in one transaction, committing when fn returns nil.
	Transact(ctx context.Context, fn func(tx Repository) error) error
}

// Slot addresses a snapshot inside the cache generation current at lookup
// time. Writing to a slot after an invalidation is harmless: nobody reads it.
type Slot string

// SnapshotCache stores hierarchy snapshots. Failures are never fatal: the
// service falls back to the repository.
type SnapshotCache interface {
	// Get returns the cached levels for key, or nil levels on a miss, plus
	// the slot a fresh snapshot should be written to.
	Get(ctx context.Context, key string) ([]Level, Slot, error)
	Set(ctx context.Context, slot Slot, levels []Level) error
	Invalidate(ctx context.Context) error
}
