// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/ctxutil"
	"github.com/taibuivan/workhub/internal/platform/metrics"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/platform/validate"
	"github.com/taibuivan/workhub/internal/users/auth"
	"github.com/taibuivan/workhub/pkg/slice"
)

// Operation labels used in logs and metrics.
const (
	opPromote = "promote"
	opDemote  = "demote"
	opRemove  = "remove"
)

// FieldNewRole is the request field carrying the requested role.
const FieldNewRole = "newRole"

// Service implements the hierarchy use cases.
type Service struct {
	repository Repository
	cache      SnapshotCache
	metrics    *metrics.Metrics
	loads      singleflight.Group

	// generation advances on every accepted change. Loads are shared only
	// within one generation.
	generation atomic.Uint64
}

// NewService constructs a hierarchy [Service]. cache and m may be nil.
func NewService(repository Repository, cache SnapshotCache, m *metrics.Metrics) *Service {
	return &Service{repository: repository, cache: cache, metrics: m}
}

// # Read Views

/*
GetHierarchy returns users grouped by role, levels ordered by rank descending
and users within a level by name. Every role has a level, possibly empty.

Snapshots are served from the cache when warm; concurrent misses for the same
filter and generation share one repository read.
*/
func (service *Service) GetHierarchy(ctx context.Context, filter Filter) ([]Level, error) {
	key := filter.cacheKey()
	generation := service.generation.Load()

	var slot Slot
	if service.cache != nil {
		levels, cachedSlot, err := service.cache.Get(ctx, key)
		switch {
		case err != nil:
			service.metrics.CacheLookup(metrics.CacheError)
			ctxutil.GetLogger(ctx).WarnContext(ctx, "hierarchy_cache_get_failed", slog.Any("error", err))
		case levels != nil:
			service.metrics.CacheLookup(metrics.CacheHit)
			return levels, nil
		default:
			service.metrics.CacheLookup(metrics.CacheMiss)
			slot = cachedSlot
		}
	}

	// The shared load must outlive any single caller's cancellation.
	loadCtx := context.WithoutCancel(ctx)
	flightKey := fmt.Sprintf("%d/%s/%s", generation, key, slot)
	result, err, _ := service.loads.Do(flightKey, func() (any, error) {
		users, err := service.repository.FindAll(loadCtx, filter)
		if err != nil {
			return nil, fmt.Errorf("hierarchy_service_find_all_failed: %w", err)
		}

		levels := groupByRole(users)

		if service.cache != nil && slot != "" {
			if err := service.cache.Set(loadCtx, slot, levels); err != nil {
				ctxutil.GetLogger(ctx).WarnContext(ctx, "hierarchy_cache_set_failed", slog.Any("error", err))
			}
		}
		return levels, nil
	})
	if err != nil {
		return nil, err
	}

	return result.([]Level), nil
}

// GetPromotableUsers lists the active users, other than the actor, whose role
// ranks below the actor's. Highest role first.
func (service *Service) GetPromotableUsers(ctx context.Context, actorID string) ([]*auth.User, error) {
	actor, err := service.loadActor(ctx, service.repository, actorID)
	if err != nil {
		return nil, err
	}

	users, err := service.repository.FindAll(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("hierarchy_service_find_all_failed: %w", err)
	}

	promotable := slice.Filter(users, func(user *auth.User) bool {
		return user.ID != actor.ID && user.IsActive && user.Role.Rank() < actor.Role.Rank()
	})

	collator := newCollator()
	sort.SliceStable(promotable, func(i, j int) bool {
		if promotable[i].Role.Rank() != promotable[j].Role.Rank() {
			return promotable[i].Role.Rank() > promotable[j].Role.Rank()
		}
		return collator.CompareString(promotable[i].Name, promotable[j].Name) < 0
	})

	return promotable, nil
}

// GetAvailableRoles returns the roles the actor may assign, ascending.
func (service *Service) GetAvailableRoles(ctx context.Context, actorID string) ([]sec.Role, error) {
	actor, err := service.loadActor(ctx, service.repository, actorID)
	if err != nil {
		return nil, err
	}
	return AssignableRoles(actor.Role), nil
}

// VerifySuperAdminCount reports the active SUPER_ADMIN count.
func (service *Service) VerifySuperAdminCount(ctx context.Context) (SuperAdminStatus, error) {
	count, err := service.repository.CountByRole(ctx, sec.RoleSuperAdmin, true)
	if err != nil {
		return SuperAdminStatus{}, fmt.Errorf("hierarchy_service_count_failed: %w", err)
	}
	service.metrics.SuperAdmins(count)
	return newSuperAdminStatus(count), nil
}

// # Mutations

/*
PromoteUser moves the target to a higher role.

Returns:
  - *auth.User: The updated target
  - error: NotFound, ValidationFailed (newRole not above the current role),
    InsufficientPrivilege, or storage failures
*/
func (service *Service) PromoteUser(ctx context.Context, input PromotionRequest) (*auth.User, error) {
	var updated *auth.User

	err := service.repository.Transact(ctx, func(tx Repository) error {
		actor, err := service.loadActor(ctx, tx, input.ActorID)
		if err != nil {
			return err
		}
		target, err := service.loadTarget(ctx, tx, input.TargetUserID)
		if err != nil {
			return err
		}

		direction := &validate.Validator{}
		direction.Custom(FieldNewRole, input.NewRole.Rank() <= target.Role.Rank(),
			fmt.Sprintf("Must be above the current role %s", target.Role))
		if err := direction.Err(); err != nil {
			return err
		}

		if err := CanPromote(actor.Role, target.Role, input.NewRole).Err(); err != nil {
			return err
		}

		updated, err = tx.UpdateRole(ctx, target.ID, input.NewRole)
		if err != nil {
			return fmt.Errorf("hierarchy_service_update_role_failed: %w", err)
		}
		return nil
	})

	if err != nil {
		service.recordFailure(ctx, opPromote, input.ActorID, input.TargetUserID, err)
		return nil, err
	}

	service.recordSuccess(ctx, opPromote, input.ActorID, updated.ID, slog.String("new_role", updated.Role.String()))
	return updated, nil
}

/*
DemoteUser moves the target to a lower role.

The transaction holds the SUPER_ADMIN role lock from its first statement, so
two demotions of different super administrators serialize and the second one
observes the first one's effect on the count.

Returns:
  - *auth.User: The updated target
  - error: NotFound, ValidationFailed (newRole not below the current role),
    LastSuperAdmin, InsufficientPrivilege, or storage failures
*/
func (service *Service) DemoteUser(ctx context.Context, input PromotionRequest) (*auth.User, error) {
	var updated *auth.User

	err := service.repository.Transact(ctx, func(tx Repository) error {
		if err := tx.LockRole(ctx, sec.RoleSuperAdmin); err != nil {
			return fmt.Errorf("hierarchy_service_lock_failed: %w", err)
		}

		actor, err := service.loadActor(ctx, tx, input.ActorID)
		if err != nil {
			return err
		}
		target, err := service.loadTarget(ctx, tx, input.TargetUserID)
		if err != nil {
			return err
		}

		direction := &validate.Validator{}
		direction.Custom(FieldNewRole, input.NewRole.Rank() >= target.Role.Rank(),
			fmt.Sprintf("Must be below the current role %s", target.Role))
		if err := direction.Err(); err != nil {
			return err
		}

		superAdmins, err := service.countSuperAdminsFor(ctx, tx, target)
		if err != nil {
			return err
		}

		if err := CanDemote(actor.Role, subjectOf(target), input.NewRole, superAdmins).Err(); err != nil {
			return err
		}

		updated, err = tx.UpdateRole(ctx, target.ID, input.NewRole)
		if err != nil {
			return fmt.Errorf("hierarchy_service_update_role_failed: %w", err)
		}
		return nil
	})

	if err != nil {
		service.recordFailure(ctx, opDemote, input.ActorID, input.TargetUserID, err)
		return nil, err
	}

	service.recordSuccess(ctx, opDemote, input.ActorID, updated.ID, slog.String("new_role", updated.Role.String()))
	return updated, nil
}

/*
RemoveUser deactivates the target account under the same lock discipline as
[Service.DemoteUser].

Returns:
  - error: SelfOperationForbidden, NotFound, LastSuperAdmin,
    InsufficientPrivilege, or storage failures
*/
func (service *Service) RemoveUser(ctx context.Context, actorID, targetUserID string) error {
	err := service.repository.Transact(ctx, func(tx Repository) error {
		if actorID == targetUserID {
			return CanRemove(Subject{ID: actorID}, Subject{ID: targetUserID}, 0).Err()
		}

		if err := tx.LockRole(ctx, sec.RoleSuperAdmin); err != nil {
			return fmt.Errorf("hierarchy_service_lock_failed: %w", err)
		}

		actor, err := service.loadActor(ctx, tx, actorID)
		if err != nil {
			return err
		}
		target, err := service.loadTarget(ctx, tx, targetUserID)
		if err != nil {
			return err
		}

		superAdmins, err := service.countSuperAdminsFor(ctx, tx, target)
		if err != nil {
			return err
		}

		if err := CanRemove(subjectOf(actor), subjectOf(target), superAdmins).Err(); err != nil {
			return err
		}

		if err := tx.SoftDelete(ctx, target.ID); err != nil {
			return fmt.Errorf("hierarchy_service_soft_delete_failed: %w", err)
		}
		return nil
	})

	if err != nil {
		service.recordFailure(ctx, opRemove, actorID, targetUserID, err)
		return err
	}

	service.recordSuccess(ctx, opRemove, actorID, targetUserID)
	return nil
}

/*
EnsureSuperAdmin makes the SUPER_ADMIN invariant hold at startup.

When no active SUPER_ADMIN exists and email names an active account, that
account is promoted. An empty email only reports the state.

Returns:
  - bool: Whether an account was promoted
  - error: NotFound for an unknown email, Conflict for a deactivated one,
    LastSuperAdmin when no super administrator exists and none can be
    appointed, or storage failures
*/
func (service *Service) EnsureSuperAdmin(ctx context.Context, email string) (bool, error) {
	var promoted *auth.User

	err := service.repository.Transact(ctx, func(tx Repository) error {
		if err := tx.LockRole(ctx, sec.RoleSuperAdmin); err != nil {
			return fmt.Errorf("hierarchy_service_lock_failed: %w", err)
		}

		count, err := tx.CountByRole(ctx, sec.RoleSuperAdmin, true)
		if err != nil {
			return fmt.Errorf("hierarchy_service_count_failed: %w", err)
		}
		if count > 0 {
			return nil
		}

		if email == "" {
			return apperr.LastSuperAdmin("No active SUPER_ADMIN exists and no bootstrap account is configured")
		}

		candidate, err := tx.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if !candidate.IsActive {
			return apperr.Conflict("Bootstrap account is deactivated")
		}

		promoted, err = tx.UpdateRole(ctx, candidate.ID, sec.RoleSuperAdmin)
		if err != nil {
			return fmt.Errorf("hierarchy_service_update_role_failed: %w", err)
		}
		return nil
	})

	if err != nil || promoted == nil {
		return false, err
	}

	service.invalidate(ctx)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "super_admin_bootstrapped", slog.String("user_id", promoted.ID))
	return true, nil
}

// # Helpers

func (service *Service) loadActor(ctx context.Context, repository Repository, actorID string) (*auth.User, error) {
	actor, err := repository.FindByID(ctx, actorID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("Acting user")
		}
		return nil, fmt.Errorf("hierarchy_service_find_actor_failed: %w", err)
	}
	if !actor.IsActive {
		return nil, apperr.Forbidden("Your account is deactivated")
	}
	return actor, nil
}

func (service *Service) loadTarget(ctx context.Context, repository Repository, targetID string) (*auth.User, error) {
	target, err := repository.FindByIDForUpdate(ctx, targetID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("User")
		}
		return nil, fmt.Errorf("hierarchy_service_find_target_failed: %w", err)
	}
	return target, nil
}

// countSuperAdminsFor counts active super administrators when the target is
// one; other targets cannot affect the count.
func (service *Service) countSuperAdminsFor(ctx context.Context, tx Repository, target *auth.User) (int, error) {
	if target.Role != sec.RoleSuperAdmin {
		return 0, nil
	}
	count, err := tx.CountByRole(ctx, sec.RoleSuperAdmin, true)
	if err != nil {
		return 0, fmt.Errorf("hierarchy_service_count_failed: %w", err)
	}
	return count, nil
}

func subjectOf(user *auth.User) Subject {
	return Subject{ID: user.ID, Role: user.Role, Active: user.IsActive}
}

func (service *Service) recordSuccess(ctx context.Context, operation, actorID, targetID string, attributes ...any) {
	service.invalidate(ctx)
	service.metrics.Operation(operation, metrics.OutcomeSuccess)

	attributes = append([]any{
		slog.String("operation", operation),
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
	}, attributes...)
	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_"+pastTense(operation), attributes...)
}

func (service *Service) recordFailure(ctx context.Context, operation, actorID, targetID string, err error) {
	ae := apperr.As(err)
	if ae == nil || ae.HTTPStatus >= 500 {
		service.metrics.Operation(operation, metrics.OutcomeError)
		return
	}

	service.metrics.Operation(operation, metrics.OutcomeDenied)
	ctxutil.GetLogger(ctx).WarnContext(ctx, "hierarchy_change_denied",
		slog.String("operation", operation),
		slog.String("actor_id", actorID),
		slog.String("target_id", targetID),
		slog.String("code", ae.Code),
	)
}

func (service *Service) invalidate(ctx context.Context) {
	service.generation.Add(1)
	if service.cache == nil {
		return
	}
	if err := service.cache.Invalidate(ctx); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "hierarchy_cache_invalidate_failed", slog.Any("error", err))
	}
}

func pastTense(operation string) string {
	switch operation {
	case opPromote:
		return "promoted"
	case opDemote:
		return "demoted"
	default:
		return "removed"
	}
}

// newCollator returns a fresh collator; collators are not safe for concurrent use.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.IgnoreCase)
}

// groupByRole builds one level per role, highest rank first.
func groupByRole(users []*auth.User) []Level {
	roles := sec.AllRoles()
	levels := make([]Level, 0, len(roles))
	index := make(map[sec.Role]int, len(roles))

	for i := len(roles) - 1; i >= 0; i-- {
		index[roles[i]] = len(levels)
		levels = append(levels, Level{Role: roles[i], Rank: roles[i].Rank(), Users: []*auth.User{}})
	}

	for _, user := range users {
		position, ok := index[user.Role]
		if !ok {
			continue
		}
		levels[position].Users = append(levels[position].Users, user)
	}

	collator := newCollator()
	for i := range levels {
		members := levels[i].Users
		sort.SliceStable(members, func(a, b int) bool {
			return collator.CompareString(members[a].Name, members[b].Name) < 0
		})
	}

	return levels
}
