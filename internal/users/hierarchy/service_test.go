// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/metrics"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/users/auth"
	"github.com/taibuivan/workhub/pkg/slice"
)

const (
	rootID    = "00000000-0000-4000-8000-000000000001"
	owner2ID  = "00000000-0000-4000-8000-000000000002"
	adminID   = "00000000-0000-4000-8000-000000000003"
	managerID = "00000000-0000-4000-8000-000000000004"
	memberID  = "00000000-0000-4000-8000-000000000005"
	idleID    = "00000000-0000-4000-8000-000000000006"
	unknownID = "00000000-0000-4000-8000-0000000000ff"
)

func newTestUser(id, name string, role sec.Role, active bool) *auth.User {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &auth.User{
		ID:         id,
		Email:      name + "@workhub.test",
		Name:       name,
		Role:       role,
		Department: "engineering",
		IsActive:   active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// workspace seeds one active user per role plus an inactive member.
func workspace() *memoryRepository {
	return newMemoryRepository(
		newTestUser(rootID, "root", superAdmin, true),
		newTestUser(adminID, "alice", admin, true),
		newTestUser(managerID, "mark", manager, true),
		newTestUser(memberID, "Bob", member, true),
		newTestUser(idleID, "idle", member, false),
	)
}

func newTestService(repo *memoryRepository) (*Service, *metrics.Metrics, *memoryCache) {
	m := metrics.New(prometheus.NewRegistry())
	cache := newMemoryCache()
	return NewService(repo, cache, m), m, cache
}

func TestService_PromoteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("admin_promotes_member_to_manager", func(t *testing.T) {
		repo := workspace()
		service, m, cache := newTestService(repo)

		updated, err := service.PromoteUser(ctx, PromotionRequest{ActorID: adminID, TargetUserID: memberID, NewRole: manager})
		require.NoError(t, err)
		assert.Equal(t, manager, updated.Role)
		assert.Equal(t, manager, repo.user(memberID).Role)
		assert.Equal(t, 1, cache.invalidated)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyOperationsTotal.WithLabelValues(opPromote, metrics.OutcomeSuccess)))
	})

	t.Run("super_admin_appoints_super_admin", func(t *testing.T) {
		repo := workspace()
		service, _, _ := newTestService(repo)

		updated, err := service.PromoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: adminID, NewRole: superAdmin})
		require.NoError(t, err)
		assert.Equal(t, superAdmin, updated.Role)
	})

	t.Run("admin_cannot_grant_own_rank", func(t *testing.T) {
		repo := workspace()
		service, m, cache := newTestService(repo)

		_, err := service.PromoteUser(ctx, PromotionRequest{ActorID: adminID, TargetUserID: managerID, NewRole: admin})
		assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientPrivilege))
		assert.Equal(t, manager, repo.user(managerID).Role)
		assert.Zero(t, cache.invalidated)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyOperationsTotal.WithLabelValues(opPromote, metrics.OutcomeDenied)))
	})

	t.Run("manager_cannot_promote", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		_, err := service.PromoteUser(ctx, PromotionRequest{ActorID: managerID, TargetUserID: memberID, NewRole: manager})
		assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientPrivilege))
	})

	t.Run("new_role_must_be_higher", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		_, err := service.PromoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: managerID, NewRole: member})
		ae := apperr.As(err)
		require.NotNil(t, ae)
		assert.Equal(t, apperr.CodeValidation, ae.Code)
		require.Len(t, ae.Details, 1)
		assert.Equal(t, FieldNewRole, ae.Details[0].Field)
	})

	t.Run("unknown_target", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		_, err := service.PromoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: unknownID, NewRole: manager})
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("inactive_actor", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, idleID, superAdmin)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		_, err = service.PromoteUser(ctx, PromotionRequest{ActorID: idleID, TargetUserID: memberID, NewRole: manager})
		assert.True(t, apperr.HasCode(err, apperr.CodeForbidden))
	})
}

func TestService_DemoteUser(t *testing.T) {
	ctx := context.Background()

	t.Run("super_admin_demotes_admin", func(t *testing.T) {
		repo := workspace()
		service, _, _ := newTestService(repo)

		updated, err := service.DemoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: adminID, NewRole: member})
		require.NoError(t, err)
		assert.Equal(t, member, updated.Role)
		assert.Equal(t, int64(1), repo.store.locks.Load())
	})

	t.Run("last_super_admin_cannot_demote_self", func(t *testing.T) {
		repo := workspace()
		service, m, _ := newTestService(repo)

		_, err := service.DemoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: rootID, NewRole: admin})
		assert.True(t, apperr.HasCode(err, apperr.CodeLastSuperAdmin))
		assert.Equal(t, superAdmin, repo.user(rootID).Role)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyOperationsTotal.WithLabelValues(opDemote, metrics.OutcomeDenied)))
	})

	t.Run("second_super_admin_may_step_down", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, adminID, superAdmin)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		updated, err := service.DemoteUser(ctx, PromotionRequest{ActorID: adminID, TargetUserID: adminID, NewRole: admin})
		require.NoError(t, err)
		assert.Equal(t, admin, updated.Role)
	})

	t.Run("admin_cannot_demote_peer", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, managerID, admin)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		_, err = service.DemoteUser(ctx, PromotionRequest{ActorID: adminID, TargetUserID: managerID, NewRole: member})
		assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientPrivilege))
	})

	t.Run("new_role_must_be_lower", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		_, err := service.DemoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: memberID, NewRole: manager})
		assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	})
}

// Two super administrators demoting each other at once: the role lock
// serializes them and the second one sees a single remaining SUPER_ADMIN.
func TestService_DemoteUser_ConcurrentMutualDemotion(t *testing.T) {
	ctx := context.Background()

	for range 20 {
		repo := newMemoryRepository(
			newTestUser(rootID, "root", superAdmin, true),
			newTestUser(owner2ID, "owner", superAdmin, true),
		)
		service, _, _ := newTestService(repo)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})

		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = service.DemoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: owner2ID, NewRole: admin})
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = service.DemoteUser(ctx, PromotionRequest{ActorID: owner2ID, TargetUserID: rootID, NewRole: admin})
		}()
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, apperr.HasCode(err, apperr.CodeLastSuperAdmin), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		count, err := repo.CountByRole(ctx, superAdmin, true)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	}
}

/*
TestService_RandomOperations runs a seeded mix of promotions, demotions and
removals by arbitrary actors and checks after every step that an active
SUPER_ADMIN remains.
*/
func TestService_RandomOperations(t *testing.T) {
	ctx := context.Background()

	for _, seed := range []uint64{1, 7, 42, 2026} {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			ids := []string{rootID, owner2ID, adminID, managerID, memberID, idleID, unknownID}
			repo := newMemoryRepository(
				newTestUser(rootID, "root", superAdmin, true),
				newTestUser(owner2ID, "owner", superAdmin, true),
				newTestUser(adminID, "alice", admin, true),
				newTestUser(managerID, "mark", manager, true),
				newTestUser(memberID, "Bob", member, true),
				newTestUser(idleID, "idle", member, false),
			)
			service, _, _ := newTestService(repo)
			random := rand.New(rand.NewPCG(seed, seed))
			roles := sec.AllRoles()

			for step := range 300 {
				actorID := ids[random.IntN(len(ids))]
				targetID := ids[random.IntN(len(ids))]
				request := PromotionRequest{ActorID: actorID, TargetUserID: targetID, NewRole: roles[random.IntN(len(roles))]}

				var err error
				switch random.IntN(3) {
				case 0:
					_, err = service.PromoteUser(ctx, request)
				case 1:
					_, err = service.DemoteUser(ctx, request)
				default:
					err = service.RemoveUser(ctx, actorID, targetID)
				}
				if err != nil {
					ae := apperr.As(err)
					require.NotNil(t, ae, "step %d: unexpected error: %v", step, err)
					require.Less(t, ae.HTTPStatus, 500, "step %d", step)
				}

				count, err := repo.CountByRole(ctx, superAdmin, true)
				require.NoError(t, err)
				require.GreaterOrEqual(t, count, 1, "step %d left no active SUPER_ADMIN", step)
			}
		})
	}
}

func TestService_RemoveUser(t *testing.T) {
	ctx := context.Background()

	t.Run("admin_removes_member", func(t *testing.T) {
		repo := workspace()
		service, m, cache := newTestService(repo)

		require.NoError(t, service.RemoveUser(ctx, adminID, memberID))

		removed := repo.user(memberID)
		assert.False(t, removed.IsActive)
		_, err := repo.FindByID(ctx, memberID)
		assert.True(t, apperr.IsNotFound(err))
		assert.Equal(t, 1, cache.invalidated)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyOperationsTotal.WithLabelValues(opRemove, metrics.OutcomeSuccess)))
	})

	t.Run("self_removal_is_rejected_first", func(t *testing.T) {
		repo := workspace()
		service, _, _ := newTestService(repo)

		err := service.RemoveUser(ctx, rootID, rootID)
		assert.True(t, apperr.HasCode(err, apperr.CodeSelfOperationForbidden))
		assert.Zero(t, repo.store.locks.Load())
	})

	t.Run("super_admin_removes_peer", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, adminID, superAdmin)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		require.NoError(t, service.RemoveUser(ctx, rootID, adminID))

		err = service.RemoveUser(ctx, rootID, adminID)
		assert.True(t, apperr.IsNotFound(err))

		count, err := repo.CountByRole(ctx, superAdmin, true)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("admin_cannot_remove_super_admin", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, managerID, superAdmin)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		err = service.RemoveUser(ctx, adminID, rootID)
		assert.True(t, apperr.HasCode(err, apperr.CodeInsufficientPrivilege))
	})

	t.Run("sole_super_admin_target", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		err := service.RemoveUser(ctx, adminID, rootID)
		assert.True(t, apperr.HasCode(err, apperr.CodeLastSuperAdmin))
	})
}

func TestService_GetHierarchy(t *testing.T) {
	ctx := context.Background()

	t.Run("levels_and_ordering", func(t *testing.T) {
		repo := workspace()
		_, err := repo.UpdateRole(ctx, managerID, member)
		require.NoError(t, err)
		service, _, _ := newTestService(repo)

		levels, err := service.GetHierarchy(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, levels, 4)

		assert.Equal(t, []sec.Role{superAdmin, admin, manager, member},
			[]sec.Role{levels[0].Role, levels[1].Role, levels[2].Role, levels[3].Role})
		assert.Empty(t, levels[2].Users)
		assert.NotNil(t, levels[2].Users)

		names := []string{}
		for _, user := range levels[3].Users {
			names = append(names, user.Name)
		}
		assert.Equal(t, []string{"Bob", "mark"}, names)
	})

	t.Run("include_inactive_and_department", func(t *testing.T) {
		repo := workspace()
		service, _, _ := newTestService(repo)

		levels, err := service.GetHierarchy(ctx, Filter{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, levels[3].Users, 2)

		levels, err = service.GetHierarchy(ctx, Filter{Department: "sales"})
		require.NoError(t, err)
		for _, level := range levels {
			assert.Empty(t, level.Users)
		}
	})

	t.Run("cache_hit_and_invalidation", func(t *testing.T) {
		repo := workspace()
		service, m, _ := newTestService(repo)

		_, err := service.GetHierarchy(ctx, Filter{})
		require.NoError(t, err)
		_, err = service.GetHierarchy(ctx, Filter{})
		require.NoError(t, err)

		assert.Equal(t, int64(1), repo.store.findAllCalls.Load())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyCacheTotal.WithLabelValues(metrics.CacheHit)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HierarchyCacheTotal.WithLabelValues(metrics.CacheMiss)))

		_, err = service.PromoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: memberID, NewRole: admin})
		require.NoError(t, err)

		levels, err := service.GetHierarchy(ctx, Filter{})
		require.NoError(t, err)
		assert.Equal(t, int64(2), repo.store.findAllCalls.Load())
		assert.Len(t, levels[1].Users, 2)
	})

	t.Run("without_cache", func(t *testing.T) {
		repo := workspace()
		service := NewService(repo, nil, nil)

		for range 2 {
			_, err := service.GetHierarchy(ctx, Filter{})
			require.NoError(t, err)
		}
		assert.Equal(t, int64(2), repo.store.findAllCalls.Load())
	})

	t.Run("concurrent_misses_share_one_load", func(t *testing.T) {
		repo := workspace()
		repo.store.findAllDelay = 50 * time.Millisecond
		service := NewService(repo, nil, nil)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				levels, err := service.GetHierarchy(ctx, Filter{})
				assert.NoError(t, err)
				assert.Len(t, levels, 4)
			}()
		}
		wg.Wait()

		assert.Less(t, repo.store.findAllCalls.Load(), int64(8))
	})

	t.Run("read_after_change_skips_inflight_load", func(t *testing.T) {
		for _, cached := range []bool{false, true} {
			repo := workspace()
			repo.store.findAllDelay = 200 * time.Millisecond

			var cache SnapshotCache
			if cached {
				cache = newMemoryCache()
			}
			service := NewService(repo, cache, nil)

			done := make(chan struct{})
			go func() {
				defer close(done)
				_, err := service.GetHierarchy(ctx, Filter{})
				assert.NoError(t, err)
			}()
			require.Eventually(t, func() bool {
				return repo.store.findAllCalls.Load() == 1
			}, time.Second, time.Millisecond)

			_, err := service.PromoteUser(ctx, PromotionRequest{ActorID: rootID, TargetUserID: managerID, NewRole: admin})
			require.NoError(t, err)

			levels, err := service.GetHierarchy(ctx, Filter{})
			require.NoError(t, err)
			ids := slice.Map(levels[1].Users, func(user *auth.User) string { return user.ID })
			assert.Contains(t, ids, managerID, "cached=%v", cached)

			<-done
		}
	})
}

func TestService_GetPromotableUsers(t *testing.T) {
	service, _, _ := newTestService(workspace())

	users, err := service.GetPromotableUsers(context.Background(), adminID)
	require.NoError(t, err)

	ids := []string{}
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	assert.Equal(t, []string{managerID, memberID}, ids)

	users, err = service.GetPromotableUsers(context.Background(), memberID)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestService_GetAvailableRoles(t *testing.T) {
	service, _, _ := newTestService(workspace())

	roles, err := service.GetAvailableRoles(context.Background(), rootID)
	require.NoError(t, err)
	assert.Equal(t, sec.AllRoles(), roles)

	roles, err = service.GetAvailableRoles(context.Background(), adminID)
	require.NoError(t, err)
	assert.Equal(t, []sec.Role{member, manager}, roles)

	_, err = service.GetAvailableRoles(context.Background(), unknownID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_VerifySuperAdminCount(t *testing.T) {
	repo := workspace()
	service, m, _ := newTestService(repo)

	status, err := service.VerifySuperAdminCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SuperAdminStatus{Count: 1, IsSafe: true, CanRemoveOne: false}, status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SuperAdminsActive))
}

func TestService_EnsureSuperAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("already_satisfied", func(t *testing.T) {
		service, _, _ := newTestService(workspace())

		promoted, err := service.EnsureSuperAdmin(ctx, "")
		require.NoError(t, err)
		assert.False(t, promoted)
	})

	t.Run("bootstraps_configured_account", func(t *testing.T) {
		repo := newMemoryRepository(newTestUser(memberID, "bob", member, true))
		service, _, cache := newTestService(repo)

		promoted, err := service.EnsureSuperAdmin(ctx, "BOB@workhub.test")
		require.NoError(t, err)
		assert.True(t, promoted)
		assert.Equal(t, superAdmin, repo.user(memberID).Role)
		assert.Equal(t, 1, cache.invalidated)
	})

	t.Run("no_account_configured", func(t *testing.T) {
		service, _, _ := newTestService(newMemoryRepository())

		_, err := service.EnsureSuperAdmin(ctx, "")
		assert.True(t, apperr.HasCode(err, apperr.CodeLastSuperAdmin))
	})

	t.Run("unknown_or_inactive_account", func(t *testing.T) {
		repo := newMemoryRepository(newTestUser(idleID, "idle", member, false))
		service, _, _ := newTestService(repo)

		_, err := service.EnsureSuperAdmin(ctx, "ghost@workhub.test")
		assert.True(t, apperr.IsNotFound(err))

		_, err = service.EnsureSuperAdmin(ctx, "idle@workhub.test")
		assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	})
}
