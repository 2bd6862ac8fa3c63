// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/users/auth"
)

// memoryStore is the shared state behind memoryRepository values.
type memoryStore struct {
	txMu sync.Mutex // serializes transactions like the role lock does

	mu      sync.RWMutex
	users   map[string]*auth.User
	removed map[string]bool

	findAllCalls atomic.Int64
	findAllDelay time.Duration
	locks        atomic.Int64
}

// memoryRepository implements Repository in memory. A transaction works on a
// private copy that replaces the shared state on commit.
type memoryRepository struct {
	store *memoryStore
	tx    *memoryStore
}

func newMemoryRepository(users ...*auth.User) *memoryRepository {
	store := &memoryStore{users: map[string]*auth.User{}, removed: map[string]bool{}}
	for _, user := range users {
		copied := *user
		store.users[user.ID] = &copied
	}
	return &memoryRepository{store: store}
}

func (r *memoryRepository) read(fn func(state *memoryStore)) {
	if r.tx != nil {
		fn(r.tx)
		return
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fn(r.store)
}

func (r *memoryRepository) write(fn func(state *memoryStore)) {
	if r.tx != nil {
		fn(r.tx)
		return
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fn(r.store)
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (*auth.User, error) {
	var found *auth.User
	r.read(func(state *memoryStore) {
		if user, ok := state.users[id]; ok && !state.removed[id] {
			copied := *user
			found = &copied
		}
	})
	if found == nil {
		return nil, apperr.NotFound("User")
	}
	return found, nil
}

func (r *memoryRepository) FindByIDForUpdate(ctx context.Context, id string) (*auth.User, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	var found *auth.User
	r.read(func(state *memoryStore) {
		for id, user := range state.users {
			if strings.EqualFold(user.Email, email) && !state.removed[id] {
				copied := *user
				found = &copied
			}
		}
	})
	if found == nil {
		return nil, apperr.NotFound("User")
	}
	return found, nil
}

func (r *memoryRepository) FindAll(_ context.Context, filter Filter) ([]*auth.User, error) {
	r.store.findAllCalls.Add(1)

	users := []*auth.User{}
	r.read(func(state *memoryStore) {
		for id, user := range state.users {
			if state.removed[id] || (!filter.IncludeInactive && !user.IsActive) {
				continue
			}
			if filter.Department != "" && strings.ToLower(user.Department) != filter.Department {
				continue
			}
			copied := *user
			users = append(users, &copied)
		}
	})

	// Delay after reading, like a slow query whose snapshot is already taken.
	time.Sleep(r.store.findAllDelay)
	return users, nil
}

func (r *memoryRepository) UpdateRole(_ context.Context, id string, role sec.Role) (*auth.User, error) {
	var updated *auth.User
	r.write(func(state *memoryStore) {
		if user, ok := state.users[id]; ok && !state.removed[id] {
			user.Role = role
			user.UpdatedAt = time.Now()
			copied := *user
			updated = &copied
		}
	})
	if updated == nil {
		return nil, apperr.NotFound("User")
	}
	return updated, nil
}

func (r *memoryRepository) CountByRole(_ context.Context, role sec.Role, activeOnly bool) (int, error) {
	count := 0
	r.read(func(state *memoryStore) {
		for id, user := range state.users {
			if user.Role == role && !state.removed[id] && (!activeOnly || user.IsActive) {
				count++
			}
		}
	})
	return count, nil
}

func (r *memoryRepository) SoftDelete(_ context.Context, id string) error {
	found := false
	r.write(func(state *memoryStore) {
		if user, ok := state.users[id]; ok && !state.removed[id] {
			user.IsActive = false
			state.removed[id] = true
			found = true
		}
	})
	if !found {
		return apperr.NotFound("User")
	}
	return nil
}

func (r *memoryRepository) LockRole(context.Context, sec.Role) error {
	if r.tx == nil {
		return errTxRequired
	}
	r.store.locks.Add(1)
	return nil
}

func (r *memoryRepository) Transact(_ context.Context, fn func(tx Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.mu.RLock()
	snapshot := &memoryStore{users: map[string]*auth.User{}, removed: map[string]bool{}}
	for id, user := range r.store.users {
		copied := *user
		snapshot.users[id] = &copied
	}
	for id := range r.store.removed {
		snapshot.removed[id] = true
	}
	r.store.mu.RUnlock()

	if err := fn(&memoryRepository{store: r.store, tx: snapshot}); err != nil {
		return err
	}

	r.store.mu.Lock()
	r.store.users = snapshot.users
	r.store.removed = snapshot.removed
	r.store.mu.Unlock()
	return nil
}

// user reads the committed state of id, including removed accounts.
func (r *memoryRepository) user(id string) *auth.User {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	copied := *r.store.users[id]
	return &copied
}

// memoryCache implements SnapshotCache with generation-scoped slots.
type memoryCache struct {
	mu          sync.Mutex
	generation  int
	entries     map[Slot][]Level
	invalidated int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[Slot][]Level{}}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]Level, Slot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := Slot(strings.Repeat("+", c.generation) + key)
	return c.entries[slot], slot, nil
}

func (c *memoryCache) Set(_ context.Context, slot Slot, levels []Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[slot] = levels
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.invalidated++
	return nil
}
