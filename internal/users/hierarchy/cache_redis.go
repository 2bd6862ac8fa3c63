// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/workhub/internal/platform/constants"
)

// generationKey holds the counter that namespaces every snapshot key.
const generationKey = constants.RedisKeyHierarchy + "generation"

// RedisSnapshotCache implements [SnapshotCache] with generation-scoped keys.
//
// Invalidation increments the generation instead of deleting keys, so it is a
// single atomic command and snapshots of older generations simply expire.
type RedisSnapshotCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisSnapshotCache creates a cache whose snapshots live for ttl.
func NewRedisSnapshotCache(client redis.UniversalClient, ttl time.Duration) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl}
}

// Get resolves the current generation, then looks the snapshot up in it.
func (cache *RedisSnapshotCache) Get(ctx context.Context, key string) ([]Level, Slot, error) {
	generation, err := cache.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", fmt.Errorf("redis_hierarchy_cache_generation_failed: %w", err)
	}

	slot := Slot(constants.RedisKeyHierarchy + strconv.FormatInt(generation, 10) + ":" + key)

	payload, err := cache.client.Get(ctx, string(slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, slot, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("redis_hierarchy_cache_get_failed: %w", err)
	}

	var levels []Level
	if err := json.Unmarshal(payload, &levels); err != nil {
		// A corrupt entry behaves as a miss and gets overwritten.
		return nil, slot, nil
	}
	return levels, slot, nil
}

// Set stores levels in slot with the configured TTL.
func (cache *RedisSnapshotCache) Set(ctx context.Context, slot Slot, levels []Level) error {
	payload, err := json.Marshal(levels)
	if err != nil {
		return fmt.Errorf("redis_hierarchy_cache_encode_failed: %w", err)
	}
	if err := cache.client.Set(ctx, string(slot), payload, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis_hierarchy_cache_set_failed: %w", err)
	}
	return nil
}

// Invalidate moves every reader to a fresh generation.
func (cache *RedisSnapshotCache) Invalidate(ctx context.Context) error {
	if err := cache.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis_hierarchy_cache_invalidate_failed: %w", err)
	}
	return nil
}
