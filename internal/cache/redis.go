// Copyright (c) 2026 PU Connect. All rights reserved.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements [Cache] using Redis, surviving process restarts.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a new Redis-backed [Cache]. Entries expire after ttl;
// a zero ttl stores entries without expiry.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

/*
Get returns the bytes stored under key.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - []byte: Stored value
  - bool: false on a miss
  - error: Connectivity failures
*/
func (cache *RedisCache) Get(context context.Context, key string) ([]byte, bool, error) {

	// Fetch the raw entry
	value, err := cache.client.Get(context, key).Bytes()

	// Handle errors: an absent key is a miss, not an error
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis_cache_get_failed: %w", err)
	}

	return value, true, nil
}

/*
Set stores value under key with the configured TTL.

Parameters:
  - context: context.Context
  - key: string
  - value: []byte

Returns:
  - error: Persistence failures
*/
func (cache *RedisCache) Set(context context.Context, key string, value []byte) error {
	if err := cache.client.Set(context, key, value, cache.ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache_set_failed: %w", err)
	}
	return nil
}

/*
Remove evicts the entry under key.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - error: Deletion failures
*/
func (cache *RedisCache) Remove(context context.Context, key string) error {
	if err := cache.client.Del(context, key).Err(); err != nil {
		return fmt.Errorf("redis_cache_remove_failed: %w", err)
	}
	return nil
}
