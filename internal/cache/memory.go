// Copyright (c) 2026 PU Connect. All rights reserved.

package cache

import (
	"context"
	"sync"
)

// MemoryCache implements [Cache] with a process-local map. It does not
// survive restarts; it serves tests and cache-less deployments.
type MemoryCache struct {
	mutex   sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty [MemoryCache].
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

// Get returns the bytes stored under key, with a miss flag.
func (cache *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	cache.mutex.RLock()
	defer cache.mutex.RUnlock()

	value, ok := cache.entries[key]
	if !ok {
		return nil, false, nil
	}

	// Copy so callers cannot mutate the stored entry.
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied, true, nil
}

// Set stores value under key, replacing any previous entry.
func (cache *MemoryCache) Set(_ context.Context, key string, value []byte) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	copied := make([]byte, len(value))
	copy(copied, value)
	cache.entries[key] = copied
	return nil
}

// Remove evicts the entry under key.
func (cache *MemoryCache) Remove(_ context.Context, key string) error {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()

	delete(cache.entries, key)
	return nil
}
