// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package cache implements the local profile snapshot cache.

The cache holds one serialized copy of the last-known profile per identity.
It is a performance/optimistic-UI aid only: the session controller reads it
at boot to show something before the remote auth authority has answered, and
it must never be treated as authoritative once the authority has.

Corrupt or unparseable content is treated as absent and evicted.
*/
package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/puconnect/core/internal/profile"
)

// # Cache Contract

// Cache defines the key-value persistence contract for profile snapshots.
type Cache interface {

	/*
		Get returns the bytes stored under key.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - []byte: Stored value
		  - bool: false on a miss
		  - error: Connectivity failures only (a miss is not an error)
	*/
	Get(context context.Context, key string) ([]byte, bool, error)

	/*
		Set stores value under key, replacing any previous entry.

		Parameters:
		  - context: context.Context
		  - key: string
		  - value: []byte

		Returns:
		  - error: Persistence failures
	*/
	Set(context context.Context, key string, value []byte) error

	/*
		Remove evicts the entry under key. Removing an absent key is a no-op.

		Parameters:
		  - context: context.Context
		  - key: string

		Returns:
		  - error: Persistence failures
	*/
	Remove(context context.Context, key string) error
}

// # Snapshot Codec

// EncodeSnapshot serializes a profile for cache storage.
func EncodeSnapshot(snapshot *profile.Profile) ([]byte, error) {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("cache: failed to encode snapshot: %w", err)
	}
	return encoded, nil
}

// DecodeSnapshot deserializes a cached profile snapshot. Callers treat an
// error as a cache miss and evict the entry.
func DecodeSnapshot(raw []byte) (*profile.Profile, error) {
	snapshot := &profile.Profile{}
	if err := json.Unmarshal(raw, snapshot); err != nil {
		return nil, fmt.Errorf("cache: corrupt snapshot: %w", err)
	}
	if snapshot.ID == "" {
		return nil, fmt.Errorf("cache: corrupt snapshot: missing id")
	}
	if !snapshot.Role.Valid() {
		// An unknown role means the snapshot was written by a different
		// schema generation; resolve fresh instead of trusting it.
		return nil, fmt.Errorf("cache: corrupt snapshot: unknown role %q", snapshot.Role)
	}
	return snapshot, nil
}
