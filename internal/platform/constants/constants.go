// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package constants provides centralized, immutable values for the entire platform.

It defines default timeouts, intervals, and cross-cutting keys that are shared
between different layers of the session core.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the status HTTP server.
  - Session Lifecycle: Presence heartbeat cadence and snapshot retention.
  - External Services: Deadlines for the auth authority and SMS gateway.

Using this package ensures Magic Strings and Magic Numbers are eliminated
from the business logic.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "puconnect-core"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second
)

// # Session Lifecycle

const (
	// HeartbeatInterval is how often the presence reporter reasserts
	// online=true while a session is active.
	HeartbeatInterval = 10 * time.Minute

	// SnapshotTTL is how long a cached profile snapshot survives in Redis.
	// Snapshots are advisory only; the next boot that finds no session
	// evicts the entry regardless of TTL.
	SnapshotTTL = 30 * 24 * time.Hour

	// TeardownTimeout bounds the final presence write and auth unsubscribe
	// during controller shutdown.
	TeardownTimeout = 3 * time.Second
)

// # External Services

const (
	// AuthRequestTimeout is the per-call deadline for the remote auth service.
	AuthRequestTimeout = 10 * time.Second

	// SMSRequestTimeout is the per-call deadline for the SMS gateway.
	SMSRequestTimeout = 10 * time.Second
)

// # HTTP Headers

const (
	HeaderXRequestID = "X-Request-ID"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixSnapshot = "session:snapshot:"
)
