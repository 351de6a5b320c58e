// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package presence implements the online/last-seen signal for active sessions.

The reporter writes a presence flag plus a timestamp for the current identity
on three triggers: once after a profile resolves at session start or on an
auth-state notification, on a fixed heartbeat interval while a session is
active, and best-effort on teardown.

Every write is a single atomic update against the profile row and is
idempotent (same identity, monotonically advancing timestamp), so concurrent
triggers need no locking.

# Known Limitation

The final online=false write on process teardown has no delivery guarantee:
a killed process never flushes it. This is accepted; there is no server-side
last-seen heuristic in this core.
*/
package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/puconnect/core/internal/platform/metrics"
	"github.com/puconnect/core/internal/profile"
)

// # Presence Reporter

// Reporter writes best-effort presence updates for the current identity.
type Reporter struct {
	store     profile.Store
	logger    *slog.Logger
	collector *metrics.Collector
	interval  time.Duration
	clock     func() time.Time
}

// NewReporter constructs a new [Reporter]. Interval zero falls back to the
// default heartbeat cadence; the collector may be nil.
func NewReporter(store profile.Store, logger *slog.Logger, collector *metrics.Collector, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Reporter{
		store:     store,
		logger:    logger,
		collector: collector,
		interval:  interval,
		clock:     time.Now,
	}
}

/*
Report writes one presence update for the identity.

Description: Best-effort. Failures are logged and swallowed — a presence
write must never surface an error to the session flow that triggered it.

Parameters:
  - context: context.Context
  - identityID: string
  - online: bool
*/
func (reporter *Reporter) Report(context context.Context, identityID string, online bool) {
	if identityID == "" {
		return
	}

	err := reporter.store.SetPresence(context, identityID, online, reporter.clock())
	if reporter.collector != nil {
		reporter.collector.RecordPresenceWrite(err == nil)
	}
	if err != nil {
		reporter.logger.Warn("presence_write_failed",
			slog.String("identity_id", identityID),
			slog.Bool("online", online),
			slog.Any("error", err),
		)
	}
}

/*
Heartbeat reasserts online=true on the configured interval until ctx is
cancelled.

Description: Runs as a goroutine owned by the session controller. The current
callback reports the identity to write for; it returns ok=false while no
session is active, in which case the tick is skipped.

Parameters:
  - ctx: context.Context (cancel stops the loop)
  - current: func() (identityID string, ok bool)
*/
func (reporter *Reporter) Heartbeat(ctx context.Context, current func() (string, bool)) {
	ticker := time.NewTicker(reporter.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if identityID, ok := current(); ok {
				reporter.Report(ctx, identityID, true)
			}
		}
	}
}
