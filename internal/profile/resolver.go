// Copyright (c) 2026 PU Connect. All rights reserved.

package profile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/platform/dberr"
	"github.com/puconnect/core/internal/platform/metrics"
)

// # Profile Resolver

// Resolver produces a best-effort [Profile] for an identity.
//
// # Contract
//
// Resolve never fails with a hard error. It tries, in order, first success
// wins:
//
//  1. A direct store fetch — the only path guaranteed to reflect the store's
//     current role.
//  2. When the fetch reported a missing row specifically (not a general I/O
//     failure) and an Identity is available, a self-healing insert of a buyer
//     profile seeded from identity metadata. This read path performs a write
//     as a documented side effect; a duplicate key means a concurrent caller
//     already created the row, and the winner's row is returned.
//  3. A synthesized, in-memory-only fallback derived from the Identity.
//  4. nil, when no Identity is available at all.
//
// Rationale: a degraded session (logged in, role=buyer, no persisted record)
// is preferred over an error page when the profile store is unreachable.
type Resolver struct {
	store     Store
	auth      identity.Client
	logger    *slog.Logger
	collector *metrics.Collector
	group     singleflight.Group
}

// NewResolver constructs a new [Resolver]. The collector may be nil, in which
// case resolution outcomes are not counted.
func NewResolver(store Store, auth identity.Client, logger *slog.Logger, collector *metrics.Collector) *Resolver {
	return &Resolver{
		store:     store,
		auth:      auth,
		logger:    logger,
		collector: collector,
	}
}

/*
Resolve returns the best available profile for the identity, or nil when no
identity is available.

Description: Concurrent calls for the same identity are coalesced into one
resolution; all callers converge to the same profile.

Parameters:
  - context: context.Context
  - identityID: string
  - hint: *identity.Identity (optional; avoids a fresh auth lookup)

Returns:
  - *Profile: Persisted, freshly created, or synthesized (check Synthesized)
*/
func (resolver *Resolver) Resolve(context context.Context, identityID string, hint *identity.Identity) *Profile {
	if identityID == "" {
		resolver.record(metrics.OutcomeAbsent)
		return nil
	}

	result, _, _ := resolver.group.Do(identityID, func() (any, error) {
		return resolver.resolve(context, identityID, hint), nil
	})

	profile, _ := result.(*Profile)
	return profile
}

// resolve runs the degradation ladder for one identity.
func (resolver *Resolver) resolve(context context.Context, identityID string, hint *identity.Identity) *Profile {

	// 1. Direct fetch. Found rows are returned verbatim.
	row, fetchErr := resolver.store.GetByID(context, identityID)
	if fetchErr == nil {
		resolver.record(metrics.OutcomePersisted)
		return row
	}

	resolver.logger.Warn("profile_fetch_degraded",
		slog.String("identity_id", identityID),
		slog.Any("error", fetchErr),
	)

	// Every fallback needs an Identity. Use the hint when it matches,
	// otherwise ask the auth authority for the current one.
	current := hint
	if current == nil || current.ID != identityID {
		current = resolver.lookupIdentity(context, identityID)
	}

	now := time.Now()

	// 2. Self-healing insert, only when the fetch reported a missing row.
	if dberr.IsNotFound(fetchErr) && current != nil {
		seeded := NewFromIdentity(current, now)

		inserted, insertErr := resolver.store.Insert(context, seeded)
		if insertErr == nil {
			resolver.record(metrics.OutcomeCreated)
			return inserted
		}

		// Benign race: another caller inserted first. Their row wins.
		if dberr.IsDuplicateKey(insertErr) {
			if winner, err := resolver.store.GetByID(context, identityID); err == nil {
				resolver.record(metrics.OutcomeConverged)
				return winner
			}
		}

		resolver.logger.Warn("profile_self_heal_failed",
			slog.String("identity_id", identityID),
			slog.Any("error", insertErr),
		)
	}

	// 3. Synthesized in-memory fallback.
	if current != nil {
		resolver.record(metrics.OutcomeSynthesized)
		return Synthesize(current, now)
	}

	// 4. No identity available at all.
	resolver.record(metrics.OutcomeAbsent)
	return nil
}

// lookupIdentity fetches the current identity from the auth authority as a
// last resort when no usable hint was provided.
func (resolver *Resolver) lookupIdentity(context context.Context, identityID string) *identity.Identity {
	session, err := resolver.auth.CurrentSession(context)
	if err != nil || session == nil || session.User == nil {
		return nil
	}
	if session.User.ID != identityID {
		// The session changed owners under us; a mismatched identity must
		// not seed this profile.
		return nil
	}
	return session.User
}

// record counts one resolution outcome when a collector is wired.
func (resolver *Resolver) record(outcome string) {
	if resolver.collector != nil {
		resolver.collector.RecordResolution(outcome)
	}
}
