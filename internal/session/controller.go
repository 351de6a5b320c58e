// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package session implements the state machine that owns the in-memory session.

The controller reconciles three independent, asynchronous truth sources — the
local snapshot cache, the remote auth authority, and the remote profile store
— into one consistent view, while tolerating each source being absent, stale,
or erroring independently.

# Architecture

  - State machine: Booting → Unauthenticated | Authenticating → Authenticated,
    with a shared error string for operation failures (state.go).
  - Sequencing: every transition takes a sequence number; a resolution landing
    with a stale sequence is discarded instead of relying on scheduling order.
  - Lifecycle: Start subscribes to auth notifications and launches the
    presence heartbeat; Close guarantees timer cancellation, unsubscription,
    and a final best-effort offline write on every exit path.
*/
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puconnect/core/internal/cache"
	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/messaging"
	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/constants"
	"github.com/puconnect/core/internal/platform/dberr"
	"github.com/puconnect/core/internal/platform/metrics"
	"github.com/puconnect/core/internal/platform/validate"
	"github.com/puconnect/core/internal/presence"
	"github.com/puconnect/core/internal/profile"
)

// snapshotKey is the single cache slot for the last-known profile. The cache
// is read before the current identity is known, so the slot is not keyed by
// identity.
const snapshotKey = constants.RedisPrefixSnapshot + "current"

// welcomeTemplate is the registration SMS. Delivery is fire-and-forget.
const welcomeTemplate = "Welcome to PU Connect, %s! Your account has been successfully created. Browse the marketplace and connect with fellow students."

// # Session Controller

// Controller owns the session state and drives the cache, resolver, and
// presence reporter. All exported methods are safe for concurrent use.
type Controller struct {
	auth      identity.Client
	store     profile.Store
	resolver  *profile.Resolver
	reporter  *presence.Reporter
	snapshots cache.Cache
	notifier  messaging.Notifier
	logger    *slog.Logger
	collector *metrics.Collector

	mutex   sync.Mutex
	state   State
	user    *identity.Identity
	profile *profile.Profile
	errMsg  string

	// seq numbers every transition-triggering event. An in-flight resolution
	// from an earlier sequence is discarded when a newer one has landed.
	seq uint64

	// nowFunc overrides the wall clock in tests.
	nowFunc func() time.Time

	lifecycleCtx    context.Context
	lifecycleCancel context.CancelFunc
	unsubscribe     func()
	heartbeatDone   chan struct{}
	closeOnce       sync.Once
}

// NewController constructs a session [Controller] in the Booting state.
// The collector may be nil.
func NewController(
	auth identity.Client,
	store profile.Store,
	resolver *profile.Resolver,
	reporter *presence.Reporter,
	snapshots cache.Cache,
	notifier messaging.Notifier,
	logger *slog.Logger,
	collector *metrics.Collector,
) *Controller {
	return &Controller{
		auth:      auth,
		store:     store,
		resolver:  resolver,
		reporter:  reporter,
		snapshots: snapshots,
		notifier:  notifier,
		logger:    logger,
		collector: collector,
		state:     StateBooting,
	}
}

// # Lifecycle

/*
Start boots the controller.

Description: Reads the snapshot cache optimistically, queries the auth
authority for an existing session, resolves the profile when one is present,
then subscribes to auth-state notifications and launches the presence
heartbeat. Start returns after the boot transition has settled; the
subscription and heartbeat outlive the call until [Controller.Close].

Parameters:
  - context: context.Context (bounds the boot I/O only)

Returns:
  - error: Boot-time auth connectivity failures (the controller stays usable)
*/
func (controller *Controller) Start(ctx context.Context) error {
	controller.lifecycleCtx, controller.lifecycleCancel = context.WithCancel(context.Background())

	// 1. Optimistic cache read. Advisory only: it paints a profile before the
	// authority has answered, and is overwritten the moment it does.
	controller.loadSnapshot(ctx)

	// 2. Subscribe before querying so a transition racing the boot query is
	// not lost. Sequencing discards whichever resolution lands stale.
	controller.unsubscribe = controller.auth.Subscribe(controller.onAuthChange)

	// 3. Presence heartbeat for the lifetime of the controller.
	controller.heartbeatDone = make(chan struct{})
	go func() {
		defer close(controller.heartbeatDone)
		controller.reporter.Heartbeat(controller.lifecycleCtx, controller.currentIdentity)
	}()

	// 4. Query the authority for an existing session.
	session, err := controller.auth.CurrentSession(ctx)
	if err != nil {
		controller.mutex.Lock()
		controller.state = StateError
		controller.errMsg = "Failed to initialize authentication"
		controller.mutex.Unlock()
		return fmt.Errorf("session_boot_failed: %w", err)
	}

	if session != nil && session.User != nil {
		controller.establish(ctx, session)
		return nil
	}

	// No session: evict the advisory snapshot and settle.
	controller.evictSnapshot(ctx)
	controller.mutex.Lock()
	controller.seq++
	controller.user = nil
	controller.profile = nil
	controller.state = StateUnauthenticated
	controller.mutex.Unlock()
	return nil
}

/*
Close tears the controller down.

Description: Guaranteed, in order, on every exit path: heartbeat
cancellation, auth unsubscription, and one final best-effort online=false
write. The final write has no delivery guarantee if the process is killed
first; that is a documented limitation.
*/
func (controller *Controller) Close() {
	controller.closeOnce.Do(func() {
		if controller.lifecycleCancel != nil {
			controller.lifecycleCancel()
		}
		if controller.heartbeatDone != nil {
			<-controller.heartbeatDone
		}
		if controller.unsubscribe != nil {
			controller.unsubscribe()
		}

		identityID, ok := controller.currentIdentity()
		if ok {
			teardownCtx, cancel := context.WithTimeout(context.Background(), constants.TeardownTimeout)
			defer cancel()
			controller.reporter.Report(teardownCtx, identityID, false)
		}

		controller.logger.Info("session_controller_closed")
	})
}

// Snapshot returns a copy of the current session state.
func (controller *Controller) Snapshot() Snapshot {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()

	return Snapshot{
		State:   controller.state,
		User:    controller.user,
		Profile: controller.profile,
		Loading: controller.state.Loading(),
		Err:     controller.errMsg,
	}
}

// # Operations

/*
SignIn delegates the credential check to the auth authority.

Description: On success the authenticated Identity is returned to the caller,
but the state transition itself happens via the notification path — the
authority's "session established" notification re-resolves the profile. This
keeps a single source of truth for transitions.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *identity.Identity: The authenticated account
  - error: Auth errors, surfaced verbatim
*/
func (controller *Controller) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	controller.clearError()

	authenticated, _, err := controller.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		controller.setError(err, "Failed to sign in")
		return nil, err
	}

	return authenticated, nil
}

// SignUpInput holds the data required to enroll a new community member.
type SignUpInput struct {
	Email      string
	Password   string
	FullName   string
	StudentID  string
	Department string
	Faculty    string
	Phone      string
}

// metadata converts the input into auth-authority identity metadata.
func (input SignUpInput) metadata() identity.Metadata {
	return identity.Metadata{
		FullName:   input.FullName,
		StudentID:  input.StudentID,
		Department: input.Department,
		Faculty:    input.Faculty,
		Phone:      input.Phone,
	}
}

/*
SignUp registers a new member.

Description: Creates the Identity at the auth authority with metadata
attached, then synchronously inserts the buyer profile row. When the insert
fails the operation fails with the distinct profile-setup error even though
the Identity now exists — a dangling Identity without a profile is an
accepted, documented inconsistency with no automatic rollback. On success a
welcome SMS is fired non-blocking, and the caller ends authenticated either
through the signup session or an explicit sign-in fallback.

Parameters:
  - context: context.Context
  - input: SignUpInput

Returns:
  - error: Validation errors, auth errors, or apperr.ProfileSetupFailed
*/
func (controller *Controller) SignUp(ctx context.Context, input SignUpInput) error {
	controller.clearError()

	// Validate before contacting the authority.
	validationErr := (&validate.Validator{}).
		Required("email", input.Email).
		Email("email", input.Email).
		MinLen("password", input.Password, 6).
		Required("full_name", input.FullName).
		MaxLen("full_name", input.FullName, 120).
		Phone("phone", input.Phone).
		Err()
	if validationErr != nil {
		controller.setError(validationErr, "Failed to sign up")
		return validationErr
	}

	// 1. Create the Identity.
	created, authSession, err := controller.auth.SignUp(ctx, input.Email, input.Password, input.metadata())
	if err != nil {
		controller.setError(err, "Failed to sign up")
		return err
	}

	// 2. Create the profile row synchronously. The resolver could self-heal
	// this later, but registration must fail loudly when the row cannot be
	// written, before the member relies on a role that does not exist.
	// A duplicate key is success: the auth notification fired during SignUp
	// and the resolver's self-healing path already created the row.
	seeded := profile.NewFromIdentity(created, controller.clock())
	if _, err := controller.store.Insert(ctx, seeded); err != nil && !dberr.IsDuplicateKey(err) {
		setupErr := apperr.ProfileSetupFailed(err)
		controller.logger.Error("signup_profile_insert_failed",
			slog.String("identity_id", created.ID),
			slog.Any("error", err),
		)
		controller.setError(setupErr, setupErr.Message)
		return setupErr
	}

	// 3. Welcome SMS, fire-and-forget. Failure never fails the signup.
	if input.Phone != "" {
		go func() {
			smsCtx, cancel := context.WithTimeout(context.Background(), constants.SMSRequestTimeout)
			defer cancel()
			controller.notifier.Notify(smsCtx, []string{input.Phone},
				fmt.Sprintf(welcomeTemplate, input.FullName))
		}()
	}

	// 4. End authenticated either way.
	if authSession != nil {
		controller.establish(ctx, authSession)
		return nil
	}
	if _, err := controller.SignIn(ctx, input.Email, input.Password); err != nil {
		return err
	}
	return nil
}

/*
SignOut ends the session.

Description: The snapshot cache is evicted FIRST, so a crash mid-sign-out
never leaves stale cached credentials; the eviction is not rolled back when
the authority call fails. The in-memory transition to Unauthenticated arrives
via the "session ended" notification.

Parameters:
  - context: context.Context

Returns:
  - error: Auth authority sign-out failures
*/
func (controller *Controller) SignOut(ctx context.Context) error {
	controller.clearError()

	controller.evictSnapshot(ctx)

	if err := controller.auth.SignOut(ctx); err != nil {
		controller.setError(err, "Failed to sign out")
		return err
	}
	return nil
}

/*
RefreshProfile re-resolves the profile for the current identity.

Description: No-op when no identity is present. Replaces the in-memory
profile only; the snapshot cache is deliberately untouched — the caller
decides whether the refreshed view is worth persisting.

Parameters:
  - context: context.Context

Returns:
  - error: Always nil today; the resolver degrades instead of failing
*/
func (controller *Controller) RefreshProfile(ctx context.Context) error {
	controller.mutex.Lock()
	current := controller.user
	if current == nil {
		controller.mutex.Unlock()
		return nil
	}
	controller.errMsg = ""
	controller.seq++
	seq := controller.seq
	controller.mutex.Unlock()

	resolved := controller.resolver.Resolve(ctx, current.ID, current)

	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	if seq != controller.seq {
		// A newer transition landed while we were resolving.
		return nil
	}
	controller.profile = resolved
	return nil
}

// # Notification Path

// onAuthChange consumes one auth-state notification. A non-nil session is
// always re-resolved — even when a profile is already in memory — because
// server-side role changes must propagate.
func (controller *Controller) onAuthChange(authSession *identity.Session) {
	if controller.collector != nil {
		controller.collector.RecordAuthStateChange()
	}

	ctx := controller.lifecycleCtx
	if ctx == nil {
		ctx = context.Background()
	}

	if authSession != nil && authSession.User != nil {
		controller.establish(ctx, authSession)
		return
	}

	// Session ended: clear everything, evict the snapshot.
	controller.mutex.Lock()
	controller.seq++
	controller.user = nil
	controller.profile = nil
	controller.state = StateUnauthenticated
	controller.mutex.Unlock()

	controller.evictSnapshot(ctx)
	controller.logger.Info("session_ended")
}

// establish runs the "session present" branch: resolve, publish, cache,
// report presence. Results from a stale sequence are discarded.
func (controller *Controller) establish(ctx context.Context, authSession *identity.Session) {
	user := authSession.User

	controller.mutex.Lock()
	controller.seq++
	seq := controller.seq
	controller.user = user
	controller.state = StateAuthenticating
	controller.mutex.Unlock()

	resolved := controller.resolver.Resolve(ctx, user.ID, user)

	controller.mutex.Lock()
	if seq != controller.seq {
		controller.mutex.Unlock()
		return
	}
	controller.profile = resolved
	controller.state = StateAuthenticated
	controller.mutex.Unlock()

	if resolved != nil {
		controller.storeSnapshot(ctx, resolved)
	}
	controller.reporter.Report(ctx, user.ID, true)

	controller.logger.Info("session_established",
		slog.String("identity_id", user.ID),
		slog.Bool("profile_synthesized", resolved != nil && resolved.Synthesized),
	)
}

// # Snapshot Cache Helpers

// loadSnapshot paints the last-known profile into memory. Corrupt entries
// are evicted and treated as a miss.
func (controller *Controller) loadSnapshot(ctx context.Context) {
	raw, ok, err := controller.snapshots.Get(ctx, snapshotKey)
	if err != nil || !ok {
		return
	}

	snapshot, err := cache.DecodeSnapshot(raw)
	if err != nil {
		controller.logger.Warn("snapshot_corrupt_evicted", slog.Any("error", err))
		controller.evictSnapshot(ctx)
		return
	}

	controller.mutex.Lock()
	controller.profile = snapshot
	controller.mutex.Unlock()
}

// storeSnapshot persists the resolved profile for the next boot.
func (controller *Controller) storeSnapshot(ctx context.Context, resolved *profile.Profile) {
	encoded, err := cache.EncodeSnapshot(resolved)
	if err != nil {
		controller.logger.Warn("snapshot_encode_failed", slog.Any("error", err))
		return
	}
	if err := controller.snapshots.Set(ctx, snapshotKey, encoded); err != nil {
		controller.logger.Warn("snapshot_store_failed", slog.Any("error", err))
	}
}

// evictSnapshot removes the cached profile. Best-effort.
func (controller *Controller) evictSnapshot(ctx context.Context) {
	if err := controller.snapshots.Remove(ctx, snapshotKey); err != nil {
		controller.logger.Warn("snapshot_evict_failed", slog.Any("error", err))
	}
}

// # Internal Helpers

// currentIdentity reports the active identity for the heartbeat loop.
func (controller *Controller) currentIdentity() (string, bool) {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()

	if controller.user == nil {
		return "", false
	}
	return controller.user.ID, true
}

// clearError resets the shared error string at the start of every public
// operation. It is not cleared on success of unrelated operations.
func (controller *Controller) clearError() {
	controller.mutex.Lock()
	controller.errMsg = ""
	controller.mutex.Unlock()
}

// setError records the user-visible message for a failed operation.
func (controller *Controller) setError(err error, fallback string) {
	message := fallback
	if appErr := apperr.As(err); appErr != nil {
		message = appErr.Message
	}

	controller.mutex.Lock()
	controller.errMsg = message
	controller.mutex.Unlock()
}

// clock reports the current time; separated for test injection.
func (controller *Controller) clock() time.Time {
	if controller.nowFunc != nil {
		return controller.nowFunc()
	}
	return time.Now()
}
