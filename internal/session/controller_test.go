// Copyright (c) 2026 PU Connect. All rights reserved.

package session_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/puconnect/core/internal/cache"
	"github.com/puconnect/core/internal/identity"
	"github.com/puconnect/core/internal/identity/identitytest"
	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/constants"
	"github.com/puconnect/core/internal/presence"
	"github.com/puconnect/core/internal/profile"
	"github.com/puconnect/core/internal/profile/profiletest"
	"github.com/puconnect/core/internal/session"
)

// snapshotKey mirrors the controller's single cache slot.
const snapshotKey = constants.RedisPrefixSnapshot + "current"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures SMS attempts for assertion.
type recordingNotifier struct {
	mutex sync.Mutex
	sent  []string
}

func (notifier *recordingNotifier) Notify(_ context.Context, recipients []string, text string) {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	for range recipients {
		notifier.sent = append(notifier.sent, text)
	}
}

func (notifier *recordingNotifier) count() int {
	notifier.mutex.Lock()
	defer notifier.mutex.Unlock()
	return len(notifier.sent)
}

// fixture bundles one controller with all its fakes.
type fixture struct {
	auth       *identitytest.FakeClient
	store      *profiletest.Store
	snapshots  *cache.MemoryCache
	notifier   *recordingNotifier
	controller *session.Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	auth := identitytest.NewFakeClient()
	store := profiletest.NewStore()
	snapshots := cache.NewMemoryCache()
	notifier := &recordingNotifier{}
	log := discardLogger()

	resolver := profile.NewResolver(store, auth, log, nil)
	reporter := presence.NewReporter(store, log, nil, time.Hour)

	controller := session.NewController(auth, store, resolver, reporter, snapshots, notifier, log, nil)
	t.Cleanup(controller.Close)

	return &fixture{
		auth:       auth,
		store:      store,
		snapshots:  snapshots,
		notifier:   notifier,
		controller: controller,
	}
}

// signUpInput returns a complete, valid registration payload.
func signUpInput() session.SignUpInput {
	return session.SignUpInput{
		Email:      "ada@st.pentvars.edu.gh",
		Password:   "sufficiently-long",
		FullName:   "Ada Mensah",
		StudentID:  "PU2026-0042",
		Department: "Computer Science",
		Faculty:    "Engineering",
		Phone:      "+233201234567",
	}
}

/*
TestController_BootWithoutSession verifies the cold-boot path: no cached
snapshot, no remote session, settling in the unauthenticated state.
*/
func TestController_BootWithoutSession(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.controller.Start(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Err)
}

/*
TestController_BootWithExistingSession verifies warm boot: an active remote
session resolves the profile, caches a snapshot, and reports presence.
*/
func TestController_BootWithExistingSession(t *testing.T) {
	f := newFixture(t)

	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh", FullName: "Ada Mensah", Role: profile.RoleSeller})
	f.auth.SetSession(&identity.Session{
		AccessToken: "tok",
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        &identity.Identity{ID: id, Email: "ada@st.pentvars.edu.gh"},
	})

	require.NoError(t, f.controller.Start(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, profile.RoleSeller, snap.Profile.Role)

	// Snapshot cached for the next boot.
	raw, ok, err := f.snapshots.Get(context.Background(), snapshotKey)
	require.NoError(t, err)
	require.True(t, ok)
	cached, err := cache.DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, id, cached.ID)

	// Presence reported online.
	writes := f.store.PresenceWrites()
	require.NotEmpty(t, writes)
	assert.True(t, writes[0].Online)
}

/*
TestController_BootEvictsCorruptSnapshot verifies that an unreadable cached
snapshot is treated as a miss and removed, never surfaced as an error.
*/
func TestController_BootEvictsCorruptSnapshot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.snapshots.Set(context.Background(), snapshotKey, []byte("{not json")))

	require.NoError(t, f.controller.Start(context.Background()))

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Profile)

	_, ok, err := f.snapshots.Get(context.Background(), snapshotKey)
	require.NoError(t, err)
	assert.False(t, ok, "corrupt snapshot must be evicted")
}

/*
TestController_BootAuthFailure verifies that an unreachable auth authority
leaves the controller in the error state, still alive for later recovery.
*/
func TestController_BootAuthFailure(t *testing.T) {
	f := newFixture(t)
	f.auth.FailCurrentSession = errors.New("connection refused")

	err := f.controller.Start(context.Background())
	require.Error(t, err)

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateError, snap.State)
	assert.Equal(t, "Failed to initialize authentication", snap.Err)
}

/*
TestController_SignInTransitionsViaNotification verifies that a successful
sign-in lands in the authenticated state through the auth-state notification,
with the profile resolved.
*/
func TestController_SignInTransitionsViaNotification(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh", FullName: "Ada Mensah", Role: profile.RoleBuyer})

	require.NoError(t, f.controller.Start(context.Background()))

	authenticated, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)
	assert.Equal(t, id, authenticated.ID)

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, id, snap.User.ID)
	require.NotNil(t, snap.Profile)
	assert.False(t, snap.Profile.Synthesized)
}

/*
TestController_SignInBadCredentials verifies that a rejected credential
surfaces the authority's message verbatim and leaves the state untouched.
*/
func TestController_SignInBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{})

	require.NoError(t, f.controller.Start(context.Background()))

	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "wrong")
	require.Error(t, err)

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Equal(t, "Invalid login credentials", snap.Err)
}

/*
TestController_SessionEndedNotificationClearsState verifies that a remote
revocation (session-ended notification) clears user and profile and evicts
the cached snapshot.
*/
func TestController_SessionEndedNotificationClearsState(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh"})

	require.NoError(t, f.controller.Start(context.Background()))
	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)

	// Simulate revocation originating at the authority.
	f.auth.SetSession(nil)

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile)

	_, ok, err := f.snapshots.Get(context.Background(), snapshotKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

/*
TestController_StaleSignInResolutionDiscarded verifies sequencing on the
session-established path: when a sign-out lands while the sign-in's profile
resolution is still in flight, the late result is discarded instead of
resurrecting the session.
*/
func TestController_StaleSignInResolutionDiscarded(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh", Role: profile.RoleBuyer})

	require.NoError(t, f.controller.Start(context.Background()))

	// Hold the resolution open so the sign-out can overtake it.
	f.store.GetDelay = 100 * time.Millisecond

	established := make(chan struct{})
	go func() {
		defer close(established)
		f.auth.SetSession(&identity.Session{
			AccessToken: "tok",
			ExpiresAt:   time.Now().Add(time.Hour),
			User:        &identity.Identity{ID: id, Email: "ada@st.pentvars.edu.gh"},
		})
	}()

	// The establish transition is now inside the slow store read with its
	// sequence captured; end the session from the authority's side.
	time.Sleep(30 * time.Millisecond)
	f.auth.SetSession(nil)
	<-established

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Nil(t, snap.Profile, "stale resolution must not overwrite the sign-out")

	// The discarded resolution must not have cached a snapshot either.
	_, ok, err := f.snapshots.Get(context.Background(), snapshotKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

/*
TestController_StaleRefreshDiscarded verifies sequencing on the refresh path:
a refresh that resolves after the session has ended must not repaint the
profile of a signed-out member.
*/
func TestController_StaleRefreshDiscarded(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh", Role: profile.RoleBuyer})

	require.NoError(t, f.controller.Start(context.Background()))
	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)

	f.store.GetDelay = 100 * time.Millisecond

	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		_ = f.controller.RefreshProfile(context.Background())
	}()

	// Revoke remotely while the refresh is still resolving.
	time.Sleep(30 * time.Millisecond)
	f.auth.SetSession(nil)
	<-refreshed

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateUnauthenticated, snap.State)
	assert.Nil(t, snap.Profile, "late refresh result must be discarded")
}

/*
TestController_SignOutEvictsCacheEvenOnAuthFailure verifies the ordering
guarantee: the snapshot is gone before the authority is contacted, and stays
gone when the remote call fails.
*/
func TestController_SignOutEvictsCacheEvenOnAuthFailure(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh"})

	require.NoError(t, f.controller.Start(context.Background()))
	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)

	_, ok, _ := f.snapshots.Get(context.Background(), snapshotKey)
	require.True(t, ok, "precondition: snapshot cached after sign-in")

	f.auth.FailSignOut = errors.New("connection refused")
	err = f.controller.SignOut(context.Background())
	require.Error(t, err)

	_, ok, _ = f.snapshots.Get(context.Background(), snapshotKey)
	assert.False(t, ok, "eviction must not be rolled back on auth failure")
}

/*
TestController_SignUpCreatesProfileAndSendsWelcome verifies the registration
flow end to end: identity created, profile row inserted synchronously, the
caller ends authenticated, and exactly one welcome SMS is attempted.
*/
func TestController_SignUpCreatesProfileAndSendsWelcome(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Start(context.Background()))

	require.NoError(t, f.controller.SignUp(context.Background(), signUpInput()))

	snap := f.controller.Snapshot()
	assert.Equal(t, session.StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	require.NotNil(t, snap.Profile)
	assert.Equal(t, profile.RoleBuyer, snap.Profile.Role)
	assert.False(t, snap.Profile.Synthesized)

	persisted, err := f.store.GetByID(context.Background(), snap.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Mensah", persisted.FullName)
	assert.Equal(t, "PU2026-0042", persisted.StudentID)

	// The SMS fires on a detached goroutine; wait for exactly one attempt.
	assert.Eventually(t, func() bool { return f.notifier.count() == 1 },
		time.Second, 10*time.Millisecond)
	assert.Contains(t, f.notifier.sent[0], "Ada Mensah")
}

/*
TestController_SignUpWithoutPhoneSkipsWelcome verifies that registration
without a phone number attempts no SMS.
*/
func TestController_SignUpWithoutPhoneSkipsWelcome(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Start(context.Background()))

	input := signUpInput()
	input.Phone = ""
	require.NoError(t, f.controller.SignUp(context.Background(), input))

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, f.notifier.count())
}

/*
TestController_SignUpProfileInsertFailure verifies the distinct failure mode
when the identity was created but the profile row could not be written: the
operation fails with the profile-setup error, the message is surfaced, and
the identity itself outlives the failure at the authority.
*/
func TestController_SignUpProfileInsertFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailInsert = errors.New("connection refused")
	require.NoError(t, f.controller.Start(context.Background()))

	err := f.controller.SignUp(context.Background(), signUpInput())
	require.Error(t, err)

	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "PROFILE_SETUP_FAILED", appErr.Code)

	snap := f.controller.Snapshot()
	assert.Equal(t, "Account created but profile setup failed. Please contact support.", snap.Err)

	// No rollback: the credentials registered during the failed signup still
	// authenticate against the authority.
	authenticated, _, err := f.auth.SignInWithPassword(context.Background(), signUpInput().Email, signUpInput().Password)
	require.NoError(t, err, "identity must remain at the authority")
	assert.Equal(t, signUpInput().Email, authenticated.Email)
}

/*
TestController_SignUpValidation verifies that invalid input is rejected
before the auth authority is contacted.
*/
func TestController_SignUpValidation(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Start(context.Background()))

	tests := []struct {
		name   string
		mutate func(*session.SignUpInput)
	}{
		{"missing_email", func(in *session.SignUpInput) { in.Email = "" }},
		{"bad_email", func(in *session.SignUpInput) { in.Email = "not-an-email" }},
		{"short_password", func(in *session.SignUpInput) { in.Password = "abc" }},
		{"missing_name", func(in *session.SignUpInput) { in.FullName = "" }},
		{"bad_phone", func(in *session.SignUpInput) { in.Phone = "not-a-phone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := signUpInput()
			tt.mutate(&input)

			err := f.controller.SignUp(context.Background(), input)
			require.Error(t, err)

			appErr := apperr.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}

	// No account reached the authority.
	_, _, err := f.auth.SignInWithPassword(context.Background(), signUpInput().Email, signUpInput().Password)
	require.Error(t, err)
}

/*
TestController_RefreshProfilePicksUpRoleChange verifies that a server-side
role change becomes visible after an explicit refresh, without touching the
cached snapshot.
*/
func TestController_RefreshProfilePicksUpRoleChange(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh", Role: profile.RoleBuyer})

	require.NoError(t, f.controller.Start(context.Background()))
	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)

	cachedBefore, _, _ := f.snapshots.Get(context.Background(), snapshotKey)

	// An admin promotes the member out of band.
	require.NoError(t, f.store.UpdateRole(context.Background(), id, profile.RoleSeller))
	require.NoError(t, f.controller.RefreshProfile(context.Background()))

	snap := f.controller.Snapshot()
	require.NotNil(t, snap.Profile)
	assert.Equal(t, profile.RoleSeller, snap.Profile.Role)

	cachedAfter, _, _ := f.snapshots.Get(context.Background(), snapshotKey)
	assert.Equal(t, cachedBefore, cachedAfter, "refresh must not rewrite the snapshot")
}

/*
TestController_RefreshProfileWithoutSessionIsNoop verifies the guard on the
unauthenticated refresh path.
*/
func TestController_RefreshProfileWithoutSessionIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.controller.Start(context.Background()))

	require.NoError(t, f.controller.RefreshProfile(context.Background()))
	assert.Equal(t, session.StateUnauthenticated, f.controller.Snapshot().State)
}

/*
TestController_CloseReportsOffline verifies teardown: the final best-effort
presence write marks the identity offline.
*/
func TestController_CloseReportsOffline(t *testing.T) {
	f := newFixture(t)
	id := f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})
	f.store.Seed(&profile.Profile{ID: id, Email: "ada@st.pentvars.edu.gh"})

	require.NoError(t, f.controller.Start(context.Background()))
	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)

	f.controller.Close()

	writes := f.store.PresenceWrites()
	require.NotEmpty(t, writes)
	last := writes[len(writes)-1]
	assert.Equal(t, id, last.ID)
	assert.False(t, last.Online)

	row, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, row.IsOnline)
}

/*
TestController_ErrorClearedOnNextOperation verifies that the shared error
string resets at the start of every public operation.
*/
func TestController_ErrorClearedOnNextOperation(t *testing.T) {
	f := newFixture(t)
	f.auth.Seed("ada@st.pentvars.edu.gh", "pw-123456", identity.Metadata{FullName: "Ada Mensah"})

	require.NoError(t, f.controller.Start(context.Background()))

	_, err := f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "wrong")
	require.Error(t, err)
	require.NotEmpty(t, f.controller.Snapshot().Err)

	_, err = f.controller.SignIn(context.Background(), "ada@st.pentvars.edu.gh", "pw-123456")
	require.NoError(t, err)
	assert.Empty(t, f.controller.Snapshot().Err)
}
