// Copyright (c) 2026 PU Connect. All rights reserved.

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/puconnect/core/internal/platform/apperr"
	"github.com/puconnect/core/internal/platform/constants"
	"github.com/puconnect/core/internal/platform/sec"
)

// refreshSlack is how long before access-token expiry a background refresh
// is attempted.
const refreshSlack = 30 * time.Second

// HTTPClient implements [Client] against a GoTrue-compatible REST authority.
//
// # Notifications
//
// The authority does not push transitions over the wire; like the official
// client SDKs, state-change notifications are client-local. Every operation
// that establishes or ends a session fans the new state out to subscribers,
// and a background timer refreshes the access token shortly before expiry
// (which counts as "session established" again).
type HTTPClient struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *slog.Logger

	mutex        sync.Mutex
	session      *Session
	subscribers  map[int]func(*Session)
	nextSubID    int
	refreshTimer *time.Timer
	closed       bool
}

// NewHTTPClient constructs a new [HTTPClient].
//
// # Parameters
//   - baseURL: Root URL of the auth authority (no trailing slash).
//   - anonKey: Publishable API key sent with every request.
//   - logger: Structured logger for token-refresh and notification events.
func NewHTTPClient(baseURL, anonKey string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		anonKey:     anonKey,
		httpClient:  &http.Client{Timeout: constants.AuthRequestTimeout},
		logger:      logger,
		subscribers: make(map[int]func(*Session)),
	}
}

// # Wire Format

// tokenResponse is the authority's session payload.
type tokenResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	RefreshToken string    `json:"refresh_token"`
	User         *Identity `json:"user"`
}

// signupResponse covers both shapes the signup endpoint produces: a full
// session when auto-confirm is on, or a bare identity when confirmation is
// pending.
type signupResponse struct {
	tokenResponse
	Identity
}

// errorResponse is the authority's error payload.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
}

// message returns the most specific human-readable error text available.
func (e *errorResponse) message() string {
	switch {
	case e.ErrorDescription != "":
		return e.ErrorDescription
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return "Authentication request failed"
	}
}

// # Client Implementation

/*
CurrentSession returns the in-memory session, re-validating it against the
authority's /user endpoint when the access token looks expired.

Parameters:
  - context: context.Context

Returns:
  - *Session: Active session, or nil when none exists
  - error: Connectivity failures only
*/
func (client *HTTPClient) CurrentSession(context context.Context) (*Session, error) {
	client.mutex.Lock()
	session := client.session
	client.mutex.Unlock()

	if session == nil {
		return nil, nil
	}

	if !session.Expired(time.Now()) {
		return session, nil
	}

	// The stored token is stale. Try one refresh before giving up.
	refreshed, err := client.refresh(context, session.RefreshToken)
	if err != nil {
		client.logger.Warn("auth_session_refresh_failed", slog.Any("error", err))
		client.setSession(nil)
		return nil, nil
	}

	client.setSession(refreshed)
	return refreshed, nil
}

/*
SignInWithPassword performs the password grant.

Parameters:
  - context: context.Context
  - email: string
  - password: string

Returns:
  - *Identity: Authenticated account
  - *Session: Established session
  - error: apperr.Unauthorized on bad credentials
*/
func (client *HTTPClient) SignInWithPassword(context context.Context, email, password string) (*Identity, *Session, error) {
	payload := map[string]string{"email": email, "password": password}

	var response tokenResponse
	if err := client.post(context, "/token?grant_type=password", "", payload, &response); err != nil {
		return nil, nil, err
	}

	session := client.sessionFromToken(&response)
	client.setSession(session)

	return response.User, session, nil
}

/*
SignUp creates a new Identity with the supplied metadata.

Parameters:
  - context: context.Context
  - email: string
  - password: string
  - metadata: Metadata

Returns:
  - *Identity: Created account
  - *Session: Established session, or nil when confirmation is pending
  - error: apperr.Conflict on duplicate registration
*/
func (client *HTTPClient) SignUp(context context.Context, email, password string, metadata Metadata) (*Identity, *Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var response signupResponse
	if err := client.post(context, "/signup", "", payload, &response); err != nil {
		return nil, nil, err
	}

	// Auto-confirm deployments answer with a full session.
	if response.AccessToken != "" {
		session := client.sessionFromToken(&response.tokenResponse)
		client.setSession(session)
		return response.tokenResponse.User, session, nil
	}

	// Confirmation pending: only the bare identity came back.
	created := response.Identity
	return &created, nil, nil
}

/*
SignOut revokes the session at the authority and clears local state.

Description: Local state is cleared and subscribers are notified even when
the remote revocation fails, mirroring the controller's cache-evict-first
semantics.

Parameters:
  - context: context.Context

Returns:
  - error: Revocation failures
*/
func (client *HTTPClient) SignOut(context context.Context) error {
	client.mutex.Lock()
	session := client.session
	client.mutex.Unlock()

	accessToken := ""
	if session != nil {
		accessToken = session.AccessToken
	}

	err := client.post(context, "/logout", accessToken, nil, nil)
	client.setSession(nil)

	if err != nil {
		return fmt.Errorf("auth_client_sign_out_failed: %w", err)
	}
	return nil
}

/*
RequestPasswordReset asks the authority to send a reset link.

Parameters:
  - context: context.Context
  - email: string
  - returnURL: string

Returns:
  - error: Delivery or connectivity failures
*/
func (client *HTTPClient) RequestPasswordReset(context context.Context, email, returnURL string) error {
	payload := map[string]string{"email": email}
	path := "/recover"
	if returnURL != "" {
		path += "?redirect_to=" + returnURL
	}

	if err := client.post(context, path, "", payload, nil); err != nil {
		return fmt.Errorf("auth_client_password_reset_failed: %w", err)
	}
	return nil
}

// Subscribe registers an auth-state-change listener. See [Client.Subscribe].
func (client *HTTPClient) Subscribe(onChange func(*Session)) (unsubscribe func()) {
	client.mutex.Lock()
	id := client.nextSubID
	client.nextSubID++
	client.subscribers[id] = onChange
	client.mutex.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			client.mutex.Lock()
			delete(client.subscribers, id)
			client.mutex.Unlock()
		})
	}
}

// Close cancels the background refresh timer and drops all subscribers.
func (client *HTTPClient) Close() {
	client.mutex.Lock()
	defer client.mutex.Unlock()

	client.closed = true
	if client.refreshTimer != nil {
		client.refreshTimer.Stop()
		client.refreshTimer = nil
	}
	client.subscribers = make(map[int]func(*Session))
}

// # Session State

// sessionFromToken converts a wire payload into a [Session], preferring the
// explicit expires_in and falling back to the JWT's own exp claim.
func (client *HTTPClient) sessionFromToken(response *tokenResponse) *Session {
	expiresAt := time.Time{}
	if response.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(response.ExpiresIn) * time.Second)
	} else if claims, err := sec.PeekAccessToken(response.AccessToken); err == nil {
		expiresAt = claims.ExpiresAtTime()
	}

	return &Session{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		ExpiresAt:    expiresAt,
		User:         response.User,
	}
}

// setSession swaps the in-memory session, reschedules the refresh timer, and
// fans the transition out to subscribers.
func (client *HTTPClient) setSession(session *Session) {
	client.mutex.Lock()

	client.session = session

	if client.refreshTimer != nil {
		client.refreshTimer.Stop()
		client.refreshTimer = nil
	}
	if session != nil && !session.ExpiresAt.IsZero() && !client.closed {
		delay := time.Until(session.ExpiresAt) - refreshSlack
		if delay < time.Second {
			delay = time.Second
		}
		refreshToken := session.RefreshToken
		client.refreshTimer = time.AfterFunc(delay, func() {
			client.backgroundRefresh(refreshToken)
		})
	}

	// Snapshot the listener set so callbacks run outside the lock.
	listeners := make([]func(*Session), 0, len(client.subscribers))
	for _, listener := range client.subscribers {
		listeners = append(listeners, listener)
	}
	client.mutex.Unlock()

	for _, listener := range listeners {
		listener(session)
	}
}

// backgroundRefresh rotates the token pair shortly before expiry. A failed
// refresh ends the session, which subscribers observe as a nil notification.
func (client *HTTPClient) backgroundRefresh(refreshToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.AuthRequestTimeout)
	defer cancel()

	refreshed, err := client.refresh(ctx, refreshToken)
	if err != nil {
		client.logger.Warn("auth_background_refresh_failed", slog.Any("error", err))
		client.setSession(nil)
		return
	}

	client.logger.Debug("auth_token_refreshed")
	client.setSession(refreshed)
}

// refresh performs the refresh-token grant.
func (client *HTTPClient) refresh(context context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized("No refresh token available")
	}

	payload := map[string]string{"refresh_token": refreshToken}

	var response tokenResponse
	if err := client.post(context, "/token?grant_type=refresh_token", "", payload, &response); err != nil {
		return nil, err
	}

	return client.sessionFromToken(&response), nil
}

// # Transport

// post issues a JSON POST and decodes the response into out (when non-nil).
func (client *HTTPClient) post(context context.Context, path, accessToken string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("auth_client_encode_failed: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost, client.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("auth_client_request_failed: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("apikey", client.anonKey)
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		request.Header.Set("Authorization", "Bearer "+client.anonKey)
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("auth_client_transport_failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode >= 400 {
		return client.mapError(response)
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("auth_client_decode_failed: %w", err)
	}
	return nil
}

// mapError converts an authority error payload into the apperr taxonomy so
// the controller can surface auth errors verbatim.
func (client *HTTPClient) mapError(response *http.Response) error {
	var wire errorResponse
	_ = json.NewDecoder(response.Body).Decode(&wire)

	switch response.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusBadRequest:
		return apperr.Unauthorized(wire.message())
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return apperr.Conflict(wire.message())
	default:
		return apperr.ServiceUnavailable(wire.message())
	}
}
