// Copyright (c) 2026 PU Connect. All rights reserved.

/*
Package messaging implements the outbound notification collaborator.

Notifications are strictly fire-and-forget: the session flows that trigger
them (registration welcome messages) must never fail because a text message
could not be delivered. Failures are logged and swallowed.
*/
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/puconnect/core/internal/platform/constants"
)

// # Notifier Contract

// Notifier defines the fire-and-forget messaging boundary.
type Notifier interface {

	/*
		Notify sends text to the given phone numbers.

		Description: Best-effort. Implementations log failures and never
		return them; callers cannot observe delivery.

		Parameters:
		  - context: context.Context
		  - recipients: []string (phone numbers)
		  - text: string
	*/
	Notify(context context.Context, recipients []string, text string)
}

// # SMS Gateway Client

// SMSClient implements [Notifier] against an Arkesel-style SMS REST gateway.
//
// Outbound sends are paced by a token bucket so a registration burst cannot
// exhaust the gateway quota.
type SMSClient struct {
	baseURL    string
	apiKey     string
	sender     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewSMSClient constructs a new [SMSClient].
//
// # Parameters
//   - baseURL: Gateway root URL (no trailing slash).
//   - apiKey: Gateway API key, sent as the api-key header.
//   - sender: Alphanumeric sender ID shown on recipient handsets.
//   - perSecond: Maximum outbound messages per second.
//   - logger: Structured logger for delivery failures.
func NewSMSClient(baseURL, apiKey, sender string, perSecond float64, logger *slog.Logger) *SMSClient {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &SMSClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		sender:     sender,
		httpClient: &http.Client{Timeout: constants.SMSRequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:     logger,
	}
}

// sendRequest is the gateway's wire payload.
type sendRequest struct {
	Sender     string   `json:"sender"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

/*
Notify sends text to the given phone numbers. See [Notifier.Notify].

Description: Empty recipient lists and missing API keys are silently skipped
so that deployments without an SMS gateway behave as a no-op collaborator.
*/
func (client *SMSClient) Notify(context context.Context, recipients []string, text string) {
	if len(recipients) == 0 || client.apiKey == "" {
		return
	}

	// Pace outbound sends; a cancelled context abandons the message.
	if err := client.limiter.Wait(context); err != nil {
		client.logger.Warn("sms_rate_wait_aborted", slog.Any("error", err))
		return
	}

	if err := client.send(context, recipients, text); err != nil {
		client.logger.Warn("sms_delivery_failed",
			slog.Int("recipients", len(recipients)),
			slog.Any("error", err),
		)
	}
}

// send performs the actual gateway call.
func (client *SMSClient) send(context context.Context, recipients []string, text string) error {
	payload, err := json.Marshal(sendRequest{
		Sender:     client.sender,
		Message:    text,
		Recipients: recipients,
	})
	if err != nil {
		return fmt.Errorf("sms_encode_failed: %w", err)
	}

	request, err := http.NewRequestWithContext(context, http.MethodPost,
		client.baseURL+"/api/v2/sms/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("sms_request_failed: %w", err)
	}
	request.Header.Set("api-key", client.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sms_transport_failed: %w", err)
	}
	defer func() { _ = response.Body.Close() }()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= 400 {
		return fmt.Errorf("sms_gateway_rejected: status %d", response.StatusCode)
	}
	return nil
}
