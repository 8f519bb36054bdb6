// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// API ERROR
// =============================================================================

// APIError is the normalized form of a non-2xx provider response.
type APIError struct {
	Status   int
	Provider model.Provider
	Message  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (HTTP %d): %s", e.Provider.DisplayName(), e.Status, e.Message)
}

// HTTPStatus returns the response status code. Retry classification keys off
// this method rather than the concrete type.
func (e *APIError) HTTPStatus() int {
	return e.Status
}

// errorBody covers the error shapes returned by the supported providers and
// the chat endpoint: {"error":{"message":..}}, {"error":".."} and {"message":..}.
type errorBody struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// NewAPIError builds an APIError from a raw response body, preferring the
// body's error message over the generic status text.
func NewAPIError(p model.Provider, status int, body []byte) *APIError {
	return &APIError{Status: status, Provider: p, Message: MessageFromBody(p, status, body)}
}

// MessageFromBody extracts the most specific error message from body. When
// nothing usable is found it returns "<Provider> API error: <status> <text>".
func MessageFromBody(p model.Provider, status int, body []byte) string {
	fallback := strings.TrimSpace(fmt.Sprintf("%s API error: %d %s", p.DisplayName(), status, http.StatusText(status)))

	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return fallback
	}

	if len(eb.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(eb.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(eb.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	if eb.Message != "" {
		return eb.Message
	}
	return fallback
}

// =============================================================================
// TRANSPORT ERROR
// =============================================================================

// TransportError reports a request that failed before a response arrived.
type TransportError struct {
	Provider model.Provider
	Err      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider.DisplayName(), e.Err)
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout or deadline.
func (e *TransportError) Timeout() bool {
	return IsTimeout(e.Err)
}

// IsTimeout reports whether err is a network timeout or an expired deadline.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// StatusOf returns the HTTP status carried by err, or 0 when it has none.
func StatusOf(err error) int {
	var se interface{ HTTPStatus() int }
	if errors.As(err, &se) {
		return se.HTTPStatus()
	}
	return 0
}
