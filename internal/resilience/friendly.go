// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resilience

import (
	"errors"
	"net/http"
)

// Messages shown when no provider-specific text applies.
const (
	MsgTimeout    = "Request timed out. Please check your internet connection and try again."
	MsgNetwork    = "Network error. Please check your internet connection and try again."
	MsgUnexpected = "An unexpected error occurred. Please try again."
)

// FriendlyMessage maps an error to the text stored on a failed message and
// shown to the user.
func FriendlyMessage(err error) string {
	if err == nil {
		return MsgUnexpected
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		name := apiErr.Provider.DisplayName()
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return "Authentication failed for " + name + ". Please check your API key."
		case apiErr.Status == http.StatusForbidden:
			return "Access denied for " + name + ". Your API key may not have permission to use this model."
		case apiErr.Status == http.StatusTooManyRequests:
			return "Rate limit exceeded for " + name + ". Please try again later."
		case apiErr.Status >= 500 && apiErr.Status <= 599:
			return name + " service is currently unavailable. Please try again later."
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MsgUnexpected
	}

	if IsTimeout(err) {
		return MsgTimeout
	}
	var te *TransportError
	if errors.As(err, &te) {
		return MsgNetwork
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return MsgUnexpected
}
