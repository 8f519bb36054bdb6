// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/chatdeck/internal/model"
)

func TestMessageFromBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"nested openai shape", `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`, "Incorrect API key provided"},
		{"anthropic shape", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, "Overloaded"},
		{"flat error string", `{"error":"bad file"}`, "bad file"},
		{"message field", `{"message":"Missing request data"}`, "Missing request data"},
		{"not json", `<html>502</html>`, "OpenAI API error: 502 Bad Gateway"},
		{"empty", ``, "OpenAI API error: 502 Bad Gateway"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := MessageFromBody(model.ProviderOpenAI, 502, []byte(tc.body))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"401", &APIError{Status: 401, Provider: model.ProviderOpenAI}, "Authentication failed for OpenAI. Please check your API key."},
		{"403", &APIError{Status: 403, Provider: model.ProviderAnthropic}, "Access denied for Anthropic. Your API key may not have permission to use this model."},
		{"429", &APIError{Status: 429, Provider: model.ProviderDeepSeek}, "Rate limit exceeded for DeepSeek. Please try again later."},
		{"503", &APIError{Status: 503, Provider: model.ProviderAnthropic}, "Anthropic service is currently unavailable. Please try again later."},
		{"wrapped 500", fmt.Errorf("send: %w", &APIError{Status: 500, Provider: model.ProviderOpenAI}), "OpenAI service is currently unavailable. Please try again later."},
		{"400 raw message", &APIError{Status: 400, Provider: model.ProviderOpenAI, Message: "max_tokens too large"}, "max_tokens too large"},
		{"timeout", &TransportError{Provider: model.ProviderOpenAI, Err: context.DeadlineExceeded}, MsgTimeout},
		{"network", &TransportError{Provider: model.ProviderOpenAI, Err: errors.New("dial tcp: no such host")}, MsgNetwork},
		{"plain", errors.New("something odd"), "something odd"},
		{"nil", nil, MsgUnexpected},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FriendlyMessage(tc.err))
		})
	}
}

func TestTransportError_Unwrap(t *testing.T) {
	inner := errors.New("reset by peer")
	err := &TransportError{Provider: model.ProviderCustom, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.False(t, err.Timeout())
	assert.Contains(t, err.Error(), "Custom request failed")
}
