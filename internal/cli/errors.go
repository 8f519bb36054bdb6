// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - error types and exit codes shared by all commands.
//
// Handlers always return errors and leave display to the caller.
package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/chatdeck/internal/config"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/provider"
	"github.com/jeranaias/chatdeck/internal/resilience"
	"github.com/jeranaias/chatdeck/internal/storage"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid command usage.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// usagef returns a UsageError.
func usagef(format string, args ...any) error {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// CommandError wraps a failure with the command and action that hit it.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// FriendlyError shows Message while keeping the underlying error for
// exit-code mapping.
type FriendlyError struct {
	Message string
	Err     error
}

func (e *FriendlyError) Error() string {
	return e.Message
}

func (e *FriendlyError) Unwrap() error {
	return e.Err
}

// ExitCodeFor maps err to a process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErrs config.ValidateErrors
	var transport *resilience.TransportError
	var validation *upload.ValidationError

	switch status := resilience.StatusOf(err); {
	case errors.As(err, &usage), errors.Is(err, model.ErrUnsupportedProvider), errors.As(err, &validation):
		return ExitUsageError
	case errors.As(err, &cfgErrs):
		return ExitConfigError
	case errors.Is(err, provider.ErrAPIKeyRequired),
		status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ExitAuthError
	case resilience.IsTimeout(err):
		return ExitTimeout
	case errors.As(err, &transport):
		return ExitNetworkError
	case errors.Is(err, storage.ErrConversationNotFound):
		return ExitNotFound
	default:
		return ExitGeneralError
	}
}
