// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resilience wraps provider calls with bounded retry and turns raw
// failures into normalized errors and user-facing messages.
//
// # Error Types
//
//   - APIError: a provider answered with a non-2xx status
//   - TransportError: the request never produced a response (DNS, reset, timeout)
//
// # Retry
//
// Do retries a call while the failure is retryable: an HTTP status listed in
// Options.RetryableStatuses, or a transport timeout. Client errors such as
// 400/401/403 return after a single attempt.
//
//	resp, err := resilience.Do(ctx, resilience.DefaultOptions(), func(ctx context.Context) (*provider.Response, error) {
//	    return adapter.Send(ctx, req)
//	})
//	if err != nil {
//	    msg := resilience.FriendlyMessage(err)
//	}
package resilience
