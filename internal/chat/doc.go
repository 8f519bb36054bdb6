// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives one send: validate, insert the user turn and an
// assistant placeholder, call the provider through the retry layer, then
// reconcile the placeholder by id.
//
// At most one send is in flight per conversation. A second Send while one is
// running returns StatusBusy and changes nothing.
package chat
