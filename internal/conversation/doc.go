// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the state of the active chat: the ordered
// message list, the processing flag, the last error and a snapshot of the
// settings in force.
//
// All changes go through Store.Dispatch with one of a closed set of actions.
// The convenience methods (AddMessage, UpdateMessage, ...) are thin wrappers
// around Dispatch. Readers get deep-copied snapshots, so nothing outside the
// store can mutate the message list.
package conversation
