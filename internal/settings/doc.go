// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package settings holds the persisted user preferences: per-provider API
// keys, selected model, temperature, token limit, theme and feature toggles.
//
// A Store keeps exactly one in-memory copy. Every mutation is visible to
// readers immediately and then written to a Backend under the fixed key
// "chat-settings". A failed write is logged and never rolls the in-memory
// change back.
//
// # Backends
//
//   - FileBackend: one JSON file per key, written atomically (mode 0600)
//   - SQLiteBackend: a key/value table in a local SQLite database
//   - SealedBackend: wraps another backend and encrypts blobs at rest
//
// # Schema Versioning
//
// The blob is stored as {"version": N, "state": {...}}. A blob written by a
// different version is merged field by field into the current defaults;
// fields this version does not know about are carried along untouched.
package settings
