// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chat conversations as JSON files.
//
// Each conversation lives in <dir>/<id>.json and carries the message list
// exactly as the conversation store holds it, so a saved conversation can be
// loaded back into a session or handed to the exporters.
//
//	store, err := storage.NewConversationStore(dir)
//	id, err := store.Save(&storage.StoredConversation{Messages: msgs})
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
package storage
