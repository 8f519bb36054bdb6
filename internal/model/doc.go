// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every chatdeck component.
//
// # Key Types
//
//   - Message: Single chat message with role, content, epoch-millisecond timestamp,
//     optional attachments and the loading/error state used while a send is in flight
//   - Attachment: Uploaded file descriptor referenced by messages
//   - ChatModel: Immutable model reference data from the static registry
//   - Provider: LLM provider enumeration (openai, anthropic, deepseek, custom)
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Look up a model and build a message:
//
//	m, ok := model.ModelByID("gpt-4o")
//	if !ok {
//	    m = model.DefaultModelFor(model.ProviderOpenAI)
//	}
//	msg := model.Message{Role: model.RoleUser, Content: "Hello!"}
package model
