// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
)

// Action is a state transition. The set is closed: only the types in this
// file implement it.
type Action interface {
	action()
}

// AddMessage appends Message, assigning an id and timestamp when absent.
type AddMessage struct {
	Message model.Message
}

// UpdateMessage shallow-merges Patch into the message with ID. Unknown ids
// are ignored.
type UpdateMessage struct {
	ID    string
	Patch MessagePatch
}

// ClearMessages empties the message list and nothing else.
type ClearMessages struct{}

// LoadMessages replaces the message list, e.g. with a saved conversation.
type LoadMessages struct {
	Messages []model.Message
}

// SetProcessing sets the processing flag.
type SetProcessing struct {
	Processing bool
}

// SetError sets the conversation-wide error. An empty string clears it.
type SetError struct {
	Error string
}

// SyncSettings replaces the settings snapshot.
type SyncSettings struct {
	Settings settings.Settings
}

func (AddMessage) action()    {}
func (UpdateMessage) action() {}
func (ClearMessages) action() {}
func (LoadMessages) action()  {}
func (SetProcessing) action() {}
func (SetError) action()      {}
func (SyncSettings) action()  {}

// MessagePatch lists the fields UpdateMessage may change. Nil fields are
// left as they are, so the zero patch is a no-op.
type MessagePatch struct {
	Content     *string
	IsLoading   *bool
	Error       *string
	Timestamp   *int64
	Attachments *[]model.Attachment
}

func (p MessagePatch) applyTo(m *model.Message) {
	if p.Content != nil {
		m.Content = *p.Content
	}
	if p.IsLoading != nil {
		m.IsLoading = *p.IsLoading
	}
	if p.Error != nil {
		m.Error = *p.Error
	}
	if p.Timestamp != nil {
		m.Timestamp = *p.Timestamp
	}
	if p.Attachments != nil {
		m.Attachments = append([]model.Attachment(nil), (*p.Attachments)...)
	}
}
