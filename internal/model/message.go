// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the label used by exports and the terminal front-end.
func (r Role) DisplayName() string {
	if r == RoleUser {
		return "You"
	}
	return "AI"
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Attachment describes an uploaded file. Attachments are created by the upload
// pipeline and never mutated afterwards; messages only reference them.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// Message represents a single message in a conversation.
//
// Timestamp is epoch milliseconds. A zero ID or Timestamp means "not assigned
// yet"; the conversation store fills both in on insert.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Timestamp   int64        `json:"timestamp"`
	Attachments []Attachment `json:"attachments,omitempty"`
	IsLoading   bool         `json:"isLoading,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Time returns the message timestamp as a time.Time. The zero time is
// returned when no timestamp has been assigned.
func (m Message) Time() time.Time {
	if m.Timestamp <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.Timestamp)
}

// Failed reports whether the message carries an error.
func (m Message) Failed() bool {
	return m.Error != ""
}

// Clone returns a copy of m that shares no slices with the original. An
// empty attachment list becomes nil, matching its JSON form.
func (m Message) Clone() Message {
	if len(m.Attachments) == 0 {
		m.Attachments = nil
	} else {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return m
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// CloneMessages deep-copies a message slice. A nil input yields an empty,
// non-nil slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
