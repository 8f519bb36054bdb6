// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/util"
)

// DefaultMaxConversations caps the number of saved conversations.
const DefaultMaxConversations = 100

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is a persisted conversation.
type StoredConversation struct {
	ID        string          `json:"id"`
	Summary   string          `json:"summary"`
	Model     string          `json:"model"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// ConversationMeta is the listing view of a conversation.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore keeps one JSON file per conversation in BaseDir.
type ConversationStore struct {
	// BaseDir holds <id>.json files.
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited).
	MaxConversations int
}

// NewConversationStore creates a store rooted at baseDir.
func NewConversationStore(baseDir string) (*ConversationStore, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, err
	}
	return &ConversationStore{BaseDir: baseDir, MaxConversations: DefaultMaxConversations}, nil
}

// NewID returns a fresh conversation id.
func NewID() string {
	return "conv_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists conv and returns its ID. Loading placeholders are not
// written; a reload never shows a request that can no longer finish.
func (s *ConversationStore) Save(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = NewID()
	}
	if conv.Summary == "" {
		conv.Summary = summarize(conv.Messages)
	}
	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	out := *conv
	out.Messages = make([]model.Message, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		if !m.IsLoading {
			out.Messages = append(out.Messages, m)
		}
	}

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return "", err
	}
	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0o600); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}
	return conv.ID, nil
}

// SaveMessages is Save for a bare message list.
func (s *ConversationStore) SaveMessages(id, modelID string, msgs []model.Message) error {
	conv := &StoredConversation{ID: id, Model: modelID, Messages: msgs}
	if prev, err := s.Load(id); err == nil {
		conv.CreatedAt = prev.CreatedAt
		conv.Summary = prev.Summary
	}
	_, err := s.Save(conv)
	return err
}

func summarize(msgs []model.Message) string {
	for _, m := range msgs {
		if m.Role == model.RoleUser && m.Content != "" {
			content := strings.NewReplacer("\n", " ", "\r", "").Replace(m.Content)
			return util.TruncateRunes(content, 50)
		}
	}
	return "New conversation"
}

// enforceLimit removes the oldest conversations beyond MaxConversations.
func (s *ConversationStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}
	for _, m := range metas[s.MaxConversations:] {
		_ = s.Delete(m.ID)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*StoredConversation, error) {
	if !validID(id) {
		return nil, ErrConversationNotFound
	}
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, err
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return &conv, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations, most recent first. Unreadable files
// are skipped.
func (s *ConversationStore) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := []ConversationMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		conv, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, ConversationMeta{
			ID:           conv.ID,
			Summary:      conv.Summary,
			Model:        conv.Model,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
			Preview:      conv.Preview(),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search returns conversations whose summary or message content contains
// query, case-insensitively.
func (s *ConversationStore) Search(query string) ([]ConversationMeta, error) {
	all, err := s.List()
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var results []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) {
			results = append(results, meta)
			continue
		}
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range conv.Messages {
			if strings.Contains(strings.ToLower(m.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	if !validID(id) {
		return ErrConversationNotFound
	}
	if err := os.Remove(s.filePath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// validID rejects ids that would escape BaseDir.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// Preview returns the first user message, truncated to 80 runes.
func (c *StoredConversation) Preview() string {
	for _, m := range c.Messages {
		if m.Role == model.RoleUser && m.Content != "" {
			return util.TruncateRunes(m.Content, 80)
		}
	}
	return ""
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError is a conversation-related error comparable with errors.Is.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is matches conversation errors by message.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList renders conversations as a fixed-width table.
func FormatList(metas []ConversationMeta) string {
	if len(metas) == 0 {
		return "No saved conversations."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 22) + " " + util.PadRight("Updated", 17) + " " + util.PadRight("Msgs", 5) + " Summary\n")
	sb.WriteString(strings.Repeat("-", 72) + "\n")
	for _, m := range metas {
		sb.WriteString(util.PadRight(m.ID, 22) + " " +
			util.PadRight(m.UpdatedAt.Format("2006-01-02 15:04"), 17) + " " +
			util.PadRight(strconv.Itoa(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Summary, 40) + "\n")
	}
	return sb.String()
}
