// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/conversation"
	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/provider"
	"github.com/jeranaias/chatdeck/internal/resilience"
	"github.com/jeranaias/chatdeck/internal/settings"
	"github.com/jeranaias/chatdeck/internal/storage"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// Text written into an assistant message whose request failed.
const (
	FailedContent = "An error occurred while processing your request."
	CancelledText = "Request cancelled."
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// SettingsSource supplies the current settings snapshot.
type SettingsSource interface {
	Get() settings.Settings
}

// AdapterSource routes a provider to its adapter.
type AdapterSource interface {
	Adapter(p model.Provider) (provider.Adapter, error)
}

// HistorySaver persists a conversation after each reconciled send.
type HistorySaver interface {
	SaveMessages(id, modelID string, msgs []model.Message) error
}

// Config wires an Orchestrator.
type Config struct {
	Conversation *conversation.Store
	Settings     SettingsSource
	Adapters     AdapterSource
	Retry        resilience.Options
	Uploader     upload.Uploader
	Limits       upload.Limits
	History      HistorySaver
	Logger       *zap.Logger

	// ConversationID names the saved conversation. Empty means a new id.
	ConversationID string
}

// =============================================================================
// RESULT
// =============================================================================

// Status is the outcome of one Send.
type Status int

const (
	// StatusBusy means another send was in flight; nothing changed.
	StatusBusy Status = iota
	// StatusRejected means validation failed before any message was inserted.
	StatusRejected
	// StatusSucceeded means the placeholder holds the provider's reply.
	StatusSucceeded
	// StatusFailed means the placeholder was reconciled with an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusBusy:
		return "busy"
	case StatusRejected:
		return "rejected"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Result reports what a Send did. The ids are empty unless messages were
// inserted.
type Result struct {
	Status      Status
	UserID      string
	AssistantID string
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs sends against one conversation.
type Orchestrator struct {
	conv     *conversation.Store
	settings SettingsSource
	adapters AdapterSource
	retry    resilience.Options
	uploader upload.Uploader
	limits   upload.Limits
	history  HistorySaver
	log      *zap.Logger

	mu     sync.Mutex
	convID string
}

// New returns an Orchestrator. Conversation, Settings and Adapters are
// required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Conversation == nil || cfg.Settings == nil || cfg.Adapters == nil {
		return nil, errors.New("chat: conversation, settings and adapters are required")
	}
	limits := cfg.Limits
	if limits.MaxSize <= 0 && len(limits.AllowedTypes) == 0 {
		limits = upload.DefaultLimits()
	}
	id := cfg.ConversationID
	if id == "" {
		id = storage.NewID()
	}
	return &Orchestrator{
		conv:     cfg.Conversation,
		settings: cfg.Settings,
		adapters: cfg.Adapters,
		retry:    cfg.Retry,
		uploader: cfg.Uploader,
		limits:   limits,
		history:  cfg.History,
		log:      logging.OrNop(cfg.Logger).Named("chat"),
		convID:   id,
	}, nil
}

// Conversation returns the store this orchestrator writes to.
func (o *Orchestrator) Conversation() *conversation.Store {
	return o.conv
}

// ConversationID returns the id used when saving history.
func (o *Orchestrator) ConversationID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.convID
}

// Reset clears the conversation and starts a new saved conversation id.
// It does nothing while a send is in flight.
func (o *Orchestrator) Reset() bool {
	if o.conv.IsProcessing() {
		return false
	}
	o.conv.ClearMessages()
	o.mu.Lock()
	o.convID = storage.NewID()
	o.mu.Unlock()
	return true
}

// Resume loads a saved conversation into the store and continues it.
func (o *Orchestrator) Resume(id string, msgs []model.Message) bool {
	if o.conv.IsProcessing() {
		return false
	}
	o.conv.LoadMessages(msgs)
	o.mu.Lock()
	o.convID = id
	o.mu.Unlock()
	return true
}

// Send submits text with already-uploaded attachments.
//
// Validation failures return StatusRejected with the reason recorded through
// SetError; no message is inserted and the processing flag is never set.
// Provider failures return StatusFailed after the placeholder is reconciled.
// The processing flag is cleared on every path that set it.
func (o *Orchestrator) Send(ctx context.Context, text string, attachments []model.Attachment) (Result, error) {
	if o.conv.IsProcessing() {
		return Result{Status: StatusBusy}, nil
	}

	st := o.settings.Get()
	chatModel := st.SelectedModel
	apiKey := st.APIKey(chatModel.Provider)

	if chatModel.APIKeyRequired && apiKey == "" {
		err := fmt.Errorf("%w for %s", provider.ErrAPIKeyRequired, chatModel.Name)
		o.conv.SetError(err.Error())
		return Result{Status: StatusRejected}, err
	}

	adapter, err := o.adapters.Adapter(chatModel.Provider)
	if err != nil {
		msg := fmt.Sprintf("Unsupported provider: %s", chatModel.Provider)
		o.conv.SetError(msg)
		return Result{Status: StatusRejected}, err
	}

	if !o.conv.TryStartProcessing() {
		return Result{Status: StatusBusy}, nil
	}
	defer o.conv.SetProcessing(false)

	history := provider.HistoryFrom(o.conv.Messages())
	history = append(history, provider.ChatMessage{Role: model.RoleUser, Content: text})

	user := o.conv.AddMessage(model.Message{
		Role:        model.RoleUser,
		Content:     text,
		Attachments: attachments,
	})
	placeholder := o.conv.AddMessage(model.Message{
		Role:      model.RoleAssistant,
		IsLoading: true,
	})
	res := Result{UserID: user.ID, AssistantID: placeholder.ID}

	req := provider.Request{
		Model:       chatModel.ID,
		Messages:    history,
		Temperature: st.Temperature,
		MaxTokens:   st.MaxTokens,
		APIKey:      apiKey,
	}

	retry := o.retry
	if retry.OnRetry == nil {
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			o.log.Info("retrying request",
				zap.String("provider", string(chatModel.Provider)),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err))
		}
	}

	start := time.Now()
	resp, err := resilience.Do(ctx, retry, func(ctx context.Context) (*provider.Response, error) {
		return adapter.Send(ctx, req)
	})

	if err == nil {
		content := resp.Content
		loading := false
		ts := o.conv.NextTimestamp()
		o.conv.UpdateMessage(placeholder.ID, conversation.MessagePatch{
			Content:   &content,
			IsLoading: &loading,
			Timestamp: &ts,
		})
		o.log.Debug("send reconciled",
			zap.String("model", chatModel.ID),
			zap.Duration("elapsed", time.Since(start)))
		res.Status = StatusSucceeded
		o.saveHistory(st)
		return res, nil
	}

	friendly := resilience.FriendlyMessage(err)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		friendly = CancelledText
	}
	content := FailedContent
	loading := false
	o.conv.UpdateMessage(placeholder.ID, conversation.MessagePatch{
		Content:   &content,
		IsLoading: &loading,
		Error:     &friendly,
	})
	o.conv.SetError(friendly)
	o.log.Warn("send failed",
		zap.String("model", chatModel.ID),
		zap.Int("status", resilience.StatusOf(err)),
		zap.Error(err))

	res.Status = StatusFailed
	o.saveHistory(st)
	return res, err
}

// SendFiles validates and uploads files, then sends text with the resulting
// attachments. Nothing is sent when any file fails; the failure is recorded
// through SetError.
func (o *Orchestrator) SendFiles(ctx context.Context, text string, files []upload.File) (Result, error) {
	if o.conv.IsProcessing() {
		return Result{Status: StatusBusy}, nil
	}
	attachments, err := upload.UploadAll(ctx, o.uploader, files, o.limits)
	if err != nil {
		o.conv.SetError(err.Error())
		return Result{Status: StatusRejected}, err
	}
	return o.Send(ctx, text, attachments)
}

// saveHistory runs after reconciliation. Failures are logged only.
func (o *Orchestrator) saveHistory(st settings.Settings) {
	if o.history == nil || !st.SaveHistory {
		return
	}
	id := o.ConversationID()
	if err := o.history.SaveMessages(id, st.SelectedModel.ID, o.conv.Messages()); err != nil {
		o.log.Warn("failed to save conversation", zap.String("id", id), zap.Error(err))
	}
}
