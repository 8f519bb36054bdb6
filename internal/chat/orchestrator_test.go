// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdeck/internal/conversation"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/provider"
	"github.com/jeranaias/chatdeck/internal/resilience"
	"github.com/jeranaias/chatdeck/internal/settings"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// =============================================================================
// FAKES
// =============================================================================

type fakeAdapter struct {
	p       model.Provider
	calls   atomic.Int32
	mu      sync.Mutex
	lastReq provider.Request
	send    func(ctx context.Context, req provider.Request) (*provider.Response, error)
}

func (f *fakeAdapter) Provider() model.Provider { return f.p }

func (f *fakeAdapter) Send(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastReq = req
	f.mu.Unlock()
	return f.send(ctx, req)
}

func (f *fakeAdapter) ValidateAPIKey(context.Context, string) error { return nil }

func (f *fakeAdapter) ListModels(context.Context, string) ([]string, error) { return nil, nil }

type adapterMap map[model.Provider]provider.Adapter

func (m adapterMap) Adapter(p model.Provider) (provider.Adapter, error) {
	if a, ok := m[p]; ok {
		return a, nil
	}
	return nil, model.ErrUnsupportedProvider
}

type staticSettings struct{ s settings.Settings }

func (s staticSettings) Get() settings.Settings { return s.s.Clone() }

type memHistory struct {
	mu    sync.Mutex
	saves int
	last  []model.Message
}

func (h *memHistory) SaveMessages(id, modelID string, msgs []model.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.saves++
	h.last = msgs
	return nil
}

func reply(text string) func(context.Context, provider.Request) (*provider.Response, error) {
	return func(context.Context, provider.Request) (*provider.Response, error) {
		return &provider.Response{Content: text}, nil
	}
}

func fastRetry() resilience.Options {
	opts := resilience.DefaultOptions()
	opts.InitialDelay = time.Millisecond
	opts.MaxDelay = 2 * time.Millisecond
	return opts
}

func withKey() settings.Settings {
	st := settings.Defaults()
	st.APIKeys[model.ProviderOpenAI] = "sk-test"
	return st
}

type harness struct {
	orch    *Orchestrator
	conv    *conversation.Store
	adapter *fakeAdapter
	history *memHistory
}

func newHarness(t *testing.T, st settings.Settings, send func(context.Context, provider.Request) (*provider.Response, error)) *harness {
	t.Helper()
	conv := conversation.NewStore(st)
	adapter := &fakeAdapter{p: model.ProviderOpenAI, send: send}
	history := &memHistory{}
	orch, err := New(Config{
		Conversation: conv,
		Settings:     staticSettings{st},
		Adapters:     adapterMap{model.ProviderOpenAI: adapter},
		Retry:        fastRetry(),
		History:      history,
	})
	require.NoError(t, err)
	return &harness{orch: orch, conv: conv, adapter: adapter, history: history}
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_Success(t *testing.T) {
	h := newHarness(t, withKey(), reply("Hello!"))

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)

	state := h.conv.Snapshot()
	require.Len(t, state.Messages, 2)
	user, ai := state.Messages[0], state.Messages[1]

	assert.Equal(t, res.UserID, user.ID)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "Hi", user.Content)

	assert.Equal(t, res.AssistantID, ai.ID)
	assert.Equal(t, model.RoleAssistant, ai.Role)
	assert.Equal(t, "Hello!", ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Empty(t, ai.Error)
	assert.Greater(t, ai.Timestamp, user.Timestamp)

	assert.False(t, state.IsProcessing)
	assert.False(t, state.HasError())
	assert.Equal(t, 1, h.history.saves)
}

func TestSend_PassesSettingsAndHistory(t *testing.T) {
	st := withKey()
	st.Temperature = 1.3
	st.MaxTokens = 512
	h := newHarness(t, st, reply("ok"))

	_, err := h.orch.Send(context.Background(), "first", nil)
	require.NoError(t, err)
	_, err = h.orch.Send(context.Background(), "second", nil)
	require.NoError(t, err)

	req := h.adapter.lastReq
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, "sk-test", req.APIKey)
	assert.InDelta(t, 1.3, req.Temperature, 1e-9)
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, []provider.ChatMessage{
		{Role: model.RoleUser, Content: "first"},
		{Role: model.RoleAssistant, Content: "ok"},
		{Role: model.RoleUser, Content: "second"},
	}, req.Messages)
}

func TestSend_MissingKeyRejects(t *testing.T) {
	h := newHarness(t, settings.Defaults(), reply("never"))

	var sawProcessing atomic.Bool
	unsub := h.conv.Subscribe(func(s conversation.State) {
		if s.IsProcessing {
			sawProcessing.Store(true)
		}
	})
	defer unsub()

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	require.ErrorIs(t, err, provider.ErrAPIKeyRequired)
	assert.Equal(t, StatusRejected, res.Status)

	state := h.conv.Snapshot()
	assert.Empty(t, state.Messages)
	assert.Equal(t, "API key required for GPT-4o", state.Error)
	assert.False(t, state.IsProcessing)
	assert.False(t, sawProcessing.Load())
	assert.Zero(t, h.adapter.calls.Load())
}

func TestSend_CustomModelNeedsNoKey(t *testing.T) {
	st := settings.Defaults()
	st.SelectedModel = model.DefaultModelFor(model.ProviderCustom)

	conv := conversation.NewStore(st)
	adapter := &fakeAdapter{p: model.ProviderCustom, send: reply("custom reply")}
	orch, err := New(Config{
		Conversation: conv,
		Settings:     staticSettings{st},
		Adapters:     adapterMap{model.ProviderCustom: adapter},
		Retry:        fastRetry(),
	})
	require.NoError(t, err)

	res, err := orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "", adapter.lastReq.APIKey)
}

func TestSend_UnsupportedProviderRejects(t *testing.T) {
	st := settings.Defaults()
	st.SelectedModel = model.ChatModel{ID: "x", Name: "X", Provider: "nowhere"}
	h := newHarness(t, st, reply("never"))

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	assert.ErrorIs(t, err, model.ErrUnsupportedProvider)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Empty(t, h.conv.Messages())
	assert.Contains(t, h.conv.Snapshot().Error, "Unsupported provider")
}

func TestSend_ProviderErrorReconciles(t *testing.T) {
	h := newHarness(t, withKey(), func(context.Context, provider.Request) (*provider.Response, error) {
		return nil, resilience.NewAPIError(model.ProviderOpenAI, http.StatusUnauthorized, []byte(`{"error":{"message":"bad key"}}`))
	})

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.EqualValues(t, 1, h.adapter.calls.Load(), "401 must not be retried")

	state := h.conv.Snapshot()
	require.Len(t, state.Messages, 2)
	ai := state.Messages[1]
	assert.Equal(t, FailedContent, ai.Content)
	assert.False(t, ai.IsLoading)
	assert.Equal(t, "Authentication failed for OpenAI. Please check your API key.", ai.Error)
	assert.Equal(t, ai.Error, state.Error)
	assert.False(t, state.IsProcessing)
}

func TestSend_RetriesServerErrors(t *testing.T) {
	h := newHarness(t, withKey(), func(context.Context, provider.Request) (*provider.Response, error) {
		return nil, resilience.NewAPIError(model.ProviderOpenAI, http.StatusServiceUnavailable, nil)
	})

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.EqualValues(t, 4, h.adapter.calls.Load())
	assert.Equal(t, "OpenAI service is currently unavailable. Please try again later.", h.conv.Snapshot().Error)
}

func TestSend_RecoversAfterTransientFailure(t *testing.T) {
	var n atomic.Int32
	h := newHarness(t, withKey(), func(context.Context, provider.Request) (*provider.Response, error) {
		if n.Add(1) < 3 {
			return nil, resilience.NewAPIError(model.ProviderOpenAI, http.StatusTooManyRequests, nil)
		}
		return &provider.Response{Content: "finally"}, nil
	})

	res, err := h.orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "finally", h.conv.Messages()[1].Content)
}

func TestSend_BusyWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, withKey(), func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		close(started)
		<-release
		return &provider.Response{Content: "done"}, nil
	})

	done := make(chan Result)
	go func() {
		res, _ := h.orch.Send(context.Background(), "first", nil)
		done <- res
	}()
	<-started

	res, err := h.orch.Send(context.Background(), "second", nil)
	assert.NoError(t, err)
	assert.Equal(t, StatusBusy, res.Status)
	assert.Len(t, h.conv.Messages(), 2)

	snap := h.conv.Snapshot()
	assert.True(t, snap.IsProcessing)
	assert.True(t, snap.Messages[1].IsLoading)

	close(release)
	assert.Equal(t, StatusSucceeded, (<-done).Status)
	assert.False(t, h.conv.IsProcessing())
}

func TestSend_ConcurrentCallersOnlyOneWins(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, withKey(), func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		<-release
		return &provider.Response{Content: "ok"}, nil
	})

	var wg sync.WaitGroup
	results := make(chan Status, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := h.orch.Send(context.Background(), "hi", nil)
			results <- res.Status
		}()
	}

	// Seven callers must bounce while the eighth is parked in the adapter.
	counts := map[Status]int{}
	for i := 0; i < 7; i++ {
		counts[<-results]++
	}
	close(release)
	wg.Wait()
	close(results)
	for s := range results {
		counts[s]++
	}

	assert.Equal(t, 1, counts[StatusSucceeded])
	assert.Equal(t, 7, counts[StatusBusy])
	assert.EqualValues(t, 1, h.adapter.calls.Load())
	assert.Len(t, h.conv.Messages(), 2)
}

func TestSend_CallerCancel(t *testing.T) {
	h := newHarness(t, withKey(), func(ctx context.Context, req provider.Request) (*provider.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res, err := h.orch.Send(ctx, "Hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, res.Status)

	ai := h.conv.Messages()[1]
	assert.Equal(t, CancelledText, ai.Error)
	assert.False(t, ai.IsLoading)
	assert.False(t, h.conv.IsProcessing())
}

func TestSend_PlaceholderIsLoadingDuringFlight(t *testing.T) {
	var seen []conversation.State
	var mu sync.Mutex
	h := newHarness(t, withKey(), reply("ok"))
	h.conv.Subscribe(func(s conversation.State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	_, err := h.orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	var sawPlaceholder bool
	for _, s := range seen {
		if len(s.Messages) == 2 && s.Messages[1].IsLoading {
			sawPlaceholder = true
			assert.True(t, s.IsProcessing)
			assert.Equal(t, model.RoleUser, s.Messages[0].Role)
		}
	}
	assert.True(t, sawPlaceholder)
	assert.False(t, seen[len(seen)-1].IsProcessing)
}

func TestSend_NoHistoryWhenDisabled(t *testing.T) {
	st := withKey()
	st.SaveHistory = false
	h := newHarness(t, st, reply("ok"))

	_, err := h.orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)
	assert.Zero(t, h.history.saves)
}

// =============================================================================
// FILE TESTS
// =============================================================================

type stubUploader struct {
	err error
}

func (s stubUploader) Upload(ctx context.Context, f upload.File) (model.Attachment, error) {
	if s.err != nil {
		return model.Attachment{}, s.err
	}
	return model.Attachment{ID: "file_" + f.Name, Name: f.Name, Type: f.Type, URL: "https://files/" + f.Name, Size: f.Size}, nil
}

func TestSendFiles_AttachesUploads(t *testing.T) {
	st := withKey()
	conv := conversation.NewStore(st)
	adapter := &fakeAdapter{p: model.ProviderOpenAI, send: reply("seen")}
	orch, err := New(Config{
		Conversation: conv,
		Settings:     staticSettings{st},
		Adapters:     adapterMap{model.ProviderOpenAI: adapter},
		Retry:        fastRetry(),
		Uploader:     stubUploader{},
	})
	require.NoError(t, err)

	files := []upload.File{upload.NewFile("a.txt", "text/plain", []byte("hello"))}
	res, err := orch.SendFiles(context.Background(), "look", files)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)

	user := conv.Messages()[0]
	require.Len(t, user.Attachments, 1)
	assert.Equal(t, "file_a.txt", user.Attachments[0].ID)
}

func TestSendFiles_UploadFailureSendsNothing(t *testing.T) {
	st := withKey()
	conv := conversation.NewStore(st)
	adapter := &fakeAdapter{p: model.ProviderOpenAI, send: reply("never")}
	orch, err := New(Config{
		Conversation: conv,
		Settings:     staticSettings{st},
		Adapters:     adapterMap{model.ProviderOpenAI: adapter},
		Uploader:     stubUploader{err: errors.New("Upload failed: 500 Internal Server Error")},
	})
	require.NoError(t, err)

	files := []upload.File{upload.NewFile("a.txt", "text/plain", []byte("hello"))}
	res, err := orch.SendFiles(context.Background(), "look", files)
	require.Error(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Empty(t, conv.Messages())
	assert.Equal(t, "Upload failed: 500 Internal Server Error", conv.Snapshot().Error)
	assert.Zero(t, adapter.calls.Load())
}

func TestSendFiles_ValidationFailure(t *testing.T) {
	h := newHarness(t, withKey(), reply("never"))
	h.orch.uploader = stubUploader{}

	files := []upload.File{{Name: "big.png", Type: "image/png", Size: 15 * upload.MiB}}
	res, err := h.orch.SendFiles(context.Background(), "look", files)
	require.Error(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, "File size exceeds 10MB limit", h.conv.Snapshot().Error)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestResetAndResume(t *testing.T) {
	h := newHarness(t, withKey(), reply("ok"))
	first := h.orch.ConversationID()

	_, err := h.orch.Send(context.Background(), "Hi", nil)
	require.NoError(t, err)

	assert.True(t, h.orch.Reset())
	assert.Empty(t, h.conv.Messages())
	assert.NotEqual(t, first, h.orch.ConversationID())

	saved := []model.Message{{ID: "m1", Role: model.RoleUser, Content: "old", Timestamp: 5}}
	assert.True(t, h.orch.Resume("conv_old", saved))
	assert.Equal(t, "conv_old", h.orch.ConversationID())
	assert.Equal(t, "old", h.conv.Messages()[0].Content)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "busy", StatusBusy.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
