// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
)

func ptr[T any](v T) *T { return &v }

func newTestStore(opts ...Option) *Store {
	return NewStore(settings.Defaults(), opts...)
}

func TestNewStore_InitialState(t *testing.T) {
	st := newTestStore().Snapshot()
	assert.Empty(t, st.Messages)
	assert.NotNil(t, st.Messages)
	assert.False(t, st.IsProcessing)
	assert.False(t, st.HasError())
	assert.Equal(t, settings.Defaults(), st.Settings)
}

// =============================================================================
// ADD
// =============================================================================

func TestAddMessage_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(WithClock(func() int64 { return 1000 }))

	a := s.AddMessage(model.Message{Role: model.RoleUser, Content: "one"})
	b := s.AddMessage(model.Message{Role: model.RoleAssistant, IsLoading: true})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1000), a.Timestamp)
	assert.Equal(t, int64(1001), b.Timestamp, "same-millisecond inserts stay strictly ordered")

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, a.ID, msgs[0].ID)
	assert.Equal(t, b.ID, msgs[1].ID)
}

func TestAddMessage_KeepsProvidedFields(t *testing.T) {
	s := newTestStore()
	got := s.AddMessage(model.Message{ID: "fixed", Timestamp: 42, Role: model.RoleSystem})
	assert.Equal(t, "fixed", got.ID)
	assert.Equal(t, int64(42), got.Timestamp)
}

func TestAddMessage_DefensiveCopy(t *testing.T) {
	s := newTestStore()
	atts := []model.Attachment{{ID: "f1"}}
	s.AddMessage(model.Message{Role: model.RoleUser, Attachments: atts})
	atts[0].ID = "mutated"

	assert.Equal(t, "f1", s.Messages()[0].Attachments[0].ID)
}

func TestAddMessage_EmptyAttachmentsStoredAsNil(t *testing.T) {
	s := newTestStore()
	got := s.AddMessage(model.Message{Role: model.RoleUser, Content: "hi", Attachments: []model.Attachment{}})

	assert.Nil(t, got.Attachments)
	assert.Nil(t, s.Messages()[0].Attachments)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateMessage_MergesInPlace(t *testing.T) {
	s := newTestStore()
	s.AddMessage(model.Message{ID: "u", Role: model.RoleUser, Content: "hi"})
	s.AddMessage(model.Message{ID: "p", Role: model.RoleAssistant, IsLoading: true})
	s.AddMessage(model.Message{ID: "z", Role: model.RoleUser, Content: "later"})

	s.UpdateMessage("p", MessagePatch{Content: ptr("hello"), IsLoading: ptr(false)})

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "p", msgs[1].ID, "order preserved")
	assert.Equal(t, "hello", msgs[1].Content)
	assert.False(t, msgs[1].IsLoading)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role, "unpatched fields untouched")
}

func TestUpdateMessage_EmptyPatchIsIdempotent(t *testing.T) {
	s := newTestStore()
	orig := s.AddMessage(model.Message{Role: model.RoleUser, Content: "same"})

	s.UpdateMessage(orig.ID, MessagePatch{})
	assert.Equal(t, orig, s.Messages()[0])
}

func TestUpdateMessage_UnknownIDIsNoop(t *testing.T) {
	s := newTestStore()
	s.AddMessage(model.Message{Role: model.RoleUser, Content: "x"})
	before := s.Snapshot()

	assert.NotPanics(t, func() {
		s.UpdateMessage("missing", MessagePatch{Content: ptr("y")})
	})
	assert.Equal(t, before, s.Snapshot())
}

func TestUpdateMessage_AfterClearIsNoop(t *testing.T) {
	s := newTestStore()
	p := s.AddMessage(model.Message{Role: model.RoleAssistant, IsLoading: true})
	s.ClearMessages()
	s.UpdateMessage(p.ID, MessagePatch{Content: ptr("late reply")})
	assert.Empty(t, s.Messages())
}

// =============================================================================
// FLAGS / CLEAR / LOAD
// =============================================================================

func TestClearMessages_PreservesFlagsAndSettings(t *testing.T) {
	s := newTestStore()
	custom := settings.Defaults()
	custom.Theme = settings.ThemeDark
	s.SyncSettings(custom)
	s.SetProcessing(true)
	s.SetError("boom")
	s.AddMessage(model.Message{Role: model.RoleUser})

	s.ClearMessages()
	st := s.Snapshot()
	assert.Empty(t, st.Messages)
	assert.True(t, st.IsProcessing)
	assert.Equal(t, "boom", st.Error)
	assert.Equal(t, settings.ThemeDark, st.Settings.Theme)
}

func TestSetError_ClearWithEmpty(t *testing.T) {
	s := newTestStore()
	s.SetError("bad")
	assert.True(t, s.Snapshot().HasError())
	s.SetError("")
	assert.False(t, s.Snapshot().HasError())
}

func TestLoadMessages_KeepsLaterTimestampsMonotonic(t *testing.T) {
	s := newTestStore(WithClock(func() int64 { return 10 }))
	s.LoadMessages([]model.Message{{ID: "old", Role: model.RoleUser, Timestamp: 500}})

	next := s.AddMessage(model.Message{Role: model.RoleUser})
	assert.Equal(t, int64(501), next.Timestamp)
}

func TestTryStartProcessing(t *testing.T) {
	s := newTestStore()
	assert.True(t, s.TryStartProcessing())
	assert.False(t, s.TryStartProcessing())
	s.SetProcessing(false)
	assert.True(t, s.TryStartProcessing())
}

func TestTryStartProcessing_ExactlyOneWinner(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryStartProcessing() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

// =============================================================================
// SUBSCRIPTIONS / DISPATCH
// =============================================================================

func TestSubscribe_ReceivesEveryChange(t *testing.T) {
	s := newTestStore()
	var states []State
	unsubscribe := s.Subscribe(func(st State) { states = append(states, st) })

	s.SetProcessing(true)
	s.AddMessage(model.Message{Role: model.RoleUser, Content: "a"})
	unsubscribe()
	s.SetProcessing(false)

	require.Len(t, states, 2)
	assert.True(t, states[0].IsProcessing)
	assert.Len(t, states[1].Messages, 1)
}

type bogusAction struct{ AddMessage }

func TestDispatch_UnknownActionPanics(t *testing.T) {
	s := newTestStore()
	assert.Panics(t, func() { s.Dispatch(bogusAction{}) })
}

func TestConcurrentAdds_UniqueIDs(t *testing.T) {
	s := newTestStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.AddMessage(model.Message{Role: model.RoleUser, Content: fmt.Sprint(n)})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var last int64
	for _, m := range s.Messages() {
		assert.False(t, seen[m.ID])
		seen[m.ID] = true
		assert.Greater(t, m.Timestamp, last)
		last = m.Timestamp
	}
	assert.Len(t, seen, 100)
}
