// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
)

// State is a point-in-time view of the conversation.
type State struct {
	Messages     []model.Message
	IsProcessing bool
	Error        string
	Settings     settings.Settings
}

// HasError reports whether a conversation-wide error is set.
func (s State) HasError() bool {
	return s.Error != ""
}

// MessageByID returns the message with id.
func (s State) MessageByID(id string) (model.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.Message{}, false
}

// Store is the single mutable conversation for a session.
type Store struct {
	mu    sync.RWMutex
	state State

	// lastTS is the newest timestamp handed out, so store-assigned
	// timestamps are strictly increasing even within one millisecond.
	lastTS int64
	now    func() int64
	newID  func() string

	subMu  sync.Mutex
	subs   map[int]func(State)
	nextID int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the epoch-millisecond clock.
func WithClock(now func() int64) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides message id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns an empty, idle conversation using initial as its settings
// snapshot.
func NewStore(initial settings.Settings, opts ...Option) *Store {
	s := &Store{
		state: State{Messages: []model.Message{}, Settings: initial.Clone()},
		now:   model.NowMillis,
		newID: func() string { return "msg_" + uuid.NewString() },
		subs:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// DISPATCH
// =============================================================================

// Dispatch applies a to the state and notifies subscribers. It returns the
// message stored by an AddMessage action; for other actions the zero Message.
func (s *Store) Dispatch(a Action) model.Message {
	s.mu.Lock()
	added := s.reduce(a)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return added
}

// reduce is the transition table. Callers hold s.mu.
func (s *Store) reduce(a Action) model.Message {
	switch act := a.(type) {
	case AddMessage:
		m := act.Message.Clone()
		if m.ID == "" {
			m.ID = s.newID()
		}
		if m.Timestamp == 0 {
			m.Timestamp = s.nextTimestamp()
		} else if m.Timestamp > s.lastTS {
			s.lastTS = m.Timestamp
		}
		s.state.Messages = append(s.state.Messages, m)
		return m.Clone()

	case UpdateMessage:
		for i := range s.state.Messages {
			if s.state.Messages[i].ID == act.ID {
				act.Patch.applyTo(&s.state.Messages[i])
				break
			}
		}

	case ClearMessages:
		s.state.Messages = []model.Message{}

	case LoadMessages:
		s.state.Messages = model.CloneMessages(act.Messages)
		for _, m := range s.state.Messages {
			if m.Timestamp > s.lastTS {
				s.lastTS = m.Timestamp
			}
		}

	case SetProcessing:
		s.state.IsProcessing = act.Processing

	case SetError:
		s.state.Error = act.Error

	case SyncSettings:
		s.state.Settings = act.Settings.Clone()

	default:
		panic(fmt.Sprintf("conversation: unknown action %T", a))
	}
	return model.Message{}
}

func (s *Store) nextTimestamp() int64 {
	ts := s.now()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// NextTimestamp reserves a timestamp later than every one handed out so far.
func (s *Store) NextTimestamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTimestamp()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// AddMessage appends m and returns it as stored.
func (s *Store) AddMessage(m model.Message) model.Message {
	return s.Dispatch(AddMessage{Message: m})
}

// UpdateMessage merges p into the message with id. Unknown ids are a no-op.
func (s *Store) UpdateMessage(id string, p MessagePatch) {
	s.Dispatch(UpdateMessage{ID: id, Patch: p})
}

// ClearMessages empties the message list.
func (s *Store) ClearMessages() {
	s.Dispatch(ClearMessages{})
}

// LoadMessages replaces the message list.
func (s *Store) LoadMessages(msgs []model.Message) {
	s.Dispatch(LoadMessages{Messages: msgs})
}

// SetProcessing sets the processing flag.
func (s *Store) SetProcessing(v bool) {
	s.Dispatch(SetProcessing{Processing: v})
}

// SetError sets or, with "", clears the conversation error.
func (s *Store) SetError(msg string) {
	s.Dispatch(SetError{Error: msg})
}

// SyncSettings replaces the settings snapshot.
func (s *Store) SyncSettings(st settings.Settings) {
	s.Dispatch(SyncSettings{Settings: st})
}

// TryStartProcessing sets the processing flag if it is clear and reports
// whether it did. The check and the set happen under one lock.
func (s *Store) TryStartProcessing() bool {
	s.mu.Lock()
	if s.state.IsProcessing {
		s.mu.Unlock()
		return false
	}
	s.reduce(SetProcessing{Processing: true})
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// =============================================================================
// READERS
// =============================================================================

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Messages returns a copy of the message list.
func (s *Store) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneMessages(s.state.Messages)
}

// IsProcessing reports whether a send is in flight.
func (s *Store) IsProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsProcessing
}

func (s *Store) snapshotLocked() State {
	return State{
		Messages:     model.CloneMessages(s.state.Messages),
		IsProcessing: s.state.IsProcessing,
		Error:        s.state.Error,
		Settings:     s.state.Settings.Clone(),
	}
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to receive a snapshot after every change. fn runs
// on the goroutine that made the change. Subscribers share one snapshot per
// change and must treat it as read-only.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap State) {
	s.subMu.Lock()
	if len(s.subs) == 0 {
		s.subMu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
