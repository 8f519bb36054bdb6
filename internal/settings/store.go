// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
)

// Store is the single in-memory copy of the user's settings.
type Store struct {
	mu    sync.RWMutex
	state Settings
	extra map[string]json.RawMessage
	seq   uint64

	// RELIABILITY: writeMu orders backend writes; written drops stale snapshots.
	writeMu sync.Mutex
	written uint64

	backend Backend
	log     *zap.Logger

	subMu  sync.Mutex
	subs   map[int]func(Settings)
	nextID int
}

// NewStore returns a store holding the defaults. It does not read backend;
// call Rehydrate for that. A nil backend keeps settings in memory only.
func NewStore(backend Backend, log *zap.Logger) *Store {
	return &Store{
		state:   Defaults(),
		backend: backend,
		log:     logging.OrNop(log).Named("settings"),
		subs:    make(map[int]func(Settings)),
	}
}

// Open returns a store rehydrated from backend.
func Open(backend Backend, log *zap.Logger) (*Store, error) {
	s := NewStore(backend, log)
	if err := s.Rehydrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rehydrate replaces the in-memory state with the persisted blob. A missing
// blob leaves the defaults in place. A blob from another schema version is
// migrated and written back in the current format.
func (s *Store) Rehydrate() error {
	if s.backend == nil {
		return nil
	}
	data, err := s.backend.Read(StorageKey)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	state, extra, migrated, err := decode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = state
	s.extra = extra
	s.seq++
	snap, seq := s.state.Clone(), s.seq
	s.mu.Unlock()

	if migrated {
		s.log.Info("migrated settings", zap.Int("to_version", SchemaVersion))
		s.persist(snap, extra, seq)
	}
	s.notify(snap)
	return nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// SetAPIKey stores key for p. Surrounding whitespace is trimmed; an empty key
// removes the entry.
func (s *Store) SetAPIKey(p model.Provider, key string) {
	key = strings.TrimSpace(key)
	s.mutate(func(st *Settings) {
		if key == "" {
			delete(st.APIKeys, p)
			return
		}
		st.APIKeys[p] = key
	})
	s.log.Debug("api key set", zap.String("provider", string(p)), logging.Key(key))
}

// RemoveAPIKey deletes the key for p.
func (s *Store) RemoveAPIKey(p model.Provider) {
	s.mutate(func(st *Settings) {
		delete(st.APIKeys, p)
	})
}

// Update applies a partial update. Invalid values are clamped.
func (s *Store) Update(p Patch) {
	s.mutate(p.apply)
}

// Reset restores the defaults, discarding every API key.
func (s *Store) Reset() {
	s.mutate(func(st *Settings) {
		*st = Defaults()
	})
}

// OnChange registers fn to receive a copy of the settings after every
// change. The returned function unregisters it.
func (s *Store) OnChange(fn func(Settings)) (unsubscribe func()) {
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

// =============================================================================
// INTERNAL
// =============================================================================

func (s *Store) mutate(fn func(*Settings)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.normalize()
	s.seq++
	snap, seq := s.state.Clone(), s.seq
	extra := maps.Clone(s.extra)
	s.mu.Unlock()

	s.persist(snap, extra, seq)
	s.notify(snap)
}

// persist writes snap unless a newer snapshot has already been written.
// Errors are logged; the in-memory state stays authoritative.
func (s *Store) persist(snap Settings, extra map[string]json.RawMessage, seq uint64) {
	if s.backend == nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if seq <= s.written {
		return
	}

	data, err := encode(snap, extra)
	if err == nil {
		err = s.backend.Write(StorageKey, data)
	}
	if err != nil {
		s.log.Error("failed to persist settings", zap.Error(err))
		return
	}
	s.written = seq
}

func (s *Store) notify(snap Settings) {
	s.subMu.Lock()
	fns := make([]func(Settings), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap.Clone())
	}
}
