// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/chatdeck/internal/util"
)

// ErrNotFound is returned by Backend.Read when no blob exists for the key.
var ErrNotFound = errors.New("settings blob not found")

// Backend is a durable key/value layer.
type Backend interface {
	Read(key string) ([]byte, error)
	Write(key string, data []byte) error
}

// =============================================================================
// MEMORY BACKEND
// =============================================================================

// MemoryBackend keeps blobs in memory. It is used by tests and by callers
// that opt out of persistence.
type MemoryBackend struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

// Read implements Backend.
func (m *MemoryBackend) Read(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write implements Backend.
func (m *MemoryBackend) Write(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

// =============================================================================
// FILE BACKEND
// =============================================================================

// FileBackend stores each key as <Dir>/<key>.json.
type FileBackend struct {
	Dir string
}

// NewFileBackend returns a FileBackend rooted at dir.
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{Dir: dir}
}

// Path returns the file that holds key.
func (f *FileBackend) Path(key string) string {
	return filepath.Join(f.Dir, key+".json")
}

// Read implements Backend.
func (f *FileBackend) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(f.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Write implements Backend.
// SECURITY: Mode 0600, the blob carries API keys.
func (f *FileBackend) Write(key string, data []byte) error {
	return util.AtomicWriteFile(f.Path(key), data, 0600)
}

// Watch calls onChange whenever the file for key is created, written or
// replaced, until ctx is done. Writes made through this backend are reported
// too. The directory is watched rather than the file because atomic writes
// replace the file by rename.
func (f *FileBackend) Watch(ctx context.Context, key string, onChange func()) error {
	if err := os.MkdirAll(f.Dir, 0700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(f.Dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", f.Dir, err)
	}

	target := filepath.Clean(f.Path(key))
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					onChange()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
