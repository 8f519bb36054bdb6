// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdeck/internal/model"
)

func ptr[T any](v T) *T { return &v }

// =============================================================================
// STORE OPERATIONS
// =============================================================================

func TestStore_Defaults(t *testing.T) {
	s := NewStore(nil, nil)
	got := s.Get()

	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, ThemeSystem, got.Theme)
	assert.True(t, got.StreamResponse)
	assert.True(t, got.SaveHistory)
	assert.False(t, got.AutoSendCode)
	assert.Empty(t, got.APIKeys)
	assert.Equal(t, model.DefaultModel().ID, got.SelectedModel.ID)
}

func TestStore_APIKeys(t *testing.T) {
	s := NewStore(NewMemoryBackend(), nil)

	s.SetAPIKey(model.ProviderOpenAI, "  sk-1  ")
	assert.Equal(t, "sk-1", s.Get().APIKey(model.ProviderOpenAI))

	s.SetAPIKey(model.ProviderAnthropic, "sk-ant")
	s.RemoveAPIKey(model.ProviderOpenAI)
	got := s.Get()
	assert.Equal(t, "", got.APIKey(model.ProviderOpenAI))
	assert.Equal(t, "sk-ant", got.APIKey(model.ProviderAnthropic))

	s.SetAPIKey(model.ProviderAnthropic, "")
	assert.NotContains(t, s.Get().APIKeys, model.ProviderAnthropic)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore(nil, nil)
	s.SetAPIKey(model.ProviderOpenAI, "k")

	got := s.Get()
	got.APIKeys[model.ProviderOpenAI] = "tampered"
	assert.Equal(t, "k", s.Get().APIKey(model.ProviderOpenAI))
}

func TestStore_UpdateClampsAndIgnoresInvalid(t *testing.T) {
	s := NewStore(nil, nil)

	s.Update(Patch{Temperature: ptr(3.5), MaxTokens: ptr(-1), Theme: ptr(Theme("neon"))})
	got := s.Get()
	assert.Equal(t, 2.0, got.Temperature)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.Equal(t, ThemeSystem, got.Theme)

	s.Update(Patch{Temperature: ptr(-0.2)})
	assert.Equal(t, 0.0, s.Get().Temperature)
}

func TestStore_UpdatePartial(t *testing.T) {
	s := NewStore(nil, nil)
	claude, _ := model.ModelByID("claude-3-haiku-20240307")

	s.Update(Patch{SelectedModel: &claude, Theme: ptr(ThemeDark), AutoSendCode: ptr(true)})
	got := s.Get()
	assert.Equal(t, claude.ID, got.SelectedModel.ID)
	assert.Equal(t, ThemeDark, got.Theme)
	assert.True(t, got.AutoSendCode)
	assert.Equal(t, 0.7, got.Temperature, "untouched fields keep their value")

	before := s.Get()
	s.Update(Patch{})
	assert.Equal(t, before, s.Get())
}

func TestStore_ResetDiscardsKeys(t *testing.T) {
	s := NewStore(NewMemoryBackend(), nil)
	s.SetAPIKey(model.ProviderOpenAI, "k")
	s.Update(Patch{MaxTokens: ptr(999)})

	s.Reset()
	assert.Equal(t, Defaults(), s.Get())
}

func TestStore_OnChange(t *testing.T) {
	s := NewStore(nil, nil)
	var seen []Settings
	unsubscribe := s.OnChange(func(st Settings) { seen = append(seen, st) })

	s.Update(Patch{Theme: ptr(ThemeLight)})
	unsubscribe()
	s.Update(Patch{Theme: ptr(ThemeDark)})

	require.Len(t, seen, 1)
	assert.Equal(t, ThemeLight, seen[0].Theme)
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestStore_PersistsAndRehydrates(t *testing.T) {
	backend := NewFileBackend(t.TempDir())

	s := NewStore(backend, nil)
	s.SetAPIKey(model.ProviderDeepSeek, "ds-key")
	s.Update(Patch{Temperature: ptr(1.1), SaveHistory: ptr(false)})

	reopened, err := Open(backend, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Get(), reopened.Get())
}

func TestStore_BlobHasVersionTag(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend, nil)
	s.Update(Patch{Theme: ptr(ThemeDark)})

	data, err := backend.Read(StorageKey)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, SchemaVersion, env.Version)
	assert.Contains(t, string(env.State), `"theme":"dark"`)
}

type failingBackend struct{ MemoryBackend }

func (f *failingBackend) Write(string, []byte) error { return errors.New("disk full") }

func TestStore_WriteFailureKeepsInMemoryChange(t *testing.T) {
	s := NewStore(&failingBackend{}, nil)
	s.SetAPIKey(model.ProviderOpenAI, "k")
	assert.Equal(t, "k", s.Get().APIKey(model.ProviderOpenAI))
}

func TestStore_ConcurrentMutationsLastWriterWins(t *testing.T) {
	backend := NewMemoryBackend()
	s := NewStore(backend, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.Update(Patch{MaxTokens: ptr(n)})
		}(i)
	}
	wg.Wait()

	reopened, err := Open(backend, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Get().MaxTokens, reopened.Get().MaxTokens)
}

// =============================================================================
// MIGRATION
// =============================================================================

func TestMigrate_V1MergesIntoDefaultsAndKeepsUnknown(t *testing.T) {
	backend := NewMemoryBackend()
	legacy := `{"version":1,"state":{"selectedModel":"deepseek-coder","theme":"dark",
		"apiKeys":{"openai":"sk-old"},"fontSize":14}}`
	require.NoError(t, backend.Write(StorageKey, []byte(legacy)))

	s, err := Open(backend, nil)
	require.NoError(t, err)
	got := s.Get()
	assert.Equal(t, "deepseek-coder", got.SelectedModel.ID)
	assert.Equal(t, model.ProviderDeepSeek, got.SelectedModel.Provider)
	assert.Equal(t, ThemeDark, got.Theme)
	assert.Equal(t, "sk-old", got.APIKey(model.ProviderOpenAI))
	assert.Equal(t, 2000, got.MaxTokens, "missing fields come from defaults")

	// The blob is rewritten at the current version with the unknown field intact.
	data, err := backend.Read(StorageKey)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, SchemaVersion, env.Version)
	assert.Contains(t, string(env.State), `"fontSize":14`)

	// Later writes keep carrying it.
	s.Update(Patch{Theme: ptr(ThemeLight)})
	data, _ = backend.Read(StorageKey)
	assert.Contains(t, string(data), `fontSize`)
}

func TestMigrate_MalformedFieldKeepsDefault(t *testing.T) {
	st, _, err := Migrate(SchemaVersion, json.RawMessage(`{"temperature":"hot","maxTokens":512}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultTemperature, st.Temperature)
	assert.Equal(t, 512, st.MaxTokens)
}

func TestMigrate_MalformedAPIKeysLeaveNoPartialEntries(t *testing.T) {
	st, _, err := Migrate(SchemaVersion, json.RawMessage(`{"apiKeys":{"openai":"sk-a","anthropic":5},"theme":"dark"}`))
	require.NoError(t, err)
	assert.Empty(t, st.APIKeys)
	assert.Equal(t, ThemeDark, st.Theme)
}

func TestMigrate_UnknownV1ModelFallsBack(t *testing.T) {
	st, _, err := Migrate(1, json.RawMessage(`{"selectedModel":"gpt-2"}`))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultModel().ID, st.SelectedModel.ID)
}

func TestRehydrate_CorruptBlobErrors(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Write(StorageKey, []byte("not json")))
	_, err := Open(backend, nil)
	assert.Error(t, err)
}

// =============================================================================
// BACKENDS
// =============================================================================

func TestSQLiteBackend(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Read(StorageKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Write(StorageKey, []byte("one")))
	require.NoError(t, b.Write(StorageKey, []byte("two")))
	got, err := b.Read(StorageKey)
	require.NoError(t, err)
	assert.Equal(t, "two", string(got))

	s := NewStore(b, nil)
	s.SetAPIKey(model.ProviderOpenAI, "sk-db")
	reopened, err := Open(b, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-db", reopened.Get().APIKey(model.ProviderOpenAI))
}

func TestSealedBackend(t *testing.T) {
	inner := NewMemoryBackend()
	sealed, err := NewSealedBackend(inner, "correct horse")
	require.NoError(t, err)

	s := NewStore(sealed, nil)
	s.SetAPIKey(model.ProviderOpenAI, "sk-very-secret")

	raw, err := inner.Read(StorageKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-very-secret")

	reopened, err := Open(sealed, nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret", reopened.Get().APIKey(model.ProviderOpenAI))

	wrong, err := NewSealedBackend(inner, "wrong")
	require.NoError(t, err)
	_, err = wrong.Read(StorageKey)
	assert.ErrorIs(t, err, ErrSealOpen)
}

func TestSealedBackend_ReadsPlaintext(t *testing.T) {
	inner := NewMemoryBackend()
	require.NoError(t, inner.Write(StorageKey, []byte(`{"version":2,"state":{"theme":"dark"}}`)))
	sealed, err := NewSealedBackend(inner, "pw")
	require.NoError(t, err)

	s, err := Open(sealed, nil)
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, s.Get().Theme)

	_, err = NewSealedBackend(inner, "")
	assert.Error(t, err)
}
