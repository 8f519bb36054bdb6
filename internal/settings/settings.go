// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package settings

import (
	"maps"
	"slices"
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// THEME
// =============================================================================

// Theme selects the color scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// =============================================================================
// SETTINGS
// =============================================================================

// Bounds and defaults.
const (
	MinTemperature     = 0.0
	MaxTemperature     = 2.0
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// Settings is the full set of user preferences.
type Settings struct {
	SelectedModel  model.ChatModel           `json:"selectedModel"`
	Temperature    float64                   `json:"temperature"`
	MaxTokens      int                       `json:"maxTokens"`
	APIKeys        map[model.Provider]string `json:"apiKeys"`
	Theme          Theme                     `json:"theme"`
	StreamResponse bool                      `json:"streamResponse"`
	SaveHistory    bool                      `json:"saveHistory"`
	AutoSendCode   bool                      `json:"autoSendCode"`
}

// Defaults returns the build-time defaults. API keys start empty.
func Defaults() Settings {
	return Settings{
		SelectedModel:  model.DefaultModel(),
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		APIKeys:        map[model.Provider]string{},
		Theme:          ThemeSystem,
		StreamResponse: true,
		SaveHistory:    true,
		AutoSendCode:   false,
	}
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	s.APIKeys = maps.Clone(s.APIKeys)
	if s.APIKeys == nil {
		s.APIKeys = map[model.Provider]string{}
	}
	s.SelectedModel.FileTypes = slices.Clone(s.SelectedModel.FileTypes)
	return s
}

// APIKey returns the trimmed key stored for p, or "".
func (s Settings) APIKey(p model.Provider) string {
	return strings.TrimSpace(s.APIKeys[p])
}

// normalize forces every field into its valid range. Out-of-range numbers
// are clamped and unknown enum values revert to their defaults.
func (s *Settings) normalize() {
	def := Defaults()
	if s.Temperature < MinTemperature {
		s.Temperature = MinTemperature
	}
	if s.Temperature > MaxTemperature {
		s.Temperature = MaxTemperature
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = def.MaxTokens
	}
	if !s.Theme.Valid() {
		s.Theme = def.Theme
	}
	if s.SelectedModel.IsZero() {
		s.SelectedModel = def.SelectedModel
	}
	if s.APIKeys == nil {
		s.APIKeys = map[model.Provider]string{}
	}
}

// =============================================================================
// PATCH
// =============================================================================

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	SelectedModel  *model.ChatModel
	Temperature    *float64
	MaxTokens      *int
	Theme          *Theme
	StreamResponse *bool
	SaveHistory    *bool
	AutoSendCode   *bool
}

// IsEmpty reports whether p changes nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

func (p Patch) apply(s *Settings) {
	if p.SelectedModel != nil {
		s.SelectedModel = *p.SelectedModel
		s.SelectedModel.FileTypes = slices.Clone(p.SelectedModel.FileTypes)
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.StreamResponse != nil {
		s.StreamResponse = *p.StreamResponse
	}
	if p.SaveHistory != nil {
		s.SaveHistory = *p.SaveHistory
	}
	if p.AutoSendCode != nil {
		s.AutoSendCode = *p.AutoSendCode
	}
	s.normalize()
}
