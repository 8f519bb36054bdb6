// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// PROVIDER TYPE
// =============================================================================

// Provider identifies the LLM service a model is served by.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderDeepSeek  Provider = "deepseek"
	ProviderCustom    Provider = "custom"
)

// ErrUnsupportedProvider is returned when a provider name is not recognized.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Providers lists every supported provider in display order.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderCustom}
}

// ParseProvider converts a name into a Provider. Matching is case-insensitive.
func ParseProvider(name string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Providers() {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderAnthropic:
		return "Anthropic"
	case ProviderDeepSeek:
		return "DeepSeek"
	case ProviderCustom:
		return "Custom"
	default:
		return string(p)
	}
}

// =============================================================================
// CHAT MODEL TYPE
// =============================================================================

// ChatModel is immutable reference data describing a selectable model.
type ChatModel struct {
	ID             string   `json:"id" toml:"id"`
	Name           string   `json:"name" toml:"name"`
	Provider       Provider `json:"provider" toml:"provider"`
	MaxTokens      int      `json:"maxTokens" toml:"max_tokens"`
	Temperature    float64  `json:"temperature" toml:"temperature"`
	APIKeyRequired bool     `json:"apiKeyRequired" toml:"api_key_required"`
	SupportsFiles  bool     `json:"supportsFiles,omitempty" toml:"supports_files,omitempty"`
	FileTypes      []string `json:"fileTypes,omitempty" toml:"file_types,omitempty"`
}

// IsZero reports whether no model is set.
func (m ChatModel) IsZero() bool {
	return m.ID == ""
}

// String returns "Name (provider)".
func (m ChatModel) String() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Provider)
}

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// registry is the static list of known models, grouped by provider.
var registry = []ChatModel{
	// OpenAI
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderOpenAI, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true,
		SupportsFiles: true, FileTypes: []string{"image/png", "image/jpeg"}},
	{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Provider: ProviderOpenAI, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},
	{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: ProviderOpenAI, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},

	// Anthropic
	{ID: "claude-3-opus-20240229", Name: "Claude 3 Opus", Provider: ProviderAnthropic, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},
	{ID: "claude-3-sonnet-20240229", Name: "Claude 3 Sonnet", Provider: ProviderAnthropic, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},
	{ID: "claude-3-haiku-20240307", Name: "Claude 3 Haiku", Provider: ProviderAnthropic, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},

	// DeepSeek
	{ID: "deepseek-chat", Name: "DeepSeek Chat", Provider: ProviderDeepSeek, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},
	{ID: "deepseek-coder", Name: "DeepSeek Coder", Provider: ProviderDeepSeek, MaxTokens: 4096, Temperature: 0.7, APIKeyRequired: true},

	// Custom endpoint
	{ID: "custom-endpoint", Name: "Custom Endpoint", Provider: ProviderCustom, MaxTokens: 4096, Temperature: 0.7,
		SupportsFiles: true, FileTypes: []string{"image/png", "image/jpeg", "application/pdf", "text/plain"}},
}

// Models returns a copy of the registry.
func Models() []ChatModel {
	out := make([]ChatModel, len(registry))
	copy(out, registry)
	return out
}

// ModelsByProvider returns the registered models for p, in registry order.
func ModelsByProvider(p Provider) []ChatModel {
	var out []ChatModel
	for _, m := range registry {
		if m.Provider == p {
			out = append(out, m)
		}
	}
	return out
}

// ModelByID looks up a registered model by its API identifier.
func ModelByID(id string) (ChatModel, bool) {
	for _, m := range registry {
		if m.ID == id {
			return m, true
		}
	}
	return ChatModel{}, false
}

// DefaultModelFor returns the first registered model of p, or the overall
// default model when p has none.
func DefaultModelFor(p Provider) ChatModel {
	if models := ModelsByProvider(p); len(models) > 0 {
		return models[0]
	}
	return DefaultModel()
}

// DefaultModel returns the model selected on first start.
func DefaultModel() ChatModel {
	return registry[0]
}
