// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTimeout bounds a single provider HTTP call.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize bounds response bodies read directly (10MB).
	MaxResponseSize = 10 * 1024 * 1024

	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultDeepSeekBaseURL  = "https://api.deepseek.com/v1"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/"
)

// ErrAPIKeyRequired is returned when a provider call needs a key and none was given.
var ErrAPIKeyRequired = errors.New("API key required")

// =============================================================================
// REQUEST / RESPONSE
// =============================================================================

// ChatMessage is a provider-agnostic conversation turn.
type ChatMessage struct {
	Role    model.Role `json:"role"`
	Content string     `json:"content"`
}

// Request is the provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int
	APIKey      string
}

// Response is the normalized completion result.
type Response struct {
	ID      string
	Content string
}

// HistoryFrom converts stored messages into provider turns, preserving order.
func HistoryFrom(msgs []model.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// =============================================================================
// ADAPTER INTERFACE
// =============================================================================

// Adapter is implemented once per provider.
type Adapter interface {
	// Provider returns the provider this adapter serves.
	Provider() model.Provider

	// Send issues one completion call.
	Send(ctx context.Context, req Request) (*Response, error)

	// ValidateAPIKey returns nil when the provider accepts apiKey.
	ValidateAPIKey(ctx context.Context, apiKey string) error

	// ListModels returns the model identifiers visible to apiKey.
	ListModels(ctx context.Context, apiKey string) ([]string, error)
}

// =============================================================================
// FACTORY
// =============================================================================

// FactoryConfig holds the endpoints and shared transport for all adapters.
// Empty base URLs fall back to the public provider endpoints.
type FactoryConfig struct {
	OpenAIBaseURL    string
	AnthropicBaseURL string
	DeepSeekBaseURL  string
	ChatEndpoint     string
	HTTPClient       *http.Client
	Logger           *zap.Logger
}

// Factory maps provider names to adapters.
type Factory struct {
	mu       sync.RWMutex
	adapters map[model.Provider]Adapter
}

// NewFactory builds the four built-in adapters from cfg.
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	log := logging.OrNop(cfg.Logger)

	f := &Factory{adapters: make(map[model.Provider]Adapter)}
	f.Register(NewOpenAI(orDefault(cfg.OpenAIBaseURL, DefaultOpenAIBaseURL), cfg.HTTPClient, log))
	f.Register(NewDeepSeek(orDefault(cfg.DeepSeekBaseURL, DefaultDeepSeekBaseURL), cfg.HTTPClient, log))
	f.Register(NewAnthropic(orDefault(cfg.AnthropicBaseURL, DefaultAnthropicBaseURL), cfg.HTTPClient, log))
	if cfg.ChatEndpoint != "" {
		f.Register(NewCustom(cfg.ChatEndpoint, cfg.HTTPClient, log))
	}
	return f
}

// Register adds or replaces the adapter for a.Provider().
func (f *Factory) Register(a Adapter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.adapters == nil {
		f.adapters = make(map[model.Provider]Adapter)
	}
	f.adapters[a.Provider()] = a
}

// Adapter returns the adapter for p. Unknown providers yield an error
// wrapping model.ErrUnsupportedProvider.
func (f *Factory) Adapter(p model.Provider) (Adapter, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	a, ok := f.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedProvider, p)
	}
	return a, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func requireKey(p model.Provider, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%w for %s", ErrAPIKeyRequired, p.DisplayName())
	}
	return nil
}

// transportError wraps err unless it is the caller's own cancellation, which
// is passed through untouched.
func transportError(ctx context.Context, p model.Provider, err error) error {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}
	return &resilience.TransportError{Provider: p, Err: err}
}

func logRequest(log *zap.Logger, p model.Provider, req Request) {
	log.Debug("provider request",
		zap.String("provider", string(p)),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Float64("temperature", req.Temperature),
		zap.Int("max_tokens", req.MaxTokens),
		logging.Key(req.APIKey))
}

func logResult(log *zap.Logger, p model.Provider, start time.Time, err error) {
	if err != nil {
		log.Debug("provider call failed",
			zap.String("provider", string(p)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Int("status", resilience.StatusOf(err)),
			zap.Error(err))
		return
	}
	log.Debug("provider call succeeded",
		zap.String("provider", string(p)),
		zap.Duration("elapsed", time.Since(start)))
}
