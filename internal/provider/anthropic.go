// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// anthropicMaxTemperature is the upper bound the Messages API accepts.
const anthropicMaxTemperature = 1.0

// Anthropic is the adapter for the Anthropic Messages API.
type Anthropic struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewAnthropic returns the Anthropic adapter.
func NewAnthropic(baseURL string, httpClient *http.Client, log *zap.Logger) *Anthropic {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Anthropic{baseURL: baseURL, httpClient: httpClient, log: log.Named("anthropic")}
}

// Provider implements Adapter.
func (a *Anthropic) Provider() model.Provider {
	return model.ProviderAnthropic
}

func (a *Anthropic) client(apiKey string) anthropic.Client {
	// Retries belong to the resilience layer; the SDK's own retry loop is off.
	return anthropic.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(a.baseURL),
		option.WithHTTPClient(a.httpClient),
		option.WithMaxRetries(0),
	)
}

// Send implements Adapter.
func (a *Anthropic) Send(ctx context.Context, req Request) (*Response, error) {
	if err := requireKey(model.ProviderAnthropic, req.APIKey); err != nil {
		return nil, err
	}
	logRequest(a.log, model.ProviderAnthropic, req)
	start := time.Now()

	system, msgs := toAnthropicMessages(req.Messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxTokens),
		Messages:    msgs,
		Temperature: anthropic.Float(min(req.Temperature, anthropicMaxTemperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	client := a.client(req.APIKey)
	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		err = a.normalize(ctx, err)
		logResult(a.log, model.ProviderAnthropic, start, err)
		return nil, err
	}
	logResult(a.log, model.ProviderAnthropic, start, nil)

	var sb strings.Builder
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return &Response{ID: msg.ID, Content: sb.String()}, nil
}

// ValidateAPIKey implements Adapter by listing models with the key.
func (a *Anthropic) ValidateAPIKey(ctx context.Context, apiKey string) error {
	_, err := a.ListModels(ctx, apiKey)
	return err
}

// ListModels implements Adapter.
func (a *Anthropic) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	if err := requireKey(model.ProviderAnthropic, apiKey); err != nil {
		return nil, err
	}
	client := a.client(apiKey)
	page, err := client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, a.normalize(ctx, err)
	}
	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (a *Anthropic) normalize(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return resilience.NewAPIError(model.ProviderAnthropic, apiErr.StatusCode, []byte(apiErr.RawJSON()))
	}
	return transportError(ctx, model.ProviderAnthropic, err)
}

// toAnthropicMessages folds system turns into a single system prompt, drops
// empty turns, and merges consecutive turns of the same role since the API
// requires user and assistant turns to alternate.
func toAnthropicMessages(in []ChatMessage) (string, []anthropic.MessageParam) {
	var system []string
	type turn struct {
		role  model.Role
		parts []string
	}
	var turns []turn

	for _, m := range in {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		if m.Role == model.RoleSystem {
			system = append(system, content)
			continue
		}
		role := model.RoleUser
		if m.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].parts = append(turns[n-1].parts, content)
			continue
		}
		turns = append(turns, turn{role: role, parts: []string{content}})
	}

	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.parts, "\n\n"))
		if t.role == model.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return strings.Join(system, "\n\n"), out
}
