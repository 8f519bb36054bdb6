// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// OpenAICompatible talks to any OpenAI-style chat completions API. OpenAI and
// DeepSeek differ only in provider name and base URL.
type OpenAICompatible struct {
	provider   model.Provider
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewOpenAI returns the OpenAI adapter.
func NewOpenAI(baseURL string, httpClient *http.Client, log *zap.Logger) *OpenAICompatible {
	return newOpenAICompatible(model.ProviderOpenAI, baseURL, httpClient, log)
}

// NewDeepSeek returns the DeepSeek adapter.
func NewDeepSeek(baseURL string, httpClient *http.Client, log *zap.Logger) *OpenAICompatible {
	return newOpenAICompatible(model.ProviderDeepSeek, baseURL, httpClient, log)
}

func newOpenAICompatible(p model.Provider, baseURL string, httpClient *http.Client, log *zap.Logger) *OpenAICompatible {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAICompatible{provider: p, baseURL: baseURL, httpClient: httpClient, log: log.Named(string(p))}
}

// Provider implements Adapter.
func (a *OpenAICompatible) Provider() model.Provider {
	return a.provider
}

func (a *OpenAICompatible) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = a.baseURL
	cfg.HTTPClient = a.httpClient
	return openai.NewClientWithConfig(cfg)
}

// Send implements Adapter.
func (a *OpenAICompatible) Send(ctx context.Context, req Request) (*Response, error) {
	if err := requireKey(a.provider, req.APIKey); err != nil {
		return nil, err
	}
	logRequest(a.log, a.provider, req)
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := a.client(req.APIKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		err = a.normalize(ctx, err)
		logResult(a.log, a.provider, start, err)
		return nil, err
	}
	logResult(a.log, a.provider, start, nil)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s returned no choices", a.provider.DisplayName())
	}
	return &Response{ID: resp.ID, Content: resp.Choices[0].Message.Content}, nil
}

// ValidateAPIKey implements Adapter by listing models with the key.
func (a *OpenAICompatible) ValidateAPIKey(ctx context.Context, apiKey string) error {
	_, err := a.ListModels(ctx, apiKey)
	return err
}

// ListModels implements Adapter.
func (a *OpenAICompatible) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	if err := requireKey(a.provider, apiKey); err != nil {
		return nil, err
	}
	list, err := a.client(apiKey).ListModels(ctx)
	if err != nil {
		return nil, a.normalize(ctx, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// normalize converts go-openai errors into resilience errors.
func (a *OpenAICompatible) normalize(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = resilience.MessageFromBody(a.provider, apiErr.HTTPStatusCode, nil)
		}
		return &resilience.APIError{Status: apiErr.HTTPStatusCode, Provider: a.provider, Message: msg}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return resilience.NewAPIError(a.provider, reqErr.HTTPStatusCode, reqErr.Body)
	}

	return transportError(ctx, a.provider, err)
}
