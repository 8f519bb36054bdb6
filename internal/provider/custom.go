// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// Custom posts completions to a self-hosted chat endpoint. The endpoint
// receives a multipart form with a JSON "request" field and an optional
// "api_key" field, and answers {id, content, role, timestamp} on success or
// {message} with a non-2xx status on failure.
type Custom struct {
	endpoint   string
	httpClient *http.Client
	log        *zap.Logger
}

// NewCustom returns an adapter for the chat endpoint at endpoint.
func NewCustom(endpoint string, httpClient *http.Client, log *zap.Logger) *Custom {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Custom{endpoint: endpoint, httpClient: httpClient, log: log.Named("custom")}
}

// Provider implements Adapter.
func (c *Custom) Provider() model.Provider {
	return model.ProviderCustom
}

type customRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Provider    string        `json:"provider"`
}

type customResponse struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
}

// Send implements Adapter.
func (c *Custom) Send(ctx context.Context, req Request) (*Response, error) {
	logRequest(c.log, model.ProviderCustom, req)
	start := time.Now()

	body, contentType, err := encodeCustomForm(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = transportError(ctx, model.ProviderCustom, err)
		logResult(c.log, model.ProviderCustom, start, err)
		return nil, err
	}
	defer resp.Body.Close()

	// SECURITY: Bounded read prevents memory exhaustion from a misbehaving endpoint
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		err = transportError(ctx, model.ProviderCustom, err)
		logResult(c.log, model.ProviderCustom, start, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := resilience.NewAPIError(model.ProviderCustom, resp.StatusCode, data)
		logResult(c.log, model.ProviderCustom, start, err)
		return nil, err
	}
	logResult(c.log, model.ProviderCustom, start, nil)

	var out customResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode chat endpoint response: %w", err)
	}
	return &Response{ID: out.ID, Content: out.Content}, nil
}

func encodeCustomForm(req Request) (io.Reader, string, error) {
	payload, err := json.Marshal(customRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Provider:    string(model.ProviderCustom),
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("request", string(payload)); err != nil {
		return nil, "", err
	}
	if req.APIKey != "" {
		if err := w.WriteField("api_key", req.APIKey); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// ValidateAPIKey implements Adapter. The chat endpoint has no validation
// route, so every key is accepted.
func (c *Custom) ValidateAPIKey(ctx context.Context, apiKey string) error {
	return nil
}

// ListModels implements Adapter with the registry's custom models.
func (c *Custom) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	var ids []string
	for _, m := range model.ModelsByProvider(model.ProviderCustom) {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
