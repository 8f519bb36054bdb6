// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements one Adapter per LLM provider behind a common
// interface.
//
// Each adapter translates the provider-agnostic Request into the provider's
// wire format, issues exactly one HTTP call, and normalizes failures into
// *resilience.APIError (non-2xx) or *resilience.TransportError (no response).
// Adapters never retry; wrap Send with resilience.Do for that.
//
// # Adapters
//
//   - OpenAI: go-openai against api.openai.com (Bearer auth)
//   - DeepSeek: go-openai against api.deepseek.com (Bearer auth)
//   - Anthropic: anthropic-sdk-go (x-api-key auth, system prompt folded into
//     the top-level system parameter)
//   - Custom: multipart POST to a self-hosted chat endpoint
//
// # Usage
//
//	f := provider.NewFactory(provider.FactoryConfig{ChatEndpoint: cfg.Endpoints.ChatURL})
//	a, err := f.Adapter(model.ProviderOpenAI)
//	if err != nil {
//	    return err // unsupported provider
//	}
//	resp, err := a.Send(ctx, provider.Request{Model: "gpt-4o", Messages: history, APIKey: key})
package provider
