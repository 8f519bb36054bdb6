// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/provider"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// connectionResult is the --json payload of test-connection.
type connectionResult struct {
	Provider string `json:"provider"`
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Elapsed  string `json:"elapsed"`
}

// HandleTestConnection validates the stored key for one provider.
func HandleTestConnection(ctx context.Context, app *App, args Args) error {
	if args.Subcommand == "" {
		return usagef("usage: chatdeck test-connection <provider>")
	}
	p, err := model.ParseProvider(args.Subcommand)
	if err != nil {
		return err
	}

	start := time.Now()
	err = testConnection(ctx, app, p)
	res := connectionResult{Provider: string(p), OK: err == nil, Elapsed: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		res.Message = resilience.FriendlyMessage(err)
	}

	if app.JSON {
		return writeJSON(app.Out, "test-connection", res, err)
	}
	if err != nil {
		fmt.Fprintf(app.Out, "%s %s: %s\n", RenderStatus("fail"), p.DisplayName(), res.Message)
		return &FriendlyError{Message: res.Message, Err: err}
	}
	fmt.Fprintf(app.Out, "%s %s (%s)\n", RenderStatus("ok"), p.DisplayName(), res.Elapsed)
	return nil
}

func testConnection(ctx context.Context, app *App, p model.Provider) error {
	adapter, err := app.Adapters.Adapter(p)
	if err != nil {
		return err
	}
	key := app.Settings.Get().APIKey(p)
	if key == "" && keyRequired(p) {
		return fmt.Errorf("%w for %s", provider.ErrAPIKeyRequired, p.DisplayName())
	}
	return adapter.ValidateAPIKey(ctx, key)
}
