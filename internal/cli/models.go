// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
)

// HandleModels lists registry models, optionally filtered by provider, or
// with --remote the models the provider reports for the stored key.
func HandleModels(ctx context.Context, app *App, args Args) error {
	var (
		p   model.Provider
		err error
	)
	if args.Subcommand != "" {
		if p, err = model.ParseProvider(args.Subcommand); err != nil {
			return err
		}
	}

	if args.Remote {
		if p == "" {
			return usagef("usage: chatdeck models <provider> --remote")
		}
		ids, err := listRemoteModels(ctx, app, p)
		if app.JSON {
			return writeJSON(app.Out, "models", ids, err)
		}
		if err != nil {
			return &FriendlyError{Message: resilience.FriendlyMessage(err), Err: err}
		}
		fmt.Fprintln(app.Out, TitleStyle.Render(p.DisplayName()+" models"))
		for _, id := range ids {
			fmt.Fprintln(app.Out, "  "+id)
		}
		return nil
	}

	models := model.Models()
	if p != "" {
		models = model.ModelsByProvider(p)
	}
	if app.JSON {
		return writeJSON(app.Out, "models", models, nil)
	}
	writeModelTable(app.Out, models, app.View.Get().SelectedModel.ID)
	return nil
}

// listRemoteModels calls ListModels through the retry layer and sorts the
// result.
func listRemoteModels(ctx context.Context, app *App, p model.Provider) ([]string, error) {
	adapter, err := app.Adapters.Adapter(p)
	if err != nil {
		return nil, err
	}
	key := app.Settings.Get().APIKey(p)
	ids, err := resilience.Do(ctx, app.Config.RetryOptions(), func(ctx context.Context) ([]string, error) {
		return adapter.ListModels(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// writeModelTable prints models with the selected one marked.
func writeModelTable(w io.Writer, models []model.ChatModel, selected string) {
	idWidth, nameWidth := len("ID"), len("NAME")
	for _, m := range models {
		idWidth = max(idWidth, runewidth.StringWidth(m.ID))
		nameWidth = max(nameWidth, runewidth.StringWidth(m.Name))
	}

	fmt.Fprintf(w, "  %s  %s  %-10s %s\n",
		runewidth.FillRight("ID", idWidth), runewidth.FillRight("NAME", nameWidth), "PROVIDER", "NOTES")
	for _, m := range models {
		marker := " "
		if m.ID == selected {
			marker = HighlightStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s  %s  %-10s %s\n",
			marker,
			runewidth.FillRight(m.ID, idWidth),
			runewidth.FillRight(m.Name, nameWidth),
			m.Provider,
			modelNotes(m))
	}
}

func modelNotes(m model.ChatModel) string {
	var notes []string
	if !m.APIKeyRequired {
		notes = append(notes, "no key")
	}
	if m.SupportsFiles {
		notes = append(notes, "files: "+strings.Join(m.FileTypes, ","))
	}
	return strings.Join(notes, "; ")
}

// keyRequired reports whether calls to p need an API key.
func keyRequired(p model.Provider) bool {
	for _, m := range model.ModelsByProvider(p) {
		if m.APIKeyRequired {
			return true
		}
	}
	return false
}
