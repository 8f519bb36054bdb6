// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/chatdeck/internal/export"
)

// HandleExport writes a saved conversation in the requested format. An
// output of "-" prints to stdout instead of writing a file.
func HandleExport(app *App, args Args) error {
	if args.Subcommand == "" {
		return usagef("usage: chatdeck export <conversation-id> [--format text|json|html|markdown] [--out <dir>|-]")
	}

	format := export.FormatText
	if args.Format != "" {
		f, err := export.ParseFormat(args.Format)
		if err != nil {
			return &UsageError{Message: err.Error()}
		}
		format = f
	}

	conv, err := app.History.Load(args.Subcommand)
	if err != nil {
		return &CommandError{Command: "export", Err: err}
	}

	if args.Output == "-" {
		out, err := export.Render(format, conv.Messages)
		if err != nil {
			return err
		}
		fmt.Fprintln(app.Out, out)
		return nil
	}

	dir := args.Output
	if dir == "" {
		dir = "."
	}
	path, err := export.WriteFile(dir, format, conv.Messages)
	if errors.Is(err, export.ErrNothingToExport) {
		return fmt.Errorf("conversation %s has no messages", conv.ID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, path)
	return nil
}
