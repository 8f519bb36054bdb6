// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/jeranaias/chatdeck/internal/storage"
)

// HandleHistory implements list, search, show and delete for saved
// conversations.
func HandleHistory(app *App, args Args) error {
	switch args.Subcommand {
	case "", "list", "ls":
		metas, err := app.History.List()
		return writeMetas(app, metas, err)

	case "search":
		query := strings.Join(args.Raw[1:], " ")
		if strings.TrimSpace(query) == "" {
			return usagef("usage: chatdeck history search <query>")
		}
		metas, err := app.History.Search(query)
		return writeMetas(app, metas, err)

	case "show":
		if len(args.Raw) != 2 {
			return usagef("usage: chatdeck history show <id>")
		}
		conv, err := app.History.Load(args.Raw[1])
		if app.JSON {
			return writeJSON(app.Out, "history", conv, err)
		}
		if err != nil {
			return &CommandError{Command: "history", Action: "show", Err: err}
		}
		fmt.Fprintln(app.Out, TitleStyle.Render(conv.Summary))
		fmt.Fprintf(app.Out, "%s%s\n", RenderLabel("ID", 10), conv.ID)
		fmt.Fprintf(app.Out, "%s%s\n", RenderLabel("Model", 10), conv.Model)
		fmt.Fprintf(app.Out, "%s%s\n\n", RenderLabel("Updated", 10), conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
		NewRenderer(app.Settings.Get().Theme, renderWidth()).Transcript(app.Out, conv.Messages)
		return nil

	case "delete", "rm":
		if len(args.Raw) != 2 {
			return usagef("usage: chatdeck history delete <id>")
		}
		if err := app.History.Delete(args.Raw[1]); err != nil {
			return &CommandError{Command: "history", Action: "delete", Err: err}
		}
		fmt.Fprintf(app.Out, "%s %s\n", SuccessStyle.Render("Deleted"), args.Raw[1])
		return nil

	default:
		return usagef("unknown history subcommand %q (list, search, show, delete)", args.Subcommand)
	}
}

func writeMetas(app *App, metas []storage.ConversationMeta, err error) error {
	if app.JSON {
		if metas == nil {
			metas = []storage.ConversationMeta{}
		}
		return writeJSON(app.Out, "history", metas, err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(app.Out, storage.FormatList(metas))
	return nil
}
