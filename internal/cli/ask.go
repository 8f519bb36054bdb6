// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/chatdeck/internal/chat"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// askReply is the --json payload of ask.
type askReply struct {
	Model       string             `json:"model"`
	Content     string             `json:"content"`
	Error       string             `json:"error,omitempty"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// HandleAsk sends one question and prints the reply.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return usagef("usage: chatdeck ask <question> [--file <path>]")
	}

	files, err := readFiles(args.Files, app.Config.Upload.MaxSize)
	if err != nil {
		return err
	}

	st := app.View.Get()
	if !app.Quiet && !app.JSON {
		fmt.Fprintln(app.Err, DimStyle.Render("model: "+st.SelectedModel.String()))
	}

	res, sendErr := sendWithFiles(ctx, app.Chat, query, files)
	if res.Status == chat.StatusBusy {
		return errors.New("another request is in progress")
	}

	reply, _ := app.Conversation.Snapshot().MessageByID(res.AssistantID)
	if app.JSON {
		data := askReply{Model: st.SelectedModel.ID, Content: reply.Content, Error: reply.Error}
		if user, ok := app.Conversation.Snapshot().MessageByID(res.UserID); ok {
			data.Attachments = user.Attachments
		}
		return writeJSON(app.Out, "ask", data, sendErr)
	}

	if res.Status == chat.StatusSucceeded {
		fmt.Fprintln(app.Out, NewRenderer(st.Theme, renderWidth()).Markdown(reply.Content))
		return nil
	}
	if reply.Error != "" {
		return &FriendlyError{Message: reply.Error, Err: sendErr}
	}
	return sendErr
}

// sendWithFiles uses SendFiles only when there is something to upload.
func sendWithFiles(ctx context.Context, o *chat.Orchestrator, text string, files []upload.File) (chat.Result, error) {
	if len(files) == 0 {
		return o.Send(ctx, text, nil)
	}
	return o.SendFiles(ctx, text, files)
}

// readFiles loads every path, failing on the first unreadable or oversized
// file.
func readFiles(paths []string, maxSize int64) ([]upload.File, error) {
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.FileFromPath(p, maxSize)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
