// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/settings"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// glamour standard style names.
const (
	glamourDark  = "dark"
	glamourLight = "light"
	glamourPlain = "notty"
)

// Renderer prints transcript messages, rendering assistant markdown with
// glamour when colors are enabled.
type Renderer struct {
	md *glamour.TermRenderer
}

// NewRenderer builds a renderer for theme. Rendering falls back to plain
// text if glamour cannot be set up.
func NewRenderer(theme settings.Theme, width int) *Renderer {
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle(theme, ColorsEnabled())),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &Renderer{}
	}
	return &Renderer{md: md}
}

func glamourStyle(theme settings.Theme, colors bool) string {
	if !colors {
		return glamourPlain
	}
	if ResolveTheme(theme) == settings.ThemeLight {
		return glamourLight
	}
	return glamourDark
}

// Markdown renders content, returning it unchanged on failure.
func (r *Renderer) Markdown(content string) string {
	if r == nil || r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// Message writes one transcript turn to w.
func (r *Renderer) Message(w io.Writer, m model.Message) {
	fmt.Fprintf(w, "%s %s\n", RenderRole(m.Role), DimStyle.Render(m.Time().Local().Format("15:04:05")))

	switch {
	case m.IsLoading:
		fmt.Fprintln(w, DimStyle.Render("..."))
	case m.Role == model.RoleAssistant:
		fmt.Fprintln(w, r.Markdown(m.Content))
	default:
		fmt.Fprintln(w, m.Content)
	}

	for _, a := range m.Attachments {
		fmt.Fprintf(w, "  %s %s (%s, %s)\n", DimStyle.Render("attachment:"), a.Name, a.Type, upload.FormatSize(a.Size))
	}
	if m.Error != "" {
		fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[Error]"), m.Error)
	}
	fmt.Fprintln(w)
}

// Transcript writes every message in order.
func (r *Renderer) Transcript(w io.Writer, msgs []model.Message) {
	for _, m := range msgs {
		r.Message(w, m)
	}
}
