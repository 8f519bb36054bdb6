// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// Markdown renders each message under a "### You (timestamp)" or
// "### AI (timestamp)" heading.
func Markdown(msgs []model.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, "### "+roleLabel(m.Role)+" ("+formatTimestamp(m.Timestamp)+")\n\n"+m.Content+"\n")
	}
	return strings.Join(parts, "\n\n")
}
