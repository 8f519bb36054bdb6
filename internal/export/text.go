// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// Text renders each message as "[timestamp] role: content", separated by a
// blank line.
func Text(msgs []model.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, "["+formatTimestamp(m.Timestamp)+"] "+string(m.Role)+": "+m.Content)
	}
	return strings.Join(parts, "\n\n")
}
