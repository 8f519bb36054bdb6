// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/jeranaias/chatdeck/internal/model"
)

// JSON renders msgs as an indented JSON array. Decoding the output yields a
// slice equal to msgs as long as every string is valid UTF-8; invalid bytes
// are written as U+FFFD.
func JSON(msgs []model.Message) string {
	if len(msgs) == 0 {
		return "[]"
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Message holds only strings, ints and bools; Encode cannot fail.
	_ = enc.Encode(msgs)
	return strings.TrimSuffix(buf.String(), "\n")
}
