// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders a message list as plain text, JSON, HTML or
// Markdown.
//
// The renderers are pure: they never fail, and an empty list yields "" for
// text and Markdown, "[]" for JSON, and a document with no messages for HTML.
// Messages without a timestamp show "No timestamp".
//
// # Usage
//
//	out, err := export.Render(export.FormatMarkdown, msgs)
//	path, err := export.WriteFile(dir, export.FormatHTML, msgs)
package export
