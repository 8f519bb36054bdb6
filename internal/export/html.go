// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"html"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/chatdeck/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

const htmlHead = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Chat Export</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; }
    .message { padding: 10px; margin-bottom: 15px; border-radius: 8px; }
    .user-message { background-color: #f0f0f0; }
    .ai-message { background-color: #e6f7ff; }
    .message-header { display: flex; justify-content: space-between; margin-bottom: 5px; font-size: 0.8em; color: #666; }
    .message-content { white-space: pre-wrap; }
    .message-error { color: #E11D48; font-size: 0.85em; margin-top: 5px; }
    .code-lang { font-size: 0.75em; color: #666; }
    .code-block pre { padding: 8px; border-radius: 6px; overflow-x: auto; white-space: pre; }
  </style>
</head>
<body>
  <h1>Chat Export</h1>
  <div class="chat-container">
`

const htmlTail = `  </div>
</body>
</html>
`

// HTML renders msgs as a standalone document. Message text is escaped and
// fenced code blocks are syntax highlighted.
func HTML(msgs []model.Message) string {
	var sb strings.Builder
	sb.WriteString(htmlHead)
	for _, m := range msgs {
		writeHTMLMessage(&sb, m)
	}
	sb.WriteString(htmlTail)
	return sb.String()
}

func writeHTMLMessage(sb *strings.Builder, m model.Message) {
	roleClass := "ai-message"
	if m.Role == model.RoleUser {
		roleClass = "user-message"
	}

	sb.WriteString(`    <div class="message ` + roleClass + `">` + "\n")
	sb.WriteString(`      <div class="message-header">` + "\n")
	sb.WriteString(`        <span class="role">` + roleLabel(m.Role) + `</span>` + "\n")
	sb.WriteString(`        <span class="timestamp">` + formatTimestamp(m.Timestamp) + `</span>` + "\n")
	sb.WriteString(`      </div>` + "\n")
	sb.WriteString(`      <div class="message-content">` + formatContent(m.Content) + `</div>` + "\n")
	if m.Error != "" {
		sb.WriteString(`      <div class="message-error">` + html.EscapeString(m.Error) + `</div>` + "\n")
	}
	sb.WriteString(`    </div>` + "\n")
}

// =============================================================================
// CONTENT FORMATTING
// =============================================================================

var codeFence = regexp.MustCompile("```([A-Za-z0-9_+#.-]*)\\n([\\s\\S]*?)```")

// formatContent escapes prose, turning newlines into <br>, and highlights
// fenced code blocks.
func formatContent(content string) string {
	var sb strings.Builder
	last := 0
	for _, loc := range codeFence.FindAllStringSubmatchIndex(content, -1) {
		sb.WriteString(formatProse(content[last:loc[0]]))
		sb.WriteString(highlightCode(content[loc[2]:loc[3]], content[loc[4]:loc[5]]))
		last = loc[1]
	}
	sb.WriteString(formatProse(content[last:]))
	return sb.String()
}

func formatProse(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

// highlightCode renders code with inline chroma styles. Unknown languages
// are guessed from the content; any failure falls back to escaped text.
func highlightCode(lang, code string) string {
	code = strings.TrimRight(code, "\n")

	label := ""
	if lang != "" {
		label = `<div class="code-lang">` + html.EscapeString(lang) + `</div>`
	}

	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("github")
	if style == nil {
		style = chromaStyles.Fallback
	}

	var buf strings.Builder
	iterator, err := lexer.Tokenise(nil, code)
	if err == nil {
		err = chromahtml.New(chromahtml.WithClasses(false)).Format(&buf, style, iterator)
	}
	if err != nil {
		return `<div class="code-block">` + label + `<pre><code>` + html.EscapeString(code) + `</code></pre></div>`
	}
	return `<div class="code-block">` + label + buf.String() + `</div>`
}
