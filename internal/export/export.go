// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/util"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format names an export format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned for format names ParseFormat does not know.
var ErrUnknownFormat = errors.New("unsupported export format")

// ErrNothingToExport is returned by WriteFile for an empty conversation.
var ErrNothingToExport = errors.New("nothing to export")

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatHTML, FormatMarkdown}
}

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// =============================================================================
// EXPORTER INTERFACE
// =============================================================================

// Exporter renders messages in one format.
type Exporter interface {
	// Export renders msgs. It never fails.
	Export(msgs []model.Message) string

	// FileExtension returns the extension without the dot.
	FileExtension() string

	// MimeType returns the MIME type of the output.
	MimeType() string
}

type exporter struct {
	render func([]model.Message) string
	ext    string
	mime   string
}

func (e exporter) Export(msgs []model.Message) string { return e.render(msgs) }
func (e exporter) FileExtension() string              { return e.ext }
func (e exporter) MimeType() string                   { return e.mime }

// For returns the Exporter for f.
func For(f Format) (Exporter, error) {
	switch f {
	case FormatText:
		return exporter{Text, "txt", "text/plain"}, nil
	case FormatJSON:
		return exporter{JSON, "json", "application/json"}, nil
	case FormatHTML:
		return exporter{HTML, "html", "text/html"}, nil
	case FormatMarkdown:
		return exporter{Markdown, "md", "text/markdown"}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
}

// Render renders msgs in format f.
func Render(f Format, msgs []model.Message) (string, error) {
	e, err := For(f)
	if err != nil {
		return "", err
	}
	return e.Export(msgs), nil
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// Writer writes exports into Dir. Now defaults to time.Now.
type Writer struct {
	Dir string
	Now func() time.Time
}

// WriteFile renders msgs with a default Writer for dir.
func WriteFile(dir string, f Format, msgs []model.Message) (string, error) {
	return Writer{Dir: dir}.WriteFile(f, msgs)
}

// WriteFile renders msgs and writes them to Dir/chat-export-<timestamp>.<ext>,
// returning the path written.
func (w Writer) WriteFile(f Format, msgs []model.Message) (string, error) {
	if len(msgs) == 0 {
		return "", ErrNothingToExport
	}
	e, err := For(f)
	if err != nil {
		return "", err
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	path := filepath.Join(w.Dir, Filename("chat-export", e.FileExtension(), now()))
	if err := util.AtomicWriteFile(path, []byte(e.Export(msgs)), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// Filename builds "<prefix>-<timestamp>.<ext>". The timestamp is the UTC
// ISO-8601 time with ':' and '.' replaced by '-'. The prefix is
// NFC-normalized and stripped of characters that are unsafe in filenames.
func Filename(prefix, ext string, t time.Time) string {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format("2006-01-02T15:04:05.000Z"))
	return sanitizeFilename(prefix) + "-" + stamp + "." + ext
}

// sanitizeFilename replaces characters that are invalid on common
// filesystems.
func sanitizeFilename(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = util.TruncateRunes(s, 50)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "chat-export"
	}
	return b.String()
}

// =============================================================================
// HELPERS
// =============================================================================

// timestampLayout matches a US-locale date and time string.
const timestampLayout = "1/2/2006, 3:04:05 PM"

// formatTimestamp renders epoch milliseconds in local time.
func formatTimestamp(ms int64) string {
	if ms <= 0 {
		return "No timestamp"
	}
	return time.UnixMilli(ms).Format(timestampLayout)
}

// roleLabel is "You" for the user and "AI" for everything else.
func roleLabel(r model.Role) string {
	if r == model.RoleUser {
		return "You"
	}
	return "AI"
}
