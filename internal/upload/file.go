// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"fmt"
	"math"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// =============================================================================
// FILE
// =============================================================================

// File is a file staged for upload.
type File struct {
	Name string
	Type string
	Size int64
	Data []byte
}

// NewFile builds a File from in-memory data. An empty contentType is
// detected from the content.
func NewFile(name, contentType string, data []byte) File {
	if contentType == "" {
		contentType = DetectType(data)
	}
	return File{Name: name, Type: contentType, Size: int64(len(data)), Data: data}
}

// FileFromPath reads path into a File, detecting its MIME type from the
// content. Files larger than maxSize are rejected before being read.
func FileFromPath(path string, maxSize int64) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return File{}, &ValidationError{Name: filepath.Base(path), Message: sizeMessage(maxSize)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return NewFile(filepath.Base(path), "", data), nil
}

// DetectType sniffs the MIME type of data, without parameters such as
// charset.
func DetectType(data []byte) string {
	detected := mimetype.Detect(data).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}

// =============================================================================
// VALIDATION
// =============================================================================

const (
	// MiB is 1024*1024 bytes.
	MiB = 1024 * 1024

	// DefaultMaxSize is the default per-file limit (10MB).
	DefaultMaxSize int64 = 10 * MiB
)

// DefaultAllowedTypes lists the MIME types accepted by default.
var DefaultAllowedTypes = []string{"image/png", "image/jpeg", "application/pdf", "text/plain"}

// Limits bundles the validation constraints.
type Limits struct {
	MaxSize      int64
	AllowedTypes []string
}

// DefaultLimits returns 10MB and DefaultAllowedTypes.
func DefaultLimits() Limits {
	return Limits{MaxSize: DefaultMaxSize, AllowedTypes: slices.Clone(DefaultAllowedTypes)}
}

// Validation is the outcome of ValidateFile.
type Validation struct {
	IsValid bool
	Error   string
}

// ValidationError reports a file that failed validation.
type ValidationError struct {
	Name    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// ValidateFile checks f against maxSize and, when allowed is non-empty, the
// allowed MIME types. A maxSize of zero or less means DefaultMaxSize.
func ValidateFile(f File, maxSize int64, allowed []string) Validation {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if f.Size > maxSize {
		return Validation{Error: sizeMessage(maxSize)}
	}
	if len(allowed) > 0 && !slices.Contains(allowed, strings.ToLower(f.Type)) {
		return Validation{Error: fmt.Sprintf("File type %s is not allowed. Allowed types: %s", f.Type, strings.Join(allowed, ", "))}
	}
	return Validation{IsValid: true}
}

// Validate is ValidateFile with l's limits, returning a *ValidationError.
func (l Limits) Validate(f File) error {
	if v := ValidateFile(f, l.MaxSize, l.AllowedTypes); !v.IsValid {
		return &ValidationError{Name: f.Name, Message: v.Error}
	}
	return nil
}

func sizeMessage(maxSize int64) string {
	return fmt.Sprintf("File size exceeds %dMB limit", int64(math.Round(float64(maxSize)/MiB)))
}

// FormatSize renders a byte count as "N B", "N.N KB" or "N.N MB".
func FormatSize(bytes int64) string {
	switch {
	case bytes < 1024:
		return fmt.Sprintf("%d B", bytes)
	case bytes < MiB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MiB)
	}
}
