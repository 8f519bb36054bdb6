// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zap loggers used across chatdeck.
//
// Components accept a *zap.Logger and treat nil as a no-op logger, so tests
// and library callers never need to configure logging.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `toml:"level" json:"level"`

	// Format is "console" or "json".
	Format string `toml:"format" json:"format"`

	// Output is "stderr", "stdout" or a file path. The REPL owns stdout, so
	// the default is stderr.
	Output string `toml:"output" json:"output"`
}

// DefaultConfig returns warn-level console logging to stderr.
func DefaultConfig() Config {
	return Config{Level: "warn", Format: "console", Output: "stderr"}
}

// New builds a logger from cfg. An unparseable level falls back to info.
func New(cfg Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level.SetLevel(zap.InfoLevel)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = level

	out := strings.TrimSpace(cfg.Output)
	switch out {
	case "", "stderr":
		out = "stderr"
	case "stdout":
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		// Colors only make sense on a terminal.
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// SECURITY: Never log any part of an API key.

// MaskKey returns a loggable stand-in for an API key: its length and a short
// SHA-256 fingerprint.
func MaskKey(key string) string {
	if key == "" {
		return "[not set]"
	}
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("[REDACTED, length=%d, fingerprint=%s]", len(key), hex.EncodeToString(h[:4]))
}

// Key returns a zap field carrying the masked form of an API key.
func Key(key string) zap.Field {
	return zap.String("api_key", MaskKey(key))
}
