// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatdeck/internal/resilience"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, []int{408, 429, 500, 502, 503, 504}, cfg.Retry.RetryableStatuses)
	assert.Equal(t, UploadBackendHTTP, cfg.Upload.Backend)
	assert.Equal(t, SettingsBackendFile, cfg.Storage.SettingsBackend)
}

func TestLoadFromPath_Missing(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Retry, cfg.Retry)
}

func TestLoadFromPath_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_model = "claude-3-haiku-20240307"

[endpoints]
chat_url = "http://localhost:8080/api/chat"

[retry]
max_retries = 5
initial_delay = "250ms"
max_delay = "4s"

[upload]
backend = "object"
allowed_types = ["image/png"]

[upload.object]
endpoint = "localhost:9000"
bucket = "files"

[log]
level = "debug"
`), 0o600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.DefaultModel)
	assert.Equal(t, "http://localhost:8080/api/chat", cfg.Endpoints.ChatURL)
	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 4*time.Second, cfg.Retry.MaxDelay)
	assert.InDelta(t, 2.0, cfg.Retry.BackoffFactor, 1e-9, "unset keys keep defaults")
	assert.Equal(t, UploadBackendObject, cfg.Upload.Backend)
	assert.Equal(t, []string{"image/png"}, cfg.Upload.AllowedTypes)
	assert.Equal(t, "files", cfg.Upload.Object.Bucket)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromPath_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[retry]\nmax_retrys = 2\n"), 0o600))

	_, err := LoadFromPath(path)
	assert.ErrorContains(t, err, "retry.max_retrys")
}

func TestLoadFromPath_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[upload]\nbackend = \"ftp\"\n"), 0o600))

	_, err := LoadFromPath(path)
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs), "got %v", err)
	assert.Equal(t, "upload.backend", verrs[0].Field)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.DefaultModel = "gpt-99"
	cfg.Endpoints.ChatURL = "not a url"
	cfg.Retry.MaxRetries = -1
	cfg.Retry.RetryableStatuses = []int{42}
	cfg.Storage.SettingsBackend = "redis"
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, len(verrs))
	for i, e := range verrs {
		fields[i] = e.Field
	}
	assert.Equal(t, []string{
		"default_model",
		"endpoints.chat_url",
		"log.format",
		"retry.max_retries",
		"retry.retryable_statuses",
		"storage.settings_backend",
	}, fields)
}

func TestValidate_ObjectBackendNeedsEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Upload.Backend = UploadBackendObject
	assert.ErrorContains(t, cfg.Validate(), "upload.object")
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CHATDECK_MODEL", "deepseek-chat")
	t.Setenv("CHATDECK_CHAT_URL", "https://chat.example/api")
	t.Setenv("CHATDECK_MAX_RETRIES", "1")
	t.Setenv("CHATDECK_S3_SECRET_KEY", "shh")
	t.Setenv("CHATDECK_LOG_LEVEL", "error")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "deepseek-chat", cfg.DefaultModel)
	assert.Equal(t, "https://chat.example/api", cfg.Endpoints.ChatURL)
	assert.Equal(t, 1, cfg.Retry.MaxRetries)
	assert.Equal(t, "shh", cfg.Upload.Object.SecretKey)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CHATDECK_TEST_A=from-file\nCHATDECK_TEST_B=from-file\n"), 0o600))
	t.Setenv("CHATDECK_TEST_A", "from-env")
	t.Setenv("CHATDECK_TEST_B", "")
	os.Unsetenv("CHATDECK_TEST_B")

	LoadDotEnv(envFile)
	assert.Equal(t, "from-env", os.Getenv("CHATDECK_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("CHATDECK_TEST_B"))
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Retry.MaxRetries = 2
	cfg.Retry.InitialDelay = 500 * time.Millisecond
	cfg.Storage.Seal = true

	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Retry.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, loaded.Retry.InitialDelay)
	assert.True(t, loaded.Storage.Seal)
}

func TestRetryOptions(t *testing.T) {
	cfg := Default()
	cfg.Retry.RequestsPerSecond = 5

	opts := cfg.RetryOptions()
	assert.Equal(t, resilience.DefaultMaxRetries, opts.MaxRetries)
	assert.NotNil(t, opts.Limiter)

	cfg.Retry.RequestsPerSecond = 0
	assert.Nil(t, cfg.RetryOptions().Limiter)
}

func TestStringRedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Upload.Object.AccessKey = "AKIA123"
	cfg.Upload.Object.SecretKey = "topsecret"

	out := cfg.String()
	assert.NotContains(t, out, "topsecret")
	assert.NotContains(t, out, "AKIA123")
	assert.True(t, strings.Contains(out, "[REDACTED]"))
	assert.Equal(t, "topsecret", cfg.Upload.Object.SecretKey, "String must not mutate the config")
}

func TestDataDirs(t *testing.T) {
	cfg := Default()
	cfg.Storage.Dir = "/tmp/chatdeck-test"
	dir, err := cfg.ConversationsDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/chatdeck-test", "conversations"), dir)
}

// TestConfig_ConcurrentAccess exercises Global and SetGlobal together.
// Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
