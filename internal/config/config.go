// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/resilience"
	"github.com/jeranaias/chatdeck/internal/upload"
	"github.com/jeranaias/chatdeck/internal/util"
)

// CurrentVersion is written to new config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete chatdeck configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// DefaultModel seeds the selected model when no settings exist yet.
	DefaultModel string `toml:"default_model" json:"default_model"`

	Endpoints EndpointsConfig `toml:"endpoints" json:"endpoints"`
	Retry     RetryConfig     `toml:"retry" json:"retry"`
	Upload    UploadConfig    `toml:"upload" json:"upload"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
	Log       logging.Config  `toml:"log" json:"log"`
	HTTP      HTTPConfig      `toml:"http" json:"http"`
}

// EndpointsConfig holds service URLs. Empty provider base URLs mean the
// public endpoints.
type EndpointsConfig struct {
	// ChatURL is the custom completion endpoint. Empty disables the custom provider.
	ChatURL string `toml:"chat_url" json:"chat_url"`

	// UploadURL is the multipart upload endpoint for the http upload backend.
	UploadURL string `toml:"upload_url" json:"upload_url"`

	OpenAIBaseURL    string `toml:"openai_base_url" json:"openai_base_url"`
	AnthropicBaseURL string `toml:"anthropic_base_url" json:"anthropic_base_url"`
	DeepSeekBaseURL  string `toml:"deepseek_base_url" json:"deepseek_base_url"`
}

// RetryConfig configures the retry layer around provider calls.
type RetryConfig struct {
	MaxRetries        int           `toml:"max_retries" json:"max_retries"`
	InitialDelay      time.Duration `toml:"initial_delay" json:"initial_delay"`
	BackoffFactor     float64       `toml:"backoff_factor" json:"backoff_factor"`
	MaxDelay          time.Duration `toml:"max_delay" json:"max_delay"`
	RetryableStatuses []int         `toml:"retryable_statuses" json:"retryable_statuses"`

	// RequestsPerSecond paces provider attempts. Zero disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
}

// Upload backends.
const (
	UploadBackendHTTP   = "http"
	UploadBackendObject = "object"
)

// UploadConfig configures attachment uploads.
type UploadConfig struct {
	Backend      string              `toml:"backend" json:"backend"`
	MaxSize      int64               `toml:"max_size" json:"max_size"`
	AllowedTypes []string            `toml:"allowed_types" json:"allowed_types"`
	Object       upload.ObjectConfig `toml:"object" json:"object"`
}

// Settings backends.
const (
	SettingsBackendFile   = "file"
	SettingsBackendSQLite = "sqlite"
)

// StorageConfig configures local persistence.
type StorageConfig struct {
	// Dir holds settings and saved conversations. Empty means ~/.chatdeck.
	Dir string `toml:"dir" json:"dir"`

	SettingsBackend string `toml:"settings_backend" json:"settings_backend"`

	// Seal encrypts settings at rest with CHATDECK_SETTINGS_PASSPHRASE.
	Seal bool `toml:"seal" json:"seal"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	Timeout time.Duration `toml:"timeout" json:"timeout"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:      CurrentVersion,
		DefaultModel: model.DefaultModel().ID,
		Retry: RetryConfig{
			MaxRetries:        resilience.DefaultMaxRetries,
			InitialDelay:      resilience.DefaultInitialDelay,
			BackoffFactor:     resilience.DefaultBackoffFactor,
			MaxDelay:          resilience.DefaultMaxDelay,
			RetryableStatuses: slices.Clone(resilience.DefaultRetryableStatuses),
		},
		Upload: UploadConfig{
			Backend:      UploadBackendHTTP,
			MaxSize:      upload.DefaultMaxSize,
			AllowedTypes: slices.Clone(upload.DefaultAllowedTypes),
			Object:       upload.ObjectConfig{Bucket: "chatdeck-attachments", Region: "us-east-1", URLExpiry: upload.DefaultURLExpiry},
		},
		Storage: StorageConfig{SettingsBackend: SettingsBackendFile},
		Log:     logging.DefaultConfig(),
		HTTP:    HTTPConfig{Timeout: 120 * time.Second},
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// RetryOptions converts the retry section for resilience.Do.
func (c *Config) RetryOptions() resilience.Options {
	opts := resilience.Options{
		MaxRetries:        c.Retry.MaxRetries,
		InitialDelay:      c.Retry.InitialDelay,
		BackoffFactor:     c.Retry.BackoffFactor,
		MaxDelay:          c.Retry.MaxDelay,
		RetryableStatuses: slices.Clone(c.Retry.RetryableStatuses),
	}
	if c.Retry.RequestsPerSecond > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(c.Retry.RequestsPerSecond), 1)
	}
	return opts
}

// UploadLimits converts the upload section for upload.ValidateFile.
func (c *Config) UploadLimits() upload.Limits {
	return upload.Limits{MaxSize: c.Upload.MaxSize, AllowedTypes: slices.Clone(c.Upload.AllowedTypes)}
}

// DataDir returns the storage directory, resolving the default.
func (c *Config) DataDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	return ConfigDir()
}

// ConversationsDir returns <data dir>/conversations.
func (c *Config) ConversationsDir() (string, error) {
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "conversations"), nil
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns ~/.chatdeck.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".chatdeck"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ~/.chatdeck/config.toml if it exists, then applies .env and
// CHATDECK_* overrides. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit file. A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	LoadDotEnv()
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes path over cfg. Keys present in the file replace the
// defaults already in cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Variables
// that are already set win. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
		if dir, err := ConfigDir(); err == nil {
			files = append(files, filepath.Join(dir, ".env"))
		}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// SetDefaults fills zero values that would make the config unusable.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.DefaultModel == "" {
		c.DefaultModel = d.DefaultModel
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = d.Retry.InitialDelay
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = d.Retry.BackoffFactor
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = d.Retry.MaxDelay
	}
	if len(c.Retry.RetryableStatuses) == 0 {
		c.Retry.RetryableStatuses = d.Retry.RetryableStatuses
	}
	if c.Upload.Backend == "" {
		c.Upload.Backend = d.Upload.Backend
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = d.Upload.MaxSize
	}
	if c.Upload.Object.URLExpiry == 0 {
		c.Upload.Object.URLExpiry = d.Upload.Object.URLExpiry
	}
	if c.Storage.SettingsBackend == "" {
		c.Storage.SettingsBackend = d.Storage.SettingsBackend
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = d.Log.Output
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = d.HTTP.Timeout
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg atomically with mode 0600, since it may hold object
// storage credentials.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# chatdeck configuration file\n")
	buf.WriteString("# API keys live in the settings store, not here.\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, ok := model.ModelByID(c.DefaultModel); !ok {
		add("default_model", "unknown model %q", c.DefaultModel)
	}

	for field, raw := range map[string]string{
		"endpoints.chat_url":           c.Endpoints.ChatURL,
		"endpoints.upload_url":         c.Endpoints.UploadURL,
		"endpoints.openai_base_url":    c.Endpoints.OpenAIBaseURL,
		"endpoints.anthropic_base_url": c.Endpoints.AnthropicBaseURL,
		"endpoints.deepseek_base_url":  c.Endpoints.DeepSeekBaseURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(field, "must be an absolute http(s) URL, got %q", raw)
		}
	}

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		add("retry.max_retries", "must be between 0 and 10, got %d", c.Retry.MaxRetries)
	}
	if c.Retry.InitialDelay < 0 || c.Retry.MaxDelay < 0 {
		add("retry.initial_delay", "delays must not be negative")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.InitialDelay > c.Retry.MaxDelay {
		add("retry.max_delay", "must not be less than initial_delay")
	}
	if c.Retry.BackoffFactor != 0 && c.Retry.BackoffFactor < 1 {
		add("retry.backoff_factor", "must be at least 1, got %g", c.Retry.BackoffFactor)
	}
	for _, s := range c.Retry.RetryableStatuses {
		if s < 100 || s > 599 {
			add("retry.retryable_statuses", "invalid HTTP status %d", s)
		}
	}
	if c.Retry.RequestsPerSecond < 0 {
		add("retry.requests_per_second", "must not be negative")
	}

	switch c.Upload.Backend {
	case UploadBackendHTTP, "":
	case UploadBackendObject:
		if c.Upload.Object.Endpoint == "" || c.Upload.Object.Bucket == "" {
			add("upload.object", "endpoint and bucket are required for the object backend")
		}
	default:
		add("upload.backend", "must be %q or %q, got %q", UploadBackendHTTP, UploadBackendObject, c.Upload.Backend)
	}
	if c.Upload.MaxSize < 0 {
		add("upload.max_size", "must not be negative")
	}

	switch c.Storage.SettingsBackend {
	case SettingsBackendFile, SettingsBackendSQLite, "":
	default:
		add("storage.settings_backend", "must be %q or %q, got %q", SettingsBackendFile, SettingsBackendSQLite, c.Storage.SettingsBackend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		add("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		add("log.format", "must be console or json, got %q", c.Log.Format)
	}

	if c.HTTP.Timeout < 0 {
		add("http.timeout", "must not be negative")
	}

	if len(errs) == 0 {
		return nil
	}
	slices.SortFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies CHATDECK_* variables:
//   - CHATDECK_MODEL: default_model
//   - CHATDECK_CHAT_URL, CHATDECK_UPLOAD_URL: endpoints
//   - CHATDECK_OPENAI_BASE_URL, CHATDECK_ANTHROPIC_BASE_URL, CHATDECK_DEEPSEEK_BASE_URL
//   - CHATDECK_MAX_RETRIES: retry.max_retries
//   - CHATDECK_UPLOAD_BACKEND: upload.backend
//   - CHATDECK_S3_ENDPOINT, CHATDECK_S3_ACCESS_KEY, CHATDECK_S3_SECRET_KEY, CHATDECK_S3_BUCKET
//   - CHATDECK_DATA_DIR: storage.dir
//   - CHATDECK_SETTINGS_BACKEND: storage.settings_backend
//   - CHATDECK_LOG_LEVEL, CHATDECK_LOG_FORMAT
func (c *Config) ApplyEnvOverrides() {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	str("CHATDECK_MODEL", &c.DefaultModel)
	str("CHATDECK_CHAT_URL", &c.Endpoints.ChatURL)
	str("CHATDECK_UPLOAD_URL", &c.Endpoints.UploadURL)
	str("CHATDECK_OPENAI_BASE_URL", &c.Endpoints.OpenAIBaseURL)
	str("CHATDECK_ANTHROPIC_BASE_URL", &c.Endpoints.AnthropicBaseURL)
	str("CHATDECK_DEEPSEEK_BASE_URL", &c.Endpoints.DeepSeekBaseURL)
	str("CHATDECK_UPLOAD_BACKEND", &c.Upload.Backend)
	str("CHATDECK_S3_ENDPOINT", &c.Upload.Object.Endpoint)
	str("CHATDECK_S3_ACCESS_KEY", &c.Upload.Object.AccessKey)
	str("CHATDECK_S3_SECRET_KEY", &c.Upload.Object.SecretKey)
	str("CHATDECK_S3_BUCKET", &c.Upload.Object.Bucket)
	str("CHATDECK_DATA_DIR", &c.Storage.Dir)
	str("CHATDECK_SETTINGS_BACKEND", &c.Storage.SettingsBackend)
	str("CHATDECK_LOG_LEVEL", &c.Log.Level)
	str("CHATDECK_LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("CHATDECK_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxRetries = n
		}
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Retry.RetryableStatuses = slices.Clone(c.Retry.RetryableStatuses)
	clone.Upload.AllowedTypes = slices.Clone(c.Upload.AllowedTypes)
	return &clone
}

// String renders c as JSON with object storage secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Upload.Object.AccessKey != "" {
		safe.Upload.Object.AccessKey = "[REDACTED]"
	}
	if safe.Upload.Object.SecretKey != "" {
		safe.Upload.Object.SecretKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// Load failures fall back to the defaults.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the process-wide configuration.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
