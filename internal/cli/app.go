// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - wiring of the chat core for command handlers.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/chatdeck/internal/chat"
	"github.com/jeranaias/chatdeck/internal/config"
	"github.com/jeranaias/chatdeck/internal/conversation"
	"github.com/jeranaias/chatdeck/internal/logging"
	"github.com/jeranaias/chatdeck/internal/model"
	"github.com/jeranaias/chatdeck/internal/provider"
	"github.com/jeranaias/chatdeck/internal/settings"
	"github.com/jeranaias/chatdeck/internal/storage"
	"github.com/jeranaias/chatdeck/internal/upload"
)

// PassphraseEnv holds the passphrase for sealed settings.
const PassphraseEnv = "CHATDECK_SETTINGS_PASSPHRASE"

// App holds the wired core shared by all commands.
type App struct {
	Config       *config.Config
	Log          *zap.Logger
	Settings     *settings.Store
	View         *SettingsView
	Conversation *conversation.Store
	Adapters     *provider.Factory
	Uploader     upload.Uploader
	History      *storage.ConversationStore
	Chat         *chat.Orchestrator

	// Out receives command output; Err receives diagnostics.
	Out io.Writer
	Err io.Writer

	Quiet bool
	JSON  bool

	fileBackend *settings.FileBackend
	closers     []io.Closer
	unsubscribe func()
}

// NewAppFromArgs loads configuration according to the global flags and
// wires an App writing to stdout and stderr.
func NewAppFromArgs(ctx context.Context, args Args) (*App, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}
	config.SetGlobal(cfg)

	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	app.Quiet = args.Quiet
	app.JSON = args.JSON
	if args.Model != "" {
		m, ok := model.ModelByID(args.Model)
		if !ok {
			app.Close()
			return nil, usagef("unknown model %q (see 'chatdeck models')", args.Model)
		}
		app.PinModel(m)
	}
	return app, nil
}

// NewApp wires the core from cfg. It performs no network calls.
func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)
	app := &App{Config: cfg, Log: log, Out: os.Stdout, Err: os.Stderr}

	dataDir, err := cfg.DataDir()
	if err != nil {
		return nil, err
	}

	backend, err := app.openSettingsBackend(dataDir)
	if err != nil {
		app.Close()
		return nil, err
	}
	_, readErr := backend.Read(settings.StorageKey)
	store, err := settings.Open(backend, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	if errors.Is(readErr, settings.ErrNotFound) {
		seedDefaultModel(store, cfg.DefaultModel)
	}
	app.Settings = store
	app.View = NewSettingsView(store)

	app.Conversation = conversation.NewStore(app.View.Get())
	app.unsubscribe = store.OnChange(func(settings.Settings) {
		app.Conversation.SyncSettings(app.View.Get())
	})

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	app.Adapters = provider.NewFactory(provider.FactoryConfig{
		OpenAIBaseURL:    cfg.Endpoints.OpenAIBaseURL,
		AnthropicBaseURL: cfg.Endpoints.AnthropicBaseURL,
		DeepSeekBaseURL:  cfg.Endpoints.DeepSeekBaseURL,
		ChatEndpoint:     cfg.Endpoints.ChatURL,
		HTTPClient:       httpClient,
		Logger:           log,
	})

	app.Uploader, err = newUploader(cfg, httpClient, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	convDir, err := cfg.ConversationsDir()
	if err != nil {
		app.Close()
		return nil, err
	}
	app.History, err = storage.NewConversationStore(convDir)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Chat, err = chat.New(chat.Config{
		Conversation: app.Conversation,
		Settings:     app.View,
		Adapters:     app.Adapters,
		Retry:        cfg.RetryOptions(),
		Uploader:     app.Uploader,
		Limits:       cfg.UploadLimits(),
		History:      app.History,
		Logger:       log,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the settings backend and flushes the logger.
func (a *App) Close() error {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}

// PinModel selects m for this run without persisting it. A zero model
// returns to the persisted selection.
func (a *App) PinModel(m model.ChatModel) {
	a.View.SetModel(m)
	a.Conversation.SyncSettings(a.View.Get())
}

// WatchSettings reloads settings whenever the settings file changes on disk,
// until ctx is done. It is a no-op for non-file backends.
func (a *App) WatchSettings(ctx context.Context) error {
	if a.fileBackend == nil {
		return nil
	}
	return a.fileBackend.Watch(ctx, settings.StorageKey, func() {
		if err := a.Settings.Rehydrate(); err != nil {
			a.Log.Warn("failed to reload settings", zap.Error(err))
		}
	})
}

// openSettingsBackend picks the file or SQLite backend and seals it when
// configured.
func (a *App) openSettingsBackend(dataDir string) (settings.Backend, error) {
	var backend settings.Backend
	switch a.Config.Storage.SettingsBackend {
	case config.SettingsBackendSQLite:
		db, err := settings.OpenSQLite(filepath.Join(dataDir, "settings.db"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		backend = db
	default:
		fb := settings.NewFileBackend(dataDir)
		a.fileBackend = fb
		backend = fb
	}

	if !a.Config.Storage.Seal {
		return backend, nil
	}
	pass := os.Getenv(PassphraseEnv)
	if pass == "" {
		return nil, fmt.Errorf("settings sealing is enabled but %s is not set", PassphraseEnv)
	}
	return settings.NewSealedBackend(backend, pass)
}

// seedDefaultModel applies the configured default model on first start.
func seedDefaultModel(store *settings.Store, id string) {
	m, ok := model.ModelByID(id)
	if !ok || m.ID == store.Get().SelectedModel.ID {
		return
	}
	store.Update(settings.Patch{SelectedModel: &m})
}

// =============================================================================
// UPLOADERS
// =============================================================================

func newUploader(cfg *config.Config, client *http.Client, log *zap.Logger) (upload.Uploader, error) {
	switch cfg.Upload.Backend {
	case config.UploadBackendObject:
		ou, err := upload.NewObjectUploader(cfg.Upload.Object, log)
		if err != nil {
			return nil, err
		}
		return &bucketUploader{ObjectUploader: ou}, nil
	default:
		if cfg.Endpoints.UploadURL == "" {
			return nil, nil
		}
		return upload.NewHTTPUploader(cfg.Endpoints.UploadURL, client, log), nil
	}
}

// bucketUploader creates the bucket before its first upload.
type bucketUploader struct {
	*upload.ObjectUploader

	mu    sync.Mutex
	ready bool
}

func (u *bucketUploader) Upload(ctx context.Context, f upload.File) (model.Attachment, error) {
	u.mu.Lock()
	if !u.ready {
		if err := u.EnsureBucket(ctx); err != nil {
			u.mu.Unlock()
			return model.Attachment{}, err
		}
		u.ready = true
	}
	u.mu.Unlock()
	return u.ObjectUploader.Upload(ctx, f)
}

// =============================================================================
// SETTINGS VIEW
// =============================================================================

// SettingsView reads the settings store and can pin the selected model for
// the current run without persisting it.
type SettingsView struct {
	store *settings.Store

	mu    sync.RWMutex
	model model.ChatModel
}

// NewSettingsView returns a view with no pinned model.
func NewSettingsView(store *settings.Store) *SettingsView {
	return &SettingsView{store: store}
}

// Get returns the store's settings with the pinned model applied.
func (v *SettingsView) Get() settings.Settings {
	st := v.store.Get()
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.model.IsZero() {
		st.SelectedModel = v.model
	}
	return st
}

// SetModel pins m. A zero model removes the pin.
func (v *SettingsView) SetModel(m model.ChatModel) {
	v.mu.Lock()
	v.model = m
	v.mu.Unlock()
}
