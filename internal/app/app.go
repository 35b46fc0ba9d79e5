// Package app assembles the store, asset backend, providers and pipeline
// from a Config. The server and the CLI share it.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/raine/photo-lister/config"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/pipeline"
	"github.com/raine/photo-lister/internal/storage"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/rs/zerolog/log"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	Store    *storage.SQLiteStore
	Assets   *assets.Store
	Registry *llm.Registry
	Settings *llm.Settings
	Client   *llm.Client
	Ledger   *usage.Ledger
	Activity *pipeline.ActivityLog
	Pipeline *pipeline.Pipeline
}

// New opens the database and asset backend and wires everything else.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	var encryptionKey []byte
	if cfg.SecretKey != "" {
		key, err := storage.DeriveKey(cfg.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		encryptionKey = key
	} else {
		log.Warn().Msg("LISTER_SECRET_KEY not set, API keys cannot be stored in settings")
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath, encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	log.Info().Str("dbPath", cfg.DBPath).Msg("store initialized")

	a := &App{Config: cfg, Store: store}
	if err := a.wire(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	a.Assets = assets.NewStore(backend, assets.NewResizer(), cfg.ThumbnailSize)

	a.Registry = llm.DefaultRegistry(llm.Endpoints{
		OpenAIBaseURL:    cfg.OpenAIBaseURL,
		AnthropicBaseURL: cfg.AnthropicBaseURL,
		OllamaHost:       cfg.OllamaHost,
	})

	a.Settings, err = llm.NewSettings(a.Store, a.Registry, llm.ProviderConfig{
		Provider: cfg.AIProvider,
		Model:    cfg.AIModel,
	})
	if err != nil {
		return err
	}

	opts := llm.ClientOptions{
		Timeout:    cfg.AITimeout,
		MaxRetries: cfg.AIMaxRetries,
	}
	if cfg.AICache {
		opts.Cache = llm.NewCache(a.Store)
		log.Info().Msg("analysis caching enabled")
	}
	a.Client = llm.NewClient(a.Registry, a.Settings, opts)
	a.Ledger = usage.NewLedger(a.Store, nil)

	a.Activity, err = pipeline.NewActivityLog(filepath.Join(cfg.DataDir, "logs"))
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize activity log")
		a.Activity = nil
	}

	a.Pipeline = pipeline.New(pipeline.Deps{
		Store:    a.Store,
		Assets:   a.Assets,
		Client:   a.Client,
		Settings: a.Settings,
		Ledger:   a.Ledger,
		Activity: a.Activity,
	}, cfg.MaxUploadBytes)

	snapshot := a.Settings.Snapshot()
	log.Info().
		Str("provider", snapshot.Provider).
		Str("model", snapshot.Model).
		Bool("configured", a.Settings.Configured(snapshot)).
		Msg("ai provider")
	return nil
}

func newBackend(ctx context.Context, cfg *config.Config) (assets.Backend, error) {
	switch cfg.AssetBackend {
	case "azure":
		b, err := assets.NewAzureBackend(cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer, "")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize azure backend: %w", err)
		}
		if err := b.EnsureContainer(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("container", cfg.AzureContainer).Msg("using azure blob storage for images")
		return b, nil
	default:
		root := filepath.Join(cfg.DataDir, "images")
		b, err := assets.NewLocalBackend(root)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local image storage: %w", err)
		}
		log.Info().Str("root", root).Msg("using local storage for images")
		return b, nil
	}
}

// Close releases the database.
func (a *App) Close() error {
	return a.Store.Close()
}
