package llm

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/raine/photo-lister/internal/apperr"
	"github.com/rs/zerolog/log"
)

// SettingKey is the settings row holding the active provider selection.
const SettingKey = "ai.provider"

// ProviderNone disables analysis when selected.
const ProviderNone = "none"

// ProviderConfig selects the backend, model and credential used for
// analysis. Values are immutable snapshots.
type ProviderConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	// CredentialRef is "env:<VAR>" or "secret:<name>". Empty means no key.
	CredentialRef string `json:"credential_ref,omitempty"`
}

// Selected reports whether a backend has been chosen at all.
func (c ProviderConfig) Selected() bool {
	return c.Provider != "" && c.Provider != ProviderNone
}

// SettingsStore persists the selection and any stored API keys.
type SettingsStore interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
	GetSecret(name string) (string, error)
	SetSecret(name, value string) error
	SecretsEnabled() bool
}

// Settings holds the active ProviderConfig. Readers take a snapshot per
// invocation; Update persists and then swaps the pointer, so an in-flight
// call keeps the configuration it started with.
type Settings struct {
	store    SettingsStore
	registry *Registry
	current  atomic.Pointer[ProviderConfig]
	mu       sync.Mutex
	getenv   func(string) string
}

// NewSettings loads the persisted selection, falling back to initial when
// none has been stored yet. initial normally comes from AI_PROVIDER/AI_MODEL.
func NewSettings(store SettingsStore, registry *Registry, initial ProviderConfig) (*Settings, error) {
	s := &Settings{
		store:    store,
		registry: registry,
		getenv:   os.Getenv,
	}

	cfg := s.withDefaults(initial)
	raw, err := store.GetSetting(SettingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider setting: %w", err)
	}
	if raw != "" {
		var stored ProviderConfig
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			log.Warn().Err(err).Msg("ignoring invalid stored provider setting")
		} else {
			cfg = stored
		}
	}

	s.current.Store(&cfg)
	return s, nil
}

func (s *Settings) withDefaults(cfg ProviderConfig) ProviderConfig {
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if !cfg.Selected() {
		return ProviderConfig{Provider: cfg.Provider}
	}
	info, ok := s.registry.Lookup(cfg.Provider)
	if !ok {
		return cfg
	}
	if cfg.Model == "" {
		cfg.Model = info.DefaultModel
	}
	if cfg.CredentialRef == "" && info.KeyEnv != "" {
		cfg.CredentialRef = "env:" + info.KeyEnv
	}
	return cfg
}

// Snapshot returns the active configuration by value.
func (s *Settings) Snapshot() ProviderConfig {
	return *s.current.Load()
}

// Update validates and stores a new selection. A non-empty apiKey is saved
// encrypted and referenced from the config; otherwise the provider's default
// environment variable is used.
func (s *Settings) Update(provider, model, apiKey string) (ProviderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	provider = strings.ToLower(strings.TrimSpace(provider))
	var cfg ProviderConfig
	switch {
	case provider == "" || provider == ProviderNone:
		cfg = ProviderConfig{Provider: ProviderNone}
	default:
		info, ok := s.registry.Lookup(provider)
		if !ok {
			return ProviderConfig{}, apperr.Validation(fmt.Sprintf("unknown provider %q", provider), nil)
		}
		cfg = ProviderConfig{Provider: info.Name, Model: strings.TrimSpace(model)}
		if apiKey != "" {
			if info.KeyEnv == "" {
				return ProviderConfig{}, apperr.Validation(fmt.Sprintf("provider %q does not use an API key", provider), nil)
			}
			if !s.store.SecretsEnabled() {
				return ProviderConfig{}, apperr.Validation("storing API keys requires LISTER_SECRET_KEY to be set", nil)
			}
			name := "provider:" + info.Name
			if err := s.store.SetSecret(name, apiKey); err != nil {
				return ProviderConfig{}, apperr.Storage("failed to store API key", err)
			}
			cfg.CredentialRef = "secret:" + name
		} else if prev := s.Snapshot(); prev.Provider == info.Name && strings.HasPrefix(prev.CredentialRef, "secret:") {
			cfg.CredentialRef = prev.CredentialRef
		}
		cfg = s.withDefaults(cfg)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return ProviderConfig{}, apperr.Internal("failed to encode provider setting", err)
	}
	if err := s.store.SetSetting(SettingKey, string(data)); err != nil {
		return ProviderConfig{}, apperr.Storage("failed to save provider setting", err)
	}
	s.current.Store(&cfg)

	log.Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("ai provider updated")
	return cfg, nil
}

// ResolveCredential returns the API key cfg refers to, or "" if none.
func (s *Settings) ResolveCredential(cfg ProviderConfig) (string, error) {
	ref := cfg.CredentialRef
	switch {
	case ref == "":
		return "", nil
	case strings.HasPrefix(ref, "env:"):
		return s.getenv(strings.TrimPrefix(ref, "env:")), nil
	case strings.HasPrefix(ref, "secret:"):
		key, err := s.store.GetSecret(strings.TrimPrefix(ref, "secret:"))
		if err != nil {
			return "", fmt.Errorf("failed to read stored API key: %w", err)
		}
		return key, nil
	default:
		return "", fmt.Errorf("invalid credential reference %q", ref)
	}
}

// Configured reports whether cfg names a registered backend whose API key,
// if it needs one, is available.
func (s *Settings) Configured(cfg ProviderConfig) bool {
	if !cfg.Selected() {
		return false
	}
	info, ok := s.registry.Lookup(cfg.Provider)
	if !ok {
		return false
	}
	if info.KeyEnv == "" {
		return true
	}
	key, err := s.ResolveCredential(cfg)
	if err != nil {
		log.Warn().Err(err).Str("provider", cfg.Provider).Msg("failed to resolve API key")
		return false
	}
	return key != ""
}
