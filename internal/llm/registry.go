package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory builds a provider for a model using a resolved API key.
type Factory func(model, apiKey string) (Provider, error)

// ProviderInfo describes a registered backend.
type ProviderInfo struct {
	Name         string `json:"name"`
	DefaultModel string `json:"default_model"`
	// KeyEnv is the environment variable holding the API key by default.
	// Empty means the backend needs no key.
	KeyEnv string `json:"key_env,omitempty"`
}

type registration struct {
	info    ProviderInfo
	factory Factory
}

// Registry maps provider names to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds or replaces a backend.
func (r *Registry) Register(info ProviderInfo, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info.Name = strings.ToLower(info.Name)
	r.entries[info.Name] = registration{info: info, factory: factory}
}

// Lookup returns the description of a backend.
func (r *Registry) Lookup(name string) (ProviderInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[strings.ToLower(name)]
	return e.info, ok
}

// Build creates a provider for cfg.
func (r *Registry) Build(cfg ProviderConfig, apiKey string) (Provider, error) {
	r.mu.RLock()
	e, ok := r.entries[strings.ToLower(cfg.Provider)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = e.info.DefaultModel
	}
	if e.info.KeyEnv != "" && apiKey == "" {
		return nil, fmt.Errorf("no API key available for provider %q", cfg.Provider)
	}
	return e.factory(model, apiKey)
}

// Providers lists the registered backends sorted by name.
func (r *Registry) Providers() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]ProviderInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, e.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Endpoints overrides the default API locations of the built-in backends.
type Endpoints struct {
	GeminiBaseURL    string
	OpenAIBaseURL    string
	AnthropicBaseURL string
	OllamaHost       string
}

// DefaultRegistry registers the built-in backends.
func DefaultRegistry(endpoints Endpoints) *Registry {
	r := NewRegistry()
	r.Register(ProviderInfo{Name: geminiName, DefaultModel: geminiDefaultModel, KeyEnv: "GEMINI_API_KEY"},
		func(model, apiKey string) (Provider, error) {
			return NewGeminiProvider(context.Background(), GeminiOptions{
				APIKey:  apiKey,
				Model:   model,
				BaseURL: endpoints.GeminiBaseURL,
			})
		})
	r.Register(ProviderInfo{Name: openAIName, DefaultModel: openAIDefaultModel, KeyEnv: "OPENAI_API_KEY"},
		func(model, apiKey string) (Provider, error) {
			return NewOpenAIProvider(apiKey, model, endpoints.OpenAIBaseURL)
		})
	r.Register(ProviderInfo{Name: anthropicName, DefaultModel: anthropicDefaultModel, KeyEnv: "ANTHROPIC_API_KEY"},
		func(model, apiKey string) (Provider, error) {
			return NewAnthropicProvider(apiKey, model, endpoints.AnthropicBaseURL)
		})
	r.Register(ProviderInfo{Name: ollamaName, DefaultModel: ollamaDefaultModel},
		func(model, _ string) (Provider, error) {
			return NewOllamaProvider(model, endpoints.OllamaHost), nil
		})
	return r
}
