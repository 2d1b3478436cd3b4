// Package provider implements LLM providers and the factory that builds them.
package provider

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"

	"github.com/joss/taskagent/pkg/llm"
)

// ProviderType identifies supported LLM providers.
type ProviderType string

const (
	ProviderOpenAI     ProviderType = "openai"
	ProviderCompatible ProviderType = "openai-compatible"
	ProviderOllama     ProviderType = "ollama"
)

const ollamaBaseURL = "http://localhost:11434/v1"

// Config holds provider configuration.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient HTTPClient
}

// ConfigOption modifies provider configuration.
type ConfigOption func(*Config)

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) { c.APIKey = key }
}

func WithBaseURL(url string) ConfigOption {
	return func(c *Config) { c.BaseURL = url }
}

func WithHTTPClient(client HTTPClient) ConfigOption {
	return func(c *Config) { c.HTTPClient = client }
}

// ProviderBuilder constructs a provider from config.
type ProviderBuilder func(cfg Config) (llm.Provider, error)

// Factory creates LLM providers, caching one instance per type and endpoint.
type Factory struct {
	mu       sync.RWMutex
	cache    map[string]llm.Provider
	builders map[ProviderType]ProviderBuilder
}

func NewFactory() *Factory {
	f := &Factory{
		cache:    make(map[string]llm.Provider),
		builders: make(map[ProviderType]ProviderBuilder),
	}
	f.RegisterDefaults()
	return f
}

// RegisterDefaults registers the built-in provider builders.
func (f *Factory) RegisterDefaults() {
	f.Register(ProviderOpenAI, func(cfg Config) (llm.Provider, error) {
		return NewOpenAIWithClient(cfg.APIKey, cfg.BaseURL, cfg.HTTPClient), nil
	})
	f.Register(ProviderCompatible, func(cfg Config) (llm.Provider, error) {
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("%s provider requires a base URL", ProviderCompatible)
		}
		return NewOpenAICompatibleWithClient(cfg.APIKey, completionsURL(cfg.BaseURL), cfg.HTTPClient), nil
	})
	f.Register(ProviderOllama, func(cfg Config) (llm.Provider, error) {
		base := cfg.BaseURL
		if base == "" {
			base = ollamaBaseURL
		}
		p := NewOpenAICompatibleWithClient(cfg.APIKey, completionsURL(base), cfg.HTTPClient)
		p.id = string(ProviderOllama)
		return p, nil
	})
}

// Register adds a provider builder, replacing any existing one for pt.
func (f *Factory) Register(pt ProviderType, builder ProviderBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[pt] = builder
}

// Types lists registered provider types, sorted.
func (f *Factory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.builders))
	for pt := range f.builders {
		types = append(types, string(pt))
	}
	sort.Strings(types)
	return types
}

// Create returns a provider instance, caching by type and config.
func (f *Factory) Create(pt ProviderType, opts ...ConfigOption) (llm.Provider, error) {
	cfg := Config{
		HTTPClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = envKey(pt)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = envBaseURL(pt)
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", pt, cfg.APIKey[:min(8, len(cfg.APIKey))], cfg.BaseURL)

	f.mu.RLock()
	if p, ok := f.cache[cacheKey]; ok {
		f.mu.RUnlock()
		return p, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.cache[cacheKey]; ok {
		return p, nil
	}

	builder, ok := f.builders[pt]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", pt)
	}

	p, err := builder(cfg)
	if err != nil {
		return nil, err
	}
	f.cache[cacheKey] = p
	return p, nil
}

// CreateByID creates a provider from a string ID, accepting common aliases.
func (f *Factory) CreateByID(id string, opts ...ConfigOption) (llm.Provider, error) {
	switch id {
	case "openai", "gpt", "":
		return f.Create(ProviderOpenAI, opts...)
	case "openai-compatible", "compatible":
		return f.Create(ProviderCompatible, opts...)
	case "ollama":
		return f.Create(ProviderOllama, opts...)
	default:
		return f.Create(ProviderType(id), opts...)
	}
}

// Clear removes cached providers.
func (f *Factory) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]llm.Provider)
}

// Default is the global factory instance.
var Default = NewFactory()

func envKey(pt ProviderType) string {
	switch pt {
	case ProviderOpenAI, ProviderCompatible:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

func envBaseURL(pt ProviderType) string {
	switch pt {
	case ProviderOpenAI, ProviderCompatible:
		return os.Getenv("OPENAI_BASE_URL")
	}
	return ""
}
