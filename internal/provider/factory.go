package provider

import (
	"fmt"
	"net/http"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// Options overrides adapter defaults, mainly for tests and the mock
// upstream. Zero values select production endpoints.
type Options struct {
	// BaseURL overrides the provider's API base URL for HTTP adapters.
	BaseURL string
	// HTTPClient overrides the shared upstream HTTP client.
	HTTPClient *http.Client
	// BedrockRegion is the fallback region when a Bedrock secret omits one.
	BedrockRegion string
}

// New constructs the adapter for a provider. This is the single dispatch
// point over provider type.
func New(p storage.Provider, opts Options) (Adapter, error) {
	switch p {
	case storage.ProviderOpenAI:
		return NewOpenAICompatible("openai", orDefault(opts.BaseURL, "https://api.openai.com/v1"), opts.HTTPClient), nil
	case storage.ProviderDeepSeek:
		return NewOpenAICompatible("deepseek", orDefault(opts.BaseURL, "https://api.deepseek.com/v1"), opts.HTTPClient), nil
	case storage.ProviderGroq:
		return NewOpenAICompatible("groq", orDefault(opts.BaseURL, "https://api.groq.com/openai/v1"), opts.HTTPClient), nil
	case storage.ProviderAnthropic:
		return NewAnthropic(opts.BaseURL, opts.HTTPClient), nil
	case storage.ProviderGoogle:
		return NewGoogle(opts.BaseURL, opts.HTTPClient), nil
	case storage.ProviderCohere:
		return NewCohere(opts.BaseURL, opts.HTTPClient), nil
	case storage.ProviderAWSBedrock:
		return NewBedrock(opts.BedrockRegion), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
}

// Registry caches one adapter per provider so the request proxy resolves
// them without repeated construction.
type Registry struct {
	adapters map[storage.Provider]Adapter
}

// NewRegistry builds adapters for every supported provider up front.
func NewRegistry(opts Options) (*Registry, error) {
	adapters := make(map[storage.Provider]Adapter, len(storage.Providers))
	for _, p := range storage.Providers {
		adapter, err := New(p, opts)
		if err != nil {
			return nil, err
		}
		adapters[p] = adapter
	}
	return &Registry{adapters: adapters}, nil
}

// For returns the adapter for a provider.
func (r *Registry) For(p storage.Provider) (Adapter, error) {
	adapter, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, p)
	}
	return adapter, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
