package generic

import (
	"context"
	"log/slog"

	"mercator-hq/darwin/pkg/providers"
	"mercator-hq/darwin/pkg/providers/openai"
)

// Provider is an OpenAI-compatible adapter with an optional API key.
type Provider struct {
	*openai.Provider
}

// NewProvider creates a generic OpenAI-compatible provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "generic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "base_url",
			Message:  "base URL is required for generic provider",
		}
	}

	// Local and gateway endpoints often need no key; the OpenAI adapter
	// requires one, so a placeholder stands in.
	if config.APIKey == "" {
		config.APIKey = "not-required"
	}
	config.Type = providers.TypeGeneric
	if config.MaxRetries == 0 {
		config.MaxRetries = 1
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 10
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 5
	}

	openaiProvider, err := openai.NewProvider(config)
	if err != nil {
		return nil, err
	}

	slog.Info("Generic OpenAI-compatible provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return &Provider{Provider: openaiProvider}, nil
}

// Complete delegates to the OpenAI adapter; the wire format is the same.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	return p.Provider.Complete(ctx, req)
}

// GetType returns "generic".
func (p *Provider) GetType() string {
	return providers.TypeGeneric
}
