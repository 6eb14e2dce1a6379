// Package providerfactory builds provider adapters from configuration and
// manages their lifecycle.
package providerfactory

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/darwin/pkg/providers"
	"mercator-hq/darwin/pkg/providers/anthropic"
	"mercator-hq/darwin/pkg/providers/generic"
	"mercator-hq/darwin/pkg/providers/openai"
)

// NewProvider creates a provider adapter for config.
//
// Supported types are openai, anthropic and generic (any OpenAI-compatible
// endpoint, including Bedrock access gateways). When Type is empty it is
// inferred from the name.
func NewProvider(config providers.ProviderConfig) (providers.Provider, error) {
	providerType := config.Type
	if providerType == "" {
		providerType = inferProviderType(config.Name)
		config.Type = providerType
	}

	slog.Debug("creating provider",
		"name", config.Name,
		"type", providerType,
		"base_url", config.BaseURL,
	)

	var provider providers.Provider
	var err error

	switch providerType {
	case providers.TypeOpenAI:
		provider, err = openai.NewProvider(config)
	case providers.TypeAnthropic:
		provider, err = anthropic.NewProvider(config)
	case providers.TypeGeneric:
		provider, err = generic.NewProvider(config)
	default:
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "type",
			Message:  fmt.Sprintf("unsupported provider type: %q (supported: openai, anthropic, generic)", providerType),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	slog.Info("provider created", "name", config.Name, "type", providerType)
	return provider, nil
}

// NewProviderWithHealthCheck creates a provider and, when a check interval
// is configured, starts its background health checker. The checker stops
// when ctx is cancelled or the provider is closed.
func NewProviderWithHealthCheck(ctx context.Context, config providers.ProviderConfig) (providers.Provider, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}

	type healthCheckStarter interface {
		StartHealthChecker(context.Context)
	}
	if hcs, ok := provider.(healthCheckStarter); ok && config.HealthCheckInterval > 0 {
		hcs.StartHealthChecker(ctx)
		slog.Debug("health checker started", "provider", config.Name)
	}
	return provider, nil
}

// inferProviderType infers the provider type from the provider name.
func inferProviderType(name string) string {
	switch name {
	case "openai":
		return providers.TypeOpenAI
	case "anthropic", "claude":
		return providers.TypeAnthropic
	default:
		return providers.TypeGeneric
	}
}
