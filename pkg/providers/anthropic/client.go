package anthropic

import (
	"context"
	"log/slog"
	"strings"

	"mercator-hq/darwin/pkg/providers"
)

// Provider is the Anthropic adapter.
type Provider struct {
	*providers.HTTPProvider
}

const (
	// DefaultBaseURL is used when the configuration leaves base_url empty.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultAnthropicVersion is the API version header value.
	DefaultAnthropicVersion = "2023-06-01"
)

// NewProvider creates an Anthropic provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "anthropic",
			Field:    "name",
			Message:  "provider name is required",
		}
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.APIKey == "" {
		return nil, &providers.ConfigError{
			Provider: config.Name,
			Field:    "api_key",
			Message:  "API key is required for Anthropic",
		}
	}
	if config.Type == "" {
		config.Type = providers.TypeAnthropic
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.MaxIdleConns == 0 {
		config.MaxIdleConns = 100
	}
	if config.MaxIdleConnsPerHost == 0 {
		config.MaxIdleConnsPerHost = 10
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	p := &Provider{HTTPProvider: providers.NewHTTPProvider(config)}

	slog.Info("Anthropic provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

// Complete sends a message request to Anthropic.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	url := p.GetConfig().BaseURL + "/v1/messages"
	headers := map[string]string{
		"x-api-key":         p.GetConfig().APIKey,
		"anthropic-version": DefaultAnthropicVersion,
		"Content-Type":      "application/json",
	}

	var anthropicResp Response
	if err := p.DoJSONRequest(ctx, "POST", url, transformRequest(req), &anthropicResp, headers); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&anthropicResp)
	if err != nil {
		return nil, &providers.ParseError{Provider: p.GetName(), Cause: err}
	}

	slog.Debug("completion request succeeded",
		"provider", p.GetName(),
		"model", resp.Model,
		"tokens", resp.Usage.TotalTokens,
	)
	return resp, nil
}
