package openai

import (
	"context"
	"log/slog"
	"strings"

	"mercator-hq/darwin/pkg/providers"
)

// Provider is the OpenAI adapter.
type Provider struct {
	*providers.HTTPProvider
}

// DefaultBaseURL is used when the configuration leaves base_url empty.
const DefaultBaseURL = "https://api.openai.com/v1"

// NewProvider creates an OpenAI provider.
func NewProvider(config providers.ProviderConfig) (*Provider, error) {
	if config.Name == "" {
		return nil, &providers.ConfigError{
			Provider: "openai",
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
			Message:  "API key is required for OpenAI",
		}
	}
	if config.Type == "" {
		config.Type = providers.TypeOpenAI
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

	slog.Info("OpenAI provider initialized",
		"provider", config.Name,
		"base_url", config.BaseURL,
	)
	return p, nil
}

// Complete sends a chat completion to OpenAI.
func (p *Provider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	url := p.GetConfig().BaseURL + "/chat/completions"
	headers := map[string]string{
		"Authorization": "Bearer " + p.GetConfig().APIKey,
		"Content-Type":  "application/json",
	}

	var openaiResp Response
	if err := p.DoJSONRequest(ctx, "POST", url, transformRequest(req), &openaiResp, headers); err != nil {
		return nil, err
	}

	resp, err := transformResponse(&openaiResp)
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
