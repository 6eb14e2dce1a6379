package providers

import "context"

// Provider is the interface every model adapter implements.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must return promptly when the context is cancelled.
type Provider interface {
	// Complete sends one chat completion and returns the normalised
	// response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// HealthCheck performs a lightweight reachability check.
	HealthCheck(ctx context.Context) error

	// GetName returns the provider's configured name.
	GetName() string

	// GetType returns the provider's type (openai, anthropic, generic).
	GetType() string

	// GetConfig returns the provider's configuration.
	GetConfig() ProviderConfig

	// IsHealthy returns the current health status.
	IsHealthy() bool

	// GetHealth returns detailed health information.
	GetHealth() ProviderHealth

	// Close releases the provider's resources.
	Close() error
}
