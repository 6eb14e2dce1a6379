package providers

import "time"

// Message is one turn of the conversation sent to a model.
type Message struct {
	// Role is user or assistant; the system instruction travels separately.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// TokenUsage tracks token consumption for a request.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest is a provider-agnostic chat completion request.
type CompletionRequest struct {
	// Model is the provider-side model identifier.
	Model string `json:"model"`

	// System is the system instruction. Adapters place it where their API
	// expects it.
	System string `json:"system,omitempty"`

	// Messages is the conversation history, oldest first.
	Messages []Message `json:"messages"`

	// Temperature controls randomness. Zero is sent as zero.
	Temperature float64 `json:"temperature"`

	// MaxTokens caps the generated tokens.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Metadata is request context for logging; it is not sent.
	Metadata map[string]string `json:"-"`
}

// CompletionResponse is a provider-agnostic completion response.
type CompletionResponse struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason"`
	Usage        TokenUsage `json:"usage"`
	Created      int64      `json:"created"`
}

// ProviderHealth tracks the health status of a provider.
type ProviderHealth struct {
	IsHealthy             bool
	LastCheck             time.Time
	LastError             error
	ConsecutiveFailures   int
	LastSuccessfulRequest time.Time
	TotalRequests         int64
	FailedRequests        int64
}

// ProviderConfig contains configuration for a single provider instance.
type ProviderConfig struct {
	// Name is the provider identifier used in gateway routes.
	Name string

	// Type is the adapter type (openai, anthropic, generic).
	Type string

	// BaseURL is the API endpoint base URL.
	BaseURL string

	// APIKey is the authentication key.
	APIKey string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// MaxRetries is the number of retries on 5xx and network errors.
	// Throttling (429) is never retried here.
	MaxRetries int

	// HealthCheckInterval is how often to run background health checks.
	HealthCheckInterval time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reason constants.
const (
	FinishReasonStop          = "stop"
	FinishReasonLength        = "length"
	FinishReasonContentFilter = "content_filter"
)

// Provider type constants.
const (
	TypeOpenAI    = "openai"
	TypeAnthropic = "anthropic"
	TypeGeneric   = "generic"
)
