package config

import (
	"strings"
	"time"
)

// Default values for configuration fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxRequestBytes = 1 << 20

	DefaultProviderTimeout    = 60 * time.Second
	DefaultProviderMaxRetries = 3
	DefaultOpenAIBaseURL      = "https://api.openai.com/v1"
	DefaultAnthropicBaseURL   = "https://api.anthropic.com"

	DefaultThrottleMaxAttempts  = 3
	DefaultThrottleInitialDelay = 200 * time.Millisecond
	DefaultThrottleMaxDelay     = 2 * time.Second

	DefaultCriticModel   = "us.amazon.nova-pro-v1:0"
	DefaultJudgeModel    = "us.amazon.nova-premier-v1:0"
	DefaultMutationModel = "us.meta.llama4-maverick-17b-instruct-v1:0"
	DefaultAuditModel    = "amazon.titan-text-express-v1"
	DefaultFeedbackModel = "us.amazon.nova-pro-v1:0"

	DefaultCriticMaxTokens   = 2000
	DefaultJudgeMaxTokens    = 800
	DefaultMutationMaxTokens = 4096
	DefaultAuditMaxTokens    = 512
	DefaultFeedbackMaxTokens = 1000

	DefaultStoreBackend      = "sqlite"
	DefaultSQLitePath        = "data/genepool.db"
	DefaultSQLiteDriver      = "sqlite"
	DefaultSQLiteBusyTimeout = 5 * time.Second

	DefaultEventsBackend = "log"
	DefaultRedisChannel  = "darwin.events"

	DefaultEvolutionMaxRetries = 1
	DefaultAuditSchedule       = "@every 1h"

	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"
	DefaultNamespace   = "darwin"

	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultServiceName        = "darwin"
)

// DefaultDurationBuckets are the histogram buckets, in seconds, for model
// calls and pipeline stages.
var DefaultDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// DefaultAliases returns the built-in model alias map.
func DefaultAliases() map[string]string {
	return map[string]string{
		"amazon.nova-premier-v1:0": "us.amazon.nova-premier-v1:0",
	}
}

// Default returns a configuration with every default applied. Boolean
// settings that default to true are only set here, so file loading starts
// from this value and decodes the YAML over it.
func Default() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{
			Aliases:        DefaultAliases(),
			RegionalPrefix: true,
		},
		Store: StoreConfig{
			SQLite: SQLiteConfig{WALMode: true},
		},
		Evolution: EvolutionConfig{
			MaxRetries:              DefaultEvolutionMaxRetries,
			CloseTicketsOnPromotion: true,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactPII: true},
			Metrics: MetricsConfig{Enabled: true},
			Tracing: TracingConfig{Insecure: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyProviderDefaults(cfg.Providers)
	applyGatewayDefaults(&cfg.Gateway, cfg.Providers)
	applyRoleDefaults(&cfg.Roles)
	applyStoreDefaults(&cfg.Store)
	applyEventsDefaults(&cfg.Events)
	applyTelemetryDefaults(&cfg.Telemetry)

	if cfg.Audit.Schedule == "" {
		cfg.Audit.Schedule = DefaultAuditSchedule
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxRequestBytes == 0 {
		cfg.MaxRequestBytes = DefaultMaxRequestBytes
	}
}

func applyProviderDefaults(providers map[string]ProviderConfig) {
	for name, p := range providers {
		if p.Type == "" {
			p.Type = inferProviderType(name)
		}
		if p.BaseURL == "" {
			switch p.Type {
			case "openai":
				p.BaseURL = DefaultOpenAIBaseURL
			case "anthropic":
				p.BaseURL = DefaultAnthropicBaseURL
			}
		}
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		if p.MaxRetries == 0 {
			p.MaxRetries = DefaultProviderMaxRetries
		}
		providers[name] = p
	}
}

// inferProviderType guesses the provider type from its name.
func inferProviderType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "openai"):
		return "openai"
	case strings.Contains(lower, "anthropic"), strings.Contains(lower, "claude"):
		return "anthropic"
	default:
		return "generic"
	}
}

func applyGatewayDefaults(cfg *GatewayConfig, providers map[string]ProviderConfig) {
	if cfg.DefaultProvider == "" && len(providers) == 1 {
		for name := range providers {
			cfg.DefaultProvider = name
		}
	}
	if cfg.Aliases == nil {
		cfg.Aliases = DefaultAliases()
	}
	if cfg.Throttle.MaxAttempts == 0 {
		cfg.Throttle.MaxAttempts = DefaultThrottleMaxAttempts
	}
	if cfg.Throttle.InitialDelay == 0 {
		cfg.Throttle.InitialDelay = DefaultThrottleInitialDelay
	}
	if cfg.Throttle.MaxDelay == 0 {
		cfg.Throttle.MaxDelay = DefaultThrottleMaxDelay
	}
}

func applyRoleDefaults(cfg *RolesConfig) {
	roleDefault(&cfg.Critic, DefaultCriticModel, DefaultCriticMaxTokens)
	roleDefault(&cfg.Judge, DefaultJudgeModel, DefaultJudgeMaxTokens)
	roleDefault(&cfg.Mutation, DefaultMutationModel, DefaultMutationMaxTokens)
	roleDefault(&cfg.Audit, DefaultAuditModel, DefaultAuditMaxTokens)
	roleDefault(&cfg.Feedback, DefaultFeedbackModel, DefaultFeedbackMaxTokens)
}

func roleDefault(r *RoleConfig, model string, maxTokens int) {
	if r.ModelID == "" {
		r.ModelID = model
	}
	if r.MaxTokens == 0 {
		r.MaxTokens = maxTokens
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStoreBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyEventsDefaults(cfg *EventsConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultEventsBackend
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = DefaultRedisChannel
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultNamespace
	}
	if len(cfg.Metrics.DurationBuckets) == 0 {
		cfg.Metrics.DurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
}
