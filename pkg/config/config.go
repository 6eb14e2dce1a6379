package config

import "time"

// Config is the root configuration structure for Darwin.
type Config struct {
	// Server contains HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Providers maps provider names to their configurations.
	// Provider names are arbitrary identifiers used by gateway routes.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Gateway contains model routing, alias and throttling settings.
	Gateway GatewayConfig `yaml:"gateway"`

	// Roles names the model used by each pipeline role.
	Roles RolesConfig `yaml:"roles"`

	// Store selects the gene pool backend.
	Store StoreConfig `yaml:"store"`

	// Events selects where pipeline events are published.
	Events EventsConfig `yaml:"events"`

	// Evolution contains settings of the evolution loop.
	Evolution EvolutionConfig `yaml:"evolution"`

	// Audit contains the scheduled pointer audit settings.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	// Pipeline stages call models several times, so this is generous.
	// Default: 5m
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxRequestBytes caps request bodies.
	// Default: 1 MiB
	MaxRequestBytes int64 `yaml:"max_request_bytes"`
}

// ProviderConfig contains configuration for a single LLM provider.
type ProviderConfig struct {
	// Type is the provider implementation: "openai", "anthropic" or "generic".
	// Inferred from the provider name when empty.
	Type string `yaml:"type"`

	// BaseURL is the API endpoint. OpenAI and Anthropic get their public
	// endpoints by default; generic providers must set it.
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key for the provider.
	// Prefer DARWIN_PROVIDERS_<NAME>_API_KEY over storing it in the file.
	APIKey string `yaml:"api_key"`

	// Timeout is the maximum time to wait for a provider response.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the maximum number of retry attempts for failed requests.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// HealthCheckInterval enables background health checks when positive.
	// Default: 0 (disabled)
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// GatewayConfig contains inference gateway settings.
type GatewayConfig struct {
	// DefaultProvider serves every model no route matches. Defaults to the
	// only configured provider when there is exactly one.
	DefaultProvider string `yaml:"default_provider"`

	// Routes send model ids with a given prefix to a named provider.
	// The longest matching prefix wins.
	Routes []RouteConfig `yaml:"routes"`

	// Aliases rewrites model ids before routing.
	// Default: amazon.nova-premier-v1:0 -> us.amazon.nova-premier-v1:0
	Aliases map[string]string `yaml:"aliases"`

	// RegionalPrefix rewrites bare "amazon.nova" ids to their "us." inference
	// profile.
	// Default: true
	RegionalPrefix bool `yaml:"regional_prefix"`

	// Throttle controls backoff when providers throttle.
	Throttle ThrottleConfig `yaml:"throttle"`
}

// RouteConfig maps a model id prefix to a provider.
type RouteConfig struct {
	Prefix   string `yaml:"prefix"`
	Provider string `yaml:"provider"`
}

// ThrottleConfig controls exponential backoff on throttled calls.
type ThrottleConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the delay before the first retry.
	// Default: 200ms
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps the delay between retries.
	// Default: 2s
	MaxDelay time.Duration `yaml:"max_delay"`
}

// RolesConfig names the model of each pipeline role.
type RolesConfig struct {
	Critic   RoleConfig `yaml:"critic"`
	Judge    RoleConfig `yaml:"judge"`
	Mutation RoleConfig `yaml:"mutation"`
	Audit    RoleConfig `yaml:"audit"`
	Feedback RoleConfig `yaml:"feedback"`
}

// RoleConfig is the model and output budget of one role.
type RoleConfig struct {
	ModelID   string `yaml:"model_id"`
	MaxTokens int    `yaml:"max_tokens"`
}

// StoreConfig selects the gene pool backend.
type StoreConfig struct {
	// Backend is "memory", "sqlite" or "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the embedded backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Postgres configures the shared backend.
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/genepool.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is the connection string.
	DSN string `yaml:"dsn"`

	// MaxConns caps the connection pool. Zero keeps the driver default.
	MaxConns int32 `yaml:"max_conns"`
}

// EventsConfig selects where pipeline events go.
type EventsConfig struct {
	// Backend is "log", "memory" or "redis".
	// Default: "log"
	Backend string `yaml:"backend"`

	// Redis configures the redis publisher.
	Redis RedisConfig `yaml:"redis"`

	// Orchestrate runs the evolution loop in-process for every
	// EvaluationFailed event instead of leaving it to an external
	// orchestrator.
	// Default: false
	Orchestrate bool `yaml:"orchestrate"`
}

// RedisConfig configures the redis event publisher.
type RedisConfig struct {
	// Address is host:port of the redis server.
	Address string `yaml:"address"`

	// Password is the optional AUTH password.
	Password string `yaml:"password"`

	// DB is the database number.
	DB int `yaml:"db"`

	// Channel is the pub/sub channel events are published on.
	// Default: "darwin.events"
	Channel string `yaml:"channel"`
}

// EvolutionConfig contains settings of the evolution loop.
type EvolutionConfig struct {
	// MaxRetries is how many extra mutation rounds follow a failed
	// arbitration before escalating.
	// Default: 1
	MaxRetries int `yaml:"max_retries"`

	// GuardPointer makes promotions fail when CURRENT moved since the
	// failing chat was served. Last writer wins when false.
	// Default: false
	GuardPointer bool `yaml:"guard_pointer"`

	// CloseTicketsOnPromotion closes OPEN system tickets filed against a
	// chat once a fix for it is promoted.
	// Default: true
	CloseTicketsOnPromotion bool `yaml:"close_tickets_on_promotion"`
}

// AuditConfig configures the scheduled pointer audit.
type AuditConfig struct {
	// Enabled runs the audit on Schedule inside the server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Schedule is a standard cron expression or descriptor.
	// Default: "@every 1h"
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPII masks e-mail addresses and phone numbers in logged content.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "darwin"
	Namespace string `yaml:"namespace"`

	// DurationBuckets defines histogram buckets for call and stage
	// durations in seconds.
	// Default: [0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60]
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service name in traces.
	// Default: "darwin"
	ServiceName string `yaml:"service_name"`
}
