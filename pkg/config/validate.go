package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateGateway(&cfg.Gateway, cfg.Providers)...)
	errs = append(errs, validateRoles(&cfg.Roles)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateEvents(&cfg.Events)...)
	errs = append(errs, validateEvolution(&cfg.Evolution)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid address format: %v", err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "timeout must be positive"})
	}
	if cfg.MaxRequestBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_request_bytes", Message: "must be positive"})
	}

	return errs
}

func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for name, provider := range providers {
		prefix := fmt.Sprintf("providers.%s", name)

		switch provider.Type {
		case "openai", "anthropic", "generic":
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("unknown provider type %q (must be openai, anthropic or generic)", provider.Type),
			})
		}

		if provider.BaseURL == "" {
			errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "base URL is required"})
		} else if u, err := url.Parse(provider.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{
				Field:   prefix + ".base_url",
				Message: fmt.Sprintf("invalid URL %q", provider.BaseURL),
			})
		}

		// API keys may be injected at runtime through the environment.

		if provider.Timeout < 0 {
			errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be positive"})
		}
		if provider.MaxRetries < 0 {
			errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "max retries must be non-negative"})
		}
		if provider.MaxRetries > 10 {
			errs = append(errs, FieldError{Field: prefix + ".max_retries", Message: "max retries exceeds reasonable limit (10)"})
		}
		if provider.HealthCheckInterval < 0 {
			errs = append(errs, FieldError{Field: prefix + ".health_check_interval", Message: "interval must be non-negative"})
		}
	}

	return errs
}

func validateGateway(cfg *GatewayConfig, providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	if cfg.DefaultProvider != "" {
		if _, ok := providers[cfg.DefaultProvider]; !ok {
			errs = append(errs, FieldError{
				Field:   "gateway.default_provider",
				Message: fmt.Sprintf("provider %q is not configured", cfg.DefaultProvider),
			})
		}
	}

	for i, route := range cfg.Routes {
		prefix := fmt.Sprintf("gateway.routes[%d]", i)
		if route.Prefix == "" {
			errs = append(errs, FieldError{Field: prefix + ".prefix", Message: "prefix is required"})
		}
		if _, ok := providers[route.Provider]; !ok {
			errs = append(errs, FieldError{
				Field:   prefix + ".provider",
				Message: fmt.Sprintf("provider %q is not configured", route.Provider),
			})
		}
	}

	for from, to := range cfg.Aliases {
		if from == "" || to == "" {
			errs = append(errs, FieldError{Field: "gateway.aliases", Message: "alias source and target must be non-empty"})
			break
		}
	}

	t := cfg.Throttle
	if t.MaxAttempts < 1 {
		errs = append(errs, FieldError{Field: "gateway.throttle.max_attempts", Message: "must be at least 1"})
	}
	if t.InitialDelay <= 0 {
		errs = append(errs, FieldError{Field: "gateway.throttle.initial_delay", Message: "must be positive"})
	}
	if t.MaxDelay < t.InitialDelay {
		errs = append(errs, FieldError{Field: "gateway.throttle.max_delay", Message: "must not be smaller than initial_delay"})
	}

	return errs
}

func validateRoles(cfg *RolesConfig) []FieldError {
	var errs []FieldError
	roles := []struct {
		name string
		role RoleConfig
	}{
		{"critic", cfg.Critic},
		{"judge", cfg.Judge},
		{"mutation", cfg.Mutation},
		{"audit", cfg.Audit},
		{"feedback", cfg.Feedback},
	}
	for _, r := range roles {
		if r.role.ModelID == "" {
			errs = append(errs, FieldError{Field: "roles." + r.name + ".model_id", Message: "model id is required"})
		}
		if r.role.MaxTokens <= 0 {
			errs = append(errs, FieldError{Field: "roles." + r.name + ".max_tokens", Message: "must be positive"})
		}
	}
	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "store.sqlite.path", Message: "path is required"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{
				Field:   "store.sqlite.driver",
				Message: fmt.Sprintf("invalid driver %q (must be sqlite or sqlite3)", cfg.SQLite.Driver),
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.busy_timeout", Message: "must be non-negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "store.postgres.dsn", Message: "dsn is required for the postgres backend"})
		}
		if cfg.Postgres.MaxConns < 0 {
			errs = append(errs, FieldError{Field: "store.postgres.max_conns", Message: "must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "store.backend",
			Message: fmt.Sprintf("invalid backend %q (must be memory, sqlite or postgres)", cfg.Backend),
		})
	}

	return errs
}

func validateEvents(cfg *EventsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "log", "memory":
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "events.redis.address", Message: "address is required for the redis backend"})
		}
		if cfg.Redis.Channel == "" {
			errs = append(errs, FieldError{Field: "events.redis.channel", Message: "channel is required"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "events.redis.db", Message: "must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "events.backend",
			Message: fmt.Sprintf("invalid backend %q (must be log, memory or redis)", cfg.Backend),
		})
	}

	return errs
}

func validateEvolution(cfg *EvolutionConfig) []FieldError {
	if cfg.MaxRetries < 0 {
		return []FieldError{{Field: "evolution.max_retries", Message: "must be non-negative"}}
	}
	if cfg.MaxRetries > 10 {
		return []FieldError{{Field: "evolution.max_retries", Message: "exceeds reasonable limit (10)"}}
	}
	return nil
}

func validateAudit(cfg *AuditConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return []FieldError{{
			Field:   "audit.schedule",
			Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
		}}
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn or error)", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json or text)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
		}
		for i, b := range cfg.Metrics.DurationBuckets {
			if b <= 0 || (i > 0 && b <= cfg.Metrics.DurationBuckets[i-1]) {
				errs = append(errs, FieldError{
					Field:   "telemetry.metrics.duration_buckets",
					Message: "buckets must be positive and strictly increasing",
				})
				break
			}
		}
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0.0 and 1.0"})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}

	return errs
}
