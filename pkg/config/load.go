package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "DARWIN_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded over Default(), so omitted fields keep their
// defaults. The result is validated; environment variables are not applied.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention DARWIN_SECTION_FIELD and always take precedence over the file.
// An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file (or Default() when path is empty)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)

	// Provider overrides: DARWIN_PROVIDERS_<NAME>_API_KEY / _BASE_URL
	for name, p := range cfg.Providers {
		key := "PROVIDERS_" + envName(name)
		envString(key+"_API_KEY", &p.APIKey)
		envString(key+"_BASE_URL", &p.BaseURL)
		cfg.Providers[name] = p
	}

	// Gateway overrides
	envString("GATEWAY_DEFAULT_PROVIDER", &cfg.Gateway.DefaultProvider)
	envInt("GATEWAY_THROTTLE_MAX_ATTEMPTS", &cfg.Gateway.Throttle.MaxAttempts)

	// Role overrides
	envString("ROLES_CRITIC_MODEL_ID", &cfg.Roles.Critic.ModelID)
	envString("ROLES_JUDGE_MODEL_ID", &cfg.Roles.Judge.ModelID)
	envString("ROLES_MUTATION_MODEL_ID", &cfg.Roles.Mutation.ModelID)
	envString("ROLES_AUDIT_MODEL_ID", &cfg.Roles.Audit.ModelID)
	envString("ROLES_FEEDBACK_MODEL_ID", &cfg.Roles.Feedback.ModelID)

	// Store overrides
	envString("STORE_BACKEND", &cfg.Store.Backend)
	envString("STORE_SQLITE_PATH", &cfg.Store.SQLite.Path)
	envString("STORE_SQLITE_DRIVER", &cfg.Store.SQLite.Driver)
	envString("STORE_POSTGRES_DSN", &cfg.Store.Postgres.DSN)

	// Events overrides
	envString("EVENTS_BACKEND", &cfg.Events.Backend)
	envString("EVENTS_REDIS_ADDRESS", &cfg.Events.Redis.Address)
	envString("EVENTS_REDIS_PASSWORD", &cfg.Events.Redis.Password)
	envString("EVENTS_REDIS_CHANNEL", &cfg.Events.Redis.Channel)
	envBool("EVENTS_ORCHESTRATE", &cfg.Events.Orchestrate)

	// Evolution overrides
	envInt("EVOLUTION_MAX_RETRIES", &cfg.Evolution.MaxRetries)
	envBool("EVOLUTION_GUARD_POINTER", &cfg.Evolution.GuardPointer)

	// Audit overrides
	envBool("AUDIT_ENABLED", &cfg.Audit.Enabled)
	envString("AUDIT_SCHEDULE", &cfg.Audit.Schedule)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
}

// envName converts a provider name into its environment variable segment.
func envName(name string) string {
	return strings.NewReplacer("-", "_", ".", "_").Replace(strings.ToUpper(name))
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}
