package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad listen address", func(c *Config) { c.Server.ListenAddress = "8080" }, "server.listen_address"},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "server.read_timeout"},
		{
			"unknown provider type",
			func(c *Config) { c.Providers = map[string]ProviderConfig{"x": {Type: "azure", BaseURL: "http://x"}} },
			"providers.x.type",
		},
		{
			"provider without base url",
			func(c *Config) { c.Providers = map[string]ProviderConfig{"x": {Type: "generic"}} },
			"providers.x.base_url",
		},
		{
			"relative base url",
			func(c *Config) { c.Providers = map[string]ProviderConfig{"x": {Type: "generic", BaseURL: "localhost"}} },
			"providers.x.base_url",
		},
		{
			"too many retries",
			func(c *Config) {
				c.Providers = map[string]ProviderConfig{"x": {Type: "generic", BaseURL: "http://x", MaxRetries: 11}}
			},
			"providers.x.max_retries",
		},
		{"unknown default provider", func(c *Config) { c.Gateway.DefaultProvider = "ghost" }, "gateway.default_provider"},
		{
			"route to unknown provider",
			func(c *Config) { c.Gateway.Routes = []RouteConfig{{Prefix: "gpt-", Provider: "ghost"}} },
			"gateway.routes[0].provider",
		},
		{"empty alias", func(c *Config) { c.Gateway.Aliases[""] = "x" }, "gateway.aliases"},
		{"zero attempts", func(c *Config) { c.Gateway.Throttle.MaxAttempts = 0 }, "gateway.throttle.max_attempts"},
		{
			"max delay below initial",
			func(c *Config) { c.Gateway.Throttle.MaxDelay = c.Gateway.Throttle.InitialDelay / 2 },
			"gateway.throttle.max_delay",
		},
		{"missing critic model", func(c *Config) { c.Roles.Critic.ModelID = "" }, "roles.critic.model_id"},
		{"zero judge tokens", func(c *Config) { c.Roles.Judge.MaxTokens = 0 }, "roles.judge.max_tokens"},
		{"bad sqlite driver", func(c *Config) { c.Store.SQLite.Driver = "pg" }, "store.sqlite.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "store.postgres.dsn"},
		{"redis without address", func(c *Config) { c.Events.Backend = "redis" }, "events.redis.address"},
		{"negative evolution retries", func(c *Config) { c.Evolution.MaxRetries = -1 }, "evolution.max_retries"},
		{
			"bad audit schedule",
			func(c *Config) { c.Audit.Enabled = true; c.Audit.Schedule = "every tuesday" },
			"audit.schedule",
		},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"bad log format", func(c *Config) { c.Telemetry.Logging.Format = "console" }, "telemetry.logging.format"},
		{"relative metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{
			"unsorted buckets",
			func(c *Config) { c.Telemetry.Metrics.DurationBuckets = []float64{1, 0.5} },
			"telemetry.metrics.duration_buckets",
		},
		{
			"bad sample ratio",
			func(c *Config) { c.Telemetry.Tracing.Enabled = true; c.Telemetry.Tracing.SampleRatio = 2 },
			"telemetry.tracing.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on %q, got %v", tt.field, verr.Errors)
			}
		})
	}
}

func TestValidate_AuditScheduleIgnoredWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Audit.Schedule = "garbage"
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled audit should not validate schedule: %v", err)
	}
}

func TestValidationError_Format(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if got := single.Error(); got != "configuration validation failed: a: bad" {
		t.Errorf("single error = %q", got)
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	got := multi.Error()
	if !strings.Contains(got, "2 errors") || !strings.Contains(got, "  - b: worse") {
		t.Errorf("multi error = %q", got)
	}
}
