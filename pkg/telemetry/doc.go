// Package telemetry groups the observability packages of Darwin.
//
// # Components
//
//   - logging: slog construction from config, request id context and PII redaction
//   - metrics: Prometheus collector for gateway calls, pipeline stages and audits
//   - tracing: OpenTelemetry tracer provider with OTLP/gRPC export
//   - health: named health checks served as JSON
//
// # Usage
//
//	cfg := config.GetConfig()
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//
//	collector.RecordStage("critic", "fail", time.Second)
//	ctx, span := tracer.Start(ctx, "critic.evaluate")
//	defer span.End()
//
// A nil *metrics.Collector is valid and records nothing, so pipeline code
// never checks whether metrics are enabled.
//
// # PII Protection
//
// When telemetry.logging.redact_pii is set, log attributes are scrubbed:
//
//   - bearer tokens and sk- API keys
//   - e-mail addresses
//   - phone numbers
package telemetry
