// Package metrics exposes Prometheus metrics for the gateway and the
// evolution pipeline.
//
// # Metrics
//
// Gateway:
//   - darwin_gateway_requests_total{provider,model,status}
//   - darwin_gateway_call_duration_seconds{provider,model}
//   - darwin_gateway_errors_total{provider,type}
//   - darwin_gateway_throttle_retries_total{model}
//   - darwin_provider_health{provider}
//
// Pipeline stages:
//   - darwin_stage_runs_total{stage,outcome}
//   - darwin_stage_duration_seconds{stage}
//
// Evolution:
//   - darwin_mutation_fallbacks_total
//   - darwin_promotions_total{outcome}
//   - darwin_tickets_total{type}
//   - darwin_feedback_total{kind}
//   - darwin_pointer_audit_runs_total{result}
//   - darwin_pointer_audit_violations
//
// A nil *Collector is valid and records nothing, so components can be
// built without metrics in tests.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
