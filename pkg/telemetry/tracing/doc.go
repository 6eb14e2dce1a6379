// Package tracing provides OpenTelemetry tracing for Darwin.
//
// Every pipeline stage and every gateway call opens a span. When tracing is
// enabled spans are exported over OTLP/gRPC; otherwise a noop provider is
// used and span creation costs next to nothing.
//
// # Sampling Strategies
//
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a fraction of traces by trace id
//
// All samplers respect the parent span's decision.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "darwin.critic.evaluate")
//	defer span.End()
//	tracing.SetPipelineAttributes(span, pk, chatSK, 0)
//
// A nil *Tracer is valid and starts noop spans.
//
// # Trace Context Propagation
//
// HTTPMiddleware extracts W3C traceparent headers from incoming requests
// so that an external orchestrator's trace continues through the server.
package tracing
