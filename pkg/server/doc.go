// Package server is the HTTP front of Darwin.
//
// Each pipeline stage is one JSON endpoint, so an external orchestrator can
// drive the evolution loop step by step:
//
//   - POST /v1/chat: serve a user message with the active genome
//   - POST /v1/feedback: record a like or dislike
//   - POST /v1/pipeline/critic: evaluate a chat
//   - POST /v1/pipeline/mutator: breed three challengers
//   - POST /v1/pipeline/judge: pick a winner among the challengers
//   - POST /v1/pipeline/supervisor: audit and promote the winner
//   - GET /v1/lineages/{pk}/tickets: list tickets, filtered by status, type or chat_sk
//   - GET /health: store and provider checks
//   - GET /metrics: Prometheus exposition
//
// Stage endpoints take and return the pipeline payload, so the output of
// one stage is the input of the next. Errors are returned as
//
//	{"error": {"type": "not_found", "message": "..."}}
//
// with 404 for missing entities, 400 for invalid requests, 429 when the
// gateway stays throttled and 502 for gateway and parse failures.
//
// Requests pass through recovery, trace extraction, request id and access
// logging middleware, outermost first.
package server
