// Package anthropic implements the Anthropic Messages API adapter.
//
// The system instruction travels in the top-level "system" field, and
// max_tokens is mandatory (4096 when the request leaves it unset).
package anthropic
