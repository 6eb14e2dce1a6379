// Package logging builds the structured logger used across Darwin.
//
// New returns a plain *slog.Logger whose handler adds pipeline context
// (request id, lineage, chat and stage) from the context passed to the
// *Context logging methods, and masks PII in string attributes when
// redaction is enabled.
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	ctx = logging.WithLineage(ctx, "LINEAGE#support")
//	ctx = logging.WithStage(ctx, "critic")
//	logger.InfoContext(ctx, "Verdict recorded", "verdict", "FAIL")
//
// # PII Redaction
//
// Transcripts carry end-user text, so string attributes are scanned for:
//
//   - API keys: sk-abc123xyz → sk-***
//   - Bearer tokens: Bearer abc → Bearer ***
//   - Emails: user@example.com → u***@example.com
//   - Phone numbers: 555-123-4567 → ***-***-****
//
// Attributes whose key names a secret (api_key, token, password) are
// masked entirely.
package logging
