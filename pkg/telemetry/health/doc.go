// Package health aggregates component checks for the /health endpoint.
//
// Components register a CheckFunc under a name; Check runs all of them
// concurrently with a per-check timeout and reports "ok" when every check
// passes and "degraded" otherwise. Handler serves the report as JSON with
// status 200 or 503.
package health
