// Package config loads and validates the Darwin configuration.
//
// A configuration file names the inference providers and model routes,
// the model each pipeline role uses (critic, judge, mutation, audit,
// feedback), the gene pool backend, where pipeline events go, the
// evolution retry budget, the pointer audit schedule and telemetry.
//
//	server:
//	  listen_address: 127.0.0.1:8080
//	roles:
//	  critic:   {model_id: anthropic.claude-3-5-sonnet, max_tokens: 1000}
//	  mutation: {model_id: anthropic.claude-3-5-sonnet, max_tokens: 4096}
//	store:
//	  backend: sqlite
//	  sqlite: {path: data/genepool.db}
//	events:
//	  backend: redis
//	  redis: {address: localhost:6379, channel: darwin.events}
//	evolution:
//	  max_retries: 1
//
// Loading decodes the file over Default(), applies DARWIN_* environment
// overrides and validates the result; every failing field is reported in
// one ValidationError. DARWIN_SECTION_FIELD names a scalar, for example
// DARWIN_STORE_BACKEND or DARWIN_EVOLUTION_MAX_RETRIES, and
// DARWIN_PROVIDERS_<NAME>_API_KEY injects provider secrets.
//
// The server keeps the loaded configuration in a process-wide singleton
// (Initialize, GetConfig). Watcher observes the file with fsnotify and,
// after a quiet period, ReloadConfig swaps in the new configuration and
// notifies the OnReload listeners. A file that fails validation leaves
// the running configuration in place.
package config
