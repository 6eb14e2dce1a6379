// Package providers implements the HTTP clients behind the inference gateway.
//
// # Overview
//
// Every pipeline role (agent response, mutation, arbitration, audit) ends in
// a chat completion against some model. This package normalises those calls
// into one CompletionRequest/CompletionResponse pair and implements it for
// the APIs the gateway can reach.
//
// # Architecture
//
//  1. Provider interface: the contract every adapter implements
//  2. HTTPProvider: shared HTTP logic (connection pooling, retries on 5xx and
//     network errors, typed errors, health tracking)
//  3. Adapters: openai, anthropic and generic (any OpenAI-compatible
//     endpoint, e.g. a Bedrock access gateway or a local model server)
//
// # Basic Usage
//
//	provider, err := openai.NewProvider(providers.ProviderConfig{
//	    Name:    "openai",
//	    Type:    "openai",
//	    BaseURL: "https://api.openai.com/v1",
//	    APIKey:  os.Getenv("OPENAI_API_KEY"),
//	    Timeout: 60 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	resp, err := provider.Complete(ctx, &providers.CompletionRequest{
//	    Model:       "gpt-4o",
//	    System:      "You are a concierge.",
//	    Messages:    []providers.Message{{Role: "user", Content: "Hello!"}},
//	    Temperature: 0,
//	    MaxTokens:   800,
//	})
//
// # Error Handling
//
// Adapters return typed errors so the gateway can classify them:
//
//   - RateLimitError: HTTP 429, never retried here; the gateway backs off
//   - AuthError: HTTP 401/403
//   - TimeoutError: the request deadline passed
//   - ProviderError: any other non-2xx status
//   - ParseError: a malformed response body
//   - ValidationError / ConfigError: bad input before any request is sent
//
// Temperature is always sent, including zero, because the critic and judge
// roles rely on deterministic sampling.
package providers
