// Package gateway is the inference gateway every pipeline stage calls
// models through.
//
// A Gateway resolves the model id of a request (alias map, then the
// regional "us." prefix rule for bare amazon.nova ids), routes it to a
// provider by longest model prefix, and sends it. Throttled calls (HTTP 429
// or 503) are retried with exponential backoff:
//
//	attempt 1 -> wait 200ms -> attempt 2 -> wait 400ms -> attempt 3
//
// bounded by ThrottleConfig.MaxAttempts and MaxDelay. A server-suggested
// Retry-After longer than the current delay is honoured up to MaxDelay.
//
// Failures are returned as *Error, which matches genome.ErrThrottled when
// every attempt was throttled and genome.ErrGateway otherwise:
//
//	out, err := gw.Invoke(ctx, gateway.Request{
//		ModelID:     "amazon.nova-premier-v1:0",
//		System:      prompt,
//		Messages:    chat.Transcript,
//		Temperature: 0,
//		MaxTokens:   800,
//	})
//	if errors.Is(err, genome.ErrThrottled) {
//		// surface as retryable
//	}
package gateway
