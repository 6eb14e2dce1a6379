package providers

import (
	"context"
	"fmt"
	"sync"

	"mercator-hq/darwin/pkg/providers"
)

// Handler answers one completion request.
type Handler func(ctx context.Context, req *providers.CompletionRequest) (string, error)

// Reply is one scripted answer.
type Reply struct {
	Content string
	Err     error
}

// Script returns a handler that answers with replies in order and repeats
// the last one.
func Script(replies ...Reply) Handler {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context, req *providers.CompletionRequest) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(replies) == 0 {
			return "", fmt.Errorf("no scripted replies")
		}
		r := replies[i]
		if i < len(replies)-1 {
			i++
		}
		return r.Content, r.Err
	}
}

// Text returns a handler that always answers content.
func Text(content string) Handler {
	return Script(Reply{Content: content})
}

// FakeProvider is an in-process Provider driven by a Handler. It records
// every request it receives.
type FakeProvider struct {
	name    string
	handler Handler

	mu       sync.Mutex
	healthy  bool
	requests []*providers.CompletionRequest
}

var _ providers.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a healthy fake provider.
func NewFakeProvider(name string, handler Handler) *FakeProvider {
	return &FakeProvider{name: name, handler: handler, healthy: true}
}

// SetHandler replaces the handler.
func (f *FakeProvider) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

// SetHealthy sets the health status.
func (f *FakeProvider) SetHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

// Requests returns a copy of the recorded requests.
func (f *FakeProvider) Requests() []*providers.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*providers.CompletionRequest(nil), f.requests...)
}

// Calls returns the number of Complete calls.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Complete records req and answers through the handler.
func (f *FakeProvider) Complete(ctx context.Context, req *providers.CompletionRequest) (*providers.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	cp := *req
	cp.Messages = append([]providers.Message(nil), req.Messages...)
	f.requests = append(f.requests, &cp)
	h := f.handler
	f.mu.Unlock()

	content, err := h(ctx, req)
	if err != nil {
		return nil, err
	}
	return &providers.CompletionResponse{
		ID:           fmt.Sprintf("fake-%d", f.Calls()),
		Model:        req.Model,
		Content:      content,
		FinishReason: providers.FinishReasonStop,
	}, nil
}

// HealthCheck reports the configured health.
func (f *FakeProvider) HealthCheck(ctx context.Context) error {
	if !f.IsHealthy() {
		return fmt.Errorf("provider %s is unhealthy", f.name)
	}
	return nil
}

// GetName returns the provider name.
func (f *FakeProvider) GetName() string { return f.name }

// GetType returns "fake".
func (f *FakeProvider) GetType() string { return "fake" }

// GetConfig returns a config carrying only the name.
func (f *FakeProvider) GetConfig() providers.ProviderConfig {
	return providers.ProviderConfig{Name: f.name, Type: "fake"}
}

// IsHealthy returns the current health status.
func (f *FakeProvider) IsHealthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

// GetHealth returns detailed health information.
func (f *FakeProvider) GetHealth() providers.ProviderHealth {
	return providers.ProviderHealth{IsHealthy: f.IsHealthy()}
}

// Close is a no-op.
func (f *FakeProvider) Close() error { return nil }
