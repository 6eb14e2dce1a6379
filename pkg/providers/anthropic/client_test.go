package anthropic

import (
	"context"
	"errors"
	"testing"
	"time"

	testhelpers "mercator-hq/darwin/internal/providers"
	"mercator-hq/darwin/pkg/providers"
)

func TestAnthropicProvider_Complete(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/messages", testhelpers.OK(testhelpers.MockAnthropicResponse("Hi there", "claude-3")))

	provider, err := NewProvider(testhelpers.TestConfigWithURL("anthropic", "anthropic", mock.URL()))
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer provider.Close()

	req := testhelpers.TestCompletionRequest("claude-3", "Hello")
	req.MaxTokens = 0
	req.Messages = append(req.Messages, providers.Message{Role: providers.RoleSystem, Content: "Extra rule."})

	resp, err := provider.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Content != "Hi there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, want 30", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != providers.FinishReasonStop {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}

	last, _ := mock.LastRequest()
	if err := testhelpers.ExpectHeader(last, "x-api-key", "test-key"); err != nil {
		t.Error(err)
	}
	if err := testhelpers.ExpectHeader(last, "anthropic-version", DefaultAnthropicVersion); err != nil {
		t.Error(err)
	}

	body, err := testhelpers.DecodeBody(last)
	if err != nil {
		t.Fatal(err)
	}
	if body["system"] != "You are a test assistant.\n\nExtra rule." {
		t.Errorf("system = %q", body["system"])
	}
	if body["max_tokens"].(float64) != DefaultMaxTokens {
		t.Errorf("max_tokens = %v, want %d", body["max_tokens"], DefaultMaxTokens)
	}
	if msgs := body["messages"].([]any); len(msgs) != 1 {
		t.Errorf("system messages should be removed from the list, got %d", len(msgs))
	}
}

func TestAnthropicProvider_RateLimited(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/messages", testhelpers.MockRateLimitError(5))

	provider, err := NewProvider(testhelpers.TestConfigWithURL("anthropic", "anthropic", mock.URL()))
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	_, err = provider.Complete(context.Background(), testhelpers.TestCompletionRequest("claude-3", "Hello"))
	if !providers.IsThrottle(err) {
		t.Fatalf("expected throttle error, got %v", err)
	}
	if got := providers.RetryAfter(err); got != 5*time.Second {
		t.Errorf("RetryAfter = %v", got)
	}
	if mock.GetRequestCount() != 1 {
		t.Errorf("throttled request must not be retried, got %d requests", mock.GetRequestCount())
	}
}

func TestAnthropicProvider_EmptyContent(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/v1/messages", testhelpers.OK(map[string]any{"id": "m", "content": []any{}}))

	provider, err := NewProvider(testhelpers.TestConfigWithURL("anthropic", "anthropic", mock.URL()))
	if err != nil {
		t.Fatal(err)
	}
	defer provider.Close()

	_, err = provider.Complete(context.Background(), testhelpers.TestCompletionRequest("claude-3", "Hello"))
	var pe *providers.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestNewProvider_RequiresKey(t *testing.T) {
	_, err := NewProvider(providers.ProviderConfig{Name: "a"})
	var ce *providers.ConfigError
	if !errors.As(err, &ce) || ce.Field != "api_key" {
		t.Fatalf("expected api_key ConfigError, got %v", err)
	}
}

func TestNormalizeStopReason(t *testing.T) {
	tests := map[string]string{
		"end_turn":      providers.FinishReasonStop,
		"stop_sequence": providers.FinishReasonStop,
		"max_tokens":    providers.FinishReasonLength,
		"tool_use":      "tool_use",
	}
	for in, want := range tests {
		if got := normalizeStopReason(in); got != want {
			t.Errorf("normalizeStopReason(%q) = %q, want %q", in, got, want)
		}
	}
}
