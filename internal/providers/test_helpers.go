package providers

import (
	"errors"
	"testing"
	"time"

	"mercator-hq/darwin/pkg/providers"
)

// TestConfig returns a test provider configuration with fast retries.
func TestConfig(name, providerType string) providers.ProviderConfig {
	return providers.ProviderConfig{
		Name:                name,
		Type:                providerType,
		BaseURL:             "http://localhost:8080",
		APIKey:              "test-key",
		Timeout:             5 * time.Second,
		MaxRetries:          2,
		HealthCheckInterval: time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
	}
}

// TestConfigWithURL returns a test config with a specific base URL.
func TestConfigWithURL(name, providerType, baseURL string) providers.ProviderConfig {
	config := TestConfig(name, providerType)
	config.BaseURL = baseURL
	return config
}

// TestCompletionRequest creates a test completion request with one user
// message.
func TestCompletionRequest(model, content string) *providers.CompletionRequest {
	return &providers.CompletionRequest{
		Model:       model,
		System:      "You are a test assistant.",
		Messages:    []providers.Message{{Role: providers.RoleUser, Content: content}},
		Temperature: 0.7,
		MaxTokens:   100,
	}
}

// AssertErrorAs fails the test unless err matches target's type.
func AssertErrorAs[T error](t *testing.T, err error) T {
	t.Helper()
	var target T
	if err == nil {
		t.Fatalf("expected %T, got nil", target)
	}
	if !errors.As(err, &target) {
		t.Fatalf("expected %T, got %T: %v", target, err, err)
	}
	return target
}

// WaitForCondition waits for a condition to become true within a timeout.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s: %s", timeout, message)
		}
		<-ticker.C
	}
}
