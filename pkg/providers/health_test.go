package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	base := 10 * time.Second
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, base},
		{1, 2 * base},
		{2, 4 * base},
		{3, 8 * base},
		{4, 10 * base},
		{10, 10 * base},
	}
	for _, tt := range tests {
		if got := calculateBackoff(tt.failures, base); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}

	if got := calculateBackoff(5, time.Minute); got != 5*time.Minute {
		t.Errorf("backoff should cap at 5m, got %v", got)
	}
}

func TestHealthCheck_Sync(t *testing.T) {
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewHTTPProvider(ProviderConfig{Name: "h", BaseURL: server.URL, APIKey: "k", Timeout: time.Second})
	if err := provider.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error: %v", err)
	}
	if got, _ := auth.Load().(string); got != "Bearer k" {
		t.Errorf("Authorization = %q", got)
	}
}

func TestHealthChecker_MarksUnhealthyAndRecovers(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider := NewHTTPProvider(ProviderConfig{
		Name:                "h",
		BaseURL:             server.URL,
		Timeout:             time.Second,
		HealthCheckInterval: 10 * time.Millisecond,
	})
	defer provider.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider.StartHealthChecker(ctx)
	provider.StartHealthChecker(ctx)

	waitFor(t, 2*time.Second, func() bool { return !provider.IsHealthy() })

	failing.Store(false)
	waitFor(t, 5*time.Second, provider.IsHealthy)
}

func TestHealthChecker_StopsOnClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	provider := NewHTTPProvider(ProviderConfig{Name: "h", BaseURL: server.URL, HealthCheckInterval: time.Hour})
	provider.StartHealthChecker(context.Background())

	done := make(chan struct{})
	go func() {
		_ = provider.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the health checker")
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
