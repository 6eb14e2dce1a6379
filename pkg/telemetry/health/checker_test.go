package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_NoChecksIsOK(t *testing.T) {
	c := New(0, "v1")
	report := c.Check(context.Background())
	if report.Status != StatusOK {
		t.Errorf("Status = %q, want ok", report.Status)
	}
	if report.Version != "v1" {
		t.Errorf("Version = %q", report.Version)
	}
}

func TestChecker_AggregatesResults(t *testing.T) {
	c := New(time.Second, "")
	c.Register("store", func(ctx context.Context) error { return nil })
	c.Register("providers", func(ctx context.Context) error { return errors.New("no healthy providers") })

	report := c.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("Status = %q, want degraded", report.Status)
	}
	if report.Checks["store"].Status != StatusOK {
		t.Errorf("store = %+v", report.Checks["store"])
	}
	if got := report.Checks["providers"]; got.Status != StatusUnhealthy || got.Message != "no healthy providers" {
		t.Errorf("providers = %+v", got)
	}
	if names := c.Names(); len(names) != 2 || names[0] != "providers" {
		t.Errorf("Names() = %v", names)
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20*time.Millisecond, "")
	block := make(chan struct{})
	defer close(block)
	c.Register("slow", func(ctx context.Context) error {
		<-block
		return nil
	})

	report := c.Check(context.Background())
	if got := report.Checks["slow"]; got.Status != StatusUnhealthy || got.Message != "health check timeout" {
		t.Errorf("slow = %+v", got)
	}
}

func TestChecker_Handler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		checkErr   error
		wantStatus int
	}{
		{"healthy", http.MethodGet, nil, http.StatusOK},
		{"degraded", http.MethodGet, errors.New("down"), http.StatusServiceUnavailable},
		{"head", http.MethodHead, nil, http.StatusOK},
		{"post rejected", http.MethodPost, nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second, "test")
			c.Register("store", func(ctx context.Context) error { return tt.checkErr })

			rec := httptest.NewRecorder()
			c.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.method != http.MethodGet {
				return
			}
			var report Report
			if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := report.Checks["store"]; !ok {
				t.Error("store check missing from body")
			}
		})
	}
}
