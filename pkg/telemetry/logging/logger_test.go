package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/darwin/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q: %v", line, err)
	}
	return entry
}

func TestNew_InvalidSettings(t *testing.T) {
	if _, err := New(Config{Level: "verbose"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("warn message missing: %q", buf.String())
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(FromConfig(config.LoggingConfig{Level: "info", Format: "text"}, &buf))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output: %q", buf.String())
	}
}

func TestHandler_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithLineage(ctx, "LINEAGE#a")
	ctx = WithChat(ctx, "VERSION#t#CHAT#c1")
	ctx = WithStage(ctx, "critic")

	logger.InfoContext(ctx, "Verdict recorded", "verdict", "FAIL")

	entry := decodeLine(t, &buf)
	want := map[string]string{
		"request_id": "req-1",
		"lineage":    "LINEAGE#a",
		"chat_sk":    "VERSION#t#CHAT#c1",
		"stage":      "critic",
		"verdict":    "FAIL",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %q", k, entry[k], v)
		}
	}
}

func TestHandler_RedactsPII(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", RedactPII: true, Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.With("api_key", "sk-secretvalue").Info("turn",
		"content", "mail me at jane.doe@example.com or call 555-123-4567",
		slog.Group("request", slog.String("auth_token", "abcdefgh")),
	)

	entry := decodeLine(t, &buf)
	if entry["api_key"] != "sk-s***" {
		t.Errorf("api_key = %v", entry["api_key"])
	}
	content, _ := entry["content"].(string)
	if strings.Contains(content, "jane.doe@example.com") || strings.Contains(content, "555-123-4567") {
		t.Errorf("content not redacted: %q", content)
	}
	if !strings.Contains(content, "j***@example.com") {
		t.Errorf("email mask missing: %q", content)
	}
	group, _ := entry["request"].(map[string]any)
	if group["auth_token"] != "abcd***" {
		t.Errorf("grouped token = %v", group["auth_token"])
	}
}

func TestHandler_NoRedactionWhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	logger.Info("turn", "content", "jane@example.com")
	if entry := decodeLine(t, &buf); entry["content"] != "jane@example.com" {
		t.Errorf("content = %v, want unchanged", entry["content"])
	}
}
