package providers

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCompletionRequest_JSON(t *testing.T) {
	req := CompletionRequest{
		Model:    "m",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		Metadata: map[string]string{"trace": "x"},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	s := string(data)

	if !strings.Contains(s, `"temperature":0`) {
		t.Errorf("zero temperature must be encoded: %s", s)
	}
	if strings.Contains(s, "trace") {
		t.Errorf("metadata must not be encoded: %s", s)
	}
	if strings.Contains(s, "system") || strings.Contains(s, "max_tokens") {
		t.Errorf("empty optional fields should be omitted: %s", s)
	}
}
