package pipeline

import (
	"encoding/json"
	"errors"
	"testing"

	"mercator-hq/darwin/pkg/genome"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"bare", `{"verdict":"PASS"}`, `{"verdict":"PASS"}`, false},
		{"fenced after reasoning", "Let me think.\n```json\n{\"verdict\":\"FAIL\"}\n```\nDone.", `{"verdict":"FAIL"}`, false},
		{"prose around braces", `Result: {"a":{"b":1}} thanks`, `{"a":{"b":1}}`, false},
		{"fence wins over braces", "{bad} ```json\n{\"ok\":true}\n```", `{"ok":true}`, false},
		{"none", "no json here", "", true},
		{"reversed", "} then {", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`Here: [{"a":1},{"b":2}] ok`, `[{"a":1},{"b":2}]`},
		{`{"mutations":[1,2,3]}`, `{"mutations":[1,2,3]}`},
		{"  [1]  ", "[1]"},
	}
	for _, tt := range tests {
		got, err := ExtractValue(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ExtractValue(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ExtractValue("nothing"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestDecodeObject_ParseError(t *testing.T) {
	var v map[string]any
	err := DecodeObject("critic", `{"verdict": PASS}`, &v)
	if !errors.Is(err, genome.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	var pe *genome.ParseError
	if !errors.As(err, &pe) || pe.Stage != "critic" {
		t.Errorf("parse error = %#v", err)
	}
}

func TestFlexInt(t *testing.T) {
	tests := []struct {
		in      string
		want    *int
		wantErr bool
	}{
		{`3`, intPtr(3), false},
		{`"2"`, intPtr(2), false},
		{`null`, nil, false},
		{`""`, nil, false},
		{`"two"`, nil, true},
	}
	for _, tt := range tests {
		var f FlexInt
		err := json.Unmarshal([]byte(tt.in), &f)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v", tt.in, err)
			continue
		}
		if tt.wantErr {
			continue
		}
		if (f.Value == nil) != (tt.want == nil) || (f.Value != nil && *f.Value != *tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, f.Value, tt.want)
		}
	}
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]genome.Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	})
	want := "[0] User: hi\n[1] Assistant: hello"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if FormatList(nil) != "None" {
		t.Error("empty list should render None")
	}
	if FormatList([]string{"a", "b"}) != "- a\n- b" {
		t.Errorf("FormatList = %q", FormatList([]string{"a", "b"}))
	}
}

func TestPayload_NextRound(t *testing.T) {
	p := Payload{
		PK: "p", ChatSK: "c", GenomeSK: "g",
		ChallengerSKs: []string{"a1", "a2", "a3"},
		WinnerSK:      "a1",
	}
	next := p.NextRound(1, "No challenger improved on the failure.")
	if next.RetryCount != 1 || next.ChallengerSKs != nil || next.WinnerSK != "" {
		t.Errorf("next = %+v", next)
	}
	if next.RetryContext.PreviousReason == "" || len(next.RetryContext.PreviousChallengers) != 3 {
		t.Errorf("retry context = %+v", next.RetryContext)
	}
	if p.ChallengerSKs == nil {
		t.Error("NextRound modified the receiver")
	}
}

func TestIssue_WithDefaults(t *testing.T) {
	got := Issue{}.WithDefaults()
	if got.Reason != DefaultIssueReason || got.Rule != DefaultIssueRule {
		t.Errorf("defaults = %+v", got)
	}
	kept := Issue{Rule: "r", Reason: "x"}.WithDefaults()
	if kept.Rule != "r" || kept.Reason != "x" {
		t.Errorf("kept = %+v", kept)
	}
}

func intPtr(i int) *int { return &i }
