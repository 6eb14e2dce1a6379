package genome

import (
	"strings"
	"testing"
)

func TestBuildSystemPrompt_FullGenome(t *testing.T) {
	brain := &Brain{
		Persona:               &Persona{Role: "Hotel Concierge", Tone: "Warm"},
		StyleGuide:            []string{"Use short sentences"},
		Objectives:            []string{"Book rooms", "Upsell spa"},
		OperationalGuidelines: []string{"1. Confirm dates", "2. Quote prices in USD"},
	}
	resources := &Resources{KnowledgeBaseText: "Rooms cost $200.", PolicyText: "No refunds."}
	caps := &Capabilities{ActiveTools: []Tool{{Name: "book_room", Description: "Books a room"}, {}}}

	want := strings.Join([]string{
		"You are a Hotel Concierge with a Warm tone.",
		"",
		"STYLE GUIDE:",
		"- Use short sentences",
		"",
		"OBJECTIVES:",
		"- Book rooms",
		"- Upsell spa",
		"",
		"OPERATIONAL GUIDELINES:",
		"1. Confirm dates",
		"2. Quote prices in USD",
		"",
		"KNOWLEDGE BASE:",
		"Rooms cost $200.",
		"",
		"POLICY CONSTRAINTS:",
		"No refunds.",
		"",
		"AVAILABLE TOOLS:",
		"- book_room: Books a room",
		"- unknown: No description",
		"",
	}, "\n")

	got := BuildSystemPrompt(brain, resources, caps)
	if got != want {
		t.Errorf("BuildSystemPrompt() mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildSystemPrompt_OmitsEmptySections(t *testing.T) {
	brain := &Brain{
		Persona:               &Persona{Tone: "Professional"},
		StyleGuide:            []string{},
		OperationalGuidelines: []string{},
	}

	got := BuildSystemPrompt(brain, &Resources{}, nil)
	want := "You are a AI Assistant with a Professional tone.\n"
	if got != want {
		t.Errorf("BuildSystemPrompt() = %q, want %q", got, want)
	}

	for _, header := range []string{"STYLE GUIDE:", "OBJECTIVES:", "KNOWLEDGE BASE:", "AVAILABLE TOOLS:"} {
		if strings.Contains(got, header) {
			t.Errorf("prompt should omit empty section %q", header)
		}
	}
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	v := &Version{
		Brain:     &Brain{Persona: &Persona{Role: "r", Tone: "t"}, Objectives: []string{"a", "b"}},
		Resources: &Resources{PolicyText: "p"},
	}
	first := v.SystemPrompt()
	for i := 0; i < 10; i++ {
		if got := v.SystemPrompt(); got != first {
			t.Fatalf("prompt changed between calls: %q vs %q", got, first)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{strings.Repeat("x", 401), 100},
		{"ééééé", 1},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}
