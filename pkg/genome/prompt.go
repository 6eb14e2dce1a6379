package genome

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Persona defaults used when a brain omits role or tone.
const (
	DefaultRole = "AI Assistant"
	DefaultTone = "Professional"
)

// CharsPerToken is the character-to-token ratio used for prompt estimates.
const CharsPerToken = 4

// BuildSystemPrompt deterministically renders the system instruction of a
// genome. Sections appear in a fixed order (persona, style guide,
// objectives, operational guidelines, knowledge base, policy, tools) and
// empty sections are omitted. Every section is followed by a blank line.
func BuildSystemPrompt(brain *Brain, resources *Resources, capabilities *Capabilities) string {
	var parts []string

	role, tone := DefaultRole, DefaultTone
	if brain != nil && brain.Persona != nil {
		if brain.Persona.Role != "" {
			role = brain.Persona.Role
		}
		if brain.Persona.Tone != "" {
			tone = brain.Persona.Tone
		}
	}
	parts = append(parts, fmt.Sprintf("You are a %s with a %s tone.", role, tone), "")

	if brain != nil {
		if len(brain.StyleGuide) > 0 {
			parts = append(parts, "STYLE GUIDE:")
			for _, item := range brain.StyleGuide {
				parts = append(parts, "- "+item)
			}
			parts = append(parts, "")
		}
		if len(brain.Objectives) > 0 {
			parts = append(parts, "OBJECTIVES:")
			for _, item := range brain.Objectives {
				parts = append(parts, "- "+item)
			}
			parts = append(parts, "")
		}
		// Guidelines are often pre-numbered by their authors, so no bullets.
		if len(brain.OperationalGuidelines) > 0 {
			parts = append(parts, "OPERATIONAL GUIDELINES:")
			parts = append(parts, brain.OperationalGuidelines...)
			parts = append(parts, "")
		}
	}

	if resources != nil {
		if resources.KnowledgeBaseText != "" {
			parts = append(parts, "KNOWLEDGE BASE:", resources.KnowledgeBaseText, "")
		}
		if resources.PolicyText != "" {
			parts = append(parts, "POLICY CONSTRAINTS:", resources.PolicyText, "")
		}
	}

	if capabilities != nil && len(capabilities.ActiveTools) > 0 {
		parts = append(parts, "AVAILABLE TOOLS:")
		for _, tool := range capabilities.ActiveTools {
			name, desc := tool.Name, tool.Description
			if name == "" {
				name = "unknown"
			}
			if desc == "" {
				desc = "No description"
			}
			parts = append(parts, fmt.Sprintf("- %s: %s", name, desc))
		}
		parts = append(parts, "")
	}

	return strings.Join(parts, "\n")
}

// SystemPrompt renders the system instruction of v.
func (v *Version) SystemPrompt() string {
	return BuildSystemPrompt(v.Brain, v.Resources, v.Capabilities)
}

// EstimateTokens approximates the token count of text at CharsPerToken
// characters per token, truncating.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return utf8.RuneCountInString(text) / CharsPerToken
}
