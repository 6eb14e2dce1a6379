package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mercator-hq/darwin/pkg/genome"
)

var fencedJSON = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// ErrNoJSON reports model output without any JSON object.
var ErrNoJSON = errors.New("no JSON found in model output")

// ExtractObject returns the JSON object in text: the contents of a ```json
// fence if present, else the span from the first '{' to the last '}'.
// Models often reason in prose before answering, so surrounding text is
// ignored.
func ExtractObject(text string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ExtractValue returns the first JSON object or array in text, from its
// opening bracket to the last matching closing bracket.
func ExtractValue(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", ErrNoJSON
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// DecodeObject extracts the JSON object from text and decodes it into v,
// reporting failures as a genome.ParseError for stage.
func DecodeObject(stage, text string, v any) error {
	raw, err := ExtractObject(text)
	if err != nil {
		return &genome.ParseError{Stage: stage, Raw: text, Cause: err}
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return &genome.ParseError{Stage: stage, Raw: text, Cause: err}
	}
	return nil
}

// FlexInt decodes a JSON number, a numeric string or null.
type FlexInt struct {
	Value *int
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	f.Value = nil
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", string(data))
	}
	i := int(n)
	f.Value = &i
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f FlexInt) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(*f.Value)), nil
}

// UserTurn wraps a prompt as a single user message.
func UserTurn(prompt string) []genome.Turn {
	return []genome.Turn{{Role: genome.RoleUser, Content: prompt}}
}

// FormatTranscript renders turns as "[i] Role: content" lines.
func FormatTranscript(turns []genome.Turn) string {
	lines := make([]string, 0, len(turns))
	for i, t := range turns {
		role := t.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("[%d] %s: %s", i, strings.ToUpper(role[:1])+role[1:], t.Content))
	}
	return strings.Join(lines, "\n")
}

// FormatList renders items as a bulleted list, or "None".
func FormatList(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// Truncate shortens s to at most n runes for logging.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
