package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Event names.
const (
	// ChatResponseGenerated is emitted by the serving path after a reply,
	// unless the conversation is known to be failing its rules.
	ChatResponseGenerated = "ChatResponseGenerated"

	// EvaluationFailed is emitted by the critic on a FAIL verdict. It starts
	// an evolution cycle.
	EvaluationFailed = "EvaluationFailed"

	// GenomePromoted is emitted by the supervisor after CURRENT moves.
	GenomePromoted = "GenomePromoted"
)

// Event sources.
const (
	SourceServing    = "darwin.serving"
	SourceCritic     = "darwin.critic"
	SourceSupervisor = "darwin.supervisor"
)

// Event is a named notification with a small JSON detail.
type Event struct {
	Name   string          `json:"detail_type"`
	Source string          `json:"source"`
	Detail json.RawMessage `json:"detail"`
	Time   time.Time       `json:"time"`
}

// New creates an event with detail encoded as JSON.
func New(name, source string, detail any) (Event, error) {
	raw, err := json.Marshal(detail)
	if err != nil {
		return Event{}, fmt.Errorf("failed to encode %s detail: %w", name, err)
	}
	return Event{Name: name, Source: source, Detail: raw, Time: time.Now().UTC()}, nil
}

// Decode unmarshals the detail into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Detail, v); err != nil {
		return fmt.Errorf("failed to decode %s detail: %w", e.Name, err)
	}
	return nil
}

// ChatResponseDetail is the detail of ChatResponseGenerated.
type ChatResponseDetail struct {
	PK     string `json:"pk"`
	ChatSK string `json:"chat_sk"`
}

// EvaluationFailedDetail is the detail of EvaluationFailed.
type EvaluationFailedDetail struct {
	PK       string `json:"pk"`
	ChatSK   string `json:"chat_sk"`
	GenomeSK string `json:"genome_sk"`
	Reason   string `json:"reason"`
	Rule     string `json:"rule,omitempty"`
}

// GenomePromotedDetail is the detail of GenomePromoted.
type GenomePromotedDetail struct {
	PK               string `json:"pk"`
	NewActiveVersion string `json:"new_active_version"`
	PreviousVersion  string `json:"previous_version,omitempty"`
	WinnerSK         string `json:"winner_sk"`
	ChatSK           string `json:"chat_sk,omitempty"`
}

// Emitter delivers events.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error
}

// Fire builds and emits an event. Failures are logged and never returned:
// an event that cannot be delivered must not fail the operation that
// produced it.
func Fire(ctx context.Context, emitter Emitter, logger *slog.Logger, name, source string, detail any) {
	if emitter == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	evt, err := New(name, source, detail)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build event", "event", name, "error", err)
		return
	}
	if err := emitter.Emit(ctx, evt); err != nil {
		logger.ErrorContext(ctx, "failed to emit event", "event", name, "error", err)
		return
	}
	logger.DebugContext(ctx, "event emitted", "event", name, "source", source)
}
