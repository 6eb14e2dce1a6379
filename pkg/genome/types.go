package genome

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Entity type tags stored alongside every item.
const (
	EntityGenome     = "Genome"
	EntityChallenger = "Challenger"
	EntityChat       = "Chat"
	EntityTicket     = "Ticket"
	EntityPointer    = "Pointer"
)

// DeploymentState is the lifecycle state of a genome version.
type DeploymentState string

const (
	StateActive          DeploymentState = "ACTIVE"
	StatePendingApproval DeploymentState = "PENDING_APPROVAL"
	StateDraft           DeploymentState = "DRAFT"
)

// Version is one complete configuration snapshot of an agent. Challengers
// share the same shape with EntityType set to EntityChallenger.
//
// Sections are pointers so that an absent section can be told apart from an
// empty one. Once written a Version is never modified, except for the
// economics feedback counters.
type Version struct {
	Partition  string `json:"pk"`
	SortKey    string `json:"sk"`
	EntityType string `json:"entity_type"`

	// Attempt is set on challengers only.
	Attempt int `json:"attempt,omitempty"`

	Metadata        Metadata         `json:"metadata"`
	Config          *ModelConfig     `json:"config,omitempty"`
	Brain           *Brain           `json:"brain,omitempty"`
	Resources       *Resources       `json:"resources,omitempty"`
	Capabilities    *Capabilities    `json:"capabilities,omitempty"`
	EvolutionConfig *EvolutionConfig `json:"evolution_config,omitempty"`
	Economics       *Economics       `json:"economics,omitempty"`
}

// Metadata describes where a version came from.
type Metadata struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Creator         string          `json:"creator,omitempty"`
	VersionHash     string          `json:"version_hash,omitempty"`
	ParentHash      string          `json:"parent_hash,omitempty"`
	DeploymentState DeploymentState `json:"deployment_state" validate:"required,oneof=ACTIVE PENDING_APPROVAL DRAFT"`
	MutationReason  string          `json:"mutation_reason,omitempty"`
	DeployedAt      string          `json:"deployed_at,omitempty"`
}

// ModelConfig holds the inference settings of a version. Temperature and
// MaxTokens are pointers because zero is a legal temperature and the serving
// path must distinguish "0" from "missing".
type ModelConfig struct {
	ModelID     string   `json:"model_id" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"required"`
	MaxTokens   *int     `json:"max_tokens" validate:"required"`
}

// UnmarshalJSON accepts temperature and max_tokens either as JSON numbers or
// as numeric strings ("0.7", "800").
func (c *ModelConfig) UnmarshalJSON(data []byte) error {
	var raw struct {
		ModelID     string          `json:"model_id"`
		Temperature json.RawMessage `json:"temperature"`
		MaxTokens   json.RawMessage `json:"max_tokens"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ModelID = raw.ModelID
	c.Temperature = nil
	c.MaxTokens = nil

	if s, ok := numericText(raw.Temperature); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("config.temperature: %w", err)
		}
		c.Temperature = &f
	}
	if s, ok := numericText(raw.MaxTokens); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("config.max_tokens: %w", err)
		}
		n := int(f)
		c.MaxTokens = &n
	}
	return nil
}

// numericText returns the textual number inside a raw JSON value, unquoting
// strings. ok is false for absent or null values.
func numericText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return string(raw), true
		}
		return s, true
	}
	return string(raw), true
}

// Persona is the role and tone an agent speaks with.
type Persona struct {
	Role string `json:"role,omitempty"`
	Tone string `json:"tone,omitempty"`
}

// Brain is the mutable behavioural core of a genome. The slices are not
// omitempty: a nil slice marshals as null and reads back as absent, while an
// empty slice stays present.
type Brain struct {
	Persona               *Persona `json:"persona,omitempty"`
	StyleGuide            []string `json:"style_guide"`
	Objectives            []string `json:"objectives"`
	OperationalGuidelines []string `json:"operational_guidelines"`
}

// Clone returns a deep copy of the brain.
func (b *Brain) Clone() *Brain {
	if b == nil {
		return nil
	}
	out := &Brain{
		StyleGuide:            cloneStrings(b.StyleGuide),
		Objectives:            cloneStrings(b.Objectives),
		OperationalGuidelines: cloneStrings(b.OperationalGuidelines),
	}
	if b.Persona != nil {
		p := *b.Persona
		out.Persona = &p
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// Resources is the reference material the agent answers from.
type Resources struct {
	KnowledgeBaseText string `json:"knowledge_base_text,omitempty"`
	PolicyText        string `json:"policy_text,omitempty"`
}

// Tool describes a capability advertised in the system prompt.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Capabilities lists the tools an agent may use and canned tool outputs used
// during simulation.
type Capabilities struct {
	ActiveTools     []Tool          `json:"active_tools,omitempty"`
	SimulationMocks json.RawMessage `json:"simulation_mocks,omitempty"`
}

// EvolutionConfig holds the rules a conversation is judged against.
type EvolutionConfig struct {
	CriticRules []string `json:"critic_rules,omitempty"`
	JudgeRubric []string `json:"judge_rubric,omitempty"`
}

// Economics tracks feedback and prompt size of a version.
type Economics struct {
	Likes                  int    `json:"likes"`
	Dislikes               int    `json:"dislikes"`
	InputTokenCount        int    `json:"input_token_count"`
	TokenBudget            int    `json:"token_budget,omitempty"`
	EstimatedCostOfCalling string `json:"estimated_cost_of_calling,omitempty"`
}

// Pointer is the CURRENT record naming the active version of a lineage.
type Pointer struct {
	Partition       string `json:"pk"`
	SortKey         string `json:"sk"`
	EntityType      string `json:"entity_type"`
	ActiveVersionSK string `json:"active_version_sk"`
	LastUpdated     string `json:"last_updated"`
	UpdatedBy       string `json:"updated_by"`
}

// Role values of a transcript turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of a transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Verdict is the critic's judgement of a conversation. The zero value means
// the conversation has not been evaluated.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// Chat is one conversation served by one version.
type Chat struct {
	Partition        string  `json:"pk"`
	SortKey          string  `json:"sk"`
	EntityType       string  `json:"entity_type"`
	Transcript       []Turn  `json:"transcript"`
	CriticVerdict    Verdict `json:"critic_verdict,omitempty"`
	CriticReason     string  `json:"critic_reason,omitempty"`
	FailureTurnIndex *int    `json:"failure_turn_index,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

// TicketStatus is OPEN until a human or a later promotion closes it.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "OPEN"
	TicketClosed TicketStatus = "CLOSED"
)

// TicketType distinguishes pipeline escalations from user complaints.
type TicketType string

const (
	TicketSystem TicketType = "SYSTEM"
	TicketUser   TicketType = "USER"
)

// Placeholder challenger references used on tickets.
const (
	NoChallengerSelected = "NONE_SELECTED"
	NoChallenger         = "NA"
)

// Ticket records an unresolved failure for human review.
type Ticket struct {
	Partition    string       `json:"pk"`
	SortKey      string       `json:"sk"`
	EntityType   string       `json:"entity_type"`
	ID           string       `json:"ticket_id"`
	Status       TicketStatus `json:"status"`
	Type         TicketType   `json:"type"`
	ChatSK       string       `json:"chat_sk"`
	ChallengerSK string       `json:"challenger_sk"`
	Feedback     string       `json:"feedback"`
	AIAnalysis   string       `json:"ai_analysis"`
	CreatedAt    string       `json:"created_at"`
	ClosedAt     string       `json:"closed_at,omitempty"`
	ClosedBy     string       `json:"closed_by,omitempty"`
}
