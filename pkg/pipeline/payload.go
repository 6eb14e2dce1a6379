package pipeline

// Issue is the critic finding a mutation round tries to fix.
type Issue struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
}

// Issue defaults used when a failure event carries no detail.
const (
	DefaultIssueReason = "Optimization required"
	DefaultIssueRule   = "Protocol Violation"
)

// WithDefaults fills an empty rule or reason.
func (i Issue) WithDefaults() Issue {
	if i.Reason == "" {
		i.Reason = DefaultIssueReason
	}
	if i.Rule == "" {
		i.Rule = DefaultIssueRule
	}
	return i
}

// RetryContext describes the previous round of an evolution cycle.
type RetryContext struct {
	// PreviousReason is why the previous round failed.
	PreviousReason string `json:"previous_reason,omitempty"`

	// PreviousChallengers are the challengers the previous round produced.
	PreviousChallengers []string `json:"previous_challengers,omitempty"`
}

// Payload is the control payload of one evolution cycle. Every stage reads
// what it needs from it; nothing is kept between invocations.
type Payload struct {
	PK       string `json:"pk"`
	ChatSK   string `json:"chat_sk"`
	GenomeSK string `json:"genome_sk"`

	Issue        Issue        `json:"critic_issue"`
	RetryCount   int          `json:"retryCount"`
	RetryContext RetryContext `json:"retryContext"`

	// ChallengerSKs are the challengers of the current round.
	ChallengerSKs []string `json:"challenger_sks,omitempty"`

	// WinnerSK and PromotionReason are set once the judge selected a winner.
	WinnerSK        string `json:"selected_challenger_sk,omitempty"`
	PromotionReason string `json:"promotion_reason,omitempty"`
}

// NextRound returns the payload of the following mutation round.
func (p Payload) NextRound(nextRetry int, reason string) Payload {
	next := p
	next.RetryCount = nextRetry
	next.RetryContext = RetryContext{
		PreviousReason:      reason,
		PreviousChallengers: append([]string(nil), p.ChallengerSKs...),
	}
	next.ChallengerSKs = nil
	next.WinnerSK = ""
	next.PromotionReason = ""
	return next
}
