package domain

import "time"

// Message roles for the conversation view.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a conversation's in-memory message list. It is a
// derived projection for display; thread linkage is always re-derived from
// the ordered list itself, never cached elsewhere.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// Citations and Confidence are set only on answered assistant messages
	Citations  []Citation `json:"citations,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`

	// QueryID links an assistant message back to its QueryRecord. It is
	// empty on user messages and on failed exchanges, which is what makes
	// a failed exchange unable to anchor a follow-up.
	QueryID string `json:"query_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// OutcomeKind discriminates submission outcomes.
type OutcomeKind string

const (
	OutcomeAnswered OutcomeKind = "answered"
	OutcomeFailed   OutcomeKind = "failed"
)

// Outcome is the tagged result of a submission. Exactly one of Answer or
// Error is meaningful, selected by Kind; callers switch on Kind instead of
// probing shapes.
type Outcome struct {
	Kind   OutcomeKind
	Answer *AnswerPayload
	Error  string
}

// Answered wraps a successful payload.
func Answered(payload *AnswerPayload) Outcome {
	return Outcome{Kind: OutcomeAnswered, Answer: payload}
}

// Failed wraps a human-readable failure message.
func Failed(msg string) Outcome {
	return Outcome{Kind: OutcomeFailed, Error: msg}
}
