package domain

import (
	"strings"
	"time"
)

// QueryStatus represents the lifecycle state of a query record.
type QueryStatus string

const (
	QueryStatusPending  QueryStatus = "pending"
	QueryStatusAnswered QueryStatus = "answered"
	QueryStatusFailed   QueryStatus = "failed"
)

// Citation is a structured pointer to a legal source backing an answer.
type Citation struct {
	// SourceTitle names the instrument, e.g. "CBK Mobile Money Regulations 2023".
	SourceTitle string `json:"source_title"`

	// Section locates the cited provision, e.g. "Part IV - Customer Due Diligence".
	Section string `json:"section,omitempty"`

	// Excerpt is the quoted passage. Truncation for display is a UI concern.
	Excerpt string `json:"excerpt,omitempty"`
}

// Valid reports whether the citation carries the minimum required fields.
func (c Citation) Valid() bool {
	return strings.TrimSpace(c.SourceTitle) != ""
}

// QueryRecord is the durable unit of one question/answer exchange.
// Records are append-only: once a record reaches a terminal status
// (answered or failed) it is never mutated again, and this subsystem
// never deletes records.
type QueryRecord struct {
	// ID uniquely identifies this query
	ID string `json:"id"`

	// TenantID identifies the tenant for multi-tenant deployments
	TenantID string `json:"tenant_id"`

	// ThreadRootID equals ID for a root query and the root's ID for
	// every follow-up in that thread
	ThreadRootID string `json:"thread_root_id"`

	// BackendQueryID is the ID the answering backend assigned to this
	// exchange. Follow-ups reference it, so it is the join key between
	// conversation messages and local records. Empty until answered.
	BackendQueryID string `json:"backend_query_id,omitempty"`

	// Question is the user's free-text regulatory question
	Question string `json:"question"`

	// Answer is nil while the query is pending or failed
	Answer *string `json:"answer,omitempty"`

	// Citations preserve the relevance order returned by the backend
	Citations []Citation `json:"citations,omitempty"`

	// Confidence is the backend's self-reported confidence in [0,1], if any
	Confidence *float64 `json:"confidence,omitempty"`

	// Status indicates the current state of the query
	Status QueryStatus `json:"status"`

	// ErrorMessage holds the human-readable failure text for failed queries
	ErrorMessage string `json:"error_message,omitempty"`

	// CreatedAt is when the query was submitted
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the record last changed
	UpdatedAt time.Time `json:"updated_at"`
}

// IsFollowUp reports whether this record extends an existing thread.
func (q *QueryRecord) IsFollowUp() bool {
	return q.ThreadRootID != "" && q.ThreadRootID != q.ID
}

// Terminal reports whether the record has reached a final status.
func (q *QueryRecord) Terminal() bool {
	return q.Status == QueryStatusAnswered || q.Status == QueryStatusFailed
}

// NewQueryRecord creates a pending query record. threadRootID may be empty,
// in which case the record is its own thread root.
func NewQueryRecord(id, tenantID, threadRootID, question string) *QueryRecord {
	if threadRootID == "" {
		threadRootID = id
	}
	now := time.Now()
	return &QueryRecord{
		ID:           id,
		TenantID:     tenantID,
		ThreadRootID: threadRootID,
		Question:     question,
		Status:       QueryStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// AnswerPayload is the normalized result of a successful submission.
type AnswerPayload struct {
	QueryID    string     `json:"query_id"`
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// ClampConfidence forces an externally supplied confidence value into [0,1].
// The backend owns the value; the engine only guarantees the range.
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
