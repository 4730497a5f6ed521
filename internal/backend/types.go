package backend

import (
	"time"

	"github.com/regsight/regsight/internal/domain"
)

// QueryRequest is the body for both new queries and follow-ups.
type QueryRequest struct {
	Question string `json:"question"`
}

// WireCitation is a legal citation as the answering backend returns it.
type WireCitation struct {
	Text    string `json:"text"`
	Source  string `json:"source"`
	Section string `json:"section"`
}

// QueryResponse is the backend's answer to a query or follow-up.
type QueryResponse struct {
	QueryID    string         `json:"queryId"`
	Answer     string         `json:"answer"`
	Citations  []WireCitation `json:"citations"`
	Confidence *float64       `json:"confidence,omitempty"`
}

// WireQueryRecord is one history entry as returned by the list endpoint.
type WireQueryRecord struct {
	ID           string         `json:"id"`
	ThreadRootID string         `json:"threadRootId"`
	Question     string         `json:"question"`
	Answer       *string        `json:"answer,omitempty"`
	Citations    []WireCitation `json:"citations,omitempty"`
	Confidence   *float64       `json:"confidence,omitempty"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// HistoryResponse is the paginated history envelope.
type HistoryResponse struct {
	Queries    []WireQueryRecord `json:"queries"`
	TotalCount int               `json:"totalCount"`
}

// ToCitation maps the wire citation onto the normalized model:
// excerpt from text, source title from source, section as-is.
func (w WireCitation) ToCitation() domain.Citation {
	return domain.Citation{
		SourceTitle: w.Source,
		Section:     w.Section,
		Excerpt:     w.Text,
	}
}

// ToPayload normalizes a query response. Citations keep the backend's
// relevance order and invalid entries (no source) are dropped. Confidence
// is clamped into [0,1] since the value is externally supplied.
func (r *QueryResponse) ToPayload() *domain.AnswerPayload {
	payload := &domain.AnswerPayload{
		QueryID: r.QueryID,
		Answer:  r.Answer,
	}
	for _, wc := range r.Citations {
		c := wc.ToCitation()
		if !c.Valid() {
			continue
		}
		payload.Citations = append(payload.Citations, c)
	}
	if r.Confidence != nil {
		clamped := domain.ClampConfidence(*r.Confidence)
		payload.Confidence = &clamped
	}
	return payload
}

// ToRecord maps a wire history record onto the domain model.
func (w WireQueryRecord) ToRecord() *domain.QueryRecord {
	rec := &domain.QueryRecord{
		ID:           w.ID,
		ThreadRootID: w.ThreadRootID,
		Question:     w.Question,
		Answer:       w.Answer,
		Status:       domain.QueryStatus(w.Status),
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.CreatedAt,
	}
	if rec.ThreadRootID == "" {
		rec.ThreadRootID = w.ID
	}
	for _, wc := range w.Citations {
		c := wc.ToCitation()
		if !c.Valid() {
			continue
		}
		rec.Citations = append(rec.Citations, c)
	}
	if w.Confidence != nil {
		clamped := domain.ClampConfidence(*w.Confidence)
		rec.Confidence = &clamped
	}
	return rec
}
