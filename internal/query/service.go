// Package query orchestrates submissions to the compliance-answering
// backend and keeps the local query log in step with each exchange.
package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/regsight/regsight/internal/backend"
	"github.com/regsight/regsight/internal/domain"
	"github.com/regsight/regsight/internal/storage"
	"github.com/regsight/regsight/internal/tokens"
)

// Backend is the slice of the answering service the submission path needs.
type Backend interface {
	SubmitQuery(ctx context.Context, req *backend.QueryRequest) (*backend.QueryResponse, error)
	SubmitFollowUp(ctx context.Context, originalQueryID string, req *backend.QueryRequest) (*backend.QueryResponse, error)
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenEstimator enables token usage logging for questions and answers.
func WithTokenEstimator(est *tokens.Estimator) Option {
	return func(s *Service) {
		s.estimator = est
	}
}

// Service submits questions to the backend and normalizes the results.
// All collaborators are injected at construction; the service holds no
// per-conversation state, so one instance serves every session.
type Service struct {
	backend   Backend
	store     storage.QueryStore
	estimator *tokens.Estimator
	logger    *slog.Logger
}

// NewService creates a submission service.
func NewService(b Backend, store storage.QueryStore, opts ...Option) *Service {
	s := &Service{
		backend: b,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitNew submits a question that starts a new thread.
func (s *Service) SubmitNew(ctx context.Context, tenantID, question string) domain.Outcome {
	return s.submit(ctx, tenantID, "", question)
}

// SubmitFollowUp submits a question that extends the thread anchored by
// originalQueryID (a backend query ID from a prior answered exchange).
func (s *Service) SubmitFollowUp(ctx context.Context, tenantID, originalQueryID, question string) domain.Outcome {
	return s.submit(ctx, tenantID, originalQueryID, question)
}

func (s *Service) submit(ctx context.Context, tenantID, originalQueryID, question string) domain.Outcome {
	question = strings.TrimSpace(question)
	if question == "" {
		return domain.Failed("question is empty")
	}

	rec := domain.NewQueryRecord("q_"+uuid.New().String(), tenantID, s.threadRoot(ctx, originalQueryID), question)
	if err := s.store.CreateQuery(ctx, rec); err != nil {
		// The exchange can still answer; history just loses this entry.
		s.logger.Error("failed to record pending query",
			slog.String("query_id", rec.ID),
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
	}

	req := &backend.QueryRequest{Question: question}
	var resp *backend.QueryResponse
	var err error
	if originalQueryID == "" {
		resp, err = s.backend.SubmitQuery(ctx, req)
	} else {
		resp, err = s.backend.SubmitFollowUp(ctx, originalQueryID, req)
	}

	if err != nil {
		// Transport and backend validation failures collapse into one
		// human-readable message; the caller shows it as an assistant
		// message without a query ID.
		msg := err.Error()
		if markErr := s.store.MarkFailed(ctx, rec.ID, msg); markErr != nil {
			s.logger.Error("failed to record query failure",
				slog.String("query_id", rec.ID),
				slog.String("error", markErr.Error()),
			)
		}
		s.logger.Warn("query submission failed",
			slog.String("query_id", rec.ID),
			slog.String("tenant_id", tenantID),
			slog.Bool("follow_up", originalQueryID != ""),
			slog.String("error", msg),
		)
		return domain.Failed(msg)
	}

	payload := resp.ToPayload()
	if err := s.store.MarkAnswered(ctx, rec.ID, payload); err != nil {
		s.logger.Error("failed to record answer",
			slog.String("query_id", rec.ID),
			slog.String("backend_query_id", payload.QueryID),
			slog.String("error", err.Error()),
		)
	}

	s.logAnswer(tenantID, rec.ID, question, payload)
	return domain.Answered(payload)
}

// threadRoot resolves the local thread root for a follow-up. A missing
// parent (history pruned, or answered before this instance existed) falls
// back to a fresh root rather than failing the submission.
func (s *Service) threadRoot(ctx context.Context, originalQueryID string) string {
	if originalQueryID == "" {
		return ""
	}
	parent, err := s.store.GetQueryByBackendID(ctx, originalQueryID)
	if err != nil {
		return ""
	}
	return parent.ThreadRootID
}

func (s *Service) logAnswer(tenantID, recID, question string, payload *domain.AnswerPayload) {
	attrs := []slog.Attr{
		slog.String("query_id", recID),
		slog.String("backend_query_id", payload.QueryID),
		slog.String("tenant_id", tenantID),
		slog.Int("citations", len(payload.Citations)),
	}
	if payload.Confidence != nil {
		attrs = append(attrs, slog.Float64("confidence", *payload.Confidence))
	}
	if s.estimator != nil {
		if n, err := s.estimator.CountText(question); err == nil {
			attrs = append(attrs, slog.Int("question_tokens", n))
		}
		if n, err := s.estimator.CountText(payload.Answer); err == nil {
			attrs = append(attrs, slog.Int("answer_tokens", n))
		}
	}
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "query answered", attrs...)
}
