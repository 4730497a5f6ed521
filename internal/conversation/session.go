// Package conversation holds the in-memory message sequence for one active
// compliance conversation and the state machine that serializes submissions.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regsight/regsight/internal/domain"
	"github.com/regsight/regsight/internal/thread"
)

// State is the session's submission state.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
)

// ErrBusy is returned when a submission is attempted while another is in
// flight. One request per conversation keeps thread linkage unambiguous.
var ErrBusy = errors.New("a submission is already in flight")

// Submitter is the submission service slice the session depends on.
type Submitter interface {
	SubmitNew(ctx context.Context, tenantID, question string) domain.Outcome
	SubmitFollowUp(ctx context.Context, tenantID, originalQueryID, question string) domain.Outcome
}

// Option configures a session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// Session is the view model for a single conversation. The message list is
// a derived projection: whether the next submission follows up on a thread
// is always re-computed from the list, never cached.
type Session struct {
	tenantID  string
	submitter Submitter
	logger    *slog.Logger

	mu       sync.Mutex
	state    State
	messages []domain.Message
}

// NewSession creates an idle session for one tenant's conversation.
func NewSession(tenantID string, submitter Submitter, opts ...Option) *Session {
	s := &Session{
		tenantID:  tenantID,
		submitter: submitter,
		logger:    slog.Default(),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current submission state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the ordered message list.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

// Restore replaces the message list from persisted history, e.g. when a
// dashboard reopens a conversation. Ignored while a submission is in flight.
func (s *Session) Restore(messages []domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}
	s.messages = append([]domain.Message(nil), messages...)
	return nil
}

// Submit routes a user question as a new query or a follow-up and appends
// the resulting exchange to the message list.
//
// Blank input is ignored without error or side effect. While a submission
// is in flight every further Submit returns ErrBusy and performs no network
// call. A failed exchange appends an assistant message carrying the error
// text and no query ID, so the next submission starts a new thread.
func (s *Session) Submit(ctx context.Context, question string) (*domain.Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, nil
	}

	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = StateSubmitting
	res := thread.Resolve(s.messages)
	s.appendLocked(domain.Message{
		ID:        "msg_" + uuid.New().String(),
		Role:      domain.RoleUser,
		Content:   question,
		Timestamp: time.Now(),
	})
	s.mu.Unlock()

	var outcome domain.Outcome
	if res.FollowUp {
		outcome = s.submitter.SubmitFollowUp(ctx, s.tenantID, res.OriginalQueryID, question)
	} else {
		outcome = s.submitter.SubmitNew(ctx, s.tenantID, question)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle

	msg := domain.Message{
		ID:        "msg_" + uuid.New().String(),
		Role:      domain.RoleAssistant,
		Timestamp: time.Now(),
	}
	switch outcome.Kind {
	case domain.OutcomeAnswered:
		msg.Content = outcome.Answer.Answer
		msg.Citations = outcome.Answer.Citations
		msg.Confidence = outcome.Answer.Confidence
		msg.QueryID = outcome.Answer.QueryID
	case domain.OutcomeFailed:
		msg.Content = outcome.Error
	}
	s.appendLocked(msg)

	return &outcome, nil
}

func (s *Session) appendLocked(msg domain.Message) {
	s.messages = append(s.messages, msg)
}
