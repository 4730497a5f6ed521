package conversation

import (
	"context"
	"sync"
	"testing"

	"github.com/regsight/regsight/internal/domain"
)

// scriptedSubmitter records routing and returns canned outcomes. The
// optional gate blocks in-flight submissions so tests can observe the
// Submitting state.
type scriptedSubmitter struct {
	mu            sync.Mutex
	newCalls      int
	followUpCalls int
	lastOriginal  string
	outcome       domain.Outcome
	started       chan struct{}
	gate          chan struct{}
}

func (f *scriptedSubmitter) SubmitNew(ctx context.Context, tenantID, question string) domain.Outcome {
	f.mu.Lock()
	f.newCalls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.outcome
}

func (f *scriptedSubmitter) SubmitFollowUp(ctx context.Context, tenantID, originalQueryID, question string) domain.Outcome {
	f.mu.Lock()
	f.followUpCalls++
	f.lastOriginal = originalQueryID
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	return f.outcome
}

func answeredOutcome(queryID, answer string) domain.Outcome {
	return domain.Answered(&domain.AnswerPayload{
		QueryID: queryID,
		Answer:  answer,
		Citations: []domain.Citation{
			{SourceTitle: "CBK Mobile Money Regulations 2023", Section: "Part IV", Excerpt: "..."},
		},
	})
}

func TestFirstSubmissionStartsNewQuery(t *testing.T) {
	sub := &scriptedSubmitter{outcome: answeredOutcome("Q1", "KYC requires identity verification.")}
	sess := NewSession("tenant-1", sub)

	outcome, err := sess.Submit(context.Background(), "What are KYC requirements?")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if outcome == nil || outcome.Kind != domain.OutcomeAnswered {
		t.Fatalf("expected answered outcome, got %+v", outcome)
	}
	if sub.newCalls != 1 || sub.followUpCalls != 0 {
		t.Fatalf("expected one new-query call, got new=%d followup=%d", sub.newCalls, sub.followUpCalls)
	}

	msgs := sess.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "What are KYC requirements?" {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	assistant := msgs[1]
	if assistant.Role != domain.RoleAssistant || assistant.QueryID != "Q1" {
		t.Fatalf("expected assistant message with query ID Q1, got %+v", assistant)
	}
	if len(assistant.Citations) != 1 {
		t.Fatalf("expected citations on assistant message, got %+v", assistant.Citations)
	}
	if sess.State() != StateIdle {
		t.Fatalf("expected idle state after submit, got %s", sess.State())
	}
}

func TestSecondSubmissionFollowsUpOnLastAnswer(t *testing.T) {
	sub := &scriptedSubmitter{outcome: answeredOutcome("Q1", "answer one")}
	sess := NewSession("tenant-1", sub)

	if _, err := sess.Submit(context.Background(), "What are KYC requirements?"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	sub.outcome = answeredOutcome("Q2", "answer two")
	if _, err := sess.Submit(context.Background(), "What about corporate customers?"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if sub.followUpCalls != 1 {
		t.Fatalf("expected one follow-up call, got %d", sub.followUpCalls)
	}
	if sub.lastOriginal != "Q1" {
		t.Fatalf("expected follow-up on Q1, got %s", sub.lastOriginal)
	}
}

func TestFailureResetsThread(t *testing.T) {
	sub := &scriptedSubmitter{outcome: domain.Failed("timeout")}
	sess := NewSession("tenant-1", sub)

	outcome, err := sess.Submit(context.Background(), "question one")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if outcome.Kind != domain.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", outcome.Kind)
	}

	msgs := sess.Messages()
	assistant := msgs[len(msgs)-1]
	if assistant.Content != "timeout" {
		t.Fatalf("expected error text as assistant content, got %q", assistant.Content)
	}
	if assistant.QueryID != "" {
		t.Fatalf("failed exchange must not carry a query ID, got %s", assistant.QueryID)
	}

	// The retry must start a new thread, not follow up into the broken one.
	sub.outcome = answeredOutcome("Q1", "answer")
	if _, err := sess.Submit(context.Background(), "question one again"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if sub.newCalls != 2 {
		t.Fatalf("expected retry via new query, got new=%d followup=%d", sub.newCalls, sub.followUpCalls)
	}
}

func TestWhitespaceSubmissionIsNoOp(t *testing.T) {
	sub := &scriptedSubmitter{outcome: answeredOutcome("Q1", "answer")}
	sess := NewSession("tenant-1", sub)

	outcome, err := sess.Submit(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if outcome != nil {
		t.Fatalf("expected no outcome for blank input, got %+v", outcome)
	}
	if sub.newCalls != 0 {
		t.Fatalf("blank input must not reach the submitter, got %d calls", sub.newCalls)
	}
	if len(sess.Messages()) != 0 {
		t.Fatalf("message list must be unchanged, got %d messages", len(sess.Messages()))
	}
}

func TestConcurrentSubmissionRejectedWhileInFlight(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	sub := &scriptedSubmitter{outcome: answeredOutcome("Q1", "answer"), gate: gate, started: started}
	sess := NewSession("tenant-1", sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := sess.Submit(context.Background(), "first question"); err != nil {
			t.Errorf("first Submit failed: %v", err)
		}
	}()

	// Wait until the first submission is in flight.
	<-started
	if got := sess.State(); got != StateSubmitting {
		t.Fatalf("expected submitting state, got %s", got)
	}

	if _, err := sess.Submit(context.Background(), "second question"); err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(gate)
	<-done

	if sub.newCalls != 1 {
		t.Fatalf("expected exactly one submission call, got %d", sub.newCalls)
	}
	// Only the first exchange made it into the list.
	if got := len(sess.Messages()); got != 2 {
		t.Fatalf("expected 2 messages, got %d", got)
	}
}

func TestRestoreRebuildsThreadState(t *testing.T) {
	sub := &scriptedSubmitter{outcome: answeredOutcome("Q3", "answer")}
	sess := NewSession("tenant-1", sub)

	if err := sess.Restore([]domain.Message{
		{Role: domain.RoleUser, Content: "old question"},
		{Role: domain.RoleAssistant, Content: "old answer", QueryID: "Q2"},
	}); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if _, err := sess.Submit(context.Background(), "continue"); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if sub.followUpCalls != 1 || sub.lastOriginal != "Q2" {
		t.Fatalf("expected follow-up on restored Q2, got calls=%d original=%s", sub.followUpCalls, sub.lastOriginal)
	}
}
