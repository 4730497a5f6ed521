// Package thread decides whether the next submission in a conversation
// starts a new query or follows up on an existing one.
package thread

import "github.com/regsight/regsight/internal/domain"

// Resolution is the routing decision for the next submission.
type Resolution struct {
	// FollowUp is true when the next submission should extend an
	// existing thread.
	FollowUp bool

	// OriginalQueryID is the query to follow up on. Empty unless
	// FollowUp is true.
	OriginalQueryID string
}

// Resolve scans the message list from the end for the most recent assistant
// message carrying a query ID. If one exists, the next submission follows up
// on that query; otherwise it starts a new thread. Failed exchanges append
// assistant messages without a query ID, so a conversation whose last answer
// failed resets to a fresh thread.
//
// Resolve is a pure function of the list: it keeps no state, so the decision
// can be re-derived at any point from persisted history. When qualifying
// messages disagree about the thread, the most recent one wins.
func Resolve(messages []domain.Message) Resolution {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != domain.RoleAssistant {
			continue
		}
		if msg.QueryID == "" {
			continue
		}
		return Resolution{FollowUp: true, OriginalQueryID: msg.QueryID}
	}
	return Resolution{}
}
