package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/regsight/regsight/internal/domain"
	"github.com/regsight/regsight/internal/storage"
)

// Store is an in-memory implementation of QueryStore, used in tests and
// ephemeral deployments.
type Store struct {
	mu      sync.RWMutex
	queries map[string]*domain.QueryRecord
}

var _ storage.QueryStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		queries: make(map[string]*domain.QueryRecord),
	}
}

func (s *Store) CreateQuery(ctx context.Context, rec *domain.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.queries[rec.ID]; exists {
		return storage.ErrTerminal
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = rec.CreatedAt

	clone := *rec
	s.queries[rec.ID] = &clone
	return nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.queries[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	clone := *rec
	return &clone, nil
}

func (s *Store) GetQueryByBackendID(ctx context.Context, backendID string) (*domain.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.queries {
		if rec.BackendQueryID == backendID && backendID != "" {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *Store) MarkAnswered(ctx context.Context, id string, payload *domain.AnswerPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.queries[id]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.Terminal() {
		return storage.ErrTerminal
	}

	answer := payload.Answer
	rec.Answer = &answer
	rec.Citations = append([]domain.Citation(nil), payload.Citations...)
	rec.Confidence = payload.Confidence
	rec.BackendQueryID = payload.QueryID
	rec.Status = domain.QueryStatusAnswered
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.queries[id]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.Terminal() {
		return storage.ErrTerminal
	}

	rec.Status = domain.QueryStatusFailed
	rec.ErrorMessage = message
	rec.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ListHistory(ctx context.Context, opts storage.ListOptions) (*storage.HistoryPage, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.QueryRecord
	for _, rec := range s.queries {
		if opts.TenantID != "" && rec.TenantID != opts.TenantID {
			continue
		}
		clone := *rec
		all = append(all, &clone)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	page := &storage.HistoryPage{TotalCount: len(all)}
	start := opts.Offset()
	if start < len(all) {
		end := start + opts.PageSize
		if end > len(all) {
			end = len(all)
		}
		page.Queries = all[start:end]
	}

	return page, nil
}

func (s *Store) Close() error {
	return nil
}

// PendingCount reports how many records are still pending, used by tests
// asserting the one-in-flight guarantee.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.queries {
		if rec.Status == domain.QueryStatusPending {
			n++
		}
	}
	return n
}
