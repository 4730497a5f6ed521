package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/regsight/regsight/internal/domain"
	"github.com/regsight/regsight/internal/storage"
)

// Store is a SQLite implementation of QueryStore.
type Store struct {
	db *sql.DB
}

var _ storage.QueryStore = (*Store)(nil)

// New creates a new SQLite store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS queries (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			thread_root_id TEXT NOT NULL,
			backend_query_id TEXT,
			question TEXT NOT NULL,
			answer TEXT,
			citations TEXT,
			confidence REAL,
			status TEXT NOT NULL,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_tenant_created ON queries(tenant_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_thread_root ON queries(thread_root_id)`,
		`CREATE INDEX IF NOT EXISTS idx_queries_backend_id ON queries(backend_query_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateQuery(ctx context.Context, rec *domain.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = rec.CreatedAt

	citations, err := json.Marshal(rec.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	query := `INSERT INTO queries (id, tenant_id, thread_root_id, backend_query_id, question, answer, citations, confidence, status, error_message, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.TenantID, rec.ThreadRootID, rec.BackendQueryID, rec.Question,
		rec.Answer, string(citations), rec.Confidence,
		string(rec.Status), rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create query: %w", err)
	}

	return nil
}

func (s *Store) GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error) {
	query := selectColumns + ` FROM queries WHERE id = ?`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query: %w", err)
	}

	return rec, nil
}

func (s *Store) GetQueryByBackendID(ctx context.Context, backendID string) (*domain.QueryRecord, error) {
	query := selectColumns + ` FROM queries WHERE backend_query_id = ?`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, backendID))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query by backend ID: %w", err)
	}

	return rec, nil
}

// MarkAnswered finalizes a pending record. The WHERE clause guards the
// terminal-once invariant: a record that already answered or failed is
// left untouched and ErrTerminal is returned.
func (s *Store) MarkAnswered(ctx context.Context, id string, payload *domain.AnswerPayload) error {
	citations, err := json.Marshal(payload.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	query := `UPDATE queries
	          SET answer = ?, citations = ?, confidence = ?, backend_query_id = ?, status = ?, updated_at = ?
	          WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query,
		payload.Answer, string(citations), payload.Confidence, payload.QueryID,
		string(domain.QueryStatusAnswered), time.Now(),
		id, string(domain.QueryStatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark query answered: %w", err)
	}

	return s.checkFinalized(ctx, id, result)
}

func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	query := `UPDATE queries
	          SET status = ?, error_message = ?, updated_at = ?
	          WHERE id = ? AND status = ?`

	result, err := s.db.ExecContext(ctx, query,
		string(domain.QueryStatusFailed), message, time.Now(),
		id, string(domain.QueryStatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark query failed: %w", err)
	}

	return s.checkFinalized(ctx, id, result)
}

func (s *Store) checkFinalized(ctx context.Context, id string, result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM queries WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check query status: %w", err)
	}
	return storage.ErrTerminal
}

func (s *Store) ListHistory(ctx context.Context, opts storage.ListOptions) (*storage.HistoryPage, error) {
	opts = opts.Normalize()

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM queries WHERE tenant_id = ?`, opts.TenantID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count queries: %w", err)
	}

	query := selectColumns + ` FROM queries WHERE tenant_id = ?
	          ORDER BY created_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, opts.TenantID, opts.PageSize, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	page := &storage.HistoryPage{TotalCount: total}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan query: %w", err)
		}
		page.Queries = append(page.Queries, rec)
	}

	return page, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, tenant_id, thread_root_id, backend_query_id, question, answer, citations, confidence, status, error_message, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.QueryRecord, error) {
	var rec domain.QueryRecord
	var backendID, answer, citationsJSON, errMsg sql.NullString
	var confidence sql.NullFloat64
	var status string

	err := row.Scan(&rec.ID, &rec.TenantID, &rec.ThreadRootID, &backendID, &rec.Question,
		&answer, &citationsJSON, &confidence, &status, &errMsg,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.QueryStatus(status)
	if backendID.Valid {
		rec.BackendQueryID = backendID.String
	}
	if answer.Valid {
		rec.Answer = &answer.String
	}
	if confidence.Valid {
		rec.Confidence = &confidence.Float64
	}
	if errMsg.Valid {
		rec.ErrorMessage = errMsg.String
	}
	if citationsJSON.Valid && citationsJSON.String != "" {
		if err := json.Unmarshal([]byte(citationsJSON.String), &rec.Citations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal citations: %w", err)
		}
	}

	return &rec, nil
}
