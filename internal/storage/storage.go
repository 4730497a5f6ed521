// Package storage defines the query record store consumed by the
// conversation engine and the history API.
package storage

import (
	"context"
	"errors"

	"github.com/regsight/regsight/internal/domain"
)

// ErrNotFound is returned when a query record does not exist.
var ErrNotFound = errors.New("query not found")

// ErrTerminal is returned when a terminal record is updated again.
// Records transition to answered or failed exactly once.
var ErrTerminal = errors.New("query already in a terminal state")

// QueryStore is the append-only log of submitted questions and answers.
// The engine is the only writer; the history API reads it.
type QueryStore interface {
	// CreateQuery appends a new pending query record
	CreateQuery(ctx context.Context, rec *domain.QueryRecord) error

	// GetQuery retrieves a query record by ID
	GetQuery(ctx context.Context, id string) (*domain.QueryRecord, error)

	// GetQueryByBackendID retrieves the record whose answered exchange
	// was assigned the given backend query ID
	GetQueryByBackendID(ctx context.Context, backendID string) (*domain.QueryRecord, error)

	// MarkAnswered finalizes a pending record with the backend's answer
	MarkAnswered(ctx context.Context, id string, payload *domain.AnswerPayload) error

	// MarkFailed finalizes a pending record with a failure message
	MarkFailed(ctx context.Context, id, message string) error

	// ListHistory returns one page of a tenant's queries, newest first
	ListHistory(ctx context.Context, opts ListOptions) (*HistoryPage, error)

	// Close closes the storage connection
	Close() error
}

// ListOptions defines pagination for history listing. Page is 1-based.
type ListOptions struct {
	TenantID string
	Page     int
	PageSize int
}

// Normalize applies defaults for out-of-range pagination values.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PageSize < 1 {
		o.PageSize = 20
	}
	return o
}

// Offset converts the 1-based page into a row offset.
func (o ListOptions) Offset() int {
	return (o.Page - 1) * o.PageSize
}

// HistoryPage is one page of query history plus the total count across
// all pages for the tenant.
type HistoryPage struct {
	Queries    []*domain.QueryRecord `json:"queries"`
	TotalCount int                   `json:"totalCount"`
}
