package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/regsight/regsight/internal/backend"
	"github.com/regsight/regsight/internal/query"
	"github.com/regsight/regsight/internal/storage"
	"github.com/regsight/regsight/internal/storage/memory"
	"github.com/regsight/regsight/internal/tenant"
)

type stubBackend struct {
	resp       *backend.QueryResponse
	err        error
	followUpID string
}

func (b *stubBackend) SubmitQuery(ctx context.Context, req *backend.QueryRequest) (*backend.QueryResponse, error) {
	return b.resp, b.err
}

func (b *stubBackend) SubmitFollowUp(ctx context.Context, originalQueryID string, req *backend.QueryRequest) (*backend.QueryResponse, error) {
	b.followUpID = originalQueryID
	return b.resp, b.err
}

// injectTenant stands in for AuthMiddleware in handler tests.
func injectTenant(t *tenant.Tenant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), TenantContextKey, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newTestRouter(t *testing.T, b query.Backend) (chi.Router, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	svc := query.NewService(b, store, query.WithLogger(logger))
	handler := NewHandler(svc, store, logger)

	r := chi.NewRouter()
	r.Use(injectTenant(&tenant.Tenant{ID: "tenant-1", Name: "Acme"}))
	handler.RegisterRoutes(r)
	return r, store
}

func TestHandleSubmit_Answered(t *testing.T) {
	conf := 0.9
	b := &stubBackend{
		resp: &backend.QueryResponse{
			QueryID: "Q1",
			Answer:  "Licensees must verify customer identity.",
			Citations: []backend.WireCitation{
				{Text: "Section 12...", Source: "Banking Act", Section: "12(1)"},
			},
			Confidence: &conf,
		},
	}
	router, store := newTestRouter(t, b)

	body := strings.NewReader(`{"question": "What are the KYC requirements?"}`)
	req := httptest.NewRequest("POST", "/compliance-queries", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp submitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "answered" {
		t.Errorf("expected status answered, got %s", resp.Status)
	}
	if resp.QueryID != "Q1" {
		t.Errorf("expected queryId Q1, got %s", resp.QueryID)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].SourceTitle != "Banking Act" {
		t.Errorf("unexpected citations: %+v", resp.Citations)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.9 {
		t.Errorf("unexpected confidence: %v", resp.Confidence)
	}

	// The exchange lands in the tenant's history
	page, err := store.ListHistory(req.Context(), storage.ListOptions{TenantID: "tenant-1"})
	if err != nil {
		t.Fatalf("ListHistory failed: %v", err)
	}
	if page.TotalCount != 1 {
		t.Fatalf("expected 1 history entry, got %d", page.TotalCount)
	}
}

func TestHandleSubmit_BackendFailure(t *testing.T) {
	b := &stubBackend{err: errors.New("rate limit exceeded")}
	router, _ := newTestRouter(t, b)

	body := strings.NewReader(`{"question": "What are the KYC requirements?"}`)
	req := httptest.NewRequest("POST", "/compliance-queries", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}

	var resp submitResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "failed" {
		t.Errorf("expected status failed, got %s", resp.Status)
	}
	if resp.QueryID != "" {
		t.Errorf("failed outcome must not carry a queryId, got %s", resp.QueryID)
	}
	if resp.Error != "rate limit exceeded" {
		t.Errorf("unexpected error message: %s", resp.Error)
	}
}

func TestHandleSubmit_BlankQuestion(t *testing.T) {
	b := &stubBackend{}
	router, _ := newTestRouter(t, b)

	body := strings.NewReader(`{"question": "   "}`)
	req := httptest.NewRequest("POST", "/compliance-queries", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleSubmit_InvalidBody(t *testing.T) {
	b := &stubBackend{}
	router, _ := newTestRouter(t, b)

	req := httptest.NewRequest("POST", "/compliance-queries", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestHandleFollowUp_RoutesOriginalID(t *testing.T) {
	b := &stubBackend{
		resp: &backend.QueryResponse{QueryID: "Q2", Answer: "Yes, records must be kept for 7 years."},
	}
	router, _ := newTestRouter(t, b)

	body := strings.NewReader(`{"question": "For how long?"}`)
	req := httptest.NewRequest("POST", "/compliance-queries/Q1/followups", body)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if b.followUpID != "Q1" {
		t.Errorf("expected follow-up routed to Q1, got %q", b.followUpID)
	}
}

func TestHandleHistory_Pagination(t *testing.T) {
	b := &stubBackend{
		resp: &backend.QueryResponse{QueryID: "Q1", Answer: "ok"},
	}
	router, _ := newTestRouter(t, b)

	// Seed three exchanges through the submission path
	for i := 0; i < 3; i++ {
		body := strings.NewReader(`{"question": "question"}`)
		req := httptest.NewRequest("POST", "/compliance-queries", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("seed submit failed: %d", rec.Code)
		}
	}

	req := httptest.NewRequest("GET", "/compliance-queries?page=1&pageSize=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var page struct {
		Queries    []json.RawMessage `json:"queries"`
		TotalCount int               `json:"totalCount"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(page.Queries) != 2 {
		t.Errorf("expected 2 queries on page, got %d", len(page.Queries))
	}
	if page.TotalCount != 3 {
		t.Errorf("expected totalCount 3, got %d", page.TotalCount)
	}
}

func TestHandleHistory_DefaultsApplied(t *testing.T) {
	b := &stubBackend{resp: &backend.QueryResponse{QueryID: "Q1", Answer: "ok"}}
	router, _ := newTestRouter(t, b)

	req := httptest.NewRequest("GET", "/compliance-queries", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}
