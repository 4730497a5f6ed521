package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/regsight/regsight/internal/domain"
	"github.com/regsight/regsight/internal/query"
	"github.com/regsight/regsight/internal/storage"
)

// Handler exposes the compliance query API: submission, follow-ups, and
// paginated history.
type Handler struct {
	service *query.Service
	store   storage.QueryStore
	logger  *slog.Logger
}

// NewHandler creates a handler backed by the given submission service and store.
func NewHandler(service *query.Service, store storage.QueryStore, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// RegisterRoutes mounts the API routes on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/compliance-queries", h.handleSubmit)
	r.Post("/compliance-queries/{queryID}/followups", h.handleFollowUp)
	r.Get("/compliance-queries", h.handleHistory)
}

type submitRequest struct {
	Question string `json:"question"`
}

// submitResponse is the wire form of a submission outcome. Status selects
// which of the remaining fields are present.
type submitResponse struct {
	Status     string            `json:"status"`
	QueryID    string            `json:"queryId,omitempty"`
	Answer     string            `json:"answer,omitempty"`
	Citations  []domain.Citation `json:"citations,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	Error      string            `json:"error,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "")
}

func (h *Handler) handleFollowUp(w http.ResponseWriter, r *http.Request) {
	originalID := chi.URLParam(r, "queryID")
	if originalID == "" {
		writeError(w, http.StatusBadRequest, "missing query ID")
		return
	}
	h.submit(w, r, originalID)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, originalQueryID string) {
	t := GetTenant(r.Context())
	if t == nil {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question must not be blank")
		return
	}

	var outcome domain.Outcome
	if originalQueryID == "" {
		outcome = h.service.SubmitNew(r.Context(), t.ID, req.Question)
	} else {
		outcome = h.service.SubmitFollowUp(r.Context(), t.ID, originalQueryID, req.Question)
	}

	switch outcome.Kind {
	case domain.OutcomeAnswered:
		AddLogField(r.Context(), "query_id", outcome.Answer.QueryID)
		writeJSON(w, http.StatusOK, submitResponse{
			Status:     string(domain.OutcomeAnswered),
			QueryID:    outcome.Answer.QueryID,
			Answer:     outcome.Answer.Answer,
			Citations:  outcome.Answer.Citations,
			Confidence: outcome.Answer.Confidence,
		})
	default:
		AddLogField(r.Context(), "error", outcome.Error)
		writeJSON(w, http.StatusBadGateway, submitResponse{
			Status: string(domain.OutcomeFailed),
			Error:  outcome.Error,
		})
	}
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	t := GetTenant(r.Context())
	if t == nil {
		writeError(w, http.StatusUnauthorized, "missing tenant")
		return
	}

	opts := storage.ListOptions{
		TenantID: t.ID,
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "pageSize"),
	}

	page, err := h.store.ListHistory(r.Context(), opts)
	if err != nil {
		AddError(r.Context(), err)
		h.logger.Error("failed to list query history",
			slog.String("tenant_id", t.ID),
			slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list query history")
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
