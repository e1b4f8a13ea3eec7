// Package transport provides HTTP handlers for contract analysis.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contractlens/internal/analysis/domain"
	contracts "github.com/pendergraft/contractlens/internal/contracts/domain"
)

// Handler handles HTTP requests for analysis operations.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new analysis HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the analysis routes. Analyze is the expensive
// endpoint; callers may wrap it with a stricter limiter via analyzeMW.
func (h *Handler) RegisterRoutes(r chi.Router, analyzeMW ...func(http.Handler) http.Handler) {
	r.With(analyzeMW...).Post("/analyze", h.handleAnalyze)
	r.Get("/reports", h.handleListReports)
	r.Get("/reports/{id}", h.handleGetReport)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be JSON")
		return
	}

	report, err := h.svc.Analyze(r.Context(), domain.AnalyzeRequest{
		Chain:       req.Chain,
		Address:     req.Address,
		Provider:    req.Provider,
		Model:       req.Model,
		Language:    req.Language,
		SuperPrompt: req.SuperPrompt,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	reports, err := h.svc.ListReports(r.Context(), q.Get("chain"), q.Get("address"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if reports == nil {
		reports = []domain.Report{}
	}
	writeJSON(w, http.StatusOK, ListReportsResponse{Data: reports})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrMissingParam):
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", err.Error())
	case errors.Is(err, contracts.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
	case errors.Is(err, contracts.ErrUnknownChain):
		writeError(w, http.StatusBadRequest, "UNKNOWN_CHAIN", err.Error())
	case errors.Is(err, domain.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, "UNKNOWN_PROVIDER", err.Error())
	case errors.Is(err, domain.ErrNothingToAnalyze):
		writeError(w, http.StatusBadRequest, "NOTHING_TO_ANALYZE", err.Error())
	case errors.Is(err, contracts.ErrNotVerified):
		writeError(w, http.StatusNotFound, "NOT_VERIFIED", "Contract source code not verified")
	case errors.Is(err, contracts.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No artifact found for this address")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Report not found")
	case errors.Is(err, contracts.ErrUpstream):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "Analysis timed out")
	default:
		writeError(w, http.StatusBadGateway, "ANALYSIS_FAILED", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
