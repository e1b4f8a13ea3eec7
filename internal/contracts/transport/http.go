// Package transport provides HTTP handlers for the contracts domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/contractlens/internal/contracts/domain"
	"github.com/pendergraft/contractlens/internal/filetree"
	"github.com/pendergraft/contractlens/internal/rpcclient"
)

// Handler handles HTTP requests for contract retrieval.
type Handler struct {
	svc domain.Service
}

// NewHandler creates a new contracts HTTP handler.
func NewHandler(svc domain.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the contract routes on a chi router mounted at /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/source", h.handleSource)
	r.Get("/contract-info", h.handleContractInfo)
	r.Get("/chains", h.handleChains)
}

func (h *Handler) handleSource(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.FetchSource(r.Context(), domain.SourceRequest{
		Chain:   q.Get("chain"),
		Address: q.Get("address"),
		Action:  domain.Action(q.Get("action")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Cached {
		w.Header().Set("X-Snapshot", "hit")
	}

	action, _ := domain.ParseAction(q.Get("action"))
	writeJSON(w, http.StatusOK, SourceBody(result, action, q.Get("address")))
}

// SourceBody shapes a pipeline result the way /api/source returns it for
// the given action.
func SourceBody(result *domain.SourceResult, action domain.Action, address string) any {
	switch action {
	case domain.ActionIDL:
		return idlResponse{
			Chain:   result.Chain.ID,
			Address: address,
			IDL:     result.IDL,
			Source:  result.IDLSource,
		}
	case domain.ActionABI:
		return toABIResponse(result.Bundle)
	case domain.ActionTree:
		tree := result.Tree
		if tree == nil {
			tree = []*filetree.Node{}
		}
		return treeResponse{Bundle: result.Bundle, Tree: tree}
	default:
		return result.Bundle
	}
}

func (h *Handler) handleContractInfo(w http.ResponseWriter, r *http.Request) {
	chain := r.URL.Query().Get("chain")
	address := r.URL.Query().Get("address")

	if chain == "" || chain == "all" {
		result, err := h.svc.CheckAllChains(r.Context(), address)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	info, err := h.svc.ContractInfo(r.Context(), chain, address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.CrossChainInfo{
		Address: address,
		Chains:  map[string]domain.ChainInfo{info.Chain: *info},
	})
}

func (h *Handler) handleChains(w http.ResponseWriter, r *http.Request) {
	list := h.svc.Chains(r.Context())
	data := make([]chainResponse, len(list))
	for i, d := range list {
		data[i] = toChainResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var exhausted *rpcclient.ExhaustedError
	switch {
	case errors.Is(err, domain.ErrMissingParam):
		writeError(w, http.StatusBadRequest, "MISSING_PARAMETER", err.Error())
	case errors.Is(err, domain.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "INVALID_ADDRESS", err.Error())
	case errors.Is(err, domain.ErrUnknownChain):
		writeError(w, http.StatusBadRequest, "UNKNOWN_CHAIN", err.Error())
	case errors.Is(err, domain.ErrInvalidAction):
		writeError(w, http.StatusBadRequest, "INVALID_ACTION", err.Error())
	case errors.Is(err, domain.ErrNotVerified):
		writeError(w, http.StatusNotFound, "NOT_VERIFIED", "Contract source code not verified")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "No artifact found for this address")
	case errors.Is(err, domain.ErrUpstream):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "TIMEOUT", "Upstream request timed out")
	case errors.As(err, &exhausted):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", exhausted.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch contract")
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
