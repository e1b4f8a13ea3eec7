package transport

import "github.com/pendergraft/contractlens/internal/analysis/domain"

// AnalyzeRequest is the body of POST /analyze.
type AnalyzeRequest struct {
	Chain       string `json:"chain"`
	Address     string `json:"address"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	Language    string `json:"language,omitempty"`
	SuperPrompt bool   `json:"superPrompt,omitempty"`
}

// ListReportsResponse is the body of GET /reports.
type ListReportsResponse struct {
	Data []domain.Report `json:"data"`
}

// ErrorResponse is the body of every 4xx/5xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
