package domain

import (
	"context"
	"log/slog"
	"time"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{next: next, logger: logger}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	start := time.Now()
	report, err := m.next.Analyze(ctx, req)
	attrs := []any{
		"chain", req.Chain,
		"address", req.Address,
		"provider", req.Provider,
		"model", req.Model,
		"superPrompt", req.SuperPrompt,
		"duration", time.Since(start),
		"error", err,
	}
	if report != nil {
		attrs = append(attrs, "report", report.ID, "length", len(report.Content))
	}
	m.logger.Info("Analyze", attrs...)
	return report, err
}

func (m *loggingMiddleware) GetReport(ctx context.Context, id string) (*Report, error) {
	start := time.Now()
	report, err := m.next.GetReport(ctx, id)
	m.logger.Debug("GetReport",
		"id", id,
		"duration", time.Since(start),
		"error", err,
	)
	return report, err
}

func (m *loggingMiddleware) ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error) {
	start := time.Now()
	reports, err := m.next.ListReports(ctx, chain, address, limit)
	m.logger.Debug("ListReports",
		"chain", chain,
		"address", address,
		"count", len(reports),
		"duration", time.Since(start),
		"error", err,
	)
	return reports, err
}
