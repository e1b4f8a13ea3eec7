package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/contractlens/internal/chains"
)

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(Service) Service {
	return func(next Service) Service {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   Service
	logger *slog.Logger
}

func (m *loggingMiddleware) FetchSource(ctx context.Context, req SourceRequest) (*SourceResult, error) {
	start := time.Now()
	result, err := m.next.FetchSource(ctx, req)
	attrs := []any{
		"chain", req.Chain,
		"address", req.Address,
		"action", req.Action,
		"duration", time.Since(start),
		"error", err,
	}
	if result != nil && result.Bundle != nil {
		attrs = append(attrs, "files", len(result.Bundle.Files), "cached", result.Cached)
	}
	m.logger.Info("FetchSource", attrs...)
	return result, err
}

func (m *loggingMiddleware) ContractInfo(ctx context.Context, chain, address string) (*ChainInfo, error) {
	start := time.Now()
	info, err := m.next.ContractInfo(ctx, chain, address)
	m.logger.Debug("ContractInfo",
		"chain", chain,
		"address", address,
		"duration", time.Since(start),
		"error", err,
	)
	return info, err
}

func (m *loggingMiddleware) CheckAllChains(ctx context.Context, address string) (*CrossChainInfo, error) {
	start := time.Now()
	info, err := m.next.CheckAllChains(ctx, address)
	var checked int
	if info != nil {
		checked = len(info.Chains)
	}
	m.logger.Info("CheckAllChains",
		"address", address,
		"chains", checked,
		"duration", time.Since(start),
		"error", err,
	)
	return info, err
}

func (m *loggingMiddleware) Chains(ctx context.Context) []chains.Descriptor {
	return m.next.Chains(ctx)
}
