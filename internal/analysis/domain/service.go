// Package domain contains the AI security analysis of fetched contracts.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contractlens/internal/config"
	contracts "github.com/pendergraft/contractlens/internal/contracts/domain"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
	"github.com/pendergraft/contractlens/internal/storage"
	"github.com/pendergraft/contractlens/internal/validation"
)

// Common errors returned by the analysis service.
var (
	ErrUnknownProvider  = errors.New("unknown AI provider")
	ErrNothingToAnalyze = errors.New("bundle has no source files to analyze")
	ErrNotFound         = errors.New("report not found")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Config is the AI configuration of one analysis. It is built per request
// from server defaults and request overrides and passed down explicitly.
type Config struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Language    string
	SuperPrompt bool
	Attempts    int
	Timeout     time.Duration
}

// AnalyzeRequest selects the contract and optionally overrides the AI settings.
type AnalyzeRequest struct {
	Chain       string
	Address     string
	Provider    string
	Model       string
	Language    string
	SuperPrompt bool
}

// Report is a finished analysis.
type Report struct {
	ID        string    `json:"id"`
	Chain     string    `json:"chain"`
	Address   string    `json:"address"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Language  string    `json:"language"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Service defines the analysis service interface.
type Service interface {
	// Analyze fetches the contract, runs the AI provider and stores the report.
	Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error)

	// GetReport retrieves a stored report.
	GetReport(ctx context.Context, id string) (*Report, error)

	// ListReports returns the newest reports for one contract.
	ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error)
}

// BundleFetcher runs the contract retrieval pipeline
type BundleFetcher interface {
	FetchSource(ctx context.Context, req contracts.SourceRequest) (*contracts.SourceResult, error)
}

// ReportStore persists reports
type ReportStore interface {
	CreateReport(ctx context.Context, r *storage.Report) error
	GetReport(ctx context.Context, id string) (*storage.Report, error)
	ListReports(ctx context.Context, chain, address string, limit int) ([]storage.Report, error)
}

// Option configures the service
type Option func(*service)

// WithSleep replaces the backoff sleep, for tests
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *service) { s.sleep = fn }
}

type service struct {
	fetcher BundleFetcher
	client  ChatClient
	store   ReportStore
	cfg     config.AnalysisConfig
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// NewService creates a new analysis service.
func NewService(fetcher BundleFetcher, client ChatClient, store ReportStore, cfg config.AnalysisConfig, logger *slog.Logger, opts ...Option) Service {
	s := &service{
		fetcher: fetcher,
		client:  client,
		store:   store,
		cfg:     cfg,
		sleep:   sleepContext,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze fetches the contract, runs the AI provider and stores the report.
func (s *service) Analyze(ctx context.Context, req AnalyzeRequest) (*Report, error) {
	cfg, err := s.configFor(req)
	if err != nil {
		return nil, err
	}

	result, err := s.fetcher.FetchSource(ctx, contracts.SourceRequest{
		Chain:   req.Chain,
		Address: req.Address,
		Action:  contracts.ActionSource,
	})
	if err != nil {
		return nil, err
	}

	prompt, err := BuildPrompt(result.Bundle, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	content, err := s.complete(ctx, cfg, prompt)
	if err != nil {
		metrics.AnalysisRun(cfg.Provider, "error")
		return nil, err
	}
	metrics.AnalysisRun(cfg.Provider, "success")

	stored := &storage.Report{
		Chain:    result.Bundle.Chain,
		Address:  result.Bundle.Address,
		Provider: cfg.Provider,
		Model:    cfg.Model,
		Language: cfg.Language,
		Content:  content,
	}
	if err := s.store.CreateReport(ctx, stored); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	report := toReport(stored)
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	return report, nil
}

// complete calls the provider up to cfg.Attempts times, sleeping
// attempt*2s between tries, and returns the last error unchanged.
func (s *service) complete(ctx context.Context, cfg Config, prompt string) (string, error) {
	attempts := max(cfg.Attempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		content, err := s.client.Complete(ctx, cfg, prompt)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		s.logger.Warn("analysis attempt failed", "provider", cfg.Provider, "attempt", attempt, "error", err)
		if attempt < attempts {
			if err := s.sleep(ctx, time.Duration(attempt)*2*time.Second); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

// configFor merges server defaults with the request overrides.
func (s *service) configFor(req AnalyzeRequest) (Config, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = s.cfg.DefaultProvider
	}
	p, ok := s.cfg.Providers[provider]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	cfg := Config{
		Provider:    provider,
		BaseURL:     p.BaseURL,
		APIKey:      p.APIKey,
		Model:       req.Model,
		Language:    req.Language,
		SuperPrompt: req.SuperPrompt,
		Attempts:    s.cfg.Attempts,
		Timeout:     s.cfg.Timeout,
	}
	if cfg.Model == "" {
		cfg.Model = s.cfg.DefaultModel
	}
	if cfg.Language == "" {
		cfg.Language = s.cfg.DefaultLanguage
	}
	return cfg, nil
}

// GetReport retrieves a stored report.
func (s *service) GetReport(ctx context.Context, id string) (*Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting report: %w", err)
	}
	return toReport(r), nil
}

// ListReports returns the newest reports for one contract. EVM addresses
// are matched in checksummed form, the way reports are stored.
func (s *service) ListReports(ctx context.Context, chain, address string, limit int) ([]Report, error) {
	chain = strings.ToLower(strings.TrimSpace(chain))
	address = strings.TrimSpace(address)
	if chain == "" || address == "" {
		return nil, fmt.Errorf("%w: chain and address", contracts.ErrMissingParam)
	}
	if validation.ValidateEVMAddress(address) == nil {
		address = common.HexToAddress(address).Hex()
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	stored, err := s.store.ListReports(ctx, chain, address, min(limit, maxListLimit))
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	reports := make([]Report, len(stored))
	for i := range stored {
		reports[i] = *toReport(&stored[i])
	}
	return reports, nil
}

func toReport(r *storage.Report) *Report {
	var createdAt time.Time
	if r.CreatedAt != "" {
		createdAt, _ = time.Parse("2006-01-02 15:04:05", r.CreatedAt)
	}
	return &Report{
		ID:        r.ID,
		Chain:     r.Chain,
		Address:   r.Address,
		Provider:  r.Provider,
		Model:     r.Model,
		Language:  r.Language,
		Content:   r.Content,
		CreatedAt: createdAt,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
