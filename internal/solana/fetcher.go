package solana

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
)

// Program is what the fetcher found for an address: an IDL, or failing
// that the raw account.
type Program struct {
	Address string
	IDL     json.RawMessage
	Source  string
	Account *artifact.AccountInfo
}

// AccountGetter reads a raw Solana account
type AccountGetter interface {
	GetAccount(ctx context.Context, address string) (*artifact.AccountInfo, error)
}

// Fetcher walks the sources strictly in order and stops at the first hit
type Fetcher struct {
	sources  []Source
	accounts AccountGetter
	logger   *slog.Logger
}

// NewFetcher creates a fetcher. accounts may be nil to disable the raw
// account fallback.
func NewFetcher(sources []Source, accounts AccountGetter, logger *slog.Logger) *Fetcher {
	return &Fetcher{sources: sources, accounts: accounts, logger: logger}
}

// Sources returns the names of the configured sources in order
func (f *Fetcher) Sources() []string {
	names := make([]string, len(f.sources))
	for i, s := range f.sources {
		names[i] = s.Name()
	}
	return names
}

// FetchIDL returns the IDL from the first source that has one, and the
// name of that source. Failures are logged and skipped.
func (f *Fetcher) FetchIDL(ctx context.Context, address string) (json.RawMessage, string, error) {
	for _, src := range f.sources {
		idl, err := src.Attempt(ctx, address)
		if err == nil && nonEmpty(idl) {
			metrics.SolanaAttempt(src.Name(), "success")
			f.logger.Debug("idl found", "source", src.Name(), "address", address)
			return idl, src.Name(), nil
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}

		switch {
		case err == nil, errors.Is(err, ErrSkip):
			metrics.SolanaAttempt(src.Name(), "skip")
			f.logger.Debug("idl source had no result", "source", src.Name(), "address", address)
		default:
			metrics.SolanaAttempt(src.Name(), "error")
			f.logger.Warn("idl source failed", "source", src.Name(), "address", address, "error", err)
		}
	}
	return nil, "", ErrNotFound
}

// FetchSource returns the IDL when any source has it, else the raw account.
// ErrNotFound means every step came up empty.
func (f *Fetcher) FetchSource(ctx context.Context, address string) (*Program, error) {
	idl, source, err := f.FetchIDL(ctx, address)
	if err == nil {
		return &Program{Address: address, IDL: idl, Source: source}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if f.accounts == nil {
		return nil, ErrNotFound
	}
	account, err := f.accounts.GetAccount(ctx, address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.SolanaAttempt("account", "error")
		return nil, ErrNotFound
	}
	metrics.SolanaAttempt("account", "success")
	return &Program{Address: address, Account: account, Source: "account"}, nil
}
