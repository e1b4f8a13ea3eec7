package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/assembler"
	"github.com/pendergraft/contractlens/internal/bytecode"
	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/explorer"
	"github.com/pendergraft/contractlens/internal/filetree"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
	"github.com/pendergraft/contractlens/internal/solana"
	"github.com/pendergraft/contractlens/internal/storage"
	"github.com/pendergraft/contractlens/internal/validation"
)

// Common errors returned by the contracts service.
var (
	ErrMissingParam   = errors.New("missing parameter")
	ErrInvalidAddress = errors.New("invalid address")
	ErrUnknownChain   = errors.New("unknown chain")
	ErrInvalidAction  = errors.New("invalid action")
	ErrNotVerified    = errors.New("contract source code not verified")
	ErrNotFound       = errors.New("no artifact found")
	ErrUpstream       = errors.New("upstream unavailable")
)

// Service defines the contracts service interface.
type Service interface {
	// FetchSource runs the retrieval pipeline for one address.
	FetchSource(ctx context.Context, req SourceRequest) (*SourceResult, error)

	// ContractInfo reports code, balance and account state on one chain.
	ContractInfo(ctx context.Context, chain, address string) (*ChainInfo, error)

	// CheckAllChains runs ContractInfo on every chain of the address's kind
	// concurrently.
	CheckAllChains(ctx context.Context, address string) (*CrossChainInfo, error)

	// Chains lists the registry.
	Chains(ctx context.Context) []chains.Descriptor
}

// SourceFetcher fetches verified sources from a block explorer
type SourceFetcher interface {
	FetchSource(ctx context.Context, chain chains.Descriptor, address string) (*explorer.Contract, error)
}

// ProxyResolver finds the implementation behind a proxy
type ProxyResolver interface {
	ResolveImplementation(ctx context.Context, chain, address string) (artifact.ProxyResolution, error)
}

// ProgramFetcher runs the Solana fallback chain
type ProgramFetcher interface {
	FetchIDL(ctx context.Context, address string) (json.RawMessage, string, error)
	FetchSource(ctx context.Context, address string) (*solana.Program, error)
}

// AccountGetter reads raw Solana accounts
type AccountGetter interface {
	GetAccount(ctx context.Context, address string) (*artifact.AccountInfo, error)
}

// RPC is the subset of the JSON-RPC client the service needs
type RPC interface {
	Call(ctx context.Context, chain, method string, params ...any) (json.RawMessage, error)
	CallCached(ctx context.Context, key, chain, method string, params ...any) (json.RawMessage, error)
}

// SnapshotStore persists assembled bundles
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, chain, address string, maxAge time.Duration) (*storage.Snapshot, error)
	PutSnapshot(ctx context.Context, s *storage.Snapshot) error
}

// Deps are the collaborators of the service. Snapshots may be nil.
type Deps struct {
	Registry    *chains.Registry
	Explorer    SourceFetcher
	Proxies     ProxyResolver
	Programs    ProgramFetcher
	Accounts    AccountGetter
	RPC         RPC
	Snapshots   SnapshotStore
	SnapshotTTL time.Duration
	FanOutLimit int
}

// service implements the Service interface.
type service struct {
	Deps
	logger *slog.Logger
}

// NewService creates a new contracts service.
func NewService(deps Deps, logger *slog.Logger) Service {
	if deps.FanOutLimit <= 0 {
		deps.FanOutLimit = 8
	}
	return &service{Deps: deps, logger: logger}
}

// FetchSource runs the retrieval pipeline for one address.
func (s *service) FetchSource(ctx context.Context, req SourceRequest) (*SourceResult, error) {
	action, ok := ParseAction(string(req.Action))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}

	chain, address, err := s.target(req.Chain, req.Address)
	if err != nil {
		return nil, err
	}
	if action == ActionIDL && chain.IsEVM() {
		return nil, fmt.Errorf("%w: idl is only available on solana", ErrInvalidAction)
	}

	result := &SourceResult{Chain: chain}
	if action == ActionIDL {
		idl, source, err := s.Programs.FetchIDL(ctx, address)
		if err != nil {
			metrics.SourceFetch(string(chain.Kind), "not_found")
			return nil, s.programError(err)
		}
		metrics.SourceFetch(string(chain.Kind), "success")
		result.IDL = idl
		result.IDLSource = source
		return result, nil
	}

	bundle, cached, err := s.bundle(ctx, chain, address)
	if err != nil {
		return nil, err
	}
	result.Bundle = bundle
	result.Cached = cached
	if action == ActionTree {
		result.Tree = filetree.Build(bundle.Files)
	}
	return result, nil
}

// target resolves and validates the chain and address. An empty chain
// defaults by address format.
func (s *service) target(chainID, address string) (chains.Descriptor, string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return chains.Descriptor{}, "", fmt.Errorf("%w: address", ErrMissingParam)
	}

	chainID = strings.ToLower(strings.TrimSpace(chainID))
	if chainID == "" {
		chainID = "ethereum"
		if validation.ValidateSolanaAddress(address) == nil {
			chainID = "solana"
		}
	}
	if err := validation.ValidateChain(chainID); err != nil {
		return chains.Descriptor{}, "", fmt.Errorf("%w: %v", ErrUnknownChain, err)
	}
	chain, ok := s.Registry.Get(chainID)
	if !ok {
		return chains.Descriptor{}, "", fmt.Errorf("%w: %s", ErrUnknownChain, chainID)
	}

	if chain.IsEVM() {
		if err := validation.ValidateEVMAddress(address); err != nil {
			return chains.Descriptor{}, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		address = common.HexToAddress(address).Hex()
	} else if err := validation.ValidateSolanaAddress(address); err != nil {
		return chains.Descriptor{}, "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	return chain, address, nil
}

func (s *service) bundle(ctx context.Context, chain chains.Descriptor, address string) (*artifact.Bundle, bool, error) {
	if b, ok := s.loadSnapshot(ctx, chain.ID, address); ok {
		return b, true, nil
	}

	var (
		b   *artifact.Bundle
		err error
	)
	if chain.IsEVM() {
		b, err = s.fetchEVM(ctx, chain, address)
	} else {
		b, err = s.fetchProgram(ctx, chain, address)
	}
	if err != nil {
		metrics.SourceFetch(string(chain.Kind), resultLabel(err))
		return nil, false, err
	}
	metrics.SourceFetch(string(chain.Kind), "success")

	s.storeSnapshot(ctx, chain.ID, address, b)
	return b, false, nil
}

func (s *service) fetchEVM(ctx context.Context, chain chains.Descriptor, address string) (*artifact.Bundle, error) {
	c, err := s.Explorer.FetchSource(ctx, chain, address)
	if err != nil {
		return nil, err
	}
	if err := sourceFailure(c); err != nil {
		return nil, err
	}
	if len(c.Files) == 0 {
		return nil, ErrNotVerified
	}
	if c.Bytecode.Deployed == "" {
		c.Bytecode.Deployed = s.deployedCode(ctx, chain.ID, address)
	}

	in := assembler.Input{
		Chain:      chain.ID,
		ChainName:  chain.Name,
		ChainID:    chain.ChainID,
		Contract:   contractOf(address, c),
		Creator:    c.Creator,
		CreationTx: c.CreationTx,
	}

	resolution, err := s.Proxies.ResolveImplementation(ctx, chain.ID, address)
	if err != nil {
		return nil, err
	}
	in.Proxy = &resolution

	if resolution.IsProxy() {
		implAddr := *resolution.Implementation
		impl, err := s.Explorer.FetchSource(ctx, chain, implAddr)
		if err != nil {
			return nil, err
		}
		if err := sourceFailure(impl); err != nil {
			return nil, err
		}
		if len(impl.Files) == 0 {
			s.logger.Info("implementation not verified", "chain", chain.ID, "proxy", address, "implementation", implAddr)
		} else {
			if impl.Bytecode.Deployed == "" {
				impl.Bytecode.Deployed = s.deployedCode(ctx, chain.ID, implAddr)
			}
			implContract := contractOf(implAddr, impl)
			in.Implementation = &implContract
		}
	}

	return assembler.Assemble(in)
}

// sourceFailure turns a failed explorer source call into ErrUpstream. A
// chain without an explorer API can never serve sources and stays
// "not verified".
func sourceFailure(c *explorer.Contract) error {
	if c.SourceErr == nil || errors.Is(c.SourceErr, explorer.ErrNoExplorer) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrUpstream, c.SourceErr)
}

func (s *service) fetchProgram(ctx context.Context, chain chains.Descriptor, address string) (*artifact.Bundle, error) {
	p, err := s.Programs.FetchSource(ctx, address)
	if err != nil {
		return nil, s.programError(err)
	}

	in := assembler.Input{
		Chain:     chain.ID,
		ChainName: chain.Name,
		Contract:  assembler.Contract{Address: address, Artifact: artifact.Unavailable()},
		IDLSource: p.Source,
		Account:   p.Account,
	}
	if p.Account == nil {
		in.Contract.Artifact = artifact.SolanaIDL(p.IDL)
	}
	return assembler.Assemble(in)
}

func (s *service) programError(err error) error {
	if errors.Is(err, solana.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// deployedCode reads the runtime code over RPC through the shared cache.
// Failures degrade to an empty string.
func (s *service) deployedCode(ctx context.Context, chain, address string) string {
	code, err := s.code(ctx, chain, address)
	if err != nil {
		s.logger.Warn("eth_getCode failed", "chain", chain, "address", address, "error", err)
		return ""
	}
	return code
}

func (s *service) code(ctx context.Context, chain, address string) (string, error) {
	raw, err := s.RPC.CallCached(ctx, codeCacheKey(chain, address), chain, "eth_getCode", address, "latest")
	if err != nil {
		return "", err
	}
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return "", fmt.Errorf("decoding eth_getCode result: %w", err)
	}
	return bytecode.Normalize(code), nil
}

func codeCacheKey(chain, address string) string {
	return "code:" + chain + ":" + strings.ToLower(address)
}

func (s *service) loadSnapshot(ctx context.Context, chain, address string) (*artifact.Bundle, bool) {
	if s.Snapshots == nil {
		return nil, false
	}
	snap, err := s.Snapshots.GetSnapshot(ctx, chain, address, s.SnapshotTTL)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("snapshot lookup failed", "chain", chain, "address", address, "error", err)
		}
		metrics.SnapshotLookup(false)
		return nil, false
	}

	var b artifact.Bundle
	if err := json.Unmarshal(snap.Data, &b); err != nil {
		s.logger.Warn("snapshot unreadable", "chain", chain, "address", address, "error", err)
		metrics.SnapshotLookup(false)
		return nil, false
	}
	metrics.SnapshotLookup(true)
	return &b, true
}

func (s *service) storeSnapshot(ctx context.Context, chain, address string, b *artifact.Bundle) {
	if s.Snapshots == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		s.logger.Warn("encoding snapshot", "chain", chain, "address", address, "error", err)
		return
	}
	snap := &storage.Snapshot{Chain: chain, Address: address, Data: data}
	if err := s.Snapshots.PutSnapshot(ctx, snap); err != nil {
		s.logger.Warn("storing snapshot", "chain", chain, "address", address, "error", err)
	}
}

// Chains lists the registry.
func (s *service) Chains(context.Context) []chains.Descriptor {
	return s.Registry.List()
}

func contractOf(address string, c *explorer.Contract) assembler.Contract {
	return assembler.Contract{
		Address:  address,
		Files:    c.Files,
		Metadata: c.Metadata,
		Artifact: c.Artifact,
		Bytecode: c.Bytecode,
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotVerified):
		return "not_verified"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
