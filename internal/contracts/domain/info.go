package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	"github.com/pendergraft/contractlens/internal/bytecode"
	"github.com/pendergraft/contractlens/internal/chains"
	"github.com/pendergraft/contractlens/internal/solana"
	"github.com/pendergraft/contractlens/internal/validation"
)

// ContractInfo reports code, balance and account state on one chain.
func (s *service) ContractInfo(ctx context.Context, chainID, address string) (*ChainInfo, error) {
	chain, address, err := s.target(chainID, address)
	if err != nil {
		return nil, err
	}
	return s.chainInfo(ctx, chain, address)
}

// CheckAllChains runs the per-chain check concurrently over every chain of
// the address's kind and joins the results by chain id.
func (s *service) CheckAllChains(ctx context.Context, address string) (*CrossChainInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address", ErrMissingParam)
	}

	kind := chains.KindEVM
	if validation.ValidateEVMAddress(address) != nil {
		if err := validation.ValidateSolanaAddress(address); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
		kind = chains.KindSolana
	}

	out := &CrossChainInfo{Address: address, Chains: make(map[string]ChainInfo)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.FanOutLimit)
	for _, chain := range s.Registry.ListKind(kind) {
		g.Go(func() error {
			info, err := s.chainInfo(gctx, chain, address)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				info = &ChainInfo{Chain: chain.ID, Kind: chain.Kind, Symbol: chain.Currency.Symbol, Error: err.Error()}
			}
			mu.Lock()
			out.Chains[chain.ID] = *info
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) chainInfo(ctx context.Context, chain chains.Descriptor, address string) (*ChainInfo, error) {
	if chain.IsEVM() {
		return s.evmInfo(ctx, chain, address)
	}
	return s.solanaInfo(ctx, chain, address)
}

func (s *service) evmInfo(ctx context.Context, chain chains.Descriptor, address string) (*ChainInfo, error) {
	info := &ChainInfo{Chain: chain.ID, Kind: chains.KindEVM, Symbol: chain.Currency.Symbol}

	code, err := s.code(ctx, chain.ID, address)
	if err != nil {
		return nil, fmt.Errorf("reading code: %w", err)
	}

	raw, err := s.RPC.Call(ctx, chain.ID, "eth_getBalance", address, "latest")
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	var balance hexutil.Big
	if err := json.Unmarshal(raw, &balance); err != nil {
		return nil, fmt.Errorf("decoding balance: %w", err)
	}

	info.IsContract = code != ""
	info.CodeSize = bytecode.Size(code)
	if info.IsContract {
		info.Fingerprint = bytecode.Fingerprint(code)
	}
	wei := balance.ToInt()
	info.Balance = wei.String()
	info.BalanceFormatted = FormatUnits(wei, decimalsOf(chain))
	info.Exists = info.IsContract || wei.Sign() > 0
	return info, nil
}

func (s *service) solanaInfo(ctx context.Context, chain chains.Descriptor, address string) (*ChainInfo, error) {
	info := &ChainInfo{Chain: chain.ID, Kind: chains.KindSolana, Symbol: chain.Currency.Symbol, Balance: "0", BalanceFormatted: "0"}

	account, err := s.Accounts.GetAccount(ctx, address)
	if errors.Is(err, solana.ErrNotFound) {
		return info, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	lamports := new(big.Int).SetUint64(account.Lamports)
	info.Exists = true
	info.IsContract = account.IsExecutable
	info.CodeSize = account.DataLength
	info.Balance = lamports.String()
	info.BalanceFormatted = FormatUnits(lamports, decimalsOf(chain))
	info.Account = account
	return info, nil
}

func decimalsOf(chain chains.Descriptor) int {
	if chain.Currency.Decimals > 0 {
		return chain.Currency.Decimals
	}
	if chain.IsEVM() {
		return 18
	}
	return 9
}

// FormatUnits renders amount scaled down by 10^decimals without rounding.
// Trailing zeros of the fraction are dropped.
func FormatUnits(amount *big.Int, decimals int) string {
	if decimals <= 0 {
		return amount.String()
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)

	base := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, base, new(big.Int))

	out := whole.String()
	if frac.Sign() != 0 {
		digits := frac.String()
		digits = strings.Repeat("0", decimals-len(digits)) + digits
		out += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
