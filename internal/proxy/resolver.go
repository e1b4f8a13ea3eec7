// Package proxy detects upgradeable proxy contracts and resolves the address
// of their implementation.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/pendergraft/contractlens/internal/artifact"
	"github.com/pendergraft/contractlens/internal/observability/metrics"
)

// SlotRule maps a storage slot to the convention that uses it
type SlotRule struct {
	Slot       common.Hash
	Convention artifact.Convention
}

// Slots are probed in order; the first non-zero address wins.
// The beacon slot value is taken as the implementation without calling the
// beacon contract.
var Slots = []SlotRule{
	// bytes32(uint256(keccak256("eip1967.proxy.implementation")) - 1)
	{common.HexToHash("0x360894a13ba1a3210667c828492db98dca3e2076cc3735a920a3ca505d382bbc"), artifact.ConventionEIP1967},
	// keccak256("PROXIABLE")
	{common.HexToHash("0xc5f16f0fcc639fa48a6947836d9850f504798523bf8c9a3a87d5876cf622bcf7"), artifact.ConventionUUPS},
	// keccak256("org.zeppelinos.proxy.implementation")
	{common.HexToHash("0x7050c9e0f4ca769c69bd3a8ef740bc37934f8e2c036e5a723fd8ee048ed3f8c3"), artifact.ConventionTransparent},
	// bytes32(uint256(keccak256("eip1967.proxy.beacon")) - 1)
	{common.HexToHash("0xa3f0ad74e5423aebfd80d3ef4346578335a9a72aeaee59ff6cb3582b35133d50"), artifact.ConventionBeacon},
}

// ViewFunctions are called in order when no slot matched
var ViewFunctions = []string{
	"implementation()",
	"getImplementation()",
	"masterCopy()",
	"getProxyImplementation()",
}

// Selector returns the 4-byte selector of a function signature
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// StateReader reads contract state on one chain
type StateReader interface {
	StorageAt(ctx context.Context, chain string, address common.Address, slot common.Hash) ([]byte, error)
	Call(ctx context.Context, chain string, to common.Address, data []byte) ([]byte, error)
}

// Resolver finds proxy implementations
type Resolver struct {
	state  StateReader
	logger *slog.Logger
}

// NewResolver creates a resolver reading state through state
func NewResolver(state StateReader, logger *slog.Logger) *Resolver {
	return &Resolver{state: state, logger: logger}
}

// ResolveImplementation probes the slot table, then the view functions.
// Failed reads count as misses. Only a cancelled context is an error.
func (r *Resolver) ResolveImplementation(ctx context.Context, chain, address string) (artifact.ProxyResolution, error) {
	if !common.IsHexAddress(address) {
		return artifact.NoProxy(), fmt.Errorf("invalid address %q", address)
	}
	target := common.HexToAddress(address)

	for _, rule := range Slots {
		value, err := r.state.StorageAt(ctx, chain, target, rule.Slot)
		if err != nil {
			if ctx.Err() != nil {
				return artifact.NoProxy(), ctx.Err()
			}
			r.logger.Debug("proxy slot read failed", "chain", chain, "address", address, "convention", rule.Convention, "error", err)
			continue
		}
		if impl, ok := addressFromWord(value); ok {
			return found(impl, rule.Convention), nil
		}
	}

	for _, sig := range ViewFunctions {
		out, err := r.state.Call(ctx, chain, target, Selector(sig))
		if err != nil {
			if ctx.Err() != nil {
				return artifact.NoProxy(), ctx.Err()
			}
			r.logger.Debug("proxy view call failed", "chain", chain, "address", address, "function", sig, "error", err)
			continue
		}
		if impl, ok := addressFromWord(out); ok {
			return found(impl, artifact.ConventionGenericView), nil
		}
	}

	metrics.ProxyResolution(string(artifact.ConventionNone))
	return artifact.NoProxy(), nil
}

func found(impl common.Address, convention artifact.Convention) artifact.ProxyResolution {
	metrics.ProxyResolution(string(convention))
	addr := impl.Hex()
	return artifact.ProxyResolution{Implementation: &addr, Convention: convention}
}

// addressFromWord takes the right-most 20 bytes of a 32-byte word. Short
// or empty results and the zero address are misses.
func addressFromWord(word []byte) (common.Address, bool) {
	if len(word) < common.AddressLength {
		return common.Address{}, false
	}
	if len(word) > common.HashLength {
		word = word[:common.HashLength]
	}
	addr := common.BytesToAddress(word[len(word)-common.AddressLength:])
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

// Caller is the subset of the RPC client used by RPCStateReader
type Caller interface {
	Call(ctx context.Context, chain, method string, params ...any) (json.RawMessage, error)
}

// RPCStateReader reads state with eth_getStorageAt and eth_call
type RPCStateReader struct {
	rpc Caller
}

// NewRPCStateReader creates a state reader backed by JSON-RPC
func NewRPCStateReader(rpc Caller) *RPCStateReader {
	return &RPCStateReader{rpc: rpc}
}

// StorageAt implements StateReader
func (s *RPCStateReader) StorageAt(ctx context.Context, chain string, address common.Address, slot common.Hash) ([]byte, error) {
	raw, err := s.rpc.Call(ctx, chain, "eth_getStorageAt", address, slot, "latest")
	if err != nil {
		return nil, err
	}
	return decodeHex(raw)
}

// Call implements StateReader
func (s *RPCStateReader) Call(ctx context.Context, chain string, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]any{
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	raw, err := s.rpc.Call(ctx, chain, "eth_call", msg, "latest")
	if err != nil {
		return nil, err
	}
	return decodeHex(raw)
}

// decodeHex accepts odd-length quantities ("0x0") as some nodes return them
func decodeHex(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding hex result: %w", err)
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	b, err := hexutil.Decode("0x" + s)
	if err != nil {
		return nil, fmt.Errorf("decoding hex result: %w", err)
	}
	return b, nil
}
