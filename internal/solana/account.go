package solana

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pendergraft/contractlens/internal/artifact"
)

const lamportsPerSOL = 1_000_000_000

// EndpointCaller issues a JSON-RPC call against an explicit endpoint list
type EndpointCaller interface {
	CallEndpoints(ctx context.Context, label string, urls []string, method string, params ...any) (json.RawMessage, error)
}

type accountInfoResult struct {
	Value *struct {
		Data       []string `json:"data"`
		Executable bool     `json:"executable"`
		Lamports   uint64   `json:"lamports"`
		Owner      string   `json:"owner"`
	} `json:"value"`
}

// AccountReader reads raw accounts with getAccountInfo
type AccountReader struct {
	rpc          EndpointCaller
	endpoints    []string
	previewBytes int
	logger       *slog.Logger
}

// NewAccountReader creates a reader that tries endpoints in order
func NewAccountReader(rpc EndpointCaller, endpoints []string, previewBytes int, logger *slog.Logger) *AccountReader {
	if previewBytes <= 0 {
		previewBytes = 64
	}
	return &AccountReader{rpc: rpc, endpoints: endpoints, previewBytes: previewBytes, logger: logger}
}

// GetAccount returns the first non-null account from the endpoint list.
// It returns ErrNotFound when every endpoint failed or had no account.
func (r *AccountReader) GetAccount(ctx context.Context, address string) (*artifact.AccountInfo, error) {
	for _, endpoint := range r.endpoints {
		raw, err := r.rpc.CallEndpoints(ctx, "solana", []string{endpoint}, "getAccountInfo",
			address, map[string]string{"encoding": "base64"})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("getAccountInfo failed", "endpoint", endpoint, "address", address, "error", err)
			continue
		}

		info, err := r.parse(raw)
		if err != nil {
			r.logger.Warn("getAccountInfo unparseable", "endpoint", endpoint, "address", address, "error", err)
			continue
		}
		if info == nil {
			r.logger.Debug("account not found on endpoint", "endpoint", endpoint, "address", address)
			continue
		}
		return info, nil
	}
	return nil, ErrNotFound
}

func (r *AccountReader) parse(raw json.RawMessage) (*artifact.AccountInfo, error) {
	var res accountInfoResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, err
	}
	if res.Value == nil {
		return nil, nil
	}

	var data []byte
	if len(res.Value.Data) > 0 && res.Value.Data[0] != "" {
		decoded, err := base64.StdEncoding.DecodeString(res.Value.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decoding account data: %w", err)
		}
		data = decoded
	}

	preview := data
	if len(preview) > r.previewBytes {
		preview = preview[:r.previewBytes]
	}

	return &artifact.AccountInfo{
		IsExecutable: res.Value.Executable,
		Owner:        res.Value.Owner,
		Lamports:     res.Value.Lamports,
		SOLBalance:   float64(res.Value.Lamports) / lamportsPerSOL,
		DataLength:   len(data),
		DataPreview:  hex.EncodeToString(preview),
	}, nil
}
